// Package resolver implements the Location Resolvers that turn a repository
// and a repository-relative path into bytes on disk: a filesystem-backed
// resolver for hosted repositories, and a group resolver that federates a
// list of member resolvers behind one logical repository.
package resolver

import (
	"context"
	"io"

	"github.com/lgulliver/vaultmvn/pkg/types"
)

// ReadableByteSource is a seekable byte stream paired with its length, what
// the Range-Stream Adapter needs to serve partial content.
type ReadableByteSource interface {
	io.ReadSeekCloser
	Size() (int64, error)
}

// StagedWrite is content already durably flushed to a temporary location but
// not yet visible at its final path. Commit makes it visible; Discard
// abandons it. Callers that stage more than one file for a single logical
// operation control the order in which each becomes visible by choosing the
// order they call Commit.
type StagedWrite interface {
	Commit() error
	Discard()
}

// Resolver locates and manipulates artifact bytes for one repository.
type Resolver interface {
	// Open returns a seekable byte source for path, or ErrArtifactNotFound.
	Open(ctx context.Context, path string) (ReadableByteSource, error)
	// Store writes content to path, returning the number of bytes written.
	Store(ctx context.Context, path string, content io.Reader) (int64, error)
	// StoreStaged writes content to path's durable temp location without
	// making it visible at path. Used to order the visibility of a
	// multi-file write (e.g. checksum sidecars committed before the
	// artifact they describe).
	StoreStaged(ctx context.Context, path string, content io.Reader) (StagedWrite, int64, error)
	// Delete removes path. Deleting an absent path is not an error.
	Delete(ctx context.Context, path string) error
	// Exists reports whether path currently resolves to stored bytes.
	Exists(ctx context.Context, path string) (bool, error)
}

// RepositoryResolvers maps a RepoKey to the Resolver serving it, so the
// Artifact Management Service and the Group Resolver can look up any
// repository without depending on how it was constructed.
type RepositoryResolvers interface {
	Lookup(key types.RepoKey) (Resolver, *types.Repository, bool)
}
