package resolver

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lgulliver/vaultmvn/internal/apierr"
	"github.com/rs/zerolog/log"
)

// FSResolver resolves a single hosted repository's paths against a
// filesystem directory tree.
type FSResolver struct {
	basedir string
}

// NewFSResolver builds an FSResolver rooted at basedir. basedir is created
// if it does not already exist.
func NewFSResolver(basedir string) (*FSResolver, error) {
	if err := os.MkdirAll(basedir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FSResolver{basedir: basedir}, nil
}

// resolvePath canonicalizes a repository-relative path and rejects any
// attempt to escape basedir (e.g. via "../" segments).
func (r *FSResolver) resolvePath(p string) (string, error) {
	root := filepath.Clean(r.basedir)
	full := filepath.Join(root, p)
	rel, err := filepath.Rel(root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", apierr.Wrap(apierr.ErrInvalidPath, "path %q escapes repository root", p)
	}
	return full, nil
}

type fileSource struct {
	*os.File
}

func (f fileSource) Size() (int64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Open returns a seekable handle onto the stored file at path.
func (r *FSResolver) Open(_ context.Context, path string) (ReadableByteSource, error) {
	full, err := r.resolvePath(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apierr.Wrap(apierr.ErrArtifactNotFound, "no artifact at %q", path)
		}
		return nil, apierr.Wrap(apierr.ErrIO, "failed to open %q: %v", path, err)
	}
	return fileSource{f}, nil
}

// Store writes content to path atomically: a temp file unique to this call
// is written and fsynced, then renamed over the final path.
func (r *FSResolver) Store(ctx context.Context, path string, content io.Reader) (int64, error) {
	staged, n, err := r.StoreStaged(ctx, path, content)
	if err != nil {
		return 0, err
	}
	if err := staged.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

// fsStagedWrite is a temp file already fsynced and waiting to be renamed
// into place at full.
type fsStagedWrite struct {
	tmp  string
	full string
}

// Commit renames the staged temp file into place, making it visible.
func (s fsStagedWrite) Commit() error {
	if err := os.Rename(s.tmp, s.full); err != nil {
		return apierr.Wrap(apierr.ErrIO, "failed to move %q into place: %v", s.full, err)
	}
	log.Debug().Str("path", s.full).Msg("artifact stored")
	return nil
}

// Discard removes the staged temp file without making it visible.
func (s fsStagedWrite) Discard() {
	os.Remove(s.tmp)
}

// StoreStaged writes content to a temp file unique to this call and fsyncs
// it, without renaming it into place; the caller commits it (or discards it)
// once it knows the order in which related writes should become visible.
func (r *FSResolver) StoreStaged(_ context.Context, path string, content io.Reader) (StagedWrite, int64, error) {
	full, err := r.resolvePath(path)
	if err != nil {
		return nil, 0, err
	}

	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, 0, apierr.Wrap(apierr.ErrIO, "failed to create directory for %q: %v", path, err)
	}

	tmp := full + fmt.Sprintf(".tmp.%d", time.Now().UnixNano())
	f, err := os.Create(tmp)
	if err != nil {
		return nil, 0, apierr.Wrap(apierr.ErrIO, "failed to create temp file for %q: %v", path, err)
	}

	n, err := io.Copy(f, content)
	if err != nil {
		f.Close()
		os.Remove(tmp)
		return nil, 0, apierr.Wrap(apierr.ErrIO, "failed to write %q: %v", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return nil, 0, apierr.Wrap(apierr.ErrIO, "failed to sync %q: %v", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return nil, 0, apierr.Wrap(apierr.ErrIO, "failed to close %q: %v", path, err)
	}

	return fsStagedWrite{tmp: tmp, full: full}, n, nil
}

// Delete removes path. Deleting an absent path is not an error.
func (r *FSResolver) Delete(_ context.Context, path string) error {
	full, err := r.resolvePath(path)
	if err != nil {
		return err
	}

	if err := os.Remove(full); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return apierr.Wrap(apierr.ErrIO, "failed to delete %q: %v", path, err)
	}
	log.Debug().Str("path", path).Msg("artifact deleted")
	return nil
}

// Exists reports whether path currently resolves to stored bytes.
func (r *FSResolver) Exists(_ context.Context, path string) (bool, error) {
	full, err := r.resolvePath(path)
	if err != nil {
		return false, err
	}

	if _, err := os.Stat(full); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, apierr.Wrap(apierr.ErrIO, "failed to stat %q: %v", path, err)
	}
	return true, nil
}
