package resolver

import (
	"context"
	"errors"
	"io"

	"github.com/lgulliver/vaultmvn/internal/apierr"
	"github.com/lgulliver/vaultmvn/pkg/types"
)

// member is one entry in a group's resolution order, paired with the key
// used to detect cycles through nested groups.
type member struct {
	key      types.RepoKey
	resolver Resolver
}

// GroupResolver federates an ordered list of member resolvers behind one
// logical repository. Reads try members in order and return the first hit;
// writes and deletes are always rejected.
type GroupResolver struct {
	members []member
}

// NewGroupResolver builds a GroupResolver over members in resolution order.
func NewGroupResolver(keys []types.RepoKey, lookup RepositoryResolvers) (*GroupResolver, error) {
	members := make([]member, 0, len(keys))
	for _, key := range keys {
		res, _, ok := lookup.Lookup(key)
		if !ok {
			return nil, apierr.Wrap(apierr.ErrInvalidPath, "group member %s does not exist", key)
		}
		members = append(members, member{key: key, resolver: res})
	}
	return &GroupResolver{members: members}, nil
}

// Open returns the first member's bytes for path, trying members in order
// and skipping cycles back into the group itself.
func (g *GroupResolver) Open(ctx context.Context, path string) (ReadableByteSource, error) {
	return g.openVisiting(ctx, path, map[types.RepoKey]bool{})
}

func (g *GroupResolver) openVisiting(ctx context.Context, path string, visited map[types.RepoKey]bool) (ReadableByteSource, error) {
	for _, m := range g.members {
		if visited[m.key] {
			continue
		}
		visited[m.key] = true

		if nested, ok := m.resolver.(*GroupResolver); ok {
			src, err := nested.openVisiting(ctx, path, visited)
			if err == nil {
				return src, nil
			}
			if !errors.Is(err, apierr.ErrArtifactNotFound) {
				return nil, err
			}
			continue
		}

		src, err := m.resolver.Open(ctx, path)
		if err == nil {
			return src, nil
		}
		if !errors.Is(err, apierr.ErrArtifactNotFound) {
			return nil, err
		}
	}
	return nil, apierr.Wrap(apierr.ErrArtifactNotFound, "no group member holds %q", path)
}

// Store always fails: groups are read-only aggregates.
func (g *GroupResolver) Store(_ context.Context, path string, _ io.Reader) (int64, error) {
	return 0, apierr.Wrap(apierr.ErrWriteToGroupForbidden, "cannot write %q to a group repository", path)
}

// StoreStaged always fails: groups are read-only aggregates.
func (g *GroupResolver) StoreStaged(_ context.Context, path string, _ io.Reader) (StagedWrite, int64, error) {
	return nil, 0, apierr.Wrap(apierr.ErrWriteToGroupForbidden, "cannot write %q to a group repository", path)
}

// Delete always fails: groups are read-only aggregates.
func (g *GroupResolver) Delete(_ context.Context, path string) error {
	return apierr.Wrap(apierr.ErrDeleteFromGroupForbidden, "cannot delete %q from a group repository", path)
}

// Exists reports whether any member (transitively, with cycle protection)
// holds path.
func (g *GroupResolver) Exists(ctx context.Context, path string) (bool, error) {
	return g.existsVisiting(ctx, path, map[types.RepoKey]bool{})
}

func (g *GroupResolver) existsVisiting(ctx context.Context, path string, visited map[types.RepoKey]bool) (bool, error) {
	for _, m := range g.members {
		if visited[m.key] {
			continue
		}
		visited[m.key] = true

		if nested, ok := m.resolver.(*GroupResolver); ok {
			ok, err := nested.existsVisiting(ctx, path, visited)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
			continue
		}

		ok, err := m.resolver.Exists(ctx, path)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
