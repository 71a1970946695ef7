package artifact

import (
	"sync"

	"github.com/lgulliver/vaultmvn/internal/metadata"
	"github.com/lgulliver/vaultmvn/internal/resolver"
	"github.com/lgulliver/vaultmvn/pkg/types"
)

type registryEntry struct {
	repo     *types.Repository
	resolver resolver.Resolver
	metadata *metadata.Manager // nil for group repositories
}

// Registry holds every configured repository's resolver and metadata
// manager, assembled once at process startup from the storage/repository
// topology. It implements resolver.RepositoryResolvers so the Group
// Resolver can look up its members through the same registry.
type Registry struct {
	mu      sync.RWMutex
	entries map[types.RepoKey]registryEntry
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[types.RepoKey]registryEntry)}
}

// Register adds one repository's resolver (and, for hosted repositories,
// its metadata manager) to the registry.
func (r *Registry) Register(key types.RepoKey, repo *types.Repository, res resolver.Resolver, mgr *metadata.Manager) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key] = registryEntry{repo: repo, resolver: res, metadata: mgr}
}

// Lookup implements resolver.RepositoryResolvers.
func (r *Registry) Lookup(key types.RepoKey) (resolver.Resolver, *types.Repository, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[key]
	if !ok {
		return nil, nil, false
	}
	return e.resolver, e.repo, true
}

func (r *Registry) lookupFull(key types.RepoKey) (registryEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[key]
	return e, ok
}
