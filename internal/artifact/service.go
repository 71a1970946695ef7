// Package artifact implements the Artifact Management Service façade:
// orchestrates a repository's resolver, the validation pipeline, the
// metadata manager, and the checksum cache behind one small operation set
// (resolve/store/delete/copy).
package artifact

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/lgulliver/vaultmvn/internal/apierr"
	"github.com/lgulliver/vaultmvn/internal/checksum"
	"github.com/lgulliver/vaultmvn/internal/checksumcache"
	"github.com/lgulliver/vaultmvn/internal/common"
	"github.com/lgulliver/vaultmvn/internal/coordinates"
	"github.com/lgulliver/vaultmvn/internal/resolver"
	"github.com/lgulliver/vaultmvn/internal/validation"
	"github.com/lgulliver/vaultmvn/pkg/types"
	"github.com/rs/zerolog/log"
)

// Service is the Artifact Management Service façade. The zero value is not
// usable; construct with NewService.
type Service struct {
	registry *Registry
	cache    *checksumcache.Cache
	pipeline *validation.Pipeline
	db       *common.Database // nil is valid: audit logging is best-effort
}

// NewService builds a Service over a populated Registry. db may be nil, in
// which case operations are not audit-logged.
func NewService(registry *Registry, cache *checksumcache.Cache, pipeline *validation.Pipeline, db *common.Database) *Service {
	if pipeline == nil {
		pipeline = validation.DefaultPipeline()
	}
	return &Service{registry: registry, cache: cache, pipeline: pipeline, db: db}
}

var digestAlgorithms = []checksum.Algorithm{checksum.MD5, checksum.SHA1}

// RepositoryInfo returns the configured Repository for key, for HTTP-layer
// decisions (e.g. whether to populate checksum headers) that don't belong
// in the façade's own operations.
func (s *Service) RepositoryInfo(key types.RepoKey) (*types.Repository, bool) {
	entry, ok := s.registry.lookupFull(key)
	if !ok {
		return nil, false
	}
	return entry.repo, true
}

// SidecarDigest returns the cached digest for path/alg if present, otherwise
// reads the on-disk sidecar and populates the cache. A missing sidecar is
// reported as ok=false, not an error — the HTTP layer treats that as "omit
// the header", per the on-disk layout's "missing sidecars are not errors"
// rule.
func (s *Service) SidecarDigest(ctx context.Context, key types.RepoKey, path string, alg checksum.Algorithm) (string, bool) {
	if digest, ok := s.cache.Get(path, alg); ok {
		return digest, true
	}

	entry, ok := s.registry.lookupFull(key)
	if !ok {
		return "", false
	}
	src, err := entry.resolver.Open(ctx, path+"."+alg.Extension())
	if err != nil {
		return "", false
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return "", false
	}
	digest := string(data)
	s.cache.Put(path, alg, digest)
	return digest, true
}

// Resolve opens a byte source for path within the named repository.
func (s *Service) Resolve(ctx context.Context, key types.RepoKey, path string) (resolver.ReadableByteSource, error) {
	entry, ok := s.registry.lookupFull(key)
	if !ok {
		return nil, apierr.Wrap(apierr.ErrArtifactNotFound, "unknown repository %s", key)
	}
	if !entry.repo.InService {
		return nil, apierr.Wrap(apierr.ErrRepositoryOutOfService, "repository %s is out of service", key)
	}
	return entry.resolver.Open(ctx, path)
}

// Store writes content to path within the named repository, running the
// validation pipeline, maintaining checksum sidecars, refreshing the
// checksum cache with the new digests, and updating directory metadata as
// appropriate.
func (s *Service) Store(ctx context.Context, key types.RepoKey, path string, content io.Reader, userID *uuid.UUID) error {
	entry, ok := s.registry.lookupFull(key)
	if !ok {
		return apierr.Wrap(apierr.ErrArtifactNotFound, "unknown repository %s", key)
	}
	if entry.repo.Type == types.RepositoryTypeGroup {
		return apierr.Wrap(apierr.ErrWriteToGroupForbidden, "cannot write %q to group repository %s", path, key)
	}
	if !entry.repo.InService {
		return apierr.Wrap(apierr.ErrRepositoryOutOfService, "repository %s is out of service", key)
	}

	err := s.store(ctx, entry, path, content)
	s.audit(ctx, key, path, "store", userID, err)
	return err
}

func (s *Service) store(ctx context.Context, entry registryEntry, path string, content io.Reader) error {
	if coordinates.IsChecksum(path) {
		_, err := entry.resolver.Store(ctx, path, content)
		return err
	}

	if coordinates.IsMetadata(path) {
		return s.storeMetadataFile(ctx, entry, path, content)
	}

	coords, err := coordinates.Parse(path)
	if err != nil {
		return apierr.Wrap(apierr.ErrInvalidCoordinates, "%v", err)
	}

	existsFn := func(ctx context.Context) (bool, error) { return entry.resolver.Exists(ctx, path) }
	if err := s.pipeline.Validate(ctx, entry.repo, coords, existsFn); err != nil {
		return err
	}

	digester, err := checksum.NewDigestingReader(content, digestAlgorithms)
	if err != nil {
		return err
	}

	// Stage the artifact and both sidecars as temp files before any of them
	// become visible, then commit the sidecars first and the artifact last —
	// a concurrent reader must never observe the artifact bytes without its
	// checksums already in place.
	artifactWrite, _, err := entry.resolver.StoreStaged(ctx, path, digester)
	if err != nil {
		return err
	}

	type stagedSidecar struct {
		alg    checksum.Algorithm
		digest string
		write  resolver.StagedWrite
	}
	digests := digester.Digests()
	sidecars := make([]stagedSidecar, 0, len(digests))
	for alg, digest := range digests {
		sidecarPath := path + "." + alg.Extension()
		sw, _, err := entry.resolver.StoreStaged(ctx, sidecarPath, strings.NewReader(digest))
		if err != nil {
			artifactWrite.Discard()
			for _, sc := range sidecars {
				sc.write.Discard()
			}
			return fmt.Errorf("failed to stage %s sidecar for %q: %w", alg, path, err)
		}
		sidecars = append(sidecars, stagedSidecar{alg: alg, digest: digest, write: sw})
	}

	for _, sc := range sidecars {
		if err := sc.write.Commit(); err != nil {
			artifactWrite.Discard()
			return fmt.Errorf("failed to commit %s sidecar for %q: %w", sc.alg, path, err)
		}
	}
	if err := artifactWrite.Commit(); err != nil {
		return err
	}
	for _, sc := range sidecars {
		s.cache.Put(path, sc.alg, sc.digest)
	}

	if entry.metadata != nil {
		if err := entry.metadata.AddVersion(coords.ArtifactDir(), coords.GroupID, coords.ArtifactID, coords.Version); err != nil {
			log.Error().Err(err).Str("path", path).Msg("failed to update metadata after store")
			return err
		}
	}

	return nil
}

func (s *Service) storeMetadataFile(ctx context.Context, entry registryEntry, path string, content io.Reader) error {
	if entry.metadata == nil {
		_, err := entry.resolver.Store(ctx, path, content)
		return err
	}
	body, err := io.ReadAll(content)
	if err != nil {
		return apierr.Wrap(apierr.ErrIO, "failed to read metadata body for %q: %v", path, err)
	}
	// The directory-level manager owns regeneration of maven-metadata.xml and
	// its sidecars; storing the supplied body re-derives Latest/Release and
	// rewrites the file plus sidecars atomically.
	return entry.metadata.StoreRaw(strings.TrimSuffix(path, "/maven-metadata.xml"), body)
}

// Delete removes path (and its checksum sidecars) from the named repository.
func (s *Service) Delete(ctx context.Context, key types.RepoKey, path string, userID *uuid.UUID) error {
	entry, ok := s.registry.lookupFull(key)
	if !ok {
		return apierr.Wrap(apierr.ErrArtifactNotFound, "unknown repository %s", key)
	}
	if entry.repo.Type == types.RepositoryTypeGroup {
		return apierr.Wrap(apierr.ErrDeleteFromGroupForbidden, "cannot delete %q from group repository %s", path, key)
	}

	err := s.delete(ctx, entry, path)
	s.audit(ctx, key, path, "delete", userID, err)
	return err
}

func (s *Service) delete(ctx context.Context, entry registryEntry, path string) error {
	if err := entry.resolver.Delete(ctx, path); err != nil {
		return err
	}
	for _, alg := range digestAlgorithms {
		_ = entry.resolver.Delete(ctx, path+"."+alg.Extension())
	}
	s.cache.Invalidate(path)

	if coordinates.IsChecksum(path) || coordinates.IsMetadata(path) {
		return nil
	}

	coords, err := coordinates.Parse(path)
	if err != nil {
		return nil
	}
	if entry.metadata != nil {
		if err := entry.metadata.RemoveVersion(coords.ArtifactDir(), coords.Version); err != nil {
			log.Error().Err(err).Str("path", path).Msg("failed to update metadata after delete")
			return err
		}
	}
	return nil
}

// Copy opens path in the source repository and stores it into the
// destination repository, running the destination's full validation and
// metadata chain.
func (s *Service) Copy(ctx context.Context, srcKey types.RepoKey, path string, dstKey types.RepoKey, userID *uuid.UUID) error {
	src, err := s.Resolve(ctx, srcKey, path)
	if err != nil {
		return err
	}
	defer src.Close()

	return s.Store(ctx, dstKey, path, src, userID)
}

func (s *Service) audit(ctx context.Context, key types.RepoKey, path, operation string, userID *uuid.UUID, opErr error) {
	if s.db == nil {
		return
	}
	entry := types.OperationLog{
		ID:        uuid.New(),
		StorageID: key.StorageID,
		RepoID:    key.RepoID,
		Path:      path,
		Operation: operation,
		UserID:    userID,
		Success:   opErr == nil,
	}
	if opErr != nil {
		entry.Error = opErr.Error()
	}
	if err := s.db.LogOperation(ctx, entry); err != nil {
		log.Error().Err(err).Str("path", path).Msg("failed to write audit log entry")
	}
}
