// Package validation implements the ordered, short-circuiting chain of
// checks the Artifact Management Service runs before accepting a store
// request: version-policy gating and redeployment gating.
package validation

import (
	"context"
	"fmt"

	"github.com/lgulliver/vaultmvn/internal/apierr"
	"github.com/lgulliver/vaultmvn/internal/coordinates"
	"github.com/lgulliver/vaultmvn/pkg/types"
)

// ExistsFunc reports whether the coordinates being validated already have a
// stored artifact. Validators depend on this instead of a resolver directly
// so they stay unit-testable without a filesystem.
type ExistsFunc func(ctx context.Context) (bool, error)

// Validator checks one rule against a proposed store and returns a non-nil
// error (from the apierr taxonomy) to reject it.
type Validator interface {
	Validate(ctx context.Context, repo *types.Repository, coords *coordinates.Coordinates, exists ExistsFunc) error
}

// Pipeline runs Validators in order and returns the first failure.
type Pipeline struct {
	validators []Validator
}

// NewPipeline builds a Pipeline that runs validators in the given order.
func NewPipeline(validators ...Validator) *Pipeline {
	return &Pipeline{validators: validators}
}

// Validate runs every validator in order, stopping at the first error.
func (p *Pipeline) Validate(ctx context.Context, repo *types.Repository, coords *coordinates.Coordinates, exists ExistsFunc) error {
	for _, v := range p.validators {
		if err := v.Validate(ctx, repo, coords, exists); err != nil {
			return err
		}
	}
	return nil
}

// ReleaseVersionValidator rejects snapshot versions in a release-policy
// repository.
type ReleaseVersionValidator struct{}

func (ReleaseVersionValidator) Validate(_ context.Context, repo *types.Repository, coords *coordinates.Coordinates, _ ExistsFunc) error {
	if repo.Policy == types.PolicyRelease && coords.IsSnapshot() {
		return apierr.Wrap(apierr.ErrVersionPolicyViolation, "repository %q accepts release versions only, got snapshot %q", repo.ID, coords.Version)
	}
	return nil
}

// SnapshotVersionValidator rejects release versions in a snapshot-policy
// repository.
type SnapshotVersionValidator struct{}

func (SnapshotVersionValidator) Validate(_ context.Context, repo *types.Repository, coords *coordinates.Coordinates, _ ExistsFunc) error {
	if repo.Policy == types.PolicySnapshot && !coords.IsSnapshot() {
		return apierr.Wrap(apierr.ErrVersionPolicyViolation, "repository %q accepts snapshot versions only, got release %q", repo.ID, coords.Version)
	}
	return nil
}

// RedeploymentValidator rejects overwriting an existing release artifact in
// a repository that does not allow redeployment. Snapshots are always exempt
// — repeated snapshot deploys are the normal Maven workflow.
type RedeploymentValidator struct{}

func (RedeploymentValidator) Validate(ctx context.Context, repo *types.Repository, coords *coordinates.Coordinates, exists ExistsFunc) error {
	if repo.AllowsRedeployment || coords.IsSnapshot() {
		return nil
	}
	ok, err := exists(ctx)
	if err != nil {
		return fmt.Errorf("failed to check existing artifact: %w", err)
	}
	if ok {
		return apierr.Wrap(apierr.ErrRedeploymentForbidden, "repository %q forbids redeploying %s", repo.ID, coords.Path)
	}
	return nil
}

// DefaultPipeline returns the pipeline the Artifact Management Service uses
// for every store request.
func DefaultPipeline() *Pipeline {
	return NewPipeline(
		ReleaseVersionValidator{},
		SnapshotVersionValidator{},
		RedeploymentValidator{},
	)
}
