package middleware

import (
	"context"

	"github.com/lgulliver/vaultmvn/pkg/types"
)

// AuthServiceInterface is the subset of auth.Service the gin middleware
// depends on, kept as an interface so the middleware is testable without a
// database.
type AuthServiceInterface interface {
	ValidateToken(ctx context.Context, token string) (*types.User, error)
}

// GrantServiceInterface is the subset of auth.Service RequireRepositoryGrant
// depends on, kept as an interface so the middleware is testable without a
// database.
type GrantServiceInterface interface {
	HasRepositoryGrant(ctx context.Context, storageID, repoID string, user *types.User, role string) (bool, error)
}
