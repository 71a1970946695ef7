// Package auth is the external authenticator the HTTP surface calls before
// reaching the Artifact Management Service façade: it issues and validates
// JWTs, hashes passwords with bcrypt, and answers whether an authenticated
// principal holds a per-repository write grant. The core façade and
// validation pipeline never make access-control decisions themselves — that
// stays here and in the HTTP middleware that calls HasRepositoryGrant.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/lgulliver/vaultmvn/internal/common"
	"github.com/lgulliver/vaultmvn/pkg/config"
	"github.com/lgulliver/vaultmvn/pkg/types"
	"github.com/lgulliver/vaultmvn/pkg/utils"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Service issues and validates the JWTs the HTTP middleware attaches a
// principal to a request with.
type Service struct {
	db     *common.Database
	cache  *common.Cache // optional second-level cache for validated users
	config *config.AuthConfig
}

// NewService builds a Service. cache may be nil.
func NewService(db *common.Database, cache *common.Cache, cfg *config.AuthConfig) *Service {
	return &Service{db: db, cache: cache, config: cfg}
}

// Register creates a new account with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, username, password string) (*types.User, error) {
	var existing types.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&existing).Error; err == nil {
		return nil, fmt.Errorf("user %q already exists", username)
	} else if err != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	hashed, err := utils.HashPassword(password, s.config.BCryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &types.User{Username: username, Password: hashed}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	log.Info().Str("username", username).Str("user_id", user.ID.String()).Msg("user registered")
	user.Password = ""
	return user, nil
}

// Login verifies credentials and returns a signed JWT.
func (s *Service) Login(ctx context.Context, username, password string) (string, time.Time, error) {
	var user types.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", time.Time{}, fmt.Errorf("invalid credentials")
		}
		return "", time.Time{}, fmt.Errorf("failed to look up user: %w", err)
	}

	if !utils.CheckPassword(password, user.Password) {
		return "", time.Time{}, fmt.Errorf("invalid credentials")
	}

	token, err := utils.GenerateJWT(user.ID, s.config.JWTSecret, s.config.JWTExpiration)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate token: %w", err)
	}

	log.Info().Str("username", username).Str("user_id", user.ID.String()).Msg("login successful")
	return token, time.Now().Add(s.config.JWTExpiration), nil
}

// ValidateToken verifies tokenString and returns the principal it names,
// consulting the second-level cache before the database when available.
func (s *Service) ValidateToken(ctx context.Context, tokenString string) (*types.User, error) {
	userID, err := utils.ValidateJWT(tokenString, s.config.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	cacheKey := "user:" + userID.String()
	if s.cache != nil {
		var cached types.User
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	var user types.User
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	user.Password = ""

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, &user, 10*time.Minute); err != nil {
			log.Warn().Err(err).Msg("failed to cache validated user")
		}
	}
	return &user, nil
}

// HasRepositoryGrant reports whether user may act as role on the named
// repository. Global admins always may; otherwise it defers to the
// RepositoryGrant rows, also accepting an "admin" grant on the repository
// itself in place of the requested role.
func (s *Service) HasRepositoryGrant(ctx context.Context, storageID, repoID string, user *types.User, role string) (bool, error) {
	if user.IsAdmin {
		return true, nil
	}
	granted, err := s.db.HasGrant(ctx, storageID, repoID, user.ID, role)
	if err != nil {
		return false, err
	}
	if granted {
		return true, nil
	}
	return s.db.HasGrant(ctx, storageID, repoID, user.ID, "admin")
}
