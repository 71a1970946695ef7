package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lgulliver/vaultmvn/internal/auth"
	"github.com/lgulliver/vaultmvn/pkg/types"
	"github.com/rs/zerolog/log"
)

// AuthMiddleware rejects requests without a valid JWT bearer token.
func AuthMiddleware(authService *auth.Service) gin.HandlerFunc {
	return authMiddlewareWithInterface(authService)
}

func authMiddlewareWithInterface(authService AuthServiceInterface) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			token := strings.TrimPrefix(authHeader, "Bearer ")
			if user, err := authService.ValidateToken(c.Request.Context(), token); err == nil {
				c.Set("user", user)
				c.Next()
				return
			} else {
				log.Warn().Err(err).Str("path", c.Request.URL.Path).Msg("token validation failed")
			}
		}

		log.Warn().
			Str("path", c.Request.URL.Path).
			Str("client_ip", c.ClientIP()).
			Msg("unauthorized access attempt")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		c.Abort()
	}
}

// OptionalAuthMiddleware attaches a principal when a valid bearer token is
// present, but never rejects the request.
func OptionalAuthMiddleware(authService *auth.Service) gin.HandlerFunc {
	return optionalAuthMiddlewareWithInterface(authService)
}

func optionalAuthMiddlewareWithInterface(authService AuthServiceInterface) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			token := strings.TrimPrefix(authHeader, "Bearer ")
			if user, err := authService.ValidateToken(c.Request.Context(), token); err == nil {
				c.Set("user", user)
			}
		}
		c.Next()
	}
}

// RequireRepositoryGrant rejects requests whose authenticated principal
// lacks a "deployer" (or "admin") grant on the repository named by the
// request's storage/repo route params. Must run after AuthMiddleware, since
// it reads the principal AuthMiddleware attaches to the context.
func RequireRepositoryGrant(authService *auth.Service) gin.HandlerFunc {
	return requireRepositoryGrantWithInterface(authService)
}

func requireRepositoryGrantWithInterface(authService GrantServiceInterface) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := GetUserFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		storageID := c.Param("storage")
		repoID := c.Param("repo")
		granted, err := authService.HasRepositoryGrant(c.Request.Context(), storageID, repoID, user, "deployer")
		if err != nil {
			log.Error().Err(err).Str("storage", storageID).Str("repo", repoID).Msg("failed to check repository grant")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			c.Abort()
			return
		}
		if !granted {
			log.Warn().
				Str("storage", storageID).
				Str("repo", repoID).
				Str("user_id", user.ID.String()).
				Msg("repository grant denied")
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetUserFromContext extracts the authenticated user set by AuthMiddleware.
func GetUserFromContext(c *gin.Context) (*types.User, bool) {
	user, exists := c.Get("user")
	if !exists {
		return nil, false
	}
	typedUser, ok := user.(*types.User)
	return typedUser, ok
}
