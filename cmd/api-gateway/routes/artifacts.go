// Package routes registers the HTTP surface mounted under /storages: one
// gin.RouterGroup per concern, handler functions returning gin.HandlerFunc
// closures, following the teacher's route-registration style.
package routes

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lgulliver/vaultmvn/cmd/api-gateway/middleware"
	"github.com/lgulliver/vaultmvn/internal/apierr"
	"github.com/lgulliver/vaultmvn/internal/artifact"
	"github.com/lgulliver/vaultmvn/internal/auth"
	"github.com/lgulliver/vaultmvn/internal/checksum"
	"github.com/lgulliver/vaultmvn/internal/coordinates"
	"github.com/lgulliver/vaultmvn/internal/rangeio"
	"github.com/lgulliver/vaultmvn/pkg/types"
)

// ArtifactRoutes registers the storage/repository artifact surface.
func ArtifactRoutes(router *gin.Engine, svc *artifact.Service, authService *auth.Service) {
	storages := router.Group("/storages")

	storages.POST("/copy/*path", middleware.AuthMiddleware(authService), handleCopy(svc, authService))

	storages.PUT("/:storage/:repo/*path", middleware.AuthMiddleware(authService), middleware.RequireRepositoryGrant(authService), handleUpload(svc))
	storages.GET("/:storage/:repo/*path", middleware.OptionalAuthMiddleware(authService), handleDownload(svc))
	storages.DELETE("/:storage/:repo/*path", middleware.AuthMiddleware(authService), middleware.RequireRepositoryGrant(authService), handleDelete(svc))
}

func trimPath(raw string) string {
	return strings.TrimPrefix(raw, "/")
}

func userIDFromContext(c *gin.Context) *uuid.UUID {
	user, ok := middleware.GetUserFromContext(c)
	if !ok {
		return nil
	}
	return &user.ID
}

func writeAPIError(c *gin.Context, err error) {
	c.JSON(apierr.StatusCode(err), gin.H{"error": err.Error()})
}

func handleUpload(svc *artifact.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := trimPath(c.Param("path"))
		if path == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "path required"})
			return
		}
		key := types.RepoKey{StorageID: c.Param("storage"), RepoID: c.Param("repo")}

		if err := svc.Store(c.Request.Context(), key, path, c.Request.Body, userIDFromContext(c)); err != nil {
			writeAPIError(c, err)
			return
		}
		c.Status(http.StatusOK)
	}
}

func handleDownload(svc *artifact.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := trimPath(c.Param("path"))
		if path == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "path required"})
			return
		}
		key := types.RepoKey{StorageID: c.Param("storage"), RepoID: c.Param("repo")}

		src, err := svc.Resolve(c.Request.Context(), key, path)
		if err != nil {
			writeAPIError(c, err)
			return
		}
		defer src.Close()

		size, err := src.Size()
		if err != nil {
			writeAPIError(c, apierr.Wrap(apierr.ErrIO, "failed to stat %q: %v", path, err))
			return
		}

		c.Header("Accept-Ranges", "bytes")
		c.Header("Content-Type", rangeio.ContentType(path))
		setChecksumHeaders(c, svc, key, path)

		rangeHeader := c.GetHeader("Range")
		rng, isRange, err := rangeio.ParseHeader(rangeHeader)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if !isRange {
			c.Header("Content-Length", itoa(size))
			c.Status(http.StatusOK)
			io.Copy(c.Writer, src)
			return
		}

		adapter, err := rangeio.NewAdapter(size, rng)
		if err != nil {
			writeAPIError(c, err)
			return
		}
		body, err := adapter.Wrap(src)
		if err != nil {
			writeAPIError(c, apierr.Wrap(apierr.ErrIO, "failed to seek %q: %v", path, err))
			return
		}

		c.Header("Content-Range", adapter.ContentRangeHeader())
		c.Header("Content-Length", itoa(adapter.ContentLength()))
		c.Status(http.StatusPartialContent)
		io.Copy(c.Writer, body)
	}
}

func setChecksumHeaders(c *gin.Context, svc *artifact.Service, key types.RepoKey, path string) {
	if coordinates.IsChecksum(path) || coordinates.IsMetadata(path) {
		return
	}
	repo, ok := svc.RepositoryInfo(key)
	if !ok || !repo.ChecksumHeadersEnabled {
		return
	}
	if digest, ok := svc.SidecarDigest(c.Request.Context(), key, path, checksum.MD5); ok {
		c.Header("Checksum-MD5", digest)
	}
	if digest, ok := svc.SidecarDigest(c.Request.Context(), key, path, checksum.SHA1); ok {
		c.Header("Checksum-SHA1", digest)
	}
}

func handleDelete(svc *artifact.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := trimPath(c.Param("path"))
		if path == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "path required"})
			return
		}
		key := types.RepoKey{StorageID: c.Param("storage"), RepoID: c.Param("repo")}
		force := c.Query("force") == "true"

		if !force {
			if _, err := svc.Resolve(c.Request.Context(), key, path); err != nil {
				writeAPIError(c, err)
				return
			}
		}

		if err := svc.Delete(c.Request.Context(), key, path, userIDFromContext(c)); err != nil {
			writeAPIError(c, err)
			return
		}
		c.Status(http.StatusOK)
	}
}

func handleCopy(svc *artifact.Service, authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := trimPath(c.Param("path"))
		if path == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "path required"})
			return
		}

		srcKey := types.RepoKey{StorageID: c.Query("srcStorageId"), RepoID: c.Query("srcRepositoryId")}
		dstKey := types.RepoKey{StorageID: c.Query("destStorageId"), RepoID: c.Query("destRepositoryId")}

		if _, ok := svc.RepositoryInfo(srcKey); !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "source repository not found"})
			return
		}
		if _, ok := svc.RepositoryInfo(dstKey); !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "destination repository not found"})
			return
		}

		// The destination's storage/repo ids come from the query string, not
		// route params, so RequireRepositoryGrant (matched on route params)
		// can't cover this route; the grant check happens inline instead.
		user, ok := middleware.GetUserFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		granted, err := authService.HasRepositoryGrant(c.Request.Context(), dstKey.StorageID, dstKey.RepoID, user, "deployer")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if !granted {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		if err := svc.Copy(c.Request.Context(), srcKey, path, dstKey, userIDFromContext(c)); err != nil {
			writeAPIError(c, err)
			return
		}
		c.Status(http.StatusOK)
	}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
