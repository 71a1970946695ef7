package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lgulliver/vaultmvn/cmd/api-gateway/routes"
	"github.com/lgulliver/vaultmvn/internal/artifact"
	"github.com/lgulliver/vaultmvn/internal/auth"
	"github.com/lgulliver/vaultmvn/internal/checksumcache"
	"github.com/lgulliver/vaultmvn/internal/common"
	"github.com/lgulliver/vaultmvn/internal/metadata"
	"github.com/lgulliver/vaultmvn/internal/resolver"
	"github.com/lgulliver/vaultmvn/internal/validation"
	"github.com/lgulliver/vaultmvn/pkg/config"
	"github.com/lgulliver/vaultmvn/pkg/types"
)

func main() {
	cfg := config.LoadFromEnv()
	setupLogging(cfg.Logging)

	log.Info().Msg("starting api gateway")

	db, err := common.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	cache, err := common.NewCache(&cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer cache.Close()

	topology, err := config.LoadTopology(cfg.TopologyFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load repository topology")
	}

	registry, err := buildRegistry(topology)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build repository registry")
	}

	checksumCache := checksumcache.New(cfg.ChecksumCache.Lifetime(), cfg.ChecksumCache.ExpiredCheckInterval())
	checksumCache.Start()

	pipeline := validation.DefaultPipeline()
	artifactService := artifact.NewService(registry, checksumCache, pipeline, db)
	authService := auth.NewService(db, cache, &cfg.Auth)

	router := setupRouter(authService, artifactService)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	} else {
		log.Info().Msg("shutdown complete")
	}
}

func setupLogging(cfg config.LoggingConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

// buildRegistry assembles a resolver (and, for hosted repositories, a
// metadata manager) for every configured repository, then a second pass
// wires up group repositories over the hosted resolvers already registered.
func buildRegistry(topology *config.Topology) (*artifact.Registry, error) {
	reg := artifact.NewRegistry()

	var groupIndexes []int
	for i := range topology.Repositories {
		repo := &topology.Repositories[i]
		if repo.Type == types.RepositoryTypeGroup {
			groupIndexes = append(groupIndexes, i)
			continue
		}

		storageID := storageIDFor(topology, repo)

		fsResolver, err := resolver.NewFSResolver(repo.BaseDir)
		if err != nil {
			return nil, fmt.Errorf("failed to build resolver for repository %q: %w", repo.ID, err)
		}

		mgr := metadata.New(repo.BaseDir)
		reg.Register(types.RepoKey{StorageID: storageID, RepoID: repo.ID}, repo, fsResolver, mgr)
	}

	for _, i := range groupIndexes {
		repo := &topology.Repositories[i]
		storageID := storageIDFor(topology, repo)
		memberKeys := make([]types.RepoKey, 0, len(repo.GroupRepositories))
		for _, memberID := range repo.GroupRepositories {
			memberKeys = append(memberKeys, types.RepoKey{StorageID: storageID, RepoID: memberID})
		}

		groupResolver, err := resolver.NewGroupResolver(memberKeys, reg)
		if err != nil {
			return nil, fmt.Errorf("failed to build group resolver for repository %q: %w", repo.ID, err)
		}

		reg.Register(types.RepoKey{StorageID: storageID, RepoID: repo.ID}, repo, groupResolver, nil)
	}

	return reg, nil
}

// storageIDFor reports which storage owns a repository: the topology file
// gives each repository its own basedir rather than an explicit storageId,
// so ownership is resolved by finding the storage whose basedir contains it.
// A single-storage topology (the common case) always resolves unambiguously.
func storageIDFor(topology *config.Topology, repo *types.Repository) string {
	if len(topology.Storages) == 1 {
		return topology.Storages[0].ID
	}
	for _, s := range topology.Storages {
		if rel, err := filepath.Rel(s.BaseDir, repo.BaseDir); err == nil && !strings.HasPrefix(rel, "..") {
			return s.ID
		}
	}
	return ""
}

func setupRouter(authService *auth.Service, artifactService *artifact.Service) *gin.Engine {
	if zerolog.GlobalLevel() == zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "vaultmvn-api-gateway",
			"time":    time.Now().UTC(),
		})
	})

	authGroup := router.Group("/api/v1/auth")
	authGroup.POST("/register", handleRegister(authService))
	authGroup.POST("/login", handleLogin(authService))

	routes.ArtifactRoutes(router, artifactService, authService)

	return router
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func handleRegister(authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		user, err := authService.Register(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, user)
	}
}

func handleLogin(authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		token, expiresAt, err := authService.Login(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token, "expires_at": expiresAt})
	}
}
