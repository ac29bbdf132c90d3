package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nulzo/model-control-plane/cmd"
	"github.com/nulzo/model-control-plane/internal/catalog"
	"github.com/nulzo/model-control-plane/internal/config"
	"github.com/nulzo/model-control-plane/internal/platform/logger"
	"github.com/nulzo/model-control-plane/internal/platform/otel"
	"github.com/nulzo/model-control-plane/internal/proxy"
	"github.com/nulzo/model-control-plane/internal/server"
	"github.com/nulzo/model-control-plane/internal/service"
	"github.com/nulzo/model-control-plane/internal/store/cache"
	"github.com/nulzo/model-control-plane/internal/store/sqlite"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger.Initialize(logger.DefaultConfig())
	defer logger.Sync()
	log := logger.Get()

	cmd.CheckForUpdates()

	shutdownTracer, err := otel.InitTracer("model-control-plane", log, os.Stdout)
	if err != nil {
		log.Fatal("Failed to initialize tracer", zap.Error(err))
	}

	repo, err := sqlite.NewSQLiteStorage(cfg.Store.DSN, log)
	if err != nil {
		log.Fatal("Failed to open store", zap.Error(err))
	}
	defer repo.Close()

	var cacheService cache.CacheService = cache.NewMemory()
	if cfg.Redis.Enabled {
		redisCache, err := cache.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Warn("Redis unavailable, falling back to in-process cache", zap.Error(err))
		} else {
			cacheService = redisCache
		}
	}

	cat, err := loadCatalog(cfg)
	if err != nil {
		log.Fatal("Failed to load model catalog", zap.Error(err))
	}

	proxyClient := proxy.NewClient(
		cfg.Litellm.BaseURL,
		cfg.Litellm.MasterKey,
		cfg.Litellm.Timeout,
		log,
		proxy.WithRetries(cfg.Litellm.Retries, cfg.Litellm.Backoff),
	)

	secretService := service.NewSecretService(repo, log)
	credentialService := service.NewCredentialService(repo, cat, cacheService, log)
	modelService := service.NewModelService(repo, cat, credentialService, proxyClient, log)

	srv := server.New(cfg, log, modelService, credentialService, secretService)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: srv.Handler(),
	}

	go func() {
		log.Info("Starting control plane", zap.String("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error("Forced shutdown", zap.Error(err))
	}
	if err := shutdownTracer(ctx); err != nil {
		log.Error("Tracer shutdown failed", zap.Error(err))
	}
}

func loadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.Catalog.Path != "" {
		return catalog.LoadFile(cfg.Catalog.Path)
	}
	return catalog.Load()
}
