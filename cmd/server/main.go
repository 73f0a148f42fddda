package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	jwtpkg "vmail/backend/internal/auth/jwt"
	"vmail/backend/internal/bootstrap"
	"vmail/backend/internal/config"
	"vmail/backend/internal/health"
	"vmail/backend/internal/logger"
	"vmail/backend/internal/monitoring"
	"vmail/backend/internal/storage"
	httptransport "vmail/backend/internal/transport/http"
)

// main runs the admin HTTP API.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("invalid config: %v", err))
	}
	if err := cfg.ValidateForServer(); err != nil {
		panic(err.Error())
	}

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	log, err := logger.NewLogger(logger.FromConfig(cfg.Log))
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("starting vmail admin server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := bootstrap.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to open store", zap.Error(err))
	}
	defer store.Close()

	metrics := monitoring.NewMetrics()
	directory := bootstrap.NewDirectory(cfg, store, metrics, log)
	healthChecker := health.NewHealthChecker(store, bootstrap.RedisPinger(store), log)

	jwtManager := jwtpkg.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Expiry)
	log.Info("JWT configuration",
		zap.String("issuer", cfg.JWT.Issuer),
		zap.Duration("expiry", cfg.JWT.Expiry),
	)

	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:     cfg,
		Directory:  directory,
		JWTManager: jwtManager,
		Health:     healthChecker,
		Metrics:    metrics,
		Logger:     log,
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// refresh the directory size gauges
	group.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()

		for {
			updateDirectorySize(groupCtx, store, metrics, log)
			select {
			case <-groupCtx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})

	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}
		return nil
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server error", zap.Error(err))
		return
	}

	log.Info("server exited cleanly")
}

func updateDirectorySize(ctx context.Context, store storage.Store, metrics *monitoring.Metrics, log *zap.Logger) {
	domains, err := store.ListDomains(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Warn("failed to count directory records", zap.Error(err))
		}
		return
	}

	var users, aliases int
	for _, d := range domains {
		users += d.MailUserCount
		aliases += d.AliasCount
	}
	metrics.UpdateDirectorySize(len(domains), users, aliases)
}
