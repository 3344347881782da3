package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bananalabs-oss/bandroom/internal/database"
	"github.com/bananalabs-oss/bandroom/internal/directory"
	"github.com/bananalabs-oss/bandroom/internal/membership"
	"github.com/bananalabs-oss/bandroom/internal/router"
	"github.com/bananalabs-oss/bandroom/internal/store"
	"github.com/bananalabs-oss/potassium/config"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	logger, err := newLogger(config.EnvOrDefault("LOG_LEVEL", "info"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting Bandroom")

	jwtSecret := config.RequireEnv("JWT_SECRET")
	serviceToken := config.RequireEnv("SERVICE_TOKEN")
	databaseURL := config.EnvOrDefault("DATABASE_URL", "sqlite://bandroom.db")
	host := config.EnvOrDefault("HOST", "0.0.0.0")
	port := config.EnvOrDefault("PORT", "8004")
	accountsURL := config.EnvOrDefault("ACCOUNTS_URL", "")
	corsOrigins := splitList(config.EnvOrDefault("CORS_ORIGINS", ""))

	reconcileInterval, err := time.ParseDuration(config.EnvOrDefault("RECONCILE_INTERVAL", "15m"))
	if err != nil {
		logger.Fatal("invalid RECONCILE_INTERVAL", zap.Error(err))
	}

	logger.Info("Bandroom configuration",
		zap.String("host", host),
		zap.String("port", port),
		zap.String("accounts_url", accountsURL),
		zap.Strings("cors_origins", corsOrigins),
		zap.Duration("reconcile_interval", reconcileInterval),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(databaseURL, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := database.Migrate(ctx, db, logger); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	var users directory.Resolver = directory.StaticResolver{}
	if accountsURL != "" {
		users = directory.NewHTTPResolver(accountsURL, serviceToken)
	} else {
		logger.Warn("ACCOUNTS_URL not set; display names will be empty")
	}

	svc := membership.NewService(store.New(db), users, logger.Named("membership"))

	if _, err := svc.Reconcile(ctx); err != nil {
		logger.Error("startup reconciliation failed", zap.Error(err))
	}
	if reconcileInterval > 0 {
		go svc.RunReconciler(ctx, reconcileInterval)
	}

	gin.SetMode(gin.ReleaseMode)
	r := router.Setup(svc, router.Config{
		JWTSecret:    jwtSecret,
		ServiceToken: serviceToken,
		CORSOrigins:  corsOrigins,
	}, logger.Named("http"))

	addr := fmt.Sprintf("%s:%s", host, port)
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		logger.Info("Bandroom listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down Bandroom")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("Bandroom stopped")
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
