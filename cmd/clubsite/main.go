package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/example/clubsite/internal/application"
	"github.com/example/clubsite/internal/auth"
	"github.com/example/clubsite/internal/config"
	httptransport "github.com/example/clubsite/internal/http"
	"github.com/example/clubsite/internal/metrics"
	"github.com/example/clubsite/internal/persistence/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storage, err := sqlite.Open(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := storage.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := storage.Migrate(context.Background()); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	idGenerator := uuid.NewString
	now := time.Now

	userRepo := sqlite.NewUserRepository(storage)
	teamRepo := sqlite.NewTeamRepository(storage)
	siteRepo := sqlite.NewSiteRepository(storage)

	tokenIssuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)
	telemetry := metrics.New()

	userService := application.NewUserService(userRepo, idGenerator, now, logger)
	teamService := application.NewTeamService(teamRepo, idGenerator, now, logger)
	siteService := application.NewSiteService(siteRepo, application.SiteDefaults{
		Capacity:           cfg.DefaultCapacity,
		MinDurationMinutes: cfg.DefaultMinDurationMinutes,
		MaxDurationMinutes: cfg.DefaultMaxDurationMinutes,
	}, idGenerator, now, logger)
	bookingService := application.NewBookingService(siteRepo, teamRepo, telemetry, application.QuotaPolicy{
		MaxAppointments: cfg.MaxTeamAppointments,
		Scope:           cfg.QuotaScope,
	}, logger, now)
	authService := application.NewAuthService(userRepo, tokenIssuer, logger)

	handler := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:            httptransport.NewAuthHandler(authService, logger),
		Sites:           httptransport.NewSiteHandler(siteService, bookingService, logger),
		Teams:           httptransport.NewTeamHandler(teamService, bookingService, logger),
		Users:           httptransport.NewUserHandler(userService, logger),
		TokenParser:     tokenIssuer,
		Logger:          logger,
		Metrics:         telemetry,
		MetricsRegistry: telemetry.Registry(),
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("club site API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

func logLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
