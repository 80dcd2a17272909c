// Package main запускает HTTP-сервер системы бронирования Ocean View Resort.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/oceanview/resort/internal/backend"
	"github.com/oceanview/resort/internal/config"
	"github.com/oceanview/resort/internal/filestore"
	"github.com/oceanview/resort/internal/handler"
	"github.com/oceanview/resort/internal/middleware"
	"github.com/oceanview/resort/internal/model"
	"github.com/oceanview/resort/internal/pricing"
	"github.com/oceanview/resort/internal/repository"
	"github.com/oceanview/resort/internal/service"
)

const (
	loginAttemptEvery = 12 * time.Second
	loginBurst        = 5
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		sugar.Fatalw("data directory error", "dir", cfg.DataDir, "error", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var drivers []backend.Driver
	if !cfg.FileOnly {
		if cfg.DatabaseURI != "" {
			drivers = append(drivers, backend.Postgres(cfg.DatabaseURI))
		}
		drivers = append(drivers, backend.SQLite(cfg.DataDir))
	}

	conn := backend.Open(ctx, drivers, logger)
	defer conn.Close()

	roomFile, err := filestore.NewCollection[model.Room](cfg.DataDir, "rooms")
	if err != nil {
		sugar.Fatalw("file storage error", "error", err.Error())
	}
	reservationFile, err := filestore.NewCollection[model.Reservation](cfg.DataDir, "reservations")
	if err != nil {
		sugar.Fatalw("file storage error", "error", err.Error())
	}
	userFile, err := filestore.NewCollection[model.User](cfg.DataDir, "users")
	if err != nil {
		sugar.Fatalw("file storage error", "error", err.Error())
	}

	rooms := repository.NewRoomCatalog(conn, roomFile, logger)
	ledger := repository.NewReservationLedger(conn, reservationFile, rooms, logger)
	users := repository.NewUserDirectory(conn, userFile, logger)

	svc := service.NewService(rooms, ledger, users, pricing.Default(), logger, service.WithStorage(conn))

	authMiddleware := middleware.NewAuthMiddleware(cfg.SessionSecret)
	limiter := middleware.NewLoginLimiter(loginAttemptEvery, loginBurst, logger)
	h := handler.NewHandler(svc, logger, authMiddleware, limiter)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	svc.StartReconciliation(ctx, cfg.ReconcileInterval)

	g.Go(func() error {
		sugar.Infow("starting resort server", "addr", cfg.RunAddress, "storage", svc.StorageBackend())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
