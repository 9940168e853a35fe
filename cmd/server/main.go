package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/exp/slog"

	"praxsync/internal/app/server/api"
	"praxsync/internal/app/server/config"
	syncdomain "praxsync/internal/domain/sync"
	"praxsync/internal/infrastructure/blob/s3"
	"praxsync/internal/infrastructure/storage/memory"
	"praxsync/internal/infrastructure/storage/postgres"
	"praxsync/internal/utils/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.MustLoad()
	log := logger.New(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	var repo syncdomain.Repository
	if cfg.DB.DatabaseURI == "" {
		log.Warn("DATABASE_URI is not set, using in-memory storage")
		repo = memory.NewSyncRepository()
	} else {
		storage, err := postgres.New(ctx, cfg)
		if err != nil {
			return err
		}
		defer storage.Close()
		repo = postgres.NewSyncRepository(storage, log)
	}

	var signer syncdomain.AttachmentSigner
	if cfg.S3.Enabled() {
		s, err := s3.New(ctx, s3.Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			PathStyle: cfg.S3.PathStyle,
		})
		if err != nil {
			return err
		}
		signer = s
	} else {
		log.Info("S3_BUCKET is not set, attachments are disabled")
	}

	srv := &http.Server{
		Addr:              cfg.Server.RunAddress,
		Handler:           api.New(repo, signer, cfg, log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server started", slog.String("address", cfg.Server.RunAddress), slog.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
