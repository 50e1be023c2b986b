package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/filekeep/filekeep-go/internal/config"
	"github.com/filekeep/filekeep-go/internal/crypto"
	"github.com/filekeep/filekeep-go/internal/handler"
	"github.com/filekeep/filekeep-go/internal/mail"
	"github.com/filekeep/filekeep-go/internal/repository"
	"github.com/filekeep/filekeep-go/internal/service"
	"github.com/filekeep/filekeep-go/internal/storage"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg)

	if err := run(cfg); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}

func setupLogger(cfg config.Config) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	var h slog.Handler
	if cfg.IsProduction() {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		opts.Level = slog.LevelDebug
		h = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(h))
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.NewDB(ctx, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.AutoMigrate {
		if err := repository.Migrate(ctx, db); err != nil {
			return err
		}
	}

	blobs, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return err
	}

	tokens, err := crypto.NewTokenService(cfg.JWTSecret, cfg.JWTAlgorithm, cfg.TokenTTL)
	if err != nil {
		return err
	}

	if cfg.Mail.Host == "" {
		slog.Warn("MAIL_HOST not set, emails will be logged instead of sent")
	}
	notifier := mail.NewNotifier(mail.NewSender(cfg.Mail))

	authService := service.NewAuthService(
		repository.NewUserRepository(db),
		crypto.NewHasher(crypto.DefaultHashParams()),
		tokens,
		notifier,
		service.AuthOptions{
			BaseURL:              cfg.BaseURL(),
			RequireVerifiedEmail: cfg.RequireVerifiedEmail,
		},
	)
	fileService := service.NewFileService(repository.NewFileRepository(db), blobs)

	router := handler.NewRouter(ctx, authService, fileService, cfg.MaxUploadBytes, handler.RateLimit{
		RPS:   cfg.AuthRateRPS,
		Burst: cfg.AuthRateBurst,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Port, "env", cfg.Env, "storage", cfg.Storage.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
