package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/filekeep/filekeep-go/internal/middleware"
	"github.com/filekeep/filekeep-go/internal/service"
)

// RateLimit configures the per-IP limiter on the /auth routes.
type RateLimit struct {
	RPS   float64
	Burst int
}

// NewRouter mounts every route. ctx bounds background work such as the
// rate limiter's cleanup.
func NewRouter(ctx context.Context, authSvc *service.AuthService, fileSvc *service.FileService, maxUpload int64, limit RateLimit) http.Handler {
	authHandler := NewAuthHandler(authSvc)
	fileHandler := NewFileHandler(fileSvc, maxUpload)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Metrics)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(ctx, limit.RPS, limit.Burst))
			r.Post("/register", authHandler.HandleRegister)
			r.Post("/login", authHandler.HandleLogin)
			r.Post("/token", authHandler.HandleToken)
			r.Get("/verify", authHandler.HandleVerify)
			r.Post("/reset_password", authHandler.HandleResetPassword)
			r.Post("/confirm_password_reset", authHandler.HandleConfirmPasswordReset)
		})

		r.With(middleware.Authenticate(authSvc)).Get("/me", authHandler.HandleMe)
	})

	r.Route("/files", func(r chi.Router) {
		r.Use(middleware.Authenticate(authSvc))
		r.Post("/upload", fileHandler.HandleUpload)
		r.Get("/list", fileHandler.HandleList)
		r.Get("/download/{filename}", fileHandler.HandleDownload)
		r.Delete("/delete/{filename}", fileHandler.HandleDelete)
	})

	return r
}
