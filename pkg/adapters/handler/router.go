package handler

import (
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/sirupsen/logrus"
	"github.com/wadjakorntonsri/go-tracking-links/pkg/config"
	"github.com/wadjakorntonsri/go-tracking-links/pkg/ports"
)

// Services groups what the router dispatches to.
type Services struct {
	Links    ports.LinkService
	Tracking ports.TrackingService
	Stats    ports.StatsService
	Actors   ports.ActorRepository
}

// NewRouter creates and configures the main application router
func NewRouter(cfg *config.Config, svc Services, logger logrus.FieldLogger) http.Handler {
	h := NewHTTPHandler(svc.Links, svc.Stats, cfg.BaseURL, logger)
	th := NewTrackingHandler(svc.Tracking, cfg.FallbackURL, cfg.HookSecret, cfg.IsProduction(), logger)
	authHandler := NewAuthHandler(cfg, svc.Tracking, svc.Actors, logger)
	mw := NewMiddleware(cfg)

	mux := http.NewServeMux()

	// Public Routes
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
	})
	mux.HandleFunc("GET /t/{code}", th.Redirect)
	mux.HandleFunc("GET /auth/google/login", authHandler.Login)
	mux.HandleFunc("GET /auth/google/callback", authHandler.Callback)
	mux.HandleFunc("GET /auth/logout", authHandler.Logout)
	if cfg.HookSecret != "" {
		mux.HandleFunc("POST /api/v1/hooks/login", th.LoginHook)
	}

	// Admin Routes
	protectedMux := http.NewServeMux()
	protectedMux.HandleFunc("POST /api/v1/links", h.Create)
	protectedMux.HandleFunc("GET /api/v1/links", h.List)
	protectedMux.HandleFunc("GET /api/v1/links/{code}", h.Get)
	protectedMux.HandleFunc("PUT /api/v1/links/{id}", h.Update)
	protectedMux.HandleFunc("PATCH /api/v1/links/{id}", h.Update)
	protectedMux.HandleFunc("DELETE /api/v1/links/{id}", h.Delete)
	protectedMux.HandleFunc("GET /api/v1/links/{id}/stats", h.Stats)
	protectedMux.HandleFunc("GET /api/v1/links/{id}/events", h.Events)
	protectedMux.HandleFunc("GET /api/v1/dashboard", h.Dashboard)

	// protectedMux holds the full paths, so the prefix mount dispatches as is.
	mux.Handle("/api/v1/", mw.AuthMiddleware(protectedMux))

	var handler http.Handler = mux
	handler = handlers.CORS(
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", hookSecretHeader}),
	)(handler)
	handler = RequestLogger(logger)(handler)
	handler = handlers.RecoveryHandler(
		handlers.RecoveryLogger(logger),
		handlers.PrintRecoveryStack(true),
	)(handler)
	handler = handlers.ProxyHeaders(handler)
	return handler
}
