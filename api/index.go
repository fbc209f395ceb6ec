package handler

import (
	"context"
	"net/http"

	"github.com/wadjakorntonsri/go-tracking-links/pkg/app"
	"github.com/wadjakorntonsri/go-tracking-links/pkg/config"
)

var mux http.Handler

func init() {
	cfg := config.Load()
	logger := app.NewLogger(cfg)

	// On Vercel the local file is ephemeral; DATABASE_URL should point at Turso.
	a, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		logger.WithError(err).Panic("Failed to initialize application")
	}
	mux = a.Handler
}

// Handler is the entrypoint for Vercel
func Handler(w http.ResponseWriter, r *http.Request) {
	mux.ServeHTTP(w, r)
}
