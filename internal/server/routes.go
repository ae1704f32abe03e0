package server

import (
	"log/slog"
	"net/http"
)

// Config configures the router.
type Config struct {
	// AllowedOrigins lists the CORS origins; "*" allows any.
	AllowedOrigins []string
}

// DefaultConfig allows any origin.
func DefaultConfig() Config {
	return Config{AllowedOrigins: []string{"*"}}
}

// NewRouter registers the cut API on a method-routing ServeMux, wrapped in
// recovery, request id, logging and CORS middleware, outermost first.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.Health)

	mux.HandleFunc("GET /cuts", h.ListCuts)
	mux.HandleFunc("POST /cuts", h.CreateCut)
	mux.HandleFunc("GET /cuts/{id}", h.GetCut)
	mux.HandleFunc("DELETE /cuts/{id}", h.CancelCut)
	mux.HandleFunc("GET /cuts/{id}/timeline", h.GetCutTimeline)

	return ChainMiddleware(
		RecoveryMiddleware(logger),
		RequestIDMiddleware(),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
	)(mux)
}
