package handler

import (
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"
)

// NewRouter registers the HTTP routes and wraps them with middleware.
// A nil limiter disables rate limiting.
func NewRouter(h *HTTPHandler, logger *slog.Logger, limiter *rate.Limiter) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.HealthCheck)
	mux.HandleFunc("GET /inventory/{productId}", h.GetStock)
	mux.HandleFunc("POST /inventory/increase", h.Increase)
	mux.HandleFunc("POST /inventory/decrease", h.Decrease)
	mux.HandleFunc("POST /inventory/set", h.SetStock)
	if h.journal != nil {
		mux.HandleFunc("GET /inventory/{productId}/movements", h.ListMovements)
	}

	var handler http.Handler = mux
	if limiter != nil {
		handler = WithRateLimit(limiter)(handler)
	}
	handler = WithLogging(logger)(handler)
	handler = WithRequestID(handler)
	return WithRecovery(logger)(handler)
}
