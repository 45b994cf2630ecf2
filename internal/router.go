package internal

import (
	"encoding/json"
	"estate-live/contract"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter exposes the hub over HTTP: the websocket endpoint, a health check,
// the prometheus scrape endpoint and the list of reachable users.
func NewRouter(log *slog.Logger, wsHandler http.Handler, metrics http.Handler, registry contract.IRegistry, origins []string) http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)

	if len(origins) > 0 {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	router.Get("/ws", wsHandler.ServeHTTP)
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", metrics)
	router.Get("/debug/online", func(w http.ResponseWriter, _ *http.Request) {
		users := registry.Users()
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]any{"users": users, "count": len(users)}); err != nil {
			log.Warn("Online users not written", "error", err)
		}
	})
	return router
}
