package gateway

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(g.requestLogger)

	if len(g.config.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   g.config.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Public endpoints.
	r.Get("/health", g.handleHealth)
	r.Handle("/metrics", g.metrics.Handler())
	r.Post("/auth/login", g.handleLogin)
	r.Post("/auth/signup", g.handleSignup)

	// Everything under /api requires a verified bearer token.
	r.Route("/api", func(r chi.Router) {
		r.Use(g.requireAuth)
		r.Post("/chat", g.handleChat)
		r.Get("/chat/ws", g.handleChatWS)
		r.Get("/conversations", g.handleListConversations)
		r.Get("/conversations/{id}/messages", g.handleListMessages)
	})

	return r
}

// requestLogger logs each request with method, path, status and duration.
func (g *Gateway) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		g.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
		g.metrics.RecordRequest(r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}
