// Package httpapi exposes the REST and websocket surface of the server:
// account endpoints, conversation and message operations, profile search,
// and the realtime change feed.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fhuebner/plausch/internal/auth"
	"github.com/fhuebner/plausch/internal/bus"
	"github.com/fhuebner/plausch/internal/chat"
	"github.com/fhuebner/plausch/internal/config"
	"github.com/fhuebner/plausch/internal/store"
)

// Server bundles the handlers with their dependencies.
type Server struct {
	auth   *auth.Service
	chat   *chat.Service
	db     *store.DB
	bus    *bus.Bus
	cfg    *config.Config
	logger *zap.Logger
}

func NewServer(authSvc *auth.Service, chatSvc *chat.Service, db *store.DB, b *bus.Bus, cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{
		auth:   authSvc,
		chat:   chatSvc,
		db:     db,
		bus:    b,
		cfg:    cfg,
		logger: logger.Named("http"),
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(s.logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authRateLimit(10, time.Minute))
			r.Post("/auth/signup", s.handleSignUp)
			r.Post("/auth/signin", s.handleSignIn)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth(s.auth))
			r.Get("/session", s.handleSession)
			r.Get("/conversations", s.handleListConversations)
			r.Post("/conversations/direct", s.handleStartDirect)
			r.Delete("/conversations/{id}", s.handleDeleteConversation)
			r.Get("/conversations/{id}/messages", s.handleListMessages)
			r.Post("/conversations/{id}/messages", s.handleSendMessage)
			r.Get("/profiles/search", s.handleSearchProfiles)
		})

		// The websocket authenticates itself via ?token= because
		// browser websockets cannot set an Authorization header.
		r.Get("/ws", s.handleWS)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
