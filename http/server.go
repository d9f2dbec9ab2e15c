package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

type Server struct {
	router   *mux.Router
	handlers *Handlers
	deps     Dependencies
}

func NewServer(deps Dependencies) *Server {
	server := &Server{
		router:   mux.NewRouter(),
		handlers: NewHandlers(deps),
		deps:     deps,
	}

	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	// Apply global middleware
	s.router.Use(LoggingMiddleware)
	s.router.Use(SecurityHeadersMiddleware)
	s.router.Use(CORSMiddleware)

	// CSRF note: SameSite=Lax on the session cookie prevents cross-site POST
	// requests from including the cookie, providing CSRF protection for all
	// state-changing endpoints without needing a token-based scheme.

	// Rate limiters for auth endpoints
	loginLimiter := NewRateLimiter(5.0/60.0, 5, nil)
	registerLimiter := NewRateLimiter(3.0/60.0, 3, nil)

	h := s.handlers

	// Public routes
	s.router.Handle("/api/auth/register", registerLimiter.Middleware(http.HandlerFunc(h.Register))).Methods("POST")
	s.router.Handle("/api/auth/login", loginLimiter.Middleware(http.HandlerFunc(h.Login))).Methods("POST")
	s.router.HandleFunc("/api/universes", h.ListUniverses).Methods("GET")
	s.router.HandleFunc("/api/universes/{universeId}/questions", h.UniverseQuestions).Methods("GET")
	s.router.HandleFunc("/api/leaderboard/{universeId}", h.Leaderboard).Methods("GET")
	s.router.HandleFunc("/api/leagues", h.ListLeagues).Methods("GET")
	s.router.HandleFunc("/api/tournaments", h.ListTournaments).Methods("GET")

	// Protected routes
	protected := s.router.PathPrefix("/api").Subrouter()
	protected.Use(AuthMiddleware(s.deps.Auth))

	protected.HandleFunc("/auth/logout", h.Logout).Methods("POST")
	protected.HandleFunc("/me", h.Me).Methods("GET")
	protected.HandleFunc("/me", h.UpdateMe).Methods("PUT")
	protected.HandleFunc("/me/stats", h.MyStats).Methods("GET")

	protected.HandleFunc("/sessions", h.StartSession).Methods("POST")
	protected.HandleFunc("/sessions/{sessionId}", h.GetSession).Methods("GET")
	protected.HandleFunc("/sessions/{sessionId}", h.AbandonSession).Methods("DELETE")
	protected.HandleFunc("/sessions/{sessionId}/answer", h.SubmitAnswer).Methods("POST")
	protected.HandleFunc("/sessions/{sessionId}/advance", h.AdvanceSession).Methods("POST")

	protected.HandleFunc("/duels", h.CreateDuel).Methods("POST")
	protected.HandleFunc("/duels", h.ListDuels).Methods("GET")
	protected.HandleFunc("/duels/{roomId}/join", h.JoinDuel).Methods("POST")
	protected.HandleFunc("/duels/{roomId}/start", h.StartDuel).Methods("POST")
	protected.HandleFunc("/duels/{roomId}/rounds/{index}", h.DuelRound).Methods("GET")

	protected.HandleFunc("/leagues/{leagueId}/join", h.JoinLeague).Methods("POST")
	protected.HandleFunc("/tournaments", h.CreateTournament).Methods("POST")
	protected.HandleFunc("/tournaments/{tournamentId}/join", h.JoinTournament).Methods("POST")

	// WebSocket routes (protected)
	wsRouter := s.router.PathPrefix("/ws").Subrouter()
	wsRouter.Use(AuthMiddleware(s.deps.Auth))
	wsRouter.HandleFunc("/duel/{roomId}", h.HandleDuelSocket)
	wsRouter.HandleFunc("/lobby", h.HandleLobbySocket)

	// Catch-all for unmatched routes
	s.router.PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	})
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) GetHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
