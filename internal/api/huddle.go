package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/teris-io/shortid"
	"github.com/tnapier/go-huddle/internal/config"
	"github.com/tnapier/go-huddle/internal/database"
	"github.com/tnapier/go-huddle/internal/server"
)

type HuddleApp struct {
	log               *log.Logger
	db                database.HuddleRepository
	mux               *http.Server
	ss                *server.SignalServer
	signingKey        []byte
	allowedOrigins    []string
	generateSessionId func() (string, error)
}

func NewHuddleApp(mux *http.ServeMux, logger *log.Logger, ss *server.SignalServer, db database.HuddleRepository, cfg *config.Config) *HuddleApp {
	s := &HuddleApp{
		log:               logger,
		db:                db,
		ss:                ss,
		signingKey:        cfg.SigningKey,
		allowedOrigins:    cfg.AllowedOrigins,
		generateSessionId: shortid.Generate,
	}

	mux.HandleFunc("POST /api/auth/register", s.createAccount)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("GET /api/auth/session", s.authMiddleware(s.session))
	mux.Handle("GET /api/auth/logout", s.authMiddleware(s.logout))
	mux.Handle("POST /api/rooms", s.authMiddleware(s.createRoom))
	mux.Handle("GET /api/rooms/{id}", s.authMiddleware(s.getRoom))
	mux.Handle("POST /api/rooms/{id}/invites", s.authMiddleware(s.createInvites))
	mux.Handle("GET /api/rooms/{id}/polls", s.authMiddleware(s.listPolls))
	mux.Handle("GET /ws", s.authMiddleware(s.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *HuddleApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *HuddleApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
