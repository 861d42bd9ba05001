// Package web exposes the lecture lifecycle over HTTP: start and stop
// lectures, inspect presence and emotions, trigger retrains.
package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/fuskar/attendance/internal/notify"
	"github.com/fuskar/attendance/internal/store"
)

// Retrainer schedules a classifier rebuild.
type Retrainer interface {
	Trigger(ctx context.Context)
}

// Server represents the web server.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	store      store.LectureStore
	retrainer  Retrainer
	notifier   notify.Notifier
	log        *logrus.Entry
}

// NewServer creates a new web server.
func NewServer(host string, port int, lectures store.LectureStore, retrainer Retrainer, notifier notify.Notifier, log *logrus.Entry) *Server {
	r := chi.NewRouter()

	s := &Server{
		router:    r,
		store:     lectures,
		retrainer: retrainer,
		notifier:  notifier,
		log:       log,
	}

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(30 * time.Second))

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.WithField("addr", s.httpServer.Addr).Info("starting web server")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down web server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.Get("/api/v1/health", s.healthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/lectures", s.createLecture)
		r.Get("/lectures", s.listActiveLectures)
		r.Get("/lectures/{id}", s.getLecture)
		r.Post("/lectures/{id}/stop", s.stopLecture)
		r.Get("/lectures/{id}/presence", s.getPresence)
		r.Get("/lectures/{id}/emotions", s.getEmotions)
		r.Post("/retrain", s.startRetrain)
	})
}
