package main

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/daniacca/affectdb/internal/affect"
	"github.com/daniacca/affectdb/internal/affect/notifiers"
	"github.com/daniacca/affectdb/internal/affect/storage/sqlite"
)

// streamNotifierID is the ID of the built-in websocket notifier behind /ws.
const streamNotifierID = "stream"

// affectLoggerAdapter adapts the server's Logger to the affect.Logger interface.
type affectLoggerAdapter struct {
	logger *Logger
}

func (a *affectLoggerAdapter) Debugf(format string, v ...any) { a.logger.Debugf(format, v...) }
func (a *affectLoggerAdapter) Infof(format string, v ...any)  { a.logger.Infof(format, v...) }
func (a *affectLoggerAdapter) Warnf(format string, v ...any)  { a.logger.Warnf(format, v...) }
func (a *affectLoggerAdapter) Errorf(format string, v ...any) { a.logger.Errorf(format, v...) }

// Server is the HTTP front end of the affect engine.
type Server struct {
	manager      *affect.TargetManager
	notifierMgr  *affect.NotificationManager
	stream       *notifiers.WebSocketNotifier
	store        *sqlite.Store
	tickInterval float64
	tracer       trace.Tracer
	logger       *Logger
}

// NewServer creates a server whose targets share one engine.
func NewServer(logger *Logger, strict bool) *Server {
	affectLogger := &affectLoggerAdapter{logger: logger}
	engine := affect.NewEngine(affect.WithLogger(affectLogger), affect.WithStrict(strict))

	s := &Server{
		manager:      affect.NewTargetManagerWithLogger(engine, affectLogger),
		notifierMgr:  affect.NewNotificationManagerWithLogger(affectLogger),
		stream:       notifiers.NewWebSocketNotifier(streamNotifierID),
		tickInterval: affect.DefaultTickInterval,
		tracer:       otel.Tracer("github.com/daniacca/affectdb/cmd/affectdb-server"),
		logger:       logger,
	}
	if err := s.notifierMgr.RegisterNotifier(s.stream); err != nil {
		logger.Errorf("Failed to register stream notifier: error=%v", err)
	}
	s.refreshNotifierRoutes()
	return s
}

// SetStore enables snapshot persistence.
func (s *Server) SetStore(store *sqlite.Store) {
	s.store = store
}

// SetTickInterval sets the decay step of targets created afterwards.
func (s *Server) SetTickInterval(interval float64) {
	if interval > 0 {
		s.tickInterval = interval
	}
}

// refreshNotifierRoutes points every target at the currently registered
// notifiers.
func (s *Server) refreshNotifierRoutes() {
	s.manager.SetNotificationManager(s.notifierMgr, s.notifierMgr.ListNotifiers()...)
}

// Routes returns the server's HTTP handler.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("GET /targets", s.handleListTargets)
	mux.HandleFunc("POST /targets", s.handleCreateTarget)
	mux.HandleFunc("GET /targets/{id}", s.handleGetTarget)
	mux.HandleFunc("DELETE /targets/{id}", s.handleDeleteTarget)
	mux.HandleFunc("POST /targets/{id}/affects", s.handleApplyAffect)
	mux.HandleFunc("POST /targets/{id}/advance", s.handleAdvance)
	mux.HandleFunc("POST /targets/{id}/start", s.handleStart)
	mux.HandleFunc("POST /targets/{id}/stop", s.handleStop)
	mux.HandleFunc("POST /targets/{id}/snapshot", s.handleSaveSnapshot)
	mux.HandleFunc("DELETE /targets/{id}/snapshot", s.handleDeleteSnapshot)
	mux.HandleFunc("POST /targets/{id}/restore", s.handleRestoreSnapshot)
	mux.HandleFunc("GET /snapshots", s.handleListSnapshots)
	mux.HandleFunc("POST /batch", s.handleBatch)

	mux.HandleFunc("GET /notifiers", s.handleListNotifiers)
	mux.HandleFunc("POST /notifiers", s.handleRegisterNotifier)
	mux.HandleFunc("DELETE /notifiers/{id}", s.handleUnregisterNotifier)

	mux.Handle("GET /ws", s.stream)
	return mux
}

// Close stops every target and flushes pending notifications.
func (s *Server) Close() error {
	for _, id := range s.manager.ListTargets() {
		_ = s.manager.DeleteTarget(id)
	}
	return s.notifierMgr.Close()
}
