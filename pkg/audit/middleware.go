// Package audit records who called the admin endpoints and what came of it
package audit

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/tendant/simple-verification/pkg/client"
)

// Config holds the configuration for the audit middleware
type Config struct {
	// Source names the service in every event
	Source string
	// Sink receives each event. Defaults to LogSink.
	Sink Sink
	// ReadsToo audits GET requests as well as mutations
	ReadsToo bool
}

// Sink consumes audit events. It runs on the request goroutine after the
// response is written, so it must not block for long.
type Sink interface {
	Record(ctx context.Context, event AuditEvent)
}

// SinkFunc adapts a function to Sink
type SinkFunc func(ctx context.Context, event AuditEvent)

func (f SinkFunc) Record(ctx context.Context, event AuditEvent) { f(ctx, event) }

// LogSink writes events through slog
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Record(ctx context.Context, e AuditEvent) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "Admin request",
		slog.String("source", e.Source),
		slog.String("subject", e.Subject),
		slog.String("method", e.Method),
		slog.String("uri", e.URI),
		slog.Int("status", e.Status),
		slog.Duration("duration", e.Duration),
		slog.String("request_id", e.RequestID),
	)
}

// Middleware handles HTTP request auditing
type Middleware struct {
	config Config
}

// NewMiddleware creates a new audit middleware instance
func NewMiddleware(config Config) *Middleware {
	if config.Source == "" {
		config.Source = "simple-verification"
	}
	if config.Sink == nil {
		config.Sink = LogSink{}
	}
	return &Middleware{config: config}
}

// AuditEvent describes one audited request
type AuditEvent struct {
	Source    string
	Subject   string
	URI       string
	Method    string
	Status    int
	RequestID string
	Timestamp time.Time
	Duration  time.Duration
	Metadata  map[string]interface{}
}

// WithMetadata adds metadata to the audit event
func (e AuditEvent) WithMetadata(key string, value interface{}) AuditEvent {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// Handler audits requests after the inner handler responds. Mount it after
// client.AuthUserMiddleware so the caller is known.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && !m.config.ReadsToo {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		event := AuditEvent{
			Source:    m.config.Source,
			URI:       r.RequestURI,
			Method:    r.Method,
			Status:    ww.Status(),
			RequestID: middleware.GetReqID(r.Context()),
			Timestamp: start.UTC(),
			Duration:  time.Since(start),
		}
		if user, ok := client.GetAuthUser(r.Context()); ok {
			event.Subject = user.Subject
		} else {
			event = event.WithMetadata("message", "no authenticated user")
		}
		if event.Status == 0 {
			event.Status = http.StatusOK
		}
		m.config.Sink.Record(r.Context(), event)
	})
}
