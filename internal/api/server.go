// Package api is the JSON HTTP surface: chat (sync and SSE), session CRUD,
// knowledge base document management and health probes.
package api

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/studybuddy/biochem/internal/chat"
	"github.com/studybuddy/biochem/internal/log"
	"github.com/studybuddy/biochem/internal/session"
)

// ServerConfig carries the server's dependencies.
type ServerConfig struct {
	Logger       log.Logger
	ChatFlow     *chat.Flow     // optional, nil disables chat routes
	SessionStore *session.Store // required
	Indexer      Indexer        // optional, nil disables document upload
	SourceStore  SourceStore    // optional, nil disables document routes
	Pool         *pgxpool.Pool  // optional, nil disables pool stats in /ready
	CORSOrigins  []string
	TrustProxy   bool // honor X-Real-IP/X-Forwarded-For
	RateBurst    int  // per-IP burst, 0 uses the default of 60
}

// Server is the API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer wires routes and the middleware stack.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.SessionStore == nil {
		return nil, errors.New("session store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	mux := http.NewServeMux()

	sh := &sessionHandler{store: cfg.SessionStore, logger: logger}
	sh.registerRoutes(mux)

	ch := &chatHandler{flow: cfg.ChatFlow, logger: logger}
	ch.registerRoutes(mux)

	if cfg.Indexer != nil && cfg.SourceStore != nil {
		dh := &documentsHandler{indexer: cfg.Indexer, store: cfg.SourceStore, logger: logger}
		dh.registerRoutes(mux)
	}

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Middleware stack, outermost first:
	//   Recovery -> RequestID -> Logging -> CORS -> RateLimit -> Routes
	// RequestID precedes Logging so request_id shows up in log attributes.
	// CORS precedes RateLimit so preflight OPTIONS gets CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w)
		handler.ServeHTTP(w, r)
	})

	// Health probes bypass the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health(logger))
	topMux.Handle("GET /ready", readiness(cfg.Pool, logger))
	topMux.Handle("/", final)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
