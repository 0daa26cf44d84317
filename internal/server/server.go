// Package server exposes analysis sessions over HTTP: Server-Sent Events and
// WebSocket streams, plus health, status and metrics endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"solana-holder-scan/internal/domain"
	"solana-holder-scan/internal/observability"
	"solana-holder-scan/internal/solana"
	"solana-holder-scan/internal/stream"
)

// DefaultPingInterval is the SSE keep-alive comment interval.
const DefaultPingInterval = 15 * time.Second

// maxRequestBody caps the analyze request body.
const maxRequestBody = 1 << 16

// Runner runs one analysis session.
type Runner interface {
	Run(ctx context.Context, req domain.AnalysisRequest, sink stream.Sink) error
}

// HealthReporter reports the health of every RPC endpoint.
type HealthReporter interface {
	Snapshot() map[string]solana.HealthRecord
}

// Options for creating Server.
type Options struct {
	Runner         Runner
	Health         HealthReporter
	Pools          map[string]int // pool name -> endpoint count, for /status
	PingInterval   time.Duration
	WSWriteTimeout time.Duration
	Logger         zerolog.Logger
}

// Server is the HTTP front of the analysis service.
type Server struct {
	runner         Runner
	health         HealthReporter
	pools          map[string]int
	pingInterval   time.Duration
	wsWriteTimeout time.Duration
	// logger has no component field; it is handed down through ctx.
	logger         zerolog.Logger
	upgrader       websocket.Upgrader

	started  time.Time
	sessions atomic.Int64
}

// New creates a Server.
func New(opts Options) *Server {
	if opts.PingInterval <= 0 {
		opts.PingInterval = DefaultPingInterval
	}
	return &Server{
		runner:         opts.Runner,
		health:         opts.Health,
		pools:          opts.Pools,
		pingInterval:   opts.PingInterval,
		wsWriteTimeout: opts.WSWriteTimeout,
		logger:         opts.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		started: time.Now(),
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Post("/analyze", s.handleAnalyzePost)
	r.Get("/analyze", s.handleAnalyzeGet)
	r.Get("/ws/analyze", s.handleAnalyzeWS)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/status", s.handleStatus)
	r.Handle("/metrics", observability.Handler())
	return r
}

// requestLogger attaches a request id and a request-scoped logger to the
// request context.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		reqLogger := s.logger.With().Str("request_id", id).Logger()
		start := time.Now()
		next.ServeHTTP(w, r.WithContext(reqLogger.WithContext(r.Context())))
		reqLogger.Debug().
			Str("component", "server").
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("request served")
	})
}

func (s *Server) handleAnalyzePost(w http.ResponseWriter, r *http.Request) {
	var req domain.AnalysisRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	s.serveSSE(w, r, req)
}

func (s *Server) handleAnalyzeGet(w http.ResponseWriter, r *http.Request) {
	req, err := requestFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.serveSSE(w, r, req)
}

// serveSSE validates req and streams the session until it ends or the
// client disconnects.
func (s *Server) serveSSE(w http.ResponseWriter, r *http.Request, req domain.AnalysisRequest) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sink, err := stream.NewSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	pingDone := make(chan struct{})
	go func() {
		defer close(pingDone)
		s.keepAlive(ctx, sink)
	}()

	s.run(ctx, req, sink)
	cancel()
	<-pingDone
}

func (s *Server) keepAlive(ctx context.Context, sink *stream.SSEWriter) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sink.Ping(); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleAnalyzeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client
		log.Ctx(r.Context()).Warn().Str("component", "server").Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	conn.SetReadLimit(maxRequestBody)
	var req domain.AnalysisRequest
	if err := conn.ReadJSON(&req); err != nil {
		log.Ctx(r.Context()).Debug().Str("component", "server").Err(err).Msg("read websocket request")
		return
	}

	sink := stream.NewWSWriter(conn, s.wsWriteTimeout)
	defer sink.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Any read error means the client closed the socket.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	req.Normalize()
	if err := req.Validate(); err != nil {
		sink.Send(ctx, stream.ErrorEvent{Error: err.Error()})
		return
	}
	s.run(ctx, req, sink)
}

func (s *Server) run(ctx context.Context, req domain.AnalysisRequest, sink stream.Sink) {
	s.sessions.Add(1)
	defer s.sessions.Add(-1)

	logger := log.Ctx(ctx).With().Str("component", "server").Str("mint", req.Mint).Logger()

	logger.Info().Msg("analysis session started")
	if err := s.runner.Run(ctx, req, sink); err != nil {
		logger.Warn().Err(err).Msg("analysis session failed")
		return
	}
	logger.Info().Msg("analysis session ended")
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status         string                         `json:"status"`
	Uptime         string                         `json:"uptime"`
	Started        time.Time                      `json:"started"`
	ActiveSessions int64                          `json:"active_sessions"`
	Pools          map[string]int                 `json:"pools,omitempty"`
	Endpoints      map[string]solana.HealthRecord `json:"endpoints"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Status:         "running",
		Uptime:         time.Since(s.started).Round(time.Second).String(),
		Started:        s.started,
		ActiveSessions: s.sessions.Load(),
		Pools:          s.pools,
		Endpoints:      map[string]solana.HealthRecord{},
	}
	if s.health != nil {
		resp.Endpoints = s.health.Snapshot()
	}
	writeJSON(w, http.StatusOK, resp)
}

// requestFromQuery builds a request from GET query parameters.
func requestFromQuery(r *http.Request) (domain.AnalysisRequest, error) {
	q := r.URL.Query()
	req := domain.AnalysisRequest{
		Mint:        q.Get("mint"),
		PriceSource: q.Get("priceSource"),
	}
	if v := q.Get("minAccounts"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, errors.New("minAccounts must be an integer")
		}
		req.MinAccounts = &n
	}
	if v := q.Get("maxSolBalance"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return req, errors.New("maxSolBalance must be a number")
		}
		req.MaxSolBalance = &f
	}
	if v := q.Get("requireActivity"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return req, errors.New("requireActivity must be a boolean")
		}
		req.RequireActivity = &b
	}
	return req, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, stream.ErrorEvent{Error: msg})
}
