package observability

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Health is the /health payload.
type Health struct {
	Status  string    `json:"status"`
	LastRun time.Time `json:"last_run,omitempty"`
	Runs    int64     `json:"runs"`
}

// Server exposes /metrics and /health while watch mode runs.
type Server struct {
	addr     string
	server   *http.Server
	listener net.Listener
	runs     atomic.Int64
	lastRun  atomic.Int64
}

func NewServer(addr string) *Server {
	return &Server{addr: addr}
}

// RecordRun marks a completed analysis for /health.
func (s *Server) RecordRun(at time.Time) {
	s.runs.Add(1)
	s.lastRun.Store(at.UnixNano())
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		h := Health{Status: "up", Runs: s.runs.Load()}
		if ts := s.lastRun.Load(); ts != 0 {
			h.LastRun = time.Unix(0, ts).UTC()
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(h)
	})
	return mux
}

// Start binds addr and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.server = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}

	slog.Info("observability server starting", "addr", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("observability server failed", "error", err)
		}
	}()
	return nil
}

// Addr is the bound address once Start succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
