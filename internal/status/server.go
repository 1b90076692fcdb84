// Package status exposes liveness, the tracked universe, recent alerts and
// Prometheus metrics over HTTP.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"oiwatch/internal/journal"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Sources are the read-only views the server reports on. Nil fields disable
// the matching endpoint or field.
type Sources struct {
	Symbols   func() []string
	Connected func() bool
	LastCycle func() time.Time
	Alerts    func() []journal.Entry
	// Snapshot decodes the cached snapshot for symbol into out.
	Snapshot func(ctx context.Context, symbol string, out any) (bool, error)
	Gatherer prometheus.Gatherer
}

// Response is the body of GET /status.
type Response struct {
	Status    string     `json:"status"`
	WebSocket string     `json:"websocket"`
	Symbols   int        `json:"symbols"`
	LastCycle *time.Time `json:"last_cycle,omitempty"`
}

type Server struct {
	src    Sources
	logger *zap.Logger
	srv    *http.Server
}

func NewServer(addr string, src Sources, logger *zap.Logger) *Server {
	s := &Server{src: src, logger: logger.Named("status")}
	s.srv = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/", s.handleStatus)
	r.Get("/status", s.handleStatus)
	r.Get("/symbols", s.handleSymbols)
	if s.src.Alerts != nil {
		r.Get("/alerts", s.handleAlerts)
	}
	if s.src.Snapshot != nil {
		r.Get("/snapshot/{symbol}", s.handleSnapshot)
	}
	if s.src.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.src.Gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("status server listening", zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)))
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := Response{Status: "Bot is running", WebSocket: "disconnected"}
	if s.src.Connected != nil && s.src.Connected() {
		resp.WebSocket = "connected"
	}
	if s.src.Symbols != nil {
		resp.Symbols = len(s.src.Symbols())
	}
	if s.src.LastCycle != nil {
		if t := s.src.LastCycle(); !t.IsZero() {
			resp.LastCycle = &t
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSymbols(w http.ResponseWriter, r *http.Request) {
	symbols := []string{}
	if s.src.Symbols != nil {
		symbols = s.src.Symbols()
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(symbols), "symbols": symbols})
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.src.Alerts())
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	var out json.RawMessage
	found, err := s.src.Snapshot(r.Context(), symbol, &out)
	if err != nil {
		s.logger.Warn("snapshot lookup failed", zap.String("symbol", symbol), zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "snapshot cache unavailable"})
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no snapshot for " + symbol})
		return
	}
	writeJSON(w, http.StatusOK, out)
}
