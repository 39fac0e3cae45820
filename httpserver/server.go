package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/flashbots/go-utils/httplogger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/ruteri/telemetry-envelope/common"
	"github.com/ruteri/telemetry-envelope/metrics"
	"go.uber.org/atomic"
)

// StatusFunc returns the document served on /status, or false when there
// is nothing to report yet.
type StatusFunc func() (any, bool)

type HTTPServerConfig struct {
	ListenAddr  string
	MetricsAddr string
	EnablePprof bool
	Log         *slog.Logger

	// Status feeds /status. Nil serves an empty document.
	Status StatusFunc
	// Collectors are exported on MetricsAddr next to the runtime metrics.
	Collectors []prometheus.Collector
	// Idle reports whether no work is in flight. A drain completes once
	// Idle holds or DrainDuration passes. Nil means always idle.
	Idle func() bool

	DrainDuration            time.Duration
	GracefulShutdownDuration time.Duration
	ReadTimeout              time.Duration
	WriteTimeout             time.Duration
}

// Server is the operational HTTP surface of the agent and the collector.
// Draining marks the process as not ready; the agent skips cycles while
// drained.
type Server struct {
	cfg     *HTTPServerConfig
	isReady atomic.Bool
	drained atomic.Bool
	log     *slog.Logger

	// drainMu guards drain transitions. drainGen invalidates the wait of an
	// earlier drain.
	drainMu  sync.Mutex
	drainGen uint64

	srv        *http.Server
	metricsSrv *metrics.MetricsServer
}

// New creates the status server, the metrics server, or both. At least one
// of ListenAddr and MetricsAddr must be set.
func New(cfg *HTTPServerConfig) (srv *Server, err error) {
	if cfg.ListenAddr == "" && cfg.MetricsAddr == "" {
		return nil, errors.New("neither status nor metrics listen address is set")
	}

	metricsSrv, err := metrics.New(common.PackageName, cfg.MetricsAddr, cfg.Collectors...)
	if err != nil {
		return nil, err
	}

	srv = &Server{
		cfg:        cfg,
		log:        cfg.Log,
		metricsSrv: metricsSrv,
	}
	srv.isReady.Store(true)

	srv.srv = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      srv.getRouter(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return srv, nil
}

func (srv *Server) getRouter() http.Handler {
	mux := chi.NewRouter()

	mux.With(srv.httpLogger).Get("/status", srv.handleStatus)

	mux.With(srv.httpLogger).Get("/livez", srv.handleLivenessCheck)
	mux.With(srv.httpLogger).Get("/readyz", srv.handleReadinessCheck)
	mux.With(srv.httpLogger).Get("/drain", srv.handleDrain)
	mux.With(srv.httpLogger).Get("/undrain", srv.handleUndrain)

	if srv.cfg.EnablePprof {
		srv.log.Info("pprof API enabled")
		mux.Mount("/debug", middleware.Profiler())
	}
	return mux
}

func (srv *Server) httpLogger(next http.Handler) http.Handler {
	return httplogger.LoggingMiddlewareSlog(srv.log, next)
}

// IsReady reports whether the server is not drained.
func (srv *Server) IsReady() bool {
	return srv.isReady.Load()
}

// Draining is the negation of IsReady, shaped for scheduler.Config.Paused.
func (srv *Server) Draining() bool {
	return !srv.isReady.Load()
}

// Drained reports whether a drain has completed: no work in flight, or the
// drain period ran out.
func (srv *Server) Drained() bool {
	return srv.drained.Load()
}

func (srv *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var body any = map[string]any{}
	if srv.cfg.Status != nil {
		if status, ok := srv.cfg.Status(); ok {
			body = status
		}
	}

	data, err := json.Marshal(map[string]any{
		"ready":   srv.isReady.Load(),
		"drained": srv.drained.Load(),
		"status":  body,
	})
	if err != nil {
		srv.log.Error("Failed to encode status", "err", err)
		http.Error(w, "failed to encode status", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (srv *Server) handleLivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"alive"}`))
}

func (srv *Server) handleReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if !srv.isReady.Load() {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"not ready"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

func (srv *Server) handleDrain(w http.ResponseWriter, r *http.Request) {
	if !srv.isReady.Swap(false) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"already draining"}`))
		return
	}

	srv.log.Info("Server marked as not ready")

	srv.drainMu.Lock()
	srv.drainGen++
	gen := srv.drainGen
	srv.drainMu.Unlock()
	go srv.waitDrained(gen)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"draining"}`))
}

func (srv *Server) handleUndrain(w http.ResponseWriter, r *http.Request) {
	if srv.isReady.Swap(true) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"already ready"}`))
		return
	}

	srv.drainMu.Lock()
	srv.drainGen++
	srv.drained.Store(false)
	srv.drainMu.Unlock()
	srv.log.Info("Server marked as ready")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

const drainPollInterval = 100 * time.Millisecond

// waitDrained marks the drain complete once Idle holds or DrainDuration
// has passed, whichever comes first. An undrain abandons the wait.
func (srv *Server) waitDrained(gen uint64) {
	start := time.Now()
	deadline := start.Add(srv.cfg.DrainDuration)
	for {
		if !srv.currentDrain(gen) {
			return
		}

		idle := srv.cfg.Idle == nil || srv.cfg.Idle()
		if idle || !time.Now().Before(deadline) {
			srv.drainMu.Lock()
			completed := srv.drainGen == gen && !srv.isReady.Load()
			if completed {
				srv.drained.Store(true)
			}
			srv.drainMu.Unlock()
			if !completed {
				return
			}
			srv.log.Info("Drain completed",
				slog.Bool("idle", idle),
				slog.Duration("waited", time.Since(start)))
			return
		}
		time.Sleep(drainPollInterval)
	}
}

func (srv *Server) currentDrain(gen uint64) bool {
	srv.drainMu.Lock()
	defer srv.drainMu.Unlock()
	return srv.drainGen == gen
}

func (srv *Server) RunInBackground() {
	// metrics
	if srv.cfg.MetricsAddr != "" {
		go func() {
			srv.log.With("metricsAddress", srv.cfg.MetricsAddr).Info("Starting metrics server")
			err := srv.metricsSrv.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				srv.log.Error("Metrics server failed", "err", err)
			}
		}()
	}

	// status
	if srv.cfg.ListenAddr != "" {
		go func() {
			srv.log.Info("Starting HTTP server", "listenAddress", srv.cfg.ListenAddr)
			if err := srv.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				srv.log.Error("HTTP server failed", "err", err)
			}
		}()
	}
}

func (srv *Server) Shutdown() {
	// status
	if srv.cfg.ListenAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), srv.cfg.GracefulShutdownDuration)
		defer cancel()
		if err := srv.srv.Shutdown(ctx); err != nil {
			srv.log.Error("Graceful HTTP server shutdown failed", "err", err)
		} else {
			srv.log.Info("HTTP server gracefully stopped")
		}
	}

	// metrics
	if srv.cfg.MetricsAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), srv.cfg.GracefulShutdownDuration)
		defer cancel()
		if err := srv.metricsSrv.Shutdown(ctx); err != nil {
			srv.log.Error("Graceful metrics server shutdown failed", "err", err)
		} else {
			srv.log.Info("Metrics server gracefully stopped")
		}
	}
}
