// Package observability serves Prometheus metrics and health checks.
package observability

import (
	"context"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"
	"go.uber.org/zap"
)

// ReadinessChecker returns whether the service is ready to accept commands.
type ReadinessChecker func() bool

// Sources exposes process state sampled at scrape time. Nil fields are not
// registered.
type Sources struct {
	Tick              func() uint64
	ControlClients    func() int
	DroppedEvents     func() uint64
	IndexQueueDepth   func() int
	IndexDroppedTotal func() uint64
}

// NewRegistry returns a registry carrying the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// RegisterSources adds gauges and counters backed by src.
func RegisterSources(reg prometheus.Registerer, src Sources) {
	if src.Tick != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "opendoors_world_tick",
			Help: "Current world tick",
		}, func() float64 { return float64(src.Tick()) }))
	}
	if src.ControlClients != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "opendoors_control_clients",
			Help: "Connected control clients",
		}, func() float64 { return float64(src.ControlClients()) }))
	}
	if src.DroppedEvents != nil {
		reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "opendoors_control_events_dropped_total",
			Help: "Audit events discarded for slow control clients",
		}, func() float64 { return float64(src.DroppedEvents()) }))
	}
	if src.IndexQueueDepth != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "opendoors_index_queue_depth",
			Help: "Pending writes in the audit index queue",
		}, func() float64 { return float64(src.IndexQueueDepth()) }))
	}
	if src.IndexDroppedTotal != nil {
		reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "opendoors_index_dropped_total",
			Help: "Audit index writes dropped because the queue was full",
		}, func() float64 { return float64(src.IndexDroppedTotal()) }))
	}
}

// Server provides HTTP endpoints for metrics and health checks.
type Server struct {
	addr       string
	log        *zap.Logger
	listener   net.Listener
	httpServer *http.Server
	gatherer   prometheus.Gatherer
	isReady    ReadinessChecker
	running    atomic.Bool
}

func NewServer(addr string, gatherer prometheus.Gatherer, readiness ReadinessChecker, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		addr:     addr,
		log:      logger.Named("observability"),
		gatherer: gatherer,
		isReady:  readiness,
	}
}

// Start begins serving. The returned channel reports a serve failure and is
// closed when the server stops.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("observability server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/healthz/liveness", s.handleLiveness)
	mux.HandleFunc("/healthz/readiness", s.handleReadiness)

	httpSrv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			s.log.Error("observability server error", zap.Error(serveErr))
			errCh <- serveErr
		}
	}()

	s.log.Info("observability server started", zap.String("addr", listener.Addr().String()))
	return errCh, nil
}

func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_observability_server").Wrap(err)
		}
	}
	s.log.Info("observability server stopped")
	return nil
}

// Addr returns the listening address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if s.isReady == nil || s.isReady() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready\n"))
}
