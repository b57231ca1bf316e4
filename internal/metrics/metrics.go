// Package metrics instruments term storage round-trips and tree loads with
// Prometheus.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agentic-research/termtree/internal/taxonomy"
)

const namespace = "termtree"

// Storage operation label values.
const (
	OpLoadTree     = "load_tree"
	OpLoadSubtree  = "load_subtree"
	OpLoadChildren = "load_children"
)

// Collector owns a registry and the termtree metric families.
type Collector struct {
	registry *prometheus.Registry

	storageCalls   *prometheus.CounterVec
	storageSeconds *prometheus.HistogramVec
	treeLoads      *prometheus.CounterVec
}

// NewCollector registers the termtree metrics plus the Go runtime and
// process collectors on a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		storageCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_calls_total",
			Help:      "Term storage round-trips by operation and result.",
		}, []string{"op", "result"}),
		storageSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "storage_call_seconds",
			Help:      "Term storage round-trip latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~1.6s
		}, []string{"op"}),
		treeLoads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tree_loads_total",
			Help:      "Vocabulary tree loads by result.",
		}, []string{"result"}),
	}
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Wrap returns storage with every call counted and timed.
func (c *Collector) Wrap(storage taxonomy.TermStorage) taxonomy.TermStorage {
	return &instrumented{next: storage, c: c}
}

// TrackLoad records the outcome of one tree load.
func (c *Collector) TrackLoad(err error) {
	c.treeLoads.WithLabelValues(resultLabel(err)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (c *Collector) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listen: %w", err)
	}
	return c.serve(ctx, ln)
}

func (c *Collector) serve(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("metrics: listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (c *Collector) observe(op string, start time.Time, err error) {
	c.storageSeconds.WithLabelValues(op).Observe(time.Since(start).Seconds())
	c.storageCalls.WithLabelValues(op, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, taxonomy.ErrUnavailable):
		return "unavailable"
	case errors.Is(err, taxonomy.ErrInconsistent):
		return "inconsistent"
	default:
		return "error"
	}
}

// instrumented decorates a TermStorage.
type instrumented struct {
	next taxonomy.TermStorage
	c    *Collector
}

func (s *instrumented) LoadTree(vocabulary string) ([]taxonomy.Term, error) {
	start := time.Now()
	terms, err := s.next.LoadTree(vocabulary)
	s.c.observe(OpLoadTree, start, err)
	return terms, err
}

func (s *instrumented) LoadSubtree(vocabulary, rootID string) ([]taxonomy.Term, error) {
	start := time.Now()
	terms, err := s.next.LoadSubtree(vocabulary, rootID)
	s.c.observe(OpLoadSubtree, start, err)
	return terms, err
}

func (s *instrumented) LoadChildren(id string) ([]string, error) {
	start := time.Now()
	ids, err := s.next.LoadChildren(id)
	s.c.observe(OpLoadChildren, start, err)
	return ids, err
}
