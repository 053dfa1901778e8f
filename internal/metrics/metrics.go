package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pull outcomes recorded on the pulls counter.
const (
	OutcomeChanged   = "changed"
	OutcomeUnchanged = "unchanged"
	OutcomeError     = "error"
)

// Collector holds the puller's Prometheus instruments on a private registry.
type Collector struct {
	registry     *prometheus.Registry
	pulls        *prometheus.CounterVec
	pullDuration *prometheus.HistogramVec
	rows         *prometheus.GaugeVec
	totalRows    *prometheus.GaugeVec
	published    *prometheus.CounterVec
}

// New registers the puller metrics plus Go runtime collectors.
func New() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		pulls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dataddo",
			Name:      "pulls_total",
			Help:      "Data calls by saved query and outcome.",
		}, []string{"query_id", "outcome"}),
		pullDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dataddo",
			Name:      "pull_duration_seconds",
			Help:      "Round trip time of data calls.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"query_id"}),
		rows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "dataddo",
			Name:      "table_rows",
			Help:      "Rows returned by the last successful pull.",
		}, []string{"query_id"}),
		totalRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "dataddo",
			Name:      "table_total_rows",
			Help:      "totalRows reported by the last successful pull.",
		}, []string{"query_id"}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dataddo",
			Name:      "events_published_total",
			Help:      "Publisher deliveries of table events.",
		}, []string{"query_id"}),
	}
	reg.MustRegister(
		c.pulls, c.pullDuration, c.rows, c.totalRows, c.published,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// ObservePull records one data call.
func (c *Collector) ObservePull(queryID, outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.pulls.WithLabelValues(queryID, outcome).Inc()
	c.pullDuration.WithLabelValues(queryID).Observe(elapsed.Seconds())
}

// ObserveTable records the size of the last table fetched for queryID.
func (c *Collector) ObserveTable(queryID string, rows, totalRows int) {
	if c == nil {
		return
	}
	c.rows.WithLabelValues(queryID).Set(float64(rows))
	c.totalRows.WithLabelValues(queryID).Set(float64(totalRows))
}

// ObservePublished adds n successful publisher deliveries.
func (c *Collector) ObservePublished(queryID string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.published.WithLabelValues(queryID).Add(float64(n))
}

// Handler exposes the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve listens on addr until ctx is cancelled.
func (c *Collector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
