// Package metrics exposes Prometheus collectors for statement execution and
// connection pool usage.
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mickamy/forumdb/pool"
)

const namespace = "forumdb"

// QueryObserver records statement latency and failures by statement verb.
// It satisfies orm.Observer.
type QueryObserver struct {
	// Duration tracks statement duration in seconds
	Duration *prometheus.HistogramVec

	// Errors tracks failed statements
	Errors *prometheus.CounterVec
}

// NewQueryObserver registers the statement metrics with reg.
func NewQueryObserver(reg prometheus.Registerer) *QueryObserver {
	factory := promauto.With(reg)
	return &QueryObserver{
		Duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "db_query_duration_seconds",
				Help:      "Database statement duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"query"},
		),
		Errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "db_errors_total",
				Help:      "Total failed database statements by query",
			},
			[]string{"query"},
		),
	}
}

func (o *QueryObserver) ObserveQuery(query string, elapsed time.Duration, err error) {
	name := queryName(query)
	o.Duration.WithLabelValues(name).Observe(elapsed.Seconds())
	if err != nil {
		o.Errors.WithLabelValues(name).Inc()
	}
}

// queryName reduces a statement to its leading keyword so label
// cardinality stays bounded.
func queryName(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return "unknown"
	}

	for i, c := range query {
		if c == ' ' || c == '\n' || c == '\t' || c == '(' {
			return strings.ToUpper(query[:i])
		}
	}

	if len(query) > 20 {
		query = query[:20]
	}
	return strings.ToUpper(query)
}

// PoolCollector reports pool.Stats at scrape time.
type PoolCollector struct {
	stats func() pool.Stats

	conns     *prometheus.Desc
	maxConns  *prometheus.Desc
	acquired  *prometheus.Desc
	exhausted *prometheus.Desc
}

var _ prometheus.Collector = (*PoolCollector)(nil)

// NewPoolCollector returns a collector reading from stats. Pass
// (*pool.Pool).Stats.
func NewPoolCollector(stats func() pool.Stats) *PoolCollector {
	return &PoolCollector{
		stats: stats,
		conns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db", "connections_current"),
			"Current database connections by state (in_use/idle)",
			[]string{"state"}, nil,
		),
		maxConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db", "connections_max"),
			"Maximum number of pooled connections",
			nil, nil,
		),
		acquired: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db", "connections_acquired_total"),
			"Total successful connection acquisitions",
			nil, nil,
		),
		exhausted: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db", "pool_exhausted_total"),
			"Total acquisitions that timed out waiting for a connection",
			nil, nil,
		),
	}
}

func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.conns
	ch <- c.maxConns
	ch <- c.acquired
	ch <- c.exhausted
}

func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats()
	ch <- prometheus.MustNewConstMetric(c.conns, prometheus.GaugeValue, float64(s.InUse), "in_use")
	ch <- prometheus.MustNewConstMetric(c.conns, prometheus.GaugeValue, float64(s.Idle), "idle")
	ch <- prometheus.MustNewConstMetric(c.maxConns, prometheus.GaugeValue, float64(s.MaxConns))
	ch <- prometheus.MustNewConstMetric(c.acquired, prometheus.CounterValue, float64(s.Acquired))
	ch <- prometheus.MustNewConstMetric(c.exhausted, prometheus.CounterValue, float64(s.Exhausted))
}
