package argot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/eringen/argot/tagquery"
)

// Metrics holds the board's Prometheus collectors. Each App owns its own
// registry so several Apps can live in one process (tests do this).
type Metrics struct {
	Registry *prometheus.Registry

	SearchQueriesTotal   *prometheus.CounterVec
	SearchResultsTotal   prometheus.Counter
	SearchDuration       prometheus.Histogram
	PostsCreatedTotal    prometheus.Counter
	CommentsCreatedTotal prometheus.Counter
	TitleFetchesTotal    *prometheus.CounterVec
	LiveClients          prometheus.Gauge
}

// NewMetrics creates and registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		SearchQueriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "argot_search_queries_total",
			Help: "Tag queries by mode and outcome",
		}, []string{"mode", "status"}),
		SearchResultsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "argot_search_results_total",
			Help: "Posts returned by tag queries",
		}),
		SearchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "argot_search_duration_seconds",
			Help:    "Time spent evaluating tag queries",
			Buckets: prometheus.DefBuckets,
		}),
		PostsCreatedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "argot_posts_created_total",
			Help: "Posts created",
		}),
		CommentsCreatedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "argot_comments_created_total",
			Help: "Comments created",
		}),
		TitleFetchesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "argot_title_fetches_total",
			Help: "Title scrapes for link posts by outcome",
		}, []string{"status"}),
		LiveClients: f.NewGauge(prometheus.GaugeOpts{
			Name: "argot_live_clients",
			Help: "Connected websocket clients",
		}),
	}
}

func modeLabel(q tagquery.Query) string {
	if q.ExclusionOnly() {
		return "exclusion_only"
	}
	return q.Mode.String()
}
