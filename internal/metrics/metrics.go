// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var registry = prometheus.NewRegistry()

var (
	// Submissions counts snapshot submissions by result (ok, invalid, error).
	Submissions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "popis",
		Name:      "submissions_total",
		Help:      "Inventory snapshot submissions by result.",
	}, []string{"result"})

	// RowsWritten counts inventory rows stored.
	RowsWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "popis",
		Name:      "rows_written_total",
		Help:      "Inventory rows stored.",
	})

	// Exports counts spreadsheet exports by result (ok, not_found, error).
	Exports = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "popis",
		Name:      "exports_total",
		Help:      "Snapshot exports by result.",
	}, []string{"result"})

	// RowsDeleted counts rows removed by admin deletes.
	RowsDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "popis",
		Name:      "rows_deleted_total",
		Help:      "Inventory rows removed by snapshot deletion.",
	})

	// BotUpdates counts processed Telegram updates by kind (message, callback, other).
	BotUpdates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "popis",
		Name:      "bot_updates_total",
		Help:      "Telegram updates handled by kind.",
	}, []string{"kind"})
)

func init() {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		Submissions,
		RowsWritten,
		Exports,
		RowsDeleted,
		BotUpdates,
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}
