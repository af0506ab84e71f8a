package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FetchAttemptsTotal tracks fetch attempts per source
	FetchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetcher_attempts_total",
			Help: "Total number of fetch attempts",
		},
		[]string{"source"},
	)

	// FetchRetriesTotal tracks backoff retries per source
	FetchRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetcher_retries_total",
			Help: "Total number of retries scheduled after a failed attempt",
		},
		[]string{"source"},
	)

	// FetchFailuresTotal tracks failed attempts by failure kind
	FetchFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetcher_failures_total",
			Help: "Total number of failed fetch attempts",
		},
		[]string{"source", "kind"},
	)

	// SourceRunsTotal tracks settled source runs by final state
	SourceRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetcher_source_runs_total",
			Help: "Total number of source runs by final state",
		},
		[]string{"source", "state"},
	)

	// TransactionsFetched tracks transactions persisted per source
	TransactionsFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetcher_transactions_total",
			Help: "Total number of transactions fetched and saved",
		},
		[]string{"source"},
	)

	// SourceRunDuration tracks wall time of a whole source run, retries included
	SourceRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fetcher_source_run_duration_seconds",
			Help:    "Source run duration in seconds",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"source"},
	)

	// LastSuccessTimestamp records when a source last succeeded
	LastSuccessTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fetcher_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run of a source",
		},
		[]string{"source"},
	)
)

// WriteTextfile exports the default registry in the text format read by the
// node_exporter textfile collector.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
