package fetch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AttemptsTotal counts strategy attempts by strategy and outcome.
	AttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paperboy_fetch_attempts_total",
		Help: "The total number of fetch strategy attempts by strategy and outcome.",
	}, []string{"strategy", "outcome"})
	// EscalationsTotal counts runs that fell through to the browser strategy.
	EscalationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paperboy_fetch_escalations_total",
		Help: "The total number of runs escalated past the first strategy.",
	})
	// DownloadBytesTotal accumulates the size of validated artifacts.
	DownloadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paperboy_download_bytes_total",
		Help: "The total bytes of validated edition artifacts downloaded.",
	})
	// FetchDuration observes the end-to-end acquisition latency per run.
	FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "paperboy_fetch_duration_seconds",
		Help:    "End-to-end edition acquisition latency.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})
)
