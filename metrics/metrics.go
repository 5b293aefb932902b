// Package metrics defines the prometheus collectors shared by the
// streaming and batch ingestion paths.
package metrics

import (
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
)

var StreamMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "docsync",
	Subsystem: "stream",
	Name:      "messages_total",
	Help:      "Change messages handled, by outcome.",
}, []string{"topic", "outcome"})

var StreamRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "docsync",
	Subsystem: "stream",
	Name:      "retries_total",
	Help:      "Attempts beyond the first one.",
}, []string{"topic"})

var StreamDeadLetters = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "docsync",
	Subsystem: "stream",
	Name:      "dead_letters_total",
	Help:      "Messages published to a dead-letter topic, by failure kind.",
}, []string{"topic", "kind"})

var StreamDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "docsync",
	Subsystem: "stream",
	Name:      "handle_duration_seconds",
	Buckets:   prometheus.DefBuckets,
}, []string{"topic"})

var BatchFiles = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "docsync",
	Subsystem: "batch",
	Name:      "files_total",
	Help:      "Files handled by backfill runs, by outcome.",
}, []string{"outcome"})

var BatchChunks = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "docsync",
	Subsystem: "batch",
	Name:      "chunks_total",
	Help:      "Chunk writes, by result.",
}, []string{"result"})

var BatchRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "docsync",
	Subsystem: "batch",
	Name:      "runs_total",
	Help:      "Finished backfill runs, by final status.",
}, []string{"status"})

// Stream message outcomes.
const (
	OutcomeApplied       = "applied"
	OutcomeDeadLettered  = "dead_lettered"
	OutcomeUnknownStream = "unknown_stream"
	OutcomeRedeliver     = "redeliver"
)

// Collectors returns every collector defined by the package.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		StreamMessages, StreamRetries, StreamDeadLetters, StreamDuration,
		BatchFiles, BatchChunks, BatchRuns,
	}
}

// Register registers every collector with reg. Collectors that are already
// registered are left alone.
func Register(reg prometheus.Registerer) error {
	var err error
	for _, col := range Collectors() {
		if regErr := reg.Register(col); regErr != nil {
			if _, ok := regErr.(prometheus.AlreadyRegisteredError); ok {
				continue
			}

			err = multierror.Append(err, regErr)
		}
	}

	return err
}
