package syncer

import (
	"github.com/mwantia/chansync/internal/mapping"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// outcome: registered, adopted, duplicate, pending, ignored, invalid, known
	ingestEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chansync_ingest_events_total",
		Help: "Channel messages processed by the ingestion listener, by outcome",
	}, []string{"outcome"})

	registrationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chansync_registrations_total",
		Help: "Storage registration attempts, by result",
	}, []string{"result"})

	// reason: duplicate, absent
	channelDeletionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chansync_channel_deletions_total",
		Help: "Channel message deletions, by reason and result",
	}, []string{"reason", "result"})

	// result: completed, skipped, overlapped
	reconcileRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chansync_reconcile_runs_total",
		Help: "Reconciliation cycles, by result",
	}, []string{"result"})

	reconcileDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "chansync_reconcile_duration_seconds",
		Help:    "Duration of completed reconciliation cycles in seconds",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
	})

	recordsGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "chansync_records",
		Help: "File records in the mapping store, by state",
	}, []string{"state"})
)

func updateRecordGauges(store *mapping.Store) {
	counts := store.Counts()
	for _, state := range []mapping.State{mapping.StatePending, mapping.StateRegistered, mapping.StateAbsent, mapping.StateDeleted} {
		recordsGauge.WithLabelValues(string(state)).Set(float64(counts[state]))
	}
}
