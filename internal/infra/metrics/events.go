package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		eventsApplied,
		eventsDuplicate,
		eventsOrphan,
		eventsFailed,
		invalidTransitions,
	)
}

var (
	eventsApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_events_applied_total",
			Help: "Provider events applied successfully, by provider.",
		},
		[]string{"provider"},
	)

	eventsDuplicate = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_events_duplicate_total",
			Help: "Redelivered events skipped at the idempotency boundary.",
		},
		[]string{"provider"},
	)

	eventsOrphan = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_events_orphan_total",
			Help: "Events that matched no payment schedule (retained for manual reconciliation).",
		},
		[]string{"provider"},
	)

	eventsFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_events_failed_total",
			Help: "Event applications rolled back, by provider and error kind.",
		},
		[]string{"provider", "kind"},
	)

	invalidTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schedule_invalid_transitions_total",
			Help: "Rejected schedule transitions, by current status and event type.",
		},
		[]string{"status", "event"},
	)
)

func IncEventApplied(provider string)      { eventsApplied.WithLabelValues(norm(provider)).Inc() }
func IncEventDuplicate(provider string)    { eventsDuplicate.WithLabelValues(norm(provider)).Inc() }
func IncEventOrphan(provider string)       { eventsOrphan.WithLabelValues(norm(provider)).Inc() }
func IncEventFailed(provider, kind string) { eventsFailed.WithLabelValues(norm(provider), kind).Inc() }

func IncInvalidTransition(status, event string) {
	invalidTransitions.WithLabelValues(norm(status), norm(event)).Inc()
}
