package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		enrollmentsCreated,
		enrollmentsActivated,
		driftRepairs,
		revenueTotal,
	)
}

var (
	enrollmentsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrollments_created_total",
			Help: "Enrollments created, by payment model.",
		},
		[]string{"payment_model"},
	)

	enrollmentsActivated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "enrollments_activated_total",
			Help: "Enrollments that passed the completion gate.",
		},
	)

	driftRepairs = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "aggregate_drift_repairs_total",
			Help: "Recomputes that changed a stored paid_amount or payment_status.",
		},
	)

	revenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_total",
			Help: "The total monetary value of paid schedules, labeled by currency.",
		},
		[]string{"currency"},
	)
)

func IncEnrollmentCreated(paymentModel string) {
	enrollmentsCreated.WithLabelValues(norm(paymentModel)).Inc()
}

func IncEnrollmentActivated() { enrollmentsActivated.Inc() }
func IncDriftRepaired()       { driftRepairs.Inc() }

func AddRevenue(currency string, amount int64) {
	revenueTotal.WithLabelValues(norm(currency)).Add(float64(amount))
}
