package services

import "github.com/prometheus/client_golang/prometheus"

var (
	challengeProgressUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "challenge_progress_updates_total",
			Help: "Participation progress writes by resulting status",
		},
		[]string{"status"},
	)
	challengeRewardsIssued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "challenge_rewards_issued_total",
			Help: "Rewards issued on challenge completion",
		},
	)
	challengeCASConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "challenge_cas_conflicts_total",
			Help: "Progress writes that lost a concurrent compare-and-set",
		},
	)
	bookingsConfirmed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookings_confirmed_total",
			Help: "Bookings confirmed by payment provider",
		},
		[]string{"provider"},
	)
	notificationsDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_dispatched_total",
			Help: "Push dispatch results",
		},
		[]string{"result"},
	)
)

// RegisterMetrics registers the service counters. Call this from main.go
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(challengeProgressUpdates)
	reg.MustRegister(challengeRewardsIssued)
	reg.MustRegister(challengeCASConflicts)
	reg.MustRegister(bookingsConfirmed)
	reg.MustRegister(notificationsDispatched)
}
