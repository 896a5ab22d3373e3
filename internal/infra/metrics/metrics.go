package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	DripDelivered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "drip_messages_delivered_total",
		Help: "Drip messages delivered, by trigger (scheduled or chained)",
	}, []string{"trigger"})
	DripSendErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "drip_send_errors_total",
		Help: "Failed drip message send attempts",
	})
	BroadcastRecipients = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "broadcast_recipients_total",
		Help: "Broadcast recipients by outcome",
	}, []string{"status"})
	FloodWaits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "telegram_flood_waits_total",
		Help: "Flood control responses received from Telegram",
	})
	JoinRequestDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "join_request_decisions_total",
		Help: "Join request approvals and denials by source and outcome",
	}, []string{"decision", "source", "status"})
	OnboardingCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "onboarding_completed_total",
		Help: "Users that finished the onboarding questions",
	})
	TickDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "delivery_tick_duration_seconds",
		Help:    "Duration of delivery scheduler sweeps",
		Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"sweep"})
)

// MustRegister registers all collectors.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		DripDelivered,
		DripSendErrors,
		BroadcastRecipients,
		FloodWaits,
		JoinRequestDecisions,
		OnboardingCompleted,
		TickDuration,
	)
}

// ObserveSweep records how long a scheduler sweep took.
func ObserveSweep(sweep string, start time.Time) {
	TickDuration.WithLabelValues(sweep).Observe(time.Since(start).Seconds())
}

// ObserveDecision counts a join request decision.
func ObserveDecision(decision, source string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	JoinRequestDecisions.WithLabelValues(decision, source, status).Inc()
}
