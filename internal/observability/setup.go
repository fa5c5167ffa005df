package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

var (
	// Logger backs the asynchronous dispatch path, where request-scoped
	// logrus entries are not available.
	Logger *zap.Logger

	// Metrics
	appealsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "appeals_created_total",
			Help: "Total number of appeals created",
		},
	)

	appealFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appeal_failures_total",
			Help: "Total number of rejected appeal submissions",
		},
		[]string{"reason"},
	)

	notifierSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notifier_sent_total",
			Help: "Total number of status-changed events delivered",
		},
	)

	notifierFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notifier_failures_total",
			Help: "Total number of status-changed events that failed to deliver",
		},
	)

	appealCreateDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "appeal_create_duration_seconds",
			Help:    "Time spent running the appeal creation transaction",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func Init(ctx context.Context) error {
	var err error
	Logger, err = zap.NewProduction()
	if err != nil {
		return err
	}

	prometheus.MustRegister(appealsCreatedTotal)
	prometheus.MustRegister(appealFailuresTotal)
	prometheus.MustRegister(notifierSentTotal)
	prometheus.MustRegister(notifierFailuresTotal)
	prometheus.MustRegister(appealCreateDuration)

	// Setup OpenTelemetry (simplified setup)
	tp := trace.NewTracerProvider()
	otel.SetTracerProvider(tp)

	return nil
}

// RecordAppealCreated records one successful appeal creation.
func RecordAppealCreated() {
	appealsCreatedTotal.Inc()
}

// RecordAppealFailure records a rejected submission by reason.
func RecordAppealFailure(reason string) {
	appealFailuresTotal.WithLabelValues(reason).Inc()
}

// RecordNotifierResult records the outcome of one dispatch attempt.
func RecordNotifierResult(delivered bool) {
	if delivered {
		notifierSentTotal.Inc()
		return
	}
	notifierFailuresTotal.Inc()
}

// StartAppealCreate returns a function to record transaction duration.
func StartAppealCreate() func() {
	timer := prometheus.NewTimer(appealCreateDuration)
	return func() {
		timer.ObserveDuration()
	}
}
