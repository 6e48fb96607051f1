package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Scheduler tick metrics
	TicksTotal           prometheus.Counter
	TickDuration         prometheus.Histogram
	EnrollmentsProcessed prometheus.Counter
	EnrollmentsCompleted prometheus.Counter
	EnrollmentErrors     prometheus.Counter
	QuietHoursDeferrals  prometheus.Counter

	// Dispatch metrics
	SendsTotal      *prometheus.CounterVec
	SendDuration    prometheus.Histogram
	GuardrailBlocks prometheus.Counter
	GenerationCalls *prometheus.CounterVec
	CreditsDeducted prometheus.Counter
}

// NewMetrics creates and registers all application metrics
func NewMetrics(namespace, subsystem string) *Metrics {
	return &Metrics{
		TicksTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "ticks_total",
			Help:      "Total number of scheduler invocations",
		}),
		TickDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tick_duration_seconds",
			Help:      "Time spent processing one scheduler tick",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		EnrollmentsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "enrollments_processed_total",
			Help:      "Total number of due enrollments examined",
		}),
		EnrollmentsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "enrollments_completed_total",
			Help:      "Total number of enrollments that reached a terminal state",
		}),
		EnrollmentErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "enrollment_errors_total",
			Help:      "Total number of per-enrollment failures",
		}),
		QuietHoursDeferrals: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "quiet_hours_deferrals_total",
			Help:      "Total number of enrollments bulk-deferred by quiet hours",
		}),
		SendsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sends_total",
			Help:      "Total number of carrier send attempts",
		}, []string{"status"}),
		SendDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "send_duration_seconds",
			Help:      "Duration of carrier send calls",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		GuardrailBlocks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "guardrail_blocks_total",
			Help:      "Total number of generated messages rejected by the guardrail",
		}),
		GenerationCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "generation_calls_total",
			Help:      "Total number of live AI generation calls",
		}, []string{"status"}),
		CreditsDeducted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "credits_deducted_total",
			Help:      "Total credits deducted for automated sends",
		}),
	}
}

// NewNop returns a metrics bundle backed by unregistered collectors, for tests.
func NewNop() *Metrics {
	counter := func() prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: "nop", Help: "nop"})
	}
	return &Metrics{
		TicksTotal:           counter(),
		TickDuration:         prometheus.NewHistogram(prometheus.HistogramOpts{Name: "nop_h", Help: "nop"}),
		EnrollmentsProcessed: counter(),
		EnrollmentsCompleted: counter(),
		EnrollmentErrors:     counter(),
		QuietHoursDeferrals:  counter(),
		SendsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nop_sends", Help: "nop",
		}, []string{"status"}),
		SendDuration:    prometheus.NewHistogram(prometheus.HistogramOpts{Name: "nop_sd", Help: "nop"}),
		GuardrailBlocks: counter(),
		GenerationCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nop_gen", Help: "nop",
		}, []string{"status"}),
		CreditsDeducted: counter(),
	}
}
