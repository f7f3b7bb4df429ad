package m

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/capatazlib/go-medic/internal/n"
	"github.com/capatazlib/go-medic/internal/s"
)

// Metrics holds the prometheus collectors fed by supervisor events and alerts
type Metrics struct {
	probes       *prometheus.CounterVec
	probeLatency *prometheus.HistogramVec
	failures     *prometheus.GaugeVec
	mode         *prometheus.GaugeVec
	remediations *prometheus.CounterVec
	alerts       *prometheus.CounterVec
}

// NewMetrics registers the medic collectors on the given registerer
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		probes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "medic_probes_total",
				Help: "Health probes executed, by result",
			},
			[]string{"service", "result"},
		),
		probeLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "medic_probe_latency_seconds",
				Help:    "Latency of health probes",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"service"},
		),
		failures: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "medic_consecutive_failures",
				Help: "Consecutive failed probes of the supervised service",
			},
			[]string{"service"},
		),
		mode: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "medic_supervisor_mode",
				Help: "1 for the current mode of the supervisor, 0 otherwise",
			},
			[]string{"service", "mode"},
		),
		remediations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "medic_remediations_total",
				Help: "Remediation attempts, by result",
			},
			[]string{"service", "result"},
		),
		alerts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "medic_alerts_total",
				Help: "Alerts handed to the notifier, by kind",
			},
			[]string{"service", "kind"},
		),
	}
}

var allModes = []s.Mode{s.Probing, s.Remediating, s.Cooldown}

// HandleEvent is an EventNotifier that records the given supervisor event
func (mt *Metrics) HandleEvent(ev s.Event) {
	svc := ev.GetServiceName()

	mt.failures.WithLabelValues(svc).Set(float64(ev.GetState().ConsecutiveFailures))
	for _, mode := range allModes {
		var v float64
		if mode == ev.GetMode() {
			v = 1
		}
		mt.mode.WithLabelValues(svc, mode.String()).Set(v)
	}

	switch ev.GetTag() {
	case s.ProbeSucceeded:
		mt.probes.WithLabelValues(svc, "success").Inc()
		mt.probeLatency.WithLabelValues(svc).Observe(ev.GetProbeResult().Latency.Seconds())
	case s.ProbeFailed:
		mt.probes.WithLabelValues(svc, "failure").Inc()
		mt.probeLatency.WithLabelValues(svc).Observe(ev.GetProbeResult().Latency.Seconds())
	case s.RemediationStarted:
		mt.remediations.WithLabelValues(svc, "started").Inc()
	case s.RemediationDeferred:
		mt.remediations.WithLabelValues(svc, "deferred").Inc()
	case s.RemediationSucceeded:
		mt.remediations.WithLabelValues(svc, "succeeded").Inc()
	case s.RemediationFailed:
		mt.remediations.WithLabelValues(svc, "failed").Inc()
	case s.RemediationDiscarded:
		mt.remediations.WithLabelValues(svc, "discarded").Inc()
	}
}

// AlertNotifier wraps the given notifier so every alert gets counted before
// it is handed over
func (mt *Metrics) AlertNotifier(next s.AlertNotifier) s.AlertNotifier {
	return s.AlertNotifierFn(func(a n.Alert) {
		mt.alerts.WithLabelValues(a.ServiceName, a.Kind.String()).Inc()
		next.Notify(a)
	})
}
