package l

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/capatazlib/go-medic/internal/s"
)

// ErrFields returns the structured metadata of the given error, if any
func ErrFields(err error) logrus.Fields {
	fields := logrus.Fields{}
	var kvErr s.ErrKVs
	if errors.As(err, &kvErr) {
		for k, v := range kvErr.KVs() {
			fields[k] = v
		}
	}
	return fields
}

// NewEventLogger returns an EventNotifier that writes every supervisor event
// to the given logger. Successful probes are logged at debug level.
func NewEventLogger(log logrus.FieldLogger) s.EventNotifier {
	return func(ev s.Event) {
		st := ev.GetState()
		ll := log.WithFields(logrus.Fields{
			"service":    ev.GetServiceName(),
			"mode":       ev.GetMode().String(),
			"failures":   st.ConsecutiveFailures,
			"transition": st.LastTransition.String(),
		})
		if err := ev.Err(); err != nil {
			ll = ll.WithError(err).WithFields(ErrFields(err))
		}

		switch ev.GetTag() {
		case s.SupervisorStarted:
			ll.Info("supervisor started")
		case s.SupervisorTerminated:
			ll.Info("supervisor terminated")
		case s.ProbeSucceeded:
			ll.WithFields(logrus.Fields{
				"status":  ev.GetProbeResult().StatusCode,
				"latency": ev.GetProbeResult().Latency.String(),
			}).Debug("probe ok")
		case s.ProbeFailed:
			ll.Warn("probe failed")
		case s.ThresholdBreached:
			ll.Error("failure threshold reached")
		case s.Recovered:
			ll.Info("service recovered")
		case s.RemediationStarted:
			ll.Info("remediation started")
		case s.RemediationDeferred:
			if errors.Is(ev.Err(), s.ErrRemediationInFlight) {
				ll.Warn("remediation deferred, previous attempt still running")
			} else {
				ll.WithField("wait", ev.GetWait().String()).Info("remediation deferred by cooldown")
			}
		case s.RemediationSucceeded:
			ll.WithField("outcome", ev.GetOutcome().Message).Info("remediation succeeded")
		case s.RemediationFailed:
			ll.WithField("outcome", ev.GetOutcome().Message).Error("remediation failed")
		case s.RemediationDiscarded:
			ll.WithField("outcome", ev.GetOutcome().Message).
				Info("remediation outcome discarded, service recovered first")
		default:
			ll.Debug(ev.GetTag().String())
		}
	}
}
