package h

import (
	"fmt"
	"time"
)

// Transition is the last health transition observed on a service
type Transition uint32

const (
	// Healthy indicates the last probe succeeded and there are no pending
	// failures
	Healthy Transition = iota
	// Degrading indicates there are failures, but the threshold has not been
	// reached
	Degrading
	// Critical indicates the consecutive failures reached the threshold
	Critical
	// Recovering indicates a remediation succeeded and we are waiting for the
	// first successful probe
	Recovering
)

// String returns a string representation of the current Transition
func (t Transition) String() string {
	switch t {
	case Healthy:
		return "Healthy"
	case Degrading:
		return "Degrading"
	case Critical:
		return "Critical"
	case Recovering:
		return "Recovering"
	default:
		return "<Unknown>"
	}
}

// State is the health of a monitored service. It must be owned by a single
// goroutine; other goroutines receive copies of it.
type State struct {
	ConsecutiveFailures    uint32
	LastTransition         Transition
	LastRemediationAttempt time.Time
}

// HasRemediationAttempt indicates if a remediation was ever attempted
func (s State) HasRemediationAttempt() bool {
	return !s.LastRemediationAttempt.IsZero()
}

// String returns an string representation for the State
func (s State) String() string {
	return fmt.Sprintf(
		"State{failures: %d, transition: %s, lastRemediation: %s}",
		s.ConsecutiveFailures,
		s.LastTransition,
		s.LastRemediationAttempt.Format(time.RFC3339),
	)
}

// Signal is the result of feeding a probe outcome to a Counter
type Signal uint32

const (
	// SignalNone indicates nothing relevant changed (e.g. repeated successes)
	SignalNone Signal = iota
	// SignalRecovered indicates a success after one or more failures
	SignalRecovered
	// SignalDegraded indicates a failure below the threshold
	SignalDegraded
	// SignalThresholdBreached indicates the failure that made the counter reach
	// the threshold
	SignalThresholdBreached
	// SignalStillCritical indicates a failure past the threshold
	SignalStillCritical
)

// String returns a string representation of the current Signal
func (sig Signal) String() string {
	switch sig {
	case SignalNone:
		return "None"
	case SignalRecovered:
		return "Recovered"
	case SignalDegraded:
		return "Degraded"
	case SignalThresholdBreached:
		return "ThresholdBreached"
	case SignalStillCritical:
		return "StillCritical"
	default:
		return "<Unknown>"
	}
}

// Counter tracks consecutive failures of a service against a threshold
type Counter struct {
	threshold uint32
	state     State
}

// NewCounter creates a Counter with the given failure threshold. A zero
// threshold is treated as one.
func NewCounter(threshold uint32) *Counter {
	if threshold == 0 {
		threshold = 1
	}
	return &Counter{threshold: threshold}
}

// Threshold returns the configured failure threshold
func (c *Counter) Threshold() uint32 {
	return c.threshold
}

// State returns a copy of the current State
func (c *Counter) State() State {
	return c.state
}

// Observe feeds a probe outcome into the counter and returns the Signal for
// the transition it caused
func (c *Counter) Observe(success bool) Signal {
	if success {
		hadFailures := c.state.ConsecutiveFailures > 0
		c.state.ConsecutiveFailures = 0
		c.state.LastTransition = Healthy
		if hadFailures {
			return SignalRecovered
		}
		return SignalNone
	}

	c.state.ConsecutiveFailures++
	switch {
	case c.state.ConsecutiveFailures == c.threshold:
		c.state.LastTransition = Critical
		return SignalThresholdBreached
	case c.state.ConsecutiveFailures > c.threshold:
		c.state.LastTransition = Critical
		return SignalStillCritical
	default:
		c.state.LastTransition = Degrading
		return SignalDegraded
	}
}

// RemediationAttempted records the time a remediation was started
func (c *Counter) RemediationAttempted(at time.Time) {
	c.state.LastRemediationAttempt = at
}

// Remediated resets the failure count after a successful remediation
func (c *Counter) Remediated() {
	c.state.ConsecutiveFailures = 0
	c.state.LastTransition = Recovering
}
