package s

import (
	"fmt"
	"strings"
	"time"

	"github.com/capatazlib/go-medic/internal/h"
	"github.com/capatazlib/go-medic/internal/p"
	"github.com/capatazlib/go-medic/internal/r"
)

// EventTag specifies the type of Event that gets notified from the supervisor
type EventTag uint32

const (
	// ignore zero value of iota
	_ EventTag = iota
	// SupervisorStarted is an Event that indicates the control loop started
	SupervisorStarted
	// SupervisorTerminated is an Event that indicates the control loop stopped
	SupervisorTerminated
	// ProbeSucceeded is an Event that indicates a probe succeeded
	ProbeSucceeded
	// ProbeFailed is an Event that indicates a probe failed
	ProbeFailed
	// ThresholdBreached is an Event that indicates the failure threshold was
	// reached
	ThresholdBreached
	// Recovered is an Event that indicates a probe succeeded after failures
	Recovered
	// RemediationStarted is an Event that indicates a remediation was dispatched
	RemediationStarted
	// RemediationDeferred is an Event that indicates a remediation was skipped
	// because of the cooldown
	RemediationDeferred
	// RemediationSucceeded is an Event that indicates a remediation succeeded
	RemediationSucceeded
	// RemediationFailed is an Event that indicates a remediation failed
	RemediationFailed
	// RemediationDiscarded is an Event that indicates a remediation outcome was
	// ignored because the service recovered before it was recorded
	RemediationDiscarded
)

// String returns a string representation of the current EventTag
func (tag EventTag) String() string {
	switch tag {
	case SupervisorStarted:
		return "SupervisorStarted"
	case SupervisorTerminated:
		return "SupervisorTerminated"
	case ProbeSucceeded:
		return "ProbeSucceeded"
	case ProbeFailed:
		return "ProbeFailed"
	case ThresholdBreached:
		return "ThresholdBreached"
	case Recovered:
		return "Recovered"
	case RemediationStarted:
		return "RemediationStarted"
	case RemediationDeferred:
		return "RemediationDeferred"
	case RemediationSucceeded:
		return "RemediationSucceeded"
	case RemediationFailed:
		return "RemediationFailed"
	case RemediationDiscarded:
		return "RemediationDiscarded"
	default:
		return "<Unknown>"
	}
}

// Event is a record emitted by the supervisor control loop. Events are used
// for logging, metrics, status reports and testing; they carry a copy of the
// health state at the time they were created.
type Event struct {
	tag         EventTag
	serviceName string
	created     time.Time
	mode        Mode
	state       h.State
	probe       p.Result
	outcome     r.Outcome
	wait        time.Duration
	err         error
}

// GetTag returns the EventTag from an Event
func (e Event) GetTag() EventTag {
	return e.tag
}

// GetServiceName returns the name of the supervised service
func (e Event) GetServiceName() string {
	return e.serviceName
}

// GetCreated returns a timestamp of the creation of the event
func (e Event) GetCreated() time.Time {
	return e.created
}

// GetMode returns the supervisor Mode after the event was handled
func (e Event) GetMode() Mode {
	return e.mode
}

// GetState returns the health state after the event was handled
func (e Event) GetState() h.State {
	return e.state
}

// GetProbeResult returns the probe result of probe events
func (e Event) GetProbeResult() p.Result {
	return e.probe
}

// GetOutcome returns the remediation outcome of remediation events
func (e Event) GetOutcome() r.Outcome {
	return e.outcome
}

// GetWait returns how long until the next remediation is allowed on
// RemediationDeferred events
func (e Event) GetWait() time.Duration {
	return e.wait
}

// Err returns the error reported on this event
func (e Event) Err() error {
	return e.err
}

// String returns an string representation for the Event
func (e Event) String() string {
	var buffer strings.Builder
	buffer.WriteString("Event{")
	buffer.WriteString(fmt.Sprintf("tag: %s", e.tag))
	buffer.WriteString(fmt.Sprintf(", service: %s", e.serviceName))
	buffer.WriteString(fmt.Sprintf(", mode: %s", e.mode))
	buffer.WriteString(fmt.Sprintf(", failures: %d", e.state.ConsecutiveFailures))
	buffer.WriteString(fmt.Sprintf(", transition: %s", e.state.LastTransition))
	if e.err != nil {
		buffer.WriteString(fmt.Sprintf(", err: %+v", e.err))
	}
	buffer.WriteString("}")
	return buffer.String()
}

// EventNotifier is a function that is used for reporting events from the
// supervisor. Notifiers are called on the control loop goroutine, so they must
// not block.
type EventNotifier func(Event)

// EventNotifiers is a collection of notifiers.
//
// See EventNotifier.
type EventNotifiers []EventNotifier

// notify reports the event to every notifier
func (ens EventNotifiers) notify(ev Event) {
	for _, en := range ens {
		en(ev)
	}
}

// emptyEventNotifier is an utility function that works as a default value
// whenever an EventNotifier is not specified
func emptyEventNotifier(_ Event) {}
