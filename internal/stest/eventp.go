package stest

import (
	"fmt"

	"github.com/capatazlib/go-medic/internal/h"
	"github.com/capatazlib/go-medic/internal/n"
	"github.com/capatazlib/go-medic/internal/s"
	"github.com/capatazlib/go-medic/smtest"
)

// EventP is a predicate over supervisor events
type EventP = smtest.EventP[s.Event]

// EventTagP is a predicate that asserts the `s.EventTag` of a given `s.Event`
// matches an expected `s.EventTag`
type EventTagP struct {
	tag s.EventTag
}

// Call will execute predicate that checks tag name of event
func (p EventTagP) Call(ev s.Event) bool {
	return ev.GetTag() == p.tag
}

func (p EventTagP) String() string {
	return fmt.Sprintf("tag == %s", p.tag)
}

// FailuresP is a predicate that asserts the consecutive failures recorded on
// the event state
type FailuresP struct {
	failures uint32
}

// Call will execute predicate that checks the failure count of the event
func (p FailuresP) Call(ev s.Event) bool {
	return ev.GetState().ConsecutiveFailures == p.failures
}

func (p FailuresP) String() string {
	return fmt.Sprintf("failures == %d", p.failures)
}

// ModeP is a predicate that asserts the supervisor mode of the event
type ModeP struct {
	mode s.Mode
}

// Call will execute predicate that checks the mode of the event
func (p ModeP) Call(ev s.Event) bool {
	return ev.GetMode() == p.mode
}

func (p ModeP) String() string {
	return fmt.Sprintf("mode == %s", p.mode)
}

// TransitionP is a predicate that asserts the health transition of the event
type TransitionP struct {
	transition h.Transition
}

// Call will execute predicate that checks the transition of the event
func (p TransitionP) Call(ev s.Event) bool {
	return ev.GetState().LastTransition == p.transition
}

func (p TransitionP) String() string {
	return fmt.Sprintf("transition == %s", p.transition)
}

func tagged(tag s.EventTag, preds ...EventP) EventP {
	if len(preds) == 0 {
		return EventTagP{tag: tag}
	}
	return smtest.AndP[s.Event]{Preds: append([]EventP{EventTagP{tag: tag}}, preds...)}
}

// WithFailures builds a FailuresP predicate
func WithFailures(failures uint32) EventP {
	return FailuresP{failures: failures}
}

// InMode builds a ModeP predicate
func InMode(mode s.Mode) EventP {
	return ModeP{mode: mode}
}

// InTransition builds a TransitionP predicate
func InTransition(transition h.Transition) EventP {
	return TransitionP{transition: transition}
}

// SupervisorStarted asserts the control loop started
func SupervisorStarted() EventP {
	return tagged(s.SupervisorStarted)
}

// SupervisorTerminated asserts the control loop stopped
func SupervisorTerminated() EventP {
	return tagged(s.SupervisorTerminated)
}

// ProbeSucceeded asserts a successful probe, optionally with extra predicates
func ProbeSucceeded(preds ...EventP) EventP {
	return tagged(s.ProbeSucceeded, preds...)
}

// ProbeFailed asserts a failed probe, optionally with extra predicates
func ProbeFailed(preds ...EventP) EventP {
	return tagged(s.ProbeFailed, preds...)
}

// ThresholdBreached asserts the failure threshold was reached
func ThresholdBreached(preds ...EventP) EventP {
	return tagged(s.ThresholdBreached, preds...)
}

// Recovered asserts the service recovered
func Recovered(preds ...EventP) EventP {
	return tagged(s.Recovered, preds...)
}

// RemediationStarted asserts a remediation was dispatched
func RemediationStarted(preds ...EventP) EventP {
	return tagged(s.RemediationStarted, preds...)
}

// RemediationDeferred asserts a remediation was held back by the cooldown
func RemediationDeferred(preds ...EventP) EventP {
	return tagged(s.RemediationDeferred, preds...)
}

// RemediationSucceeded asserts a remediation succeeded
func RemediationSucceeded(preds ...EventP) EventP {
	return tagged(s.RemediationSucceeded, preds...)
}

// RemediationFailed asserts a remediation failed
func RemediationFailed(preds ...EventP) EventP {
	return tagged(s.RemediationFailed, preds...)
}

// RemediationDiscarded asserts a stale remediation outcome was ignored
func RemediationDiscarded(preds ...EventP) EventP {
	return tagged(s.RemediationDiscarded, preds...)
}

////////////////////////////////////////////////////////////////////////////////

// AlertKinds returns the kinds of the given alerts, in order
func AlertKinds(alerts []n.Alert) []n.Kind {
	kinds := make([]n.Kind, 0, len(alerts))
	for _, a := range alerts {
		kinds = append(kinds, a.Kind)
	}
	return kinds
}
