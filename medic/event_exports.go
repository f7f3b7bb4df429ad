package medic

import (
	"github.com/capatazlib/go-medic/internal/h"
	"github.com/capatazlib/go-medic/internal/n"
	"github.com/capatazlib/go-medic/internal/s"
)

// Event is a record emitted by the supervisor control loop
//
// Since: 0.1.0
type Event = s.Event

// EventTag specifies the type of Event
//
// Since: 0.1.0
type EventTag = s.EventTag

// EventNotifier is a function that receives every Event of a supervisor
//
// Since: 0.1.0
type EventNotifier = s.EventNotifier

// HealthState is the health of the supervised service
//
// Since: 0.1.0
type HealthState = h.State

// HealthReport is a snapshot of the supervised service health
//
// Since: 0.1.0
type HealthReport = s.HealthReport

// HealthcheckMonitor keeps the latest HealthReport of a supervisor
//
// Since: 0.1.0
type HealthcheckMonitor = s.HealthcheckMonitor

// NewHealthcheckMonitor creates a HealthcheckMonitor; register its
// HandleEvent method with WithNotifier
//
// Since: 0.1.0
var NewHealthcheckMonitor = s.NewHealthcheckMonitor

// Alert is a record sent to operators at a state transition
//
// Since: 0.1.0
type Alert = n.Alert

// AlertKind is the type of Alert
//
// Since: 0.1.0
type AlertKind = n.Kind

// AlertNotifier receives alerts from the supervisor
//
// Since: 0.1.0
type AlertNotifier = s.AlertNotifier

// Dispatcher delivers alerts to sinks on background goroutines
//
// Since: 0.1.0
type Dispatcher = n.Dispatcher

// NewDispatcher starts one delivery worker per route
//
// Since: 0.1.0
var NewDispatcher = n.NewDispatcher

// Route binds an alert Sink to the criteria of the alerts it receives
//
// Since: 0.1.0
type Route = n.Route

// Sink delivers alert messages
//
// Since: 0.1.0
type Sink = n.Sink

// SupervisorStarted is an Event that indicates the control loop started
//
// Since: 0.1.0
var SupervisorStarted = s.SupervisorStarted

// SupervisorTerminated is an Event that indicates the control loop stopped
//
// Since: 0.1.0
var SupervisorTerminated = s.SupervisorTerminated

// ProbeSucceeded is an Event that indicates a successful probe
//
// Since: 0.1.0
var ProbeSucceeded = s.ProbeSucceeded

// ProbeFailed is an Event that indicates a failed probe
//
// Since: 0.1.0
var ProbeFailed = s.ProbeFailed

// ThresholdBreached is an Event that indicates the consecutive failed probes
// reached the failure threshold
//
// Since: 0.1.0
var ThresholdBreached = s.ThresholdBreached

// Recovered is an Event that indicates a successful probe after failed ones
//
// Since: 0.1.0
var Recovered = s.Recovered

// RemediationStarted is an Event that indicates a remediation was dispatched
//
// Since: 0.1.0
var RemediationStarted = s.RemediationStarted

// RemediationDeferred is an Event that indicates a remediation was held back
// because the cooldown interval has not elapsed
//
// Since: 0.1.0
var RemediationDeferred = s.RemediationDeferred

// RemediationSucceeded is an Event that indicates a remediation succeeded
//
// Since: 0.1.0
var RemediationSucceeded = s.RemediationSucceeded

// RemediationFailed is an Event that indicates a remediation failed
//
// Since: 0.1.0
var RemediationFailed = s.RemediationFailed

// RemediationDiscarded is an Event that indicates the outcome of a
// remediation was ignored because the service recovered first
//
// Since: 0.1.0
var RemediationDiscarded = s.RemediationDiscarded

// AlertThresholdBreached is sent when the failure threshold is reached
//
// Since: 0.1.0
var AlertThresholdBreached = n.ThresholdBreached

// AlertRestarted is sent when a remediation succeeds
//
// Since: 0.1.0
var AlertRestarted = n.Restarted

// AlertRestartFailed is sent when a remediation fails
//
// Since: 0.1.0
var AlertRestartFailed = n.RestartFailed

// AlertRecovered is sent when the service recovers on its own
//
// Since: 0.1.0
var AlertRecovered = n.Recovered

// ErrRemediationInFlight is the error of a RemediationDeferred event when a
// trigger is held back by a remediation that is still running
//
// Since: 0.1.0
var ErrRemediationInFlight = s.ErrRemediationInFlight
