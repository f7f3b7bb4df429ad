package medic

import (
	"github.com/capatazlib/go-medic/internal/p"
	"github.com/capatazlib/go-medic/internal/r"
	"github.com/capatazlib/go-medic/internal/s"
)

// Supervisor probes a service on a fixed interval, and remediates it when the
// consecutive failed probes reach a threshold
//
// Since: 0.1.0
type Supervisor = s.Supervisor

// NewSupervisor creates a Supervisor for the given service. It returns a
// SupervisorSettingsError when a collaborator is missing or a setting is
// invalid.
//
// Since: 0.1.0
var NewSupervisor = s.NewSupervisor

// Opt is used to configure a Supervisor
//
// Since: 0.1.0
type Opt = s.Opt

// WithCheckInterval sets the time between probes
//
// Since: 0.1.0
var WithCheckInterval = s.WithCheckInterval

// WithFailureThreshold sets how many consecutive failed probes trigger a
// remediation
//
// Since: 0.1.0
var WithFailureThreshold = s.WithFailureThreshold

// WithCooldownInterval sets the minimum time between remediation attempts
//
// Since: 0.1.0
var WithCooldownInterval = s.WithCooldownInterval

// WithMaxCooldownInterval lets the poll interval after failed remediations
// double up to the given duration
//
// Since: 0.1.0
var WithMaxCooldownInterval = s.WithMaxCooldownInterval

// WithNotifier adds an EventNotifier to the supervisor
//
// Since: 0.1.0
var WithNotifier = s.WithNotifier

// WithAlertNotifier sets where operator alerts get sent to
//
// Since: 0.1.0
var WithAlertNotifier = s.WithAlertNotifier

// Mode is the state of the supervisor control loop
//
// Since: 0.1.0
type Mode = s.Mode

// Probing is the mode where the supervisor polls at the check interval
//
// Since: 0.1.0
var Probing = s.Probing

// Remediating is the mode where a remediation is in flight
//
// Since: 0.1.0
var Remediating = s.Remediating

// Cooldown is the mode after a failed remediation
//
// Since: 0.1.0
var Cooldown = s.Cooldown

// SupervisorSettingsError is reported when a Supervisor is built with invalid
// settings
//
// Since: 0.1.0
type SupervisorSettingsError = s.SupervisorSettingsError

// Prober checks the health of a service
//
// Since: 0.1.0
type Prober = p.Prober

// ProbeResult is the outcome of a single health check
//
// Since: 0.1.0
type ProbeResult = p.Result

// NewHTTPProbe creates a Prober that issues HTTP requests to the given URL
//
// Since: 0.1.0
var NewHTTPProbe = p.NewHTTPProbe

// Remediator restores a failing service
//
// Since: 0.1.0
type Remediator = r.Remediator

// RemediationOutcome is the result of a remediation attempt
//
// Since: 0.1.0
type RemediationOutcome = r.Outcome

// RemediationError is the error reported when a remediation attempt fails
//
// Since: 0.1.0
type RemediationError = r.RemediationError

// NewContainerRestarter creates a Remediator that runs `<runtime> restart
// <container>`
//
// Since: 0.1.0
var NewContainerRestarter = r.NewContainerRestarter

// RolloutTarget identifies the deployment to restart on the orchestrator
//
// Since: 0.1.0
type RolloutTarget = r.RolloutTarget

// NewKubectlRolloutRestarter creates a Remediator that runs `kubectl rollout
// restart`
//
// Since: 0.1.0
var NewKubectlRolloutRestarter = r.NewKubectlRolloutRestarter

// NewAPIRolloutRestarter creates a Remediator that patches the deployment
// through the Kubernetes API
//
// Since: 0.1.0
var NewAPIRolloutRestarter = r.NewAPIRolloutRestarter
