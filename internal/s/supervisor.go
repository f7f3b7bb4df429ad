package s

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/capatazlib/go-medic/internal/h"
	"github.com/capatazlib/go-medic/internal/n"
	"github.com/capatazlib/go-medic/internal/p"
	"github.com/capatazlib/go-medic/internal/r"
)

// Mode is the state of the supervisor control loop
type Mode uint32

const (
	// Probing is the mode where the supervisor polls at the check interval
	Probing Mode = iota
	// Remediating is the mode where a remediation is in flight
	Remediating
	// Cooldown is the mode after a failed remediation; the supervisor polls at
	// the (extended) cooldown interval
	Cooldown
)

// String returns a string representation of the current Mode
func (m Mode) String() string {
	switch m {
	case Probing:
		return "Probing"
	case Remediating:
		return "Remediating"
	case Cooldown:
		return "Cooldown"
	default:
		return "<Unknown>"
	}
}

// Supervisor probes a service on a fixed interval, and remediates it when the
// consecutive failures reach a threshold
type Supervisor struct {
	serviceName string
	prober      p.Prober
	remediator  r.Remediator
	settings    supervisorSettings
}

// NewSupervisor creates a Supervisor for the given service. It returns an
// error when any of the required collaborators or settings are invalid.
func NewSupervisor(
	serviceName string,
	prober p.Prober,
	remediator r.Remediator,
	opts ...Opt,
) (*Supervisor, error) {
	settings := supervisorSettings{
		checkInterval:    DefaultCheckInterval,
		failureThreshold: DefaultFailureThreshold,
		cooldownInterval: DefaultCooldownInterval,
		alertNotifier:    AlertNotifierFn(func(n.Alert) {}),
		now:              time.Now,
	}
	for _, optFn := range opts {
		optFn(&settings)
	}
	if len(settings.eventNotifiers) == 0 {
		settings.eventNotifiers = EventNotifiers{emptyEventNotifier}
	}

	var errs []error
	if serviceName == "" {
		errs = append(errs, errors.New("service name is required"))
	}
	if prober == nil {
		errs = append(errs, errors.New("prober is required"))
	}
	if remediator == nil {
		errs = append(errs, errors.New("remediator is required"))
	}
	if settings.checkInterval <= 0 {
		errs = append(errs, fmt.Errorf("check interval must be positive, got %s", settings.checkInterval))
	}
	if settings.failureThreshold == 0 {
		errs = append(errs, errors.New("failure threshold must be at least 1"))
	}
	if settings.cooldownInterval < 0 {
		errs = append(errs, fmt.Errorf("cooldown interval must not be negative, got %s", settings.cooldownInterval))
	}
	if len(errs) > 0 {
		return nil, &SupervisorSettingsError{serviceName: serviceName, errs: errs}
	}

	if settings.maxCooldownInterval < settings.cooldownInterval {
		settings.maxCooldownInterval = settings.cooldownInterval
	}

	return &Supervisor{
		serviceName: serviceName,
		prober:      prober,
		remediator:  remediator,
		settings:    settings,
	}, nil
}

// GetServiceName returns the name of the supervised service
func (sup *Supervisor) GetServiceName() string {
	return sup.serviceName
}

// Run executes the control loop until the given context is done. A
// remediation in flight when the context is cancelled runs to completion
// (bounded by the remediator timeout) and its outcome is recorded before Run
// returns. Run returns nil on cancellation.
func (sup *Supervisor) Run(ctx context.Context) error {
	l := newLoop(sup, context.WithoutCancel(ctx))
	l.emit(Event{tag: SupervisorStarted})

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			l.drain()
			l.emit(Event{tag: SupervisorTerminated})
			return nil

		case res := <-l.outcomeCh:
			if l.recordOutcome(res) {
				// failed remediations switch to the cooldown poll interval
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(l.nextInterval())
			}

		case <-timer.C:
			result := sup.prober.Check(ctx)
			if ctx.Err() != nil {
				// a probe interrupted by shutdown is not a service failure
				continue
			}
			l.handleProbe(result)
			timer.Reset(l.nextInterval())
		}
	}
}

////////////////////////////////////////////////////////////////////////////////

// attempt tracks a remediation in flight
type attempt struct {
	id        uint64
	startedAt time.Time
	stale     bool
	// skipped is set once a trigger was deferred behind this attempt
	skipped bool
}

// attemptResult is the message a remediation goroutine sends back to the
// control loop
type attemptResult struct {
	id      uint64
	outcome r.Outcome
}

// loop holds all the mutable state of a running Supervisor. It is only ever
// touched from the goroutine executing Supervisor.Run.
type loop struct {
	sup                 *Supervisor
	remediationCtx      context.Context
	counter             *h.Counter
	cooldown            h.Cooldown
	backoff             h.Backoff
	mode                Mode
	inflight            *attempt
	lastAttemptID       uint64
	remediationFailures uint32
	outcomeCh           chan attemptResult
}

func newLoop(sup *Supervisor, remediationCtx context.Context) *loop {
	return &loop{
		sup:            sup,
		remediationCtx: remediationCtx,
		counter:        h.NewCounter(sup.settings.failureThreshold),
		cooldown:       h.Cooldown{Interval: sup.settings.cooldownInterval},
		backoff: h.Backoff{
			Base: sup.settings.cooldownInterval,
			Max:  sup.settings.maxCooldownInterval,
		},
		mode: Probing,
		// buffered so a remediation goroutine never blocks on a loop that is
		// shutting down
		outcomeCh: make(chan attemptResult, 1),
	}
}

// emit completes the event with the current loop state and reports it
func (l *loop) emit(ev Event) {
	ev.serviceName = l.sup.serviceName
	ev.created = l.sup.settings.now()
	ev.mode = l.mode
	ev.state = l.counter.State()
	l.sup.settings.eventNotifiers.notify(ev)
}

// alert sends an operator alert; the notifier must not block
func (l *loop) alert(kind n.Kind, detail string) {
	l.sup.settings.alertNotifier.Notify(
		n.NewAlert(kind, l.sup.serviceName, detail, l.sup.settings.now()),
	)
}

// nextInterval returns the time to wait before the next probe
func (l *loop) nextInterval() time.Duration {
	if l.mode == Cooldown {
		if wait := l.backoff.Duration(l.remediationFailures); wait > 0 {
			return wait
		}
	}
	return l.sup.settings.checkInterval
}

// handleProbe feeds a probe result to the failure counter and executes the
// resulting transition
func (l *loop) handleProbe(result p.Result) {
	previous := l.counter.State()
	sig := l.counter.Observe(result.Success)

	if result.Success {
		if l.inflight == nil {
			l.mode = Probing
		}
		l.emit(Event{tag: ProbeSucceeded, probe: result})
	} else {
		l.emit(Event{tag: ProbeFailed, probe: result, err: probeError(result)})
	}

	switch sig {
	case h.SignalRecovered:
		if l.inflight != nil {
			// the outcome of the remediation in flight is no longer relevant
			l.inflight.stale = true
		}
		l.remediationFailures = 0
		l.emit(Event{tag: Recovered, probe: result})
		l.alert(
			n.Recovered,
			fmt.Sprintf("probe succeeded after %d failed probe(s)", previous.ConsecutiveFailures),
		)

	case h.SignalThresholdBreached:
		l.emit(Event{tag: ThresholdBreached, probe: result, err: probeError(result)})
		l.alert(
			n.ThresholdBreached,
			fmt.Sprintf(
				"%d consecutive failed probe(s), last error: %s",
				l.counter.State().ConsecutiveFailures,
				result.Err,
			),
		)
		l.remediate()

	case h.SignalStillCritical:
		l.remediate()
	}
}

// remediate dispatches a remediation unless one is already in flight or the
// cooldown since the last attempt has not elapsed
func (l *loop) remediate() {
	if att := l.inflight; att != nil {
		// a stale attempt no longer covers the current outage; report the
		// trigger it holds back, once
		if att.stale && !att.skipped {
			att.skipped = true
			l.emit(Event{tag: RemediationDeferred, err: ErrRemediationInFlight})
		}
		return
	}
	now := l.sup.settings.now()
	last := l.counter.State().LastRemediationAttempt
	if !l.cooldown.Allows(last, now) {
		l.emit(Event{tag: RemediationDeferred, wait: l.cooldown.Remaining(last, now)})
		return
	}

	l.lastAttemptID++
	att := &attempt{id: l.lastAttemptID, startedAt: now}
	l.inflight = att
	l.counter.RemediationAttempted(now)
	l.mode = Remediating
	l.emit(Event{tag: RemediationStarted})

	remediator := l.sup.remediator
	serviceName := l.sup.serviceName
	remediationCtx := l.remediationCtx
	outcomeCh := l.outcomeCh

	go func() {
		outcome := remediator.Remediate(remediationCtx, serviceName)
		outcomeCh <- attemptResult{id: att.id, outcome: outcome}
	}()
}

// recordOutcome applies the outcome of a finished remediation. It returns true
// when the poll interval changed.
func (l *loop) recordOutcome(res attemptResult) bool {
	att := l.inflight
	if att == nil || att.id != res.id {
		return false
	}
	l.inflight = nil
	outcome := res.outcome

	if att.stale {
		// a successful probe was observed first: Recovered wins and no
		// remediation alert is sent
		l.mode = Probing
		l.emit(Event{tag: RemediationDiscarded, outcome: outcome, err: outcome.Err})
		return false
	}

	if outcome.Succeeded {
		l.counter.Remediated()
		l.remediationFailures = 0
		l.mode = Probing
		l.emit(Event{tag: RemediationSucceeded, outcome: outcome})
		l.alert(n.Restarted, outcome.Message)
		return false
	}

	l.remediationFailures++
	l.mode = Cooldown
	err := outcome.Err
	if err == nil {
		err = errors.New(outcome.Message)
	}
	l.emit(Event{tag: RemediationFailed, outcome: outcome, err: err})
	l.alert(n.RestartFailed, outcome.Message)
	return true
}

// drain waits for the remediation in flight to finish and records it
func (l *loop) drain() {
	if l.inflight == nil {
		return
	}
	l.recordOutcome(<-l.outcomeCh)
}
