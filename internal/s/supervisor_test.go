package s_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/capatazlib/go-medic/internal/h"
	"github.com/capatazlib/go-medic/internal/n"
	"github.com/capatazlib/go-medic/internal/p"
	"github.com/capatazlib/go-medic/internal/ptest"
	"github.com/capatazlib/go-medic/internal/r"
	"github.com/capatazlib/go-medic/internal/s"
	"github.com/capatazlib/go-medic/internal/stest"
	"github.com/capatazlib/go-medic/smtest"
)

const waitTimeout = 5 * time.Second

// healthSwitch is a prober that fails until it is healed
type healthSwitch struct {
	healthy atomic.Bool
	checks  atomic.Int32
}

func (hs *healthSwitch) Check(_ context.Context) p.Result {
	hs.checks.Add(1)
	if hs.healthy.Load() {
		return p.Result{Timestamp: time.Now(), Success: true, StatusCode: http.StatusOK}
	}
	return p.Result{
		Timestamp:  time.Now(),
		StatusCode: http.StatusInternalServerError,
		Err:        "unexpected status 500",
	}
}

// healOn is an EventNotifier that heals the prober when an event with the
// given tag is reported
func healOn(hs *healthSwitch, tag s.EventTag) s.EventNotifier {
	return func(ev s.Event) {
		if ev.GetTag() == tag {
			hs.healthy.Store(true)
		}
	}
}

// alertRecorder keeps every alert sent by the supervisor
type alertRecorder struct {
	mu     sync.Mutex
	alerts []n.Alert
}

func (ar *alertRecorder) Notify(a n.Alert) {
	ar.mu.Lock()
	defer ar.mu.Unlock()
	ar.alerts = append(ar.alerts, a)
}

func (ar *alertRecorder) Kinds() []n.Kind {
	ar.mu.Lock()
	defer ar.mu.Unlock()
	return stest.AlertKinds(ar.alerts)
}

// countingRemediator returns the given outcome and counts invocations
type countingRemediator struct {
	calls   atomic.Int32
	delay   time.Duration
	release chan struct{}
	outcome r.Outcome
	ctxErrs chan error
}

func (cr *countingRemediator) Engine() r.Engine {
	return r.ContainerRestart
}

func (cr *countingRemediator) Remediate(ctx context.Context, _ string) r.Outcome {
	cr.calls.Add(1)
	if cr.release != nil {
		<-cr.release
	}
	if cr.delay > 0 {
		time.Sleep(cr.delay)
	}
	if cr.ctxErrs != nil {
		cr.ctxErrs <- ctx.Err()
	}
	return cr.outcome
}

func restartOK() r.Outcome {
	return r.Outcome{
		Attempted: true,
		Succeeded: true,
		Engine:    r.ContainerRestart,
		Message:   "docker restart api succeeded",
	}
}

func restartFailed() r.Outcome {
	return r.Outcome{
		Attempted: true,
		Engine:    r.ContainerRestart,
		Message:   "docker restart api failed with exit code 1",
		Err:       errors.New("exit status 1"),
	}
}

// runSupervisor starts the supervisor control loop and returns a function
// that stops it and asserts it terminated cleanly
func runSupervisor(t *testing.T, sup *s.Supervisor) func() {
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- sup.Run(ctx)
	}()
	return func() {
		cancel()
		select {
		case err := <-errCh:
			assert.NoError(t, err)
		case <-time.After(waitTimeout):
			t.Fatal("supervisor did not terminate")
		}
	}
}

func newEventManager() (smtest.EventManager[s.Event], context.Context, func()) {
	evCtx, cancel := context.WithCancel(context.Background())
	evManager := smtest.NewEventManager[s.Event]()
	evManager.StartCollector(evCtx)
	return evManager, evCtx, cancel
}

func waitFor(t *testing.T, it *smtest.EventIterator[s.Event], pred stest.EventP) {
	t.Helper()
	require.True(t, it.WaitTillTimeout(pred, waitTimeout), "never observed %s", pred)
}

////////////////////////////////////////////////////////////////////////////////

func TestHealthyServiceNeverAlerts(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	target := ptest.NewTarget(http.StatusOK)
	defer target.Close()

	evManager, evCtx, stopEvents := newEventManager()
	defer stopEvents()
	alerts := &alertRecorder{}
	remediator := &countingRemediator{outcome: restartOK()}

	sup, err := s.NewSupervisor(
		"api",
		p.NewHTTPProbe(target.URL(), time.Second),
		remediator,
		s.WithCheckInterval(5*time.Millisecond),
		s.WithAlertNotifier(alerts),
		s.WithNotifier(evManager.EventCollector(evCtx)),
	)
	require.NoError(t, err)

	stop := runSupervisor(t, sup)
	it := evManager.Iterator()
	for i := 0; i < 5; i++ {
		waitFor(t, &it, stest.ProbeSucceeded(stest.WithFailures(0)))
	}
	stop()

	evs := evManager.Snapshot()
	smtest.AssertCount(t, evs, stest.ProbeFailed(), 0)
	smtest.AssertCount(t, evs, stest.RemediationStarted(), 0)
	assert.GreaterOrEqual(t, target.Hits(), 5)
	assert.Empty(t, alerts.Kinds())
	assert.Equal(t, int32(0), remediator.calls.Load())
}

func TestThresholdBreachRemediatesOnce(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	target := ptest.NewTarget(http.StatusInternalServerError)
	defer target.Close()

	evManager, evCtx, stopEvents := newEventManager()
	defer stopEvents()
	alerts := &alertRecorder{}
	remediator := &countingRemediator{outcome: restartOK()}

	sup, err := s.NewSupervisor(
		"api",
		p.NewHTTPProbe(target.URL(), time.Second),
		remediator,
		s.WithCheckInterval(5*time.Millisecond),
		s.WithFailureThreshold(3),
		s.WithCooldownInterval(time.Hour),
		s.WithAlertNotifier(alerts),
		s.WithNotifier(func(ev s.Event) {
			if ev.GetTag() == s.RemediationSucceeded {
				target.SetPlan(http.StatusOK)
			}
		}),
		s.WithNotifier(evManager.EventCollector(evCtx)),
	)
	require.NoError(t, err)

	stop := runSupervisor(t, sup)
	it := evManager.Iterator()
	waitFor(t, &it, stest.ProbeSucceeded())
	stop()

	evs := evManager.Snapshot()
	require.GreaterOrEqual(t, len(evs), 6)
	smtest.AssertExactMatch(t, evs[:6], []stest.EventP{
		stest.SupervisorStarted(),
		stest.ProbeFailed(stest.WithFailures(1), stest.InTransition(h.Degrading)),
		stest.ProbeFailed(stest.WithFailures(2), stest.InTransition(h.Degrading)),
		stest.ProbeFailed(stest.WithFailures(3), stest.InTransition(h.Critical)),
		stest.ThresholdBreached(stest.WithFailures(3)),
		stest.RemediationStarted(stest.InMode(s.Remediating)),
	})
	smtest.AssertPartialMatch(t, evs[6:], []stest.EventP{
		stest.RemediationSucceeded(stest.WithFailures(0), stest.InTransition(h.Recovering)),
		stest.ProbeSucceeded(stest.WithFailures(0), stest.InTransition(h.Healthy)),
	})
	smtest.AssertCount(t, evs, stest.ThresholdBreached(), 1)
	smtest.AssertCount(t, evs, stest.Recovered(), 0)

	assert.Equal(t, int32(1), remediator.calls.Load())
	assert.Equal(t, []n.Kind{n.ThresholdBreached, n.Restarted}, alerts.Kinds())

	for _, ev := range evs {
		if ev.GetTag() == s.ProbeFailed {
			assert.True(t, s.IsProbeError(ev.Err()))
		}
	}
}

func TestCooldownDefersRepeatedRemediation(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	evManager, evCtx, stopEvents := newEventManager()
	defer stopEvents()
	alerts := &alertRecorder{}
	remediator := &countingRemediator{outcome: restartOK()}

	sup, err := s.NewSupervisor(
		"api",
		&healthSwitch{},
		remediator,
		s.WithCheckInterval(2*time.Millisecond),
		s.WithFailureThreshold(2),
		s.WithCooldownInterval(time.Hour),
		s.WithAlertNotifier(alerts),
		s.WithNotifier(evManager.EventCollector(evCtx)),
	)
	require.NoError(t, err)

	stop := runSupervisor(t, sup)
	it := evManager.Iterator()
	waitFor(t, &it, stest.RemediationDeferred())
	stop()

	evs := evManager.Snapshot()
	smtest.AssertPartialMatch(t, evs, []stest.EventP{
		stest.ThresholdBreached(),
		stest.RemediationStarted(),
		stest.RemediationSucceeded(),
		stest.ThresholdBreached(),
		stest.RemediationDeferred(),
	})
	smtest.AssertCount(t, evs, stest.RemediationStarted(), 1)

	for _, ev := range evs {
		if ev.GetTag() == s.RemediationDeferred {
			assert.Greater(t, ev.GetWait(), time.Duration(0))
			assert.LessOrEqual(t, ev.GetWait(), time.Hour)
		}
	}

	assert.Equal(t, int32(1), remediator.calls.Load())
	assert.Equal(
		t,
		[]n.Kind{n.ThresholdBreached, n.Restarted, n.ThresholdBreached},
		alerts.Kinds(),
	)
}

func TestRecoveryDuringRemediationWins(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	evManager, evCtx, stopEvents := newEventManager()
	defer stopEvents()
	alerts := &alertRecorder{}
	prober := &healthSwitch{}
	remediator := &countingRemediator{
		outcome: restartOK(),
		release: make(chan struct{}),
	}

	sup, err := s.NewSupervisor(
		"api",
		prober,
		remediator,
		s.WithCheckInterval(2*time.Millisecond),
		s.WithFailureThreshold(3),
		s.WithAlertNotifier(alerts),
		s.WithNotifier(healOn(prober, s.RemediationStarted)),
		s.WithNotifier(evManager.EventCollector(evCtx)),
	)
	require.NoError(t, err)

	stop := runSupervisor(t, sup)
	it := evManager.Iterator()
	waitFor(t, &it, stest.Recovered())
	close(remediator.release)
	waitFor(t, &it, stest.RemediationDiscarded())
	stop()

	evs := evManager.Snapshot()
	smtest.AssertPartialMatch(t, evs, []stest.EventP{
		stest.ThresholdBreached(stest.WithFailures(3)),
		stest.RemediationStarted(stest.InMode(s.Remediating)),
		stest.Recovered(stest.WithFailures(0), stest.InTransition(h.Healthy)),
		stest.RemediationDiscarded(stest.WithFailures(0), stest.InMode(s.Probing)),
	})
	smtest.AssertCount(t, evs, stest.RemediationSucceeded(), 0)
	smtest.AssertCount(t, evs, stest.RemediationFailed(), 0)

	assert.Equal(t, []n.Kind{n.ThresholdBreached, n.Recovered}, alerts.Kinds())
}

func TestNewBreachBehindStaleRemediationIsReported(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	evManager, evCtx, stopEvents := newEventManager()
	defer stopEvents()
	alerts := &alertRecorder{}
	prober := &healthSwitch{}
	remediator := &countingRemediator{
		outcome: restartOK(),
		release: make(chan struct{}),
	}

	// heal on the first remediation, then fail again once recovered, so a new
	// outage starts while the first attempt is still running
	var phase atomic.Int32
	flap := func(ev s.Event) {
		switch ev.GetTag() {
		case s.RemediationStarted:
			if phase.CompareAndSwap(0, 1) {
				prober.healthy.Store(true)
			}
		case s.Recovered:
			if phase.CompareAndSwap(1, 2) {
				prober.healthy.Store(false)
			}
		}
	}

	sup, err := s.NewSupervisor(
		"api",
		prober,
		remediator,
		s.WithCheckInterval(2*time.Millisecond),
		s.WithFailureThreshold(2),
		s.WithCooldownInterval(0),
		s.WithAlertNotifier(alerts),
		s.WithNotifier(flap),
		s.WithNotifier(evManager.EventCollector(evCtx)),
	)
	require.NoError(t, err)

	stop := runSupervisor(t, sup)
	it := evManager.Iterator()
	waitFor(t, &it, stest.RemediationDeferred())
	close(remediator.release)
	waitFor(t, &it, stest.RemediationDiscarded())
	waitFor(t, &it, stest.RemediationStarted())
	stop()

	evs := evManager.Snapshot()
	smtest.AssertPartialMatch(t, evs, []stest.EventP{
		stest.ThresholdBreached(),
		stest.RemediationStarted(),
		stest.Recovered(),
		stest.ThresholdBreached(),
		stest.RemediationDeferred(),
		stest.RemediationDiscarded(),
		stest.RemediationStarted(),
	})
	// reported once per attempt, not on every critical probe
	smtest.AssertCount(t, evs, stest.RemediationDeferred(), 1)

	for _, ev := range evs {
		if ev.GetTag() == s.RemediationDeferred {
			assert.ErrorIs(t, ev.Err(), s.ErrRemediationInFlight)
		}
	}
	assert.GreaterOrEqual(t, remediator.calls.Load(), int32(2))
}

func TestFailedRemediationPollsAtCooldown(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	cooldown := 20 * time.Millisecond

	evManager, evCtx, stopEvents := newEventManager()
	defer stopEvents()
	alerts := &alertRecorder{}
	remediator := &countingRemediator{outcome: restartFailed()}

	sup, err := s.NewSupervisor(
		"api",
		&healthSwitch{},
		remediator,
		s.WithCheckInterval(time.Millisecond),
		s.WithFailureThreshold(1),
		s.WithCooldownInterval(cooldown),
		s.WithMaxCooldownInterval(4*cooldown),
		s.WithAlertNotifier(alerts),
		s.WithNotifier(evManager.EventCollector(evCtx)),
	)
	require.NoError(t, err)

	stop := runSupervisor(t, sup)
	it := evManager.Iterator()
	waitFor(t, &it, stest.RemediationFailed())
	waitFor(t, &it, stest.RemediationFailed())
	waitFor(t, &it, stest.ProbeFailed())
	stop()

	evs := evManager.Snapshot()

	// the probe following each failed remediation waits for the cooldown,
	// which doubles on consecutive failures
	var gaps []time.Duration
	for i, ev := range evs {
		if ev.GetTag() != s.RemediationFailed {
			continue
		}
		assert.Equal(t, s.Cooldown, ev.GetMode())
		assert.Error(t, ev.Err())
		for _, next := range evs[i+1:] {
			if next.GetTag() == s.ProbeFailed {
				gaps = append(gaps, next.GetCreated().Sub(ev.GetCreated()))
				break
			}
		}
	}
	require.GreaterOrEqual(t, len(gaps), 2)
	assert.GreaterOrEqual(t, gaps[0], cooldown)
	assert.GreaterOrEqual(t, gaps[1], 2*cooldown)

	kinds := alerts.Kinds()
	require.GreaterOrEqual(t, len(kinds), 3)
	assert.Equal(t, []n.Kind{n.ThresholdBreached, n.RestartFailed, n.RestartFailed}, kinds[:3])
}

func TestShutdownWaitsForRemediationInFlight(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	evManager, evCtx, stopEvents := newEventManager()
	defer stopEvents()
	remediator := &countingRemediator{
		outcome: restartOK(),
		delay:   20 * time.Millisecond,
		ctxErrs: make(chan error, 1),
	}

	sup, err := s.NewSupervisor(
		"api",
		&healthSwitch{},
		remediator,
		s.WithCheckInterval(time.Millisecond),
		s.WithFailureThreshold(1),
		s.WithCooldownInterval(time.Hour),
		s.WithNotifier(evManager.EventCollector(evCtx)),
	)
	require.NoError(t, err)

	stop := runSupervisor(t, sup)
	it := evManager.Iterator()
	waitFor(t, &it, stest.RemediationStarted())
	stop()

	assert.NoError(t, <-remediator.ctxErrs, "remediation context must outlive shutdown")

	evs := evManager.Snapshot()
	require.GreaterOrEqual(t, len(evs), 2)
	smtest.AssertExactMatch(t, evs[len(evs)-2:], []stest.EventP{
		stest.RemediationSucceeded(),
		stest.SupervisorTerminated(),
	})
}

func TestHealthcheckMonitorFollowsSupervisor(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	evManager, evCtx, stopEvents := newEventManager()
	defer stopEvents()
	monitor := s.NewHealthcheckMonitor()
	prober := &healthSwitch{}
	remediator := &countingRemediator{
		outcome: restartOK(),
		release: make(chan struct{}),
	}

	sup, err := s.NewSupervisor(
		"api",
		prober,
		remediator,
		s.WithCheckInterval(2*time.Millisecond),
		s.WithFailureThreshold(2),
		s.WithNotifier(monitor.HandleEvent),
		s.WithNotifier(evManager.EventCollector(evCtx)),
	)
	require.NoError(t, err)

	assert.False(t, monitor.IsHealthy(), "not running yet")

	stop := runSupervisor(t, sup)
	it := evManager.Iterator()
	waitFor(t, &it, stest.RemediationStarted())

	report := monitor.GetHealthReport()
	assert.Equal(t, "api", report.ServiceName)
	assert.True(t, report.Running)
	assert.Equal(t, s.Remediating.String(), report.Mode)
	assert.Equal(t, h.Critical.String(), report.Transition)
	assert.GreaterOrEqual(t, report.ConsecutiveFailures, uint32(2))
	assert.False(t, report.LastRemediation.IsZero())
	assert.Equal(t, "unexpected status 500", report.LastProbeError)
	assert.False(t, monitor.IsHealthy())

	prober.healthy.Store(true)
	waitFor(t, &it, stest.Recovered())
	assert.True(t, monitor.IsHealthy())
	close(remediator.release)
	waitFor(t, &it, stest.RemediationDiscarded())

	stop()
	assert.False(t, monitor.GetHealthReport().Running)
	assert.False(t, monitor.IsHealthy())
}

func TestNewSupervisorValidatesSettings(t *testing.T) {
	prober := &healthSwitch{}
	remediator := &countingRemediator{}

	type testCase struct {
		name        string
		serviceName string
		prober      p.Prober
		remediator  r.Remediator
		opts        []s.Opt
		errCount    int
	}

	testCases := []testCase{
		{
			name:        "missing service name",
			serviceName: "",
			prober:      prober,
			remediator:  remediator,
			errCount:    1,
		},
		{
			name:        "missing collaborators",
			serviceName: "api",
			errCount:    2,
		},
		{
			name:        "zero check interval",
			serviceName: "api",
			prober:      prober,
			remediator:  remediator,
			opts:        []s.Opt{s.WithCheckInterval(0)},
			errCount:    1,
		},
		{
			name:        "zero threshold and negative cooldown",
			serviceName: "api",
			prober:      prober,
			remediator:  remediator,
			opts: []s.Opt{
				s.WithFailureThreshold(0),
				s.WithCooldownInterval(-time.Second),
			},
			errCount: 2,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sup, err := s.NewSupervisor(tc.serviceName, tc.prober, tc.remediator, tc.opts...)
			assert.Nil(t, sup)

			var settingsErr *s.SupervisorSettingsError
			require.True(t, errors.As(err, &settingsErr))
			assert.Len(t, settingsErr.Unwrap(), tc.errCount)
			assert.Equal(t, tc.serviceName, settingsErr.KVs()["supervisor.service"])
		})
	}

	t.Run("valid settings", func(t *testing.T) {
		sup, err := s.NewSupervisor("api", prober, remediator)
		require.NoError(t, err)
		assert.Equal(t, "api", sup.GetServiceName())
	})
}
