package n_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/capatazlib/go-medic/internal/n"
)

// recordingSink stores every message it receives
type recordingSink struct {
	mu   sync.Mutex
	msgs []n.Message
}

func (rs *recordingSink) Deliver(_ context.Context, msg n.Message) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.msgs = append(rs.msgs, msg)
	return nil
}

func (rs *recordingSink) messages() []n.Message {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return append(rs.msgs[:0:0], rs.msgs...)
}

func newAlert(kind n.Kind) n.Alert {
	return n.NewAlert(kind, "web", "detail", time.Now())
}

func TestDispatcherDeliversToAllRoutes(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	sink1 := &recordingSink{}
	sink2 := &recordingSink{}
	d := n.NewDispatcher(
		[]n.Route{
			{Name: "sink1", Sink: sink1},
			{Name: "sink2", Sink: sink2},
		},
		n.WithRecipient("ops@example.com"),
	)

	d.Notify(newAlert(n.ThresholdBreached))
	d.Notify(newAlert(n.Restarted))
	require.NoError(t, d.Stop(context.TODO()))

	for _, sink := range []*recordingSink{sink1, sink2} {
		msgs := sink.messages()
		require.Len(t, msgs, 2)
		assert.Equal(t, "ops@example.com", msgs[0].Recipient)
		assert.Contains(t, msgs[0].Subject, "web is unhealthy")
		assert.Contains(t, msgs[1].Subject, "web was restarted")
	}
}

func TestDispatcherRoutesByCriteria(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	remediations := &recordingSink{}
	everything := &recordingSink{}
	d := n.NewDispatcher([]n.Route{
		{Name: "remediations", Sink: remediations, Criteria: n.EIsRemediation},
		{Name: "everything", Sink: everything},
	})

	d.Notify(newAlert(n.ThresholdBreached))
	d.Notify(newAlert(n.RestartFailed))
	d.Notify(newAlert(n.Recovered))
	require.NoError(t, d.Stop(context.TODO()))

	assert.Len(t, remediations.messages(), 1)
	assert.Len(t, everything.messages(), 3)
}

func TestDispatcherRetriesOnceThenDrops(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var calls int32
	failing := n.SinkFn(func(context.Context, n.Message) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("smtp unreachable")
	})

	var failures []error
	var mu sync.Mutex
	d := n.NewDispatcher(
		[]n.Route{{Name: "mail", Sink: failing}},
		n.WithOnDeliveryFailure(func(err error) {
			mu.Lock()
			defer mu.Unlock()
			failures = append(failures, err)
		}),
	)

	alert := newAlert(n.RestartFailed)
	d.Notify(alert)
	require.NoError(t, d.Stop(context.TODO()))

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	require.Len(t, failures, 1)

	var derr *n.DeliveryError
	require.True(t, errors.As(failures[0], &derr))
	assert.Equal(t, "mail", derr.GetSinkName())
	assert.Equal(t, alert.ID, derr.GetAlert().ID)
	assert.Contains(t, derr.Error(), "smtp unreachable")
}

func TestDispatcherRetrySucceeds(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var calls int32
	flaky := n.SinkFn(func(context.Context, n.Message) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			return errors.New("transient")
		}
		return nil
	})
	var delivered int32
	var failed int32
	d := n.NewDispatcher(
		[]n.Route{{Name: "webhook", Sink: flaky}},
		n.WithOnDelivered(func(string, n.Alert) { atomic.AddInt32(&delivered, 1) }),
		n.WithOnDeliveryFailure(func(error) { atomic.AddInt32(&failed, 1) }),
	)

	d.Notify(newAlert(n.Recovered))
	require.NoError(t, d.Stop(context.TODO()))

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&delivered))
	assert.Equal(t, int32(0), atomic.LoadInt32(&failed))
}

func TestDispatcherNotifyNeverBlocks(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	releaseCh := make(chan struct{})
	slow := n.SinkFn(func(ctx context.Context, _ n.Message) error {
		select {
		case <-releaseCh:
		case <-ctx.Done():
		}
		return nil
	})

	var dropped int32
	d := n.NewDispatcher(
		[]n.Route{{Name: "slow", Sink: slow}},
		n.WithQueueSize(1),
		n.WithOnAlertDropped(func(string, n.Alert) { atomic.AddInt32(&dropped, 1) }),
	)

	start := time.Now()
	for i := 0; i < 10; i++ {
		d.Notify(newAlert(n.ThresholdBreached))
	}
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	// one alert in flight, one queued, the rest dropped
	assert.GreaterOrEqual(t, atomic.LoadInt32(&dropped), int32(8))

	close(releaseCh)
	require.NoError(t, d.Stop(context.TODO()))
}

func TestDispatcherSinkPanic(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	panicking := n.SinkFn(func(context.Context, n.Message) error {
		panic("sink is broken")
	})
	var failed int32
	d := n.NewDispatcher(
		[]n.Route{{Name: "broken", Sink: panicking}},
		n.WithOnDeliveryFailure(func(err error) {
			if assert.Contains(t, err.Error(), "sink is broken") {
				atomic.AddInt32(&failed, 1)
			}
		}),
	)

	d.Notify(newAlert(n.Recovered))
	require.NoError(t, d.Stop(context.TODO()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&failed))
}

func TestDispatcherStopTimeout(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	stuck := n.SinkFn(func(ctx context.Context, _ n.Message) error {
		<-ctx.Done()
		return ctx.Err()
	})
	d := n.NewDispatcher(
		[]n.Route{{Name: "stuck", Sink: stuck}},
		n.WithDeliveryTimeout(time.Hour),
	)
	d.Notify(newAlert(n.ThresholdBreached))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := d.Stop(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	// alerts after stop are ignored
	d.Notify(newAlert(n.Recovered))
}
