package n

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// deliveryAttempts is the number of times a sink is called for a single alert
// (one immediate retry)
const deliveryAttempts = 2

// Route binds a named Sink to the criteria of the alerts it must receive
type Route struct {
	Name     string
	Sink     Sink
	Criteria AlertCriteria
}

// dispatcherSettings contains settings and callbacks for a Dispatcher
type dispatcherSettings struct {
	queueSize       uint
	deliveryTimeout time.Duration
	recipient       string

	onAlertDropped    func(string, Alert)
	onDeliveryFailure func(error)
	onDelivered       func(string, Alert)
}

// DispatcherOpt allows clients to tweak the behavior of a Dispatcher
type DispatcherOpt func(*dispatcherSettings)

// WithQueueSize sets how many alerts may be waiting for delivery on each sink
// before new ones get dropped (defaults to 64)
func WithQueueSize(size uint) DispatcherOpt {
	return func(settings *dispatcherSettings) {
		if size > 0 {
			settings.queueSize = size
		}
	}
}

// WithDeliveryTimeout sets the maximum time a single delivery attempt may take
// (defaults to 10 seconds)
func WithDeliveryTimeout(ts time.Duration) DispatcherOpt {
	return func(settings *dispatcherSettings) {
		if ts > 0 {
			settings.deliveryTimeout = ts
		}
	}
}

// WithRecipient sets the recipient of every rendered message
func WithRecipient(recipient string) DispatcherOpt {
	return func(settings *dispatcherSettings) {
		settings.recipient = recipient
	}
}

// WithOnAlertDropped sets a callback that gets executed when a sink queue is
// full and an alert is discarded
func WithOnAlertDropped(cb func(string, Alert)) DispatcherOpt {
	return func(settings *dispatcherSettings) {
		settings.onAlertDropped = cb
	}
}

// WithOnDeliveryFailure sets a callback that gets executed with a
// *DeliveryError when an alert could not be delivered after retrying
func WithOnDeliveryFailure(cb func(error)) DispatcherOpt {
	return func(settings *dispatcherSettings) {
		settings.onDeliveryFailure = cb
	}
}

// WithOnDelivered sets a callback that gets executed after a sink delivered an
// alert
func WithOnDelivered(cb func(string, Alert)) DispatcherOpt {
	return func(settings *dispatcherSettings) {
		settings.onDelivered = cb
	}
}

// WithLogger reports dropped alerts and delivery failures on the given logger
func WithLogger(log logrus.FieldLogger) DispatcherOpt {
	return func(settings *dispatcherSettings) {
		settings.onAlertDropped = func(sinkName string, a Alert) {
			log.WithFields(logrus.Fields{
				"sink":     sinkName,
				"alert_id": a.ID.String(),
				"kind":     a.Kind.String(),
			}).Error("alert queue full, alert dropped")
		}
		settings.onDeliveryFailure = func(err error) {
			log.WithError(err).Error("alert delivery failed")
		}
		settings.onDelivered = func(sinkName string, a Alert) {
			log.WithFields(logrus.Fields{
				"sink":     sinkName,
				"alert_id": a.ID.String(),
				"kind":     a.Kind.String(),
			}).Debug("alert delivered")
		}
	}
}

// sinkWorker owns the queue of a single route
type sinkWorker struct {
	route Route
	ch    chan Alert
}

// Dispatcher hands alerts to sinks on background goroutines. Notify never
// blocks: every sink gets a bounded queue, and a slow or failing sink cannot
// stall its caller nor the other sinks.
type Dispatcher struct {
	settings dispatcherSettings
	workers  []sinkWorker

	mu     sync.RWMutex
	closed bool

	deliveryCtx    context.Context
	cancelDelivery context.CancelFunc
	wg             sync.WaitGroup
}

// NewDispatcher starts one delivery worker per route
func NewDispatcher(routes []Route, opts ...DispatcherOpt) *Dispatcher {
	settings := dispatcherSettings{
		queueSize:         64,
		deliveryTimeout:   10 * time.Second,
		onAlertDropped:    func(string, Alert) {},
		onDeliveryFailure: func(error) {},
		onDelivered:       func(string, Alert) {},
	}
	for _, optFn := range opts {
		optFn(&settings)
	}

	deliveryCtx, cancelDelivery := context.WithCancel(context.Background())
	d := &Dispatcher{
		settings:       settings,
		workers:        make([]sinkWorker, 0, len(routes)),
		deliveryCtx:    deliveryCtx,
		cancelDelivery: cancelDelivery,
	}

	for _, route := range routes {
		if route.Criteria == nil {
			route.Criteria = EAny
		}
		w := sinkWorker{route: route, ch: make(chan Alert, settings.queueSize)}
		d.workers = append(d.workers, w)
		d.wg.Add(1)
		go d.runWorker(w)
	}

	return d
}

// runWorker delivers alerts from the worker queue until it gets closed
func (d *Dispatcher) runWorker(w sinkWorker) {
	defer d.wg.Done()
	for a := range w.ch {
		d.deliver(w.route, a)
	}
}

// deliver calls the sink with one immediate retry, and reports the failure
// once the alert is dropped
func (d *Dispatcher) deliver(route Route, a Alert) {
	msg := Render(a, d.settings.recipient)

	var lastErr error
	attempts := 0
	for attempts < deliveryAttempts {
		if d.deliveryCtx.Err() != nil {
			if lastErr == nil {
				lastErr = d.deliveryCtx.Err()
			}
			break
		}
		attempts++
		lastErr = d.attempt(route.Sink, msg)
		if lastErr == nil {
			d.settings.onDelivered(route.Name, a)
			return
		}
	}

	d.settings.onDeliveryFailure(&DeliveryError{
		sinkName: route.Name,
		alert:    a,
		attempts: attempts,
		err:      lastErr,
	})
}

// attempt runs a single bounded delivery; sink panics are reported as errors
func (d *Dispatcher) attempt(sink Sink, msg Message) (err error) {
	ctx, cancel := context.WithTimeout(d.deliveryCtx, d.settings.deliveryTimeout)
	defer cancel()
	defer func() {
		if rec := recover(); rec != nil {
			err = &panicError{value: rec}
		}
	}()
	return sink.Deliver(ctx, msg)
}

// Notify enqueues the alert on every sink whose criteria matches it. When a
// sink queue is full the alert is dropped for that sink. Alerts sent after
// Stop are ignored.
func (d *Dispatcher) Notify(a Alert) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	for _, w := range d.workers {
		if !w.route.Criteria(a) {
			continue
		}
		select {
		case w.ch <- a:
		default:
			d.settings.onAlertDropped(w.route.Name, a)
		}
	}
}

// Stop stops accepting alerts and waits for queued alerts to be delivered. If
// the given context is done first, pending deliveries are cancelled and the
// context error is returned.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		for _, w := range d.workers {
			close(w.ch)
		}
	}
	d.mu.Unlock()

	doneCh := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(doneCh)
	}()

	select {
	case <-doneCh:
		d.cancelDelivery()
		return nil
	case <-ctx.Done():
		d.cancelDelivery()
		<-doneCh
		return ctx.Err()
	}
}

// panicError wraps a value recovered from a panicking sink
type panicError struct {
	value interface{}
}

func (err *panicError) Error() string {
	return fmt.Sprintf("sink panicked: %v", err.value)
}
