package smtest

import (
	"context"
	"sync"
	"time"
)

// eventLog is the append-only buffer shared by an EventManager and its
// iterators. Readers block on cond until the index they want exists, the log
// is closed, or their deadline passes.
type eventLog[A any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	evs    []A
	closed bool
}

func newEventLog[A any]() *eventLog[A] {
	log := &eventLog[A]{evs: make([]A, 0, 256)}
	log.cond = sync.NewCond(&log.mu)
	return log
}

func (log *eventLog[A]) append(ev A) {
	log.mu.Lock()
	defer log.mu.Unlock()
	if log.closed {
		return
	}
	log.evs = append(log.evs, ev)
	log.cond.Broadcast()
}

func (log *eventLog[A]) close() {
	log.mu.Lock()
	defer log.mu.Unlock()
	log.closed = true
	log.cond.Broadcast()
}

func (log *eventLog[A]) snapshot() []A {
	log.mu.Lock()
	defer log.mu.Unlock()
	return append([]A(nil), log.evs...)
}

// at returns the event on index ix. A zero deadline waits until the event
// arrives or the log is closed.
func (log *eventLog[A]) at(ix int, deadline time.Time) (A, bool) {
	if !deadline.IsZero() {
		timer := time.AfterFunc(time.Until(deadline), func() {
			log.mu.Lock()
			log.cond.Broadcast()
			log.mu.Unlock()
		})
		defer timer.Stop()
	}

	log.mu.Lock()
	defer log.mu.Unlock()
	for ix >= len(log.evs) && !log.closed {
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			break
		}
		log.cond.Wait()
	}
	if ix >= len(log.evs) {
		var zero A
		return zero, false
	}
	return log.evs[ix], true
}

// EventManager collects the events of a state machine under test and lets a
// test goroutine block until particular events happen
type EventManager[A any] struct {
	log *eventLog[A]
}

// NewEventManager returns an EventManager with an empty event log
func NewEventManager[A any]() EventManager[A] {
	return EventManager[A]{log: newEventLog[A]()}
}

// StartCollector releases every waiting iterator once the given context is
// done; events reported after that are dropped
func (em EventManager[A]) StartCollector(ctx context.Context) {
	go func() {
		<-ctx.Done()
		em.log.close()
	}()
}

// EventCollector returns the notifier to register on the state machine. The
// event is stored before the notifier returns, so the log keeps the emission
// order of a single emitting goroutine.
func (em EventManager[A]) EventCollector(ctx context.Context) func(ev A) {
	return func(ev A) {
		if ctx.Err() != nil {
			return
		}
		em.log.append(ev)
	}
}

// Snapshot returns a copy of every event collected so far
func (em EventManager[A]) Snapshot() []A {
	return em.log.snapshot()
}

// GetEventIx returns the event on the given index, waiting for it if it was
// not emitted yet. It returns false when the collector stops first.
func (em EventManager[A]) GetEventIx(evIx int) (A, bool) {
	return em.log.at(evIx, time.Time{})
}

// Iterator returns a cursor positioned on the first collected event
func (em EventManager[A]) Iterator() EventIterator[A] {
	return EventIterator[A]{log: em.log}
}

// EventIterator is a cursor over the events of an EventManager. Every method
// consumes the events it inspects.
type EventIterator[A any] struct {
	ix  int
	log *eventLog[A]
}

// scan consumes events until one matches pred, returning the events that did
// not match before it
func (ei *EventIterator[A]) scan(pred EventP[A], deadline time.Time) ([]A, bool) {
	var skipped []A
	for {
		ev, ok := ei.log.at(ei.ix, deadline)
		if !ok {
			return skipped, false
		}
		ei.ix++
		if pred.Call(ev) {
			return skipped, true
		}
		skipped = append(skipped, ev)
	}
}

// WaitTill blocks until an event matches the given predicate
func (ei *EventIterator[A]) WaitTill(pred EventP[A]) {
	_, _ = ei.scan(pred, time.Time{})
}

// WaitTillTimeout is like WaitTill, but it gives up after the given duration.
// It returns false if no event matched.
func (ei *EventIterator[A]) WaitTillTimeout(pred EventP[A], timeout time.Duration) bool {
	_, matched := ei.scan(pred, time.Now().Add(timeout))
	return matched
}

// TakeTill returns the events before the first one that matches the given
// predicate; the matching event is consumed but not returned
func (ei *EventIterator[A]) TakeTill(pred EventP[A]) []A {
	skipped, _ := ei.scan(pred, time.Time{})
	if skipped == nil {
		return []A{}
	}
	return skipped
}
