package smtest

import (
	"strings"
)

// EventP is a predicate over the events emitted by a state machine. String
// is rendered on assertion failures.
type EventP[A any] interface {
	Call(A) bool
	String() string
}

// PredFn lifts a plain function into an EventP; Label is what String returns
type PredFn[A any] struct {
	Label string
	Fn    func(A) bool
}

// Call executes the wrapped function
func (p PredFn[A]) Call(ev A) bool {
	return p.Fn(ev)
}

func (p PredFn[A]) String() string {
	return p.Label
}

// AndP matches an event when every one of its predicates does; an empty AndP
// matches everything
type AndP[A any] struct {
	Preds []EventP[A]
}

// Call stops at the first predicate that does not match
func (p AndP[A]) Call(ev A) bool {
	for _, pred := range p.Preds {
		if !pred.Call(ev) {
			return false
		}
	}
	return true
}

func (p AndP[A]) String() string {
	return joinPreds(p.Preds, " && ")
}

// OrP matches an event when any of its predicates does; an empty OrP matches
// everything
type OrP[A any] struct {
	Preds []EventP[A]
}

// Call stops at the first predicate that matches
func (p OrP[A]) Call(ev A) bool {
	if len(p.Preds) == 0 {
		return true
	}
	for _, pred := range p.Preds {
		if pred.Call(ev) {
			return true
		}
	}
	return false
}

func (p OrP[A]) String() string {
	return joinPreds(p.Preds, " || ")
}

// NotP negates another predicate
type NotP[A any] struct {
	Pred EventP[A]
}

// Call returns the opposite of the wrapped predicate
func (p NotP[A]) Call(ev A) bool {
	return !p.Pred.Call(ev)
}

func (p NotP[A]) String() string {
	return "!(" + p.Pred.String() + ")"
}

func joinPreds[A any](preds []EventP[A], sep string) string {
	parts := make([]string, 0, len(preds))
	for _, pred := range preds {
		parts = append(parts, pred.String())
	}
	if len(parts) > 1 {
		return "(" + strings.Join(parts, sep) + ")"
	}
	return strings.Join(parts, sep)
}
