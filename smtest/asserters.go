package smtest

import (
	"fmt"
	"strings"
	"testing"
)

// renderEvents lists the given events, one per line, with their position
func renderEvents[A fmt.Stringer](evs []A) string {
	var builder strings.Builder
	for i, ev := range evs {
		fmt.Fprintf(&builder, "  %3d: %s\n", i, ev.String())
	}
	return builder.String()
}

// matchExact returns an error describing the first position where the
// events and the predicates disagree
func matchExact[A fmt.Stringer](preds []EventP[A], evs []A) error {
	for i, pred := range preds {
		if i >= len(evs) {
			return fmt.Errorf(
				"exact match: ran out of events at position %d (want %d, got %d)\nnext criteria: %s\nevents:\n%s",
				i, len(preds), len(evs), pred.String(), renderEvents(evs),
			)
		}
		if !pred.Call(evs[i]) {
			return fmt.Errorf(
				"exact match: position %d did not match\ncriteria: %s\nevent: %s\nevents:\n%s",
				i, pred.String(), evs[i].String(), renderEvents(evs),
			)
		}
	}
	if len(evs) > len(preds) {
		return fmt.Errorf(
			"exact match: %d unexpected trailing event(s) (want %d, got %d)\nevents:\n%s",
			len(evs)-len(preds), len(preds), len(evs), renderEvents(evs),
		)
	}
	return nil
}

// AssertExactMatch checks that the events match the predicates one to one
// and in order
func AssertExactMatch[A fmt.Stringer](t *testing.T, evs []A, preds []EventP[A]) {
	t.Helper()
	if err := matchExact(preds, evs); err != nil {
		t.Error(err)
	}
}

// matchInOrder walks the events once, consuming a predicate every time the
// current event satisfies it. It returns the index of the first predicate left
// unmatched, or len(preds) when every predicate found its event.
func matchInOrder[A any](preds []EventP[A], evs []A) int {
	next := 0
	for _, ev := range evs {
		if next == len(preds) {
			break
		}
		if preds[next].Call(ev) {
			next++
		}
	}
	return next
}

// AssertPartialMatch checks that the predicates find matching events in
// order. Events that match no predicate are skipped, which keeps assertions
// stable when a state machine interleaves events the test does not care
// about (e.g. extra probes while a remediation runs).
func AssertPartialMatch[A fmt.Stringer](t *testing.T, evs []A, preds []EventP[A]) {
	t.Helper()
	matched := matchInOrder(preds, evs)
	if matched == len(preds) {
		return
	}
	pending := make([]string, 0, len(preds)-matched)
	for i, pred := range preds[matched:] {
		pending = append(pending, fmt.Sprintf("  %3d: %s", matched+i, pred.String()))
	}
	t.Errorf(
		"partial match: %d of %d criteria matched; pending:\n%s\nevents:\n%s",
		matched,
		len(preds),
		strings.Join(pending, "\n"),
		renderEvents(evs),
	)
}

// CountMatches returns how many of the given events match the predicate
func CountMatches[A any](evs []A, pred EventP[A]) int {
	count := 0
	for _, ev := range evs {
		if pred.Call(ev) {
			count++
		}
	}
	return count
}

// AssertCount checks that exactly want events match the given predicate
func AssertCount[A fmt.Stringer](t *testing.T, evs []A, pred EventP[A], want int) {
	t.Helper()
	if got := CountMatches(evs, pred); got != want {
		t.Errorf(
			"expecting %d event(s) matching %s, got %d\nevents:\n%s",
			want, pred.String(), got, renderEvents(evs),
		)
	}
}
