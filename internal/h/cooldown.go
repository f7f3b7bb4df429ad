package h

import (
	"time"
)

// cooldownResult indicates the result of a cooldown check
type cooldownResult uint32

const (
	// allowRemediation indicates a remediation may run now
	allowRemediation cooldownResult = iota
	// deferRemediation indicates the last attempt is too recent
	deferRemediation
)

func (cr cooldownResult) String() string {
	switch cr {
	case allowRemediation:
		return "allowRemediation"
	case deferRemediation:
		return "deferRemediation"
	default:
		return "<Unknown cooldownResult>"
	}
}

// Cooldown enforces a minimum duration between remediation attempts
type Cooldown struct {
	Interval time.Duration
}

func (cd Cooldown) check(lastAttempt, now time.Time) cooldownResult {
	// when there was no attempt yet, or the interval is 0, never wait
	if lastAttempt.IsZero() || cd.Interval == 0 {
		return allowRemediation
	}
	if now.Sub(lastAttempt) < cd.Interval {
		return deferRemediation
	}
	return allowRemediation
}

// Allows returns true when a remediation attempt may start at the given time
func (cd Cooldown) Allows(lastAttempt, now time.Time) bool {
	return cd.check(lastAttempt, now) == allowRemediation
}

// Remaining returns how long until the next remediation is allowed
func (cd Cooldown) Remaining(lastAttempt, now time.Time) time.Duration {
	if cd.Allows(lastAttempt, now) {
		return 0
	}
	return cd.Interval - now.Sub(lastAttempt)
}

// Backoff computes the polling interval after consecutive remediation
// failures. The interval doubles on every failure starting at Base, and it
// never goes above Max.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// Duration returns the poll interval for the given number of consecutive
// remediation failures. Zero failures returns zero.
func (b Backoff) Duration(failureCount uint32) time.Duration {
	if b.Base == 0 || failureCount == 0 {
		return 0
	}
	max := b.Max
	if max < b.Base {
		max = b.Base
	}
	dur := b.Base
	for i := uint32(1); i < failureCount; i++ {
		dur *= 2
		if dur >= max {
			return max
		}
	}
	if dur > max {
		return max
	}
	return dur
}
