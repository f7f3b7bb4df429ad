package s

import (
	"time"

	"github.com/capatazlib/go-medic/internal/n"
)

const (
	// DefaultCheckInterval is the time between probes while probing
	DefaultCheckInterval = 10 * time.Second
	// DefaultFailureThreshold is the number of consecutive failed probes that
	// trigger a remediation
	DefaultFailureThreshold = 3
	// DefaultCooldownInterval is the minimum time between remediation attempts
	// and the poll interval after a failed remediation
	DefaultCooldownInterval = 60 * time.Second
)

// AlertNotifier receives alerts from the supervisor; implementations must
// return immediately
type AlertNotifier interface {
	Notify(n.Alert)
}

// AlertNotifierFn is a function that implements AlertNotifier
type AlertNotifierFn func(n.Alert)

// Notify calls the wrapped function
func (fn AlertNotifierFn) Notify(a n.Alert) {
	fn(a)
}

// supervisorSettings holds the tunables of a Supervisor
type supervisorSettings struct {
	checkInterval       time.Duration
	failureThreshold    uint32
	cooldownInterval    time.Duration
	maxCooldownInterval time.Duration
	eventNotifiers      EventNotifiers
	alertNotifier       AlertNotifier
	now                 func() time.Time
}

// Opt is used to configure a Supervisor
type Opt func(*supervisorSettings)

// WithCheckInterval sets the time between probes (defaults to 10 seconds)
func WithCheckInterval(interval time.Duration) Opt {
	return func(settings *supervisorSettings) {
		settings.checkInterval = interval
	}
}

// WithFailureThreshold sets how many consecutive failed probes trigger a
// remediation (defaults to 3)
func WithFailureThreshold(threshold uint32) Opt {
	return func(settings *supervisorSettings) {
		settings.failureThreshold = threshold
	}
}

// WithCooldownInterval sets the minimum time between remediation attempts,
// which is also the poll interval after a failed remediation (defaults to 60
// seconds)
func WithCooldownInterval(interval time.Duration) Opt {
	return func(settings *supervisorSettings) {
		settings.cooldownInterval = interval
	}
}

// WithMaxCooldownInterval allows the poll interval after failed remediations
// to double on every consecutive failure up to the given duration. When not
// set, the poll interval stays at the cooldown interval.
func WithMaxCooldownInterval(interval time.Duration) Opt {
	return func(settings *supervisorSettings) {
		settings.maxCooldownInterval = interval
	}
}

// WithNotifier adds an EventNotifier that receives every supervisor Event
func WithNotifier(en EventNotifier) Opt {
	return func(settings *supervisorSettings) {
		settings.eventNotifiers = append(settings.eventNotifiers, en)
	}
}

// WithAlertNotifier sets where operator alerts get sent to
func WithAlertNotifier(an AlertNotifier) Opt {
	return func(settings *supervisorSettings) {
		settings.alertNotifier = an
	}
}

// WithClock overrides the function used to get the current time
func WithClock(now func() time.Time) Opt {
	return func(settings *supervisorSettings) {
		settings.now = now
	}
}
