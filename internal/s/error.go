package s

import (
	"errors"
	"fmt"
	"strings"

	"github.com/capatazlib/go-medic/internal/p"
)

// ErrRemediationInFlight is reported on RemediationDeferred events when a
// trigger is held back by a remediation that is still running
var ErrRemediationInFlight = errors.New("previous remediation still in flight")

// ErrKVs is an utility interface used to get key-values out of medic errors
type ErrKVs interface {
	KVs() map[string]interface{}
}

// SupervisorSettingsError is reported when a Supervisor is built with invalid
// settings
type SupervisorSettingsError struct {
	serviceName string
	errs        []error
}

func (err *SupervisorSettingsError) Error() string {
	msgs := make([]string, 0, len(err.errs))
	for _, e := range err.errs {
		msgs = append(msgs, e.Error())
	}
	return fmt.Sprintf("invalid supervisor settings: %s", strings.Join(msgs, "; "))
}

// Unwrap returns the individual settings errors
func (err *SupervisorSettingsError) Unwrap() []error {
	return err.errs
}

// KVs returns a metadata map for structured logging
func (err *SupervisorSettingsError) KVs() map[string]interface{} {
	acc := make(map[string]interface{})
	acc["supervisor.service"] = err.serviceName
	for i, e := range err.errs {
		acc[fmt.Sprintf("supervisor.settings.%d.error", i)] = e.Error()
	}
	return acc
}

// ProbeError is the error attached to ProbeFailed events
type ProbeError struct {
	result p.Result
}

// GetResult returns the failed probe result
func (err *ProbeError) GetResult() p.Result {
	return err.result
}

func (err *ProbeError) Error() string {
	if err.result.HasStatus() {
		return fmt.Sprintf("probe failed with status %d: %s", err.result.StatusCode, err.result.Err)
	}
	return fmt.Sprintf("probe failed: %s", err.result.Err)
}

// KVs returns a metadata map for structured logging
func (err *ProbeError) KVs() map[string]interface{} {
	acc := map[string]interface{}{
		"probe.latency": err.result.Latency.String(),
	}
	if err.result.HasStatus() {
		acc["probe.status"] = err.result.StatusCode
	}
	return acc
}

// probeError builds the error for a failed probe result
func probeError(result p.Result) error {
	if result.Success {
		return nil
	}
	if result.Err == "" {
		result.Err = "unknown error"
	}
	return &ProbeError{result: result}
}

// IsProbeError returns true if the given error was reported by a failed probe
func IsProbeError(err error) bool {
	var perr *ProbeError
	return errors.As(err, &perr)
}
