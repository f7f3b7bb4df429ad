package r

import (
	"errors"
	"fmt"
)

var (
	// ErrToolMissing is reported when the remediation binary is not installed
	ErrToolMissing = errors.New("remediation tool not found")
	// ErrTimeout is reported when a remediation did not finish within its
	// timeout
	ErrTimeout = errors.New("remediation timed out")
)

// RemediationError is the error reported when a remediation attempt fails
type RemediationError struct {
	engine   Engine
	target   string
	exitCode int
	err      error
}

// GetEngine returns the Engine that failed
func (err *RemediationError) GetEngine() Engine {
	return err.engine
}

// GetTarget returns the name of the container or deployment being remediated
func (err *RemediationError) GetTarget() string {
	return err.target
}

// GetExitCode returns the exit code of the remediation command, zero when the
// command never ran or was not a command
func (err *RemediationError) GetExitCode() int {
	return err.exitCode
}

func (err *RemediationError) Error() string {
	if err.exitCode != 0 {
		return fmt.Sprintf(
			"%s of %q failed with exit code %d",
			err.engine, err.target, err.exitCode,
		)
	}
	if err.target == "" {
		return fmt.Sprintf("%s failed: %v", err.engine, err.err)
	}
	return fmt.Sprintf("%s of %q failed: %v", err.engine, err.target, err.err)
}

// Unwrap returns the error that caused the remediation failure
func (err *RemediationError) Unwrap() error {
	return err.err
}

// Is allows errors.Is(err, &RemediationError{}) comparisons
func (err *RemediationError) Is(target error) bool {
	_, ok := target.(*RemediationError)
	return ok
}

// KVs returns a metadata map for structured logging
func (err *RemediationError) KVs() map[string]interface{} {
	acc := map[string]interface{}{
		"remediation.engine": err.engine.String(),
	}
	if err.target != "" {
		acc["remediation.target"] = err.target
	}
	if err.exitCode != 0 {
		acc["remediation.exit_code"] = err.exitCode
	}
	if err.err != nil {
		acc["remediation.cause"] = err.err.Error()
	}
	return acc
}
