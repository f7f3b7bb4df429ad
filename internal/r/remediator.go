package r

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DefaultTimeout bounds a single remediation attempt when no timeout is given
const DefaultTimeout = 30 * time.Second

// Engine specifies the capability used to remediate a failing service. This
// is a closed set.
type Engine uint32

const (
	// ContainerRestart restarts a container through a container engine CLI
	ContainerRestart Engine = iota + 1
	// OrchestratorRollout triggers a rollout restart of a deployment on an
	// orchestrator
	OrchestratorRollout
)

// String returns a string representation of the current Engine
func (e Engine) String() string {
	switch e {
	case ContainerRestart:
		return "container-restart"
	case OrchestratorRollout:
		return "orchestrator-rollout"
	default:
		return "<Unknown>"
	}
}

// ParseEngine returns the Engine for the given configuration value
func ParseEngine(input string) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "container-restart", "container":
		return ContainerRestart, nil
	case "orchestrator-rollout", "orchestrator":
		return OrchestratorRollout, nil
	default:
		return 0, fmt.Errorf("unknown remediation engine %q", input)
	}
}

// Outcome is the result of a remediation attempt
type Outcome struct {
	Attempted bool
	Succeeded bool
	Engine    Engine
	Message   string
	Err       error
}

// String returns an string representation for the Outcome
func (o Outcome) String() string {
	var buffer strings.Builder
	buffer.WriteString("Outcome{")
	buffer.WriteString(fmt.Sprintf("engine: %s", o.Engine))
	buffer.WriteString(fmt.Sprintf(", attempted: %t", o.Attempted))
	buffer.WriteString(fmt.Sprintf(", succeeded: %t", o.Succeeded))
	if o.Message != "" {
		buffer.WriteString(fmt.Sprintf(", message: %q", o.Message))
	}
	buffer.WriteString("}")
	return buffer.String()
}

// Remediator executes a corrective action for a failing service. An
// implementation must never panic nor block longer than its own timeout; every
// failure is reported through the returned Outcome.
type Remediator interface {
	Engine() Engine
	Remediate(ctx context.Context, serviceName string) Outcome
}

// Func adapts a function into a Remediator of the given Engine
func Func(engine Engine, fn func(context.Context, string) Outcome) Remediator {
	return remediatorFn{engine: engine, fn: fn}
}

type remediatorFn struct {
	engine Engine
	fn     func(context.Context, string) Outcome
}

func (rf remediatorFn) Engine() Engine {
	return rf.engine
}

func (rf remediatorFn) Remediate(ctx context.Context, serviceName string) Outcome {
	return rf.fn(ctx, serviceName)
}

// failedOutcome builds an Outcome out of a remediation error
func failedOutcome(engine Engine, attempted bool, output string, err error) Outcome {
	msg := err.Error()
	if output != "" {
		msg = fmt.Sprintf("%s: %s", msg, output)
	}
	return Outcome{
		Attempted: attempted,
		Succeeded: false,
		Engine:    engine,
		Message:   msg,
		Err:       err,
	}
}

// guard runs a remediation step, turning panics into failed outcomes
func guard(engine Engine, fn func() Outcome) (out Outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			out = failedOutcome(
				engine,
				true,
				"",
				&RemediationError{engine: engine, err: fmt.Errorf("panic: %v", rec)},
			)
		}
	}()
	return fn()
}
