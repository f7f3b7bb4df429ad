package r

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// maxOutputLen limits how much of the command output ends up on an Outcome
const maxOutputLen = 2048

// waitDelay is how long a cancelled command may keep its output pipes open
// before they are closed under it
const waitDelay = time.Second

// CommandRunner executes a binary with the given arguments and returns its
// combined stdout and stderr
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// LookPathFn resolves the location of a binary
type LookPathFn func(file string) (string, error)

// execRunner runs commands on the host using os/exec. When ctx is done the
// whole process group is killed, and output pipes still held by orphaned
// descendants are closed after waitDelay, so the call never outlives ctx by
// more than that.
func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = waitDelay
	killProcessGroup(cmd)
	return cmd.CombinedOutput()
}

// commandSettings holds the settings shared by CLI based remediators
type commandSettings struct {
	binary   string
	timeout  time.Duration
	run      CommandRunner
	lookPath LookPathFn
}

// CommandOpt allows clients to tweak CLI based remediators
type CommandOpt func(*commandSettings)

// WithBinary overrides the binary used to run the remediation
func WithBinary(binary string) CommandOpt {
	return func(cs *commandSettings) {
		cs.binary = binary
	}
}

// WithTimeout bounds every remediation attempt (defaults to 30 seconds)
func WithTimeout(timeout time.Duration) CommandOpt {
	return func(cs *commandSettings) {
		if timeout > 0 {
			cs.timeout = timeout
		}
	}
}

// WithCommandRunner replaces the function that executes commands
func WithCommandRunner(run CommandRunner) CommandOpt {
	return func(cs *commandSettings) {
		cs.run = run
	}
}

// WithLookPath replaces the function that checks the binary is installed
func WithLookPath(lookPath LookPathFn) CommandOpt {
	return func(cs *commandSettings) {
		cs.lookPath = lookPath
	}
}

func newCommandSettings(binary string, opts []CommandOpt) commandSettings {
	cs := commandSettings{
		binary:   binary,
		timeout:  DefaultTimeout,
		run:      execRunner,
		lookPath: exec.LookPath,
	}
	for _, optFn := range opts {
		optFn(&cs)
	}
	return cs
}

// trimOutput normalizes command output so it fits on a log line
func trimOutput(out []byte) string {
	str := strings.TrimSpace(string(out))
	if len(str) > maxOutputLen {
		str = str[:maxOutputLen] + "..."
	}
	return str
}

// runCommand executes the remediation command bounded by the configured
// timeout, and translates every failure mode into an Outcome
func (cs commandSettings) runCommand(
	ctx context.Context,
	engine Engine,
	target string,
	args ...string,
) Outcome {
	if _, err := cs.lookPath(cs.binary); err != nil {
		return failedOutcome(
			engine,
			false,
			"",
			&RemediationError{
				engine: engine,
				target: target,
				err:    fmt.Errorf("%w: %s: %v", ErrToolMissing, cs.binary, err),
			},
		)
	}

	runCtx, cancel := context.WithTimeout(ctx, cs.timeout)
	defer cancel()

	out, err := cs.run(runCtx, cs.binary, args...)
	output := trimOutput(out)

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return failedOutcome(
			engine,
			true,
			output,
			&RemediationError{
				engine: engine,
				target: target,
				err:    fmt.Errorf("%w after %s", ErrTimeout, cs.timeout),
			},
		)
	}

	if err != nil {
		rerr := &RemediationError{engine: engine, target: target, err: err}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			rerr.exitCode = exitErr.ExitCode()
		}
		return failedOutcome(engine, true, output, rerr)
	}

	msg := fmt.Sprintf("%s %s succeeded", cs.binary, strings.Join(args, " "))
	if output != "" {
		msg = fmt.Sprintf("%s: %s", msg, output)
	}
	return Outcome{
		Attempted: true,
		Succeeded: true,
		Engine:    engine,
		Message:   msg,
	}
}
