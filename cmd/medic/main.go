package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "dev"

const (
	// exitFailure is used for invalid configuration and unexpected errors
	exitFailure = 1
	// exitUnhealthy is used when a one-shot probe or remediation reports a
	// failure
	exitUnhealthy = 2
)

// exitError carries the process exit code of a failed command
type exitError struct {
	code int
	err  error
}

func (err *exitError) Error() string {
	return err.err.Error()
}

func (err *exitError) Unwrap() error {
	return err.err
}

func exitCode(err error) int {
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	return exitFailure
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "medic: %v\n", err)
		cancel()
		os.Exit(exitCode(err))
	}
}

func newRootCommand() *cobra.Command {
	flags := &configFlags{}

	cmd := &cobra.Command{
		Use:   "medic",
		Short: "Probe a service health endpoint and restart it when it keeps failing",
		Long: `medic checks the health endpoint of a single service on a fixed interval.
When the consecutive failed probes reach a threshold, it restarts the service
(a container restart or an orchestrator rollout) and alerts an operator.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags.register(cmd.PersistentFlags())

	cmd.AddCommand(
		newRunCommand(flags),
		newProbeCommand(flags),
		newRemediateCommand(flags),
		newConfigCommand(flags),
	)
	return cmd
}
