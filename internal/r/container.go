package r

import (
	"context"
	"fmt"
)

// ContainerRestarter restarts a container using a container engine CLI
// (docker or podman)
type ContainerRestarter struct {
	container string
	settings  commandSettings
}

// NewContainerRestarter creates a ContainerRestarter for the given container
// engine binary. When container is empty, the service name given on every
// Remediate call is used as container name.
func NewContainerRestarter(runtime, container string, opts ...CommandOpt) ContainerRestarter {
	if runtime == "" {
		runtime = "docker"
	}
	return ContainerRestarter{
		container: container,
		settings:  newCommandSettings(runtime, opts),
	}
}

// Engine returns ContainerRestart
func (cr ContainerRestarter) Engine() Engine {
	return ContainerRestart
}

// Remediate runs `<runtime> restart <container>`
func (cr ContainerRestarter) Remediate(ctx context.Context, serviceName string) Outcome {
	return guard(ContainerRestart, func() Outcome {
		target := cr.container
		if target == "" {
			target = serviceName
		}
		if target == "" {
			return failedOutcome(
				ContainerRestart,
				false,
				"",
				&RemediationError{engine: ContainerRestart, err: fmt.Errorf("no container name")},
			)
		}
		return cr.settings.runCommand(ctx, ContainerRestart, target, "restart", target)
	})
}
