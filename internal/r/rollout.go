package r

import (
	"context"
	"fmt"
)

// RolloutTarget identifies the deployment to restart on the orchestrator
type RolloutTarget struct {
	Deployment  string
	Namespace   string
	KubeContext string
	Kubeconfig  string
}

// resolve fills the deployment name with the service name when not given
func (rt RolloutTarget) resolve(serviceName string) RolloutTarget {
	if rt.Deployment == "" {
		rt.Deployment = serviceName
	}
	return rt
}

func (rt RolloutTarget) String() string {
	if rt.Namespace == "" {
		return fmt.Sprintf("deployment/%s", rt.Deployment)
	}
	return fmt.Sprintf("%s/deployment/%s", rt.Namespace, rt.Deployment)
}

// KubectlRolloutRestarter triggers a rollout restart using the kubectl CLI
type KubectlRolloutRestarter struct {
	target   RolloutTarget
	settings commandSettings
}

// NewKubectlRolloutRestarter creates a KubectlRolloutRestarter for the given
// deployment
func NewKubectlRolloutRestarter(target RolloutTarget, opts ...CommandOpt) KubectlRolloutRestarter {
	return KubectlRolloutRestarter{
		target:   target,
		settings: newCommandSettings("kubectl", opts),
	}
}

// Engine returns OrchestratorRollout
func (kr KubectlRolloutRestarter) Engine() Engine {
	return OrchestratorRollout
}

// args builds the kubectl arguments for the given target
func (kr KubectlRolloutRestarter) args(target RolloutTarget) []string {
	args := []string{"rollout", "restart", "deployment/" + target.Deployment}
	if target.Namespace != "" {
		args = append(args, "--namespace", target.Namespace)
	}
	if target.KubeContext != "" {
		args = append(args, "--context", target.KubeContext)
	}
	if target.Kubeconfig != "" {
		args = append(args, "--kubeconfig", target.Kubeconfig)
	}
	return args
}

// Remediate runs `kubectl rollout restart deployment/<name>`
func (kr KubectlRolloutRestarter) Remediate(ctx context.Context, serviceName string) Outcome {
	return guard(OrchestratorRollout, func() Outcome {
		target := kr.target.resolve(serviceName)
		if target.Deployment == "" {
			return failedOutcome(
				OrchestratorRollout,
				false,
				"",
				&RemediationError{engine: OrchestratorRollout, err: fmt.Errorf("no deployment name")},
			)
		}
		return kr.settings.runCommand(ctx, OrchestratorRollout, target.String(), kr.args(target)...)
	})
}
