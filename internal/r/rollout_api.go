package r

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
)

// RestartedAtAnnotation is the pod template annotation that forces a new
// rollout, same as `kubectl rollout restart` does
const RestartedAtAnnotation = "kubectl.kubernetes.io/restartedAt"

// NewKubeClient builds a kubernetes client from the given kubeconfig path and
// context; empty values fall back to the default loading rules (KUBECONFIG,
// ~/.kube/config, in-cluster)
func NewKubeClient(kubeconfig, kubeContext string) (kubernetes.Interface, error) {
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfig != "" {
		loadingRules.ExplicitPath = kubeconfig
	}
	overrides := &clientcmd.ConfigOverrides{CurrentContext: kubeContext}
	restCfg, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
		loadingRules,
		overrides,
	).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("could not load kubeconfig: %w", err)
	}
	client, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("could not build kubernetes client: %w", err)
	}
	return client, nil
}

// APIRolloutRestarter triggers a rollout restart by patching the deployment
// through the Kubernetes API
type APIRolloutRestarter struct {
	client  kubernetes.Interface
	target  RolloutTarget
	timeout time.Duration
	now     func() time.Time
}

// NewAPIRolloutRestarter creates an APIRolloutRestarter; a zero timeout is
// replaced with DefaultTimeout
func NewAPIRolloutRestarter(
	client kubernetes.Interface,
	target RolloutTarget,
	timeout time.Duration,
) APIRolloutRestarter {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if target.Namespace == "" {
		target.Namespace = metav1.NamespaceDefault
	}
	return APIRolloutRestarter{
		client:  client,
		target:  target,
		timeout: timeout,
		now:     time.Now,
	}
}

// Engine returns OrchestratorRollout
func (ar APIRolloutRestarter) Engine() Engine {
	return OrchestratorRollout
}

func restartPatch(at time.Time) ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"spec": map[string]interface{}{
			"template": map[string]interface{}{
				"metadata": map[string]interface{}{
					"annotations": map[string]string{
						RestartedAtAnnotation: at.Format(time.RFC3339),
					},
				},
			},
		},
	})
}

// Remediate patches the deployment pod template so the orchestrator rolls
// every pod
func (ar APIRolloutRestarter) Remediate(ctx context.Context, serviceName string) Outcome {
	return guard(OrchestratorRollout, func() Outcome {
		target := ar.target.resolve(serviceName)
		if target.Deployment == "" {
			return failedOutcome(
				OrchestratorRollout,
				false,
				"",
				&RemediationError{engine: OrchestratorRollout, err: fmt.Errorf("no deployment name")},
			)
		}

		patch, err := restartPatch(ar.now())
		if err != nil {
			return failedOutcome(
				OrchestratorRollout,
				false,
				"",
				&RemediationError{engine: OrchestratorRollout, target: target.String(), err: err},
			)
		}

		patchCtx, cancel := context.WithTimeout(ctx, ar.timeout)
		defer cancel()

		_, err = ar.client.AppsV1().Deployments(target.Namespace).Patch(
			patchCtx,
			target.Deployment,
			types.StrategicMergePatchType,
			patch,
			metav1.PatchOptions{FieldManager: "medic"},
		)

		if errors.Is(patchCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("%w after %s", ErrTimeout, ar.timeout)
		}
		if err != nil {
			return failedOutcome(
				OrchestratorRollout,
				true,
				"",
				&RemediationError{engine: OrchestratorRollout, target: target.String(), err: err},
			)
		}

		return Outcome{
			Attempted: true,
			Succeeded: true,
			Engine:    OrchestratorRollout,
			Message:   fmt.Sprintf("%s restarted", target),
		}
	})
}
