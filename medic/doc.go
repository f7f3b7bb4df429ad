/*
Package medic offers an API to keep a single HTTP service alive: it probes the
service health endpoint on a fixed interval, and when a number of consecutive
probes fail, it restarts the service and alerts an operator.

Supervisor

A Supervisor owns the control loop. You create one with NewSupervisor

	sup, err := medic.NewSupervisor(
		// (1)
		"api",
		// (2)
		medic.NewHTTPProbe("http://localhost:8080/health", 5*time.Second),
		// (3)
		medic.NewContainerRestarter("docker", "api"),
		// (4)
		medic.WithFailureThreshold(3),
		// (5)
		medic.WithCooldownInterval(time.Minute),
	)

The first argument (1) is the service name, used on alerts, logs and metrics.

The second argument (2) is the Prober. Every check is bounded by the given
timeout; a timeout, a connection error and an unexpected status code are all
reported as a failed probe.

The third argument (3) is the Remediator. Exactly one strategy is selected up
front: restarting a container through a container engine CLI, or a rollout
restart of a deployment (NewKubectlRolloutRestarter, NewAPIRolloutRestarter).

The fourth argument (4) is an Opt. After three consecutive failed probes the
service is considered critical, a ThresholdBreached alert is sent and a
remediation is started.

The fifth argument (5) is also an Opt. Remediations are never attempted more
than once per cooldown interval, and after a failed remediation the supervisor
waits this interval before probing again.

Call Run to execute the loop until the given context is done

	err := sup.Run(ctx)

A remediation that is in flight when the context is done runs to completion
before Run returns, so a restart is never left half applied.

Alerts

Alerts are handed to an AlertNotifier, which must never block. NewDispatcher
builds one that delivers alerts to sinks (log, mail, webhook) from bounded
queues on background goroutines; a slow or failing sink never stalls the
supervisor.

Events

Every transition of the control loop is reported as an Event to the
EventNotifier functions given with WithNotifier. The HealthcheckMonitor and the
prometheus metrics are built on top of them.

App

NewApp wires all of the above from a Config, which is read from a YAML file,
dotenv files and MEDIC_* environment variables by LoadConfig.
*/
package medic
