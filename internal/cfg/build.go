package cfg

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/capatazlib/go-medic/internal/n"
	"github.com/capatazlib/go-medic/internal/p"
	"github.com/capatazlib/go-medic/internal/r"
	"github.com/capatazlib/go-medic/internal/s"
)

// Probe builds the HTTP health probe
func (c Config) Probe() p.HTTPProbe {
	return p.NewHTTPProbe(
		c.HealthCheckURL,
		time.Duration(c.ProbeTimeout),
		p.WithMethod(c.ProbeMethod),
		p.WithAcceptedStatus(c.AcceptedStatuses...),
	)
}

// Remediator builds the remediation strategy selected by remediation_engine.
// The kubernetes client is only created for the api orchestrator client.
func (c Config) Remediator() (r.Remediator, error) {
	engine, err := r.ParseEngine(c.RemediationEngine)
	if err != nil {
		return nil, &ConfigError{source: "remediation_engine", err: err}
	}
	timeout := time.Duration(c.RemediationTimeout)

	if engine == r.ContainerRestart {
		return r.NewContainerRestarter(
			c.ContainerRuntime,
			c.ContainerName,
			r.WithTimeout(timeout),
		), nil
	}

	target := r.RolloutTarget{
		Deployment:  c.DeploymentName,
		Namespace:   c.Namespace,
		KubeContext: c.KubeContext,
		Kubeconfig:  c.Kubeconfig,
	}
	if c.OrchestratorClient == OrchestratorAPI {
		client, err := r.NewKubeClient(c.Kubeconfig, c.KubeContext)
		if err != nil {
			return nil, &ConfigError{source: "kubeconfig", err: err}
		}
		return r.NewAPIRolloutRestarter(client, target, timeout), nil
	}
	return r.NewKubectlRolloutRestarter(target, r.WithTimeout(timeout)), nil
}

// alertCriteria returns the filter for the configured alert_kinds; every kind
// passes when none is configured
func (c Config) alertCriteria() n.AlertCriteria {
	if len(c.AlertKinds) == 0 {
		return n.EAny
	}
	kinds := make([]n.Kind, 0, len(c.AlertKinds))
	for _, input := range c.AlertKinds {
		if kind, err := n.ParseKind(input); err == nil {
			kinds = append(kinds, kind)
		}
	}
	return n.EIsKind(kinds...)
}

// Routes builds the alert sinks. Alerts always reach the log; mail and
// webhook sinks are added when configured.
func (c Config) Routes(log logrus.FieldLogger) []n.Route {
	crit := n.EAnd(n.EForService(c.ServiceName), c.alertCriteria())

	routes := []n.Route{
		{Name: "log", Sink: n.NewLogSink(log), Criteria: n.EForService(c.ServiceName)},
	}
	if c.SMTPAddr != "" {
		routes = append(routes, n.Route{
			Name:     "smtp",
			Sink:     n.NewMailSink(c.SMTPAddr, c.SMTPFrom, c.SMTPUsername, c.SMTPPassword),
			Criteria: crit,
		})
	}
	if c.WebhookURL != "" {
		routes = append(routes, n.Route{
			Name:     "webhook",
			Sink:     n.NewWebhookSink(c.WebhookURL, nil),
			Criteria: crit,
		})
	}
	return routes
}

// Dispatcher starts the alert dispatcher for the configured sinks
func (c Config) Dispatcher(log logrus.FieldLogger) *n.Dispatcher {
	return n.NewDispatcher(
		c.Routes(log),
		n.WithQueueSize(c.NotifyQueueSize),
		n.WithDeliveryTimeout(time.Duration(c.NotifyTimeout)),
		n.WithRecipient(c.AlertRecipient),
		n.WithLogger(log),
	)
}

// SupervisorOpts returns the supervisor settings from the configuration
func (c Config) SupervisorOpts() []s.Opt {
	return []s.Opt{
		s.WithCheckInterval(time.Duration(c.CheckInterval)),
		s.WithFailureThreshold(c.FailureThreshold),
		s.WithCooldownInterval(time.Duration(c.CooldownInterval)),
		s.WithMaxCooldownInterval(time.Duration(c.MaxCooldownInterval)),
	}
}
