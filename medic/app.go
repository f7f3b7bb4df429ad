package medic

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/capatazlib/go-medic/internal/cfg"
	"github.com/capatazlib/go-medic/internal/l"
	"github.com/capatazlib/go-medic/internal/m"
	"github.com/capatazlib/go-medic/internal/n"
	"github.com/capatazlib/go-medic/internal/r"
	"github.com/capatazlib/go-medic/internal/s"
)

// Config is the configuration of a medic process
//
// Since: 0.1.0
type Config = cfg.Config

// ConfigError is reported when the configuration cannot be read or is invalid
//
// Since: 0.1.0
type ConfigError = cfg.ConfigError

// Duration is a time.Duration that reads and writes Go duration strings
//
// Since: 0.1.0
type Duration = cfg.Duration

// DefaultConfig returns the configuration used for every key that is not set
//
// Since: 0.1.0
var DefaultConfig = cfg.Default

// LoadConfig reads a YAML configuration file and applies MEDIC_* variables
// from the environment and the given dotenv files
//
// Since: 0.1.0
var LoadConfig = cfg.Load

// appSettings holds the collaborators an App may get instead of building them
// from its Config
type appSettings struct {
	remediator r.Remediator
	registry   *prometheus.Registry
	notifiers  []s.EventNotifier
}

// AppOpt is used to configure an App
//
// Since: 0.1.0
type AppOpt func(*appSettings)

// WithRemediator replaces the remediation strategy selected by the Config
//
// Since: 0.1.0
func WithRemediator(rem Remediator) AppOpt {
	return func(settings *appSettings) {
		settings.remediator = rem
	}
}

// WithRegistry registers the medic metrics on the given registry instead of a
// fresh one
//
// Since: 0.1.0
func WithRegistry(reg *prometheus.Registry) AppOpt {
	return func(settings *appSettings) {
		settings.registry = reg
	}
}

// WithEventNotifier adds an EventNotifier to the App supervisor
//
// Since: 0.1.0
func WithEventNotifier(en EventNotifier) AppOpt {
	return func(settings *appSettings) {
		settings.notifiers = append(settings.notifiers, en)
	}
}

// App is a medic process: a supervisor, its alert dispatcher and its HTTP
// endpoints
//
// Since: 0.1.0
type App struct {
	config     Config
	log        logrus.FieldLogger
	supervisor *s.Supervisor
	dispatcher *n.Dispatcher
	monitor    *s.HealthcheckMonitor
	registry   *prometheus.Registry
}

// NewApp validates the given configuration and builds every medic component
// from it. No goroutine is started until Run is called.
//
// Since: 0.1.0
func NewApp(config Config, log logrus.FieldLogger, opts ...AppOpt) (*App, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	settings := appSettings{}
	for _, optFn := range opts {
		optFn(&settings)
	}

	if settings.remediator == nil {
		rem, err := config.Remediator()
		if err != nil {
			return nil, err
		}
		settings.remediator = rem
	}
	if settings.registry == nil {
		settings.registry = prometheus.NewRegistry()
		settings.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	metrics := m.NewMetrics(settings.registry)
	monitor := s.NewHealthcheckMonitor()

	app := &App{
		config:   config,
		log:      log,
		monitor:  monitor,
		registry: settings.registry,
	}

	supOpts := append(
		config.SupervisorOpts(),
		s.WithNotifier(l.NewEventLogger(log)),
		s.WithNotifier(metrics.HandleEvent),
		s.WithNotifier(monitor.HandleEvent),
		s.WithAlertNotifier(metrics.AlertNotifier(s.AlertNotifierFn(app.notify))),
	)
	for _, en := range settings.notifiers {
		supOpts = append(supOpts, s.WithNotifier(en))
	}

	sup, err := s.NewSupervisor(config.ServiceName, config.Probe(), settings.remediator, supOpts...)
	if err != nil {
		return nil, err
	}
	app.supervisor = sup
	return app, nil
}

// notify forwards alerts to the dispatcher of a running App
func (app *App) notify(a n.Alert) {
	if app.dispatcher != nil {
		app.dispatcher.Notify(a)
	}
}

// GetHealthReport returns the latest health report of the supervised service
//
// Since: 0.1.0
func (app *App) GetHealthReport() HealthReport {
	return app.monitor.GetHealthReport()
}

// Run starts the alert dispatcher and the HTTP endpoints (when listen_addr is
// set), and runs the supervisor until the given context is done. Queued alerts
// get up to notify_timeout to be delivered on shutdown.
//
// Since: 0.1.0
func (app *App) Run(ctx context.Context) error {
	app.dispatcher = app.config.Dispatcher(app.log)

	serverErrCh := make(chan error, 1)
	serverCtx, stopServer := context.WithCancel(ctx)
	defer stopServer()

	if app.config.ListenAddr != "" {
		handler := m.NewHandler(app.registry, app.monitor.GetHealthReport)
		server := m.NewServer(app.config.ListenAddr, handler, app.log)
		go func() {
			err := server.ListenAndServe(serverCtx)
			if err != nil {
				app.log.WithError(err).Error("http server failed")
			}
			serverErrCh <- err
		}()
	} else {
		serverErrCh <- nil
	}

	app.log.WithFields(logrus.Fields{
		"service":           app.config.ServiceName,
		"health_check_url":  app.config.HealthCheckURL,
		"check_interval":    time.Duration(app.config.CheckInterval).String(),
		"failure_threshold": app.config.FailureThreshold,
	}).Info("medic starting")

	err := app.supervisor.Run(ctx)

	stopServer()
	err = multierr.Append(err, <-serverErrCh)

	stopCtx, cancel := context.WithTimeout(
		context.Background(),
		time.Duration(app.config.NotifyTimeout),
	)
	defer cancel()
	if stopErr := app.dispatcher.Stop(stopCtx); stopErr != nil {
		app.log.WithError(stopErr).Warn("pending alerts were not delivered")
		err = multierr.Append(err, stopErr)
	}
	return err
}
