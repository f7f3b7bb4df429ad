package main

import (
	"time"

	"github.com/spf13/pflag"

	"github.com/capatazlib/go-medic/medic"
)

// configFlags are the flags shared by every medic command. Flags that are set
// win over the configuration file and the environment.
type configFlags struct {
	configPath string
	envFiles   []string

	serviceName       string
	healthCheckURL    string
	checkInterval     time.Duration
	failureThreshold  uint32
	remediationEngine string
	cooldownInterval  time.Duration
	alertRecipient    string
	logLevel          string
	logFile           string
	listenAddr        string

	fs *pflag.FlagSet
}

func (cf *configFlags) register(fs *pflag.FlagSet) {
	defaults := medic.DefaultConfig()
	cf.fs = fs

	fs.StringVarP(&cf.configPath, "config", "c", "", "path to the YAML configuration file")
	fs.StringSliceVar(&cf.envFiles, "env-file", []string{".env"}, "dotenv files with MEDIC_* variables")

	fs.StringVar(&cf.serviceName, "service-name", "", "name of the supervised service")
	fs.StringVar(&cf.healthCheckURL, "health-check-url", "", "URL of the service health endpoint")
	fs.DurationVar(&cf.checkInterval, "check-interval", time.Duration(defaults.CheckInterval), "time between probes")
	fs.Uint32Var(&cf.failureThreshold, "failure-threshold", defaults.FailureThreshold, "consecutive failed probes that trigger a remediation")
	fs.StringVar(&cf.remediationEngine, "remediation-engine", defaults.RemediationEngine, "container-restart or orchestrator-rollout")
	fs.DurationVar(&cf.cooldownInterval, "cooldown-interval", time.Duration(defaults.CooldownInterval), "minimum time between remediation attempts")
	fs.StringVar(&cf.alertRecipient, "alert-recipient", "", "address that receives alerts")
	fs.StringVar(&cf.logLevel, "log-level", defaults.LogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&cf.logFile, "log-file", "", "append-only log file")
	fs.StringVar(&cf.listenAddr, "listen-addr", "", "address of the /metrics, /healthz and /status endpoints; empty disables them")
}

// load reads the configuration and applies the flags that were set
func (cf *configFlags) load() (medic.Config, error) {
	config, err := medic.LoadConfig(cf.configPath, cf.envFiles...)
	if err != nil {
		return config, err
	}

	changed := cf.fs.Changed
	if changed("service-name") {
		config.ServiceName = cf.serviceName
	}
	if changed("health-check-url") {
		config.HealthCheckURL = cf.healthCheckURL
	}
	if changed("check-interval") {
		config.CheckInterval = medic.Duration(cf.checkInterval)
	}
	if changed("failure-threshold") {
		config.FailureThreshold = cf.failureThreshold
	}
	if changed("remediation-engine") {
		config.RemediationEngine = cf.remediationEngine
	}
	if changed("cooldown-interval") {
		config.CooldownInterval = medic.Duration(cf.cooldownInterval)
	}
	if changed("alert-recipient") {
		config.AlertRecipient = cf.alertRecipient
	}
	if changed("log-level") {
		config.LogLevel = cf.logLevel
	}
	if changed("log-file") {
		config.LogFile = cf.logFile
	}
	if changed("listen-addr") {
		config.ListenAddr = cf.listenAddr
	}
	return config, nil
}
