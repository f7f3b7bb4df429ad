package main

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/capatazlib/go-medic/internal/l"
	"github.com/capatazlib/go-medic/medic"
)

// loadConfig reads the configuration; a configuration problem always exits
// with exitFailure
func loadConfig(flags *configFlags, validate bool) (medic.Config, error) {
	config, err := flags.load()
	if err == nil && validate {
		err = config.Validate()
	}
	if err != nil {
		return config, &exitError{code: exitFailure, err: err}
	}
	return config, nil
}

func newLogger(cmd *cobra.Command, config medic.Config) (*logrus.Logger, func(), error) {
	log, closer, err := l.New(l.Settings{
		Level:  config.LogLevel,
		File:   config.LogFile,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, nil, &exitError{code: exitFailure, err: err}
	}
	return log, func() { _ = closer.Close() }, nil
}

func newRunCommand(flags *configFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the supervisor until SIGINT or SIGTERM",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			config, err := loadConfig(flags, true)
			if err != nil {
				return err
			}
			log, closeLog, err := newLogger(cmd, config)
			if err != nil {
				return err
			}
			defer closeLog()

			app, err := medic.NewApp(config, log)
			if err != nil {
				log.WithError(err).WithFields(l.ErrFields(err)).Error("could not start medic")
				return &exitError{code: exitFailure, err: err}
			}
			if err := app.Run(cmd.Context()); err != nil {
				log.WithError(err).Error("medic stopped with errors")
				return err
			}
			log.Info("medic stopped")
			return nil
		},
	}
}

func newProbeCommand(flags *configFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Probe the health endpoint once; exits with 2 when unhealthy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			config, err := loadConfig(flags, false)
			if err != nil {
				return err
			}
			if config.HealthCheckURL == "" {
				return &exitError{code: exitFailure, err: errors.New("health_check_url is required")}
			}

			result := config.Probe().Check(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), result.String())
			if !result.Success {
				return &exitError{code: exitUnhealthy, err: fmt.Errorf("%s is unhealthy: %s", config.HealthCheckURL, result.Err)}
			}
			return nil
		},
	}
}

func newRemediateCommand(flags *configFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "remediate",
		Short: "Run the configured remediation once; exits with 2 when it fails",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			config, err := loadConfig(flags, true)
			if err != nil {
				return err
			}
			rem, err := config.Remediator()
			if err != nil {
				return &exitError{code: exitFailure, err: err}
			}

			outcome := rem.Remediate(cmd.Context(), config.ServiceName)
			fmt.Fprintln(cmd.OutOrStdout(), outcome.String())
			if !outcome.Succeeded {
				return &exitError{code: exitUnhealthy, err: fmt.Errorf("remediation failed: %s", outcome.Message)}
			}
			return nil
		},
	}
}

func newConfigCommand(flags *configFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			config, err := loadConfig(flags, false)
			if err != nil {
				return err
			}
			out, err := config.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			if err != nil {
				return err
			}
			if err := config.Validate(); err != nil {
				return &exitError{code: exitFailure, err: err}
			}
			return nil
		},
	}
}
