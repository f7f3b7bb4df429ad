package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/capatazlib/go-medic/internal/ptest"
	"github.com/capatazlib/go-medic/medic"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	// keep a stray .env on the working directory out of the tests
	cmd.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "missing.env")))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestProbeHealthyTarget(t *testing.T) {
	target := ptest.NewTarget(http.StatusOK)
	defer target.Close()

	out, err := execute(t, "probe", "--health-check-url", target.URL())
	require.NoError(t, err)
	assert.Contains(t, out, "success: true")
	assert.Contains(t, out, "status: 200")
	assert.Equal(t, 1, target.Hits())
}

func TestProbeUnhealthyTarget(t *testing.T) {
	target := ptest.NewTarget(http.StatusServiceUnavailable)
	defer target.Close()

	out, err := execute(t, "probe", "--health-check-url", target.URL())
	require.Error(t, err)
	assert.Equal(t, exitUnhealthy, exitCode(err))
	assert.Contains(t, out, "success: false")
	assert.Contains(t, out, "status: 503")
}

func TestProbeRequiresURL(t *testing.T) {
	_, err := execute(t, "probe")
	require.Error(t, err)
	assert.Equal(t, exitFailure, exitCode(err))
	assert.Contains(t, err.Error(), "health_check_url is required")
}

func TestConfigFlagsWinOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "medic.yaml")
	err := os.WriteFile(path, []byte(`
service_name: api
health_check_url: http://localhost:8080/health
check_interval: 30s
failure_threshold: 5
`), 0o600)
	require.NoError(t, err)

	out, err := execute(
		t,
		"config",
		"--config", path,
		"--failure-threshold", "2",
		"--cooldown-interval", "2m",
	)
	require.NoError(t, err)

	var config medic.Config
	require.NoError(t, yaml.Unmarshal([]byte(out), &config))
	assert.Equal(t, "api", config.ServiceName)
	assert.Equal(t, medic.Duration(30e9), config.CheckInterval)
	assert.Equal(t, uint32(2), config.FailureThreshold)
	assert.Equal(t, medic.Duration(120e9), config.CooldownInterval)
}

func TestConfigReportsInvalidSettings(t *testing.T) {
	out, err := execute(t, "config")
	require.Error(t, err)
	assert.Equal(t, exitFailure, exitCode(err))
	assert.Contains(t, out, "service_name:")

	var cerr *medic.ConfigError
	assert.True(t, errors.As(err, &cerr))
}

func TestRemediateRejectsInvalidConfig(t *testing.T) {
	_, err := execute(t, "remediate", "--remediation-engine", "reboot")
	require.Error(t, err)
	assert.Equal(t, exitFailure, exitCode(err))
	assert.Contains(t, err.Error(), "remediation_engine")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitFailure, exitCode(errors.New("boom")))
	assert.Equal(t, exitUnhealthy, exitCode(&exitError{code: exitUnhealthy, err: errors.New("down")}))
}
