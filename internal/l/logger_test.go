package l_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capatazlib/go-medic/internal/l"
	"github.com/capatazlib/go-medic/internal/p"
	"github.com/capatazlib/go-medic/internal/ptest"
	"github.com/capatazlib/go-medic/internal/r"
	"github.com/capatazlib/go-medic/internal/s"
	"github.com/capatazlib/go-medic/internal/stest"
	"github.com/capatazlib/go-medic/smtest"
)

func TestLineFormatter(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	entry := &logrus.Entry{
		Time:    ts,
		Level:   logrus.WarnLevel,
		Message: "probe failed",
		Data: logrus.Fields{
			"service": "api",
			"error":   errors.New("unexpected status 500"),
			"status":  500,
		},
	}

	out, err := (&l.LineFormatter{}).Format(entry)
	require.NoError(t, err)
	assert.Equal(
		t,
		"2024-03-01T12:30:00Z [WARNING] probe failed error=\"unexpected status 500\" service=api status=500\n",
		string(out),
	)
}

func TestNewAppendsToLogFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "medic.log")

	for _, msg := range []string{"first", "second"} {
		var stderr bytes.Buffer
		log, closer, err := l.New(l.Settings{File: logFile, Output: &stderr})
		require.NoError(t, err)
		log.Info(msg)
		require.NoError(t, closer.Close())
		assert.Contains(t, stderr.String(), "[INFO] "+msg)
	}

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "[INFO] first")
	assert.Contains(t, lines[1], "[INFO] second")
}

func TestNewInvalidLevel(t *testing.T) {
	_, _, err := l.New(l.Settings{Level: "chatty"})
	assert.Error(t, err)
}

func TestErrFields(t *testing.T) {
	assert.Empty(t, l.ErrFields(errors.New("plain")))
	assert.Empty(t, l.ErrFields(nil))

	_, err := s.NewSupervisor("api", nil, nil)
	require.Error(t, err)
	fields := l.ErrFields(err)
	assert.Equal(t, "api", fields["supervisor.service"])
}

func TestEventLoggerHealthyService(t *testing.T) {
	target := ptest.NewTarget(http.StatusOK)
	defer target.Close()

	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	evCtx, stopEvents := context.WithCancel(context.Background())
	defer stopEvents()
	evManager := smtest.NewEventManager[s.Event]()
	evManager.StartCollector(evCtx)

	sup, err := s.NewSupervisor(
		"api",
		p.NewHTTPProbe(target.URL(), time.Second),
		r.Func(r.ContainerRestart, func(context.Context, string) r.Outcome {
			return r.Outcome{Attempted: true, Succeeded: true}
		}),
		s.WithCheckInterval(5*time.Millisecond),
		s.WithNotifier(l.NewEventLogger(log)),
		s.WithNotifier(evManager.EventCollector(evCtx)),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- sup.Run(ctx) }()

	it := evManager.Iterator()
	for i := 0; i < 5; i++ {
		require.True(t, it.WaitTillTimeout(stest.ProbeSucceeded(), 5*time.Second))
	}
	cancel()
	require.NoError(t, <-errCh)

	var probeOK, warnings int
	for _, entry := range hook.AllEntries() {
		if entry.Message == "probe ok" {
			assert.Equal(t, logrus.DebugLevel, entry.Level)
			assert.Equal(t, "api", entry.Data["service"])
			probeOK++
		}
		if entry.Level <= logrus.WarnLevel {
			warnings++
		}
	}
	assert.GreaterOrEqual(t, probeOK, 5)
	assert.Zero(t, warnings)
	assert.Equal(t, "supervisor terminated", hook.LastEntry().Message)
}

func TestEventLoggerFailures(t *testing.T) {
	log, hook := test.NewNullLogger()

	prober := p.ProberFn(func(context.Context) p.Result {
		return p.Result{Timestamp: time.Now(), StatusCode: 503, Err: "unexpected status 503"}
	})

	evCtx, stopEvents := context.WithCancel(context.Background())
	defer stopEvents()
	evManager := smtest.NewEventManager[s.Event]()
	evManager.StartCollector(evCtx)

	sup, err := s.NewSupervisor(
		"api",
		prober,
		r.Func(r.ContainerRestart, func(context.Context, string) r.Outcome {
			return r.Outcome{
				Attempted: true,
				Engine:    r.ContainerRestart,
				Message:   "docker restart api failed with exit code 1",
				Err:       errors.New("exit status 1"),
			}
		}),
		s.WithCheckInterval(time.Millisecond),
		s.WithFailureThreshold(2),
		s.WithCooldownInterval(time.Hour),
		s.WithNotifier(l.NewEventLogger(log)),
		s.WithNotifier(evManager.EventCollector(evCtx)),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- sup.Run(ctx) }()

	it := evManager.Iterator()
	require.True(t, it.WaitTillTimeout(stest.RemediationFailed(), 5*time.Second))
	cancel()
	require.NoError(t, <-errCh)

	byMessage := make(map[string]*logrus.Entry)
	for _, entry := range hook.AllEntries() {
		if _, ok := byMessage[entry.Message]; !ok {
			byMessage[entry.Message] = entry
		}
	}

	probeFailed := byMessage["probe failed"]
	require.NotNil(t, probeFailed)
	assert.Equal(t, logrus.WarnLevel, probeFailed.Level)
	assert.Equal(t, 503, probeFailed.Data["probe.status"])

	breached := byMessage["failure threshold reached"]
	require.NotNil(t, breached)
	assert.Equal(t, logrus.ErrorLevel, breached.Level)

	failed := byMessage["remediation failed"]
	require.NotNil(t, failed)
	assert.Equal(t, logrus.ErrorLevel, failed.Level)
	assert.Equal(t, "docker restart api failed with exit code 1", failed.Data["outcome"])
}
