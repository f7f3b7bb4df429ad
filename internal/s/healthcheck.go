package s

import (
	"sync"
	"time"

	"github.com/capatazlib/go-medic/internal/h"
	"github.com/capatazlib/go-medic/internal/p"
)

// HealthReport is a snapshot of a supervised service health
type HealthReport struct {
	ServiceName         string    `json:"service_name"`
	Running             bool      `json:"running"`
	Mode                string    `json:"mode"`
	Transition          string    `json:"transition"`
	ConsecutiveFailures uint32    `json:"consecutive_failures"`
	LastRemediation     time.Time `json:"last_remediation,omitzero"`
	LastProbe           time.Time `json:"last_probe,omitzero"`
	LastProbeError      string    `json:"last_probe_error,omitempty"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// IsHealthyReport indicates if the supervised service is healthy
func (hr HealthReport) IsHealthyReport() bool {
	return hr.Running &&
		hr.ConsecutiveFailures == 0 &&
		hr.Transition != h.Critical.String()
}

// HealthcheckMonitor listens to the events of a supervisor, and keeps the
// latest HealthReport. It is safe to read reports from other goroutines.
type HealthcheckMonitor struct {
	mu        sync.Mutex
	report    HealthReport
	lastProbe p.Result
}

// NewHealthcheckMonitor offers a way to monitor a supervisor from the events
// emitted by it
func NewHealthcheckMonitor() *HealthcheckMonitor {
	return &HealthcheckMonitor{}
}

// HandleEvent is an EventNotifier that updates the report from the given
// supervisor event
func (hm *HealthcheckMonitor) HandleEvent(ev Event) {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	switch ev.GetTag() {
	case SupervisorStarted:
		hm.report.Running = true
	case SupervisorTerminated:
		hm.report.Running = false
	case ProbeSucceeded, ProbeFailed:
		hm.lastProbe = ev.GetProbeResult()
	}

	st := ev.GetState()
	hm.report.ServiceName = ev.GetServiceName()
	hm.report.Mode = ev.GetMode().String()
	hm.report.Transition = st.LastTransition.String()
	hm.report.ConsecutiveFailures = st.ConsecutiveFailures
	hm.report.LastRemediation = st.LastRemediationAttempt
	hm.report.LastProbe = hm.lastProbe.Timestamp
	hm.report.LastProbeError = hm.lastProbe.Err
	hm.report.UpdatedAt = ev.GetCreated()
}

// GetHealthReport returns the latest HealthReport
func (hm *HealthcheckMonitor) GetHealthReport() HealthReport {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	return hm.report
}

// IsHealthy return true when the supervised service is in a healthy state
func (hm *HealthcheckMonitor) IsHealthy() bool {
	return hm.GetHealthReport().IsHealthyReport()
}
