package ptest

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// Target is an HTTP health endpoint whose responses follow a scripted plan of
// status codes. Once the plan is exhausted, the last status is repeated.
type Target struct {
	mu     sync.Mutex
	plan   []int
	hits   int
	delay  time.Duration
	server *httptest.Server
}

// NewTarget starts a Target that answers with the given status codes in order
func NewTarget(plan ...int) *Target {
	if len(plan) == 0 {
		plan = []int{http.StatusOK}
	}
	t := &Target{plan: plan}
	t.server = httptest.NewServer(http.HandlerFunc(t.serve))
	return t
}

func (t *Target) serve(w http.ResponseWriter, _ *http.Request) {
	t.mu.Lock()
	ix := t.hits
	if ix >= len(t.plan) {
		ix = len(t.plan) - 1
	}
	status := t.plan[ix]
	t.hits++
	delay := t.delay
	t.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	w.WriteHeader(status)
}

// URL returns the address of the health endpoint
func (t *Target) URL() string {
	return t.server.URL + "/health"
}

// Hits returns the number of requests served so far
func (t *Target) Hits() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hits
}

// SetPlan replaces the remaining plan; hits already served are kept
func (t *Target) SetPlan(plan ...int) {
	if len(plan) == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.plan = append(make([]int, t.hits), plan...)
	for i := 0; i < t.hits; i++ {
		t.plan[i] = plan[0]
	}
}

// SetDelay makes every response wait the given duration before answering
func (t *Target) SetDelay(delay time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.delay = delay
}

// Close shuts down the underlying server
func (t *Target) Close() {
	t.server.Close()
}
