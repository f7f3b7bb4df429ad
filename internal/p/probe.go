package p

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout is the probe timeout used when none is given
const DefaultTimeout = 5 * time.Second

// Result is the outcome of a single probe against a health endpoint. It is
// created once per probe and never modified afterwards.
type Result struct {
	Timestamp  time.Time
	Success    bool
	StatusCode int
	Latency    time.Duration
	Err        string
}

// HasStatus indicates if the probe got an HTTP response from the target
func (r Result) HasStatus() bool {
	return r.StatusCode != 0
}

// String returns an string representation for the Result
func (r Result) String() string {
	var buffer strings.Builder
	buffer.WriteString("Result{")
	buffer.WriteString(fmt.Sprintf("success: %t", r.Success))
	if r.HasStatus() {
		buffer.WriteString(fmt.Sprintf(", status: %d", r.StatusCode))
	}
	buffer.WriteString(fmt.Sprintf(", latency: %s", r.Latency))
	if r.Err != "" {
		buffer.WriteString(fmt.Sprintf(", err: %s", r.Err))
	}
	buffer.WriteString("}")
	return buffer.String()
}

// Prober performs a single bounded health check
type Prober interface {
	Check(ctx context.Context) Result
}

// ProberFn is a function that implements the Prober interface
type ProberFn func(context.Context) Result

// Check executes the wrapped function
func (fn ProberFn) Check(ctx context.Context) Result {
	return fn(ctx)
}

// HTTPProbe checks a health endpoint over HTTP(S)
type HTTPProbe struct {
	url      string
	method   string
	timeout  time.Duration
	accepted map[int]struct{}
	client   *http.Client
	now      func() time.Time
}

// Opt is used to configure an HTTPProbe
type Opt func(*HTTPProbe)

// WithMethod sets the HTTP method used on every probe (defaults to GET)
func WithMethod(method string) Opt {
	return func(hp *HTTPProbe) {
		hp.method = strings.ToUpper(method)
	}
}

// WithAcceptedStatus sets the status codes that indicate a healthy target
// (defaults to 200)
func WithAcceptedStatus(codes ...int) Opt {
	return func(hp *HTTPProbe) {
		if len(codes) == 0 {
			return
		}
		hp.accepted = make(map[int]struct{}, len(codes))
		for _, code := range codes {
			hp.accepted[code] = struct{}{}
		}
	}
}

// WithClient sets the http.Client used to do requests. The probe works on a
// copy of the client with Timeout cleared, so only the probe timeout bounds a
// request.
func WithClient(client *http.Client) Opt {
	return func(hp *HTTPProbe) {
		if client == nil {
			return
		}
		cp := *client
		cp.Timeout = 0
		hp.client = &cp
	}
}

// WithClock overrides the function used to timestamp results
func WithClock(now func() time.Time) Opt {
	return func(hp *HTTPProbe) {
		hp.now = now
	}
}

// NewHTTPProbe creates an HTTPProbe for the given url. A zero or negative
// timeout is replaced with DefaultTimeout.
func NewHTTPProbe(url string, timeout time.Duration, opts ...Opt) HTTPProbe {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	hp := HTTPProbe{
		url:      url,
		method:   http.MethodGet,
		timeout:  timeout,
		accepted: map[int]struct{}{http.StatusOK: {}},
		client:   http.DefaultClient,
		now:      time.Now,
	}
	for _, optFn := range opts {
		optFn(&hp)
	}
	return hp
}

// URL returns the target of this probe
func (hp HTTPProbe) URL() string {
	return hp.url
}

// Timeout returns the hard timeout of every check
func (hp HTTPProbe) Timeout() time.Duration {
	return hp.timeout
}

// Check issues a single request against the target. Network errors, timeouts
// and unexpected status codes are reported as failed results; this method
// never returns an error.
func (hp HTTPProbe) Check(ctx context.Context) (result Result) {
	start := hp.now()
	result.Timestamp = start

	defer func() {
		// a broken transport or client must not take down the caller
		if r := recover(); r != nil {
			result.Success = false
			result.Err = fmt.Sprintf("probe panicked: %v", r)
		}
		result.Latency = hp.now().Sub(start)
	}()

	probeCtx, cancel := context.WithTimeout(ctx, hp.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, hp.method, hp.url, nil)
	if err != nil {
		result.Err = fmt.Sprintf("invalid probe request: %v", err)
		return result
	}

	resp, err := hp.client.Do(req)
	if err != nil {
		if errors.Is(probeCtx.Err(), context.DeadlineExceeded) {
			result.Err = fmt.Sprintf("probe timed out after %s", hp.timeout)
		} else {
			result.Err = err.Error()
		}
		return result
	}
	// drain so the connection can be reused on the next tick
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	_ = resp.Body.Close()

	result.StatusCode = resp.StatusCode
	if _, ok := hp.accepted[resp.StatusCode]; !ok {
		result.Err = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		return result
	}

	result.Success = true
	return result
}

// Check performs a one-shot probe against the given url
func Check(ctx context.Context, url string, timeout time.Duration, opts ...Opt) Result {
	return NewHTTPProbe(url, timeout, opts...).Check(ctx)
}
