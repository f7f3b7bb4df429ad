package m

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/capatazlib/go-medic/internal/s"
)

// shutdownTimeout bounds how long in-flight scrapes are given on shutdown
const shutdownTimeout = 5 * time.Second

// ReportFn returns the latest health report of the supervised service
type ReportFn func() s.HealthReport

// NewHandler returns the router for the medic HTTP endpoints:
//
// * /metrics serves the prometheus metrics from the given gatherer
//
// * /healthz answers 200 while the medic process is serving
//
// * /status serves the latest HealthReport as JSON; it answers 503 when the
// supervised service is not healthy
func NewHandler(gatherer prometheus.Gatherer, report ReportFn) http.Handler {
	router := chi.NewRouter()
	router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	router.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		hr := report()
		status := http.StatusOK
		if !hr.IsHealthyReport() {
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(hr)
	})
	return router
}

// Server exposes the medic HTTP endpoints
type Server struct {
	server *http.Server
	log    logrus.FieldLogger
}

// NewServer creates a Server for the given address
func NewServer(addr string, handler http.Handler, log logrus.FieldLogger) *Server {
	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log,
	}
}

// Serve accepts connections on the given listener until the context is done,
// then shuts the server down. It returns nil on a clean shutdown.
func (srv *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		srv.log.WithField("addr", ln.Addr().String()).Info("http server starting")
		errCh <- srv.server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	srv.log.Info("shutting down http server")
	if err := srv.server.Shutdown(shutdownCtx); err != nil {
		srv.log.WithError(err).Error("http server shutdown failed")
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on the server address and calls Serve
func (srv *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", srv.server.Addr)
	if err != nil {
		return err
	}
	return srv.Serve(ctx, ln)
}
