package common

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/arl/statsviz"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HealthServer exposes liveness and readiness probes plus live runtime
// statistics for the process.
type HealthServer struct {
	server *http.Server
	ready  *atomic.Bool
}

// NewHealthServer builds a HealthServer listening on addr. Readiness reports
// the value of ready.
func NewHealthServer(addr string, ready *atomic.Bool) (*HealthServer, error) {
	hs := &HealthServer{ready: ready}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/health", hs.health)
	mux.HandleFunc("/v1/readiness", hs.readiness)
	if err := statsviz.Register(mux); err != nil {
		return nil, err
	}

	hs.server = &http.Server{
		Addr:              addr,
		Handler:           otelhttp.NewHandler(mux, "health"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return hs, nil
}

// Server returns the underlying http.Server.
func (hs *HealthServer) Server() *http.Server { return hs.server }

// Handler returns the instrumented request handler.
func (hs *HealthServer) Handler() http.Handler { return hs.server.Handler }

func (hs *HealthServer) health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (hs *HealthServer) readiness(w http.ResponseWriter, _ *http.Request) {
	if hs.ready == nil || !hs.ready.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
