package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/onflow/batch-verifier/module/component"
	"github.com/onflow/batch-verifier/module/irrecoverable"
)

// shutdownTimeout bounds how long in-flight scrapes may take once the server stops.
const shutdownTimeout = 5 * time.Second

// Server is the http server that will be serving the /metrics request for prometheus
type Server struct {
	component.Component

	log      zerolog.Logger
	server   *http.Server
	listener net.Listener
}

// NewServer creates a new server that will start on the specified port,
// and responds to only the `/metrics` endpoint. Metrics are gathered from gatherer.
// Port 0 picks a free port, which is reported by Addr once the server is ready.
func NewServer(log zerolog.Logger, port uint, gatherer prometheus.Gatherer) *Server {
	addr := ":" + strconv.Itoa(int(port))

	mux := http.NewServeMux()
	endpoint := "/metrics"
	mux.Handle(endpoint, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	m := &Server{
		log:    log.With().Str("component", "metrics_server").Str("address", addr).Str("endpoint", endpoint).Logger(),
		server: &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second},
	}
	m.Component = component.NewComponentManagerBuilder().
		AddWorker(m.serve).
		Build()

	return m
}

// Addr returns the address the server listens on. Only valid after the server is ready.
func (m *Server) Addr() net.Addr {
	return m.listener.Addr()
}

func (m *Server) serve(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	listener, err := net.Listen("tcp", m.server.Addr)
	if err != nil {
		ctx.Throw(err)
	}
	m.listener = listener
	m.log.Info().Str("listen_address", listener.Addr().String()).Msg("metrics server started")

	served := make(chan error, 1)
	go func() {
		served <- m.server.Serve(listener)
	}()
	ready()

	select {
	case err := <-served:
		// the server stopped without being asked to
		ctx.Throw(err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := m.server.Shutdown(shutdownCtx); err != nil {
		m.log.Err(err).Msg("error shutting down metrics server")
	}
	if err := <-served; err != nil && !errors.Is(err, http.ErrServerClosed) {
		m.log.Err(err).Msg("metrics server stopped with error")
	}
	m.log.Debug().Msg("metrics server shutdown")
}
