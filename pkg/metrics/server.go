package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server serves /metrics.
type Server struct {
	Addr     string
	Gatherer prometheus.Gatherer

	listener net.Listener
}

// Listen binds the server address so failures surface before the loop
// starts.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	s.listener = ln
	return nil
}

// ListenAddr returns the bound address.
func (s *Server) ListenAddr() string {
	if s.listener == nil {
		return s.Addr
	}
	return s.listener.Addr().String()
}

// Name implements framework.Named.
func (s *Server) Name() string {
	return "metrics"
}

// Run implements framework.Runnable.
func (s *Server) Run(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(s.listener)
	}()
	glog.Infof("metrics on http://%s/metrics", s.listener.Addr())
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}
