// Package metrics serves the node's Prometheus registry over HTTP, the
// same /metrics + /healthz shape every Prysm-era service binary exposes.
package metrics

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "metrics")

// Service is a shared/service.Service that serves /metrics and /healthz on
// its own listener, started and stopped alongside every other subsystem by
// the Node's registry.
type Service struct {
	server     *http.Server
	failStatus error
}

// NewService returns a metrics Service bound to addr (e.g. ":8080"). An
// empty host matches any interface.
func NewService(addr string) *Service {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", healthzHandler)
	return &Service{server: &http.Server{Addr: addr, Handler: mux}}
}

func healthzHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Start satisfies shared/service.Service. It refuses to bind a port that's
// already in use rather than silently stealing it from another process.
func (s *Service) Start() {
	go func() {
		addrParts := strings.Split(s.server.Addr, ":")
		port := addrParts[len(addrParts)-1]
		conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%s", port), time.Second)
		if err == nil {
			_ = conn.Close()
			log.WithField("address", s.server.Addr).Warn("Port already in use; cannot start metrics service")
			return
		}
		log.WithField("address", s.server.Addr).Debug("Starting metrics service")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("Metrics service stopped unexpectedly")
			s.failStatus = err
		}
	}()
}

// Stop satisfies shared/service.Service.
func (s *Service) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// Status reports the last listen/serve failure, if any.
func (s *Service) Status() error {
	return s.failStatus
}
