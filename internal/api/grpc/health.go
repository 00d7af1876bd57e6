package grpc

import (
	"context"
	"net"
	"sort"
	"sync"
	"time"

	"lab-inventory-backend/internal/api/grpc/interceptor"
	"lab-inventory-backend/internal/logger"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Check reports whether one background component is healthy.
type Check func() bool

// HealthServer exposes the standard grpc.health.v1 service. Every check is
// published under its own service name; the empty name is SERVING only when
// all checks pass.
type HealthServer struct {
	server   *grpc.Server
	health   *health.Server
	checks   map[string]Check
	interval time.Duration

	stopOnce sync.Once
	done     chan struct{}
}

func NewHealthServer(checks map[string]Check, interval time.Duration) *HealthServer {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	s := grpc.NewServer(grpc.UnaryInterceptor(interceptor.Unary()))
	h := health.NewServer()
	healthpb.RegisterHealthServer(s, h)
	reflection.Register(s)

	hs := &HealthServer{
		server:   s,
		health:   h,
		checks:   checks,
		interval: interval,
		done:     make(chan struct{}),
	}
	hs.Refresh()
	return hs
}

// Refresh re-evaluates every check and publishes the result.
func (h *HealthServer) Refresh() {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	overall := healthpb.HealthCheckResponse_SERVING
	for _, name := range names {
		st := healthpb.HealthCheckResponse_SERVING
		if !h.checks[name]() {
			st = healthpb.HealthCheckResponse_NOT_SERVING
			overall = healthpb.HealthCheckResponse_NOT_SERVING
		}
		h.health.SetServingStatus(name, st)
	}
	h.health.SetServingStatus("", overall)
}

// Serve blocks serving on lis and refreshes the statuses every interval.
func (h *HealthServer) Serve(lis net.Listener) error {
	go func() {
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				h.Refresh()
			case <-h.done:
				return
			}
		}
	}()
	logger.Info("gRPC health server listening", "address", lis.Addr().String())
	return h.server.Serve(lis)
}

// Stop marks everything NOT_SERVING and drains connections until ctx ends,
// then closes them forcibly.
func (h *HealthServer) Stop(ctx context.Context) {
	h.stopOnce.Do(func() {
		close(h.done)
		h.health.Shutdown()

		stopped := make(chan struct{})
		go func() {
			h.server.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-ctx.Done():
			logger.Warn("gRPC graceful stop timed out")
			h.server.Stop()
		}
	})
}
