package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/vietddude/vitality/internal/core/domain"
)

// ServicePrefix namespaces the per-kind gRPC health services.
const ServicePrefix = "vitality."

// GRPCServer exposes the standard gRPC health service. The empty service name
// follows the node connection; "vitality.<kind>" is NOT_SERVING while issues
// of that kind are open.
type GRPCServer struct {
	monitor *Monitor
	health  *grpchealth.Server
	server  *grpc.Server
	addr    string
}

// NewGRPCServer creates a gRPC health server on host:port reading from monitor.
func NewGRPCServer(monitor *Monitor, host string, port int) *GRPCServer {
	hs := grpchealth.NewServer()
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	return &GRPCServer{
		monitor: monitor,
		health:  hs,
		server:  srv,
		addr:    net.JoinHostPort(host, strconv.Itoa(port)),
	}
}

// Sync pushes the monitor's current view into the health service.
func (g *GRPCServer) Sync() {
	report := g.monitor.Report()

	overall := healthpb.HealthCheckResponse_SERVING
	if report.SystemStatus == StatusCritical {
		overall = healthpb.HealthCheckResponse_NOT_SERVING
	}
	g.health.SetServingStatus("", overall)

	for _, k := range domain.Kinds {
		status := healthpb.HealthCheckResponse_SERVING
		if report.Kinds[k].Open > 0 {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		g.health.SetServingStatus(ServicePrefix+string(k), status)
	}
}

// Run serves until ctx is cancelled, refreshing the statuses every interval.
func (g *GRPCServer) Run(ctx context.Context, interval time.Duration) error {
	lis, err := net.Listen("tcp", g.addr)
	if err != nil {
		return fmt.Errorf("listen grpc health: %w", err)
	}
	return g.Serve(ctx, lis, interval)
}

// Serve is Run on an existing listener. It returns once the server and its
// status refresh loop have both stopped.
func (g *GRPCServer) Serve(ctx context.Context, lis net.Listener, interval time.Duration) error {
	g.Sync()

	served := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-served:
				return
			case <-ctx.Done():
				g.health.Shutdown()
				g.server.GracefulStop()
				return
			case <-ticker.C:
				g.Sync()
			}
		}
	}()

	slog.Info("gRPC health server listening", "addr", lis.Addr().String())
	err := g.server.Serve(lis)
	close(served)
	wg.Wait()

	if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}
