package grpcapi

import (
	"context"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the name reported to gRPC health checks.
const ServiceName = "settlement.SettlementService"

type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthServer keeps the gRPC health status in line with the service's
// backing stores.
type HealthServer struct {
	health *health.Server
	deps   map[string]Pinger
	logger *zap.Logger
}

func NewHealthServer(deps map[string]Pinger, logger *zap.Logger) *HealthServer {
	return &HealthServer{
		health: health.NewServer(),
		deps:   deps,
		logger: logger.With(zap.String("component", "grpc_health")),
	}
}

// NewServer builds the gRPC server with tracing and registers health and
// reflection.
func NewServer(h *HealthServer) *grpc.Server {
	srv := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthpb.RegisterHealthServer(srv, h.health)
	reflection.Register(srv)
	return srv
}

// Refresh pings every dependency once and updates the serving status of both
// the overall server and ServiceName.
func (h *HealthServer) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	for name, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			h.logger.Warn("dependency unhealthy", zap.String("dependency", name), zap.Error(err))
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(ServiceName, status)
	return status
}

// Watch refreshes on every tick until ctx is done, then marks the server as
// shutting down.
func (h *HealthServer) Watch(ctx context.Context, interval time.Duration) {
	h.Refresh(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.health.Shutdown()
			return
		case <-ticker.C:
			tickCtx, cancel := context.WithTimeout(ctx, interval/2)
			h.Refresh(tickCtx)
			cancel()
		}
	}
}
