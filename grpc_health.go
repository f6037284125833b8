package main

import (
	"context"
	"net"
	"time"

	"github.com/hivemindd/admin-auth/handlers"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

const healthPollInterval = 15 * time.Second

// serveGRPCHealth exposes the standard gRPC health service for orchestrators
// that probe over gRPC. Status follows the same dependency pings as the HTTP
// health route.
func serveGRPCHealth(ctx context.Context, port string, deps map[string]handlers.Pinger, logger *zap.Logger) error {
	lis, err := net.Listen("tcp", port)
	if err != nil {
		return err
	}

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)

	go func() {
		ticker := time.NewTicker(healthPollInterval)
		defer ticker.Stop()
		for {
			healthServer.SetServingStatus(serviceName, pingAll(ctx, deps, logger))
			select {
			case <-ctx.Done():
				healthServer.Shutdown()
				grpcServer.GracefulStop()
				return
			case <-ticker.C:
			}
		}
	}()

	logger.Info("gRPC health listening", zap.String("port", port))
	return grpcServer.Serve(lis)
}

func pingAll(ctx context.Context, deps map[string]handlers.Pinger, logger *zap.Logger) grpc_health_v1.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	for name, dep := range deps {
		if err := dep.Ping(ctx); err != nil {
			logger.Warn("dependency unhealthy", zap.String("dependency", name), zap.Error(err))
			return grpc_health_v1.HealthCheckResponse_NOT_SERVING
		}
	}
	return grpc_health_v1.HealthCheckResponse_SERVING
}
