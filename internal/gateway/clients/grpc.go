package clients

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"lunchbreak/internal/jobs"
)

type WorkerClient struct {
	Health healthpb.HealthClient
	conn   *grpc.ClientConn
}

func NewWorkerClient(addr string) (*WorkerClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("worker connection failed: %w", err)
	}

	logrus.WithField("addr", addr).Info("Worker client ready")
	return &WorkerClient{
		Health: healthpb.NewHealthClient(conn),
		conn:   conn,
	}, nil
}

// IsWorkerHealthy asks the worker whether it is consuming jobs.
func (c *WorkerClient) IsWorkerHealthy(ctx context.Context) bool {
	if c == nil || c.Health == nil {
		return false
	}
	resp, err := c.Health.Check(ctx, &healthpb.HealthCheckRequest{Service: jobs.HealthService})
	if err != nil {
		logrus.WithError(err).Debug("Worker health check failed")
		return false
	}
	return resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
}

func (c *WorkerClient) Close() {
	if c != nil && c.conn != nil {
		c.conn.Close()
	}
}
