package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"lunchbreak/config"
	"lunchbreak/internal/database"
	"lunchbreak/internal/jobs"
	"lunchbreak/internal/logger"
	"lunchbreak/internal/payments"
)

func main() {
	cfg := config.LoadConfig()
	logger.Setup(cfg.Log)

	redisClient := config.NewRedisClient(cfg.Redis)
	defer redisClient.Close()

	db, err := database.NewConnection(cfg.DB.DSN)
	if err != nil {
		logrus.Fatalf("Failed to connect to db: %v", err)
	}

	lis, err := net.Listen("tcp", cfg.Worker.GRPCAddr)
	if err != nil {
		logrus.Fatalf("Failed to listen: %v", err)
	}

	s := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(s, healthServer)
	reflection.Register(s)

	queue := jobs.NewRedisQueue(redisClient, cfg.Worker.QueueKey)
	relay := jobs.NewRelay(db, queue)
	worker := jobs.NewWorker(db, queue, jobs.NewNotifier(redisClient),
		payments.NewHTTPCapturer(cfg.Payments.CaptureURL, 10*time.Second), cfg.Payments.Currency)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		relay.Run(ctx, cfg.Worker.RelayInterval)
	}()
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()
	healthServer.SetServingStatus(jobs.HealthService, healthpb.HealthCheckResponse_SERVING)

	go func() {
		<-ctx.Done()
		logrus.Info("Shutting down worker")
		healthServer.Shutdown()
		s.GracefulStop()
	}()

	logrus.Infof("Worker health service listening on %s", cfg.Worker.GRPCAddr)
	if err := s.Serve(lis); err != nil {
		logrus.Fatalf("Failed to serve: %v", err)
	}
	wg.Wait()
}
