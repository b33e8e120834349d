package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"tomdash/internal/plots"
	"tomdash/internal/targets"
	"tomdash/pkg/database"
	"tomdash/pkg/utils"
)

const probeInterval = 5 * time.Second

// serviceName is reported alongside the overall ("") status.
var serviceName = "tomdash." + plots.TargetDistributionApp

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "grpc-server:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := utils.LoadConfig()
	if err != nil {
		return err
	}
	log, err := utils.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	dbCfg := database.DefaultConfig()
	if cfg.DBPath != "" {
		dbCfg.Path = cfg.DBPath
	}
	db, err := database.Open(dbCfg)
	if err != nil {
		return fmt.Errorf("open db %s: %w", dbCfg.Path, err)
	}
	defer db.Close()
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	listener, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.GRPCAddr, err)
	}

	hs := health.NewServer()
	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go watch(ctx, hs, targets.NewRepo(db), log)
	go func() {
		<-ctx.Done()
		log.Info("shutdown signal received")
		hs.Shutdown()
		grpcServer.GracefulStop()
	}()

	log.Info("gRPC health server listening", zap.String("addr", cfg.GRPCAddr), zap.String("service", serviceName))
	if err := grpcServer.Serve(listener); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	log.Info("server stopped")
	return nil
}

// probe reports SERVING when the target table the widget reads from answers
// a query.
func probe(ctx context.Context, repo *targets.Repo) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if _, err := repo.List(ctx, targets.ListQuery{Limit: 1}); err != nil {
		return healthpb.HealthCheckResponse_NOT_SERVING
	}
	return healthpb.HealthCheckResponse_SERVING
}

func watch(ctx context.Context, hs *health.Server, repo *targets.Repo, log *zap.Logger) {
	ticker := time.NewTicker(probeInterval)
	defer ticker.Stop()

	last := healthpb.HealthCheckResponse_UNKNOWN
	for {
		status := probe(ctx, repo)
		if status != last {
			log.Info("health changed", zap.String("status", status.String()))
			last = status
		}
		hs.SetServingStatus(serviceName, status)
		hs.SetServingStatus("", status)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
