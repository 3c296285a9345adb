package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/eps-docsorter/internal/app"
	"github.com/joseph-ayodele/eps-docsorter/internal/async"
	"github.com/joseph-ayodele/eps-docsorter/internal/common"
	"github.com/joseph-ayodele/eps-docsorter/internal/ingest"
	"github.com/joseph-ayodele/eps-docsorter/internal/pipeline"
	"github.com/joseph-ayodele/eps-docsorter/internal/server"
)

func main() {
	cfg := common.LoadConfig()

	logger, closeLogs, err := common.NewRunLogger(cfg.Log, os.Stdout)
	if err != nil {
		slog.Error("failed to open log files", "error", err)
		os.Exit(1)
	}
	defer func() { _ = closeLogs() }()
	slog.SetDefault(logger)

	addr := cfg.Server.GRPCAddr
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}
	if cfg.Watch.Root != "" && cfg.Server.DefaultPayer == "" {
		logger.Error("WATCH_ROOT requires DEFAULT_PAYER")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, pipeline.AllStages(), logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}()

	if a.Journal != nil {
		if err := a.Journal.Ping(ctx, 5*time.Second); err != nil {
			logger.Error("failed to ping journal", "error", err)
			os.Exit(1)
		}
	}

	queue := async.NewProcessorQueue(a.Service, logger,
		async.WithWorkers(cfg.Server.Workers),
		async.WithQueueSize(cfg.Server.QueueSize),
		async.WithProcessTimeout(cfg.Server.RunTimeout),
	)

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", addr, "error", err)
		os.Exit(1)
	}
	grpcServer := grpc.NewServer()
	server.RegisterProcessorServer(grpcServer, server.NewProcessorService(queue, a.Service, cfg.Server.DefaultPayer, logger))

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(server.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("eps-docsorterd listening", "addr", addr)
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})
	if cfg.Watch.Root != "" {
		g.Go(func() error {
			return watch(gctx, cfg, queue, logger)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.RunTimeout)
		defer cancel()
		queue.Shutdown(shutdownCtx)
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("daemon stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("stopped")
}

// watch enqueues a run for WATCH_ROOT each time new PDFs settle under it.
func watch(ctx context.Context, cfg *common.Config, queue async.Queue, logger *slog.Logger) error {
	roots, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       []string{cfg.Watch.Root},
		InitialScan: true,
		Debounce:    cfg.Watch.Debounce,
	}, logger)
	if err != nil {
		return err
	}
	logger.Info("watching", "root", cfg.Watch.Root, "payer", cfg.Server.DefaultPayer)

	for {
		select {
		case root, ok := <-roots:
			if !ok {
				return nil
			}
			job := async.Job{InputPath: root, Payer: cfg.Server.DefaultPayer, SubmittedAt: time.Now(), TraceID: common.NewRunID()}
			if err := queue.Enqueue(ctx, job); err != nil {
				if ctx.Err() != nil || errors.Is(err, async.ErrClosed) {
					return nil
				}
				logger.Error("failed to enqueue run", "root", root, "error", err)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("watcher reported an error", "error", err)
		}
	}
}
