package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/LavaJover/shvark-settlement-service/internal/app/background"
	"github.com/LavaJover/shvark-settlement-service/internal/app/setup"
	"github.com/LavaJover/shvark-settlement-service/internal/config"
	"github.com/LavaJover/shvark-settlement-service/internal/delivery/grpcapi"
	"github.com/LavaJover/shvark-settlement-service/internal/delivery/http/handlers"
	"github.com/LavaJover/shvark-settlement-service/internal/infrastructure/logger"
	"github.com/LavaJover/shvark-settlement-service/internal/infrastructure/tracing"
)

const healthCheckInterval = 15 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("failed to load .env")
	}
	cfg := config.MustLoad()

	zlog, err := logger.New(cfg.LogConfig)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	shutdownTracing, err := tracing.InitTracing(cfg.Tracing)
	if err != nil {
		zlog.Fatal("failed to init tracing", zap.Error(err))
	}

	deps, err := setup.InitializeDependencies(cfg, zlog)
	if err != nil {
		zlog.Fatal("failed to init dependencies", zap.Error(err))
	}
	ucs, err := setup.InitializeUseCases(deps)
	if err != nil {
		zlog.Fatal("failed to init usecases", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpPingers := map[string]handlers.Pinger{
		"database": deps.Repositories.OrderRepo,
		"redis":    deps.QueueStore,
	}
	grpcPingers := make(map[string]grpcapi.Pinger, len(httpPingers))
	for name, p := range httpPingers {
		grpcPingers[name] = p
	}

	// HTTP
	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handlers.NewRouter(handlers.RouterDeps{
		ServiceName: cfg.Tracing.ServiceName,
		AdminToken:  cfg.Admin.Token,
		Checkout:    handlers.NewCheckoutHandler(ucs.OrderUsecase, zlog),
		Admin:       handlers.NewAdminHandler(ucs.OrderUsecase, ucs.Queue, deps.Repositories.SecurityEvents, cfg.Queue.BatchSize, zlog),
		Health:      handlers.NewHealthHandler(httpPingers),
		Metrics:     deps.Metrics,
		Gatherer:    deps.Registry,
		Logger:      zlog,
	})
	httpSrv := &http.Server{
		Addr:         net.JoinHostPort(cfg.HTTPServer.Host, cfg.HTTPServer.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
	}
	go func() {
		zlog.Info("HTTP server started", zap.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// gRPC health
	healthSrv := grpcapi.NewHealthServer(grpcPingers, zlog)
	grpcServer := grpcapi.NewServer(healthSrv)
	lis, err := net.Listen("tcp", fmt.Sprintf("%s:%s", cfg.GRPCServer.Host, cfg.GRPCServer.Port))
	if err != nil {
		zlog.Fatal("failed to listen", zap.Error(err))
	}
	go healthSrv.Watch(ctx, healthCheckInterval)
	go func() {
		zlog.Info("gRPC server started", zap.String("addr", lis.Addr().String()))
		if err := grpcServer.Serve(lis); err != nil {
			zlog.Error("gRPC server stopped", zap.Error(err))
		}
	}()

	// Scheduler
	tasks := background.NewBackgroundTasks(ucs.OrderUsecase, deps.ReplayGuard, ucs.Queue, deps.Metrics, background.Intervals{
		QueuePoll:    cfg.Queue.PollInterval,
		BatchSize:    cfg.Queue.BatchSize,
		Cleanup:      cfg.Queue.CleanupInterval,
		ReplaySweep:  cfg.Security.SweepInterval,
		DepthRefresh: cfg.Queue.PollInterval,
	}, zlog)
	tasks.StartAll(ctx)

	<-ctx.Done()
	zlog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPServer.ShutdownTimeout)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("HTTP server forced to shutdown", zap.Error(err))
	}
	grpcServer.GracefulStop()
	tasks.Wait()
	if err := shutdownTracing(shutdownCtx); err != nil {
		zlog.Error("failed to flush traces", zap.Error(err))
	}
	deps.Close(shutdownCtx)

	zlog.Info("service stopped")
}
