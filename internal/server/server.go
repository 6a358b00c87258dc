package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/middleware/tracing"
	kratoshttp "github.com/go-kratos/kratos/v2/transport/http"
	swaggerUI "github.com/tx7do/kratos-swagger-ui"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/go-tangra/go-tangra-license-inventory/internal/config"
	"github.com/go-tangra/go-tangra-license-inventory/internal/inventory"
	"github.com/go-tangra/go-tangra-license-inventory/internal/metrics"
	"github.com/go-tangra/go-tangra-license-inventory/internal/store"
)

// NewGRPCServer returns a gRPC server exposing every operation in reg.
func NewGRPCServer(cfg *config.Config, reg *Registry, logger *zap.Logger) *grpc.Server {
	grpcSrv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			ClientSecretInterceptor(cfg.ClientSecret),
			LoggingInterceptor(logger),
		),
	)
	grpcSrv.RegisterService(ServiceDesc(reg), reg)
	return grpcSrv
}

// HealthFunc reports whether the daemon can serve requests.
type HealthFunc func(ctx context.Context) error

// NewHTTPServer returns the kratos HTTP server with the REST routes and
// /healthz, and optionally /metrics and the Swagger UI.
func NewHTTPServer(cfg *config.Config, reg *Registry, m *metrics.Metrics, health HealthFunc, openApiData []byte, logger *zap.Logger) *kratoshttp.Server {
	httpSrv := kratoshttp.NewServer(
		kratoshttp.Address(cfg.HTTPListen),
		kratoshttp.Timeout(30*time.Second),
		kratoshttp.Middleware(
			recovery.Recovery(),
			tracing.Server(),
			LoggingMiddleware(logger),
			ApiSecretMiddleware(cfg.ApiSecret),
		),
	)
	RegisterHTTPRoutes(httpSrv, reg)

	if health != nil {
		httpSrv.HandleFunc("/healthz", healthz(health, logger))
	}

	if cfg.EnableMetrics && m != nil {
		httpSrv.Handle("/metrics", m.Handler())
	}

	// Swagger UI (registered via HandlePrefix, which bypasses the middleware chain).
	if cfg.EnableSwagger && len(openApiData) > 0 {
		swaggerUI.RegisterSwaggerUIServerWithOption(
			httpSrv,
			swaggerUI.WithTitle("License Inventory"),
			swaggerUI.WithMemoryData(openApiData, "yaml"),
		)
		logger.Info("swagger UI enabled", zap.String("url", fmt.Sprintf("http://%s/docs/", cfg.HTTPListen)))
	}
	return httpSrv
}

func healthz(health HealthFunc, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if err := health(ctx); err != nil {
			logger.Warn("health check failed", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("unavailable\n"))
			return
		}
		_, _ = w.Write([]byte("ok\n"))
	}
}

// Run starts the gRPC and HTTP servers and blocks until the context is cancelled.
func Run(ctx context.Context, cfg *config.Config, openApiData []byte, logger *zap.Logger) error {
	db, err := store.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	m := metrics.New()
	svc := inventory.NewService(db, inventory.WithLogger(logger), inventory.WithMetrics(m))

	reg := NewRegistry(logger)
	NewHandler(svc).Register(reg)

	grpcSrv := NewGRPCServer(cfg, reg, logger)

	lis, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen gRPC on %s: %w", cfg.Listen, err)
	}

	// Graceful shutdown when the caller cancels the context.
	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		grpcSrv.GracefulStop()
	}()

	httpSrv := NewHTTPServer(cfg, reg, m, db.Ping, openApiData, logger)

	go func() {
		if err := httpSrv.Start(ctx); err != nil {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		_ = httpSrv.Stop(context.Background())
	}()

	logger.Info("license inventory listening",
		zap.String("grpc", cfg.Listen),
		zap.String("http", cfg.HTTPListen),
		zap.String("database", cfg.DatabasePath),
		zap.Strings("operations", reg.Names()))

	return grpcSrv.Serve(lis)
}
