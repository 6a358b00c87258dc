package server

import (
	"context"
	"crypto/subtle"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// ClientSecretInterceptor returns a gRPC unary server interceptor that
// validates the x-client-secret metadata header. An empty secret disables
// authentication (pass-through).
func ClientSecretInterceptor(secret string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if secret == "" {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		vals := md.Get("x-client-secret")
		if len(vals) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing x-client-secret")
		}

		if subtle.ConstantTimeCompare([]byte(vals[0]), []byte(secret)) != 1 {
			return nil, status.Error(codes.Unauthenticated, "invalid x-client-secret")
		}

		return handler(ctx, req)
	}
}

// LoggingInterceptor logs every gRPC call with its envelope status.
func LoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		reply, err := handler(ctx, req)

		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.Duration("elapsed", time.Since(start)),
		}
		if resp, ok := reply.(*Response); ok {
			fields = append(fields, zap.String("status", resp.Status))
		}
		if err != nil {
			logger.Warn("grpc call rejected", append(fields, zap.Error(err))...)
		} else {
			logger.Debug("grpc call", fields...)
		}
		return reply, err
	}
}
