package server

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/transport"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// RequestIDHeader carries the request id on HTTP requests and replies.
const RequestIDHeader = "X-Request-ID"

// ApiSecretMiddleware returns a Kratos middleware that validates the X-API-Key
// HTTP header. An empty secret disables authentication (pass-through).
// Swagger UI and /metrics are unaffected because they are registered with
// HandlePrefix/Handle, which bypass the Kratos middleware chain.
func ApiSecretMiddleware(secret string) middleware.Middleware {
	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req any) (any, error) {
			if secret == "" {
				return handler(ctx, req)
			}

			tr, ok := transport.FromServerContext(ctx)
			if !ok {
				return nil, status.Error(codes.Internal, "no transport in context")
			}

			key := tr.RequestHeader().Get("X-API-Key")
			if key == "" {
				return nil, status.Error(codes.Unauthenticated, "missing X-API-Key header")
			}

			if subtle.ConstantTimeCompare([]byte(key), []byte(secret)) != 1 {
				return nil, status.Error(codes.Unauthenticated, "invalid X-API-Key")
			}

			return handler(ctx, req)
		}
	}
}

// LoggingMiddleware tags each request with an id, echoes it in the reply
// headers and logs the outcome.
func LoggingMiddleware(logger *zap.Logger) middleware.Middleware {
	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req any) (any, error) {
			requestID := ""
			operation := ""
			if tr, ok := transport.FromServerContext(ctx); ok {
				requestID = tr.RequestHeader().Get(RequestIDHeader)
				if requestID == "" {
					requestID = uuid.NewString()
				}
				tr.ReplyHeader().Set(RequestIDHeader, requestID)
				operation = tr.Operation()
			}

			start := time.Now()
			reply, err := handler(ctx, req)

			fields := []zap.Field{
				zap.String("request_id", requestID),
				zap.String("operation", operation),
				zap.Duration("elapsed", time.Since(start)),
			}
			if resp, ok := reply.(*Response); ok {
				fields = append(fields, zap.String("status", resp.Status))
			}
			if err != nil {
				logger.Warn("request rejected", append(fields, zap.Error(err))...)
			} else {
				logger.Info("request", fields...)
			}
			return reply, err
		}
	}
}
