package interceptor

import (
	"context"
	"time"

	"lab-inventory-backend/internal/logger"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Unary returns a server interceptor that recovers handler panics and logs
// every call at debug level.
func Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("gRPC handler panicked", "method", info.FullMethod, "panic", r)
				err = status.Error(codes.Internal, "internal error")
			}
			logger.Debug("gRPC call", "method", info.FullMethod, "code", status.Code(err).String(), "duration", time.Since(start))
		}()
		return handler(ctx, req)
	}
}
