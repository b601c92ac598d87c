package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jinguan/jgrpc/message"
)

// LoggingMiddleware logs the interface/method invoked, its duration, and its
// error (if any) through the given zap logger.
func LoggingMiddleware(log *zap.SugaredLogger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) *message.Response {
			start := time.Now()
			resp := next(ctx, req)
			duration := time.Since(start)

			fields := []any{
				"interface", req.InterfaceName,
				"method", req.MethodName,
				"duration", duration,
			}
			if resp.Error != "" {
				log.Warnw("rpc call failed", append(fields, "error", resp.Error)...)
			} else {
				log.Debugw("rpc call completed", fields...)
			}
			return resp
		}
	}
}
