package middleware

import (
	"context"
	"time"

	"github.com/jinguan/jgrpc/message"
)

// TimeoutMiddleware is a server-side safety net, independent of the
// client's own per-call timeout: a handler that runs longer than timeout
// gets a failed response instead of holding the connection's dispatch
// worker indefinitely.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) *message.Response {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			done := make(chan *message.Response, 1)
			go func() {
				done <- next(ctx, req)
			}()

			select {
			case resp := <-done:
				return resp
			case <-ctx.Done():
				return message.Fail(req.CorrelationID, "request timed out")
			}
		}
	}
}
