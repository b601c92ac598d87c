package middleware

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/jinguan/jgrpc/message"
)

func echoHandler(ctx context.Context, req *message.Request) *message.Response {
	return message.Ok(req.CorrelationID, "ok")
}

func TestChainOrdering(t *testing.T) {
	var order []string
	mk := func(name string) Middleware {
		return func(next HandlerFunc) HandlerFunc {
			return func(ctx context.Context, req *message.Request) *message.Response {
				order = append(order, name+":before")
				resp := next(ctx, req)
				order = append(order, name+":after")
				return resp
			}
		}
	}

	chain := Chain(mk("A"), mk("B"), mk("C"))(echoHandler)
	chain(context.Background(), &message.Request{CorrelationID: "1"})

	want := []string{"A:before", "B:before", "C:before", "C:after", "B:after", "A:after"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestLoggingMiddlewarePassesThrough(t *testing.T) {
	handler := LoggingMiddleware(zap.NewNop().Sugar())(echoHandler)
	resp := handler(context.Background(), &message.Request{CorrelationID: "1"})
	if resp.Result != "ok" {
		t.Errorf("expected passthrough result, got %v", resp.Result)
	}
}

func TestRateLimitMiddlewareRejectsOverBurst(t *testing.T) {
	handler := RateLimitMiddleware(1, 1)(echoHandler)

	first := handler(context.Background(), &message.Request{CorrelationID: "1"})
	if first.Error != "" {
		t.Fatalf("expected first call to pass, got error %q", first.Error)
	}

	second := handler(context.Background(), &message.Request{CorrelationID: "2"})
	if second.Error == "" {
		t.Fatal("expected second call to be rate limited")
	}
}

func TestTimeoutMiddlewareFailsSlowHandler(t *testing.T) {
	slow := func(ctx context.Context, req *message.Request) *message.Response {
		select {
		case <-time.After(200 * time.Millisecond):
			return message.Ok(req.CorrelationID, "too late")
		case <-ctx.Done():
			return message.Fail(req.CorrelationID, "cancelled")
		}
	}
	handler := TimeoutMiddleware(20 * time.Millisecond)(slow)

	resp := handler(context.Background(), &message.Request{CorrelationID: "1"})
	if resp.Error == "" {
		t.Fatal("expected a timeout failure")
	}
}

func TestTimeoutMiddlewareAllowsFastHandler(t *testing.T) {
	handler := TimeoutMiddleware(100 * time.Millisecond)(echoHandler)
	resp := handler(context.Background(), &message.Request{CorrelationID: "1"})
	if resp.Error != "" {
		t.Fatalf("expected success, got error %q", resp.Error)
	}
}
