// Package helloservice is a hand-written generated-style wrapper
// demonstrating end-to-end stub usage, grounded on spec.md's scenarios S1
// ("Hi, "+arg), S4 (invocation failure), and S5 (async completion).
package helloservice

import (
	"fmt"
	"time"

	"github.com/jinguan/jgrpc/client"
	"github.com/jinguan/jgrpc/server"
	"github.com/jinguan/jgrpc/stub"
)

// InterfaceName is the fully qualified name both sides agree on.
const InterfaceName = "demo.Hello"

// Impl is the server-side implementation registered with server.Server.
type Impl struct{}

// Hello is the synchronous method: S1 expects "Hi, world" for "world".
func (h *Impl) Hello(name string) (string, error) {
	return "Hi, " + name, nil
}

// Boom always fails, demonstrating S4's InvocationFailed propagation.
func (h *Impl) Boom(name string) (string, error) {
	return "", fmt.Errorf("boom")
}

// HelloAsync is the asynchronous method: S5 expects the handle to resolve
// roughly 200ms after the call is issued.
func (h *Impl) HelloAsync(name string) (*server.FutureResult, error) {
	future := server.NewFuture()
	go func() {
		time.Sleep(200 * time.Millisecond)
		future.Complete("Hi, "+name, nil)
	}()
	return future, nil
}

// Stub is the client-side generated-style wrapper: every method becomes a
// remote call through its embedded Invoker.
type Stub struct {
	invoker *stub.Invoker
}

// NewStub binds engine to InterfaceName.
func NewStub(engine *client.Engine) *Stub {
	return &Stub{invoker: stub.NewInvoker(engine, InterfaceName)}
}

// WithTimeout overrides the per-call timeout used by synchronous methods.
func (s *Stub) WithTimeout(timeout time.Duration) *Stub {
	s.invoker.WithTimeout(timeout)
	return s
}

// Hello calls the remote synchronous method and unwraps its string result.
func (s *Stub) Hello(name string) (string, error) {
	result, err := s.invoker.CallRemote("Hello", []any{name}, []string{"string"})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// Boom calls the remote method that always fails.
func (s *Stub) Boom(name string) (string, error) {
	result, err := s.invoker.CallRemote("Boom", []any{name}, []string{"string"})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// HelloAsync's declared return type is future-like, so the wrapper returns
// the handle immediately instead of blocking.
func (s *Stub) HelloAsync(name string) (*client.Future, error) {
	return s.invoker.CallRemoteAsync("HelloAsync", []any{name}, []string{"string"})
}
