// Package stub is the non-reflective target-language stand-in for the
// source's runtime transparent proxy (spec.md §4.7/§9): instead of
// generating a proxy at runtime, it exposes one entry point, CallRemote,
// that any hand- or tool-generated typed wrapper calls into. An interface's
// generated wrapper (see example/helloservice for the pattern) is the
// "callable value whose every invocation becomes a remote call."
package stub

import (
	"time"

	"github.com/jinguan/jgrpc/client"
)

// Invoker binds a client.Engine to one remote interface name. A generated
// wrapper type embeds an Invoker per interface and translates its typed
// methods into CallRemote/CallRemoteAsync calls.
//
// Go has no universal root type with overridable equality/toString/hash
// methods for a wrapper to special-case locally (spec.md §4.7 step 1) — every
// exported method on a generated wrapper is a remote call by construction.
type Invoker struct {
	engine        *client.Engine
	interfaceName string
	timeout       time.Duration
}

// NewInvoker binds engine to interfaceName using client.DefaultCallTimeout.
func NewInvoker(engine *client.Engine, interfaceName string) *Invoker {
	return &Invoker{engine: engine, interfaceName: interfaceName, timeout: client.DefaultCallTimeout}
}

// WithTimeout overrides the per-call timeout used by CallRemote.
func (i *Invoker) WithTimeout(timeout time.Duration) *Invoker {
	i.timeout = timeout
	return i
}

// CallRemote dispatches methodName synchronously: builds the request,
// resolves a provider, sends it, and blocks until the reply or timeout.
func (i *Invoker) CallRemote(methodName string, args []any, argTypes []string) (any, error) {
	return i.engine.Call(i.interfaceName, methodName, args, argTypes, i.timeout)
}

// CallRemoteAsync dispatches methodName and returns immediately with a
// handle the generated wrapper hands back to its caller unwrapped — this is
// the path a wrapper takes when the declared return type is future-like.
func (i *Invoker) CallRemoteAsync(methodName string, args []any, argTypes []string) (*client.Future, error) {
	return i.engine.CallAsync(i.interfaceName, methodName, args, argTypes)
}
