package lifecycle

import "github.com/jinguan/jgrpc/client"

// ClientLifecycle is the client-side half of spec.md §4.7: a lazy
// connection cache keyed by backend (client.Engine already is that cache)
// plus the bulk-close operation a process shutdown hook calls.
type ClientLifecycle struct {
	engine *client.Engine
}

// NewClientLifecycle wraps engine.
func NewClientLifecycle(engine *client.Engine) *ClientLifecycle {
	return &ClientLifecycle{engine: engine}
}

// Close releases every connection the engine has opened.
func (c *ClientLifecycle) Close() {
	c.engine.CloseAll()
}
