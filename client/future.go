package client

import (
	"fmt"
	"strings"
	"time"

	"github.com/jinguan/jgrpc/jgerrors"
	"github.com/jinguan/jgrpc/message"
	"github.com/jinguan/jgrpc/transport"
)

// Future is the client-side "in-flight completion" handle (spec.md §9): a
// stub whose declared return type is future-like returns one of these
// immediately; a synchronous stub calls Wait on the caller's behalf.
type Future struct {
	transport     *transport.ClientTransport
	correlationID string
	respCh        <-chan *message.Response
}

// Wait blocks the calling goroutine until the reply arrives or timeout
// elapses. On timeout the pending entry is cancelled so a late reply is
// dropped rather than delivered to a caller that already gave up.
func (f *Future) Wait(timeout time.Duration) (any, error) {
	select {
	case resp := <-f.respCh:
		if !resp.Success {
			if f.transport.Closed() && strings.HasPrefix(resp.Error, "connection lost: ") {
				return nil, jgerrors.New(jgerrors.KindConnectionLost, resp.Error)
			}
			return nil, jgerrors.New(jgerrors.KindInvocationFailed, resp.Error)
		}
		return resp.Result, nil
	case <-time.After(timeout):
		f.transport.CancelPending(f.correlationID)
		return nil, jgerrors.New(jgerrors.KindTimeout, fmt.Sprintf("call %s timed out after %s", f.correlationID, timeout))
	}
}
