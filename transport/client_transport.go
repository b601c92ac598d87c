// Package transport implements the client side of the multiplexed TCP
// connection: one connection carries many concurrent calls, each tagged
// with a correlation id so replies can be routed back to the right caller
// regardless of arrival order.
//
//	goroutine-1 ──Send(id=a-1)──┐
//	goroutine-2 ──Send(id=a-2)──┼──→ single TCP conn ──→ Server
//	goroutine-3 ──Send(id=a-3)──┘
//
//	recvLoop:  ←── response(id=a-2) → pending[a-2] chan ← response → goroutine-2 wakes up
package transport

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/jinguan/jgrpc/codec"
	"github.com/jinguan/jgrpc/message"
	"github.com/jinguan/jgrpc/protocol"
)

// HeartbeatInterval is how often ClientTransport probes an idle connection.
const HeartbeatInterval = 15 * time.Second

// ClientTransport multiplexes many concurrent calls over one TCP connection.
type ClientTransport struct {
	conn    net.Conn
	codec   codec.Codec // serializer used for outbound frames on this transport
	pending sync.Map    // correlation id (string) -> chan *message.Response
	sending sync.Mutex  // serializes writes so one frame is never interleaved with another
	closed  atomic.Bool
	log     *zap.SugaredLogger
}

// NewClientTransport wraps conn and starts its background recv and heartbeat
// loops. The caller owns conn's lifecycle via Close. A nil log is replaced
// with a no-op logger.
func NewClientTransport(conn net.Conn, c codec.Codec, log *zap.SugaredLogger) *ClientTransport {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	t := &ClientTransport{conn: conn, codec: c, log: log}
	go t.recvLoop()
	go t.heartbeatLoop(HeartbeatInterval)
	return t
}

// Send encodes and writes req, returning a channel that receives exactly one
// Response once the reply (or a connection failure) arrives. The caller must
// set req.CorrelationID to a value unique among calls currently in flight on
// this transport before calling Send.
func (t *ClientTransport) Send(req *message.Request) (<-chan *message.Response, error) {
	body, err := t.codec.Encode(req)
	if err != nil {
		return nil, fmt.Errorf("jgrpc: encode request: %w", err)
	}
	header := &protocol.Header{Serializer: t.codec.Tag(), MsgType: protocol.MsgRequest, BodyLen: uint32(len(body))}

	respChan := make(chan *message.Response, 1)
	t.pending.Store(req.CorrelationID, respChan)

	t.sending.Lock()
	err = protocol.Encode(t.conn, header, body)
	t.sending.Unlock()
	if err != nil {
		t.pending.Delete(req.CorrelationID)
		return nil, fmt.Errorf("jgrpc: write request: %w", err)
	}
	return respChan, nil
}

// CancelPending removes a pending entry without delivering any response,
// used by a caller that has given up waiting (e.g. a client-side timeout).
// A reply that arrives afterward finds nothing in the pending map and is
// dropped by recvLoop, per the spec's late-reply handling.
func (t *ClientTransport) CancelPending(correlationID string) {
	t.pending.Delete(correlationID)
}

// recvLoop owns the connection's single reader. TCP is a byte stream: reads
// must stay sequential to parse frame boundaries correctly, so one goroutine
// reads for the lifetime of the connection and fans replies out by
// correlation id.
func (t *ClientTransport) recvLoop() {
	for {
		header, body, err := protocol.Decode(t.conn)
		if err != nil {
			t.closeAllPending(err)
			return
		}
		if header.MsgType != protocol.MsgResponse {
			continue // heartbeat responses need no routing
		}

		c, err := codec.Get(header.Serializer)
		if err != nil {
			t.log.Warnw("unknown serializer in response, closing connection", "tag", header.Serializer, "error", err)
			t.conn.Close()
			t.closeAllPending(err)
			return
		}
		var resp message.Response
		if err := c.Decode(body, &resp); err != nil {
			continue
		}

		if ch, ok := t.pending.LoadAndDelete(resp.CorrelationID); ok {
			ch.(chan *message.Response) <- &resp
		}
	}
}

// closeAllPending fails every call still waiting on this connection, so no
// caller blocks forever once the connection is gone.
func (t *ClientTransport) closeAllPending(err error) {
	t.log.Warnw("connection lost, failing pending calls", "error", err)
	t.closed.Store(true)
	t.pending.Range(func(key, value any) bool {
		ch := value.(chan *message.Response)
		ch <- message.Fail(key.(string), fmt.Sprintf("connection lost: %v", err))
		return true
	})
	t.pending.Clear()
}

// Closed reports whether the connection has already failed.
func (t *ClientTransport) Closed() bool {
	return t.closed.Load()
}

// Conn returns the underlying connection.
func (t *ClientTransport) Conn() net.Conn {
	return t.conn
}

// Close tears down the connection; in-flight calls observe a connection-lost
// failure via recvLoop.
func (t *ClientTransport) Close() error {
	return t.conn.Close()
}

// heartbeatLoop periodically probes the connection so a half-open TCP
// connection (peer gone, no FIN received) is detected instead of looking
// idle forever.
func (t *ClientTransport) heartbeatLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		header := &protocol.Header{Serializer: t.codec.Tag(), MsgType: protocol.MsgHeartbeatRequest, BodyLen: 0}
		t.sending.Lock()
		err := protocol.Encode(t.conn, header, nil)
		t.sending.Unlock()
		if err != nil {
			return
		}
	}
}
