package server

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/jinguan/jgrpc/codec"
	"github.com/jinguan/jgrpc/message"
	"github.com/jinguan/jgrpc/protocol"
)

type greeter struct{}

func (g *greeter) SayHello(name string) (string, error) {
	return "hello " + name, nil
}

func (g *greeter) Fail(name string) (string, error) {
	return "", fmt.Errorf("always fails")
}

func (g *greeter) SayHelloAsync(name string) (*FutureResult, error) {
	f := NewFuture()
	go func() {
		time.Sleep(30 * time.Millisecond)
		f.Complete("async hello "+name, nil)
	}()
	return f, nil
}

func TestRegisterRejectsNilImpl(t *testing.T) {
	s := NewServer()
	if err := s.Register(nil, "demo.Greeter"); err == nil {
		t.Fatal("expected error registering nil implementation")
	}
}

func TestRegisterRejectsNoInterfaces(t *testing.T) {
	s := NewServer()
	if err := s.Register(&greeter{}); err == nil {
		t.Fatal("expected error registering with no interface names")
	}
}

func startTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	s := NewServer(WithIdleTimeout(200 * time.Millisecond))
	if err := s.Register(&greeter{}, "demo.Greeter"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	ready := make(chan struct{})
	go func() {
		go func() {
			for s.Addr() == nil {
				time.Sleep(time.Millisecond)
			}
			close(ready)
		}()
		_ = s.Serve(addr)
	}()
	<-ready
	return s, addr
}

func callRaw(t *testing.T, conn net.Conn, req *message.Request) *message.Response {
	t.Helper()
	c, _ := codec.Get(codec.TagJSON)
	body, err := c.Encode(req)
	if err != nil {
		t.Fatalf("encode request: %v", err)
	}
	header := &protocol.Header{Serializer: codec.TagJSON, MsgType: protocol.MsgRequest, BodyLen: uint32(len(body))}
	if err := protocol.Encode(conn, header, body); err != nil {
		t.Fatalf("write request: %v", err)
	}

	respHeader, respBody, err := protocol.Decode(conn)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	if respHeader.MsgType != protocol.MsgResponse {
		t.Fatalf("expected response frame, got msgtype %d", respHeader.MsgType)
	}
	var resp message.Response
	if err := c.Decode(respBody, &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return &resp
}

func TestServeServiceNotFound(t *testing.T) {
	_, addr := startTestServer(t)
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	resp := callRaw(t, conn, &message.Request{
		InterfaceName: "demo.Missing",
		MethodName:    "SayHello",
		Args:          []any{"world"},
		ArgTypes:      []string{"string"},
		CorrelationID: "c1",
	})
	if resp.Success {
		t.Fatal("expected failure for unknown interface")
	}
	if resp.CorrelationID != "c1" {
		t.Fatalf("correlation id = %q, want c1", resp.CorrelationID)
	}
}

func TestServeMethodNotFound(t *testing.T) {
	_, addr := startTestServer(t)
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	resp := callRaw(t, conn, &message.Request{
		InterfaceName: "demo.Greeter",
		MethodName:    "NoSuchMethod",
		Args:          []any{},
		ArgTypes:      []string{},
		CorrelationID: "c2",
	})
	if resp.Success {
		t.Fatal("expected failure for unknown method")
	}
}

func TestServeSuccessfulCall(t *testing.T) {
	_, addr := startTestServer(t)
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	resp := callRaw(t, conn, &message.Request{
		InterfaceName: "demo.Greeter",
		MethodName:    "SayHello",
		Args:          []any{"world"},
		ArgTypes:      []string{"string"},
		CorrelationID: "c3",
	})
	if !resp.Success {
		t.Fatalf("expected success, got error %q", resp.Error)
	}
	if resp.Result != "hello world" {
		t.Fatalf("result = %v, want %q", resp.Result, "hello world")
	}
}

func TestServeAsyncCall(t *testing.T) {
	_, addr := startTestServer(t)
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	resp := callRaw(t, conn, &message.Request{
		InterfaceName: "demo.Greeter",
		MethodName:    "SayHelloAsync",
		Args:          []any{"world"},
		ArgTypes:      []string{"string"},
		CorrelationID: "c4",
	})
	if !resp.Success {
		t.Fatalf("expected success, got error %q", resp.Error)
	}
	if resp.Result != "async hello world" {
		t.Fatalf("result = %v, want %q", resp.Result, "async hello world")
	}
}

func TestServeHeartbeat(t *testing.T) {
	_, addr := startTestServer(t)
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	header := &protocol.Header{Serializer: codec.TagJSON, MsgType: protocol.MsgHeartbeatRequest, BodyLen: 0}
	if err := protocol.Encode(conn, header, nil); err != nil {
		t.Fatalf("write heartbeat: %v", err)
	}

	respHeader, respBody, err := protocol.Decode(conn)
	if err != nil {
		t.Fatalf("read heartbeat response: %v", err)
	}
	if respHeader.MsgType != protocol.MsgHeartbeatResponse {
		t.Fatalf("msgtype = %d, want heartbeat response", respHeader.MsgType)
	}
	if string(respBody) != "pong" {
		t.Fatalf("body = %q, want pong", respBody)
	}
}

func TestServeIdleTimeoutClosesConnection(t *testing.T) {
	_, addr := startTestServer(t)
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 1)
	_, err = conn.Read(buf)
	if err == nil {
		t.Fatal("expected connection to be closed after idle timeout")
	}
}

func TestShutdownDrainsInFlightRequest(t *testing.T) {
	s, addr := startTestServer(t)
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	c, _ := codec.Get(codec.TagJSON)
	req := &message.Request{
		InterfaceName: "demo.Greeter",
		MethodName:    "SayHelloAsync",
		Args:          []any{"world"},
		ArgTypes:      []string{"string"},
		CorrelationID: "c5",
	}
	body, _ := c.Encode(req)
	header := &protocol.Header{Serializer: codec.TagJSON, MsgType: protocol.MsgRequest, BodyLen: uint32(len(body))}
	if err := protocol.Encode(conn, header, body); err != nil {
		t.Fatalf("write request: %v", err)
	}

	shutdownDone := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		shutdownDone <- s.Shutdown(ctx)
	}()

	respHeader, respBody, err := protocol.Decode(conn)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	if respHeader.MsgType != protocol.MsgResponse {
		t.Fatalf("msgtype = %d, want response", respHeader.MsgType)
	}
	var resp message.Response
	if err := c.Decode(respBody, &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.Result != "async hello world" {
		t.Fatalf("unexpected in-flight response: %+v", resp)
	}

	if err := <-shutdownDone; err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
