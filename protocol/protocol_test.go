package protocol

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"math/rand/v2"
	"testing"

	"github.com/jinguan/jgrpc/jgerrors"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		name       string
		serializer byte
		msgType    MsgType
		body       []byte
	}{
		{"json-request", 1, MsgRequest, []byte(`{"a":1}`)},
		{"native-response", 0, MsgResponse, []byte{0x01, 0x02, 0x03}},
		{"heartbeat-request", 1, MsgHeartbeatRequest, nil},
		{"heartbeat-response", 1, MsgHeartbeatResponse, []byte("pong")},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := &Header{Serializer: c.serializer, MsgType: c.msgType, BodyLen: uint32(len(c.body))}
			if err := Encode(&buf, h, c.body); err != nil {
				t.Fatalf("Encode failed: %v", err)
			}

			gotHeader, gotBody, err := Decode(&buf)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if gotHeader.Serializer != c.serializer {
				t.Errorf("Serializer mismatch: got %d, want %d", gotHeader.Serializer, c.serializer)
			}
			if gotHeader.MsgType != c.msgType {
				t.Errorf("MsgType mismatch: got %d, want %d", gotHeader.MsgType, c.msgType)
			}
			if !bytes.Equal(gotBody, c.body) && !(len(gotBody) == 0 && len(c.body) == 0) {
				t.Errorf("Body mismatch: got %v, want %v", gotBody, c.body)
			}
		})
	}
}

// TestDecodeArbitraryChunking verifies P1: for random byte splits of an
// encoded stream, the decoder emits exactly one message per Decode call and
// never a partial message.
func TestDecodeArbitraryChunking(t *testing.T) {
	body := bytes.Repeat([]byte("mini-rpc"), 500)
	h := &Header{Serializer: 1, MsgType: MsgRequest, BodyLen: uint32(len(body))}

	var full bytes.Buffer
	if err := Encode(&full, h, body); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	encoded := full.Bytes()

	for trial := 0; trial < 20; trial++ {
		pr, pw := chunkedPipe(encoded, 1+rand.IntN(8))
		fr := NewFrameReader(bufio.NewReader(pr))
		go pw()

		gotHeader, gotBody, err := fr.Next()
		if err != nil {
			t.Fatalf("trial %d: Next failed: %v", trial, err)
		}
		if gotHeader.BodyLen != h.BodyLen {
			t.Fatalf("trial %d: BodyLen mismatch: got %d, want %d", trial, gotHeader.BodyLen, h.BodyLen)
		}
		if !bytes.Equal(gotBody, body) {
			t.Fatalf("trial %d: body mismatch", trial)
		}
	}
}

// chunkedPipe returns a reader fed by an in-memory writer that trickles data
// in at most maxChunk-byte pieces, simulating TCP fragmentation.
func chunkedPipe(data []byte, maxChunk int) (*bytesReaderPipe, func()) {
	p := &bytesReaderPipe{ch: make(chan []byte, len(data)/maxChunk+2)}
	writer := func() {
		for len(data) > 0 {
			n := maxChunk
			if n > len(data) {
				n = len(data)
			}
			p.ch <- append([]byte(nil), data[:n]...)
			data = data[n:]
		}
		close(p.ch)
	}
	return p, writer
}

type bytesReaderPipe struct {
	ch  chan []byte
	buf []byte
}

func (p *bytesReaderPipe) Read(dst []byte) (int, error) {
	for len(p.buf) == 0 {
		chunk, ok := <-p.ch
		if !ok {
			return 0, io.EOF
		}
		p.buf = chunk
	}
	n := copy(dst, p.buf)
	p.buf = p.buf[n:]
	return n, nil
}

func TestDecodeInvalidMagic(t *testing.T) {
	var buf bytes.Buffer
	headerBuf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(headerBuf[0:4], 0xDEADBEEF)
	headerBuf[4] = Version
	headerBuf[6] = byte(MsgRequest)
	buf.Write(headerBuf)

	_, _, err := Decode(&buf)
	if err == nil {
		t.Fatal("expected error for invalid magic number, got nil")
	}
}

func TestDecodeInvalidVersion(t *testing.T) {
	var buf bytes.Buffer
	headerBuf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(headerBuf[0:4], Magic)
	headerBuf[4] = 0xFF
	headerBuf[6] = byte(MsgRequest)
	buf.Write(headerBuf)

	_, _, err := Decode(&buf)
	if err == nil {
		t.Fatal("expected error for invalid version, got nil")
	}
}

func TestDecodeFrameTooLarge(t *testing.T) {
	var buf bytes.Buffer
	headerBuf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(headerBuf[0:4], Magic)
	headerBuf[4] = Version
	headerBuf[6] = byte(MsgRequest)
	binary.BigEndian.PutUint32(headerBuf[7:11], MaxBodyLen+1)
	buf.Write(headerBuf)

	_, _, err := Decode(&buf)
	if err == nil {
		t.Fatal("expected error for oversize body, got nil")
	}
	if !jgerrors.Is(err, jgerrors.KindInvalidFrame) {
		t.Errorf("expected InvalidFrame kind, got %v", err)
	}
}

func TestDecodeEmptyBody(t *testing.T) {
	var buf bytes.Buffer
	h := &Header{Serializer: 1, MsgType: MsgHeartbeatRequest, BodyLen: 0}
	if err := Encode(&buf, h, nil); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	gotHeader, gotBody, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if gotHeader.MsgType != MsgHeartbeatRequest {
		t.Errorf("MsgType mismatch: got %d, want %d", gotHeader.MsgType, MsgHeartbeatRequest)
	}
	if len(gotBody) != 0 {
		t.Errorf("expected empty body, got length %d", len(gotBody))
	}
}
