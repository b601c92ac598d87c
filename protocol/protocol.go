// Package protocol implements the binary frame protocol carried over the
// long-lived TCP connection between clients and servers.
//
// It solves TCP's sticky packet problem with a fixed 11-byte header followed
// by a variable-length body: the receiver reads the header first to learn
// the body length, then reads exactly that many bytes before the next frame.
//
// Frame format:
//
//	0        4  5  6  7            11
//	┌────────┬──┬──┬──┬────────────┬───────────────┐
//	│ magic  │v │st│mt│  bodyLen   │    body ...    │
//	│uint32  │01│  │  │  uint32    │ bodyLen bytes  │
//	└────────┴──┴──┴──┴────────────┴───────────────┘
package protocol

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/jinguan/jgrpc/jgerrors"
)

// Magic identifies a valid frame; Decode rejects anything else outright.
const Magic uint32 = 0xCAFEBABE

// Version is the only wire version this runtime speaks.
const Version byte = 1

// HeaderSize is the fixed header length: magic(4) + version(1) + serializer(1)
// + msgType(1) + bodyLen(4) = 11 bytes.
const HeaderSize = 11

// MaxBodyLen is the largest body this protocol will accept; larger frames
// fail with ErrFrameTooLarge before a single body byte is read.
const MaxBodyLen = 16 * 1024 * 1024

// MsgType distinguishes request, response, and heartbeat frames.
type MsgType byte

const (
	MsgRequest           MsgType = 1
	MsgResponse          MsgType = 2
	MsgHeartbeatRequest  MsgType = 3
	MsgHeartbeatResponse MsgType = 4
)

func (t MsgType) valid() bool {
	switch t {
	case MsgRequest, MsgResponse, MsgHeartbeatRequest, MsgHeartbeatResponse:
		return true
	default:
		return false
	}
}

// Header is the fixed 11-byte frame header.
type Header struct {
	Serializer byte    // body codec tag, see codec.Codec
	MsgType    MsgType // request, response, or heartbeat
	BodyLen    uint32  // body length in bytes
}

// ErrFrameTooLarge is returned when a header declares a body over MaxBodyLen.
var ErrFrameTooLarge = jgerrors.New(jgerrors.KindInvalidFrame, "frame body exceeds 16MiB")

// Encode writes one complete frame (header + body) to w. body may be nil,
// which is treated as a zero-length body (used by heartbeats).
//
// The caller must serialize writes to a shared io.Writer itself — Encode
// performs no locking, matching the per-connection write-lock responsibility
// described in the server and client transport packages.
func Encode(w io.Writer, h *Header, body []byte) error {
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(buf[0:4], Magic)
	buf[4] = Version
	buf[5] = h.Serializer
	buf[6] = byte(h.MsgType)
	binary.BigEndian.PutUint32(buf[7:11], uint32(len(body)))

	if _, err := w.Write(buf); err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	_, err := w.Write(body)
	return err
}

// Decode reads one complete frame from r, blocking until the full header and
// body are available. It never returns a partial message: on success both
// the header and exactly BodyLen bytes of body are populated.
func Decode(r io.Reader) (*Header, []byte, error) {
	headerBuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		return nil, nil, err
	}

	magic := binary.BigEndian.Uint32(headerBuf[0:4])
	if magic != Magic {
		return nil, nil, jgerrors.New(jgerrors.KindInvalidFrame, fmt.Sprintf("invalid magic number: %#x", magic))
	}
	if headerBuf[4] != Version {
		return nil, nil, jgerrors.New(jgerrors.KindInvalidFrame, fmt.Sprintf("unsupported version: %d", headerBuf[4]))
	}
	msgType := MsgType(headerBuf[6])
	if !msgType.valid() {
		return nil, nil, jgerrors.New(jgerrors.KindInvalidFrame, fmt.Sprintf("unsupported message type: %d", headerBuf[6]))
	}
	bodyLen := binary.BigEndian.Uint32(headerBuf[7:11])
	if bodyLen > MaxBodyLen {
		return nil, nil, ErrFrameTooLarge
	}

	header := &Header{
		Serializer: headerBuf[5],
		MsgType:    msgType,
		BodyLen:    bodyLen,
	}

	body := make([]byte, bodyLen)
	if bodyLen > 0 {
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, nil, err
		}
	}
	return header, body, nil
}
