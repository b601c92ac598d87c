package codec

import (
	"testing"

	"github.com/jinguan/jgrpc/jgerrors"
	"github.com/jinguan/jgrpc/message"
)

func TestJSONCodecRoundTrip(t *testing.T) {
	c := &JSONCodec{}
	original := &message.Request{
		InterfaceName: "demo.Hello",
		MethodName:    "hello",
		Args:          []any{"world"},
		ArgTypes:      []string{"string"},
		CorrelationID: "1-1000",
	}

	data, err := c.Encode(original)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var decoded message.Request
	if err := c.Decode(data, &decoded); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded.InterfaceName != original.InterfaceName {
		t.Errorf("InterfaceName mismatch: got %s, want %s", decoded.InterfaceName, original.InterfaceName)
	}
	if decoded.CorrelationID != original.CorrelationID {
		t.Errorf("CorrelationID mismatch: got %s, want %s", decoded.CorrelationID, original.CorrelationID)
	}
	if len(decoded.ArgTypes) != 1 || decoded.ArgTypes[0] != "string" {
		t.Errorf("ArgTypes mismatch: got %v", decoded.ArgTypes)
	}
}

func TestNativeCodecRoundTrip(t *testing.T) {
	c := &NativeCodec{}
	original := &message.Response{
		Result:        "Hi, world",
		Success:       true,
		CorrelationID: "1-1000",
	}

	data, err := c.Encode(original)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var decoded message.Response
	if err := c.Decode(data, &decoded); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded.CorrelationID != original.CorrelationID {
		t.Errorf("CorrelationID mismatch: got %s, want %s", decoded.CorrelationID, original.CorrelationID)
	}
	if !decoded.Success {
		t.Errorf("expected Success=true")
	}
}

func TestGetUnknownSerializer(t *testing.T) {
	_, err := Get(99)
	if err == nil {
		t.Fatal("expected error for unknown tag, got nil")
	}
	if !jgerrors.Is(err, jgerrors.KindUnknownSerializer) {
		t.Errorf("expected UnknownSerializer kind, got %v", err)
	}
}

func TestGetKnownTags(t *testing.T) {
	for _, tag := range []byte{TagJSON, TagNative} {
		c, err := Get(tag)
		if err != nil {
			t.Fatalf("Get(%d) failed: %v", tag, err)
		}
		if c.Tag() != tag {
			t.Errorf("Tag() mismatch: got %d, want %d", c.Tag(), tag)
		}
	}
}

func TestRegisterLastWins(t *testing.T) {
	first := &JSONCodec{}
	Register(2, first)
	second := &NativeCodec{}
	Register(2, second)

	got, err := Get(2)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Tag() != TagNative {
		t.Errorf("expected last registration to win, got tag %d", got.Tag())
	}
}
