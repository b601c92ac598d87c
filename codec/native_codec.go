package codec

import "github.com/vmihailenco/msgpack/v5"

// NativeCodec is the "richest opaque object graph encoder" serializer (tag
// 0), used when maximum fidelity and compactness matter more than
// cross-language debuggability. It is backed by MessagePack rather than
// encoding/gob: gob requires both ends to register concrete types up front
// and cannot round-trip the opaque `any` argument slots message.Request
// carries, whereas msgpack encodes arbitrary Go values the way JSON does but
// to a denser binary form — the closest Go analogue to a JVM's native
// object serializer available in the ecosystem.
type NativeCodec struct{}

func (c *NativeCodec) Encode(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (c *NativeCodec) Decode(data []byte, v any) error {
	return msgpack.Unmarshal(data, v)
}

func (c *NativeCodec) Tag() byte {
	return TagNative
}
