// Package codec implements the pluggable body serializer: the layer that
// turns a message.Request or message.Response into the bytes that ride
// inside a protocol frame's body, and back.
package codec

import (
	"fmt"
	"sync"

	"github.com/jinguan/jgrpc/jgerrors"
)

// Tag bytes, mirrored from the wire contract in protocol.Header.Serializer.
const (
	TagNative byte = 0 // richest opaque object encoding, see NativeCodec
	TagJSON   byte = 1 // textual, cross-language, self-describing
	// 2 and 3 are reserved for a future compact schema codec and a binary
	// object-graph codec; requesting either yields a KindUnknownSerializer error.
)

// Codec marshals a body value (a *message.Request or *message.Response) to
// bytes and back, and reports the tag byte it is registered under.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
	Tag() byte
}

var (
	mu       sync.RWMutex
	registry = make(map[byte]Codec)
)

// Register installs codec under tag, process-wide. Last registration for a
// given tag wins, matching how the wire format treats the tag byte as a
// process-wide, not connection-scoped, selector.
func Register(tag byte, c Codec) {
	mu.Lock()
	defer mu.Unlock()
	registry[tag] = c
}

// Get looks up the codec registered for tag. Unknown tags fail with a
// jgerrors.CallFailed of kind KindUnknownSerializer, which is fatal to the
// connection per spec.
func Get(tag byte) (Codec, error) {
	mu.RLock()
	defer mu.RUnlock()
	c, ok := registry[tag]
	if !ok {
		return nil, jgerrors.New(jgerrors.KindUnknownSerializer, fmt.Sprintf("unregistered serializer tag: %d", tag))
	}
	return c, nil
}

func init() {
	Register(TagJSON, &JSONCodec{})
	Register(TagNative, &NativeCodec{})
}
