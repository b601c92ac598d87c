package codec

import "encoding/json"

// JSONCodec uses the standard library's encoding/json for serialization.
// Pros: human-readable, cross-language, easy to debug with a packet sniffer.
// Cons: slower than a binary codec, larger payloads (field names repeated).
//
// message.Request.ArgTypes is already a []string of fully-qualified type
// names, so JSON encodes it as an ordinary string array with no special
// casing here — the "encode a type reference as its name" requirement is
// satisfied by ArgTypes being a string field in the first place, and that
// shape is pinned as part of the version-1 wire contract (see DESIGN.md).
type JSONCodec struct{}

func (c *JSONCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (c *JSONCodec) Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (c *JSONCodec) Tag() byte {
	return TagJSON
}
