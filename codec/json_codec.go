package codec

import "encoding/json"

// JSONCodec uses the standard library's encoding/json. Human-readable and
// cross-language, at the cost of reflection overhead and repeated field
// names on the wire — same trade-off the donor's JSONCodec documents.
type JSONCodec struct{}

func (c *JSONCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (c *JSONCodec) Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (c *JSONCodec) Type() Type {
	return TypeJSON
}
