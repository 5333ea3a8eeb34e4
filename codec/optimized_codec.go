package codec

import (
	"bytes"
	"encoding/gob"

	"github.com/rob-signorelli/boson/envelope"
)

// OptimizedCodec is the binary implementation that pre-registers the
// Request/Response types: it gob.Register()s envelope.Request and
// envelope.Response once at package init, which lets either type travel
// inside an interface-typed value. Every value, registered or not, is
// encoded with plain gob. Each Encode call uses a fresh gob.Encoder, so
// every encoded message carries its own type descriptors; type tags are not
// elided.
type OptimizedCodec struct{}

func init() {
	gob.Register(&envelope.Request{})
	gob.Register(&envelope.Response{})
}

func (c *OptimizedCodec) Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *OptimizedCodec) Decode(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func (c *OptimizedCodec) Type() Type {
	return TypeOptimized
}
