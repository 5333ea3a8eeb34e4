// Package codec defines the pluggable serialization contract every boson
// transport binding uses to turn envelope.Request/envelope.Response values
// into bytes and back. Grounded on the donor's codec package: a CodecType
// byte tag selects between implementations, and GetCodec dispatches on it.
package codec

// Type tags a codec by wire format, the same role CodecType plays in the
// donor repo.
type Type byte

const (
	TypeJSON     Type = 0
	TypeOptimized Type = 1
)

// Codec turns Go values into bytes and back. Implementations must satisfy
// the roundtrip-identity law: Decode(Encode(v)) produces a value equal to
// v for every v the codec accepts.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
	Type() Type
}

// Get returns the Codec implementation for the given type tag, defaulting
// to the optimized binary codec for any value other than TypeJSON — the
// same fallback shape as the donor's GetCodec.
func Get(t Type) Codec {
	if t == TypeJSON {
		return &JSONCodec{}
	}
	return &OptimizedCodec{}
}
