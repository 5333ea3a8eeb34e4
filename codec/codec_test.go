package codec

import (
	"testing"

	"github.com/rob-signorelli/boson/envelope"
)

func TestJSONCodecRoundtripsRequest(t *testing.T) {
	c := &JSONCodec{}

	original := &envelope.Request{
		ID:            "req-1",
		ServiceType:   "HelloService",
		MethodName:    "Greet",
		ArgumentTypes: []string{"string"},
		Arguments:     [][]byte{[]byte(`"world"`)},
	}

	data, err := c.Encode(original)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var decoded envelope.Request
	if err := c.Decode(data, &decoded); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if decoded.ID != original.ID || decoded.MethodName != original.MethodName {
		t.Fatalf("roundtrip mismatch: got %+v, want %+v", decoded, original)
	}
}

func TestOptimizedCodecRoundtripsRequest(t *testing.T) {
	c := &OptimizedCodec{}

	original := &envelope.Request{
		ID:            "req-1",
		ServiceType:   "HelloService",
		MethodName:    "Greet",
		ArgumentTypes: []string{"string"},
		Arguments:     [][]byte{[]byte(`"world"`)},
	}

	data, err := c.Encode(original)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var decoded envelope.Request
	if err := c.Decode(data, &decoded); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if decoded.ID != original.ID || decoded.MethodName != original.MethodName {
		t.Fatalf("roundtrip mismatch: got %+v, want %+v", decoded, original)
	}
	if len(decoded.Arguments) != 1 || string(decoded.Arguments[0]) != `"world"` {
		t.Fatalf("argument payload mismatch: got %v", decoded.Arguments)
	}
}

func TestOptimizedCodecRoundtripsResponse(t *testing.T) {
	c := &OptimizedCodec{}

	original := envelope.NewErrorResponse(&envelope.Request{ID: "req-1"}, "InvocationError", "boom")

	data, err := c.Encode(original)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var decoded envelope.Response
	if err := c.Decode(data, &decoded); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if decoded.Err == nil || decoded.Err.Message != "boom" {
		t.Fatalf("expected error payload to roundtrip, got %+v", decoded.Err)
	}
}

func TestGetDispatchesOnType(t *testing.T) {
	if _, ok := Get(TypeJSON).(*JSONCodec); !ok {
		t.Fatal("expected Get(TypeJSON) to return a *JSONCodec")
	}
	if _, ok := Get(TypeOptimized).(*OptimizedCodec); !ok {
		t.Fatal("expected Get(TypeOptimized) to return an *OptimizedCodec")
	}
}
