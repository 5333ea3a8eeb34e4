// Package envelope defines the Request/Response data model that every
// transport binding carries across the wire. It is the "mrp"-style frame of
// this module: transport-agnostic, codec-agnostic, and immutable once
// dispatched.
package envelope

import (
	"time"

	uuid "github.com/satori/go.uuid"
)

// Request is a single outbound service invocation. Once it has been handed
// to a dispatcher, none of its fields may change — a new Request is built
// for every call, never mutated and resent.
type Request struct {
	ID            string        // Globally unique, assigned at construction.
	ServiceType   string        // The service contract's name, e.g. "HelloService".
	MethodName    string        // The method being invoked on that contract.
	ArgumentTypes []string      // Type tag for each argument, parallel to Arguments.
	Arguments     [][]byte      // Codec-encoded argument payloads, parallel to ArgumentTypes.
	Correlation   string        // Where the response should be routed back to (reply address).
	ExpiresAt     time.Time     // Absolute deadline; zero means no deadline.
	Context       []byte        // Codec-encoded ambient context snapshot, or nil.
}

// NewRequest builds a Request with a fresh unique ID and validates the
// argument-type/argument-payload invariant.
func NewRequest(serviceType, methodName string, argumentTypes []string, arguments [][]byte, ttl time.Duration) (*Request, error) {
	if len(argumentTypes) != len(arguments) {
		return nil, &mismatchError{len(argumentTypes), len(arguments)}
	}

	id := uuid.NewV4()

	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}

	return &Request{
		ID:            id.String(),
		ServiceType:   serviceType,
		MethodName:    methodName,
		ArgumentTypes: argumentTypes,
		Arguments:     arguments,
		ExpiresAt:     expires,
	}, nil
}

// Expired reports whether this request's deadline has already passed.
// A zero ExpiresAt means the request never expires.
func (r *Request) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}

type mismatchError struct {
	types int
	args  int
}

func (e *mismatchError) Error() string {
	return "envelope: argument type count does not match argument count"
}

// Response is the reply to exactly one Request, matched by ID. Exactly one
// of Result or Err is set — never both, never neither, once the response
// has been completed.
type Response struct {
	ID            string    // Echoes the Request.ID it answers — what a ResponseRouter matches on.
	Correlation   string    // Echoes the Request.Correlation (the reply address), not a match key.
	Result        []byte    // Codec-encoded return value. Nil if Err is set.
	Err           *WireError // Set if the remote invocation failed. Nil on success.
	ExpiresAt     time.Time // Propagated from the originating request for diagnostic purposes.
	ServiceInfo   string    // Free-form identification of the receiver that produced this response.
}

// WireError is the serializable half of bosonerr's taxonomy: enough to
// reconstruct a meaningful error on the caller's side without attempting to
// carry a Go stack trace across the wire.
type WireError struct {
	Kind    string
	Message string
}

func (e *WireError) Error() string { return e.Kind + ": " + e.Message }

// NewSuccessResponse builds a Response carrying a successful result for
// req, echoing req.ID and req.Correlation exactly as ServiceResponse(request)
// does in the original source.
func NewSuccessResponse(req *Request, result []byte) *Response {
	return &Response{
		ID:          req.ID,
		Correlation: req.Correlation,
		Result:      result,
		ExpiresAt:   req.ExpiresAt,
	}
}

// NewErrorResponse builds a Response carrying a failed invocation's error
// for req, echoing req.ID and req.Correlation the same way
// NewSuccessResponse does.
func NewErrorResponse(req *Request, kind, message string) *Response {
	return &Response{
		ID:          req.ID,
		Correlation: req.Correlation,
		Err:         &WireError{Kind: kind, Message: message},
		ExpiresAt:   req.ExpiresAt,
	}
}
