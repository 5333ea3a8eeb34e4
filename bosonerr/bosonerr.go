// Package bosonerr defines the transport-agnostic error kinds shared by every
// layer of boson: the proxy, the router, the receiver, and all three
// transport bindings raise one of these instead of an ad hoc fmt.Errorf.
package bosonerr

import "fmt"

// NotConnectedError is returned when an operation requires an active
// transport connection that hasn't been established yet (or has been torn
// down).
type NotConnectedError struct {
	Service string
}

func (e *NotConnectedError) Error() string {
	return fmt.Sprintf("boson: %s is not connected", e.Service)
}

// AlreadyRegisteredError is returned by Registry.Implement/Consume when a
// service contract is already bound to a dispatcher or receiver.
type AlreadyRegisteredError struct {
	Service string
}

func (e *AlreadyRegisteredError) Error() string {
	return fmt.Sprintf("boson: %s is already registered", e.Service)
}

// ContractError is returned when a proxy method doesn't satisfy the shape
// the client proxy requires (wrong return type, wrong parameter shape).
type ContractError struct {
	Service string
	Method  string
	Reason  string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("boson: %s.%s violates the service contract: %s", e.Service, e.Method, e.Reason)
}

// ResolutionError is returned when a receiver can't resolve a method name
// and argument type list to a concrete implementation method.
type ResolutionError struct {
	Service string
	Method  string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("boson: cannot resolve %s.%s", e.Service, e.Method)
}

// SerializationError wraps a codec failure on either side of the wire.
type SerializationError struct {
	Cause error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("boson: serialization failed: %v", e.Cause)
}

func (e *SerializationError) Unwrap() error { return e.Cause }

// TransportError wraps a failure from the underlying dispatcher/receiver
// connection (dial failure, broken pipe, broker unreachable).
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("boson: transport error: %v", e.Cause)
}

func (e *TransportError) Unwrap() error { return e.Cause }

// TimeoutError is returned when a request's expiration passes before a
// response arrives.
type TimeoutError struct {
	RequestID string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("boson: request %s timed out", e.RequestID)
}

// InvocationError wraps an error returned by the remote method's own logic
// (as opposed to a transport/protocol-level failure).
type InvocationError struct {
	Service string
	Method  string
	Cause   string
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("boson: %s.%s failed: %s", e.Service, e.Method, e.Cause)
}

// WireKind maps err to the WireError.Kind a receiver should put on the wire,
// so the Response records a ResolutionError, SerializationError, or
// ContractError under its own kind rather than a generic invocation failure.
// Anything that isn't one of this package's own types (e.g. an error returned
// by the implementation method's own logic) is reported as InvocationError,
// which is the correct kind for that case. On the calling side, router.Complete
// and the HTTP dispatcher fail the caller's Future with an InvocationError
// carrying only the wire message; the Kind is not turned back into the
// matching error type.
func WireKind(err error) string {
	switch err.(type) {
	case *NotConnectedError:
		return "NotConnectedError"
	case *AlreadyRegisteredError:
		return "AlreadyRegisteredError"
	case *ContractError:
		return "ContractError"
	case *ResolutionError:
		return "ResolutionError"
	case *SerializationError:
		return "SerializationError"
	case *TransportError:
		return "TransportError"
	case *TimeoutError:
		return "TimeoutError"
	default:
		return "InvocationError"
	}
}
