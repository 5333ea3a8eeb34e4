// Package transport defines the contracts every service bus binding must
// satisfy: Dispatcher on the calling side, Receiver on the implementing
// side, and Bindings as the factory that produces a matched pair for one
// service contract. Grounded on ServiceBusDispatcher.java,
// ServiceBusReceiver.java and ServiceTransportBindings.java; the donor's
// own protocol/client_transport/server packages ground the general
// "write-lock + recv-loop + pending-map" shape reused by transport/broker.
package transport

import (
	"context"

	"github.com/rob-signorelli/boson/envelope"
	"github.com/rob-signorelli/boson/future"
)

// Dispatcher is the caller side of one service contract's transport
// binding: it turns a Request into a Future that resolves with the
// result once the matching Response arrives, however that happens to travel
// (an in-process map lookup, an HTTP POST, a broker round trip).
type Dispatcher interface {
	// Dispatch sends req and returns a Future for its eventual result.
	Dispatch(ctx context.Context, req *envelope.Request) (*future.Future, error)
	// Close releases every resource this dispatcher exclusively owns
	// (connections, goroutines, channels). It must not close resources
	// shared with other dispatchers/receivers (e.g. a shared executor).
	Close() error
}

// Receiver is the implementing side of one service contract's transport
// binding: it accepts incoming Requests and hands each to handle, writing
// back a Response built from whatever handle's Future resolves to.
type Receiver interface {
	// Listen starts accepting requests and calling handle for each one. It
	// blocks until the receiver is closed or ctx is cancelled.
	Listen(ctx context.Context, handle HandleFunc) error
	// Close releases every resource this receiver exclusively owns.
	Close() error
}

// HandleFunc resolves one incoming Request to a Future of its result,
// bridging a transport binding to a receiver.Core.
type HandleFunc func(ctx context.Context, req *envelope.Request) *future.Future

// Bindings is the factory for one transport kind — local, HTTP, or broker
// — producing a Dispatcher/Receiver pair bound to a single service
// contract and a shared Config.
type Bindings interface {
	Dispatcher(serviceType string, config Config) (Dispatcher, error)
	Receiver(serviceType string, config Config) (Receiver, error)
	String() string
}
