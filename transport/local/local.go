// Package local implements the in-process transport binding: a dispatcher
// on one side of a process looks its receiver up in a process-wide map and
// invokes it directly, with no codec involved (arguments never leave Go
// memory). Grounded directly on LocalServiceBusDispatcher.java,
// LocalServiceBusReceiver.java, and LocalTransportBindings.java.
package local

import (
	"context"
	"sync"

	"github.com/rob-signorelli/boson/bosonerr"
	"github.com/rob-signorelli/boson/envelope"
	"github.com/rob-signorelli/boson/future"
	"github.com/rob-signorelli/boson/transport"
)

// registry is the process-wide lookup a Dispatcher uses to find the other
// end of the bus, mirroring LOCAL_SERVICES in the original source.
var (
	registryMu sync.Mutex
	registry   = make(map[string]*Receiver)
)

func register(serviceType string, r *Receiver) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[serviceType] = r
}

func unregister(serviceType string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(registry, serviceType)
}

func lookup(serviceType string) *Receiver {
	registryMu.Lock()
	defer registryMu.Unlock()
	return registry[serviceType]
}

// Bindings is the local transport.Bindings factory.
type Bindings struct{}

func (Bindings) Dispatcher(serviceType string, _ transport.Config) (transport.Dispatcher, error) {
	return &Dispatcher{serviceType: serviceType, connected: true}, nil
}

func (Bindings) Receiver(serviceType string, _ transport.Config) (transport.Receiver, error) {
	return &Receiver{serviceType: serviceType}, nil
}

func (Bindings) String() string { return "local" }

// Dispatcher finds the Receiver registered for its service type and calls
// it directly — no network, no codec.
type Dispatcher struct {
	serviceType string
	connected   bool
}

func (d *Dispatcher) Dispatch(ctx context.Context, req *envelope.Request) (*future.Future, error) {
	if !d.connected {
		return nil, &bosonerr.NotConnectedError{Service: d.serviceType}
	}

	recv := lookup(d.serviceType)
	if recv == nil {
		return nil, &bosonerr.NotConnectedError{Service: d.serviceType}
	}
	if recv.handle == nil {
		return nil, &bosonerr.NotConnectedError{Service: d.serviceType}
	}

	return recv.handle(ctx, req), nil
}

func (d *Dispatcher) Close() error {
	d.connected = false
	return nil
}

// Receiver registers itself in the process-wide lookup so a Dispatcher for
// the same service type can find it, and holds the HandleFunc passed to
// Listen until Listen returns or the receiver is closed.
type Receiver struct {
	serviceType string
	handle      transport.HandleFunc
}

func (r *Receiver) Listen(ctx context.Context, handle transport.HandleFunc) error {
	r.handle = handle
	register(r.serviceType, r)
	<-ctx.Done()
	r.handle = nil
	unregister(r.serviceType)
	return ctx.Err()
}

func (r *Receiver) Close() error {
	r.handle = nil
	unregister(r.serviceType)
	return nil
}
