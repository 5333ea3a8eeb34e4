// Package proxy implements the client-side ClientProxy: a typed façade
// over a single call(contract, method, args) primitive. Go has no
// equivalent of java.lang.reflect.Proxy/InvocationHandler, so rather than
// codegen a concrete type per service contract, this proxy validates a
// method against the service's Go interface type via
// reflect.Type.MethodByName and dispatches through the shared Dispatcher.
// Grounded on ServiceProxy.java for the invoke/validate contract and on the
// donor's server/service.go for the reflection idiom (adapted: the donor
// validates *implementations*, this validates *contracts*, since a client
// proxy has no instance to reflect on).
package proxy

import (
	"context"
	"reflect"
	"time"

	"github.com/rob-signorelli/boson/ambientctx"
	"github.com/rob-signorelli/boson/bosonerr"
	"github.com/rob-signorelli/boson/codec"
	"github.com/rob-signorelli/boson/envelope"
	"github.com/rob-signorelli/boson/future"
	"github.com/rob-signorelli/boson/transport"
)

// futureType is the reflect.Type of *future.Future, the required return
// type of every method on a valid service contract.
var futureType = reflect.TypeOf((*future.Future)(nil))

// Proxy is the client-side handle to one remote service contract, bound to
// one Dispatcher.
type Proxy struct {
	serviceType string
	contract    reflect.Type
	dispatcher  transport.Dispatcher
	codec       codec.Codec
	requestTTL  time.Duration
}

// New builds a Proxy for contract (an interface value, typically a nil
// pointer to the interface type, e.g. (*HelloService)(nil)), bound to
// dispatcher.
func New(serviceType string, contract any, dispatcher transport.Dispatcher, c codec.Codec, requestTTL time.Duration) (*Proxy, error) {
	t := reflect.TypeOf(contract)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Interface {
		return nil, &bosonerr.ContractError{Service: serviceType, Reason: "contract must be an interface type"}
	}

	return &Proxy{
		serviceType: serviceType,
		contract:    t,
		dispatcher:  dispatcher,
		codec:       c,
		requestTTL:  requestTTL,
	}, nil
}

// Invoke validates that methodName exists on the bound contract and
// returns the async-completion type ClientProxy requires, encodes args
// with the proxy's codec, and dispatches the resulting Request. The
// returned Future resolves once a matching Response arrives.
func (p *Proxy) Invoke(ctx context.Context, methodName string, args ...any) (*future.Future, error) {
	method, ok := p.contract.MethodByName(methodName)
	if !ok {
		return nil, &bosonerr.ContractError{
			Service: p.serviceType,
			Method:  methodName,
			Reason:  "no such method on the service contract",
		}
	}

	// Every contract method's final (and in practice only) return value
	// must be *future.Future — this is how an otherwise-synchronous-looking
	// Go interface method signals "this call happens over the wire".
	if method.Type.NumOut() != 1 || method.Type.Out(0) != futureType {
		return nil, &bosonerr.ContractError{
			Service: p.serviceType,
			Method:  methodName,
			Reason:  "method must return exactly one *future.Future",
		}
	}

	argumentTypes := make([]string, len(args))
	arguments := make([][]byte, len(args))
	for i, arg := range args {
		encoded, err := p.codec.Encode(arg)
		if err != nil {
			return nil, &bosonerr.SerializationError{Cause: err}
		}
		argumentTypes[i] = reflect.TypeOf(arg).String()
		arguments[i] = encoded
	}

	req, err := envelope.NewRequest(p.serviceType, methodName, argumentTypes, arguments, p.requestTTL)
	if err != nil {
		return nil, err
	}

	// Carry whatever ambient snapshot the caller attached to ctx (directly,
	// or via ambientctx.Provider.Push bridged in beforehand) across the wire
	// alongside the call itself.
	if snap := ambientctx.FromContext(ctx); snap != nil {
		encoded, err := p.codec.Encode(snap)
		if err != nil {
			return nil, &bosonerr.SerializationError{Cause: err}
		}
		req.Context = encoded
	}

	return p.dispatcher.Dispatch(ctx, req)
}

// Decode unmarshals a result previously returned by Invoke's Future (a raw,
// still-encoded []byte) into v, using this proxy's codec. Typed façades
// wrapping a Proxy call this once per method to turn the wire result into
// the concrete Go type their contract promises.
func (p *Proxy) Decode(data []byte, v any) error {
	return p.codec.Decode(data, v)
}

// ServiceType returns the contract name this proxy was bound to.
func (p *Proxy) ServiceType() string { return p.serviceType }

// Close releases the underlying dispatcher's transport resources.
func (p *Proxy) Close() error {
	return p.dispatcher.Close()
}
