// Package receiver implements ReceiverCore: it resolves an incoming
// Request's MethodName to a concrete method on a registered implementation
// via reflection, decodes arguments, invokes it, and encodes the result.
// Request.ArgumentTypes is not consulted; only the number of Arguments is
// checked against the resolved method. Grounded almost verbatim on
// the donor's server/service.go NewService/RegisterMethods/Call, adapted
// to the new method convention this module's contracts use:
// func(ctx context.Context, args...) *future.Future instead of the
// donor's func(*Args, *Reply) error.
package receiver

import (
	"context"
	"reflect"

	"github.com/rob-signorelli/boson/ambientctx"
	"github.com/rob-signorelli/boson/bosonerr"
	"github.com/rob-signorelli/boson/codec"
	"github.com/rob-signorelli/boson/envelope"
	"github.com/rob-signorelli/boson/executor"
	"github.com/rob-signorelli/boson/future"
)

var (
	ctxType    = reflect.TypeOf((*context.Context)(nil)).Elem()
	futureType = reflect.TypeOf((*future.Future)(nil))
)

type methodInfo struct {
	method   reflect.Method
	argTypes []reflect.Type // excludes the receiver and the leading context.Context
}

// Core resolves and invokes methods on a single registered implementation.
type Core struct {
	serviceType string
	impl        reflect.Value
	implType    reflect.Type
	methods     map[string]*methodInfo
	codec       codec.Codec
	pool        *executor.Pool
}

// New scans impl (a pointer to a struct) for exported methods matching the
// convention func(ctx context.Context, args...) *future.Future and returns
// a Core that can resolve and invoke them by name.
func New(serviceType string, impl any, c codec.Codec) (*Core, error) {
	typ := reflect.TypeOf(impl)
	if typ.Kind() != reflect.Ptr || typ.Elem().Kind() != reflect.Struct {
		return nil, &bosonerr.ContractError{Service: serviceType, Reason: "implementation must be a pointer to a struct"}
	}

	core := &Core{
		serviceType: serviceType,
		impl:        reflect.ValueOf(impl),
		implType:    typ,
		methods:     make(map[string]*methodInfo),
		codec:       c,
	}
	core.scan()
	return core, nil
}

// scan finds every exported method of the form
// func (impl *T) Name(ctx context.Context, arg1 T1, ...) *future.Future
func (c *Core) scan() {
	for i := 0; i < c.implType.NumMethod(); i++ {
		m := c.implType.Method(i)
		sig := m.Type // includes the receiver as In(0)

		if sig.NumOut() != 1 || sig.Out(0) != futureType {
			continue
		}
		if sig.NumIn() < 2 || sig.In(1) != ctxType {
			continue
		}

		argTypes := make([]reflect.Type, sig.NumIn()-2)
		for j := range argTypes {
			argTypes[j] = sig.In(j + 2)
		}

		c.methods[m.Name] = &methodInfo{method: m, argTypes: argTypes}
	}
}

// UsePool routes the response-resolution work Invoke schedules through p
// instead of an unbounded goroutine-per-call, and returns c for chaining.
// Without a pool, Invoke falls back to a bare goroutine, which is what
// every pre-existing caller (including the tests in this package) gets.
func (c *Core) UsePool(p *executor.Pool) *Core {
	c.pool = p
	return c
}

// Resolve reports whether methodName exists on the implementation,
// returning a ResolutionError if not. It checks the name only, not the
// argument shape.
func (c *Core) Resolve(methodName string) error {
	if _, ok := c.methods[methodName]; !ok {
		return &bosonerr.ResolutionError{Service: c.serviceType, Method: methodName}
	}
	return nil
}

// Invoke decodes req's arguments, calls the resolved method, and returns a
// Future that resolves to the codec-encoded value of whatever Future that
// call produced. The method's Future itself may resolve asynchronously;
// Invoke only waits long enough to start the call and chain its result
// into the returned Future.
func (c *Core) Invoke(ctx context.Context, req *envelope.Request) *future.Future {
	info, ok := c.methods[req.MethodName]
	if !ok {
		return future.Errored(&bosonerr.ResolutionError{Service: c.serviceType, Method: req.MethodName})
	}
	if len(info.argTypes) != len(req.Arguments) {
		return future.Errored(&bosonerr.ContractError{
			Service: c.serviceType,
			Method:  req.MethodName,
			Reason:  "argument count does not match the resolved method",
		})
	}

	if len(req.Context) > 0 {
		var snap ambientctx.Snapshot
		if err := c.codec.Decode(req.Context, &snap); err != nil {
			return future.Errored(&bosonerr.SerializationError{Cause: err})
		}
		ctx = ambientctx.WithSnapshot(ctx, snap)
	}

	in := make([]reflect.Value, 0, len(info.argTypes)+2)
	in = append(in, c.impl, reflect.ValueOf(ctx))

	for i, argType := range info.argTypes {
		argPtr := reflect.New(argType)
		if err := c.codec.Decode(req.Arguments[i], argPtr.Interface()); err != nil {
			return future.Errored(&bosonerr.SerializationError{Cause: err})
		}
		in = append(in, argPtr.Elem())
	}

	results := info.method.Func.Call(in)
	methodFuture := results[0].Interface().(*future.Future)

	response := future.New()
	resolve := func() {
		value, err := methodFuture.Await(ctx)
		if err != nil {
			response.Fail(err)
			return
		}
		encoded, encErr := c.codec.Encode(value)
		if encErr != nil {
			response.Fail(&bosonerr.SerializationError{Cause: encErr})
			return
		}
		response.Complete(encoded)
	}

	if c.pool != nil {
		c.pool.Submit(resolve)
	} else {
		go resolve()
	}
	return response
}
