package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/rob-signorelli/boson/codec"
	"github.com/rob-signorelli/boson/envelope"
	"github.com/rob-signorelli/boson/future"
	"github.com/rob-signorelli/boson/transport"
)

type fakeDispatcher struct{ closed bool }

func (f *fakeDispatcher) Dispatch(ctx context.Context, req *envelope.Request) (*future.Future, error) {
	return future.Of(nil), nil
}
func (f *fakeDispatcher) Close() error { f.closed = true; return nil }

type fakeReceiver struct {
	closed bool
	failOn bool
}

func (f *fakeReceiver) Listen(ctx context.Context, handle transport.HandleFunc) error {
	<-ctx.Done()
	return ctx.Err()
}
func (f *fakeReceiver) Close() error {
	f.closed = true
	if f.failOn {
		return errors.New("boom")
	}
	return nil
}

// fakeBindings hands out a single pre-built Dispatcher/Receiver pair so
// tests can observe whether they were closed.
type fakeBindings struct {
	dispatcher *fakeDispatcher
	receiver   *fakeReceiver
}

func (b *fakeBindings) Dispatcher(serviceType string, _ transport.Config) (transport.Dispatcher, error) {
	return b.dispatcher, nil
}
func (b *fakeBindings) Receiver(serviceType string, _ transport.Config) (transport.Receiver, error) {
	return b.receiver, nil
}
func (b *fakeBindings) String() string { return "fake" }

type helloService interface {
	Greet(ctx context.Context, name string) *future.Future
}

type helloImpl struct{}

func (h *helloImpl) Greet(ctx context.Context, name string) *future.Future {
	return future.Of("hello " + name)
}

func TestImplementRejectsDuplicateRegistration(t *testing.T) {
	r := New(nil)
	bindings := &fakeBindings{dispatcher: &fakeDispatcher{}, receiver: &fakeReceiver{}}

	if err := r.Implement("HelloService", &helloImpl{}, bindings, transport.NewConfig(nil), &codec.JSONCodec{}); err != nil {
		t.Fatalf("first Implement should succeed: %v", err)
	}
	if err := r.Implement("HelloService", &helloImpl{}, bindings, transport.NewConfig(nil), &codec.JSONCodec{}); err == nil {
		t.Fatal("expected AlreadyRegisteredError on duplicate Implement")
	}
}

func TestConsumeRejectsDuplicateRegistration(t *testing.T) {
	r := New(nil)
	bindings := &fakeBindings{dispatcher: &fakeDispatcher{}, receiver: &fakeReceiver{}}

	if _, err := r.Consume("HelloService", (*helloService)(nil), bindings, transport.NewConfig(nil), &codec.JSONCodec{}); err != nil {
		t.Fatalf("first Consume should succeed: %v", err)
	}
	if _, err := r.Consume("HelloService", (*helloService)(nil), bindings, transport.NewConfig(nil), &codec.JSONCodec{}); err == nil {
		t.Fatal("expected AlreadyRegisteredError on duplicate Consume")
	}
}

func TestDisconnectAllClosesEverythingInParallel(t *testing.T) {
	r := New(nil)
	implBindings := &fakeBindings{dispatcher: &fakeDispatcher{}, receiver: &fakeReceiver{}}
	consumeBindings := &fakeBindings{dispatcher: &fakeDispatcher{}, receiver: &fakeReceiver{}}

	if err := r.Implement("HelloService", &helloImpl{}, implBindings, transport.NewConfig(nil), &codec.JSONCodec{}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Consume("OtherService", (*helloService)(nil), consumeBindings, transport.NewConfig(nil), &codec.JSONCodec{}); err != nil {
		t.Fatal(err)
	}

	if errs := r.DisconnectAll(); len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
	if !implBindings.receiver.closed {
		t.Fatal("expected the implemented receiver to be closed")
	}
	if !consumeBindings.dispatcher.closed {
		t.Fatal("expected the consumed dispatcher to be closed")
	}
}

func TestDisconnectAllCollectsErrors(t *testing.T) {
	r := New(nil)
	bindings := &fakeBindings{dispatcher: &fakeDispatcher{}, receiver: &fakeReceiver{failOn: true}}

	if err := r.Implement("Flaky", &helloImpl{}, bindings, transport.NewConfig(nil), &codec.JSONCodec{}); err != nil {
		t.Fatal(err)
	}

	if errs := r.DisconnectAll(); len(errs) != 1 {
		t.Fatalf("expected one collected error, got %v", errs)
	}
}
