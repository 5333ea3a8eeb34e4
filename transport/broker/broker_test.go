package broker

import (
	"context"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/rob-signorelli/boson/envelope"
	"github.com/rob-signorelli/boson/future"
	"github.com/rob-signorelli/boson/transport"
)

// requireBrokerURL skips the test unless BOSON_TEST_AMQP_URL points at a
// real broker — these tests need a live RabbitMQ instance the way the
// donor's etcd_registry_test.go needed a live etcd, except this one
// actually skips instead of failing when the resource isn't there.
func requireBrokerURL(t *testing.T) *url.URL {
	t.Helper()
	raw := os.Getenv("BOSON_TEST_AMQP_URL")
	if raw == "" {
		t.Skip("BOSON_TEST_AMQP_URL not set; skipping broker integration test")
	}
	uri, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("invalid BOSON_TEST_AMQP_URL: %v", err)
	}
	return uri
}

func TestDispatcherRoundTripsThroughReceiver(t *testing.T) {
	uri := requireBrokerURL(t)
	config := transport.NewConfig(uri)

	b := Bindings{}
	recv, err := b.Receiver("HelloServiceBrokerTest", config)
	if err != nil {
		t.Fatalf("Receiver failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go recv.Listen(ctx, func(ctx context.Context, req *envelope.Request) *future.Future {
		return future.Of([]byte(`"hello"`))
	})
	time.Sleep(200 * time.Millisecond)

	disp, err := b.Dispatcher("HelloServiceBrokerTest", config)
	if err != nil {
		t.Fatalf("Dispatcher failed: %v", err)
	}
	defer disp.Close()

	f, err := disp.Dispatch(context.Background(), &envelope.Request{ID: "req-1", MethodName: "Greet"})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	awaitCtx, awaitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer awaitCancel()
	result, err := f.Await(awaitCtx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(result.([]byte)) != `"hello"` {
		t.Fatalf("unexpected result: %v", result)
	}
}

func TestReaperExpiresUnansweredRequests(t *testing.T) {
	uri := requireBrokerURL(t)
	config := transport.NewConfig(uri).WithRequestTTL(10 * time.Millisecond)

	b := Bindings{}
	disp, err := b.Dispatcher("NobodyListeningService", config)
	if err != nil {
		t.Fatalf("Dispatcher failed: %v", err)
	}
	defer disp.Close()

	f, err := disp.Dispatch(context.Background(), &envelope.Request{ID: "req-1", ExpiresAt: time.Now().Add(config.RequestTTL)})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), reaperInterval+2*time.Second)
	defer cancel()
	if _, err := f.Await(ctx); err == nil {
		t.Fatal("expected the reaper to eventually time out the unanswered request")
	}
}
