package middleware

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/rob-signorelli/boson/envelope"
	"github.com/rob-signorelli/boson/future"
)

func echoHandler(ctx context.Context, req *envelope.Request) *future.Future {
	return future.Of([]byte("ok"))
}

func slowHandler(ctx context.Context, req *envelope.Request) *future.Future {
	f := future.New()
	go func() {
		time.Sleep(200 * time.Millisecond)
		f.Complete([]byte("ok"))
	}()
	return f
}

func testLogger() *zap.SugaredLogger {
	l, _ := zap.NewDevelopment()
	return l.Sugar()
}

func await(t *testing.T, f *future.Future) (any, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return f.Await(ctx)
}

func TestLogging(t *testing.T) {
	handler := Logging(testLogger())(echoHandler)

	req := &envelope.Request{ID: "req-1", ServiceType: "Arith", MethodName: "Add"}
	result, err := await(t, handler(context.Background(), req))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(result.([]byte)) != "ok" {
		t.Fatalf("expect payload 'ok', got '%s'", result)
	}
}

func TestTimeoutPass(t *testing.T) {
	handler := Timeout(500 * time.Millisecond)(echoHandler)

	req := &envelope.Request{ID: "req-1"}
	if _, err := await(t, handler(context.Background(), req)); err != nil {
		t.Fatalf("expect no error, got '%v'", err)
	}
}

func TestTimeoutExceeded(t *testing.T) {
	handler := Timeout(50 * time.Millisecond)(slowHandler)

	req := &envelope.Request{ID: "req-1"}
	_, err := await(t, handler(context.Background(), req))
	if err == nil {
		t.Fatal("expect a timeout error")
	}
}

func TestRateLimit(t *testing.T) {
	// rate=1/sec, burst=2: the first 2 calls pass immediately, the 3rd is rejected.
	handler := RateLimit(1, 2)(echoHandler)
	req := &envelope.Request{ID: "req-1", ServiceType: "Arith"}

	for i := 0; i < 2; i++ {
		if _, err := await(t, handler(context.Background(), req)); err != nil {
			t.Fatalf("request %d should pass, got error: %v", i, err)
		}
	}

	if _, err := await(t, handler(context.Background(), req)); err == nil {
		t.Fatal("request 3 should be rate limited")
	}
}

func TestChain(t *testing.T) {
	chained := Chain(Logging(testLogger()), Timeout(500*time.Millisecond))
	handler := chained(echoHandler)

	req := &envelope.Request{ID: "req-1"}
	if _, err := await(t, handler(context.Background(), req)); err != nil {
		t.Fatalf("expect no error, got '%v'", err)
	}
}
