package router

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rob-signorelli/boson/envelope"
)

func TestRouterCompletesPendingRequest(t *testing.T) {
	r := New(nil)
	req := &envelope.Request{ID: "req-1"}
	f := r.Open(req)

	resp := envelope.NewSuccessResponse(req, []byte(`"hi"`))
	if !r.Complete(resp) {
		t.Fatal("expected Complete to find the pending request")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	value, err := f.Await(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(value.([]byte)) != `"hi"` {
		t.Fatalf("unexpected result: %v", value)
	}
}

func TestRouterCompleteIsIdempotent(t *testing.T) {
	r := New(nil)
	req := &envelope.Request{ID: "req-1"}
	r.Open(req)

	resp := envelope.NewSuccessResponse(req, []byte("1"))
	if !r.Complete(resp) {
		t.Fatal("first Complete should find the pending request")
	}
	if r.Complete(resp) {
		t.Fatal("second Complete should find nothing — already removed")
	}
}

func TestRouterCompleteUnknownIDReturnsFalse(t *testing.T) {
	r := New(nil)
	resp := envelope.NewSuccessResponse(&envelope.Request{ID: "no-such-request"}, []byte("1"))
	if r.Complete(resp) {
		t.Fatal("expected Complete to report no pending request")
	}
}

func TestRouterReapExpired(t *testing.T) {
	r := New(nil)
	req := &envelope.Request{ID: "req-1", ExpiresAt: time.Now().Add(-time.Second)}
	f := r.Open(req)

	if reaped := r.ReapExpired(time.Now()); reaped != 1 {
		t.Fatalf("expected to reap 1 request, got %d", reaped)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := f.Await(ctx); err == nil {
		t.Fatal("expected the reaped future to fail")
	}

	if r.Pending() != 0 {
		t.Fatalf("expected no pending requests after reap, got %d", r.Pending())
	}
}

func TestRouterCompleteRacesReapExpired(t *testing.T) {
	r := New(nil)
	req := &envelope.Request{ID: "req-1", ExpiresAt: time.Now().Add(10 * time.Millisecond)}
	f := r.Open(req)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		time.Sleep(15 * time.Millisecond)
		r.ReapExpired(time.Now())
	}()
	go func() {
		defer wg.Done()
		time.Sleep(15 * time.Millisecond)
		r.Complete(envelope.NewSuccessResponse(req, []byte("1")))
	}()
	wg.Wait()

	// Exactly one of the two racers should have won; the future must be
	// resolved either way and Pending must read back to zero.
	select {
	case <-f.Done():
	default:
		t.Fatal("future was never resolved by either racer")
	}
	if r.Pending() != 0 {
		t.Fatalf("expected no pending requests left, got %d", r.Pending())
	}
}
