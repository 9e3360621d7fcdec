package media

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestExists_Found(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Fatalf("method = %s, want HEAD", r.Method)
		}
		if r.URL.Path != "/media/proof-1" {
			t.Fatalf("path = %s, want /media/proof-1", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ok, err := client.Exists(ctx, "proof-1")
	if err != nil {
		t.Fatalf("Exists error: %v", err)
	}
	if !ok {
		t.Fatalf("expected media to exist")
	}
}

func TestExists_NotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	ok, err := NewClient(ts.URL).Exists(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Exists error: %v", err)
	}
	if ok {
		t.Fatalf("expected media to be missing")
	}
}

func TestExists_BreakerOpensAfterFailures(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	for i := 0; i < 5; i++ {
		_, err := client.Exists(context.Background(), "proof")
		if !errors.Is(err, ErrUnavailable) {
			t.Fatalf("attempt %d: expected ErrUnavailable, got %v", i, err)
		}
	}

	_, err := client.Exists(context.Background(), "proof")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from open breaker, got %v", err)
	}
	if calls != 5 {
		t.Fatalf("calls = %d, want 5 (breaker must short-circuit)", calls)
	}
}

func TestExists_NotConfigured(t *testing.T) {
	var client *Client

	if _, err := client.Exists(context.Background(), "proof"); err == nil {
		t.Fatalf("expected error for nil client")
	}
}

func TestExists_UnexpectedStatusDoesNotTripBreaker(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	for i := 0; i < 7; i++ {
		_, err := client.Exists(context.Background(), "proof")
		if !errors.Is(err, ErrUnavailable) {
			t.Fatalf("attempt %d: expected ErrUnavailable, got %v", i, err)
		}
	}

	if calls != 7 {
		t.Fatalf("calls = %d, want 7 (4xx must not open the breaker)", calls)
	}
}
