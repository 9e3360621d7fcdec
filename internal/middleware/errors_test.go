package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRecoverer(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("nil voucher")
	})

	w := httptest.NewRecorder()
	Recoverer(zap.New(core))(next).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/orders/checkout", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	assertErrorEnvelope(t, w)

	entries := logs.FilterMessage("panic recovered").All()
	if len(entries) != 1 {
		t.Fatalf("log entries = %d, want 1", len(entries))
	}
	if entries[0].ContextMap()["panic"] != "nil voucher" {
		t.Fatalf("panic field = %v", entries[0].ContextMap()["panic"])
	}
}

func TestRecoverer_PassesThrough(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	Recoverer(zap.NewNop())(next).ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/admin/vouchers/SAVE10", nil))

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
}
