package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuthMiddleware_WithValidCookie(t *testing.T) {
	m := NewAuthMiddleware("test-secret")

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		email, ok := GetCustomerEmailFromContext(r.Context())
		if !ok {
			t.Fatalf("email not in context")
		}
		if email != "ayesha.khan@example.com" {
			t.Fatalf("email from context = %q, want %q", email, "ayesha.khan@example.com")
		}
	})

	r := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.AddCookie(&http.Cookie{Name: authCookieName, Value: m.Token(" Ayesha.Khan@example.com")})

	handler := m.Middleware(next)
	handler.ServeHTTP(httptest.NewRecorder(), r)

	if !nextCalled {
		t.Fatalf("next handler was not called")
	}
}

func TestAuthMiddleware_WithBearerToken(t *testing.T) {
	m := NewAuthMiddleware("test-secret")

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
	})

	r := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.Header.Set("Authorization", "Bearer "+m.Token("bilal@example.pk"))

	m.Middleware(next).ServeHTTP(httptest.NewRecorder(), r)

	if !nextCalled {
		t.Fatalf("next handler was not called")
	}
}

func TestAuthMiddleware_WithoutCookie(t *testing.T) {
	m := NewAuthMiddleware("test-secret")

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next handler should not be called")
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/protected", nil)

	handler := m.Middleware(next)
	handler.ServeHTTP(w, r)

	res := w.Result()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnauthorized)
	}
	assertErrorEnvelope(t, w)
}

func assertErrorEnvelope(t *testing.T, w *httptest.ResponseRecorder) {
	t.Helper()

	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type = %q, want application/json", ct)
	}
	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if resp.Success || resp.Message == "" {
		t.Fatalf("unexpected error body: %+v", resp)
	}
}

func TestAuthMiddleware_TamperedToken(t *testing.T) {
	m := NewAuthMiddleware("test-secret")
	other := NewAuthMiddleware("other-secret")

	tokens := []string{
		other.Token("ayesha@example.com"),
		"ayesha@example.com",
		"ayesha@example.com.",
		"." + m.Token("x"),
		"mallory@example.com." + m.Token("ayesha@example.com")[len("ayesha@example.com."):],
	}

	for _, token := range tokens {
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatalf("next handler should not be called for token %q", token)
		})

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/protected", nil)
		r.AddCookie(&http.Cookie{Name: authCookieName, Value: token})

		m.Middleware(next).ServeHTTP(w, r)

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("token %q: status = %d, want %d", token, w.Code, http.StatusUnauthorized)
		}
	}
}

func TestIdentify_GuestPassesThrough(t *testing.T) {
	m := NewAuthMiddleware("test-secret")

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		if _, ok := GetCustomerEmailFromContext(r.Context()); ok {
			t.Fatalf("guest request must not carry an email")
		}
	})

	m.Identify(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/orders/checkout", nil))

	if !nextCalled {
		t.Fatalf("next handler was not called")
	}
}

func TestAdminOnly(t *testing.T) {
	m := NewAuthMiddleware("test-secret")
	admin := AdminOnly([]string{" Owner@Shop.pk ", ""})

	tests := []struct {
		name  string
		email string
		want  int
	}{
		{name: "admin", email: "owner@shop.pk", want: http.StatusOK},
		{name: "customer", email: "ayesha@example.com", want: http.StatusForbidden},
		{name: "anonymous", want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})

			r := httptest.NewRequest(http.MethodGet, "/admin/vouchers", nil)
			if tt.email != "" {
				r.Header.Set("Authorization", "Bearer "+m.Token(tt.email))
			}
			w := httptest.NewRecorder()

			m.Identify(admin(next)).ServeHTTP(w, r)

			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
			if tt.want != http.StatusOK {
				assertErrorEnvelope(t, w)
			}
		})
	}
}
