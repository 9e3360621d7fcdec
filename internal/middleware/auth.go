// Package middleware содержит HTTP middleware сервиса оформления заказов.
package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

type contextKey string

const customerEmailKey contextKey = "customerEmail"

const authCookieName = "auth_token"

// AuthMiddleware проверяет подписанный токен покупателя из cookie или заголовка Authorization.
type AuthMiddleware struct {
	secretKey []byte
}

// NewAuthMiddleware создаёт новый экземпляр AuthMiddleware с указанным секретным ключом.
// При пустом секрете генерируется случайный ключ, и токены не переживают перезапуск.
func NewAuthMiddleware(secret string) *AuthMiddleware {
	key := []byte(secret)
	if len(key) == 0 {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			key = randomKey
		} else {
			key = []byte("default-secret-key")
		}
	}

	return &AuthMiddleware{
		secretKey: key,
	}
}

// Identify добавляет почту покупателя в контекст, если запрос содержит валидный токен.
// Запросы без токена пропускаются как гостевые.
func (a *AuthMiddleware) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if email, ok := a.subjectFromRequest(r); ok {
			r = r.WithContext(context.WithValue(r.Context(), customerEmailKey, email))
		}
		next.ServeHTTP(w, r)
	})
}

// Middleware требует валидный токен и добавляет почту покупателя в контекст запроса.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email, ok := a.subjectFromRequest(r)
		if !ok {
			WriteError(w, http.StatusUnauthorized, "authentication required", "")
			return
		}

		ctx := context.WithValue(r.Context(), customerEmailKey, email)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AdminOnly пропускает только покупателей, чья почта входит в список администраторов.
// Должен стоять после Middleware.
func AdminOnly(admins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(admins))
	for _, a := range admins {
		a = strings.ToLower(strings.TrimSpace(a))
		if a != "" {
			allowed[a] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			email, ok := GetCustomerEmailFromContext(r.Context())
			if !ok {
				WriteError(w, http.StatusUnauthorized, "authentication required", "")
				return
			}
			if _, ok := allowed[email]; !ok {
				WriteError(w, http.StatusForbidden, "admin access required", "")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Token возвращает подписанный токен для почты покупателя.
func (a *AuthMiddleware) Token(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	return email + "." + a.sign(email)
}

func (a *AuthMiddleware) sign(subject string) string {
	mac := hmac.New(sha256.New, a.secretKey)
	mac.Write([]byte(subject))
	return hex.EncodeToString(mac.Sum(nil))
}

func (a *AuthMiddleware) subjectFromRequest(r *http.Request) (string, bool) {
	var token string
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		token = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	} else if cookie, err := r.Cookie(authCookieName); err == nil {
		token = cookie.Value
	}
	if token == "" {
		return "", false
	}
	return a.parseToken(token)
}

// Почта содержит точки, поэтому подпись отделяется по последней.
func (a *AuthMiddleware) parseToken(token string) (string, bool) {
	i := strings.LastIndex(token, ".")
	if i <= 0 || i == len(token)-1 {
		return "", false
	}

	subject, signature := token[:i], token[i+1:]
	if !hmac.Equal([]byte(signature), []byte(a.sign(subject))) {
		return "", false
	}

	return subject, true
}

// GetCustomerEmailFromContext извлекает почту аутентифицированного покупателя из контекста запроса.
func GetCustomerEmailFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(customerEmailKey).(string)
	return email, ok
}
