// Package media предоставляет клиент сервиса медиафайлов для проверки подтверждений оплаты.
package media

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ErrUnavailable возвращается, если сервис медиафайлов недоступен или размыкатель открыт.
var ErrUnavailable = errors.New("media service unavailable")

// errUnexpectedStatus отмечает ответы 4xx, кроме 404: сервис отвечает, размыкатель их не считает.
var errUnexpectedStatus = errors.New("unexpected status")

// Client инкапсулирует HTTP-взаимодействие с сервисом медиафайлов.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[bool]
}

// NewClient создаёт HTTP-клиент для обращения к сервису медиафайлов по указанному адресу.
func NewClient(baseURL string) *Client {
	base := strings.TrimRight(baseURL, "/")
	if base != "" && !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	return &Client{
		baseURL: base,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		breaker: gobreaker.NewCircuitBreaker[bool](gobreaker.Settings{
			Name:        "media",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, errUnexpectedStatus)
			},
		}),
	}
}

// Exists проверяет, что медиафайл с указанным идентификатором загружен.
func (c *Client) Exists(ctx context.Context, id string) (bool, error) {
	if c == nil || c.baseURL == "" {
		return false, fmt.Errorf("media client not configured")
	}

	ok, err := c.breaker.Execute(func() (bool, error) {
		return c.lookup(ctx, id)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return false, err
	}
	return ok, nil
}

func (c *Client) lookup(ctx context.Context, id string) (bool, error) {
	endpoint := fmt.Sprintf("%s/media/%s", c.baseURL, url.PathEscape(id))

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return true, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode >= http.StatusInternalServerError:
		return false, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	default:
		return false, fmt.Errorf("%w: %w %d", ErrUnavailable, errUnexpectedStatus, resp.StatusCode)
	}
}
