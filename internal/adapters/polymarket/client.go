package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/polyarb/internal/domain"
)

const (
	defaultCLOBBase = "https://clob.polymarket.com"
	defaultWSURL    = "wss://ws-subscriptions-clob.polymarket.com/ws/market"

	// Rate limits al 60% de los límites reales documentados.
	// CLOB general: 9000/10s → 5400/10s → 540/s
	generalRatePerSec = 540
	// Endpoints de órdenes: 500/10s → 300/10s → 30/s
	ordersRatePerSec = 30

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// Client es el HTTP client del CLOB con rate limiting y retries.
// Los errores terminan wrappeando domain.ErrRejected (4xx) o
// domain.ErrConnection (red, 5xx, retries agotados) para que las capas
// superiores clasifiquen con errors.Is.
type Client struct {
	http          *http.Client
	clobBase      string
	clobLimiter   *rate.Limiter
	ordersLimiter *rate.Limiter
}

// NewClient crea un Client contra el base URL dado ("" = producción).
func NewClient(clobBase string) *Client {
	if clobBase == "" {
		clobBase = defaultCLOBBase
	}
	return &Client{
		http:          &http.Client{Timeout: 10 * time.Second},
		clobBase:      clobBase,
		clobLimiter:   rate.NewLimiter(generalRatePerSec, 50),
		ordersLimiter: rate.NewLimiter(ordersRatePerSec, 5),
	}
}

// get hace un GET con rate limiting y retries.
func (c *Client) get(ctx context.Context, limiter *rate.Limiter, url string, out any) error {
	return c.doWithRetry(ctx, limiter, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return c.http.Do(req)
	}, out)
}

// doWithRetry ejecuta la función con backoff exponencial.
func (c *Client) doWithRetry(ctx context.Context, limiter *rate.Limiter, fn func() (*http.Response, error), out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w: %w", domain.ErrConnection, err)
		}

		resp, err := fn()
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w: %w", maxRetries, domain.ErrConnection, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			slog.Warn("rate limited by API", "attempt", attempt+1)
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("server error %d after %d retries: %w", resp.StatusCode, maxRetries, domain.ErrConnection)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("client error %d: %s: %w", resp.StatusCode, string(body), domain.ErrRejected)
		}

		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries: %w", maxRetries, domain.ErrConnection)
}

// sleep espera con backoff exponencial, respetando el contexto.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
