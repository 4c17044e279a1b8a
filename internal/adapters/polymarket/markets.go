package polymarket

// markets.go — descubrimiento de mercados binarios del CLOB.

import (
	"context"
	"fmt"
	"log/slog"
)

const (
	marketsPath = "/markets"
	pageSize    = 100
)

// FetchActiveMarkets devuelve los mercados binarios activos del CLOB.
// Pagina automáticamente usando next_cursor hasta agotar los resultados.
// max <= 0 significa sin límite.
func (c *Client) FetchActiveMarkets(ctx context.Context, max int) ([]clobMarket, error) {
	var all []clobMarket
	cursor := ""

	for {
		url := fmt.Sprintf("%s%s?limit=%d", c.clobBase, marketsPath, pageSize)
		if cursor != "" {
			url += "&next_cursor=" + cursor
		}

		var resp clobMarketsResponse
		if err := c.get(ctx, c.clobLimiter, url, &resp); err != nil {
			return nil, fmt.Errorf("polymarket.FetchActiveMarkets: %w", err)
		}

		for _, m := range resp.Data {
			if !m.Active || m.Closed {
				continue
			}
			if _, _, ok := binaryTokens(m); !ok {
				continue
			}
			all = append(all, m)
			if max > 0 && len(all) >= max {
				slog.Info("active markets fetched", "total", len(all), "capped", true)
				return all, nil
			}
		}

		// "LTE=" es el cursor vacío codificado en base64 que indica última página
		if resp.NextCursor == "" || resp.NextCursor == "LTE=" {
			break
		}
		cursor = resp.NextCursor
	}

	slog.Info("active markets fetched", "total", len(all))
	return all, nil
}

// IsNegRisk consulta si un token usa el adapter NegRisk del exchange.
func (c *Client) IsNegRisk(ctx context.Context, tokenID string) (bool, error) {
	url := fmt.Sprintf("%s/neg-risk?token_id=%s", c.clobBase, tokenID)

	var resp clobNegRiskResponse
	if err := c.get(ctx, c.clobLimiter, url, &resp); err != nil {
		return false, fmt.Errorf("polymarket.IsNegRisk: %w", err)
	}
	return resp.NegRisk, nil
}
