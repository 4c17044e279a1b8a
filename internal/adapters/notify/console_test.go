package notify_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/alejandrodnm/polyarb/internal/adapters/notify"
	"github.com/alejandrodnm/polyarb/internal/domain"
	"github.com/alejandrodnm/polyarb/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsole_ShowStatus_Halted(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf)

	err := n.ShowStatus(context.Background(), ports.StatusView{
		Venue:     "synthetic",
		PaperMode: true,
		Risk: domain.RiskState{
			Halted:              true,
			HaltReason:          "3 consecutive failures",
			ConsecutiveFailures: 3,
		},
		TradeSets: domain.TradeSetSummary{
			Total:    4,
			ByStatus: map[domain.TradeSetStatus]int{domain.TradeSetCompleted: 1},
		},
		Signals: domain.SignalSummary{
			Total:      10,
			ByDecision: map[domain.SignalDecision]int{domain.DecisionTrade: 4},
		},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "HALTED (3 consecutive failures)")
	assert.Contains(t, out, "mode:PAPER")
	assert.Contains(t, out, "4 tradeable")
}

func TestConsole_ShowReport(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf)

	now := time.Now()
	err := n.ShowReport(context.Background(), ports.ReportView{
		Signals: domain.SignalSummary{
			Total: 12,
			ByDecision: map[domain.SignalDecision]int{
				domain.DecisionTrade:    2,
				domain.DecisionSkipEdge: 10,
			},
			AvgEdge: 0.025,
		},
		TradeSets: domain.TradeSetSummary{
			Total:       2,
			ByStatus:    map[domain.TradeSetStatus]int{domain.TradeSetCompleted: 2},
			RealizedPnL: 0.62,
			AvgEdge:     0.031,
		},
		Recent: []domain.TradeSet{
			{
				ID:           "abcdef1234567890",
				MarketID:     "0xmkt",
				Status:       domain.TradeSetCompleted,
				Size:         10,
				RealizedEdge: 0.031,
				CreatedAt:    now,
			},
		},
		RiskEvents: []domain.RiskEvent{
			{Kind: domain.RiskTimeout, MarketID: "0xmkt", Detail: "deadline exceeded", CreatedAt: now},
		},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "SKIP_INSUFFICIENT_EDGE")
	assert.Contains(t, out, "abcdef12")
	assert.Contains(t, out, "TIMEOUT")
	assert.Contains(t, out, "realized PnL: $0.6200")
}
