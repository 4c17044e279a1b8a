package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/polyarb/internal/domain"
	"github.com/alejandrodnm/polyarb/internal/ports"
)

// Console implementa ports.Notifier.
type Console struct {
	out io.Writer
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// ShowStatus imprime el estado del bot: gate de riesgo y acumulados.
func (c *Console) ShowStatus(_ context.Context, v ports.StatusView) error {
	mode := "LIVE"
	if v.PaperMode {
		mode = "PAPER"
	}
	fmt.Fprintf(c.out, "\n=== polyarb status — venue:%s mode:%s ===\n\n", v.Venue, mode)

	gate := "TRADING"
	if v.Risk.Halted {
		gate = fmt.Sprintf("HALTED (%s)", v.Risk.HaltReason)
	}
	fmt.Fprintf(c.out, "  Risk gate: %s\n", gate)
	fmt.Fprintf(c.out, "  Consecutive failures: %d\n", v.Risk.ConsecutiveFailures)
	if !v.Risk.LastFailureAt.IsZero() {
		fmt.Fprintf(c.out, "  Last failure: %s\n", v.Risk.LastFailureAt.Format(time.RFC3339))
	}

	fmt.Fprintf(c.out, "\n  Signals: %d evaluated, %d tradeable\n",
		v.Signals.Total, v.Signals.ByDecision[domain.DecisionTrade])
	fmt.Fprintf(c.out, "  TradeSets: %d total, %d completed (fill rate %.0f%%), PnL $%.4f\n\n",
		v.TradeSets.Total, v.TradeSets.ByStatus[domain.TradeSetCompleted],
		v.TradeSets.FillRate()*100, v.TradeSets.RealizedPnL)
	return nil
}

// ShowReport imprime el reporte completo: agregados, tradesets recientes
// y eventos de riesgo.
func (c *Console) ShowReport(_ context.Context, v ports.ReportView) error {
	fmt.Fprintf(c.out, "\n=== polyarb report ===\n\n")

	c.printSignalSummary(v.Signals)
	c.printTradeSetSummary(v.TradeSets)

	if len(v.Recent) > 0 {
		fmt.Fprintln(c.out, "\nRecent tradesets:")
		c.printTradeSets(v.Recent)
	}
	if len(v.RiskEvents) > 0 {
		fmt.Fprintln(c.out, "\nRecent risk events:")
		c.printRiskEvents(v.RiskEvents)
	}
	fmt.Fprintln(c.out)
	return nil
}

func (c *Console) printSignalSummary(s domain.SignalSummary) {
	table := tablewriter.NewWriter(c.out)
	table.Header("Decision", "Count")
	for _, d := range []domain.SignalDecision{
		domain.DecisionTrade,
		domain.DecisionSkipEdge,
		domain.DecisionSkipDepth,
		domain.DecisionSkipCooldown,
		domain.DecisionSkipStale,
		domain.DecisionSkipNoQuotes,
	} {
		if n := s.ByDecision[d]; n > 0 {
			table.Append(string(d), fmt.Sprintf("%d", n))
		}
	}
	table.Append("TOTAL", fmt.Sprintf("%d", s.Total))
	table.Render()

	if s.ByDecision[domain.DecisionTrade] > 0 {
		fmt.Fprintf(c.out, "  avg edge on TRADE signals: %.4f\n", s.AvgEdge)
	}
}

func (c *Console) printTradeSetSummary(s domain.TradeSetSummary) {
	fmt.Fprintf(c.out, "\nTradeSets: %d total — completed:%d halted:%d aborted:%d\n",
		s.Total,
		s.ByStatus[domain.TradeSetCompleted],
		s.ByStatus[domain.TradeSetHalted],
		s.ByStatus[domain.TradeSetAborted],
	)
	if s.Total > 0 {
		fmt.Fprintf(c.out, "  fill rate: %.0f%%  realized PnL: $%.4f  avg edge: %.4f\n",
			s.FillRate()*100, s.RealizedPnL, s.AvgEdge)
	}
}

func (c *Console) printTradeSets(sets []domain.TradeSet) {
	table := tablewriter.NewWriter(c.out)
	table.Header("ID", "Market", "Status", "Size", "Edge", "Created")
	for _, ts := range sets {
		table.Append(
			shortID(ts.ID),
			truncate(ts.MarketID, 18),
			string(ts.Status),
			fmt.Sprintf("%.2f", ts.Size),
			fmt.Sprintf("%.4f", ts.RealizedEdge),
			ts.CreatedAt.Format("01-02 15:04:05"),
		)
	}
	table.Render()
}

func (c *Console) printRiskEvents(events []domain.RiskEvent) {
	table := tablewriter.NewWriter(c.out)
	table.Header("Kind", "Market", "Detail", "At")
	for _, ev := range events {
		table.Append(
			string(ev.Kind),
			truncate(ev.MarketID, 18),
			truncate(ev.Detail, 40),
			ev.CreatedAt.Format("01-02 15:04:05"),
		)
	}
	table.Render()
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
