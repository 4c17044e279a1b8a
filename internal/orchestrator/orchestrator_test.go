package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alejandrodnm/polyarb/internal/adapters/storage"
	"github.com/alejandrodnm/polyarb/internal/domain"
	"github.com/alejandrodnm/polyarb/internal/execution"
	"github.com/alejandrodnm/polyarb/internal/marketdata"
	"github.com/alejandrodnm/polyarb/internal/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeVenue alimenta un stream controlado por el test y llena toda orden
// al primer poll.
type fakeVenue struct {
	stream chan domain.BookUpdate

	mu     sync.Mutex
	placed []domain.PlaceOrderRequest
}

func newFakeVenue() *fakeVenue {
	return &fakeVenue{stream: make(chan domain.BookUpdate, 64)}
}

func (f *fakeVenue) Name() string { return "fake" }

func (f *fakeVenue) StreamBookUpdates(ctx context.Context) (<-chan domain.BookUpdate, error) {
	out := make(chan domain.BookUpdate)
	go func() {
		defer close(out)
		for {
			select {
			case u, ok := <-f.stream:
				if !ok {
					return
				}
				select {
				case out <- u:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (f *fakeVenue) PlaceOrder(_ context.Context, req domain.PlaceOrderRequest) (domain.OrderHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.placed = append(f.placed, req)
	return domain.OrderHandle{VenueOrderID: "venue-" + req.TokenID, TokenID: req.TokenID}, nil
}

func (f *fakeVenue) CancelOrder(context.Context, domain.OrderHandle) error { return nil }

func (f *fakeVenue) PollFill(_ context.Context, handle domain.OrderHandle) (domain.FillStatus, error) {
	price := 0.46
	if handle.TokenID == "tok-no" {
		price = 0.47
	}
	return domain.FillStatus{Status: domain.OrderFilled, FilledSize: 10, AvgFillPrice: price}, nil
}

func (f *fakeVenue) placedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.placed)
}

func legUpdate(marketID string, side domain.Side, ask, size float64) domain.BookUpdate {
	tokenID := "tok-yes"
	if side == domain.SideNo {
		tokenID = "tok-no"
	}
	return domain.BookUpdate{
		MarketID:  marketID,
		Side:      side,
		TokenID:   tokenID,
		BestAsk:   domain.Quote{Price: ask, Size: size},
		Timestamp: time.Now(),
	}
}

func testOrchestrator(t *testing.T, cfg Config, venue *fakeVenue) (*Orchestrator, *execution.RiskManager, *storage.SQLiteLedger) {
	t.Helper()
	ledger, err := storage.NewSQLiteLedger(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })

	book := marketdata.NewBook(10 * time.Second)
	engine := strategy.NewEngine(strategy.Config{
		MinEdge:  0.01,
		MinDepth: 10,
		Cooldown: time.Second,
	})
	risk := execution.NewRiskManager(ledger, execution.RiskConfig{MaxConsecutiveFailures: 3})
	exec := execution.NewExecutor(venue, ledger, risk, execution.Config{
		OrderSize:    10,
		Timeout:      time.Second,
		PollInterval: 10 * time.Millisecond,
	})
	return New(cfg, venue, book, engine, exec, risk, ledger), risk, ledger
}

func TestRun_OnceStopsAfterFirstTradeSet(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	venue := newFakeVenue()
	orch, _, ledger := testOrchestrator(t, Config{Once: true}, venue)

	// Oportunidad: 0.46 + 0.47 = 0.93, edge 0.07.
	venue.stream <- legUpdate("mkt-1", domain.SideYes, 0.46, 50)
	venue.stream <- legUpdate("mkt-1", domain.SideNo, 0.47, 50)

	require.NoError(t, orch.Run(ctx))
	require.NoError(t, ctx.Err(), "Run debe terminar por el settle, no por timeout")

	assert.Equal(t, 2, venue.placedCount())

	sets, err := ledger.RecentTradeSets(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sets, 1)
	assert.Equal(t, domain.TradeSetCompleted, sets[0].Status)
	assert.Equal(t, "mkt-1", sets[0].MarketID)
}

func TestRun_SkipSignalsPersistedOnDecisionChange(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	venue := newFakeVenue()
	orch, _, ledger := testOrchestrator(t, Config{}, venue)

	done := make(chan error, 1)
	go func() { done <- orch.Run(ctx) }()

	// Sin arb: sum = 1.01. Tres ticks idénticos producen una sola fila.
	for i := 0; i < 3; i++ {
		venue.stream <- legUpdate("mkt-1", domain.SideYes, 0.51, 50)
		venue.stream <- legUpdate("mkt-1", domain.SideNo, 0.50, 50)
	}

	require.Eventually(t, func() bool {
		s, err := ledger.SignalSummary(ctx)
		return err == nil && s.Total >= 2
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	summary, err := ledger.SignalSummary(context.Background())
	require.NoError(t, err)
	// Una fila SKIP_STALE (solo una pata conocida) y una SKIP_INSUFFICIENT_EDGE:
	// los ticks repetidos con la misma decisión no añaden filas.
	assert.Equal(t, 1, summary.ByDecision[domain.DecisionSkipStale])
	assert.Equal(t, 1, summary.ByDecision[domain.DecisionSkipEdge])
}

func TestRun_PicksUpExternalHaltWhileRunning(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	venue := newFakeVenue()
	orch, risk, ledger := testOrchestrator(t, Config{RiskRefresh: 20 * time.Millisecond}, venue)
	require.NoError(t, risk.Load(ctx))

	done := make(chan error, 1)
	go func() { done <- orch.Run(ctx) }()

	// `polyarb halt` desde un segundo proceso sobre el mismo ledger.
	operator := execution.NewRiskManager(ledger, execution.RiskConfig{MaxConsecutiveFailures: 3})
	require.NoError(t, operator.ManualHalt(ctx, "maintenance"))

	require.Eventually(t, risk.IsHalted, 2*time.Second, 10*time.Millisecond,
		"el loop debe recoger el halt del ledger sin reiniciar")

	cancel()
	require.NoError(t, <-done)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	venue := newFakeVenue()
	orch, _, _ := testOrchestrator(t, Config{}, venue)

	done := make(chan error, 1)
	go func() { done <- orch.Run(ctx) }()

	venue.stream <- legUpdate("mkt-1", domain.SideYes, 0.51, 50)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run no terminó tras cancelar el contexto")
	}
}

func TestRun_StreamClosureIsAnError(t *testing.T) {
	venue := newFakeVenue()
	orch, _, _ := testOrchestrator(t, Config{}, venue)

	close(venue.stream)

	err := orch.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stream closed unexpectedly")
}
