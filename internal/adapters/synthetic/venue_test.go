package synthetic_test

import (
	"context"
	"testing"
	"time"

	"github.com/alejandrodnm/polyarb/internal/adapters/synthetic"
	"github.com/alejandrodnm/polyarb/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(seed int64) synthetic.Config {
	cfg := synthetic.DefaultConfig(seed)
	cfg.TickInterval = 5 * time.Millisecond
	cfg.FillLatency = 10 * time.Millisecond
	return cfg
}

func collectUpdates(t *testing.T, v *synthetic.Venue, n int) []domain.BookUpdate {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ch, err := v.StreamBookUpdates(ctx)
	require.NoError(t, err)

	out := make([]domain.BookUpdate, 0, n)
	for u := range ch {
		out = append(out, u)
		if len(out) == n {
			break
		}
	}
	require.Len(t, out, n, "stream ended before producing %d updates", n)
	return out
}

func TestVenue_StreamIsDeterministicPerSeed(t *testing.T) {
	a := collectUpdates(t, synthetic.New(fastConfig(42)), 12)
	b := collectUpdates(t, synthetic.New(fastConfig(42)), 12)

	for i := range a {
		assert.Equal(t, a[i].MarketID, b[i].MarketID)
		assert.Equal(t, a[i].Side, b[i].Side)
		assert.InDelta(t, a[i].BestAsk.Price, b[i].BestAsk.Price, 1e-12)
		assert.InDelta(t, a[i].BestAsk.Size, b[i].BestAsk.Size, 1e-12)
	}
}

func TestVenue_StreamEmitsBothSides(t *testing.T) {
	updates := collectUpdates(t, synthetic.New(fastConfig(7)), 6)

	bySide := map[domain.Side]int{}
	for _, u := range updates {
		require.True(t, u.BestAsk.Valid(), "ask out of range: %+v", u.BestAsk)
		require.NotEmpty(t, u.TokenID)
		bySide[u.Side]++
	}
	assert.Equal(t, 3, bySide[domain.SideYes])
	assert.Equal(t, 3, bySide[domain.SideNo])
}

func TestVenue_OrderFillsAfterLatency(t *testing.T) {
	cfg := fastConfig(1)
	cfg.RejectProbability = 0
	cfg.PartialProbability = 0
	v := synthetic.New(cfg)
	ctx := context.Background()

	handle, err := v.PlaceOrder(ctx, domain.PlaceOrderRequest{
		MarketID: "synthetic-market-1", TokenID: "synthetic-yes-1",
		Side: domain.SideYes, Price: 0.45, Size: 10,
	})
	require.NoError(t, err)

	st, err := v.PollFill(ctx, handle)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderSubmitted, st.Status)

	time.Sleep(cfg.FillLatency + 20*time.Millisecond)

	st, err = v.PollFill(ctx, handle)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderFilled, st.Status)
	assert.InDelta(t, 10.0, st.FilledSize, 1e-9)
	assert.InDelta(t, 0.45, st.AvgFillPrice, 1e-9)
}

func TestVenue_CancelBeforeResolve(t *testing.T) {
	cfg := fastConfig(1)
	cfg.RejectProbability = 0
	cfg.PartialProbability = 0
	cfg.FillLatency = time.Minute
	v := synthetic.New(cfg)
	ctx := context.Background()

	handle, err := v.PlaceOrder(ctx, domain.PlaceOrderRequest{
		MarketID: "synthetic-market-1", TokenID: "synthetic-no-1",
		Side: domain.SideNo, Price: 0.50, Size: 10,
	})
	require.NoError(t, err)

	require.NoError(t, v.CancelOrder(ctx, handle))

	st, err := v.PollFill(ctx, handle)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCancelled, st.Status)
	assert.Zero(t, st.FilledSize)

	// Segundo cancel: la orden ya es terminal.
	err = v.CancelOrder(ctx, handle)
	assert.ErrorIs(t, err, domain.ErrAlreadyTerminal)
}

func TestVenue_CancelAfterResolveIsTerminal(t *testing.T) {
	cfg := fastConfig(1)
	cfg.RejectProbability = 0
	cfg.PartialProbability = 0
	cfg.FillLatency = time.Millisecond
	v := synthetic.New(cfg)
	ctx := context.Background()

	handle, err := v.PlaceOrder(ctx, domain.PlaceOrderRequest{
		MarketID: "synthetic-market-1", TokenID: "synthetic-yes-1",
		Side: domain.SideYes, Price: 0.45, Size: 10,
	})
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	err = v.CancelOrder(ctx, handle)
	assert.ErrorIs(t, err, domain.ErrAlreadyTerminal)

	st, err := v.PollFill(ctx, handle)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderFilled, st.Status)
}

func TestVenue_RejectsInvalidOrders(t *testing.T) {
	v := synthetic.New(fastConfig(1))
	ctx := context.Background()

	_, err := v.PlaceOrder(ctx, domain.PlaceOrderRequest{Price: 0.45, Size: 0})
	assert.ErrorIs(t, err, domain.ErrRejected)

	_, err = v.PlaceOrder(ctx, domain.PlaceOrderRequest{Price: 1.2, Size: 10})
	assert.ErrorIs(t, err, domain.ErrRejected)
}
