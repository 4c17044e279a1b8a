package marketdata

import (
	"testing"
	"time"

	"github.com/alejandrodnm/polyarb/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func update(marketID string, side domain.Side, ask float64, size float64, at time.Time) domain.BookUpdate {
	tokenID := marketID + "-yes"
	if side == domain.SideNo {
		tokenID = marketID + "-no"
	}
	return domain.BookUpdate{
		MarketID:  marketID,
		Side:      side,
		TokenID:   tokenID,
		BestBid:   domain.Quote{Price: ask - 0.02, Size: size},
		BestAsk:   domain.Quote{Price: ask, Size: size},
		Timestamp: at,
	}
}

func TestBook_SnapshotRequiresBothLegs(t *testing.T) {
	now := time.Now()
	b := NewBook(10 * time.Second)

	b.Apply(update("mkt-1", domain.SideYes, 0.48, 50, now))

	_, ok := b.Snapshot("mkt-1", now)
	assert.False(t, ok, "snapshot con una sola pata no debe ser usable")

	b.Apply(update("mkt-1", domain.SideNo, 0.49, 30, now))

	snap, ok := b.Snapshot("mkt-1", now)
	require.True(t, ok)
	assert.Equal(t, 0.48, snap.Yes.BestAsk.Price)
	assert.Equal(t, 0.49, snap.No.BestAsk.Price)
	assert.Equal(t, "mkt-1-yes", snap.Market.YesTokenID)
	assert.Equal(t, "mkt-1-no", snap.Market.NoTokenID)
}

func TestBook_ApplyReplacesLeg(t *testing.T) {
	now := time.Now()
	b := NewBook(10 * time.Second)

	b.Apply(update("mkt-1", domain.SideYes, 0.48, 50, now))
	b.Apply(update("mkt-1", domain.SideNo, 0.49, 30, now))
	b.Apply(update("mkt-1", domain.SideYes, 0.45, 80, now.Add(time.Second)))

	snap, ok := b.Snapshot("mkt-1", now.Add(time.Second))
	require.True(t, ok)
	assert.Equal(t, 0.45, snap.Yes.BestAsk.Price, "el update reemplaza la pata entera")
	assert.Equal(t, 80.0, snap.Yes.BestAsk.Size)
	assert.Equal(t, 0.49, snap.No.BestAsk.Price, "la otra pata no cambia")
}

func TestBook_StaleLegInvalidatesSnapshot(t *testing.T) {
	now := time.Now()
	b := NewBook(5 * time.Second)

	b.Apply(update("mkt-1", domain.SideYes, 0.48, 50, now))
	b.Apply(update("mkt-1", domain.SideNo, 0.49, 30, now))

	_, ok := b.Snapshot("mkt-1", now.Add(4*time.Second))
	assert.True(t, ok, "dentro del umbral")

	_, ok = b.Snapshot("mkt-1", now.Add(6*time.Second))
	assert.False(t, ok, "una pata vieja invalida el snapshot completo")

	// Refrescar solo una pata no basta.
	b.Apply(update("mkt-1", domain.SideYes, 0.48, 50, now.Add(6*time.Second)))
	_, ok = b.Snapshot("mkt-1", now.Add(6*time.Second))
	assert.False(t, ok)
}

func TestBook_UnknownMarket(t *testing.T) {
	b := NewBook(10 * time.Second)
	_, ok := b.Snapshot("nope", time.Now())
	assert.False(t, ok)

	// MarkTraded sobre un mercado desconocido no debe crear entradas.
	b.MarkTraded("nope", time.Now())
	assert.Equal(t, 0, b.MarketCount())
}

func TestBook_MarkTraded(t *testing.T) {
	now := time.Now()
	b := NewBook(10 * time.Second)
	b.Apply(update("mkt-1", domain.SideYes, 0.48, 50, now))
	b.Apply(update("mkt-1", domain.SideNo, 0.49, 30, now))

	b.MarkTraded("mkt-1", now)

	snap, ok := b.Snapshot("mkt-1", now)
	require.True(t, ok)
	assert.Equal(t, now, snap.Market.LastTradeAt)
}

func TestBook_FeeRateAndQuestionStick(t *testing.T) {
	now := time.Now()
	b := NewBook(10 * time.Second)

	u := update("mkt-1", domain.SideYes, 0.48, 50, now)
	u.FeeRate = 0.02
	u.Question = "Will it rain?"
	b.Apply(u)

	// Updates posteriores sin metadata no la borran.
	b.Apply(update("mkt-1", domain.SideNo, 0.49, 30, now))

	snap, ok := b.Snapshot("mkt-1", now)
	require.True(t, ok)
	assert.Equal(t, 0.02, snap.Market.FeeRate)
	assert.Equal(t, "Will it rain?", snap.Market.Question)
}

func TestBook_MarketCount(t *testing.T) {
	now := time.Now()
	b := NewBook(10 * time.Second)
	b.Apply(update("mkt-1", domain.SideYes, 0.48, 50, now))
	b.Apply(update("mkt-1", domain.SideNo, 0.49, 50, now))
	b.Apply(update("mkt-2", domain.SideYes, 0.30, 50, now))
	assert.Equal(t, 2, b.MarketCount())
}
