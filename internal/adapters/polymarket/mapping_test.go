package polymarket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polyarb/internal/domain"
)

func testIndex() map[string]tokenInfo {
	return indexTokens([]clobMarket{
		{
			ConditionID:  "0xmkt",
			Question:     "Will X happen?",
			TakerBaseFee: 200, // 2% en bps
			Active:       true,
			Tokens: []clobToken{
				{TokenID: "tok-yes", Outcome: "Yes"},
				{TokenID: "tok-no", Outcome: "No"},
			},
		},
	}, 0.01)
}

func TestIndexTokens(t *testing.T) {
	idx := testIndex()
	require.Len(t, idx, 2)

	yes := idx["tok-yes"]
	assert.Equal(t, "0xmkt", yes.MarketID)
	assert.Equal(t, domain.SideYes, yes.Side)
	assert.InDelta(t, 0.02, yes.FeeRate, 1e-9)

	no := idx["tok-no"]
	assert.Equal(t, domain.SideNo, no.Side)
}

func TestIndexTokens_FeeRateDefault(t *testing.T) {
	idx := indexTokens([]clobMarket{
		{
			ConditionID: "0xmkt",
			Tokens: []clobToken{
				{TokenID: "y", Outcome: "Yes"},
				{TokenID: "n", Outcome: "No"},
			},
		},
	}, 0.015)
	assert.InDelta(t, 0.015, idx["y"].FeeRate, 1e-9)
}

func TestBookEventToUpdate(t *testing.T) {
	now := time.Now()
	ev := wsBookEvent{
		EventType: "book",
		AssetID:   "tok-yes",
		Bids: []bookEntryRaw{
			{Price: "0.42", Size: "100"},
			{Price: "0.44", Size: "50"},
		},
		Asks: []bookEntryRaw{
			{Price: "0.48", Size: "75"},
			{Price: "0.46", Size: "200"},
		},
		Timestamp: "1756600000000",
	}

	u, ok := bookEventToUpdate(ev, testIndex(), now)
	require.True(t, ok)
	assert.Equal(t, "0xmkt", u.MarketID)
	assert.Equal(t, domain.SideYes, u.Side)
	// Mejor bid: el más alto. Mejor ask: el más bajo.
	assert.InDelta(t, 0.44, u.BestBid.Price, 1e-9)
	assert.InDelta(t, 0.46, u.BestAsk.Price, 1e-9)
	assert.InDelta(t, 200, u.BestAsk.Size, 1e-9)
	assert.Equal(t, time.UnixMilli(1756600000000).UTC(), u.Timestamp)
}

func TestBookEventToUpdate_UnknownToken(t *testing.T) {
	_, ok := bookEventToUpdate(wsBookEvent{AssetID: "mystery"}, testIndex(), time.Now())
	assert.False(t, ok)
}

func TestPriceChangeToUpdates_SizeIsZero(t *testing.T) {
	ev := wsPriceChangeEvent{
		EventType: "price_change",
		PriceChanges: []wsPriceChange{
			{AssetID: "tok-no", BestBid: "0.50", BestAsk: "0.52"},
			{AssetID: "mystery", BestBid: "0.10", BestAsk: "0.12"},
		},
	}

	updates := priceChangeToUpdates(ev, testIndex(), time.Now())
	require.Len(t, updates, 1)
	assert.InDelta(t, 0.52, updates[0].BestAsk.Price, 1e-9)
	// Sin tamaño: la quote no es usable hasta el siguiente snapshot.
	assert.False(t, updates[0].BestAsk.Valid())
}

func TestMapOrderStatus(t *testing.T) {
	cases := []struct {
		name       string
		order      clobOrder
		wantStatus domain.OrderStatus
		wantFilled float64
	}{
		{
			name:       "live sin fills",
			order:      clobOrder{Status: "LIVE", OriginalSize: "10", SizeMatched: "0"},
			wantStatus: domain.OrderSubmitted,
		},
		{
			name:       "live con fills parciales",
			order:      clobOrder{Status: "LIVE", OriginalSize: "10", SizeMatched: "4", Price: "0.45"},
			wantStatus: domain.OrderPartiallyFilled,
			wantFilled: 4,
		},
		{
			name:       "live completamente llenada",
			order:      clobOrder{Status: "LIVE", OriginalSize: "10", SizeMatched: "10", Price: "0.45"},
			wantStatus: domain.OrderFilled,
			wantFilled: 10,
		},
		{
			name:       "matched",
			order:      clobOrder{Status: "MATCHED", OriginalSize: "10", SizeMatched: "10", Price: "0.45"},
			wantStatus: domain.OrderFilled,
			wantFilled: 10,
		},
		{
			name:       "cancelada con fill parcial",
			order:      clobOrder{Status: "CANCELED", OriginalSize: "10", SizeMatched: "3", Price: "0.45"},
			wantStatus: domain.OrderCancelled,
			wantFilled: 3,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := mapOrderStatus(tc.order)
			assert.Equal(t, tc.wantStatus, st.Status)
			assert.InDelta(t, tc.wantFilled, st.FilledSize, 1e-9)
			if tc.wantFilled > 0 {
				assert.InDelta(t, 0.45, st.AvgFillPrice, 1e-9)
			}
		})
	}
}

func TestFetchActiveMarkets_FiltersAndPaginates(t *testing.T) {
	page1 := `{
		"limit": 100, "count": 2, "next_cursor": "Mg==",
		"data": [
			{
				"condition_id": "0xaaa", "question": "A?", "active": true, "closed": false,
				"tokens": [
					{"token_id": "a-yes", "outcome": "Yes"},
					{"token_id": "a-no", "outcome": "No"}
				]
			},
			{
				"condition_id": "0xbbb", "question": "B?", "active": false, "closed": false,
				"tokens": [
					{"token_id": "b-yes", "outcome": "Yes"},
					{"token_id": "b-no", "outcome": "No"}
				]
			}
		]
	}`
	page2 := `{
		"limit": 100, "count": 1, "next_cursor": "LTE=",
		"data": [
			{
				"condition_id": "0xccc", "question": "C?", "active": true, "closed": false,
				"tokens": [{"token_id": "c-yes", "outcome": "Yes"}]
			}
		]
	}`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("next_cursor") == "" {
			w.Write([]byte(page1))
			return
		}
		w.Write([]byte(page2))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	markets, err := client.FetchActiveMarkets(context.Background(), 0)
	require.NoError(t, err)

	// 0xbbb está inactivo y 0xccc no es binario: solo queda 0xaaa.
	require.Len(t, markets, 1)
	assert.Equal(t, "0xaaa", markets[0].ConditionID)
}

func TestDetectPricePrecision(t *testing.T) {
	assert.Equal(t, int64(100), detectPricePrecision(0.60))
	assert.Equal(t, int64(1000), detectPricePrecision(0.673))
	assert.Equal(t, int64(100), detectPricePrecision(0.5))
}
