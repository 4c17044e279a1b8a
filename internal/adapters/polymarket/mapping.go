package polymarket

import (
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/polyarb/internal/domain"
)

// tokenInfo es el índice local token → mercado que usa el stream para
// normalizar eventos WS (que solo llevan asset_id) a domain.BookUpdate.
type tokenInfo struct {
	MarketID string
	Question string
	Side     domain.Side
	FeeRate  float64
}

// binaryTokens extrae los tokens Yes/No de un mercado. ok=false si el
// mercado no es binario estándar.
func binaryTokens(m clobMarket) (yes, no clobToken, ok bool) {
	for _, t := range m.Tokens {
		switch strings.ToLower(t.Outcome) {
		case "yes":
			yes = t
		case "no":
			no = t
		}
	}
	ok = yes.TokenID != "" && no.TokenID != ""
	return yes, no, ok
}

// indexTokens construye el índice token → tokenInfo de una lista de
// mercados. feeRateDefault se aplica a mercados sin fee propia.
func indexTokens(markets []clobMarket, feeRateDefault float64) map[string]tokenInfo {
	idx := make(map[string]tokenInfo, len(markets)*2)
	for _, m := range markets {
		yes, no, ok := binaryTokens(m)
		if !ok {
			continue
		}
		feeRate := m.TakerBaseFee / 10000 // la API devuelve bps
		if feeRate == 0 {
			feeRate = feeRateDefault
		}
		idx[yes.TokenID] = tokenInfo{MarketID: m.ConditionID, Question: m.Question, Side: domain.SideYes, FeeRate: feeRate}
		idx[no.TokenID] = tokenInfo{MarketID: m.ConditionID, Question: m.Question, Side: domain.SideNo, FeeRate: feeRate}
	}
	return idx
}

// bookEventToUpdate convierte un snapshot "book" de un token a BookUpdate.
// ok=false si el token no está en el índice.
func bookEventToUpdate(ev wsBookEvent, idx map[string]tokenInfo, now time.Time) (domain.BookUpdate, bool) {
	info, ok := idx[ev.AssetID]
	if !ok {
		return domain.BookUpdate{}, false
	}
	return domain.BookUpdate{
		MarketID:  info.MarketID,
		Question:  info.Question,
		Side:      info.Side,
		TokenID:   ev.AssetID,
		BestBid:   bestLevel(ev.Bids, false),
		BestAsk:   bestLevel(ev.Asks, true),
		FeeRate:   info.FeeRate,
		Timestamp: eventTime(ev.Timestamp, now),
	}, true
}

// priceChangeToUpdates convierte un evento "price_change" en updates.
// Estos eventos solo llevan precio, sin tamaño: el update resultante
// lleva Size 0 y el engine lo descarta hasta el siguiente snapshot.
func priceChangeToUpdates(ev wsPriceChangeEvent, idx map[string]tokenInfo, now time.Time) []domain.BookUpdate {
	out := make([]domain.BookUpdate, 0, len(ev.PriceChanges))
	for _, pc := range ev.PriceChanges {
		info, ok := idx[pc.AssetID]
		if !ok {
			continue
		}
		out = append(out, domain.BookUpdate{
			MarketID:  info.MarketID,
			Question:  info.Question,
			Side:      info.Side,
			TokenID:   pc.AssetID,
			BestBid:   domain.Quote{Price: parsePrice(pc.BestBid)},
			BestAsk:   domain.Quote{Price: parsePrice(pc.BestAsk)},
			FeeRate:   info.FeeRate,
			Timestamp: now,
		})
	}
	return out
}

// bestLevel devuelve el mejor nivel de un lado del book: el ask más bajo
// o el bid más alto. Quote cero si el lado está vacío.
func bestLevel(raw []bookEntryRaw, lowest bool) domain.Quote {
	var best domain.Quote
	for _, r := range raw {
		price := parsePrice(r.Price)
		size, _ := strconv.ParseFloat(r.Size, 64)
		if price <= 0 || size <= 0 {
			continue
		}
		if best.Price == 0 || (lowest && price < best.Price) || (!lowest && price > best.Price) {
			best = domain.Quote{Price: price, Size: size}
		}
	}
	return best
}

// mapOrderStatus convierte el estado de una orden del CLOB a FillStatus.
func mapOrderStatus(o clobOrder) domain.FillStatus {
	filled, _ := strconv.ParseFloat(o.SizeMatched, 64)
	price := parsePrice(o.Price)

	st := domain.FillStatus{FilledSize: filled}
	if filled > 0 {
		// Las limit orders se ejecutan al precio pedido.
		st.AvgFillPrice = price
	}

	size, _ := strconv.ParseFloat(o.OriginalSize, 64)
	switch strings.ToUpper(o.Status) {
	case "MATCHED":
		st.Status = domain.OrderFilled
		if st.FilledSize == 0 {
			st.FilledSize = size
			st.AvgFillPrice = price
		}
	case "LIVE", "DELAYED":
		if filled > 0 {
			st.Status = domain.OrderPartiallyFilled
		} else {
			st.Status = domain.OrderSubmitted
		}
	case "CANCELED", "CANCELLED", "UNMATCHED", "INVALID":
		st.Status = domain.OrderCancelled
	default:
		st.Status = domain.OrderSubmitted
	}

	// Un fill completo reportado como LIVE cuenta como FILLED.
	if st.Status == domain.OrderPartiallyFilled && size > 0 && filled >= size {
		st.Status = domain.OrderFilled
	}
	return st
}

func parsePrice(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

// eventTime parsea el timestamp en milisegundos de un evento WS,
// cayendo a now si falta o no parsea.
func eventTime(s string, now time.Time) time.Time {
	if s == "" {
		return now
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms <= 0 {
		return now
	}
	return time.UnixMilli(ms).UTC()
}
