package domain

import "time"

// Quote es un nivel top-of-book: precio y tamaño disponible.
type Quote struct {
	Price float64
	Size  float64
}

// Valid indica si la quote es usable: precio en (0,1) y tamaño positivo.
func (q Quote) Valid() bool {
	return q.Price > 0 && q.Price < 1 && q.Size > 0
}

// BookUpdate es una actualización top-of-book normalizada por el adapter
// para una pata (market, side). Reemplaza íntegramente el snapshot anterior
// de esa pata — nunca se mezcla parcialmente.
type BookUpdate struct {
	MarketID  string
	Question  string
	Side      Side
	TokenID   string
	BestBid   Quote
	BestAsk   Quote
	FeeRate   float64
	Timestamp time.Time
}

// TokenQuote es el estado top-of-book de un token.
type TokenQuote struct {
	TokenID   string
	BestBid   Quote
	BestAsk   Quote
	UpdatedAt time.Time
}

// Stale indica si la quote es más vieja que el umbral dado.
// Una quote nunca recibida (UpdatedAt cero) siempre es stale.
func (t TokenQuote) Stale(now time.Time, threshold time.Duration) bool {
	if t.UpdatedAt.IsZero() {
		return true
	}
	return now.Sub(t.UpdatedAt) > threshold
}

// MarketSnapshot es la vista consistente de ambas patas de un mercado,
// copiada bajo lock — el caller puede leerla sin sincronización.
type MarketSnapshot struct {
	Market Market
	Yes    TokenQuote
	No     TokenQuote
}

// HasAsks indica si ambas patas tienen ask válido.
func (s MarketSnapshot) HasAsks() bool {
	return s.Yes.BestAsk.Valid() && s.No.BestAsk.Valid()
}

// SumAskCost devuelve el coste de comprar el set completo (YES ask + NO ask).
func (s MarketSnapshot) SumAskCost() float64 {
	return s.Yes.BestAsk.Price + s.No.BestAsk.Price
}

// MinAskSize devuelve la profundidad mínima entre ambas patas.
func (s MarketSnapshot) MinAskSize() float64 {
	if s.Yes.BestAsk.Size < s.No.BestAsk.Size {
		return s.Yes.BestAsk.Size
	}
	return s.No.BestAsk.Size
}
