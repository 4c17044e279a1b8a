package marketdata

// book.go — estado top-of-book por mercado.
//
// Cada BookUpdate reemplaza íntegramente el snapshot de su (market, side):
// el replacement no es conmutativo, así que los updates del mismo mercado
// deben aplicarse en orden de llegada (lo garantiza el orchestrator con un
// worker serializado por mercado). Apply+Snapshot de un mismo mercado son
// un paso lógico bajo su lock por-mercado.

import (
	"sync"
	"time"

	"github.com/alejandrodnm/polyarb/internal/domain"
)

// marketEntry es el estado mutable de un mercado, protegido por su propio lock.
type marketEntry struct {
	mu     sync.Mutex
	market domain.Market
	yes    domain.TokenQuote
	no     domain.TokenQuote
}

// Book mantiene la vista en memoria del top-of-book de todos los mercados
// observados. Los mercados se crean con la primera quote y nunca se borran.
type Book struct {
	mu        sync.RWMutex
	markets   map[string]*marketEntry
	staleness time.Duration
}

// NewBook crea un Book con el umbral de staleness dado.
func NewBook(staleness time.Duration) *Book {
	return &Book{
		markets:   make(map[string]*marketEntry),
		staleness: staleness,
	}
}

// Apply ingiere un update normalizado y reemplaza el snapshot de esa pata.
// Devuelve el market id afectado.
func (b *Book) Apply(u domain.BookUpdate) string {
	e := b.entry(u)

	e.mu.Lock()
	defer e.mu.Unlock()

	q := domain.TokenQuote{
		TokenID:   u.TokenID,
		BestBid:   u.BestBid,
		BestAsk:   u.BestAsk,
		UpdatedAt: u.Timestamp,
	}
	if u.Side == domain.SideYes {
		e.yes = q
		if e.market.YesTokenID == "" {
			e.market.YesTokenID = u.TokenID
		}
	} else {
		e.no = q
		if e.market.NoTokenID == "" {
			e.market.NoTokenID = u.TokenID
		}
	}
	if u.FeeRate > 0 {
		e.market.FeeRate = u.FeeRate
	}
	if u.Question != "" {
		e.market.Question = u.Question
	}
	return u.MarketID
}

// Snapshot devuelve una copia consistente de ambas patas del mercado.
// ok=false si el mercado no existe o si alguna pata nunca recibió quote o
// está más vieja que el umbral de staleness.
func (b *Book) Snapshot(marketID string, now time.Time) (domain.MarketSnapshot, bool) {
	b.mu.RLock()
	e, found := b.markets[marketID]
	b.mu.RUnlock()
	if !found {
		return domain.MarketSnapshot{}, false
	}

	e.mu.Lock()
	snap := domain.MarketSnapshot{Market: e.market, Yes: e.yes, No: e.no}
	e.mu.Unlock()

	if snap.Yes.Stale(now, b.staleness) || snap.No.Stale(now, b.staleness) {
		return snap, false
	}
	return snap, true
}

// MarkTraded registra el timestamp del último trade del mercado (cooldown).
func (b *Book) MarkTraded(marketID string, at time.Time) {
	b.mu.RLock()
	e, found := b.markets[marketID]
	b.mu.RUnlock()
	if !found {
		return
	}
	e.mu.Lock()
	e.market.LastTradeAt = at
	e.mu.Unlock()
}

// MarketCount devuelve cuántos mercados se están siguiendo.
func (b *Book) MarketCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.markets)
}

// entry devuelve la entrada del mercado, creándola si es la primera quote.
func (b *Book) entry(u domain.BookUpdate) *marketEntry {
	b.mu.RLock()
	e, found := b.markets[u.MarketID]
	b.mu.RUnlock()
	if found {
		return e
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if e, found = b.markets[u.MarketID]; found {
		return e
	}
	e = &marketEntry{
		market: domain.Market{
			ID:       u.MarketID,
			Question: u.Question,
			FeeRate:  u.FeeRate,
		},
	}
	b.markets[u.MarketID] = e
	return e
}
