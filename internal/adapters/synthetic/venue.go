package synthetic

// venue.go — venue sintético, determinista por seed.
//
// Genera top-of-book para un conjunto fijo de mercados y simula el ciclo
// de vida de las órdenes sin tocar ninguna API. Con el mismo seed produce
// exactamente la misma secuencia de quotes y de outcomes de órdenes, así
// los tests y las demos son reproducibles.

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/alejandrodnm/polyarb/internal/domain"
	"github.com/google/uuid"
)

// Config controla el comportamiento del venue sintético.
type Config struct {
	Seed         int64
	TickInterval time.Duration // cadencia de updates por mercado
	FillLatency  time.Duration // tiempo hasta que una orden se resuelve
	FeeRate      float64

	// Probabilidades de generación y de ejecución.
	ArbProbability     float64 // tick con suma de asks < 1.00
	RejectProbability  float64
	PartialProbability float64 // el resto se llena completo
}

// DefaultConfig son valores razonables para demo: arbitrajes frecuentes,
// fallos ocasionales.
func DefaultConfig(seed int64) Config {
	return Config{
		Seed:               seed,
		TickInterval:       500 * time.Millisecond,
		FillLatency:        150 * time.Millisecond,
		FeeRate:            0.02,
		ArbProbability:     0.15,
		RejectProbability:  0.05,
		PartialProbability: 0.05,
	}
}

// syntheticOrder es el estado interno de una orden simulada. El outcome
// se decide en el submit; se hace visible cuando vence resolveAt, para que
// el poll loop del executor vea SUBMITTED antes del estado final.
type syntheticOrder struct {
	req       domain.PlaceOrderRequest
	outcome   domain.OrderStatus // FILLED, PARTIALLY_FILLED o CANCELLED tras un cancel
	fillSize  float64
	resolveAt time.Time
	cancelled bool
}

// Venue implementa ports.VenueAdapter sin red. Seguro para uso concurrente.
type Venue struct {
	cfg     Config
	markets []domain.Market

	mu     sync.Mutex
	rng    *rand.Rand
	orders map[string]*syntheticOrder
}

// New crea el venue con su universo fijo de mercados.
func New(cfg Config) *Venue {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 500 * time.Millisecond
	}
	if cfg.FillLatency <= 0 {
		cfg.FillLatency = 150 * time.Millisecond
	}
	return &Venue{
		cfg:     cfg,
		markets: defaultMarkets(cfg.FeeRate),
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		orders:  make(map[string]*syntheticOrder),
	}
}

func defaultMarkets(feeRate float64) []domain.Market {
	questions := []string{
		"Will BTC reach $100k this year?",
		"Will ETH flip BTC market cap this year?",
		"Will SpaceX land humans on Mars by 2030?",
	}
	out := make([]domain.Market, len(questions))
	for i, q := range questions {
		out[i] = domain.Market{
			ID:         fmt.Sprintf("synthetic-market-%d", i+1),
			Question:   q,
			YesTokenID: fmt.Sprintf("synthetic-yes-%d", i+1),
			NoTokenID:  fmt.Sprintf("synthetic-no-%d", i+1),
			FeeRate:    feeRate,
		}
	}
	return out
}

func (v *Venue) Name() string { return "synthetic" }

// StreamBookUpdates emite un par de updates (YES y NO) por mercado en cada
// tick. Una fracción ArbProbability de los ticks produce suma de asks por
// debajo de 1.00 menos fees; el resto queda por encima, sin edge.
func (v *Venue) StreamBookUpdates(ctx context.Context) (<-chan domain.BookUpdate, error) {
	ch := make(chan domain.BookUpdate, len(v.markets)*2)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(v.cfg.TickInterval)
		defer ticker.Stop()

		// Primer tick inmediato para que los tests no esperen el interval.
		for {
			for _, m := range v.markets {
				yes, no := v.nextQuotes()
				now := time.Now()
				updates := []domain.BookUpdate{
					{
						MarketID: m.ID, Question: m.Question,
						Side: domain.SideYes, TokenID: m.YesTokenID,
						BestBid: domain.Quote{Price: yes.Price - 0.02, Size: yes.Size},
						BestAsk: yes, FeeRate: m.FeeRate, Timestamp: now,
					},
					{
						MarketID: m.ID, Question: m.Question,
						Side: domain.SideNo, TokenID: m.NoTokenID,
						BestBid: domain.Quote{Price: no.Price - 0.02, Size: no.Size},
						BestAsk: no, FeeRate: m.FeeRate, Timestamp: now,
					},
				}
				for _, u := range updates {
					select {
					case ch <- u:
					case <-ctx.Done():
						return
					}
				}
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// nextQuotes genera los asks de ambas patas de un tick.
func (v *Venue) nextQuotes() (yes, no domain.Quote) {
	v.mu.Lock()
	defer v.mu.Unlock()

	mid := 0.3 + v.rng.Float64()*0.4 // YES mid en [0.30, 0.70)
	var sum float64
	if v.rng.Float64() < v.cfg.ArbProbability {
		// Suma bien por debajo de 1.00: edge positivo incluso tras fees.
		sum = 0.93 + v.rng.Float64()*0.03
	} else {
		sum = 1.005 + v.rng.Float64()*0.03
	}
	yesAsk := clampPrice(mid * sum)
	noAsk := clampPrice(sum - yesAsk)

	yes = domain.Quote{Price: yesAsk, Size: float64(50 + v.rng.Intn(450))}
	no = domain.Quote{Price: noAsk, Size: float64(50 + v.rng.Intn(450))}
	return yes, no
}

func clampPrice(p float64) float64 {
	if p < 0.01 {
		return 0.01
	}
	if p > 0.99 {
		return 0.99
	}
	return p
}

// PlaceOrder decide el outcome en el submit pero lo hace visible tras
// FillLatency, de forma que PollFill devuelve SUBMITTED mientras tanto.
func (v *Venue) PlaceOrder(ctx context.Context, req domain.PlaceOrderRequest) (domain.OrderHandle, error) {
	if err := ctx.Err(); err != nil {
		return domain.OrderHandle{}, fmt.Errorf("synthetic.PlaceOrder: %w: %w", domain.ErrConnection, err)
	}
	if req.Size <= 0 || req.Price <= 0 || req.Price >= 1 {
		return domain.OrderHandle{}, fmt.Errorf("synthetic.PlaceOrder: invalid order %+v: %w", req, domain.ErrRejected)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	roll := v.rng.Float64()
	if roll < v.cfg.RejectProbability {
		return domain.OrderHandle{}, fmt.Errorf("synthetic.PlaceOrder: venue rejected %s: %w", req.TokenID, domain.ErrRejected)
	}

	o := &syntheticOrder{
		req:       req,
		outcome:   domain.OrderFilled,
		fillSize:  req.Size,
		resolveAt: time.Now().Add(v.cfg.FillLatency),
	}
	if roll < v.cfg.RejectProbability+v.cfg.PartialProbability {
		o.outcome = domain.OrderPartiallyFilled
		o.fillSize = req.Size * (0.3 + v.rng.Float64()*0.4)
	}

	handle := domain.OrderHandle{
		VenueOrderID: "synthetic-" + uuid.NewString()[:8],
		TokenID:      req.TokenID,
	}
	v.orders[handle.VenueOrderID] = o
	return handle, nil
}

// CancelOrder congela la orden donde esté. Si ya se resolvió devuelve
// ErrAlreadyTerminal y el caller debe re-pollear el estado final.
func (v *Venue) CancelOrder(ctx context.Context, handle domain.OrderHandle) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	o, ok := v.orders[handle.VenueOrderID]
	if !ok {
		return fmt.Errorf("synthetic.CancelOrder: unknown order %s: %w", handle.VenueOrderID, domain.ErrRejected)
	}
	if o.cancelled || !time.Now().Before(o.resolveAt) {
		return fmt.Errorf("synthetic.CancelOrder: order %s: %w", handle.VenueOrderID, domain.ErrAlreadyTerminal)
	}
	o.cancelled = true
	if o.outcome != domain.OrderPartiallyFilled {
		o.fillSize = 0 // el parcial conserva lo ya ejecutado
	}
	o.outcome = domain.OrderCancelled
	return nil
}

// PollFill devuelve el estado actual: SUBMITTED hasta resolveAt, después
// el outcome decidido en el submit.
func (v *Venue) PollFill(ctx context.Context, handle domain.OrderHandle) (domain.FillStatus, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	o, ok := v.orders[handle.VenueOrderID]
	if !ok {
		return domain.FillStatus{}, fmt.Errorf("synthetic.PollFill: unknown order %s: %w", handle.VenueOrderID, domain.ErrRejected)
	}
	if !o.cancelled && time.Now().Before(o.resolveAt) {
		return domain.FillStatus{Status: domain.OrderSubmitted}, nil
	}
	st := domain.FillStatus{
		Status:     o.outcome,
		FilledSize: o.fillSize,
	}
	if o.fillSize > 0 {
		st.AvgFillPrice = o.req.Price
	}
	return st, nil
}
