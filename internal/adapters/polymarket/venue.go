package polymarket

// venue.go — implementación de ports.VenueAdapter contra el CLOB real.

import (
	"context"
	"fmt"
	"sync"

	"github.com/alejandrodnm/polyarb/internal/domain"
)

// Config configura el venue de Polymarket.
type Config struct {
	CLOBBase string // "" = producción
	WSURL    string // "" = producción

	// PrivateKeyHex habilita trading (L1/L2 auth). Vacío = solo market
	// data, suficiente bajo el decorador de paper trading.
	PrivateKeyHex string

	// FeeRateDefault se aplica a mercados que no publican fee propia.
	FeeRateDefault float64

	// MaxMarkets limita cuántos mercados se suscriben. <= 0 = todos.
	MaxMarkets int

	// OnDisconnect se invoca en cada caída del stream.
	OnDisconnect func(err error)
}

// Venue implementa ports.VenueAdapter. Seguro para uso concurrente.
type Venue struct {
	cfg    Config
	client *Client
	auth   *AuthClient // nil en modo solo-datos

	mu      sync.RWMutex
	tokens  map[string]tokenInfo
	negRisk map[string]bool // cache por token
}

// New crea el venue. Con PrivateKeyHex vacío las operaciones de órdenes
// devuelven error; el stream funciona igual.
func New(cfg Config) (*Venue, error) {
	if cfg.WSURL == "" {
		cfg.WSURL = defaultWSURL
	}
	v := &Venue{
		cfg:     cfg,
		client:  NewClient(cfg.CLOBBase),
		negRisk: make(map[string]bool),
	}
	if cfg.PrivateKeyHex != "" {
		auth, err := NewAuthClient(cfg.CLOBBase, cfg.PrivateKeyHex)
		if err != nil {
			return nil, fmt.Errorf("polymarket.New: %w", err)
		}
		v.auth = auth
		v.client = auth.Client
	}
	return v, nil
}

func (v *Venue) Name() string { return "polymarket" }

// StreamBookUpdates descubre los mercados activos, construye el índice
// token → mercado y arranca el stream WS. El canal se cierra solo cuando
// ctx se cancela.
func (v *Venue) StreamBookUpdates(ctx context.Context) (<-chan domain.BookUpdate, error) {
	markets, err := v.client.FetchActiveMarkets(ctx, v.cfg.MaxMarkets)
	if err != nil {
		return nil, fmt.Errorf("polymarket.StreamBookUpdates: %w", err)
	}
	if len(markets) == 0 {
		return nil, fmt.Errorf("polymarket.StreamBookUpdates: no active binary markets")
	}

	idx := indexTokens(markets, v.cfg.FeeRateDefault)
	v.mu.Lock()
	v.tokens = idx
	v.mu.Unlock()

	tokenIDs := make([]string, 0, len(idx))
	for id := range idx {
		tokenIDs = append(tokenIDs, id)
	}

	ch := make(chan domain.BookUpdate, 256)
	go v.streamLoop(ctx, ch, tokenIDs)
	return ch, nil
}
