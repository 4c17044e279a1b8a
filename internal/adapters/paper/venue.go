package paper

// venue.go — decorador de paper trading.
//
// Delega el market data en el venue real y simula las operaciones de
// órdenes: toda orden se llena entera al precio pedido, al instante.
// Así el pipeline completo (señal → executor → ledger) corre contra
// quotes de verdad sin arriesgar capital ni necesitar credenciales de
// trading.

import (
	"context"
	"fmt"
	"sync"

	"github.com/alejandrodnm/polyarb/internal/domain"
	"github.com/alejandrodnm/polyarb/internal/ports"
	"github.com/google/uuid"
)

// Venue envuelve un VenueAdapter real. Seguro para uso concurrente.
type Venue struct {
	real ports.VenueAdapter

	mu     sync.Mutex
	orders map[string]domain.FillStatus
}

// Wrap crea el decorador sobre el venue dado.
func Wrap(real ports.VenueAdapter) *Venue {
	return &Venue{
		real:   real,
		orders: make(map[string]domain.FillStatus),
	}
}

func (v *Venue) Name() string { return v.real.Name() + "-paper" }

// StreamBookUpdates delega en el venue real: el paper mode opera sobre
// quotes de verdad.
func (v *Venue) StreamBookUpdates(ctx context.Context) (<-chan domain.BookUpdate, error) {
	return v.real.StreamBookUpdates(ctx)
}

// PlaceOrder simula un fill completo inmediato al precio pedido, igual
// que asumir que el ask congelado en la señal sigue disponible.
func (v *Venue) PlaceOrder(ctx context.Context, req domain.PlaceOrderRequest) (domain.OrderHandle, error) {
	if req.Size <= 0 || req.Price <= 0 || req.Price >= 1 {
		return domain.OrderHandle{}, fmt.Errorf("paper.PlaceOrder: invalid order %+v: %w", req, domain.ErrRejected)
	}

	handle := domain.OrderHandle{
		VenueOrderID: "paper-" + uuid.NewString()[:8],
		TokenID:      req.TokenID,
	}
	v.mu.Lock()
	v.orders[handle.VenueOrderID] = domain.FillStatus{
		Status:       domain.OrderFilled,
		FilledSize:   req.Size,
		AvgFillPrice: req.Price,
	}
	v.mu.Unlock()
	return handle, nil
}

// CancelOrder siempre devuelve ErrAlreadyTerminal: las órdenes paper se
// llenan en el submit.
func (v *Venue) CancelOrder(ctx context.Context, handle domain.OrderHandle) error {
	v.mu.Lock()
	_, ok := v.orders[handle.VenueOrderID]
	v.mu.Unlock()
	if !ok {
		return fmt.Errorf("paper.CancelOrder: unknown order %s: %w", handle.VenueOrderID, domain.ErrRejected)
	}
	return fmt.Errorf("paper.CancelOrder: order %s: %w", handle.VenueOrderID, domain.ErrAlreadyTerminal)
}

// PollFill devuelve el fill simulado.
func (v *Venue) PollFill(ctx context.Context, handle domain.OrderHandle) (domain.FillStatus, error) {
	v.mu.Lock()
	st, ok := v.orders[handle.VenueOrderID]
	v.mu.Unlock()
	if !ok {
		return domain.FillStatus{}, fmt.Errorf("paper.PollFill: unknown order %s: %w", handle.VenueOrderID, domain.ErrRejected)
	}
	return st, nil
}
