package ports

import (
	"context"

	"github.com/alejandrodnm/polyarb/internal/domain"
)

// VenueAdapter normaliza market data y operaciones de órdenes de un venue
// concreto. El core solo depende de esta interfaz; los wire formats, la
// autenticación y la política de reconexión viven en cada implementación.
type VenueAdapter interface {
	// StreamBookUpdates devuelve el stream de actualizaciones top-of-book.
	// Es una secuencia infinita y no reiniciable: el adapter reconecta por
	// dentro y sigue alimentando el mismo canal. El canal se cierra solo
	// cuando ctx se cancela o el adapter muere de forma irrecuperable.
	StreamBookUpdates(ctx context.Context) (<-chan domain.BookUpdate, error)

	// PlaceOrder envía una orden limit BUY. Errores: domain.ErrRejected,
	// domain.ErrConnection (distinguibles con errors.Is).
	PlaceOrder(ctx context.Context, req domain.PlaceOrderRequest) (domain.OrderHandle, error)

	// CancelOrder cancela best-effort. domain.ErrAlreadyTerminal si la orden
	// ya alcanzó estado terminal (el caller debe re-pollear para el estado
	// final), domain.ErrConnection en fallos de transporte.
	CancelOrder(ctx context.Context, handle domain.OrderHandle) error

	// PollFill devuelve el estado de fill actual de una orden enviada.
	PollFill(ctx context.Context, handle domain.OrderHandle) (domain.FillStatus, error)

	// Name identifica el venue ("polymarket", "synthetic", ...).
	Name() string
}
