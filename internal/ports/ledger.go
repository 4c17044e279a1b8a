package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/polyarb/internal/domain"
)

// Ledger es la persistencia append-only del sistema: señales, órdenes,
// tradesets y eventos de riesgo. Es la única fuente de verdad para
// reporting y reconciliación.
//
// Garantía fail-closed: cada transición de estado se persiste ANTES de
// darse por completada en memoria. Si un write falla, la transición
// falla y el Executor lo reporta como fallo al RiskManager.
type Ledger interface {
	// SaveSignal persiste una evaluación (TRADE o skip con su razón).
	// Las filas de señal son inmutables tras el insert.
	SaveSignal(ctx context.Context, sig domain.Signal) error

	// CreateTradeSet persiste un tradeset recién abierto.
	CreateTradeSet(ctx context.Context, ts domain.TradeSet) error

	// UpdateTradeSet actualiza in-place los campos de estado de un tradeset.
	UpdateTradeSet(ctx context.Context, id string, status domain.TradeSetStatus, size, realizedEdge float64, closedAt *time.Time) error

	// SaveOrder persiste una pata recién creada.
	SaveOrder(ctx context.Context, o domain.Order) error

	// MarkOrderSubmitted registra el venue order id tras el submit.
	MarkOrderSubmitted(ctx context.Context, id, venueOrderID string, submittedAt time.Time) error

	// UpdateOrderFill actualiza in-place el estado de fill de una pata.
	UpdateOrderFill(ctx context.Context, id string, status domain.OrderStatus, filledSize, avgFillPrice float64, terminalAt *time.Time) error

	// SaveRiskEvent persiste un evento de riesgo. Inmutable tras el insert.
	SaveRiskEvent(ctx context.Context, ev domain.RiskEvent) error

	// RecentTradeSets devuelve los últimos n tradesets, más reciente primero.
	RecentTradeSets(ctx context.Context, n int) ([]domain.TradeSet, error)

	// RecentRiskEvents devuelve los últimos n eventos, más reciente primero.
	RecentRiskEvents(ctx context.Context, n int) ([]domain.RiskEvent, error)

	// OrdersByTradeSet devuelve las patas de un tradeset.
	OrdersByTradeSet(ctx context.Context, tradeSetID string) ([]domain.Order, error)

	// SignalSummary agrega las señales persistidas.
	SignalSummary(ctx context.Context) (domain.SignalSummary, error)

	// TradeSetSummary agrega los tradesets persistidos.
	TradeSetSummary(ctx context.Context) (domain.TradeSetSummary, error)

	// LoadRiskState reconstruye el RiskState desde los eventos persistidos:
	// el flag halted desde el último KILL_SWITCH/MANUAL_HALT/RESUME y el
	// contador desde los fallos posteriores al último reset. Un crash nunca
	// resetea el kill switch en silencio.
	LoadRiskState(ctx context.Context) (domain.RiskState, error)

	// Close cierra la conexión limpiamente.
	Close() error
}
