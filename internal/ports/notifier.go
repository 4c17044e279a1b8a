package ports

import (
	"context"

	"github.com/alejandrodnm/polyarb/internal/domain"
)

// StatusView es lo que muestra el comando `status`.
type StatusView struct {
	Venue     string
	PaperMode bool
	Risk      domain.RiskState
	TradeSets domain.TradeSetSummary
	Signals   domain.SignalSummary
}

// ReportView es lo que muestra el comando `report`.
type ReportView struct {
	Signals    domain.SignalSummary
	TradeSets  domain.TradeSetSummary
	Recent     []domain.TradeSet
	RiskEvents []domain.RiskEvent
}

// Notifier presenta el estado operacional al usuario.
type Notifier interface {
	ShowStatus(ctx context.Context, v StatusView) error
	ShowReport(ctx context.Context, v ReportView) error
}
