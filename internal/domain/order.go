package domain

import "time"

// OrderStatus represents the lifecycle of one leg on the venue.
type OrderStatus string

const (
	OrderPending         OrderStatus = "PENDING"
	OrderSubmitted       OrderStatus = "SUBMITTED"
	OrderPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderFilled          OrderStatus = "FILLED"
	OrderCancelled       OrderStatus = "CANCELLED"
	OrderRejected        OrderStatus = "REJECTED"
	OrderTimedOut        OrderStatus = "TIMED_OUT"
)

// Terminal reports whether the status admits no further transitions.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderFilled, OrderCancelled, OrderRejected, OrderTimedOut:
		return true
	}
	return false
}

// Order is one leg of a complete-set trade.
type Order struct {
	ID            string // local UUID
	TradeSetID    string
	OpportunityID string
	MarketID      string
	TokenID       string
	Side          Side
	Price         float64 // requested limit price (the opportunity's recorded ask)
	Size          float64
	VenueOrderID  string // assigned by the venue once submitted
	Status        OrderStatus
	FilledSize    float64
	AvgFillPrice  float64
	SubmittedAt   time.Time
	TerminalAt    *time.Time
}

// HasFills reports whether any part of the leg executed.
func (o Order) HasFills() bool {
	return o.FilledSize > 0
}

// TradeSetStatus is the aggregate state of a two-leg trade.
type TradeSetStatus string

const (
	TradeSetOpen      TradeSetStatus = "OPEN"
	TradeSetCompleted TradeSetStatus = "COMPLETED"
	TradeSetHalted    TradeSetStatus = "HALTED"
	TradeSetAborted   TradeSetStatus = "ABORTED"
)

// TradeSet pairs the YES and NO legs of one executed opportunity.
type TradeSet struct {
	ID            string
	OpportunityID string
	MarketID      string
	Status        TradeSetStatus
	YesOrderID    string
	NoOrderID     string
	Size          float64 // matched set size (units), set on COMPLETED
	RealizedEdge  float64 // per-unit, from actual fills; set on COMPLETED
	CreatedAt     time.Time
	ClosedAt      *time.Time
}

// OrderHandle identifies a submitted order on the venue.
type OrderHandle struct {
	VenueOrderID string
	TokenID      string
}

// PlaceOrderRequest is the venue-agnostic order submission.
type PlaceOrderRequest struct {
	MarketID string
	TokenID  string
	Side     Side
	Price    float64
	Size     float64
}

// FillStatus is the current fill state of a submitted order, as reported
// by the venue when polled.
type FillStatus struct {
	Status       OrderStatus
	FilledSize   float64
	AvgFillPrice float64
}
