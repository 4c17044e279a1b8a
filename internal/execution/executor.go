package execution

// executor.go — two-leg execution state machine.
//
// There is no cross-leg transaction at the venue: buying YES and NO is two
// independent orders, and the only protection against single-leg exposure
// is the compensating action — once one leg reaches a terminal state, any
// leg that is not terminal gets cancelled, and a set that ends with fills
// on one side only is a PARTIAL_FILL risk event, always reported to the
// RiskManager regardless of configuration.
//
// Per-market serialization: a market with an in-flight tradeset skips new
// opportunities (checked and set atomically with tradeset creation), so at
// most one tradeset is ever OPEN per market.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/polyarb/internal/domain"
	"github.com/alejandrodnm/polyarb/internal/ports"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Config holds the execution parameters.
type Config struct {
	OrderSize    float64       // target size per leg, capped by available depth
	Timeout      time.Duration // shared fill deadline for both legs
	PollInterval time.Duration
}

// Executor consumes opportunities and drives both legs to a safe
// terminal state.
type Executor struct {
	venue  ports.VenueAdapter
	ledger ports.Ledger
	risk   *RiskManager
	cfg    Config

	mu       sync.Mutex
	inFlight map[string]struct{}

	// onSettled is invoked once per tradeset attempt after it reaches a
	// terminal state; the orchestrator wires it to the cooldown marker.
	onSettled func(marketID string, at time.Time)
}

// NewExecutor creates an Executor.
func NewExecutor(venue ports.VenueAdapter, ledger ports.Ledger, risk *RiskManager, cfg Config) *Executor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 250 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Executor{
		venue:    venue,
		ledger:   ledger,
		risk:     risk,
		cfg:      cfg,
		inFlight: make(map[string]struct{}),
	}
}

// OnSettled registers the settle hook. Not safe to call after Run starts.
func (e *Executor) OnSettled(fn func(marketID string, at time.Time)) {
	e.onSettled = fn
}

// Execute runs one opportunity through the state machine. Halted risk
// state and in-flight markets are skipped silently; venue failures are
// routed to the RiskManager, not returned.
func (e *Executor) Execute(ctx context.Context, sig domain.Signal) {
	if !sig.Tradeable() {
		return
	}
	opp := *sig.Opportunity

	if e.risk.IsHalted() {
		slog.Debug("skipping opportunity: trading halted", "market", opp.MarketID)
		return
	}
	if !e.tryAcquire(opp.MarketID) {
		slog.Debug("skipping opportunity: tradeset in flight", "market", opp.MarketID)
		return
	}
	defer e.release(opp.MarketID)
	defer func() {
		if e.onSettled != nil {
			e.onSettled(opp.MarketID, time.Now().UTC())
		}
	}()

	// The opportunity is persisted before any order leaves the process:
	// the edge must be reproducible from the record alone.
	if err := e.ledger.SaveSignal(ctx, sig); err != nil {
		e.risk.ReportFailure(ctx, domain.RiskLedger, opp.MarketID,
			fmt.Sprintf("persist opportunity: %v", err))
		return
	}

	size := e.cfg.OrderSize
	if opp.YesAsk.Size < size {
		size = opp.YesAsk.Size
	}
	if opp.NoAsk.Size < size {
		size = opp.NoAsk.Size
	}

	now := time.Now().UTC()
	ts := domain.TradeSet{
		ID:            uuid.NewString(),
		OpportunityID: opp.ID,
		MarketID:      opp.MarketID,
		Status:        domain.TradeSetOpen,
		CreatedAt:     now,
	}
	yes := newLeg(ts, opp, domain.SideYes, size)
	no := newLeg(ts, opp, domain.SideNo, size)
	ts.YesOrderID = yes.ID
	ts.NoOrderID = no.ID

	if err := e.persistOpen(ctx, ts, yes, no); err != nil {
		e.risk.ReportFailure(ctx, domain.RiskLedger, opp.MarketID,
			fmt.Sprintf("persist tradeset: %v", err))
		return
	}

	slog.Info("tradeset open",
		"market", opp.MarketID,
		"tradeset", ts.ID,
		"edge", opp.Edge,
		"size", size,
		"yes_ask", opp.YesAsk.Price,
		"no_ask", opp.NoAsk.Price,
	)

	// Both legs go out concurrently to minimize the single-leg window.
	var g errgroup.Group
	var yesErr, noErr error
	g.Go(func() error { yesErr = e.submitLeg(ctx, yes); return nil })
	g.Go(func() error { noErr = e.submitLeg(ctx, no); return nil })
	_ = g.Wait()

	if yesErr != nil || noErr != nil {
		e.abortAfterSubmitFailure(ctx, &ts, yes, no, yesErr, noErr)
		return
	}

	e.monitor(ctx, &ts, yes, no, opp)
}

// InFlight reports whether the market currently has an open tradeset.
func (e *Executor) InFlight(marketID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.inFlight[marketID]
	return ok
}

// --- state machine phases ---

// submitLeg places one leg and records the transition. A non-nil return
// means the leg is already terminal (rejected / connection failure).
func (e *Executor) submitLeg(ctx context.Context, o *domain.Order) error {
	handle, err := e.venue.PlaceOrder(ctx, domain.PlaceOrderRequest{
		MarketID: o.MarketID,
		TokenID:  o.TokenID,
		Side:     o.Side,
		Price:    o.Price,
		Size:     o.Size,
	})
	now := time.Now().UTC()

	if err != nil {
		o.Status = domain.OrderRejected
		o.TerminalAt = &now
		if perr := e.ledger.UpdateOrderFill(ctx, o.ID, o.Status, 0, 0, &now); perr != nil {
			slog.Error("ledger write failed for rejected leg", "order", o.ID, "err", perr)
		}
		return err
	}

	o.VenueOrderID = handle.VenueOrderID
	o.Status = domain.OrderSubmitted
	o.SubmittedAt = now
	if perr := e.ledger.MarkOrderSubmitted(ctx, o.ID, handle.VenueOrderID, now); perr != nil {
		// Fail-closed: a live order we could not record gets cancelled.
		e.cancelLeg(ctx, o)
		o.Status = domain.OrderCancelled
		o.TerminalAt = &now
		return fmt.Errorf("persist submit: %w", perr)
	}
	return nil
}

// abortAfterSubmitFailure handles rejection (or worse) at submit time:
// the surviving leg, if any, is cancelled and the set closed.
func (e *Executor) abortAfterSubmitFailure(ctx context.Context, ts *domain.TradeSet, yes, no *domain.Order, yesErr, noErr error) {
	for _, o := range []*domain.Order{yes, no} {
		if !o.Status.Terminal() {
			e.settleLeg(ctx, o, domain.OrderCancelled)
		}
	}

	// A leg that filled before we could cancel it is single-leg exposure.
	if yes.HasFills() != no.HasFills() {
		e.closeSet(ctx, ts, domain.TradeSetHalted, 0, 0)
		e.risk.ReportFailure(ctx, domain.RiskPartialFill, ts.MarketID,
			fmt.Sprintf("leg filled while counterpart failed at submit (yes=%.2f no=%.2f)", yes.FilledSize, no.FilledSize))
		return
	}

	kind := domain.RiskRejection
	detail := fmt.Sprintf("submit failed: yes=%v no=%v", yesErr, noErr)
	if isConn(yesErr) || isConn(noErr) {
		kind = domain.RiskDisconnect
	}
	if isLedger(yesErr) || isLedger(noErr) {
		kind = domain.RiskLedger
	}
	e.closeSet(ctx, ts, domain.TradeSetAborted, 0, 0)
	e.risk.ReportFailure(ctx, kind, ts.MarketID, detail)
}

// monitor polls both legs until both are terminal or the shared deadline
// elapses, then settles and classifies the outcome.
func (e *Executor) monitor(ctx context.Context, ts *domain.TradeSet, yes, no *domain.Order, opp domain.Opportunity) {
	deadline := time.Now().Add(e.cfg.Timeout)
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		e.pollLeg(ctx, yes)
		e.pollLeg(ctx, no)

		bothTerminal := yes.Status.Terminal() && no.Status.Terminal()
		oneRejected := yes.Status == domain.OrderRejected || no.Status == domain.OrderRejected
		if bothTerminal || oneRejected || time.Now().After(deadline) {
			break
		}

		select {
		case <-ctx.Done():
			// Shutdown mid-flight: drive both legs to a safe state anyway.
			e.settle(context.WithoutCancel(ctx), ts, yes, no, opp)
			return
		case <-ticker.C:
		}
	}

	e.settle(ctx, ts, yes, no, opp)
}

// settle cancels anything non-terminal, classifies the outcome and
// reports it. This is the only exit from the monitoring phase: no set
// leaves here with a leg still pending.
func (e *Executor) settle(ctx context.Context, ts *domain.TradeSet, yes, no *domain.Order, opp domain.Opportunity) {
	// Legs cancelled because the counterpart went terminal are CANCELLED;
	// legs that simply ran out the deadline are TIMED_OUT.
	fallback := domain.OrderTimedOut
	if yes.Status == domain.OrderRejected || no.Status == domain.OrderRejected {
		fallback = domain.OrderCancelled
	}
	for _, o := range []*domain.Order{yes, no} {
		if !o.Status.Terminal() {
			e.settleLeg(ctx, o, fallback)
		}
	}

	yesFull := yes.Status == domain.OrderFilled
	noFull := no.Status == domain.OrderFilled

	switch {
	case yesFull && noFull:
		size := yes.FilledSize
		if no.FilledSize < size {
			size = no.FilledSize
		}
		realized := realizedEdge(yes, no, opp)
		e.closeSet(ctx, ts, domain.TradeSetCompleted, size, realized)
		e.risk.ReportSuccess()
		slog.Info("tradeset completed",
			"market", ts.MarketID,
			"tradeset", ts.ID,
			"size", size,
			"realized_edge", realized,
		)

	case yes.HasFills() || no.HasFills():
		e.closeSet(ctx, ts, domain.TradeSetHalted, 0, 0)
		e.risk.ReportFailure(ctx, domain.RiskPartialFill, ts.MarketID,
			fmt.Sprintf("single-leg exposure: yes %s %.2f, no %s %.2f",
				yes.Status, yes.FilledSize, no.Status, no.FilledSize))

	default:
		kind := domain.RiskTimeout
		if yes.Status == domain.OrderRejected || no.Status == domain.OrderRejected {
			kind = domain.RiskRejection
		}
		e.closeSet(ctx, ts, domain.TradeSetAborted, 0, 0)
		e.risk.ReportFailure(ctx, kind, ts.MarketID,
			fmt.Sprintf("no fills before deadline: yes %s, no %s", yes.Status, no.Status))
	}
}

// pollLeg refreshes one leg's fill state and persists status changes.
func (e *Executor) pollLeg(ctx context.Context, o *domain.Order) {
	if o.Status.Terminal() {
		return
	}

	fill, err := e.venue.PollFill(ctx, domain.OrderHandle{VenueOrderID: o.VenueOrderID, TokenID: o.TokenID})
	if err != nil {
		// Transient poll errors resolve on the next tick or at the deadline.
		slog.Debug("poll fill failed", "order", o.ID, "err", err)
		return
	}

	changed := fill.Status != o.Status || fill.FilledSize != o.FilledSize
	o.FilledSize = fill.FilledSize
	o.AvgFillPrice = fill.AvgFillPrice
	o.Status = fill.Status
	if !changed {
		return
	}

	var terminalAt *time.Time
	if o.Status.Terminal() {
		now := time.Now().UTC()
		o.TerminalAt = &now
		terminalAt = &now
	}
	if err := e.ledger.UpdateOrderFill(ctx, o.ID, o.Status, o.FilledSize, o.AvgFillPrice, terminalAt); err != nil {
		slog.Error("ledger write failed for leg update", "order", o.ID, "err", err)
	}
}

// settleLeg cancels a non-terminal leg best-effort and fixes its final
// status. If the venue says the leg was already terminal, the poll result
// wins — a cancel that lost the race to a fill is a fill.
func (e *Executor) settleLeg(ctx context.Context, o *domain.Order, fallback domain.OrderStatus) {
	e.cancelLeg(ctx, o)

	// One last poll to capture fills that landed before the cancel.
	if o.VenueOrderID != "" {
		if fill, err := e.venue.PollFill(ctx, domain.OrderHandle{VenueOrderID: o.VenueOrderID, TokenID: o.TokenID}); err == nil {
			o.FilledSize = fill.FilledSize
			o.AvgFillPrice = fill.AvgFillPrice
			if fill.Status.Terminal() {
				o.Status = fill.Status
			}
		}
	}

	if !o.Status.Terminal() {
		o.Status = fallback
		if o.HasFills() {
			o.Status = domain.OrderCancelled
		}
	}

	now := time.Now().UTC()
	o.TerminalAt = &now
	if err := e.ledger.UpdateOrderFill(ctx, o.ID, o.Status, o.FilledSize, o.AvgFillPrice, &now); err != nil {
		slog.Error("ledger write failed for settled leg", "order", o.ID, "err", err)
	}
}

// cancelLeg issues the cancel request, tolerating already-terminal orders.
func (e *Executor) cancelLeg(ctx context.Context, o *domain.Order) {
	if o.VenueOrderID == "" {
		return
	}
	err := e.venue.CancelOrder(ctx, domain.OrderHandle{VenueOrderID: o.VenueOrderID, TokenID: o.TokenID})
	if err != nil && !errors.Is(err, domain.ErrAlreadyTerminal) {
		slog.Warn("cancel failed", "order", o.ID, "venue_order", o.VenueOrderID, "err", err)
	}
}

// closeSet persists the tradeset's terminal status.
func (e *Executor) closeSet(ctx context.Context, ts *domain.TradeSet, status domain.TradeSetStatus, size, realized float64) {
	now := time.Now().UTC()
	ts.Status = status
	ts.Size = size
	ts.RealizedEdge = realized
	ts.ClosedAt = &now
	if err := e.ledger.UpdateTradeSet(ctx, ts.ID, status, size, realized, &now); err != nil {
		slog.Error("ledger write failed for tradeset close", "tradeset", ts.ID, "err", err)
		e.risk.ReportFailure(ctx, domain.RiskLedger, ts.MarketID,
			fmt.Sprintf("persist tradeset close: %v", err))
	}
}

// persistOpen writes the open tradeset and its two pending legs.
func (e *Executor) persistOpen(ctx context.Context, ts domain.TradeSet, yes, no *domain.Order) error {
	if err := e.ledger.CreateTradeSet(ctx, ts); err != nil {
		return err
	}
	if err := e.ledger.SaveOrder(ctx, *yes); err != nil {
		return err
	}
	return e.ledger.SaveOrder(ctx, *no)
}

// tryAcquire marca el mercado como in-flight. Check-and-set atómico:
// dos tradesets nunca pueden abrirse a la vez sobre el mismo mercado.
func (e *Executor) tryAcquire(marketID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.inFlight[marketID]; busy {
		return false
	}
	e.inFlight[marketID] = struct{}{}
	return true
}

func (e *Executor) release(marketID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inFlight, marketID)
}

// --- helpers ---

func newLeg(ts domain.TradeSet, opp domain.Opportunity, side domain.Side, size float64) *domain.Order {
	price := opp.YesAsk.Price
	tokenID := opp.YesTokenID
	if side == domain.SideNo {
		price = opp.NoAsk.Price
		tokenID = opp.NoTokenID
	}
	return &domain.Order{
		ID:            uuid.NewString(),
		TradeSetID:    ts.ID,
		OpportunityID: opp.ID,
		MarketID:      opp.MarketID,
		TokenID:       tokenID,
		Side:          side,
		Price:         price,
		Size:          size,
		Status:        domain.OrderPending,
	}
}

// realizedEdge computes the per-unit edge from actual average fill prices,
// applying the fee rate the opportunity was detected with.
func realizedEdge(yes, no *domain.Order, opp domain.Opportunity) float64 {
	cost := yes.AvgFillPrice + no.AvgFillPrice
	feeRate := 0.0
	if opp.SumCost > 0 {
		feeRate = opp.Fees / opp.SumCost
	}
	return 1.0 - cost - cost*feeRate
}

func isConn(err error) bool {
	return err != nil && errors.Is(err, domain.ErrConnection)
}

func isLedger(err error) bool {
	return err != nil && !errors.Is(err, domain.ErrConnection) && !errors.Is(err, domain.ErrRejected)
}
