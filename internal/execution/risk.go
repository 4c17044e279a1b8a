package execution

// risk.go — kill switch and failure accounting.
//
// The RiskManager is the exclusive owner of the process-wide RiskState.
// Every transition is persisted to the ledger before the in-memory state
// changes (fail-closed): if the write fails the transition still counts
// as a failure, because a system that cannot record what happened must
// not keep trading as if nothing did.

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/polyarb/internal/domain"
	"github.com/alejandrodnm/polyarb/internal/ports"
)

// RiskConfig holds the kill-switch thresholds.
type RiskConfig struct {
	MaxConsecutiveFailures int
	// HaltOnPartialFill makes a single partial fill sufficient to trip the
	// switch, independent of the consecutive-failure threshold. Partial
	// fills always count toward the counter either way.
	HaltOnPartialFill bool
}

// RiskManager tracks consecutive failures and owns the halt flag.
type RiskManager struct {
	ledger ports.Ledger
	cfg    RiskConfig

	mu sync.Mutex
	st domain.RiskState
}

// NewRiskManager creates a RiskManager. Call Load before trading so a
// restart never silently resets the kill switch.
func NewRiskManager(ledger ports.Ledger, cfg RiskConfig) *RiskManager {
	if cfg.MaxConsecutiveFailures <= 0 {
		cfg.MaxConsecutiveFailures = 3
	}
	return &RiskManager{ledger: ledger, cfg: cfg}
}

// Load reconstructs the risk state from the ledger's risk events.
func (r *RiskManager) Load(ctx context.Context) error {
	st, err := r.ledger.LoadRiskState(ctx)
	if err != nil {
		return fmt.Errorf("risk.Load: %w", err)
	}
	r.mu.Lock()
	r.st = st
	r.mu.Unlock()

	if st.Halted {
		slog.Warn("risk state reloaded: trading is HALTED",
			"reason", st.HaltReason,
			"consecutive_failures", st.ConsecutiveFailures,
		)
	}
	return nil
}

// Refresh re-reads the persisted risk state so halt/resume commands
// issued by another process take effect without a restart. Safe to call
// while trading: every transition is persisted before the in-memory
// state changes, so the ledger is always at least as current as memory.
func (r *RiskManager) Refresh(ctx context.Context) error {
	st, err := r.ledger.LoadRiskState(ctx)
	if err != nil {
		return fmt.Errorf("risk.Refresh: %w", err)
	}

	r.mu.Lock()
	haltedChanged := st.Halted != r.st.Halted
	r.st = st
	r.mu.Unlock()

	if haltedChanged {
		if st.Halted {
			slog.Warn("halt picked up from ledger", "reason", st.HaltReason)
		} else {
			slog.Info("resume picked up from ledger")
		}
	}
	return nil
}

// IsHalted is the single read the Executor consults before opening a
// new tradeset. Halting never cancels in-flight work.
func (r *RiskManager) IsHalted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.Halted
}

// State returns a copy of the current risk state.
func (r *RiskManager) State() domain.RiskState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st
}

// ReportSuccess resets the consecutive-failure counter.
func (r *RiskManager) ReportSuccess() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.st.ConsecutiveFailures = 0
}

// ReportFailure persists the event, increments the counter and trips the
// kill switch when the threshold is reached. marketID may be empty for
// process-wide failures (disconnects).
func (r *RiskManager) ReportFailure(ctx context.Context, kind domain.RiskEventKind, marketID, detail string) {
	now := time.Now().UTC()

	if err := r.ledger.SaveRiskEvent(ctx, domain.RiskEvent{
		Kind:      kind,
		MarketID:  marketID,
		Detail:    detail,
		CreatedAt: now,
	}); err != nil {
		// Fail-closed: the failure still counts even if we could not
		// record it, and the persistence fault is loud in the logs.
		slog.Error("ledger write failed while recording risk event", "kind", kind, "err", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.st.ConsecutiveFailures++
	r.st.LastFailureAt = now

	slog.Warn("risk failure reported",
		"kind", kind,
		"market", marketID,
		"consecutive", r.st.ConsecutiveFailures,
		"max", r.cfg.MaxConsecutiveFailures,
	)

	trip := r.st.ConsecutiveFailures >= r.cfg.MaxConsecutiveFailures
	if kind == domain.RiskPartialFill && r.cfg.HaltOnPartialFill {
		trip = true
	}
	if trip && !r.st.Halted {
		r.tripLocked(ctx, fmt.Sprintf("%d consecutive failures, last: %s", r.st.ConsecutiveFailures, kind))
	}
}

// ManualHalt sets the halt flag from an operator command.
func (r *RiskManager) ManualHalt(ctx context.Context, reason string) error {
	if err := r.ledger.SaveRiskEvent(ctx, domain.RiskEvent{
		Kind:      domain.RiskManualHalt,
		Detail:    reason,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("risk.ManualHalt: persist: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.st.Halted = true
	r.st.HaltReason = reason
	slog.Warn("trading halted manually", "reason", reason)
	return nil
}

// Resume clears the halt flag and resets the failure counter.
func (r *RiskManager) Resume(ctx context.Context) error {
	if err := r.ledger.SaveRiskEvent(ctx, domain.RiskEvent{
		Kind:      domain.RiskResume,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("risk.Resume: persist: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.st.Halted = false
	r.st.HaltReason = ""
	r.st.ConsecutiveFailures = 0
	slog.Info("trading resumed")
	return nil
}

// tripLocked trips the kill switch. Caller holds r.mu.
func (r *RiskManager) tripLocked(ctx context.Context, reason string) {
	r.st.Halted = true
	r.st.HaltReason = reason

	slog.Error("KILL SWITCH TRIPPED — new tradesets blocked until manual resume", "reason", reason)

	if err := r.ledger.SaveRiskEvent(ctx, domain.RiskEvent{
		Kind:      domain.RiskKillSwitch,
		Detail:    reason,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		slog.Error("ledger write failed while recording kill switch", "err", err)
	}
}
