package domain

import "time"

// RiskEventKind classifies risk events for the audit trail.
type RiskEventKind string

const (
	RiskPartialFill RiskEventKind = "PARTIAL_FILL"
	RiskRejection   RiskEventKind = "REJECTION"
	RiskTimeout     RiskEventKind = "TIMEOUT"
	RiskDisconnect  RiskEventKind = "DISCONNECT"
	RiskLedger      RiskEventKind = "LEDGER_FAILURE"
	RiskKillSwitch  RiskEventKind = "KILL_SWITCH_TRIGGERED"
	RiskManualHalt  RiskEventKind = "MANUAL_HALT"
	RiskResume      RiskEventKind = "RESUME"
)

// Failure reports whether the kind counts toward the kill-switch counter.
func (k RiskEventKind) Failure() bool {
	switch k {
	case RiskPartialFill, RiskRejection, RiskTimeout, RiskDisconnect, RiskLedger:
		return true
	}
	return false
}

// RiskEvent is an append-only audit record. Never mutated after insert.
type RiskEvent struct {
	ID        int64
	Kind      RiskEventKind
	MarketID  string // optional
	Detail    string
	CreatedAt time.Time
}

// RiskState is the process-wide trading gate. Owned exclusively by the
// RiskManager; everyone else reads it through copies.
type RiskState struct {
	Halted              bool
	HaltReason          string
	ConsecutiveFailures int
	LastFailureAt       time.Time
}
