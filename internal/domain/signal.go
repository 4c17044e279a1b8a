package domain

import "time"

// SignalDecision clasifica el resultado de evaluar un snapshot de mercado.
type SignalDecision string

const (
	DecisionTrade        SignalDecision = "TRADE"
	DecisionSkipNoQuotes SignalDecision = "SKIP_NO_QUOTES"
	DecisionSkipStale    SignalDecision = "SKIP_STALE"
	DecisionSkipEdge     SignalDecision = "SKIP_INSUFFICIENT_EDGE"
	DecisionSkipDepth    SignalDecision = "SKIP_INSUFFICIENT_DEPTH"
	DecisionSkipCooldown SignalDecision = "SKIP_IN_COOLDOWN"
)

// Signal es el resultado de una evaluación del SignalEngine.
// Siempre lleva decision+reason para el audit trail; Opportunity solo
// cuando la decisión es TRADE.
type Signal struct {
	MarketID    string
	Decision    SignalDecision
	Reason      string
	Opportunity *Opportunity
	EvaluatedAt time.Time
}

// Tradeable indica si la señal debe ejecutarse.
func (s Signal) Tradeable() bool {
	return s.Decision == DecisionTrade && s.Opportunity != nil
}

// Opportunity es una oportunidad de arbitraje de set completo.
// Inmutable una vez creada: lleva los precios y tamaños exactos usados,
// de forma que el edge es reproducible desde el registro sin recomputar
// estado vivo que puede haber cambiado.
type Opportunity struct {
	ID         string
	MarketID   string
	YesTokenID string
	NoTokenID  string
	YesAsk     Quote
	NoAsk      Quote
	SumCost    float64 // YesAsk.Price + NoAsk.Price
	Fees       float64 // SumCost * feeRate
	Edge       float64 // 1.00 - SumCost - Fees - costBuffer
	DetectedAt time.Time
}
