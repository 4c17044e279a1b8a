package strategy

// signal.go — detección de arbitraje de set completo.
//
// Un arb de set completo existe cuando YES_ask + NO_ask + fees < $1.00:
// comprar ambas patas garantiza el payout de $1.00 a resolución. Evaluate
// es una función pura del snapshot: mismo snapshot + mismo now ⇒ misma
// señal, y la Opportunity lleva los precios exactos usados para que el
// edge sea reproducible desde el registro.

import (
	"fmt"
	"time"

	"github.com/alejandrodnm/polyarb/internal/domain"
	"github.com/google/uuid"
)

// Config son los umbrales de la estrategia.
type Config struct {
	MinEdge    float64
	CostBuffer float64
	MinDepth   float64
	Cooldown   time.Duration
}

// Engine evalúa snapshots de mercado y produce señales.
type Engine struct {
	cfg Config
}

// NewEngine crea un Engine con los umbrales dados.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Evaluate decide si el snapshot contiene una oportunidad ejecutable.
// Nunca devuelve error: staleness y falta de quotes son resultados
// ordinarios (señales de skip), no condiciones excepcionales.
//
// El caller es responsable de pasar solo snapshots frescos (Book.Snapshot
// ya filtra staleness); un snapshot con patas inválidas produce skip aquí
// de todas formas.
func (e *Engine) Evaluate(snap domain.MarketSnapshot, now time.Time) domain.Signal {
	mkt := snap.Market

	if !snap.HasAsks() {
		// Cubre tanto quotes ausentes como tamaños cero: un arb sobre
		// una quote de tamaño cero no es ejecutable por bueno que sea
		// el precio.
		return skip(mkt.ID, domain.DecisionSkipNoQuotes, now,
			"missing or zero-size ask on one or both legs")
	}

	sumCost := snap.SumAskCost()
	fees := sumCost * mkt.FeeRate
	edge := 1.0 - sumCost - fees - e.cfg.CostBuffer

	if edge < e.cfg.MinEdge {
		return skip(mkt.ID, domain.DecisionSkipEdge, now,
			fmt.Sprintf("edge %.4f < min_edge %.4f", edge, e.cfg.MinEdge))
	}

	if depth := snap.MinAskSize(); depth < e.cfg.MinDepth {
		return skip(mkt.ID, domain.DecisionSkipDepth, now,
			fmt.Sprintf("min depth %.2f < required %.2f", depth, e.cfg.MinDepth))
	}

	if mkt.InCooldown(now, e.cfg.Cooldown) {
		return skip(mkt.ID, domain.DecisionSkipCooldown, now,
			fmt.Sprintf("in cooldown until %s", mkt.LastTradeAt.Add(e.cfg.Cooldown).Format(time.RFC3339)))
	}

	opp := &domain.Opportunity{
		ID:         uuid.NewString(),
		MarketID:   mkt.ID,
		YesTokenID: mkt.YesTokenID,
		NoTokenID:  mkt.NoTokenID,
		YesAsk:     snap.Yes.BestAsk,
		NoAsk:      snap.No.BestAsk,
		SumCost:    sumCost,
		Fees:       fees,
		Edge:       edge,
		DetectedAt: now,
	}

	return domain.Signal{
		MarketID:    mkt.ID,
		Decision:    domain.DecisionTrade,
		Reason:      fmt.Sprintf("edge %.4f depth %.2f", edge, snap.MinAskSize()),
		Opportunity: opp,
		EvaluatedAt: now,
	}
}

// StaleSignal construye la señal de skip que el orchestrator registra
// cuando el Book reporta un snapshot stale o incompleto.
func StaleSignal(marketID string, now time.Time) domain.Signal {
	return skip(marketID, domain.DecisionSkipStale, now, "stale or unknown quotes")
}

func skip(marketID string, d domain.SignalDecision, now time.Time, reason string) domain.Signal {
	return domain.Signal{
		MarketID:    marketID,
		Decision:    d,
		Reason:      reason,
		EvaluatedAt: now,
	}
}
