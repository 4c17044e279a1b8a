package orchestrator

// orchestrator.go — el loop principal del bot.
//
// Cablea stream → book → engine → executor. Cada mercado tiene su worker
// con cola propia: aplicar un update y evaluar el mismo mercado es un solo
// paso lógico, y mercados distintos avanzan en paralelo sin bloquearse.

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alejandrodnm/polyarb/internal/domain"
	"github.com/alejandrodnm/polyarb/internal/execution"
	"github.com/alejandrodnm/polyarb/internal/marketdata"
	"github.com/alejandrodnm/polyarb/internal/ports"
	"github.com/alejandrodnm/polyarb/internal/strategy"
)

// Config configura el orquestador.
type Config struct {
	// QueueSize es el buffer de updates por mercado. Si un worker se
	// queda atrás se descarta el update más viejo: el top-of-book es
	// reemplazo total, solo importa el último.
	QueueSize int

	// Once detiene el loop tras el primer tradeset liquidado. Útil para
	// demos y smoke tests.
	Once bool

	// RiskRefresh es la cadencia con la que se relee el estado de riesgo
	// del ledger, para que un halt/resume de otro proceso surta efecto
	// sin reiniciar.
	RiskRefresh time.Duration
}

// Orchestrator consume el stream del venue y alimenta el pipeline.
type Orchestrator struct {
	cfg    Config
	venue  ports.VenueAdapter
	book   *marketdata.Book
	engine *strategy.Engine
	exec   *execution.Executor
	risk   *execution.RiskManager
	ledger ports.Ledger

	// Solo lo toca el goroutine dispatcher.
	workers map[string]chan domain.BookUpdate
}

// New crea el orquestador con todas las dependencias inyectadas.
func New(cfg Config, venue ports.VenueAdapter, book *marketdata.Book, engine *strategy.Engine, exec *execution.Executor, risk *execution.RiskManager, ledger ports.Ledger) *Orchestrator {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.RiskRefresh <= 0 {
		cfg.RiskRefresh = 2 * time.Second
	}
	return &Orchestrator{
		cfg:     cfg,
		venue:   venue,
		book:    book,
		engine:  engine,
		exec:    exec,
		risk:    risk,
		ledger:  ledger,
		workers: make(map[string]chan domain.BookUpdate),
	}
}

// Run ejecuta el pipeline hasta que el contexto se cancele (o, con Once,
// hasta el primer tradeset liquidado).
func (o *Orchestrator) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Cada liquidación arranca el cooldown del mercado.
	o.exec.OnSettled(func(marketID string, at time.Time) {
		o.book.MarkTraded(marketID, at)
		if o.cfg.Once {
			slog.Info("tradeset settled, stopping (once mode)", "market", marketID)
			cancel()
		}
	})

	stream, err := o.venue.StreamBookUpdates(ctx)
	if err != nil {
		return fmt.Errorf("orchestrator.Run: open stream: %w", err)
	}

	slog.Info("orchestrator running", "venue", o.venue.Name(), "once", o.cfg.Once)

	g, ctx := errgroup.WithContext(ctx)

	// Relee el estado de riesgo para recoger halt/resume de otro proceso.
	g.Go(func() error {
		ticker := time.NewTicker(o.cfg.RiskRefresh)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if err := o.risk.Refresh(ctx); err != nil {
					slog.Warn("risk state refresh failed", "err", err)
				}
			}
		}
	})

	g.Go(func() error {
		defer o.closeWorkers()
		for {
			select {
			case u, ok := <-stream:
				if !ok {
					if ctx.Err() != nil {
						return nil
					}
					return fmt.Errorf("orchestrator.Run: stream closed unexpectedly")
				}
				o.dispatch(g, ctx, u)
			case <-ctx.Done():
				return nil
			}
		}
	})

	err = g.Wait()
	slog.Info("orchestrator stopped", "markets_seen", o.book.MarketCount())
	return err
}

// dispatch encola el update en el worker de su mercado, creándolo la
// primera vez. Con la cola llena descarta el update más viejo.
func (o *Orchestrator) dispatch(g *errgroup.Group, ctx context.Context, u domain.BookUpdate) {
	ch, ok := o.workers[u.MarketID]
	if !ok {
		ch = make(chan domain.BookUpdate, o.cfg.QueueSize)
		o.workers[u.MarketID] = ch
		marketID := u.MarketID
		g.Go(func() error {
			o.runWorker(ctx, marketID, ch)
			return nil
		})
	}

	for {
		select {
		case ch <- u:
			return
		default:
		}
		select {
		case <-ch: // descarta el más viejo
		default:
		}
	}
}

func (o *Orchestrator) closeWorkers() {
	for _, ch := range o.workers {
		close(ch)
	}
}

// runWorker aplica updates y evalúa su mercado en serie.
func (o *Orchestrator) runWorker(ctx context.Context, marketID string, ch <-chan domain.BookUpdate) {
	var lastDecision domain.SignalDecision
	for {
		select {
		case u, ok := <-ch:
			if !ok {
				return
			}
			o.book.Apply(u)
			lastDecision = o.evaluate(ctx, marketID, lastDecision)
		case <-ctx.Done():
			return
		}
	}
}

// evaluate corre el engine sobre el snapshot actual y ejecuta o registra
// el skip. Los skips solo se persisten cuando la decisión cambia, para
// que el ledger no se llene de filas idénticas por cada tick.
func (o *Orchestrator) evaluate(ctx context.Context, marketID string, lastDecision domain.SignalDecision) domain.SignalDecision {
	now := time.Now()

	var sig domain.Signal
	if snap, ok := o.book.Snapshot(marketID, now); ok {
		sig = o.engine.Evaluate(snap, now)
	} else {
		sig = strategy.StaleSignal(marketID, now)
	}

	if sig.Tradeable() {
		// Execute persiste la señal TRADE antes de enviar órdenes y
		// bloquea hasta liquidar: el worker no re-evalúa este mercado
		// mientras tiene un tradeset en vuelo.
		o.exec.Execute(ctx, sig)
		return ""
	}

	if lastDecision == sig.Decision {
		return lastDecision
	}

	if err := o.ledger.SaveSignal(ctx, sig); err != nil {
		slog.Warn("persist skip signal", "market", marketID, "err", err)
	}
	slog.Debug("signal", "market", marketID, "decision", sig.Decision, "reason", sig.Reason)
	return sig.Decision
}
