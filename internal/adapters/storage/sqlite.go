package storage

// sqlite.go — registro append-only del bot.
//
// Estrategia:
//   - `signals`: UNA fila por evaluación persistida (TRADE siempre; los
//     skips los filtra el orquestador por cambio de decisión). Inmutables.
//   - `orders` / `tradesets`: el ciclo de vida completo de cada ejecución.
//     Solo se actualizan los campos de estado; precios y tamaños quedan
//     congelados al insert para que el edge sea reproducible.
//   - `risk_events`: auditoría del kill switch. Nunca se borra ni actualiza.
//   - Sin prune: el registro ES el producto. Un archivo por despliegue.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alejandrodnm/polyarb/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
-- Una fila por evaluación persistida, TRADE o skip con su razón
CREATE TABLE IF NOT EXISTS signals (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    market_id      TEXT NOT NULL,
    decision       TEXT NOT NULL,
    reason         TEXT NOT NULL DEFAULT '',
    opportunity_id TEXT,
    yes_ask        REAL NOT NULL DEFAULT 0,
    yes_size       REAL NOT NULL DEFAULT 0,
    no_ask         REAL NOT NULL DEFAULT 0,
    no_size        REAL NOT NULL DEFAULT 0,
    sum_cost       REAL NOT NULL DEFAULT 0,
    fees           REAL NOT NULL DEFAULT 0,
    edge           REAL NOT NULL DEFAULT 0,
    evaluated_at   TEXT NOT NULL
);

-- Un tradeset por oportunidad ejecutada: las dos patas de un set completo
CREATE TABLE IF NOT EXISTS tradesets (
    id             TEXT PRIMARY KEY,
    opportunity_id TEXT NOT NULL,
    market_id      TEXT NOT NULL,
    status         TEXT NOT NULL,
    yes_order_id   TEXT NOT NULL,
    no_order_id    TEXT NOT NULL,
    size           REAL NOT NULL DEFAULT 0,
    realized_edge  REAL NOT NULL DEFAULT 0,
    created_at     TEXT NOT NULL,
    closed_at      TEXT
);

-- Una fila por pata
CREATE TABLE IF NOT EXISTS orders (
    id             TEXT PRIMARY KEY,
    tradeset_id    TEXT NOT NULL,
    opportunity_id TEXT NOT NULL,
    market_id      TEXT NOT NULL,
    token_id       TEXT NOT NULL,
    side           TEXT NOT NULL,
    price          REAL NOT NULL,
    size           REAL NOT NULL,
    venue_order_id TEXT NOT NULL DEFAULT '',
    status         TEXT NOT NULL,
    filled_size    REAL NOT NULL DEFAULT 0,
    avg_fill_price REAL NOT NULL DEFAULT 0,
    submitted_at   TEXT,
    terminal_at    TEXT
);

-- Auditoría de riesgo: append-only, nunca se toca tras el insert
CREATE TABLE IF NOT EXISTS risk_events (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    kind       TEXT NOT NULL,
    market_id  TEXT NOT NULL DEFAULT '',
    detail     TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_signals_market ON signals(market_id, evaluated_at DESC);
CREATE INDEX IF NOT EXISTS idx_signals_dec    ON signals(decision);
CREATE INDEX IF NOT EXISTS idx_ts_created     ON tradesets(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_orders_ts      ON orders(tradeset_id);
CREATE INDEX IF NOT EXISTS idx_risk_kind      ON risk_events(kind, id DESC);
`

// timeFmt es el formato de todas las columnas de tiempo: RFC3339 en UTC
// con nanosegundos de ancho fijo, comparable lexicográficamente. Así las
// queries de rango funcionan sin funciones de fecha de SQLite.
// (RFC3339Nano no sirve: recorta ceros finales y rompe el orden textual.)
const timeFmt = "2006-01-02T15:04:05.000000000Z07:00"

func fmtTime(t time.Time) string { return t.UTC().Format(timeFmt) }

func fmtTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeFmt, s)
}

func parseTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(timeFmt, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// SQLiteLedger implementa ports.Ledger usando SQLite (pure Go, sin CGo).
type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLiteLedger abre (o crea) la base de datos en la ruta dada y aplica
// el schema. Usa ":memory:" en tests.
func NewSQLiteLedger(path string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteLedger: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteLedger: apply schema: %w", err)
	}
	return &SQLiteLedger{db: db}, nil
}

// SaveSignal persiste una evaluación. Las señales TRADE llevan la
// oportunidad congelada; los skips solo decision+reason.
func (s *SQLiteLedger) SaveSignal(ctx context.Context, sig domain.Signal) error {
	var (
		oppID                          any
		yesAsk, yesSize, noAsk, noSize float64
		sumCost, fees, edge            float64
	)
	if opp := sig.Opportunity; opp != nil {
		oppID = opp.ID
		yesAsk, yesSize = opp.YesAsk.Price, opp.YesAsk.Size
		noAsk, noSize = opp.NoAsk.Price, opp.NoAsk.Size
		sumCost, fees, edge = opp.SumCost, opp.Fees, opp.Edge
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO signals (market_id, decision, reason, opportunity_id,
		                     yes_ask, yes_size, no_ask, no_size,
		                     sum_cost, fees, edge, evaluated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sig.MarketID, string(sig.Decision), sig.Reason, oppID,
		yesAsk, yesSize, noAsk, noSize,
		sumCost, fees, edge, fmtTime(sig.EvaluatedAt),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveSignal: insert: %w", err)
	}
	return nil
}

// CreateTradeSet persiste un tradeset recién abierto.
func (s *SQLiteLedger) CreateTradeSet(ctx context.Context, ts domain.TradeSet) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tradesets (id, opportunity_id, market_id, status,
		                       yes_order_id, no_order_id, size, realized_edge,
		                       created_at, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ts.ID, ts.OpportunityID, ts.MarketID, string(ts.Status),
		ts.YesOrderID, ts.NoOrderID, ts.Size, ts.RealizedEdge,
		fmtTime(ts.CreatedAt), fmtTimePtr(ts.ClosedAt),
	)
	if err != nil {
		return fmt.Errorf("storage.CreateTradeSet: insert %s: %w", ts.ID, err)
	}
	return nil
}

// UpdateTradeSet actualiza los campos de estado de un tradeset.
func (s *SQLiteLedger) UpdateTradeSet(ctx context.Context, id string, status domain.TradeSetStatus, size, realizedEdge float64, closedAt *time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tradesets SET status = ?, size = ?, realized_edge = ?, closed_at = ?
		WHERE id = ?`,
		string(status), size, realizedEdge, fmtTimePtr(closedAt), id,
	)
	if err != nil {
		return fmt.Errorf("storage.UpdateTradeSet: update %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("storage.UpdateTradeSet: tradeset %s not found", id)
	}
	return nil
}

// SaveOrder persiste una pata recién creada.
func (s *SQLiteLedger) SaveOrder(ctx context.Context, o domain.Order) error {
	var submittedAt any
	if !o.SubmittedAt.IsZero() {
		submittedAt = fmtTime(o.SubmittedAt)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (id, tradeset_id, opportunity_id, market_id, token_id,
		                    side, price, size, venue_order_id, status,
		                    filled_size, avg_fill_price, submitted_at, terminal_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.TradeSetID, o.OpportunityID, o.MarketID, o.TokenID,
		string(o.Side), o.Price, o.Size, o.VenueOrderID, string(o.Status),
		o.FilledSize, o.AvgFillPrice, submittedAt, fmtTimePtr(o.TerminalAt),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveOrder: insert %s: %w", o.ID, err)
	}
	return nil
}

// MarkOrderSubmitted registra el venue order id tras el submit.
func (s *SQLiteLedger) MarkOrderSubmitted(ctx context.Context, id, venueOrderID string, submittedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders SET venue_order_id = ?, status = ?, submitted_at = ?
		WHERE id = ?`,
		venueOrderID, string(domain.OrderSubmitted), fmtTime(submittedAt), id,
	)
	if err != nil {
		return fmt.Errorf("storage.MarkOrderSubmitted: update %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("storage.MarkOrderSubmitted: order %s not found", id)
	}
	return nil
}

// UpdateOrderFill actualiza el estado de fill de una pata.
func (s *SQLiteLedger) UpdateOrderFill(ctx context.Context, id string, status domain.OrderStatus, filledSize, avgFillPrice float64, terminalAt *time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders SET status = ?, filled_size = ?, avg_fill_price = ?, terminal_at = ?
		WHERE id = ?`,
		string(status), filledSize, avgFillPrice, fmtTimePtr(terminalAt), id,
	)
	if err != nil {
		return fmt.Errorf("storage.UpdateOrderFill: update %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("storage.UpdateOrderFill: order %s not found", id)
	}
	return nil
}

// SaveRiskEvent persiste un evento de riesgo.
func (s *SQLiteLedger) SaveRiskEvent(ctx context.Context, ev domain.RiskEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO risk_events (kind, market_id, detail, created_at)
		VALUES (?, ?, ?, ?)`,
		string(ev.Kind), ev.MarketID, ev.Detail, fmtTime(ev.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveRiskEvent: insert %s: %w", ev.Kind, err)
	}
	return nil
}

// RecentTradeSets devuelve los últimos n tradesets, más reciente primero.
func (s *SQLiteLedger) RecentTradeSets(ctx context.Context, n int) ([]domain.TradeSet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, opportunity_id, market_id, status, yes_order_id, no_order_id,
		       size, realized_edge, created_at, closed_at
		FROM tradesets ORDER BY created_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("storage.RecentTradeSets: query: %w", err)
	}
	defer rows.Close()

	var out []domain.TradeSet
	for rows.Next() {
		ts, err := scanTradeSet(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.RecentTradeSets: scan: %w", err)
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}

// RecentRiskEvents devuelve los últimos n eventos, más reciente primero.
func (s *SQLiteLedger) RecentRiskEvents(ctx context.Context, n int) ([]domain.RiskEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, market_id, detail, created_at
		FROM risk_events ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("storage.RecentRiskEvents: query: %w", err)
	}
	defer rows.Close()

	var out []domain.RiskEvent
	for rows.Next() {
		var (
			ev   domain.RiskEvent
			kind string
			at   string
		)
		if err := rows.Scan(&ev.ID, &kind, &ev.MarketID, &ev.Detail, &at); err != nil {
			return nil, fmt.Errorf("storage.RecentRiskEvents: scan: %w", err)
		}
		ev.Kind = domain.RiskEventKind(kind)
		if ev.CreatedAt, err = parseTime(at); err != nil {
			return nil, fmt.Errorf("storage.RecentRiskEvents: parse time: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// OrdersByTradeSet devuelve las patas de un tradeset, YES primero.
func (s *SQLiteLedger) OrdersByTradeSet(ctx context.Context, tradeSetID string) ([]domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tradeset_id, opportunity_id, market_id, token_id, side,
		       price, size, venue_order_id, status, filled_size, avg_fill_price,
		       submitted_at, terminal_at
		FROM orders WHERE tradeset_id = ? ORDER BY side DESC`, tradeSetID)
	if err != nil {
		return nil, fmt.Errorf("storage.OrdersByTradeSet: query %s: %w", tradeSetID, err)
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		var (
			o            domain.Order
			side, status string
			submitted    sql.NullString
			terminal     sql.NullString
		)
		if err := rows.Scan(&o.ID, &o.TradeSetID, &o.OpportunityID, &o.MarketID,
			&o.TokenID, &side, &o.Price, &o.Size, &o.VenueOrderID, &status,
			&o.FilledSize, &o.AvgFillPrice, &submitted, &terminal); err != nil {
			return nil, fmt.Errorf("storage.OrdersByTradeSet: scan: %w", err)
		}
		o.Side = domain.Side(side)
		o.Status = domain.OrderStatus(status)
		if submitted.Valid {
			if o.SubmittedAt, err = parseTime(submitted.String); err != nil {
				return nil, fmt.Errorf("storage.OrdersByTradeSet: parse time: %w", err)
			}
		}
		if o.TerminalAt, err = parseTimePtr(terminal); err != nil {
			return nil, fmt.Errorf("storage.OrdersByTradeSet: parse time: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// SignalSummary agrega las señales persistidas.
func (s *SQLiteLedger) SignalSummary(ctx context.Context) (domain.SignalSummary, error) {
	sum := domain.SignalSummary{ByDecision: make(map[domain.SignalDecision]int)}

	rows, err := s.db.QueryContext(ctx, `
		SELECT decision, COUNT(*) FROM signals GROUP BY decision`)
	if err != nil {
		return sum, fmt.Errorf("storage.SignalSummary: query: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			dec string
			n   int
		)
		if err := rows.Scan(&dec, &n); err != nil {
			return sum, fmt.Errorf("storage.SignalSummary: scan: %w", err)
		}
		sum.ByDecision[domain.SignalDecision(dec)] = n
		sum.Total += n
	}
	if err := rows.Err(); err != nil {
		return sum, fmt.Errorf("storage.SignalSummary: rows: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(AVG(edge), 0) FROM signals WHERE decision = ?`,
		string(domain.DecisionTrade),
	).Scan(&sum.AvgEdge)
	if err != nil {
		return sum, fmt.Errorf("storage.SignalSummary: avg edge: %w", err)
	}
	return sum, nil
}

// TradeSetSummary agrega los tradesets persistidos.
func (s *SQLiteLedger) TradeSetSummary(ctx context.Context) (domain.TradeSetSummary, error) {
	sum := domain.TradeSetSummary{ByStatus: make(map[domain.TradeSetStatus]int)}

	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM tradesets GROUP BY status`)
	if err != nil {
		return sum, fmt.Errorf("storage.TradeSetSummary: query: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			st string
			n  int
		)
		if err := rows.Scan(&st, &n); err != nil {
			return sum, fmt.Errorf("storage.TradeSetSummary: scan: %w", err)
		}
		sum.ByStatus[domain.TradeSetStatus(st)] = n
		sum.Total += n
	}
	if err := rows.Err(); err != nil {
		return sum, fmt.Errorf("storage.TradeSetSummary: rows: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(realized_edge * size), 0), COALESCE(AVG(realized_edge), 0)
		FROM tradesets WHERE status = ?`,
		string(domain.TradeSetCompleted),
	).Scan(&sum.RealizedPnL, &sum.AvgEdge)
	if err != nil {
		return sum, fmt.Errorf("storage.TradeSetSummary: pnl: %w", err)
	}
	return sum, nil
}

// LoadRiskState reconstruye el RiskState desde el registro:
//
//  1. halted: el último evento KILL_SWITCH/MANUAL_HALT/RESUME manda.
//     Sin eventos → no halted.
//  2. contador: fallos posteriores al último reset, donde el reset es el
//     más reciente entre el último RESUME y el cierre del último tradeset
//     COMPLETED (un set completo exitoso resetea la racha).
//
// Así un crash nunca resetea el kill switch en silencio: el proceso
// arranca exactamente donde el registro dice que estaba.
func (s *SQLiteLedger) LoadRiskState(ctx context.Context) (domain.RiskState, error) {
	var st domain.RiskState

	// 1. Flag halted
	var kind, detail string
	err := s.db.QueryRowContext(ctx, `
		SELECT kind, detail FROM risk_events
		WHERE kind IN (?, ?, ?) ORDER BY id DESC LIMIT 1`,
		string(domain.RiskKillSwitch), string(domain.RiskManualHalt), string(domain.RiskResume),
	).Scan(&kind, &detail)
	switch {
	case err == sql.ErrNoRows:
		// registro limpio
	case err != nil:
		return st, fmt.Errorf("storage.LoadRiskState: halt flag: %w", err)
	case kind != string(domain.RiskResume):
		st.Halted = true
		st.HaltReason = detail
	}

	// 2. Punto de reset del contador
	var resetAt string
	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(at), '') FROM (
			SELECT MAX(created_at) AS at FROM risk_events WHERE kind = ?
			UNION ALL
			SELECT MAX(closed_at) AS at FROM tradesets WHERE status = ?
		)`,
		string(domain.RiskResume), string(domain.TradeSetCompleted),
	).Scan(&resetAt)
	if err != nil {
		return st, fmt.Errorf("storage.LoadRiskState: reset point: %w", err)
	}

	// 3. Fallos desde el reset (RFC3339 UTC compara lexicográficamente)
	var lastFailure sql.NullString
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), MAX(created_at) FROM risk_events
		WHERE kind IN (?, ?, ?, ?, ?) AND created_at > ?`,
		string(domain.RiskPartialFill), string(domain.RiskRejection),
		string(domain.RiskTimeout), string(domain.RiskDisconnect),
		string(domain.RiskLedger), resetAt,
	).Scan(&st.ConsecutiveFailures, &lastFailure)
	if err != nil {
		return st, fmt.Errorf("storage.LoadRiskState: failures: %w", err)
	}
	if lastFailure.Valid {
		if st.LastFailureAt, err = parseTime(lastFailure.String); err != nil {
			return st, fmt.Errorf("storage.LoadRiskState: parse time: %w", err)
		}
	}
	return st, nil
}

// Close cierra la conexión.
func (s *SQLiteLedger) Close() error {
	return s.db.Close()
}

func scanTradeSet(rows *sql.Rows) (domain.TradeSet, error) {
	var (
		ts      domain.TradeSet
		status  string
		created string
		closed  sql.NullString
	)
	err := rows.Scan(&ts.ID, &ts.OpportunityID, &ts.MarketID, &status,
		&ts.YesOrderID, &ts.NoOrderID, &ts.Size, &ts.RealizedEdge,
		&created, &closed)
	if err != nil {
		return ts, err
	}
	ts.Status = domain.TradeSetStatus(status)
	if ts.CreatedAt, err = parseTime(created); err != nil {
		return ts, err
	}
	if ts.ClosedAt, err = parseTimePtr(closed); err != nil {
		return ts, err
	}
	return ts, nil
}
