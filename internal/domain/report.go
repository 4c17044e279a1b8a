package domain

// SignalSummary agrega las evaluaciones persistidas para el reporte.
type SignalSummary struct {
	Total      int
	ByDecision map[SignalDecision]int
	AvgEdge    float64 // media del edge de las señales TRADE
}

// TradeSetSummary agrega los tradesets para el reporte.
type TradeSetSummary struct {
	Total       int
	ByStatus    map[TradeSetStatus]int
	RealizedPnL float64 // suma de realized_edge * size de los COMPLETED
	AvgEdge     float64 // media de realized_edge de los COMPLETED
}

// FillRate devuelve la fracción de tradesets que terminaron COMPLETED.
func (s TradeSetSummary) FillRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.ByStatus[TradeSetCompleted]) / float64(s.Total)
}
