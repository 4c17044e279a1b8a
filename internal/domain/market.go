package domain

import "time"

// Side identifica una de las dos patas de un mercado binario.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// Market representa un mercado de predicción binario en el venue.
// Se crea con la primera quote observada y nunca se borra mientras
// el proceso esté vivo.
type Market struct {
	ID          string
	Question    string
	YesTokenID  string
	NoTokenID   string
	FeeRate     float64 // fee del venue sobre el coste del set (0 = sin fees)
	LastTradeAt time.Time
}

// TokenID devuelve el token id de la pata indicada.
func (m Market) TokenID(side Side) string {
	if side == SideYes {
		return m.YesTokenID
	}
	return m.NoTokenID
}

// InCooldown indica si el mercado sigue dentro de la ventana de cooldown
// tras su último trade.
func (m Market) InCooldown(now time.Time, cooldown time.Duration) bool {
	if m.LastTradeAt.IsZero() {
		return false
	}
	return now.Sub(m.LastTradeAt) < cooldown
}
