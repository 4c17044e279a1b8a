package domain

import "errors"

// Taxonomía de errores del VenueAdapter. El core distingue con errors.Is:
// Rejected y ConnectionError se atribuyen por separado al kill switch.
var (
	// ErrRejected: el venue rechazó la orden (precio, balance, mercado cerrado...).
	ErrRejected = errors.New("order rejected by venue")

	// ErrConnection: fallo de red/transporte hablando con el venue.
	ErrConnection = errors.New("venue connection error")

	// ErrAlreadyTerminal: la orden ya estaba en estado terminal al cancelar.
	// No es un fallo — el estado final lo decide el resultado del poll.
	ErrAlreadyTerminal = errors.New("order already terminal")
)
