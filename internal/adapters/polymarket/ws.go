package polymarket

// ws.go — stream del canal market del CLOB WebSocket.
//
// El stream es una secuencia infinita sobre un único canal: la política
// de reconexión (backoff exponencial, resuscripción) vive aquí dentro.
// Cada caída se notifica vía OnDisconnect para que el RiskManager la
// cuente como fallo.

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alejandrodnm/polyarb/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	reconnectDelay    = 2 * time.Second
	maxReconnectDelay = 60 * time.Second
)

// streamLoop alimenta ch hasta que ctx se cancela, reconectando por
// dentro. Cierra ch al salir.
func (v *Venue) streamLoop(ctx context.Context, ch chan<- domain.BookUpdate, tokenIDs []string) {
	defer close(ch)

	delay := reconnectDelay
	for {
		if ctx.Err() != nil {
			return
		}

		err := v.runConnection(ctx, ch, tokenIDs)
		if ctx.Err() != nil {
			return
		}

		slog.Warn("market stream disconnected", "err", err, "retry_in", delay)
		if v.cfg.OnDisconnect != nil {
			v.cfg.OnDisconnect(err)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// runConnection abre una conexión, se suscribe y bombea eventos hasta
// que la conexión muere. Devuelve la causa.
func (v *Venue) runConnection(ctx context.Context, ch chan<- domain.BookUpdate, tokenIDs []string) error {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, v.cfg.WSURL, nil)
	if err != nil {
		return fmt.Errorf("polymarket.stream: dial %s: %w: %w", v.cfg.WSURL, domain.ErrConnection, err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	cmd := wsSubscribeCommand{Type: "subscribe", Channel: "market", AssetsIDs: tokenIDs}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(cmd); err != nil {
		return fmt.Errorf("polymarket.stream: subscribe: %w: %w", domain.ErrConnection, err)
	}
	slog.Info("subscribed to market channel", "tokens", len(tokenIDs))

	// Ping loop y cierre por contexto.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-ctx.Done():
				conn.Close() // desbloquea ReadMessage
				return
			case <-done:
				return
			}
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("polymarket.stream: read: %w: %w", domain.ErrConnection, err)
		}
		for _, u := range v.parseMessage(raw) {
			select {
			case ch <- u:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// parseMessage convierte un mensaje WS raw en cero o más BookUpdates.
// Los mensajes no parseables o de tipos que no usamos se descartan.
func (v *Venue) parseMessage(raw []byte) []domain.BookUpdate {
	now := time.Now()

	// El canal market puede enviar un array de eventos por frame.
	if len(raw) > 0 && raw[0] == '[' {
		var batch []json.RawMessage
		if err := json.Unmarshal(raw, &batch); err != nil {
			return nil
		}
		var out []domain.BookUpdate
		for _, item := range batch {
			out = append(out, v.parseMessage(item)...)
		}
		return out
	}

	var env wsEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil
	}

	switch env.EventType {
	case "book":
		var ev wsBookEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil
		}
		if u, ok := bookEventToUpdate(ev, v.tokens, now); ok {
			return []domain.BookUpdate{u}
		}
	case "price_change":
		var ev wsPriceChangeEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil
		}
		return priceChangeToUpdates(ev, v.tokens, now)
	}
	return nil
}
