package polymarket

// trading.go — operaciones de órdenes contra el CLOB.
//
// Todas las órdenes son limit BUY GTC firmadas EIP-712. Los errores se
// clasifican en la taxonomía de domain: ErrRejected para rechazos del
// venue, ErrConnection para fallos de transporte, ErrAlreadyTerminal
// para cancels que llegan tarde.

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/alejandrodnm/polyarb/internal/domain"
)

// PlaceOrder firma y envía una orden limit BUY al CLOB.
func (v *Venue) PlaceOrder(ctx context.Context, req domain.PlaceOrderRequest) (domain.OrderHandle, error) {
	if v.auth == nil {
		return domain.OrderHandle{}, fmt.Errorf("polymarket.PlaceOrder: trading disabled, no private key: %w", domain.ErrRejected)
	}
	if err := v.auth.EnsureCreds(ctx); err != nil {
		return domain.OrderHandle{}, fmt.Errorf("polymarket.PlaceOrder: creds: %w", err)
	}

	negRisk, err := v.isNegRisk(ctx, req.TokenID)
	if err != nil {
		return domain.OrderHandle{}, fmt.Errorf("polymarket.PlaceOrder: %w", err)
	}

	signed, err := v.auth.buildSignedOrder(req.TokenID, req.Price, req.Size, negRisk)
	if err != nil {
		return domain.OrderHandle{}, fmt.Errorf("polymarket.PlaceOrder: sign: %w: %w", domain.ErrRejected, err)
	}

	body := clobOrderRequest{
		Order: clobOrderBody{
			Salt:          signed.Order.Salt.String(),
			Maker:         signed.Order.Maker.Hex(),
			Signer:        signed.Order.Signer.Hex(),
			Taker:         signed.Order.Taker.Hex(),
			TokenID:       req.TokenID,
			MakerAmount:   signed.Order.MakerAmount.String(),
			TakerAmount:   signed.Order.TakerAmount.String(),
			Expiration:    signed.Order.Expiration.String(),
			Nonce:         signed.Order.Nonce.String(),
			FeeRateBps:    signed.Order.FeeRateBps.String(),
			Side:          "BUY",
			SignatureType: int(signed.Order.SignatureType.Int64()),
			Signature:     "0x" + hex.EncodeToString(signed.Signature),
		},
		Owner:     v.auth.creds.APIKey,
		OrderType: "GTC",
	}

	var resp clobOrderResponse
	if err := v.auth.doL2(ctx, http.MethodPost, "/order", body, &resp); err != nil {
		return domain.OrderHandle{}, fmt.Errorf("polymarket.PlaceOrder: post: %w", err)
	}
	if !resp.Success || resp.ErrorMsg != "" {
		return domain.OrderHandle{}, fmt.Errorf("polymarket.PlaceOrder: clob error: %s: %w", resp.ErrorMsg, domain.ErrRejected)
	}

	return domain.OrderHandle{VenueOrderID: resp.OrderID, TokenID: req.TokenID}, nil
}

// CancelOrder cancela una orden por su CLOB order ID.
func (v *Venue) CancelOrder(ctx context.Context, handle domain.OrderHandle) error {
	if v.auth == nil {
		return fmt.Errorf("polymarket.CancelOrder: trading disabled: %w", domain.ErrRejected)
	}
	if err := v.auth.EnsureCreds(ctx); err != nil {
		return fmt.Errorf("polymarket.CancelOrder: creds: %w", err)
	}

	err := v.auth.doL2(ctx, http.MethodDelete, "/order/"+handle.VenueOrderID, nil, nil)
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrRejected) && isTerminalCancelError(err) {
		return fmt.Errorf("polymarket.CancelOrder: order %s: %w", handle.VenueOrderID, domain.ErrAlreadyTerminal)
	}
	return fmt.Errorf("polymarket.CancelOrder: %w", err)
}

// isTerminalCancelError detecta rechazos de cancel que significan que la
// orden ya alcanzó estado terminal en el venue.
func isTerminalCancelError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"not found", "already", "matched", "canceled", "cancelled"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// PollFill consulta el estado actual de una orden enviada.
func (v *Venue) PollFill(ctx context.Context, handle domain.OrderHandle) (domain.FillStatus, error) {
	if v.auth == nil {
		return domain.FillStatus{}, fmt.Errorf("polymarket.PollFill: trading disabled: %w", domain.ErrRejected)
	}
	if err := v.auth.EnsureCreds(ctx); err != nil {
		return domain.FillStatus{}, fmt.Errorf("polymarket.PollFill: creds: %w", err)
	}

	var resp clobOrder
	if err := v.auth.doL2(ctx, http.MethodGet, "/data/order/"+handle.VenueOrderID, nil, &resp); err != nil {
		return domain.FillStatus{}, fmt.Errorf("polymarket.PollFill: %w", err)
	}
	return mapOrderStatus(resp), nil
}

// isNegRisk consulta y cachea el flag neg-risk de un token.
func (v *Venue) isNegRisk(ctx context.Context, tokenID string) (bool, error) {
	v.mu.RLock()
	cached, ok := v.negRisk[tokenID]
	v.mu.RUnlock()
	if ok {
		return cached, nil
	}

	negRisk, err := v.client.IsNegRisk(ctx, tokenID)
	if err != nil {
		return false, err
	}
	v.mu.Lock()
	v.negRisk[tokenID] = negRisk
	v.mu.Unlock()
	return negRisk, nil
}
