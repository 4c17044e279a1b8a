package polymarket

// DTOs raw de la API de Polymarket. Solo se usan dentro de este paquete.
// La conversión a domain entities se hace en mapping.go.

// --- CLOB REST ---

// clobMarketsResponse es la respuesta paginada de GET /markets.
type clobMarketsResponse struct {
	Limit      int          `json:"limit"`
	Count      int          `json:"count"`
	NextCursor string       `json:"next_cursor"`
	Data       []clobMarket `json:"data"`
}

// clobMarket es un mercado del CLOB con sus dos tokens.
type clobMarket struct {
	ConditionID  string      `json:"condition_id"`
	Question     string      `json:"question"`
	Tokens       []clobToken `json:"tokens"`
	MakerBaseFee float64     `json:"maker_base_fee"`
	TakerBaseFee float64     `json:"taker_base_fee"`
	Active       bool        `json:"active"`
	Closed       bool        `json:"closed"`
}

// clobToken representa un token (YES/NO) en el CLOB.
type clobToken struct {
	TokenID string  `json:"token_id"`
	Outcome string  `json:"outcome"`
	Price   float64 `json:"price"`
}

// clobNegRiskResponse es la respuesta de GET /neg-risk.
type clobNegRiskResponse struct {
	NegRisk bool `json:"neg_risk"`
}

// --- Order lifecycle ---

// clobOrderRequest es el body de POST /order.
type clobOrderRequest struct {
	Order     clobOrderBody `json:"order"`
	Owner     string        `json:"owner"`
	OrderType string        `json:"orderType"`
}

type clobOrderBody struct {
	Salt          string `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	Side          string `json:"side"`
	SignatureType int    `json:"signatureType"`
	Signature     string `json:"signature"`
}

type clobOrderResponse struct {
	ErrorMsg string `json:"errorMsg"`
	OrderID  string `json:"orderID"`
	Status   string `json:"status"`
	Success  bool   `json:"success"`
}

// clobOrder es la respuesta de GET /data/order/{id}.
type clobOrder struct {
	ID           string `json:"id"`
	AssetID      string `json:"asset_id"`
	Market       string `json:"market"`
	Side         string `json:"side"`
	OriginalSize string `json:"original_size"`
	SizeMatched  string `json:"size_matched"`
	Price        string `json:"price"`
	Status       string `json:"status"`
	Outcome      string `json:"outcome"`
}

// --- WebSocket market channel ---

// wsSubscribeCommand es el mensaje de suscripción al canal market.
type wsSubscribeCommand struct {
	Type      string   `json:"type"`
	Channel   string   `json:"channel"`
	AssetsIDs []string `json:"assets_ids"`
}

// wsEnvelope identifica el tipo de evento de un mensaje entrante.
type wsEnvelope struct {
	EventType string `json:"event_type"`
}

// wsBookEvent es un snapshot completo del book de un token.
type wsBookEvent struct {
	EventType string         `json:"event_type"`
	AssetID   string         `json:"asset_id"`
	Market    string         `json:"market"`
	Bids      []bookEntryRaw `json:"bids"`
	Asks      []bookEntryRaw `json:"asks"`
	Timestamp string         `json:"timestamp"`
}

// wsPriceChangeEvent agrupa cambios de top-of-book de varios tokens.
type wsPriceChangeEvent struct {
	EventType    string          `json:"event_type"`
	Market       string          `json:"market"`
	PriceChanges []wsPriceChange `json:"price_changes"`
}

type wsPriceChange struct {
	AssetID string `json:"asset_id"`
	BestBid string `json:"best_bid"`
	BestAsk string `json:"best_ask"`
}

// bookEntryRaw es un nivel de precio raw de la API (strings para mayor precisión).
type bookEntryRaw struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}
