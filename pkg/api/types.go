package api

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/oraichain/oraiswap-orderbook/pkg/asset"
	"github.com/oraichain/oraiswap-orderbook/pkg/engine"
	"github.com/oraichain/oraiswap-orderbook/pkg/storage"
)

// Request and response types for REST endpoints and WebSocket messages.
// Assets travel as strings: a 0x address means a token contract, anything
// else a native denom.

// ==============================
// REST Request Types
// ==============================

// CreatePairRequest is the payload for POST /api/v1/pairs
type CreatePairRequest struct {
	BaseAsset      string           `json:"base_asset"`
	QuoteAsset     string           `json:"quote_asset"`
	Spread         *decimal.Decimal `json:"spread,omitempty"`
	MinQuoteAmount decimal.Decimal  `json:"min_quote_amount"`
}

// SubmitOrderRequest is the payload for POST /api/v1/orders
type SubmitOrderRequest struct {
	Bidder      string          `json:"bidder"`
	Direction   string          `json:"direction"` // "buy" or "sell"
	OfferAsset  string          `json:"offer_asset"`
	OfferAmount decimal.Decimal `json:"offer_amount"`
	AskAsset    string          `json:"ask_asset"`
	AskAmount   decimal.Decimal `json:"ask_amount"`
}

// SubmitMarketOrderRequest is the payload for POST /api/v1/orders/market
// and POST /api/v1/orders/simulate
type SubmitMarketOrderRequest struct {
	Bidder      string           `json:"bidder,omitempty"` // unused for simulate
	Direction   string           `json:"direction"`
	BaseAsset   string           `json:"base_asset"`
	QuoteAsset  string           `json:"quote_asset"`
	OfferAmount decimal.Decimal  `json:"offer_amount"`
	Slippage    *decimal.Decimal `json:"slippage,omitempty"`
}

// CancelOrderRequest is the payload for POST /api/v1/orders/cancel
type CancelOrderRequest struct {
	Bidder     string `json:"bidder"`
	BaseAsset  string `json:"base_asset"`
	QuoteAsset string `json:"quote_asset"`
	OrderID    uint64 `json:"order_id"`
}

// ==============================
// REST Response Types
// ==============================

// PairInfo represents a pair's configuration
type PairInfo struct {
	BaseAsset      string           `json:"base_asset"`
	QuoteAsset     string           `json:"quote_asset"`
	Spread         *decimal.Decimal `json:"spread,omitempty"`
	MinQuoteAmount decimal.Decimal  `json:"min_quote_amount"`
}

// SubmitOrderResponse is the response from order submission
type SubmitOrderResponse struct {
	OrderID uint64              `json:"order_id"`
	Result  *engine.MatchResult `json:"result,omitempty"`
}

// TickLevel represents one occupied price level
type TickLevel struct {
	Price       decimal.Decimal `json:"price"`
	TotalOrders uint64          `json:"total_orders"`
}

// OrderbookSnapshot represents both sides of a book, buys sorted high to
// low and sells low to high
type OrderbookSnapshot struct {
	BaseAsset  string      `json:"base_asset"`
	QuoteAsset string      `json:"quote_asset"`
	Buys       []TickLevel `json:"buys"`
	Sells      []TickLevel `json:"sells"`
	Timestamp  int64       `json:"timestamp"`
}

// ErrorResponse is returned for all errors
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSSubscribeRequest is sent by clients to manage channel subscriptions,
// e.g. ["book:ORAI/USDT", "trades:ORAI/USDT"]
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}

// TradeUpdate is broadcast on the trades channel for every maker fill
type TradeUpdate struct {
	Type        string          `json:"type"` // "trade"
	OrderID     uint64          `json:"order_id"`
	TakerID     uint64          `json:"taker_id"`
	Direction   string          `json:"direction"` // taker side
	Price       decimal.Decimal `json:"price"`
	FilledBase  decimal.Decimal `json:"filled_base"`
	FilledQuote decimal.Decimal `json:"filled_quote"`
	Timestamp   int64           `json:"timestamp"`
}

// BookUpdate is broadcast on the book channel after every mutating operation
type BookUpdate struct {
	Type       string      `json:"type"` // "book"
	BaseAsset  string      `json:"base_asset"`
	QuoteAsset string      `json:"quote_asset"`
	Buys       []TickLevel `json:"buys"`
	Sells      []TickLevel `json:"sells"`
	Timestamp  int64       `json:"timestamp"`
}

// ==============================
// Conversions
// ==============================

// parseAssetInfo maps the wire form of an asset to its identity: hex
// addresses are token contracts, everything else a native denom.
func parseAssetInfo(s string) (asset.Info, error) {
	if s == "" {
		return asset.Info{}, fmt.Errorf("empty asset")
	}
	if common.IsHexAddress(s) {
		return asset.TokenInfo(common.HexToAddress(s)), nil
	}
	info := asset.NativeInfo(s)
	if err := info.Validate(); err != nil {
		return asset.Info{}, err
	}
	return info, nil
}

func tickLevels(ticks []storage.Tick) []TickLevel {
	out := make([]TickLevel, len(ticks))
	for i, t := range ticks {
		out[i] = TickLevel{Price: t.Price, TotalOrders: t.TotalOrders}
	}
	return out
}
