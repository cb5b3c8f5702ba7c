package engine

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/oraichain/oraiswap-orderbook/pkg/asset"
	"github.com/oraichain/oraiswap-orderbook/pkg/orderbook"
)

// Payment is an asset-transfer intent. The engine never moves funds itself;
// settlements and refunds are handed to the TransferSink after the
// operation's batch has committed.
type Payment struct {
	Address common.Address `json:"address"`
	Asset   asset.Asset    `json:"asset"`
}

// TransferSink receives the transfer intents of a committed operation.
type TransferSink interface {
	Transfer(p Payment)
}

// NopSink discards every intent. Useful for tests and tooling.
type NopSink struct{}

func (NopSink) Transfer(Payment) {}

// SinkFunc adapts a function to the TransferSink interface.
type SinkFunc func(Payment)

func (f SinkFunc) Transfer(p Payment) { f(p) }

// MatchedOrder is one order touched by a matching round, with the amounts
// filled in that round.
type MatchedOrder struct {
	Order            orderbook.Order `json:"order"`
	FilledOfferRound decimal.Decimal `json:"filled_offer_this_round"`
	FilledAskRound   decimal.Decimal `json:"filled_ask_this_round"`
}

// MatchResult reports what one submit operation did to the book.
type MatchResult struct {
	OrderID uint64 `json:"order_id"`
	// Taker is the incoming order after matching; nil when nothing crossed.
	Taker *MatchedOrder `json:"taker,omitempty"`
	// Makers are the resting orders consumed, in match order.
	Makers []MatchedOrder `json:"makers,omitempty"`
	// Payments are the settlement and refund intents of the round.
	Payments []Payment `json:"payments,omitempty"`
	// RefundAmount is the unmatched remainder returned to a market-order
	// bidder; zero for limit orders.
	RefundAmount decimal.Decimal `json:"refund_amount"`
}

// SimulationResult is the outcome of a hypothetical market order.
type SimulationResult struct {
	Receive decimal.Decimal `json:"receive"`
	Refunds decimal.Decimal `json:"refunds"`
}
