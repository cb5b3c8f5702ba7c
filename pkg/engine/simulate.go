package engine

import (
	"github.com/shopspring/decimal"

	"github.com/oraichain/oraiswap-orderbook/pkg/asset"
	"github.com/oraichain/oraiswap-orderbook/pkg/orderbook"
	"github.com/oraichain/oraiswap-orderbook/pkg/storage"
)

// SimulateMarketOrder runs the market-order matching walk against a
// read-only snapshot and reports what the caller would receive and what
// would come back as refund. Nothing is written: the same inputs against
// the same book state yield the same result as SubmitMarketOrder.
func (e *Engine) SimulateMarketOrder(direction orderbook.Direction, base, quote asset.Info, offerAmount decimal.Decimal, slippage *decimal.Decimal) (SimulationResult, error) {
	if !direction.Valid() {
		return SimulationResult{}, orderbook.ErrInvalidDirection
	}
	if !offerAmount.IsPositive() {
		return SimulationResult{}, orderbook.ErrAmountMustBePositive
	}

	var sim SimulationResult
	err := e.store.View(func(r storage.Reader) error {
		book, pair, err := resolveBook(r, base, quote)
		if err != nil {
			return err
		}
		bound := book.SlippageOrDefault(slippage)
		if bound.GreaterThanOrEqual(one) {
			return orderbook.ErrSlippageTooLarge
		}
		_, threshold, maxAsk, err := marketPriceInfo(r, pair, direction, offerAmount, bound)
		if err != nil {
			return err
		}
		if !maxAsk.IsPositive() {
			return orderbook.ErrAmountMustBePositive
		}
		phantom := orderbook.Order{
			Status:            orderbook.Open,
			Direction:         direction,
			OfferAmount:       offerAmount,
			AskAmount:         maxAsk,
			FilledOfferAmount: decimal.Zero,
			FilledAskAmount:   decimal.Zero,
		}
		taker, _, err := matchWalk(r, &book, pair, phantom, threshold)
		if err != nil {
			return err
		}
		refunds, err := orderbook.CheckedSub(offerAmount, taker.Order.FilledOfferAmount)
		if err != nil {
			return err
		}
		sim = SimulationResult{
			Receive: taker.Order.FilledAskAmount,
			Refunds: refunds,
		}
		return nil
	})
	if err != nil {
		return SimulationResult{}, err
	}
	return sim, nil
}
