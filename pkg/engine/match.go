package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/oraichain/oraiswap-orderbook/pkg/asset"
	"github.com/oraichain/oraiswap-orderbook/pkg/orderbook"
	"github.com/oraichain/oraiswap-orderbook/pkg/storage"
)

// matchWalk crosses the incoming order against the opposite side of the
// book, filling copies in memory and mutating nothing. A buy walks the sell
// ticks upward from the lowest price, a sell walks the buy ticks downward
// from the highest; limitPrice bounds the walk (the order's own price for a
// limit order, the slippage threshold for a market order). Within a tick,
// resting orders fill strictly FIFO by ascending order id.
//
// The simulation query rides this exact walk, so a simulated outcome equals
// the execution outcome for the same book state.
func matchWalk(r storage.Reader, book *orderbook.Book, pair []byte, incoming orderbook.Order, limitPrice decimal.Decimal) (MatchedOrder, []MatchedOrder, error) {
	oppositeDir := incoming.Direction.Opposite()
	scanBy := orderbook.Ascending
	if incoming.Direction == orderbook.Sell {
		scanBy = orderbook.Descending
	}

	minAsk, minOffer := book.FulfillThresholds(incoming.Direction)

	taker := MatchedOrder{Order: incoming, FilledOfferRound: decimal.Zero, FilledAskRound: decimal.Zero}
	var makers []MatchedOrder

	err := storage.WalkTicks(r, pair, oppositeDir, scanBy, func(tickPrice decimal.Decimal, _ uint64) (bool, error) {
		if incoming.Direction == orderbook.Buy && limitPrice.LessThan(tickPrice) {
			return false, nil
		}
		if incoming.Direction == orderbook.Sell && limitPrice.GreaterThan(tickPrice) {
			return false, nil
		}
		if taker.Order.Status == orderbook.Fulfilled {
			return false, nil
		}

		resting, err := storage.OrdersAtPrice(r, pair, tickPrice, oppositeDir)
		if err != nil {
			return false, err
		}
		for i := range resting {
			if taker.Order.Status == orderbook.Fulfilled {
				break
			}
			maker := MatchedOrder{Order: resting[i]}
			if err := crossOrders(&taker, &maker, tickPrice, minAsk, minOffer); err != nil {
				return false, err
			}
			if maker.FilledOfferRound.IsZero() && maker.FilledAskRound.IsZero() {
				continue
			}
			makers = append(makers, maker)
		}
		return true, nil
	})
	if err != nil {
		return MatchedOrder{}, nil, err
	}

	if len(makers) > 0 {
		// Force-close a dust remainder the last fill may have left behind.
		taker.Order.Reassess(minAsk, minOffer)
	}
	return taker, makers, nil
}

// crossOrders fills the taker against one resting maker at the maker's tick
// price. The matchable ask is capped by what the taker still wants and what
// the maker can still supply; the offer side converts through the tick
// price and is re-capped symmetrically, recomputing the ask when the cap
// binds.
func crossOrders(taker, maker *MatchedOrder, tickPrice, minAsk, minOffer decimal.Decimal) error {
	takerAskLeft, err := taker.Order.RemainingAsk()
	if err != nil {
		return err
	}
	takerOfferLeft, err := taker.Order.RemainingOffer()
	if err != nil {
		return err
	}
	makerOfferLeft, err := maker.Order.RemainingOffer()
	if err != nil {
		return err
	}
	makerAskLeft, err := maker.Order.RemainingAsk()
	if err != nil {
		return err
	}

	askAmount := decimal.Min(takerAskLeft, makerOfferLeft)
	offerAmount := convertAsk(taker.Order.Direction, askAmount, tickPrice)

	if offerCap := decimal.Min(takerOfferLeft, makerAskLeft); offerAmount.GreaterThan(offerCap) {
		offerAmount = offerCap
		askAmount = convertOffer(taker.Order.Direction, offerAmount, tickPrice)
	}
	if askAmount.IsZero() && offerAmount.IsZero() {
		return nil
	}

	// The maker sits on the opposite side, so its deltas and thresholds are
	// the taker's mirrored.
	if err := maker.Order.Fill(offerAmount, askAmount, minOffer, minAsk); err != nil {
		return err
	}
	if err := taker.Order.Fill(askAmount, offerAmount, minAsk, minOffer); err != nil {
		return err
	}
	maker.FilledOfferRound = maker.FilledOfferRound.Add(askAmount)
	maker.FilledAskRound = maker.FilledAskRound.Add(offerAmount)
	taker.FilledOfferRound = taker.FilledOfferRound.Add(offerAmount)
	taker.FilledAskRound = taker.FilledAskRound.Add(askAmount)
	return nil
}

// convertAsk turns an ask-side amount into its offer-side cost at the tick
// price, truncating toward zero.
func convertAsk(d orderbook.Direction, askAmount, tickPrice decimal.Decimal) decimal.Decimal {
	if d == orderbook.Buy {
		return askAmount.Mul(tickPrice).Floor()
	}
	return orderbook.FloorDiv(askAmount, tickPrice)
}

func convertOffer(d orderbook.Direction, offerAmount, tickPrice decimal.Decimal) decimal.Decimal {
	if d == orderbook.Buy {
		return orderbook.FloorDiv(offerAmount, tickPrice)
	}
	return offerAmount.Mul(tickPrice).Floor()
}

// applyMatching persists the outcome of a walk and collects the round's
// transfer intents. Every touched order that left Open is either removed
// (Fulfilled, with its leftover refunded above the pair threshold) or has
// its updated record stored (PartialFilled). All of it rides the caller's
// batch, so it commits atomically with the rest of the operation.
func applyMatching(w storage.Writer, book *orderbook.Book, pair []byte, taker MatchedOrder, makers []MatchedOrder) (*MatchResult, error) {
	result := &MatchResult{
		OrderID:      taker.Order.OrderID,
		Taker:        &taker,
		Makers:       makers,
		RefundAmount: decimal.Zero,
	}

	touched := append(append([]MatchedOrder{}, makers...), taker)
	for i := range touched {
		mo := &touched[i]

		// Settlement: this round's ask-side fill goes to the bidder.
		if mo.FilledAskRound.IsPositive() && mo.FilledOfferRound.IsPositive() {
			result.Payments = append(result.Payments, Payment{
				Address: mo.Order.Bidder,
				Asset:   asset.NewAsset(book.AskInfo(mo.Order.Direction), mo.FilledAskRound),
			})
		}

		if mo.Order.Status == orderbook.Open {
			continue
		}
		if mo.Order.Status == orderbook.Fulfilled {
			remaining, err := mo.Order.RemainingOffer()
			if err != nil {
				return nil, err
			}
			if err := storage.RemoveOrder(w, pair, &mo.Order); err != nil {
				return nil, fmt.Errorf("remove fulfilled order %d: %w", mo.Order.OrderID, err)
			}
			// Leftovers below the refund threshold are dropped, not paid out.
			if remaining.IsPositive() && remaining.GreaterThanOrEqual(book.RefundThresholdFor(&mo.Order)) {
				result.Payments = append(result.Payments, Payment{
					Address: mo.Order.Bidder,
					Asset:   asset.NewAsset(book.OfferInfo(mo.Order.Direction), remaining),
				})
			}
			continue
		}
		if err := storage.UpdateOrder(w, pair, &mo.Order); err != nil {
			return nil, fmt.Errorf("update order %d: %w", mo.Order.OrderID, err)
		}
	}
	return result, nil
}
