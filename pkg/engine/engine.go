package engine

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/oraichain/oraiswap-orderbook/pkg/asset"
	"github.com/oraichain/oraiswap-orderbook/pkg/orderbook"
	"github.com/oraichain/oraiswap-orderbook/pkg/storage"
)

var one = decimal.NewFromInt(1)

// Engine executes order-book operations against the store. Operations are
// strictly serialized: each one runs to completion inside a single atomic
// batch, so either all of its mutations land or none do. Transfer intents
// (settlements, refunds) are handed to the sink only after the batch has
// committed.
type Engine struct {
	mu    sync.Mutex
	store *storage.Store
	sink  TransferSink
	log   *zap.SugaredLogger
}

func New(store *storage.Store, sink TransferSink, log *zap.Logger) *Engine {
	if sink == nil {
		sink = NopSink{}
	}
	return &Engine{store: store, sink: sink, log: log.Sugar()}
}

// resolveBook loads the pair configuration for two assets in either order.
func resolveBook(r storage.Reader, a, b asset.Info) (orderbook.Book, []byte, error) {
	pair := asset.PairKey(a, b)
	book, err := storage.GetBook(r, pair)
	if err != nil {
		return orderbook.Book{}, nil, fmt.Errorf("%w: %s / %s", err, a, b)
	}
	return book, pair, nil
}

// ---------------------------------------------------------------------------
// Pair administration
// ---------------------------------------------------------------------------

// CreatePair registers a new order book. The pair key is canonical, so
// (A,B) and (B,A) collide as intended.
func (e *Engine) CreatePair(book orderbook.Book) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := book.BaseInfo.Validate(); err != nil {
		return err
	}
	if err := book.QuoteInfo.Validate(); err != nil {
		return err
	}
	if book.BaseInfo.Equal(book.QuoteInfo) {
		return fmt.Errorf("base and quote assets are identical: %s", book.BaseInfo)
	}
	err := e.store.Update(func(w storage.Writer) error {
		if _, err := storage.GetBook(w, book.PairKey()); err == nil {
			return fmt.Errorf("%w: %s / %s", orderbook.ErrPairExists, book.BaseInfo, book.QuoteInfo)
		}
		return storage.PutBook(w, &book)
	})
	if err != nil {
		return err
	}
	e.log.Infow("pair_created", "base", book.BaseInfo.String(), "quote", book.QuoteInfo.String())
	return nil
}

// UpdatePairConfig replaces the mutable threshold configuration of a pair.
func (e *Engine) UpdatePairConfig(base, quote asset.Info, apply func(*orderbook.Book)) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.store.Update(func(w storage.Writer) error {
		book, _, err := resolveBook(w, base, quote)
		if err != nil {
			return err
		}
		apply(&book)
		return storage.PutBook(w, &book)
	})
}

// RemovePair deletes a pair configuration. The book must have drained
// first: removal with resting orders would strand their funds.
func (e *Engine) RemovePair(base, quote asset.Info) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.store.Update(func(w storage.Writer) error {
		_, pair, err := resolveBook(w, base, quote)
		if err != nil {
			return err
		}
		occupied, err := storage.HasOrders(w, pair)
		if err != nil {
			return err
		}
		if occupied {
			return fmt.Errorf("%w: %s / %s", orderbook.ErrPairNotEmpty, base, quote)
		}
		return storage.DeleteBook(w, pair)
	})
	if err != nil {
		return err
	}
	e.log.Infow("pair_removed", "base", base.String(), "quote", quote.String())
	return nil
}

// ---------------------------------------------------------------------------
// Order operations
// ---------------------------------------------------------------------------

// SubmitOrder places a limit order: the order is inserted first, then
// matched against the opposite side if its price crosses the opposite best.
// Whatever the matching loop leaves unfilled keeps resting on the book.
func (e *Engine) SubmitOrder(bidder common.Address, direction orderbook.Direction, offerAsset, askAsset asset.Asset) (uint64, *MatchResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !direction.Valid() {
		return 0, nil, orderbook.ErrInvalidDirection
	}
	if !offerAsset.Amount.IsPositive() || !askAsset.Amount.IsPositive() {
		return 0, nil, orderbook.ErrAmountMustBePositive
	}

	var (
		orderID uint64
		result  *MatchResult
	)
	err := e.store.Update(func(w storage.Writer) error {
		book, pair, err := resolveBook(w, offerAsset.Info, askAsset.Info)
		if err != nil {
			return err
		}
		if !book.OfferInfo(direction).Equal(offerAsset.Info) {
			return fmt.Errorf("%s order must offer %s, got %s",
				direction, book.OfferInfo(direction), offerAsset.Info)
		}
		quoteAmount := offerAsset.Amount
		if direction == orderbook.Sell {
			quoteAmount = askAsset.Amount
		}
		if quoteAmount.LessThan(book.MinQuoteAmount) {
			return fmt.Errorf("%w: %s < %s", orderbook.ErrBelowMinQuoteAmount, quoteAmount, book.MinQuoteAmount)
		}

		orderID, err = storage.NextOrderID(w)
		if err != nil {
			return err
		}
		order := orderbook.Order{
			OrderID:           orderID,
			Status:            orderbook.Open,
			Direction:         direction,
			Bidder:            bidder,
			OfferAmount:       offerAsset.Amount,
			AskAmount:         askAsset.Amount,
			FilledOfferAmount: decimal.Zero,
			FilledAskAmount:   decimal.Zero,
		}
		if err := storage.InsertOrder(w, pair, &order); err != nil {
			return err
		}

		price := order.Price()
		marketable, err := e.crossesOppositeBest(w, pair, direction, price)
		if err != nil {
			return err
		}
		if !marketable {
			return nil
		}
		result, err = e.runMatching(w, &book, pair, orderID, price)
		return err
	})
	if err != nil {
		return 0, nil, err
	}

	e.dispatch(result)
	e.log.Infow("order_submitted",
		"order_id", orderID,
		"order_type", "limit",
		"direction", direction.String(),
		"bidder", bidder.Hex(),
		"offer_asset", offerAsset.String(),
		"ask_asset", askAsset.String(),
		"matched", result != nil && len(result.Makers) > 0,
	)
	return orderID, result, nil
}

// SubmitMarketOrder executes against the opposite side immediately, walking
// at most slippage away from the current best price. The order never rests:
// the unmatched remainder is refunded in full.
func (e *Engine) SubmitMarketOrder(bidder common.Address, direction orderbook.Direction, base, quote asset.Info, offerAmount decimal.Decimal, slippage *decimal.Decimal) (uint64, *MatchResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !direction.Valid() {
		return 0, nil, orderbook.ErrInvalidDirection
	}
	if !offerAmount.IsPositive() {
		return 0, nil, orderbook.ErrAmountMustBePositive
	}

	var (
		orderID uint64
		result  *MatchResult
	)
	err := e.store.Update(func(w storage.Writer) error {
		book, pair, err := resolveBook(w, base, quote)
		if err != nil {
			return err
		}
		bound := book.SlippageOrDefault(slippage)
		if bound.GreaterThanOrEqual(one) {
			return fmt.Errorf("%w: %s", orderbook.ErrSlippageTooLarge, bound)
		}
		_, threshold, maxAsk, err := marketPriceInfo(w, pair, direction, offerAmount, bound)
		if err != nil {
			return err
		}
		if !maxAsk.IsPositive() {
			// The offer buys less than one unit at the best price.
			return fmt.Errorf("%w: %s buys nothing at the best price", orderbook.ErrAmountMustBePositive, offerAmount)
		}

		orderID, err = storage.NextOrderID(w)
		if err != nil {
			return err
		}
		order := orderbook.Order{
			OrderID:           orderID,
			Status:            orderbook.Open,
			Direction:         direction,
			Bidder:            bidder,
			OfferAmount:       offerAmount,
			AskAmount:         maxAsk,
			FilledOfferAmount: decimal.Zero,
			FilledAskAmount:   decimal.Zero,
		}
		if err := storage.InsertOrder(w, pair, &order); err != nil {
			return err
		}

		result, err = e.runMatching(w, &book, pair, orderID, threshold)
		if err != nil {
			return err
		}
		if result == nil {
			result = &MatchResult{OrderID: orderID, RefundAmount: decimal.Zero}
		}

		// Market orders never rest: whatever survived matching is removed
		// and its remaining offer refunded. A fulfilled taker is already
		// gone from the store.
		leftover, err := storage.GetOrder(w, pair, orderID)
		if err != nil {
			if errors.Is(err, orderbook.ErrOrderNotFound) {
				return nil
			}
			return err
		}
		remaining, err := leftover.RemainingOffer()
		if err != nil {
			return err
		}
		if err := storage.RemoveOrder(w, pair, &leftover); err != nil {
			return err
		}
		if remaining.IsPositive() {
			result.RefundAmount = remaining
			result.Payments = append(result.Payments, Payment{
				Address: bidder,
				Asset:   asset.NewAsset(book.OfferInfo(direction), remaining),
			})
		}
		return nil
	})
	if err != nil {
		return 0, nil, err
	}

	e.dispatch(result)
	e.log.Infow("order_submitted",
		"order_id", orderID,
		"order_type", "market",
		"direction", direction.String(),
		"bidder", bidder.Hex(),
		"offer_amount", offerAmount.String(),
		"refund_amount", result.RefundAmount.String(),
	)
	return orderID, result, nil
}

// CancelOrder removes a resting order. Only the owning bidder may cancel,
// and only while the order rests; matched-away or already-cancelled orders
// are gone from the store and report OrderNotFound.
func (e *Engine) CancelOrder(bidder common.Address, a, b asset.Info, orderID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var refund *Payment
	err := e.store.Update(func(w storage.Writer) error {
		book, pair, err := resolveBook(w, a, b)
		if err != nil {
			return err
		}
		order, err := storage.GetOrder(w, pair, orderID)
		if err != nil {
			return err
		}
		if order.Bidder != bidder {
			return fmt.Errorf("%w: order %d belongs to %s", orderbook.ErrUnauthorized, orderID, order.Bidder.Hex())
		}
		remaining, err := order.RemainingOffer()
		if err != nil {
			return err
		}
		if err := storage.RemoveOrder(w, pair, &order); err != nil {
			return err
		}
		if remaining.IsPositive() {
			refund = &Payment{
				Address: bidder,
				Asset:   asset.NewAsset(book.OfferInfo(order.Direction), remaining),
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if refund != nil {
		e.sink.Transfer(*refund)
	}
	e.log.Infow("order_cancelled", "order_id", orderID, "bidder", bidder.Hex())
	return nil
}

// ---------------------------------------------------------------------------
// Matching plumbing
// ---------------------------------------------------------------------------

// crossesOppositeBest reports whether a limit order at price is marketable:
// a buy crosses when some sell rests at or below it, a sell when some buy
// rests at or above it.
func (e *Engine) crossesOppositeBest(r storage.Reader, pair []byte, direction orderbook.Direction, price decimal.Decimal) (bool, error) {
	switch direction {
	case orderbook.Buy:
		lowestSell, _, found, err := storage.BestPrice(r, pair, orderbook.Sell, orderbook.Ascending)
		if err != nil || !found {
			return false, err
		}
		return lowestSell.LessThanOrEqual(price), nil
	case orderbook.Sell:
		highestBuy, _, found, err := storage.BestPrice(r, pair, orderbook.Buy, orderbook.Descending)
		if err != nil || !found {
			return false, err
		}
		return highestBuy.GreaterThanOrEqual(price), nil
	}
	return false, orderbook.ErrInvalidDirection
}

// marketPriceInfo derives the slippage-bounded execution parameters of a
// market order from the opposite best price: the walk threshold
// best×(1±slippage) and the maximum receivable ask amount at best price.
func marketPriceInfo(r storage.Reader, pair []byte, direction orderbook.Direction, offerAmount, slippage decimal.Decimal) (best, threshold, maxAsk decimal.Decimal, err error) {
	switch direction {
	case orderbook.Buy:
		lowestSell, _, found, err := storage.BestPrice(r, pair, orderbook.Sell, orderbook.Ascending)
		if err != nil {
			return decimal.Zero, decimal.Zero, decimal.Zero, err
		}
		if !found {
			return decimal.Zero, decimal.Zero, decimal.Zero, orderbook.ErrNoMatchedPrice
		}
		return lowestSell,
			lowestSell.Mul(one.Add(slippage)),
			orderbook.FloorDiv(offerAmount, lowestSell),
			nil
	case orderbook.Sell:
		highestBuy, _, found, err := storage.BestPrice(r, pair, orderbook.Buy, orderbook.Descending)
		if err != nil {
			return decimal.Zero, decimal.Zero, decimal.Zero, err
		}
		if !found {
			return decimal.Zero, decimal.Zero, decimal.Zero, orderbook.ErrNoMatchedPrice
		}
		return highestBuy,
			highestBuy.Mul(one.Sub(slippage)),
			offerAmount.Mul(highestBuy).Floor(),
			nil
	}
	return decimal.Zero, decimal.Zero, decimal.Zero, orderbook.ErrInvalidDirection
}

// runMatching walks the opposite side for the stored order orderID and, if
// anything crossed, applies the fills inside the caller's batch. Returns
// nil when nothing matched.
func (e *Engine) runMatching(w storage.Writer, book *orderbook.Book, pair []byte, orderID uint64, limitPrice decimal.Decimal) (*MatchResult, error) {
	order, err := storage.GetOrder(w, pair, orderID)
	if err != nil {
		return nil, err
	}
	taker, makers, err := matchWalk(w, book, pair, order, limitPrice)
	if err != nil {
		return nil, err
	}
	if len(makers) == 0 {
		return nil, nil
	}
	result, err := applyMatching(w, book, pair, taker, makers)
	if err != nil {
		return nil, err
	}
	e.log.Infow("orders_matched",
		"order_id", orderID,
		"makers", len(makers),
		"filled_ask", taker.FilledAskRound.String(),
		"filled_offer", taker.FilledOfferRound.String(),
	)
	return result, nil
}

// dispatch hands the committed round's transfer intents to the sink. Intents
// to the same address and asset are coalesced into one transfer, in the order
// the round produced them.
func (e *Engine) dispatch(result *MatchResult) {
	if result == nil {
		return
	}
	type party struct {
		addr  common.Address
		asset string
	}
	seen := make(map[party]int)
	merged := make([]Payment, 0, len(result.Payments))
	for _, p := range result.Payments {
		k := party{p.Address, string(p.Asset.Info.Key())}
		if i, ok := seen[k]; ok {
			merged[i].Asset.Amount = merged[i].Asset.Amount.Add(p.Asset.Amount)
			continue
		}
		seen[k] = len(merged)
		merged = append(merged, p)
	}
	for _, p := range merged {
		e.sink.Transfer(p)
	}
}
