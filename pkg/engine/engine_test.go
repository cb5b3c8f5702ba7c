package engine_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oraichain/oraiswap-orderbook/pkg/asset"
	"github.com/oraichain/oraiswap-orderbook/pkg/engine"
	"github.com/oraichain/oraiswap-orderbook/pkg/orderbook"
	"github.com/oraichain/oraiswap-orderbook/pkg/storage"
)

var (
	alice = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	bob   = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	carol = common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
	dave  = common.HexToAddress("0xdddddddddddddddddddddddddddddddddddddddd")

	base  = asset.NativeInfo("orai")
	quote = asset.NativeInfo("usdt")
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// captureSink records every transfer intent the engine dispatches.
type captureSink struct {
	payments []engine.Payment
}

func (c *captureSink) Transfer(p engine.Payment) {
	c.payments = append(c.payments, p)
}

func (c *captureSink) total(addr common.Address, info asset.Info) decimal.Decimal {
	sum := decimal.Zero
	for _, p := range c.payments {
		if p.Address == addr && p.Asset.Info.Equal(info) {
			sum = sum.Add(p.Asset.Amount)
		}
	}
	return sum
}

func newEngine(t *testing.T) (*engine.Engine, *captureSink) {
	t.Helper()
	store, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	sink := &captureSink{}
	eng := engine.New(store, sink, zap.NewNop())
	require.NoError(t, eng.CreatePair(orderbook.NewBook(base, quote, nil, decimal.Zero)))
	return eng, sink
}

// submitLimit places a limit order with amounts derived from price and the
// base quantity, the way a UI would.
func submitLimit(t *testing.T, eng *engine.Engine, bidder common.Address, dir orderbook.Direction, price, baseAmount string) (uint64, *engine.MatchResult) {
	t.Helper()
	p, q := dec(price), dec(baseAmount)
	var id uint64
	var res *engine.MatchResult
	var err error
	switch dir {
	case orderbook.Buy:
		// offer quote, ask base
		id, res, err = eng.SubmitOrder(bidder, dir,
			asset.NewAsset(quote, q.Mul(p)), asset.NewAsset(base, q))
	case orderbook.Sell:
		// offer base, ask quote
		id, res, err = eng.SubmitOrder(bidder, dir,
			asset.NewAsset(base, q), asset.NewAsset(quote, q.Mul(p)))
	}
	require.NoError(t, err)
	return id, res
}

func TestPairLifecycle(t *testing.T) {
	eng, _ := newEngine(t)

	err := eng.CreatePair(orderbook.NewBook(base, quote, nil, decimal.Zero))
	require.ErrorIs(t, err, orderbook.ErrPairExists)

	err = eng.CreatePair(orderbook.NewBook(quote, base, nil, decimal.Zero))
	require.ErrorIs(t, err, orderbook.ErrPairExists, "pair identity must be order-insensitive")

	id, _ := submitLimit(t, eng, alice, orderbook.Sell, "2", "100")
	require.ErrorIs(t, eng.RemovePair(base, quote), orderbook.ErrPairNotEmpty)

	require.NoError(t, eng.CancelOrder(alice, base, quote, id))
	require.NoError(t, eng.RemovePair(base, quote))

	_, err = eng.QueryBook(base, quote)
	require.ErrorIs(t, err, orderbook.ErrPairNotFound)
}

func TestSubmitOrderValidation(t *testing.T) {
	eng, _ := newEngine(t)

	_, _, err := eng.SubmitOrder(alice, orderbook.Buy,
		asset.NewAsset(quote, decimal.Zero), asset.NewAsset(base, dec("100")))
	require.ErrorIs(t, err, orderbook.ErrAmountMustBePositive)

	// A buyer must offer the quote asset.
	_, _, err = eng.SubmitOrder(alice, orderbook.Buy,
		asset.NewAsset(base, dec("100")), asset.NewAsset(quote, dec("200")))
	require.Error(t, err)

	_, _, err = eng.SubmitOrder(alice, orderbook.Buy,
		asset.NewAsset(asset.NativeInfo("atom"), dec("100")), asset.NewAsset(base, dec("100")))
	require.ErrorIs(t, err, orderbook.ErrPairNotFound)
}

func TestMinQuoteAmountEnforced(t *testing.T) {
	store, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	eng := engine.New(store, nil, zap.NewNop())
	require.NoError(t, eng.CreatePair(orderbook.NewBook(base, quote, nil, dec("100"))))

	// Buy offers 50 quote, below the floor.
	_, _, err = eng.SubmitOrder(alice, orderbook.Buy,
		asset.NewAsset(quote, dec("50")), asset.NewAsset(base, dec("25")))
	require.ErrorIs(t, err, orderbook.ErrBelowMinQuoteAmount)

	// Sell asks 50 quote, same floor applies to the quote side.
	_, _, err = eng.SubmitOrder(alice, orderbook.Sell,
		asset.NewAsset(base, dec("25")), asset.NewAsset(quote, dec("50")))
	require.ErrorIs(t, err, orderbook.ErrBelowMinQuoteAmount)

	// At the floor it goes through.
	_, _, err = eng.SubmitOrder(alice, orderbook.Buy,
		asset.NewAsset(quote, dec("100")), asset.NewAsset(base, dec("50")))
	require.NoError(t, err)
}

func TestLimitOrderRestsWhenNotCrossing(t *testing.T) {
	eng, _ := newEngine(t)

	submitLimit(t, eng, alice, orderbook.Sell, "2", "100")
	_, res := submitLimit(t, eng, bob, orderbook.Buy, "1.5", "100")
	require.Nil(t, res, "a bid below the best ask must rest untouched")

	buys, err := eng.QueryTicks(base, quote, orderbook.Buy, nil, nil, 10, orderbook.Descending)
	require.NoError(t, err)
	require.Len(t, buys, 1)
	require.True(t, buys[0].Price.Equal(dec("1.5")))

	sells, err := eng.QueryTicks(base, quote, orderbook.Sell, nil, nil, 10, orderbook.Ascending)
	require.NoError(t, err)
	require.Len(t, sells, 1)
	require.True(t, sells[0].Price.Equal(dec("2")))
}

func TestLimitOrderFullMatch(t *testing.T) {
	eng, sink := newEngine(t)

	sellID, res := submitLimit(t, eng, alice, orderbook.Sell, "2", "100")
	require.Nil(t, res)

	buyID, res := submitLimit(t, eng, bob, orderbook.Buy, "2", "100")
	require.NotNil(t, res)
	require.Len(t, res.Makers, 1)
	require.Equal(t, sellID, res.Makers[0].Order.OrderID)
	require.Equal(t, orderbook.Fulfilled, res.Makers[0].Order.Status)
	require.Equal(t, orderbook.Fulfilled, res.Taker.Order.Status)

	// Seller receives 200 quote, buyer 100 base.
	require.True(t, sink.total(alice, quote).Equal(dec("200")))
	require.True(t, sink.total(bob, base).Equal(dec("100")))

	// Both orders left the book entirely.
	_, err := eng.QueryOrder(base, quote, sellID)
	require.ErrorIs(t, err, orderbook.ErrOrderNotFound)
	_, err = eng.QueryOrder(base, quote, buyID)
	require.ErrorIs(t, err, orderbook.ErrOrderNotFound)

	sells, err := eng.QueryTicks(base, quote, orderbook.Sell, nil, nil, 10, orderbook.Ascending)
	require.NoError(t, err)
	require.Empty(t, sells)
	buys, err := eng.QueryTicks(base, quote, orderbook.Buy, nil, nil, 10, orderbook.Ascending)
	require.NoError(t, err)
	require.Empty(t, buys)
}

func TestSettlementsCoalescePerParty(t *testing.T) {
	eng, sink := newEngine(t)

	// Alice rests twice at the same price; one taker consumes both, so the
	// round produces two settlement intents for her.
	submitLimit(t, eng, alice, orderbook.Sell, "2", "50")
	submitLimit(t, eng, alice, orderbook.Sell, "2", "50")

	_, res := submitLimit(t, eng, bob, orderbook.Buy, "2", "100")
	require.NotNil(t, res)
	require.Len(t, res.Makers, 2)

	var aliceQuote []engine.Payment
	for _, p := range sink.payments {
		if p.Address == alice && p.Asset.Info.Equal(quote) {
			aliceQuote = append(aliceQuote, p)
		}
	}
	require.Len(t, aliceQuote, 1, "intents to one party and asset merge into a single transfer")
	require.True(t, aliceQuote[0].Asset.Amount.Equal(dec("200")))
}

func TestPartialFillConsumesMakersFIFO(t *testing.T) {
	eng, sink := newEngine(t)

	firstID, _ := submitLimit(t, eng, alice, orderbook.Sell, "2", "50")
	secondID, _ := submitLimit(t, eng, carol, orderbook.Sell, "2", "100")

	// Bob takes 60 base: 50 from the older order, 10 from the newer one.
	_, res := submitLimit(t, eng, bob, orderbook.Buy, "2", "60")
	require.NotNil(t, res)
	require.Len(t, res.Makers, 2)
	require.Equal(t, firstID, res.Makers[0].Order.OrderID, "older order fills first")
	require.Equal(t, orderbook.Fulfilled, res.Makers[0].Order.Status)
	require.Equal(t, secondID, res.Makers[1].Order.OrderID)
	require.Equal(t, orderbook.PartialFilled, res.Makers[1].Order.Status)
	require.Equal(t, orderbook.Fulfilled, res.Taker.Order.Status)

	// Carol's order keeps resting with its fills recorded.
	carolOrder, err := eng.QueryOrder(base, quote, secondID)
	require.NoError(t, err)
	require.Equal(t, orderbook.PartialFilled, carolOrder.Status)
	require.True(t, carolOrder.FilledOfferAmount.Equal(dec("10")), "got %s", carolOrder.FilledOfferAmount)
	require.True(t, carolOrder.FilledAskAmount.Equal(dec("20")), "got %s", carolOrder.FilledAskAmount)

	require.True(t, sink.total(alice, quote).Equal(dec("100")))
	require.True(t, sink.total(carol, quote).Equal(dec("20")))
	require.True(t, sink.total(bob, base).Equal(dec("60")))
}

func TestSellIntoRestingBuyDepletesTick(t *testing.T) {
	eng, _ := newEngine(t)

	// A lone buy rests at 10 with 100 base wanted.
	buyID, res := submitLimit(t, eng, bob, orderbook.Buy, "10", "100")
	require.Nil(t, res)
	buys, err := eng.QueryTicks(base, quote, orderbook.Buy, nil, nil, 10, orderbook.Descending)
	require.NoError(t, err)
	require.Len(t, buys, 1)
	require.Equal(t, uint64(1), buys[0].TotalOrders)

	// A sell of 50 base fulfills itself and half-fills the buy; the buy keeps
	// resting, so its tick survives.
	_, res = submitLimit(t, eng, alice, orderbook.Sell, "10", "50")
	require.NotNil(t, res)
	require.Equal(t, orderbook.Fulfilled, res.Taker.Order.Status)

	buyOrder, err := eng.QueryOrder(base, quote, buyID)
	require.NoError(t, err)
	require.Equal(t, orderbook.PartialFilled, buyOrder.Status)
	require.True(t, buyOrder.FilledAskAmount.Equal(dec("50")))

	buys, err = eng.QueryTicks(base, quote, orderbook.Buy, nil, nil, 10, orderbook.Descending)
	require.NoError(t, err)
	require.Len(t, buys, 1)
	require.Equal(t, uint64(1), buys[0].TotalOrders)

	// A second sell of 50 base drains the buy; the emptied tick disappears.
	_, res = submitLimit(t, eng, alice, orderbook.Sell, "10", "50")
	require.NotNil(t, res)
	require.Equal(t, orderbook.Fulfilled, res.Makers[0].Order.Status)

	_, err = eng.QueryOrder(base, quote, buyID)
	require.ErrorIs(t, err, orderbook.ErrOrderNotFound)
	buys, err = eng.QueryTicks(base, quote, orderbook.Buy, nil, nil, 10, orderbook.Descending)
	require.NoError(t, err)
	require.Empty(t, buys)
}

func TestMarketOrderWalksTicksWithinSlippage(t *testing.T) {
	eng, sink := newEngine(t)

	submitLimit(t, eng, alice, orderbook.Sell, "2", "100")
	daveID, _ := submitLimit(t, eng, dave, orderbook.Sell, "3", "100")

	slippage := dec("0.6") // threshold 2 * 1.6 = 3.2, both ticks reachable
	_, res, err := eng.SubmitMarketOrder(bob, orderbook.Buy, base, quote, dec("250"), &slippage)
	require.NoError(t, err)
	require.Len(t, res.Makers, 2)
	require.True(t, res.RefundAmount.IsZero())

	// 100 base at price 2 costs 200, the remaining 50 quote buys
	// floor(50/3) = 16 base at price 3.
	require.True(t, sink.total(bob, base).Equal(dec("116")), "got %s", sink.total(bob, base))
	require.True(t, sink.total(alice, quote).Equal(dec("200")))

	daveOrder, err := eng.QueryOrder(base, quote, daveID)
	require.NoError(t, err)
	require.Equal(t, orderbook.PartialFilled, daveOrder.Status)
	require.True(t, daveOrder.FilledOfferAmount.Equal(dec("16")))
	require.True(t, daveOrder.FilledAskAmount.Equal(dec("50")))
}

func TestMarketOrderSlippageBoundsWalk(t *testing.T) {
	eng, _ := newEngine(t)

	submitLimit(t, eng, alice, orderbook.Sell, "2", "100")
	submitLimit(t, eng, dave, orderbook.Sell, "3", "100")

	slippage := dec("0.1") // threshold 2.2, the tick at 3 is out of reach
	_, res, err := eng.SubmitMarketOrder(bob, orderbook.Buy, base, quote, dec("250"), &slippage)
	require.NoError(t, err)
	require.Len(t, res.Makers, 1)
	require.True(t, res.RefundAmount.Equal(dec("50")), "leftover past the bound comes back, got %s", res.RefundAmount)
}

func TestMarketOrderNeverRests(t *testing.T) {
	eng, sink := newEngine(t)

	submitLimit(t, eng, alice, orderbook.Sell, "2", "50")

	_, res, err := eng.SubmitMarketOrder(bob, orderbook.Buy, base, quote, dec("300"), nil)
	require.NoError(t, err)
	require.True(t, res.RefundAmount.Equal(dec("200")), "got %s", res.RefundAmount)
	require.True(t, sink.total(bob, quote).Equal(dec("200")), "the remainder is refunded in quote")
	require.True(t, sink.total(bob, base).Equal(dec("50")))

	buys, err := eng.QueryTicks(base, quote, orderbook.Buy, nil, nil, 10, orderbook.Ascending)
	require.NoError(t, err)
	require.Empty(t, buys, "a market order must leave nothing on its own side")
}

func TestMarketOrderRejections(t *testing.T) {
	eng, _ := newEngine(t)

	// Empty opposite side.
	_, _, err := eng.SubmitMarketOrder(bob, orderbook.Buy, base, quote, dec("100"), nil)
	require.ErrorIs(t, err, orderbook.ErrNoMatchedPrice)

	submitLimit(t, eng, alice, orderbook.Sell, "2", "100")

	one := dec("1")
	_, _, err = eng.SubmitMarketOrder(bob, orderbook.Buy, base, quote, dec("100"), &one)
	require.ErrorIs(t, err, orderbook.ErrSlippageTooLarge)

	_, _, err = eng.SubmitMarketOrder(bob, orderbook.Buy, base, quote, decimal.Zero, nil)
	require.ErrorIs(t, err, orderbook.ErrAmountMustBePositive)
}

func TestMarketSellUsesHighestBuy(t *testing.T) {
	eng, sink := newEngine(t)

	submitLimit(t, eng, bob, orderbook.Buy, "2", "100")
	submitLimit(t, eng, carol, orderbook.Buy, "1", "100")

	slippage := dec("0.6") // threshold 2 * 0.4 = 0.8, both ticks reachable
	_, res, err := eng.SubmitMarketOrder(alice, orderbook.Sell, base, quote, dec("150"), &slippage)
	require.NoError(t, err)
	require.Len(t, res.Makers, 2)

	// 100 base at price 2 yields 200 quote; maxAsk caps the walk at
	// 150 * 2 = 300 quote, so 50 base more go at price 1.
	require.True(t, sink.total(alice, quote).Equal(dec("250")), "got %s", sink.total(alice, quote))
	require.True(t, sink.total(bob, base).Equal(dec("100")))
	require.True(t, sink.total(carol, base).Equal(dec("50")))
}

func TestSimulationMatchesExecution(t *testing.T) {
	eng, sink := newEngine(t)

	submitLimit(t, eng, alice, orderbook.Sell, "2", "100")
	submitLimit(t, eng, dave, orderbook.Sell, "3", "100")

	slippage := dec("0.6")
	sim, err := eng.SimulateMarketOrder(orderbook.Buy, base, quote, dec("250"), &slippage)
	require.NoError(t, err)

	_, res, err := eng.SubmitMarketOrder(bob, orderbook.Buy, base, quote, dec("250"), &slippage)
	require.NoError(t, err)

	require.True(t, sim.Receive.Equal(sink.total(bob, base)),
		"simulated receive %s, executed %s", sim.Receive, sink.total(bob, base))
	require.True(t, sim.Refunds.Equal(res.RefundAmount),
		"simulated refund %s, executed %s", sim.Refunds, res.RefundAmount)
}

func TestSimulationMutatesNothing(t *testing.T) {
	eng, _ := newEngine(t)

	id, _ := submitLimit(t, eng, alice, orderbook.Sell, "2", "100")

	_, err := eng.SimulateMarketOrder(orderbook.Buy, base, quote, dec("100"), nil)
	require.NoError(t, err)

	order, err := eng.QueryOrder(base, quote, id)
	require.NoError(t, err)
	require.Equal(t, orderbook.Open, order.Status)
	require.True(t, order.FilledAskAmount.IsZero())

	last, err := eng.QueryLastOrderID()
	require.NoError(t, err)
	require.Equal(t, id, last, "simulation must not consume order ids")
}

func TestCancelOrder(t *testing.T) {
	eng, sink := newEngine(t)

	id, _ := submitLimit(t, eng, alice, orderbook.Sell, "2", "100")

	require.ErrorIs(t, eng.CancelOrder(bob, base, quote, id), orderbook.ErrUnauthorized)

	require.NoError(t, eng.CancelOrder(alice, base, quote, id))
	require.True(t, sink.total(alice, base).Equal(dec("100")), "cancellation refunds the unfilled offer")

	require.ErrorIs(t, eng.CancelOrder(alice, base, quote, id), orderbook.ErrOrderNotFound)

	sells, err := eng.QueryTicks(base, quote, orderbook.Sell, nil, nil, 10, orderbook.Ascending)
	require.NoError(t, err)
	require.Empty(t, sells)
}

func TestCancelRefundsOnlyUnfilledPart(t *testing.T) {
	eng, sink := newEngine(t)

	id, _ := submitLimit(t, eng, carol, orderbook.Sell, "2", "100")
	submitLimit(t, eng, bob, orderbook.Buy, "2", "40")

	require.NoError(t, eng.CancelOrder(carol, base, quote, id))
	require.True(t, sink.total(carol, base).Equal(dec("60")), "got %s", sink.total(carol, base))
}

func TestOrderIDsStrictlyIncrease(t *testing.T) {
	eng, _ := newEngine(t)

	id1, _ := submitLimit(t, eng, alice, orderbook.Sell, "2", "100")
	id2, _ := submitLimit(t, eng, carol, orderbook.Sell, "3", "100")
	require.Greater(t, id2, id1)

	// Matching away an order must not recycle its id.
	id3, _ := submitLimit(t, eng, bob, orderbook.Buy, "2", "100")
	require.Greater(t, id3, id2)

	last, err := eng.QueryLastOrderID()
	require.NoError(t, err)
	require.Equal(t, id3, last)
}
