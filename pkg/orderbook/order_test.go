package orderbook_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/oraichain/oraiswap-orderbook/pkg/orderbook"
)

var bidder = common.HexToAddress("0x1111111111111111111111111111111111111111")

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestNewOrderDerivesOffer(t *testing.T) {
	tests := []struct {
		name      string
		direction orderbook.Direction
		price     string
		ask       string
		wantOffer string
	}{
		{name: "buy whole price", direction: orderbook.Buy, price: "2", ask: "100", wantOffer: "200"},
		{name: "buy fractional price floors", direction: orderbook.Buy, price: "1.5", ask: "101", wantOffer: "151"},
		{name: "sell whole price", direction: orderbook.Sell, price: "2", ask: "200", wantOffer: "100"},
		{name: "sell division floors", direction: orderbook.Sell, price: "3", ask: "100", wantOffer: "33"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := orderbook.NewOrder(1, bidder, tt.direction, dec(tt.price), dec(tt.ask))
			require.NoError(t, err)
			require.True(t, o.OfferAmount.Equal(dec(tt.wantOffer)),
				"offer = %s, want %s", o.OfferAmount, tt.wantOffer)
			require.Equal(t, orderbook.Open, o.Status)
		})
	}
}

func TestNewOrderRejectsBadInput(t *testing.T) {
	_, err := orderbook.NewOrder(1, bidder, orderbook.Buy, decimal.Zero, dec("100"))
	require.ErrorIs(t, err, orderbook.ErrAmountMustBePositive)

	_, err = orderbook.NewOrder(1, bidder, orderbook.Buy, dec("2"), decimal.Zero)
	require.ErrorIs(t, err, orderbook.ErrAmountMustBePositive)

	_, err = orderbook.NewOrder(1, bidder, orderbook.Direction(9), dec("2"), dec("100"))
	require.ErrorIs(t, err, orderbook.ErrInvalidDirection)
}

func TestPriceRoundTrip(t *testing.T) {
	// For prices that divide the amounts exactly, the derived price must
	// reproduce the submitted one on both sides.
	for _, price := range []string{"2", "0.5", "1.25", "1000"} {
		buy, err := orderbook.NewOrder(1, bidder, orderbook.Buy, dec(price), dec("1000"))
		require.NoError(t, err)
		require.True(t, buy.Price().Equal(dec(price)), "buy price = %s, want %s", buy.Price(), price)

		sell, err := orderbook.NewOrder(2, bidder, orderbook.Sell, dec(price), dec("1000"))
		require.NoError(t, err)
		require.True(t, sell.Price().Equal(dec(price)), "sell price = %s, want %s", sell.Price(), price)
	}
}

func TestRatioPriceTruncates(t *testing.T) {
	got := orderbook.RatioPrice(dec("1"), dec("3"))
	require.True(t, got.Equal(dec("0.333333333333333333")), "got %s", got)
	require.True(t, got.Mul(dec("3")).LessThan(dec("1")), "truncation must round down")
}

func TestFloorDiv(t *testing.T) {
	require.True(t, orderbook.FloorDiv(dec("100"), dec("3")).Equal(dec("33")))
	require.True(t, orderbook.FloorDiv(dec("99"), dec("3")).Equal(dec("33")))
}

func TestCheckedSub(t *testing.T) {
	got, err := orderbook.CheckedSub(dec("5"), dec("3"))
	require.NoError(t, err)
	require.True(t, got.Equal(dec("2")))

	_, err = orderbook.CheckedSub(dec("3"), dec("5"))
	require.ErrorIs(t, err, orderbook.ErrArithmeticUnderflow)
}

func TestFillTransitions(t *testing.T) {
	min := dec("10")

	o, err := orderbook.NewOrder(1, bidder, orderbook.Buy, dec("2"), dec("100"))
	require.NoError(t, err) // offer 200, ask 100

	// Zero fill is rejected outright.
	require.ErrorIs(t, o.Fill(decimal.Zero, decimal.Zero, min, min), orderbook.ErrZeroMatchAmount)

	// A partial fill leaves the order PartialFilled.
	require.NoError(t, o.Fill(dec("50"), dec("100"), min, min))
	require.Equal(t, orderbook.PartialFilled, o.Status)

	remOffer, err := o.RemainingOffer()
	require.NoError(t, err)
	require.True(t, remOffer.Equal(dec("100")))

	// A fill leaving dust below the threshold closes the order.
	require.NoError(t, o.Fill(dec("45"), dec("90"), min, min))
	require.Equal(t, orderbook.Fulfilled, o.Status)

	// Overfilling is impossible.
	require.ErrorIs(t, o.Fill(dec("50"), dec("50"), min, min), orderbook.ErrInsufficientOrderAmount)
}

func TestFillNeverExceedsTotals(t *testing.T) {
	o, err := orderbook.NewOrder(1, bidder, orderbook.Sell, dec("2"), dec("200"))
	require.NoError(t, err) // offer 100 base, ask 200 quote

	require.ErrorIs(t, o.Fill(dec("201"), dec("100"), dec("10"), dec("10")), orderbook.ErrInsufficientOrderAmount)
	require.True(t, o.FilledAskAmount.IsZero(), "failed fill must not mutate the order")
	require.Equal(t, orderbook.Open, o.Status)
}

func TestStatusTerminal(t *testing.T) {
	require.False(t, orderbook.Open.Terminal())
	require.False(t, orderbook.PartialFilled.Terminal())
	require.True(t, orderbook.Fulfilled.Terminal())
	require.True(t, orderbook.Cancel.Terminal())
}

func TestDirectionParse(t *testing.T) {
	d, err := orderbook.ParseDirection("buy")
	require.NoError(t, err)
	require.Equal(t, orderbook.Buy, d)

	d, err = orderbook.ParseDirection("sell")
	require.NoError(t, err)
	require.Equal(t, orderbook.Sell, d)

	_, err = orderbook.ParseDirection("hold")
	require.Error(t, err)

	require.Equal(t, orderbook.Sell, orderbook.Buy.Opposite())
	require.Equal(t, orderbook.Buy, orderbook.Sell.Opposite())
}
