package storage_test

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/oraichain/oraiswap-orderbook/pkg/orderbook"
	"github.com/oraichain/oraiswap-orderbook/pkg/storage"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPriceKeyRoundTrip(t *testing.T) {
	for _, s := range []string{
		"0",
		"0.000000000000000001",
		"1",
		"2.5",
		"123456.789",
		"340282366920938463.463374607431768211", // near the 128-bit atomics ceiling
	} {
		key, err := storage.EncodePrice(dec(s))
		require.NoError(t, err, s)
		require.Len(t, key, storage.PriceKeyWidth)

		got, err := storage.DecodePrice(key)
		require.NoError(t, err, s)
		require.True(t, got.Equal(dec(s)), "round trip %s -> %s", s, got)
	}
}

func TestPriceKeyOrderMatchesNumericOrder(t *testing.T) {
	// Byte comparison on encoded keys must agree with numeric comparison,
	// otherwise tick iteration visits prices out of order.
	prices := []string{"0.000000000000000001", "0.5", "1", "1.000000000000000001", "2", "9.99", "10", "1000000"}
	for i := 1; i < len(prices); i++ {
		lo, err := storage.EncodePrice(dec(prices[i-1]))
		require.NoError(t, err)
		hi, err := storage.EncodePrice(dec(prices[i]))
		require.NoError(t, err)
		require.Negative(t, bytes.Compare(lo, hi), "%s must sort before %s", prices[i-1], prices[i])
	}
}

func TestPriceKeyTruncatesExtraPrecision(t *testing.T) {
	a, err := storage.EncodePrice(dec("1.0000000000000000011"))
	require.NoError(t, err)
	b, err := storage.EncodePrice(dec("1.000000000000000001"))
	require.NoError(t, err)
	require.True(t, bytes.Equal(a, b), "precision beyond 18 places must not split ticks")
}

func TestEncodePriceRejectsOutOfRange(t *testing.T) {
	_, err := storage.EncodePrice(dec("-1"))
	require.ErrorIs(t, err, orderbook.ErrArithmeticUnderflow)

	// 1e21 scales to 1e39 atomics, past the 128-bit key range.
	_, err = storage.EncodePrice(decimal.New(1, 21))
	require.ErrorIs(t, err, orderbook.ErrArithmeticOverflow)
}

func TestDecodePriceRejectsMalformedWidth(t *testing.T) {
	_, err := storage.DecodePrice(make([]byte, storage.PriceKeyWidth-1))
	require.Error(t, err)
	_, err = storage.DecodePrice(make([]byte, storage.PriceKeyWidth+1))
	require.Error(t, err)
}
