package storage

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/oraichain/oraiswap-orderbook/pkg/orderbook"
)

// PriceKeyWidth is the fixed width of an encoded price: the price's
// 128-bit atomic value (18 decimal places) big-endian, so lexicographic
// byte order equals numeric order.
const PriceKeyWidth = 16

var maxPriceAtomics = new(big.Int).Lsh(big.NewInt(1), 8*PriceKeyWidth)

// EncodePrice converts a price into its sortable fixed-width key. The price
// is truncated to PriceDecimals first, so orders land on the same tick only
// when their truncated prices are bit-identical.
func EncodePrice(price decimal.Decimal) ([]byte, error) {
	if price.IsNegative() {
		return nil, fmt.Errorf("%w: negative price %s", orderbook.ErrArithmeticUnderflow, price)
	}
	atomics := price.Truncate(orderbook.PriceDecimals).Shift(orderbook.PriceDecimals).BigInt()
	if atomics.Cmp(maxPriceAtomics) >= 0 {
		return nil, fmt.Errorf("%w: price %s exceeds tick key range", orderbook.ErrArithmeticOverflow, price)
	}
	key := make([]byte, PriceKeyWidth)
	atomics.FillBytes(key)
	return key, nil
}

// DecodePrice parses a price key, rejecting malformed widths instead of
// assuming validity.
func DecodePrice(key []byte) (decimal.Decimal, error) {
	if len(key) != PriceKeyWidth {
		return decimal.Zero, fmt.Errorf("malformed price key: %d bytes, want %d", len(key), PriceKeyWidth)
	}
	atomics := new(big.Int).SetBytes(key)
	return decimal.NewFromBigInt(atomics, -orderbook.PriceDecimals), nil
}

// decodePriceSuffix parses the trailing price key of a tick entry.
func decodePriceSuffix(key []byte) (decimal.Decimal, error) {
	if len(key) < PriceKeyWidth {
		return decimal.Zero, fmt.Errorf("tick key too short for price: %d bytes", len(key))
	}
	return DecodePrice(key[len(key)-PriceKeyWidth:])
}
