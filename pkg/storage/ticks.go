package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/shopspring/decimal"

	"github.com/oraichain/oraiswap-orderbook/pkg/orderbook"
)

// Tick is one occupied price level of a book side.
type Tick struct {
	Price       decimal.Decimal `json:"price"`
	TotalOrders uint64          `json:"total_orders"`
}

func incrementTick(w Writer, pair []byte, dir byte, priceKey []byte) error {
	count, err := readTickCount(w, pair, dir, priceKey)
	if err != nil {
		return err
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], count+1)
	return w.Set(tickKey(pair, dir, priceKey), buf[:], pebble.Sync)
}

// decrementTick deletes the tick when the last resting order leaves it. A
// missing tick here means the indexes diverged from the primary records,
// which InsertOrder/RemoveOrder are built to make impossible.
func decrementTick(w Writer, pair []byte, dir byte, priceKey []byte) error {
	count, err := readTickCount(w, pair, dir, priceKey)
	if err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%w: tick counter already zero", orderbook.ErrArithmeticUnderflow)
	}
	if count == 1 {
		return w.Delete(tickKey(pair, dir, priceKey), pebble.Sync)
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], count-1)
	return w.Set(tickKey(pair, dir, priceKey), buf[:], pebble.Sync)
}

func readTickCount(r Reader, pair []byte, dir byte, priceKey []byte) (uint64, error) {
	data, found, err := get(r, tickKey(pair, dir, priceKey))
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("malformed tick counter: %d bytes", len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

// TickCount returns the number of orders resting at a price level.
func TickCount(r Reader, pair []byte, dir orderbook.Direction, price decimal.Decimal) (uint64, error) {
	priceKey, err := EncodePrice(price)
	if err != nil {
		return 0, err
	}
	return readTickCount(r, pair, dir.Byte(), priceKey)
}

// BestPrice returns the first occupied tick of a side in the given scan
// direction: ascending yields the lowest price, descending the highest.
// found is false when the side is empty.
func BestPrice(r Reader, pair []byte, dir orderbook.Direction, by orderbook.OrderBy) (price decimal.Decimal, totalOrders uint64, found bool, err error) {
	err = scan(r, tickPrefix(pair, dir.Byte()), nil, by, func(k, v []byte) (bool, error) {
		price, err = decodePriceSuffix(k)
		if err != nil {
			return false, err
		}
		if len(v) != 8 {
			return false, fmt.Errorf("malformed tick counter: %d bytes", len(v))
		}
		totalOrders = binary.BigEndian.Uint64(v)
		found = true
		return false, nil
	})
	return price, totalOrders, found, err
}

// ReadTicks pages through the occupied ticks of a side. Both cursor bounds
// are exclusive-after: ascending returns prices in (startAfter, end],
// descending in [end, startAfter) walked downward.
func ReadTicks(r Reader, pair []byte, dir orderbook.Direction, startAfter, end *decimal.Decimal, limit int, by orderbook.OrderBy) ([]Tick, error) {
	prefix := tickPrefix(pair, dir.Byte())
	limit = ClampLimit(limit)

	opts := &pebble.IterOptions{LowerBound: prefix, UpperBound: keyUpperBound(prefix)}
	if by == orderbook.Ascending {
		if startAfter != nil {
			priceKey, err := EncodePrice(*startAfter)
			if err != nil {
				return nil, err
			}
			opts.LowerBound = keySuccessor(tickKey(pair, dir.Byte(), priceKey))
		}
		if end != nil {
			priceKey, err := EncodePrice(*end)
			if err != nil {
				return nil, err
			}
			opts.UpperBound = keySuccessor(tickKey(pair, dir.Byte(), priceKey))
		}
	} else {
		if startAfter != nil {
			priceKey, err := EncodePrice(*startAfter)
			if err != nil {
				return nil, err
			}
			opts.UpperBound = tickKey(pair, dir.Byte(), priceKey)
		}
		if end != nil {
			priceKey, err := EncodePrice(*end)
			if err != nil {
				return nil, err
			}
			opts.LowerBound = tickKey(pair, dir.Byte(), priceKey)
		}
	}

	iter, err := r.NewIter(opts)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	advance := iter.Next
	ok := iter.First()
	if by == orderbook.Descending {
		advance = iter.Prev
		ok = iter.Last()
	}

	var ticks []Tick
	for ; ok && len(ticks) < limit; ok = advance() {
		price, err := decodePriceSuffix(iter.Key())
		if err != nil {
			return nil, err
		}
		if len(iter.Value()) != 8 {
			return nil, fmt.Errorf("malformed tick counter: %d bytes", len(iter.Value()))
		}
		ticks = append(ticks, Tick{Price: price, TotalOrders: binary.BigEndian.Uint64(iter.Value())})
	}
	return ticks, iter.Error()
}

// WalkTicks visits every occupied tick of a side in the given scan
// direction until fn asks to stop. The matching walk and the market-order
// simulation both ride this exact iteration order.
func WalkTicks(r Reader, pair []byte, dir orderbook.Direction, by orderbook.OrderBy, fn func(price decimal.Decimal, totalOrders uint64) (bool, error)) error {
	return scan(r, tickPrefix(pair, dir.Byte()), nil, by, func(k, v []byte) (bool, error) {
		price, err := decodePriceSuffix(k)
		if err != nil {
			return false, err
		}
		if len(v) != 8 {
			return false, fmt.Errorf("malformed tick counter: %d bytes", len(v))
		}
		return fn(price, binary.BigEndian.Uint64(v))
	})
}
