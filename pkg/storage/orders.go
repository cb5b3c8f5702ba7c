package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/oraichain/oraiswap-orderbook/pkg/orderbook"
)

// Pagination limits for order and tick queries.
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// ClampLimit applies the pagination defaults: non-positive limits become
// DefaultLimit and anything above MaxLimit is capped.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// ---------------------------------------------------------------------------
// Book records
// ---------------------------------------------------------------------------

func PutBook(w Writer, book *orderbook.Book) error {
	data, err := json.Marshal(book)
	if err != nil {
		return fmt.Errorf("marshal book: %w", err)
	}
	return w.Set(bookKey(book.PairKey()), data, pebble.Sync)
}

func GetBook(r Reader, pair []byte) (orderbook.Book, error) {
	data, found, err := get(r, bookKey(pair))
	if err != nil {
		return orderbook.Book{}, err
	}
	if !found {
		return orderbook.Book{}, orderbook.ErrPairNotFound
	}
	var book orderbook.Book
	if err := json.Unmarshal(data, &book); err != nil {
		return orderbook.Book{}, fmt.Errorf("unmarshal book: %w", err)
	}
	return book, nil
}

func DeleteBook(w Writer, pair []byte) error {
	return w.Delete(bookKey(pair), pebble.Sync)
}

// ListBooks pages through all pair configurations; the cursor is the pair
// key of the last seen book.
func ListBooks(r Reader, startAfter []byte, limit int, by orderbook.OrderBy) ([]orderbook.Book, error) {
	prefix := booksPrefix()
	var cursor []byte
	if startAfter != nil {
		cursor = bookKey(startAfter)
	}
	limit = ClampLimit(limit)

	var books []orderbook.Book
	err := scan(r, prefix, cursor, by, func(_, v []byte) (bool, error) {
		var book orderbook.Book
		if err := json.Unmarshal(v, &book); err != nil {
			return false, fmt.Errorf("unmarshal book: %w", err)
		}
		books = append(books, book)
		return len(books) < limit, nil
	})
	return books, err
}

// ---------------------------------------------------------------------------
// Order-id counter
// ---------------------------------------------------------------------------

// NextOrderID is the only mutation path of the counter, so ids stay strictly
// increasing and are never reused.
func NextOrderID(w Writer) (uint64, error) {
	last, err := LastOrderID(w)
	if err != nil {
		return 0, err
	}
	next := last + 1
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], next)
	if err := w.Set(keyLastOrderID, buf[:], pebble.Sync); err != nil {
		return 0, err
	}
	return next, nil
}

func LastOrderID(r Reader) (uint64, error) {
	data, found, err := get(r, keyLastOrderID)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("malformed order-id counter: %d bytes", len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

// ---------------------------------------------------------------------------
// Order records. All mutation goes through InsertOrder / UpdateOrder /
// RemoveOrder so the primary record, the three indexes and the tick counter
// can never diverge.
// ---------------------------------------------------------------------------

// InsertOrder writes the primary record, the by-price / by-bidder /
// by-direction index entries and bumps the tick counter of the order's
// price level.
func InsertOrder(w Writer, pair []byte, o *orderbook.Order) error {
	priceKey, err := EncodePrice(o.Price())
	if err != nil {
		return err
	}
	if err := putOrderRecord(w, pair, o); err != nil {
		return err
	}
	dir := []byte{o.Direction.Byte()}
	if err := w.Set(priceIndexKey(pair, priceKey, o.OrderID), dir, pebble.Sync); err != nil {
		return err
	}
	if err := w.Set(bidderIndexKey(pair, o.Bidder, o.OrderID), dir, pebble.Sync); err != nil {
		return err
	}
	if err := w.Set(directionIndexKey(pair, o.Direction.Byte(), o.OrderID), dir, pebble.Sync); err != nil {
		return err
	}
	return incrementTick(w, pair, o.Direction.Byte(), priceKey)
}

// UpdateOrder rewrites the primary record after a fill. Fills change only
// the filled amounts, never the totals, so the derived price and every
// index entry stay valid.
func UpdateOrder(w Writer, pair []byte, o *orderbook.Order) error {
	return putOrderRecord(w, pair, o)
}

// RemoveOrder deletes the primary record and every index entry in the same
// operation and decrements the tick, deleting it at zero.
func RemoveOrder(w Writer, pair []byte, o *orderbook.Order) error {
	priceKey, err := EncodePrice(o.Price())
	if err != nil {
		return err
	}
	if err := w.Delete(orderKey(pair, o.OrderID), pebble.Sync); err != nil {
		return err
	}
	if err := w.Delete(priceIndexKey(pair, priceKey, o.OrderID), pebble.Sync); err != nil {
		return err
	}
	if err := w.Delete(bidderIndexKey(pair, o.Bidder, o.OrderID), pebble.Sync); err != nil {
		return err
	}
	if err := w.Delete(directionIndexKey(pair, o.Direction.Byte(), o.OrderID), pebble.Sync); err != nil {
		return err
	}
	return decrementTick(w, pair, o.Direction.Byte(), priceKey)
}

func putOrderRecord(w Writer, pair []byte, o *orderbook.Order) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal order %d: %w", o.OrderID, err)
	}
	return w.Set(orderKey(pair, o.OrderID), data, pebble.Sync)
}

func GetOrder(r Reader, pair []byte, id uint64) (orderbook.Order, error) {
	data, found, err := get(r, orderKey(pair, id))
	if err != nil {
		return orderbook.Order{}, err
	}
	if !found {
		return orderbook.Order{}, fmt.Errorf("%w: id %d", orderbook.ErrOrderNotFound, id)
	}
	var o orderbook.Order
	if err := json.Unmarshal(data, &o); err != nil {
		return orderbook.Order{}, fmt.Errorf("unmarshal order %d: %w", id, err)
	}
	return o, nil
}

// HasOrders reports whether any order rests on the pair's book.
func HasOrders(r Reader, pair []byte) (bool, error) {
	prefix := orderPrefix(pair)
	iter, err := r.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: keyUpperBound(prefix)})
	if err != nil {
		return false, err
	}
	defer iter.Close()
	return iter.First(), iter.Error()
}

// ---------------------------------------------------------------------------
// Paginated reads
// ---------------------------------------------------------------------------

// ReadOrders pages through the primary records of a pair. The cursor is the
// id of the last seen order, exclusive.
func ReadOrders(r Reader, pair []byte, startAfter *uint64, limit int, by orderbook.OrderBy) ([]orderbook.Order, error) {
	prefix := orderPrefix(pair)
	limit = ClampLimit(limit)

	var orders []orderbook.Order
	err := scan(r, prefix, orderCursor(prefix, startAfter), by, func(_, v []byte) (bool, error) {
		var o orderbook.Order
		if err := json.Unmarshal(v, &o); err != nil {
			return false, fmt.Errorf("unmarshal order: %w", err)
		}
		orders = append(orders, o)
		return len(orders) < limit, nil
	})
	return orders, err
}

// ReadOrdersByBidder pages through one bidder's index, optionally narrowed
// to a direction.
func ReadOrdersByBidder(r Reader, pair []byte, bidder common.Address, dir *orderbook.Direction, startAfter *uint64, limit int, by orderbook.OrderBy) ([]orderbook.Order, error) {
	prefix := bidderIndexPrefix(pair, bidder)
	return readOrdersByIndex(r, pair, prefix, dir, startAfter, limit, by)
}

// ReadOrdersByPrice pages through the orders resting at one price level.
func ReadOrdersByPrice(r Reader, pair []byte, price decimal.Decimal, dir *orderbook.Direction, startAfter *uint64, limit int, by orderbook.OrderBy) ([]orderbook.Order, error) {
	priceKey, err := EncodePrice(price)
	if err != nil {
		return nil, err
	}
	prefix := priceIndexPrefix(pair, priceKey)
	return readOrdersByIndex(r, pair, prefix, dir, startAfter, limit, by)
}

// ReadOrdersByDirection pages through one side of the book.
func ReadOrdersByDirection(r Reader, pair []byte, dir orderbook.Direction, startAfter *uint64, limit int, by orderbook.OrderBy) ([]orderbook.Order, error) {
	prefix := directionIndexPrefix(pair, dir.Byte())
	return readOrdersByIndex(r, pair, prefix, nil, startAfter, limit, by)
}

// OrdersAtPrice lists every order resting at a price level in FIFO order
// (ascending order id). This is the matching engine's per-tick view, so it
// is deliberately unpaginated.
func OrdersAtPrice(r Reader, pair []byte, price decimal.Decimal, dir orderbook.Direction) ([]orderbook.Order, error) {
	priceKey, err := EncodePrice(price)
	if err != nil {
		return nil, err
	}
	prefix := priceIndexPrefix(pair, priceKey)

	var orders []orderbook.Order
	err = scan(r, prefix, nil, orderbook.Ascending, func(k, v []byte) (bool, error) {
		o, ok, err := resolveIndexEntry(r, pair, k, v, &dir)
		if err != nil {
			return false, err
		}
		if ok {
			orders = append(orders, o)
		}
		return true, nil
	})
	return orders, err
}

func readOrdersByIndex(r Reader, pair, prefix []byte, dirFilter *orderbook.Direction, startAfter *uint64, limit int, by orderbook.OrderBy) ([]orderbook.Order, error) {
	limit = ClampLimit(limit)

	var orders []orderbook.Order
	err := scan(r, prefix, orderCursor(prefix, startAfter), by, func(k, v []byte) (bool, error) {
		o, ok, err := resolveIndexEntry(r, pair, k, v, dirFilter)
		if err != nil {
			return false, err
		}
		if ok {
			orders = append(orders, o)
		}
		return len(orders) < limit, nil
	})
	return orders, err
}

// resolveIndexEntry turns one secondary-index entry into its primary order,
// applying the optional direction filter stored in the entry value.
func resolveIndexEntry(r Reader, pair, key, value []byte, dirFilter *orderbook.Direction) (orderbook.Order, bool, error) {
	if len(value) != 1 {
		return orderbook.Order{}, false, fmt.Errorf("malformed index entry: %d value bytes", len(value))
	}
	dir, err := orderbook.DirectionFromByte(value[0])
	if err != nil {
		return orderbook.Order{}, false, err
	}
	if dirFilter != nil && dir != *dirFilter {
		return orderbook.Order{}, false, nil
	}
	id, err := parseOrderIDSuffix(key)
	if err != nil {
		return orderbook.Order{}, false, err
	}
	o, err := GetOrder(r, pair, id)
	if err != nil {
		return orderbook.Order{}, false, err
	}
	return o, true, nil
}

func orderCursor(prefix []byte, startAfter *uint64) []byte {
	if startAfter == nil {
		return nil
	}
	return append(append([]byte{}, prefix...), orderIDBytes(*startAfter)...)
}

// scan walks [prefix, upper) in the requested direction, starting strictly
// after cursor when one is given, until fn asks to stop.
func scan(r Reader, prefix, cursor []byte, by orderbook.OrderBy, fn func(k, v []byte) (bool, error)) error {
	opts := &pebble.IterOptions{LowerBound: prefix, UpperBound: keyUpperBound(prefix)}
	if cursor != nil {
		if by == orderbook.Ascending {
			opts.LowerBound = keySuccessor(cursor)
		} else {
			opts.UpperBound = cursor // exclusive: strictly below the cursor
		}
	}
	iter, err := r.NewIter(opts)
	if err != nil {
		return err
	}
	defer iter.Close()

	advance := iter.Next
	ok := iter.First()
	if by == orderbook.Descending {
		advance = iter.Prev
		ok = iter.Last()
	}
	for ; ok; ok = advance() {
		more, err := fn(iter.Key(), iter.Value())
		if err != nil {
			return err
		}
		if !more {
			break
		}
	}
	return iter.Error()
}
