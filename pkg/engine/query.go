package engine

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/oraichain/oraiswap-orderbook/pkg/asset"
	"github.com/oraichain/oraiswap-orderbook/pkg/orderbook"
	"github.com/oraichain/oraiswap-orderbook/pkg/storage"
)

// OrderView is an order oriented for presentation: the raw offer/ask
// amounts are paired with the assets they denominate, and the derived
// price is materialized.
type OrderView struct {
	OrderID           uint64              `json:"order_id"`
	Status            orderbook.Status    `json:"status"`
	Direction         orderbook.Direction `json:"direction"`
	Bidder            common.Address      `json:"bidder_addr"`
	OfferAsset        asset.Asset         `json:"offer_asset"`
	AskAsset          asset.Asset         `json:"ask_asset"`
	FilledOfferAmount decimal.Decimal     `json:"filled_offer_amount"`
	FilledAskAmount   decimal.Decimal     `json:"filled_ask_amount"`
	Price             decimal.Decimal     `json:"price"`
}

func newOrderView(book *orderbook.Book, o *orderbook.Order) OrderView {
	return OrderView{
		OrderID:           o.OrderID,
		Status:            o.Status,
		Direction:         o.Direction,
		Bidder:            o.Bidder,
		OfferAsset:        asset.NewAsset(book.OfferInfo(o.Direction), o.OfferAmount),
		AskAsset:          asset.NewAsset(book.AskInfo(o.Direction), o.AskAmount),
		FilledOfferAmount: o.FilledOfferAmount,
		FilledAskAmount:   o.FilledAskAmount,
		Price:             o.Price(),
	}
}

// QueryBook returns the configuration of one pair.
func (e *Engine) QueryBook(a, b asset.Info) (orderbook.Book, error) {
	var book orderbook.Book
	err := e.store.View(func(r storage.Reader) error {
		var err error
		book, _, err = resolveBook(r, a, b)
		return err
	})
	return book, err
}

// QueryBooks pages through every registered pair. The cursor is the pair
// key of the last book seen, opaque to callers.
func (e *Engine) QueryBooks(startAfter []byte, limit int, by orderbook.OrderBy) ([]orderbook.Book, error) {
	var books []orderbook.Book
	err := e.store.View(func(r storage.Reader) error {
		var err error
		books, err = storage.ListBooks(r, startAfter, limit, by)
		return err
	})
	return books, err
}

// QueryOrder returns one resting order.
func (e *Engine) QueryOrder(a, b asset.Info, orderID uint64) (OrderView, error) {
	var view OrderView
	err := e.store.View(func(r storage.Reader) error {
		book, pair, err := resolveBook(r, a, b)
		if err != nil {
			return err
		}
		order, err := storage.GetOrder(r, pair, orderID)
		if err != nil {
			return err
		}
		view = newOrderView(&book, &order)
		return nil
	})
	return view, err
}

// QueryOrders pages through the resting orders of a pair. The filter picks
// the index walked; dir further restricts any of them and is mandatory for
// the tick filter. startAfter is the order id of the last result seen.
func (e *Engine) QueryOrders(a, b asset.Info, filter orderbook.Filter, dir *orderbook.Direction, startAfter *uint64, limit int, by orderbook.OrderBy) ([]OrderView, error) {
	var views []OrderView
	err := e.store.View(func(r storage.Reader) error {
		book, pair, err := resolveBook(r, a, b)
		if err != nil {
			return err
		}

		var orders []orderbook.Order
		switch filter.Kind {
		case orderbook.FilterNone:
			if dir != nil {
				orders, err = storage.ReadOrdersByDirection(r, pair, *dir, startAfter, limit, by)
			} else {
				orders, err = storage.ReadOrders(r, pair, startAfter, limit, by)
			}
		case orderbook.FilterBidder:
			orders, err = storage.ReadOrdersByBidder(r, pair, filter.Bidder, dir, startAfter, limit, by)
		case orderbook.FilterPrice:
			orders, err = storage.ReadOrdersByPrice(r, pair, filter.Price, dir, startAfter, limit, by)
		case orderbook.FilterTick:
			if dir == nil {
				return orderbook.ErrInvalidDirection
			}
			orders, err = readOrdersByTick(r, pair, *dir, startAfter, limit, by)
		}
		if err != nil {
			return err
		}

		views = make([]OrderView, 0, len(orders))
		for i := range orders {
			views = append(views, newOrderView(&book, &orders[i]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}

// readOrdersByTick walks the occupied ticks of one side in price order and
// lists each tick's orders FIFO. The combined sequence is not monotone in
// order id, so the cursor is positional: results resume after the entry
// whose id is startAfter.
func readOrdersByTick(r storage.Reader, pair []byte, dir orderbook.Direction, startAfter *uint64, limit int, by orderbook.OrderBy) ([]orderbook.Order, error) {
	limit = storage.ClampLimit(limit)
	skipping := startAfter != nil

	var out []orderbook.Order
	err := storage.WalkTicks(r, pair, dir, by, func(price decimal.Decimal, _ uint64) (bool, error) {
		resting, err := storage.OrdersAtPrice(r, pair, price, dir)
		if err != nil {
			return false, err
		}
		for i := range resting {
			if skipping {
				if resting[i].OrderID == *startAfter {
					skipping = false
				}
				continue
			}
			out = append(out, resting[i])
			if len(out) >= limit {
				return false, nil
			}
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// QueryTicks pages through the occupied price levels of one side.
func (e *Engine) QueryTicks(a, b asset.Info, dir orderbook.Direction, startAfter, end *decimal.Decimal, limit int, by orderbook.OrderBy) ([]storage.Tick, error) {
	var ticks []storage.Tick
	err := e.store.View(func(r storage.Reader) error {
		_, pair, err := resolveBook(r, a, b)
		if err != nil {
			return err
		}
		ticks, err = storage.ReadTicks(r, pair, dir, startAfter, end, limit, by)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ticks, nil
}

// QueryBestPrice returns the best occupied tick of one side: the highest
// buy or the lowest sell.
func (e *Engine) QueryBestPrice(a, b asset.Info, dir orderbook.Direction) (price decimal.Decimal, totalOrders uint64, found bool, err error) {
	err = e.store.View(func(r storage.Reader) error {
		_, pair, err := resolveBook(r, a, b)
		if err != nil {
			return err
		}
		by := orderbook.Descending
		if dir == orderbook.Sell {
			by = orderbook.Ascending
		}
		price, totalOrders, found, err = storage.BestPrice(r, pair, dir, by)
		return err
	})
	return price, totalOrders, found, err
}

// QueryMidPrice averages the two best prices; found is false unless both
// sides are occupied.
func (e *Engine) QueryMidPrice(a, b asset.Info) (mid decimal.Decimal, found bool, err error) {
	err = e.store.View(func(r storage.Reader) error {
		_, pair, err := resolveBook(r, a, b)
		if err != nil {
			return err
		}
		bestBuy, _, buyFound, err := storage.BestPrice(r, pair, orderbook.Buy, orderbook.Descending)
		if err != nil {
			return err
		}
		bestSell, _, sellFound, err := storage.BestPrice(r, pair, orderbook.Sell, orderbook.Ascending)
		if err != nil {
			return err
		}
		if !buyFound || !sellFound {
			return nil
		}
		mid = bestBuy.Add(bestSell).Div(decimal.NewFromInt(2)).Truncate(orderbook.PriceDecimals)
		found = true
		return nil
	})
	return mid, found, err
}

// QueryLastOrderID returns the most recently assigned order id.
func (e *Engine) QueryLastOrderID() (uint64, error) {
	var id uint64
	err := e.store.View(func(r storage.Reader) error {
		var err error
		id, err = storage.LastOrderID(r)
		return err
	})
	return id, err
}
