package orderbook

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// FilterKind selects which secondary index a paginated order query walks.
type FilterKind int

const (
	// FilterNone walks the primary order records.
	FilterNone FilterKind = iota
	// FilterBidder walks the by-bidder index of one address.
	FilterBidder
	// FilterPrice walks the by-price index of one tick.
	FilterPrice
	// FilterTick walks the occupied ticks of a direction, listing the
	// resting orders of each tick in FIFO order.
	FilterTick
)

// Filter is a closed set of query variants dispatched by Kind; only the
// field matching the kind is read.
type Filter struct {
	Kind   FilterKind
	Bidder common.Address
	Price  decimal.Decimal
}

func NoFilter() Filter                            { return Filter{Kind: FilterNone} }
func FilterByBidder(bidder common.Address) Filter { return Filter{Kind: FilterBidder, Bidder: bidder} }
func FilterByPrice(price decimal.Decimal) Filter  { return Filter{Kind: FilterPrice, Price: price} }
func FilterByTick() Filter                        { return Filter{Kind: FilterTick} }

// OrderBy fixes the scan direction of paginated queries.
type OrderBy int

const (
	Ascending OrderBy = iota
	Descending
)

func (o OrderBy) String() string {
	if o == Descending {
		return "desc"
	}
	return "asc"
}
