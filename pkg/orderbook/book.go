package orderbook

import (
	"github.com/shopspring/decimal"

	"github.com/oraichain/oraiswap-orderbook/pkg/asset"
)

// Defaults applied when a pair leaves the corresponding Book field unset.
var (
	// MinVolume is the dust threshold below which a remaining amount can no
	// longer stay on the book: the order is force-closed as Fulfilled.
	MinVolume = decimal.NewFromInt(10)
	// RefundsThreshold is the smallest leftover worth refunding on close.
	RefundsThreshold = decimal.NewFromInt(100000)
	// DefaultSlippage bounds market orders when neither the call nor the
	// pair configures a spread (1%).
	DefaultSlippage = decimal.NewFromFloat(0.01)
)

// Book holds the per-pair configuration. One Book exists per trading pair;
// it is created by CreatePair and only its thresholds are mutable afterwards.
type Book struct {
	BaseInfo  asset.Info `json:"base_coin_info"`
	QuoteInfo asset.Info `json:"quote_coin_info"`

	Spread              *decimal.Decimal `json:"spread,omitempty"`
	MinQuoteAmount      decimal.Decimal  `json:"min_quote_coin_amount"`
	RefundThreshold     *decimal.Decimal `json:"refund_threshold,omitempty"`
	MinOfferToFulfilled *decimal.Decimal `json:"min_offer_to_fulfilled,omitempty"`
	MinAskToFulfilled   *decimal.Decimal `json:"min_ask_to_fulfilled,omitempty"`
}

func NewBook(base, quote asset.Info, spread *decimal.Decimal, minQuote decimal.Decimal) Book {
	return Book{
		BaseInfo:       base,
		QuoteInfo:      quote,
		Spread:         spread,
		MinQuoteAmount: minQuote,
	}
}

// PairKey returns the canonical storage key of the pair.
func (b *Book) PairKey() []byte {
	return asset.PairKey(b.BaseInfo, b.QuoteInfo)
}

// HasPair reports whether the two given assets are exactly this book's pair.
func (b *Book) HasPair(a, c asset.Info) bool {
	return (b.BaseInfo.Equal(a) && b.QuoteInfo.Equal(c)) ||
		(b.BaseInfo.Equal(c) && b.QuoteInfo.Equal(a))
}

// OfferInfo is the asset a bidder pays in: quote when buying, base when
// selling.
func (b *Book) OfferInfo(d Direction) asset.Info {
	if d == Buy {
		return b.QuoteInfo
	}
	return b.BaseInfo
}

// AskInfo is the asset a bidder receives: base when buying, quote when
// selling.
func (b *Book) AskInfo(d Direction) asset.Info {
	if d == Buy {
		return b.BaseInfo
	}
	return b.QuoteInfo
}

// FulfillThresholds orients the configured dust thresholds to an order of
// direction d, returning (minAsk, minOffer) for Order.Fill. The configured
// offer threshold belongs to the quote side and the ask threshold to the
// base side, so a sell order sees them swapped.
func (b *Book) FulfillThresholds(d Direction) (minAsk, minOffer decimal.Decimal) {
	minOffer = MinVolume
	if b.MinOfferToFulfilled != nil {
		minOffer = *b.MinOfferToFulfilled
	}
	minAsk = MinVolume
	if b.MinAskToFulfilled != nil {
		minAsk = *b.MinAskToFulfilled
	}
	if d == Sell {
		minAsk, minOffer = minOffer, minAsk
	}
	return minAsk, minOffer
}

// RefundThresholdFor converts the pair's refund cutoff into the offer asset
// of the given order: buy leftovers are quote already, sell leftovers are
// base and divide through the price.
func (b *Book) RefundThresholdFor(o *Order) decimal.Decimal {
	threshold := RefundsThreshold
	if b.RefundThreshold != nil {
		threshold = *b.RefundThreshold
	}
	if o.Direction == Sell {
		if price := o.Price(); price.IsPositive() {
			return FloorDiv(threshold, price)
		}
	}
	return threshold
}

// SlippageOrDefault resolves the market-order slippage bound: explicit
// argument first, then the pair spread, then DefaultSlippage.
func (b *Book) SlippageOrDefault(slippage *decimal.Decimal) decimal.Decimal {
	if slippage != nil {
		return *slippage
	}
	if b.Spread != nil {
		return *b.Spread
	}
	return DefaultSlippage
}
