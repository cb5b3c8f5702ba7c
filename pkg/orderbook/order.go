package orderbook

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// PriceDecimals is the fixed-point precision of every derived price. Two
// orders sit on the same tick only if their prices are identical after
// truncation to this many decimal places.
const PriceDecimals = 18

// Order is the primary record of the book. Offer/ask totals are fixed at
// creation; the filled amounts only ever grow and never exceed them.
type Order struct {
	OrderID           uint64          `json:"order_id"`
	Status            Status          `json:"status"`
	Direction         Direction       `json:"direction"`
	Bidder            common.Address  `json:"bidder"`
	OfferAmount       decimal.Decimal `json:"offer_amount"`
	AskAmount         decimal.Decimal `json:"ask_amount"`
	FilledOfferAmount decimal.Decimal `json:"filled_offer_amount"`
	FilledAskAmount   decimal.Decimal `json:"filled_ask_amount"`
}

// NewOrder builds an order from a price and an ask amount. The offer side is
// derived through the price: a buyer offers quote (ask × price), a seller
// offers base (ask ÷ price). Division truncates toward zero, matching the
// integer semantics of on-chain amounts.
func NewOrder(orderID uint64, bidder common.Address, direction Direction, price, askAmount decimal.Decimal) (Order, error) {
	if !direction.Valid() {
		return Order{}, ErrInvalidDirection
	}
	if !price.IsPositive() || !askAmount.IsPositive() {
		return Order{}, ErrAmountMustBePositive
	}
	var offerAmount decimal.Decimal
	switch direction {
	case Buy:
		offerAmount = askAmount.Mul(price).Floor()
	case Sell:
		offerAmount = FloorDiv(askAmount, price)
	}
	return Order{
		OrderID:           orderID,
		Status:            Open,
		Direction:         direction,
		Bidder:            bidder,
		OfferAmount:       offerAmount,
		AskAmount:         askAmount,
		FilledOfferAmount: decimal.Zero,
		FilledAskAmount:   decimal.Zero,
	}, nil
}

// Price derives the quote-per-base price of the order. It is never stored:
// buy orders offer quote for base (offer/ask), sell orders the reverse.
func (o *Order) Price() decimal.Decimal {
	if o.Direction == Buy {
		return RatioPrice(o.OfferAmount, o.AskAmount)
	}
	return RatioPrice(o.AskAmount, o.OfferAmount)
}

func (o *Order) RemainingOffer() (decimal.Decimal, error) {
	return CheckedSub(o.OfferAmount, o.FilledOfferAmount)
}

func (o *Order) RemainingAsk() (decimal.Decimal, error) {
	return CheckedSub(o.AskAmount, o.FilledAskAmount)
}

// Fill applies one round of matching to the order and runs the lifecycle
// transition: once either remaining side drops below its minimum-to-fulfill
// threshold the order is Fulfilled, otherwise it is PartialFilled.
func (o *Order) Fill(askDelta, offerDelta, minAsk, minOffer decimal.Decimal) error {
	if askDelta.IsZero() && offerDelta.IsZero() {
		return ErrZeroMatchAmount
	}
	if askDelta.IsNegative() || offerDelta.IsNegative() {
		return fmt.Errorf("%w: negative fill", ErrArithmeticUnderflow)
	}
	filledAsk := o.FilledAskAmount.Add(askDelta)
	filledOffer := o.FilledOfferAmount.Add(offerDelta)
	if filledAsk.GreaterThan(o.AskAmount) || filledOffer.GreaterThan(o.OfferAmount) {
		return fmt.Errorf("%w: order %d", ErrInsufficientOrderAmount, o.OrderID)
	}
	o.FilledAskAmount = filledAsk
	o.FilledOfferAmount = filledOffer
	o.Reassess(minAsk, minOffer)
	return nil
}

// Reassess re-runs the lifecycle transition without changing fill amounts.
// Used after the matching walk to force-close dust remainders.
func (o *Order) Reassess(minAsk, minOffer decimal.Decimal) {
	remainingOffer := o.OfferAmount.Sub(o.FilledOfferAmount)
	remainingAsk := o.AskAmount.Sub(o.FilledAskAmount)
	if remainingOffer.LessThan(minOffer) || remainingAsk.LessThan(minAsk) {
		o.Status = Fulfilled
	} else {
		o.Status = PartialFilled
	}
}

// RatioPrice computes num/den truncated to PriceDecimals places.
func RatioPrice(num, den decimal.Decimal) decimal.Decimal {
	q, _ := num.Shift(PriceDecimals).QuoRem(den, 0)
	return q.Shift(-PriceDecimals)
}

// FloorDiv is integer division truncated toward zero.
func FloorDiv(a, b decimal.Decimal) decimal.Decimal {
	q, _ := a.QuoRem(b, 0)
	return q
}

// CheckedSub returns a-b, failing instead of going negative.
func CheckedSub(a, b decimal.Decimal) (decimal.Decimal, error) {
	if a.LessThan(b) {
		return decimal.Zero, fmt.Errorf("%w: %s - %s", ErrArithmeticUnderflow, a, b)
	}
	return a.Sub(b), nil
}
