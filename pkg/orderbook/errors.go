package orderbook

import "errors"

// Error kinds surfaced by the engine. Any of these aborts the whole
// operation; the surrounding batch is discarded so no partial state lands.
var (
	ErrOrderNotFound = errors.New("order not found")
	ErrPairNotFound  = errors.New("orderbook pair not found")
	ErrPairExists    = errors.New("orderbook pair already exists")
	ErrPairNotEmpty  = errors.New("orderbook pair still has resting orders")
	ErrUnauthorized  = errors.New("unauthorized")

	ErrInvalidDirection        = errors.New("invalid order direction")
	ErrAmountMustBePositive    = errors.New("asset amount must be positive")
	ErrSlippageTooLarge        = errors.New("slippage must be less than one")
	ErrNoMatchedPrice          = errors.New("no matchable price on the opposite side")
	ErrBelowMinQuoteAmount     = errors.New("quote amount below pair minimum")
	ErrZeroMatchAmount         = errors.New("match amount is zero")
	ErrInsufficientOrderAmount = errors.New("insufficient order amount left")

	ErrArithmeticOverflow  = errors.New("arithmetic overflow")
	ErrArithmeticUnderflow = errors.New("arithmetic underflow")
)
