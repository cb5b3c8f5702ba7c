package orderbook

import (
	"encoding/json"
	"fmt"
)

// Direction of an order. Buy offers the quote asset for the base asset,
// Sell offers the base asset for the quote asset.
type Direction int8

const (
	Buy  Direction = 1
	Sell Direction = 2
)

func (d Direction) Valid() bool { return d == Buy || d == Sell }

// Opposite returns the side an incoming order of direction d matches against.
func (d Direction) Opposite() Direction {
	if d == Buy {
		return Sell
	}
	return Buy
}

// Byte is the single-byte encoding used in storage keys.
func (d Direction) Byte() byte { return byte(d) }

func (d Direction) String() string {
	switch d {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return fmt.Sprintf("direction(%d)", int8(d))
	}
}

func ParseDirection(s string) (Direction, error) {
	switch s {
	case "buy":
		return Buy, nil
	case "sell":
		return Sell, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidDirection, s)
	}
}

func DirectionFromByte(b byte) (Direction, error) {
	d := Direction(b)
	if !d.Valid() {
		return 0, fmt.Errorf("%w: byte %#x", ErrInvalidDirection, b)
	}
	return d, nil
}

func (d Direction) MarshalJSON() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDirection, int8(d))
	}
	return json.Marshal(d.String())
}

func (d *Direction) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDirection(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
