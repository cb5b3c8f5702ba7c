package orderbook

import (
	"encoding/json"
	"fmt"
)

// Status of an order.
//
//	Open ──────────┬──> PartialFilled ──┬──> Fulfilled
//	               │         │          │
//	               └─────────┴──> Cancel┘ (cancel only while resting)
//
// Fulfilled and Cancel are terminal.
type Status int8

const (
	Open Status = iota
	PartialFilled
	Fulfilled
	Cancel
)

// Terminal reports whether the order can never change again.
func (s Status) Terminal() bool { return s == Fulfilled || s == Cancel }

func (s Status) String() string {
	switch s {
	case Open:
		return "open"
	case PartialFilled:
		return "partial_filled"
	case Fulfilled:
		return "fulfilled"
	case Cancel:
		return "cancel"
	default:
		return fmt.Sprintf("status(%d)", int8(s))
	}
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch str {
	case "open":
		*s = Open
	case "partial_filled":
		*s = PartialFilled
	case "fulfilled":
		*s = Fulfilled
	case "cancel":
		*s = Cancel
	default:
		return fmt.Errorf("unknown order status %q", str)
	}
	return nil
}
