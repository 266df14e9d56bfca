// Package common holds the data types shared across the matching core:
// orders, trades, sides, kinds and lifecycle statuses. Nothing in here
// depends on book, ledger, engine or any other core package, so any of
// them can import it freely.
package common

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order.
type Side uint8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Sell {
		return "sell"
	}
	return "buy"
}

// MarshalJSON writes Side as its wire name ("buy"/"sell") rather than
// the underlying small int, so events on the WebSocket channel are
// self-describing (spec §6).
func (s Side) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON parses "buy"/"sell" from an API request body.
func (s *Side) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	switch str {
	case "buy":
		*s = Buy
	case "sell":
		*s = Sell
	default:
		return fmt.Errorf("unknown side %q", str)
	}
	return nil
}

// Kind distinguishes limit orders, which may rest on the book, from
// market orders, which never do.
type Kind uint8

const (
	Limit Kind = iota
	Market
)

func (k Kind) String() string {
	if k == Market {
		return "market"
	}
	return "limit"
}

// MarshalJSON writes Kind as its wire name ("limit"/"market").
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON parses "limit"/"market" from an API request body.
func (k *Kind) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	switch str {
	case "limit":
		*k = Limit
	case "market":
		*k = Market
	default:
		return fmt.Errorf("unknown order kind %q", str)
	}
	return nil
}

// Status is the lifecycle state of an order. Filled and Cancelled are
// terminal: no transition leaves them.
type Status uint8

const (
	Pending Status = iota
	Partial
	Filled
	Cancelled
)

func (s Status) String() string {
	switch s {
	case Partial:
		return "partial"
	case Filled:
		return "filled"
	case Cancelled:
		return "cancelled"
	default:
		return "pending"
	}
}

// Terminal reports whether s is a final state no order ever leaves.
func (s Status) Terminal() bool {
	return s == Filled || s == Cancelled
}

// MarshalJSON writes Status as its wire name.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

type (
	OrderID   string
	TradeID   string
	AccountID string
)

// Order is one resting or already-concluded order. Price is the zero
// Decimal for market orders. RemainingQty is mutated in place by the
// matching engine as fills are applied; OriginalQty never changes after
// acceptance.
type Order struct {
	ID            OrderID
	Owner         AccountID
	Side          Side
	Kind          Kind
	OriginalQty   decimal.Decimal
	RemainingQty  decimal.Decimal
	Price         decimal.Decimal
	Status        Status
	CreatedAt     time.Time
	Sequence      uint64
}

// Resting reports whether this order is eligible to sit on the book:
// only limit orders that are still pending or partially filled.
func (o *Order) Resting() bool {
	return o.Kind == Limit && (o.Status == Pending || o.Status == Partial)
}

// orderWire is Order's wire shape: Price is omitted for market orders,
// which never carry one.
type orderWire struct {
	ID           OrderID          `json:"id"`
	Owner        AccountID        `json:"owner"`
	Side         Side             `json:"side"`
	Kind         Kind             `json:"kind"`
	OriginalQty  decimal.Decimal  `json:"original_qty"`
	RemainingQty decimal.Decimal  `json:"remaining_qty"`
	Price        *decimal.Decimal `json:"price,omitempty"`
	Status       Status           `json:"status"`
	CreatedAt    time.Time        `json:"created_at"`
	Sequence     uint64           `json:"sequence"`
}

// MarshalJSON renders Order over the wire (spec §6), omitting price for
// market orders.
func (o Order) MarshalJSON() ([]byte, error) {
	w := orderWire{
		ID:           o.ID,
		Owner:        o.Owner,
		Side:         o.Side,
		Kind:         o.Kind,
		OriginalQty:  o.OriginalQty,
		RemainingQty: o.RemainingQty,
		Status:       o.Status,
		CreatedAt:    o.CreatedAt,
		Sequence:     o.Sequence,
	}
	if o.Kind == Limit {
		p := o.Price
		w.Price = &p
	}
	return json.Marshal(w)
}

// Trade is one crossing between a taker and a maker. Trades are
// append-only and never mutated once recorded.
type Trade struct {
	ID          TradeID
	BuyOrderID  OrderID
	SellOrderID OrderID
	Buyer       AccountID
	Seller      AccountID
	Price       decimal.Decimal
	Qty         decimal.Decimal
	Timestamp   time.Time
}
