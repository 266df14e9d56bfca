// Package engine is C4: the matching engine. It drives the order
// lifecycle state machine (spec §4.2) and the price-time priority
// matching algorithm (spec §4.3), applying each trade to the book and
// ledger as a single unit. It owns the authoritative order store (spec
// §9 "implement as indices into an owned order store"); book and
// ledger only ever see *common.Order pointers that live here.
package engine

import (
	"github.com/shopspring/decimal"

	"bourse/internal/book"
	"bourse/internal/clock"
	"bourse/internal/common"
	"bourse/internal/ledger"
)

// Policy bundles the knobs spec §9's open questions hang off of.
type Policy struct {
	Tick              decimal.Decimal
	AllowNegativeCash bool
}

// PlaceRequest is the validated-shape input to Place; the Owner,
// Side and Kind fields are always required, Price only for Kind = Limit.
type PlaceRequest struct {
	Owner common.AccountID
	Side  common.Side
	Kind  common.Kind
	Qty   decimal.Decimal
	Price decimal.Decimal
}

// Engine is the single writer of orders, the book and the ledger.
// Like its collaborators it carries no lock of its own: the trading
// session facade (C8) serializes every call (spec §5).
type Engine struct {
	clock  *clock.Source
	book   *book.Book
	ledger *ledger.Ledger
	policy Policy
	orders map[common.OrderID]*common.Order
}

// New wires an engine over an already-constructed book and ledger.
func New(clk *clock.Source, bk *book.Book, led *ledger.Ledger, policy Policy) *Engine {
	return &Engine{
		clock:  clk,
		book:   bk,
		ledger: led,
		policy: policy,
		orders: make(map[common.OrderID]*common.Order),
	}
}

// Book exposes the underlying order book for read-only snapshot use.
func (e *Engine) Book() *book.Book { return e.book }

// Order looks up an order by id regardless of status.
func (e *Engine) Order(id common.OrderID) (*common.Order, bool) {
	o, ok := e.orders[id]
	return o, ok
}

// Place accepts a new order (spec §4.3 "Acceptance"): validates it,
// assigns id and sequence, runs it through matching, and leaves it
// filled, partially or fully resting, or cancelled for lack of
// liquidity. It returns the order's final state for this call and every
// trade produced by it, in the order they occurred.
func (e *Engine) Place(req PlaceRequest) (*common.Order, []common.Trade, error) {
	if err := e.validate(req); err != nil {
		return nil, nil, err
	}

	price := req.Price
	if req.Kind == common.Market {
		price = decimal.Zero // market orders carry no price
	}

	order := &common.Order{
		ID:           clock.NewOrderID(),
		Owner:        req.Owner,
		Side:         req.Side,
		Kind:         req.Kind,
		OriginalQty:  req.Qty,
		RemainingQty: req.Qty,
		Price:        price,
		Status:       common.Pending,
		CreatedAt:    e.clock.Now(),
		Sequence:     e.clock.NextSequence(),
	}
	e.orders[order.ID] = order

	trades := e.match(order)

	switch {
	case order.RemainingQty.IsZero():
		order.Status = common.Filled
	case order.Kind == common.Limit:
		if len(trades) > 0 {
			order.Status = common.Partial
		}
		e.book.Insert(order)
		e.ledger.AddOpenOrder(order.Owner, order.ID)
	default:
		// Market order with residual quantity: no liquidity left to
		// take it the rest of the way, and market orders never rest.
		order.Status = common.Cancelled
	}

	return order, trades, nil
}

// Cancel transitions a resting order to cancelled and removes it from
// the book. Fails with NotFound, NotOwner or NotCancellable.
func (e *Engine) Cancel(id common.OrderID, owner common.AccountID) (*common.Order, error) {
	o, ok := e.orders[id]
	if !ok {
		return nil, common.NotFoundf("order %s not found", id)
	}
	if o.Owner != owner {
		return nil, common.NotOwnerf("order %s does not belong to this account", id)
	}
	if o.Status.Terminal() {
		return nil, common.NotCancellablef("order %s is already %s", id, o.Status)
	}
	o.Status = common.Cancelled
	e.book.Remove(id)
	e.ledger.RemoveOpenOrder(o.Owner, id)
	return o, nil
}

// Amend implements cancel-then-replace (spec §4.2): the original order
// becomes terminal cancelled and a fresh order with a new id and
// sequence is placed in its stead, which may immediately cross. Fails
// with NotFound, NotOwner, NotAmendable or ValidationError.
func (e *Engine) Amend(id common.OrderID, owner common.AccountID, newPrice, newQty *decimal.Decimal) (*common.Order, []common.Trade, error) {
	o, ok := e.orders[id]
	if !ok {
		return nil, nil, common.NotFoundf("order %s not found", id)
	}
	if o.Owner != owner {
		return nil, nil, common.NotOwnerf("order %s does not belong to this account", id)
	}
	if o.Kind == common.Market {
		return nil, nil, common.NotAmendablef("market orders cannot be amended")
	}
	if o.Status.Terminal() {
		return nil, nil, common.NotAmendablef("order %s is already %s", id, o.Status)
	}

	price := o.Price
	if newPrice != nil {
		price = *newPrice
	}
	qty := o.RemainingQty
	if newQty != nil {
		qty = *newQty
	}
	if qty.Sign() <= 0 {
		return nil, nil, common.ValidationErrorf("amended quantity must be positive")
	}
	replacement := PlaceRequest{Owner: owner, Side: o.Side, Kind: o.Kind, Qty: qty, Price: price}
	// Validate before cancelling so a rejected amend leaves the original
	// order untouched.
	if err := e.validate(replacement); err != nil {
		return nil, nil, err
	}

	o.Status = common.Cancelled
	e.book.Remove(id)
	e.ledger.RemoveOpenOrder(o.Owner, id)

	return e.Place(replacement)
}

// match runs the price-time priority sweep of spec §4.3 for taker x,
// consuming resting orders on the opposite side while they cross,
// applying each trade atomically to the ledger as it's found.
func (e *Engine) match(x *common.Order) []common.Trade {
	var trades []common.Trade
	for x.RemainingQty.IsPositive() {
		y, ok := e.book.BestOpposite(x.Side)
		if !ok || !crosses(x, y) {
			break
		}

		price := y.Price // maker's price is the trade price
		qty := decimal.Min(x.RemainingQty, y.RemainingQty)

		trades = append(trades, e.recordTrade(x, y, price, qty))

		x.RemainingQty = x.RemainingQty.Sub(qty)
		y.RemainingQty = y.RemainingQty.Sub(qty)

		if y.RemainingQty.IsZero() {
			y.Status = common.Filled
			e.book.DropEmpty(y)
			e.ledger.RemoveOpenOrder(y.Owner, y.ID)
		} else {
			y.Status = common.Partial
		}
	}
	return trades
}

// crosses reports whether taker x crosses against resting order y.
func crosses(x, y *common.Order) bool {
	if x.Kind == common.Market {
		return true
	}
	if x.Side == common.Buy {
		return y.Price.LessThanOrEqual(x.Price)
	}
	return y.Price.GreaterThanOrEqual(x.Price)
}

// recordTrade builds the Trade from taker/maker perspective and applies
// it to the ledger in the same step, so book mutation and ledger
// mutation for a single fill never drift apart.
func (e *Engine) recordTrade(x, y *common.Order, price, qty decimal.Decimal) common.Trade {
	buyOrder, sellOrder := x, y
	if x.Side == common.Sell {
		buyOrder, sellOrder = y, x
	}
	t := common.Trade{
		ID:          clock.NewTradeID(),
		BuyOrderID:  buyOrder.ID,
		SellOrderID: sellOrder.ID,
		Buyer:       buyOrder.Owner,
		Seller:      sellOrder.Owner,
		Price:       price,
		Qty:         qty,
		Timestamp:   e.clock.Now(),
	}
	e.ledger.ApplyTrade(t)
	return t
}

func (e *Engine) validate(req PlaceRequest) error {
	if req.Qty.Sign() <= 0 {
		return common.ValidationErrorf("quantity must be positive, got %s", req.Qty)
	}
	switch req.Kind {
	case common.Limit:
		if req.Price.Sign() <= 0 {
			return common.ValidationErrorf("limit price must be positive, got %s", req.Price)
		}
		if !req.Price.Mod(e.policy.Tick).IsZero() {
			return common.ValidationErrorf("price %s is not a multiple of tick size %s", req.Price, e.policy.Tick)
		}
	case common.Market:
		// No price to validate; tick alignment and positivity only
		// apply to resting limit orders.
	default:
		return common.ValidationErrorf("unknown order kind %d", req.Kind)
	}
	switch req.Side {
	case common.Buy, common.Sell:
	default:
		return common.ValidationErrorf("unknown order side %d", req.Side)
	}

	if !e.policy.AllowNegativeCash && req.Kind == common.Limit {
		acc := e.ledger.GetOrCreate(req.Owner)
		switch req.Side {
		case common.Buy:
			cost := req.Price.Mul(req.Qty)
			if acc.CashBalance.LessThan(cost) {
				return common.ValidationErrorf("insufficient cash: have %s, need %s", acc.CashBalance, cost)
			}
		case common.Sell:
			if acc.AssetBalance.LessThan(req.Qty) {
				return common.ValidationErrorf("insufficient asset balance: have %s, need %s", acc.AssetBalance, req.Qty)
			}
		}
	}
	return nil
}
