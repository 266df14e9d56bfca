// Package book is C2: the two-sided price-time priority order book. It
// generalizes the teacher's engine.OrderBook (github.com/tidwall/btree
// price-indexed ladders, FIFO-by-arrival within a level) from float64
// prices and a single toy asset to decimal.Decimal prices for the
// fixed BTC/USD instrument.
package book

import (
	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"

	"bourse/internal/common"
)

// PriceLevel is every resting order at one price, oldest first.
type PriceLevel struct {
	Price  decimal.Decimal
	Side   common.Side
	Orders []*common.Order
}

// Level is an aggregated, read-only view of one price level, as returned
// by snapshots.
type Level struct {
	Price decimal.Decimal
	Qty   decimal.Decimal
}

// Book holds the bid and ask ladders plus an id index for O(1)-ish
// removal (spec §9: "a direct position hint stored on the order
// suffices" — here the hint is the PriceLevel pointer itself, found via
// an O(1) map lookup; locating the order within its level is a linear
// scan bounded by the depth of a single price level, which stays small
// at simulator scale).
type Book struct {
	bids  *btree.BTreeG[*PriceLevel] // sorted descending by price
	asks  *btree.BTreeG[*PriceLevel] // sorted ascending by price
	index map[common.OrderID]*PriceLevel
}

// New returns an empty book.
func New() *Book {
	return &Book{
		bids: btree.NewBTreeG(func(a, b *PriceLevel) bool {
			return a.Price.GreaterThan(b.Price)
		}),
		asks: btree.NewBTreeG(func(a, b *PriceLevel) bool {
			return a.Price.LessThan(b.Price)
		}),
		index: make(map[common.OrderID]*PriceLevel),
	}
}

func (b *Book) ladder(side common.Side) *btree.BTreeG[*PriceLevel] {
	if side == common.Buy {
		return b.bids
	}
	return b.asks
}

// opposite returns the ladder a taker on side crosses into.
func (b *Book) opposite(side common.Side) *btree.BTreeG[*PriceLevel] {
	if side == common.Buy {
		return b.asks
	}
	return b.bids
}

// BestBid returns the best (highest) bid price and its aggregated resting
// quantity, or ok=false if the bid side is empty.
func (b *Book) BestBid() (price, qty decimal.Decimal, ok bool) {
	return bestOf(b.bids)
}

// BestAsk returns the best (lowest) ask price and its aggregated resting
// quantity, or ok=false if the ask side is empty.
func (b *Book) BestAsk() (price, qty decimal.Decimal, ok bool) {
	return bestOf(b.asks)
}

func bestOf(ladder *btree.BTreeG[*PriceLevel]) (price, qty decimal.Decimal, ok bool) {
	lvl, found := ladder.Min()
	if !found {
		return decimal.Zero, decimal.Zero, false
	}
	return lvl.Price, aggregate(lvl), true
}

func aggregate(lvl *PriceLevel) decimal.Decimal {
	sum := decimal.Zero
	for _, o := range lvl.Orders {
		sum = sum.Add(o.RemainingQty)
	}
	return sum
}

// Insert places a resting limit order at the tail of its price level's
// FIFO queue, creating the level if it doesn't exist yet.
func (b *Book) Insert(o *common.Order) {
	ladder := b.ladder(o.Side)
	key := &PriceLevel{Price: o.Price, Side: o.Side}
	lvl, found := ladder.Get(key)
	if !found {
		lvl = key
		ladder.Set(lvl)
	}
	lvl.Orders = append(lvl.Orders, o)
	b.index[o.ID] = lvl
}

// Remove takes an order off the book by id. Returns false if the id is
// not currently resting. Empty levels are eliminated from the ladder.
func (b *Book) Remove(id common.OrderID) bool {
	lvl, ok := b.index[id]
	if !ok {
		return false
	}
	for i, o := range lvl.Orders {
		if o.ID == id {
			lvl.Orders = append(lvl.Orders[:i], lvl.Orders[i+1:]...)
			break
		}
	}
	delete(b.index, id)
	if len(lvl.Orders) == 0 {
		b.ladder(lvl.Side).Delete(lvl)
	}
	return true
}

// BestOpposite returns the best-priority resting order on the side
// opposite to side: best price first, then earliest sequence within
// that price (FIFO, spec invariant 5).
func (b *Book) BestOpposite(side common.Side) (*common.Order, bool) {
	lvl, found := b.opposite(side).Min()
	if !found || len(lvl.Orders) == 0 {
		return nil, false
	}
	return lvl.Orders[0], true
}

// DropEmpty removes o's price level from the book if filling o emptied
// it. Call after the caller has mutated o.RemainingQty to zero and
// wants it off the book without disturbing siblings at the same level.
func (b *Book) DropEmpty(o *common.Order) {
	lvl, ok := b.index[o.ID]
	if !ok {
		return
	}
	if len(lvl.Orders) > 0 && lvl.Orders[0].ID == o.ID {
		lvl.Orders = lvl.Orders[1:]
	}
	delete(b.index, o.ID)
	if len(lvl.Orders) == 0 {
		b.ladder(lvl.Side).Delete(lvl)
	}
}

// Crossed reports whether the book is currently crossed (best bid >=
// best ask). An empty or one-sided book is never crossed (spec
// invariant 4).
func (b *Book) Crossed() bool {
	bidPrice, _, hasBid := b.BestBid()
	askPrice, _, hasAsk := b.BestAsk()
	if !hasBid || !hasAsk {
		return false
	}
	return bidPrice.GreaterThanOrEqual(askPrice)
}

// Snapshot returns up to depth aggregated levels per side, best price
// first on each side.
func (b *Book) Snapshot(depth int) (bids, asks []Level) {
	bids = snapshotSide(b.bids, depth)
	asks = snapshotSide(b.asks, depth)
	return bids, asks
}

func snapshotSide(ladder *btree.BTreeG[*PriceLevel], depth int) []Level {
	out := make([]Level, 0, depth)
	ladder.Scan(func(lvl *PriceLevel) bool {
		if len(out) >= depth {
			return false
		}
		out = append(out, Level{Price: lvl.Price, Qty: aggregate(lvl)})
		return true
	})
	return out
}
