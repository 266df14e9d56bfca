// Package trading is C8: the single facade the transport layer talks
// to. It owns the one logical critical section spec §5 requires — a
// plain sync.Mutex guarding the book, ledger, engine and session
// registry together — and is the only place that tells the event bus
// about a change. Events are queued onto the bus after a mutation is
// complete but while the mutex is still held; the bus's per-subscriber
// queues never block.
package trading

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"bourse/internal/book"
	"bourse/internal/bus"
	"bourse/internal/clock"
	"bourse/internal/common"
	"bourse/internal/engine"
	"bourse/internal/ledger"
	"bourse/internal/market"
	"bourse/internal/session"
)

// Config carries every startup default from spec §6.
type Config struct {
	Symbol            string
	StartingCash      decimal.Decimal
	StartingAsset     decimal.Decimal
	ReferencePrice    decimal.Decimal
	Tick              decimal.Decimal
	AllowNegativeCash bool
	Depth             int
	MarketInterval    time.Duration
	MaxDriftTicks     int64
}

// DefaultConfig matches spec §6's startup defaults table.
func DefaultConfig() Config {
	return Config{
		Symbol:            "BTC/USD",
		StartingCash:      decimal.NewFromInt(10_000),
		StartingAsset:     decimal.Zero,
		ReferencePrice:    decimal.NewFromInt(100_000),
		Tick:              decimal.NewFromInt(10),
		AllowNegativeCash: true,
		Depth:             10,
		MarketInterval:    2 * time.Second,
		MaxDriftTicks:     3,
	}
}

// UserSnapshot is the account view handed to callers (spec §4.5
// "user_info").
type UserSnapshot struct {
	AccountID    common.AccountID
	CashBalance  decimal.Decimal
	AssetBalance decimal.Decimal
}

// BookSnapshot is the top-N aggregated view handed to callers (spec
// §4.5 "order_book"/"order_book_update").
type BookSnapshot struct {
	Bids []book.Level
	Asks []book.Level
}

// PlaceInput is place_order's request shape (spec §4.8 table).
type PlaceInput struct {
	Side  common.Side
	Kind  common.Kind
	Qty   decimal.Decimal
	Price decimal.Decimal
}

// PlaceOutcome is place_order's success shape.
type PlaceOutcome struct {
	Order  *common.Order
	Trades []common.Trade
}

// Session is the trading-session facade: C8 wired over C1–C7.
type Session struct {
	mu sync.Mutex

	clock    *clock.Source
	book     *book.Book
	ledger   *ledger.Ledger
	engine   *engine.Engine
	sessions *session.Registry
	bus      *bus.Bus
	market   *market.Simulator

	symbol string
	depth  int
}

// New builds a fully wired trading session from cfg. The market
// simulator is constructed but not started — call StartMarketSimulator.
func New(cfg Config) *Session {
	clk := clock.New()
	bk := book.New()
	led := ledger.New(cfg.StartingCash, cfg.StartingAsset)
	eng := engine.New(clk, bk, led, engine.Policy{
		Tick:              cfg.Tick,
		AllowNegativeCash: cfg.AllowNegativeCash,
	})

	s := &Session{
		clock:    clk,
		book:     bk,
		ledger:   led,
		engine:   eng,
		sessions: session.New(),
		bus:      bus.New(),
		symbol:   cfg.Symbol,
		depth:    cfg.Depth,
	}

	s.market = market.New(market.Config{
		Symbol:        cfg.Symbol,
		InitialPrice:  cfg.ReferencePrice,
		Tick:          cfg.Tick,
		MaxDriftTicks: cfg.MaxDriftTicks,
		Interval:      cfg.MarketInterval,
		Depth:         cfg.Depth,
	}, s.lockedBookSnapshot, s.bus.PublishBroadcast)

	return s
}

// lockedBookSnapshot is the only thing the market simulator's own
// goroutine is allowed to touch on the core: a brief, locked read of
// the top of book (spec §5 "Market simulator takes the lock only to
// read the top-of-book snapshot").
func (s *Session) lockedBookSnapshot(depth int) ([]book.Level, []book.Level) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.Snapshot(depth)
}

// StartMarketSimulator starts C7's background loop.
func (s *Session) StartMarketSimulator() {
	s.market.Start()
}

// Stop cancels the market simulator and waits for it to exit.
func (s *Session) Stop() error {
	return s.market.Stop()
}

// PlaceOrder is place_order (spec §4.8).
func (s *Session) PlaceOrder(sessionID string, in PlaceInput) (token string, out PlaceOutcome, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, account, _ := s.sessions.Resolve(sessionID)
	order, trades, err := s.engine.Place(engine.PlaceRequest{
		Owner: account,
		Side:  in.Side,
		Kind:  in.Kind,
		Qty:   in.Qty,
		Price: in.Price,
	})
	if err != nil {
		return token, PlaceOutcome{}, err
	}
	s.emitAfterMatch(order, trades)
	return token, PlaceOutcome{Order: order, Trades: trades}, nil
}

// CancelOrder is cancel_order (spec §4.8).
func (s *Session) CancelOrder(sessionID string, orderID common.OrderID) (token string, order *common.Order, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, account, _ := s.sessions.Resolve(sessionID)
	order, err = s.engine.Cancel(orderID, account)
	if err != nil {
		return token, nil, err
	}
	s.emitAfterOrderChange(account)
	return token, order, nil
}

// AmendOrder is amend_order (spec §4.8): cancel-then-replace, which may
// immediately cross and produce trades like a fresh placement.
func (s *Session) AmendOrder(sessionID string, orderID common.OrderID, newPrice, newQty *decimal.Decimal) (token string, order *common.Order, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, account, _ := s.sessions.Resolve(sessionID)
	replacement, trades, err := s.engine.Amend(orderID, account, newPrice, newQty)
	if err != nil {
		return token, nil, err
	}
	s.emitAfterMatch(replacement, trades)
	return token, replacement, nil
}

// GetUser is get_user (spec §4.8).
func (s *Session) GetUser(sessionID string) (token string, snap UserSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, account, _ := s.sessions.Resolve(sessionID)
	return token, s.accountSnapshotLocked(account)
}

// GetOrders is get_orders (spec §4.8): open orders only.
func (s *Session) GetOrders(sessionID string) (token string, orders []*common.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, account, _ := s.sessions.Resolve(sessionID)
	return token, s.openOrdersLocked(account)
}

// GetTrades is get_trades (spec §4.8).
func (s *Session) GetTrades(sessionID string) (token string, trades []common.Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, account, _ := s.sessions.Resolve(sessionID)
	return token, s.ledger.TradesFor(account)
}

// GetBook is get_book (spec §4.8): no session required.
func (s *Session) GetBook() BookSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	bids, asks := s.book.Snapshot(s.depth)
	return BookSnapshot{Bids: bids, Asks: asks}
}

// Subscribe is subscribe (spec §4.8): returns a live handle plus the
// initial user_info and order_book the caller is owed on connect.
func (s *Session) Subscribe(sessionID string) (token string, sub *bus.Subscriber, user UserSnapshot, initial BookSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, account, _ := s.sessions.Resolve(sessionID)
	sub = s.bus.Subscribe(account, bus.DefaultCapacity)
	bids, asks := s.book.Snapshot(s.depth)
	return token, sub, s.accountSnapshotLocked(account), BookSnapshot{Bids: bids, Asks: asks}
}

// Unsubscribe removes a dead or disconnected subscriber.
func (s *Session) Unsubscribe(id uint64) {
	s.bus.Unsubscribe(id)
}

func (s *Session) accountSnapshotLocked(id common.AccountID) UserSnapshot {
	acc := s.ledger.GetOrCreate(id)
	return UserSnapshot{AccountID: id, CashBalance: acc.CashBalance, AssetBalance: acc.AssetBalance}
}

func (s *Session) openOrdersLocked(id common.AccountID) []*common.Order {
	acc := s.ledger.GetOrCreate(id)
	ids := acc.OpenOrderIDs()
	out := make([]*common.Order, 0, len(ids))
	for _, oid := range ids {
		if o, ok := s.engine.Order(oid); ok {
			out = append(out, o)
		}
	}
	return out
}

// emitAfterMatch is spec §4.3's Emission step: fills, then a
// balance_update per affected account, then an orders_update per
// affected account, then one order_book_update — in that order, after
// the whole matching pass has already committed. x.Owner is always
// included even when no trade happened (scenario S1: a lone taker with
// no liquidity still gets an orders_update).
func (s *Session) emitAfterMatch(x *common.Order, trades []common.Trade) {
	affected := map[common.AccountID]struct{}{x.Owner: {}}
	for _, t := range trades {
		affected[t.Buyer] = struct{}{}
		affected[t.Seller] = struct{}{}
	}

	for _, t := range trades {
		s.bus.PublishTo(t.Buyer, bus.KindFill, t)
		s.bus.PublishTo(t.Seller, bus.KindFill, t)
	}
	for acc := range affected {
		s.bus.PublishTo(acc, bus.KindBalanceUpdate, s.accountSnapshotLocked(acc))
	}
	for acc := range affected {
		s.bus.PublishTo(acc, bus.KindOrdersUpdate, s.openOrdersLocked(acc))
	}
	s.publishBookUpdateLocked()
}

// emitAfterOrderChange is the cancel-only path: no trades, no balance
// change, just the caller's open orders and the new top of book.
func (s *Session) emitAfterOrderChange(account common.AccountID) {
	s.bus.PublishTo(account, bus.KindOrdersUpdate, s.openOrdersLocked(account))
	s.publishBookUpdateLocked()
}

func (s *Session) publishBookUpdateLocked() {
	bids, asks := s.book.Snapshot(s.depth)
	s.bus.PublishBroadcast(bus.KindOrderBookUpdate, BookSnapshot{Bids: bids, Asks: asks})
}
