// Package ledger is C3: per-user cash/asset balances, the open-order
// index and the trade log, mutated only through the matching engine's
// atomic trade application (spec §4.4).
package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"bourse/internal/common"
)

// Account is one user's balances and indices. Cash may go negative
// under the allow_negative_cash policy (spec §3); asset may go negative
// because shorting is permitted.
type Account struct {
	ID           common.AccountID
	CashBalance  decimal.Decimal
	AssetBalance decimal.Decimal
	OpenOrders   map[common.OrderID]struct{}
	TradeLog     []common.TradeID
}

func newAccount(id common.AccountID, startingCash, startingAsset decimal.Decimal) *Account {
	return &Account{
		ID:           id,
		CashBalance:  startingCash,
		AssetBalance: startingAsset,
		OpenOrders:   make(map[common.OrderID]struct{}),
	}
}

// OpenOrderIDs returns a stable-ordered snapshot of the account's open
// order ids, sorted by id.
func (a *Account) OpenOrderIDs() []common.OrderID {
	ids := make([]common.OrderID, 0, len(a.OpenOrders))
	for id := range a.OpenOrders {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Ledger owns every account and the global append-only trade log.
type Ledger struct {
	accounts      map[common.AccountID]*Account
	trades        []common.Trade
	tradesByID    map[common.TradeID]*common.Trade
	startingCash  decimal.Decimal
	startingAsset decimal.Decimal
}

// New returns an empty ledger. New accounts are seeded with
// startingCash/startingAsset on first sight (spec §3 defaults: 10,000
// USD cash, 0 BTC).
func New(startingCash, startingAsset decimal.Decimal) *Ledger {
	return &Ledger{
		accounts:      make(map[common.AccountID]*Account),
		tradesByID:    make(map[common.TradeID]*common.Trade),
		startingCash:  startingCash,
		startingAsset: startingAsset,
	}
}

// GetOrCreate returns the account for id, creating it with the starting
// balances if this is the first time id has been seen.
func (l *Ledger) GetOrCreate(id common.AccountID) *Account {
	acc, ok := l.accounts[id]
	if !ok {
		acc = newAccount(id, l.startingCash, l.startingAsset)
		l.accounts[id] = acc
	}
	return acc
}

// AddOpenOrder records orderID as open for accountID.
func (l *Ledger) AddOpenOrder(accountID common.AccountID, orderID common.OrderID) {
	l.GetOrCreate(accountID).OpenOrders[orderID] = struct{}{}
}

// RemoveOpenOrder drops orderID from accountID's open-order index. Safe
// to call on an id that is no longer present.
func (l *Ledger) RemoveOpenOrder(accountID common.AccountID, orderID common.OrderID) {
	if acc, ok := l.accounts[accountID]; ok {
		delete(acc.OpenOrders, orderID)
	}
}

// ApplyTrade is the atomic ledger half of spec §4.3's "atomic
// application": append to the global log, then adjust both parties'
// cash/asset and per-account trade logs. The caller (the matching
// engine) is responsible for this being the only mutation that happens
// between acquiring and releasing the core mutex for this trade.
func (l *Ledger) ApplyTrade(t common.Trade) {
	l.trades = append(l.trades, t)
	l.tradesByID[t.ID] = &l.trades[len(l.trades)-1]

	notional := t.Price.Mul(t.Qty)

	buyer := l.GetOrCreate(t.Buyer)
	buyer.CashBalance = buyer.CashBalance.Sub(notional)
	buyer.AssetBalance = buyer.AssetBalance.Add(t.Qty)
	buyer.TradeLog = append(buyer.TradeLog, t.ID)

	seller := l.GetOrCreate(t.Seller)
	seller.CashBalance = seller.CashBalance.Add(notional)
	seller.AssetBalance = seller.AssetBalance.Sub(t.Qty)
	seller.TradeLog = append(seller.TradeLog, t.ID)
}

// TradesFor returns the trades referenced in accountID's trade log, in
// the order they were recorded (oldest first; display-layer reversal, if
// wanted, is a transport concern per spec §4.4).
func (l *Ledger) TradesFor(accountID common.AccountID) []common.Trade {
	acc, ok := l.accounts[accountID]
	if !ok {
		return nil
	}
	out := make([]common.Trade, 0, len(acc.TradeLog))
	for _, id := range acc.TradeLog {
		if t, ok := l.tradesByID[id]; ok {
			out = append(out, *t)
		}
	}
	return out
}

// AllTrades returns every trade ever recorded, oldest first. Used by
// the ledger's own tests.
func (l *Ledger) AllTrades() []common.Trade {
	out := make([]common.Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

// Accounts returns every account currently known to the ledger, in no
// particular order. Nothing in this repository calls it; never
// mutate the returned accounts directly.
func (l *Ledger) Accounts() []*Account {
	out := make([]*Account, 0, len(l.accounts))
	for _, acc := range l.accounts {
		out = append(out, acc)
	}
	return out
}
