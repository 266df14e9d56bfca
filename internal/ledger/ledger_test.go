package ledger_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"bourse/internal/common"
	"bourse/internal/ledger"
)

func TestGetOrCreate_SeedsStartingBalances(t *testing.T) {
	l := ledger.New(decimal.NewFromInt(10_000), decimal.Zero)
	acc := l.GetOrCreate("alice")
	assert.True(t, acc.CashBalance.Equal(decimal.NewFromInt(10_000)))
	assert.True(t, acc.AssetBalance.IsZero())

	// Fetching again must not reset balances already mutated.
	acc.CashBalance = decimal.NewFromInt(9_000)
	again := l.GetOrCreate("alice")
	assert.True(t, again.CashBalance.Equal(decimal.NewFromInt(9_000)))
}

func TestApplyTrade_ConservesNotional(t *testing.T) {
	l := ledger.New(decimal.NewFromInt(10_000), decimal.Zero)
	l.GetOrCreate("buyer")
	l.GetOrCreate("seller")

	trade := common.Trade{
		ID:          "t1",
		BuyOrderID:  "bo1",
		SellOrderID: "so1",
		Buyer:       "buyer",
		Seller:      "seller",
		Price:       decimal.NewFromInt(100_000),
		Qty:         decimal.NewFromFloat(0.1),
	}
	l.ApplyTrade(trade)

	buyer := l.GetOrCreate("buyer")
	seller := l.GetOrCreate("seller")

	notional := trade.Price.Mul(trade.Qty)
	assert.True(t, buyer.CashBalance.Equal(decimal.NewFromInt(10_000).Sub(notional)))
	assert.True(t, buyer.AssetBalance.Equal(trade.Qty))
	assert.True(t, seller.CashBalance.Equal(decimal.NewFromInt(10_000).Add(notional)))
	assert.True(t, seller.AssetBalance.Equal(trade.Qty.Neg()))

	assert.Len(t, l.TradesFor("buyer"), 1)
	assert.Len(t, l.TradesFor("seller"), 1)
	assert.Len(t, l.AllTrades(), 1)
}

func TestOpenOrders_AddAndRemove(t *testing.T) {
	l := ledger.New(decimal.Zero, decimal.Zero)
	l.AddOpenOrder("alice", "o1")
	l.AddOpenOrder("alice", "o2")
	assert.Len(t, l.GetOrCreate("alice").OpenOrderIDs(), 2)

	l.RemoveOpenOrder("alice", "o1")
	assert.Len(t, l.GetOrCreate("alice").OpenOrderIDs(), 1)

	// Removing from an unknown account is a no-op, not a panic.
	l.RemoveOpenOrder("nobody", "o1")
}

func TestTradesFor_UnknownAccount(t *testing.T) {
	l := ledger.New(decimal.Zero, decimal.Zero)
	assert.Nil(t, l.TradesFor("nobody"))
}
