package trading_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bourse/internal/bus"
	"bourse/internal/common"
	"bourse/internal/trading"
)

func newSession() *trading.Session {
	cfg := trading.DefaultConfig()
	cfg.MarketInterval = time.Hour // keep the background simulator quiet during tests
	return trading.New(cfg)
}

func TestPlaceOrder_MintsSessionOnFirstCall(t *testing.T) {
	s := newSession()
	token, _, err := s.PlaceOrder("", trading.PlaceInput{
		Side: common.Buy, Kind: common.Market, Qty: decimal.NewFromFloat(0.01),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	_, user := s.GetUser(token)
	assert.Equal(t, common.AccountID(token), user.AccountID)
}

func TestPlaceOrder_RejectsNonTickAlignedPrice(t *testing.T) {
	s := newSession()
	_, _, err := s.PlaceOrder("", trading.PlaceInput{
		Side: common.Buy, Kind: common.Limit,
		Qty: decimal.NewFromFloat(0.1), Price: decimal.NewFromInt(90_003),
	})
	assert.True(t, errors.Is(err, common.ErrValidation))
}

func TestCancelOrder_NotOwnerAcrossSessions(t *testing.T) {
	s := newSession()
	bobToken, outcome, err := s.PlaceOrder("", trading.PlaceInput{
		Side: common.Buy, Kind: common.Limit,
		Qty: decimal.NewFromFloat(0.1), Price: decimal.NewFromInt(90_000),
	})
	require.NoError(t, err)
	_ = bobToken

	// A different, unknown session token mints a fresh account, distinct
	// from bob's.
	_, _, err = s.CancelOrder("some-other-session", outcome.Order.ID)
	assert.True(t, errors.Is(err, common.ErrNotOwner))
}

func TestCancelOrder_OwnerSucceeds(t *testing.T) {
	s := newSession()
	token, outcome, err := s.PlaceOrder("", trading.PlaceInput{
		Side: common.Buy, Kind: common.Limit,
		Qty: decimal.NewFromFloat(0.1), Price: decimal.NewFromInt(90_000),
	})
	require.NoError(t, err)

	_, order, err := s.CancelOrder(token, outcome.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, common.Cancelled, order.Status)
}

func TestSubscribe_ReceivesOrderBookUpdateAfterTrade(t *testing.T) {
	s := newSession()
	sellerToken, _, err := s.PlaceOrder("", trading.PlaceInput{
		Side: common.Sell, Kind: common.Limit,
		Qty: decimal.NewFromFloat(0.1), Price: decimal.NewFromInt(100_000),
	})
	require.NoError(t, err)

	_, sub, _, _ := s.Subscribe(sellerToken)
	defer s.Unsubscribe(sub.ID())

	_, _, err = s.PlaceOrder("", trading.PlaceInput{
		Side: common.Buy, Kind: common.Limit,
		Qty: decimal.NewFromFloat(0.1), Price: decimal.NewFromInt(100_000),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	var kinds []bus.Kind
	for i := 0; i < 4; i++ {
		ev, ok := sub.Next(ctx)
		if !ok {
			break
		}
		kinds = append(kinds, ev.Kind)
	}
	assert.Contains(t, kinds, bus.KindFill)
	assert.Contains(t, kinds, bus.KindBalanceUpdate)
	assert.Contains(t, kinds, bus.KindOrdersUpdate)
	assert.Contains(t, kinds, bus.KindOrderBookUpdate)
}

func TestGetBook_ReflectsRestingOrders(t *testing.T) {
	s := newSession()
	_, _, err := s.PlaceOrder("", trading.PlaceInput{
		Side: common.Sell, Kind: common.Limit,
		Qty: decimal.NewFromFloat(0.1), Price: decimal.NewFromInt(100_000),
	})
	require.NoError(t, err)

	snap := s.GetBook()
	require.Len(t, snap.Asks, 1)
	assert.True(t, snap.Asks[0].Price.Equal(decimal.NewFromInt(100_000)))
}
