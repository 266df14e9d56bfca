package market_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bourse/internal/book"
	"bourse/internal/bus"
	"bourse/internal/market"
)

func TestStep_PublishesMarketDataWithinDriftBound(t *testing.T) {
	var published []market.Quote
	snapshot := func(depth int) ([]book.Level, []book.Level) { return nil, nil }
	publish := func(kind bus.Kind, data any) {
		require.Equal(t, bus.KindMarketData, kind)
		published = append(published, data.(market.Quote))
	}

	sim := market.New(market.Config{
		Symbol:        "BTC/USD",
		InitialPrice:  decimal.NewFromInt(100_000),
		Tick:          decimal.NewFromInt(10),
		MaxDriftTicks: 3,
		Depth:         10,
	}, snapshot, publish)

	for i := 0; i < 20; i++ {
		sim.Step()
	}

	require.Len(t, published, 20)
	maxMove := decimal.NewFromInt(30) // 3 ticks * 10
	prev := decimal.NewFromInt(100_000)
	for _, q := range published {
		delta := q.Price.Sub(prev).Abs()
		assert.True(t, delta.LessThanOrEqual(maxMove), "single-step move must stay within the configured drift bound")
		prev = q.Price
	}
}

func TestStep_NeverPublishesNonPositivePrice(t *testing.T) {
	snapshot := func(depth int) ([]book.Level, []book.Level) { return nil, nil }
	var last decimal.Decimal
	publish := func(kind bus.Kind, data any) { last = data.(market.Quote).Price }

	sim := market.New(market.Config{
		InitialPrice:  decimal.NewFromInt(10),
		Tick:          decimal.NewFromInt(10),
		MaxDriftTicks: 5,
	}, snapshot, publish)

	for i := 0; i < 50; i++ {
		sim.Step()
		assert.True(t, last.Sign() > 0)
	}
}
