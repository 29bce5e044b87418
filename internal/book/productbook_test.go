package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lightsgoout/exchange-engine/internal/audit"
	"github.com/lightsgoout/exchange-engine/internal/relationship"
	"github.com/lightsgoout/exchange-engine/internal/stp"
	"github.com/lightsgoout/exchange-engine/internal/topofbook"
	"github.com/lightsgoout/exchange-engine/pkg/price"
	"github.com/lightsgoout/exchange-engine/pkg/tradable"
)

type fixture struct {
	book  *ProductBook
	sink  *audit.MemorySink
	rels  *relationship.Registry
	pub   *topofbook.Publisher
}

func newFixture(t *testing.T, mode stp.Mode) *fixture {
	t.Helper()
	sink := audit.NewMemorySink()
	chain := audit.NewHashChain(sink)
	rels := relationship.NewRegistry()
	pub := topofbook.NewPublisher()
	pb := NewProductBook("AAPL", mode, rels, chain, pub, nil)
	return &fixture{book: pb, sink: sink, rels: rels, pub: pub}
}

func order(t *testing.T, id, user, instrument string, side tradable.Side, cents int64, volume int64) *tradable.Order {
	t.Helper()
	o, err := tradable.NewOrder(id, user, instrument, side, price.MustFromCents(cents), volume, tradable.Limit)
	require.NoError(t, err)
	return o
}

func fokOrder(t *testing.T, id, user, instrument string, side tradable.Side, cents int64, volume int64) *tradable.Order {
	t.Helper()
	o, err := tradable.NewOrder(id, user, instrument, side, price.MustFromCents(cents), volume, tradable.FOK)
	require.NoError(t, err)
	return o
}

func eventTypes(events []audit.Event) []audit.EventType {
	out := make([]audit.EventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

// S1 — simple cross.
func TestSimpleCross(t *testing.T) {
	f := newFixture(t, stp.CancelResting)

	sell := order(t, "s1", "ALICE", "AAPL", tradable.Sell, 15000, 100)
	_, err := f.book.Add(sell)
	require.NoError(t, err)

	buy := order(t, "b1", "BOB", "AAPL", tradable.Buy, 15000, 100)
	res, err := f.book.Add(buy)
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	assert.Equal(t, int64(100), res.Trades[0].Quantity)
	assert.Equal(t, price.MustFromCents(15000), res.Trades[0].Price)
	assert.Equal(t, tradable.FullyFilled, sell.Status())
	assert.Equal(t, tradable.FullyFilled, buy.Status())
	assert.True(t, f.book.buy.Empty())
	assert.True(t, f.book.sell.Empty())

	_, hasBid := f.book.buy.TopOfBookPrice()
	_, hasAsk := f.book.sell.TopOfBookPrice()
	assert.False(t, hasBid)
	assert.False(t, hasAsk)

	types := eventTypes(f.sink.Events())
	assert.Contains(t, types, audit.TradeExecuted)
	filledCount := 0
	for _, ty := range types {
		if ty == audit.OrderFilled {
			filledCount++
		}
	}
	assert.Equal(t, 2, filledCount)
}

// S2 — partial fill then cross; trade executes at the resting side's price.
func TestPartialFillThenCross(t *testing.T) {
	f := newFixture(t, stp.CancelResting)

	sell := order(t, "s1", "A", "AAPL", tradable.Sell, 31000, 60)
	_, err := f.book.Add(sell)
	require.NoError(t, err)

	buy := order(t, "b1", "B", "AAPL", tradable.Buy, 31100, 100)
	res, err := f.book.Add(buy)
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	assert.Equal(t, int64(60), res.Trades[0].Quantity)
	assert.Equal(t, price.MustFromCents(31000), res.Trades[0].Price) // resting (sell) price

	assert.True(t, f.book.sell.Empty())
	assert.Equal(t, tradable.PartiallyFilled, buy.Status())
	assert.Equal(t, int64(40), buy.RemainingVolume())

	bidPx, ok := f.book.buy.TopOfBookPrice()
	require.True(t, ok)
	assert.Equal(t, price.MustFromCents(31100), bidPx)
	assert.Equal(t, int64(40), f.book.buy.TopOfBookVolume())
}

// S3 — FOK insufficient liquidity leaves the book untouched.
func TestFOKInsufficientLiquidityRejected(t *testing.T) {
	f := newFixture(t, stp.CancelResting)

	_, err := f.book.Add(order(t, "s1", "X", "AAPL", tradable.Sell, 10000, 30))
	require.NoError(t, err)
	_, err = f.book.Add(order(t, "s2", "X", "AAPL", tradable.Sell, 10100, 20))
	require.NoError(t, err)

	incoming := fokOrder(t, "b1", "C", "AAPL", tradable.Buy, 10100, 60)
	res, err := f.book.Add(incoming)

	assert.ErrorIs(t, err, ErrRejectedFOK)
	assert.Equal(t, tradable.RejectedFOK, incoming.Status())
	assert.Empty(t, res.Trades)
	assert.False(t, f.book.buy.Has("b1"))

	types := eventTypes(f.sink.Events())
	assert.Contains(t, types, audit.OrderRejected)
	assert.NotContains(t, types, audit.TradeExecuted)
}

// S4 — OCO cascade: a fill on one leg cancels its linked counterpart.
func TestOCOCascadeOnFill(t *testing.T) {
	f := newFixture(t, stp.CancelResting)

	first := order(t, "o1", "D", "AAPL", tradable.Buy, 20000, 10).WithLink(tradable.OCO, "o2")
	_, err := f.book.Add(first)
	require.NoError(t, err)

	second := order(t, "o2", "D", "AAPL", tradable.Buy, 19500, 10).WithLink(tradable.OCO, "o1")
	_, err = f.book.Add(second)
	require.NoError(t, err)

	assert.True(t, f.rels.Has("o1"))
	assert.True(t, f.rels.Has("o2"))

	sell := order(t, "s1", "E", "AAPL", tradable.Sell, 20000, 10)
	res, err := f.book.Add(sell)
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	assert.Equal(t, tradable.FullyFilled, first.Status())
	assert.Equal(t, tradable.CancelledOCO, second.Status())
	assert.False(t, f.book.buy.Has("o2"))

	_, stillActive := f.rels.CounterpartyIfActive("o1")
	assert.False(t, stillActive)

	types := eventTypes(f.sink.Events())
	// ORDER_PLACED(sell) ... TRADE_EXECUTED, ORDER_FILLED(first), ORDER_CANCELLED(second, OCO)
	tradeIdx := indexOf(types, audit.TradeExecuted)
	filledIdx := indexOf(types, audit.OrderFilled)
	cancelIdx := lastIndexOf(types, audit.OrderCancelled)
	require.NotEqual(t, -1, tradeIdx)
	require.NotEqual(t, -1, filledIdx)
	require.NotEqual(t, -1, cancelIdx)
	assert.Less(t, tradeIdx, filledIdx)
	assert.Less(t, filledIdx, cancelIdx)
}

// S5 — STP cancel-resting: the resting order is cancelled, no trade.
func TestSTPCancelResting(t *testing.T) {
	f := newFixture(t, stp.CancelResting)

	resting := order(t, "r1", "F", "AAPL", tradable.Sell, 14000, 50)
	_, err := f.book.Add(resting)
	require.NoError(t, err)

	incoming := order(t, "i1", "F", "AAPL", tradable.Buy, 14000, 50)
	res, err := f.book.Add(incoming)
	require.NoError(t, err)

	assert.Empty(t, res.Trades)
	assert.Equal(t, tradable.CancelledSTP, resting.Status())
	assert.True(t, f.book.buy.Has("i1"))

	types := eventTypes(f.sink.Events())
	assert.NotContains(t, types, audit.TradeExecuted)
}

// STP ALLOW must proceed to trade rather than cancel or loop forever.
func TestSTPAllowTradesNormally(t *testing.T) {
	f := newFixture(t, stp.Allow)

	resting := order(t, "r1", "F", "AAPL", tradable.Sell, 14000, 50)
	_, err := f.book.Add(resting)
	require.NoError(t, err)

	incoming := order(t, "i1", "F", "AAPL", tradable.Buy, 14000, 50)
	res, err := f.book.Add(incoming)
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	assert.Equal(t, int64(50), res.Trades[0].Quantity)
	assert.Equal(t, tradable.FullyFilled, resting.Status())
	assert.Equal(t, tradable.FullyFilled, incoming.Status())
	assert.True(t, f.book.buy.Empty())
	assert.True(t, f.book.sell.Empty())

	types := eventTypes(f.sink.Events())
	assert.Contains(t, types, audit.TradeExecuted)
}

func TestCancelDeactivatesButDoesNotCascadeOCO(t *testing.T) {
	f := newFixture(t, stp.CancelResting)

	first := order(t, "o1", "D", "AAPL", tradable.Buy, 20000, 10).WithLink(tradable.OCO, "o2")
	_, err := f.book.Add(first)
	require.NoError(t, err)
	second := order(t, "o2", "D", "AAPL", tradable.Buy, 19500, 10).WithLink(tradable.OCO, "o1")
	_, err = f.book.Add(second)
	require.NoError(t, err)

	_, err = f.book.Cancel(tradable.Buy, "o1")
	require.NoError(t, err)

	assert.True(t, f.book.buy.Has("o2"))
	_, active := f.rels.CounterpartyIfActive("o2")
	assert.False(t, active)
}

func TestInvariantRemainingFilledCancelledSumsToOriginal(t *testing.T) {
	f := newFixture(t, stp.CancelResting)

	sell := order(t, "s1", "A", "AAPL", tradable.Sell, 10000, 75)
	_, err := f.book.Add(sell)
	require.NoError(t, err)
	buy := order(t, "b1", "B", "AAPL", tradable.Buy, 10000, 40)
	_, err = f.book.Add(buy)
	require.NoError(t, err)

	assert.Equal(t, sell.OriginalVolume(), sell.RemainingVolume()+sell.FilledVolume()+sell.CancelledVolume())
	assert.Equal(t, buy.OriginalVolume(), buy.RemainingVolume()+buy.FilledVolume()+buy.CancelledVolume())
}

func indexOf(types []audit.EventType, target audit.EventType) int {
	for i, ty := range types {
		if ty == target {
			return i
		}
	}
	return -1
}

func lastIndexOf(types []audit.EventType, target audit.EventType) int {
	idx := -1
	for i, ty := range types {
		if ty == target {
			idx = i
		}
	}
	return idx
}
