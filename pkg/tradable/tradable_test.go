package tradable

import (
	"testing"

	"github.com/lightsgoout/exchange-engine/pkg/price"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustOrder(t *testing.T, volume int64) *Order {
	t.Helper()
	o, err := NewOrder("o1", "ALICE", "AAPL", Buy, price.MustFromCents(15000), volume, Limit)
	require.NoError(t, err)
	return o
}

func TestNewOrderRejectsBadVolume(t *testing.T) {
	_, err := NewOrder("o1", "ALICE", "AAPL", Buy, price.MustFromCents(15000), 0, Limit)
	assert.ErrorIs(t, err, ErrInvalidVolume)

	_, err = NewOrder("o1", "ALICE", "AAPL", Buy, price.MustFromCents(15000), 10000, Limit)
	assert.ErrorIs(t, err, ErrInvalidVolume)
}

func TestFillPartialThenFull(t *testing.T) {
	o := mustOrder(t, 100)
	o.SetStatus(Accepted)

	ft := o.Fill(40)
	assert.Equal(t, Partial, ft)
	assert.Equal(t, int64(60), o.RemainingVolume())
	assert.Equal(t, int64(40), o.FilledVolume())
	assert.Equal(t, PartiallyFilled, o.Status())
	assert.True(t, o.base.invariant())

	ft = o.Fill(60)
	assert.Equal(t, Full, ft)
	assert.Equal(t, int64(0), o.RemainingVolume())
	assert.Equal(t, FullyFilled, o.Status())
	assert.True(t, o.base.invariant())
}

func TestCancelMovesRemainingToCancelled(t *testing.T) {
	o := mustOrder(t, 100)
	o.SetStatus(Accepted)
	o.Fill(30)

	moved := o.Cancel()
	assert.Equal(t, int64(70), moved)
	assert.Equal(t, int64(0), o.RemainingVolume())
	assert.Equal(t, int64(70), o.CancelledVolume())
	assert.Equal(t, int64(30), o.FilledVolume())
	assert.True(t, o.base.invariant())
}

func TestFillExceedingRemainingPanics(t *testing.T) {
	o := mustOrder(t, 10)
	o.SetStatus(Accepted)
	assert.Panics(t, func() { o.Fill(11) })
}

func TestSideOpposite(t *testing.T) {
	assert.Equal(t, Sell, Buy.Opposite())
	assert.Equal(t, Buy, Sell.Opposite())
}

func TestStatusPredicates(t *testing.T) {
	assert.True(t, FullyFilled.IsFinal())
	assert.True(t, CancelledOCO.IsFinal())
	assert.False(t, Accepted.IsFinal())
	assert.True(t, Accepted.IsExecutable())
	assert.True(t, PartiallyFilled.IsExecutable())
	assert.False(t, Pending.IsExecutable())
}

func TestQuoteSideLinksSharedQuoteID(t *testing.T) {
	q, err := NewQuoteSide("q1-buy", "q1", "BOB", "AAPL", Buy, price.MustFromCents(100), 5)
	require.NoError(t, err)
	assert.Equal(t, "q1", q.QuoteID())
}

func TestOrderLinkage(t *testing.T) {
	o := mustOrder(t, 10)
	o.WithLink(OCO, "o2")
	assert.Equal(t, OCO, o.LinkType())
	assert.Equal(t, "o2", o.LinkedOrderID())
}
