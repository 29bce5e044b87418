package stp

import (
	"testing"

	"github.com/lightsgoout/exchange-engine/pkg/price"
	"github.com/lightsgoout/exchange-engine/pkg/tradable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func order(t *testing.T, user string) *tradable.Order {
	t.Helper()
	o, err := tradable.NewOrder("id", user, "AAPL", tradable.Buy, price.MustFromCents(100), 10, tradable.Limit)
	require.NoError(t, err)
	return o
}

func TestIsSelfTrade(t *testing.T) {
	a := order(t, "ALICE")
	b := order(t, "ALICE")
	c := order(t, "BOB")

	assert.True(t, IsSelfTrade(DefaultExtractor, a, b))
	assert.False(t, IsSelfTrade(DefaultExtractor, a, c))
	assert.False(t, IsSelfTrade(nil, a, c))
}

func TestParseModeUnknownDefaultsToCancelResting(t *testing.T) {
	mode, ok := ParseMode("NOT_A_MODE")
	assert.False(t, ok)
	assert.Equal(t, CancelResting, mode)
}

func TestApplyOutcomes(t *testing.T) {
	cases := []struct {
		mode     Mode
		expected Outcome
	}{
		{Allow, Outcome{}},
		{CancelIncoming, Outcome{CancelIncoming: true, ExitLoop: true}},
		{CancelResting, Outcome{CancelResting: true, ExitLoop: false}},
		{CancelBoth, Outcome{CancelIncoming: true, CancelResting: true, ExitLoop: true}},
	}
	for _, c := range cases {
		assert.Equal(t, c.expected, Apply(c.mode), c.mode.String())
	}
}
