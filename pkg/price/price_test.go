package price

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoundTrip(t *testing.T) {
	p, err := Parse("150.00")
	require.NoError(t, err)
	assert.Equal(t, int64(15000), p.Cents())
	assert.Equal(t, "150.00", p.String())
}

func TestParseRejectsNegative(t *testing.T) {
	_, err := Parse("-1.00")
	assert.ErrorIs(t, err, ErrNegative)
}

func TestFromCentsRejectsNegative(t *testing.T) {
	_, err := FromCents(-5)
	assert.ErrorIs(t, err, ErrNegative)
}

func TestCompareAndLess(t *testing.T) {
	a := MustFromCents(100)
	b := MustFromCents(200)
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 1, b.Compare(a))
	assert.Equal(t, 0, a.Compare(a))
}

func TestHalfEvenRounding(t *testing.T) {
	// 100.005 -> ties to even cent (100.00 has an even last digit already,
	// 100.01 would be the "round half up" answer).
	p, err := Parse("100.005")
	require.NoError(t, err)
	assert.Equal(t, int64(10000), p.Cents())
}
