package relationship

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLinkAndLookupFromEitherSide(t *testing.T) {
	r := NewRegistry()
	r.Link("o1", "o2", "OCO")

	other, ok := r.CounterpartyIfActive("o1")
	assert.True(t, ok)
	assert.Equal(t, "o2", other)

	other, ok = r.CounterpartyIfActive("o2")
	assert.True(t, ok)
	assert.Equal(t, "o1", other)
}

func TestDeactivateStopsCascadeButKeepsEntry(t *testing.T) {
	r := NewRegistry()
	r.Link("o1", "o2", "OCO")
	r.Deactivate("o1")

	_, ok := r.CounterpartyIfActive("o1")
	assert.False(t, ok)
	assert.True(t, r.Has("o1"))
	assert.True(t, r.Has("o2"))
}

func TestRemoveClearsBothKeys(t *testing.T) {
	r := NewRegistry()
	r.Link("o1", "o2", "OCO")
	r.Remove("o1")

	assert.False(t, r.Has("o1"))
	assert.False(t, r.Has("o2"))
}

func TestUnknownIDNotActive(t *testing.T) {
	r := NewRegistry()
	_, ok := r.CounterpartyIfActive("nope")
	assert.False(t, ok)
}
