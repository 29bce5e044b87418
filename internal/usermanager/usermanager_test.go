package usermanager

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndGet(t *testing.T) {
	m := New()
	u, err := m.Register("bob_1", "Bob")
	require.NoError(t, err)
	assert.Equal(t, "bob_1", u.ID)

	got, err := m.Get("bob_1")
	require.NoError(t, err)
	assert.Equal(t, "Bob", got.DisplayName)
}

func TestRegisterRejectsMalformedID(t *testing.T) {
	m := New()
	_, err := m.Register("ab", "Too Short")
	assert.ErrorIs(t, err, ErrInvalidUserID)
}

func TestRegisterRejectsDuplicate(t *testing.T) {
	m := New()
	_, err := m.Register("alice123", "Alice")
	require.NoError(t, err)
	_, err = m.Register("alice123", "Alice Again")
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
}

func TestGetUnknownUser(t *testing.T) {
	m := New()
	_, err := m.Get("nobody123")
	assert.ErrorIs(t, err, ErrNotFound)
}
