package entity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewUser_DefaultState(t *testing.T) {
	u := NewUser(1, 10)
	require.Equal(t, StateMainMenu, u.State)
	require.Equal(t, int64(1), u.ID)
	require.Equal(t, int64(10), u.ChatID)
	require.Zero(t, u.Checks)
}

func TestUser_EffectiveThreshold(t *testing.T) {
	u := NewUser(1, 10)
	require.Equal(t, 0.25, u.EffectiveThreshold(0.25))

	u.Threshold = 0.5
	require.Equal(t, 0.5, u.EffectiveThreshold(0.25))
}
