package stage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTimer_ResetArmsCountdown(t *testing.T) {
	timer := NewTimer(nil, nil)
	timer.Reset(90)
	require.Equal(t, 90, timer.Remaining())
	require.False(t, timer.Expired())
}

func TestTimer_ResetToZeroIsExpired(t *testing.T) {
	timer := NewTimer(nil, nil)
	timer.Reset(0)
	require.True(t, timer.Expired())
}

func TestTimer_AddSeconds(t *testing.T) {
	timer := NewTimer(nil, nil)
	timer.Reset(30)

	timer.AddSeconds(15)
	require.Equal(t, 45, timer.Remaining())

	timer.AddSeconds(-100)
	require.Equal(t, 0, timer.Remaining())
	require.True(t, timer.Expired())

	// adding time clears the expired flag
	timer.AddSeconds(10)
	require.Equal(t, 10, timer.Remaining())
	require.False(t, timer.Expired())
}

func TestTimer_SetRemaining(t *testing.T) {
	timer := NewTimer(nil, nil)
	timer.Reset(30)

	timer.SetRemaining(300)
	require.Equal(t, 300, timer.Remaining())

	timer.SetRemaining(-5)
	require.Equal(t, 0, timer.Remaining())
	require.True(t, timer.Expired())
}

func TestTimer_StartStopIdempotent(t *testing.T) {
	timer := NewTimer(nil, nil)
	timer.Start()
	timer.Start()
	timer.Stop()
	timer.Stop()
}
