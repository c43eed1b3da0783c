//go:build linux && !tinygo

package board

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/warthog618/gpiod"
)

func TestHWRNG_Cycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hwrng")
	require.NoError(t, os.WriteFile(path, []byte{0x12, 0x34, 0x56, 0x78, 0x9A, 0xBC, 0xDE, 0xF0}, 0644))

	rng := newHWRNG(path)
	require.Error(t, rng.Wait(), "wait before enable must fail")
	require.NoError(t, rng.Enable())
	require.NoError(t, rng.Wait())
	v, err := rng.Take()
	require.NoError(t, err)
	require.Equal(t, uint32(0x12345678), v)
	require.NoError(t, rng.Disable())
	require.Nil(t, rng.file, "device must be closed after disable")
	require.NoError(t, rng.Disable(), "second disable is a no-op")
}

func TestHWRNG_MissingDevice(t *testing.T) {
	rng := newHWRNG(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, rng.Enable())
}

func TestOnRadioIRQ_ReplaysEdgeBeforeRegistration(t *testing.T) {
	hw := &Linux{}
	hw.onRadioIRQEvent(gpiod.LineEvent{})
	require.True(t, hw.radioIRQ.Pending())

	calls := 0
	hw.OnRadioIRQ(func() {
		calls++
		require.NoError(t, hw.radioIRQ.Unpend())
	})
	require.Equal(t, 1, calls, "edge raised before registration must be serviced")
	require.False(t, hw.radioIRQ.Pending())

	hw.onRadioIRQEvent(gpiod.LineEvent{})
	require.Equal(t, 2, calls)
}

func TestOnRadioIRQ_NoReplayWithoutPendingEdge(t *testing.T) {
	hw := &Linux{}
	calls := 0
	hw.OnRadioIRQ(func() { calls++ })
	require.Zero(t, calls)
}
