package rng

import (
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func TestNewSystemProducesDistinctValues(t *testing.T) {
	system, err := NewSystem(nil)
	require.NoError(t, err)
	require.NotNil(t, system)

	seen := make(map[uint64]bool, 1000)
	for i := 0; i < 1000; i++ {
		v := system.RandomUint64()
		assert.False(t, seen[v], "RandomUint64 produced a duplicate within 1000 draws")
		seen[v] = true
	}
}

func TestRandomIntStaysInRange(t *testing.T) {
	system, err := NewSystem(nil)
	require.NoError(t, err)

	const max = 37
	for i := 0; i < 1000; i++ {
		v := system.RandomInt(max)
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, max)
	}
}

func TestRandomIntZeroMaxReturnsZero(t *testing.T) {
	system, err := NewSystem(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, system.RandomInt(0))
}

func TestTwoSystemsAreNotDeterministicallyLinked(t *testing.T) {
	a, err := NewSystem(nil)
	require.NoError(t, err)
	b, err := NewSystem(nil)
	require.NoError(t, err)

	same := 0
	for i := 0; i < 20; i++ {
		if a.RandomUint64() == b.RandomUint64() {
			same++
		}
	}
	assert.Less(t, same, 20, "two independently seeded systems should not track identically")
}

func TestNewSystemWithSeedProducesUsableOutput(t *testing.T) {
	seed := []byte("a fixed 32 byte seed for testing")
	a, err := NewSystemWithSeed(seed, nil)
	require.NoError(t, err)
	b, err := NewSystemWithSeed(seed, nil)
	require.NoError(t, err)

	// Both streams also fold in time.Now().UnixNano(), so they won't match
	// exactly, but both must still produce in-range, non-panicking output.
	assert.NotPanics(t, func() {
		_ = a.RandomInt(52)
		_ = b.RandomInt(52)
	})
}

func TestAuditLoggerNilReceiverIsSafe(t *testing.T) {
	var a *AuditLogger
	assert.NotPanics(t, func() {
		a.LogShuffle(ShuffleEvent{RoomID: "room1", DeckSize: 52})
	})
}

func TestAuditLoggerLogsShuffleEvent(t *testing.T) {
	a := NewAuditLogger(testLogger())
	assert.NotPanics(t, func() {
		a.LogShuffle(ShuffleEvent{RoomID: "room1", Round: 1, DeckSize: 52})
	})
}
