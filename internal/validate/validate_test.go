package validate

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thedecree/server/internal/cards"
)

func TestPlayerNameDefaultsWhenEmpty(t *testing.T) {
	name, err := PlayerName("   ")
	require.NoError(t, err)
	assert.Equal(t, "Guest", name)
}

func TestPlayerNameRejectsDisallowedChars(t *testing.T) {
	_, err := PlayerName("bad<script>")
	require.ErrorIs(t, err, ErrNameInvalid)
}

func TestPlayerNameRejectsTooLong(t *testing.T) {
	long := ""
	for i := 0; i < 51; i++ {
		long += "a"
	}
	_, err := PlayerName(long)
	require.ErrorIs(t, err, ErrNameTooLong)
}

func TestPlayerNameEnforcesGuestShapeWhenPrefixed(t *testing.T) {
	_, err := PlayerName("guest_not-a-uuid")
	require.ErrorIs(t, err, ErrGuestIDInvalid)

	valid := "guest_" + uuid.NewString()
	name, err := PlayerName(valid)
	require.NoError(t, err)
	assert.Equal(t, valid, name)
}

func TestGuestID(t *testing.T) {
	require.NoError(t, GuestID("guest_"+uuid.NewString()))
	require.NoError(t, GuestID("guest_"+uuid.NewString()+"_3"))
	require.ErrorIs(t, GuestID("not-a-guest-id"), ErrGuestIDInvalid)
	require.ErrorIs(t, GuestID("guest_deadbeef"), ErrGuestIDInvalid)
}

func TestCardsForPlay(t *testing.T) {
	valid := []cards.Card{cards.NewCard(cards.SuitSpade, cards.RankAce)}
	require.NoError(t, CardsForPlay(valid, -1))
	require.NoError(t, CardsForPlay(valid, 1))
	require.Error(t, CardsForPlay(valid, 2))

	require.ErrorIs(t, CardsForPlay(nil, -1), ErrCardsEmpty)

	tooMany := []cards.Card{
		cards.NewCard(cards.SuitSpade, cards.Rank(2)),
		cards.NewCard(cards.SuitSpade, cards.Rank(3)),
		cards.NewCard(cards.SuitSpade, cards.Rank(4)),
		cards.NewCard(cards.SuitSpade, cards.Rank(5)),
	}
	require.ErrorIs(t, CardsForPlay(tooMany, -1), ErrTooManyCards)

	dup := []cards.Card{
		cards.NewCard(cards.SuitSpade, cards.RankAce),
		cards.NewCard(cards.SuitSpade, cards.RankAce),
	}
	require.ErrorIs(t, CardsForPlay(dup, -1), ErrDuplicateCards)

	invalid := []cards.Card{cards.Card(0x00)}
	require.ErrorIs(t, CardsForPlay(invalid, -1), ErrCardOutOfRange)
}

func TestLimiterEnforcesWindowAndResetsAfterExpiry(t *testing.T) {
	l := NewLimiter()
	now := time.Now()

	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow("conn1", CategoryRoomAction, now), "attempt %d should be allowed", i)
	}
	assert.False(t, l.Allow("conn1", CategoryRoomAction, now), "6th room action within the window should be rejected")

	// A different category for the same connection has its own window.
	assert.True(t, l.Allow("conn1", CategoryGameAction, now))

	// After the window elapses, the limit resets.
	later := now.Add(2 * time.Second)
	assert.True(t, l.Allow("conn1", CategoryRoomAction, later))
}

func TestLimiterForgetClearsConnectionState(t *testing.T) {
	l := NewLimiter()
	now := time.Now()
	for i := 0; i < 5; i++ {
		l.Allow("conn1", CategoryRoomAction, now)
	}
	require.False(t, l.Allow("conn1", CategoryRoomAction, now))

	l.Forget("conn1")
	assert.True(t, l.Allow("conn1", CategoryRoomAction, now), "forgotten connection should get a fresh window")
}
