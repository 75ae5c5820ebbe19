package hub

import (
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thedecree/server/internal/autoplay"
	"github.com/thedecree/server/internal/config"
	"github.com/thedecree/server/internal/room"
	"github.com/thedecree/server/internal/session"
	"github.com/thedecree/server/internal/validate"
)

func testHubLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func TestCategoryForRoutesKnownEvents(t *testing.T) {
	cases := []struct {
		event    string
		category validate.Category
		silent   bool
	}{
		{"create_room", validate.CategoryRoomAction, false},
		{"join_room", validate.CategoryRoomAction, false},
		{"leave_room", validate.CategoryRoomAction, false},
		{"reconnect", validate.CategoryConnectionAction, false},
		{"ping", validate.CategoryConnectionAction, true},
		{"dealer_call", validate.CategoryGameAction, false},
		{"play_cards", validate.CategoryGameAction, false},
		{"anything_unrecognized", validate.CategoryGameAction, false},
	}
	for _, tc := range cases {
		cat, silent := categoryFor(tc.event)
		assert.Equal(t, tc.category, cat, tc.event)
		assert.Equal(t, tc.silent, silent, tc.event)
	}
}

func TestCategoryLabel(t *testing.T) {
	assert.Equal(t, "room", categoryLabel(validate.CategoryRoomAction))
	assert.Equal(t, "connection", categoryLabel(validate.CategoryConnectionAction))
	assert.Equal(t, "game", categoryLabel(validate.CategoryGameAction))
}

func TestDecodePayloadRoundTrips(t *testing.T) {
	raw := map[string]any{"roomId": "room1", "playerName": "Alice"}
	var out joinRoomPayload
	require.NoError(t, decodePayload(raw, &out))
	assert.Equal(t, "room1", out.RoomID)
	assert.Equal(t, "Alice", out.PlayerName)
}

func TestDecodePayloadRejectsUnmarshalableInput(t *testing.T) {
	var out joinRoomPayload
	err := decodePayload(make(chan int), &out)
	require.Error(t, err)
}

func TestMapRoomErrorTranslatesSentinels(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{room.ErrRoomFull, room.CodeRoomFull},
		{room.ErrNotHost, room.CodeInvalidPlay},
		{room.ErrNotAllReady, room.CodeInvalidPlay},
		{room.ErrTooFewPlayers, room.CodeInvalidPlay},
		{room.ErrWrongRoomState, room.CodeInvalidPlay},
		{room.ErrUnknownPlayer, room.CodeNotYourTurn},
		{errors.New("something else"), room.CodeInternalError},
	}
	for _, tc := range cases {
		code, msg := mapRoomError(tc.err)
		assert.Equal(t, tc.code, code, tc.err)
		assert.NotEmpty(t, msg)
	}
}

type statsFakeSender struct{}

func (statsFakeSender) Send(event string, payload any) {}

func newStatsRoom(t *testing.T, id string, maxPlayers int) *room.Room {
	t.Helper()
	cfg := config.Load()
	r := room.New(id, "the_decree", maxPlayers, cfg, autoplay.Conservative{}, func(n int) int { return 0 }, nil, testHubLogger())
	r.Start()
	t.Cleanup(r.Stop)
	sess := session.New("conn-1", "p1", "", "Alice", 0, statsFakeSender{})
	require.NoError(t, r.AddPlayer(sess))
	return r
}

func TestStatsAggregatesAcrossRooms(t *testing.T) {
	h := &Hub{rooms: make(map[string]*room.Room)}
	h.rooms["room1"] = newStatsRoom(t, "room1", 4)
	h.rooms["room2"] = newStatsRoom(t, "room2", 4)

	stats := h.Stats()
	assert.Equal(t, 2, stats.Rooms)
	assert.Equal(t, 2, stats.Players)
	assert.Len(t, stats.RoomDetails, 2)
	for _, d := range stats.RoomDetails {
		assert.Equal(t, 1, d.PlayerCount)
		assert.Equal(t, "waiting", d.State)
	}
}

func TestStatsEmptyHub(t *testing.T) {
	h := &Hub{rooms: make(map[string]*room.Room)}
	stats := h.Stats()
	assert.Equal(t, 0, stats.Rooms)
	assert.Equal(t, 0, stats.Players)
	assert.Empty(t, stats.RoomDetails)
}
