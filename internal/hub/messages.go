package hub

import (
	"encoding/json"

	"github.com/thedecree/server/internal/cards"
	"github.com/thedecree/server/internal/session"
	"github.com/thedecree/server/internal/validate"
)

// decodePayload re-marshals a frame's decoded-as-any payload into a typed
// struct. transport.Connection decodes the wire frame generically (its
// Frame.Payload is `any`, shared by both directions); the hub is the one
// layer that knows each event's concrete shape.
func decodePayload(raw any, out any) error {
	b, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

// categoryFor maps an incoming event name to its rate-limit category, per
// spec.md §4.3. silent reports whether a rejection should be dropped
// without an error reply (heartbeats are exempt from error feedback but
// still bounded).
func categoryFor(event string) (category validate.Category, silent bool) {
	switch event {
	case "create_room", "join_room", "leave_room":
		return validate.CategoryRoomAction, false
	case "reconnect":
		return validate.CategoryConnectionAction, false
	case "ping":
		return validate.CategoryConnectionAction, true
	default:
		return validate.CategoryGameAction, false
	}
}

func categoryLabel(c validate.Category) string {
	switch c {
	case validate.CategoryRoomAction:
		return "room"
	case validate.CategoryConnectionAction:
		return "connection"
	default:
		return "game"
	}
}

// Client -> Server payloads, per spec.md §6's event table.

type createRoomPayload struct {
	PlayerName string `json:"playerName"`
	GameMode   string `json:"gameMode"`
	MaxPlayers int    `json:"maxPlayers"`
	GuestID    string `json:"guestId"`
}

type joinRoomPayload struct {
	RoomID     string `json:"roomId"`
	PlayerName string `json:"playerName"`
	GuestID    string `json:"guestId"`
}

type reconnectPayload struct {
	RoomID     string `json:"roomId"`
	PlayerID   string `json:"playerId"`
	GuestID    string `json:"guestId"`
	PlayerName string `json:"playerName"`
}

type dealerCallPayload struct {
	RoomID      string `json:"roomId"`
	PlayerID    string `json:"playerId"`
	CardsToPlay int    `json:"cardsToPlay"`
}

type selectFirstDealerCardPayload struct {
	RoomID   string     `json:"roomId"`
	PlayerID string     `json:"playerId"`
	Card     cards.Card `json:"card"`
}

type playCardsPayload struct {
	RoomID   string       `json:"roomId"`
	PlayerID string       `json:"playerId"`
	Cards    []cards.Card `json:"cards"`
}

type setAutoPayload struct {
	IsAuto bool `json:"isAuto"`
}

// Server -> Client payloads the hub itself emits (engine/room-originated
// events are defined in internal/room/wire.go and sent by the room).

type roomCreatedPayload struct {
	RoomID     string `json:"roomId"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	MaxPlayers int    `json:"maxPlayers"`
}

type roomJoinedPayload struct {
	RoomID           string         `json:"roomId"`
	PlayerID         string         `json:"playerId"`
	MyPlayerIDInRoom string         `json:"myPlayerIdInRoom"`
	HostID           string         `json:"hostId"`
	Players          []session.Info `json:"players"`
	MaxPlayers       int            `json:"maxPlayers"`
}

type reconnectSuccessPayload struct {
	RoomID     string         `json:"roomId"`
	PlayerID   string         `json:"playerId"`
	HostID     string         `json:"hostId"`
	Players    []session.Info `json:"players"`
	MaxPlayers int            `json:"maxPlayers"`
	Hand       []cards.Card   `json:"hand"`
}

type playerJoinedPayload struct {
	Player session.Info `json:"player"`
}

type playerLeftPayload struct {
	PlayerID string `json:"playerId"`
}

type playerReadyPayload struct {
	PlayerID string `json:"playerId"`
	IsReady  bool   `json:"isReady"`
}

type hostChangedPayload struct {
	NewHostID string `json:"newHostId"`
}

type errorWirePayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
