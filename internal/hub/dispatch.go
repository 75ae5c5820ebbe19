package hub

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/thedecree/server/internal/autoplay"
	"github.com/thedecree/server/internal/cards"
	"github.com/thedecree/server/internal/metrics"
	"github.com/thedecree/server/internal/room"
	"github.com/thedecree/server/internal/session"
	"github.com/thedecree/server/internal/transport"
	"github.com/thedecree/server/internal/validate"
)

// HandleFrame implements transport.Handler: every decoded frame from every
// connection arrives here, on that connection's own readPump goroutine.
func (h *Hub) HandleFrame(connID string, frame transport.Frame) {
	cs := h.getConn(connID)
	if cs == nil {
		return
	}

	category, silent := categoryFor(frame.Event)
	if !h.limiter.Allow(connID, category, time.Now()) {
		metrics.RecordRateLimitRejection(categoryLabel(category))
		if !silent {
			h.sendError(cs, room.CodeRateLimited, "rate limit exceeded")
		}
		return
	}

	switch frame.Event {
	case "create_room":
		h.handleCreateRoom(cs, frame.Payload)
	case "join_room":
		h.handleJoinRoom(cs, frame.Payload)
	case "reconnect":
		h.handleReconnect(cs, frame.Payload)
	case "leave_room":
		h.handleLeaveRoom(cs)
	case "ready":
		h.handleReady(cs)
	case "start_game":
		h.handleStartGame(cs)
	case "restart_game":
		h.handleRestartGame(cs)
	case "dealer_call":
		h.handleDealerCall(cs, frame.Payload)
	case "select_first_dealer_card":
		h.handleSelectFirstDealerCard(cs, frame.Payload)
	case "play_cards":
		h.handlePlayCards(cs, frame.Payload)
	case "set_auto":
		h.handleSetAuto(cs, frame.Payload)
	case "resync":
		h.handleResync(cs)
	case "ping":
		cs.conn.Send("pong", nil)
		if playerID, roomID := cs.identity(); roomID != "" {
			if r, ok := h.getRoom(roomID); ok {
				r.Heartbeat(playerID)
			}
		}
	default:
		h.logger.Debug("unknown event", "event", frame.Event, "conn", connID)
	}
}

func (h *Hub) sendError(cs *connState, code, message string) {
	cs.conn.Send("error", errorWirePayload{Code: code, Message: message})
}

// mapRoomError translates a room-level sentinel into the wire error
// taxonomy, mirroring internal/room/handlers.go's mapEngineError for the
// room's own (non-engine) operations.
func mapRoomError(err error) (code, message string) {
	switch {
	case errors.Is(err, room.ErrRoomFull):
		return room.CodeRoomFull, "room is full"
	case errors.Is(err, room.ErrNotHost):
		return room.CodeInvalidPlay, "only the host may perform this action"
	case errors.Is(err, room.ErrNotAllReady):
		return room.CodeInvalidPlay, "not all players are ready"
	case errors.Is(err, room.ErrTooFewPlayers):
		return room.CodeInvalidPlay, "need at least 2 players"
	case errors.Is(err, room.ErrWrongRoomState):
		return room.CodeInvalidPlay, "action not legal in the current room state"
	case errors.Is(err, room.ErrUnknownPlayer):
		return room.CodeNotYourTurn, "unknown player"
	default:
		return room.CodeInternalError, "internal error"
	}
}

func (h *Hub) handleCreateRoom(cs *connState, raw any) {
	var p createRoomPayload
	if err := decodePayload(raw, &p); err != nil {
		h.sendError(cs, room.CodeInvalidPlay, "malformed create_room payload")
		return
	}
	name, err := validate.PlayerName(p.PlayerName)
	if err != nil {
		h.sendError(cs, room.CodeInvalidPlay, err.Error())
		return
	}
	if p.GuestID != "" {
		if err := validate.GuestID(p.GuestID); err != nil {
			h.sendError(cs, room.CodeInvalidPlay, err.Error())
			return
		}
	}

	gameMode := p.GameMode
	if gameMode == "" {
		gameMode = "the_decree"
	}
	maxPlayers := p.MaxPlayers
	if maxPlayers <= 0 {
		maxPlayers = 6
	}

	roomID := uuid.NewString()
	playerID := uuid.NewString()
	strategy := autoplay.New(h.cfg.AutoPlayStrategy, int64(h.rngSys.RandomUint64()))
	r := room.New(roomID, gameMode, maxPlayers, h.cfg, strategy, h.rngSys.RandomInt, h.audit, h.logger)
	r.Start()

	sess := session.New(cs.connID, playerID, p.GuestID, name, 0, cs.conn)
	if err := r.AddPlayer(sess); err != nil {
		r.Stop()
		h.sendError(cs, room.CodeInternalError, "failed to create room")
		return
	}

	h.mu.Lock()
	h.rooms[roomID] = r
	h.playerIndex[playerID] = cs.connID
	h.mu.Unlock()
	cs.bind(playerID, roomID)

	metrics.RoomsCreatedTotal.Inc()
	h.refreshGauges()

	cs.conn.Send("room_created", roomCreatedPayload{
		RoomID: roomID, PlayerID: playerID, PlayerName: name, MaxPlayers: maxPlayers,
	})
}

func (h *Hub) handleJoinRoom(cs *connState, raw any) {
	var p joinRoomPayload
	if err := decodePayload(raw, &p); err != nil {
		h.sendError(cs, room.CodeInvalidPlay, "malformed join_room payload")
		return
	}
	name, err := validate.PlayerName(p.PlayerName)
	if err != nil {
		h.sendError(cs, room.CodeInvalidPlay, err.Error())
		return
	}
	if p.GuestID != "" {
		if err := validate.GuestID(p.GuestID); err != nil {
			h.sendError(cs, room.CodeInvalidPlay, err.Error())
			return
		}
	}

	r, ok := h.getRoom(p.RoomID)
	if !ok {
		h.sendError(cs, room.CodeRoomNotFound, "room not found")
		return
	}

	playerID := uuid.NewString()
	sess := session.New(cs.connID, playerID, p.GuestID, name, 0, cs.conn)
	if err := r.AddPlayer(sess); err != nil {
		code, msg := mapRoomError(err)
		h.sendError(cs, code, msg)
		return
	}

	h.mu.Lock()
	h.playerIndex[playerID] = cs.connID
	h.mu.Unlock()
	cs.bind(playerID, p.RoomID)
	h.refreshGauges()

	r.Broadcast("player_joined", playerJoinedPayload{Player: sess.Info()}, playerID)

	snap := r.Snapshot()
	cs.conn.Send("room_joined", roomJoinedPayload{
		RoomID: p.RoomID, PlayerID: playerID, MyPlayerIDInRoom: playerID,
		HostID: snap.HostID, Players: snap.Players, MaxPlayers: snap.MaxPlayers,
	})
}

func (h *Hub) handleReconnect(cs *connState, raw any) {
	var p reconnectPayload
	if err := decodePayload(raw, &p); err != nil {
		h.sendError(cs, room.CodeInvalidPlay, "malformed reconnect payload")
		return
	}

	r, ok := h.getRoom(p.RoomID)
	if !ok {
		h.sendError(cs, room.CodeRoomNotFound, "room not found")
		return
	}

	h.mu.RLock()
	_, alreadyConnected := h.playerIndex[p.PlayerID]
	h.mu.RUnlock()
	if alreadyConnected {
		h.sendError(cs, room.CodeInvalidPlay, "player already has a live connection")
		return
	}

	if err := r.Reconnect(p.PlayerID, cs.connID, cs.conn); err != nil {
		h.sendError(cs, room.CodeInvalidPlay, "not eligible to reconnect")
		return
	}

	h.mu.Lock()
	h.playerIndex[p.PlayerID] = cs.connID
	h.mu.Unlock()
	cs.bind(p.PlayerID, p.RoomID)
	metrics.ReconnectsTotal.Inc()
	h.refreshGauges()

	snap, hand, _ := r.ReconnectSnapshot(p.PlayerID)
	cs.conn.Send("reconnect_success", reconnectSuccessPayload{
		RoomID: p.RoomID, PlayerID: p.PlayerID, HostID: snap.HostID,
		Players: snap.Players, MaxPlayers: snap.MaxPlayers, Hand: hand,
	})
	if state, ok := r.StateSnapshot(); ok {
		cs.conn.Send("game_state_update", state)
	}
}

func (h *Hub) handleLeaveRoom(cs *connState) {
	playerID, roomID := cs.identity()
	if roomID == "" {
		h.sendError(cs, room.CodeRoomNotFound, "not in a room")
		return
	}
	r, ok := h.getRoom(roomID)
	if !ok {
		cs.clear()
		return
	}

	oldHost := r.HostID()
	r.RemovePlayer(playerID)
	cs.clear()

	h.mu.Lock()
	delete(h.playerIndex, playerID)
	h.mu.Unlock()

	r.Broadcast("player_left", playerLeftPayload{PlayerID: playerID}, "")
	if newHost := r.HostID(); newHost != "" && newHost != oldHost {
		r.Broadcast("host_changed", hostChangedPayload{NewHostID: newHost}, "")
	}

	if r.IsEmpty() {
		h.dropRoom(roomID, "empty")
	} else {
		h.refreshGauges()
	}
}

func (h *Hub) handleReady(cs *connState) {
	playerID, roomID := cs.identity()
	if roomID == "" {
		h.sendError(cs, room.CodeRoomNotFound, "not in a room")
		return
	}
	r, ok := h.getRoom(roomID)
	if !ok {
		h.sendError(cs, room.CodeRoomNotFound, "room not found")
		return
	}
	newReady, err := r.ToggleReady(playerID)
	if err != nil {
		code, msg := mapRoomError(err)
		h.sendError(cs, code, msg)
		return
	}
	r.Broadcast("player_ready", playerReadyPayload{PlayerID: playerID, IsReady: newReady}, "")
}

func (h *Hub) handleStartGame(cs *connState) {
	playerID, roomID := cs.identity()
	if roomID == "" {
		h.sendError(cs, room.CodeRoomNotFound, "not in a room")
		return
	}
	r, ok := h.getRoom(roomID)
	if !ok {
		h.sendError(cs, room.CodeRoomNotFound, "room not found")
		return
	}
	if playerID != r.HostID() {
		code, msg := mapRoomError(room.ErrNotHost)
		h.sendError(cs, code, msg)
		return
	}
	if err := r.StartGame(); err != nil {
		code, msg := mapRoomError(err)
		h.sendError(cs, code, msg)
	}
}

func (h *Hub) handleRestartGame(cs *connState) {
	playerID, roomID := cs.identity()
	if roomID == "" {
		h.sendError(cs, room.CodeRoomNotFound, "not in a room")
		return
	}
	r, ok := h.getRoom(roomID)
	if !ok {
		h.sendError(cs, room.CodeRoomNotFound, "room not found")
		return
	}
	if err := r.RestartGame(playerID); err != nil {
		code, msg := mapRoomError(err)
		h.sendError(cs, code, msg)
	}
}

func (h *Hub) handleDealerCall(cs *connState, raw any) {
	var p dealerCallPayload
	if err := decodePayload(raw, &p); err != nil {
		h.sendError(cs, room.CodeInvalidPlay, "malformed dealer_call payload")
		return
	}
	r, ok := h.checkedRoom(cs, p.RoomID, p.PlayerID)
	if !ok {
		return
	}
	r.HandleDealerCall(p.PlayerID, p.CardsToPlay)
}

func (h *Hub) handleSelectFirstDealerCard(cs *connState, raw any) {
	var p selectFirstDealerCardPayload
	if err := decodePayload(raw, &p); err != nil {
		h.sendError(cs, room.CodeInvalidPlay, "malformed select_first_dealer_card payload")
		return
	}
	if err := validate.CardsForPlay([]cards.Card{p.Card}, 1); err != nil {
		h.sendError(cs, room.CodeInvalidCards, err.Error())
		return
	}
	r, ok := h.checkedRoom(cs, p.RoomID, p.PlayerID)
	if !ok {
		return
	}
	r.HandleSelectFirstDealerCard(p.PlayerID, p.Card)
}

func (h *Hub) handlePlayCards(cs *connState, raw any) {
	var p playCardsPayload
	if err := decodePayload(raw, &p); err != nil {
		h.sendError(cs, room.CodeInvalidPlay, "malformed play_cards payload")
		return
	}
	if err := validate.CardsForPlay(p.Cards, -1); err != nil {
		h.sendError(cs, room.CodeInvalidCards, err.Error())
		return
	}
	r, ok := h.checkedRoom(cs, p.RoomID, p.PlayerID)
	if !ok {
		return
	}
	r.HandlePlayCards(p.PlayerID, p.Cards)
}

func (h *Hub) handleSetAuto(cs *connState, raw any) {
	var p setAutoPayload
	if err := decodePayload(raw, &p); err != nil {
		h.sendError(cs, room.CodeInvalidPlay, "malformed set_auto payload")
		return
	}
	playerID, roomID := cs.identity()
	if roomID == "" {
		h.sendError(cs, room.CodeRoomNotFound, "not in a room")
		return
	}
	r, ok := h.getRoom(roomID)
	if !ok {
		h.sendError(cs, room.CodeRoomNotFound, "room not found")
		return
	}
	r.HandleSetAuto(playerID, p.IsAuto)
}

// handleResync answers an explicit client resync request with a fresh
// game_state_update, per spec.md §9's conservative Open Question resolution
// (sent only on reconnect and on this explicit request, never proactively).
func (h *Hub) handleResync(cs *connState) {
	_, roomID := cs.identity()
	if roomID == "" {
		h.sendError(cs, room.CodeRoomNotFound, "not in a room")
		return
	}
	r, ok := h.getRoom(roomID)
	if !ok {
		h.sendError(cs, room.CodeRoomNotFound, "room not found")
		return
	}
	snap, ok := r.StateSnapshot()
	if !ok {
		return
	}
	cs.conn.Send("game_state_update", snap)
}

// checkedRoom resolves the caller's room and cross-checks the payload's
// roomId/playerId against the connection's authenticated identity, per
// spec.md §4.7's "per-player ID validation."
func (h *Hub) checkedRoom(cs *connState, payloadRoomID, payloadPlayerID string) (*room.Room, bool) {
	playerID, roomID := cs.identity()
	if roomID == "" {
		h.sendError(cs, room.CodeRoomNotFound, "not in a room")
		return nil, false
	}
	if payloadRoomID != "" && payloadRoomID != roomID {
		h.sendError(cs, room.CodeRoomNotFound, "not a member of that room")
		return nil, false
	}
	if payloadPlayerID != "" && payloadPlayerID != playerID {
		h.sendError(cs, room.CodeNotYourTurn, "playerId does not match this connection")
		return nil, false
	}
	r, ok := h.getRoom(roomID)
	if !ok {
		h.sendError(cs, room.CodeRoomNotFound, "room not found")
		return nil, false
	}
	return r, true
}
