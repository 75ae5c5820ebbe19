package room

import (
	"errors"
	"time"

	"github.com/thedecree/server/internal/cards"
	"github.com/thedecree/server/internal/session"
)

// ErrNotDisconnected is returned by Reconnect when the player isn't in the
// disconnected set (already live, or never joined this room).
var ErrNotDisconnected = errors.New("room: player is not in the disconnected set")

// Disconnect handles a transport drop for playerID. While Playing, the
// session is moved to the disconnected set (kept in the room, per spec.md
// §8's XOR invariant) and flipped to auto-play; a player_left broadcast
// fires without removing them from the roster. While Waiting, the player
// is removed outright.
func (r *Room) Disconnect(playerID string) {
	r.do(func() {
		r.disconnectPlayer(playerID)
	})
}

// disconnectPlayer is the body of Disconnect, factored out so callers
// already running on the loop goroutine (the heartbeat sweep) can invoke it
// without nesting r.do, which would deadlock.
func (r *Room) disconnectPlayer(playerID string) {
	r.mu.Lock()
	sess, ok := r.sessions[playerID]
	if !ok {
		r.mu.Unlock()
		return
	}

	if r.state != StatePlaying {
		delete(r.sessions, playerID)
		r.removeFromSeatOrder(playerID)
		wasHost := playerID == r.hostID
		r.mu.Unlock()
		if wasHost && len(r.sessions) > 0 {
			r.mu.Lock()
			r.promoteNextHost()
			r.mu.Unlock()
		}
		r.Broadcast("player_left", playerLeftPayload{PlayerID: playerID}, "")
		return
	}

	sess.Detach()
	delete(r.sessions, playerID)
	r.disconnected[playerID] = sess
	r.disconnectedAt[playerID] = time.Now()
	r.mu.Unlock()

	if r.eng != nil {
		_ = r.eng.SetPlayerAuto(playerID, true, "disconnect")
	}
	r.Broadcast("player_left", playerLeftPayload{PlayerID: playerID}, "")
}

// Reconnect rebinds a disconnected player to a new transport. Requires the
// player to currently be in the disconnected set.
func (r *Room) Reconnect(playerID string, connID string, transport session.Sender) error {
	var outErr error
	r.do(func() {
		r.mu.Lock()
		sess, ok := r.disconnected[playerID]
		if !ok {
			r.mu.Unlock()
			outErr = ErrNotDisconnected
			return
		}

		sess.Rebind(connID, transport)
		r.sessions[playerID] = sess
		delete(r.disconnected, playerID)
		delete(r.disconnectedAt, playerID)
		r.lastActivityAt = time.Now()
		r.mu.Unlock()

		if r.eng != nil {
			_ = r.eng.SetPlayerAuto(playerID, false, "manual")
		}
		r.Broadcast("player_joined", playerJoinedPayload{Player: sess.Info()}, playerID)
	})
	return outErr
}

// ReconnectSnapshot returns the roster plus the reconnecting player's
// private hand, for the reconnect_success payload (the one wire event that
// must carry private state to someone other than its owner's own deal).
func (r *Room) ReconnectSnapshot(playerID string) (Snapshot, []cards.Card, bool) {
	var snap Snapshot
	var hand []cards.Card
	var ok bool
	r.do(func() {
		r.mu.RLock()
		snap = r.snapshotLocked()
		r.mu.RUnlock()
		if r.eng == nil {
			return
		}
		if p, found := r.eng.Player(playerID); found {
			hand = p.Hand
			ok = true
		}
	})
	return snap, hand, ok
}

// SweepDisconnected removes any disconnected session older than window,
// returning the removed player ids. Called by the hub's idle sweep.
func (r *Room) SweepDisconnected(window time.Duration) []string {
	var removed []string
	r.do(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		now := time.Now()
		for id, at := range r.disconnectedAt {
			if now.Sub(at) > window {
				delete(r.disconnected, id)
				delete(r.disconnectedAt, id)
				r.removeFromSeatOrder(id)
				removed = append(removed, id)
			}
		}
	})
	return removed
}

// Heartbeat records that playerID's connection is still alive.
func (r *Room) Heartbeat(playerID string) {
	r.do(func() {
		r.mu.RLock()
		sess, ok := r.sessions[playerID]
		r.mu.RUnlock()
		if ok {
			sess.UpdateHeartbeat()
		}
	})
}

// SweepTimedOutHeartbeats disconnects any live session whose last heartbeat
// exceeds timeout, per spec.md §4.7's idle-sweep rule. Returns the
// disconnected player ids.
func (r *Room) SweepTimedOutHeartbeats(timeout time.Duration) []string {
	var timedOut []string
	r.do(func() {
		r.mu.RLock()
		for id, sess := range r.sessions {
			if sess.IsTimedOut(timeout) {
				timedOut = append(timedOut, id)
			}
		}
		r.mu.RUnlock()
		for _, id := range timedOut {
			r.disconnectPlayer(id)
		}
	})
	return timedOut
}

// IsEmpty reports whether the room has no live or disconnected players.
func (r *Room) IsEmpty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions) == 0 && len(r.disconnected) == 0
}

type playerLeftPayload struct {
	PlayerID string `json:"playerId"`
}

type playerJoinedPayload struct {
	Player session.Info `json:"player"`
}
