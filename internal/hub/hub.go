// Package hub implements the process-wide connection registry and room
// directory: accepting websocket connections, demultiplexing their frames to
// the right room, and sweeping idle/disconnected state. Grounded on
// cmd/game-server/main.go's GameServer (a map[string]*Table behind a
// sync.RWMutex), generalized from "one table per tableId, created on first
// WS hit" to the full lifecycle spec.md §4.7 requires: explicit create/join/
// reconnect/leave routing, per-player id cross-checks, and a periodic idle
// sweep coordinated across rooms with golang.org/x/sync/errgroup.
package hub

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/thedecree/server/internal/config"
	"github.com/thedecree/server/internal/metrics"
	"github.com/thedecree/server/internal/room"
	"github.com/thedecree/server/internal/transport"
	"github.com/thedecree/server/internal/validate"
	"github.com/thedecree/server/pkg/rng"
)

// Hub is the process-wide connection and room directory.
type Hub struct {
	cfg     config.Config
	logger  *log.Logger
	limiter *validate.Limiter
	rngSys  *rng.System
	audit   *rng.AuditLogger

	mu          sync.RWMutex
	rooms       map[string]*room.Room
	conns       map[string]*connState
	playerIndex map[string]string
}

// connState is the per-connection record the hub keeps until the socket
// closes: which player it authenticated as, and which room (if any) it's a
// member of. Mutated only by the dispatch handlers, each of which runs on
// its own connection's readPump goroutine, so its own mutex guards it
// against a concurrent HandleClose from the same connection's teardown.
type connState struct {
	mu       sync.Mutex
	connID   string
	conn     *transport.Connection
	playerID string
	roomID   string
}

func (cs *connState) identity() (playerID, roomID string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.playerID, cs.roomID
}

func (cs *connState) bind(playerID, roomID string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.playerID = playerID
	cs.roomID = roomID
}

func (cs *connState) clear() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.playerID = ""
	cs.roomID = ""
}

// New constructs an empty Hub.
func New(cfg config.Config, rngSys *rng.System, audit *rng.AuditLogger, logger *log.Logger) *Hub {
	return &Hub{
		cfg:         cfg,
		logger:      logger.WithPrefix("hub"),
		limiter:     validate.NewLimiter(),
		rngSys:      rngSys,
		audit:       audit,
		rooms:       make(map[string]*room.Room),
		conns:       make(map[string]*connState),
		playerIndex: make(map[string]string),
	}
}

// Accept wraps a freshly upgraded websocket connection and starts pumping
// its frames through the hub's dispatch. Per spec.md §4.7: "on connect,
// allocate a session id; no room association yet."
func (h *Hub) Accept(wsConn *websocket.Conn) {
	connID := uuid.NewString()
	cs := &connState{connID: connID}
	cs.conn = transport.New(connID, wsConn, h.logger, h)

	h.mu.Lock()
	h.conns[connID] = cs
	h.mu.Unlock()

	cs.conn.Start()
}

// Run drives the idle sweep (every HeartbeatInterval) until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			h.sweep(ctx)
		}
	}
}

// Shutdown stops every room's loop goroutine, fanned out with errgroup so
// one wedged room can't hold up the others, then closes every open client
// connection, per spec.md §7's graceful
// shutdown contract: stop accepting connections, cancel timers, emit
// nothing, close the transport.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	rooms := make([]*room.Room, 0, len(h.rooms))
	for _, r := range h.rooms {
		rooms = append(rooms, r)
	}
	h.rooms = make(map[string]*room.Room)
	conns := make([]*connState, 0, len(h.conns))
	for _, cs := range h.conns {
		conns = append(conns, cs)
	}
	h.mu.Unlock()

	g := new(errgroup.Group)
	for _, r := range rooms {
		r := r
		g.Go(func() error {
			r.Stop()
			return nil
		})
	}
	_ = g.Wait()

	for _, cs := range conns {
		_ = cs.conn.Close()
	}
}

type dropEntry struct {
	id     string
	reason string
}

// sweep implements spec.md §4.7's idle-sweep tick: per-room heartbeat and
// reconnect-window expiry run concurrently (one errgroup goroutine per room), then
// empty or idle-timed-out rooms are dropped from the directory.
func (h *Hub) sweep(ctx context.Context) {
	h.mu.RLock()
	rooms := make([]*room.Room, 0, len(h.rooms))
	for _, r := range h.rooms {
		rooms = append(rooms, r)
	}
	h.mu.RUnlock()

	g, _ := errgroup.WithContext(ctx)
	var mu sync.Mutex
	var toDrop []dropEntry

	for _, r := range rooms {
		r := r
		g.Go(func() error {
			r.SweepTimedOutHeartbeats(h.cfg.DisconnectTimeout)
			r.SweepDisconnected(h.cfg.ReconnectWindow)

			reason := ""
			switch {
			case r.IsEmpty():
				reason = "empty"
			case time.Since(r.LastActivityAt()) > h.cfg.RoomIdleTimeout:
				reason = "idle_timeout"
			}
			if reason != "" {
				mu.Lock()
				toDrop = append(toDrop, dropEntry{id: r.ID, reason: reason})
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, d := range toDrop {
		h.dropRoom(d.id, d.reason)
	}
	h.refreshGauges()
}

func (h *Hub) dropRoom(roomID, reason string) {
	h.mu.Lock()
	r, ok := h.rooms[roomID]
	if ok {
		delete(h.rooms, roomID)
	}
	h.mu.Unlock()
	if !ok {
		return
	}
	r.Stop()
	metrics.RecordRoomDropped(reason)
	h.refreshGauges()
}

func (h *Hub) refreshGauges() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	players := 0
	for _, r := range h.rooms {
		players += r.PlayerCount()
	}
	metrics.RoomsActive.Set(float64(len(h.rooms)))
	metrics.PlayersActive.Set(float64(players))
}

func (h *Hub) getConn(connID string) *connState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.conns[connID]
}

func (h *Hub) getRoom(roomID string) (*room.Room, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.rooms[roomID]
	return r, ok
}

// HandleClose implements transport.Handler: the connection died (peer
// failure, clean close, or a full send buffer). Per spec.md §4.7, a Playing
// room keeps the seat (flipped to auto-play); a Waiting room drops it
// outright — both paths already live inside room.Disconnect.
func (h *Hub) HandleClose(connID string) {
	h.mu.Lock()
	cs, ok := h.conns[connID]
	if ok {
		delete(h.conns, connID)
	}
	h.mu.Unlock()
	if !ok {
		return
	}
	h.limiter.Forget(connID)

	playerID, roomID := cs.identity()
	if roomID == "" {
		return
	}

	r, ok := h.getRoom(roomID)
	if !ok {
		return
	}
	r.Disconnect(playerID)

	h.mu.Lock()
	delete(h.playerIndex, playerID)
	h.mu.Unlock()

	if r.IsEmpty() {
		h.dropRoom(roomID, "empty")
	} else {
		h.refreshGauges()
	}
}
