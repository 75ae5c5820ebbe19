// Package room implements one TheDecree table: the player directory, ready/
// host bookkeeping, and the single engine instance that exists while the
// room is Playing. Grounded on internal/game/table.go's action-channel +
// ticker game loop, generalized from "one engine, fixed game type" to "one
// embedded *engine.Engine, constructed lazily at startGame", per spec.md
// §4.6.
package room

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/thedecree/server/internal/autoplay"
	"github.com/thedecree/server/internal/config"
	"github.com/thedecree/server/internal/engine"
	"github.com/thedecree/server/internal/session"
	"github.com/thedecree/server/pkg/rng"
)

// Room-level errors, distinct from the engine's protocol-order errors.
var (
	ErrRoomFull        = errors.New("room: room is full")
	ErrNotHost         = errors.New("room: caller is not the host")
	ErrNotAllReady      = errors.New("room: not all players are ready")
	ErrTooFewPlayers   = errors.New("room: need at least 2 players")
	ErrWrongRoomState  = errors.New("room: action not legal in the current room state")
	ErrUnknownPlayer   = errors.New("room: unknown player id")
)

// State is the room's coarse lifecycle state, independent of the engine's
// internal state machine (which only exists while State == Playing).
type State int

const (
	StateWaiting State = iota
	StatePlaying
)

func (s State) String() string {
	if s == StatePlaying {
		return "playing"
	}
	return "waiting"
}

// Room is one table: a player directory plus, while Playing, one engine.
// All mutation happens on the single goroutine run by loop(); exported
// methods enqueue a closure and block for its completion, generalizing
// table.go's action-channel pattern into a synchronous facade so hub code
// never has to know the room is actor-shaped.
type Room struct {
	ID         string
	MaxPlayers int
	GameMode   string

	cfg       config.Config
	strategy  autoplay.Strategy
	randomInt func(int) int
	audit     *rng.AuditLogger
	logger    *log.Logger

	actions chan func()
	stopCh  chan struct{}
	wg      sync.WaitGroup

	mu             sync.RWMutex // guards the fields below for lock-free reads from the hub (e.g. /stats)
	state          State
	hostID         string
	seatOrder      []string
	sessions       map[string]*session.PlayerSession
	disconnected   map[string]*session.PlayerSession
	disconnectedAt map[string]time.Time
	restartClicks  map[string]bool
	lastActivityAt time.Time

	eng            *engine.Engine
	autoTimers     map[string]*time.Timer
	delayTimers    map[string]*time.Timer
	roundStartedAt time.Time
}

// New constructs an empty room in StateWaiting.
func New(id, gameMode string, maxPlayers int, cfg config.Config, strategy autoplay.Strategy, randomInt func(int) int, audit *rng.AuditLogger, logger *log.Logger) *Room {
	return &Room{
		ID:             id,
		MaxPlayers:     maxPlayers,
		GameMode:       gameMode,
		cfg:            cfg,
		strategy:       strategy,
		randomInt:      randomInt,
		audit:          audit,
		logger:         logger.WithPrefix("room:" + id),
		actions:        make(chan func(), 32),
		stopCh:         make(chan struct{}),
		sessions:       make(map[string]*session.PlayerSession),
		disconnected:   make(map[string]*session.PlayerSession),
		disconnectedAt: make(map[string]time.Time),
		restartClicks:  make(map[string]bool),
		autoTimers:     make(map[string]*time.Timer),
		delayTimers:    make(map[string]*time.Timer),
		lastActivityAt: time.Now(),
	}
}

// Start launches the room's single goroutine.
func (r *Room) Start() {
	r.wg.Add(1)
	go r.loop()
}

// Stop tears the room down: cancels every outstanding timer and exits the
// loop, per spec.md §5's cancellation guarantee.
func (r *Room) Stop() {
	close(r.stopCh)
	r.wg.Wait()
}

func (r *Room) loop() {
	defer r.wg.Done()
	for {
		select {
		case fn := <-r.actions:
			fn()
		case <-r.stopCh:
			r.cancelAllTimers()
			return
		}
	}
}

// do enqueues fn to run on the room's loop goroutine and blocks until it
// completes, or the room stops first.
func (r *Room) do(fn func()) {
	done := make(chan struct{})
	select {
	case r.actions <- func() { fn(); close(done) }:
	case <-r.stopCh:
		return
	}
	select {
	case <-done:
	case <-r.stopCh:
	}
}

func (r *Room) cancelAllTimers() {
	for _, t := range r.autoTimers {
		t.Stop()
	}
	for _, t := range r.delayTimers {
		t.Stop()
	}
}

// touch records activity for the idle sweep.
func (r *Room) touch() {
	r.lastActivityAt = time.Now()
}

// State returns the room's coarse lifecycle state without going through
// the action queue.
func (r *Room) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// PlayerCount returns the number of live + disconnected players.
func (r *Room) PlayerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions) + len(r.disconnected)
}

// LastActivityAt returns the last time a mutating action touched this room.
func (r *Room) LastActivityAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastActivityAt
}

func (r *Room) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// AddPlayer seats a new session. The first joiner becomes host.
func (r *Room) AddPlayer(sess *session.PlayerSession) error {
	var outErr error
	r.do(func() {
		r.mu.Lock()
		defer r.mu.Unlock()

		if len(r.sessions)+len(r.disconnected) >= r.MaxPlayers {
			outErr = ErrRoomFull
			return
		}

		sess.SeatIndex = len(r.seatOrder)
		if len(r.sessions) == 0 && len(r.disconnected) == 0 {
			sess.SetHost(true)
			r.hostID = sess.PlayerID
		}

		r.seatOrder = append(r.seatOrder, sess.PlayerID)
		r.sessions[sess.PlayerID] = sess
		r.lastActivityAt = time.Now()
	})
	return outErr
}

// RemovePlayer detaches a session entirely (voluntary leave, not a
// disconnect). If the host left and the room is non-empty, the earliest-
// joined survivor is promoted to host and marked ready.
func (r *Room) RemovePlayer(playerID string) {
	r.do(func() {
		r.mu.Lock()
		defer r.mu.Unlock()

		delete(r.sessions, playerID)
		delete(r.disconnected, playerID)
		delete(r.disconnectedAt, playerID)
		r.removeFromSeatOrder(playerID)
		r.lastActivityAt = time.Now()

		if playerID != r.hostID || len(r.sessions) == 0 {
			return
		}
		r.promoteNextHost()
	})
}

func (r *Room) removeFromSeatOrder(playerID string) {
	for i, id := range r.seatOrder {
		if id == playerID {
			r.seatOrder = append(r.seatOrder[:i], r.seatOrder[i+1:]...)
			return
		}
	}
}

// promoteNextHost promotes the earliest-joined live survivor; caller holds mu.
func (r *Room) promoteNextHost() {
	for _, id := range r.seatOrder {
		if sess, ok := r.sessions[id]; ok {
			sess.SetHost(true)
			sess.SetReady(true)
			r.hostID = id
			return
		}
	}
}

// ToggleReady flips playerID's ready flag and returns the new value.
func (r *Room) ToggleReady(playerID string) (bool, error) {
	var newReady bool
	var outErr error
	r.do(func() {
		r.mu.RLock()
		sess, ok := r.sessions[playerID]
		r.mu.RUnlock()
		if !ok {
			outErr = ErrUnknownPlayer
			return
		}
		newReady = !sess.Info().IsReady
		sess.SetReady(newReady)
		r.touch()
	})
	return newReady, outErr
}

// IsAllPlayersReady reports whether there are at least 2 live players and
// every one of them is ready.
func (r *Room) IsAllPlayersReady() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isAllPlayersReadyLocked()
}

func (r *Room) isAllPlayersReadyLocked() bool {
	if len(r.sessions) < 2 {
		return false
	}
	for _, sess := range r.sessions {
		if !sess.Info().IsReady {
			return false
		}
	}
	return true
}

// HostID returns the current host's player id.
func (r *Room) HostID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hostID
}

// Snapshot describes the room's current player roster, for room_joined /
// reconnect_success wire payloads.
type Snapshot struct {
	HostID     string
	MaxPlayers int
	Players    []session.Info
}

// Snapshot returns the current roster, in seat order.
func (r *Room) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

func (r *Room) snapshotLocked() Snapshot {
	players := make([]session.Info, 0, len(r.seatOrder))
	for _, id := range r.seatOrder {
		if sess, ok := r.sessions[id]; ok {
			players = append(players, sess.Info())
		} else if sess, ok := r.disconnected[id]; ok {
			players = append(players, sess.Info())
		}
	}
	return Snapshot{HostID: r.hostID, MaxPlayers: r.MaxPlayers, Players: players}
}

// Broadcast sends an event to every currently-connected session, optionally
// excluding one player id.
func (r *Room) Broadcast(event string, payload any, exclude string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, sess := range r.sessions {
		if id == exclude {
			continue
		}
		sess.Send(event, payload)
	}
}

// SendToPlayer sends an event to exactly one connected session. No-op if
// the player is currently disconnected.
func (r *Room) SendToPlayer(playerID, event string, payload any) {
	r.mu.RLock()
	sess, ok := r.sessions[playerID]
	r.mu.RUnlock()
	if ok {
		sess.Send(event, payload)
	}
}

func playerIDsInSeatOrder(r *Room) []string {
	out := make([]string, 0, len(r.seatOrder))
	for _, id := range r.seatOrder {
		if _, ok := r.sessions[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// StartGame transitions Waiting -> Playing and begins the delayed deal.
// Valid only when every live player is ready and there are at least 2.
func (r *Room) StartGame() error {
	var outErr error
	r.do(func() {
		r.mu.Lock()
		if r.state != StateWaiting {
			outErr = ErrWrongRoomState
			r.mu.Unlock()
			return
		}
		if !r.isAllPlayersReadyLocked() {
			outErr = ErrNotAllReady
			r.mu.Unlock()
			return
		}
		ids := playerIDsInSeatOrder(r)
		r.state = StatePlaying
		r.touch()
		r.mu.Unlock()

		r.eng = engine.New(r, r.randomInt, r.strategy)
		if err := r.eng.InitGame(ids); err != nil {
			outErr = fmt.Errorf("room: init game: %w", err)
			r.state = StateWaiting
			return
		}
		r.audit.LogShuffle(rng.ShuffleEvent{Timestamp: time.Now(), RoomID: r.ID, Round: 0, DeckSize: 52})

		players := make([]session.Info, 0, len(ids))
		for _, id := range ids {
			if sess, ok := r.sessions[id]; ok {
				players = append(players, sess.Info())
			}
		}
		r.Broadcast("game_start", gameStartPayload{Players: players}, "")

		r.scheduleDelay("deal", r.cfg.DealDelay, func() {
			if err := r.eng.DealCards(); err != nil {
				r.logger.Error("deal failed", "error", err)
				return
			}
			r.rescheduleAutoPlayTimers()
		})
	})
	return outErr
}

// RestartGame records playerID's "play again" click. Once every current
// participant has clicked, the engine is torn down and the room returns to
// Waiting with all ready flags preserved.
func (r *Room) RestartGame(playerID string) error {
	var outErr error
	r.do(func() {
		r.mu.Lock()
		defer r.mu.Unlock()

		if r.state != StatePlaying {
			outErr = ErrWrongRoomState
			return
		}
		if _, ok := r.sessions[playerID]; !ok {
			outErr = ErrUnknownPlayer
			return
		}

		r.restartClicks[playerID] = true
		for _, id := range r.seatOrder {
			if _, ok := r.sessions[id]; ok && !r.restartClicks[id] {
				return
			}
		}

		r.cancelAllTimers()
		if r.eng != nil {
			r.eng.Cleanup()
			r.eng = nil
		}
		r.restartClicks = make(map[string]bool)
		r.state = StateWaiting
		r.touch()
	})
	return outErr
}

// scheduleDelay schedules fn to run on the room's loop after d, replacing
// any existing timer registered under the same key.
func (r *Room) scheduleDelay(key string, d time.Duration, fn func()) {
	if t, ok := r.delayTimers[key]; ok {
		t.Stop()
	}
	r.delayTimers[key] = time.AfterFunc(d, func() {
		r.do(fn)
	})
}
