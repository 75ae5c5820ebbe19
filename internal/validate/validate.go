// Package validate implements the input validation and sliding-window rate
// limiting every mutating message passes through before it reaches a room or
// the engine, per spec.md §4.3. No corpus file implements rate limiting
// directly (see DESIGN.md); this is built fresh from the spec's own
// description, in the teacher's sentinel-error idiom.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/thedecree/server/internal/cards"
)

// Sentinel errors, following the teacher's per-package error-value idiom
// (game.ErrTableFull, rules.RulesError).
var (
	ErrNameTooLong    = errors.New("validate: player name exceeds 50 code points")
	ErrNameInvalid    = errors.New("validate: player name contains disallowed characters")
	ErrGuestIDInvalid = errors.New("validate: guestId does not match guest_<uuid>(_<digits>)? pattern")
	ErrCardsEmpty     = errors.New("validate: cards array must be non-empty")
	ErrTooManyCards   = errors.New("validate: cards array exceeds the 3-card play limit")
	ErrDuplicateCards = errors.New("validate: cards array contains a duplicate")
	ErrCardOutOfRange = errors.New("validate: card byte is not a valid suit/rank encoding")
	ErrRateLimited    = errors.New("validate: rate limit exceeded")
)

const defaultGuestName = "Guest"

// guestIDPattern matches guest_<uuid-v4>(_<digits>)?, per spec.md §4.3.
var guestIDPattern = regexp.MustCompile(`^guest_([0-9a-fA-F-]{36})(?:_(\d+))?$`)

// LooksLikeGuestID reports whether name has the guest-id prefix shape,
// which triggers the stricter guest-id format check on playerName itself.
func LooksLikeGuestID(name string) bool {
	return len(name) >= 6 && name[:6] == "guest_"
}

// PlayerName validates and sanitizes a display name: trims, defaults to
// "Guest" if empty, enforces the 1-50 code point / allowed-charset rule, and
// if the name has the guest-id shape, requires it to fully match GuestID.
func PlayerName(raw string) (string, error) {
	name := trimSpace(raw)
	if name == "" {
		return defaultGuestName, nil
	}

	runeCount := 0
	for _, r := range name {
		runeCount++
		if !allowedNameRune(r) {
			return "", ErrNameInvalid
		}
	}
	if runeCount > 50 {
		return "", ErrNameTooLong
	}

	if LooksLikeGuestID(name) {
		if err := GuestID(name); err != nil {
			return "", err
		}
	}

	return name, nil
}

func allowedNameRune(r rune) bool {
	switch {
	case unicode.IsLetter(r):
		return true
	case unicode.IsDigit(r):
		return true
	case r == ' ', r == '_', r == '-', r == '#':
		return true
	default:
		return false
	}
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && s[start] == ' ' {
		start++
	}
	for end > start && s[end-1] == ' ' {
		end--
	}
	return s[start:end]
}

// GuestID validates the guest_<uuid-v4>(_<digits>)? shape, cross-checking
// the embedded UUID with google/uuid.Parse.
func GuestID(raw string) error {
	m := guestIDPattern.FindStringSubmatch(raw)
	if m == nil {
		return ErrGuestIDInvalid
	}
	u, err := uuid.Parse(m[1])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGuestIDInvalid, err)
	}
	if u.Version() != 4 {
		return fmt.Errorf("%w: uuid version %d", ErrGuestIDInvalid, u.Version())
	}
	return nil
}

// CardsForPlay validates a cards array submitted for play_cards or
// select_first_dealer_card: non-empty, at most 3, no duplicates, every byte
// a valid encoding. If wantCount >= 0, the length must equal it exactly
// (the engine-layer cardsToPlay check).
func CardsForPlay(cs []cards.Card, wantCount int) error {
	if len(cs) == 0 {
		return ErrCardsEmpty
	}
	if len(cs) > 3 {
		return ErrTooManyCards
	}
	if wantCount >= 0 && len(cs) != wantCount {
		return fmt.Errorf("validate: expected %d cards, got %d", wantCount, len(cs))
	}

	seen := make(map[cards.Card]bool, len(cs))
	for _, c := range cs {
		if !c.Valid() {
			return ErrCardOutOfRange
		}
		if seen[c] {
			return ErrDuplicateCards
		}
		seen[c] = true
	}
	return nil
}

// Category groups rate-limited actions, each with its own sliding window.
type Category int

const (
	CategoryGameAction Category = iota
	CategoryRoomAction
	CategoryConnectionAction
)

func (c Category) limit() (count int, window time.Duration) {
	switch c {
	case CategoryGameAction:
		return 10, time.Second
	case CategoryRoomAction:
		return 5, time.Second
	case CategoryConnectionAction:
		return 10, time.Minute
	default:
		return 10, time.Second
	}
}

// Limiter is a sliding-window rate limiter keyed by (connectionID, category).
// Cleanup is opportunistic on access, per spec.md §9 — no background sweep.
type Limiter struct {
	mu      sync.Mutex
	windows map[limiterKey][]time.Time
}

type limiterKey struct {
	connID   string
	category Category
}

// NewLimiter constructs an empty rate limiter.
func NewLimiter() *Limiter {
	return &Limiter{windows: make(map[limiterKey][]time.Time)}
}

// Allow reports whether the action is within the category's limit for connID
// at time now. Only accepted attempts are recorded into the window.
func (l *Limiter) Allow(connID string, category Category, now time.Time) bool {
	limit, window := category.limit()
	key := limiterKey{connID: connID, category: category}

	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-window)
	times := l.windows[key]
	kept := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= limit {
		l.windows[key] = kept
		return false
	}

	l.windows[key] = append(kept, now)
	return true
}

// Forget drops all rate-limit state for a connection, called on disconnect.
func (l *Limiter) Forget(connID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k := range l.windows {
		if k.connID == connID {
			delete(l.windows, k)
		}
	}
}
