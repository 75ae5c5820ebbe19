// Package rng provides the process-wide random source used for deck
// shuffling. Adapted from the teacher's pkg/rng/rng.go AES-CTR System: kept
// the CSPRNG seeding and the counter-based generation shape, dropped the
// PostgreSQL-oriented audit-trail fields (out of scope per this spec's
// Non-goals — no external database) in favor of a structured log line via
// charmbracelet/log.
package rng

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// System is a counter-based AES-CTR random source. Per spec.md §5 it need
// not be cryptographic, but must not be deterministic across rooms — each
// System is seeded independently from crypto/rand.
type System struct {
	cipher  cipher.Block
	counter uint64
	mu      sync.Mutex
	audit   *AuditLogger
}

// NewSystem creates a System seeded from the OS CSPRNG.
func NewSystem(audit *AuditLogger) (*System, error) {
	seed, err := randomSeed(32)
	if err != nil {
		return nil, fmt.Errorf("rng: seed: %w", err)
	}
	block, err := aes.NewCipher(seed)
	if err != nil {
		return nil, fmt.Errorf("rng: cipher: %w", err)
	}
	return &System{cipher: block, audit: audit}, nil
}

// NewSystemWithSeed creates a System keyed from a caller-supplied seed. Two
// systems with the same seed do not produce the same stream: RandomUint64
// also folds the current time into each block. Never used on the live
// request path.
func NewSystemWithSeed(seed []byte, audit *AuditLogger) (*System, error) {
	key := make([]byte, 32)
	copy(key, seed)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("rng: cipher: %w", err)
	}
	return &System{cipher: block, audit: audit}, nil
}

func randomSeed(n int) ([]byte, error) {
	seed := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, seed); err != nil {
		return nil, err
	}
	return seed, nil
}

// RandomUint64 returns a pseudo-random uint64 from the counter-based stream.
func (s *System) RandomUint64() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	counterBytes := make([]byte, 16)
	binary.BigEndian.PutUint64(counterBytes[:8], s.counter)
	binary.BigEndian.PutUint64(counterBytes[8:], uint64(time.Now().UnixNano()))

	output := make([]byte, 16)
	s.cipher.Encrypt(output, counterBytes)
	s.counter++

	return binary.BigEndian.Uint64(output[:8])
}

// RandomInt returns a value in [0, max). Satisfies the shape cards.Shuffle
// requires.
func (s *System) RandomInt(max int) int {
	if max <= 0 {
		return 0
	}
	return int(s.RandomUint64() % uint64(max))
}

// AuditLogger records shuffle events for operators, matching the teacher's
// audit-trail idea but written through charmbracelet/log instead of a
// database table.
type AuditLogger struct {
	logger  *log.Logger
	enabled bool
}

// NewAuditLogger builds an AuditLogger writing to logger.
func NewAuditLogger(logger *log.Logger) *AuditLogger {
	return &AuditLogger{logger: logger.WithPrefix("rng-audit"), enabled: true}
}

// ShuffleEvent is one shuffle operation, logged for operational visibility.
type ShuffleEvent struct {
	Timestamp time.Time
	RoomID    string
	Round     int
	DeckSize  int
}

// LogShuffle records a shuffle event.
func (a *AuditLogger) LogShuffle(e ShuffleEvent) {
	if a == nil || !a.enabled {
		return
	}
	a.logger.Info("deck shuffled", "room", e.RoomID, "round", e.Round, "deckSize", e.DeckSize, "at", e.Timestamp)
}
