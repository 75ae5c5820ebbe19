// Package autoplay provides pluggable decision functions that stand in for
// a disconnected or slow player, per §4.2.
package autoplay

import (
	"math/rand"
	"sort"

	"github.com/thedecree/server/internal/cards"
)

// Strategy is the capability interface the engine depends on. It never
// touches connection or room state — only a player's private hand and the
// public community cards.
type Strategy interface {
	Name() string
	SelectFirstDealerCard(hand []cards.Card) cards.Card
	DealerCall(hand []cards.Card, community []cards.Card) int
	SelectPlayCards(hand []cards.Card, cardsToPlay int) []cards.Card
}

// sortedCopy returns hand sorted ascending by Texas rank without mutating it.
func sortedCopy(hand []cards.Card) []cards.Card {
	out := make([]cards.Card, len(hand))
	copy(out, hand)
	cards.SortAscending(out)
	return out
}

// Conservative is the process default: always picks the smallest available
// card or cards, and calls for the minimum reveal.
type Conservative struct{}

func (Conservative) Name() string { return "conservative" }

func (Conservative) SelectFirstDealerCard(hand []cards.Card) cards.Card {
	sorted := sortedCopy(hand)
	return sorted[0]
}

func (Conservative) DealerCall(hand []cards.Card, community []cards.Card) int {
	return 1
}

func (Conservative) SelectPlayCards(hand []cards.Card, cardsToPlay int) []cards.Card {
	sorted := sortedCopy(hand)
	if cardsToPlay > len(sorted) {
		cardsToPlay = len(sorted)
	}
	return sorted[:cardsToPlay]
}

// Aggressive always reveals the largest card(s) and calls for the maximum
// reveal count.
type Aggressive struct{}

func (Aggressive) Name() string { return "aggressive" }

func (Aggressive) SelectFirstDealerCard(hand []cards.Card) cards.Card {
	sorted := sortedCopy(hand)
	return sorted[len(sorted)-1]
}

func (Aggressive) DealerCall(hand []cards.Card, community []cards.Card) int {
	return 3
}

func (Aggressive) SelectPlayCards(hand []cards.Card, cardsToPlay int) []cards.Card {
	sorted := sortedCopy(hand)
	if cardsToPlay > len(sorted) {
		cardsToPlay = len(sorted)
	}
	return sorted[len(sorted)-cardsToPlay:]
}

// Random picks uniformly at random among legal choices. Not used as the
// process default, but kept interchangeable via the Strategy interface.
type Random struct {
	Rand *rand.Rand
}

func (r Random) Name() string { return "random" }

func (r Random) SelectFirstDealerCard(hand []cards.Card) cards.Card {
	return hand[r.Rand.Intn(len(hand))]
}

func (r Random) DealerCall(hand []cards.Card, community []cards.Card) int {
	return 1 + r.Rand.Intn(3)
}

func (r Random) SelectPlayCards(hand []cards.Card, cardsToPlay int) []cards.Card {
	shuffled := make([]cards.Card, len(hand))
	copy(shuffled, hand)
	r.Rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	if cardsToPlay > len(shuffled) {
		cardsToPlay = len(shuffled)
	}
	picked := shuffled[:cardsToPlay]
	sort.Slice(picked, func(i, j int) bool {
		return cards.CompareTexas(picked[i], picked[j]) < 0
	})
	return picked
}

// New resolves a strategy from its configured name, defaulting to
// Conservative for anything unrecognized. seed only matters for "random";
// callers must give each room its own instance (a *rand.Rand is not safe
// for concurrent use, and every room runs on its own goroutine).
func New(name string, seed int64) Strategy {
	switch name {
	case "aggressive":
		return Aggressive{}
	case "random":
		return Random{Rand: rand.New(rand.NewSource(seed))}
	default:
		return Conservative{}
	}
}

// ByName resolves a strategy from its configured name with a fixed seed,
// for callers (tests, single-room setups) that don't need per-room isolation.
func ByName(name string) Strategy {
	return New(name, 1)
}
