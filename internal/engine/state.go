// Package engine implements the TheDecree game state machine: one instance
// per room in the Playing state, a leaf that emits events through EventSink
// and never calls back into the room. Grounded on
// internal/game/rules/engine.go's RulesEngine interface shape and
// internal/game/table.go's tick-driven phase dispatch, generalized from the
// teacher's multi-variant registry down to the single capability interface
// spec.md §9 calls for.
package engine

import "github.com/thedecree/server/internal/cards"

// GameState is one node of the TheDecree state machine.
type GameState int

const (
	StateSetup GameState = iota
	StateFirstDealerSelection
	StateDealerCall
	StatePlayerSelection
	StateShowdown
	StateScoring
	StateRefill
	StateGameOver
)

func (s GameState) String() string {
	switch s {
	case StateSetup:
		return "setup"
	case StateFirstDealerSelection:
		return "first_dealer_selection"
	case StateDealerCall:
		return "dealer_call"
	case StatePlayerSelection:
		return "player_selection"
	case StateShowdown:
		return "showdown"
	case StateScoring:
		return "scoring"
	case StateRefill:
		return "refill"
	case StateGameOver:
		return "game_over"
	default:
		return "unknown"
	}
}

// Player is one seated participant's engine-visible state. The room's
// session.PlayerSession carries connection/identity; this carries only
// what the game rules need.
type Player struct {
	PlayerID    string
	SeatIndex   int
	Hand        []cards.Card
	PlayedCards []cards.Card
	HasPlayed   bool
	Score       int
	IsAuto      bool
}

// Round is the per-round scratch state, reset by startNewRound.
type Round struct {
	Number      int
	DealerID    string
	CardsToPlay int

	// FirstDealerSelections is only populated during round 1's
	// FirstDealerSelection phase.
	FirstDealerSelections map[string]cards.Card
}

// ShowdownResult is one player's outcome at Showdown, mirroring spec.md §6's
// showdown.results[] wire shape.
type ShowdownResult struct {
	PlayerID string
	Cards    []cards.Card
	HandType cards.HandType
	Score    int
	IsWinner bool
}

// EventSink is the message sink the room injects into the engine, realizing
// spec.md §9's TheDecreeEventCallbacks contract. Emissions are synchronous
// with the engine operation that produced them.
type EventSink interface {
	DealCards(playerID string, hand []cards.Card, allHandCounts map[string]int, deckSize int)
	CommunityCards(community []cards.Card, state GameState)
	RequestFirstDealerSelection(state GameState)
	PlayerSelectedCard(playerID string)
	FirstDealerReveal(selections map[string]cards.Card, dealerID string, state GameState)
	DealerSelected(dealerID string, roundNumber int, state GameState)
	DealerCalled(dealerID string, cardsToPlay int, state GameState)
	PlayerPlayed(playerID string, cardCount int)
	Showdown(results []ShowdownResult, state GameState)
	RoundEnd(winnerID, loserID string, scores map[string]int, state GameState)
	HandRefilled(playerID string, hand []cards.Card, deckSize int)
	GameOver(winnerID string, scores map[string]int, totalRounds int)
	PlayerAutoChanged(playerID string, isAuto bool, reason string)
}
