package engine

import (
	"fmt"

	"github.com/thedecree/server/internal/autoplay"
	"github.com/thedecree/server/internal/cards"
)

const handSize = 5
const communitySize = 4

// Engine is one TheDecree game, owned by exactly one room in the Playing
// state. It is a leaf: it emits through sink and never calls back into its
// owner. All methods are synchronous and must only be called from the
// owning room's single goroutine (spec.md §5's mutual-exclusion guarantee
// is the caller's responsibility, not the engine's).
type Engine struct {
	sink      EventSink
	randomInt func(n int) int
	strategy  autoplay.Strategy

	state       GameState
	players     []*Player
	byID        map[string]*Player
	deck        []cards.Card
	community   []cards.Card
	round       Round
	roundNumber int
	lastLoserID string
}

// New constructs an Engine. randomInt drives deck shuffling (pkg/rng.System
// satisfies the shape); strategy is the process-wide auto-play strategy.
func New(sink EventSink, randomInt func(n int) int, strategy autoplay.Strategy) *Engine {
	return &Engine{
		sink:      sink,
		randomInt: randomInt,
		strategy:  strategy,
		state:     StateSetup,
		byID:      make(map[string]*Player),
	}
}

// State returns the engine's current node in the state machine.
func (e *Engine) State() GameState { return e.state }

// RoundNumber returns the 1-based number of the round in progress.
func (e *Engine) RoundNumber() int { return e.roundNumber }

// Players returns the seated players in seat order. Callers must not
// mutate the returned slice or its elements' card slices.
func (e *Engine) Players() []*Player { return e.players }

// Player looks up a seated player by id.
func (e *Engine) Player(playerID string) (*Player, bool) {
	p, ok := e.byID[playerID]
	return p, ok
}

// CurrentRound returns the in-progress round's scratch state.
func (e *Engine) CurrentRound() Round { return e.round }

// DeckSize returns the number of cards left undealt in the draw pile.
func (e *Engine) DeckSize() int { return len(e.deck) }

// InitGame seeds the deck and seats every player in the given order
// (seat index == slice index), per spec.md §4.5's Setup state. It does not
// deal; DealCards does that after the room's 500ms delay.
func (e *Engine) InitGame(playerIDs []string) error {
	if len(playerIDs) < 2 {
		return fmt.Errorf("engine: need at least 2 players, got %d", len(playerIDs))
	}

	e.deck = cards.Deck()
	cards.Shuffle(e.deck, e.randomInt)

	e.players = make([]*Player, 0, len(playerIDs))
	e.byID = make(map[string]*Player, len(playerIDs))
	for i, id := range playerIDs {
		p := &Player{PlayerID: id, SeatIndex: i}
		e.players = append(e.players, p)
		e.byID[id] = p
	}
	e.community = nil
	e.roundNumber = 0
	e.state = StateSetup
	return nil
}

// DealCards deals 4 community cards and 5 to each seated player, sorts
// every hand and the community ascending, emits the deal events, and
// transitions to FirstDealerSelection.
func (e *Engine) DealCards() error {
	if e.state != StateSetup {
		return ErrWrongState
	}

	e.community = append([]cards.Card{}, e.deck[:communitySize]...)
	e.deck = e.deck[communitySize:]
	cards.SortAscending(e.community)

	allHandCounts := make(map[string]int, len(e.players))
	for _, p := range e.players {
		p.Hand = append([]cards.Card{}, e.deck[:handSize]...)
		e.deck = e.deck[handSize:]
		cards.SortAscending(p.Hand)
		allHandCounts[p.PlayerID] = len(p.Hand)
	}

	for _, p := range e.players {
		e.sink.DealCards(p.PlayerID, p.Hand, allHandCounts, len(e.deck))
	}

	e.state = StateFirstDealerSelection
	e.round = Round{Number: 1, FirstDealerSelections: make(map[string]cards.Card, len(e.players))}
	e.sink.CommunityCards(e.community, e.state)
	e.sink.RequestFirstDealerSelection(e.state)
	return nil
}

// SelectFirstDealerCard records a player's first-dealer-election card. Once
// every seated player has submitted one, it reveals the dealer and starts
// round 1 via startNewRound.
func (e *Engine) SelectFirstDealerCard(playerID string, card cards.Card) error {
	if e.state != StateFirstDealerSelection {
		return ErrWrongState
	}
	p, ok := e.byID[playerID]
	if !ok {
		return ErrUnknownPlayer
	}
	if _, already := e.round.FirstDealerSelections[playerID]; already {
		return ErrAlreadySelected
	}
	if !ownsCard(p.Hand, card) {
		return ErrInvalidCards
	}

	e.round.FirstDealerSelections[playerID] = card
	e.sink.PlayerSelectedCard(playerID)

	if len(e.round.FirstDealerSelections) < len(e.players) {
		return nil
	}

	dealerID := e.players[0].PlayerID
	best := e.round.FirstDealerSelections[dealerID]
	for _, p := range e.players[1:] {
		c := e.round.FirstDealerSelections[p.PlayerID]
		if cards.CompareTexas(c, best) > 0 {
			best = c
			dealerID = p.PlayerID
		}
	}

	e.sink.FirstDealerReveal(e.round.FirstDealerSelections, dealerID, e.state)
	e.startNewRound(dealerID)
	return nil
}

// startNewRound advances the round counter, clears per-round player
// fields, and enters DealerCall, per spec.md §4.5.
func (e *Engine) startNewRound(dealerID string) {
	e.roundNumber++
	for _, p := range e.players {
		p.PlayedCards = nil
		p.HasPlayed = false
	}
	e.round = Round{Number: e.roundNumber, DealerID: dealerID, CardsToPlay: 0}
	e.state = StateDealerCall
	e.sink.DealerSelected(dealerID, e.roundNumber, e.state)
}

// DealerCall records the current dealer's chosen reveal count and enters
// PlayerSelection.
func (e *Engine) DealerCall(playerID string, cardsToPlay int) error {
	if e.state != StateDealerCall {
		return ErrWrongState
	}
	if playerID != e.round.DealerID {
		return ErrNotDealer
	}
	if cardsToPlay < 1 || cardsToPlay > 3 {
		return ErrInvalidCards
	}

	e.round.CardsToPlay = cardsToPlay
	e.state = StatePlayerSelection
	e.sink.DealerCalled(playerID, cardsToPlay, e.state)
	return nil
}

// PlayCards records a player's reveal for the round. Cards are not removed
// from the hand here; removal happens in Refill. When every seated player
// has played, the round proceeds through Showdown and Scoring
// synchronously, ending in StateScoring.
func (e *Engine) PlayCards(playerID string, chosen []cards.Card) error {
	if e.state != StatePlayerSelection {
		return ErrWrongState
	}
	p, ok := e.byID[playerID]
	if !ok {
		return ErrUnknownPlayer
	}
	if p.HasPlayed {
		return ErrAlreadyPlayed
	}
	if len(chosen) != e.round.CardsToPlay {
		return ErrInvalidCards
	}
	if hasDuplicateCard(chosen) || !ownsAllCards(p.Hand, chosen) {
		return ErrInvalidCards
	}

	p.PlayedCards = append([]cards.Card{}, chosen...)
	p.HasPlayed = true
	e.sink.PlayerPlayed(playerID, len(chosen))

	for _, pl := range e.players {
		if !pl.HasPlayed {
			return nil
		}
	}

	e.runShowdown()
	return nil
}

// runShowdown evaluates every player's best hand, declares a winner and
// loser, and falls through to scoring — both are deterministic, so no
// external input is needed between them (spec.md §4.5's Showdown/Scoring
// nodes).
func (e *Engine) runShowdown() {
	e.state = StateShowdown

	results := make([]ShowdownResult, len(e.players))
	evalResults := make([]cards.Result, len(e.players))
	for i, p := range e.players {
		combined := append(append([]cards.Card{}, p.PlayedCards...), e.community...)
		r, err := cards.Evaluate(combined)
		if err != nil {
			// Defensive: a malformed combined hand must never corrupt
			// engine state; skip scoring for this player rather than panic.
			continue
		}
		evalResults[i] = r
		results[i] = ShowdownResult{
			PlayerID: p.PlayerID,
			Cards:    p.PlayedCards,
			HandType: r.Type,
			Score:    cards.ScoreFor(r.Type),
		}
	}

	winnerIdx := 0
	loserIdx := 0
	for i := 1; i < len(e.players); i++ {
		if cards.Compare(evalResults[i], evalResults[winnerIdx]) > 0 {
			winnerIdx = i
		}
		if cards.Compare(evalResults[i], evalResults[loserIdx]) < 0 {
			loserIdx = i
		}
	}
	results[winnerIdx].IsWinner = true

	e.sink.Showdown(results, e.state)
	e.runScoring(results, winnerIdx, loserIdx)
}

// runScoring awards base-hand-type scores plus a +1 bonus to the winner,
// emits round_end, and leaves the engine in StateScoring — the room
// schedules Refill after the scoring-to-refill delay.
func (e *Engine) runScoring(results []ShowdownResult, winnerIdx, loserIdx int) {
	e.state = StateScoring

	for i, p := range e.players {
		p.Score += results[i].Score
	}
	e.players[winnerIdx].Score++

	winnerID := e.players[winnerIdx].PlayerID
	loserID := e.players[loserIdx].PlayerID
	e.lastLoserID = loserID

	scores := make(map[string]int, len(e.players))
	for _, p := range e.players {
		scores[p.PlayerID] = p.Score
	}

	e.sink.RoundEnd(winnerID, loserID, scores, e.state)
}

// Refill removes each player's played cards, redeals hands back to 5 in
// dealer-first rotation, and either ends the game or starts a new round
// dealt by the prior round's loser.
func (e *Engine) Refill() error {
	if e.state != StateScoring {
		return ErrWrongState
	}
	e.state = StateRefill

	rotation := e.rotationFrom(e.round.DealerID)
	for _, p := range rotation {
		kept := p.Hand[:0:0]
		played := make(map[cards.Card]bool, len(p.PlayedCards))
		for _, c := range p.PlayedCards {
			played[c] = true
		}
		for _, c := range p.Hand {
			if !played[c] {
				kept = append(kept, c)
			}
		}
		p.Hand = kept
	}

	allFull := false
	for {
		drewAny := false
		for _, p := range rotation {
			if len(p.Hand) >= handSize || len(e.deck) == 0 {
				continue
			}
			p.Hand = append(p.Hand, e.deck[0])
			e.deck = e.deck[1:]
			drewAny = true
		}
		allFull = true
		for _, p := range rotation {
			if len(p.Hand) < handSize {
				allFull = false
				break
			}
		}
		if allFull || !drewAny {
			break
		}
	}

	// The deck emptying exactly as the last hand fills back up is not a
	// refill failure; only a loop that gave up with someone still short
	// (or a player left holding zero cards) ends the game.
	gameOver := !allFull
	for _, p := range e.players {
		cards.SortAscending(p.Hand)
		e.sink.HandRefilled(p.PlayerID, p.Hand, len(e.deck))
		if len(p.Hand) == 0 {
			gameOver = true
		}
	}

	if gameOver {
		e.runGameOver()
		return nil
	}

	e.startNewRound(e.lastLoserID)
	return nil
}

// rotationFrom returns the seated players starting at dealerID and
// continuing in seat order, wrapping around.
func (e *Engine) rotationFrom(dealerID string) []*Player {
	start := 0
	for i, p := range e.players {
		if p.PlayerID == dealerID {
			start = i
			break
		}
	}
	out := make([]*Player, 0, len(e.players))
	for i := 0; i < len(e.players); i++ {
		out = append(out, e.players[(start+i)%len(e.players)])
	}
	return out
}

// runGameOver picks the highest-scoring player, breaking ties by seat
// order (spec.md §9's Open Question, pinned for determinism).
func (e *Engine) runGameOver() {
	e.state = StateGameOver

	winnerIdx := 0
	for i := 1; i < len(e.players); i++ {
		if e.players[i].Score > e.players[winnerIdx].Score {
			winnerIdx = i
		}
	}

	scores := make(map[string]int, len(e.players))
	for _, p := range e.players {
		scores[p.PlayerID] = p.Score
	}

	e.sink.GameOver(e.players[winnerIdx].PlayerID, scores, e.roundNumber)
}

// SetPlayerAuto toggles a player's auto-play flag and emits the change.
func (e *Engine) SetPlayerAuto(playerID string, auto bool, reason string) error {
	p, ok := e.byID[playerID]
	if !ok {
		return ErrUnknownPlayer
	}
	p.IsAuto = auto
	e.sink.PlayerAutoChanged(playerID, auto, reason)
	return nil
}

// Cleanup releases the engine's references. Kept to satisfy spec.md §9's
// capability interface; nothing beyond GC is required since the engine
// holds no timers or external handles itself.
func (e *Engine) Cleanup() {
	e.players = nil
	e.byID = nil
	e.deck = nil
	e.community = nil
}

func ownsCard(hand []cards.Card, c cards.Card) bool {
	for _, h := range hand {
		if h == c {
			return true
		}
	}
	return false
}

func ownsAllCards(hand []cards.Card, chosen []cards.Card) bool {
	for _, c := range chosen {
		if !ownsCard(hand, c) {
			return false
		}
	}
	return true
}

func hasDuplicateCard(cs []cards.Card) bool {
	seen := make(map[cards.Card]bool, len(cs))
	for _, c := range cs {
		if seen[c] {
			return true
		}
		seen[c] = true
	}
	return false
}
