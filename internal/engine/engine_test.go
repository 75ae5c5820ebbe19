package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thedecree/server/internal/autoplay"
	"github.com/thedecree/server/internal/cards"
)

// recordingSink is a fake EventSink that just counts calls, for asserting
// the engine emits the right shape of event at the right transition.
type recordingSink struct {
	dealCards        int
	communityCards   int
	requestFirstDeal int
	selectedCard     []string
	firstDealerID    string
	dealerSelected   []string
	dealerCalled     []string
	playerPlayed     []string
	showdown         []ShowdownResult
	roundEnds        int
	handRefilled     int
	gameOvers        int
	autoChanged      []string
}

func (s *recordingSink) DealCards(playerID string, hand []cards.Card, allHandCounts map[string]int, deckSize int) {
	s.dealCards++
}
func (s *recordingSink) CommunityCards(community []cards.Card, state GameState) { s.communityCards++ }
func (s *recordingSink) RequestFirstDealerSelection(state GameState)            { s.requestFirstDeal++ }
func (s *recordingSink) PlayerSelectedCard(playerID string) {
	s.selectedCard = append(s.selectedCard, playerID)
}
func (s *recordingSink) FirstDealerReveal(selections map[string]cards.Card, dealerID string, state GameState) {
	s.firstDealerID = dealerID
}
func (s *recordingSink) DealerSelected(dealerID string, roundNumber int, state GameState) {
	s.dealerSelected = append(s.dealerSelected, dealerID)
}
func (s *recordingSink) DealerCalled(dealerID string, cardsToPlay int, state GameState) {
	s.dealerCalled = append(s.dealerCalled, dealerID)
}
func (s *recordingSink) PlayerPlayed(playerID string, cardCount int) {
	s.playerPlayed = append(s.playerPlayed, playerID)
}
func (s *recordingSink) Showdown(results []ShowdownResult, state GameState) {
	s.showdown = results
}
func (s *recordingSink) RoundEnd(winnerID, loserID string, scores map[string]int, state GameState) {
	s.roundEnds++
}
func (s *recordingSink) HandRefilled(playerID string, hand []cards.Card, deckSize int) {
	s.handRefilled++
}
func (s *recordingSink) GameOver(winnerID string, scores map[string]int, totalRounds int) {
	s.gameOvers++
}
func (s *recordingSink) PlayerAutoChanged(playerID string, isAuto bool, reason string) {
	s.autoChanged = append(s.autoChanged, playerID)
}

func sequentialRandom() func(int) int {
	n := 0
	return func(max int) int {
		n++
		return n % max
	}
}

func TestInitGameRequiresTwoPlayers(t *testing.T) {
	e := New(&recordingSink{}, sequentialRandom(), autoplay.Conservative{})
	err := e.InitGame([]string{"p1"})
	require.Error(t, err)
}

func TestInitGameSeatsPlayersInOrder(t *testing.T) {
	sink := &recordingSink{}
	e := New(sink, sequentialRandom(), autoplay.Conservative{})
	require.NoError(t, e.InitGame([]string{"p1", "p2", "p3"}))

	players := e.Players()
	require.Len(t, players, 3)
	for i, p := range players {
		assert.Equal(t, i, p.SeatIndex)
	}
	assert.Equal(t, StateSetup, e.State())
}

func TestDealCardsDealsFiveAndFourCommunity(t *testing.T) {
	sink := &recordingSink{}
	e := New(sink, sequentialRandom(), autoplay.Conservative{})
	require.NoError(t, e.InitGame([]string{"p1", "p2"}))
	require.NoError(t, e.DealCards())

	assert.Equal(t, StateFirstDealerSelection, e.State())
	assert.Equal(t, 2, sink.dealCards)
	assert.Equal(t, 1, sink.communityCards)
	assert.Equal(t, 1, sink.requestFirstDeal)

	for _, p := range e.Players() {
		assert.Len(t, p.Hand, 5)
	}
}

func TestDealCardsRejectsWrongState(t *testing.T) {
	sink := &recordingSink{}
	e := New(sink, sequentialRandom(), autoplay.Conservative{})
	require.NoError(t, e.InitGame([]string{"p1", "p2"}))
	require.NoError(t, e.DealCards())

	err := e.DealCards()
	require.ErrorIs(t, err, ErrWrongState)
}

// playThroughFirstDealerSelection drives every seated player to submit their
// lowest-ranked card, returning the revealed dealer id.
func playThroughFirstDealerSelection(t *testing.T, e *Engine) string {
	t.Helper()
	var dealerID string
	for _, p := range e.Players() {
		err := e.SelectFirstDealerCard(p.PlayerID, p.Hand[0])
		require.NoError(t, err)
	}
	dealerID = e.CurrentRound().DealerID
	require.NotEmpty(t, dealerID)
	return dealerID
}

func TestSelectFirstDealerCardRevealsDealerOnceAllSubmit(t *testing.T) {
	sink := &recordingSink{}
	e := New(sink, sequentialRandom(), autoplay.Conservative{})
	require.NoError(t, e.InitGame([]string{"p1", "p2"}))
	require.NoError(t, e.DealCards())

	dealerID := playThroughFirstDealerSelection(t, e)
	assert.Equal(t, StateDealerCall, e.State())
	assert.Equal(t, dealerID, sink.firstDealerID)
	assert.Equal(t, 1, e.RoundNumber())
}

func TestSelectFirstDealerCardRejectsCardNotInHand(t *testing.T) {
	sink := &recordingSink{}
	e := New(sink, sequentialRandom(), autoplay.Conservative{})
	require.NoError(t, e.InitGame([]string{"p1", "p2"}))
	require.NoError(t, e.DealCards())

	p1 := e.Players()[0]
	inHand := func(c cards.Card) bool {
		for _, h := range p1.Hand {
			if h == c {
				return true
			}
		}
		return false
	}

	var foreign cards.Card
	found := false
	for suit := cards.SuitDiamond; suit <= cards.SuitHeart; suit++ {
		for rank := cards.RankAce; rank <= cards.RankKing; rank++ {
			c := cards.NewCard(suit, rank)
			if !inHand(c) {
				foreign = c
				found = true
				break
			}
		}
		if found {
			break
		}
	}
	require.True(t, found, "expected at least one card outside p1's 5-card hand")

	err := e.SelectFirstDealerCard("p1", foreign)
	require.ErrorIs(t, err, ErrInvalidCards)
}

func TestDealerCallOnlyAcceptsCurrentDealer(t *testing.T) {
	sink := &recordingSink{}
	e := New(sink, sequentialRandom(), autoplay.Conservative{})
	require.NoError(t, e.InitGame([]string{"p1", "p2"}))
	require.NoError(t, e.DealCards())
	dealerID := playThroughFirstDealerSelection(t, e)

	nonDealer := "p1"
	if dealerID == "p1" {
		nonDealer = "p2"
	}
	err := e.DealerCall(nonDealer, 1)
	require.ErrorIs(t, err, ErrNotDealer)

	require.NoError(t, e.DealerCall(dealerID, 2))
	assert.Equal(t, StatePlayerSelection, e.State())
	assert.Equal(t, 2, e.CurrentRound().CardsToPlay)
}

func TestDealerCallRejectsOutOfRangeCount(t *testing.T) {
	sink := &recordingSink{}
	e := New(sink, sequentialRandom(), autoplay.Conservative{})
	require.NoError(t, e.InitGame([]string{"p1", "p2"}))
	require.NoError(t, e.DealCards())
	dealerID := playThroughFirstDealerSelection(t, e)

	err := e.DealerCall(dealerID, 0)
	require.ErrorIs(t, err, ErrInvalidCards)
	err = e.DealerCall(dealerID, 4)
	require.ErrorIs(t, err, ErrInvalidCards)
}

func TestPlayCardsAdvancesToShowdownWhenAllPlayed(t *testing.T) {
	sink := &recordingSink{}
	e := New(sink, sequentialRandom(), autoplay.Conservative{})
	require.NoError(t, e.InitGame([]string{"p1", "p2"}))
	require.NoError(t, e.DealCards())
	dealerID := playThroughFirstDealerSelection(t, e)
	require.NoError(t, e.DealerCall(dealerID, 1))

	for _, p := range e.Players() {
		require.NoError(t, e.PlayCards(p.PlayerID, p.Hand[:1]))
	}

	assert.Equal(t, 2, len(sink.playerPlayed))
	assert.NotZero(t, sink.roundEnds, "a 2-player round must end at showdown, not continue waiting")
}

func TestPlayCardsRejectsWrongCount(t *testing.T) {
	sink := &recordingSink{}
	e := New(sink, sequentialRandom(), autoplay.Conservative{})
	require.NoError(t, e.InitGame([]string{"p1", "p2"}))
	require.NoError(t, e.DealCards())
	dealerID := playThroughFirstDealerSelection(t, e)
	require.NoError(t, e.DealerCall(dealerID, 2))

	p1 := e.Players()[0]
	err := e.PlayCards(p1.PlayerID, p1.Hand[:1])
	require.ErrorIs(t, err, ErrInvalidCards)
}

func TestPlayCardsRejectsDoublePlay(t *testing.T) {
	sink := &recordingSink{}
	e := New(sink, sequentialRandom(), autoplay.Conservative{})
	require.NoError(t, e.InitGame([]string{"p1", "p2"}))
	require.NoError(t, e.DealCards())
	dealerID := playThroughFirstDealerSelection(t, e)
	require.NoError(t, e.DealerCall(dealerID, 1))

	p1 := e.Players()[0]
	require.NoError(t, e.PlayCards(p1.PlayerID, p1.Hand[:1]))
	err := e.PlayCards(p1.PlayerID, p1.Hand[:1])
	require.ErrorIs(t, err, ErrAlreadyPlayed)
}

// TestRefillDeckExhaustingExactlyOnLastCardContinuesRound guards against
// treating "deck hit zero" as synonymous with "refill failed": when the
// remaining deck is an exact multiple of what's needed to top everyone back
// up to a full hand, the last draw empties the deck on the very same pass
// that satisfies allFull, and the round must still continue.
func TestRefillDeckExhaustingExactlyOnLastCardContinuesRound(t *testing.T) {
	sink := &recordingSink{}
	e := New(sink, sequentialRandom(), autoplay.Conservative{})

	deck := cards.Deck()
	p1 := &Player{PlayerID: "p1", SeatIndex: 0, Hand: append([]cards.Card{}, deck[0:3]...)}
	p2 := &Player{PlayerID: "p2", SeatIndex: 1, Hand: append([]cards.Card{}, deck[3:6]...)}
	e.players = []*Player{p1, p2}
	e.byID = map[string]*Player{"p1": p1, "p2": p2}
	e.deck = append([]cards.Card{}, deck[6:10]...) // exactly 2 cards per player, no more
	e.round = Round{Number: 1, DealerID: "p1"}
	e.roundNumber = 1
	e.lastLoserID = "p2"
	e.state = StateScoring

	require.NoError(t, e.Refill())

	assert.Equal(t, StateDealerCall, e.State(), "exact deck exhaustion on a successful refill must continue the round, not end the game")
	assert.Equal(t, 0, e.DeckSize())
	assert.Equal(t, 0, sink.gameOvers)
	assert.Equal(t, 2, e.RoundNumber())
	assert.Equal(t, "p2", e.CurrentRound().DealerID)
	for _, p := range e.Players() {
		assert.Len(t, p.Hand, handSize)
	}
}

func TestRefillEndsGameWhenDeckCannotRefillEveryone(t *testing.T) {
	sink := &recordingSink{}
	e := New(sink, sequentialRandom(), autoplay.Conservative{})

	deck := cards.Deck()
	p1 := &Player{PlayerID: "p1", SeatIndex: 0, Hand: append([]cards.Card{}, deck[0:3]...)}
	p2 := &Player{PlayerID: "p2", SeatIndex: 1, Hand: append([]cards.Card{}, deck[3:6]...)}
	e.players = []*Player{p1, p2}
	e.byID = map[string]*Player{"p1": p1, "p2": p2}
	e.deck = append([]cards.Card{}, deck[6:9]...) // one short of the 4 needed
	e.round = Round{Number: 1, DealerID: "p1"}
	e.roundNumber = 1
	e.lastLoserID = "p2"
	e.state = StateScoring

	require.NoError(t, e.Refill())

	assert.Equal(t, StateGameOver, e.State())
	assert.Equal(t, 1, sink.gameOvers)
}

func TestSetPlayerAutoEmitsEvent(t *testing.T) {
	sink := &recordingSink{}
	e := New(sink, sequentialRandom(), autoplay.Conservative{})
	require.NoError(t, e.InitGame([]string{"p1", "p2"}))

	require.NoError(t, e.SetPlayerAuto("p1", true, "disconnect"))
	assert.Contains(t, sink.autoChanged, "p1")
	p, _ := e.Player("p1")
	assert.True(t, p.IsAuto)
}

func TestSetPlayerAutoRejectsUnknownPlayer(t *testing.T) {
	sink := &recordingSink{}
	e := New(sink, sequentialRandom(), autoplay.Conservative{})
	require.NoError(t, e.InitGame([]string{"p1", "p2"}))

	err := e.SetPlayerAuto("ghost", true, "manual")
	require.ErrorIs(t, err, ErrUnknownPlayer)
}
