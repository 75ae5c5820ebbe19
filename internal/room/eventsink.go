package room

import (
	"time"

	"github.com/thedecree/server/internal/cards"
	"github.com/thedecree/server/internal/engine"
	"github.com/thedecree/server/internal/metrics"
)

// Room implements engine.EventSink: every emission is synchronous with the
// engine operation that produced it and runs on the room's own loop
// goroutine (the engine is only ever driven from inside r.do), so no
// locking is required here beyond what Broadcast/SendToPlayer already do
// for the session maps.

func (r *Room) DealCards(playerID string, hand []cards.Card, allHandCounts map[string]int, deckSize int) {
	if sess, ok := r.sessions[playerID]; ok {
		sess.SetCardCount(len(hand))
	}
	r.SendToPlayer(playerID, "deal_cards", dealCardsPayload{
		PlayerID: playerID, HandCards: hand, AllHandCounts: allHandCounts, DeckSize: deckSize,
	})
}

func (r *Room) CommunityCards(community []cards.Card, state engine.GameState) {
	r.Broadcast("community_cards", communityCardsPayload{Cards: community, GameState: state.String()}, "")
}

func (r *Room) RequestFirstDealerSelection(state engine.GameState) {
	r.Broadcast("request_first_dealer_selection", requestFirstDealerSelectionPayload{GameState: state.String()}, "")
}

func (r *Room) PlayerSelectedCard(playerID string) {
	r.Broadcast("player_selected_card", playerSelectedCardPayload{PlayerID: playerID}, "")
}

func (r *Room) FirstDealerReveal(selections map[string]cards.Card, dealerID string, state engine.GameState) {
	entries := make([]firstDealerSelectionEntry, 0, len(selections))
	for id, c := range selections {
		entries = append(entries, firstDealerSelectionEntry{PlayerID: id, Card: c})
	}
	r.Broadcast("first_dealer_reveal", firstDealerRevealPayload{
		Selections: entries, DealerID: dealerID, GameState: state.String(),
	}, "")
}

func (r *Room) DealerSelected(dealerID string, roundNumber int, state engine.GameState) {
	r.Broadcast("dealer_selected", dealerSelectedPayload{
		DealerID: dealerID, RoundNumber: roundNumber, GameState: state.String(),
	}, "")
	r.rescheduleAutoPlayTimers()
}

func (r *Room) DealerCalled(dealerID string, cardsToPlay int, state engine.GameState) {
	r.Broadcast("dealer_called", dealerCalledPayload{
		DealerID: dealerID, CardsToPlay: cardsToPlay, GameState: state.String(),
	}, "")
	r.roundStartedAt = time.Now()
	r.rescheduleAutoPlayTimers()
}

func (r *Room) PlayerPlayed(playerID string, cardCount int) {
	r.Broadcast("player_played", playerPlayedPayload{PlayerID: playerID, CardCount: cardCount}, "")
	r.rescheduleAutoPlayTimers()
}

func (r *Room) Showdown(results []engine.ShowdownResult, state engine.GameState) {
	entries := make([]showdownResultEntry, 0, len(results))
	for _, res := range results {
		entries = append(entries, showdownResultEntry{
			PlayerID:     res.PlayerID,
			Cards:        res.Cards,
			HandType:     int(res.HandType),
			HandTypeName: res.HandType.String(),
			Score:        res.Score,
			IsWinner:     res.IsWinner,
		})
	}
	r.Broadcast("showdown", showdownPayload{Results: entries, GameState: state.String()}, "")
}

func (r *Room) RoundEnd(winnerID, loserID string, scores map[string]int, state engine.GameState) {
	r.Broadcast("round_end", roundEndPayload{
		WinnerID: winnerID, LoserID: loserID, Scores: scores, GameState: state.String(),
	}, "")
	if !r.roundStartedAt.IsZero() {
		metrics.RoundDuration.Observe(time.Since(r.roundStartedAt).Seconds())
	}
	r.scheduleDelay("refill", r.cfg.ScoringToRefillDelay, func() {
		if r.eng == nil {
			return
		}
		if err := r.eng.Refill(); err != nil {
			r.logger.Error("refill failed", "error", err)
			return
		}
		r.rescheduleAutoPlayTimers()
	})
}

func (r *Room) HandRefilled(playerID string, hand []cards.Card, deckSize int) {
	if sess, ok := r.sessions[playerID]; ok {
		sess.SetCardCount(len(hand))
	}
	r.SendToPlayer(playerID, "hand_refilled", handRefilledPayload{PlayerID: playerID, Hand: hand, DeckSize: deckSize})
}

func (r *Room) GameOver(winnerID string, scores map[string]int, totalRounds int) {
	r.Broadcast("game_over", gameOverPayload{WinnerID: winnerID, Scores: scores, TotalRounds: totalRounds}, "")
	metrics.GamesCompletedTotal.Inc()

	r.scheduleDelay("endgame", r.cfg.EndOfGameDelay, func() {
		r.cancelAllTimers()
		if r.eng != nil {
			r.eng.Cleanup()
			r.eng = nil
		}
		r.mu.Lock()
		for _, sess := range r.sessions {
			sess.SetReady(false)
		}
		r.restartClicks = make(map[string]bool)
		r.state = StateWaiting
		r.mu.Unlock()
	})
}

func (r *Room) PlayerAutoChanged(playerID string, isAuto bool, reason string) {
	if sess, ok := r.sessions[playerID]; ok {
		sess.SetAuto(isAuto)
	}
	r.Broadcast("player_auto_changed", playerAutoChangedPayload{PlayerID: playerID, IsAuto: isAuto, Reason: reason}, "")
	if isAuto {
		metrics.RecordAutoPlay(reason)
	}
	r.rescheduleAutoPlayTimers()
}
