package room

import (
	"errors"

	"github.com/thedecree/server/internal/cards"
	"github.com/thedecree/server/internal/engine"
)

// mapEngineError translates an engine protocol-order error into the wire
// error taxonomy from spec.md §6.
func mapEngineError(err error) (code, message string) {
	switch {
	case errors.Is(err, engine.ErrGameNotStarted):
		return CodeGameNotStarted, "game has not started"
	case errors.Is(err, engine.ErrNotDealer):
		return CodeNotDealer, "only the current dealer may call"
	case errors.Is(err, engine.ErrAlreadyPlayed), errors.Is(err, engine.ErrAlreadySelected):
		return CodeAlreadyPlayed, "you have already acted this round"
	case errors.Is(err, engine.ErrInvalidCards):
		return CodeInvalidCards, "cards do not match the required play"
	case errors.Is(err, engine.ErrUnknownPlayer):
		return CodeNotYourTurn, "you are not seated in this game"
	default:
		return CodeInvalidPlay, "action not legal in the current state"
	}
}

// HandleDealerCall wraps engine.DealerCall: verifies the room is playing,
// calls the engine, and on rejection sends a private error to the caller.
func (r *Room) HandleDealerCall(playerID string, cardsToPlay int) {
	r.do(func() {
		if r.eng == nil {
			r.SendToPlayer(playerID, "error", errorPayload{Code: CodeGameNotStarted, Message: "game has not started"})
			return
		}
		if err := r.eng.DealerCall(playerID, cardsToPlay); err != nil {
			code, msg := mapEngineError(err)
			r.SendToPlayer(playerID, "error", errorPayload{Code: code, Message: msg})
			return
		}
		r.touch()
	})
}

// HandleSelectFirstDealerCard wraps engine.SelectFirstDealerCard.
func (r *Room) HandleSelectFirstDealerCard(playerID string, card cards.Card) {
	r.do(func() {
		if r.eng == nil {
			r.SendToPlayer(playerID, "error", errorPayload{Code: CodeGameNotStarted, Message: "game has not started"})
			return
		}
		if err := r.eng.SelectFirstDealerCard(playerID, card); err != nil {
			code, msg := mapEngineError(err)
			r.SendToPlayer(playerID, "error", errorPayload{Code: code, Message: msg})
			return
		}
		r.touch()
	})
}

// HandlePlayCards wraps engine.PlayCards.
func (r *Room) HandlePlayCards(playerID string, chosen []cards.Card) {
	r.do(func() {
		if r.eng == nil {
			r.SendToPlayer(playerID, "error", errorPayload{Code: CodeGameNotStarted, Message: "game has not started"})
			return
		}
		if err := r.eng.PlayCards(playerID, chosen); err != nil {
			code, msg := mapEngineError(err)
			r.SendToPlayer(playerID, "error", errorPayload{Code: code, Message: msg})
			return
		}
		r.touch()
	})
}

// HandleSetAuto toggles a player's auto-play flag at their own request.
func (r *Room) HandleSetAuto(playerID string, isAuto bool) {
	r.do(func() {
		if r.eng == nil {
			r.SendToPlayer(playerID, "error", errorPayload{Code: CodeGameNotStarted, Message: "game has not started"})
			return
		}
		if err := r.eng.SetPlayerAuto(playerID, isAuto, "manual"); err != nil {
			code, msg := mapEngineError(err)
			r.SendToPlayer(playerID, "error", errorPayload{Code: code, Message: msg})
			return
		}
		r.touch()
	})
}

// StateSnapshot returns a game_state_update payload for reconnect/resync,
// per spec.md §9's conservative Open Question resolution: emitted only on
// reconnect and explicit resync, never proactively.
func (r *Room) StateSnapshot() (GameStateUpdatePayload, bool) {
	var out GameStateUpdatePayload
	var ok bool
	r.do(func() {
		if r.eng == nil {
			return
		}
		ok = true
		round := r.eng.CurrentRound()
		players := make([]PlayerSnapshot, 0, len(r.eng.Players()))
		for _, p := range r.eng.Players() {
			players = append(players, PlayerSnapshot{
				ID:        p.PlayerID,
				CardCount: len(p.Hand),
				IsReady:   true,
				IsTurn:    isTurn(r.eng.State(), round, p),
				SeatIndex: p.SeatIndex,
			})
		}
		out = GameStateUpdatePayload{
			State:       r.eng.State().String(),
			RoundNumber: r.eng.RoundNumber(),
			DealerID:    round.DealerID,
			CardsToPlay: round.CardsToPlay,
			Players:     players,
			DeckSize:    r.eng.DeckSize(),
		}
	})
	return out, ok
}

func isTurn(state engine.GameState, round engine.Round, p *engine.Player) bool {
	switch state {
	case engine.StateDealerCall:
		return p.PlayerID == round.DealerID
	case engine.StatePlayerSelection:
		return !p.HasPlayed
	case engine.StateFirstDealerSelection:
		_, done := round.FirstDealerSelections[p.PlayerID]
		return !done
	default:
		return false
	}
}
