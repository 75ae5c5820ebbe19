package engine

// PendingAutoPlayers returns the ids of auto-play players who currently owe
// an action given the state machine node the engine is in. The room uses
// this to (re)schedule per-player auto-play deliberation timers — keyed by
// playerId, a new one cancelling any old one, per spec.md §5.
func (e *Engine) PendingAutoPlayers() []string {
	var pending []string

	switch e.state {
	case StateFirstDealerSelection:
		for _, p := range e.players {
			if !p.IsAuto {
				continue
			}
			if _, done := e.round.FirstDealerSelections[p.PlayerID]; !done {
				pending = append(pending, p.PlayerID)
			}
		}

	case StateDealerCall:
		if dealer, ok := e.byID[e.round.DealerID]; ok && dealer.IsAuto {
			pending = append(pending, dealer.PlayerID)
		}

	case StatePlayerSelection:
		for _, p := range e.players {
			if p.IsAuto && !p.HasPlayed {
				pending = append(pending, p.PlayerID)
			}
		}
	}

	return pending
}

// CheckAutoPlayTimeouts is the capability-interface name spec.md §9 assigns
// to auto-play timeout handling. Deadline bookkeeping lives in the room
// (it owns the timers); this is an alias onto PendingAutoPlayers so the
// room has one place to ask "who needs a deliberation timer right now".
func (e *Engine) CheckAutoPlayTimeouts() []string {
	return e.PendingAutoPlayers()
}

// ExecuteAutoPlayFor runs the configured strategy's decision for playerID's
// currently pending action and applies it. It no-ops safely if the
// player's turn has already passed by the time a deliberation timer fires
// (spec.md §7: "internal timers that fail... must no-op safely").
func (e *Engine) ExecuteAutoPlayFor(playerID string) error {
	p, ok := e.byID[playerID]
	if !ok {
		return nil
	}

	switch e.state {
	case StateFirstDealerSelection:
		if _, done := e.round.FirstDealerSelections[playerID]; done {
			return nil
		}
		card := e.strategy.SelectFirstDealerCard(p.Hand)
		return e.SelectFirstDealerCard(playerID, card)

	case StateDealerCall:
		if playerID != e.round.DealerID {
			return nil
		}
		count := e.strategy.DealerCall(p.Hand, e.community)
		return e.DealerCall(playerID, count)

	case StatePlayerSelection:
		if p.HasPlayed {
			return nil
		}
		chosen := e.strategy.SelectPlayCards(p.Hand, e.round.CardsToPlay)
		return e.PlayCards(playerID, chosen)

	default:
		return nil
	}
}
