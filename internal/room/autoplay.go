package room

import "time"

// rescheduleAutoPlayTimers reconciles the room's live auto-play deliberation
// timers against the engine's current PendingAutoPlayers. A timer is only
// (re)armed for a player who just became pending; an already-pending
// player's timer keeps running untouched, matching spec.md §5's "scheduling
// a new one cancels the old" — the cancel-and-replace only applies to the
// same key, and a still-pending player's key hasn't changed.
func (r *Room) rescheduleAutoPlayTimers() {
	if r.eng == nil {
		return
	}

	pending := r.eng.PendingAutoPlayers()
	pendingSet := make(map[string]bool, len(pending))
	for _, id := range pending {
		pendingSet[id] = true
	}

	for id, t := range r.autoTimers {
		if !pendingSet[id] {
			t.Stop()
			delete(r.autoTimers, id)
		}
	}

	for _, id := range pending {
		if _, scheduled := r.autoTimers[id]; scheduled {
			continue
		}
		playerID := id
		r.autoTimers[playerID] = time.AfterFunc(r.cfg.AutoPlayDeliberation, func() {
			r.do(func() {
				delete(r.autoTimers, playerID)
				if r.eng == nil {
					return
				}
				if err := r.eng.ExecuteAutoPlayFor(playerID); err != nil {
					r.logger.Error("auto-play execution failed", "player", playerID, "error", err)
				}
				r.rescheduleAutoPlayTimers()
			})
		})
	}
}
