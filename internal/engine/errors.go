package engine

import "errors"

// Sentinel errors, one per protocol-order rejection named in spec.md §6's
// error taxonomy. The room translates each into a wire error code
// (ErrAlreadyPlayed and ErrAlreadySelected share one code).
var (
	ErrGameNotStarted = errors.New("engine: game has not started")
	ErrWrongState     = errors.New("engine: action not legal in the current state")
	ErrNotDealer      = errors.New("engine: only the current dealer may call")
	ErrAlreadyPlayed  = errors.New("engine: player has already played this round")
	ErrInvalidCards   = errors.New("engine: cards do not match the required play")
	ErrUnknownPlayer  = errors.New("engine: unknown player id")
	ErrAlreadySelected = errors.New("engine: player has already submitted a first-dealer card")
)
