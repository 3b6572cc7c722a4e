package roster

import "errors"

// Validation failures. All are recoverable: the operation is rejected and the
// roster is left unchanged.
var (
	ErrInvalidTeam        = errors.New("invalid team id")
	ErrInvalidPosition    = errors.New("invalid position")
	ErrPositionMismatch   = errors.New("player position does not match slot")
	ErrSlotOccupied       = errors.New("slot already occupied")
	ErrPlayerAlreadyUsed  = errors.New("player already assigned to a team")
	ErrSlotEmpty          = errors.New("slot is empty")
	ErrNoPlayerSelected   = errors.New("no player selected")
	ErrNoPlayersRemaining = errors.New("no unassigned players remaining")
)

// ErrBusy is returned when a bulk operation (randomize, reset) is invoked
// while a previous one is still in flight.
var ErrBusy = errors.New("operation already in progress")
