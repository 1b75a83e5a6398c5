package game

import "errors"

// Validation errors are rejected before any state mutation and surfaced
// verbatim to the caller.
var (
	ErrNotYourTurn        = errors.New("not your turn")
	ErrMustDrawFirst      = errors.New("must draw a card before playing")
	ErrCountessForced     = errors.New("must play the Countess while holding the King or Prince")
	ErrCardNotInHand      = errors.New("card not in hand")
	ErrInvalidGuess       = errors.New("invalid guess")
	ErrInvalidTarget      = errors.New("invalid target")
	ErrDeckEmpty          = errors.New("deck is empty")
	ErrAlreadyDrawn       = errors.New("already drawn this turn")
	ErrNotHost            = errors.New("only the host may do that")
	ErrNoPreviousWinner   = errors.New("previous round has no winner")
	ErrInvalidPlayerCount = errors.New("need at least 2 players")
	ErrGameFull           = errors.New("game is full")
	ErrGameNotWaiting     = errors.New("game not accepting players")
	ErrGameNotInProgress  = errors.New("game not in progress")
	ErrRoundOver          = errors.New("round is over")
	ErrPlayerEliminated   = errors.New("player is eliminated")
	ErrAlreadyJoined      = errors.New("player already joined")
)
