package deck

import "fmt"

// Card represents a Love Letter card. The zero value means "no card",
// which is used for optional fields such as a Guard guess.
type Card int

const (
	None     Card = 0
	Guard    Card = 1
	Priest   Card = 2
	Baron    Card = 3
	Handmaid Card = 4
	Prince   Card = 5
	King     Card = 6
	Countess Card = 7
	Princess Card = 8
)

// String returns the card's display name
func (c Card) String() string {
	switch c {
	case Guard:
		return "Guard"
	case Priest:
		return "Priest"
	case Baron:
		return "Baron"
	case Handmaid:
		return "Handmaid"
	case Prince:
		return "Prince"
	case King:
		return "King"
	case Countess:
		return "Countess"
	case Princess:
		return "Princess"
	default:
		return "Unknown"
	}
}

// Value returns the numeric value of the card used for Baron comparisons
// and the end-of-round showdown
func (c Card) Value() int {
	return int(c)
}

// Valid returns true if the card is one of the eight playable cards
func (c Card) Valid() bool {
	return c >= Guard && c <= Princess
}

// NeedsTarget returns true if playing the card requires choosing a target player
func (c Card) NeedsTarget() bool {
	switch c {
	case Guard, Priest, Baron, Prince, King:
		return true
	default:
		return false
	}
}

// CanTargetSelf returns true if the card may be played on its own player.
// Only the Prince allows self-targeting.
func (c Card) CanTargetSelf() bool {
	return c == Prince
}

// Description returns the rules text shown to players
func (c Card) Description() string {
	switch c {
	case Guard:
		return "Guess a player's card (not Guard). If correct, they are eliminated."
	case Priest:
		return "Look at another player's hand."
	case Baron:
		return "Compare hands with another player. Lower value is eliminated."
	case Handmaid:
		return "You are protected until your next turn."
	case Prince:
		return "Choose a player (may be yourself) to discard and draw a new card."
	case King:
		return "Trade hands with another player."
	case Countess:
		return "Must discard if Prince or King is in your hand."
	case Princess:
		return "If you discard this card, you are eliminated."
	default:
		return ""
	}
}

// Parse converts a card name into a Card. Matching is exact on the
// display name, e.g. "Guard" or "Princess".
func Parse(name string) (Card, error) {
	for c := Guard; c <= Princess; c++ {
		if c.String() == name {
			return c, nil
		}
	}
	return None, fmt.Errorf("unknown card %q", name)
}

// MarshalText implements encoding.TextMarshaler so cards serialize as
// their names in JSON payloads and stored rows.
func (c Card) MarshalText() ([]byte, error) {
	if c == None {
		return []byte(""), nil
	}
	if !c.Valid() {
		return nil, fmt.Errorf("invalid card value %d", int(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (c *Card) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*c = None
		return nil
	}
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
