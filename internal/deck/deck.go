package deck

import rand "math/rand/v2"

// Counts is the fixed composition of a round deck: 16 cards total for
// the 2-4 player game.
var Counts = map[Card]int{
	Guard:    5,
	Priest:   2,
	Baron:    2,
	Handmaid: 2,
	Prince:   2,
	King:     1,
	Countess: 1,
	Princess: 1,
}

// Size is the total number of cards in a round deck
const Size = 16

// Deck is an ordered pile of cards, drawn from the front. A round deck
// is shuffled exactly once at creation and never reshuffled mid-round.
type Deck struct {
	cards []Card
}

// NewRoundDeck builds the 16-card Love Letter deck and shuffles it with
// the provided RNG. The RNG is required so callers control determinism.
func NewRoundDeck(rng *rand.Rand) *Deck {
	d := &Deck{cards: make([]Card, 0, Size)}
	for c := Guard; c <= Princess; c++ {
		for i := 0; i < Counts[c]; i++ {
			d.cards = append(d.cards, c)
		}
	}
	d.shuffle(rng)
	return d
}

// FromCards builds a deck with a fixed order, used by tests that need a
// known deal.
func FromCards(cards ...Card) *Deck {
	d := &Deck{cards: make([]Card, len(cards))}
	copy(d.cards, cards)
	return d
}

func (d *Deck) shuffle(rng *rand.Rand) {
	for i := len(d.cards) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

// Draw removes and returns the top card
func (d *Deck) Draw() (Card, bool) {
	if len(d.cards) == 0 {
		return None, false
	}
	card := d.cards[0]
	d.cards = d.cards[1:]
	return card, true
}

// Remaining returns the number of cards left
func (d *Deck) Remaining() int {
	return len(d.cards)
}

// IsEmpty returns true when no cards are left to draw
func (d *Deck) IsEmpty() bool {
	return len(d.cards) == 0
}

// Cards returns a copy of the remaining cards in draw order
func (d *Deck) Cards() []Card {
	out := make([]Card, len(d.cards))
	copy(out, d.cards)
	return out
}
