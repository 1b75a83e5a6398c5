package game

import (
	rand "math/rand/v2"

	"github.com/lox/loveletter/internal/deck"
)

// Round bundles everything the rules engine touches while resolving one
// round: the shared board state, every player's hand and the seating
// order. It is assembled by the engine from stored rows, mutated by the
// sequencer and resolver, and written back in one commit.
type Round struct {
	State   *RoundState
	Hands   map[string]*Hand
	Players []*Player // seating order (join order)
}

// NewRound initializes a round: builds and shuffles the deck, sets one
// card aside face down, deals one card to each player in the order
// given, and hands the first turn to orderedPlayers[0]. The caller
// controls the order so the previous round's winner can lead.
//
// Every player's elimination flag and every hand's protection flag is
// reset for the new round.
func NewRound(gameID string, number int, orderedPlayers []*Player, rng *rand.Rand) (*Round, error) {
	if len(orderedPlayers) < 2 {
		return nil, ErrInvalidPlayerCount
	}

	d := deck.NewRoundDeck(rng)

	setAside, _ := d.Draw()

	r := &Round{
		State: &RoundState{
			GameID:         gameID,
			Number:         number,
			SetAside:       setAside,
			TurnPlayerID:   orderedPlayers[0].PlayerID,
			TurnNumber:     1,
			PlayerDiscards: make(map[string][]deck.Card),
		},
		Hands:   make(map[string]*Hand, len(orderedPlayers)),
		Players: orderedPlayers,
	}

	for _, p := range orderedPlayers {
		p.Eliminated = false
		card, _ := d.Draw()
		r.Hands[p.PlayerID] = &Hand{
			GameID:   gameID,
			Round:    number,
			PlayerID: p.PlayerID,
			Cards:    []deck.Card{card},
		}
	}

	r.State.Deck = d.Cards()
	return r, nil
}

// Player returns the seat for playerID, or nil
func (r *Round) Player(playerID string) *Player {
	for _, p := range r.Players {
		if p.PlayerID == playerID {
			return p
		}
	}
	return nil
}

// Hand returns the hand for playerID, or nil
func (r *Round) Hand(playerID string) *Hand {
	return r.Hands[playerID]
}

// ActiveCount returns the number of undefeated players
func (r *Round) ActiveCount() int {
	n := 0
	for _, p := range r.Players {
		if !p.Eliminated {
			n++
		}
	}
	return n
}

// DeckEmpty reports whether the draw pile is exhausted
func (r *Round) DeckEmpty() bool {
	return len(r.State.Deck) == 0
}

// Draw moves the top deck card into playerID's hand. The current turn
// holder draws up to two cards before playing; everyone else holds one.
func (r *Round) Draw(playerID string) (deck.Card, error) {
	if r.State.Ended() {
		return deck.None, ErrRoundOver
	}
	if playerID != r.State.TurnPlayerID {
		return deck.None, ErrNotYourTurn
	}
	hand := r.Hands[playerID]
	if hand == nil {
		return deck.None, ErrPlayerEliminated
	}
	if len(hand.Cards) >= 2 {
		return deck.None, ErrAlreadyDrawn
	}
	if len(r.State.Deck) == 0 {
		return deck.None, ErrDeckEmpty
	}

	card := r.State.Deck[0]
	r.State.Deck = r.State.Deck[1:]
	hand.Cards = append(hand.Cards, card)
	return card, nil
}

// advanceTurn hands the turn to the next undefeated player strictly
// after the current one in seating order, wrapping around, and clears
// that player's protection. Handmaid protection lasts exactly until the
// protected player's own next turn begins. No-op once the round ended.
func (r *Round) advanceTurn() {
	if r.State.Ended() {
		return
	}

	cur := -1
	for i, p := range r.Players {
		if p.PlayerID == r.State.TurnPlayerID {
			cur = i
			break
		}
	}
	if cur < 0 {
		return
	}

	for i := 1; i <= len(r.Players); i++ {
		next := r.Players[(cur+i)%len(r.Players)]
		if next.Eliminated {
			continue
		}
		r.State.TurnPlayerID = next.PlayerID
		r.State.TurnNumber++
		if hand := r.Hands[next.PlayerID]; hand != nil {
			hand.Protected = false
		}
		return
	}
}

// discard appends card to the public pile and to playerID's per-player
// discard tally used for the showdown tie-break.
func (r *Round) discard(playerID string, card deck.Card) {
	r.State.Discard = append(r.State.Discard, card)
	r.State.PlayerDiscards[playerID] = append(r.State.PlayerDiscards[playerID], card)
}

// eliminate flags the player out of the round and moves their remaining
// cards to the discard pile face up.
func (r *Round) eliminate(playerID string) deck.Card {
	p := r.Player(playerID)
	if p == nil || p.Eliminated {
		return deck.None
	}
	p.Eliminated = true

	final := deck.None
	if hand := r.Hands[playerID]; hand != nil {
		for _, c := range hand.Cards {
			final = c
			r.discard(playerID, c)
		}
		hand.Cards = nil
		hand.Protected = false
	}
	return final
}
