package game

import (
	"time"

	"github.com/lox/loveletter/internal/deck"
)

// Status represents a game's lifecycle state
type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusInProgress Status = "in_progress"
	StatusFinished   Status = "finished"
)

// Game is the long-lived entity for one table of Love Letter: lobby
// metadata plus the running token score. Round-scoped state lives on
// RoundState and Hand so nothing stale leaks across rounds.
type Game struct {
	ID            string    `json:"id"`
	RoomCode      string    `json:"room_code"`
	Status        Status    `json:"status"`
	MaxPlayers    int       `json:"max_players"`
	WinningTokens int       `json:"winning_tokens"`
	CurrentRound  int       `json:"current_round"`
	WinnerID      string    `json:"winner_id,omitempty"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
	StartedAt     time.Time `json:"started_at,omitzero"`
	FinishedAt    time.Time `json:"finished_at,omitzero"`
}

// Player is a seat at a game. Tokens accumulate across rounds and never
// reset; Eliminated is scoped to the current round only.
type Player struct {
	GameID     string    `json:"game_id"`
	PlayerID   string    `json:"player_id"`
	Name       string    `json:"player_name"`
	Host       bool      `json:"is_host"`
	Tokens     int       `json:"tokens"`
	Eliminated bool      `json:"is_eliminated"`
	JoinOrder  int       `json:"join_order"`
	JoinedAt   time.Time `json:"joined_at"`
}

// Hand is a player's cards for one round: one card normally, two while
// deciding what to play, zero after elimination. Protected is set by
// Handmaid and cleared when the player's own next turn begins.
type Hand struct {
	GameID    string      `json:"game_id"`
	Round     int         `json:"round_number"`
	PlayerID  string      `json:"player_id"`
	Cards     []deck.Card `json:"cards"`
	Protected bool        `json:"is_protected"`
}

// Holds returns true if the hand contains the card
func (h *Hand) Holds(card deck.Card) bool {
	for _, c := range h.Cards {
		if c == card {
			return true
		}
	}
	return false
}

// Remove takes one copy of card out of the hand, returning false if the
// hand does not hold it.
func (h *Hand) Remove(card deck.Card) bool {
	for i, c := range h.Cards {
		if c == card {
			h.Cards = append(h.Cards[:i], h.Cards[i+1:]...)
			return true
		}
	}
	return false
}

// Other returns the card held besides the one just played. Only
// meaningful immediately after the played card has been removed, when
// the hand holds exactly one card.
func (h *Hand) Other() deck.Card {
	if len(h.Cards) == 0 {
		return deck.None
	}
	return h.Cards[0]
}

// RoundState is the shared board for one round: the draw pile, the
// public discard pile, the face-down set-aside card and whose turn it
// is. The set-aside card never re-enters the deck; the Prince may hand
// it to a player once the deck is empty.
type RoundState struct {
	GameID         string                 `json:"game_id"`
	Number         int                    `json:"round_number"`
	Deck           []deck.Card            `json:"deck"`
	Discard        []deck.Card            `json:"discard_pile"`
	SetAside       deck.Card              `json:"set_aside_card,omitempty"`
	SetAsideUsed   bool                   `json:"set_aside_used,omitempty"`
	TurnPlayerID   string                 `json:"current_turn_player_id"`
	TurnNumber     int                    `json:"turn_number"`
	WinnerID       string                 `json:"round_winner_id,omitempty"`
	PlayerDiscards map[string][]deck.Card `json:"player_discards"`
}

// Ended reports whether the round has been resolved
func (rs *RoundState) Ended() bool {
	return rs.WinnerID != ""
}

// DiscardSum returns the summed values of everything playerID discarded
// this round, the showdown tie-break metric.
func (rs *RoundState) DiscardSum(playerID string) int {
	sum := 0
	for _, c := range rs.PlayerDiscards[playerID] {
		sum += c.Value()
	}
	return sum
}

// ActionType categorises audit records
type ActionType string

const (
	ActionPlayCard  ActionType = "play_card"
	ActionDrawCard  ActionType = "draw_card"
	ActionEliminate ActionType = "eliminate"
	ActionWinRound  ActionType = "win_round"
)

// ActionRecord is an append-only audit entry for one resolved action.
// Details splits what everyone may see from what only the participants
// may see.
type ActionRecord struct {
	ID         string     `json:"id"`
	GameID     string     `json:"game_id"`
	Round      int        `json:"round_number"`
	Turn       int        `json:"turn_number"`
	PlayerID   string     `json:"player_id"`
	Type       ActionType `json:"action_type"`
	Card       deck.Card  `json:"card_played,omitempty"`
	TargetID   string     `json:"target_player_id,omitempty"`
	Details    Details    `json:"details"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Details carries the public narrative plus privacy-scoped secrets.
// Secret fields must only ever be serialized towards the players listed
// in Participants; the formatter and the server both enforce this.
type Details struct {
	Message         string       `json:"message"`
	Participants    []string     `json:"participants,omitempty"`
	TargetProtected bool         `json:"target_protected,omitempty"`
	GuessCard       deck.Card    `json:"guess_card,omitempty"`
	RevealedCard    deck.Card    `json:"revealed_card,omitempty"`
	DiscardedCard   deck.Card    `json:"discarded_card,omitempty"`
	BaronResult     *BaronResult `json:"baron_result,omitempty"`
	Elimination     *Elimination `json:"elimination,omitempty"`
}

// BaronResult records a Baron comparison. WinnerID is empty on a tie.
type BaronResult struct {
	ActorCard  deck.Card `json:"actor_card"`
	TargetCard deck.Card `json:"target_card"`
	WinnerID   string    `json:"winner_id,omitempty"`
}

// Elimination records a player leaving the round. FinalCard is public:
// any elimination reveals the losing card.
type Elimination struct {
	PlayerID  string    `json:"player_id"`
	FinalCard deck.Card `json:"final_card"`
}

// IsParticipant reports whether playerID may see the secret fields
func (d *Details) IsParticipant(playerID string) bool {
	for _, id := range d.Participants {
		if id == playerID {
			return true
		}
	}
	return false
}

// Redacted returns a copy of the details safe to serialize to a
// non-participant: the public narrative, the announced guess and any
// elimination survive, the secrets do not.
func (d Details) Redacted() Details {
	d.RevealedCard = deck.None
	d.DiscardedCard = deck.None
	d.BaronResult = nil
	return d
}

// WinningTokens returns the token threshold for a given player count,
// matching the published game: 2 players race to 7, 3 to 5, 4 to 4,
// larger tables to 3.
func WinningTokens(playerCount int) int {
	switch playerCount {
	case 2:
		return 7
	case 3:
		return 5
	case 4:
		return 4
	default:
		return 3
	}
}
