package game

import "sort"

// WinMethod says how a round was decided
type WinMethod string

const (
	WinByElimination WinMethod = "elimination"
	WinByShowdown    WinMethod = "showdown"
)

// RoundResult is produced when a round ends
type RoundResult struct {
	WinnerID string
	Method   WinMethod

	// Showdown holds the revealed final cards for a showdown win,
	// keyed by player id. Empty for an elimination win.
	Showdown map[string]ShowdownEntry
}

// ShowdownEntry is one player's showing at the end-of-round comparison
type ShowdownEntry struct {
	Card       int `json:"card_value"`
	DiscardSum int `json:"discard_sum"`
}

// CheckEnd detects round end: a sole survivor wins outright, and an
// empty deck after a completed play forces a showdown of the remaining
// hands. Returns nil while the round continues.
//
// The showdown compares held card values; ties are broken by the summed
// value of each tied player's discards this round. An exact double tie
// is resolved by lowest join order, a deterministic rule the upstream
// game leaves unspecified.
func (r *Round) CheckEnd() *RoundResult {
	if r.State.Ended() {
		return nil
	}

	var survivors []*Player
	for _, p := range r.Players {
		if !p.Eliminated {
			survivors = append(survivors, p)
		}
	}

	if len(survivors) == 1 {
		r.State.WinnerID = survivors[0].PlayerID
		return &RoundResult{WinnerID: survivors[0].PlayerID, Method: WinByElimination}
	}

	if len(r.State.Deck) > 0 {
		return nil
	}

	// Showdown: highest card wins, then highest discard sum, then the
	// earliest seat.
	result := &RoundResult{
		Method:   WinByShowdown,
		Showdown: make(map[string]ShowdownEntry, len(survivors)),
	}

	contenders := make([]*Player, len(survivors))
	copy(contenders, survivors)
	sort.SliceStable(contenders, func(i, j int) bool {
		a, b := contenders[i], contenders[j]
		av, bv := r.heldValue(a.PlayerID), r.heldValue(b.PlayerID)
		if av != bv {
			return av > bv
		}
		as, bs := r.State.DiscardSum(a.PlayerID), r.State.DiscardSum(b.PlayerID)
		if as != bs {
			return as > bs
		}
		return a.JoinOrder < b.JoinOrder
	})

	for _, p := range survivors {
		result.Showdown[p.PlayerID] = ShowdownEntry{
			Card:       r.heldValue(p.PlayerID),
			DiscardSum: r.State.DiscardSum(p.PlayerID),
		}
	}

	result.WinnerID = contenders[0].PlayerID
	r.State.WinnerID = result.WinnerID
	return result
}

func (r *Round) heldValue(playerID string) int {
	hand := r.Hands[playerID]
	if hand == nil || len(hand.Cards) == 0 {
		return 0
	}
	return hand.Cards[0].Value()
}

// ApplyRoundResult awards the round token and settles the game: the
// game finishes when the winner reaches the token threshold, otherwise
// the round counter advances and the game waits for the host to start
// the next round.
func ApplyRoundResult(g *Game, players []*Player, result *RoundResult) (gameOver bool) {
	for _, p := range players {
		if p.PlayerID == result.WinnerID {
			p.Tokens++
			if p.Tokens >= g.WinningTokens {
				g.Status = StatusFinished
				g.WinnerID = p.PlayerID
				return true
			}
		}
	}
	g.CurrentRound++
	return false
}
