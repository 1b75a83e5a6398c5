package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/lox/loveletter/internal/deck"
	"github.com/lox/loveletter/internal/game"
	"github.com/lox/loveletter/internal/store"
)

// RecentActionLimit caps the action feed in a snapshot
const RecentActionLimit = 30

// PlayerView is the public facts about one seat
type PlayerView struct {
	PlayerID   string `json:"player_id"`
	Name       string `json:"player_name"`
	Host       bool   `json:"is_host"`
	Tokens     int    `json:"tokens"`
	Eliminated bool   `json:"is_eliminated"`
	Protected  bool   `json:"is_protected"`
	JoinOrder  int    `json:"join_order"`
	HandSize   int    `json:"hand_size"`
}

// RoundView is the public board of the current round. The deck and the
// set-aside card appear only as counts and presence.
type RoundView struct {
	Number       int         `json:"round_number"`
	DeckCount    int         `json:"deck_count"`
	Discard      []deck.Card `json:"discard_pile"`
	SetAside     bool        `json:"has_set_aside"`
	TurnPlayerID string      `json:"current_turn_player_id"`
	TurnNumber   int         `json:"turn_number"`
	WinnerID     string      `json:"round_winner_id,omitempty"`
}

// GameView is one viewer's snapshot: everything public, plus the
// viewer's own hand and an action feed redacted for them. It is safe to
// serialize to that viewer and no one else.
type GameView struct {
	Game     *game.Game   `json:"game"`
	Players  []PlayerView `json:"players"`
	Round    *RoundView   `json:"round,omitempty"`
	Hand     []deck.Card  `json:"hand,omitempty"`
	Actions  []string     `json:"actions,omitempty"`
	YourTurn bool         `json:"your_turn"`
}

// View builds the snapshot of a game as seen by viewerID
func (e *Engine) View(ctx context.Context, gameID, viewerID string) (*GameView, error) {
	g, err := e.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}

	players, err := e.store.ListPlayers(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}

	view := &GameView{Game: g}

	var state *game.RoundState
	var hands []*game.Hand
	if g.Status != game.StatusWaiting && g.CurrentRound > 0 {
		state, err = e.store.GetRound(ctx, gameID, g.CurrentRound)
		if errors.Is(err, store.ErrNotFound) {
			state, err = e.store.LatestRound(ctx, gameID)
		}
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("load round: %w", err)
		}
		if state != nil {
			hands, err = e.store.ListHands(ctx, gameID, state.Number)
			if err != nil {
				return nil, fmt.Errorf("load hands: %w", err)
			}
		}
	}

	handByID := make(map[string]*game.Hand, len(hands))
	for _, h := range hands {
		handByID[h.PlayerID] = h
	}

	for _, p := range players {
		pv := PlayerView{
			PlayerID:   p.PlayerID,
			Name:       p.Name,
			Host:       p.Host,
			Tokens:     p.Tokens,
			Eliminated: p.Eliminated,
			JoinOrder:  p.JoinOrder,
		}
		if h := handByID[p.PlayerID]; h != nil {
			pv.Protected = h.Protected
			pv.HandSize = len(h.Cards)
		}
		view.Players = append(view.Players, pv)
	}

	if state != nil {
		view.Round = &RoundView{
			Number:       state.Number,
			DeckCount:    len(state.Deck),
			Discard:      state.Discard,
			SetAside:     state.SetAside != deck.None && !state.SetAsideUsed,
			TurnPlayerID: state.TurnPlayerID,
			TurnNumber:   state.TurnNumber,
			WinnerID:     state.WinnerID,
		}
		view.YourTurn = !state.Ended() && state.TurnPlayerID == viewerID
		if h := handByID[viewerID]; h != nil {
			view.Hand = append([]deck.Card(nil), h.Cards...)
		}
	}

	records, err := e.store.RecentActions(ctx, gameID, RecentActionLimit)
	if err != nil {
		return nil, fmt.Errorf("load actions: %w", err)
	}
	names := e.namesFor(players)
	// Newest first from the store; render oldest first for the feed.
	for i := len(records) - 1; i >= 0; i-- {
		view.Actions = append(view.Actions, game.FormatAction(records[i], viewerID, names))
	}

	return view, nil
}

// ActionFeed returns the rendered action log for one viewer, oldest
// first, with secrets included only where the viewer took part.
func (e *Engine) ActionFeed(ctx context.Context, gameID, viewerID string, limit int) ([]string, error) {
	players, err := e.store.ListPlayers(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	records, err := e.store.RecentActions(ctx, gameID, limit)
	if err != nil {
		return nil, fmt.Errorf("load actions: %w", err)
	}
	names := e.namesFor(players)
	out := make([]string, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		out = append(out, game.FormatAction(records[i], viewerID, names))
	}
	return out, nil
}
