package store

import (
	"context"
	"sort"
	"sync"

	"github.com/lox/loveletter/internal/deck"
	"github.com/lox/loveletter/internal/game"
)

type roundKey struct {
	gameID string
	number int
}

type handKey struct {
	gameID   string
	number   int
	playerID string
}

// MemoryStore keeps every row in process memory. Reads and writes copy,
// so callers never share mutable state with the store.
type MemoryStore struct {
	mu      sync.RWMutex
	games   map[string]*game.Game
	byCode  map[string]string // room code -> game id
	players map[string][]*game.Player
	rounds  map[roundKey]*game.RoundState
	hands   map[handKey]*game.Hand
	actions map[string][]*game.ActionRecord
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		games:   make(map[string]*game.Game),
		byCode:  make(map[string]string),
		players: make(map[string][]*game.Player),
		rounds:  make(map[roundKey]*game.RoundState),
		hands:   make(map[handKey]*game.Hand),
		actions: make(map[string][]*game.ActionRecord),
	}
}

func (s *MemoryStore) CreateGame(ctx context.Context, g *game.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[g.ID] = cloneGame(g)
	s.byCode[g.RoomCode] = g.ID
	return nil
}

func (s *MemoryStore) GetGame(ctx context.Context, id string) (*game.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.games[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneGame(g), nil
}

func (s *MemoryStore) GetGameByRoomCode(ctx context.Context, code string) (*game.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byCode[code]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneGame(s.games[id]), nil
}

func (s *MemoryStore) UpdateGame(ctx context.Context, g *game.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateGameLocked(g)
}

func (s *MemoryStore) updateGameLocked(g *game.Game) error {
	if _, ok := s.games[g.ID]; !ok {
		return ErrNotFound
	}
	s.games[g.ID] = cloneGame(g)
	return nil
}

func (s *MemoryStore) AddPlayer(ctx context.Context, p *game.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players[p.GameID] = append(s.players[p.GameID], clonePlayer(p))
	return nil
}

func (s *MemoryStore) GetPlayer(ctx context.Context, gameID, playerID string) (*game.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.players[gameID] {
		if p.PlayerID == playerID {
			return clonePlayer(p), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListPlayers(ctx context.Context, gameID string) ([]*game.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*game.Player, 0, len(s.players[gameID]))
	for _, p := range s.players[gameID] {
		out = append(out, clonePlayer(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinOrder < out[j].JoinOrder })
	return out, nil
}

func (s *MemoryStore) UpdatePlayer(ctx context.Context, p *game.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatePlayerLocked(p)
}

func (s *MemoryStore) updatePlayerLocked(p *game.Player) error {
	i := s.playerIndexLocked(p.GameID, p.PlayerID)
	if i < 0 {
		return ErrNotFound
	}
	s.players[p.GameID][i] = clonePlayer(p)
	return nil
}

func (s *MemoryStore) playerIndexLocked(gameID, playerID string) int {
	for i, p := range s.players[gameID] {
		if p.PlayerID == playerID {
			return i
		}
	}
	return -1
}

func (s *MemoryStore) PutRound(ctx context.Context, rs *game.RoundState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rounds[roundKey{rs.GameID, rs.Number}] = cloneRound(rs)
	return nil
}

func (s *MemoryStore) GetRound(ctx context.Context, gameID string, number int) (*game.RoundState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rs, ok := s.rounds[roundKey{gameID, number}]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRound(rs), nil
}

func (s *MemoryStore) LatestRound(ctx context.Context, gameID string) (*game.RoundState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *game.RoundState
	for key, rs := range s.rounds {
		if key.gameID != gameID {
			continue
		}
		if latest == nil || rs.Number > latest.Number {
			latest = rs
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return cloneRound(latest), nil
}

func (s *MemoryStore) PutHand(ctx context.Context, h *game.Hand) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hands[handKey{h.GameID, h.Round, h.PlayerID}] = cloneHand(h)
	return nil
}

func (s *MemoryStore) GetHand(ctx context.Context, gameID string, round int, playerID string) (*game.Hand, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.hands[handKey{gameID, round, playerID}]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneHand(h), nil
}

func (s *MemoryStore) ListHands(ctx context.Context, gameID string, round int) ([]*game.Hand, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*game.Hand
	for key, h := range s.hands {
		if key.gameID == gameID && key.number == round {
			out = append(out, cloneHand(h))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerID < out[j].PlayerID })
	return out, nil
}

func (s *MemoryStore) AppendAction(ctx context.Context, a *game.ActionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions[a.GameID] = append(s.actions[a.GameID], cloneAction(a))
	return nil
}

func (s *MemoryStore) RecentActions(ctx context.Context, gameID string, limit int) ([]*game.ActionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.actions[gameID]
	if limit <= 0 || limit > len(all) {
		limit = len(all)
	}
	out := make([]*game.ActionRecord, 0, limit)
	for i := len(all) - 1; i >= len(all)-limit; i-- {
		out = append(out, cloneAction(all[i]))
	}
	return out, nil
}

func (s *MemoryStore) CommitTurn(ctx context.Context, commit TurnCommit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Every keyed update is checked before the first write so a failed
	// commit leaves nothing applied.
	if commit.Game != nil {
		if _, ok := s.games[commit.Game.ID]; !ok {
			return ErrNotFound
		}
	}
	for _, p := range commit.Players {
		if s.playerIndexLocked(p.GameID, p.PlayerID) < 0 {
			return ErrNotFound
		}
	}

	if commit.Game != nil {
		s.games[commit.Game.ID] = cloneGame(commit.Game)
	}
	for _, p := range commit.Players {
		s.players[p.GameID][s.playerIndexLocked(p.GameID, p.PlayerID)] = clonePlayer(p)
	}
	if commit.Round != nil {
		s.rounds[roundKey{commit.Round.GameID, commit.Round.Number}] = cloneRound(commit.Round)
	}
	for _, h := range commit.Hands {
		s.hands[handKey{h.GameID, h.Round, h.PlayerID}] = cloneHand(h)
	}
	for _, a := range commit.Actions {
		s.actions[a.GameID] = append(s.actions[a.GameID], cloneAction(a))
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func cloneGame(g *game.Game) *game.Game {
	out := *g
	return &out
}

func clonePlayer(p *game.Player) *game.Player {
	out := *p
	return &out
}

func cloneHand(h *game.Hand) *game.Hand {
	out := *h
	out.Cards = cloneCards(h.Cards)
	return &out
}

func cloneRound(rs *game.RoundState) *game.RoundState {
	out := *rs
	out.Deck = cloneCards(rs.Deck)
	out.Discard = cloneCards(rs.Discard)
	out.PlayerDiscards = make(map[string][]deck.Card, len(rs.PlayerDiscards))
	for id, cards := range rs.PlayerDiscards {
		out.PlayerDiscards[id] = cloneCards(cards)
	}
	return &out
}

func cloneAction(a *game.ActionRecord) *game.ActionRecord {
	out := *a
	if a.Details.BaronResult != nil {
		br := *a.Details.BaronResult
		out.Details.BaronResult = &br
	}
	if a.Details.Elimination != nil {
		el := *a.Details.Elimination
		out.Details.Elimination = &el
	}
	if a.Details.Participants != nil {
		out.Details.Participants = append([]string(nil), a.Details.Participants...)
	}
	return &out
}

func cloneCards(cards []deck.Card) []deck.Card {
	if cards == nil {
		return nil
	}
	out := make([]deck.Card, len(cards))
	copy(out, cards)
	return out
}
