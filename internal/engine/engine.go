// Package engine coordinates the full game lifecycle on top of the rules
// in internal/game: lobby management, round sequencing, audit logging and
// durable commits through a store. All writes for one operation happen in
// a single commit, and events fire only after the commit succeeds.
package engine

import (
	"context"
	"errors"
	"fmt"
	rand "math/rand/v2"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/lox/loveletter/internal/deck"
	"github.com/lox/loveletter/internal/game"
	"github.com/lox/loveletter/internal/gameid"
	"github.com/lox/loveletter/internal/randutil"
	"github.com/lox/loveletter/internal/store"
)

// MaxPlayers is the largest table the rules support
const MaxPlayers = 6

// MinPlayers is the smallest table that can start
const MinPlayers = 2

// Engine runs games against a store. Operations on the same game are
// serialized by a per-game mutex; the store only ever sees one writer
// per game at a time.
type Engine struct {
	store  store.Store
	bus    *game.EventBus
	logger *log.Logger
	clock  quartz.Clock
	ids    *gameid.Generator
	rng    *rand.Rand

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	rngMu sync.Mutex
}

// Option configures an Engine
type Option func(*Engine)

// WithClock sets the time source, injectable for tests
func WithClock(clock quartz.Clock) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithRand sets the shuffle source, injectable for deterministic deals
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) { e.rng = rng }
}

// WithIDGenerator sets the id and room code generator
func WithIDGenerator(ids *gameid.Generator) Option {
	return func(e *Engine) { e.ids = ids }
}

// New creates an engine backed by the given store
func New(st store.Store, bus *game.EventBus, logger *log.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:  st,
		bus:    bus,
		logger: logger.WithPrefix("engine"),
		clock:  quartz.NewReal(),
		ids:    gameid.NewGenerator(nil),
		rng:    randutil.TimeSeeded(),
		locks:  make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Events returns the engine's event bus
func (e *Engine) Events() *game.EventBus {
	return e.bus
}

// Players returns a game's seats in join order
func (e *Engine) Players(ctx context.Context, gameID string) ([]*game.Player, error) {
	return e.store.ListPlayers(ctx, gameID)
}

func (e *Engine) gameLock(gameID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[gameID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[gameID] = l
	}
	return l
}

func (e *Engine) now() time.Time {
	return e.clock.Now().UTC()
}

// CreateGame opens a lobby. The creator is seated as host with join
// order zero.
func (e *Engine) CreateGame(ctx context.Context, hostID, hostName string, maxPlayers int) (*game.Game, error) {
	if maxPlayers < MinPlayers || maxPlayers > MaxPlayers {
		return nil, game.ErrInvalidPlayerCount
	}

	now := e.now()
	g := &game.Game{
		ID:           e.ids.New(),
		RoomCode:     e.ids.RoomCode(),
		Status:       game.StatusWaiting,
		MaxPlayers:   maxPlayers,
		CurrentRound: 0,
		CreatedBy:    hostID,
		CreatedAt:    now,
	}

	if err := e.store.CreateGame(ctx, g); err != nil {
		return nil, fmt.Errorf("create game: %w", err)
	}

	host := &game.Player{
		GameID:    g.ID,
		PlayerID:  hostID,
		Name:      hostName,
		Host:      true,
		JoinOrder: 0,
		JoinedAt:  now,
	}
	if err := e.store.AddPlayer(ctx, host); err != nil {
		return nil, fmt.Errorf("seat host: %w", err)
	}

	e.logger.Info("Game created", "game", g.ID, "code", g.RoomCode, "host", hostName)
	return g, nil
}

// JoinGame seats a player in a waiting lobby by room code
func (e *Engine) JoinGame(ctx context.Context, roomCode, playerID, name string) (*game.Game, error) {
	g, err := e.store.GetGameByRoomCode(ctx, roomCode)
	if err != nil {
		return nil, err
	}

	lock := e.gameLock(g.ID)
	lock.Lock()
	defer lock.Unlock()

	if g.Status != game.StatusWaiting {
		return nil, game.ErrGameNotWaiting
	}

	players, err := e.store.ListPlayers(ctx, g.ID)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	if len(players) >= g.MaxPlayers {
		return nil, game.ErrGameFull
	}
	for _, p := range players {
		if p.PlayerID == playerID {
			return nil, game.ErrAlreadyJoined
		}
	}

	player := &game.Player{
		GameID:    g.ID,
		PlayerID:  playerID,
		Name:      name,
		JoinOrder: len(players),
		JoinedAt:  e.now(),
	}
	if err := e.store.AddPlayer(ctx, player); err != nil {
		return nil, fmt.Errorf("seat player: %w", err)
	}

	e.logger.Info("Player joined", "game", g.ID, "player", name, "seat", player.JoinOrder)
	return g, nil
}

// StartGame moves a lobby into play and deals the first round. Only the
// host may start, and the token threshold is fixed from the seated
// player count at this moment.
func (e *Engine) StartGame(ctx context.Context, gameID, playerID string) error {
	lock := e.gameLock(gameID)
	lock.Lock()
	defer lock.Unlock()

	g, err := e.store.GetGame(ctx, gameID)
	if err != nil {
		return err
	}
	if g.Status != game.StatusWaiting {
		return game.ErrGameNotWaiting
	}

	players, err := e.store.ListPlayers(ctx, gameID)
	if err != nil {
		return fmt.Errorf("list players: %w", err)
	}
	host := findPlayer(players, playerID)
	if host == nil || !host.Host {
		return game.ErrNotHost
	}
	if len(players) < MinPlayers {
		return game.ErrInvalidPlayerCount
	}

	now := e.now()
	g.Status = game.StatusInProgress
	g.StartedAt = now
	g.CurrentRound = 1
	g.WinningTokens = game.WinningTokens(len(players))

	r, err := e.deal(gameID, 1, players)
	if err != nil {
		return err
	}

	commit := store.TurnCommit{
		Game:    g,
		Players: r.Players,
		Round:   r.State,
		Hands:   handList(r),
	}
	if err := e.store.CommitTurn(ctx, commit); err != nil {
		return fmt.Errorf("commit round start: %w", err)
	}

	e.logger.Info("Game started", "game", gameID, "players", len(players), "tokens_to_win", g.WinningTokens)
	e.bus.Publish(game.NewRoundStartedEvent(gameID, now, 1, r.State.TurnPlayerID))
	return nil
}

// StartNextRound deals the next round after one has resolved. Only the
// host may deal, and the previous round's winner leads.
func (e *Engine) StartNextRound(ctx context.Context, gameID, playerID string) error {
	lock := e.gameLock(gameID)
	lock.Lock()
	defer lock.Unlock()

	g, err := e.store.GetGame(ctx, gameID)
	if err != nil {
		return err
	}
	if g.Status != game.StatusInProgress {
		return game.ErrGameNotInProgress
	}

	players, err := e.store.ListPlayers(ctx, gameID)
	if err != nil {
		return fmt.Errorf("list players: %w", err)
	}
	host := findPlayer(players, playerID)
	if host == nil || !host.Host {
		return game.ErrNotHost
	}

	prev, err := e.store.LatestRound(ctx, gameID)
	if err != nil {
		return fmt.Errorf("load previous round: %w", err)
	}
	if !prev.Ended() {
		// A round in play has no recorded winner yet.
		return game.ErrNoPreviousWinner
	}

	ordered := leadWith(players, prev.WinnerID)
	if ordered == nil {
		return game.ErrNoPreviousWinner
	}

	r, err := e.deal(gameID, g.CurrentRound, ordered)
	if err != nil {
		return err
	}

	commit := store.TurnCommit{
		Players: r.Players,
		Round:   r.State,
		Hands:   handList(r),
	}
	if err := e.store.CommitTurn(ctx, commit); err != nil {
		return fmt.Errorf("commit round start: %w", err)
	}

	now := e.now()
	e.logger.Info("Round started", "game", gameID, "round", g.CurrentRound, "leads", prev.WinnerID)
	e.bus.Publish(game.NewRoundStartedEvent(gameID, now, g.CurrentRound, r.State.TurnPlayerID))
	return nil
}

func (e *Engine) deal(gameID string, number int, ordered []*game.Player) (*game.Round, error) {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return game.NewRound(gameID, number, ordered, e.rng)
}

// DrawCard draws the turn player's second card. The card is returned to
// the caller only; the published event carries just the fact of the
// draw.
func (e *Engine) DrawCard(ctx context.Context, gameID, playerID string) (deck.Card, error) {
	lock := e.gameLock(gameID)
	lock.Lock()
	defer lock.Unlock()

	_, r, err := e.loadCurrentRound(ctx, gameID)
	if err != nil {
		return deck.None, err
	}

	card, err := r.Draw(playerID)
	if err != nil {
		return deck.None, err
	}

	now := e.now()
	rec := &game.ActionRecord{
		ID:       e.ids.New(),
		GameID:   gameID,
		Round:    r.State.Number,
		Turn:     r.State.TurnNumber,
		PlayerID: playerID,
		Type:     game.ActionDrawCard,
		Details: game.Details{
			Message:      fmt.Sprintf("%s drew a card", r.Player(playerID).Name),
			Participants: []string{playerID},
		},
		CreatedAt: now,
	}

	commit := store.TurnCommit{
		Round:   r.State,
		Hands:   []*game.Hand{r.Hand(playerID)},
		Actions: []*game.ActionRecord{rec},
	}
	if err := e.store.CommitTurn(ctx, commit); err != nil {
		return deck.None, fmt.Errorf("commit draw: %w", err)
	}

	e.bus.Publish(game.NewCardDrawnEvent(gameID, now, r.State.Number, playerID))
	return card, nil
}

// PlayCard resolves one card play end to end: validation, effect, audit
// record, round end detection, token award and game end, all committed
// atomically. Returns the audit record and, when the play ended the
// round, the round result.
func (e *Engine) PlayCard(ctx context.Context, gameID string, req game.PlayRequest) (*game.ActionRecord, *game.RoundResult, error) {
	lock := e.gameLock(gameID)
	lock.Lock()
	defer lock.Unlock()

	g, r, err := e.loadCurrentRound(ctx, gameID)
	if err != nil {
		return nil, nil, err
	}

	turn := r.State.TurnNumber
	outcome, err := r.PlayCard(req)
	if err != nil {
		return nil, nil, err
	}

	names := e.namesFor(r.Players)
	now := e.now()

	rec := &game.ActionRecord{
		ID:        e.ids.New(),
		GameID:    gameID,
		Round:     r.State.Number,
		Turn:      turn,
		PlayerID:  req.PlayerID,
		Type:      game.ActionPlayCard,
		Card:      req.Card,
		TargetID:  req.TargetID,
		Details:   game.BuildDetails(outcome, names),
		CreatedAt: now,
	}
	actions := []*game.ActionRecord{rec}

	result := r.CheckEnd()
	gameOver := false
	if result != nil {
		gameOver = game.ApplyRoundResult(g, r.Players, result)
		if gameOver {
			g.FinishedAt = now
		}
		actions = append(actions, e.winRecord(r, result, names, now))
	} else {
		r.FinishTurn()
	}

	commit := store.TurnCommit{
		Game:    g,
		Players: r.Players,
		Round:   r.State,
		Hands:   handList(r),
		Actions: actions,
	}
	if err := e.store.CommitTurn(ctx, commit); err != nil {
		return nil, nil, fmt.Errorf("commit play: %w", err)
	}

	e.logger.Debug("Card played", "game", gameID, "player", req.PlayerID, "card", req.Card)
	e.bus.Publish(game.NewActionAppliedEvent(gameID, now, rec))
	if result != nil {
		e.bus.Publish(game.NewRoundEndedEvent(gameID, now, r.State.Number, result))
	}
	if gameOver {
		e.logger.Info("Game ended", "game", gameID, "winner", g.WinnerID)
		e.bus.Publish(game.NewGameEndedEvent(gameID, now, g.WinnerID))
	}
	return rec, result, nil
}

func (e *Engine) winRecord(r *game.Round, result *game.RoundResult, names game.NameFunc, now time.Time) *game.ActionRecord {
	msg := fmt.Sprintf("%s won the round", names(result.WinnerID))
	if result.Method == game.WinByShowdown {
		entry := result.Showdown[result.WinnerID]
		msg = fmt.Sprintf("%s won the round with a %d at the showdown", names(result.WinnerID), entry.Card)
	}
	return &game.ActionRecord{
		ID:       e.ids.New(),
		GameID:   r.State.GameID,
		Round:    r.State.Number,
		Turn:     r.State.TurnNumber,
		PlayerID: result.WinnerID,
		Type:     game.ActionWinRound,
		Details: game.Details{
			Message: msg,
		},
		CreatedAt: now,
	}
}

// loadCurrentRound assembles the in-play round from stored rows. A
// missing row for an in-progress game is a consistency error, not a
// user error.
func (e *Engine) loadCurrentRound(ctx context.Context, gameID string) (*game.Game, *game.Round, error) {
	g, err := e.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, nil, err
	}
	if g.Status != game.StatusInProgress {
		return nil, nil, game.ErrGameNotInProgress
	}

	players, err := e.store.ListPlayers(ctx, gameID)
	if err != nil {
		return nil, nil, fmt.Errorf("list players: %w", err)
	}

	state, err := e.store.GetRound(ctx, gameID, g.CurrentRound)
	if errors.Is(err, store.ErrNotFound) {
		// The previous round resolved and the next has not been dealt.
		state, err = e.store.LatestRound(ctx, gameID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load round: %w", err)
	}

	hands, err := e.store.ListHands(ctx, gameID, state.Number)
	if err != nil {
		return nil, nil, fmt.Errorf("load hands: %w", err)
	}

	r := &game.Round{
		State:   state,
		Hands:   make(map[string]*game.Hand, len(hands)),
		Players: players,
	}
	for _, h := range hands {
		r.Hands[h.PlayerID] = h
	}
	return g, r, nil
}

func (e *Engine) namesFor(players []*game.Player) game.NameFunc {
	byID := make(map[string]string, len(players))
	for _, p := range players {
		byID[p.PlayerID] = p.Name
	}
	return func(playerID string) string {
		if name, ok := byID[playerID]; ok {
			return name
		}
		return playerID
	}
}

func findPlayer(players []*game.Player, playerID string) *game.Player {
	for _, p := range players {
		if p.PlayerID == playerID {
			return p
		}
	}
	return nil
}

// leadWith returns the players rotated so winnerID sits first, keeping
// join order otherwise. Nil if the winner is not seated.
func leadWith(players []*game.Player, winnerID string) []*game.Player {
	start := -1
	for i, p := range players {
		if p.PlayerID == winnerID {
			start = i
			break
		}
	}
	if start < 0 {
		return nil
	}
	out := make([]*game.Player, 0, len(players))
	for i := range players {
		out = append(out, players[(start+i)%len(players)])
	}
	return out
}

func handList(r *game.Round) []*game.Hand {
	out := make([]*game.Hand, 0, len(r.Hands))
	for _, p := range r.Players {
		if h := r.Hands[p.PlayerID]; h != nil {
			out = append(out, h)
		}
	}
	return out
}
