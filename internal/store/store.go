// Package store defines the row-store the rules engine persists through:
// point reads and updates by id, range queries by game id, and an atomic
// per-turn commit. Implementations: an in-memory store for tests and
// ephemeral servers, and a SQLite store for durable games.
package store

import (
	"context"
	"errors"

	"github.com/lox/loveletter/internal/game"
)

// ErrNotFound is returned for point reads of missing rows. The engine
// treats it as a consistency error when the row was expected to exist.
var ErrNotFound = errors.New("store: not found")

// TurnCommit bundles every row changed by one play or draw so the store
// can apply them atomically. Nil fields are skipped.
type TurnCommit struct {
	Game    *game.Game
	Players []*game.Player
	Round   *game.RoundState
	Hands   []*game.Hand
	Actions []*game.ActionRecord
}

// Store is the persistence collaborator for games, seats, round state,
// hands and the audit log.
type Store interface {
	CreateGame(ctx context.Context, g *game.Game) error
	GetGame(ctx context.Context, id string) (*game.Game, error)
	GetGameByRoomCode(ctx context.Context, code string) (*game.Game, error)
	UpdateGame(ctx context.Context, g *game.Game) error

	AddPlayer(ctx context.Context, p *game.Player) error
	GetPlayer(ctx context.Context, gameID, playerID string) (*game.Player, error)
	// ListPlayers returns a game's seats ordered by join order.
	ListPlayers(ctx context.Context, gameID string) ([]*game.Player, error)
	UpdatePlayer(ctx context.Context, p *game.Player) error

	PutRound(ctx context.Context, rs *game.RoundState) error
	GetRound(ctx context.Context, gameID string, number int) (*game.RoundState, error)
	// LatestRound returns the highest-numbered round for the game.
	LatestRound(ctx context.Context, gameID string) (*game.RoundState, error)

	PutHand(ctx context.Context, h *game.Hand) error
	GetHand(ctx context.Context, gameID string, round int, playerID string) (*game.Hand, error)
	ListHands(ctx context.Context, gameID string, round int) ([]*game.Hand, error)

	AppendAction(ctx context.Context, a *game.ActionRecord) error
	// RecentActions returns up to limit records, newest first.
	RecentActions(ctx context.Context, gameID string, limit int) ([]*game.ActionRecord, error)

	// CommitTurn applies all rows in one atomic write.
	CommitTurn(ctx context.Context, commit TurnCommit) error

	Close() error
}
