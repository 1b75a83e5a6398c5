package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/lox/loveletter/internal/deck"
	"github.com/lox/loveletter/internal/game"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS games (
    id             TEXT PRIMARY KEY,
    room_code      TEXT NOT NULL UNIQUE,
    status         TEXT NOT NULL,
    max_players    INTEGER NOT NULL,
    winning_tokens INTEGER NOT NULL,
    current_round  INTEGER NOT NULL,
    winner_id      TEXT NOT NULL DEFAULT '',
    created_by     TEXT NOT NULL,
    created_at     INTEGER NOT NULL,
    started_at     INTEGER NOT NULL DEFAULT 0,
    finished_at    INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS game_players (
    game_id       TEXT NOT NULL REFERENCES games(id),
    player_id     TEXT NOT NULL,
    player_name   TEXT NOT NULL,
    is_host       INTEGER NOT NULL,
    tokens        INTEGER NOT NULL,
    is_eliminated INTEGER NOT NULL,
    join_order    INTEGER NOT NULL,
    joined_at     INTEGER NOT NULL,
    PRIMARY KEY (game_id, player_id)
);

CREATE TABLE IF NOT EXISTS game_state (
    game_id         TEXT NOT NULL REFERENCES games(id),
    round_number    INTEGER NOT NULL,
    deck            TEXT NOT NULL,
    discard_pile    TEXT NOT NULL,
    set_aside_card  TEXT NOT NULL DEFAULT '',
    set_aside_used  INTEGER NOT NULL DEFAULT 0,
    turn_player_id  TEXT NOT NULL,
    turn_number     INTEGER NOT NULL,
    winner_id       TEXT NOT NULL DEFAULT '',
    player_discards TEXT NOT NULL,
    PRIMARY KEY (game_id, round_number)
);

CREATE TABLE IF NOT EXISTS player_hands (
    game_id      TEXT NOT NULL REFERENCES games(id),
    round_number INTEGER NOT NULL,
    player_id    TEXT NOT NULL,
    cards        TEXT NOT NULL,
    is_protected INTEGER NOT NULL,
    PRIMARY KEY (game_id, round_number, player_id)
);

CREATE TABLE IF NOT EXISTS game_actions (
    id           TEXT PRIMARY KEY,
    game_id      TEXT NOT NULL REFERENCES games(id),
    round_number INTEGER NOT NULL,
    turn_number  INTEGER NOT NULL,
    player_id    TEXT NOT NULL,
    action_type  TEXT NOT NULL,
    card_played  TEXT NOT NULL DEFAULT '',
    target_id    TEXT NOT NULL DEFAULT '',
    details      TEXT NOT NULL,
    created_at   INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_game_actions_game ON game_actions (game_id, created_at);
`

// SQLiteStore persists games in a single SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and if necessary creates) the database at path and
// ensures the schema exists.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("database path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database handle
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateGame(ctx context.Context, g *game.Game) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO games (id, room_code, status, max_players, winning_tokens,
			current_round, winner_id, created_by, created_at, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.RoomCode, string(g.Status), g.MaxPlayers, g.WinningTokens,
		g.CurrentRound, g.WinnerID, g.CreatedBy,
		toMillis(g.CreatedAt), toMillis(g.StartedAt), toMillis(g.FinishedAt))
	if err != nil {
		return fmt.Errorf("insert game: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetGame(ctx context.Context, id string) (*game.Game, error) {
	return s.scanGame(s.db.QueryRowContext(ctx,
		`SELECT id, room_code, status, max_players, winning_tokens, current_round,
			winner_id, created_by, created_at, started_at, finished_at
		FROM games WHERE id = ?`, id))
}

func (s *SQLiteStore) GetGameByRoomCode(ctx context.Context, code string) (*game.Game, error) {
	return s.scanGame(s.db.QueryRowContext(ctx,
		`SELECT id, room_code, status, max_players, winning_tokens, current_round,
			winner_id, created_by, created_at, started_at, finished_at
		FROM games WHERE room_code = ?`, code))
}

func (s *SQLiteStore) scanGame(row *sql.Row) (*game.Game, error) {
	var g game.Game
	var status string
	var created, started, finished int64
	err := row.Scan(&g.ID, &g.RoomCode, &status, &g.MaxPlayers, &g.WinningTokens,
		&g.CurrentRound, &g.WinnerID, &g.CreatedBy, &created, &started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan game: %w", err)
	}
	g.Status = game.Status(status)
	g.CreatedAt = fromMillis(created)
	g.StartedAt = fromMillis(started)
	g.FinishedAt = fromMillis(finished)
	return &g, nil
}

func (s *SQLiteStore) UpdateGame(ctx context.Context, g *game.Game) error {
	return execGame(ctx, s.db, g)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func execGame(ctx context.Context, db execer, g *game.Game) error {
	res, err := db.ExecContext(ctx, `
		UPDATE games SET status = ?, current_round = ?, winner_id = ?,
			started_at = ?, finished_at = ?
		WHERE id = ?`,
		string(g.Status), g.CurrentRound, g.WinnerID,
		toMillis(g.StartedAt), toMillis(g.FinishedAt), g.ID)
	if err != nil {
		return fmt.Errorf("update game: %w", err)
	}
	return requireRow(res)
}

func (s *SQLiteStore) AddPlayer(ctx context.Context, p *game.Player) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO game_players (game_id, player_id, player_name, is_host,
			tokens, is_eliminated, join_order, joined_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.GameID, p.PlayerID, p.Name, p.Host, p.Tokens, p.Eliminated,
		p.JoinOrder, toMillis(p.JoinedAt))
	if err != nil {
		return fmt.Errorf("insert player: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetPlayer(ctx context.Context, gameID, playerID string) (*game.Player, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT game_id, player_id, player_name, is_host, tokens, is_eliminated,
			join_order, joined_at
		FROM game_players WHERE game_id = ? AND player_id = ?`, gameID, playerID)

	p, err := scanPlayer(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func scanPlayer(scan func(dest ...any) error) (*game.Player, error) {
	var p game.Player
	var joined int64
	err := scan(&p.GameID, &p.PlayerID, &p.Name, &p.Host, &p.Tokens,
		&p.Eliminated, &p.JoinOrder, &joined)
	if err != nil {
		return nil, err
	}
	p.JoinedAt = fromMillis(joined)
	return &p, nil
}

func (s *SQLiteStore) ListPlayers(ctx context.Context, gameID string) ([]*game.Player, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT game_id, player_id, player_name, is_host, tokens, is_eliminated,
			join_order, joined_at
		FROM game_players WHERE game_id = ? ORDER BY join_order`, gameID)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer rows.Close()

	var out []*game.Player
	for rows.Next() {
		p, err := scanPlayer(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpdatePlayer(ctx context.Context, p *game.Player) error {
	return execPlayer(ctx, s.db, p)
}

func execPlayer(ctx context.Context, db execer, p *game.Player) error {
	res, err := db.ExecContext(ctx, `
		UPDATE game_players SET tokens = ?, is_eliminated = ?
		WHERE game_id = ? AND player_id = ?`,
		p.Tokens, p.Eliminated, p.GameID, p.PlayerID)
	if err != nil {
		return fmt.Errorf("update player: %w", err)
	}
	return requireRow(res)
}

func (s *SQLiteStore) PutRound(ctx context.Context, rs *game.RoundState) error {
	return execRound(ctx, s.db, rs)
}

func execRound(ctx context.Context, db execer, rs *game.RoundState) error {
	deckJSON, err := json.Marshal(rs.Deck)
	if err != nil {
		return fmt.Errorf("encode deck: %w", err)
	}
	discardJSON, err := json.Marshal(rs.Discard)
	if err != nil {
		return fmt.Errorf("encode discard: %w", err)
	}
	playerDiscardsJSON, err := json.Marshal(rs.PlayerDiscards)
	if err != nil {
		return fmt.Errorf("encode player discards: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO game_state (game_id, round_number, deck, discard_pile,
			set_aside_card, set_aside_used, turn_player_id, turn_number,
			winner_id, player_discards)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (game_id, round_number) DO UPDATE SET
			deck = excluded.deck,
			discard_pile = excluded.discard_pile,
			set_aside_used = excluded.set_aside_used,
			turn_player_id = excluded.turn_player_id,
			turn_number = excluded.turn_number,
			winner_id = excluded.winner_id,
			player_discards = excluded.player_discards`,
		rs.GameID, rs.Number, string(deckJSON), string(discardJSON),
		cardText(rs.SetAside), rs.SetAsideUsed, rs.TurnPlayerID, rs.TurnNumber,
		rs.WinnerID, string(playerDiscardsJSON))
	if err != nil {
		return fmt.Errorf("upsert round: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetRound(ctx context.Context, gameID string, number int) (*game.RoundState, error) {
	return s.scanRound(s.db.QueryRowContext(ctx, `
		SELECT game_id, round_number, deck, discard_pile, set_aside_card,
			set_aside_used, turn_player_id, turn_number, winner_id, player_discards
		FROM game_state WHERE game_id = ? AND round_number = ?`, gameID, number))
}

func (s *SQLiteStore) LatestRound(ctx context.Context, gameID string) (*game.RoundState, error) {
	return s.scanRound(s.db.QueryRowContext(ctx, `
		SELECT game_id, round_number, deck, discard_pile, set_aside_card,
			set_aside_used, turn_player_id, turn_number, winner_id, player_discards
		FROM game_state WHERE game_id = ? ORDER BY round_number DESC LIMIT 1`, gameID))
}

func (s *SQLiteStore) scanRound(row *sql.Row) (*game.RoundState, error) {
	var rs game.RoundState
	var deckJSON, discardJSON, setAside, playerDiscardsJSON string
	err := row.Scan(&rs.GameID, &rs.Number, &deckJSON, &discardJSON, &setAside,
		&rs.SetAsideUsed, &rs.TurnPlayerID, &rs.TurnNumber, &rs.WinnerID,
		&playerDiscardsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan round: %w", err)
	}
	if err := json.Unmarshal([]byte(deckJSON), &rs.Deck); err != nil {
		return nil, fmt.Errorf("decode deck: %w", err)
	}
	if err := json.Unmarshal([]byte(discardJSON), &rs.Discard); err != nil {
		return nil, fmt.Errorf("decode discard: %w", err)
	}
	if err := json.Unmarshal([]byte(playerDiscardsJSON), &rs.PlayerDiscards); err != nil {
		return nil, fmt.Errorf("decode player discards: %w", err)
	}
	if rs.SetAside, err = parseCardText(setAside); err != nil {
		return nil, err
	}
	return &rs, nil
}

func (s *SQLiteStore) PutHand(ctx context.Context, h *game.Hand) error {
	return execHand(ctx, s.db, h)
}

func execHand(ctx context.Context, db execer, h *game.Hand) error {
	cardsJSON, err := json.Marshal(h.Cards)
	if err != nil {
		return fmt.Errorf("encode cards: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO player_hands (game_id, round_number, player_id, cards, is_protected)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (game_id, round_number, player_id) DO UPDATE SET
			cards = excluded.cards,
			is_protected = excluded.is_protected`,
		h.GameID, h.Round, h.PlayerID, string(cardsJSON), h.Protected)
	if err != nil {
		return fmt.Errorf("upsert hand: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetHand(ctx context.Context, gameID string, round int, playerID string) (*game.Hand, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT game_id, round_number, player_id, cards, is_protected
		FROM player_hands WHERE game_id = ? AND round_number = ? AND player_id = ?`,
		gameID, round, playerID)

	h, err := scanHand(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return h, err
}

func scanHand(scan func(dest ...any) error) (*game.Hand, error) {
	var h game.Hand
	var cardsJSON string
	if err := scan(&h.GameID, &h.Round, &h.PlayerID, &cardsJSON, &h.Protected); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(cardsJSON), &h.Cards); err != nil {
		return nil, fmt.Errorf("decode cards: %w", err)
	}
	return &h, nil
}

func (s *SQLiteStore) ListHands(ctx context.Context, gameID string, round int) ([]*game.Hand, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT game_id, round_number, player_id, cards, is_protected
		FROM player_hands WHERE game_id = ? AND round_number = ? ORDER BY player_id`,
		gameID, round)
	if err != nil {
		return nil, fmt.Errorf("list hands: %w", err)
	}
	defer rows.Close()

	var out []*game.Hand
	for rows.Next() {
		h, err := scanHand(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan hand: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AppendAction(ctx context.Context, a *game.ActionRecord) error {
	return execAction(ctx, s.db, a)
}

func execAction(ctx context.Context, db execer, a *game.ActionRecord) error {
	detailsJSON, err := json.Marshal(a.Details)
	if err != nil {
		return fmt.Errorf("encode details: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO game_actions (id, game_id, round_number, turn_number,
			player_id, action_type, card_played, target_id, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.GameID, a.Round, a.Turn, a.PlayerID, string(a.Type),
		cardText(a.Card), a.TargetID, string(detailsJSON), toMillis(a.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert action: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RecentActions(ctx context.Context, gameID string, limit int) ([]*game.ActionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, game_id, round_number, turn_number, player_id, action_type,
			card_played, target_id, details, created_at
		FROM game_actions WHERE game_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?`, gameID, limit)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer rows.Close()

	var out []*game.ActionRecord
	for rows.Next() {
		var a game.ActionRecord
		var actionType, card, detailsJSON string
		var created int64
		err := rows.Scan(&a.ID, &a.GameID, &a.Round, &a.Turn, &a.PlayerID,
			&actionType, &card, &a.TargetID, &detailsJSON, &created)
		if err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		a.Type = game.ActionType(actionType)
		a.CreatedAt = fromMillis(created)
		if a.Card, err = parseCardText(card); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(detailsJSON), &a.Details); err != nil {
			return nil, fmt.Errorf("decode details: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// CommitTurn wraps all row writes for one play in a transaction so the
// turn is durable as a unit.
func (s *SQLiteStore) CommitTurn(ctx context.Context, commit TurnCommit) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin turn commit: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if commit.Game != nil {
		if err := execGame(ctx, tx, commit.Game); err != nil {
			return err
		}
	}
	for _, p := range commit.Players {
		if err := execPlayer(ctx, tx, p); err != nil {
			return err
		}
	}
	if commit.Round != nil {
		if err := execRound(ctx, tx, commit.Round); err != nil {
			return err
		}
	}
	for _, h := range commit.Hands {
		if err := execHand(ctx, tx, h); err != nil {
			return err
		}
	}
	for _, a := range commit.Actions {
		if err := execAction(ctx, tx, a); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit turn: %w", err)
	}
	return nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func cardText(c deck.Card) string {
	if c == deck.None {
		return ""
	}
	return c.String()
}

func parseCardText(s string) (deck.Card, error) {
	if s == "" {
		return deck.None, nil
	}
	c, err := deck.Parse(s)
	if err != nil {
		return deck.None, fmt.Errorf("decode card: %w", err)
	}
	return c, nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
