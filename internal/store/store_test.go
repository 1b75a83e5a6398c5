package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/loveletter/internal/deck"
	"github.com/lox/loveletter/internal/game"
)

// Both implementations run the same conformance suite.
func TestMemoryStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) Store {
		return NewMemoryStore()
	})
}

// A commit naming a row that does not exist must leave every other
// write unapplied. The SQLite store gets this from its transaction; the
// memory store validates keys up front.
func TestMemoryStoreCommitTurnAtomic(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	g := testGame("g1", "ABCDEF")
	require.NoError(t, s.CreateGame(ctx, g))
	alice := &game.Player{GameID: "g1", PlayerID: "alice", Name: "Alice", JoinOrder: 0}
	require.NoError(t, s.AddPlayer(ctx, alice))

	updated := testGame("g1", "ABCDEF")
	updated.Status = game.StatusInProgress
	aliceTokens := *alice
	aliceTokens.Tokens = 1

	err := s.CommitTurn(ctx, TurnCommit{
		Game: updated,
		Players: []*game.Player{
			&aliceTokens,
			{GameID: "g1", PlayerID: "ghost", Name: "Ghost", JoinOrder: 1},
		},
		Round: &game.RoundState{GameID: "g1", Number: 1, TurnPlayerID: "alice", TurnNumber: 1},
	})
	require.ErrorIs(t, err, ErrNotFound)

	// Nothing from the failed commit is visible.
	gotGame, err := s.GetGame(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, game.StatusWaiting, gotGame.Status)

	gotAlice, err := s.GetPlayer(ctx, "g1", "alice")
	require.NoError(t, err)
	assert.Zero(t, gotAlice.Tokens)

	_, err = s.GetRound(ctx, "g1", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) Store {
		s, err := OpenSQLite(filepath.Join(t.TempDir(), "games.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func runStoreTests(t *testing.T, open func(t *testing.T) Store) {
	t.Run("games", func(t *testing.T) { testGames(t, open(t)) })
	t.Run("players", func(t *testing.T) { testPlayers(t, open(t)) })
	t.Run("rounds", func(t *testing.T) { testRounds(t, open(t)) })
	t.Run("hands", func(t *testing.T) { testHands(t, open(t)) })
	t.Run("actions", func(t *testing.T) { testActions(t, open(t)) })
	t.Run("commit turn", func(t *testing.T) { testCommitTurn(t, open(t)) })
}

func testGame(id, code string) *game.Game {
	return &game.Game{
		ID:            id,
		RoomCode:      code,
		Status:        game.StatusWaiting,
		MaxPlayers:    4,
		WinningTokens: 0,
		CreatedBy:     "alice",
		CreatedAt:     time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}
}

func testGames(t *testing.T, s Store) {
	ctx := context.Background()

	g := testGame("g1", "ABCDEF")
	require.NoError(t, s.CreateGame(ctx, g))

	got, err := s.GetGame(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, g, got)

	byCode, err := s.GetGameByRoomCode(ctx, "ABCDEF")
	require.NoError(t, err)
	assert.Equal(t, "g1", byCode.ID)

	_, err = s.GetGame(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetGameByRoomCode(ctx, "ZZZZZZ")
	assert.ErrorIs(t, err, ErrNotFound)

	g.Status = game.StatusInProgress
	g.CurrentRound = 1
	g.StartedAt = g.CreatedAt.Add(time.Minute)
	require.NoError(t, s.UpdateGame(ctx, g))

	got, err = s.GetGame(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, game.StatusInProgress, got.Status)
	assert.Equal(t, g.StartedAt, got.StartedAt)
	assert.True(t, got.FinishedAt.IsZero())

	assert.ErrorIs(t, s.UpdateGame(ctx, testGame("missing", "XXXXXX")), ErrNotFound)
}

func testPlayers(t *testing.T, s Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateGame(ctx, testGame("g1", "ABCDEF")))

	joined := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	// Added out of seat order on purpose.
	bob := &game.Player{GameID: "g1", PlayerID: "bob", Name: "Bob", JoinOrder: 1, JoinedAt: joined}
	alice := &game.Player{GameID: "g1", PlayerID: "alice", Name: "Alice", Host: true, JoinOrder: 0, JoinedAt: joined}
	require.NoError(t, s.AddPlayer(ctx, bob))
	require.NoError(t, s.AddPlayer(ctx, alice))

	got, err := s.GetPlayer(ctx, "g1", "alice")
	require.NoError(t, err)
	assert.Equal(t, alice, got)

	_, err = s.GetPlayer(ctx, "g1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := s.ListPlayers(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alice", list[0].PlayerID)
	assert.Equal(t, "bob", list[1].PlayerID)

	bob.Tokens = 3
	bob.Eliminated = true
	require.NoError(t, s.UpdatePlayer(ctx, bob))

	got, err = s.GetPlayer(ctx, "g1", "bob")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Tokens)
	assert.True(t, got.Eliminated)
}

func testRounds(t *testing.T, s Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateGame(ctx, testGame("g1", "ABCDEF")))

	rs := &game.RoundState{
		GameID:       "g1",
		Number:       1,
		Deck:         []deck.Card{deck.Guard, deck.Baron, deck.King},
		Discard:      []deck.Card{deck.Priest},
		SetAside:     deck.Handmaid,
		TurnPlayerID: "alice",
		TurnNumber:   2,
		PlayerDiscards: map[string][]deck.Card{
			"alice": {deck.Priest},
		},
	}
	require.NoError(t, s.PutRound(ctx, rs))

	got, err := s.GetRound(ctx, "g1", 1)
	require.NoError(t, err)
	assert.Equal(t, rs, got)

	_, err = s.GetRound(ctx, "g1", 9)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.LatestRound(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	// Upsert replaces in place.
	rs.Deck = rs.Deck[1:]
	rs.TurnPlayerID = "bob"
	rs.WinnerID = "bob"
	require.NoError(t, s.PutRound(ctx, rs))

	got, err = s.GetRound(ctx, "g1", 1)
	require.NoError(t, err)
	assert.Equal(t, "bob", got.WinnerID)
	assert.Len(t, got.Deck, 2)

	rs2 := &game.RoundState{
		GameID:         "g1",
		Number:         2,
		Deck:           []deck.Card{deck.Countess},
		TurnPlayerID:   "bob",
		TurnNumber:     1,
		PlayerDiscards: map[string][]deck.Card{},
	}
	require.NoError(t, s.PutRound(ctx, rs2))

	latest, err := s.LatestRound(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Number)
}

func testHands(t *testing.T, s Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateGame(ctx, testGame("g1", "ABCDEF")))

	h := &game.Hand{
		GameID:   "g1",
		Round:    1,
		PlayerID: "alice",
		Cards:    []deck.Card{deck.Guard, deck.Princess},
	}
	require.NoError(t, s.PutHand(ctx, h))
	require.NoError(t, s.PutHand(ctx, &game.Hand{
		GameID: "g1", Round: 1, PlayerID: "bob", Cards: []deck.Card{deck.Baron},
	}))

	got, err := s.GetHand(ctx, "g1", 1, "alice")
	require.NoError(t, err)
	assert.Equal(t, h, got)

	_, err = s.GetHand(ctx, "g1", 1, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := s.ListHands(ctx, "g1", 1)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	h.Cards = nil
	h.Protected = true
	require.NoError(t, s.PutHand(ctx, h))

	got, err = s.GetHand(ctx, "g1", 1, "alice")
	require.NoError(t, err)
	assert.Empty(t, got.Cards)
	assert.True(t, got.Protected)
}

func testActions(t *testing.T, s Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateGame(ctx, testGame("g1", "ABCDEF")))

	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a1", "a2", "a3"} {
		require.NoError(t, s.AppendAction(ctx, &game.ActionRecord{
			ID:       id,
			GameID:   "g1",
			Round:    1,
			Turn:     i + 1,
			PlayerID: "alice",
			Type:     game.ActionPlayCard,
			Card:     deck.Guard,
			TargetID: "bob",
			Details: game.Details{
				Message:      "Alice played Guard on Bob, guessed King - Wrong guess",
				Participants: []string{"alice", "bob"},
				GuessCard:    deck.King,
			},
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	got, err := s.RecentActions(ctx, "g1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a3", got[0].ID)
	assert.Equal(t, "a2", got[1].ID)
	assert.Equal(t, deck.King, got[0].Details.GuessCard)
	assert.Equal(t, []string{"alice", "bob"}, got[0].Details.Participants)

	all, err := s.RecentActions(ctx, "g1", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := s.RecentActions(ctx, "other", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testCommitTurn(t *testing.T, s Store) {
	ctx := context.Background()

	g := testGame("g1", "ABCDEF")
	g.Status = game.StatusInProgress
	g.CurrentRound = 1
	require.NoError(t, s.CreateGame(ctx, g))

	alice := &game.Player{GameID: "g1", PlayerID: "alice", Name: "Alice", JoinOrder: 0}
	bob := &game.Player{GameID: "g1", PlayerID: "bob", Name: "Bob", JoinOrder: 1}
	require.NoError(t, s.AddPlayer(ctx, alice))
	require.NoError(t, s.AddPlayer(ctx, bob))

	bob.Eliminated = true
	alice.Tokens = 1
	commit := TurnCommit{
		Game:    g,
		Players: []*game.Player{alice, bob},
		Round: &game.RoundState{
			GameID:       "g1",
			Number:       1,
			Discard:      []deck.Card{deck.Guard},
			TurnPlayerID: "alice",
			TurnNumber:   2,
			WinnerID:     "alice",
			PlayerDiscards: map[string][]deck.Card{
				"alice": {deck.Guard},
			},
		},
		Hands: []*game.Hand{
			{GameID: "g1", Round: 1, PlayerID: "alice", Cards: []deck.Card{deck.King}},
			{GameID: "g1", Round: 1, PlayerID: "bob"},
		},
		Actions: []*game.ActionRecord{
			{
				ID: "a1", GameID: "g1", Round: 1, Turn: 1,
				PlayerID: "alice", Type: game.ActionPlayCard, Card: deck.Guard,
				Details:   game.Details{Message: "Alice played Guard on Bob, guessed Baron - Correct! Bob is eliminated"},
				CreatedAt: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
			},
			{
				ID: "a2", GameID: "g1", Round: 1, Turn: 1,
				PlayerID: "alice", Type: game.ActionWinRound,
				Details:   game.Details{Message: "Alice won the round"},
				CreatedAt: time.Date(2026, 3, 14, 12, 0, 1, 0, time.UTC),
			},
		},
	}
	require.NoError(t, s.CommitTurn(ctx, commit))

	round, err := s.GetRound(ctx, "g1", 1)
	require.NoError(t, err)
	assert.Equal(t, "alice", round.WinnerID)

	gotBob, err := s.GetPlayer(ctx, "g1", "bob")
	require.NoError(t, err)
	assert.True(t, gotBob.Eliminated)

	gotAlice, err := s.GetPlayer(ctx, "g1", "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, gotAlice.Tokens)

	hand, err := s.GetHand(ctx, "g1", 1, "bob")
	require.NoError(t, err)
	assert.Empty(t, hand.Cards)

	actions, err := s.RecentActions(ctx, "g1", 10)
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.Equal(t, "a2", actions[0].ID)
}
