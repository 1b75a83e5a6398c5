package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/lox/loveletter/internal/deck"
	"github.com/lox/loveletter/internal/engine"
	"github.com/lox/loveletter/internal/game"
	"github.com/lox/loveletter/internal/randutil"
	"github.com/lox/loveletter/internal/store"
)

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

// newTestServer wires a full stack on an in-memory store with a seeded
// shuffle.
func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	logger := testLogger()
	eng := engine.New(store.NewMemoryStore(), game.NewEventBus(), logger,
		engine.WithRand(randutil.New(7)))

	srv := NewServer("localhost:0", logger)
	svc := NewGameService(eng, srv, logger)
	srv.SetGameService(svc)
	go srv.run()

	ts := httptest.NewServer(http.HandlerFunc(srv.handleWebSocket))
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Stop()
	})
	return srv, ts
}

// testClient wraps a websocket connection with typed send/receive
// helpers.
type testClient struct {
	t        *testing.T
	conn     *websocket.Conn
	playerID string
	// types skipped while waiting for a specific message
	skipped []MessageType
}

func dialClient(t *testing.T, ts *httptest.Server) *testClient {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &testClient{t: t, conn: conn}
}

func (c *testClient) send(msgType MessageType, data interface{}) {
	c.t.Helper()
	msg, err := NewMessage(msgType, data)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteJSON(msg))
}

// waitFor reads until a message of the wanted type arrives, recording
// anything it skips along the way.
func (c *testClient) waitFor(msgType MessageType) *Message {
	c.t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
		var msg Message
		require.NoError(c.t, c.conn.ReadJSON(&msg))
		if msg.Type == MessageTypeError {
			var data ErrorData
			_ = json.Unmarshal(msg.Data, &data)
			c.t.Fatalf("unexpected error while waiting for %s: %s (%s)", msgType, data.Code, data.Message)
		}
		if msg.Type == msgType {
			return &msg
		}
		c.skipped = append(c.skipped, msg.Type)
	}
	c.t.Fatalf("timed out waiting for %s (skipped %v)", msgType, c.skipped)
	return nil
}

// waitForError reads until an error message arrives and asserts its code
func (c *testClient) waitForError(code string) {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var msg Message
		require.NoError(c.t, c.conn.ReadJSON(&msg))
		if msg.Type != MessageTypeError {
			continue
		}
		var data ErrorData
		require.NoError(c.t, json.Unmarshal(msg.Data, &data))
		require.Equal(c.t, code, data.Code)
		return
	}
}

func (c *testClient) auth(name string) {
	c.t.Helper()
	c.send(MessageTypeAuth, AuthData{PlayerName: name})

	var data AuthResponseData
	decode(c.t, c.waitFor(MessageTypeAuthResponse), &data)
	require.True(c.t, data.Success)
	require.NotEmpty(c.t, data.PlayerID)
	c.playerID = data.PlayerID
}

func (c *testClient) state() *engine.GameView {
	c.t.Helper()
	var data GameStateData
	decode(c.t, c.waitFor(MessageTypeGameState), &data)
	return data.View
}

// stateWhere reads state snapshots until one matches the predicate.
// Broadcasts pile up on a connection, so tests describe the snapshot
// they want instead of assuming queue order.
func (c *testClient) stateWhere(desc string, pred func(v *engine.GameView) bool) *engine.GameView {
	c.t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		view := c.state()
		if pred(view) {
			return view
		}
	}
	c.t.Fatalf("timed out waiting for snapshot: %s", desc)
	return nil
}

func decode(t *testing.T, msg *Message, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(msg.Data, v))
}

// chooseCard picks a legal play from a two-card hand: the forced
// Countess when held with a royal, otherwise the safest card that is
// not the Princess.
func chooseCard(t *testing.T, hand []deck.Card) deck.Card {
	t.Helper()
	require.Len(t, hand, 2)

	if slices.Contains(hand, deck.Countess) &&
		(slices.Contains(hand, deck.King) || slices.Contains(hand, deck.Prince)) {
		return deck.Countess
	}
	for _, c := range []deck.Card{
		deck.Handmaid, deck.Countess, deck.Priest, deck.Guard,
		deck.King, deck.Baron, deck.Prince,
	} {
		if slices.Contains(hand, c) {
			return c
		}
	}
	t.Fatalf("no playable card in %v", hand)
	return deck.None
}

func TestServerHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	srv.handleHealth(w, req)

	require.Equal(t, http.StatusOK, w.Result().StatusCode)
}

func TestServerRequiresAuth(t *testing.T) {
	_, ts := newTestServer(t)

	client := dialClient(t, ts)
	client.send(MessageTypeCreateGame, CreateGameData{MaxPlayers: 2})
	client.waitForError("not_authenticated")
}

func TestServerUnknownMessageType(t *testing.T) {
	_, ts := newTestServer(t)

	client := dialClient(t, ts)
	client.send(MessageType("shuffle_harder"), struct{}{})
	client.waitForError("unknown_message_type")
}

func TestServerGameFlow(t *testing.T) {
	_, ts := newTestServer(t)

	alice := dialClient(t, ts)
	bob := dialClient(t, ts)
	alice.auth("Alice")
	bob.auth("Bob")

	// Alice creates a lobby
	alice.send(MessageTypeCreateGame, CreateGameData{MaxPlayers: 2})
	var created GameCreatedData
	decode(t, alice.waitFor(MessageTypeGameCreated), &created)
	require.NotEmpty(t, created.GameID)
	require.Len(t, created.RoomCode, 6)

	// Bob joins by room code
	bob.send(MessageTypeJoinGame, JoinGameData{RoomCode: created.RoomCode})
	var joined GameJoinedData
	decode(t, bob.waitFor(MessageTypeGameJoined), &joined)
	require.Equal(t, created.GameID, joined.GameID)

	// A wrong code is rejected
	bob.send(MessageTypeJoinGame, JoinGameData{RoomCode: "ZZZZZZ"})
	bob.waitForError("not_found")

	// Only the host can start
	bob.send(MessageTypeStartGame, StartGameData{GameID: created.GameID})
	bob.waitForError("not_host")

	alice.send(MessageTypeStartGame, StartGameData{GameID: created.GameID})

	// Both players receive a state snapshot for the dealt round
	dealt := func(v *engine.GameView) bool { return v.Game.Status == game.StatusInProgress }
	aliceView := alice.stateWhere("round dealt", dealt)
	bobView := bob.stateWhere("round dealt", dealt)

	require.Len(t, aliceView.Hand, 1)
	require.Len(t, bobView.Hand, 1)
	require.NotNil(t, aliceView.Round)
	// 16 cards minus the set-aside and two dealt hands
	require.Equal(t, 13, aliceView.Round.DeckCount)
	require.True(t, aliceView.Round.SetAside)

	// Exactly one player has the turn
	require.NotEqual(t, aliceView.YourTurn, bobView.YourTurn)
	require.Equal(t, aliceView.Round.TurnPlayerID, bobView.Round.TurnPlayerID)

	// Each snapshot shows only its own hand; the other seat is a count
	for _, pv := range aliceView.Players {
		require.Equal(t, 1, pv.HandSize)
	}

	actor, watcher := alice, bob
	if bobView.YourTurn {
		actor, watcher = bob, alice
	}
	opponent := watcher.playerID

	// The turn player draws; the card comes back on their connection
	actor.send(MessageTypeDrawCard, DrawCardData{GameID: created.GameID})
	var drawn CardDrawnData
	decode(t, actor.waitFor(MessageTypeCardDrawn), &drawn)
	require.True(t, drawn.Card.Valid())

	// The watcher learns a card was drawn, but never which one
	watcherView := watcher.stateWhere("after draw", func(v *engine.GameView) bool {
		return v.Round != nil && v.Round.DeckCount == 12
	})
	require.Equal(t, 12, watcherView.Round.DeckCount)
	require.NotContains(t, watcher.skipped, MessageTypeCardDrawn)

	// The actor now holds two cards and plays one
	actor.send(MessageTypeGetState, GetStateData{GameID: created.GameID})
	actorView := actor.stateWhere("two-card hand", func(v *engine.GameView) bool {
		return len(v.Hand) == 2
	})

	card := chooseCard(t, actorView.Hand)
	play := PlayCardData{GameID: created.GameID, Card: card}
	if card.NeedsTarget() {
		play.TargetID = opponent
	}
	if card == deck.Guard {
		play.Guess = deck.Priest
	}
	actor.send(MessageTypePlayCard, play)

	// The resolved action reaches both players as a feed line
	var actorLine, watcherLine ActionLogData
	decode(t, actor.waitFor(MessageTypeActionLog), &actorLine)
	decode(t, watcher.waitFor(MessageTypeActionLog), &watcherLine)
	require.Contains(t, actorLine.Message, card.String())
	require.Contains(t, watcherLine.Message, card.String())

	// The play either ended the round by elimination or passed the turn
	endView := watcher.stateWhere("after play", func(v *engine.GameView) bool {
		return v.Round != nil && (v.Round.WinnerID != "" || v.YourTurn)
	})

	if endView.Round.WinnerID == "" {
		// The actor's turn is over; drawing again is out of turn
		actor.send(MessageTypeDrawCard, DrawCardData{GameID: created.GameID})
		actor.waitForError("not_your_turn")
	}
}

func TestServerStateOnDemand(t *testing.T) {
	_, ts := newTestServer(t)

	alice := dialClient(t, ts)
	alice.auth("Alice")

	alice.send(MessageTypeCreateGame, CreateGameData{MaxPlayers: 3})
	var created GameCreatedData
	decode(t, alice.waitFor(MessageTypeGameCreated), &created)

	// get_state with no game id falls back to the connection's game
	alice.send(MessageTypeGetState, GetStateData{})
	view := alice.state()

	require.Equal(t, created.GameID, view.Game.ID)
	require.Equal(t, game.StatusWaiting, view.Game.Status)
	require.Len(t, view.Players, 1)
	require.Equal(t, "Alice", view.Players[0].Name)
	require.True(t, view.Players[0].Host)
	require.Nil(t, view.Round)
}
