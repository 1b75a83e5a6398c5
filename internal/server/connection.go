package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/loveletter/internal/game"
	"github.com/lox/loveletter/internal/store"
)

// Connection represents a WebSocket connection to a client
type Connection struct {
	conn        *websocket.Conn
	send        chan *Message
	playerID    string
	playerName  string
	gameID      string
	logger      *log.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	mu          sync.RWMutex
	closeOnce   sync.Once
	gameService *GameService
}

// NewConnection creates a new connection wrapper
func NewConnection(conn *websocket.Conn, logger *log.Logger, gameService *GameService) *Connection {
	ctx, cancel := context.WithCancel(context.Background())

	return &Connection{
		conn:        conn,
		send:        make(chan *Message, 256),
		logger:      logger.WithPrefix("conn"),
		ctx:         ctx,
		cancel:      cancel,
		gameService: gameService,
	}
}

// Start begins handling the connection
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Close closes the connection
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.send)
		err = c.conn.Close()
	})
	return err
}

// SendMessage sends a message to the client
func (c *Connection) SendMessage(msg *Message) error {
	defer func() {
		if r := recover(); r != nil {
			// Channel was closed, this is expected during shutdown
			c.logger.Debug("Attempted to send message on closed connection", "error", r)
		}
	}()

	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		c.logger.Warn("Connection send buffer full, closing connection")
		_ = c.Close()
		return ErrConnectionClosed
	}
}

// SetPlayer associates this connection with a player
func (c *Connection) SetPlayer(playerID, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playerID = playerID
	c.playerName = name
}

// GetPlayer returns the associated player ID
func (c *Connection) GetPlayer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.playerID
}

// GetPlayerName returns the associated display name
func (c *Connection) GetPlayerName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.playerName
}

// SetGame associates this connection with a game
func (c *Connection) SetGame(gameID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gameID = gameID
}

// GetGame returns the associated game ID
func (c *Connection) GetGame() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gameID
}

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192
)

var (
	ErrConnectionClosed = websocket.ErrCloseSent
)

// readPump handles incoming messages from the client
func (c *Connection) readPump() {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		var msg Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			break
		}

		c.handleMessage(&msg)
	}
}

// writePump handles outgoing messages to the client
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// handleMessage processes incoming messages from the client
func (c *Connection) handleMessage(msg *Message) {
	c.logger.Debug("Received message", "type", msg.Type, "player", c.GetPlayer())

	switch msg.Type {
	case MessageTypeAuth:
		var data AuthData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse auth data")
			return
		}
		c.handleAuth(data)

	case MessageTypeCreateGame:
		var data CreateGameData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse create game data")
			return
		}
		c.handleCreateGame(data)

	case MessageTypeJoinGame:
		var data JoinGameData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse join game data")
			return
		}
		c.handleJoinGame(data)

	case MessageTypeStartGame:
		var data StartGameData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse start game data")
			return
		}
		c.handleStartGame(data)

	case MessageTypeDrawCard:
		var data DrawCardData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse draw card data")
			return
		}
		c.handleDrawCard(data)

	case MessageTypePlayCard:
		var data PlayCardData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse play card data")
			return
		}
		c.handlePlayCard(data)

	case MessageTypeNextRound:
		var data NextRoundData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse next round data")
			return
		}
		c.handleNextRound(data)

	case MessageTypeGetState:
		var data GetStateData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse get state data")
			return
		}
		c.handleGetState(data)

	default:
		c.sendError("unknown_message_type", "Unknown message type: "+msg.Type.String())
	}
}

// sendError sends an error message to the client
func (c *Connection) sendError(code, message string) {
	errorMsg, err := NewMessage(MessageTypeError, ErrorData{
		Code:    code,
		Message: message,
	})
	if err != nil {
		c.logger.Error("Failed to create error message", "error", err)
		return
	}

	_ = c.SendMessage(errorMsg)
}

// sendGameError maps engine errors onto protocol error codes
func (c *Connection) sendGameError(err error) {
	code := "request_failed"
	switch {
	case errors.Is(err, game.ErrNotYourTurn):
		code = "not_your_turn"
	case errors.Is(err, game.ErrMustDrawFirst):
		code = "must_draw_first"
	case errors.Is(err, game.ErrCountessForced):
		code = "countess_forced"
	case errors.Is(err, game.ErrCardNotInHand):
		code = "card_not_in_hand"
	case errors.Is(err, game.ErrInvalidTarget):
		code = "invalid_target"
	case errors.Is(err, game.ErrInvalidGuess):
		code = "invalid_guess"
	case errors.Is(err, game.ErrAlreadyDrawn):
		code = "already_drawn"
	case errors.Is(err, game.ErrDeckEmpty):
		code = "deck_empty"
	case errors.Is(err, game.ErrNotHost):
		code = "not_host"
	case errors.Is(err, game.ErrGameFull):
		code = "game_full"
	case errors.Is(err, game.ErrGameNotWaiting), errors.Is(err, game.ErrGameNotInProgress):
		code = "wrong_game_state"
	case errors.Is(err, game.ErrRoundOver):
		code = "wrong_round_state"
	case errors.Is(err, game.ErrNoPreviousWinner):
		code = "no_previous_winner"
	case errors.Is(err, store.ErrNotFound):
		code = "not_found"
	}
	c.sendError(code, err.Error())
}

func (c *Connection) requirePlayer() (string, bool) {
	if c.gameService == nil {
		c.sendError("service_unavailable", "Game service not available")
		return "", false
	}
	playerID := c.GetPlayer()
	if playerID == "" {
		c.sendError("not_authenticated", "Must authenticate first")
		return "", false
	}
	return playerID, true
}

func (c *Connection) handleAuth(data AuthData) {
	c.logger.Info("Auth request", "playerName", data.PlayerName)

	if data.PlayerName == "" {
		c.sendError("invalid_auth", "Player name required")
		return
	}
	if c.gameService == nil {
		c.sendError("service_unavailable", "Game service not available")
		return
	}

	playerID := c.gameService.RegisterPlayer(data.PlayerName)
	c.SetPlayer(playerID, data.PlayerName)

	response, _ := NewMessage(MessageTypeAuthResponse, AuthResponseData{
		Success:    true,
		PlayerID:   playerID,
		PlayerName: data.PlayerName,
	})
	_ = c.SendMessage(response)
}

func (c *Connection) handleCreateGame(data CreateGameData) {
	playerID, ok := c.requirePlayer()
	if !ok {
		return
	}
	c.logger.Info("Create game request", "player", c.GetPlayerName(), "maxPlayers", data.MaxPlayers)

	g, err := c.gameService.CreateGame(c.ctx, playerID, c.GetPlayerName(), data.MaxPlayers)
	if err != nil {
		c.sendGameError(err)
		return
	}
	c.SetGame(g.ID)

	response, _ := NewMessage(MessageTypeGameCreated, GameCreatedData{
		GameID:   g.ID,
		RoomCode: g.RoomCode,
	})
	_ = c.SendMessage(response)
}

func (c *Connection) handleJoinGame(data JoinGameData) {
	playerID, ok := c.requirePlayer()
	if !ok {
		return
	}
	c.logger.Info("Join game request", "roomCode", data.RoomCode, "player", c.GetPlayerName())

	g, err := c.gameService.JoinGame(c.ctx, data.RoomCode, playerID, c.GetPlayerName())
	if err != nil {
		c.sendGameError(err)
		return
	}
	c.SetGame(g.ID)

	response, _ := NewMessage(MessageTypeGameJoined, GameJoinedData{
		GameID:   g.ID,
		RoomCode: g.RoomCode,
	})
	_ = c.SendMessage(response)
}

func (c *Connection) handleStartGame(data StartGameData) {
	playerID, ok := c.requirePlayer()
	if !ok {
		return
	}
	if err := c.gameService.StartGame(c.ctx, data.GameID, playerID); err != nil {
		c.sendGameError(err)
	}
	// No response needed - the engine publishes the round start
}

func (c *Connection) handleDrawCard(data DrawCardData) {
	playerID, ok := c.requirePlayer()
	if !ok {
		return
	}
	drawn, err := c.gameService.DrawCard(c.ctx, data.GameID, playerID)
	if err != nil {
		c.sendGameError(err)
		return
	}

	// The drawn card goes back to this connection only.
	response, _ := NewMessage(MessageTypeCardDrawn, drawn)
	_ = c.SendMessage(response)
}

func (c *Connection) handlePlayCard(data PlayCardData) {
	playerID, ok := c.requirePlayer()
	if !ok {
		return
	}
	if err := c.gameService.PlayCard(c.ctx, playerID, data); err != nil {
		c.sendGameError(err)
	}
	// No response needed - the engine publishes the resolved action
}

func (c *Connection) handleNextRound(data NextRoundData) {
	playerID, ok := c.requirePlayer()
	if !ok {
		return
	}
	if err := c.gameService.NextRound(c.ctx, data.GameID, playerID); err != nil {
		c.sendGameError(err)
	}
}

func (c *Connection) handleGetState(data GetStateData) {
	playerID, ok := c.requirePlayer()
	if !ok {
		return
	}
	gameID := data.GameID
	if gameID == "" {
		gameID = c.GetGame()
	}

	view, err := c.gameService.State(c.ctx, gameID, playerID)
	if err != nil {
		c.sendGameError(err)
		return
	}

	response, _ := NewMessage(MessageTypeGameState, GameStateData{View: view})
	_ = c.SendMessage(response)
}
