package server

import (
	"encoding/json"
	"time"

	"github.com/lox/loveletter/internal/deck"
	"github.com/lox/loveletter/internal/engine"
	"github.com/lox/loveletter/internal/game"
)

// Message represents the base WebSocket message structure
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"requestId,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(messageType MessageType, data interface{}) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// Client → Server Messages

type AuthData struct {
	PlayerName string `json:"playerName"`
}

type CreateGameData struct {
	MaxPlayers int `json:"maxPlayers"`
}

type JoinGameData struct {
	RoomCode string `json:"roomCode"`
}

type StartGameData struct {
	GameID string `json:"gameId"`
}

type DrawCardData struct {
	GameID string `json:"gameId"`
}

type PlayCardData struct {
	GameID   string    `json:"gameId"`
	Card     deck.Card `json:"card"`
	TargetID string    `json:"targetPlayerId,omitempty"`
	Guess    deck.Card `json:"guessCard,omitempty"`
}

type NextRoundData struct {
	GameID string `json:"gameId"`
}

type GetStateData struct {
	GameID string `json:"gameId"`
}

// Server → Client Messages

type AuthResponseData struct {
	Success    bool   `json:"success"`
	PlayerID   string `json:"playerId,omitempty"`
	PlayerName string `json:"playerName,omitempty"`
	Error      string `json:"error,omitempty"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type GameCreatedData struct {
	GameID   string `json:"gameId"`
	RoomCode string `json:"roomCode"`
}

type GameJoinedData struct {
	GameID   string `json:"gameId"`
	RoomCode string `json:"roomCode"`
}

// GameStateData carries one viewer's snapshot. The view is built per
// recipient so a hand or a revealed card never crosses to the wrong
// connection.
type GameStateData struct {
	View *engine.GameView `json:"view"`
}

type CardDrawnData struct {
	GameID string    `json:"gameId"`
	Card   deck.Card `json:"card"`
}

// ActionLogData is one rendered feed line, already redacted for the
// recipient.
type ActionLogData struct {
	GameID  string `json:"gameId"`
	Round   int    `json:"round"`
	Message string `json:"message"`
}

type RoundEndedData struct {
	GameID   string                        `json:"gameId"`
	Round    int                           `json:"round"`
	WinnerID string                        `json:"winnerId"`
	Method   game.WinMethod                `json:"method"`
	Showdown map[string]game.ShowdownEntry `json:"showdown,omitempty"`
}

type GameEndedData struct {
	GameID   string `json:"gameId"`
	WinnerID string `json:"winnerId"`
}
