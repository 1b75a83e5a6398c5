package server

// MessageType represents a WebSocket message type with type safety
type MessageType string

// WebSocket message type constants
// These are used for client-server communication protocol
const (
	// Client to server messages
	MessageTypeAuth       MessageType = "auth"
	MessageTypeCreateGame MessageType = "create_game"
	MessageTypeJoinGame   MessageType = "join_game"
	MessageTypeStartGame  MessageType = "start_game"
	MessageTypeDrawCard   MessageType = "draw_card"
	MessageTypePlayCard   MessageType = "play_card"
	MessageTypeNextRound  MessageType = "next_round"
	MessageTypeGetState   MessageType = "get_state"

	// Server to client messages
	MessageTypeAuthResponse MessageType = "auth_response"
	MessageTypeError        MessageType = "error"
	MessageTypeGameCreated  MessageType = "game_created"
	MessageTypeGameJoined   MessageType = "game_joined"
	MessageTypeGameState    MessageType = "game_state"
	MessageTypeCardDrawn    MessageType = "card_drawn"
	MessageTypeActionLog    MessageType = "action_log"
	MessageTypeRoundEnded   MessageType = "round_ended"
	MessageTypeGameEnded    MessageType = "game_ended"
)

// String returns the string representation of the message type
func (mt MessageType) String() string {
	return string(mt)
}
