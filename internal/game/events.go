package game

import (
	"sync"
	"time"
)

// EventType identifies a game event
type EventType string

const (
	EventTypeRoundStarted  EventType = "round_started"
	EventTypeCardDrawn     EventType = "card_drawn"
	EventTypeActionApplied EventType = "action_applied"
	EventTypeRoundEnded    EventType = "round_ended"
	EventTypeGameEnded     EventType = "game_ended"
)

// String returns the string representation of the event type
func (et EventType) String() string { return string(et) }

// Event is anything published after a successful commit. The engine
// never pushes state to clients itself; it emits events and the host
// decides how to propagate them.
type Event interface {
	EventType() EventType
	Game() string
	Timestamp() time.Time
}

type baseEvent struct {
	gameID    string
	timestamp time.Time
}

func (e baseEvent) Game() string         { return e.gameID }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// RoundStartedEvent is published when a round has been dealt
type RoundStartedEvent struct {
	baseEvent
	Round        int
	TurnPlayerID string
}

func (RoundStartedEvent) EventType() EventType { return EventTypeRoundStarted }

// NewRoundStartedEvent creates a round started event
func NewRoundStartedEvent(gameID string, at time.Time, round int, turnPlayerID string) RoundStartedEvent {
	return RoundStartedEvent{
		baseEvent:    baseEvent{gameID: gameID, timestamp: at},
		Round:        round,
		TurnPlayerID: turnPlayerID,
	}
}

// CardDrawnEvent is published when the turn player draws. The card
// itself is not on the event; only the drawing player may learn it.
type CardDrawnEvent struct {
	baseEvent
	Round    int
	PlayerID string
}

func (CardDrawnEvent) EventType() EventType { return EventTypeCardDrawn }

// NewCardDrawnEvent creates a card drawn event
func NewCardDrawnEvent(gameID string, at time.Time, round int, playerID string) CardDrawnEvent {
	return CardDrawnEvent{
		baseEvent: baseEvent{gameID: gameID, timestamp: at},
		Round:     round,
		PlayerID:  playerID,
	}
}

// ActionAppliedEvent is published for every resolved play
type ActionAppliedEvent struct {
	baseEvent
	Record *ActionRecord
}

func (ActionAppliedEvent) EventType() EventType { return EventTypeActionApplied }

// NewActionAppliedEvent creates an action applied event
func NewActionAppliedEvent(gameID string, at time.Time, record *ActionRecord) ActionAppliedEvent {
	return ActionAppliedEvent{
		baseEvent: baseEvent{gameID: gameID, timestamp: at},
		Record:    record,
	}
}

// RoundEndedEvent is published when a round resolves
type RoundEndedEvent struct {
	baseEvent
	Round  int
	Result *RoundResult
}

func (RoundEndedEvent) EventType() EventType { return EventTypeRoundEnded }

// NewRoundEndedEvent creates a round ended event
func NewRoundEndedEvent(gameID string, at time.Time, round int, result *RoundResult) RoundEndedEvent {
	return RoundEndedEvent{
		baseEvent: baseEvent{gameID: gameID, timestamp: at},
		Round:     round,
		Result:    result,
	}
}

// GameEndedEvent is published when a player reaches the token threshold
type GameEndedEvent struct {
	baseEvent
	WinnerID string
}

func (GameEndedEvent) EventType() EventType { return EventTypeGameEnded }

// NewGameEndedEvent creates a game ended event
func NewGameEndedEvent(gameID string, at time.Time, winnerID string) GameEndedEvent {
	return GameEndedEvent{
		baseEvent: baseEvent{gameID: gameID, timestamp: at},
		WinnerID:  winnerID,
	}
}

// Subscriber receives game events
type Subscriber interface {
	OnEvent(event Event)
}

// EventBus fans events out to subscribers. Delivery is synchronous and
// in subscription order.
type EventBus struct {
	mu          sync.RWMutex
	subscribers []Subscriber
}

// NewEventBus creates an empty bus
func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe adds a subscriber
func (b *EventBus) Subscribe(s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, s)
}

// Unsubscribe removes a subscriber
func (b *EventBus) Unsubscribe(s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subscribers {
		if sub == s {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			return
		}
	}
}

// Publish delivers an event to every subscriber
func (b *EventBus) Publish(event Event) {
	b.mu.RLock()
	subs := make([]Subscriber, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.RUnlock()

	for _, s := range subs {
		s.OnEvent(event)
	}
}
