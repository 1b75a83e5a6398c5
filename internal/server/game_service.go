package server

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lox/loveletter/internal/engine"
	"github.com/lox/loveletter/internal/game"
)

// GameService bridges connections and the engine: it translates client
// requests into engine calls and fans engine events back out, building a
// fresh per-viewer snapshot for every recipient so secrets stay with
// their owners.
type GameService struct {
	engine *engine.Engine
	server *Server
	logger *log.Logger
}

// NewGameService creates the service and subscribes it to the engine's
// event bus.
func NewGameService(eng *engine.Engine, server *Server, logger *log.Logger) *GameService {
	svc := &GameService{
		engine: eng,
		server: server,
		logger: logger.WithPrefix("games"),
	}
	eng.Events().Subscribe(svc)
	return svc
}

// RegisterPlayer issues a player id for a display name. Identity lives
// only as long as the connection.
func (svc *GameService) RegisterPlayer(name string) string {
	return uuid.NewString()
}

// CreateGame opens a lobby hosted by the player
func (svc *GameService) CreateGame(ctx context.Context, playerID, name string, maxPlayers int) (*game.Game, error) {
	if maxPlayers == 0 {
		maxPlayers = 4
	}
	return svc.engine.CreateGame(ctx, playerID, name, maxPlayers)
}

// JoinGame seats the player by room code
func (svc *GameService) JoinGame(ctx context.Context, roomCode, playerID, name string) (*game.Game, error) {
	g, err := svc.engine.JoinGame(ctx, roomCode, playerID, name)
	if err != nil {
		return nil, err
	}
	svc.broadcastState(g.ID)
	return g, nil
}

// StartGame starts play; host only
func (svc *GameService) StartGame(ctx context.Context, gameID, playerID string) error {
	return svc.engine.StartGame(ctx, gameID, playerID)
}

// DrawCard draws the turn player's second card
func (svc *GameService) DrawCard(ctx context.Context, gameID, playerID string) (CardDrawnData, error) {
	card, err := svc.engine.DrawCard(ctx, gameID, playerID)
	if err != nil {
		return CardDrawnData{}, err
	}
	return CardDrawnData{GameID: gameID, Card: card}, nil
}

// PlayCard resolves a play
func (svc *GameService) PlayCard(ctx context.Context, playerID string, data PlayCardData) error {
	_, _, err := svc.engine.PlayCard(ctx, data.GameID, game.PlayRequest{
		PlayerID: playerID,
		Card:     data.Card,
		TargetID: data.TargetID,
		Guess:    data.Guess,
	})
	return err
}

// NextRound deals the next round; host only
func (svc *GameService) NextRound(ctx context.Context, gameID, playerID string) error {
	return svc.engine.StartNextRound(ctx, gameID, playerID)
}

// State builds the viewer's snapshot
func (svc *GameService) State(ctx context.Context, gameID, viewerID string) (*engine.GameView, error) {
	return svc.engine.View(ctx, gameID, viewerID)
}

// OnEvent implements game.Subscriber. Every event becomes a per-viewer
// state push; plays additionally carry a rendered feed line.
func (svc *GameService) OnEvent(event game.Event) {
	gameID := event.Game()
	svc.logger.Debug("Processing game event", "type", event.EventType(), "game", gameID)

	switch e := event.(type) {
	case game.ActionAppliedEvent:
		svc.broadcastAction(gameID, e.Record)
		svc.broadcastState(gameID)

	case game.RoundEndedEvent:
		data := RoundEndedData{
			GameID:   gameID,
			Round:    e.Round,
			WinnerID: e.Result.WinnerID,
			Method:   e.Result.Method,
			Showdown: e.Result.Showdown,
		}
		if msg, err := NewMessage(MessageTypeRoundEnded, data); err == nil {
			svc.server.BroadcastToGame(gameID, msg)
		}

	case game.GameEndedEvent:
		if msg, err := NewMessage(MessageTypeGameEnded, GameEndedData{
			GameID:   gameID,
			WinnerID: e.WinnerID,
		}); err == nil {
			svc.server.BroadcastToGame(gameID, msg)
		}

	default:
		svc.broadcastState(gameID)
	}
}

// broadcastState pushes a fresh snapshot to every connection in the
// game. Each viewer's snapshot is built independently, so they fan out
// in parallel.
func (svc *GameService) broadcastState(gameID string) {
	ctx := context.Background()
	var g errgroup.Group
	for _, conn := range svc.server.GameConnections(gameID) {
		g.Go(func() error {
			viewerID := conn.GetPlayer()
			view, err := svc.engine.View(ctx, gameID, viewerID)
			if err != nil {
				svc.logger.Error("Failed to build view", "game", gameID, "viewer", viewerID, "error", err)
				return nil
			}
			msg, err := NewMessage(MessageTypeGameState, GameStateData{View: view})
			if err != nil {
				svc.logger.Error("Failed to create state message", "error", err)
				return nil
			}
			if err := conn.SendMessage(msg); err != nil {
				svc.logger.Error("Failed to send state", "viewer", viewerID, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// broadcastAction sends the rendered feed line for one record, with the
// secret suffix included only for its participants.
func (svc *GameService) broadcastAction(gameID string, rec *game.ActionRecord) {
	ctx := context.Background()
	players, err := svc.engine.Players(ctx, gameID)
	if err != nil {
		svc.logger.Error("Failed to list players", "game", gameID, "error", err)
		return
	}
	names := make(map[string]string, len(players))
	for _, p := range players {
		names[p.PlayerID] = p.Name
	}
	nameFunc := func(id string) string {
		if n, ok := names[id]; ok {
			return n
		}
		return id
	}

	for _, conn := range svc.server.GameConnections(gameID) {
		viewerID := conn.GetPlayer()
		msg, err := NewMessage(MessageTypeActionLog, ActionLogData{
			GameID:  gameID,
			Round:   rec.Round,
			Message: game.FormatAction(rec, viewerID, nameFunc),
		})
		if err != nil {
			svc.logger.Error("Failed to create action message", "error", err)
			continue
		}
		if err := conn.SendMessage(msg); err != nil {
			svc.logger.Error("Failed to send action", "viewer", viewerID, "error", err)
		}
	}
}
