// Package tui implements the interactive terminal client: a Bubble Tea
// program that speaks the WebSocket protocol and renders one player's
// view of a game.
package tui

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/muesli/termenv"

	"github.com/lox/loveletter/internal/deck"
	"github.com/lox/loveletter/internal/engine"
	"github.com/lox/loveletter/internal/server"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF5FAF"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C6C6C"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F"))
	cardStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD700")).Bold(true)
	turnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#5FD7FF")).Bold(true)
	borderStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// Model is the Bubble Tea model for the client
type Model struct {
	logger     *log.Logger
	serverURL  string
	playerName string

	conn *websocket.Conn

	logViewport viewport.Model
	input       textinput.Model

	gameLog []string

	playerID string
	gameID   string
	roomCode string
	view     *engine.GameView
	lastCard deck.Card

	width       int
	height      int
	initialized bool
	quitting    bool
	plain       bool
}

// Incoming protocol traffic and connection state become Bubble Tea
// messages.
type (
	connectedMsg struct{ conn *websocket.Conn }
	serverMsg    struct{ msg *server.Message }
	connErrMsg   struct{ err error }
)

// NewModel creates a client model. The connection is dialed from Init.
func NewModel(logger *log.Logger, serverURL, playerName string) *Model {
	vp := viewport.New(10, 5)
	vp.SetContent("")

	ti := textinput.New()
	ti.Placeholder = "create | join CODE | start | draw | play CARD [target] [guess] | next | quit"
	ti.Focus()
	ti.CharLimit = 100
	ti.Width = 80
	ti.PromptStyle = labelStyle
	ti.Prompt = "> "

	return &Model{
		logger:      logger.WithPrefix("tui"),
		serverURL:   serverURL,
		playerName:  playerName,
		logViewport: vp,
		input:       ti,
		// Monochrome terminals get unstyled output.
		plain: termenv.ColorProfile() == termenv.Ascii,
	}
}

// Init dials the server
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.connect())
}

func (m *Model) connect() tea.Cmd {
	return func() tea.Msg {
		conn, _, err := websocket.DefaultDialer.Dial(m.serverURL, nil)
		if err != nil {
			return connErrMsg{err: fmt.Errorf("connect to %s: %w", m.serverURL, err)}
		}
		return connectedMsg{conn: conn}
	}
}

// readNext blocks on the socket and surfaces one message
func (m *Model) readNext() tea.Cmd {
	conn := m.conn
	return func() tea.Msg {
		var msg server.Message
		if err := conn.ReadJSON(&msg); err != nil {
			return connErrMsg{err: err}
		}
		return serverMsg{msg: &msg}
	}
}

func (m *Model) send(msgType server.MessageType, data interface{}) {
	if m.conn == nil {
		m.appendLog(errorStyle.Render("Not connected"))
		return
	}
	msg, err := server.NewMessage(msgType, data)
	if err != nil {
		m.appendLog(errorStyle.Render("Failed to encode message: " + err.Error()))
		return
	}
	if err := m.conn.WriteJSON(msg); err != nil {
		m.appendLog(errorStyle.Render("Failed to send: " + err.Error()))
	}
}

// Update handles Bubble Tea messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.logViewport.Width = msg.Width - 30
		m.logViewport.Height = msg.Height - 6
		m.input.Width = msg.Width - 4
		m.initialized = true
		m.refreshLog()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			if m.conn != nil {
				_ = m.conn.Close()
			}
			return m, tea.Quit
		case tea.KeyEnter:
			line := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			if line == "" {
				return m, nil
			}
			return m.handleCommand(line)
		}

	case connectedMsg:
		m.conn = msg.conn
		m.appendLog(labelStyle.Render("Connected to " + m.serverURL))
		m.send(server.MessageTypeAuth, server.AuthData{PlayerName: m.playerName})
		return m, m.readNext()

	case serverMsg:
		m.handleServerMessage(msg.msg)
		return m, m.readNext()

	case connErrMsg:
		if m.quitting {
			return m, tea.Quit
		}
		m.appendLog(errorStyle.Render("Connection lost: " + msg.err.Error()))
		m.conn = nil
		return m, nil
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.logViewport, cmd = m.logViewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// handleCommand parses one input line into a protocol request
func (m *Model) handleCommand(line string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(line)
	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	switch cmd {
	case "quit", "exit":
		m.quitting = true
		if m.conn != nil {
			_ = m.conn.Close()
		}
		return m, tea.Quit

	case "help":
		m.appendLog(dimStyle.Render("Commands: create [players] | join CODE | start | draw | play CARD [target] [guess] | next | state | quit"))

	case "create":
		maxPlayers := 4
		if len(args) > 0 {
			_, _ = fmt.Sscanf(args[0], "%d", &maxPlayers)
		}
		m.send(server.MessageTypeCreateGame, server.CreateGameData{MaxPlayers: maxPlayers})

	case "join":
		if len(args) != 1 {
			m.appendLog(errorStyle.Render("Usage: join CODE"))
			break
		}
		m.send(server.MessageTypeJoinGame, server.JoinGameData{RoomCode: strings.ToUpper(args[0])})

	case "start":
		m.send(server.MessageTypeStartGame, server.StartGameData{GameID: m.gameID})

	case "draw":
		m.send(server.MessageTypeDrawCard, server.DrawCardData{GameID: m.gameID})

	case "play":
		m.handlePlay(args)

	case "next":
		m.send(server.MessageTypeNextRound, server.NextRoundData{GameID: m.gameID})

	case "state":
		m.send(server.MessageTypeGetState, server.GetStateData{GameID: m.gameID})

	default:
		m.appendLog(errorStyle.Render("Unknown command: " + cmd + " (try help)"))
	}
	return m, nil
}

func (m *Model) handlePlay(args []string) {
	if len(args) == 0 {
		m.appendLog(errorStyle.Render("Usage: play CARD [target] [guess]"))
		return
	}

	card, err := deck.Parse(args[0])
	if err != nil {
		m.appendLog(errorStyle.Render("Unknown card: " + args[0]))
		return
	}

	req := server.PlayCardData{GameID: m.gameID, Card: card}

	if len(args) > 1 {
		if strings.EqualFold(args[1], "me") || strings.EqualFold(args[1], "self") {
			req.TargetID = m.playerID
		} else if id := m.playerByName(args[1]); id != "" {
			req.TargetID = id
		} else {
			m.appendLog(errorStyle.Render("Unknown player: " + args[1]))
			return
		}
	}

	if len(args) > 2 {
		guess, err := deck.Parse(args[2])
		if err != nil {
			m.appendLog(errorStyle.Render("Unknown card: " + args[2]))
			return
		}
		req.Guess = guess
	}

	m.send(server.MessageTypePlayCard, req)
}

func (m *Model) playerByName(name string) string {
	if m.view == nil {
		return ""
	}
	for _, p := range m.view.Players {
		if strings.EqualFold(p.Name, name) {
			return p.PlayerID
		}
	}
	return ""
}

// handleServerMessage folds one protocol message into the model
func (m *Model) handleServerMessage(msg *server.Message) {
	switch msg.Type {
	case server.MessageTypeAuthResponse:
		var data server.AuthResponseData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return
		}
		m.playerID = data.PlayerID
		m.appendLog(labelStyle.Render("Playing as " + data.PlayerName))

	case server.MessageTypeGameCreated:
		var data server.GameCreatedData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return
		}
		m.gameID = data.GameID
		m.roomCode = data.RoomCode
		m.appendLog(labelStyle.Render("Game created! Room code: ") + titleStyle.Render(data.RoomCode))
		m.send(server.MessageTypeGetState, server.GetStateData{GameID: m.gameID})

	case server.MessageTypeGameJoined:
		var data server.GameJoinedData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return
		}
		m.gameID = data.GameID
		m.roomCode = data.RoomCode
		m.appendLog(labelStyle.Render("Joined game " + data.RoomCode))

	case server.MessageTypeGameState:
		var data server.GameStateData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return
		}
		m.view = data.View
		if m.view != nil && m.view.YourTurn && len(m.view.Hand) == 1 {
			m.appendLog(turnStyle.Render("Your turn! Type draw to pick up a card."))
		}

	case server.MessageTypeCardDrawn:
		var data server.CardDrawnData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return
		}
		m.lastCard = data.Card
		m.appendLog("You drew " + cardStyle.Render(data.Card.String()))

	case server.MessageTypeActionLog:
		var data server.ActionLogData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return
		}
		m.appendLog(data.Message)

	case server.MessageTypeRoundEnded:
		var data server.RoundEndedData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return
		}
		m.appendLog(titleStyle.Render(fmt.Sprintf("Round %d over!", data.Round)))
		if len(data.Showdown) > 0 {
			for id, entry := range data.Showdown {
				m.appendLog(dimStyle.Render(fmt.Sprintf("  %s showed a %d (discards %d)",
					m.nameFor(id), entry.Card, entry.DiscardSum)))
			}
		}

	case server.MessageTypeGameEnded:
		var data server.GameEndedData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return
		}
		m.appendLog(titleStyle.Render(m.nameFor(data.WinnerID) + " wins the game!"))

	case server.MessageTypeError:
		var data server.ErrorData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return
		}
		m.appendLog(errorStyle.Render(data.Message))
	}
}

func (m *Model) nameFor(playerID string) string {
	if playerID == m.playerID {
		return "You"
	}
	if m.view != nil {
		for _, p := range m.view.Players {
			if p.PlayerID == playerID {
				return p.Name
			}
		}
	}
	return playerID
}

func (m *Model) appendLog(line string) {
	if m.plain {
		// Styles carry escape codes a dumb terminal cannot render.
		line = stripANSI(line)
	}
	m.gameLog = append(m.gameLog, line)
	m.refreshLog()
}

func (m *Model) refreshLog() {
	m.logViewport.SetContent(strings.Join(m.gameLog, "\n"))
	m.logViewport.GotoBottom()
}

// View renders the client
func (m *Model) View() string {
	if m.quitting {
		return "Thanks for playing!\n"
	}
	if !m.initialized {
		return "Loading..."
	}

	sidebar := m.renderSidebar()
	logPane := borderStyle.Width(m.logViewport.Width).Render(m.logViewport.View())
	main := lipgloss.JoinHorizontal(lipgloss.Top, logPane, sidebar)

	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(" Love Letter "),
		main,
		m.input.View(),
	)
}

func (m *Model) renderSidebar() string {
	var b strings.Builder

	if m.roomCode != "" {
		b.WriteString(labelStyle.Render("Room ") + titleStyle.Render(m.roomCode) + "\n\n")
	}

	if m.view == nil {
		b.WriteString(dimStyle.Render("No game yet.\n\ncreate or join CODE"))
		return borderStyle.Width(24).Render(b.String())
	}

	for _, p := range m.view.Players {
		name := p.Name
		if p.PlayerID == m.playerID {
			name += " (you)"
		}
		marker := "  "
		if m.view.Round != nil && m.view.Round.TurnPlayerID == p.PlayerID {
			marker = turnStyle.Render("> ")
		}
		line := fmt.Sprintf("%s%s", marker, name)
		if p.Eliminated {
			line = dimStyle.Render(line + " ✗")
		} else if p.Protected {
			line += " 🛡"
		}
		b.WriteString(line + "\n")
		b.WriteString(dimStyle.Render(fmt.Sprintf("   tokens: %d", p.Tokens)) + "\n")
	}

	if m.view.Round != nil {
		b.WriteString("\n")
		b.WriteString(labelStyle.Render(fmt.Sprintf("Round %d", m.view.Round.Number)) + "\n")
		b.WriteString(dimStyle.Render(fmt.Sprintf("Deck: %d cards", m.view.Round.DeckCount)) + "\n")
		if n := len(m.view.Round.Discard); n > 0 {
			top := m.view.Round.Discard[n-1]
			b.WriteString(dimStyle.Render("Last played: "+top.String()) + "\n")
		}
	}

	if len(m.view.Hand) > 0 {
		b.WriteString("\n" + labelStyle.Render("Hand:") + "\n")
		for _, c := range m.view.Hand {
			b.WriteString("  " + cardStyle.Render(fmt.Sprintf("%s (%d)", c, c.Value())) + "\n")
		}
	}

	return borderStyle.Width(24).Render(b.String())
}

// stripANSI removes escape sequences for monochrome terminals
func stripANSI(s string) string {
	var b strings.Builder
	inEscape := false
	for _, r := range s {
		switch {
		case inEscape:
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
				inEscape = false
			}
		case r == '\x1b':
			inEscape = true
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
