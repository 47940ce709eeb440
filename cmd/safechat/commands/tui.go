package commands

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"safechat/internal/app"
	"safechat/internal/domain"
	"safechat/internal/session"
)

// refreshMsg tells the model that the session mutated a store; the view
// re-reads everything, so no payload is needed.
type refreshMsg struct{}

// noticeMsg carries a non-fatal error surfaced by the session.
type noticeMsg struct{ err error }

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("247"))
	selfStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	peerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
)

type chatModel struct {
	wire    *app.Wire
	profile domain.Profile
	peer    domain.Identity

	input   textinput.Model
	notices []string
	width   int
	height  int
}

func newChatModel(wire *app.Wire, profile domain.Profile, peer domain.Identity) chatModel {
	input := textinput.New()
	input.Placeholder = "message " + peer.Username
	input.Focus()
	input.CharLimit = 2000
	return chatModel{
		wire:    wire,
		profile: profile,
		peer:    peer,
		input:   input,
	}
}

func (m chatModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(10, msg.Width-4)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				return m, nil
			}
			if _, err := m.wire.Chat.Send(text); err != nil {
				// The composed text stays in the input so nothing is lost.
				m.addNotice("send failed: " + err.Error())
				return m, nil
			}
			m.input.SetValue("")
			return m, nil
		}

	case refreshMsg:
		return m, nil

	case noticeMsg:
		m.addNotice(msg.err.Error())
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *chatModel) addNotice(line string) {
	m.notices = append(m.notices, line)
	if len(m.notices) > 3 {
		m.notices = m.notices[len(m.notices)-3:]
	}
}

func (m chatModel) connectionStatus() string {
	switch m.wire.Session.State() {
	case session.Open:
		return "connected"
	case session.Connecting:
		return "connecting..."
	default:
		return "disconnected"
	}
}

func (m chatModel) View() string {
	var b strings.Builder

	header := fmt.Sprintf("%s  %s", m.peer.Username, statusStyle.Render(m.connectionStatus()))
	b.WriteString(headerStyle.Render("safechat") + "  " + header + "\n\n")

	visible := m.wire.Conversations.Messages()
	start := 0
	if m.height > 0 {
		reserved := 6 + len(m.notices)
		if keep := m.height - reserved; keep > 0 && len(visible) > keep {
			start = len(visible) - keep
		}
	}
	for _, msg := range visible[start:] {
		style := peerStyle
		name := msg.SenderUsername
		if msg.SenderID == m.profile.Identity.ID {
			style = selfStyle
			name = m.profile.Identity.Username
		}
		if name == "" {
			name = msg.SenderID
		}
		line := style.Render(name+":") + " " + msg.Content
		if !msg.IntegrityValid {
			line += " " + warnStyle.Render("(integrity check failed)")
		}
		b.WriteString(line + "\n")
	}

	b.WriteString("\n")
	for _, n := range m.notices {
		b.WriteString(noticeStyle.Render(n) + "\n")
	}
	b.WriteString(m.input.View() + "\n")
	b.WriteString(statusStyle.Render("enter to send, esc to quit"))
	return b.String()
}
