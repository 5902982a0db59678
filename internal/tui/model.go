// Package tui is the terminal chat client. It drives a local conversation
// session and renders it with the presentation package.
package tui

import (
	"errors"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"yojana-backend/internal/conversation"
	"yojana-backend/internal/models"
	"yojana-backend/internal/presentation"
)

var (
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	refineStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
)

const helpText = "enter send · tab refine mode · 1-9 open scheme · pgup/pgdn scroll · ctrl+c quit"

type Model struct {
	session *conversation.Session
	updates *Updates

	viewport viewport.Model
	input    textinput.Model

	lock    *presentation.ScrollLock
	overlay *presentation.Overlay

	view     presentation.View
	refine   bool
	width    int
	height   int
	msgCount int
}

func New(session *conversation.Session, updates *Updates) Model {
	ti := textinput.New()
	ti.Placeholder = "Ask about schemes, e.g. loans for a dairy farm in Punjab"
	ti.CharLimit = 500
	ti.Focus()

	lock := presentation.NewScrollLock()
	m := Model{
		session:  session,
		updates:  updates,
		viewport: viewport.New(80, 20),
		input:    ti,
		lock:     lock,
		overlay:  presentation.NewOverlay(lock),
		width:    80,
		height:   24,
	}
	m.refresh()
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.updates.wait())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg), nil

	case changedMsg:
		m.refresh()
		return m, m.updates.wait()

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		if m.lock.Locked() {
			return m, nil
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleResize(msg tea.WindowSizeMsg) Model {
	m.width, m.height = msg.Width, msg.Height
	m.viewport.Width = msg.Width
	m.viewport.Height = max(msg.Height-4, 3)
	m.input.Width = max(msg.Width-4, 10)
	m.msgCount = 0
	m.refresh()
	return m
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		m.lock.ReleaseAll()
		m.session.Close()
		return m, tea.Quit
	}

	if m.overlay.IsOpen() {
		switch msg.String() {
		case "esc", "q", "enter":
			m.overlay.Close()
		}
		return m, nil
	}

	switch msg.Type {
	case tea.KeyEnter:
		return m.submit(), nil
	case tea.KeyTab:
		m.refine = !m.refine
		return m, nil
	case tea.KeyPgUp, tea.KeyPgDown, tea.KeyCtrlU, tea.KeyCtrlD:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	if m.input.Value() == "" && msg.Type == tea.KeyRunes && len(msg.Runes) == 1 {
		if r := msg.Runes[0]; r >= '1' && r <= '9' {
			if card, ok := m.latestCard(int(r - '1')); ok {
				m.overlay.Open(card)
				return m, nil
			}
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.session.SetInput(m.input.Value())
	return m, cmd
}

func (m Model) submit() Model {
	send := m.session.Submit
	if m.refine {
		send = m.session.Refine
	}

	err := send(m.input.Value())
	if errors.Is(err, conversation.ErrRequestPending) {
		return m
	}
	m.input.Reset()
	m.refine = false
	m.refresh()
	return m
}

// latestCard returns card i of the most recent reply carrying schemes.
func (m Model) latestCard(i int) (presentation.SchemeCard, bool) {
	for j := len(m.view.Messages) - 1; j >= 0; j-- {
		cards := m.view.Messages[j].Cards
		if m.view.Messages[j].Role != models.RoleAI || len(cards) == 0 {
			continue
		}
		if i < len(cards) {
			return cards[i], true
		}
		return presentation.SchemeCard{}, false
	}
	return presentation.SchemeCard{}, false
}

func (m *Model) refresh() {
	m.view = presentation.BuildView(m.session.Snapshot())
	m.viewport.SetContent(presentation.RenderMessages(m.view, m.width))
	if n := len(m.view.Messages); n != m.msgCount || m.view.Loading {
		m.msgCount = n
		m.viewport.GotoBottom()
	}
}

func (m Model) View() string {
	if card, ok := m.overlay.Card(); ok {
		return presentation.RenderOverlay(card, m.width)
	}

	prompt := m.input.View()
	if m.refine {
		prompt = refineStyle.Render("refine ") + prompt
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.viewport.View(),
		prompt,
		helpStyle.Render(helpText),
	)
}
