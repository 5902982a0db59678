package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"yojana-backend/internal/models"
)

// Updates is a conversation.Publisher that wakes the terminal model whenever
// the conversation changes. Bursts collapse into one wake-up because the
// model re-reads the whole snapshot.
type Updates struct {
	ch chan struct{}
}

func NewUpdates() *Updates {
	return &Updates{ch: make(chan struct{}, 1)}
}

func (u *Updates) Publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage) {
	select {
	case u.ch <- struct{}{}:
	default:
	}
}

type changedMsg struct{}

func (u *Updates) wait() tea.Cmd {
	return func() tea.Msg {
		<-u.ch
		return changedMsg{}
	}
}
