// Package presentation derives what the user sees from a conversation
// snapshot. Nothing here mutates conversation state.
package presentation

import (
	"strings"

	"yojana-backend/internal/conversation"
	"yojana-backend/internal/models"
)

// SummaryLength is the rune budget of a card's description preview.
const SummaryLength = 150

type View struct {
	Messages     []MessageView `json:"messages"`
	Loading      bool          `json:"loading"`
	InputEnabled bool          `json:"input_enabled"`
	Input        string        `json:"input"`
	Phase        string        `json:"phase"`
}

type MessageView struct {
	ID    int64        `json:"id"`
	Role  models.Role  `json:"role"`
	Text  string       `json:"text"`
	Cards []SchemeCard `json:"cards,omitempty"`
}

// DetailRow is one labelled section of the scheme overlay.
type DetailRow struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type SchemeCard struct {
	Name    string              `json:"name"`
	Reason  string              `json:"reason"`
	Link    string              `json:"link"`
	Level   string              `json:"level,omitempty"`
	State   string              `json:"state,omitempty"`
	Tags    []string            `json:"tags,omitempty"`
	Links   []models.SchemeLink `json:"links"`
	Summary string              `json:"summary,omitempty"`
	Details []DetailRow         `json:"details,omitempty"`
}

func BuildView(st conversation.State) View {
	v := View{
		Messages:     make([]MessageView, 0, len(st.Messages)),
		Loading:      st.Phase == conversation.PhasePending,
		InputEnabled: st.Idle(),
		Input:        st.Input,
		Phase:        st.Phase.String(),
	}
	for _, m := range st.Messages {
		mv := MessageView{ID: m.ID, Role: m.Role, Text: m.Text}
		for _, s := range m.Schemes {
			mv.Cards = append(mv.Cards, NewSchemeCard(s))
		}
		v.Messages = append(v.Messages, mv)
	}
	return v
}

func NewSchemeCard(s models.Scheme) SchemeCard {
	links := s.ParsedLinks
	if links == nil {
		links = []models.SchemeLink{}
	}
	card := SchemeCard{
		Name:    s.Name,
		Reason:  s.Reason,
		Link:    s.Link,
		Level:   s.Level,
		State:   s.State,
		Tags:    s.Tags,
		Links:   links,
		Summary: Summarize(s.Description, SummaryLength),
	}

	for _, row := range []DetailRow{
		{"Description", s.Description},
		{"Department", s.Department},
		{"Agency", s.Agency},
		{"Category", s.Category},
		{"Beneficiaries", s.Beneficiaries},
		{"Age", s.AgeText},
		{"Benefit type", s.BenefitType},
		{"Benefits", s.Benefits},
		{"Eligibility", s.Eligibility},
		{"Exclusions", s.Exclusions},
		{"Application process", s.ApplicationProcess},
	} {
		row.Value = strings.TrimSpace(row.Value)
		if row.Value != "" {
			card.Details = append(card.Details, row)
		}
	}
	return card
}

// Summarize cuts text to n runes and marks the cut with "...".
func Summarize(text string, n int) string {
	text = strings.TrimSpace(text)
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return strings.TrimRight(string(r[:n]), " ") + "..."
}
