package presentation

import (
	"html"
	"strconv"
	"strings"
	"unicode"

	"github.com/charmbracelet/lipgloss"
	"github.com/microcosm-cc/bluemonday"

	"yojana-backend/internal/models"
)

var (
	aiStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("63")).
		Padding(0, 1)

	userStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("42")).
		Padding(0, 1)

	cardStyle = lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1).
		MarginLeft(2)

	overlayStyle = lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(lipgloss.Color("205")).
		Padding(1, 2)

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

var (
	breakReplacer = strings.NewReplacer("<br>", "\n", "<br/>", "\n", "<br />", "\n")
	stripPolicy   = bluemonday.StrictPolicy()
)

// PlainText turns message markup into terminal text. Tags are stripped and
// control characters other than newline and tab are dropped so upstream text
// cannot emit terminal escape sequences.
func PlainText(s string) string {
	return stripControl(html.UnescapeString(stripPolicy.Sanitize(breakReplacer.Replace(s))))
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

// RenderMessages lays out the whole chat for a terminal of the given width.
func RenderMessages(v View, width int) string {
	inner := width - 4
	if inner < 20 {
		inner = 20
	}

	var b strings.Builder
	for i, m := range v.Messages {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(renderMessage(m, inner))
	}
	if v.Loading {
		b.WriteString("\n" + mutedStyle.Render("Finding schemes..."))
	}
	return b.String()
}

func renderMessage(m MessageView, width int) string {
	style := aiStyle
	align := lipgloss.Left
	if m.Role == models.RoleUser {
		style = userStyle
		align = lipgloss.Right
	}

	parts := []string{style.Width(width * 3 / 4).Render(PlainText(m.Text))}
	for i, c := range m.Cards {
		parts = append(parts, cardStyle.Width(width*3/4).Render(renderCardSummary(i+1, c)))
	}
	return lipgloss.PlaceHorizontal(width, align, lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func renderCardSummary(n int, c SchemeCard) string {
	lines := []string{titleStyle.Render(strings.TrimSpace(strconv.Itoa(n) + ". " + PlainText(c.Name)))}
	if c.Reason != "" {
		lines = append(lines, PlainText(c.Reason))
	}
	if c.Summary != "" {
		lines = append(lines, mutedStyle.Render(PlainText(c.Summary)))
	}
	if c.Link != "" {
		lines = append(lines, PlainText(c.Link))
	}
	return strings.Join(lines, "\n")
}

// RenderOverlay renders the full detail view of one scheme.
func RenderOverlay(c SchemeCard, width int) string {
	inner := width - 8
	if inner < 20 {
		inner = 20
	}

	lines := []string{titleStyle.Render(PlainText(c.Name))}
	var meta []string
	for _, s := range []string{c.Level, c.State} {
		if s != "" {
			meta = append(meta, PlainText(s))
		}
	}
	if len(meta) > 0 {
		lines = append(lines, mutedStyle.Render(strings.Join(meta, " · ")))
	}
	if len(c.Tags) > 0 {
		tags := make([]string, len(c.Tags))
		for i, t := range c.Tags {
			tags[i] = PlainText(t)
		}
		lines = append(lines, mutedStyle.Render("#"+strings.Join(tags, " #")))
	}
	if c.Reason != "" {
		lines = append(lines, "", PlainText(c.Reason))
	}
	for _, d := range c.Details {
		lines = append(lines, "", labelStyle.Render(PlainText(d.Label)), PlainText(d.Value))
	}
	if len(c.Links) > 0 {
		lines = append(lines, "", labelStyle.Render("Links"))
		for _, l := range c.Links {
			lines = append(lines, PlainText(l.Label)+": "+PlainText(l.URL))
		}
	} else if c.Link != "" {
		lines = append(lines, "", labelStyle.Render("Link"), PlainText(c.Link))
	}
	lines = append(lines, "", mutedStyle.Render("esc to close"))

	return overlayStyle.Width(inner).Render(strings.Join(lines, "\n"))
}
