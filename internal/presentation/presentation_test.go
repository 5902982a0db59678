package presentation

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yojana-backend/internal/conversation"
	"yojana-backend/internal/models"
)

func sampleScheme() models.Scheme {
	return models.Scheme{
		Name:        "PM Mudra Yojana",
		Reason:      "Collateral-free loans for small businesses",
		Link:        "https://www.mudra.org.in",
		Level:       "Central",
		Description: strings.Repeat("a", 200),
		Eligibility: "Any Indian citizen with a business plan",
		Benefits:    "  ",
		Tags:        []string{"loan", "msme"},
		ParsedLinks: []models.SchemeLink{{Label: "Apply", URL: "https://a.gov.in"}},
	}
}

func TestBuildView(t *testing.T) {
	st := conversation.State{
		Messages: []models.ChatMessage{
			{ID: 1, Role: models.RoleAI, Text: "hello"},
			{ID: 2, Role: models.RoleUser, Text: "loans"},
			{ID: 3, Role: models.RoleAI, Text: "Some recommendations are:", Schemes: []models.Scheme{sampleScheme()}},
		},
		Trigger: 1,
		Phase:   conversation.PhasePending,
	}

	v := BuildView(st)
	require.Len(t, v.Messages, 3)
	assert.True(t, v.Loading)
	assert.False(t, v.InputEnabled)
	assert.Equal(t, "pending", v.Phase)
	assert.Empty(t, v.Messages[0].Cards)
	require.Len(t, v.Messages[2].Cards, 1)
	assert.Equal(t, "PM Mudra Yojana", v.Messages[2].Cards[0].Name)

	idle := BuildView(conversation.State{})
	assert.False(t, idle.Loading)
	assert.True(t, idle.InputEnabled)
	assert.NotNil(t, idle.Messages)
}

func TestNewSchemeCard(t *testing.T) {
	card := NewSchemeCard(sampleScheme())

	assert.Equal(t, SummaryLength+3, utf8.RuneCountInString(card.Summary))
	assert.True(t, strings.HasSuffix(card.Summary, "..."))

	want := []DetailRow{
		{Label: "Description", Value: strings.Repeat("a", 200)},
		{Label: "Eligibility", Value: "Any Indian citizen with a business plan"},
	}
	if diff := cmp.Diff(want, card.Details); diff != "" {
		t.Errorf("details mismatch (-want +got):\n%s", diff)
	}

	bare := NewSchemeCard(models.Scheme{Name: "x"})
	assert.NotNil(t, bare.Links)
	assert.Empty(t, bare.Links)
	assert.Empty(t, bare.Summary)
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short", "short text", 150, "short text"},
		{"exact", strings.Repeat("x", 10), 10, strings.Repeat("x", 10)},
		{"cut", "abcdefghijkl", 5, "abcde..."},
		{"multibyte", "योजना योजना", 5, "योजना..."},
		{"trailing space at cut", "abcd efgh", 5, "abcd..."},
		{"empty", "   ", 5, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Summarize(tc.in, tc.n))
		})
	}
}

func TestScrollLock(t *testing.T) {
	l := NewScrollLock()
	assert.False(t, l.Locked())

	a := l.Acquire()
	b := l.Acquire()
	assert.True(t, l.Locked())

	a.Release()
	a.Release()
	assert.True(t, l.Locked(), "b is still held")

	b.Release()
	assert.False(t, l.Locked())

	l.Acquire()
	l.Acquire()
	assert.Equal(t, 2, l.ReleaseAll())
	assert.False(t, l.Locked())

	var nilHandle *ScrollHandle
	nilHandle.Release()
}

func TestOverlay(t *testing.T) {
	l := NewScrollLock()
	o := NewOverlay(l)

	_, open := o.Card()
	assert.False(t, open)

	o.Open(NewSchemeCard(models.Scheme{Name: "A"}))
	o.Open(NewSchemeCard(models.Scheme{Name: "B"}))
	card, open := o.Card()
	assert.True(t, open)
	assert.Equal(t, "B", card.Name)
	assert.True(t, l.Locked())

	o.Close()
	assert.False(t, o.IsOpen())
	assert.False(t, l.Locked())

	o.Close()
	assert.False(t, l.Locked())
}

func TestOverlayTeardownWithoutClose(t *testing.T) {
	l := NewScrollLock()
	o := NewOverlay(l)
	o.Open(NewSchemeCard(models.Scheme{Name: "A"}))

	assert.Equal(t, 1, l.ReleaseAll())
	assert.False(t, l.Locked())
}

func TestPlainText(t *testing.T) {
	f := conversation.NewMessageFactory(nil)
	welcome := f.Welcome("Asha")

	got := PlainText(welcome.Text)
	assert.Contains(t, got, "Hello Asha!")
	assert.Contains(t, got, "I'll recommend")
	assert.NotContains(t, got, "<span")
	assert.Contains(t, got, "\n")
}

func TestRenderMessages(t *testing.T) {
	v := View{
		Messages: []MessageView{
			{Role: models.RoleUser, Text: "loans"},
			{Role: models.RoleAI, Text: "Here", Cards: []SchemeCard{NewSchemeCard(sampleScheme())}},
		},
		Loading: true,
	}

	out := RenderMessages(v, 100)
	assert.Contains(t, out, "loans")
	assert.Contains(t, out, "PM Mudra Yojana")
	assert.Contains(t, out, "Finding schemes...")
}

func TestRenderOverlay(t *testing.T) {
	out := RenderOverlay(NewSchemeCard(sampleScheme()), 100)
	assert.Contains(t, out, "PM Mudra Yojana")
	assert.Contains(t, out, "Eligibility")
	assert.Contains(t, out, "https://a.gov.in")
	assert.NotContains(t, out, "Benefits", "blank sections are skipped")
}

func TestPlainText_DropsControlCharacters(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a\x1b[2Jb", "a[2Jb"},
		{"title\x1b]0;owned\x07", "title]0;owned"},
		{"line one<br>line two\tend", "line one\nline two\tend"},
		{"bell\x07\x7fdel", "belldel"},
		{"\u009b31mcsi", "31mcsi"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, PlainText(tc.in), "%q", tc.in)
	}
}

func TestRender_StripsEscapesFromSchemeFields(t *testing.T) {
	s := sampleScheme()
	s.Name = "\x1b[2J\x1b]0;pwned\x07Evil Scheme"
	s.Reason = "\x1b[31mred reason"
	s.Level = "Central\x1b[5m"
	s.Tags = []string{"loan\x1b[8m"}
	s.Eligibility = "citizens\x1b[?25l"
	s.ParsedLinks = []models.SchemeLink{{Label: "Apply\x1b[7m", URL: "https://a.gov.in/\x1b[9m"}}
	card := NewSchemeCard(s)

	outputs := map[string]string{
		"messages": RenderMessages(View{Messages: []MessageView{{Role: models.RoleAI, Text: "Here", Cards: []SchemeCard{card}}}}, 100),
		"overlay":  RenderOverlay(card, 100),
	}
	for name, out := range outputs {
		for _, seq := range []string{"\x1b[2J", "\x1b]0;", "\x07", "\x1b[31m", "\x1b[5m", "\x1b[8m", "\x1b[?25l", "\x1b[7m", "\x1b[9m"} {
			assert.NotContains(t, out, seq, "%s leaks %q", name, seq)
		}
		assert.Contains(t, out, "Evil Scheme", name)
	}
	assert.Contains(t, outputs["overlay"], "citizens")
}
