package conversation

import (
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"yojana-backend/internal/models"
)

// Fixed texts shown by the assistant.
const (
	WelcomeMessage      = `Hello <span class="username">{NAME}!</span> 👋 I am Yojana AI, your assistant for discovering government schemes in India.<br><br> You can ask me about education, business, agriculture, women empowerment, scholarships, and more. Just type your query and I'll recommend the most relevant schemes for you!`
	ErrorMessage        = "Sorry, something went wrong. Please try again."
	RateLimitMessage    = "You have reached your usage limit. Please try again later."
	RecommendationsLead = "Some recommendations are:"
	MatchingLead        = "Here are some schemes that match your query:"
)

// Clock returns the current time.
type Clock func() time.Time

// IDGenerator hands out strictly increasing message ids seeded from the
// clock in milliseconds. Two messages created in the same millisecond still
// get distinct ids.
type IDGenerator struct {
	mu   sync.Mutex
	now  Clock
	last int64
}

func NewIDGenerator(now Clock) *IDGenerator {
	if now == nil {
		now = time.Now
	}
	return &IDGenerator{now: now}
}

func (g *IDGenerator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.now().UnixMilli()
	if id <= g.last {
		id = g.last + 1
	}
	g.last = id
	return id
}

// MessageFactory builds sanitized chat messages.
type MessageFactory struct {
	ids    *IDGenerator
	policy *bluemonday.Policy
}

func NewMessageFactory(ids *IDGenerator) *MessageFactory {
	if ids == nil {
		ids = NewIDGenerator(nil)
	}
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").OnElements("span")

	return &MessageFactory{ids: ids, policy: policy}
}

func (f *MessageFactory) New(role models.Role, text string, schemes []models.Scheme) models.ChatMessage {
	return models.ChatMessage{
		ID:      f.ids.Next(),
		Role:    role,
		Text:    f.policy.Sanitize(text),
		Schemes: schemes,
	}
}

// Welcome greets the signed-in user by first name.
func (f *MessageFactory) Welcome(firstName string) models.ChatMessage {
	return f.New(models.RoleAI, strings.ReplaceAll(WelcomeMessage, "{NAME}", firstName), nil)
}
