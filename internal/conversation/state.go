package conversation

import (
	"strings"

	"yojana-backend/internal/models"
	"yojana-backend/internal/services"
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhasePending
	PhaseResolved
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePending:
		return "pending"
	case PhaseResolved:
		return "resolved"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Mode selects which upstream endpoint a submission goes to.
type Mode int

const (
	ModeRecommend Mode = iota
	ModeRefine
)

// State is one snapshot of a conversation. Reduce never mutates the slices of
// the state it receives, so snapshots handed out earlier stay valid.
type State struct {
	Messages     []models.ChatMessage
	History      []string
	Trigger      int
	Input        string
	PendingInput string
	Mode         Mode
	Phase        Phase
	// Outcome is the terminal phase of the last finished request cycle.
	Outcome Phase
	// Seq numbers request cycles so late results of an older cycle are ignored.
	Seq uint64
}

// Idle reports whether a new request may be issued.
func (s State) Idle() bool {
	return s.Trigger == 0
}

type Event interface {
	event()
}

// InputChanged mirrors the live input field.
type InputChanged struct {
	Text string
}

type Submitted struct {
	Text string
	Mode Mode
}

type RequestSettled struct {
	Seq   uint64
	Value *models.RecommendResponse
}

type RequestFailed struct {
	Seq uint64
	Err error
}

func (InputChanged) event()   {}
func (Submitted) event()      {}
func (RequestSettled) event() {}
func (RequestFailed) event()  {}

// Reducer applies events to conversation state.
type Reducer struct {
	Messages *MessageFactory
}

func (r Reducer) Reduce(s State, ev Event) State {
	switch e := ev.(type) {
	case InputChanged:
		s.Input = e.Text
		return s
	case Submitted:
		return r.submit(s, e)
	case RequestSettled:
		if !s.awaiting(e.Seq) {
			return s
		}
		return r.settle(s, e.Value)
	case RequestFailed:
		if !s.awaiting(e.Seq) {
			return s
		}
		return r.fail(s, e.Err)
	default:
		return s
	}
}

func (s State) awaiting(seq uint64) bool {
	return s.Trigger > 0 && s.Phase == PhasePending && s.Seq == seq
}

func (r Reducer) submit(s State, e Submitted) State {
	text := strings.TrimSpace(e.Text)
	if text == "" || !s.Idle() {
		return s
	}

	s.Messages = appendMessages(s.Messages, r.Messages.New(models.RoleUser, text, nil))
	s.Input = ""
	s.PendingInput = text
	s.Mode = e.Mode
	s.Trigger++
	s.Seq++
	s.Phase = PhasePending
	return s
}

func (r Reducer) settle(s State, value *models.RecommendResponse) State {
	history := make([]string, 0, len(s.History)+1)
	history = append(history, s.History...)
	s.History = append(history, s.PendingInput)

	s.Messages = appendMessages(s.Messages, r.classify(value)...)
	return reset(s, PhaseResolved)
}

func (r Reducer) classify(value *models.RecommendResponse) []models.ChatMessage {
	if value.Empty() {
		return []models.ChatMessage{r.Messages.New(models.RoleAI, ErrorMessage, nil)}
	}

	var replies []models.ChatMessage
	if value.FollowupNeeded {
		if len(value.Results) > 0 {
			replies = append(replies, r.Messages.New(models.RoleAI, RecommendationsLead, services.PrepareSchemes(value.Results)))
		}
		return append(replies, r.Messages.New(models.RoleAI, value.Message, nil))
	}

	text := value.Message
	if text == "" {
		text = MatchingLead
	}
	return append(replies, r.Messages.New(models.RoleAI, text, services.PrepareSchemes(value.Results)))
}

func (r Reducer) fail(s State, err error) State {
	text := ErrorMessage
	if services.IsRateLimited(err) {
		text = RateLimitMessage
	}
	s.Messages = appendMessages(s.Messages, r.Messages.New(models.RoleAI, text, nil))
	return reset(s, PhaseFailed)
}

func reset(s State, outcome Phase) State {
	s.Input = ""
	s.PendingInput = ""
	s.Trigger = 0
	s.Phase = PhaseIdle
	s.Outcome = outcome
	return s
}

func appendMessages(existing []models.ChatMessage, msgs ...models.ChatMessage) []models.ChatMessage {
	out := make([]models.ChatMessage, 0, len(existing)+len(msgs))
	out = append(out, existing...)
	return append(out, msgs...)
}
