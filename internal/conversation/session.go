package conversation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"yojana-backend/internal/models"
	"yojana-backend/internal/services"
)

var (
	ErrRequestPending  = errors.New("a request is already in progress")
	ErrSessionClosed   = errors.New("conversation is closed")
	ErrSessionNotFound = errors.New("conversation not found")
)

// TokenSource yields the bearer token for upstream calls, or "" when the
// user is signed out.
type TokenSource interface {
	BearerToken(ctx context.Context) (string, error)
}

type TokenSourceFunc func(ctx context.Context) (string, error)

func (f TokenSourceFunc) BearerToken(ctx context.Context) (string, error) {
	return f(ctx)
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

func (t StaticToken) BearerToken(context.Context) (string, error) {
	return string(t), nil
}

// Requester performs a described upstream request.
type Requester interface {
	Do(ctx context.Context, desc services.RequestDescriptor, token string) (*models.RecommendResponse, error)
}

// Publisher receives every change made to a conversation.
type Publisher interface {
	Publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage)
}

// Deps bundles the collaborators a Session needs.
type Deps struct {
	Tokens    TokenSource
	Builder   *services.RequestBuilder
	Client    Requester
	Messages  *MessageFactory
	Publisher Publisher
	Logger    *zap.Logger
	Now       Clock
}

// Session owns the state of one conversation and drives its request cycles.
type Session struct {
	ID     uuid.UUID
	UserID uuid.UUID

	deps    Deps
	reducer Reducer

	mu         sync.Mutex
	pubMu      sync.Mutex
	state      State
	closed     bool
	lastActive time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSession starts a conversation seeded with the welcome message.
func NewSession(userID uuid.UUID, firstName string, deps Deps) *Session {
	if deps.Messages == nil {
		deps.Messages = NewMessageFactory(nil)
	}
	if deps.Tokens == nil {
		deps.Tokens = StaticToken("")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:         uuid.New(),
		UserID:     userID,
		deps:       deps,
		reducer:    Reducer{Messages: deps.Messages},
		ctx:        ctx,
		cancel:     cancel,
		lastActive: deps.Now(),
	}
	s.state.Messages = []models.ChatMessage{deps.Messages.Welcome(firstName)}
	return s
}

// Snapshot returns the current state. The returned slices must not be
// modified.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastActive is the time of the last change to the conversation.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// SetInput records the live input field.
func (s *Session) SetInput(text string) {
	s.apply(InputChanged{Text: text})
}

// Submit sends text to /recommend. Blank text is ignored.
func (s *Session) Submit(text string) error {
	return s.submit(text, ModeRecommend)
}

// Refine answers a clarifying question through /refine. Blank text is
// ignored.
func (s *Session) Refine(text string) error {
	return s.submit(text, ModeRefine)
}

func (s *Session) submit(text string, mode Mode) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if !s.state.Idle() {
		s.mu.Unlock()
		return ErrRequestPending
	}

	prev := s.state
	next := s.reducer.Reduce(prev, Submitted{Text: text, Mode: mode})
	s.state = next
	s.lastActive = s.deps.Now()
	if next.Seq != prev.Seq {
		desc := s.describe(next)
		s.wg.Add(1)
		go s.dispatch(next.Seq, desc)
	}
	s.publishLocked(prev, next)
	return nil
}

func (s *Session) describe(st State) services.RequestDescriptor {
	if st.Mode == ModeRefine {
		original := st.PendingInput
		if n := len(st.History); n > 0 {
			original = st.History[n-1]
		}
		return s.deps.Builder.BuildRefine(original, st.PendingInput)
	}
	return s.deps.Builder.BuildRecommend(st.History, st.PendingInput)
}

func (s *Session) dispatch(seq uint64, desc services.RequestDescriptor) {
	defer s.wg.Done()

	token, err := s.deps.Tokens.BearerToken(s.ctx)
	if err != nil {
		s.deps.Logger.Warn("bearer token unavailable", zap.Stringer("session_id", s.ID), zap.Error(err))
		s.apply(RequestFailed{Seq: seq, Err: err})
		return
	}

	resp, err := s.deps.Client.Do(s.ctx, desc, token)
	if err != nil {
		s.deps.Logger.Info("recommendation failed",
			zap.Stringer("session_id", s.ID), zap.Uint64("seq", seq), zap.Error(err))
		s.apply(RequestFailed{Seq: seq, Err: err})
		return
	}
	s.apply(RequestSettled{Seq: seq, Value: resp})
}

func (s *Session) apply(ev Event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	prev := s.state
	s.state = s.reducer.Reduce(prev, ev)
	s.lastActive = s.deps.Now()
	s.publishLocked(prev, s.state)
}

// publishLocked must be called with mu held and releases it. Publishing is
// serialized through pubMu so subscribers see changes in order.
func (s *Session) publishLocked(prev, next State) {
	events := s.changes(prev, next)
	s.pubMu.Lock()
	s.mu.Unlock()
	defer s.pubMu.Unlock()

	if s.deps.Publisher == nil {
		return
	}
	for _, ev := range events {
		s.deps.Publisher.Publish(s.ctx, s.UserID, ev)
	}
}

func (s *Session) changes(prev, next State) []models.WSMessage {
	var events []models.WSMessage
	for _, m := range next.Messages[len(prev.Messages):] {
		events = append(events, models.WSMessage{
			Type:    models.EventMessageAppended,
			Payload: models.MessageAppended{SessionID: s.ID, Message: m},
		})
	}
	if prev.Phase != next.Phase || prev.Seq != next.Seq {
		sc := models.StateChanged{
			SessionID: s.ID,
			Phase:     next.Phase.String(),
			Loading:   next.Phase == PhasePending,
		}
		if next.Phase == PhaseIdle && next.Outcome != PhaseIdle {
			sc.Outcome = next.Outcome.String()
		}
		events = append(events, models.WSMessage{Type: models.EventStateChanged, Payload: sc})
	}
	return events
}

// Close cancels any in-flight request and waits for it to finish. Further
// submissions fail with ErrSessionClosed.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}
