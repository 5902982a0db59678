package conversation

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yojana-backend/internal/models"
	"yojana-backend/internal/services"
)

func newTestManager(client Requester) *Manager {
	return NewManager(ManagerConfig{
		Endpoints: services.Endpoints{Local: "http://local.test", Production: "http://prod.test"},
		Client:    client,
		Tokens: func(userID uuid.UUID) TokenSource {
			return StaticToken("token-" + userID.String()[:4])
		},
	})
}

func TestManager_CreateAndGet(t *testing.T) {
	m := newTestManager(&fakeRequester{})
	defer m.CloseAll()

	owner := uuid.New()
	s := m.Create(owner, "Ravi", "localhost:4200")

	got, err := m.Get(s.ID, owner)
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.Equal(t, "http://local.test", got.deps.Builder.BaseURL())

	_, err = m.Get(s.ID, uuid.New())
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = m.Get(uuid.New(), owner)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManager_HostSelectsUpstream(t *testing.T) {
	client := &fakeRequester{replies: []reply{{resp: &models.RecommendResponse{Message: "ok"}}}}
	m := newTestManager(client)
	defer m.CloseAll()

	owner := uuid.New()
	s := m.Create(owner, "Ravi", "yojana.example.in")
	require.NoError(t, s.Submit("hi"))
	s.wg.Wait()

	calls := client.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "http://prod.test/recommend", calls[0].desc.URL)
	assert.Equal(t, "token-"+owner.String()[:4], calls[0].token)
}

func TestManager_Close(t *testing.T) {
	m := newTestManager(&fakeRequester{})
	owner := uuid.New()
	s := m.Create(owner, "", "localhost")

	assert.ErrorIs(t, m.Close(s.ID, uuid.New()), ErrSessionNotFound)
	require.NoError(t, m.Close(s.ID, owner))
	assert.Equal(t, 0, m.Len())
	assert.ErrorIs(t, s.Submit("x"), ErrSessionClosed)
}

func TestManager_CloseUser(t *testing.T) {
	m := newTestManager(&fakeRequester{})
	defer m.CloseAll()

	alice, bob := uuid.New(), uuid.New()
	m.Create(alice, "Alice", "localhost")
	m.Create(alice, "Alice", "localhost")
	kept := m.Create(bob, "Bob", "localhost")

	assert.Equal(t, 2, m.CloseUser(alice))
	assert.Equal(t, 1, m.Len())

	_, err := m.Get(kept.ID, bob)
	assert.NoError(t, err)
}

func TestIDGenerator_StrictlyIncreasing(t *testing.T) {
	g := NewIDGenerator(fixedClock())
	prev := g.Next()
	for i := 0; i < 100; i++ {
		next := g.Next()
		require.Greater(t, next, prev)
		prev = next
	}
}
