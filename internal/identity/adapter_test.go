package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/idtoken"

	"yojana-backend/internal/middleware"
	"yojana-backend/internal/models"
	"yojana-backend/internal/services"
)

const testClientID = "client-123.apps.googleusercontent.com"

type stubValidator struct {
	payload *idtoken.Payload
	err     error
	gotAud  string
}

func (v *stubValidator) Validate(ctx context.Context, idToken, audience string) (*idtoken.Payload, error) {
	v.gotAud = audience
	return v.payload, v.err
}

type memUsers struct {
	mu       sync.Mutex
	byID     map[uuid.UUID]*models.User
	failGet  error
	logins   int
	profiles int
}

func newMemUsers() *memUsers {
	return &memUsers{byID: make(map[uuid.UUID]*models.User)}
}

func (m *memUsers) GetByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return nil, m.failGet
	}
	for _, u := range m.byID {
		if u.GoogleID == googleID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memUsers) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) Create(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user.ID = uuid.New()
	user.IsActive = true
	user.CreatedAt = time.Now()
	cp := *user
	m.byID[user.ID] = &cp
	return nil
}

func (m *memUsers) UpdateProfile(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles++
	cp := *user
	m.byID[user.ID] = &cp
	return nil
}

func (m *memUsers) UpdateLastLogin(ctx context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logins++
	return nil
}

type memTokens struct {
	mu         sync.Mutex
	refresh    map[string]uuid.UUID
	bearer     map[uuid.UUID]string
	bearerTTL  time.Duration
	failBearer error
}

func newMemTokens() *memTokens {
	return &memTokens{refresh: make(map[string]uuid.UUID), bearer: make(map[uuid.UUID]string)}
}

func (m *memTokens) SaveRefresh(ctx context.Context, token string, userID uuid.UUID, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refresh[token] = userID
	return nil
}

func (m *memTokens) ConsumeRefresh(ctx context.Context, token string) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.refresh[token]
	if !ok {
		return uuid.Nil, ErrTokenNotFound
	}
	delete(m.refresh, token)
	return id, nil
}

func (m *memTokens) DeleteRefresh(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.refresh, token)
	return nil
}

func (m *memTokens) SaveBearer(ctx context.Context, userID uuid.UUID, token string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failBearer != nil {
		return m.failBearer
	}
	m.bearer[userID] = token
	m.bearerTTL = ttl
	return nil
}

func (m *memTokens) Bearer(ctx context.Context, userID uuid.UUID) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bearer[userID], nil
}

func (m *memTokens) DeleteBearer(ctx context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bearer, userID)
	return nil
}

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func googlePayload() *idtoken.Payload {
	return &idtoken.Payload{
		Subject: "google-sub-1",
		Expires: testNow.Add(50 * time.Minute).Unix(),
		Claims: map[string]interface{}{
			"email":   "asha@example.com",
			"name":    "Asha Verma",
			"picture": "https://example.com/a.png",
		},
	}
}

type fixture struct {
	adapter   *Adapter
	validator *stubValidator
	users     *memUsers
	tokens    *memTokens
	jwt       *middleware.JWTAuth
}

func newFixture() *fixture {
	f := &fixture{
		validator: &stubValidator{payload: googlePayload()},
		users:     newMemUsers(),
		tokens:    newMemTokens(),
		jwt:       middleware.NewJWTAuth("test-secret"),
	}
	f.adapter = NewAdapter(f.validator, f.users, f.tokens, f.jwt, testClientID, nil)
	f.adapter.now = func() time.Time { return testNow }
	return f
}

func TestSignInCreatesUser(t *testing.T) {
	f := newFixture()

	tokens, err := f.adapter.SignIn(context.Background(), "raw-id-token")
	require.NoError(t, err)

	assert.Equal(t, testClientID, f.validator.gotAud)
	require.NotNil(t, tokens.User)
	assert.Equal(t, "asha@example.com", tokens.User.Email)
	assert.Equal(t, "Asha", tokens.User.FirstName())
	assert.Equal(t, 900, tokens.ExpiresIn)
	assert.Len(t, tokens.RefreshToken, 128)

	claims, err := f.jwt.ParseAccessToken(tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, tokens.User.ID, claims.UserID)
	assert.Equal(t, "Asha Verma", claims.Name)

	bearer, err := f.adapter.BearerToken(context.Background(), tokens.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "raw-id-token", bearer)
	assert.Equal(t, 50*time.Minute, f.tokens.bearerTTL)
}

func TestSignInReusesExistingUser(t *testing.T) {
	f := newFixture()

	first, err := f.adapter.SignIn(context.Background(), "t1")
	require.NoError(t, err)

	f.validator.payload.Claims["name"] = "Asha V."
	second, err := f.adapter.SignIn(context.Background(), "t2")
	require.NoError(t, err)

	assert.Equal(t, first.User.ID, second.User.ID)
	assert.Len(t, f.users.byID, 1)
	assert.Equal(t, 1, f.users.logins)
	assert.Equal(t, 1, f.users.profiles)
	assert.Equal(t, "Asha V.", second.User.FullName)
}

func TestSignInFailuresCollapse(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		prepare func(f *fixture)
	}{
		{"empty token", "  ", nil},
		{"invalid token", "bad", func(f *fixture) { f.validator.err = errors.New("idtoken: invalid signature") }},
		{"missing email", "tok", func(f *fixture) { delete(f.validator.payload.Claims, "email") }},
		{"store down", "tok", func(f *fixture) { f.users.failGet = errors.New("connection refused") }},
		{"bearer store down", "tok", func(f *fixture) { f.tokens.failBearer = errors.New("redis down") }},
		{"no client id", "tok", func(f *fixture) { f.adapter.clientID = "" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			if tc.prepare != nil {
				tc.prepare(f)
			}
			var notified bool
			f.adapter.Watch(func(uuid.UUID, *models.User) { notified = true })

			tokens, err := f.adapter.SignIn(context.Background(), tc.token)
			assert.Nil(t, tokens)
			assert.ErrorIs(t, err, ErrSignInFailed)
			assert.Equal(t, "Google sign-in failed. Try again later.", err.Error())
			assert.False(t, notified)
		})
	}
}

func TestSignInRejectsInactiveUser(t *testing.T) {
	f := newFixture()
	tokens, err := f.adapter.SignIn(context.Background(), "t1")
	require.NoError(t, err)
	f.users.byID[tokens.User.ID].IsActive = false

	_, err = f.adapter.SignIn(context.Background(), "t2")
	assert.ErrorIs(t, err, ErrSignInFailed)
}

func TestWatchSeesSignInAndSignOut(t *testing.T) {
	f := newFixture()

	type seen struct {
		id   uuid.UUID
		user *models.User
	}
	var events []seen
	f.adapter.Watch(func(id uuid.UUID, u *models.User) { events = append(events, seen{id, u}) })

	tokens, err := f.adapter.SignIn(context.Background(), "tok")
	require.NoError(t, err)

	redirect, err := f.adapter.SignOut(context.Background(), tokens.User.ID, tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "/signin", redirect)

	require.Len(t, events, 2)
	assert.Equal(t, tokens.User.ID, events[0].id)
	assert.NotNil(t, events[0].user)
	assert.Equal(t, tokens.User.ID, events[1].id)
	assert.Nil(t, events[1].user)

	bearer, err := f.adapter.BearerToken(context.Background(), tokens.User.ID)
	require.NoError(t, err)
	assert.Empty(t, bearer, "bearer token is absent after sign-out")

	_, err = f.adapter.Refresh(context.Background(), tokens.RefreshToken, "")
	var unauthorized *services.UnauthorizedError
	assert.ErrorAs(t, err, &unauthorized)
}

func TestRefreshRotates(t *testing.T) {
	f := newFixture()
	tokens, err := f.adapter.SignIn(context.Background(), "tok")
	require.NoError(t, err)

	next, err := f.adapter.Refresh(context.Background(), tokens.RefreshToken, "")
	require.NoError(t, err)
	assert.NotEqual(t, tokens.RefreshToken, next.RefreshToken)

	_, err = f.adapter.Refresh(context.Background(), tokens.RefreshToken, "")
	var unauthorized *services.UnauthorizedError
	assert.ErrorAs(t, err, &unauthorized, "old refresh token must not be reusable")
}

func TestRefreshRenewsBearer(t *testing.T) {
	f := newFixture()
	tokens, err := f.adapter.SignIn(context.Background(), "tok-1")
	require.NoError(t, err)

	f.adapter.now = func() time.Time { return testNow.Add(45 * time.Minute) }
	f.validator.payload.Expires = testNow.Add(105 * time.Minute).Unix()

	next, err := f.adapter.Refresh(context.Background(), tokens.RefreshToken, "tok-2")
	require.NoError(t, err)
	assert.Equal(t, tokens.User.ID, next.User.ID)

	bearer, err := f.adapter.BearerToken(context.Background(), tokens.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "tok-2", bearer)
	assert.Equal(t, time.Hour, f.tokens.bearerTTL)
}

func TestRefreshRejectsLapsedBearer(t *testing.T) {
	f := newFixture()
	tokens, err := f.adapter.SignIn(context.Background(), "tok-1")
	require.NoError(t, err)

	// the bearer key expired in the store
	delete(f.tokens.bearer, tokens.User.ID)

	next, err := f.adapter.Refresh(context.Background(), tokens.RefreshToken, "")
	assert.Nil(t, next)
	var unauthorized *services.UnauthorizedError
	require.ErrorAs(t, err, &unauthorized)
	assert.Contains(t, unauthorized.Message, "log in again")
}

func TestRefreshIDTokenFailures(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(f *fixture)
	}{
		{"invalid id token", func(f *fixture) { f.validator.err = errors.New("idtoken: token expired") }},
		{"other account", func(f *fixture) { f.validator.payload.Subject = "google-sub-2" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			tokens, err := f.adapter.SignIn(context.Background(), "tok-1")
			require.NoError(t, err)

			f.validator.payload = googlePayload()
			tc.prepare(f)

			next, err := f.adapter.Refresh(context.Background(), tokens.RefreshToken, "tok-2")
			assert.Nil(t, next)
			var unauthorized *services.UnauthorizedError
			require.ErrorAs(t, err, &unauthorized)

			bearer, err := f.adapter.BearerToken(context.Background(), tokens.User.ID)
			require.NoError(t, err)
			assert.Equal(t, "tok-1", bearer, "stored bearer is left untouched")
		})
	}
}

func TestCurrent(t *testing.T) {
	f := newFixture()

	user, err := f.adapter.Current(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, user)

	tokens, err := f.adapter.SignIn(context.Background(), "tok")
	require.NoError(t, err)

	ctx := middleware.WithClaims(context.Background(), &middleware.Claims{UserID: tokens.User.ID})
	user, err = f.adapter.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, tokens.User.ID, user.ID)

	ctx = middleware.WithClaims(context.Background(), &middleware.Claims{UserID: uuid.New()})
	_, err = f.adapter.Current(ctx)
	var notFound *services.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestTokenSourceFor(t *testing.T) {
	f := newFixture()
	userID := uuid.New()
	src := f.adapter.TokenSourceFor(userID)

	tok, err := src.BearerToken(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tok)

	f.tokens.bearer[userID] = "id-token"
	tok, err = src.BearerToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "id-token", tok)
}

func TestBearerTTL(t *testing.T) {
	f := newFixture()
	assert.Equal(t, defaultBearerTTL, f.adapter.bearerTTL(&idtoken.Payload{}))
	assert.Equal(t, time.Minute, f.adapter.bearerTTL(&idtoken.Payload{Expires: testNow.Add(-time.Hour).Unix()}))
}

func TestRefreshKeyIsHashed(t *testing.T) {
	key := refreshKey("plain-token")
	assert.NotContains(t, key, "plain-token")
	assert.Equal(t, key, refreshKey("plain-token"))
	assert.Len(t, key, len("refresh:")+64)
}
