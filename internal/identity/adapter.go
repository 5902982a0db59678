// Package identity signs users in with Google, keeps their upstream bearer
// token, and tells interested parties when someone signs in or out.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"google.golang.org/api/idtoken"

	"yojana-backend/internal/conversation"
	"yojana-backend/internal/middleware"
	"yojana-backend/internal/models"
	"yojana-backend/internal/services"
)

// ErrSignInFailed is the only error SignIn reports. The cause is logged.
var ErrSignInFailed = errors.New("Google sign-in failed. Try again later.")

const (
	RefreshTokenTTL = 7 * 24 * time.Hour
	SignInPath      = "/signin"

	// used when the ID token carries no usable expiry
	defaultBearerTTL = time.Hour
)

// Validator verifies a Google ID token for an audience. *idtoken.Validator
// satisfies it.
type Validator interface {
	Validate(ctx context.Context, idToken string, audience string) (*idtoken.Payload, error)
}

// UserStore finds and records users. Lookups return pgx.ErrNoRows when
// nothing matches.
type UserStore interface {
	GetByGoogleID(ctx context.Context, googleID string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdateProfile(ctx context.Context, user *models.User) error
	UpdateLastLogin(ctx context.Context, userID uuid.UUID) error
}

// Observer is told about every sign-in and sign-out. user is nil after
// sign-out.
type Observer func(userID uuid.UUID, user *models.User)

type Adapter struct {
	validator Validator
	users     UserStore
	tokens    TokenStore
	jwt       *middleware.JWTAuth
	clientID  string
	logger    *zap.Logger
	now       func() time.Time

	mu        sync.RWMutex
	observers []Observer
}

func NewAdapter(validator Validator, users UserStore, tokens TokenStore, jwt *middleware.JWTAuth, clientID string, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		validator: validator,
		users:     users,
		tokens:    tokens,
		jwt:       jwt,
		clientID:  clientID,
		logger:    logger,
		now:       time.Now,
	}
}

// SignIn verifies a Google ID token, finds or creates the user, stores the
// ID token as the user's upstream bearer token and issues session tokens.
func (a *Adapter) SignIn(ctx context.Context, idToken string) (*models.AuthTokens, error) {
	idToken = strings.TrimSpace(idToken)
	if idToken == "" || a.clientID == "" {
		a.logger.Warn("sign-in rejected", zap.Bool("empty_token", idToken == ""), zap.Bool("client_configured", a.clientID != ""))
		return nil, ErrSignInFailed
	}

	payload, err := a.validator.Validate(ctx, idToken, a.clientID)
	if err != nil {
		a.logger.Warn("google id token rejected", zap.Error(err))
		return nil, ErrSignInFailed
	}

	profile := profileFrom(payload)
	if profile.GoogleID == "" || profile.Email == "" {
		a.logger.Warn("google id token missing subject or email", zap.String("sub", profile.GoogleID))
		return nil, ErrSignInFailed
	}

	user, err := a.findOrCreate(ctx, profile)
	if err != nil {
		a.logger.Error("failed to load user", zap.String("sub", profile.GoogleID), zap.Error(err))
		return nil, ErrSignInFailed
	}
	if !user.IsActive {
		a.logger.Info("inactive user tried to sign in", zap.Stringer("user_id", user.ID))
		return nil, ErrSignInFailed
	}

	if err := a.tokens.SaveBearer(ctx, user.ID, idToken, a.bearerTTL(payload)); err != nil {
		a.logger.Error("failed to store bearer token", zap.Stringer("user_id", user.ID), zap.Error(err))
		return nil, ErrSignInFailed
	}

	tokens, err := a.issueTokens(ctx, user)
	if err != nil {
		a.logger.Error("failed to issue tokens", zap.Stringer("user_id", user.ID), zap.Error(err))
		return nil, ErrSignInFailed
	}

	a.logger.Info("user signed in", zap.Stringer("user_id", user.ID))
	a.notify(user.ID, user)
	return tokens, nil
}

func profileFrom(p *idtoken.Payload) *models.User {
	claim := func(name string) string {
		v, _ := p.Claims[name].(string)
		return v
	}
	u := &models.User{
		GoogleID: p.Subject,
		Email:    claim("email"),
		FullName: claim("name"),
	}
	if pic := claim("picture"); pic != "" {
		u.AvatarURL = &pic
	}
	return u
}

func (a *Adapter) findOrCreate(ctx context.Context, profile *models.User) (*models.User, error) {
	user, err := a.users.GetByGoogleID(ctx, profile.GoogleID)
	if errors.Is(err, pgx.ErrNoRows) {
		if err := a.users.Create(ctx, profile); err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		return profile, nil
	}
	if err != nil {
		return nil, err
	}

	if user.FullName != profile.FullName || user.Email != profile.Email {
		user.FullName = profile.FullName
		user.Email = profile.Email
		user.AvatarURL = profile.AvatarURL
		if err := a.users.UpdateProfile(ctx, user); err != nil {
			a.logger.Warn("failed to update profile", zap.Stringer("user_id", user.ID), zap.Error(err))
		}
	}
	if err := a.users.UpdateLastLogin(ctx, user.ID); err != nil {
		a.logger.Warn("failed to update last login", zap.Stringer("user_id", user.ID), zap.Error(err))
	}
	return user, nil
}

func (a *Adapter) bearerTTL(p *idtoken.Payload) time.Duration {
	if p.Expires == 0 {
		return defaultBearerTTL
	}
	ttl := time.Unix(p.Expires, 0).Sub(a.now())
	if ttl < time.Minute {
		return time.Minute
	}
	return ttl
}

func (a *Adapter) issueTokens(ctx context.Context, user *models.User) (*models.AuthTokens, error) {
	accessToken, err := a.jwt.GenerateAccessToken(user.ID, user.Email, user.FullName)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := generateToken(64)
	if err != nil {
		return nil, err
	}

	if err := a.tokens.SaveRefresh(ctx, refreshToken, user.ID, RefreshTokenTTL); err != nil {
		return nil, err
	}

	return &models.AuthTokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(middleware.AccessTokenTTL.Seconds()),
		User:         user,
	}, nil
}

// Refresh rotates a refresh token. The old token is no longer usable.
// A fresh Google ID token, when given, replaces the stored upstream bearer.
// Without one the stored bearer must still be live; otherwise the user is
// sent back to sign in rather than holding a session that cannot reach the
// recommendation service.
func (a *Adapter) Refresh(ctx context.Context, refreshToken, idToken string) (*models.AuthTokens, error) {
	var payload *idtoken.Payload
	if idToken = strings.TrimSpace(idToken); idToken != "" {
		p, err := a.validator.Validate(ctx, idToken, a.clientID)
		if err != nil {
			a.logger.Warn("google id token rejected on refresh", zap.Error(err))
			return nil, &services.UnauthorizedError{Message: "Invalid Google ID token. Please log in again."}
		}
		payload = p
	}

	userID, err := a.tokens.ConsumeRefresh(ctx, refreshToken)
	if errors.Is(err, ErrTokenNotFound) {
		return nil, &services.UnauthorizedError{Message: "Invalid or expired refresh token. Please log in again."}
	}
	if err != nil {
		return nil, err
	}

	user, err := a.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, &services.UnauthorizedError{Message: "Account is deactivated"}
	}

	if payload != nil {
		if payload.Subject != user.GoogleID {
			a.logger.Warn("refresh id token belongs to another account", zap.Stringer("user_id", user.ID))
			return nil, &services.UnauthorizedError{Message: "Google account does not match this session. Please log in again."}
		}
		if err := a.tokens.SaveBearer(ctx, user.ID, idToken, a.bearerTTL(payload)); err != nil {
			return nil, fmt.Errorf("failed to store bearer token: %w", err)
		}
	} else {
		bearer, err := a.tokens.Bearer(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		if bearer == "" {
			a.logger.Info("refresh rejected, upstream bearer expired", zap.Stringer("user_id", user.ID))
			return nil, &services.UnauthorizedError{Message: "Your Google session has expired. Please log in again."}
		}
	}

	return a.issueTokens(ctx, user)
}

// SignOut forgets the user's tokens, notifies observers and returns the path
// the client should navigate to.
func (a *Adapter) SignOut(ctx context.Context, userID uuid.UUID, refreshToken string) (string, error) {
	if refreshToken != "" {
		if err := a.tokens.DeleteRefresh(ctx, refreshToken); err != nil {
			return "", fmt.Errorf("failed to delete refresh token: %w", err)
		}
	}
	if err := a.tokens.DeleteBearer(ctx, userID); err != nil {
		return "", fmt.Errorf("failed to delete bearer token: %w", err)
	}

	a.logger.Info("user signed out", zap.Stringer("user_id", userID))
	a.notify(userID, nil)
	return SignInPath, nil
}

// Current returns the signed-in user of ctx, or nil when the request carries
// no identity.
func (a *Adapter) Current(ctx context.Context) (*models.User, error) {
	claims := middleware.GetClaims(ctx)
	if claims == nil {
		return nil, nil
	}
	user, err := a.users.GetByID(ctx, claims.UserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &services.NotFoundError{Message: "User not found"}
	}
	return user, err
}

// Watch registers fn for every later sign-in and sign-out.
func (a *Adapter) Watch(fn Observer) {
	a.mu.Lock()
	a.observers = append(a.observers, fn)
	a.mu.Unlock()
}

func (a *Adapter) notify(userID uuid.UUID, user *models.User) {
	a.mu.RLock()
	observers := append([]Observer(nil), a.observers...)
	a.mu.RUnlock()

	for _, fn := range observers {
		fn(userID, user)
	}
}

// BearerToken returns the upstream token of userID, or "" when signed out.
func (a *Adapter) BearerToken(ctx context.Context, userID uuid.UUID) (string, error) {
	return a.tokens.Bearer(ctx, userID)
}

// TokenSourceFor adapts BearerToken for one user's conversations.
func (a *Adapter) TokenSourceFor(userID uuid.UUID) conversation.TokenSource {
	return conversation.TokenSourceFunc(func(ctx context.Context) (string, error) {
		return a.BearerToken(ctx, userID)
	})
}

func generateToken(bytes int) (string, error) {
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
