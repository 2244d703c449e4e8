// Package jwt implements token issuing and validation with signed JWT
// access tokens and persisted, rotating refresh tokens.
package jwt

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jhenriquezf/clmundo/internal/domain"
	"github.com/jhenriquezf/clmundo/internal/identity"
)

const issuer = "clmundo"

// Store persists refresh tokens and resolves users on refresh.
type Store interface {
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	SaveRefreshToken(ctx context.Context, token *domain.RefreshToken) error
	GetRefreshToken(ctx context.Context, token string) (*domain.RefreshToken, error)
	DeleteRefreshToken(ctx context.Context, token string) error
	DeleteUserRefreshTokens(ctx context.Context, userID string) error
}

// Config holds token settings.
type Config struct {
	SecretKey       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// Authenticator issues HS256-signed access tokens and opaque refresh
// tokens stored server side. It implements identity.Authenticator and
// httputil.TokenValidator.
type Authenticator struct {
	config Config
	store  Store
	now    func() time.Time
}

// NewAuthenticator creates a new JWT authenticator.
func NewAuthenticator(config Config, store Store) (*Authenticator, error) {
	if config.SecretKey == "" {
		return nil, fmt.Errorf("jwt authenticator: secret key is required")
	}
	if config.AccessTokenTTL == 0 {
		config.AccessTokenTTL = 15 * time.Minute
	}
	if config.RefreshTokenTTL == 0 {
		config.RefreshTokenTTL = 720 * time.Hour
	}

	return &Authenticator{
		config: config,
		store:  store,
		now:    time.Now,
	}, nil
}

type accessClaims struct {
	Role string `json:"role"`
	jwtlib.RegisteredClaims
}

// GenerateTokens issues a new access and refresh token pair for the user.
func (a *Authenticator) GenerateTokens(ctx context.Context, user *domain.User) (*identity.TokenPair, error) {
	now := a.now()

	claims := accessClaims{
		Role: string(user.Role),
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    issuer,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(a.config.AccessTokenTTL)),
		},
	}

	access, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte(a.config.SecretKey))
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refresh, err := generateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	err = a.store.SaveRefreshToken(ctx, &domain.RefreshToken{
		Token:     refresh,
		UserID:    user.ID,
		ExpiresAt: now.Add(a.config.RefreshTokenTTL),
	})
	if err != nil {
		return nil, fmt.Errorf("save refresh token: %w", err)
	}

	return &identity.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

// RefreshTokens rotates a refresh token: the old token is revoked and a
// new pair is issued.
func (a *Authenticator) RefreshTokens(ctx context.Context, refreshToken string) (*identity.TokenPair, error) {
	stored, err := a.store.GetRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, identity.ErrInvalidToken
	}

	if a.now().After(stored.ExpiresAt) {
		_ = a.store.DeleteRefreshToken(ctx, refreshToken)
		return nil, identity.ErrInvalidToken
	}

	if err := a.store.DeleteRefreshToken(ctx, refreshToken); err != nil {
		return nil, fmt.Errorf("revoke refresh token: %w", err)
	}

	user, err := a.store.GetUserByID(ctx, stored.UserID)
	if err != nil {
		return nil, identity.ErrInvalidToken
	}

	return a.GenerateTokens(ctx, user)
}

// RevokeRefreshToken invalidates a single refresh token.
func (a *Authenticator) RevokeRefreshToken(ctx context.Context, refreshToken string) error {
	return a.store.DeleteRefreshToken(ctx, refreshToken)
}

// RevokeUserTokens invalidates all refresh tokens for a user.
func (a *Authenticator) RevokeUserTokens(ctx context.Context, userID string) error {
	return a.store.DeleteUserRefreshTokens(ctx, userID)
}

// ValidateToken verifies an access token and returns the user ID and
// role encoded in it.
func (a *Authenticator) ValidateToken(_ context.Context, token string) (string, domain.Role, error) {
	var claims accessClaims
	parsed, err := jwtlib.ParseWithClaims(token, &claims, func(t *jwtlib.Token) (any, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(a.config.SecretKey), nil
	}, jwtlib.WithIssuer(issuer), jwtlib.WithTimeFunc(a.now))
	if err != nil || !parsed.Valid {
		return "", "", identity.ErrInvalidToken
	}

	if claims.Subject == "" {
		return "", "", identity.ErrInvalidToken
	}

	return claims.Subject, domain.Role(claims.Role), nil
}

func generateRefreshToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.New("read random bytes")
	}
	return hex.EncodeToString(buf), nil
}
