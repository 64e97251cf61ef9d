package utils

import (
	"errors"
	"fmt"
	"time"

	"onboard/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "onboard-api"

var ErrInvalidToken = errors.New("invalid token")

// TokenIssuer signs and verifies access and refresh tokens.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewTokenIssuer(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	if refreshSecret == "" {
		refreshSecret = accessSecret
	}
	return &TokenIssuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

// WithClock replaces the issuer's time source.
func (t *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	t.now = now
	return t
}

// GenerateTokens returns an access token, a refresh token and the access expiry.
func (t *TokenIssuer) GenerateTokens(user *models.User) (access, refresh string, expiresAt time.Time, err error) {
	now := t.now()
	expiresAt = now.Add(t.accessTTL)

	access, err = t.sign(user, models.TokenTypeAccess, now, expiresAt, t.accessSecret)
	if err != nil {
		return "", "", time.Time{}, err
	}
	refresh, err = t.sign(user, models.TokenTypeRefresh, now, now.Add(t.refreshTTL), t.refreshSecret)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return access, refresh, expiresAt, nil
}

func (t *TokenIssuer) sign(user *models.User, tokenType string, issued, expires time.Time, secret []byte) (string, error) {
	claims := models.UserClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(issued),
			Issuer:    issuer,
			Subject:   user.ID.String(),
		},
		UserID:       user.ID,
		Email:        user.Email,
		TokenType:    tokenType,
		TokenVersion: user.TokenVersion,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", tokenType, err)
	}
	return signed, nil
}

// ParseAccessToken validates an access token and returns its claims.
func (t *TokenIssuer) ParseAccessToken(token string) (*models.UserClaims, error) {
	return t.parse(token, models.TokenTypeAccess, t.accessSecret)
}

// ParseRefreshToken validates a refresh token and returns its claims.
func (t *TokenIssuer) ParseRefreshToken(token string) (*models.UserClaims, error) {
	return t.parse(token, models.TokenTypeRefresh, t.refreshSecret)
}

func (t *TokenIssuer) parse(tokenStr, tokenType string, secret []byte) (*models.UserClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &models.UserClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	}, jwt.WithTimeFunc(t.now), jwt.WithIssuer(issuer))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*models.UserClaims)
	if !ok || !token.Valid || claims.TokenType != tokenType {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
