// Package auth issues and verifies the bearer tokens that carry a signed-in user id.
package auth

import (
	"errors"
	"fmt"
	"time"

	"pawchat/backend/internal/config"

	jwt "github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for tokens that are malformed, forged or expired.
var ErrInvalidToken = errors.New("auth: invalid or expired token")

// Claims is what a verified token says about its holder.
type Claims struct {
	UserID    string
	ExpiresAt time.Time
}

// Issuer signs HS256 tokens with a shared secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration

	// Now is the token clock, replaceable in tests.
	Now func() time.Time
}

// NewIssuer creates an issuer. A non-positive ttl falls back to config.DefaultTokenTTL.
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = config.DefaultTokenTTL
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, Now: time.Now}
}

// Issue генерує JWT для користувача
func (i *Issuer) Issue(userID string) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, errors.New("auth: empty user id")
	}
	now := i.Now()
	expiresAt := now.Add(i.ttl).Truncate(time.Second)
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     expiresAt.Unix(),
		"iat":     now.Unix(),
		"iss":     config.TokenIssuer, // Видавець
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse verifies the signature, issuer and expiry and returns the claims.
func (i *Issuer) Parse(tokenString string) (Claims, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(config.TokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.Now),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	userID, _ := claims["user_id"].(string)
	if userID == "" {
		return Claims{}, fmt.Errorf("%w: missing user_id", ErrInvalidToken)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return Claims{}, fmt.Errorf("%w: missing exp", ErrInvalidToken)
	}
	return Claims{UserID: userID, ExpiresAt: exp.Time}, nil
}
