package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessClaims holds the claims embedded in a bearer token. Role and company
// are deliberately absent: they are reloaded from storage on every request.
type AccessClaims struct {
	jwt.RegisteredClaims
	UserID uuid.UUID `json:"sub"`
}

// TokenIssuer signs and verifies HS256 bearer tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

// NewTokenIssuer constructs a TokenIssuer.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, issuer: "odyssey-crm"}
}

// Issue creates a signed token for userID.
func (t *TokenIssuer) Issue(userID uuid.UUID) (string, time.Time, error) {
	now := time.Now()
	expires := now.Add(t.ttl)
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		UserID: userID,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, expires, nil
}

// Parse validates raw and returns the user it was issued to.
func (t *TokenIssuer) Parse(raw string) (uuid.UUID, error) {
	claims := &AccessClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(_ *jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(t.issuer),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse access token: %w", err)
	}
	if claims.UserID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("parse access token: missing subject")
	}
	return claims.UserID, nil
}
