package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"
)

var (
	// ErrSessionTokenExpired indicates the token was well-formed but past its exp claim.
	ErrSessionTokenExpired = errors.New("session token: expired")
	// ErrSessionTokenInvalid covers malformed, tampered or wrongly signed tokens.
	ErrSessionTokenInvalid = errors.New("session token: invalid")
)

const (
	defaultSessionTTL  = 24 * time.Hour
	minSessionKeyBytes = 32
)

// SessionClaims is the payload of a session token.
type SessionClaims struct {
	UserID   string `json:"uid"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// SessionTokenIssuer signs and parses HS256 session tokens.
type SessionTokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionTokenIssuer validates the shared secret and builds an issuer.
func NewSessionTokenIssuer(secret, issuer string, ttl time.Duration) (*SessionTokenIssuer, error) {
	if len(secret) < minSessionKeyBytes {
		return nil, fmt.Errorf("session token: secret must be at least %d bytes", minSessionKeyBytes)
	}
	issuer = strings.TrimSpace(issuer)
	if issuer == "" {
		return nil, fmt.Errorf("session token: issuer is required")
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &SessionTokenIssuer{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// WithClock overrides the internal clock, used in tests.
func (i *SessionTokenIssuer) WithClock(clock func() time.Time) {
	if clock != nil {
		i.now = clock
	}
}

// TTL reports the session lifetime.
func (i *SessionTokenIssuer) TTL() time.Duration {
	return i.ttl
}

// Issue signs a token for the user and returns it with its expiry.
func (i *SessionTokenIssuer) Issue(userID, username string) (string, time.Time, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", time.Time{}, fmt.Errorf("session token: user id is required")
	}

	now := i.now().UTC()
	expiresAt := now.Add(i.ttl)
	claims := &SessionClaims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("session token: sign: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse verifies the signature, issuer and expiry of raw and returns its claims.
func (i *SessionTokenIssuer) Parse(raw string) (*SessionClaims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrSessionTokenInvalid
	}

	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrSessionTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrSessionTokenInvalid, err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, ErrSessionTokenInvalid
	}
	return claims, nil
}
