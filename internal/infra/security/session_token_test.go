package security

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const testSessionSecret = "0123456789abcdef0123456789abcdef"

func TestSessionTokenIssueAndParse(t *testing.T) {
	issuer, err := NewSessionTokenIssuer(testSessionSecret, "access-gateway", time.Hour)
	if err != nil {
		t.Fatalf("NewSessionTokenIssuer returned error: %v", err)
	}

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	issuer.WithClock(func() time.Time { return now })

	token, expiresAt, err := issuer.Issue("user-1", "alice_1")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if !expiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("unexpected expiry %v", expiresAt)
	}

	claims, err := issuer.Parse(token)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if claims.UserID != "user-1" || claims.Username != "alice_1" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if claims.ID == "" {
		t.Fatal("expected jti to be set")
	}
}

func TestSessionTokenExpired(t *testing.T) {
	issuer, _ := NewSessionTokenIssuer(testSessionSecret, "access-gateway", time.Minute)
	now := time.Now()
	issuer.WithClock(func() time.Time { return now })

	token, _, err := issuer.Issue("user-1", "alice_1")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	issuer.WithClock(func() time.Time { return now.Add(2 * time.Minute) })
	if _, err := issuer.Parse(token); !errors.Is(err, ErrSessionTokenExpired) {
		t.Fatalf("expected ErrSessionTokenExpired, got %v", err)
	}
}

func TestSessionTokenRejectsForeignSignature(t *testing.T) {
	issuer, _ := NewSessionTokenIssuer(testSessionSecret, "access-gateway", time.Hour)
	other, _ := NewSessionTokenIssuer(strings.Repeat("x", 32), "access-gateway", time.Hour)

	token, _, err := other.Issue("user-1", "alice_1")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if _, err := issuer.Parse(token); !errors.Is(err, ErrSessionTokenInvalid) {
		t.Fatalf("expected ErrSessionTokenInvalid, got %v", err)
	}
	if _, err := issuer.Parse(""); !errors.Is(err, ErrSessionTokenInvalid) {
		t.Fatalf("expected ErrSessionTokenInvalid for empty token, got %v", err)
	}
}

func TestNewSessionTokenIssuerRejectsShortSecret(t *testing.T) {
	if _, err := NewSessionTokenIssuer("short", "access-gateway", time.Hour); err == nil {
		t.Fatal("expected error for short secret")
	}
}

func TestGenerateNumericCode(t *testing.T) {
	code, err := GenerateNumericCode(4)
	if err != nil {
		t.Fatalf("GenerateNumericCode returned error: %v", err)
	}
	if len(code) != 4 {
		t.Fatalf("expected 4 digits, got %q", code)
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			t.Fatalf("non-digit in code %q", code)
		}
	}
}
