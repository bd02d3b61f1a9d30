// ABOUTME: Unit tests for JWT token verification and generation
// ABOUTME: Tests valid tokens, invalid tokens, expired tokens, and principal kinds

package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var tokenTestSecret = []byte("token-test-secret-of-32-bytes!!!")

func newTestVerifier(t *testing.T) *JWTVerifier {
	t.Helper()
	verifier, err := NewJWTVerifier(tokenTestSecret)
	if err != nil {
		t.Fatalf("NewJWTVerifier() error = %v", err)
	}
	return verifier
}

func TestNewJWTVerifier_RejectsShortSecret(t *testing.T) {
	_, err := NewJWTVerifier([]byte("too-short"))
	if !errors.Is(err, ErrWeakSecret) {
		t.Errorf("NewJWTVerifier() error = %v, want ErrWeakSecret", err)
	}
}

func TestJWTVerifier_ValidToken(t *testing.T) {
	verifier := newTestVerifier(t)

	for _, kind := range []PrincipalKind{KindOperator, KindUser} {
		token, err := verifier.Generate("principal-123", kind, time.Hour)
		if err != nil {
			t.Fatalf("Generate(%s) error = %v", kind, err)
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			t.Fatalf("Verify() error = %v", err)
		}

		if claims.Subject != "principal-123" {
			t.Errorf("Subject = %q, want %q", claims.Subject, "principal-123")
		}
		if claims.Kind != kind {
			t.Errorf("Kind = %q, want %q", claims.Kind, kind)
		}
	}
}

func TestJWTVerifier_InvalidToken(t *testing.T) {
	verifier := newTestVerifier(t)

	otherVerifier, err := NewJWTVerifier([]byte("a-different-secret-of-32-bytes!!"))
	if err != nil {
		t.Fatalf("NewJWTVerifier() error = %v", err)
	}
	wrongSecret, _ := otherVerifier.Generate("principal-123", KindOperator, time.Hour)

	noKind, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "principal-123",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(tokenTestSecret)

	badKind, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "principal-123",
		"kind": "agent",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString(tokenTestSecret)

	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "principal-123",
		"kind": "operator",
	}).SignedString(tokenTestSecret)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{name: "empty token", token: "", want: ErrInvalidToken},
		{name: "garbage token", token: "not-a-jwt-token", want: ErrInvalidToken},
		{name: "malformed JWT", token: "header.payload.signature", want: ErrInvalidToken},
		{name: "wrong secret", token: wrongSecret, want: ErrInvalidToken},
		{name: "missing kind", token: noKind, want: ErrMissingClaim},
		{name: "unknown kind", token: badKind, want: ErrInvalidToken},
		{name: "missing expiry", token: noExpiry, want: ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifier.Verify(tt.token)
			if !errors.Is(err, tt.want) {
				t.Errorf("Verify() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestJWTVerifier_ExpiredToken(t *testing.T) {
	verifier := newTestVerifier(t)

	// Generate a token that expired 1 hour ago
	token, err := verifier.Generate("principal-123", KindUser, -time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	_, err = verifier.Verify(token)
	if !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Verify() error = %v, want ErrExpiredToken", err)
	}
}

func TestJWTVerifier_ClockControlsExpiry(t *testing.T) {
	verifier := newTestVerifier(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	verifier.now = func() time.Time { return base }

	token, err := verifier.Generate("user-1", KindUser, time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	claims, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !claims.ExpiresAt.Equal(base.Add(time.Hour)) {
		t.Errorf("ExpiresAt = %v, want %v", claims.ExpiresAt, base.Add(time.Hour))
	}

	verifier.now = func() time.Time { return base.Add(2 * time.Hour) }
	if _, err := verifier.Verify(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Verify() after expiry error = %v, want ErrExpiredToken", err)
	}
}

func TestJWTVerifier_Generate_RejectsBadInput(t *testing.T) {
	verifier := newTestVerifier(t)

	if _, err := verifier.Generate("", KindUser, time.Hour); !errors.Is(err, ErrMissingClaim) {
		t.Errorf("Generate(empty subject) error = %v, want ErrMissingClaim", err)
	}
	if _, err := verifier.Generate("p", PrincipalKind("agent"), time.Hour); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Generate(unknown kind) error = %v, want ErrInvalidToken", err)
	}
}
