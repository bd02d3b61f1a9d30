// ABOUTME: JWT token verification for authenticating gRPC requests
// ABOUTME: Uses HS256 signing; tokens carry the principal ID and its kind

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the minimum accepted HS256 secret size in bytes.
const MinSecretLength = 32

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
	ErrWeakSecret   = fmt.Errorf("jwt secret must be at least %d bytes", MinSecretLength)
)

// PrincipalKind says how a token holder is authorized.
type PrincipalKind string

const (
	// KindOperator tokens belong to channel adapters and administrators.
	// Operators may act on behalf of any user.
	KindOperator PrincipalKind = "operator"
	// KindUser tokens belong to a persistent user and act only as that user.
	KindUser PrincipalKind = "user"
)

// Claims is the verified content of a token.
type Claims struct {
	Subject   string
	Kind      PrincipalKind
	ExpiresAt time.Time
}

// TokenVerifier defines the interface for token verification
type TokenVerifier interface {
	Verify(tokenString string) (*Claims, error)
}

// JWTVerifier implements TokenVerifier using HS256 signed JWTs
type JWTVerifier struct {
	secret []byte
	now    func() time.Time
}

// NewJWTVerifier creates a new JWT verifier with the given secret.
// Returns ErrWeakSecret if the secret is shorter than MinSecretLength.
func NewJWTVerifier(secret []byte) (*JWTVerifier, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	return &JWTVerifier{secret: secret, now: time.Now}, nil
}

// Verify validates the token and extracts the "sub" and "kind" claims
func (v *JWTVerifier) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithTimeFunc(v.now), jwt.WithExpirationRequired())

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return nil, fmt.Errorf("%w: sub", ErrMissingClaim)
	}

	kind, _ := claims["kind"].(string)
	switch PrincipalKind(kind) {
	case KindOperator, KindUser:
	case "":
		return nil, fmt.Errorf("%w: kind", ErrMissingClaim)
	default:
		return nil, fmt.Errorf("%w: unknown principal kind %q", ErrInvalidToken, kind)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, fmt.Errorf("%w: exp", ErrMissingClaim)
	}

	return &Claims{Subject: sub, Kind: PrincipalKind(kind), ExpiresAt: exp.Time}, nil
}

// Generate creates a new JWT token for the given principal with expiration
func (v *JWTVerifier) Generate(subject string, kind PrincipalKind, expiresIn time.Duration) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	if kind != KindOperator && kind != KindUser {
		return "", fmt.Errorf("%w: unknown principal kind %q", ErrInvalidToken, kind)
	}

	now := v.now()
	claims := jwt.MapClaims{
		"sub":  subject,
		"kind": string(kind),
		"iat":  now.Unix(),
		"exp":  now.Add(expiresIn).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
