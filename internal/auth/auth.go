// Package auth resolves the identity of the caller from the bearer token
// the transport stored in the request context.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/SystemBuilders/MigrationLock/internal/lockservice"
	"github.com/golang-jwt/jwt/v5"
)

// Error provides constant error strings to the driver functions.
type Error string

func (e Error) Error() string { return string(e) }

// ErrUnauthenticated is returned when the request carries no valid token.
const ErrUnauthenticated = Error("unauthenticated")

// Config contains the token validation settings.
type Config struct {
	Secret        string `fig:"secret" validate:"required"`
	IdentityClaim string `fig:"identity_claim" default:"credId"`
}

type credentialsKey struct{}

// WithCredentials returns a copy of ctx carrying the raw bearer token.
func WithCredentials(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, credentialsKey{}, token)
}

// CredentialsFrom returns the raw bearer token carried by ctx.
func CredentialsFrom(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(credentialsKey{}).(string)
	return token, ok && token != ""
}

var _ lockservice.IdentityResolver = (*JWTResolver)(nil)

// JWTResolver validates HS256 tokens and reads the identity from one of
// their claims.
type JWTResolver struct {
	secret []byte
	claim  string
}

// NewJWTResolver returns a resolver for tokens signed with cfg.Secret.
func NewJWTResolver(cfg Config) *JWTResolver {
	claim := cfg.IdentityClaim
	if claim == "" {
		claim = "credId"
	}
	return &JWTResolver{secret: []byte(cfg.Secret), claim: claim}
}

// ResolveIdentity satisfies lockservice.IdentityResolver interface.
//
// A valid token without the identity claim resolves to no identity, which
// is not an authentication fault.
func (r *JWTResolver) ResolveIdentity(ctx context.Context) (string, bool, error) {
	raw, ok := CredentialsFrom(ctx)
	if !ok {
		return "", false, ErrUnauthenticated
	}
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(_ *jwt.Token) (interface{}, error) {
		return r.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	identity, _ := claims[r.claim].(string)
	if identity == "" {
		return "", false, nil
	}
	return identity, true, nil
}

// IssueToken signs a token carrying credID in the identity claim. A zero
// ttl issues a token that never expires.
func (r *JWTResolver) IssueToken(credID string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{r.claim: credID}
	if ttl > 0 {
		claims["exp"] = jwt.NewNumericDate(time.Now().Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.secret)
}
