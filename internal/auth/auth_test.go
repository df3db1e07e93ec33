package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestJWTResolver_ResolveIdentity(t *testing.T) {
	// given
	r := NewJWTResolver(Config{Secret: "s3cr3t"})
	token, err := r.IssueToken("U1", time.Minute)
	require.NoError(t, err)

	// when
	identity, ok, err := r.ResolveIdentity(WithCredentials(context.Background(), token))

	// then
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "U1", identity)
}

func TestJWTResolver_CustomClaim(t *testing.T) {
	r := NewJWTResolver(Config{Secret: "s3cr3t", IdentityClaim: "sub"})
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "U9"}).SignedString([]byte("s3cr3t"))
	require.NoError(t, err)

	identity, ok, err := r.ResolveIdentity(WithCredentials(context.Background(), token))

	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "U9", identity)
}

func TestJWTResolver_NoIdentityClaim(t *testing.T) {
	// given
	r := NewJWTResolver(Config{Secret: "s3cr3t"})
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"name": "someone"}).SignedString([]byte("s3cr3t"))
	require.NoError(t, err)

	// when
	identity, ok, err := r.ResolveIdentity(WithCredentials(context.Background(), token))

	// then
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, identity)
}

func TestJWTResolver_Unauthenticated(t *testing.T) {
	r := NewJWTResolver(Config{Secret: "s3cr3t"})

	other, err := NewJWTResolver(Config{Secret: "other"}).IssueToken("U1", time.Minute)
	require.NoError(t, err)
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"credId": "U1",
		"exp":    jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}).SignedString([]byte("s3cr3t"))
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"credId": "U1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, ctx := range map[string]context.Context{
		"NoCredentials":  context.Background(),
		"Empty":          WithCredentials(context.Background(), ""),
		"Garbage":        WithCredentials(context.Background(), "not-a-token"),
		"WrongSecret":    WithCredentials(context.Background(), other),
		"Expired":        WithCredentials(context.Background(), expired),
		"UnsignedMethod": WithCredentials(context.Background(), none),
	} {
		_, ok, err := r.ResolveIdentity(ctx)
		require.False(t, ok, name)
		require.True(t, errors.Is(err, ErrUnauthenticated), name)
	}
}

func TestJWTResolver_ZeroTTLNeverExpires(t *testing.T) {
	r := NewJWTResolver(Config{Secret: "s3cr3t"})
	token, err := r.IssueToken("U1", 0)
	require.NoError(t, err)

	_, err = jwt.Parse(token, func(*jwt.Token) (interface{}, error) { return []byte("s3cr3t"), nil })
	require.NoError(t, err)

	identity, ok, err := r.ResolveIdentity(WithCredentials(context.Background(), token))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "U1", identity)
}

func TestCredentialsFrom(t *testing.T) {
	_, ok := CredentialsFrom(context.Background())
	require.False(t, ok)

	token, ok := CredentialsFrom(WithCredentials(context.Background(), "abc"))
	require.True(t, ok)
	require.Equal(t, "abc", token)
}
