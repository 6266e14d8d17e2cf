package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndVerifyAccessToken(t *testing.T) {
	m := NewJWTManager("test-secret", "test-issuer")

	token, err := m.GenerateAccessToken("user-123", "alice@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := m.VerifyAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.UserID)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, "test-issuer", claims.Issuer)
	assert.Equal(t, "user-123", claims.Subject)
}

func TestVerifyAccessTokenWrongSecret(t *testing.T) {
	m1 := NewJWTManager("secret-one", "")
	m2 := NewJWTManager("secret-two", "")

	token, err := m1.GenerateAccessToken("user-123", "alice@example.com")
	require.NoError(t, err)

	_, err = m2.VerifyAccessToken(token)
	assert.Error(t, err)
}

func TestVerifyAccessTokenGarbage(t *testing.T) {
	m := NewJWTManager("test-secret", "")

	_, err := m.VerifyAccessToken("not-a-jwt")
	assert.Error(t, err)
}

func TestDefaultIssuer(t *testing.T) {
	m := NewJWTManager("test-secret", "")

	token, err := m.GenerateAccessToken("user-123", "alice@example.com")
	require.NoError(t, err)

	claims, err := m.VerifyAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ssi-management-system", claims.Issuer)
}

func TestExtractTokenFromHeader(t *testing.T) {
	token, err := ExtractTokenFromHeader("Bearer abc.def.ghi")
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", token)

	_, err = ExtractTokenFromHeader("")
	assert.Error(t, err)

	_, err = ExtractTokenFromHeader("Basic abc")
	assert.Error(t, err)
}

func TestGenerateRandomToken(t *testing.T) {
	a, err := GenerateRandomToken(32)
	require.NoError(t, err)
	assert.Len(t, a, 64) // 32 字节 -> 64 位十六进制

	b, err := GenerateRandomToken(32)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestGenerateRefreshToken(t *testing.T) {
	m := NewJWTManager("test-secret", "")

	token, err := m.GenerateRefreshToken()
	require.NoError(t, err)
	assert.Len(t, token, 64)
}
