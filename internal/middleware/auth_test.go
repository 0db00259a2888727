package middleware

import (
	"testing"
	"time"

	"github.com/docverse/core/internal/pkg/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeToken(t *testing.T) {
	assert.Equal(t, "abc", NormalizeToken("abc"))
	assert.Equal(t, "abc", NormalizeToken("  abc  "))
	assert.Equal(t, "abc", NormalizeToken("Bearer abc"))
	assert.Equal(t, "abc", NormalizeToken("bearer abc"))
	assert.Equal(t, "", NormalizeToken("   "))
}

func TestValidateToken(t *testing.T) {
	token, err := jwt.Sign("user-1", "group-1", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateToken("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "group-1", claims.GroupID)
}

func TestValidateTokenMissingClaims(t *testing.T) {
	token, err := jwt.Sign("user-1", "", time.Hour)
	require.NoError(t, err)

	_, err = ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenEmpty(t *testing.T) {
	_, err := ValidateToken("")
	assert.Error(t, err)
}
