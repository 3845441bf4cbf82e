package util

import (
	"testing"
	"time"

	"github.com/mmo7amed2010/swenam-sis-sub001/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	token, err := GenerateJWT(42, model.Teacher, "t@example.com", "secret", time.Hour)
	require.NoError(t, err)

	claims, err := ParseJWT(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, model.Teacher, claims.Role)

	_, err = ParseJWT(token, "other-secret")
	assert.Error(t, err)
}

func TestParseJWTExpired(t *testing.T) {
	token, err := GenerateJWT(1, model.Student, "", "secret", -time.Minute)
	require.NoError(t, err)
	_, err = ParseJWT(token, "secret")
	assert.Error(t, err)
}
