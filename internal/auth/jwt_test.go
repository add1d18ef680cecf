package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	token, exp, err := Issue("stu-1", "student", "sonic-attend", "secret", time.Hour)
	require.NoError(t, err)
	assert.True(t, exp.After(time.Now()))

	claims, err := Parse(token, "secret", "sonic-attend")
	require.NoError(t, err)
	assert.Equal(t, "stu-1", claims.Subject)
	assert.Equal(t, "student", claims.Role)
}

func TestParseRejectsWrongKey(t *testing.T) {
	token, _, err := Issue("stu-1", "student", "sonic-attend", "secret", time.Hour)
	require.NoError(t, err)

	_, err = Parse(token, "other-secret", "sonic-attend")
	require.Error(t, err)
}

func TestParseRejectsIssuerMismatch(t *testing.T) {
	token, _, err := Issue("stu-1", "student", "someone-else", "secret", time.Hour)
	require.NoError(t, err)

	_, err = Parse(token, "secret", "sonic-attend")
	require.Error(t, err)
}

func TestParseRejectsExpired(t *testing.T) {
	token, _, err := Issue("stu-1", "student", "sonic-attend", "secret", -time.Minute)
	require.NoError(t, err)

	_, err = Parse(token, "secret", "sonic-attend")
	require.Error(t, err)
}

func TestLocalVerifier(t *testing.T) {
	token, _, err := Issue("fac-1", "faculty", "sonic-attend", "secret", time.Hour)
	require.NoError(t, err)

	v := LocalVerifier{SigningKey: "secret", Issuer: "sonic-attend"}
	id, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, Identity{Subject: "fac-1", Role: "faculty"}, id)

	_, err = v.Verify(context.Background(), "garbage")
	require.Error(t, err)
}
