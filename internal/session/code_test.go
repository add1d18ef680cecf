package session

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSessionID(t *testing.T) {
	t0 := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	id := newSessionID(t0)
	assert.True(t, strings.HasPrefix(id, "sess_"))

	other := newSessionID(t0)
	assert.NotEqual(t, id, other, "ids carry per-call entropy")
}

func TestNewCodeFormat(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 500; i++ {
		code, err := newCode()
		require.NoError(t, err)
		require.Len(t, code, codeLength)
		for _, r := range code {
			assert.Contains(t, codeAlphabet, string(r))
		}
		seen[code] = struct{}{}
	}
	// 36^6 combinations; 500 draws colliding en masse would mean broken entropy.
	assert.Greater(t, len(seen), 490)
}
