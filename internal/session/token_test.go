package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSonicTokenRoundTrip(t *testing.T) {
	end := time.Date(2025, 3, 10, 9, 45, 0, 0, time.UTC)
	sess := Session{ID: "sess_123", Code: "AB12CD", EndTime: end}

	token := EncodeSonicToken(sess)

	sid, endMillis, code, err := DecodeSonicToken(token)
	require.NoError(t, err)
	assert.Equal(t, "sess_123", sid)
	assert.Equal(t, end.UnixMilli(), endMillis)
	assert.Equal(t, "AB12CD", code)
}

func TestDecodeSonicTokenRejectsGarbage(t *testing.T) {
	_, _, _, err := DecodeSonicToken("not base64 at all!!!")
	require.Error(t, err)

	// Valid base64, invalid payload.
	_, _, _, err = DecodeSonicToken("bm90IGpzb24=")
	require.Error(t, err)
}
