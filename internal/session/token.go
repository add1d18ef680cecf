package session

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// sonicPayload is the broadcast payload handed to the emitting device.
// It is a convenience envelope, not a security boundary: the server never
// trusts its contents on the way back in.
type sonicPayload struct {
	SessionID string `json:"sid"`
	EndMillis int64  `json:"end"`
	Code      string `json:"code"`
}

// EncodeSonicToken packs session id, expiry and code into an opaque
// base64 token for the broadcast collaborator.
func EncodeSonicToken(s Session) string {
	b, _ := json.Marshal(sonicPayload{
		SessionID: s.ID,
		EndMillis: s.EndTime.UnixMilli(),
		Code:      s.Code,
	})
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeSonicToken unpacks a sonic token. Used by tooling and tests; the
// coordinator itself only ever emits tokens.
func DecodeSonicToken(token string) (sessionID string, endMillis int64, code string, err error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", 0, "", fmt.Errorf("decode sonic token: %w", err)
	}
	var p sonicPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", 0, "", fmt.Errorf("decode sonic token: %w", err)
	}
	return p.SessionID, p.EndMillis, p.Code, nil
}
