package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// RemoteVerifier calls the external identity service to resolve bearer
// credentials. With Skip set it runs in mock mode: tokens of the form
// "mock-<subject>" resolve without any network call, which keeps local
// development working without the collaborator (the upstream deployment
// does the same when no identity backend is configured).
type RemoteVerifier struct {
	BaseURL string
	HTTP    *http.Client
	Skip    bool
}

// NewRemoteVerifier creates a verifier client with a short timeout; token
// verification sits on every request path.
func NewRemoteVerifier(baseURL string, skip bool) *RemoteVerifier {
	return &RemoteVerifier{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Skip:    skip,
		HTTP: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Verify resolves a bearer token to an identity.
func (v *RemoteVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	if v.Skip {
		subject := strings.TrimPrefix(token, "mock-")
		if subject == token || subject == "" {
			return Identity{}, errors.New("invalid mock token")
		}
		return Identity{Subject: subject, Role: "student"}, nil
	}

	body, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return Identity{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.BaseURL+"/v1/verify", bytes.NewReader(body))
	if err != nil {
		return Identity{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.HTTP.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("identity service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return Identity{}, errors.New("credential rejected")
	}
	if resp.StatusCode != http.StatusOK {
		return Identity{}, fmt.Errorf("identity service status %d", resp.StatusCode)
	}

	var id Identity
	if err := json.NewDecoder(resp.Body).Decode(&id); err != nil {
		return Identity{}, fmt.Errorf("identity service: %w", err)
	}
	if id.Subject == "" {
		return Identity{}, errors.New("identity service returned empty subject")
	}
	return id, nil
}

// Health pings the identity service. Used at startup for a loud warning,
// never to gate requests.
func (v *RemoteVerifier) Health(ctx context.Context) error {
	if v.Skip {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.BaseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := v.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("identity service status %d", resp.StatusCode)
	}
	return nil
}
