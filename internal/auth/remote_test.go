package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteVerifierMockMode(t *testing.T) {
	v := NewRemoteVerifier("", true)

	id, err := v.Verify(context.Background(), "mock-stu-42")
	require.NoError(t, err)
	assert.Equal(t, "stu-42", id.Subject)

	_, err = v.Verify(context.Background(), "real-looking-token")
	require.Error(t, err)

	_, err = v.Verify(context.Background(), "mock-")
	require.Error(t, err)
}

func TestRemoteVerifierResolvesSubject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/verify", r.URL.Path)

		var req struct {
			Token string `json:"token"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		switch req.Token {
		case "good-token":
			json.NewEncoder(w).Encode(Identity{Subject: "stu-7", Role: "student"})
		case "empty-subject":
			json.NewEncoder(w).Encode(Identity{})
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()

	v := NewRemoteVerifier(srv.URL, false)

	id, err := v.Verify(context.Background(), "good-token")
	require.NoError(t, err)
	assert.Equal(t, Identity{Subject: "stu-7", Role: "student"}, id)

	_, err = v.Verify(context.Background(), "bad-token")
	require.Error(t, err)

	_, err = v.Verify(context.Background(), "empty-subject")
	require.Error(t, err)
}

func TestRemoteVerifierHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	require.NoError(t, NewRemoteVerifier(srv.URL, false).Health(context.Background()))
	require.NoError(t, NewRemoteVerifier("", true).Health(context.Background()))
}
