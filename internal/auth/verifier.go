package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Identity is the resolved caller. The coordinator only ever consumes
// Subject; Role is informational.
type Identity struct {
	Subject string `json:"subject_id"`
	Role    string `json:"role"`
}

// Verifier resolves a bearer credential to a stable caller identity.
// Implementations: LocalVerifier (HS256 JWT) and RemoteVerifier (external
// identity service).
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// LocalVerifier validates tokens this process issued itself.
type LocalVerifier struct {
	SigningKey string
	Issuer     string
}

// Verify parses and validates a locally issued JWT.
func (v LocalVerifier) Verify(_ context.Context, token string) (Identity, error) {
	claims, err := Parse(token, v.SigningKey, v.Issuer)
	if err != nil {
		return Identity{}, err
	}
	return Identity{Subject: claims.Subject, Role: claims.Role}, nil
}

const identityKey = "identity"

// Bearer returns gin middleware that resolves the Authorization header
// through the verifier and stores the identity on the request context.
func Bearer(v Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		token := strings.TrimSpace(authz[len("bearer "):])
		id, err := v.Verify(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// SubjectFrom returns the authenticated subject id, or "" outside the
// Bearer middleware.
func SubjectFrom(c *gin.Context) string {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(Identity); ok {
			return id.Subject
		}
	}
	return ""
}
