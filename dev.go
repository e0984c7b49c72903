package authx

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// DevCaller returns a synthetic caller for WithDevBypass.
func DevCaller(identity uuid.UUID) Caller {
	return Caller{
		Identity: identity,
		Claims: Claims{
			claimPayload: map[string]any{
				payloadSubdivisionID: "dev",
				payloadUserID:        "dev",
				payloadZupUserID:     identity.String(),
			},
		},
		DevBypass: true,
	}
}

// DevTokenParams holds the attributes embedded by MintDevToken.
type DevTokenParams struct {
	Identity      uuid.UUID
	SubdivisionID string
	UserID        string
	IssuedAt      time.Time
	TTL           time.Duration
	Extra         map[string]any
}

// MintDevToken builds a token in the issuer's shape for local testing.
// It is signed with a throwaway key because authx never checks signatures.
func MintDevToken(p DevTokenParams) (string, error) {
	if p.Identity == uuid.Nil {
		return "", errors.New("identity is required")
	}
	if p.SubdivisionID == "" {
		p.SubdivisionID = "dev"
	}
	if p.UserID == "" {
		p.UserID = "dev"
	}
	if p.IssuedAt.IsZero() {
		p.IssuedAt = time.Now()
	}
	if p.TTL <= 0 {
		p.TTL = time.Hour
	}

	builder := jwt.NewBuilder().
		IssuedAt(p.IssuedAt).
		Expiration(p.IssuedAt.Add(p.TTL)).
		Claim(claimPayload, map[string]any{
			payloadSubdivisionID: p.SubdivisionID,
			payloadUserID:        p.UserID,
			payloadZupUserID:     p.Identity.String(),
		})
	for k, v := range p.Extra {
		builder = builder.Claim(k, v)
	}
	tok, err := builder.Build()
	if err != nil {
		return "", fmt.Errorf("build dev token: %w", err)
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("generate dev key: %w", err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, key))
	if err != nil {
		return "", fmt.Errorf("sign dev token: %w", err)
	}
	return string(signed), nil
}
