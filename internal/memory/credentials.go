package memory

import (
	"context"
	"crypto/rand"
	"crypto/rsa"

	"github.com/golang-jwt/jwt/v5"

	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/jiterrors"
)

// KeyID is the fixed key identifier this stand-in signs with. A real
// cloud credentials service rotates keys and reports the active kid;
// this double never rotates, so cmd/jitctl can seed a token.KeyCache
// with the same fixed id.
const KeyID = "dev-key-1"

// CredentialsClient signs locally with a freshly generated RSA key,
// standing in for the cloud credentials service's remote signJwt call
// (spec.md §6). It exists purely so cmd/jitctl can demonstrate a full
// sign/verify round trip without holding real service-account
// credentials — production callers implement token.CredentialsClient
// against the actual cloud credentials API instead.
type CredentialsClient struct {
	key *rsa.PrivateKey
}

// NewCredentialsClient generates a new signing key.
func NewCredentialsClient() (*CredentialsClient, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, jiterrors.Wrap(jiterrors.Transient, err, "generating local signing key")
	}
	return &CredentialsClient{key: key}, nil
}

// PublicKey returns the corresponding public key, for seeding a
// token.KeyCache.
func (c *CredentialsClient) PublicKey() *rsa.PublicKey {
	return &c.key.PublicKey
}

func (c *CredentialsClient) SignJWT(ctx context.Context, serviceAccount string, payload map[string]any) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims(payload))
	tok.Header["kid"] = KeyID
	signed, err := tok.SignedString(c.key)
	if err != nil {
		return "", jiterrors.Wrap(jiterrors.Transient, err, "signing token for %s", serviceAccount)
	}
	return signed, nil
}
