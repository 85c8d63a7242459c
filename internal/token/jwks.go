package token

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/clock"
	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/jiterrors"
	"github.com/golang-jwt/jwt/v5"
)

// jwkSet is the standard JSON Web Key Set document shape returned by the
// well-known JWKS endpoint.
type jwkSet struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// WellKnownJWKSURL derives the JWKS URL for a Google-managed service
// account's signing keys, mirroring how ActivationTokenService's
// verifier resolves the well-known URL from the issuer claim.
func WellKnownJWKSURL(serviceAccount string) string {
	return fmt.Sprintf("https://www.googleapis.com/service_accounts/v1/jwk/%s", serviceAccount)
}

// KeyCache fetches and caches a service account's RSA public keys,
// refreshing them no more often than refresh — spec.md §5: "JWKs are
// cached with a refresh interval bounded by the keys' stated validity."
type KeyCache struct {
	httpClient *http.Client
	refresh    time.Duration
	clock      clock.Clock

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

// NewKeyCache builds a KeyCache using httpClient (or http.DefaultClient
// if nil) to fetch JWKS documents, refreshing at most every refresh.
func NewKeyCache(httpClient *http.Client, refresh time.Duration, clk clock.Clock) *KeyCache {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &KeyCache{httpClient: httpClient, refresh: refresh, clock: clk, entries: make(map[string]cacheEntry)}
}

// Seed pre-populates the cache for serviceAccount, bypassing the JWKS
// HTTP fetch. Used by tests and by any deployment that pins keys out of
// band instead of fetching the well-known endpoint.
func (c *KeyCache) Seed(serviceAccount string, keys map[string]*rsa.PublicKey) {
	c.mu.Lock()
	c.entries[serviceAccount] = cacheEntry{keys: keys, fetchedAt: c.clock.Now()}
	c.mu.Unlock()
}

// Keyfunc returns a jwt.Keyfunc resolving a token's "kid" header against
// serviceAccount's cached (or freshly fetched) key set.
func (c *KeyCache) Keyfunc(ctx context.Context, serviceAccount string) jwt.Keyfunc {
	return func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		keys, err := c.keysFor(ctx, serviceAccount)
		if err != nil {
			return nil, err
		}
		key, ok := keys[kid]
		if !ok {
			return nil, jiterrors.New(jiterrors.TokenInvalid, "no matching signing key %q for %s", kid, serviceAccount)
		}
		return key, nil
	}
}

func (c *KeyCache) keysFor(ctx context.Context, serviceAccount string) (map[string]*rsa.PublicKey, error) {
	c.mu.Lock()
	entry, ok := c.entries[serviceAccount]
	fresh := ok && c.clock.Now().Sub(entry.fetchedAt) < c.refresh
	c.mu.Unlock()
	if fresh {
		return entry.keys, nil
	}

	keys, err := c.fetch(ctx, serviceAccount)
	if err != nil {
		if ok {
			// Serve the stale cache rather than fail a verification
			// outright because of a transient JWKS-endpoint hiccup.
			return entry.keys, nil
		}
		return nil, err
	}

	c.mu.Lock()
	c.entries[serviceAccount] = cacheEntry{keys: keys, fetchedAt: c.clock.Now()}
	c.mu.Unlock()
	return keys, nil
}

func (c *KeyCache) fetch(ctx context.Context, serviceAccount string) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, WellKnownJWKSURL(serviceAccount), nil)
	if err != nil {
		return nil, jiterrors.Wrap(jiterrors.Transient, err, "building JWKS request for %s", serviceAccount)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, jiterrors.Wrap(jiterrors.Transient, err, "fetching JWKS for %s", serviceAccount)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, jiterrors.New(jiterrors.Transient, "JWKS endpoint for %s returned %d", serviceAccount, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, jiterrors.Wrap(jiterrors.Transient, err, "reading JWKS response for %s", serviceAccount)
	}

	var set jwkSet
	if err := json.Unmarshal(body, &set); err != nil {
		return nil, jiterrors.Wrap(jiterrors.Transient, err, "parsing JWKS response for %s", serviceAccount)
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if k.Kty != "RSA" {
			continue
		}
		pub, err := rsaPublicKeyFromJWK(k)
		if err != nil {
			continue
		}
		keys[k.Kid] = pub
	}
	return keys, nil
}

// rsaPublicKeyFromJWK assembles an *rsa.PublicKey from a JWK's
// base64url-encoded modulus and exponent.
func rsaPublicKeyFromJWK(k jwk) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("token: decoding modulus for key %q: %w", k.Kid, err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("token: decoding exponent for key %q: %w", k.Kid, err)
	}

	n := new(big.Int).SetBytes(nBytes)
	e := new(big.Int).SetBytes(eBytes)

	return &rsa.PublicKey{N: n, E: int(e.Int64())}, nil
}
