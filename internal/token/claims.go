// Package token implements the Activation Token Service (C4): minting
// and verifying signed, short-lived, audience-bound JWTs that carry a
// pending peer-approval request.
package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the JWT payload from spec.md §4.4. All fields are required
// on verification; a token missing one is rejected as TokenInvalid.
type Claims struct {
	jwt.RegisteredClaims

	JTI           string   `json:"jti"`
	Beneficiary   string   `json:"beneficiary"`
	Reviewers     []string `json:"reviewers"`
	Resource      string   `json:"resource"`
	Role          string   `json:"role"`
	Type          string   `json:"type"`
	Justification string   `json:"justification"`
	Start         int64    `json:"start"`
	End           int64    `json:"end"`
}

// claimsPayload converts Claims to the plain JSON map the credentials
// client's signJwt call expects, since the actual RS256 signing happens
// out-of-process against a cloud-managed key rather than a local
// *rsa.PrivateKey.
func claimsPayload(c Claims) map[string]any {
	return map[string]any{
		"iss":           c.Issuer,
		"aud":           audienceString(c.Audience),
		"iat":           c.IssuedAt.Unix(),
		"exp":           c.ExpiresAt.Unix(),
		"jti":           c.JTI,
		"beneficiary":   c.Beneficiary,
		"reviewers":     c.Reviewers,
		"resource":      c.Resource,
		"role":          c.Role,
		"type":          c.Type,
		"justification": c.Justification,
		"start":         c.Start,
		"end":           c.End,
	}
}

func audienceString(aud jwt.ClaimStrings) string {
	if len(aud) == 0 {
		return ""
	}
	return aud[0]
}

func newTime(t time.Time) *jwt.NumericDate {
	return jwt.NewNumericDate(t)
}
