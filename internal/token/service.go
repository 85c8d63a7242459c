package token

import (
	"context"
	"time"

	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/activation"
	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/catalog"
	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/clock"
	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/identity"
	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/jiterrors"
	"github.com/golang-jwt/jwt/v5"
)

// CredentialsClient is the outbound signing collaborator (spec.md §6):
// the engine never holds the private key itself, it asks the cloud
// credentials service to sign an arbitrary claim set as serviceAccount.
type CredentialsClient interface {
	SignJWT(ctx context.Context, serviceAccount string, payload map[string]any) (string, error)
}

// Service is the Activation Token Service (C4).
type Service struct {
	credentials    CredentialsClient
	keys           *KeyCache
	serviceAccount string
	validity       time.Duration
	clock          clock.Clock
}

// NewService builds a Service. serviceAccount is both the issuer and the
// audience of every token it mints; validity bounds exp-iat.
func NewService(credentials CredentialsClient, keys *KeyCache, serviceAccount string, validity time.Duration, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.System{}
	}
	return &Service{credentials: credentials, keys: keys, serviceAccount: serviceAccount, validity: validity, clock: clk}
}

// SignToken mints a signed token embedding req, returning the compact
// JWT plus its issuance and expiry times.
func (s *Service) SignToken(ctx context.Context, req activation.MpaRequest) (string, time.Time, time.Time, error) {
	iat := s.clock.Now()
	exp := iat.Add(s.validity)

	binding := req.Binding()
	reviewerEmails := make([]string, len(req.Reviewers))
	for i, r := range req.Reviewers {
		reviewerEmails[i] = r.Email
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.serviceAccount,
			Audience:  jwt.ClaimStrings{s.serviceAccount},
			IssuedAt:  newTime(iat),
			ExpiresAt: newTime(exp),
		},
		JTI:           req.ID().String(),
		Beneficiary:   req.Requester().Email,
		Reviewers:     reviewerEmails,
		Resource:      binding.ResourceFullName,
		Role:          binding.Role,
		Type:          string(activation.KindMpa),
		Justification: req.Justification(),
		Start:         req.StartTime().Unix(),
		End:           req.StartTime().Add(req.Duration()).Unix(),
	}

	compact, err := s.credentials.SignJWT(ctx, s.serviceAccount, claimsPayload(claims))
	if err != nil {
		return "", time.Time{}, time.Time{}, jiterrors.Wrap(jiterrors.Transient, err, "signing activation token")
	}
	return compact, iat, exp, nil
}

// VerifyToken validates tokenStr's signature, algorithm, issuer,
// audience, and expiry, then reconstructs the MpaRequest it embeds.
func (s *Service) VerifyToken(ctx context.Context, tokenStr string) (activation.MpaRequest, error) {
	keyfunc := s.keys.Keyfunc(ctx, s.serviceAccount)

	var claims Claims
	parsed, err := jwt.ParseWithClaims(tokenStr, &claims, keyfunc,
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer(s.serviceAccount),
		jwt.WithAudience(s.serviceAccount),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		return activation.MpaRequest{}, jiterrors.Wrap(jiterrors.TokenInvalid, err, "activation token failed verification")
	}
	if !parsed.Valid {
		return activation.MpaRequest{}, jiterrors.New(jiterrors.TokenInvalid, "activation token failed verification")
	}
	if claims.Type != string(activation.KindMpa) {
		return activation.MpaRequest{}, jiterrors.New(jiterrors.TokenInvalid, "unexpected activation type %q in token", claims.Type)
	}
	if claims.IssuedAt == nil || claims.Beneficiary == "" || len(claims.Reviewers) == 0 ||
		claims.Resource == "" || claims.Role == "" || claims.Justification == "" ||
		claims.Start == 0 || claims.End == 0 {
		return activation.MpaRequest{}, jiterrors.New(jiterrors.TokenInvalid, "activation token is missing required claims")
	}

	id := activation.ID(claims.JTI)
	if err := checkIDKind(id, activation.KindMpa); err != nil {
		return activation.MpaRequest{}, err
	}

	requester := identity.UserID{ID: claims.Beneficiary, Email: claims.Beneficiary}
	reviewers := make([]identity.UserID, len(claims.Reviewers))
	for i, email := range claims.Reviewers {
		reviewers[i] = identity.UserID{ID: email, Email: email}
	}
	binding := catalog.RoleBinding{ResourceFullName: claims.Resource, Role: claims.Role}
	start := time.Unix(claims.Start, 0).UTC()
	duration := time.Unix(claims.End, 0).Sub(start)

	return activation.ReconstructMpaRequest(id, requester, binding, reviewers, claims.Justification, start, duration), nil
}

// checkIDKind rejects a token whose jti doesn't carry the expected
// activation-type prefix, guarding against cross-type token confusion
// (spec.md §3: "ActivationId ... contains the activation type as a
// prefix so token consumers can reject cross-type confusion").
func checkIDKind(id activation.ID, want activation.Kind) error {
	prefix := string(want) + "-"
	if len(id) < len(prefix) || string(id[:len(prefix)]) != prefix {
		return jiterrors.New(jiterrors.TokenInvalid, "activation id %q does not match expected type %s", id, want)
	}
	return nil
}
