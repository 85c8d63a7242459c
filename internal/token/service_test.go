package token

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/activation"
	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/catalog"
	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/clock"
	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/identity"
	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/jiterrors"
	"github.com/golang-jwt/jwt/v5"
)

const testServiceAccount = "jit-signer@example.iam.gserviceaccount.com"
const testKid = "test-key-1"

// fakeCredentialsClient signs locally with a test RSA key, standing in
// for the cloud credentials service's remote signJwt call.
type fakeCredentialsClient struct {
	key *rsa.PrivateKey
}

func newFakeCredentialsClient(t *testing.T) *fakeCredentialsClient {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating test RSA key: %v", err)
	}
	return &fakeCredentialsClient{key: key}
}

func (f *fakeCredentialsClient) SignJWT(ctx context.Context, serviceAccount string, payload map[string]any) (string, error) {
	claims := jwt.MapClaims(payload)
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = testKid
	return tok.SignedString(f.key)
}

func newTestService(t *testing.T) (*Service, *fakeCredentialsClient, *clock.Fixed) {
	t.Helper()
	creds := newFakeCredentialsClient(t)
	clk := clock.NewFixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	cache := NewKeyCache(nil, time.Hour, clk)
	cache.Seed(testServiceAccount, map[string]*rsa.PublicKey{testKid: &creds.key.PublicKey})

	svc := NewService(creds, cache, testServiceAccount, time.Hour, clk)
	return svc, creds, clk
}

func testMpaRequest(start time.Time) activation.MpaRequest {
	// IDs equal emails: VerifyToken reconstructs both the beneficiary and
	// the reviewers from the JWT's email-only claims, so an ID that isn't
	// the email would never round-trip through Equal.
	requester := identity.UserID{ID: "alice@example.com", Email: "alice@example.com"}
	bob := identity.UserID{ID: "bob@example.com", Email: "bob@example.com"}
	carol := identity.UserID{ID: "carol@example.com", Email: "carol@example.com"}
	binding := catalog.RoleBinding{ResourceFullName: "//cloudresourcemanager.googleapis.com/projects/project-1", Role: "roles/editor"}
	return activation.NewMpaRequest(requester, binding, []identity.UserID{bob, carol}, "bug#7", start, 15*time.Minute)
}

func TestSignAndVerifyRoundTrip(t *testing.T) {
	svc, _, clk := newTestService(t)
	req := testMpaRequest(clk.Now())

	tokenStr, iat, exp, err := svc.SignToken(context.Background(), req)
	if err != nil {
		t.Fatalf("SignToken: %v", err)
	}
	if !exp.After(iat) {
		t.Fatalf("exp must be after iat")
	}

	got, err := svc.VerifyToken(context.Background(), tokenStr)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}

	if got.ID() != req.ID() {
		t.Errorf("ID mismatch: want %s got %s", req.ID(), got.ID())
	}
	if !got.Requester().Equal(req.Requester()) {
		t.Errorf("requester mismatch: want %+v got %+v", req.Requester(), got.Requester())
	}
	if got.Binding() != req.Binding() {
		t.Errorf("binding mismatch: want %+v got %+v", req.Binding(), got.Binding())
	}
	if got.Justification() != req.Justification() {
		t.Errorf("justification mismatch")
	}
	if !got.StartTime().Equal(req.StartTime()) {
		t.Errorf("start time mismatch: want %s got %s", req.StartTime(), got.StartTime())
	}
	if got.Duration() != req.Duration() {
		t.Errorf("duration mismatch: want %s got %s", req.Duration(), got.Duration())
	}

	wantReviewers := map[string]bool{}
	for _, r := range req.Reviewers {
		wantReviewers[r.Email] = true
	}
	if len(got.Reviewers) != len(wantReviewers) {
		t.Fatalf("reviewer count mismatch: want %d got %d", len(wantReviewers), len(got.Reviewers))
	}
	for _, r := range got.Reviewers {
		if !wantReviewers[r.Email] {
			t.Errorf("unexpected reviewer %s", r.Email)
		}
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	svc, _, clk := newTestService(t)
	req := testMpaRequest(clk.Now())

	tokenStr, _, _, err := svc.SignToken(context.Background(), req)
	if err != nil {
		t.Fatalf("SignToken: %v", err)
	}

	clk.Advance(2 * time.Hour) // past the 1-hour validity
	_, err = svc.VerifyToken(context.Background(), tokenStr)
	if !jiterrors.Is(err, jiterrors.TokenInvalid) {
		t.Fatalf("want TokenInvalid for expired token, got %v", err)
	}
}

func TestVerifyRejectsWrongAudience(t *testing.T) {
	svc, creds, clk := newTestService(t)
	req := testMpaRequest(clk.Now())

	otherSvc := NewService(creds, svc.keys, "someone-else@example.iam.gserviceaccount.com", time.Hour, clk)

	tokenStr, _, _, err := svc.SignToken(context.Background(), req)
	if err != nil {
		t.Fatalf("SignToken: %v", err)
	}
	_, err = otherSvc.VerifyToken(context.Background(), tokenStr)
	if !jiterrors.Is(err, jiterrors.TokenInvalid) {
		t.Fatalf("want TokenInvalid for audience mismatch, got %v", err)
	}
}

func TestVerifyRejectsUnknownSigningKey(t *testing.T) {
	svc, _, clk := newTestService(t)
	req := testMpaRequest(clk.Now())

	tokenStr, _, _, err := svc.SignToken(context.Background(), req)
	if err != nil {
		t.Fatalf("SignToken: %v", err)
	}

	// Reseed the cache with an unrelated key, simulating key rotation
	// the verifier hasn't caught up with.
	other, _ := rsa.GenerateKey(rand.Reader, 2048)
	svc.keys.Seed(testServiceAccount, map[string]*rsa.PublicKey{testKid: &other.PublicKey})

	_, err = svc.VerifyToken(context.Background(), tokenStr)
	if !jiterrors.Is(err, jiterrors.TokenInvalid) {
		t.Fatalf("want TokenInvalid for signature mismatch, got %v", err)
	}
}
