package cli

import (
	"context"
	"testing"
	"time"

	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/catalog"
	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/config"
	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/identity"
)

func testConfig() config.Config {
	return config.Config{
		Scope:                        "projects/demo-project",
		MinActivationDuration:        time.Minute,
		MaxActivationDuration:        time.Hour,
		MinReviewers:                 1,
		MaxReviewers:                 5,
		MaxEntitlementsPerJitRequest: 5,
		TokenValidity:                time.Hour,
		ServiceAccount:               "jit-signer@example.iam.gserviceaccount.com",
		EnableEmail:                  false,
	}
}

func TestSessionSelfApprovalFlow(t *testing.T) {
	s := newSession(testConfig())
	ctx := context.Background()
	alice := s.user("alice")

	binding := catalog.RoleBinding{ResourceFullName: demoProject, Role: "roles/viewer"}
	req, err := s.engine.CreateJitRequest(ctx, alice, []catalog.RoleBinding{binding}, "on-call", time.Now(), 10*time.Minute)
	if err != nil {
		t.Fatalf("CreateJitRequest: %v", err)
	}
	acts, err := s.engine.Activate(ctx, req)
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if len(acts) != 1 {
		t.Fatalf("want 1 activation, got %d", len(acts))
	}

	bindings := s.rm.Bindings(identity.ProjectID("demo-project"))
	if len(bindings) != 1 {
		t.Fatalf("want 1 provisioned binding, got %d", len(bindings))
	}
}

func TestSessionPeerApprovalFlowWithToken(t *testing.T) {
	s := newSession(testConfig())
	ctx := context.Background()
	alice := s.user("alice")
	bob := s.user("bob")

	binding := catalog.RoleBinding{ResourceFullName: demoProject, Role: "roles/editor"}
	req, err := s.engine.CreateMpaRequest(ctx, alice, binding, []identity.UserID{bob}, "bug#7", time.Now(), 15*time.Minute)
	if err != nil {
		t.Fatalf("CreateMpaRequest: %v", err)
	}

	jwt, _, _, err := s.engine.SignToken(ctx, req)
	if err != nil {
		t.Fatalf("SignToken: %v", err)
	}
	recovered, err := s.engine.VerifyToken(ctx, jwt)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}

	act, err := s.engine.Approve(ctx, bob, recovered)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if !act.Requester.Equal(alice) {
		t.Errorf("want alice as beneficiary, got %v", act.Requester)
	}
}

func TestSessionUserFallsBackForUnknownID(t *testing.T) {
	s := newSession(testConfig())
	u := s.user("dave")
	if u.ID != "dave@example.com" || u.Email != "dave@example.com" {
		t.Errorf("want a synthesized identity for an unknown id, got %+v", u)
	}
}
