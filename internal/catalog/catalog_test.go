package catalog

import (
	"context"
	"testing"

	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/identity"
	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/jiterrors"
)

func newTestCatalog(client AnalyzerClient) *Catalog {
	return New(NewAnalyzer(client, "organizations/1", nil), nil, "")
}

type fakeProjectSearcher struct {
	ids []identity.ProjectID
	err error
}

func (f *fakeProjectSearcher) SearchProjectIDs(ctx context.Context, query string) ([]identity.ProjectID, error) {
	return f.ids, f.err
}

func TestVerifyUserCanRequestSucceedsWhenEligible(t *testing.T) {
	user := identity.UserID{ID: "alice@example.com", Email: "alice@example.com"}
	client := &fakeAnalyzerClient{
		byUser: map[string]*AnalysisResult{
			user.Email: {Results: []AnalyzedBinding{selfEligibleBinding("roles/viewer")}},
		},
	}
	c := newTestCatalog(client)
	binding := RoleBinding{ResourceFullName: testProject, Role: "roles/viewer"}

	e, err := c.VerifyUserCanRequest(context.Background(), user, binding, SelfApproval)
	if err != nil {
		t.Fatalf("VerifyUserCanRequest: %v", err)
	}
	if e.Status != Available {
		t.Errorf("want Available, got %s", e.Status)
	}
}

func TestVerifyUserCanRequestDeniesWhenNotEligible(t *testing.T) {
	user := identity.UserID{ID: "alice@example.com", Email: "alice@example.com"}
	client := &fakeAnalyzerClient{byUser: map[string]*AnalysisResult{user.Email: {}}}
	c := newTestCatalog(client)
	binding := RoleBinding{ResourceFullName: testProject, Role: "roles/viewer"}

	_, err := c.VerifyUserCanRequest(context.Background(), user, binding, SelfApproval)
	if !jiterrors.Is(err, jiterrors.AccessDenied) {
		t.Fatalf("want AccessDenied, got %v", err)
	}
}

func TestVerifyUserCanRequestRejectsAlreadyActive(t *testing.T) {
	user := identity.UserID{ID: "alice@example.com", Email: "alice@example.com"}
	client := &fakeAnalyzerClient{
		byUser: map[string]*AnalysisResult{
			user.Email: {Results: []AnalyzedBinding{selfEligibleBinding("roles/viewer"), activeBinding("roles/viewer")}},
		},
	}
	c := newTestCatalog(client)
	binding := RoleBinding{ResourceFullName: testProject, Role: "roles/viewer"}

	// Already Active, so it no longer matches the Available-status filter
	// VerifyUserCanRequest applies — re-requesting is denied.
	_, err := c.VerifyUserCanRequest(context.Background(), user, binding, SelfApproval)
	if !jiterrors.Is(err, jiterrors.AccessDenied) {
		t.Fatalf("want AccessDenied for already-active binding, got %v", err)
	}
}

func TestVerifyUserCanApproveRejectsSelfApproval(t *testing.T) {
	user := identity.UserID{ID: "alice@example.com", Email: "alice@example.com"}
	c := newTestCatalog(&fakeAnalyzerClient{})
	binding := RoleBinding{ResourceFullName: testProject, Role: "roles/editor"}

	err := c.VerifyUserCanApprove(context.Background(), user, user, binding)
	if !jiterrors.Is(err, jiterrors.AccessDenied) {
		t.Fatalf("want AccessDenied for self-approval, got %v", err)
	}
}

func TestVerifyUserCanApproveSucceedsForEligiblePeer(t *testing.T) {
	requester := identity.UserID{ID: "alice@example.com", Email: "alice@example.com"}
	reviewer := identity.UserID{ID: "bob@example.com", Email: "bob@example.com"}
	binding := RoleBinding{ResourceFullName: testProject, Role: "roles/editor"}

	client := &fakeAnalyzerClient{
		byResource: map[string]*AnalysisResult{
			testProject + ":roles/editor": {
				Results: []AnalyzedBinding{
					{
						Binding: IAMBinding{
							Role:      "roles/editor",
							Condition: &Expr{Title: "Eligible for MPA access", Expression: peerApprovalMarker},
						},
						IdentityList: &IdentityList{Identities: []Identity{{Name: "user:bob@example.com"}}},
					},
				},
			},
		},
	}
	c := newTestCatalog(client)

	if err := c.VerifyUserCanApprove(context.Background(), reviewer, requester, binding); err != nil {
		t.Fatalf("VerifyUserCanApprove: %v", err)
	}
}

func TestListReviewersExcludesRequester(t *testing.T) {
	requester := identity.UserID{ID: "alice@example.com", Email: "alice@example.com"}
	binding := RoleBinding{ResourceFullName: testProject, Role: "roles/editor"}

	client := &fakeAnalyzerClient{
		byUser: map[string]*AnalysisResult{
			requester.Email: {Results: []AnalyzedBinding{peerEligibleBinding("roles/editor")}},
		},
		byResource: map[string]*AnalysisResult{
			testProject + ":roles/editor": {
				Results: []AnalyzedBinding{
					{
						Binding: IAMBinding{
							Role:      "roles/editor",
							Condition: &Expr{Title: "Eligible for MPA access", Expression: peerApprovalMarker},
						},
						IdentityList: &IdentityList{Identities: []Identity{
							{Name: "user:alice@example.com"},
							{Name: "user:bob@example.com"},
						}},
					},
				},
			},
		},
	}
	c := newTestCatalog(client)

	reviewers, err := c.ListReviewers(context.Background(), requester, binding)
	if err != nil {
		t.Fatalf("ListReviewers: %v", err)
	}
	if len(reviewers) != 1 || reviewers[0].Email != "bob@example.com" {
		t.Fatalf("want only bob@example.com, got %+v", reviewers)
	}
}

func TestListReviewersNotFoundWhenNoneEligible(t *testing.T) {
	requester := identity.UserID{ID: "alice@example.com", Email: "alice@example.com"}
	binding := RoleBinding{ResourceFullName: testProject, Role: "roles/editor"}
	client := &fakeAnalyzerClient{
		byUser: map[string]*AnalysisResult{
			requester.Email: {Results: []AnalyzedBinding{peerEligibleBinding("roles/editor")}},
		},
		byResource: map[string]*AnalysisResult{testProject + ":roles/editor": {}},
	}
	c := newTestCatalog(client)

	_, err := c.ListReviewers(context.Background(), requester, binding)
	if !jiterrors.Is(err, jiterrors.NotFound) {
		t.Fatalf("want NotFound, got %v", err)
	}
}

func TestListProjectsReturnsAnalyzerProjectsSorted(t *testing.T) {
	user := identity.UserID{ID: "alice@example.com", Email: "alice@example.com"}
	otherProject := "//cloudresourcemanager.googleapis.com/projects/other-project"
	client := &fakeAnalyzerClient{
		byUser: map[string]*AnalysisResult{
			user.Email: {
				Results: []AnalyzedBinding{
					selfEligibleBinding("roles/viewer"),
					{
						Binding: IAMBinding{
							Role:      "roles/editor",
							Condition: &Expr{Title: "Eligible for MPA access", Expression: peerApprovalMarker},
						},
						AccessControlLists: []AccessControlList{
							{ConditionEvaluation: EvaluationConditional, Resources: []AnalyzedResource{{FullResourceName: otherProject}}},
						},
					},
				},
			},
		},
	}
	c := newTestCatalog(client)

	projects, err := c.ListProjects(context.Background(), user)
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if len(projects) != 2 {
		t.Fatalf("want 2 projects, got %+v", projects)
	}
	if projects[0] >= projects[1] {
		t.Fatalf("want sorted projects, got %+v", projects)
	}
}

func TestListProjectsDelegatesToSearcherWhenQueryConfigured(t *testing.T) {
	user := identity.UserID{ID: "alice@example.com", Email: "alice@example.com"}
	searcher := &fakeProjectSearcher{ids: []identity.ProjectID{"zeta", "alpha", "mu"}}
	c := New(NewAnalyzer(&fakeAnalyzerClient{}, "organizations/1", nil), searcher, "state:ACTIVE")

	projects, err := c.ListProjects(context.Background(), user)
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	want := []identity.ProjectID{"alpha", "mu", "zeta"}
	if len(projects) != len(want) {
		t.Fatalf("want %+v, got %+v", want, projects)
	}
	for i := range want {
		if projects[i] != want[i] {
			t.Fatalf("want %+v, got %+v", want, projects)
		}
	}
}

func TestListReviewersReturnsSortedOutput(t *testing.T) {
	requester := identity.UserID{ID: "alice@example.com", Email: "alice@example.com"}
	binding := RoleBinding{ResourceFullName: testProject, Role: "roles/editor"}

	client := &fakeAnalyzerClient{
		byUser: map[string]*AnalysisResult{
			requester.Email: {Results: []AnalyzedBinding{peerEligibleBinding("roles/editor")}},
		},
		byResource: map[string]*AnalysisResult{
			testProject + ":roles/editor": {
				Results: []AnalyzedBinding{
					{
						Binding: IAMBinding{
							Role:      "roles/editor",
							Condition: &Expr{Title: "Eligible for MPA access", Expression: peerApprovalMarker},
						},
						IdentityList: &IdentityList{Identities: []Identity{
							{Name: "user:zoe@example.com"},
							{Name: "user:bob@example.com"},
							{Name: "user:carol@example.com"},
						}},
					},
				},
			},
		},
	}
	c := newTestCatalog(client)

	reviewers, err := c.ListReviewers(context.Background(), requester, binding)
	if err != nil {
		t.Fatalf("ListReviewers: %v", err)
	}
	want := []string{"bob@example.com", "carol@example.com", "zoe@example.com"}
	if len(reviewers) != len(want) {
		t.Fatalf("want %v, got %+v", want, reviewers)
	}
	for i := range want {
		if reviewers[i].Email != want[i] {
			t.Fatalf("want sorted %v, got %+v", want, reviewers)
		}
	}
}

func TestListReviewersDeniesIneligibleRequester(t *testing.T) {
	requester := identity.UserID{ID: "alice@example.com", Email: "alice@example.com"}
	binding := RoleBinding{ResourceFullName: testProject, Role: "roles/editor"}
	client := &fakeAnalyzerClient{byUser: map[string]*AnalysisResult{requester.Email: {}}}
	c := newTestCatalog(client)

	_, err := c.ListReviewers(context.Background(), requester, binding)
	if !jiterrors.Is(err, jiterrors.AccessDenied) {
		t.Fatalf("want AccessDenied for a requester with no peer-approval eligibility on binding, got %v", err)
	}
}
