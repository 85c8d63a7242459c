package catalog

import (
	"context"
	"sort"

	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/identity"
	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/jiterrors"
)

// ProjectSearcher is the resource-manager search collaborator
// ListProjects falls back to when a project query is configured, instead
// of deriving the project set from policy analysis.
type ProjectSearcher interface {
	SearchProjectIDs(ctx context.Context, query string) ([]identity.ProjectID, error)
}

// Catalog is the Role Catalog (C2): the query-facing façade the engine and
// the activator use to answer "what can this user do" and "who can
// review this request", without themselves knowing how eligibilities are
// derived from raw policy data.
type Catalog struct {
	analyzer     *Analyzer
	searcher     ProjectSearcher
	projectQuery string
}

// New builds a Catalog backed by analyzer. If projectQuery is non-empty,
// ListProjects delegates to searcher.SearchProjectIDs instead of policy
// analysis; searcher may be nil when projectQuery is empty.
func New(analyzer *Analyzer, searcher ProjectSearcher, projectQuery string) *Catalog {
	return &Catalog{analyzer: analyzer, searcher: searcher, projectQuery: projectQuery}
}

// ListProjects returns the projects user has any eligibility in, sorted.
//
// Grounded on MpaProjectRoleCatalog/listProjects's project-query fork
// (spec.md §4.2/§6): when a resource-manager search query is configured,
// that search replaces policy analysis as the project source entirely.
func (c *Catalog) ListProjects(ctx context.Context, user identity.UserID) ([]identity.ProjectID, error) {
	if c.projectQuery != "" {
		ids, err := c.searcher.SearchProjectIDs(ctx, c.projectQuery)
		if err != nil {
			return nil, err
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		return ids, nil
	}

	set, err := c.analyzer.FindProjectsWithEligibilities(ctx, user)
	if err != nil {
		return nil, err
	}
	ids := set.List()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// ListEligibilities returns user's eligibilities on project, optionally
// filtered by activation type and status.
func (c *Catalog) ListEligibilities(
	ctx context.Context,
	user identity.UserID,
	project identity.ProjectID,
	types []ActivationType,
	statuses []EligibilityStatus,
) (EligibilitySet, error) {
	return c.analyzer.FindEligibilities(ctx, user, project, types, statuses)
}

// VerifyUserCanRequest re-verifies that user is presently eligible to
// request kind-activation of binding, returning the matching Eligibility
// on success.
//
// Grounded on EntitlementActivator.createJitRequest/createMpaRequest,
// which re-run catalog.verifyUserCanRequest immediately before minting a
// request, rather than trusting a caller-supplied eligibility snapshot
// that may already be stale.
func (c *Catalog) VerifyUserCanRequest(ctx context.Context, user identity.UserID, binding RoleBinding, kind ActivationType) (Eligibility, error) {
	project, err := identity.ProjectIDFromResourceName(binding.ResourceFullName)
	if err != nil {
		return Eligibility{}, jiterrors.Wrap(jiterrors.InvalidArgument, err, "unsupported resource %q", binding.ResourceFullName)
	}

	set, err := c.analyzer.FindEligibilities(ctx, user, project, []ActivationType{kind}, []EligibilityStatus{Available})
	if err != nil {
		return Eligibility{}, err
	}

	e, ok := set.Contains(binding, kind)
	if !ok {
		return Eligibility{}, jiterrors.New(jiterrors.AccessDenied,
			"%s is not eligible for %s activation of %s", user, kind, binding)
	}
	return e, nil
}

// VerifyUserCanApprove re-verifies that reviewer is an eligible peer
// reviewer for binding — i.e. would themselves qualify for peer-approval
// activation of the same binding, and is not the requester.
//
// Grounded on EntitlementActivator.approve, which re-derives the
// reviewer set at approval time rather than trusting the set captured
// when the activation token was minted.
func (c *Catalog) VerifyUserCanApprove(ctx context.Context, reviewer identity.UserID, requester identity.UserID, binding RoleBinding) error {
	if reviewer.Equal(requester) {
		return jiterrors.New(jiterrors.AccessDenied, "%s cannot approve their own request", reviewer)
	}

	reviewers, err := c.analyzer.findPeerApprovalReviewers(ctx, binding)
	if err != nil {
		return err
	}
	for _, r := range reviewers {
		if r.Equal(reviewer) && !r.Equal(requester) {
			return nil
		}
	}
	return jiterrors.New(jiterrors.AccessDenied, "%s is not an eligible reviewer for %s", reviewer, binding)
}

// ListReviewers returns the users eligible to review a peer-approval
// activation of binding, excluding requester.
//
// Grounded on RoleDiscoveryService.listApproversForEligibleRoleBinding,
// which first confirms the caller is itself peer-approval eligible on
// binding before looking up reviewers — a caller who isn't eligible has
// no business discovering who else's approval would activate it.
func (c *Catalog) ListReviewers(ctx context.Context, requester identity.UserID, binding RoleBinding) ([]identity.UserID, error) {
	if _, err := c.VerifyUserCanRequest(ctx, requester, binding, PeerApproval); err != nil {
		return nil, err
	}

	reviewers, err := c.analyzer.findPeerApprovalReviewers(ctx, binding)
	if err != nil {
		return nil, err
	}

	out := make([]identity.UserID, 0, len(reviewers))
	for _, r := range reviewers {
		if !r.Equal(requester) {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return nil, jiterrors.New(jiterrors.NotFound, "no eligible reviewers found for %s", binding)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}
