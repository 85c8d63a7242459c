package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/identity"
	"go.uber.org/zap"
	"k8s.io/apimachinery/pkg/util/sets"
)

// AnalyzerClient is the outbound policy-analysis collaborator (spec.md
// §6): the two read-only queries the engine issues against the external
// cloud policy analyzer.
type AnalyzerClient interface {
	// FindAccessibleResourcesByUser returns every analyzed binding that
	// could apply to user within scope, whether or not its condition
	// currently evaluates true.
	FindAccessibleResourcesByUser(ctx context.Context, scope string, user identity.UserID) (*AnalysisResult, error)

	// FindPermissionedPrincipalsByResource returns the analyzed bindings
	// for role on resourceFullName, including their resolved principals.
	FindPermissionedPrincipalsByResource(ctx context.Context, scope, resourceFullName, role string) (*AnalysisResult, error)
}

// Analyzer implements the Policy Analyzer (C1): deriving a structured
// EligibilitySet from a raw AnalysisResult.
type Analyzer struct {
	client AnalyzerClient
	scope  string
	log    *zap.Logger
}

// NewAnalyzer builds an Analyzer that queries client within scope
// ("organizations/<id>" | "folders/<id>" | "projects/<id>").
func NewAnalyzer(client AnalyzerClient, scope string, log *zap.Logger) *Analyzer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Analyzer{client: client, scope: scope, log: log}
}

// candidateBinding is an eligible-or-active binding surfaced by the raw
// analysis, before merging.
type candidateBinding struct {
	binding RoleBinding
	kind    ActivationType
	active  bool
}

// findRoleBindings scans result for bindings matching conditionMatch,
// narrowed to ACLs whose evaluation matches evalMatch, and returns one
// candidateBinding per (supported) resource each such ACL covers.
//
// Grounded on RoleDiscoveryService.findRoleBindings: the analyzer
// doesn't care which resource a binding is *attached* to, only which
// resources its ACLs say it *applies to* (including inherited
// descendants) — hence the resource loop is keyed off acl.Resources, not
// off the binding itself.
func findRoleBindings(
	result *AnalysisResult,
	conditionMatch func(*Expr) bool,
	evalMatch func(ConditionEvaluationResult) bool,
	kind ActivationType,
	active bool,
) []candidateBinding {
	var out []candidateBinding
	if result == nil {
		return out
	}

	for _, ab := range result.Results {
		if !conditionMatch(ab.Binding.Condition) {
			continue
		}
		for _, acl := range ab.AccessControlLists {
			if !evalMatch(acl.ConditionEvaluation) {
				continue
			}
			for _, res := range acl.Resources {
				if !identity.IsSupportedResourceName(res.FullResourceName) {
					continue
				}
				out = append(out, candidateBinding{
					binding: RoleBinding{ResourceFullName: res.FullResourceName, Role: ab.Binding.Role},
					kind:    kind,
					active:  active,
				})
			}
		}
	}
	return out
}

// FindEligibilities implements listEligibleRoleBindings/listEligibleProjectRoles:
// derive user's eligibility set, filtered to the requested activation
// types and statuses.
//
// Merging rules (spec.md §4.1):
//  1. Candidate eligible bindings: marker condition present, evaluation
//     CONDITIONAL.
//  2. Candidate active bindings: reserved title present, evaluation TRUE.
//     Active-but-false (expired) bindings are discarded by the evalMatch
//     predicate itself.
//  3. Dedup by (resource, role): every eligible entry whose binding also
//     has an active binding is dropped, and one Active entry is kept in
//     its place, typed as described in the loop below.
//  4. Order by resource full name, then role.
func (a *Analyzer) FindEligibilities(
	ctx context.Context,
	user identity.UserID,
	project identity.ProjectID,
	types []ActivationType,
	statuses []EligibilityStatus,
) (EligibilitySet, error) {
	result, err := a.client.FindAccessibleResourcesByUser(ctx, a.scope, user)
	if err != nil {
		return EligibilitySet{}, fmt.Errorf("catalog: analyzing accessible resources for %s: %w", user, err)
	}

	active := findRoleBindings(result,
		isActivationCondition,
		func(e ConditionEvaluationResult) bool { return e == EvaluationTrue },
		"", true)

	selfEligible := findRoleBindings(result,
		isSelfApprovalMarker,
		func(e ConditionEvaluationResult) bool { return e == EvaluationConditional },
		SelfApproval, false)

	peerEligible := findRoleBindings(result,
		isPeerApprovalMarker,
		func(e ConditionEvaluationResult) bool { return e == EvaluationConditional },
		PeerApproval, false)

	activeKinds := activatedBindingKinds(active, append(append([]candidateBinding{}, selfEligible...), peerEligible...))

	var raw []Eligibility
	for _, c := range append(selfEligible, peerEligible...) {
		if activeKinds.Has(c.binding.String()) {
			// Superseded by an Active entry for the same (resource, role);
			// the Active entry is added below instead.
			continue
		}
		raw = append(raw, Eligibility{RoleBinding: c.binding, ActivationType: c.kind, Status: Available})
	}
	for _, c := range active {
		// An activation binding carries no marker of its own type; it
		// inherits the type of whichever eligible binding it shadows, on
		// the same (resource, role). If none is found the activation is
		// kept as PeerApproval by convention (it is still surfaced, just
		// without a matching eligible entry to merge into).
		kind := activationKindFor(c.binding, selfEligible, peerEligible)
		raw = append(raw, Eligibility{RoleBinding: c.binding, ActivationType: kind, Status: Active})
	}

	prefix := project.FullResourceName()
	filtered := raw[:0:0]
	for _, e := range raw {
		if strings.HasPrefix(e.RoleBinding.ResourceFullName, prefix) {
			filtered = append(filtered, e)
		}
	}

	set := newEligibilitySet(filtered, result.NonCriticalErrors)
	return set.Filter(types, statuses), nil
}

// activatedBindingKinds returns the set of "resource:role" keys that have
// a matching active binding, restricted to keys that also appear among
// the eligible candidates — mirroring the original's
// "consolidatedRoles.filter(!activatedRoles.anyMatch(...))" dedup, which
// compares by (fullResourceName, role) only, not by type.
func activatedBindingKinds(active, eligible []candidateBinding) sets.String {
	activeKeys := sets.NewString()
	for _, c := range active {
		activeKeys.Insert(c.binding.String())
	}
	out := sets.NewString()
	for _, c := range eligible {
		if activeKeys.Has(c.binding.String()) {
			out.Insert(c.binding.String())
		}
	}
	return out
}

// activationKindFor infers which activation type an active binding
// belongs to by matching it against the eligible candidate lists on
// (resource, role).
func activationKindFor(b RoleBinding, selfEligible, peerEligible []candidateBinding) ActivationType {
	for _, c := range selfEligible {
		if c.binding == b {
			return SelfApproval
		}
	}
	for _, c := range peerEligible {
		if c.binding == b {
			return PeerApproval
		}
	}
	return PeerApproval
}

// FindProjectsWithEligibilities returns the set of projects for which
// user has any eligible or active binding.
func (a *Analyzer) FindProjectsWithEligibilities(ctx context.Context, user identity.UserID) (identity.ProjectIDSet, error) {
	result, err := a.client.FindAccessibleResourcesByUser(ctx, a.scope, user)
	if err != nil {
		return nil, fmt.Errorf("catalog: analyzing accessible resources for %s: %w", user, err)
	}

	active := findRoleBindings(result, isActivationCondition,
		func(e ConditionEvaluationResult) bool { return e == EvaluationTrue }, "", true)
	selfEligible := findRoleBindings(result, isSelfApprovalMarker,
		func(e ConditionEvaluationResult) bool { return e == EvaluationConditional }, SelfApproval, false)
	peerEligible := findRoleBindings(result, isPeerApprovalMarker,
		func(e ConditionEvaluationResult) bool { return e == EvaluationConditional }, PeerApproval, false)

	projects := identity.NewProjectIDSet()
	for _, c := range append(append(active, selfEligible...), peerEligible...) {
		id, err := identity.ProjectIDFromResourceName(c.binding.ResourceFullName)
		if err != nil {
			a.log.Warn("skipping unsupported resource name", zap.String("resource", c.binding.ResourceFullName))
			continue
		}
		projects.Insert(id)
	}
	return projects, nil
}

// findPeerApprovalReviewers implements
// listApproversForEligibleRoleBinding's second half: given a role
// binding already confirmed to be peer-approval eligible for the caller,
// find the other users who hold the same peer-approval marker on the
// same binding.
func (a *Analyzer) findPeerApprovalReviewers(ctx context.Context, binding RoleBinding) ([]identity.UserID, error) {
	result, err := a.client.FindPermissionedPrincipalsByResource(ctx, a.scope, binding.ResourceFullName, binding.Role)
	if err != nil {
		return nil, fmt.Errorf("catalog: analyzing principals for %s: %w", binding, err)
	}

	var reviewers []identity.UserID
	for _, ab := range result.Results {
		if !isPeerApprovalMarker(ab.Binding.Condition) {
			continue
		}
		if ab.IdentityList == nil {
			continue
		}
		for _, ident := range ab.IdentityList.Identities {
			const userPrefix = "user:"
			if !strings.HasPrefix(ident.Name, userPrefix) {
				continue
			}
			email := ident.Name[len(userPrefix):]
			reviewers = append(reviewers, identity.UserID{ID: email, Email: email})
		}
	}
	return reviewers, nil
}
