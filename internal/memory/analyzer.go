// Package memory provides in-process stand-ins for three of the engine's
// outbound collaborators (policy analysis, resource-manager writes, JWT
// signing; mail is left to notify.LogTransport), so cmd/jitctl can drive
// the whole request/approve/
// activate loop against a seeded policy document without a live GCP
// project. None of this package is meant for production: it exists for
// the CLI demo and for tests that want a slightly higher-fidelity double
// than the package-local fakes.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/catalog"
	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/identity"
)

// reviewerPool is the peer-approval reviewer set for one resource+role
// binding, along with the marker expression that made it eligible.
type reviewerPool struct {
	marker    string
	reviewers identity.UserSet
}

// PolicyDocument is a hand-authored analyzer fixture: for every user
// email, the set of bindings a "FindAccessibleResourcesByUser" call
// would return.
type PolicyDocument struct {
	mu        sync.RWMutex
	byUser    map[string]*catalog.AnalysisResult
	byBinding map[string]*reviewerPool
}

// NewPolicyDocument builds an empty document; use Grant to seed it.
func NewPolicyDocument() *PolicyDocument {
	return &PolicyDocument{
		byUser:    map[string]*catalog.AnalysisResult{},
		byBinding: map[string]*reviewerPool{},
	}
}

// Grant records that user is eligible for kind-activation of binding on
// resourceFullName, and that reviewers (if any) are the peer-approval
// reviewer pool for that binding. Passing an empty marker records an
// already-active binding (the reserved activation title, evaluated TRUE)
// instead of a latent eligibility, mirroring how the analyzer would
// report a live temporary grant.
func (d *PolicyDocument) Grant(user identity.UserID, resourceFullName, role, marker string, reviewers []identity.UserID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	binding := catalog.AnalyzedBinding{
		Binding: catalog.IAMBinding{
			Role:    role,
			Members: []string{user.Member()},
		},
		AccessControlLists: []catalog.AccessControlList{{
			ConditionEvaluation: catalog.EvaluationConditional,
			Resources:           []catalog.AnalyzedResource{{FullResourceName: resourceFullName}},
		}},
	}
	if marker != "" {
		binding.Binding.Condition = &catalog.Expr{Title: "eligibility", Expression: marker}
	} else {
		binding.Binding.Condition = &catalog.Expr{Title: catalog.ActivationConditionTitle}
		binding.AccessControlLists[0].ConditionEvaluation = catalog.EvaluationTrue
	}

	result := d.byUser[user.Email]
	if result == nil {
		result = &catalog.AnalysisResult{}
		d.byUser[user.Email] = result
	}
	result.Results = append(result.Results, binding)

	if len(reviewers) > 0 {
		key := resourceFullName + ":" + role
		pool := d.byBinding[key]
		if pool == nil {
			pool = &reviewerPool{marker: marker, reviewers: identity.NewUserSet()}
			d.byBinding[key] = pool
		}
		for _, r := range reviewers {
			pool.reviewers.Insert(r)
		}
	}
}

// AnalyzerClient adapts a PolicyDocument onto catalog.AnalyzerClient.
type AnalyzerClient struct {
	doc *PolicyDocument
}

// NewAnalyzerClient builds an AnalyzerClient backed by doc.
func NewAnalyzerClient(doc *PolicyDocument) *AnalyzerClient {
	return &AnalyzerClient{doc: doc}
}

func (c *AnalyzerClient) FindAccessibleResourcesByUser(ctx context.Context, scope string, user identity.UserID) (*catalog.AnalysisResult, error) {
	c.doc.mu.RLock()
	defer c.doc.mu.RUnlock()
	return c.doc.byUser[user.Email], nil
}

func (c *AnalyzerClient) FindPermissionedPrincipalsByResource(ctx context.Context, scope, resource, role string) (*catalog.AnalysisResult, error) {
	c.doc.mu.RLock()
	defer c.doc.mu.RUnlock()

	pool := c.doc.byBinding[resource+":"+role]
	if pool == nil || len(pool.reviewers) == 0 {
		return &catalog.AnalysisResult{}, nil
	}

	names := make([]string, 0, len(pool.reviewers))
	for _, r := range pool.reviewers {
		names = append(names, "user:"+r.Email)
	}
	sort.Strings(names)

	identities := make([]catalog.Identity, 0, len(names))
	for _, n := range names {
		identities = append(identities, catalog.Identity{Name: n})
	}

	return &catalog.AnalysisResult{
		Results: []catalog.AnalyzedBinding{{
			Binding: catalog.IAMBinding{
				Role:      role,
				Condition: &catalog.Expr{Title: "eligibility", Expression: pool.marker},
			},
			IdentityList: &catalog.IdentityList{Identities: identities},
		}},
	}, nil
}
