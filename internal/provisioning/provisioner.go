// Package provisioning implements the IAM Provisioner (C6): applying a
// time-conditioned role binding to a project's IAM policy with
// purge/replace semantics and etag-based optimistic concurrency.
package provisioning

import (
	"context"
	"fmt"
	"time"

	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/catalog"
	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/identity"
	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/jiterrors"
	"go.uber.org/zap"
	"k8s.io/apimachinery/pkg/util/wait"
)

// Option is one of the two write-policy flags the activator can request
// on a binding write.
type Option string

const (
	// PurgeExistingTemporaryBindings removes every prior activation
	// binding for the same (member, role) before adding the new one,
	// regardless of whether its window is still valid.
	PurgeExistingTemporaryBindings Option = "PURGE_EXISTING_TEMPORARY_BINDINGS"

	// FailIfBindingExists makes the add a strict insert: the adapter
	// returns AlreadyExists if an identical (member set, role, condition
	// expression) binding is already present.
	FailIfBindingExists Option = "FAIL_IF_BINDING_EXISTS"
)

// OptionSet is a small immutable set of Option values.
type OptionSet map[Option]struct{}

// NewOptionSet builds an OptionSet from a list of options.
func NewOptionSet(opts ...Option) OptionSet {
	s := make(OptionSet, len(opts))
	for _, o := range opts {
		s[o] = struct{}{}
	}
	return s
}

// Has reports whether opt is present in the set.
func (s OptionSet) Has(opt Option) bool {
	_, ok := s[opt]
	return ok
}

// Condition is the CEL time-window condition written on a provisioned
// binding.
type Condition struct {
	Title       string
	Description string
	Expression  string
}

// Binding is the IAM binding the provisioner writes: a single member
// bound to role under a temporary-access condition.
type Binding struct {
	Member    string
	Role      string
	Condition Condition
}

// TemporaryAccessExpression renders the standard CEL predicate the
// engine writes on every activation binding, matching
// RoleActivationService's condition builder.
func TemporaryAccessExpression(start, end time.Time) string {
	return fmt.Sprintf(
		`(request.time >= timestamp("%s") && request.time < timestamp("%s"))`,
		start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))
}

// ResourceManagerClient is the outbound collaborator (spec.md §6) the
// provisioner writes bindings through: an etag-guarded read-modify-write
// over a single project's IAM policy.
type ResourceManagerClient interface {
	// AddProjectIamBinding applies binding to project's policy, honoring
	// opts, and returns jiterrors.AlreadyExists (via jiterrors.Kind) if
	// FailIfBindingExists blocked an identical write, or
	// jiterrors.Conflict if etag retries were exhausted.
	AddProjectIamBinding(ctx context.Context, project identity.ProjectID, binding Binding, opts OptionSet, auditReason string) error

	// SearchProjectIDs resolves a resource-manager search query to a
	// sorted list of project ids, used by Catalog.ListProjects when a
	// projectQuery is configured instead of policy analysis.
	SearchProjectIDs(ctx context.Context, query string) ([]identity.ProjectID, error)
}

// Backoff configures the provisioner's etag-conflict retry loop.
type Backoff struct {
	Steps    int
	Duration time.Duration
	Factor   float64
	Jitter   float64
}

// DefaultBackoff mirrors the teacher's controller reconcile-retry
// tuning: a handful of short exponential steps, generous enough to ride
// out a concurrent approval race without stalling the caller.
var DefaultBackoff = Backoff{Steps: 5, Duration: 50 * time.Millisecond, Factor: 2.0, Jitter: 0.1}

// Provisioner is the IAM Provisioner (C6).
type Provisioner struct {
	client  ResourceManagerClient
	backoff Backoff
	log     *zap.Logger
}

// New builds a Provisioner backed by client, retrying etag conflicts per
// backoff.
func New(client ResourceManagerClient, backoff Backoff, log *zap.Logger) *Provisioner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Provisioner{client: client, backoff: backoff, log: log}
}

// Grant is the provisioner's view of one binding to write: the target
// project, the member and role, the activation window, and its
// human-readable description.
type Grant struct {
	Project     identity.ProjectID
	Member      string
	Role        string
	Description string
	Start       time.Time
	End         time.Time
}

// ActivationConditionTitle re-exports catalog.ActivationConditionTitle so
// callers outside catalog don't need to import it solely for this
// constant.
const ActivationConditionTitle = catalog.ActivationConditionTitle

// Provision writes grant's binding, retrying on etag conflict.
// strict selects FailIfBindingExists in addition to the always-present
// PurgeExistingTemporaryBindings — the activator sets it for MPA
// approvals (where a concurrent second approver must observe
// AlreadyExists) and leaves it unset for JIT activations (where a
// self-repeat should simply purge-and-replace).
func (p *Provisioner) Provision(ctx context.Context, grant Grant, strict bool) error {
	binding := Binding{
		Member: grant.Member,
		Role:   grant.Role,
		Condition: Condition{
			Title:       ActivationConditionTitle,
			Description: grant.Description,
			Expression:  TemporaryAccessExpression(grant.Start, grant.End),
		},
	}

	opts := []Option{PurgeExistingTemporaryBindings}
	if strict {
		opts = append(opts, FailIfBindingExists)
	}

	reason := fmt.Sprintf("jit-access-activation: %s", grant.Description)

	backoff := wait.Backoff{
		Steps:    p.backoff.Steps,
		Duration: p.backoff.Duration,
		Factor:   p.backoff.Factor,
		Jitter:   p.backoff.Jitter,
	}

	var lastErr error
	backoffErr := wait.ExponentialBackoff(backoff, func() (bool, error) {
		writeErr := p.client.AddProjectIamBinding(ctx, grant.Project, binding, NewOptionSet(opts...), reason)
		lastErr = writeErr
		if writeErr == nil {
			return true, nil
		}
		if jiterrors.Is(writeErr, jiterrors.AlreadyExists) {
			// Not retryable and not a failure: the caller decides how to
			// treat a race against a concurrent approver.
			return true, nil
		}
		if jiterrors.Is(writeErr, jiterrors.Conflict) {
			p.log.Debug("etag conflict provisioning binding, retrying",
				zap.String("project", string(grant.Project)), zap.String("role", grant.Role))
			return false, nil
		}
		return false, writeErr
	})
	if backoffErr != nil {
		if jiterrors.Is(lastErr, jiterrors.Conflict) {
			return jiterrors.Wrap(jiterrors.Conflict, lastErr, "exhausted retries writing binding for %s/%s", grant.Project, grant.Role)
		}
		return backoffErr
	}
	return lastErr
}
