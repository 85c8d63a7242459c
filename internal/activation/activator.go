package activation

import (
	"context"
	"regexp"
	"time"

	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/catalog"
	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/clock"
	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/identity"
	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/jiterrors"
	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/provisioning"
)

// Config carries the process-wide, immutable activation bounds (spec.md
// §5 "Shared configuration"). It is captured once at startup and never
// mutated.
type Config struct {
	MinDuration                  time.Duration
	MaxDuration                  time.Duration
	MinReviewers                 int
	MaxReviewers                 int
	MaxEntitlementsPerJitRequest int

	// JustificationPattern is the configured justification policy: a
	// compiled regular expression the justification string must match.
	JustificationPattern *regexp.Regexp
	JustificationHint    string

	// StartTimeTolerance bounds how far in the past startTime may be.
	// spec.md §9 Open Question 2 notes the sources disagree between a
	// ±10s token-minting window and a 1-minute activation window; this
	// repo applies the looser 1-minute bound uniformly to both request
	// creation and activation (see DESIGN.md).
	StartTimeTolerance time.Duration
}

// CatalogClient is the subset of the Role Catalog (C2) the activator
// depends on to re-verify eligibility immediately before every state
// transition.
type CatalogClient interface {
	VerifyUserCanRequest(ctx context.Context, user identity.UserID, binding catalog.RoleBinding, kind catalog.ActivationType) (catalog.Eligibility, error)
	VerifyUserCanApprove(ctx context.Context, reviewer, requester identity.UserID, binding catalog.RoleBinding) error
}

// Provisioner is the subset of the IAM Provisioner (C6) the activator
// drives.
type Provisioner interface {
	Provision(ctx context.Context, grant provisioning.Grant, strict bool) error
}

// Notifier is the Notification Engine (C5), invoked at each state
// transition the spec names. Notification failures never abort
// provisioning (spec.md §7): the activator discards any error returned
// here and continues.
type Notifier interface {
	NotifyRequestActivation(ctx context.Context, req MpaRequest) error
	NotifyActivationApproved(ctx context.Context, req MpaRequest, activation Activation) error
	NotifySelfApproved(ctx context.Context, activation Activation) error
}

// Activator is the Activator (C3): the request validation and
// provisioning state machine.
type Activator struct {
	catalog     CatalogClient
	provisioner Provisioner
	notifier    Notifier
	clock       clock.Clock
	config      Config
}

// New builds an Activator from its collaborators and configuration.
func New(catalogClient CatalogClient, provisioner Provisioner, notifier Notifier, clk clock.Clock, config Config) *Activator {
	if clk == nil {
		clk = clock.System{}
	}
	return &Activator{catalog: catalogClient, provisioner: provisioner, notifier: notifier, clock: clk, config: config}
}

// validateCommon checks the invariants shared by every request kind
// (spec.md §3 Data Model): non-past start time (within tolerance),
// positive duration, non-empty justification.
func (a *Activator) validateCommon(start time.Time, duration time.Duration, justification string) error {
	if justification == "" {
		return jiterrors.New(jiterrors.InvalidArgument, "justification must not be empty")
	}
	if duration <= 0 {
		return jiterrors.New(jiterrors.InvalidArgument, "duration must be positive")
	}
	earliest := a.clock.Now().Add(-a.config.StartTimeTolerance)
	if start.Before(earliest) {
		return jiterrors.New(jiterrors.InvalidArgument, "start time must not be in the past")
	}
	return nil
}

// checkJustification enforces the configured justification policy,
// mirroring JustificationPolicy.checkJustification. A nil pattern
// disables the check.
func (a *Activator) checkJustification(justification string) error {
	if a.config.JustificationPattern == nil {
		return nil
	}
	if !a.config.JustificationPattern.MatchString(justification) {
		return jiterrors.New(jiterrors.AccessDenied, "justification does not satisfy policy: %s", a.config.JustificationHint)
	}
	return nil
}

// CreateJitRequest validates and constructs a self-approval request.
// Eligibility is deliberately not checked here — it is re-verified in
// Activate, immediately before provisioning.
func (a *Activator) CreateJitRequest(
	ctx context.Context,
	requester identity.UserID,
	entitlements []catalog.RoleBinding,
	justification string,
	start time.Time,
	duration time.Duration,
) (JitRequest, error) {
	if len(entitlements) == 0 || len(entitlements) > a.config.MaxEntitlementsPerJitRequest {
		return JitRequest{}, jiterrors.New(jiterrors.InvalidArgument,
			"number of entitlements must be between 1 and %d", a.config.MaxEntitlementsPerJitRequest)
	}
	if duration < a.config.MinDuration || duration > a.config.MaxDuration {
		return JitRequest{}, jiterrors.New(jiterrors.InvalidArgument,
			"duration must be between %s and %s", a.config.MinDuration, a.config.MaxDuration)
	}
	if err := a.validateCommon(start, duration, justification); err != nil {
		return JitRequest{}, err
	}
	return NewJitRequest(requester, entitlements, justification, start, duration), nil
}

// CreateMpaRequest validates and constructs a peer-approval request,
// pre-verifying the requester's eligibility so a doomed request never
// gets as far as a signed token.
func (a *Activator) CreateMpaRequest(
	ctx context.Context,
	requester identity.UserID,
	binding catalog.RoleBinding,
	reviewers []identity.UserID,
	justification string,
	start time.Time,
	duration time.Duration,
) (MpaRequest, error) {
	if len(reviewers) < a.config.MinReviewers || len(reviewers) > a.config.MaxReviewers {
		return MpaRequest{}, jiterrors.New(jiterrors.InvalidArgument,
			"number of reviewers must be between %d and %d", a.config.MinReviewers, a.config.MaxReviewers)
	}
	for _, r := range reviewers {
		if r.Equal(requester) {
			return MpaRequest{}, jiterrors.New(jiterrors.InvalidArgument, "requester must not be listed as a reviewer")
		}
	}
	if duration < a.config.MinDuration || duration > a.config.MaxDuration {
		return MpaRequest{}, jiterrors.New(jiterrors.InvalidArgument,
			"duration must be between %s and %s", a.config.MinDuration, a.config.MaxDuration)
	}
	if err := a.validateCommon(start, duration, justification); err != nil {
		return MpaRequest{}, err
	}
	if err := a.checkJustification(justification); err != nil {
		return MpaRequest{}, err
	}

	if _, err := a.catalog.VerifyUserCanRequest(ctx, requester, binding, catalog.PeerApproval); err != nil {
		return MpaRequest{}, err
	}

	req := NewMpaRequest(requester, binding, reviewers, justification, start, duration)

	if a.notifier != nil {
		_ = a.notifier.NotifyRequestActivation(ctx, req)
	}
	return req, nil
}

// Activate runs the JIT activation transition: re-check the
// justification policy and eligibility, then provision one binding per
// entitlement.
func (a *Activator) Activate(ctx context.Context, req JitRequest) ([]Activation, error) {
	if err := a.checkJustification(req.Justification()); err != nil {
		return nil, err
	}

	activations := make([]Activation, 0, len(req.Entitlements()))
	for _, binding := range req.Entitlements() {
		if _, err := a.catalog.VerifyUserCanRequest(ctx, req.Requester(), binding, catalog.SelfApproval); err != nil {
			return nil, err
		}

		activation := Activation{
			ID:            req.ID(),
			Kind:          KindJit,
			Requester:     req.Requester(),
			Binding:       binding,
			Justification: req.Justification(),
			StartTime:     req.StartTime(),
			EndTime:       req.StartTime().Add(req.Duration()),
		}

		if err := a.provisionActivation(ctx, activation, false); err != nil {
			return nil, err
		}
		activations = append(activations, activation)
	}

	if a.notifier != nil && len(activations) > 0 {
		_ = a.notifier.NotifySelfApproved(ctx, activations[0])
	}
	return activations, nil
}

// Approve runs the MPA approval transition.
//
// A concurrent second approver's write observes AlreadyExists, which
// this method maps to success (spec.md §9 Open Question 3): the request
// was already fulfilled, so the second caller receives the same
// Activation rather than an error.
func (a *Activator) Approve(ctx context.Context, approver identity.UserID, req MpaRequest) (Activation, error) {
	if approver.Equal(req.Requester()) {
		return Activation{}, jiterrors.New(jiterrors.AccessDenied, "%s cannot approve their own request", approver)
	}
	if !req.HasReviewer(approver) {
		return Activation{}, jiterrors.New(jiterrors.AccessDenied, "the request does not permit approval by %s", approver)
	}
	if err := a.checkJustification(req.Justification()); err != nil {
		return Activation{}, err
	}

	binding := req.Binding()

	if _, err := a.catalog.VerifyUserCanRequest(ctx, req.Requester(), binding, catalog.PeerApproval); err != nil {
		return Activation{}, err
	}
	if err := a.catalog.VerifyUserCanApprove(ctx, approver, req.Requester(), binding); err != nil {
		return Activation{}, err
	}

	activation := Activation{
		ID:            req.ID(),
		Kind:          KindMpa,
		Requester:     req.Requester(),
		Reviewer:      approver,
		Binding:       binding,
		Justification: req.Justification(),
		StartTime:     req.StartTime(),
		EndTime:       req.StartTime().Add(req.Duration()),
	}

	err := a.provisionActivation(ctx, activation, true)
	if err != nil && !jiterrors.Is(err, jiterrors.AlreadyExists) {
		return Activation{}, err
	}

	if a.notifier != nil {
		_ = a.notifier.NotifyActivationApproved(ctx, req, activation)
	}
	return activation, nil
}

// provisionActivation drives the provisioner with the grant derived from
// activation. strict selects FailIfBindingExists, used for MPA approvals
// so a concurrent second approver observes AlreadyExists instead of
// silently duplicating the binding.
func (a *Activator) provisionActivation(ctx context.Context, activation Activation, strict bool) error {
	project, err := identity.ProjectIDFromResourceName(activation.Binding.ResourceFullName)
	if err != nil {
		return jiterrors.Wrap(jiterrors.InvalidArgument, err, "unsupported resource %q", activation.Binding.ResourceFullName)
	}

	grant := provisioning.Grant{
		Project:     project,
		Member:      activation.Requester.Member(),
		Role:        activation.Binding.Role,
		Description: activation.BindingDescription(),
		Start:       activation.StartTime,
		End:         activation.EndTime,
	}
	return a.provisioner.Provision(ctx, grant, strict)
}
