// Package engine wires the six components (C1-C6) behind the single
// inbound surface spec.md §6 describes, mirroring the composition-root
// pattern the teacher's cmd/approvalserver/main.go uses to build its
// controller manager: one constructor takes every collaborator and
// exposes a small set of use-case methods, with no package-level
// globals.
package engine

import (
	"context"
	"time"

	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/activation"
	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/catalog"
	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/identity"
	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/jiterrors"
	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/metrics"
	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/token"
)

// Engine is the composition root: the Role Catalog (C2), the Activator
// (C3), and the Activation Token Service (C4), assembled behind the
// use-case methods a REST façade or CLI drives.
type Engine struct {
	catalog   *catalog.Catalog
	activator *activation.Activator
	tokens    *token.Service
}

// New builds an Engine from its already-constructed collaborators. The
// caller (cmd/jitctl or a future REST façade) is responsible for wiring
// C1 (catalog.Analyzer), C5 (notify.Engine/Adapter) and C6
// (provisioning.Provisioner) into cat/activator/tokens first —
// Engine itself only orchestrates the use cases, it does not construct
// its own collaborators.
func New(cat *catalog.Catalog, activator *activation.Activator, tokens *token.Service) *Engine {
	return &Engine{catalog: cat, activator: activator, tokens: tokens}
}

// ListProjects returns every project user has any eligibility in.
func (e *Engine) ListProjects(ctx context.Context, user identity.UserID) ([]identity.ProjectID, error) {
	return e.catalog.ListProjects(ctx, user)
}

// ListEligibilities returns user's eligibilities on project.
func (e *Engine) ListEligibilities(
	ctx context.Context,
	user identity.UserID,
	project identity.ProjectID,
	types []catalog.ActivationType,
	statuses []catalog.EligibilityStatus,
) (catalog.EligibilitySet, error) {
	return e.catalog.ListEligibilities(ctx, user, project, types, statuses)
}

// ListReviewers returns the peers eligible to approve requester's
// activation of binding, excluding requester.
func (e *Engine) ListReviewers(ctx context.Context, requester identity.UserID, binding catalog.RoleBinding) ([]identity.UserID, error) {
	return e.catalog.ListReviewers(ctx, requester, binding)
}

// CreateJitRequest builds and returns a self-approval request without
// activating it; the caller must still call Activate.
func (e *Engine) CreateJitRequest(
	ctx context.Context,
	requester identity.UserID,
	entitlements []catalog.RoleBinding,
	justification string,
	start time.Time,
	duration time.Duration,
) (activation.JitRequest, error) {
	return e.activator.CreateJitRequest(ctx, requester, entitlements, justification, start, duration)
}

// CreateMpaRequest builds a peer-approval request, notifying its
// reviewers.
func (e *Engine) CreateMpaRequest(
	ctx context.Context,
	requester identity.UserID,
	binding catalog.RoleBinding,
	reviewers []identity.UserID,
	justification string,
	start time.Time,
	duration time.Duration,
) (activation.MpaRequest, error) {
	req, err := e.activator.CreateMpaRequest(ctx, requester, binding, reviewers, justification, start, duration)
	if err != nil {
		metrics.ActivationErrors.WithLabelValues(errorReason(err)).Inc()
		return activation.MpaRequest{}, err
	}
	metrics.RequestsCreated.WithLabelValues(string(activation.KindMpa)).Inc()
	return req, nil
}

// Activate self-approves and immediately provisions every entitlement of
// req.
func (e *Engine) Activate(ctx context.Context, req activation.JitRequest) ([]activation.Activation, error) {
	acts, err := e.activator.Activate(ctx, req)
	if err != nil {
		metrics.ActivationErrors.WithLabelValues(errorReason(err)).Inc()
		return nil, err
	}
	metrics.RequestsCreated.WithLabelValues(string(activation.KindJit)).Inc()
	for _, act := range acts {
		metrics.ActivationsProvisioned.WithLabelValues(string(act.Kind), act.Binding.Role).Inc()
	}
	return acts, nil
}

// Approve activates req on approver's approval and provisions its
// entitlement.
func (e *Engine) Approve(ctx context.Context, approver identity.UserID, req activation.MpaRequest) (activation.Activation, error) {
	act, err := e.activator.Approve(ctx, approver, req)
	if err != nil {
		metrics.ActivationErrors.WithLabelValues(errorReason(err)).Inc()
		return activation.Activation{}, err
	}
	metrics.ActivationsProvisioned.WithLabelValues(string(act.Kind), act.Binding.Role).Inc()
	return act, nil
}

// SignToken mints a bearer token for a pending MpaRequest, to be carried
// to its reviewers for approval.
func (e *Engine) SignToken(ctx context.Context, req activation.MpaRequest) (string, time.Time, time.Time, error) {
	jwt, iat, exp, err := e.tokens.SignToken(ctx, req)
	if err != nil {
		return "", time.Time{}, time.Time{}, err
	}
	metrics.TokensIssued.Inc()
	return jwt, iat, exp, nil
}

// VerifyToken recovers the MpaRequest a bearer token was minted for.
func (e *Engine) VerifyToken(ctx context.Context, jwt string) (activation.MpaRequest, error) {
	req, err := e.tokens.VerifyToken(ctx, jwt)
	if err != nil {
		metrics.TokenVerificationFailures.Inc()
		return activation.MpaRequest{}, err
	}
	return req, nil
}

func errorReason(err error) string {
	kind, ok := jiterrors.KindOf(err)
	if !ok {
		return "unknown"
	}
	return string(kind)
}
