// Package activation implements the Activator (C3): the state machine
// that turns an eligibility into a pending or completed temporary grant.
package activation

import (
	"fmt"
	"time"

	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/catalog"
	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/identity"
	"github.com/google/uuid"
)

// Kind discriminates the two request shapes an ActivationRequest can
// take. Modeled as a tagged union (spec.md Design Note §9) rather than a
// class hierarchy: JitRequest and MpaRequest share every field except
// Reviewers, and callers switch on Kind() instead of type-asserting.
type Kind string

const (
	KindJit Kind = "JIT"
	KindMpa Kind = "MPA"
)

// ID uniquely identifies a request or an activation derived from it. It
// carries its Kind as a printable prefix so a token consumer can reject
// cross-type confusion without decoding the rest of the identifier.
type ID string

// NewID mints a fresh, random ID of the given kind.
func NewID(kind Kind) ID {
	return ID(fmt.Sprintf("%s-%s", kind, uuid.NewString()))
}

func (id ID) String() string { return string(id) }

// ActivationRequest is anything the activator can act on: a JIT request
// (self-approved, batchable) or an MPA request (peer-reviewed, single
// entitlement).
type ActivationRequest interface {
	Kind() Kind
	ID() ID
	Requester() identity.UserID
	Entitlements() []catalog.RoleBinding
	Justification() string
	StartTime() time.Time
	Duration() time.Duration
}

// baseRequest holds the fields common to every request kind.
type baseRequest struct {
	id            ID
	requester     identity.UserID
	entitlements  []catalog.RoleBinding
	justification string
	startTime     time.Time
	duration      time.Duration
}

func (r baseRequest) ID() ID                            { return r.id }
func (r baseRequest) Requester() identity.UserID         { return r.requester }
func (r baseRequest) Entitlements() []catalog.RoleBinding { return r.entitlements }
func (r baseRequest) Justification() string              { return r.justification }
func (r baseRequest) StartTime() time.Time                { return r.startTime }
func (r baseRequest) Duration() time.Duration             { return r.duration }

// JitRequest is a self-approval request: valid and ready to activate as
// soon as it is created. It may batch multiple entitlements.
type JitRequest struct {
	baseRequest
}

func (JitRequest) Kind() Kind { return KindJit }

// NewJitRequest constructs a JitRequest. Bound-checking (batch size,
// duration range) is the activator's responsibility, not the
// constructor's — mirroring EntitlementActivator.createJitRequest, which
// validates before returning rather than at the value's construction
// site.
func NewJitRequest(requester identity.UserID, entitlements []catalog.RoleBinding, justification string, start time.Time, duration time.Duration) JitRequest {
	return JitRequest{baseRequest{
		id:            NewID(KindJit),
		requester:     requester,
		entitlements:  entitlements,
		justification: justification,
		startTime:     start,
		duration:      duration,
	}}
}

// MpaRequest is a peer-approval request: pending until one of Reviewers
// approves it. Exactly one entitlement per request.
type MpaRequest struct {
	baseRequest
	Reviewers []identity.UserID
}

func (MpaRequest) Kind() Kind { return KindMpa }

// NewMpaRequest constructs an MpaRequest for the single entitlement
// binding.
func NewMpaRequest(requester identity.UserID, binding catalog.RoleBinding, reviewers []identity.UserID, justification string, start time.Time, duration time.Duration) MpaRequest {
	return MpaRequest{
		baseRequest: baseRequest{
			id:            NewID(KindMpa),
			requester:     requester,
			entitlements:  []catalog.RoleBinding{binding},
			justification: justification,
			startTime:     start,
			duration:      duration,
		},
		Reviewers: reviewers,
	}
}

// ReconstructMpaRequest rebuilds an MpaRequest carrying a
// previously-issued id, rather than minting a fresh one. The token
// service uses this when verifying a token, so that
// signToken(r); verifyToken(x) reproduces r's identity instead of a new
// one (spec.md §8 invariant 4).
func ReconstructMpaRequest(id ID, requester identity.UserID, binding catalog.RoleBinding, reviewers []identity.UserID, justification string, start time.Time, duration time.Duration) MpaRequest {
	return MpaRequest{
		baseRequest: baseRequest{
			id:            id,
			requester:     requester,
			entitlements:  []catalog.RoleBinding{binding},
			justification: justification,
			startTime:     start,
			duration:      duration,
		},
		Reviewers: reviewers,
	}
}

// Binding returns the request's sole entitlement.
func (r MpaRequest) Binding() catalog.RoleBinding {
	return r.entitlements[0]
}

// HasReviewer reports whether user is among the request's eligible
// reviewers.
func (r MpaRequest) HasReviewer(user identity.UserID) bool {
	for _, rv := range r.Reviewers {
		if rv.Equal(user) {
			return true
		}
	}
	return false
}

// Status is the lifecycle state of an Activation.
type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusExpired Status = "EXPIRED"
)

// Activation is a granted, time-bounded exercise of one role binding —
// self-approved or peer-approved, the artifact both request kinds
// converge on once provisioning succeeds. A batched JitRequest produces
// one Activation per entitlement.
type Activation struct {
	ID            ID
	Kind          Kind
	Requester     identity.UserID
	Reviewer      identity.UserID // zero value for JIT activations
	Binding       catalog.RoleBinding
	Justification string
	StartTime     time.Time
	EndTime       time.Time
}

// Status reports whether the activation is presently in force, given now.
func (a Activation) Status(now time.Time) Status {
	if now.Before(a.EndTime) {
		return StatusActive
	}
	return StatusExpired
}

// BindingDescription is the human-readable text recorded on the
// temporary IAM condition, mirroring RoleActivationService's two
// formats.
func (a Activation) BindingDescription() string {
	if a.Kind == KindJit {
		return fmt.Sprintf("Self-approved, justification: %s", a.Justification)
	}
	return fmt.Sprintf("Approved by %s, justification: %s", a.Reviewer.Email, a.Justification)
}
