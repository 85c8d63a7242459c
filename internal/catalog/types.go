// Package catalog implements the Policy Analyzer (C1) and Role Catalog
// (C2): deriving a user's eligibilities from a raw policy-analysis
// document, and the query-facing façade over that derivation.
package catalog

import (
	"fmt"
	"sort"

	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/identity"
)

// RoleBinding is the (resource, role) pair an Eligibility or Activation
// applies to. The role is an opaque string such as "roles/viewer" — the
// engine never interprets it beyond equality.
type RoleBinding struct {
	ResourceFullName string
	Role             string
}

func (b RoleBinding) String() string {
	return fmt.Sprintf("%s:%s", b.ResourceFullName, b.Role)
}

// Less orders bindings by resource full name, then role — the ordering
// EligibilitySet is sorted by.
func (b RoleBinding) Less(other RoleBinding) bool {
	if b.ResourceFullName != other.ResourceFullName {
		return b.ResourceFullName < other.ResourceFullName
	}
	return b.Role < other.Role
}

// ActivationType is the modality of an eligibility: self-approval or
// peer-approval.
type ActivationType string

const (
	// SelfApproval eligibilities can be activated by the requester alone.
	SelfApproval ActivationType = "JIT"

	// PeerApproval eligibilities require sign-off from a co-eligible
	// peer. ExternalApproval, a later-design variant where the reviewer
	// set need not intersect the requester's own eligibility set, is
	// modeled as PeerApproval with a reviewer set drawn from outside the
	// entitlement's eligible-reviewer pool — no distinct enum member
	// exists (see DESIGN.md, Open Question 1).
	PeerApproval ActivationType = "MPA"
)

// EligibilityStatus reports whether an eligibility is dormant or
// presently backed by a live temporary grant.
type EligibilityStatus string

const (
	// Available means the user could activate this binding but has not.
	Available EligibilityStatus = "AVAILABLE"

	// Active means a temporary grant is presently in effect.
	Active EligibilityStatus = "ACTIVE"
)

// Eligibility is a latent or currently-exercised permission: a role
// binding, its activation modality, and its current status.
type Eligibility struct {
	RoleBinding    RoleBinding
	ActivationType ActivationType
	Status         EligibilityStatus
}

// key identifies an eligibility for the purposes of the "at most once per
// (roleBinding, activationType)" invariant.
type key struct {
	binding RoleBinding
	kind    ActivationType
}

// EligibilitySet is a sorted set of Eligibility plus any non-fatal
// warnings the underlying policy analysis produced.
type EligibilitySet struct {
	Eligibilities []Eligibility
	Warnings      []string
}

// newEligibilitySet builds a sorted, deduplicated EligibilitySet from a
// raw, possibly-overlapping slice, applying the merge rule: if both an
// Available and an Active entry exist for the same (roleBinding, type),
// only Active is retained.
func newEligibilitySet(raw []Eligibility, warnings []string) EligibilitySet {
	byKey := make(map[key]Eligibility, len(raw))
	for _, e := range raw {
		k := key{binding: e.RoleBinding, kind: e.ActivationType}
		if existing, ok := byKey[k]; ok && existing.Status == Active {
			// Active always wins over a duplicate Available entry.
			continue
		}
		byKey[k] = e
	}

	out := make([]Eligibility, 0, len(byKey))
	for _, e := range byKey {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RoleBinding != out[j].RoleBinding {
			return out[i].RoleBinding.Less(out[j].RoleBinding)
		}
		return out[i].ActivationType < out[j].ActivationType
	})

	return EligibilitySet{Eligibilities: out, Warnings: warnings}
}

// Contains reports whether the set has an eligibility for the exact
// (roleBinding, activationType) pair, regardless of status.
func (s EligibilitySet) Contains(binding RoleBinding, kind ActivationType) (Eligibility, bool) {
	for _, e := range s.Eligibilities {
		if e.RoleBinding == binding && e.ActivationType == kind {
			return e, true
		}
	}
	return Eligibility{}, false
}

// Filter returns the subset of eligibilities matching one of the given
// activation types and one of the given statuses. A nil/empty filter
// slice matches everything for that dimension.
func (s EligibilitySet) Filter(types []ActivationType, statuses []EligibilityStatus) EligibilitySet {
	matchesType := func(t ActivationType) bool {
		if len(types) == 0 {
			return true
		}
		for _, want := range types {
			if want == t {
				return true
			}
		}
		return false
	}
	matchesStatus := func(s EligibilityStatus) bool {
		if len(statuses) == 0 {
			return true
		}
		for _, want := range statuses {
			if want == s {
				return true
			}
		}
		return false
	}

	filtered := make([]Eligibility, 0, len(s.Eligibilities))
	for _, e := range s.Eligibilities {
		if matchesType(e.ActivationType) && matchesStatus(e.Status) {
			filtered = append(filtered, e)
		}
	}
	return EligibilitySet{Eligibilities: filtered, Warnings: s.Warnings}
}

// ProjectIDs returns the distinct set of projects any eligibility in s
// applies to.
func (s EligibilitySet) ProjectIDs() ([]identity.ProjectID, error) {
	seen := identity.NewProjectIDSet()
	for _, e := range s.Eligibilities {
		id, err := identity.ProjectIDFromResourceName(e.RoleBinding.ResourceFullName)
		if err != nil {
			return nil, err
		}
		seen.Insert(id)
	}
	ids := seen.List()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
