// Package identity defines the two opaque identifiers the engine reasons
// about: users and projects.
package identity

import (
	"fmt"
	"strings"
)

// UserID identifies a principal by account id, carrying its email for
// display and for the "user:<email>" member form IAM bindings use.
// Equality is by ID, not email.
type UserID struct {
	ID    string
	Email string
}

// Equal reports whether two UserIDs refer to the same account.
func (u UserID) Equal(other UserID) bool {
	return u.ID == other.ID
}

// Member returns the IAM member string for this user ("user:<email>").
func (u UserID) Member() string {
	return "user:" + u.Email
}

func (u UserID) String() string {
	if u.Email != "" {
		return u.Email
	}
	return u.ID
}

// UserSet is a small helper for building deduplicated sets of users
// keyed by ID. Reviewer/beneficiary sets are rarely large enough to
// warrant a generic set library on their own.
type UserSet map[string]UserID

// NewUserSet builds a UserSet from a slice of users.
func NewUserSet(users ...UserID) UserSet {
	s := make(UserSet, len(users))
	for _, u := range users {
		s[u.ID] = u
	}
	return s
}

// Has reports whether u is a member of the set.
func (s UserSet) Has(u UserID) bool {
	_, ok := s[u.ID]
	return ok
}

// Insert adds u to the set.
func (s UserSet) Insert(u UserID) {
	s[u.ID] = u
}

// Remove deletes u from the set, if present.
func (s UserSet) Remove(u UserID) {
	delete(s, u.ID)
}

// List returns the set's members in unspecified order.
func (s UserSet) List() []UserID {
	out := make([]UserID, 0, len(s))
	for _, u := range s {
		out = append(out, u)
	}
	return out
}

// ProjectID is an unqualified project name. It is in bijection with a
// full resource name of the form
// "//cloudresourcemanager.googleapis.com/projects/<id>".
type ProjectID string

const projectResourceNamePrefix = "//cloudresourcemanager.googleapis.com/projects/"

// FullResourceName returns the project's full resource name.
func (p ProjectID) FullResourceName() string {
	return projectResourceNamePrefix + string(p)
}

func (p ProjectID) String() string {
	return string(p)
}

// IsSupportedResourceName reports whether fullResourceName refers to a
// bare project (no further path segments) — the only resource shape this
// engine reasons about. Folders and organizations are traversed by the
// upstream analyzer but never surfaced as eligibility targets.
func IsSupportedResourceName(fullResourceName string) bool {
	if !strings.HasPrefix(fullResourceName, projectResourceNamePrefix) {
		return false
	}
	rest := fullResourceName[len(projectResourceNamePrefix):]
	return rest != "" && !strings.Contains(rest, "/")
}

// ProjectIDFromResourceName extracts the bare project id from a full
// resource name, returning an error if IsSupportedResourceName rejects
// it.
func ProjectIDFromResourceName(fullResourceName string) (ProjectID, error) {
	if !IsSupportedResourceName(fullResourceName) {
		return "", fmt.Errorf("identity: %q is not a bare project resource name", fullResourceName)
	}
	return ProjectID(fullResourceName[len(projectResourceNamePrefix):]), nil
}

// ProjectIDSet is a deduplicated, insertion-order-independent set of
// project ids.
type ProjectIDSet map[ProjectID]struct{}

// NewProjectIDSet builds a ProjectIDSet from a slice of ids.
func NewProjectIDSet(ids ...ProjectID) ProjectIDSet {
	s := make(ProjectIDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Insert adds id to the set.
func (s ProjectIDSet) Insert(id ProjectID) {
	s[id] = struct{}{}
}

// List returns the set's members in unspecified order.
func (s ProjectIDSet) List() []ProjectID {
	out := make([]ProjectID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	return out
}
