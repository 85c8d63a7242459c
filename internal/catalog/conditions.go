package catalog

import "strings"

// Expr is a CEL condition attached to an IAM binding: a title, a
// human-readable description, and the expression itself.
type Expr struct {
	Title       string
	Description string
	Expression  string
}

const (
	// selfApprovalMarker is the CEL expression, and only this expression,
	// that marks a binding as self-approval eligible.
	selfApprovalMarker = "has({}.jitAccessConstraint)"

	// peerApprovalMarker marks a binding as peer-approval eligible.
	peerApprovalMarker = "has({}.multiPartyApprovalConstraint)"

	// ActivationConditionTitle is the reserved condition title the
	// engine writes on every binding it provisions, and the only title
	// it recognizes as "currently active" on read-back.
	ActivationConditionTitle = "JIT access activation"
)

// isSelfApprovalMarker reports whether expr's trimmed expression is
// exactly the self-approval marker. A condition that merely contains the
// marker alongside other clauses (e.g. "has({}.jitAccessConstraint) &&
// resource.name=='X'") is not recognized — the engine refuses to reason
// about restrictions it doesn't understand.
func isSelfApprovalMarker(expr *Expr) bool {
	return expr != nil && strings.TrimSpace(expr.Expression) == selfApprovalMarker
}

// isPeerApprovalMarker is the peer-approval analogue of isSelfApprovalMarker.
func isPeerApprovalMarker(expr *Expr) bool {
	return expr != nil && strings.TrimSpace(expr.Expression) == peerApprovalMarker
}

// isActivationCondition reports whether expr is a binding the engine
// itself provisioned: identified purely by its reserved title, since the
// expression's timestamps vary per activation.
func isActivationCondition(expr *Expr) bool {
	return expr != nil && expr.Title == ActivationConditionTitle
}

// markerActivationType returns the activation type a recognized marker
// condition designates, or "" if expr matches neither marker.
func markerActivationType(expr *Expr) (ActivationType, bool) {
	switch {
	case isSelfApprovalMarker(expr):
		return SelfApproval, true
	case isPeerApprovalMarker(expr):
		return PeerApproval, true
	default:
		return "", false
	}
}
