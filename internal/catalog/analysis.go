package catalog

// AnalysisResult is the response shape of the external policy-analysis
// client: a list of results, each associating a binding with a list of
// access-control lists that record how the binding's condition evaluated
// on each resource it applies to.
//
// This mirrors the shape of the Cloud Asset Inventory "IAM policy
// analysis" response the original implementation consumes; the engine
// only reads the handful of fields the merge algorithm in analyzer.go
// needs.
type AnalysisResult struct {
	Results           []AnalyzedBinding
	NonCriticalErrors []string
}

// AnalyzedBinding pairs one IAM binding with the ACLs describing where
// and how its condition evaluates.
type AnalyzedBinding struct {
	Binding            IAMBinding
	AccessControlLists []AccessControlList
	IdentityList       *IdentityList
}

// IAMBinding is the (members, role, condition) triple of a single IAM
// policy binding.
type IAMBinding struct {
	Members   []string
	Role      string
	Condition *Expr
}

// ConditionEvaluationResult is the analyzer's verdict for how a binding's
// condition evaluates on a particular ACL.
type ConditionEvaluationResult string

const (
	EvaluationTrue        ConditionEvaluationResult = "TRUE"
	EvaluationFalse       ConditionEvaluationResult = "FALSE"
	EvaluationConditional ConditionEvaluationResult = "CONDITIONAL"
)

// AccessControlList is one (condition evaluation, resource set) entry the
// analyzer produced for a binding.
type AccessControlList struct {
	ConditionEvaluation ConditionEvaluationResult
	Resources           []AnalyzedResource
}

// AnalyzedResource is a single resource an ACL applies to.
type AnalyzedResource struct {
	FullResourceName string
}

// IdentityList carries the principals a permissioned-principals query
// resolved a binding's members to (after expanding groups, if the caller
// has the rights to do so).
type IdentityList struct {
	Identities []Identity
}

// Identity is one resolved principal. Only entries with the "user:"
// prefix are ever surfaced by the catalog — service accounts and groups
// are discarded during reviewer discovery.
type Identity struct {
	Name string
}
