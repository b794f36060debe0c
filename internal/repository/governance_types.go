package repository

import "time"

// ── Domain types for governance stores ────────────────────────────────────────

// PolicyRecord is one organizational policy constraint scoped to a domain,
// workflow and set of roles.
type PolicyRecord struct {
	ID         string
	Domain     string   // e.g. "HR"
	AppliesTo  string   // workflow name, e.g. "Hiring"
	Roles      []string // roles the policy applies to
	Severity   string   // ALLOW | REQUIRE_APPROVAL | BLOCK
	PolicyText string
	Source     string // provenance, e.g. "HR Policy Handbook v2.1"
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ApprovalPolicyRecord defines who must approve a specific action within a
// workflow when requested by a given role.
type ApprovalPolicyRecord struct {
	ID              string
	Domain          string
	Workflow        string
	Action          string // the state being entered
	RequestedByRole string
	ApproverRoles   []string
	ApprovalLevel   int
	AutoApprove     bool
	EscalationRole  string
	Source          string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DecisionAuditEntry is one immutable record of a governance evaluation.
type DecisionAuditEntry struct {
	ID           string
	Workflow     string
	CurrentState string
	NextState    string
	Role         string
	Verdict      string // ALLOWED | BLOCKED | NEEDS_APPROVAL
	Authority    string
	Reasons      []string
	Metadata     map[string]interface{} // arbitrary JSON context
	DecidedAt    time.Time
}
