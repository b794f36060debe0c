package service

import (
	"fmt"
	"strings"
)

// ── Severity ──────────────────────────────────────────────────────────────────

// Severity is the strength of a policy constraint.
// Precedence: BLOCK > REQUIRE_APPROVAL > ALLOW.
type Severity string

const (
	SeverityAllow           Severity = "ALLOW"
	SeverityRequireApproval Severity = "REQUIRE_APPROVAL"
	SeverityBlock           Severity = "BLOCK"
)

// severityRank encodes the precedence order used by the reduction.
var severityRank = map[Severity]int{
	SeverityAllow:           0,
	SeverityRequireApproval: 1,
	SeverityBlock:           2,
}

// ParseSeverity validates a raw severity string from storage or input.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToUpper(s))
	if _, ok := severityRank[sev]; !ok {
		return "", fmt.Errorf("unknown severity %q", s)
	}
	return sev, nil
}

// Outranks reports whether s takes precedence over other.
func (s Severity) Outranks(other Severity) bool {
	return severityRank[s] > severityRank[other]
}

// ── Verdict / Authority ───────────────────────────────────────────────────────

// Verdict is the resolver's final decision for a transition request.
type Verdict string

const (
	VerdictAllowed       Verdict = "ALLOWED"
	VerdictBlocked       Verdict = "BLOCKED"
	VerdictNeedsApproval Verdict = "NEEDS_APPROVAL"
)

// Authority identifies which component produced the final word.
type Authority string

const (
	AuthorityProcess    Authority = "ProcessAuthority"
	AuthorityPolicy     Authority = "PolicyAuthority"
	AuthorityGovernance Authority = "GovernanceLayer"
)

// ── Request / result shapes ───────────────────────────────────────────────────

// TransitionRequest is one proposed workflow state transition. Constructed
// once per evaluation and never mutated.
type TransitionRequest struct {
	CurrentState string `json:"current_state"`
	NextState    string `json:"next_state"`
	Role         string `json:"role"`
	Workflow     string `json:"workflow"`
}

// PolicyConstraintResult is the reduced outcome of all policies matching a
// (workflow, role) scope. Policies lists every matched policy text in
// store-return order regardless of which severity won the reduction.
// Invariant: an empty Policies list always carries SeverityAllow.
type PolicyConstraintResult struct {
	Severity Severity `json:"severity"`
	Policies []string `json:"policies"`
}

// ApprovalRequirement describes who must approve a gated transition. When no
// approval policy matches, ApprovalRequired is false and AutoApprove is true;
// all other fields are the matched record's values, passed through verbatim.
type ApprovalRequirement struct {
	ApprovalRequired bool     `json:"approval_required"`
	ApproverRoles    []string `json:"approver_roles,omitempty"`
	ApprovalLevel    int      `json:"approval_level,omitempty"`
	AutoApprove      bool     `json:"auto_approve"`
	EscalationRole   string   `json:"escalation_role,omitempty"`
}

// GovernanceVerdict is the resolver's final output. Reasons carries the
// justification from whichever authority produced the verdict; Approval is
// present only when Verdict is NEEDS_APPROVAL.
type GovernanceVerdict struct {
	Verdict   Verdict              `json:"verdict"`
	Reasons   []string             `json:"reason"`
	Authority Authority            `json:"authority"`
	Approval  *ApprovalRequirement `json:"approval,omitempty"`
}
