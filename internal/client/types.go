package client

// ProcessLegalityResult is the process authority's answer for one proposed
// transition. Reason is always populated when Valid is false.
type ProcessLegalityResult struct {
	Valid            bool   `json:"valid"`
	ApprovalRequired bool   `json:"approval_required"`
	Reason           string `json:"reason"`
}
