package service

import (
	"context"

	"github.com/pesio-ai/be-hr-governance/internal/errors"
	"github.com/pesio-ai/be-hr-governance/internal/logger"
	"github.com/pesio-ai/be-hr-governance/internal/repository"
)

// PolicyStore is the slice of the policy repository the evaluator needs.
type PolicyStore interface {
	Create(ctx context.Context, p *repository.PolicyRecord) error
	GetByID(ctx context.Context, id string) (*repository.PolicyRecord, error)
	List(ctx context.Context, domain string) ([]*repository.PolicyRecord, error)
	ListMatching(ctx context.Context, domain, appliesTo, role string) ([]*repository.PolicyRecord, error)
	Delete(ctx context.Context, id string) error
}

// PolicyService evaluates organizational policy constraints against a
// (workflow, role) scope and manages the underlying policy records.
type PolicyService struct {
	store PolicyStore
	log   *logger.Logger
}

// NewPolicyService creates a new PolicyService.
func NewPolicyService(store PolicyStore, log *logger.Logger) *PolicyService {
	return &PolicyService{store: store, log: log}
}

// EvaluateConstraints fetches every policy matching (domain, workflow, role)
// and reduces their severities with precedence BLOCK > REQUIRE_APPROVAL >
// ALLOW. Zero matches means no applicable constraint and yields ALLOW with an
// empty policy list. Store failures propagate; they are never reported as a
// permissive result.
func (s *PolicyService) EvaluateConstraints(ctx context.Context, workflow, role string) (*PolicyConstraintResult, error) {
	records, err := s.store.ListMatching(ctx, governanceDomain, workflow, role)
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		return &PolicyConstraintResult{Severity: SeverityAllow, Policies: []string{}}, nil
	}

	reduced := SeverityAllow
	policies := make([]string, 0, len(records))

	for _, rec := range records {
		policies = append(policies, rec.PolicyText)

		sev, err := ParseSeverity(rec.Severity)
		if err != nil {
			// Rows are validated on the admin path; a record written out-of-band
			// with an unknown severity is gated rather than silently allowed.
			s.log.Warn().
				Str("policy_id", rec.ID).
				Str("severity", rec.Severity).
				Msg("Policy record carries unknown severity; treating as REQUIRE_APPROVAL")
			sev = SeverityRequireApproval
		}
		if sev.Outranks(reduced) {
			reduced = sev
		}
	}

	return &PolicyConstraintResult{Severity: reduced, Policies: policies}, nil
}

// ── Policy record administration ──────────────────────────────────────────────

// CreatePolicyRequest represents a create policy request.
type CreatePolicyRequest struct {
	Domain     string   `json:"domain"`
	AppliesTo  string   `json:"applies_to"`
	Roles      []string `json:"roles"`
	Severity   string   `json:"severity"`
	PolicyText string   `json:"policy_text"`
	Source     string   `json:"source"`
}

// CreatePolicy validates and stores a new policy record.
func (s *PolicyService) CreatePolicy(ctx context.Context, req *CreatePolicyRequest) (*repository.PolicyRecord, error) {
	if req.Domain == "" {
		req.Domain = governanceDomain
	}
	if req.AppliesTo == "" {
		return nil, errors.InvalidInput("applies_to", "workflow name is required")
	}
	if len(req.Roles) == 0 {
		return nil, errors.InvalidInput("roles", "at least one role is required")
	}
	if req.PolicyText == "" {
		return nil, errors.InvalidInput("policy_text", "policy text is required")
	}

	sev, err := ParseSeverity(req.Severity)
	if err != nil {
		return nil, errors.InvalidInput("severity", "must be one of ALLOW, REQUIRE_APPROVAL, BLOCK")
	}

	record := &repository.PolicyRecord{
		Domain:     req.Domain,
		AppliesTo:  req.AppliesTo,
		Roles:      req.Roles,
		Severity:   string(sev),
		PolicyText: req.PolicyText,
		Source:     req.Source,
	}

	if err := s.store.Create(ctx, record); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("policy_id", record.ID).
		Str("applies_to", record.AppliesTo).
		Str("severity", record.Severity).
		Msg("Policy record created")

	return record, nil
}

// GetPolicy returns a single policy record by id.
func (s *PolicyService) GetPolicy(ctx context.Context, id string) (*repository.PolicyRecord, error) {
	if id == "" {
		return nil, errors.InvalidInput("id", "policy id is required")
	}
	return s.store.GetByID(ctx, id)
}

// ListPolicies returns all policy records for the governance domain.
func (s *PolicyService) ListPolicies(ctx context.Context) ([]*repository.PolicyRecord, error) {
	return s.store.List(ctx, governanceDomain)
}

// DeletePolicy removes a policy record.
func (s *PolicyService) DeletePolicy(ctx context.Context, id string) error {
	if id == "" {
		return errors.InvalidInput("id", "policy id is required")
	}
	return s.store.Delete(ctx, id)
}
