package service

import (
	"context"

	"github.com/pesio-ai/be-hr-governance/internal/errors"
	"github.com/pesio-ai/be-hr-governance/internal/logger"
	"github.com/pesio-ai/be-hr-governance/internal/repository"
)

// ApprovalPolicyStore is the slice of the approval-policy repository the
// resolver needs.
type ApprovalPolicyStore interface {
	Create(ctx context.Context, p *repository.ApprovalPolicyRecord) error
	GetByID(ctx context.Context, id string) (*repository.ApprovalPolicyRecord, error)
	List(ctx context.Context, domain string) ([]*repository.ApprovalPolicyRecord, error)
	FindMatching(ctx context.Context, domain, workflow, action, role string) (*repository.ApprovalPolicyRecord, error)
	Delete(ctx context.Context, id string) error
}

// ApprovalService resolves approval requirements for gated transitions and
// manages the underlying approval-policy records.
type ApprovalService struct {
	store ApprovalPolicyStore
	log   *logger.Logger
}

// NewApprovalService creates a new ApprovalService.
func NewApprovalService(store ApprovalPolicyStore, log *logger.Logger) *ApprovalService {
	return &ApprovalService{store: store, log: log}
}

// ResolveRequirement looks up the approval policy scoped to the exact
// (domain, workflow, action, role) tuple. No matching record means no approval
// is required and the transition auto-approves. A matched record's fields are
// surfaced verbatim; this service does not interpret approval_level.
func (s *ApprovalService) ResolveRequirement(ctx context.Context, domain, workflow, action, role string) (*ApprovalRequirement, error) {
	record, err := s.store.FindMatching(ctx, domain, workflow, action, role)
	if err != nil {
		return nil, err
	}

	if record == nil {
		return &ApprovalRequirement{
			ApprovalRequired: false,
			AutoApprove:      true,
		}, nil
	}

	return &ApprovalRequirement{
		ApprovalRequired: true,
		ApproverRoles:    record.ApproverRoles,
		ApprovalLevel:    record.ApprovalLevel,
		AutoApprove:      record.AutoApprove,
		EscalationRole:   record.EscalationRole,
	}, nil
}

// ── Approval policy administration ────────────────────────────────────────────

// CreateApprovalPolicyRequest represents a create approval policy request.
type CreateApprovalPolicyRequest struct {
	Domain          string   `json:"domain"`
	Workflow        string   `json:"workflow"`
	Action          string   `json:"action"`
	RequestedByRole string   `json:"requested_by_role"`
	ApproverRoles   []string `json:"approver_roles"`
	ApprovalLevel   int      `json:"approval_level"`
	AutoApprove     bool     `json:"auto_approve"`
	EscalationRole  string   `json:"escalation_role"`
	Source          string   `json:"source"`
}

// CreateApprovalPolicy validates and stores a new approval policy record.
func (s *ApprovalService) CreateApprovalPolicy(ctx context.Context, req *CreateApprovalPolicyRequest) (*repository.ApprovalPolicyRecord, error) {
	if req.Domain == "" {
		req.Domain = governanceDomain
	}
	if req.Workflow == "" {
		return nil, errors.InvalidInput("workflow", "workflow name is required")
	}
	if req.Action == "" {
		return nil, errors.InvalidInput("action", "action is required")
	}
	if req.RequestedByRole == "" {
		return nil, errors.InvalidInput("requested_by_role", "requesting role is required")
	}
	if len(req.ApproverRoles) == 0 {
		return nil, errors.InvalidInput("approver_roles", "at least one approver role is required")
	}
	if req.ApprovalLevel < 1 {
		return nil, errors.InvalidInput("approval_level", "approval level must be at least 1")
	}

	// Surface duplicate scopes early: a second record for the same tuple would
	// never be consulted (first-in-store-order wins).
	existing, err := s.store.FindMatching(ctx, req.Domain, req.Workflow, req.Action, req.RequestedByRole)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errors.New(errors.ErrCodeConflict,
			"an approval policy already exists for this (domain, workflow, action, role) scope")
	}

	record := &repository.ApprovalPolicyRecord{
		Domain:          req.Domain,
		Workflow:        req.Workflow,
		Action:          req.Action,
		RequestedByRole: req.RequestedByRole,
		ApproverRoles:   req.ApproverRoles,
		ApprovalLevel:   req.ApprovalLevel,
		AutoApprove:     req.AutoApprove,
		EscalationRole:  req.EscalationRole,
		Source:          req.Source,
	}

	if err := s.store.Create(ctx, record); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("approval_policy_id", record.ID).
		Str("workflow", record.Workflow).
		Str("action", record.Action).
		Msg("Approval policy created")

	return record, nil
}

// GetApprovalPolicy returns a single approval policy record by id.
func (s *ApprovalService) GetApprovalPolicy(ctx context.Context, id string) (*repository.ApprovalPolicyRecord, error) {
	if id == "" {
		return nil, errors.InvalidInput("id", "approval policy id is required")
	}
	return s.store.GetByID(ctx, id)
}

// ListApprovalPolicies returns all approval policies for the governance domain.
func (s *ApprovalService) ListApprovalPolicies(ctx context.Context) ([]*repository.ApprovalPolicyRecord, error) {
	return s.store.List(ctx, governanceDomain)
}

// DeleteApprovalPolicy removes an approval policy record.
func (s *ApprovalService) DeleteApprovalPolicy(ctx context.Context, id string) error {
	if id == "" {
		return errors.InvalidInput("id", "approval policy id is required")
	}
	return s.store.Delete(ctx, id)
}
