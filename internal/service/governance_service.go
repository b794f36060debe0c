package service

import (
	"context"

	"github.com/pesio-ai/be-hr-governance/internal/client"
	"github.com/pesio-ai/be-hr-governance/internal/errors"
	"github.com/pesio-ai/be-hr-governance/internal/logger"
	"github.com/pesio-ai/be-hr-governance/internal/repository"
)

// governanceDomain scopes every policy and approval lookup made by this service.
const governanceDomain = "HR"

// allowedReason is the justification attached to a fully compliant transition.
const allowedReason = "Process and policy compliant"

// PolicyEvaluator reduces all policy constraints matching a (workflow, role)
// scope to a single severity.
type PolicyEvaluator interface {
	EvaluateConstraints(ctx context.Context, workflow, role string) (*PolicyConstraintResult, error)
}

// ApprovalResolver resolves the approval requirement for a gated transition.
type ApprovalResolver interface {
	ResolveRequirement(ctx context.Context, domain, workflow, action, role string) (*ApprovalRequirement, error)
}

// DecisionAuditStore records evaluated verdicts.
type DecisionAuditStore interface {
	Append(ctx context.Context, entry *repository.DecisionAuditEntry) error
	ListByWorkflow(ctx context.Context, workflow string, limit int) ([]*repository.DecisionAuditEntry, error)
}

// GovernanceService is the governance decision resolver. It queries the three
// decision authorities in a fixed order and reduces their heterogeneous
// results to one verdict. It owns the merge logic exclusively and never
// mutates collaborator results; it holds no state of its own, so concurrent
// evaluations need no locking.
type GovernanceService struct {
	process   client.ProcessClientInterface
	policies  PolicyEvaluator
	approvals ApprovalResolver
	auditRepo DecisionAuditStore
	notifier  *client.NotificationPublisher
	log       *logger.Logger
}

// NewGovernanceService creates a new GovernanceService. auditRepo and notifier
// may be nil; both are best-effort side channels that never affect verdicts.
func NewGovernanceService(
	process client.ProcessClientInterface,
	policies PolicyEvaluator,
	approvals ApprovalResolver,
	auditRepo DecisionAuditStore,
	notifier *client.NotificationPublisher,
	log *logger.Logger,
) *GovernanceService {
	return &GovernanceService{
		process:   process,
		policies:  policies,
		approvals: approvals,
		auditRepo: auditRepo,
		notifier:  notifier,
		log:       log,
	}
}

// Resolve evaluates one proposed transition. First matching rule wins:
//
//  1. An invalid transition blocks immediately; policy and approval
//     authorities are never consulted.
//  2. A BLOCK policy severity blocks, attributed to the policy authority.
//  3. A REQUIRE_APPROVAL severity, or approval_required from the process
//     authority, resolves the approval requirement for the state being
//     entered and yields NEEDS_APPROVAL.
//  4. Otherwise the transition is allowed.
//
// Collaborator failures propagate unchanged — an unreachable authority is
// never converted into a verdict.
func (s *GovernanceService) Resolve(ctx context.Context, req *TransitionRequest) (*GovernanceVerdict, error) {
	if err := validateTransitionRequest(req); err != nil {
		return nil, err
	}

	// 1. Process legality
	process, err := s.process.CheckTransition(ctx, req.CurrentState, req.NextState, req.Role)
	if err != nil {
		return nil, err
	}

	if !process.Valid {
		verdict := &GovernanceVerdict{
			Verdict:   VerdictBlocked,
			Reasons:   []string{process.Reason},
			Authority: AuthorityProcess,
		}
		s.finalize(ctx, req, verdict)
		return verdict, nil
	}

	// 2. Policy constraints
	policy, err := s.policies.EvaluateConstraints(ctx, req.Workflow, req.Role)
	if err != nil {
		return nil, err
	}

	if policy.Severity == SeverityBlock {
		verdict := &GovernanceVerdict{
			Verdict:   VerdictBlocked,
			Reasons:   policy.Policies,
			Authority: AuthorityPolicy,
		}
		s.finalize(ctx, req, verdict)
		return verdict, nil
	}

	// 3. Approval handling — the approval subject is the state being entered.
	if policy.Severity == SeverityRequireApproval || process.ApprovalRequired {
		approval, err := s.approvals.ResolveRequirement(ctx, governanceDomain, req.Workflow, req.NextState, req.Role)
		if err != nil {
			return nil, err
		}

		verdict := &GovernanceVerdict{
			Verdict:   VerdictNeedsApproval,
			Reasons:   policy.Policies,
			Authority: AuthorityGovernance,
			Approval:  approval,
		}
		s.finalize(ctx, req, verdict)
		return verdict, nil
	}

	// 4. Fully allowed
	verdict := &GovernanceVerdict{
		Verdict:   VerdictAllowed,
		Reasons:   []string{allowedReason},
		Authority: AuthorityGovernance,
	}
	s.finalize(ctx, req, verdict)
	return verdict, nil
}

// GetDecisionHistory returns the recorded verdicts for a workflow, newest first.
func (s *GovernanceService) GetDecisionHistory(ctx context.Context, workflow string, limit int) ([]*repository.DecisionAuditEntry, error) {
	if workflow == "" {
		return nil, errors.InvalidInput("workflow", "workflow name is required")
	}
	if s.auditRepo == nil {
		return nil, errors.New(errors.ErrCodeUnavailable, "decision audit log is not configured")
	}
	return s.auditRepo.ListByWorkflow(ctx, workflow, limit)
}

// validateTransitionRequest rejects malformed input before any authority is
// consulted.
func validateTransitionRequest(req *TransitionRequest) error {
	if req == nil {
		return errors.InvalidInput("request", "transition request is required")
	}
	if req.CurrentState == "" {
		return errors.InvalidInput("current_state", "current state is required")
	}
	if req.NextState == "" {
		return errors.InvalidInput("next_state", "next state is required")
	}
	if req.Role == "" {
		return errors.InvalidInput("role", "requesting role is required")
	}
	if req.Workflow == "" {
		return errors.InvalidInput("workflow", "workflow name is required")
	}
	return nil
}

// ── Side channels ─────────────────────────────────────────────────────────────

// finalize records the verdict and emits notifications. Both are best-effort:
// a failed audit write or publish is logged and never changes the outcome.
func (s *GovernanceService) finalize(ctx context.Context, req *TransitionRequest, verdict *GovernanceVerdict) {
	s.log.Info().
		Str("workflow", req.Workflow).
		Str("current_state", req.CurrentState).
		Str("next_state", req.NextState).
		Str("role", req.Role).
		Str("verdict", string(verdict.Verdict)).
		Str("authority", string(verdict.Authority)).
		Msg("Governance verdict resolved")

	s.appendAudit(ctx, req, verdict)
	s.notify(req, verdict)
}

// appendAudit writes a decision log entry and logs a warning on failure.
func (s *GovernanceService) appendAudit(ctx context.Context, req *TransitionRequest, verdict *GovernanceVerdict) {
	if s.auditRepo == nil {
		return
	}

	entry := &repository.DecisionAuditEntry{
		Workflow:     req.Workflow,
		CurrentState: req.CurrentState,
		NextState:    req.NextState,
		Role:         req.Role,
		Verdict:      string(verdict.Verdict),
		Authority:    string(verdict.Authority),
		Reasons:      verdict.Reasons,
	}
	if verdict.Approval != nil {
		entry.Metadata = map[string]interface{}{
			"approval_required": verdict.Approval.ApprovalRequired,
			"approver_roles":    verdict.Approval.ApproverRoles,
			"approval_level":    verdict.Approval.ApprovalLevel,
			"auto_approve":      verdict.Approval.AutoApprove,
			"escalation_role":   verdict.Approval.EscalationRole,
		}
	}

	if err := s.auditRepo.Append(ctx, entry); err != nil {
		s.log.Warn().Err(err).
			Str("workflow", req.Workflow).
			Str("verdict", string(verdict.Verdict)).
			Msg("Failed to write decision audit entry")
	}
}

// notify publishes a governance event for verdicts someone has to act on.
func (s *GovernanceService) notify(req *TransitionRequest, verdict *GovernanceVerdict) {
	payload := map[string]interface{}{
		"current_state": req.CurrentState,
		"next_state":    req.NextState,
		"reasons":       verdict.Reasons,
	}

	switch verdict.Verdict {
	case VerdictBlocked:
		s.notifier.PublishGovernanceEvent("transition_blocked", req.Workflow, req.Role,
			[]string{req.Role}, payload)
	case VerdictNeedsApproval:
		recipients := verdict.Approval.ApproverRoles
		if verdict.Approval.EscalationRole != "" {
			recipients = append(append([]string(nil), recipients...), verdict.Approval.EscalationRole)
		}
		s.notifier.PublishGovernanceEvent("approval_required", req.Workflow, req.Role,
			recipients, payload)
	}
}
