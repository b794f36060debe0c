package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-hr-governance/internal/client"
	"github.com/pesio-ai/be-hr-governance/internal/errors"
	"github.com/pesio-ai/be-hr-governance/internal/logger"
	"github.com/pesio-ai/be-hr-governance/internal/repository"
)

// ── Test doubles ──────────────────────────────────────────────────────────────

type stubProcess struct {
	result *client.ProcessLegalityResult
	err    error
	calls  int
}

func (s *stubProcess) CheckTransition(ctx context.Context, currentState, nextState, role string) (*client.ProcessLegalityResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type stubPolicies struct {
	result *PolicyConstraintResult
	err    error
	calls  int
}

func (s *stubPolicies) EvaluateConstraints(ctx context.Context, workflow, role string) (*PolicyConstraintResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type stubApprovals struct {
	result     *ApprovalRequirement
	err        error
	calls      int
	lastDomain string
	lastAction string
	lastRole   string
}

func (s *stubApprovals) ResolveRequirement(ctx context.Context, domain, workflow, action, role string) (*ApprovalRequirement, error) {
	s.calls++
	s.lastDomain = domain
	s.lastAction = action
	s.lastRole = role
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type stubAudit struct {
	entries []*repository.DecisionAuditEntry
	err     error
}

func (s *stubAudit) Append(ctx context.Context, entry *repository.DecisionAuditEntry) error {
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *stubAudit) ListByWorkflow(ctx context.Context, workflow string, limit int) ([]*repository.DecisionAuditEntry, error) {
	return s.entries, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "disabled", ServiceName: "test"})
}

func validProcess() *stubProcess {
	return &stubProcess{result: &client.ProcessLegalityResult{
		Valid:            true,
		ApprovalRequired: false,
		Reason:           "Valid HR workflow transition",
	}}
}

func allowPolicies() *stubPolicies {
	return &stubPolicies{result: &PolicyConstraintResult{Severity: SeverityAllow, Policies: []string{}}}
}

func newResolver(p *stubProcess, pol *stubPolicies, app *stubApprovals, audit *stubAudit) *GovernanceService {
	log := testLogger()
	return NewGovernanceService(p, pol, app, audit,
		client.NewNotificationPublisher(nil, log.Logger), log)
}

func hiringRequest() *TransitionRequest {
	return &TransitionRequest{
		CurrentState: "OfferMade",
		NextState:    "OfferAccepted",
		Role:         "HR_EXECUTIVE",
		Workflow:     "Hiring",
	}
}

// ── Resolution order ──────────────────────────────────────────────────────────

func TestResolveBlocksOnInvalidTransition(t *testing.T) {
	process := &stubProcess{result: &client.ProcessLegalityResult{
		Valid:  false,
		Reason: "OfferAccepted is not reachable from Rejected",
	}}
	policies := allowPolicies()
	approvals := &stubApprovals{}

	verdict, err := newResolver(process, policies, approvals, &stubAudit{}).Resolve(context.Background(), &TransitionRequest{
		CurrentState: "Rejected",
		NextState:    "OfferAccepted",
		Role:         "HR_EXECUTIVE",
		Workflow:     "Hiring",
	})

	require.NoError(t, err)
	assert.Equal(t, VerdictBlocked, verdict.Verdict)
	assert.Equal(t, AuthorityProcess, verdict.Authority)
	assert.Equal(t, []string{"OfferAccepted is not reachable from Rejected"}, verdict.Reasons)
	assert.Nil(t, verdict.Approval)

	// An illegal transition short-circuits: the other authorities are never consulted.
	assert.Equal(t, 1, process.calls)
	assert.Equal(t, 0, policies.calls)
	assert.Equal(t, 0, approvals.calls)
}

func TestResolveBlocksOnPolicySeverity(t *testing.T) {
	policies := &stubPolicies{result: &PolicyConstraintResult{
		Severity: SeverityBlock,
		Policies: []string{"Hiring freeze in effect for Q3", "Headcount must be board approved"},
	}}
	approvals := &stubApprovals{}

	verdict, err := newResolver(validProcess(), policies, approvals, &stubAudit{}).Resolve(context.Background(), hiringRequest())

	require.NoError(t, err)
	assert.Equal(t, VerdictBlocked, verdict.Verdict)
	assert.Equal(t, AuthorityPolicy, verdict.Authority)
	assert.Equal(t, policies.result.Policies, verdict.Reasons)
	assert.Equal(t, 0, approvals.calls)
}

func TestResolveNeedsApprovalOnPolicySeverity(t *testing.T) {
	policies := &stubPolicies{result: &PolicyConstraintResult{
		Severity: SeverityRequireApproval,
		Policies: []string{"Offer acceptance requires manager sign-off"},
	}}
	approvals := &stubApprovals{result: &ApprovalRequirement{
		ApprovalRequired: true,
		ApproverRoles:    []string{"HR_MANAGER"},
		ApprovalLevel:    1,
		AutoApprove:      false,
		EscalationRole:   "HR_DIRECTOR",
	}}

	verdict, err := newResolver(validProcess(), policies, approvals, &stubAudit{}).Resolve(context.Background(), hiringRequest())

	require.NoError(t, err)
	assert.Equal(t, VerdictNeedsApproval, verdict.Verdict)
	assert.Equal(t, AuthorityGovernance, verdict.Authority)
	require.NotNil(t, verdict.Approval)
	assert.Equal(t, []string{"HR_MANAGER"}, verdict.Approval.ApproverRoles)
	assert.Equal(t, 1, verdict.Approval.ApprovalLevel)
	assert.False(t, verdict.Approval.AutoApprove)
	assert.Equal(t, "HR_DIRECTOR", verdict.Approval.EscalationRole)

	// The approval subject is the state being entered, scoped to the HR domain.
	assert.Equal(t, 1, approvals.calls)
	assert.Equal(t, "HR", approvals.lastDomain)
	assert.Equal(t, "OfferAccepted", approvals.lastAction)
	assert.Equal(t, "HR_EXECUTIVE", approvals.lastRole)
}

func TestResolveNeedsApprovalWhenProcessRequiresIt(t *testing.T) {
	process := &stubProcess{result: &client.ProcessLegalityResult{
		Valid:            true,
		ApprovalRequired: true,
		Reason:           "Valid HR workflow transition",
	}}
	approvals := &stubApprovals{result: &ApprovalRequirement{ApprovalRequired: false, AutoApprove: true}}

	verdict, err := newResolver(process, allowPolicies(), approvals, &stubAudit{}).Resolve(context.Background(), hiringRequest())

	require.NoError(t, err)
	assert.Equal(t, VerdictNeedsApproval, verdict.Verdict)
	assert.Equal(t, AuthorityGovernance, verdict.Authority)
	require.NotNil(t, verdict.Approval)
	assert.True(t, verdict.Approval.AutoApprove)
	assert.Equal(t, 1, approvals.calls)
}

func TestResolveAllowsCompliantTransition(t *testing.T) {
	approvals := &stubApprovals{}

	verdict, err := newResolver(validProcess(), allowPolicies(), approvals, &stubAudit{}).Resolve(context.Background(), hiringRequest())

	require.NoError(t, err)
	assert.Equal(t, VerdictAllowed, verdict.Verdict)
	assert.Equal(t, AuthorityGovernance, verdict.Authority)
	assert.Equal(t, []string{"Process and policy compliant"}, verdict.Reasons)
	assert.Nil(t, verdict.Approval)
	assert.Equal(t, 0, approvals.calls)
}

func TestResolveIsIdempotent(t *testing.T) {
	policies := &stubPolicies{result: &PolicyConstraintResult{
		Severity: SeverityRequireApproval,
		Policies: []string{"Offer acceptance requires manager sign-off"},
	}}
	approvals := &stubApprovals{result: &ApprovalRequirement{
		ApprovalRequired: true,
		ApproverRoles:    []string{"HR_MANAGER"},
		ApprovalLevel:    1,
		EscalationRole:   "HR_DIRECTOR",
	}}
	resolver := newResolver(validProcess(), policies, approvals, &stubAudit{})

	first, err := resolver.Resolve(context.Background(), hiringRequest())
	require.NoError(t, err)
	second, err := resolver.Resolve(context.Background(), hiringRequest())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

// ── Failure propagation ───────────────────────────────────────────────────────

func TestResolvePropagatesCollaboratorFailures(t *testing.T) {
	unavailable := errors.Unavailable("policy store", fmt.Errorf("connection refused"))

	tests := []struct {
		name      string
		process   *stubProcess
		policies  *stubPolicies
		approvals *stubApprovals
	}{
		{
			name:      "process authority down",
			process:   &stubProcess{err: errors.Unavailable("process legality authority", fmt.Errorf("dial tcp"))},
			policies:  allowPolicies(),
			approvals: &stubApprovals{},
		},
		{
			name:      "policy store down",
			process:   validProcess(),
			policies:  &stubPolicies{err: unavailable},
			approvals: &stubApprovals{},
		},
		{
			name:     "approval store down",
			process:  validProcess(),
			policies: &stubPolicies{result: &PolicyConstraintResult{Severity: SeverityRequireApproval, Policies: []string{"p"}}},
			approvals: &stubApprovals{
				err: errors.Unavailable("approval policy store", fmt.Errorf("connection refused")),
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			verdict, err := newResolver(tc.process, tc.policies, tc.approvals, &stubAudit{}).Resolve(context.Background(), hiringRequest())

			// An unreachable authority is never converted into a verdict.
			require.Error(t, err)
			assert.Nil(t, verdict)
			assert.Equal(t, errors.ErrCodeUnavailable, errors.CodeOf(err))
		})
	}
}

func TestResolveValidatesInputBeforeCallingAuthorities(t *testing.T) {
	tests := []struct {
		name string
		req  *TransitionRequest
	}{
		{"nil request", nil},
		{"missing current state", &TransitionRequest{NextState: "B", Role: "R", Workflow: "W"}},
		{"missing next state", &TransitionRequest{CurrentState: "A", Role: "R", Workflow: "W"}},
		{"missing role", &TransitionRequest{CurrentState: "A", NextState: "B", Workflow: "W"}},
		{"missing workflow", &TransitionRequest{CurrentState: "A", NextState: "B", Role: "R"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			process := validProcess()
			policies := allowPolicies()
			approvals := &stubApprovals{}

			verdict, err := newResolver(process, policies, approvals, &stubAudit{}).Resolve(context.Background(), tc.req)

			require.Error(t, err)
			assert.Nil(t, verdict)
			assert.Equal(t, errors.ErrCodeInvalidInput, errors.CodeOf(err))
			assert.Equal(t, 0, process.calls)
			assert.Equal(t, 0, policies.calls)
			assert.Equal(t, 0, approvals.calls)
		})
	}
}

// ── Side channels ─────────────────────────────────────────────────────────────

func TestResolveRecordsDecision(t *testing.T) {
	audit := &stubAudit{}

	verdict, err := newResolver(validProcess(), allowPolicies(), &stubApprovals{}, audit).Resolve(context.Background(), hiringRequest())

	require.NoError(t, err)
	require.Len(t, audit.entries, 1)
	entry := audit.entries[0]
	assert.Equal(t, "Hiring", entry.Workflow)
	assert.Equal(t, "OfferMade", entry.CurrentState)
	assert.Equal(t, "OfferAccepted", entry.NextState)
	assert.Equal(t, string(verdict.Verdict), entry.Verdict)
	assert.Equal(t, string(verdict.Authority), entry.Authority)
}

func TestResolveSurvivesAuditFailure(t *testing.T) {
	audit := &stubAudit{err: errors.Unavailable("decision audit store", fmt.Errorf("down"))}

	verdict, err := newResolver(validProcess(), allowPolicies(), &stubApprovals{}, audit).Resolve(context.Background(), hiringRequest())

	require.NoError(t, err)
	assert.Equal(t, VerdictAllowed, verdict.Verdict)
}

// ── End-to-end scenario over real evaluator/resolver implementations ──────────

// In-memory stores implementing the repository slices the services consume.

type memPolicyStore struct {
	records []*repository.PolicyRecord
}

func (m *memPolicyStore) Create(ctx context.Context, p *repository.PolicyRecord) error {
	m.records = append(m.records, p)
	return nil
}

func (m *memPolicyStore) GetByID(ctx context.Context, id string) (*repository.PolicyRecord, error) {
	for _, rec := range m.records {
		if rec.ID == id {
			return rec, nil
		}
	}
	return nil, errors.NotFound("policy", id)
}

func (m *memPolicyStore) List(ctx context.Context, domain string) ([]*repository.PolicyRecord, error) {
	return m.records, nil
}

func (m *memPolicyStore) ListMatching(ctx context.Context, domain, appliesTo, role string) ([]*repository.PolicyRecord, error) {
	var out []*repository.PolicyRecord
	for _, rec := range m.records {
		if rec.Domain != domain || rec.AppliesTo != appliesTo {
			continue
		}
		for _, r := range rec.Roles {
			if r == role {
				out = append(out, rec)
				break
			}
		}
	}
	return out, nil
}

func (m *memPolicyStore) Delete(ctx context.Context, id string) error { return nil }

type memApprovalStore struct {
	records []*repository.ApprovalPolicyRecord
}

func (m *memApprovalStore) Create(ctx context.Context, p *repository.ApprovalPolicyRecord) error {
	m.records = append(m.records, p)
	return nil
}

func (m *memApprovalStore) GetByID(ctx context.Context, id string) (*repository.ApprovalPolicyRecord, error) {
	for _, rec := range m.records {
		if rec.ID == id {
			return rec, nil
		}
	}
	return nil, errors.NotFound("approval_policy", id)
}

func (m *memApprovalStore) List(ctx context.Context, domain string) ([]*repository.ApprovalPolicyRecord, error) {
	return m.records, nil
}

func (m *memApprovalStore) FindMatching(ctx context.Context, domain, workflow, action, role string) (*repository.ApprovalPolicyRecord, error) {
	for _, rec := range m.records {
		if rec.Domain == domain && rec.Workflow == workflow && rec.Action == action && rec.RequestedByRole == role {
			return rec, nil
		}
	}
	return nil, nil
}

func (m *memApprovalStore) Delete(ctx context.Context, id string) error { return nil }

func TestResolveHiringOfferScenario(t *testing.T) {
	log := testLogger()

	policyStore := &memPolicyStore{records: []*repository.PolicyRecord{{
		ID:         "pol-1",
		Domain:     "HR",
		AppliesTo:  "Hiring",
		Roles:      []string{"HR_EXECUTIVE"},
		Severity:   "REQUIRE_APPROVAL",
		PolicyText: "Offer acceptance must be approved by an HR manager",
	}}}

	approvalStore := &memApprovalStore{records: []*repository.ApprovalPolicyRecord{{
		ID:              "apr-1",
		Domain:          "HR",
		Workflow:        "Hiring",
		Action:          "OfferAccepted",
		RequestedByRole: "HR_EXECUTIVE",
		ApproverRoles:   []string{"HR_MANAGER"},
		ApprovalLevel:   1,
		AutoApprove:     false,
		EscalationRole:  "HR_DIRECTOR",
		Source:          "HR Approval SOP v1.0",
	}}}

	resolver := NewGovernanceService(
		validProcess(),
		NewPolicyService(policyStore, log),
		NewApprovalService(approvalStore, log),
		&stubAudit{},
		client.NewNotificationPublisher(nil, log.Logger),
		log,
	)

	verdict, err := resolver.Resolve(context.Background(), hiringRequest())

	require.NoError(t, err)
	assert.Equal(t, VerdictNeedsApproval, verdict.Verdict)
	assert.Equal(t, AuthorityGovernance, verdict.Authority)
	assert.Equal(t, []string{"Offer acceptance must be approved by an HR manager"}, verdict.Reasons)
	require.NotNil(t, verdict.Approval)
	assert.Equal(t, &ApprovalRequirement{
		ApprovalRequired: true,
		ApproverRoles:    []string{"HR_MANAGER"},
		ApprovalLevel:    1,
		AutoApprove:      false,
		EscalationRole:   "HR_DIRECTOR",
	}, verdict.Approval)
}
