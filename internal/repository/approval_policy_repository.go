package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pesio-ai/be-hr-governance/internal/errors"
)

// ApprovalPolicyRepository handles CRUD for hr_approval_policies.
type ApprovalPolicyRepository struct {
	db *pgxpool.Pool
}

// NewApprovalPolicyRepository creates a new ApprovalPolicyRepository.
func NewApprovalPolicyRepository(db *pgxpool.Pool) *ApprovalPolicyRepository {
	return &ApprovalPolicyRepository{db: db}
}

// Create inserts a new approval policy record.
func (r *ApprovalPolicyRepository) Create(ctx context.Context, p *ApprovalPolicyRecord) error {
	query := `
		INSERT INTO hr_approval_policies
		    (domain, workflow, action, requested_by_role,
		     approver_roles, approval_level, auto_approve, escalation_role,
		     source)
		VALUES ($1, $2, $3, $4,
		        $5, $6, $7, $8,
		        $9)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		p.Domain,
		p.Workflow,
		p.Action,
		p.RequestedByRole,
		p.ApproverRoles,
		p.ApprovalLevel,
		p.AutoApprove,
		p.EscalationRole,
		p.Source,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return errors.Unavailable("approval policy store", err)
	}
	return nil
}

// GetByID retrieves an approval policy by primary key.
func (r *ApprovalPolicyRepository) GetByID(ctx context.Context, id string) (*ApprovalPolicyRecord, error) {
	query := approvalPolicySelect + ` WHERE id = $1`

	p, err := scanApprovalPolicy(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("approval_policy", id)
	}
	return p, err
}

// List returns all approval policies for a domain ordered by creation time.
func (r *ApprovalPolicyRepository) List(ctx context.Context, domain string) ([]*ApprovalPolicyRecord, error) {
	query := approvalPolicySelect + ` WHERE domain = $1 ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, query, domain)
	if err != nil {
		return nil, errors.Unavailable("approval policy store", err)
	}
	defer rows.Close()

	var policies []*ApprovalPolicyRecord
	for rows.Next() {
		p, err := scanApprovalPolicy(rows)
		if err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Unavailable("approval policy store", err)
	}
	return policies, nil
}

// FindMatching returns the approval policy scoped to the exact
// (domain, workflow, action, role) tuple, or nil (no error) when none exists.
// Should the store hold several records for the same scope, the oldest wins;
// duplicates are a data defect surfaced via List, not resolved here.
func (r *ApprovalPolicyRepository) FindMatching(ctx context.Context, domain, workflow, action, role string) (*ApprovalPolicyRecord, error) {
	query := approvalPolicySelect + `
		WHERE domain = $1 AND workflow = $2 AND action = $3 AND requested_by_role = $4
		ORDER BY created_at ASC
		LIMIT 1
	`

	rows, err := r.db.Query(ctx, query, domain, workflow, action, role)
	if err != nil {
		return nil, errors.Unavailable("approval policy store", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, errors.Unavailable("approval policy store", err)
		}
		return nil, nil
	}
	return scanApprovalPolicy(rows)
}

// Delete removes an approval policy record.
func (r *ApprovalPolicyRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM hr_approval_policies WHERE id = $1`, id)
	if err != nil {
		return errors.Unavailable("approval policy store", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("approval_policy", id)
	}
	return nil
}

// ── scan helpers ──────────────────────────────────────────────────────────────

const approvalPolicySelect = `
	SELECT id, domain, workflow, action, requested_by_role,
	       approver_roles, approval_level, auto_approve, escalation_role,
	       source, created_at, updated_at
	FROM hr_approval_policies`

func scanApprovalPolicy(sc rowScanner) (*ApprovalPolicyRecord, error) {
	p := &ApprovalPolicyRecord{}
	err := sc.Scan(
		&p.ID,
		&p.Domain,
		&p.Workflow,
		&p.Action,
		&p.RequestedByRole,
		&p.ApproverRoles,
		&p.ApprovalLevel,
		&p.AutoApprove,
		&p.EscalationRole,
		&p.Source,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan approval policy record")
	}
	return p, nil
}
