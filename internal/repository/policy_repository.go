package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pesio-ai/be-hr-governance/internal/errors"
)

// PolicyRepository handles CRUD for hr_policies.
type PolicyRepository struct {
	db *pgxpool.Pool
}

// NewPolicyRepository creates a new PolicyRepository.
func NewPolicyRepository(db *pgxpool.Pool) *PolicyRepository {
	return &PolicyRepository{db: db}
}

// Create inserts a new policy record.
func (r *PolicyRepository) Create(ctx context.Context, p *PolicyRecord) error {
	query := `
		INSERT INTO hr_policies
		    (domain, applies_to, roles, severity, policy_text, source)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		p.Domain,
		p.AppliesTo,
		p.Roles,
		p.Severity,
		p.PolicyText,
		p.Source,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return errors.Unavailable("policy store", err)
	}
	return nil
}

// GetByID retrieves a policy by primary key.
func (r *PolicyRepository) GetByID(ctx context.Context, id string) (*PolicyRecord, error) {
	query := `
		SELECT id, domain, applies_to, roles, severity, policy_text, source,
		       created_at, updated_at
		FROM hr_policies
		WHERE id = $1
	`

	p, err := scanPolicy(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("policy", id)
	}
	return p, err
}

// List returns all policies for a domain ordered by creation time.
func (r *PolicyRepository) List(ctx context.Context, domain string) ([]*PolicyRecord, error) {
	query := `
		SELECT id, domain, applies_to, roles, severity, policy_text, source,
		       created_at, updated_at
		FROM hr_policies
		WHERE domain = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query, domain)
	if err != nil {
		return nil, errors.Unavailable("policy store", err)
	}
	defer rows.Close()

	return scanPolicies(rows)
}

// ListMatching returns every policy whose scope matches the domain, workflow
// and role. Store-return order (oldest first) is the order the evaluator
// reports policy texts in. An empty result is a valid "no constraint" answer.
func (r *PolicyRepository) ListMatching(ctx context.Context, domain, appliesTo, role string) ([]*PolicyRecord, error) {
	query := `
		SELECT id, domain, applies_to, roles, severity, policy_text, source,
		       created_at, updated_at
		FROM hr_policies
		WHERE domain = $1 AND applies_to = $2 AND $3 = ANY(roles)
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query, domain, appliesTo, role)
	if err != nil {
		return nil, errors.Unavailable("policy store", err)
	}
	defer rows.Close()

	return scanPolicies(rows)
}

// Delete removes a policy record.
func (r *PolicyRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM hr_policies WHERE id = $1`, id)
	if err != nil {
		return errors.Unavailable("policy store", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("policy", id)
	}
	return nil
}

// ── scan helpers ──────────────────────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPolicy(sc rowScanner) (*PolicyRecord, error) {
	p := &PolicyRecord{}
	err := sc.Scan(
		&p.ID,
		&p.Domain,
		&p.AppliesTo,
		&p.Roles,
		&p.Severity,
		&p.PolicyText,
		&p.Source,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan policy record")
	}
	return p, nil
}

func scanPolicies(rows pgx.Rows) ([]*PolicyRecord, error) {
	var policies []*PolicyRecord
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Unavailable("policy store", err)
	}
	return policies, nil
}
