package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pesio-ai/be-hr-governance/internal/errors"
)

// DecisionAuditRepository appends and reads immutable governance decision
// records. Append is the only mutation exposed.
type DecisionAuditRepository struct {
	db *pgxpool.Pool
}

// NewDecisionAuditRepository creates a new DecisionAuditRepository.
func NewDecisionAuditRepository(db *pgxpool.Pool) *DecisionAuditRepository {
	return &DecisionAuditRepository{db: db}
}

// Append inserts one decision record.
func (r *DecisionAuditRepository) Append(ctx context.Context, entry *DecisionAuditEntry) error {
	var metadataJSON []byte
	if entry.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(entry.Metadata)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal decision metadata")
		}
	}

	query := `
		INSERT INTO hr_governance_decision_log
		    (workflow, current_state, next_state, role,
		     verdict, authority, reasons, metadata)
		VALUES ($1, $2, $3, $4,
		        $5, $6, $7, $8)
		RETURNING id, decided_at
	`

	err := r.db.QueryRow(ctx, query,
		entry.Workflow,
		entry.CurrentState,
		entry.NextState,
		entry.Role,
		entry.Verdict,
		entry.Authority,
		entry.Reasons,
		metadataJSON,
	).Scan(&entry.ID, &entry.DecidedAt)
	if err != nil {
		return errors.Unavailable("decision audit store", err)
	}
	return nil
}

// ListByWorkflow returns the most recent decisions for a workflow, newest first.
func (r *DecisionAuditRepository) ListByWorkflow(ctx context.Context, workflow string, limit int) ([]*DecisionAuditEntry, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT id, workflow, current_state, next_state, role,
		       verdict, authority, reasons, metadata, decided_at
		FROM hr_governance_decision_log
		WHERE workflow = $1
		ORDER BY decided_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, workflow, limit)
	if err != nil {
		return nil, errors.Unavailable("decision audit store", err)
	}
	defer rows.Close()

	var entries []*DecisionAuditEntry
	for rows.Next() {
		entry, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Unavailable("decision audit store", err)
	}
	return entries, nil
}

// ── scan helpers ──────────────────────────────────────────────────────────────

func scanDecision(sc rowScanner) (*DecisionAuditEntry, error) {
	entry := &DecisionAuditEntry{}
	var metadataJSON []byte

	err := sc.Scan(
		&entry.ID,
		&entry.Workflow,
		&entry.CurrentState,
		&entry.NextState,
		&entry.Role,
		&entry.Verdict,
		&entry.Authority,
		&entry.Reasons,
		&metadataJSON,
		&entry.DecidedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan decision entry")
	}

	if metadataJSON != nil {
		if err := json.Unmarshal(metadataJSON, &entry.Metadata); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to unmarshal decision metadata")
		}
	}

	return entry, nil
}
