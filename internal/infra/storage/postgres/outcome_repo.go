package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/vietddude/docketbench/internal/core/domain"
)

// OutcomeRepo persists run outcomes.
type OutcomeRepo struct {
	db *DB
}

// NewOutcomeRepo creates an outcome repository.
func NewOutcomeRepo(db *DB) *OutcomeRepo {
	return &OutcomeRepo{db: db}
}

type outcomeRow struct {
	RunID          string    `db:"run_id"`
	DealID         string    `db:"deal_id"`
	CompanyName    string    `db:"company_name"`
	Status         string    `db:"status"`
	APICalls       int       `db:"api_calls"`
	LLMCalls       int       `db:"llm_calls"`
	DownloadedFile *string   `db:"downloaded_file"`
	CreatedAt      time.Time `db:"created_at"`
}

func (r outcomeRow) toDomain() domain.Outcome {
	out := domain.Outcome{
		RunID:       r.RunID,
		DealID:      r.DealID,
		CompanyName: r.CompanyName,
		Status:      domain.Status(r.Status),
		APICalls:    r.APICalls,
		LLMCalls:    r.LLMCalls,
	}
	if r.DownloadedFile != nil {
		out.DownloadedFile = *r.DownloadedFile
	}
	return out
}

// Save upserts one outcome. A rerun of the same run/deal pair overwrites
// the previous row, keeping one authoritative outcome per deal per run.
func (r *OutcomeRepo) Save(ctx context.Context, out domain.Outcome) error {
	var file *string
	if out.DownloadedFile != "" {
		file = &out.DownloadedFile
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO outcomes (run_id, deal_id, company_name, status, api_calls, llm_calls, downloaded_file)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (run_id, deal_id) DO UPDATE SET
			status          = EXCLUDED.status,
			api_calls       = EXCLUDED.api_calls,
			llm_calls       = EXCLUDED.llm_calls,
			downloaded_file = EXCLUDED.downloaded_file
	`, out.RunID, out.DealID, out.CompanyName, string(out.Status), out.APICalls, out.LLMCalls, file)
	if err != nil {
		return fmt.Errorf("failed to save outcome %s/%s: %w", out.RunID, out.DealID, err)
	}
	return nil
}

// SaveAll archives a full run in one transaction.
func (r *OutcomeRepo) SaveAll(ctx context.Context, outcomes []domain.Outcome) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, out := range outcomes {
		var file *string
		if out.DownloadedFile != "" {
			file = &out.DownloadedFile
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO outcomes (run_id, deal_id, company_name, status, api_calls, llm_calls, downloaded_file)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (run_id, deal_id) DO UPDATE SET
				status          = EXCLUDED.status,
				api_calls       = EXCLUDED.api_calls,
				llm_calls       = EXCLUDED.llm_calls,
				downloaded_file = EXCLUDED.downloaded_file
		`, out.RunID, out.DealID, out.CompanyName, string(out.Status), out.APICalls, out.LLMCalls, file)
		if err != nil {
			return fmt.Errorf("failed to save outcome %s/%s: %w", out.RunID, out.DealID, err)
		}
	}
	return tx.Commit()
}

// DeleteRunsOlderThan prunes archived runs older than cutoff.
func (r *OutcomeRepo) DeleteRunsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM outcomes WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune outcomes: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}

// ListByRun returns a run's outcomes in deal order.
func (r *OutcomeRepo) ListByRun(ctx context.Context, runID string) ([]domain.Outcome, error) {
	var rows []outcomeRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT run_id, deal_id, company_name, status, api_calls, llm_calls, downloaded_file, created_at
		FROM outcomes
		WHERE run_id = $1
		ORDER BY deal_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list outcomes for run %s: %w", runID, err)
	}

	outcomes := make([]domain.Outcome, 0, len(rows))
	for _, row := range rows {
		outcomes = append(outcomes, row.toDomain())
	}
	return outcomes, nil
}
