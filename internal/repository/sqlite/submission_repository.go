package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mega-get-server/internal/domain"
	"mega-get-server/internal/repository"
)

const createSubmissionsTable = `
CREATE TABLE IF NOT EXISTS submissions (
	id TEXT PRIMARY KEY,
	url TEXT NOT NULL,
	download_dir TEXT NOT NULL DEFAULT '',
	outcome TEXT NOT NULL,
	message TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_submissions_created_at ON submissions(created_at);
`

type SubmissionRepository struct {
	db *sql.DB
}

func NewSubmissionRepository(db *sql.DB) repository.SubmissionRepository {
	return &SubmissionRepository{db: db}
}

func (r *SubmissionRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createSubmissionsTable); err != nil {
		return fmt.Errorf("create submissions table: %w", err)
	}
	return nil
}

func (r *SubmissionRepository) Create(ctx context.Context, sub *domain.Submission) error {
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO submissions (id, url, download_dir, outcome, message, created_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		sub.ID,
		sub.URL,
		sub.DownloadDir,
		string(sub.Outcome),
		sub.Message,
		sub.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (r *SubmissionRepository) SetOutcome(ctx context.Context, id string, outcome domain.SubmissionOutcome, message string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE submissions
SET outcome=?, message=?
WHERE id=?`,
		string(outcome),
		message,
		id,
	)
	if err != nil {
		return fmt.Errorf("update submission outcome: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("submission rows affected: %w", err)
	}
	if aff == 0 {
		return fmt.Errorf("submission not found")
	}
	return nil
}

func (r *SubmissionRepository) List(ctx context.Context, limit int) ([]domain.Submission, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT id, url, download_dir, outcome, message, created_at
FROM submissions
ORDER BY created_at DESC, id DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	var subs []domain.Submission
	for rows.Next() {
		var (
			sub       domain.Submission
			outcome   string
			createdAt time.Time
		)
		if err := rows.Scan(&sub.ID, &sub.URL, &sub.DownloadDir, &outcome, &sub.Message, &createdAt); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		sub.Outcome = domain.SubmissionOutcome(outcome)
		sub.CreatedAt = createdAt.Local()
		subs = append(subs, sub)
	}

	return subs, rows.Err()
}

// Get is a convenience used by tests; not part of the repository interface.
func (r *SubmissionRepository) Get(ctx context.Context, id string) (*domain.Submission, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, url, download_dir, outcome, message, created_at
FROM submissions
WHERE id=?`, id)

	var (
		sub       domain.Submission
		outcome   string
		createdAt time.Time
	)
	if err := row.Scan(&sub.ID, &sub.URL, &sub.DownloadDir, &outcome, &sub.Message, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("submission not found")
		}
		return nil, fmt.Errorf("scan submission: %w", err)
	}
	sub.Outcome = domain.SubmissionOutcome(outcome)
	sub.CreatedAt = createdAt.Local()
	return &sub, nil
}
