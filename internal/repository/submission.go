package repository

import (
	"context"

	"mega-get-server/internal/domain"
)

// SubmissionRepository persists the audit log of accepted download requests.
// Live transfer state is never stored here; it is rebuilt from MEGAcmd on
// every poll.
type SubmissionRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, sub *domain.Submission) error
	SetOutcome(ctx context.Context, id string, outcome domain.SubmissionOutcome, message string) error
	List(ctx context.Context, limit int) ([]domain.Submission, error)
}
