package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"mega-get-server/internal/domain"
	"mega-get-server/internal/history"
	"mega-get-server/internal/megacmd"
	"mega-get-server/internal/repository"
)

// ErrEmptyURL is returned for blank submissions.
var ErrEmptyURL = errors.New("url is required")

// Messenger receives user-visible log lines. The poller implements it.
type Messenger interface {
	AppendMessage(line string)
}

// DownloadService accepts URL submissions: it records them in the history
// file and the submission log, then hands them to MEGAcmd in the background.
// Submission never blocks on the external tool.
type DownloadService interface {
	Submit(ctx context.Context, url string) (*domain.Submission, error)
	History() []string
	ClearHistory() error
	Submissions(ctx context.Context, limit int) ([]domain.Submission, error)
}

type downloadService struct {
	client      *megacmd.Client
	history     *history.Store
	submissions repository.SubmissionRepository
	messages    Messenger
	logger      *logrus.Logger
}

func NewDownloadService(
	client *megacmd.Client,
	historyStore *history.Store,
	submissions repository.SubmissionRepository,
	messages Messenger,
	logger *logrus.Logger,
) DownloadService {
	if logger == nil {
		logger = logrus.New()
	}
	return &downloadService{
		client:      client,
		history:     historyStore,
		submissions: submissions,
		messages:    messages,
		logger:      logger,
	}
}

func (s *downloadService) Submit(ctx context.Context, url string) (*domain.Submission, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, ErrEmptyURL
	}

	if err := s.history.Add(url); err != nil {
		// History is a convenience; a write failure must not block the
		// download itself.
		s.logger.Warnf("persist url history: %v", err)
	}

	sub := &domain.Submission{
		ID:          uuid.NewString(),
		URL:         url,
		DownloadDir: s.client.DownloadDir(),
		Outcome:     domain.SubmissionAccepted,
	}
	if err := s.submissions.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("record submission: %w", err)
	}

	s.messages.AppendMessage(fmt.Sprintf("Starting download to %s...", s.client.DownloadDir()))
	go s.runDownload(sub.ID, url)

	return sub, nil
}

// runDownload invokes mega-get and reports the outcome. Runs detached from
// the submitting request; failures degrade to message-log lines.
func (s *downloadService) runDownload(submissionID, url string) {
	ctx := context.Background()

	res, err := s.client.StartDownload(ctx, url)
	if err != nil {
		s.messages.AppendMessage(fmt.Sprintf("✗ Error: %v", err))
		s.setOutcome(ctx, submissionID, domain.SubmissionFailed, err.Error())
		return
	}

	if res.Ok() {
		s.messages.AppendMessage("✓ Download started successfully")
		s.setOutcome(ctx, submissionID, domain.SubmissionAccepted, "download started")
		return
	}

	s.messages.AppendMessage("✗ Error: Unable to parse MEGA URL")
	detail := strings.TrimSpace(res.Stderr)
	if detail != "" {
		s.messages.AppendMessage(fmt.Sprintf("Details: %s", detail))
	}
	s.setOutcome(ctx, submissionID, domain.SubmissionFailed, detail)
}

func (s *downloadService) setOutcome(ctx context.Context, id string, outcome domain.SubmissionOutcome, msg string) {
	if err := s.submissions.SetOutcome(ctx, id, outcome, msg); err != nil {
		s.logger.Warnf("update submission %s: %v", id, err)
	}
}

func (s *downloadService) History() []string {
	return s.history.URLs()
}

func (s *downloadService) ClearHistory() error {
	return s.history.Clear()
}

func (s *downloadService) Submissions(ctx context.Context, limit int) ([]domain.Submission, error) {
	return s.submissions.List(ctx, limit)
}
