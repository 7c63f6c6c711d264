package domain

import "time"

type TransferState string

const (
	TransferStateActive    TransferState = "ACTIVE"
	TransferStatePaused    TransferState = "PAUSED"
	TransferStateQueued    TransferState = "QUEUED"
	TransferStateRetrying  TransferState = "RETRYING"
	TransferStateCompleted TransferState = "COMPLETED"
	TransferStateFailed    TransferState = "FAILED"
)

// Transfer is one row of the MEGAcmd transfer listing. The listing is
// rebuilt wholesale on every poll, so a Transfer has no identity beyond the
// snapshot it came from; Tag is only stable for as long as MEGAcmd lists it.
type Transfer struct {
	// Tag is the opaque identifier mega-transfers prints for the row. It is
	// kept as a string even though current MEGAcmd emits digits.
	Tag string

	// State is one of the TransferState constants, or whatever unrecognized
	// value the tool printed, passed through verbatim.
	State TransferState

	// ProgressPercent is in [0, 100].
	ProgressPercent float64

	// Path is the path column as printed, possibly middle-truncated with "...".
	Path string

	// Filename is the last path segment (re-derived from the text after the
	// last "..." when the path was truncated), shortened above 60 runes.
	Filename string

	// SizeDisplay is the human-readable total size ("455.34 MB"), or
	// "Unknown" when the listing did not carry one.
	SizeDisplay string
}

// Known reports whether the state is one of the enumerated values rather
// than a passthrough.
func (s TransferState) Known() bool {
	switch s {
	case TransferStateActive, TransferStatePaused, TransferStateQueued,
		TransferStateRetrying, TransferStateCompleted, TransferStateFailed:
		return true
	}
	return false
}

// TransferAction is a control operation targeted at a transfer tag (or "all").
type TransferAction string

const (
	ActionCancel TransferAction = "cancel"
	ActionPause  TransferAction = "pause"
	ActionResume TransferAction = "resume"
)

// Valid reports whether the action is one this system knows how to issue.
func (a TransferAction) Valid() bool {
	switch a {
	case ActionCancel, ActionPause, ActionResume:
		return true
	}
	return false
}

// Submission records one accepted download request for the audit log.
type Submission struct {
	ID          string
	URL         string
	DownloadDir string
	Outcome     SubmissionOutcome
	Message     string
	CreatedAt   time.Time
}

type SubmissionOutcome string

const (
	SubmissionAccepted SubmissionOutcome = "accepted"
	SubmissionFailed   SubmissionOutcome = "failed"
)
