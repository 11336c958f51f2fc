package primary

import "context"

// ReportService defines the primary port for read-only reporting.
// Reporting never takes the run lock and never mutates anything.
type ReportService interface {
	// Status reports the persisted state and the live certificate for a
	// hostname.
	Status(ctx context.Context, req StatusRequest) (*StatusResponse, error)

	// History lists journaled runs, newest first.
	History(ctx context.Context, req HistoryRequest) ([]*HistoryEntry, error)
}

// StatusRequest contains parameters for a status report.
type StatusRequest struct {
	Hostname string
}

// StatusResponse combines the state record with a fresh inspection of the
// on-disk certificate.
type StatusResponse struct {
	Hostname string

	HasState         bool
	Email            string
	Environment      string // "staging" or "production"
	LastRun          string
	ConfirmedPresent bool

	CertExists        bool
	CertCorrupt       bool
	CertSubject       string
	CertNotAfter      string
	CertDaysRemaining int
	RenewalDue        bool
}

// HistoryRequest contains parameters for a history listing.
type HistoryRequest struct {
	Hostname string
	Limit    int
}

// HistoryEntry represents one journaled run at the port boundary.
type HistoryEntry struct {
	RunID       string
	Hostname    string
	Environment string
	Action      string
	Outcome     string
	Reason      string
	FailedStage string
	ErrorText   string
	StartedAt   string
	FinishedAt  string
}
