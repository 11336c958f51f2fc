package secondary

import "context"

// RunJournal defines the secondary port for the run history journal.
// The journal is observability only: it never feeds back into decisions,
// and a failed journal write must not fail the run.
type RunJournal interface {
	// Record appends one finished run.
	Record(ctx context.Context, run *RunRecord) error

	// List retrieves runs matching the given filters, newest first.
	List(ctx context.Context, filters RunFilters) ([]*RunRecord, error)
}

// RunRecord represents one run as stored in the journal.
type RunRecord struct {
	ID          string // run UUID
	Hostname    string
	Environment string // "staging" or "production"
	Action      string // "none", "skip", "request" or "renew"; "none" when the run failed before deciding
	Outcome     string // "success" or "failure"
	Reason      string // decision reason
	FailedStage string // Empty string means null
	ErrorText   string // Empty string means null
	StartedAt   string
	FinishedAt  string
}

// RunFilters contains filter options for querying the journal.
type RunFilters struct {
	Hostname string
	Limit    int
}
