package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/certward/internal/core/decision"
	"github.com/example/certward/internal/ports/primary"
	"github.com/example/certward/internal/ports/secondary"
)

// ReportServiceImpl implements the ReportService interface. It reads the
// state record, the certificate on disk and the run journal; it never
// mutates any of them and never takes the run lock.
type ReportServiceImpl struct {
	state     secondary.StateStore
	inspector secondary.CertificateInspector
	journal   secondary.RunJournal
}

// NewReportService creates a new ReportService with injected dependencies.
func NewReportService(
	state secondary.StateStore,
	inspector secondary.CertificateInspector,
	journal secondary.RunJournal,
) *ReportServiceImpl {
	return &ReportServiceImpl{
		state:     state,
		inspector: inspector,
		journal:   journal,
	}
}

// Status reports the persisted state and the live certificate for a hostname.
func (s *ReportServiceImpl) Status(ctx context.Context, req primary.StatusRequest) (*primary.StatusResponse, error) {
	if req.Hostname == "" {
		return nil, fmt.Errorf("hostname is required")
	}

	resp := &primary.StatusResponse{Hostname: req.Hostname}

	stateRec, err := s.state.Read(ctx, req.Hostname)
	switch {
	case err == nil:
		resp.HasState = true
		resp.Email = stateRec.Email
		resp.Environment = decision.EnvironmentName(stateRec.IsStagingEnvironment)
		resp.LastRun = stateRec.LastRunTimestamp.Format(time.RFC3339)
		resp.ConfirmedPresent = stateRec.CertificateConfirmedPresent
	case errors.Is(err, secondary.ErrStateNotFound):
		// No run has recorded state yet; the certificate section still reports.
	default:
		return nil, fmt.Errorf("failed to read state: %w", err)
	}

	cert, err := s.inspector.Inspect(ctx, req.Hostname)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect certificate: %w", err)
	}
	resp.CertExists = cert.Exists
	resp.CertCorrupt = cert.Corrupt
	if cert.Exists {
		resp.CertSubject = cert.Subject
		resp.CertNotAfter = cert.NotAfter.Format(time.RFC3339)
		resp.CertDaysRemaining = cert.DaysRemaining
		resp.RenewalDue = cert.DaysRemaining < decision.RenewalThresholdDays
	}

	return resp, nil
}

// History lists journaled runs, newest first.
func (s *ReportServiceImpl) History(ctx context.Context, req primary.HistoryRequest) ([]*primary.HistoryEntry, error) {
	runs, err := s.journal.List(ctx, secondary.RunFilters{
		Hostname: req.Hostname,
		Limit:    req.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	entries := make([]*primary.HistoryEntry, 0, len(runs))
	for _, run := range runs {
		entries = append(entries, &primary.HistoryEntry{
			RunID:       run.ID,
			Hostname:    run.Hostname,
			Environment: run.Environment,
			Action:      run.Action,
			Outcome:     run.Outcome,
			Reason:      run.Reason,
			FailedStage: run.FailedStage,
			ErrorText:   run.ErrorText,
			StartedAt:   run.StartedAt,
			FinishedAt:  run.FinishedAt,
		})
	}

	return entries, nil
}

var _ primary.ReportService = (*ReportServiceImpl)(nil)
