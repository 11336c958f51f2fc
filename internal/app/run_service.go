// Package app contains the application services that orchestrate the
// certificate lifecycle: the run controller and the reporting surface.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"os/exec"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/example/certward/internal/core/decision"
	"github.com/example/certward/internal/ports/primary"
	"github.com/example/certward/internal/ports/secondary"
)

// actionNone is the journal action for runs that failed before a decision.
const actionNone = "none"

var hostnamePattern = regexp.MustCompile(`(?i)^([a-z0-9]([a-z0-9-]*[a-z0-9])?\.)+[a-z]{2,}$`)

// ToolPaths names the external executables a run may need. Presence is
// verified up front so a half-configured host fails before any mutation.
type ToolPaths struct {
	Certbot   string
	Systemctl string
	AdminTool string // empty when no import tool is configured
}

// RunServiceImpl implements the RunService interface. It owns the run
// state machine: credentials and the hostname lock bracket every path,
// issuance or delivery failures skip the state write, and a skip still
// refreshes the state record.
type RunServiceImpl struct {
	state       secondary.StateStore
	inspector   secondary.CertificateInspector
	credentials secondary.CredentialScoper
	issuer      secondary.IssuanceClient
	deliverer   secondary.DeliveryExecutor
	journal     secondary.RunJournal
	locks       secondary.RunLock
	tools       ToolPaths
	logger      *slog.Logger

	now      func() time.Time
	lookPath func(file string) (string, error)
}

// NewRunService creates a new RunService with injected dependencies.
func NewRunService(
	state secondary.StateStore,
	inspector secondary.CertificateInspector,
	credentials secondary.CredentialScoper,
	issuer secondary.IssuanceClient,
	deliverer secondary.DeliveryExecutor,
	journal secondary.RunJournal,
	locks secondary.RunLock,
	tools ToolPaths,
	logger *slog.Logger,
) *RunServiceImpl {
	return &RunServiceImpl{
		state:       state,
		inspector:   inspector,
		credentials: credentials,
		issuer:      issuer,
		deliverer:   deliverer,
		journal:     journal,
		locks:       locks,
		tools:       tools,
		logger:      logger,
		now:         time.Now,
		lookPath:    exec.LookPath,
	}
}

// Run executes one lifecycle evaluation for a hostname.
func (s *RunServiceImpl) Run(ctx context.Context, req primary.RunRequest) (*primary.RunResponse, error) {
	if err := validateRunRequest(req); err != nil {
		return nil, &StageError{Stage: StageValidation, Err: err}
	}
	if err := s.checkPrerequisites(req); err != nil {
		return nil, &StageError{Stage: StagePrerequisites, Err: err}
	}

	lock, err := s.locks.TryAcquire(req.Hostname)
	if err != nil {
		if errors.Is(err, secondary.ErrLockBusy) {
			s.logger.Info("another run holds the hostname lock, exiting without acting", "hostname", req.Hostname)
			return &primary.RunResponse{AlreadyRunning: true}, nil
		}
		return nil, &StageError{Stage: StagePrerequisites, Err: err}
	}
	defer func() {
		if err := lock.Release(); err != nil {
			s.logger.Warn("failed to release run lock", "hostname", req.Hostname, "error", err)
		}
	}()

	runID := uuid.NewString()
	log := s.logger.With("hostname", req.Hostname, "run_id", runID)
	started := s.now().UTC()

	verdict, decided, runErr := s.execute(ctx, log, req)

	record := &secondary.RunRecord{
		ID:          runID,
		Hostname:    req.Hostname,
		Environment: decision.EnvironmentName(!req.UseProductionEnvironment),
		Action:      actionNone,
		Outcome:     "success",
		StartedAt:   started.Format(time.RFC3339),
		FinishedAt:  s.now().UTC().Format(time.RFC3339),
	}
	if decided {
		record.Action = string(verdict.Action)
		record.Reason = verdict.Reason
	}
	if runErr != nil {
		record.Outcome = "failure"
		record.FailedStage = FailedStage(runErr)
		record.ErrorText = runErr.Error()
	}
	// The journal is best effort: a full disk must not turn a delivered
	// certificate into a failed run.
	if err := s.journal.Record(ctx, record); err != nil {
		log.Warn("failed to record run in journal", "error", err)
	}

	if runErr != nil {
		return nil, runErr
	}
	return &primary.RunResponse{
		RunID:  runID,
		Action: string(verdict.Action),
		Reason: verdict.Reason,
	}, nil
}

// execute walks the stages from credential acquisition to the state write.
// The bool reports whether a decision was reached before any failure.
func (s *RunServiceImpl) execute(ctx context.Context, log *slog.Logger, req primary.RunRequest) (decision.Verdict, bool, error) {
	scope, err := s.credentials.Acquire(ctx, secondary.CredentialSpec{
		Provider:           req.DNSProvider,
		CloudflareAPIToken: req.CloudflareAPIToken,
		AWSAccessKeyID:     req.AWSAccessKeyID,
		AWSSecretAccessKey: req.AWSSecretAccessKey,
	})
	if err != nil {
		return decision.Verdict{}, false, &StageError{Stage: StageCredentials, Err: err}
	}
	defer func() {
		if err := scope.Release(); err != nil {
			log.Warn("failed to release credential scope", "error", err)
		}
	}()
	log.Debug("credential scope ready", "provider", req.DNSProvider)

	prior := decision.PriorState{}
	stateRec, err := s.state.Read(ctx, req.Hostname)
	switch {
	case err == nil:
		prior = decision.PriorState{
			Exists:               true,
			Hostname:             stateRec.Hostname,
			IsStagingEnvironment: stateRec.IsStagingEnvironment,
		}
		log.Debug("prior state loaded", "last_run", stateRec.LastRunTimestamp.Format(time.RFC3339))
	case errors.Is(err, secondary.ErrStateNotFound):
		log.Debug("no prior state recorded")
	default:
		return decision.Verdict{}, false, &StageError{Stage: StageStateRead, Err: err}
	}

	cert, err := s.inspector.Inspect(ctx, req.Hostname)
	if err != nil {
		return decision.Verdict{}, false, &StageError{Stage: StageInspection, Err: err}
	}
	if cert.Corrupt {
		log.Warn("certificate artifact present but unparsable, treating as absent", "path", cert.FullchainPath)
	}
	log.Debug("certificate inspected", "exists", cert.Exists, "days_remaining", cert.DaysRemaining)

	verdict := decision.Decide(
		decision.Params{
			Hostname:                 req.Hostname,
			UseProductionEnvironment: req.UseProductionEnvironment,
			ForceRenew:               req.ForceRenew,
		},
		prior,
		decision.Certificate{Exists: cert.Exists, DaysRemaining: cert.DaysRemaining},
	)
	log.Info("decision made", "action", verdict.Action, "reason", verdict.Reason)

	switch verdict.Action {
	case decision.ActionRequest, decision.ActionRenew:
		issuance := secondary.IssuanceRequest{
			Hostname:        req.Hostname,
			Email:           req.Email,
			Staging:         !req.UseProductionEnvironment,
			ForceRenewal:    req.ForceRenew,
			Provider:        req.DNSProvider,
			CredentialsFile: scope.FilePath(),
			ExtraEnv:        scope.ClientEnv(),
		}
		if verdict.Action == decision.ActionRequest {
			err = s.issuer.Request(ctx, issuance)
		} else {
			err = s.issuer.Renew(ctx, issuance)
		}
		if err != nil {
			return verdict, true, &StageError{Stage: StageIssuance, Err: err}
		}
		log.Info("issuance complete", "action", verdict.Action)

		delivery := secondary.DeliveryRequest{
			Hostname:       req.Hostname,
			FullchainPath:  cert.FullchainPath,
			PrivateKeyPath: cert.PrivateKeyPath,
			Import:         req.ImportCertificate,
			Restart:        req.RestartAfterImport,
			AdminPassword:  req.AdminPassword,
		}
		if err := s.deliverer.Deliver(ctx, delivery); err != nil {
			return verdict, true, &StageError{Stage: StageDelivery, Err: err}
		}
		log.Info("delivery complete", "imported", req.ImportCertificate,
			"restarted", req.ImportCertificate && req.RestartAfterImport)
	}

	confirmed := cert.Exists || verdict.Action != decision.ActionSkip

	state := &secondary.StateRecord{
		Hostname:                    req.Hostname,
		Email:                       req.Email,
		IsStagingEnvironment:        !req.UseProductionEnvironment,
		LastRunTimestamp:            s.now().UTC(),
		CertificateConfirmedPresent: confirmed,
	}
	if err := s.state.Write(ctx, state); err != nil {
		return verdict, true, &StageError{Stage: StageStateWrite, Err: err}
	}
	log.Debug("state record written", "confirmed_present", confirmed)

	return verdict, true, nil
}

// checkPrerequisites verifies the run's external tools before anything is
// locked, written or acquired.
func (s *RunServiceImpl) checkPrerequisites(req primary.RunRequest) error {
	if _, err := s.lookPath(s.tools.Certbot); err != nil {
		return fmt.Errorf("issuance client %s not found: %w", s.tools.Certbot, err)
	}

	if req.ImportCertificate {
		if s.tools.AdminTool == "" {
			return fmt.Errorf("certificate import requested but no admin tool is configured")
		}
		if _, err := s.lookPath(s.tools.AdminTool); err != nil {
			return fmt.Errorf("admin tool %s not found: %w", s.tools.AdminTool, err)
		}
		if req.RestartAfterImport {
			if _, err := s.lookPath(s.tools.Systemctl); err != nil {
				return fmt.Errorf("service control tool %s not found: %w", s.tools.Systemctl, err)
			}
		}
	}

	return nil
}

func validateRunRequest(req primary.RunRequest) error {
	if req.Hostname == "" {
		return fmt.Errorf("hostname is required")
	}
	if !hostnamePattern.MatchString(req.Hostname) {
		return fmt.Errorf("hostname %q is not a fully qualified domain name", req.Hostname)
	}

	if req.Email == "" {
		return fmt.Errorf("contact email is required")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return fmt.Errorf("invalid contact email %q: %w", req.Email, err)
	}

	switch req.DNSProvider {
	case secondary.ProviderCloudflare, secondary.ProviderRoute53:
	case "":
		return fmt.Errorf("DNS provider is required")
	default:
		return fmt.Errorf("unsupported DNS provider %q (supported: %s, %s)",
			req.DNSProvider, secondary.ProviderCloudflare, secondary.ProviderRoute53)
	}

	return nil
}

var _ primary.RunService = (*RunServiceImpl)(nil)
