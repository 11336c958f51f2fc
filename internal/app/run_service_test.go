package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/example/certward/internal/ports/primary"
	"github.com/example/certward/internal/ports/secondary"
)

func baseRequest() primary.RunRequest {
	return primary.RunRequest{
		Hostname:           "mail.example.com",
		Email:              "admin@example.com",
		DNSProvider:        secondary.ProviderCloudflare,
		CloudflareAPIToken: "cf-token",
	}
}

func TestRunService_FirstRun_RequestsAndConfirms(t *testing.T) {
	f := newRunFixture()
	ctx := context.Background()

	resp, err := f.svc.Run(ctx, baseRequest())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if resp.Action != "request" {
		t.Errorf("expected action 'request', got '%s'", resp.Action)
	}
	if resp.Reason != "no certificate on disk" {
		t.Errorf("unexpected reason '%s'", resp.Reason)
	}
	if resp.RunID == "" {
		t.Error("expected a run ID")
	}

	if len(f.issuer.requestCalls) != 1 {
		t.Fatalf("expected 1 request call, got %d", len(f.issuer.requestCalls))
	}
	call := f.issuer.requestCalls[0]
	if !call.Staging {
		t.Error("expected staging issuance by default")
	}
	if call.CredentialsFile != f.creds.scope.path {
		t.Errorf("expected credentials file %s, got %s", f.creds.scope.path, call.CredentialsFile)
	}
	if call.Email != "admin@example.com" {
		t.Errorf("unexpected contact email '%s'", call.Email)
	}

	if len(f.deliverer.calls) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(f.deliverer.calls))
	}

	written := f.state.lastWritten
	if written == nil {
		t.Fatal("expected a state record to be written")
	}
	if !written.CertificateConfirmedPresent {
		t.Error("expected certificate confirmed present after delivery")
	}
	if !written.IsStagingEnvironment {
		t.Error("expected staging environment recorded")
	}
	if !written.LastRunTimestamp.Equal(testNow) {
		t.Errorf("expected last run %v, got %v", testNow, written.LastRunTimestamp)
	}

	if len(f.journal.records) != 1 {
		t.Fatalf("expected 1 journal record, got %d", len(f.journal.records))
	}
	rec := f.journal.records[0]
	if rec.ID != resp.RunID {
		t.Errorf("journal run ID %s does not match response %s", rec.ID, resp.RunID)
	}
	if rec.Action != "request" || rec.Outcome != "success" {
		t.Errorf("expected request/success journal row, got %s/%s", rec.Action, rec.Outcome)
	}
	if rec.Environment != "staging" {
		t.Errorf("expected staging environment in journal, got '%s'", rec.Environment)
	}
}

func TestRunService_HealthyCertificate_SkipsButRewritesState(t *testing.T) {
	f := newRunFixture()
	f.priorState("mail.example.com", true)
	f.healthyCert(83)
	ctx := context.Background()

	resp, err := f.svc.Run(ctx, baseRequest())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if resp.Action != "skip" {
		t.Errorf("expected action 'skip', got '%s'", resp.Action)
	}
	if resp.Reason != "certificate valid for 83 more days" {
		t.Errorf("unexpected reason '%s'", resp.Reason)
	}

	if len(f.issuer.requestCalls) != 0 || len(f.issuer.renewCalls) != 0 {
		t.Error("expected no issuance on skip")
	}
	if len(f.deliverer.calls) != 0 {
		t.Error("expected no delivery on skip")
	}

	// A skip still refreshes the state record
	if f.state.writeCount != 1 {
		t.Fatalf("expected 1 state write, got %d", f.state.writeCount)
	}
	written := f.state.lastWritten
	if !written.LastRunTimestamp.Equal(testNow) {
		t.Errorf("expected refreshed timestamp %v, got %v", testNow, written.LastRunTimestamp)
	}
	if !written.CertificateConfirmedPresent {
		t.Error("expected confirmed present re-recorded on skip")
	}
}

func TestRunService_NoPriorState_HealthyCertificate_SkipsAndAdopts(t *testing.T) {
	f := newRunFixture()
	f.healthyCert(83)
	ctx := context.Background()

	resp, err := f.svc.Run(ctx, baseRequest())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if resp.Action != "skip" {
		t.Errorf("expected action 'skip', got '%s'", resp.Action)
	}
	if f.state.writeCount != 1 {
		t.Errorf("expected the healthy certificate to be adopted into state, got %d writes", f.state.writeCount)
	}
}

func TestRunService_EnvironmentSwitch_Requests(t *testing.T) {
	f := newRunFixture()
	f.priorState("mail.example.com", true)
	f.healthyCert(200)
	ctx := context.Background()

	req := baseRequest()
	req.UseProductionEnvironment = true

	resp, err := f.svc.Run(ctx, req)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if resp.Action != "request" {
		t.Errorf("expected environment switch to request, got '%s'", resp.Action)
	}
	if resp.Reason != "environment changed from staging to production" {
		t.Errorf("unexpected reason '%s'", resp.Reason)
	}
	if len(f.issuer.requestCalls) != 1 {
		t.Fatalf("expected 1 request call, got %d", len(f.issuer.requestCalls))
	}
	if f.issuer.requestCalls[0].Staging {
		t.Error("expected production issuance after switch")
	}
	if f.state.lastWritten.IsStagingEnvironment {
		t.Error("expected production recorded in state")
	}
}

func TestRunService_HostnameDrift_Requests(t *testing.T) {
	f := newRunFixture()
	f.priorState("mail.example.com", true)
	f.state.records["mail.example.com"].Hostname = "old.example.com"
	f.healthyCert(200)
	ctx := context.Background()

	resp, err := f.svc.Run(ctx, baseRequest())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if resp.Action != "request" {
		t.Errorf("expected hostname drift to request, got '%s'", resp.Action)
	}
	if resp.Reason != "managed hostname changed from old.example.com to mail.example.com" {
		t.Errorf("unexpected reason '%s'", resp.Reason)
	}
}

func TestRunService_ExpiryThreshold(t *testing.T) {
	tests := []struct {
		name          string
		daysRemaining int
		wantAction    string
	}{
		{"renews strictly below threshold", 29, "renew"},
		{"skips exactly at threshold", 30, "skip"},
		{"renews on expiry day", 0, "renew"},
		{"renews past expiry", -3, "renew"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRunFixture()
			f.priorState("mail.example.com", true)
			f.healthyCert(tt.daysRemaining)

			resp, err := f.svc.Run(context.Background(), baseRequest())
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			if resp.Action != tt.wantAction {
				t.Errorf("at %d days expected '%s', got '%s'", tt.daysRemaining, tt.wantAction, resp.Action)
			}

			if tt.wantAction == "renew" {
				if len(f.issuer.renewCalls) != 1 {
					t.Fatalf("expected 1 renew call, got %d", len(f.issuer.renewCalls))
				}
				if f.issuer.renewCalls[0].ForceRenewal {
					t.Error("expiry renewal must not force")
				}
			}
		})
	}
}

func TestRunService_ForceRenew_WithCertificate_Renews(t *testing.T) {
	f := newRunFixture()
	f.priorState("mail.example.com", true)
	f.healthyCert(200)
	ctx := context.Background()

	req := baseRequest()
	req.ForceRenew = true

	resp, err := f.svc.Run(ctx, req)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if resp.Action != "renew" {
		t.Errorf("expected forced renew, got '%s'", resp.Action)
	}
	if len(f.issuer.renewCalls) != 1 {
		t.Fatalf("expected 1 renew call, got %d", len(f.issuer.renewCalls))
	}
	if !f.issuer.renewCalls[0].ForceRenewal {
		t.Error("expected forced renewal passed to the client")
	}
}

func TestRunService_ForceRenew_WithoutCertificate_Requests(t *testing.T) {
	f := newRunFixture()
	f.priorState("mail.example.com", true)
	ctx := context.Background()

	req := baseRequest()
	req.ForceRenew = true

	resp, err := f.svc.Run(ctx, req)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if resp.Action != "request" {
		t.Errorf("expected request when forcing without a certificate, got '%s'", resp.Action)
	}
	if len(f.issuer.renewCalls) != 0 {
		t.Error("expected no renew call")
	}
}

func TestRunService_CorruptCertificate_Requests(t *testing.T) {
	f := newRunFixture()
	f.inspector.record.Corrupt = true
	ctx := context.Background()

	resp, err := f.svc.Run(ctx, baseRequest())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if resp.Action != "request" {
		t.Errorf("expected corrupt artifact to request, got '%s'", resp.Action)
	}
}

func TestRunService_LockBusy_ExitsWithoutActing(t *testing.T) {
	f := newRunFixture()
	f.locks.tryErr = secondary.ErrLockBusy
	ctx := context.Background()

	resp, err := f.svc.Run(ctx, baseRequest())
	if err != nil {
		t.Fatalf("a busy lock must not be an error, got: %v", err)
	}

	if !resp.AlreadyRunning {
		t.Error("expected AlreadyRunning")
	}
	if f.creds.acquireCount != 0 {
		t.Error("expected no credential acquisition while another run is active")
	}
	if f.state.writeCount != 0 {
		t.Error("expected no state write while another run is active")
	}
	if len(f.journal.records) != 0 {
		t.Error("expected no journal record while another run is active")
	}
}

func TestRunService_CredentialScopeReleased_OnSuccess(t *testing.T) {
	f := newRunFixture()
	f.priorState("mail.example.com", true)
	f.healthyCert(83)

	if _, err := f.svc.Run(context.Background(), baseRequest()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if f.creds.scope.released != 1 {
		t.Errorf("expected scope released once, got %d", f.creds.scope.released)
	}
	if f.locks.lock.released != 1 {
		t.Errorf("expected lock released once, got %d", f.locks.lock.released)
	}
}

func TestRunService_IssuanceFailure_ReleasesScopeAndSkipsStateWrite(t *testing.T) {
	f := newRunFixture()
	f.issuer.requestErr = fmt.Errorf("exit status 1")
	ctx := context.Background()

	_, err := f.svc.Run(ctx, baseRequest())
	if err == nil {
		t.Fatal("expected issuance failure")
	}

	if got := FailedStage(err); got != StageIssuance {
		t.Errorf("expected stage %s, got %s", StageIssuance, got)
	}
	if len(f.deliverer.calls) != 0 {
		t.Error("expected no delivery after failed issuance")
	}
	if f.state.writeCount != 0 {
		t.Error("a failed run must not write state")
	}
	if f.creds.scope.released != 1 {
		t.Errorf("expected scope released once, got %d", f.creds.scope.released)
	}
	if f.locks.lock.released != 1 {
		t.Errorf("expected lock released once, got %d", f.locks.lock.released)
	}

	if len(f.journal.records) != 1 {
		t.Fatalf("expected 1 journal record, got %d", len(f.journal.records))
	}
	rec := f.journal.records[0]
	if rec.Outcome != "failure" || rec.FailedStage != StageIssuance {
		t.Errorf("expected failure/issuance journal row, got %s/%s", rec.Outcome, rec.FailedStage)
	}
	if rec.Action != "request" {
		t.Errorf("expected the decided action in the journal, got '%s'", rec.Action)
	}
}

func TestRunService_DeliveryFailure_SkipsStateWrite(t *testing.T) {
	f := newRunFixture()
	f.deliverer.err = fmt.Errorf("zmcertctl import failed")
	ctx := context.Background()

	req := baseRequest()
	req.ImportCertificate = true
	req.AdminPassword = "hunter2"

	_, err := f.svc.Run(ctx, req)
	if err == nil {
		t.Fatal("expected delivery failure")
	}

	if got := FailedStage(err); got != StageDelivery {
		t.Errorf("expected stage %s, got %s", StageDelivery, got)
	}
	if len(f.issuer.requestCalls) != 1 {
		t.Error("expected issuance to have run before delivery failed")
	}
	if f.state.writeCount != 0 {
		t.Error("a failed delivery must not be recorded as a confirmed certificate")
	}
	if f.creds.scope.released != 1 {
		t.Errorf("expected scope released once, got %d", f.creds.scope.released)
	}
}

func TestRunService_StateWriteFailure_DoesNotUndoDelivery(t *testing.T) {
	f := newRunFixture()
	f.state.writeErr = fmt.Errorf("disk full")
	ctx := context.Background()

	_, err := f.svc.Run(ctx, baseRequest())
	if err == nil {
		t.Fatal("expected state write failure to be reported")
	}

	if got := FailedStage(err); got != StageStateWrite {
		t.Errorf("expected stage %s, got %s", StageStateWrite, got)
	}
	// Issuance and delivery already happened and stay delivered
	if len(f.issuer.requestCalls) != 1 {
		t.Error("expected issuance to have run")
	}
	if len(f.deliverer.calls) != 1 {
		t.Error("expected delivery to have run")
	}

	if len(f.journal.records) != 1 {
		t.Fatalf("expected 1 journal record, got %d", len(f.journal.records))
	}
	if f.journal.records[0].FailedStage != StageStateWrite {
		t.Errorf("expected state-write failure journaled, got '%s'", f.journal.records[0].FailedStage)
	}
}

func TestRunService_StateReadFailure_AbortsRun(t *testing.T) {
	f := newRunFixture()
	f.state.readErr = fmt.Errorf("permission denied")
	ctx := context.Background()

	_, err := f.svc.Run(ctx, baseRequest())
	if err == nil {
		t.Fatal("expected state read failure")
	}

	if got := FailedStage(err); got != StageStateRead {
		t.Errorf("expected stage %s, got %s", StageStateRead, got)
	}
	if f.creds.scope.released != 1 {
		t.Error("expected scope released after state read failure")
	}
	if len(f.journal.records) != 1 {
		t.Fatalf("expected 1 journal record, got %d", len(f.journal.records))
	}
	if f.journal.records[0].Action != actionNone {
		t.Errorf("expected undecided action in journal, got '%s'", f.journal.records[0].Action)
	}
}

func TestRunService_CredentialFailure_AbortsBeforeStateRead(t *testing.T) {
	f := newRunFixture()
	f.creds.acquireErr = fmt.Errorf("cloudflare provider requires an API token")
	ctx := context.Background()

	_, err := f.svc.Run(ctx, baseRequest())
	if err == nil {
		t.Fatal("expected credential failure")
	}

	if got := FailedStage(err); got != StageCredentials {
		t.Errorf("expected stage %s, got %s", StageCredentials, got)
	}
	if len(f.issuer.requestCalls) != 0 {
		t.Error("expected no issuance without credentials")
	}
	if f.state.writeCount != 0 {
		t.Error("expected no state write without credentials")
	}
}

func TestRunService_JournalFailure_DoesNotFailRun(t *testing.T) {
	f := newRunFixture()
	f.priorState("mail.example.com", true)
	f.healthyCert(83)
	f.journal.recordErr = fmt.Errorf("database is locked")

	resp, err := f.svc.Run(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("a journal failure must not fail the run: %v", err)
	}
	if resp.Action != "skip" {
		t.Errorf("expected action 'skip', got '%s'", resp.Action)
	}
}

func TestRunService_ValidationFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*primary.RunRequest)
	}{
		{"missing hostname", func(r *primary.RunRequest) { r.Hostname = "" }},
		{"bare hostname", func(r *primary.RunRequest) { r.Hostname = "localhost" }},
		{"hostname with underscore", func(r *primary.RunRequest) { r.Hostname = "mail_1.example.com" }},
		{"missing email", func(r *primary.RunRequest) { r.Email = "" }},
		{"malformed email", func(r *primary.RunRequest) { r.Email = "not-an-address" }},
		{"missing provider", func(r *primary.RunRequest) { r.DNSProvider = "" }},
		{"unknown provider", func(r *primary.RunRequest) { r.DNSProvider = "gandi" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRunFixture()
			req := baseRequest()
			tt.mutate(&req)

			_, err := f.svc.Run(context.Background(), req)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if got := FailedStage(err); got != StageValidation {
				t.Errorf("expected stage %s, got %s", StageValidation, got)
			}
			if f.locks.tryCount != 0 {
				t.Error("validation failures must abort before the lock")
			}
			if len(f.journal.records) != 0 {
				t.Error("validation failures must not reach the journal")
			}
		})
	}
}

func TestRunService_PrerequisiteFailures(t *testing.T) {
	t.Run("issuance client missing", func(t *testing.T) {
		f := newRunFixture()
		f.svc.lookPath = func(file string) (string, error) {
			return "", errors.New("executable file not found in $PATH")
		}

		_, err := f.svc.Run(context.Background(), baseRequest())
		if err == nil {
			t.Fatal("expected prerequisite error")
		}
		if got := FailedStage(err); got != StagePrerequisites {
			t.Errorf("expected stage %s, got %s", StagePrerequisites, got)
		}
		if f.locks.tryCount != 0 {
			t.Error("prerequisite failures must abort before the lock")
		}
	})

	t.Run("import without admin tool", func(t *testing.T) {
		f := newRunFixture()
		f.svc.tools.AdminTool = ""

		req := baseRequest()
		req.ImportCertificate = true

		_, err := f.svc.Run(context.Background(), req)
		if err == nil {
			t.Fatal("expected prerequisite error")
		}
		if got := FailedStage(err); got != StagePrerequisites {
			t.Errorf("expected stage %s, got %s", StagePrerequisites, got)
		}
	})
}

func TestRunService_DeliveryCarriesActivationSwitches(t *testing.T) {
	f := newRunFixture()
	ctx := context.Background()

	req := baseRequest()
	req.ImportCertificate = true
	req.RestartAfterImport = true
	req.AdminPassword = "hunter2"

	if _, err := f.svc.Run(ctx, req); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(f.deliverer.calls) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(f.deliverer.calls))
	}
	call := f.deliverer.calls[0]
	if !call.Import || !call.Restart {
		t.Error("expected import and restart switches passed through")
	}
	if call.AdminPassword != "hunter2" {
		t.Error("expected admin password passed to delivery")
	}
	if call.FullchainPath != f.inspector.record.FullchainPath {
		t.Errorf("unexpected fullchain path '%s'", call.FullchainPath)
	}
}

func TestRunService_Route53EnvironmentReachesIssuance(t *testing.T) {
	f := newRunFixture()
	f.creds.scope.path = "/tmp/secrets/scope-2/aws-credentials"
	f.creds.scope.env = []string{"AWS_SHARED_CREDENTIALS_FILE=/tmp/secrets/scope-2/aws-credentials"}
	ctx := context.Background()

	req := baseRequest()
	req.DNSProvider = secondary.ProviderRoute53
	req.CloudflareAPIToken = ""
	req.AWSAccessKeyID = "AKIA123"
	req.AWSSecretAccessKey = "secret"

	if _, err := f.svc.Run(ctx, req); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if f.creds.lastSpec.Provider != secondary.ProviderRoute53 {
		t.Errorf("expected route53 spec, got '%s'", f.creds.lastSpec.Provider)
	}
	if len(f.issuer.requestCalls) != 1 {
		t.Fatalf("expected 1 request call, got %d", len(f.issuer.requestCalls))
	}
	call := f.issuer.requestCalls[0]
	if len(call.ExtraEnv) != 1 || call.ExtraEnv[0] != "AWS_SHARED_CREDENTIALS_FILE=/tmp/secrets/scope-2/aws-credentials" {
		t.Errorf("expected shared-credentials env passed through, got %v", call.ExtraEnv)
	}
}

func TestRunService_RunsAreDeterministicAcrossInvocations(t *testing.T) {
	// Two identical skips a day apart only differ in their timestamps.
	f := newRunFixture()
	f.priorState("mail.example.com", true)
	f.healthyCert(83)
	ctx := context.Background()

	first, err := f.svc.Run(ctx, baseRequest())
	if err != nil {
		t.Fatalf("first Run failed: %v", err)
	}

	later := testNow.Add(24 * time.Hour)
	f.svc.now = func() time.Time { return later }
	f.healthyCert(82)

	second, err := f.svc.Run(ctx, baseRequest())
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}

	if first.Action != "skip" || second.Action != "skip" {
		t.Errorf("expected both runs to skip, got '%s' and '%s'", first.Action, second.Action)
	}
	if f.state.writeCount != 2 {
		t.Errorf("expected each skip to rewrite state, got %d writes", f.state.writeCount)
	}
	if !f.state.lastWritten.LastRunTimestamp.Equal(later) {
		t.Errorf("expected second run timestamp %v, got %v", later, f.state.lastWritten.LastRunTimestamp)
	}
}
