package app

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/example/certward/internal/ports/secondary"
)

// Ensure the mocks implement their interfaces
var (
	_ secondary.StateStore           = (*mockStateStore)(nil)
	_ secondary.CertificateInspector = (*mockInspector)(nil)
	_ secondary.CredentialScoper     = (*mockCredentialScoper)(nil)
	_ secondary.IssuanceClient       = (*mockIssuer)(nil)
	_ secondary.DeliveryExecutor     = (*mockDeliverer)(nil)
	_ secondary.RunJournal           = (*mockJournal)(nil)
	_ secondary.RunLock              = (*mockRunLock)(nil)
)

var testNow = time.Date(2026, 3, 1, 4, 0, 0, 0, time.UTC)

// mockStateStore implements secondary.StateStore for testing.
type mockStateStore struct {
	records map[string]*secondary.StateRecord
	readErr error

	writeErr    error
	writeCount  int
	lastWritten *secondary.StateRecord
}

func newMockStateStore() *mockStateStore {
	return &mockStateStore{records: make(map[string]*secondary.StateRecord)}
}

func (m *mockStateStore) Read(ctx context.Context, hostname string) (*secondary.StateRecord, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	rec, ok := m.records[hostname]
	if !ok {
		return nil, secondary.ErrStateNotFound
	}
	return rec, nil
}

func (m *mockStateStore) Write(ctx context.Context, record *secondary.StateRecord) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.writeCount++
	m.lastWritten = record
	m.records[record.Hostname] = record
	return nil
}

// mockInspector implements secondary.CertificateInspector for testing.
type mockInspector struct {
	record *secondary.CertificateRecord
	err    error
}

func newMockInspector() *mockInspector {
	return &mockInspector{
		record: &secondary.CertificateRecord{
			FullchainPath:  "/tmp/acme/live/mail.example.com/fullchain.pem",
			PrivateKeyPath: "/tmp/acme/live/mail.example.com/privkey.pem",
		},
	}
}

func (m *mockInspector) Inspect(ctx context.Context, hostname string) (*secondary.CertificateRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.record, nil
}

// mockScope implements secondary.CredentialScope for testing.
type mockScope struct {
	path     string
	env      []string
	released int
}

func (m *mockScope) FilePath() string { return m.path }

func (m *mockScope) ClientEnv() []string { return m.env }

func (m *mockScope) Release() error {
	m.released++
	return nil
}

// mockCredentialScoper implements secondary.CredentialScoper for testing.
type mockCredentialScoper struct {
	scope        *mockScope
	acquireErr   error
	acquireCount int
	lastSpec     secondary.CredentialSpec
}

func newMockCredentialScoper() *mockCredentialScoper {
	return &mockCredentialScoper{
		scope: &mockScope{path: "/tmp/secrets/scope-1/cloudflare.ini"},
	}
}

func (m *mockCredentialScoper) Acquire(ctx context.Context, spec secondary.CredentialSpec) (secondary.CredentialScope, error) {
	if m.acquireErr != nil {
		return nil, m.acquireErr
	}
	m.acquireCount++
	m.lastSpec = spec
	return m.scope, nil
}

// mockIssuer implements secondary.IssuanceClient for testing.
type mockIssuer struct {
	requestCalls []secondary.IssuanceRequest
	renewCalls   []secondary.IssuanceRequest
	requestErr   error
	renewErr     error
}

func newMockIssuer() *mockIssuer {
	return &mockIssuer{}
}

func (m *mockIssuer) Request(ctx context.Context, req secondary.IssuanceRequest) error {
	if m.requestErr != nil {
		return m.requestErr
	}
	m.requestCalls = append(m.requestCalls, req)
	return nil
}

func (m *mockIssuer) Renew(ctx context.Context, req secondary.IssuanceRequest) error {
	if m.renewErr != nil {
		return m.renewErr
	}
	m.renewCalls = append(m.renewCalls, req)
	return nil
}

// mockDeliverer implements secondary.DeliveryExecutor for testing.
type mockDeliverer struct {
	calls []secondary.DeliveryRequest
	err   error
}

func newMockDeliverer() *mockDeliverer {
	return &mockDeliverer{}
}

func (m *mockDeliverer) Deliver(ctx context.Context, req secondary.DeliveryRequest) error {
	if m.err != nil {
		return m.err
	}
	m.calls = append(m.calls, req)
	return nil
}

// mockJournal implements secondary.RunJournal for testing.
type mockJournal struct {
	records     []*secondary.RunRecord
	recordErr   error
	listResult  []*secondary.RunRecord
	listErr     error
	lastFilters secondary.RunFilters
}

func newMockJournal() *mockJournal {
	return &mockJournal{}
}

func (m *mockJournal) Record(ctx context.Context, run *secondary.RunRecord) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	m.records = append(m.records, run)
	return nil
}

func (m *mockJournal) List(ctx context.Context, filters secondary.RunFilters) ([]*secondary.RunRecord, error) {
	m.lastFilters = filters
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.listResult, nil
}

// mockHeldLock implements secondary.HeldLock for testing.
type mockHeldLock struct {
	released int
}

func (m *mockHeldLock) Release() error {
	m.released++
	return nil
}

// mockRunLock implements secondary.RunLock for testing.
type mockRunLock struct {
	lock     *mockHeldLock
	tryErr   error
	tryCount int
}

func newMockRunLock() *mockRunLock {
	return &mockRunLock{lock: &mockHeldLock{}}
}

func (m *mockRunLock) TryAcquire(hostname string) (secondary.HeldLock, error) {
	if m.tryErr != nil {
		return nil, m.tryErr
	}
	m.tryCount++
	return m.lock, nil
}

// runFixture wires a RunService onto fresh mocks with a pinned clock and
// every external tool present.
type runFixture struct {
	state     *mockStateStore
	inspector *mockInspector
	creds     *mockCredentialScoper
	issuer    *mockIssuer
	deliverer *mockDeliverer
	journal   *mockJournal
	locks     *mockRunLock
	svc       *RunServiceImpl
}

func newRunFixture() *runFixture {
	f := &runFixture{
		state:     newMockStateStore(),
		inspector: newMockInspector(),
		creds:     newMockCredentialScoper(),
		issuer:    newMockIssuer(),
		deliverer: newMockDeliverer(),
		journal:   newMockJournal(),
		locks:     newMockRunLock(),
	}
	f.svc = NewRunService(
		f.state, f.inspector, f.creds, f.issuer, f.deliverer, f.journal, f.locks,
		ToolPaths{Certbot: "certbot", Systemctl: "systemctl", AdminTool: "zmcertctl"},
		discardLogger(),
	)
	f.svc.now = func() time.Time { return testNow }
	f.svc.lookPath = func(file string) (string, error) { return "/usr/bin/" + file, nil }
	return f
}

// healthyCert configures the inspector with a parseable certificate.
func (f *runFixture) healthyCert(daysRemaining int) {
	f.inspector.record.Exists = true
	f.inspector.record.Corrupt = false
	f.inspector.record.Subject = "CN=mail.example.com"
	f.inspector.record.NotAfter = testNow.AddDate(0, 0, daysRemaining)
	f.inspector.record.DaysRemaining = daysRemaining
}

// priorState seeds a state record as a previous run would have written it.
func (f *runFixture) priorState(hostname string, staging bool) {
	f.state.records[hostname] = &secondary.StateRecord{
		Hostname:                    hostname,
		Email:                       "admin@example.com",
		IsStagingEnvironment:        staging,
		LastRunTimestamp:            testNow.AddDate(0, 0, -1),
		CertificateConfirmedPresent: true,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
