// Package secondary defines the secondary ports (driven adapters) for the
// application. These are the interfaces through which the application drives
// external systems: the state file, the certificate artifacts on disk, the
// ACME client, the target application server and the run lock.
package secondary

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrStateNotFound indicates no state record exists for the hostname yet.
	ErrStateNotFound = errors.New("no state record for hostname")

	// ErrLockBusy indicates another run currently holds the hostname lock.
	ErrLockBusy = errors.New("another run holds the lock")
)

// Supported DNS providers for the challenge plugin.
const (
	ProviderCloudflare = "cloudflare"
	ProviderRoute53    = "route53"
)

// StateStore defines the secondary port for per-hostname run state.
// Exactly one record exists per hostname; Write replaces it as a whole.
type StateStore interface {
	// Read retrieves the record for a hostname. Returns ErrStateNotFound
	// when no run has recorded state yet.
	Read(ctx context.Context, hostname string) (*StateRecord, error)

	// Write atomically replaces the record for record.Hostname.
	Write(ctx context.Context, record *StateRecord) error
}

// StateRecord is the cross-run state for one hostname. It is written in
// full at the end of every successful run, including skips.
type StateRecord struct {
	Hostname                    string
	Email                       string
	IsStagingEnvironment        bool
	LastRunTimestamp            time.Time
	CertificateConfirmedPresent bool
}

// CertificateInspector defines the secondary port for examining the
// certificate artifact currently on disk.
type CertificateInspector interface {
	// Inspect summarizes the artifact for a hostname. A missing artifact
	// is not an error: Exists is false. Errors are reserved for I/O
	// failures reading a file that is present.
	Inspect(ctx context.Context, hostname string) (*CertificateRecord, error)
}

// CertificateRecord describes the on-disk artifact. It is derived fresh on
// every run and never persisted. Corrupt means a file was present but could
// not be parsed; such artifacts count as absent for decisions.
type CertificateRecord struct {
	Exists         bool
	Corrupt        bool
	Subject        string
	NotAfter       time.Time
	DaysRemaining  int
	FullchainPath  string
	PrivateKeyPath string
}

// CredentialScoper defines the secondary port for materializing DNS
// provider credentials ahead of issuance.
type CredentialScoper interface {
	// Acquire writes the provider credentials to a private file and
	// returns the live scope. Callers must Release the scope on every
	// exit path.
	Acquire(ctx context.Context, spec CredentialSpec) (CredentialScope, error)
}

// CredentialSpec carries the provider selection and its secrets for one run.
type CredentialSpec struct {
	Provider           string // ProviderCloudflare or ProviderRoute53
	CloudflareAPIToken string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
}

// CredentialScope is a live credentials file. Release removes it and is
// safe to call more than once.
type CredentialScope interface {
	// FilePath is the credentials file to hand to the ACME client.
	FilePath() string

	// ClientEnv returns extra environment entries the ACME client child
	// process needs (used by providers configured via environment).
	ClientEnv() []string

	// Release removes the credentials from disk. Idempotent.
	Release() error
}

// IssuanceClient defines the secondary port for the external ACME client.
// The client is a black box: certward only sees its exit status and output.
type IssuanceClient interface {
	// Request obtains a brand new certificate for the hostname.
	Request(ctx context.Context, req IssuanceRequest) error

	// Renew renews the existing certificate lineage for the hostname.
	Renew(ctx context.Context, req IssuanceRequest) error
}

// IssuanceRequest carries everything the external client invocation needs.
type IssuanceRequest struct {
	Hostname        string
	Email           string
	Staging         bool
	ForceRenewal    bool // only meaningful for Renew
	Provider        string
	CredentialsFile string
	ExtraEnv        []string
}

// DeliveryExecutor defines the secondary port for installing issued
// artifacts into the target application server.
type DeliveryExecutor interface {
	// Deliver transfers ownership of the artifacts, optionally imports
	// them into the target server and optionally restarts it. Restart
	// never happens unless the import succeeded.
	Deliver(ctx context.Context, req DeliveryRequest) error
}

// DeliveryRequest carries the artifact paths and the activation switches.
type DeliveryRequest struct {
	Hostname       string
	FullchainPath  string
	PrivateKeyPath string
	Import         bool
	Restart        bool
	AdminPassword  string // passed to the admin tool via environment, never argv
}

// RunLock defines the secondary port for the per-hostname single-flight
// guarantee.
type RunLock interface {
	// TryAcquire takes the hostname lock without blocking. Returns
	// ErrLockBusy when another process holds it.
	TryAcquire(hostname string) (HeldLock, error)
}

// HeldLock is an acquired hostname lock. Release is safe to call more
// than once.
type HeldLock interface {
	Release() error
}
