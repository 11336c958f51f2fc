// Package primary defines the primary ports (driving adapters) for the
// application. These are the interfaces through which the outside world
// drives the application.
package primary

import "context"

// RunService defines the primary port for the lifecycle run. One call is
// one scheduler invocation: decide, act if needed, record.
type RunService interface {
	// Run executes a full lifecycle evaluation for a hostname.
	Run(ctx context.Context, req RunRequest) (*RunResponse, error)
}

// RunRequest contains the per-invocation parameters.
type RunRequest struct {
	Hostname                 string
	Email                    string
	DNSProvider              string
	CloudflareAPIToken       string
	AWSAccessKeyID           string
	AWSSecretAccessKey       string
	UseProductionEnvironment bool
	ForceRenew               bool
	ImportCertificate        bool
	RestartAfterImport       bool
	AdminPassword            string
}

// RunResponse contains the outcome of a run.
type RunResponse struct {
	RunID  string
	Action string // "skip", "request" or "renew"
	Reason string

	// AlreadyRunning is set when another run held the hostname lock.
	// Nothing was decided or changed; Action and Reason are empty.
	AlreadyRunning bool
}
