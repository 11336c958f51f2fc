// Package certstore inspects the certificate artifacts the ACME client
// maintains on disk.
package certstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/example/certward/internal/core/certinfo"
	"github.com/example/certward/internal/ports/secondary"
)

// Inspector implements secondary.CertificateInspector over the ACME
// client's config directory layout (live/<hostname>/fullchain.pem).
type Inspector struct {
	configDir string
	now       func() time.Time
}

// NewInspector creates an inspector over the given ACME config directory.
func NewInspector(configDir string) *Inspector {
	return &Inspector{configDir: configDir, now: time.Now}
}

// Inspect summarizes the artifact for a hostname. A missing file yields
// Exists=false; a present but unparsable file yields Corrupt=true, which
// also counts as absent for decision purposes.
func (i *Inspector) Inspect(ctx context.Context, hostname string) (*secondary.CertificateRecord, error) {
	record := &secondary.CertificateRecord{
		FullchainPath:  i.FullchainPath(hostname),
		PrivateKeyPath: i.PrivateKeyPath(hostname),
	}

	data, err := os.ReadFile(record.FullchainPath)
	if os.IsNotExist(err) {
		return record, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate %s: %w", record.FullchainPath, err)
	}

	summary, err := certinfo.Summarize(data, i.now())
	if err != nil {
		record.Corrupt = true
		return record, nil
	}

	record.Exists = true
	record.Subject = summary.Subject
	record.NotAfter = summary.NotAfter
	record.DaysRemaining = summary.DaysRemaining
	return record, nil
}

// FullchainPath returns where the ACME client keeps the live certificate
// chain for a hostname.
func (i *Inspector) FullchainPath(hostname string) string {
	return filepath.Join(i.configDir, "live", hostname, "fullchain.pem")
}

// PrivateKeyPath returns where the ACME client keeps the live private key
// for a hostname.
func (i *Inspector) PrivateKeyPath(hostname string) string {
	return filepath.Join(i.configDir, "live", hostname, "privkey.pem")
}

// Ensure Inspector implements the interface
var _ secondary.CertificateInspector = (*Inspector)(nil)
