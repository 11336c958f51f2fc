// Package statefile persists per-hostname run state as JSON files.
package statefile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/example/certward/internal/ports/secondary"
)

// Store implements secondary.StateStore on a directory of JSON files,
// one file per hostname.
type Store struct {
	dir string
}

// NewStore creates a state store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// stateDocument is the on-disk JSON shape of a state record.
type stateDocument struct {
	Hostname                    string    `json:"hostname"`
	Email                       string    `json:"email"`
	IsStagingEnvironment        bool      `json:"is_staging_environment"`
	LastRunTimestamp            time.Time `json:"last_run_timestamp"`
	CertificateConfirmedPresent bool      `json:"certificate_confirmed_present"`
}

// Read retrieves the record for a hostname.
func (s *Store) Read(ctx context.Context, hostname string) (*secondary.StateRecord, error) {
	path := s.recordPath(hostname)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, secondary.ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file %s: %w", path, err)
	}

	var doc stateDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse state file %s: %w", path, err)
	}

	return &secondary.StateRecord{
		Hostname:                    doc.Hostname,
		Email:                       doc.Email,
		IsStagingEnvironment:        doc.IsStagingEnvironment,
		LastRunTimestamp:            doc.LastRunTimestamp,
		CertificateConfirmedPresent: doc.CertificateConfirmedPresent,
	}, nil
}

// Write atomically replaces the record for record.Hostname. The document is
// written to a temp file in the same directory and renamed into place so a
// crash mid-write can never leave a half-written record.
func (s *Store) Write(ctx context.Context, record *secondary.StateRecord) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	doc := stateDocument{
		Hostname:                    record.Hostname,
		Email:                       record.Email,
		IsStagingEnvironment:        record.IsStagingEnvironment,
		LastRunTimestamp:            record.LastRunTimestamp,
		CertificateConfirmedPresent: record.CertificateConfirmedPresent,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state record: %w", err)
	}

	path := s.recordPath(record.Hostname)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace state file: %w", err)
	}

	return nil
}

func (s *Store) recordPath(hostname string) string {
	return filepath.Join(s.dir, hostname+".json")
}

// Ensure Store implements the interface
var _ secondary.StateStore = (*Store)(nil)
