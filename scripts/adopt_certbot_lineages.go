// +build ignore

package main

import (
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

// stateDocument mirrors the state file shape certward reads. Keep in
// sync with internal/adapters/statefile.
type stateDocument struct {
	Hostname                    string    `json:"hostname"`
	Email                       string    `json:"email"`
	IsStagingEnvironment        bool      `json:"is_staging_environment"`
	LastRunTimestamp            time.Time `json:"last_run_timestamp"`
	CertificateConfirmedPresent bool      `json:"certificate_confirmed_present"`
}

// lineage is one live certificate directory worth adopting
type lineage struct {
	Hostname string
	NotAfter time.Time
}

// Only lineage directories named like a hostname are adopted. Renamed
// lineages (mail.example.com-0001) need manual cleanup first.
var fqdnPattern = regexp.MustCompile(`(?i)^([a-z0-9]([a-z0-9-]*[a-z0-9])?\.)+[a-z]{2,}$`)

func main() {
	acmeDir := flag.String("acme-dir", "/var/lib/certward/acme/config", "ACME client config directory to scan")
	stateDir := flag.String("state-dir", "/var/lib/certward/state", "certward state directory to write")
	email := flag.String("email", "", "Account email to record for adopted hostnames")
	production := flag.Bool("production", false, "Record adopted hostnames as production instead of staging")
	dryRun := flag.Bool("dry-run", false, "Preview adoption without writing state files")
	flag.Parse()

	if *email == "" {
		fmt.Fprintln(os.Stderr, "Error: -email is required")
		os.Exit(1)
	}

	lineages, err := findLineages(*acmeDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error scanning %s: %v\n", *acmeDir, err)
		os.Exit(1)
	}

	if len(lineages) == 0 {
		fmt.Println("No certificate lineages found to adopt")
		return
	}

	fmt.Printf("Found %d lineage(s) to adopt:\n\n", len(lineages))

	for _, l := range lineages {
		days := int(time.Until(l.NotAfter).Hours() / 24)
		fmt.Printf("  %s\n", l.Hostname)
		fmt.Printf("    -> Expires: %s (%d days)\n", l.NotAfter.Format(time.RFC3339), days)
		fmt.Println()
	}

	if *dryRun {
		fmt.Println("=== DRY RUN - No changes made ===")
		return
	}

	fmt.Println("=== Writing state records ===")
	fmt.Println()

	adopted := 0
	for _, l := range lineages {
		statePath := filepath.Join(*stateDir, l.Hostname+".json")
		if _, err := os.Stat(statePath); err == nil {
			fmt.Printf("Skipping %s: state record already exists\n", l.Hostname)
			continue
		}

		if err := writeState(*stateDir, l, *email, !*production); err != nil {
			fmt.Fprintf(os.Stderr, "Error adopting %s: %v\n", l.Hostname, err)
			continue
		}

		fmt.Printf("✓ Adopted %s\n", l.Hostname)
		adopted++
	}

	fmt.Printf("\n=== Adoption complete: %d/%d lineages adopted ===\n", adopted, len(lineages))
}

func findLineages(acmeDir string) ([]lineage, error) {
	liveDir := filepath.Join(acmeDir, "live")

	entries, err := os.ReadDir(liveDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var lineages []lineage
	for _, entry := range entries {
		// certbot leaves a README file in live/
		if !entry.IsDir() {
			continue
		}

		name := entry.Name()
		if !fqdnPattern.MatchString(name) {
			fmt.Fprintf(os.Stderr, "Skipping %s: not a hostname\n", name)
			continue
		}

		certPath := filepath.Join(liveDir, name, "fullchain.pem")
		notAfter, err := leafNotAfter(certPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Skipping %s: %v\n", name, err)
			continue
		}

		lineages = append(lineages, lineage{Hostname: name, NotAfter: notAfter})
	}

	return lineages, nil
}

func leafNotAfter(path string) (time.Time, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return time.Time{}, err
	}

	block, _ := pem.Decode(data)
	if block == nil || block.Type != "CERTIFICATE" {
		return time.Time{}, fmt.Errorf("no certificate PEM block in %s", path)
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return time.Time{}, err
	}

	return cert.NotAfter, nil
}

func writeState(stateDir string, l lineage, email string, staging bool) error {
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return err
	}

	doc := stateDocument{
		Hostname:                    l.Hostname,
		Email:                       email,
		IsStagingEnvironment:        staging,
		LastRunTimestamp:            time.Now().UTC(),
		CertificateConfirmedPresent: true,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(stateDir, l.Hostname+".json"), data, 0600)
}
