package cli

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/certward/internal/config"
	"github.com/example/certward/internal/db"
)

// CheckResult represents the outcome of a single check
type CheckResult struct {
	Name    string
	Status  string // "✓", "⚠", "✗"
	Details string // Only shown if Status != "✓"
}

// DoctorCmd returns the doctor command for environment validation
func DoctorCmd() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Validate the certward environment",
		Long: `Environment health check for certward.

Validates:
- Site configuration parses
- Data directories
- External tools (certbot, systemctl, the import tool)
- Run journal database

Doctor is read-only: it never creates directories or the journal.

Examples:
  certward doctor          # Run full health check
  certward doctor --quiet  # Exit code only (0=healthy, 1=issues)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")

			results := []CheckResult{}

			cfg, err := config.Load(configPath)
			if err != nil {
				results = append(results, CheckResult{Name: "Config", Status: "✗", Details: "  " + err.Error()})
			} else {
				results = append(results, CheckResult{Name: "Config", Status: "✓"})
				results = append(results, checkDirectories(cfg))
				results = append(results, checkCertbot(cfg))
				results = append(results, checkSystemctl(cfg))
				results = append(results, checkAdminTool(cfg))
				results = append(results, checkJournal(cfg))
			}

			hasErrors := false
			for _, r := range results {
				if r.Status == "✗" {
					hasErrors = true
					break
				}
			}

			if !quiet {
				// Print compact table
				fmt.Println()
				fmt.Println("Check          Status")
				fmt.Println("─────────────────────")
				for _, r := range results {
					fmt.Printf("%-14s %s\n", r.Name, r.Status)
				}
				fmt.Println()

				// Print details for non-passing checks
				hasDetails := false
				for _, r := range results {
					if r.Status != "✓" && r.Details != "" {
						if !hasDetails {
							fmt.Println("Details:")
							hasDetails = true
						}
						fmt.Printf("\n%s:\n%s\n", r.Name, r.Details)
					}
				}

				if hasErrors {
					fmt.Println("\n⚠ Issues found. Fix them before scheduling runs.")
				} else {
					fmt.Println("All checks passed.")
				}
			}

			if hasErrors {
				return fmt.Errorf("environment validation failed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode - exit code only")

	return cmd
}

// checkDirectories reports certward-owned directories that do not exist
// yet. Missing directories are a warning, not an error: the first run
// creates them.
func checkDirectories(cfg *config.Config) CheckResult {
	dirs := []string{
		cfg.StateDir,
		cfg.LockDir,
		cfg.SecretsDir,
		filepath.Dir(cfg.JournalPath),
		cfg.ACMEConfigDir,
		cfg.ACMEWorkDir,
		cfg.ACMELogsDir,
	}

	missing := []string{}
	for _, dir := range dirs {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			missing = append(missing, dir)
		}
	}

	if len(missing) > 0 {
		return CheckResult{
			Name:    "Directories",
			Status:  "⚠",
			Details: "  Missing (created on first run):\n    " + strings.Join(missing, "\n    "),
		}
	}

	return CheckResult{Name: "Directories", Status: "✓"}
}

// checkCertbot validates the ACME client binary is reachable
func checkCertbot(cfg *config.Config) CheckResult {
	if _, err := exec.LookPath(cfg.CertbotPath); err != nil {
		return CheckResult{
			Name:    "Certbot",
			Status:  "✗",
			Details: fmt.Sprintf("  %q not found\n  Install certbot or set certbot_path in the config", cfg.CertbotPath),
		}
	}
	return CheckResult{Name: "Certbot", Status: "✓"}
}

// checkSystemctl validates systemctl for --restart-after-import
func checkSystemctl(cfg *config.Config) CheckResult {
	if _, err := exec.LookPath(cfg.SystemctlPath); err != nil {
		return CheckResult{
			Name:    "Systemctl",
			Status:  "⚠",
			Details: fmt.Sprintf("  %q not found; --restart-after-import is unavailable", cfg.SystemctlPath),
		}
	}
	return CheckResult{Name: "Systemctl", Status: "✓"}
}

// checkAdminTool validates the import tool for --import-certificate
func checkAdminTool(cfg *config.Config) CheckResult {
	if cfg.AdminToolPath == "" {
		return CheckResult{
			Name:    "Admin Tool",
			Status:  "⚠",
			Details: "  admin_tool_path is not set; --import-certificate is unavailable",
		}
	}
	if _, err := exec.LookPath(cfg.AdminToolPath); err != nil {
		return CheckResult{
			Name:    "Admin Tool",
			Status:  "✗",
			Details: fmt.Sprintf("  %q not found\n  Fix admin_tool_path in the config", cfg.AdminToolPath),
		}
	}
	return CheckResult{Name: "Admin Tool", Status: "✓"}
}

// checkJournal opens the existing journal database to prove it is
// usable. A journal that does not exist yet is fine.
func checkJournal(cfg *config.Config) CheckResult {
	if _, err := os.Stat(cfg.JournalPath); os.IsNotExist(err) {
		return CheckResult{
			Name:    "Journal",
			Status:  "⚠",
			Details: "  Not created yet; the first run creates it",
		}
	}

	conn, err := db.Open(cfg.JournalPath)
	if err != nil {
		return CheckResult{
			Name:    "Journal",
			Status:  "✗",
			Details: "  " + err.Error(),
		}
	}
	conn.Close()

	return CheckResult{Name: "Journal", Status: "✓"}
}
