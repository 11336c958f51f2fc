package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/certward/internal/ports/primary"
)

// RunCmd returns the run command
func RunCmd() *cobra.Command {
	var (
		hostname      string
		email         string
		dnsProvider   string
		cfToken       string
		awsKeyID      string
		awsSecret     string
		useProduction bool
		forceRenew    bool
		importCert    bool
		restartAfter  bool
		adminPassword string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evaluate one hostname's certificate and act if needed",
		Long: `Run one lifecycle evaluation for a hostname: decide whether the
certificate needs nothing, a fresh issuance, or a renewal, carry the
decision out, and journal the result.

The run takes a per-hostname lock. If another run already holds it the
command prints a notice and exits 0 so schedulers never see overlapping
invocations as failures.

Secrets are read from the environment when the flags are omitted:
CERTWARD_CLOUDFLARE_API_TOKEN, CERTWARD_AWS_ACCESS_KEY_ID,
CERTWARD_AWS_SECRET_ACCESS_KEY and CERTWARD_ADMIN_PASSWORD. Prefer the
environment over flags so secrets stay out of the process list.

Examples:
  certward run --hostname mail.example.com --email admin@example.com --dns-provider cloudflare
  certward run --hostname mail.example.com --email admin@example.com --dns-provider route53 \
    --use-production-environment --import-certificate --restart-after-import`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			application, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer application.Close()

			resp, err := application.Run.Run(ctx, primary.RunRequest{
				Hostname:                 hostname,
				Email:                    email,
				DNSProvider:              dnsProvider,
				CloudflareAPIToken:       cfToken,
				AWSAccessKeyID:           awsKeyID,
				AWSSecretAccessKey:       awsSecret,
				UseProductionEnvironment: useProduction,
				ForceRenew:               forceRenew,
				ImportCertificate:        importCert,
				RestartAfterImport:       restartAfter,
				AdminPassword:            adminPassword,
			})
			if err != nil {
				return err
			}

			if resp.AlreadyRunning {
				fmt.Printf("Another certward run is in flight for %s; nothing to do.\n", hostname)
				return nil
			}

			check := color.New(color.FgGreen).Sprint("✓")
			fmt.Printf("%s %s %s: %s\n", check, hostname, resp.Action, resp.Reason)
			return nil
		},
	}

	cmd.Flags().StringVar(&hostname, "hostname", "", "Fully qualified hostname the certificate covers")
	cmd.Flags().StringVar(&email, "email", "", "Account email for registration and expiry notices")
	cmd.Flags().StringVar(&dnsProvider, "dns-provider", "", "DNS provider hosting the zone: cloudflare or route53")
	cmd.Flags().StringVar(&cfToken, "cloudflare-api-token", os.Getenv("CERTWARD_CLOUDFLARE_API_TOKEN"), "Cloudflare API token with DNS edit rights")
	cmd.Flags().StringVar(&awsKeyID, "aws-access-key-id", os.Getenv("CERTWARD_AWS_ACCESS_KEY_ID"), "AWS access key ID for Route 53")
	cmd.Flags().StringVar(&awsSecret, "aws-secret-access-key", os.Getenv("CERTWARD_AWS_SECRET_ACCESS_KEY"), "AWS secret access key for Route 53")
	cmd.Flags().BoolVar(&useProduction, "use-production-environment", false, "Issue against the production endpoint instead of staging")
	cmd.Flags().BoolVar(&forceRenew, "force-renew", false, "Renew even when the certificate is not near expiry")
	cmd.Flags().BoolVar(&importCert, "import-certificate", false, "Import the delivered certificate into the application server")
	cmd.Flags().BoolVar(&restartAfter, "restart-after-import", false, "Restart the application service after a successful import")
	cmd.Flags().StringVar(&adminPassword, "admin-password", os.Getenv("CERTWARD_ADMIN_PASSWORD"), "Admin password for the import tool")

	return cmd
}
