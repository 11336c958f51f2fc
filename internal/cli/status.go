package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/certward/internal/ports/primary"
)

// StatusCmd returns the status command
func StatusCmd() *cobra.Command {
	var hostname string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show recorded state and the live certificate for a hostname",
		Long: `Display what certward knows about a hostname: the state record left
by the last run and a fresh inspection of the certificate on disk.

Status is read-only. It never takes the run lock, so it is safe to call
while a run is in flight.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			application, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer application.Close()

			resp, err := application.Report.Status(ctx, primary.StatusRequest{Hostname: hostname})
			if err != nil {
				return err
			}

			fmt.Printf("Hostname: %s\n", resp.Hostname)
			fmt.Println()

			if resp.HasState {
				fmt.Println("Recorded state:")
				fmt.Printf("  Email:             %s\n", resp.Email)
				fmt.Printf("  Environment:       %s\n", resp.Environment)
				fmt.Printf("  Last run:          %s\n", resp.LastRun)
				fmt.Printf("  Confirmed present: %t\n", resp.ConfirmedPresent)
			} else {
				fmt.Println("Recorded state: none (no run has completed yet)")
			}
			fmt.Println()

			switch {
			case resp.CertCorrupt:
				fmt.Printf("Certificate: %s\n", color.New(color.FgRed).Sprint("present but unparsable"))
			case !resp.CertExists:
				fmt.Println("Certificate: none on disk")
			default:
				fmt.Println("Certificate:")
				fmt.Printf("  Subject:        %s\n", resp.CertSubject)
				fmt.Printf("  Expires:        %s\n", resp.CertNotAfter)
				fmt.Printf("  Days remaining: %d\n", resp.CertDaysRemaining)
				if resp.RenewalDue {
					fmt.Printf("  Renewal:        %s\n", color.New(color.FgYellow).Sprint("due"))
				} else {
					fmt.Println("  Renewal:        not yet due")
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&hostname, "hostname", "", "Hostname to report on")

	return cmd
}
