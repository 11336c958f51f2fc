package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/certward/internal/ports/primary"
)

// HistoryCmd returns the history command
func HistoryCmd() *cobra.Command {
	var (
		hostname string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List journaled runs, newest first",
		Long: `List the run journal: every completed invocation with its decision,
outcome and, for failures, the stage that failed.

Examples:
  certward history
  certward history --hostname mail.example.com --limit 10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			application, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer application.Close()

			entries, err := application.Report.History(ctx, primary.HistoryRequest{
				Hostname: hostname,
				Limit:    limit,
			})
			if err != nil {
				return err
			}

			if len(entries) == 0 {
				fmt.Println("No runs journaled yet.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tHOSTNAME\tENV\tACTION\tOUTCOME\tDETAIL")
			fmt.Fprintln(w, "-------\t--------\t---\t------\t-------\t------")
			for _, e := range entries {
				detail := e.Reason
				if e.Outcome == "failure" {
					detail = fmt.Sprintf("%s: %s", e.FailedStage, e.ErrorText)
				}
				if len(detail) > 60 {
					detail = detail[:57] + "..."
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					e.StartedAt,
					e.Hostname,
					e.Environment,
					e.Action,
					e.Outcome,
					detail,
				)
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVar(&hostname, "hostname", "", "Only show runs for this hostname")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to show (0 for all)")

	return cmd
}
