package cli

import (
	"github.com/spf13/cobra"

	"github.com/example/certward/internal/config"
	"github.com/example/certward/internal/logging"
	"github.com/example/certward/internal/version"
	"github.com/example/certward/internal/wire"
)

// RootCmd assembles the certward command tree.
func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "certward",
		Short: "Certificate warden for DNS-01 issued certificates",
		Long: `certward decides on every invocation whether a host's certificate
needs nothing, a fresh issuance, or a renewal, and carries the decision
out through the ACME client's DNS-01 flow.

It is designed to run unattended from cron or a systemd timer: exit
code 0 means the run succeeded or nothing needed doing, and a second
invocation while one is in flight backs off cleanly.`,
		Version:      version.String(),
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", config.DefaultPath, "Path to the site configuration file")
	cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	cmd.AddCommand(RunCmd())
	cmd.AddCommand(StatusCmd())
	cmd.AddCommand(HistoryCmd())
	cmd.AddCommand(DoctorCmd())

	return cmd
}

// buildApp loads site configuration and wires the application graph for
// one command invocation. The caller owns the returned app, including
// closing it.
func buildApp(cmd *cobra.Command) (*wire.App, error) {
	configPath, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger := logging.New(logging.Options{
		Debug:  debug,
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	return wire.Build(cfg, logger)
}
