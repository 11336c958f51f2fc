// Package wire assembles the application graph. Construction is explicit:
// Build wires adapters and services from the loaded configuration and the
// caller owns the result, including closing it.
package wire

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/certward/internal/adapters/certbot"
	"github.com/example/certward/internal/adapters/certstore"
	"github.com/example/certward/internal/adapters/credentials"
	"github.com/example/certward/internal/adapters/deploy"
	"github.com/example/certward/internal/adapters/journal"
	"github.com/example/certward/internal/adapters/lockfile"
	"github.com/example/certward/internal/adapters/statefile"
	"github.com/example/certward/internal/app"
	"github.com/example/certward/internal/config"
	"github.com/example/certward/internal/db"
	"github.com/example/certward/internal/ports/primary"
)

// App is the assembled application.
type App struct {
	Config *config.Config
	Logger *slog.Logger
	Run    primary.RunService
	Report primary.ReportService

	journalDB *sql.DB
}

// Build constructs every adapter and service from cfg. It creates the
// working directories and opens the run journal.
func Build(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("failed to prepare directories: %w", err)
	}

	journalDB, err := db.Open(cfg.JournalPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open run journal: %w", err)
	}

	stateStore := statefile.NewStore(cfg.StateDir)
	inspector := certstore.NewInspector(cfg.ACMEConfigDir)
	scoper := credentials.NewScoper(cfg.SecretsDir)
	locks := lockfile.NewLocker(cfg.LockDir)
	journalRepo := journal.NewRepository(journalDB)

	issuer := certbot.NewClient(certbot.Options{
		BinPath:   cfg.CertbotPath,
		ConfigDir: cfg.ACMEConfigDir,
		WorkDir:   cfg.ACMEWorkDir,
		LogsDir:   cfg.ACMELogsDir,
	}, logger)

	deliverer := deploy.NewExecutor(deploy.Options{
		SystemctlPath:  cfg.SystemctlPath,
		AdminToolPath:  cfg.AdminToolPath,
		ServiceUnit:    cfg.ServiceUnit,
		ServiceAccount: cfg.ServiceAccount,
		AdminUser:      cfg.AdminUser,
		RestartGrace:   time.Duration(cfg.RestartGraceSeconds) * time.Second,
	}, logger)

	runSvc := app.NewRunService(
		stateStore, inspector, scoper, issuer, deliverer, journalRepo, locks,
		app.ToolPaths{
			Certbot:   cfg.CertbotPath,
			Systemctl: cfg.SystemctlPath,
			AdminTool: cfg.AdminToolPath,
		},
		logger,
	)
	reportSvc := app.NewReportService(stateStore, inspector, journalRepo)

	return &App{
		Config:    cfg,
		Logger:    logger,
		Run:       runSvc,
		Report:    reportSvc,
		journalDB: journalDB,
	}, nil
}

// Close releases everything Build opened.
func (a *App) Close() error {
	return a.journalDB.Close()
}
