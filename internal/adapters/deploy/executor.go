// Package deploy installs issued certificate artifacts into the target
// application server and handles its restart.
package deploy

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/user"
	"strconv"
	"time"

	"github.com/example/certward/internal/ports/secondary"
)

const outputTailLimit = 2048

// adminPasswordEnv is how the admin tool child process receives the
// password. It never appears in argv.
const adminPasswordEnv = "CERTWARD_ADMIN_PASSWORD"

// Options configures the target server wiring.
type Options struct {
	SystemctlPath  string
	AdminToolPath  string
	ServiceUnit    string
	ServiceAccount string
	AdminUser      string
	RestartGrace   time.Duration
}

// Executor implements secondary.DeliveryExecutor. Steps are strictly
// sequential: ownership transfer, then import, then restart. A failed or
// skipped import means the restart never runs.
type Executor struct {
	opts   Options
	logger *slog.Logger
}

// NewExecutor creates a delivery executor.
func NewExecutor(opts Options, logger *slog.Logger) *Executor {
	return &Executor{opts: opts, logger: logger}
}

// Deliver transfers artifact ownership, optionally imports the certificate
// into the target server and optionally restarts it.
func (e *Executor) Deliver(ctx context.Context, req secondary.DeliveryRequest) error {
	if err := checkArtifact(req.FullchainPath); err != nil {
		return err
	}
	if err := checkArtifact(req.PrivateKeyPath); err != nil {
		return err
	}

	if e.opts.ServiceAccount != "" {
		if err := e.chownArtifacts(req); err != nil {
			return err
		}
	}

	if !req.Import {
		return nil
	}

	if err := e.importCertificate(ctx, req); err != nil {
		return err
	}

	if !req.Restart {
		return nil
	}
	return e.restartService(ctx)
}

func checkArtifact(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("certificate artifact missing: %s: %w", path, err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("certificate artifact is empty: %s", path)
	}
	return nil
}

func (e *Executor) chownArtifacts(req secondary.DeliveryRequest) error {
	account, err := user.Lookup(e.opts.ServiceAccount)
	if err != nil {
		return fmt.Errorf("failed to look up service account %s: %w", e.opts.ServiceAccount, err)
	}
	uid, err := strconv.Atoi(account.Uid)
	if err != nil {
		return fmt.Errorf("invalid uid for %s: %w", e.opts.ServiceAccount, err)
	}
	gid, err := strconv.Atoi(account.Gid)
	if err != nil {
		return fmt.Errorf("invalid gid for %s: %w", e.opts.ServiceAccount, err)
	}

	// Chown follows the live/ symlinks, so the archived files the links
	// point at get the new owner.
	for _, path := range []string{req.FullchainPath, req.PrivateKeyPath} {
		if err := os.Chown(path, uid, gid); err != nil {
			return fmt.Errorf("failed to chown %s to %s: %w", path, e.opts.ServiceAccount, err)
		}
	}

	e.logger.Debug("transferred artifact ownership", "account", e.opts.ServiceAccount)
	return nil
}

func (e *Executor) importCertificate(ctx context.Context, req secondary.DeliveryRequest) error {
	if e.opts.AdminToolPath == "" {
		return fmt.Errorf("certificate import requested but no admin tool configured")
	}

	cmd := exec.CommandContext(ctx, e.opts.AdminToolPath,
		"import",
		"--cert", req.FullchainPath,
		"--key", req.PrivateKeyPath,
		"--user", e.opts.AdminUser,
	)
	if req.AdminPassword != "" {
		cmd.Env = append(os.Environ(), adminPasswordEnv+"="+req.AdminPassword)
	}

	e.logger.Info("importing certificate into target server", "hostname", req.Hostname, "tool", e.opts.AdminToolPath)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("certificate import failed: %w: %s", err, outputTail(output))
	}
	return nil
}

func (e *Executor) restartService(ctx context.Context) error {
	if e.opts.ServiceUnit == "" {
		return fmt.Errorf("restart requested but no service unit configured")
	}

	e.logger.Info("stopping service", "unit", e.opts.ServiceUnit)
	if output, err := exec.CommandContext(ctx, e.opts.SystemctlPath, "stop", e.opts.ServiceUnit).CombinedOutput(); err != nil {
		return fmt.Errorf("failed to stop %s: %w: %s", e.opts.ServiceUnit, err, outputTail(output))
	}

	if e.opts.RestartGrace > 0 {
		time.Sleep(e.opts.RestartGrace)
	}

	e.logger.Info("starting service", "unit", e.opts.ServiceUnit)
	if output, err := exec.CommandContext(ctx, e.opts.SystemctlPath, "start", e.opts.ServiceUnit).CombinedOutput(); err != nil {
		return fmt.Errorf("failed to start %s: %w: %s", e.opts.ServiceUnit, err, outputTail(output))
	}

	return nil
}

func outputTail(output []byte) string {
	output = bytes.TrimSpace(output)
	if len(output) > outputTailLimit {
		output = output[len(output)-outputTailLimit:]
	}
	return string(output)
}

// Ensure Executor implements the interface
var _ secondary.DeliveryExecutor = (*Executor)(nil)
