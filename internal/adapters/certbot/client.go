// Package certbot shells out to the certbot ACME client. The client is a
// black box: certward builds the invocation, inherits nothing from its
// renewal scheduling and only interprets the exit status.
package certbot

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/example/certward/internal/ports/secondary"
)

// ACME directory endpoints. Staging issues untrusted certificates but is
// not subject to production rate limits.
const (
	ProductionDirectoryURL = "https://acme-v02.api.letsencrypt.org/directory"
	StagingDirectoryURL    = "https://acme-staging-v02.api.letsencrypt.org/directory"
)

// outputTailLimit caps how much client output gets attached to an error.
const outputTailLimit = 2048

// Options configures the certbot invocation that every call shares.
type Options struct {
	BinPath   string
	ConfigDir string
	WorkDir   string
	LogsDir   string
}

// Client implements secondary.IssuanceClient by invoking certbot.
type Client struct {
	opts   Options
	logger *slog.Logger
}

// NewClient creates a certbot client.
func NewClient(opts Options, logger *slog.Logger) *Client {
	return &Client{opts: opts, logger: logger}
}

// Request obtains a brand new certificate via certonly.
func (c *Client) Request(ctx context.Context, req secondary.IssuanceRequest) error {
	args, err := c.requestArgs(req)
	if err != nil {
		return err
	}
	return c.run(ctx, args, req.ExtraEnv)
}

// Renew renews the existing lineage. The DNS plugin and credentials are
// passed again as overrides because the per-run credentials file never
// survives between invocations.
func (c *Client) Renew(ctx context.Context, req secondary.IssuanceRequest) error {
	args, err := c.renewArgs(req)
	if err != nil {
		return err
	}
	return c.run(ctx, args, req.ExtraEnv)
}

func (c *Client) requestArgs(req secondary.IssuanceRequest) ([]string, error) {
	providerFlags, err := providerArgs(req)
	if err != nil {
		return nil, err
	}

	args := []string{
		"certonly",
		"--non-interactive",
		"--agree-tos",
		"--email", req.Email,
		"--cert-name", req.Hostname,
		"-d", req.Hostname,
		"--server", DirectoryURL(req.Staging),
		"--no-autorenew",
	}
	args = append(args, providerFlags...)
	args = append(args, c.dirArgs()...)
	return args, nil
}

func (c *Client) renewArgs(req secondary.IssuanceRequest) ([]string, error) {
	providerFlags, err := providerArgs(req)
	if err != nil {
		return nil, err
	}

	args := []string{
		"renew",
		"--cert-name", req.Hostname,
		"--non-interactive",
		"--no-autorenew",
		"--server", DirectoryURL(req.Staging),
	}
	if req.ForceRenewal {
		args = append(args, "--force-renewal")
	}
	args = append(args, providerFlags...)
	args = append(args, c.dirArgs()...)
	return args, nil
}

func (c *Client) dirArgs() []string {
	return []string{
		"--config-dir", c.opts.ConfigDir,
		"--work-dir", c.opts.WorkDir,
		"--logs-dir", c.opts.LogsDir,
	}
}

// providerArgs maps the DNS provider to its certbot plugin flags. The
// route53 plugin takes its credentials from the child environment, not
// from a flag.
func providerArgs(req secondary.IssuanceRequest) ([]string, error) {
	switch req.Provider {
	case secondary.ProviderCloudflare:
		return []string{"--dns-cloudflare", "--dns-cloudflare-credentials", req.CredentialsFile}, nil
	case secondary.ProviderRoute53:
		return []string{"--dns-route53"}, nil
	default:
		return nil, fmt.Errorf("unsupported DNS provider: %s", req.Provider)
	}
}

// DirectoryURL returns the ACME directory endpoint for the environment.
func DirectoryURL(staging bool) string {
	if staging {
		return StagingDirectoryURL
	}
	return ProductionDirectoryURL
}

func (c *Client) run(ctx context.Context, args, extraEnv []string) error {
	cmd := exec.CommandContext(ctx, c.opts.BinPath, args...)
	if len(extraEnv) > 0 {
		cmd.Env = append(os.Environ(), extraEnv...)
	}

	// Secrets travel via file and environment, so argv is safe to log.
	c.logger.Debug("invoking acme client", "bin", c.opts.BinPath, "args", strings.Join(args, " "))

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("certbot %s failed: %w: %s", args[0], err, outputTail(output))
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

// Ensure Client implements the interface
var _ secondary.IssuanceClient = (*Client)(nil)
