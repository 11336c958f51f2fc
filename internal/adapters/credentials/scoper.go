// Package credentials materializes short-lived DNS provider credential
// files for the ACME client. Files live in a private per-run directory and
// are removed again before the run ends, whatever the outcome.
package credentials

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/example/certward/internal/ports/secondary"
)

// Scoper implements secondary.CredentialScoper. Each Acquire creates a
// fresh 0700 scratch directory under baseDir holding a single 0600
// credentials file.
type Scoper struct {
	baseDir string
}

// NewScoper creates a scoper rooted at baseDir.
func NewScoper(baseDir string) *Scoper {
	return &Scoper{baseDir: baseDir}
}

// Acquire writes the provider credentials file and returns the live scope.
func (s *Scoper) Acquire(ctx context.Context, spec secondary.CredentialSpec) (secondary.CredentialScope, error) {
	content, fileName, err := renderCredentials(spec)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(s.baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create secrets directory: %w", err)
	}

	dir, err := os.MkdirTemp(s.baseDir, "scope-")
	if err != nil {
		return nil, fmt.Errorf("failed to create credential scope: %w", err)
	}

	path := filepath.Join(dir, fileName)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to write credentials file: %w", err)
	}

	sc := &scope{dir: dir, path: path}
	if spec.Provider == secondary.ProviderRoute53 {
		// The route53 plugin picks its credentials up from the child
		// environment, not from a flag.
		sc.env = []string{"AWS_SHARED_CREDENTIALS_FILE=" + path}
	}
	return sc, nil
}

func renderCredentials(spec secondary.CredentialSpec) (content, fileName string, err error) {
	switch spec.Provider {
	case secondary.ProviderCloudflare:
		if spec.CloudflareAPIToken == "" {
			return "", "", fmt.Errorf("cloudflare provider requires an API token")
		}
		return fmt.Sprintf("dns_cloudflare_api_token = %s\n", spec.CloudflareAPIToken), "cloudflare.ini", nil
	case secondary.ProviderRoute53:
		if spec.AWSAccessKeyID == "" || spec.AWSSecretAccessKey == "" {
			return "", "", fmt.Errorf("route53 provider requires an access key ID and secret access key")
		}
		content := fmt.Sprintf("[default]\naws_access_key_id = %s\naws_secret_access_key = %s\n",
			spec.AWSAccessKeyID, spec.AWSSecretAccessKey)
		return content, "aws-credentials", nil
	default:
		return "", "", fmt.Errorf("unsupported DNS provider: %s", spec.Provider)
	}
}

// scope is a live credentials directory. Release removes the whole
// directory and is safe to call more than once.
type scope struct {
	dir  string
	path string
	env  []string
	once sync.Once
}

// FilePath returns the credentials file to hand to the ACME client.
func (c *scope) FilePath() string {
	return c.path
}

// ClientEnv returns extra child-process environment entries.
func (c *scope) ClientEnv() []string {
	return c.env
}

// Release removes the credentials from disk. Idempotent.
func (c *scope) Release() error {
	var err error
	c.once.Do(func() {
		err = os.RemoveAll(c.dir)
	})
	return err
}

// Ensure Scoper implements the interface
var _ secondary.CredentialScoper = (*Scoper)(nil)
