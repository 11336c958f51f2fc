package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the site config lives unless --config overrides it.
const DefaultPath = "/etc/certward/config.yaml"

const defaultDataDir = "/var/lib/certward"

// Config is the site-level configuration: directories, external tool paths
// and target-server wiring. Per-invocation parameters (hostname, email,
// provider credentials) arrive as flags, never through this file, so the
// file can stay secret-free and world-readable.
type Config struct {
	// Data layout. All certward-owned directories are created 0700.
	StateDir    string `yaml:"state_dir" env:"CERTWARD_STATE_DIR"`
	LockDir     string `yaml:"lock_dir" env:"CERTWARD_LOCK_DIR"`
	SecretsDir  string `yaml:"secrets_dir" env:"CERTWARD_SECRETS_DIR"`
	JournalPath string `yaml:"journal_path" env:"CERTWARD_JOURNAL_PATH"`

	// Directories handed to the ACME client on every invocation.
	ACMEConfigDir string `yaml:"acme_config_dir" env:"CERTWARD_ACME_CONFIG_DIR"`
	ACMEWorkDir   string `yaml:"acme_work_dir" env:"CERTWARD_ACME_WORK_DIR"`
	ACMELogsDir   string `yaml:"acme_logs_dir" env:"CERTWARD_ACME_LOGS_DIR"`

	// External tools.
	CertbotPath   string `yaml:"certbot_path" env:"CERTWARD_CERTBOT_PATH"`
	SystemctlPath string `yaml:"systemctl_path" env:"CERTWARD_SYSTEMCTL_PATH"`
	AdminToolPath string `yaml:"admin_tool_path" env:"CERTWARD_ADMIN_TOOL_PATH"`

	// Target application server.
	ServiceUnit         string `yaml:"service_unit" env:"CERTWARD_SERVICE_UNIT"`
	ServiceAccount      string `yaml:"service_account" env:"CERTWARD_SERVICE_ACCOUNT"`
	AdminUser           string `yaml:"admin_user" env:"CERTWARD_ADMIN_USER"`
	RestartGraceSeconds int    `yaml:"restart_grace_seconds" env:"CERTWARD_RESTART_GRACE_SECONDS"`

	// Logging. --debug on the command line overrides the level.
	LogLevel  string `yaml:"log_level" env:"CERTWARD_LOG_LEVEL"`
	LogFormat string `yaml:"log_format" env:"CERTWARD_LOG_FORMAT"`
}

// Default returns the baked-in defaults, before file and env layering.
func Default() *Config {
	return &Config{
		StateDir:            filepath.Join(defaultDataDir, "state"),
		LockDir:             filepath.Join(defaultDataDir, "locks"),
		SecretsDir:          filepath.Join(defaultDataDir, "secrets"),
		JournalPath:         filepath.Join(defaultDataDir, "journal.db"),
		ACMEConfigDir:       filepath.Join(defaultDataDir, "acme", "config"),
		ACMEWorkDir:         filepath.Join(defaultDataDir, "acme", "work"),
		ACMELogsDir:         filepath.Join(defaultDataDir, "acme", "logs"),
		CertbotPath:         "certbot",
		SystemctlPath:       "systemctl",
		AdminToolPath:       "",
		ServiceUnit:         "",
		ServiceAccount:      "",
		AdminUser:           "admin",
		RestartGraceSeconds: 3,
		LogLevel:            "info",
		LogFormat:           "text",
	}
}

// Load layers configuration: defaults, then the YAML file at path (missing
// file keeps defaults), then CERTWARD_* environment variables. A .env in
// the working directory is loaded first so schedulers can keep overrides
// next to the crontab instead of in it.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// no site config, defaults apply
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	_ = godotenv.Load()

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	return cfg, nil
}

// EnsureDirs creates the certward-owned directories with owner-only access.
// ACME directories are included so the client never has to create them with
// its own umask.
func (c *Config) EnsureDirs() error {
	dirs := []string{
		c.StateDir,
		c.LockDir,
		c.SecretsDir,
		filepath.Dir(c.JournalPath),
		c.ACMEConfigDir,
		c.ACMEWorkDir,
		c.ACMELogsDir,
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
