package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Gateway type constants.
const (
	GatewayGmail = "gmail"
	GatewayIMAP  = "imap"
)

// GmailConfig holds settings for the Gmail API gateway.
type GmailConfig struct {
	// CredentialsFile is the OAuth client secret JSON downloaded from
	// the Google Cloud console.
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file"`

	// TokenFile is where the user token obtained during `mailtriage
	// auth` is cached between runs.
	TokenFile string `mapstructure:"token_file" yaml:"token_file"`
}

// IMAPConfig holds settings for the IMAP/SMTP gateway.
type IMAPConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`

	// Mailbox is the folder polled for unread mail.
	Mailbox string `mapstructure:"mailbox" yaml:"mailbox"`

	// SMTPHost and SMTPPort are used for outgoing replies. SMTPHost
	// defaults to Host when empty.
	SMTPHost string `mapstructure:"smtp_host" yaml:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port" yaml:"smtp_port"`

	// FromAddress is the sender identity on outgoing replies.
	// Defaults to Username when empty.
	FromAddress string `mapstructure:"from_address" yaml:"from_address"`
}

// GatewayConfig selects and configures the mail store implementation.
type GatewayConfig struct {
	// Type is "gmail" or "imap".
	Type string `mapstructure:"type" yaml:"type"`

	Gmail GmailConfig `mapstructure:"gmail" yaml:"gmail"`
	IMAP  IMAPConfig  `mapstructure:"imap" yaml:"imap"`
}

// ClassifierConfig holds settings for the AI classifier.
type ClassifierConfig struct {
	Model     string `mapstructure:"model" yaml:"model"`
	MaxTokens int    `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// TriageConfig holds the processing loop settings.
type TriageConfig struct {
	// PollIntervalSec is how often (in seconds) to look for unread mail.
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`

	// PageSize caps how many unread ids one cycle picks up.
	PageSize int `mapstructure:"page_size" yaml:"page_size"`

	// Workers bounds how many messages are processed concurrently.
	Workers int `mapstructure:"workers" yaml:"workers"`

	// MaxAttempts is how many failed runs a message gets before this
	// process stops picking it up.
	MaxAttempts int `mapstructure:"max_attempts" yaml:"max_attempts"`
}

// OpsConfig holds settings for the local HTTP inspection endpoint.
type OpsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
}

// StoreConfig holds settings for the audit database.
type StoreConfig struct {
	// Path is the SQLite database file. ":memory:" is accepted.
	Path string `mapstructure:"path" yaml:"path"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Gateway    GatewayConfig    `mapstructure:"gateway" yaml:"gateway"`
	Classifier ClassifierConfig `mapstructure:"classifier" yaml:"classifier"`
	Triage     TriageConfig     `mapstructure:"triage" yaml:"triage"`
	Ops        OpsConfig        `mapstructure:"ops" yaml:"ops"`
	Store      StoreConfig      `mapstructure:"store" yaml:"store"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/mailtriage/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "mailtriage", "config.yaml")
}

// DefaultStorePath returns the default location of the audit database.
func DefaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "mailtriage.db")
	}
	return filepath.Join(home, ".local", "share", "mailtriage", "mailtriage.db")
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Gateway: GatewayConfig{
			Type: GatewayGmail,
			Gmail: GmailConfig{
				CredentialsFile: "credentials.json",
				TokenFile:       "token.json",
			},
			IMAP: IMAPConfig{
				Port:     993,
				Mailbox:  "INBOX",
				SMTPPort: 587,
			},
		},
		Classifier: ClassifierConfig{
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 1024,
		},
		Triage: TriageConfig{
			PollIntervalSec: 30,
			PageSize:        10,
			Workers:         4,
			MaxAttempts:     3,
		},
		Ops: OpsConfig{
			Enabled: false,
			Listen:  "127.0.0.1:8787",
		},
		Store: StoreConfig{
			Path: DefaultStorePath(),
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("gateway.type", GatewayGmail)
	v.SetDefault("gateway.gmail.credentials_file", "credentials.json")
	v.SetDefault("gateway.gmail.token_file", "token.json")
	v.SetDefault("gateway.imap.port", 993)
	v.SetDefault("gateway.imap.mailbox", "INBOX")
	v.SetDefault("gateway.imap.smtp_port", 587)
	v.SetDefault("classifier.model", "claude-sonnet-4-20250514")
	v.SetDefault("classifier.max_tokens", 1024)
	v.SetDefault("triage.poll_interval_sec", 30)
	v.SetDefault("triage.page_size", 10)
	v.SetDefault("triage.workers", 4)
	v.SetDefault("triage.max_attempts", 3)
	v.SetDefault("ops.enabled", false)
	v.SetDefault("ops.listen", "127.0.0.1:8787")
	v.SetDefault("store.path", DefaultStorePath())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return DefaultConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Gateway.IMAP.SMTPHost == "" {
		cfg.Gateway.IMAP.SMTPHost = cfg.Gateway.IMAP.Host
	}
	if cfg.Gateway.IMAP.FromAddress == "" {
		cfg.Gateway.IMAP.FromAddress = cfg.Gateway.IMAP.Username
	}

	return cfg, nil
}

// Validate checks the settings a run cannot start without.
func (c *AppConfig) Validate() error {
	switch c.Gateway.Type {
	case GatewayGmail, GatewayIMAP:
	default:
		return fmt.Errorf("unknown gateway type %q", c.Gateway.Type)
	}
	if c.Gateway.Type == GatewayIMAP && c.Gateway.IMAP.Host == "" {
		return fmt.Errorf("imap gateway requires gateway.imap.host")
	}
	if c.Triage.PollIntervalSec <= 0 {
		return fmt.Errorf("triage.poll_interval_sec must be positive, got %d", c.Triage.PollIntervalSec)
	}
	if c.Triage.PageSize <= 0 {
		return fmt.Errorf("triage.page_size must be positive, got %d", c.Triage.PageSize)
	}
	if c.Triage.Workers <= 0 {
		return fmt.Errorf("triage.workers must be positive, got %d", c.Triage.Workers)
	}
	if c.Triage.MaxAttempts <= 0 {
		return fmt.Errorf("triage.max_attempts must be positive, got %d", c.Triage.MaxAttempts)
	}
	if c.Ops.Enabled && c.Ops.Listen == "" {
		return fmt.Errorf("ops.listen must be set when ops.enabled is true")
	}
	return nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("gateway", cfg.Gateway)
	v.Set("classifier", cfg.Classifier)
	v.Set("triage", cfg.Triage)
	v.Set("ops", cfg.Ops)
	v.Set("store", cfg.Store)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
