package model

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config fixture: %v", err)
	}
	return path
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Gateway.Type != GatewayGmail {
		t.Errorf("Gateway.Type = %q, want gmail", cfg.Gateway.Type)
	}
	if cfg.Triage.PollIntervalSec != 30 {
		t.Errorf("PollIntervalSec = %d, want 30", cfg.Triage.PollIntervalSec)
	}
	if cfg.Classifier.Model != "claude-sonnet-4-20250514" {
		t.Errorf("Model = %q", cfg.Classifier.Model)
	}
	if cfg.Ops.Enabled {
		t.Error("Ops.Enabled = true, want false")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeConfigFile(t, `
gateway:
  type: imap
  imap:
    host: mail.example.com
    username: robot@example.com
triage:
  poll_interval_sec: 5
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Gateway.Type != GatewayIMAP {
		t.Errorf("Gateway.Type = %q, want imap", cfg.Gateway.Type)
	}
	if cfg.Gateway.IMAP.Host != "mail.example.com" {
		t.Errorf("Host = %q", cfg.Gateway.IMAP.Host)
	}
	if cfg.Gateway.IMAP.Port != 993 {
		t.Errorf("Port = %d, want default 993", cfg.Gateway.IMAP.Port)
	}
	if cfg.Triage.PollIntervalSec != 5 {
		t.Errorf("PollIntervalSec = %d, want 5", cfg.Triage.PollIntervalSec)
	}
	if cfg.Triage.PageSize != 10 {
		t.Errorf("PageSize = %d, want default 10", cfg.Triage.PageSize)
	}

	// SMTP host and from address fall back to the IMAP settings.
	if cfg.Gateway.IMAP.SMTPHost != "mail.example.com" {
		t.Errorf("SMTPHost = %q, want fallback to host", cfg.Gateway.IMAP.SMTPHost)
	}
	if cfg.Gateway.IMAP.FromAddress != "robot@example.com" {
		t.Errorf("FromAddress = %q, want fallback to username", cfg.Gateway.IMAP.FromAddress)
	}
}

func TestLoadConfigExplicitSMTPHost(t *testing.T) {
	path := writeConfigFile(t, `
gateway:
  type: imap
  imap:
    host: mail.example.com
    smtp_host: smtp.example.com
    from_address: bot@example.com
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Gateway.IMAP.SMTPHost != "smtp.example.com" {
		t.Errorf("SMTPHost = %q, want smtp.example.com", cfg.Gateway.IMAP.SMTPHost)
	}
	if cfg.Gateway.IMAP.FromAddress != "bot@example.com" {
		t.Errorf("FromAddress = %q, want bot@example.com", cfg.Gateway.IMAP.FromAddress)
	}
}

func TestLoadConfigMalformed(t *testing.T) {
	path := writeConfigFile(t, "gateway: [unclosed")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("LoadConfig accepted malformed YAML")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *AppConfig { return DefaultConfig() }

	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr bool
	}{
		{"defaults", func(c *AppConfig) {}, false},
		{"imap with host", func(c *AppConfig) {
			c.Gateway.Type = GatewayIMAP
			c.Gateway.IMAP.Host = "mail.example.com"
		}, false},
		{"unknown gateway", func(c *AppConfig) { c.Gateway.Type = "pigeon" }, true},
		{"imap without host", func(c *AppConfig) { c.Gateway.Type = GatewayIMAP }, true},
		{"zero poll interval", func(c *AppConfig) { c.Triage.PollIntervalSec = 0 }, true},
		{"zero page size", func(c *AppConfig) { c.Triage.PageSize = 0 }, true},
		{"zero workers", func(c *AppConfig) { c.Triage.Workers = 0 }, true},
		{"zero attempts", func(c *AppConfig) { c.Triage.MaxAttempts = 0 }, true},
		{"ops enabled without listen", func(c *AppConfig) {
			c.Ops.Enabled = true
			c.Ops.Listen = ""
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Gateway.Type = GatewayIMAP
	cfg.Gateway.IMAP.Host = "mail.example.com"
	cfg.Gateway.IMAP.Username = "robot@example.com"
	cfg.Triage.Workers = 2

	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	got, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got.Gateway.Type != GatewayIMAP {
		t.Errorf("Gateway.Type = %q, want imap", got.Gateway.Type)
	}
	if got.Gateway.IMAP.Host != "mail.example.com" {
		t.Errorf("Host = %q", got.Gateway.IMAP.Host)
	}
	if got.Triage.Workers != 2 {
		t.Errorf("Workers = %d, want 2", got.Triage.Workers)
	}
}
