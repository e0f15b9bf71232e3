package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nhle/mail-triage/internal/classify"
	"github.com/nhle/mail-triage/internal/credential"
	"github.com/nhle/mail-triage/internal/mailstore"
	"github.com/nhle/mail-triage/internal/mailstore/gmailstore"
	"github.com/nhle/mail-triage/internal/mailstore/imapstore"
	"github.com/nhle/mail-triage/internal/model"
	"github.com/nhle/mail-triage/internal/ops"
	"github.com/nhle/mail-triage/internal/pipeline"
	"github.com/nhle/mail-triage/internal/sched"
	"github.com/nhle/mail-triage/internal/store"
)

const (
	validateTimeout    = 15 * time.Second
	opsShutdownTimeout = 5 * time.Second
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Poll the inbox and triage unread mail until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(
				context.Background(), os.Interrupt, syscall.SIGTERM,
			)
			defer stop()

			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			var opsSrv *ops.Server
			if a.cfg.Ops.Enabled {
				opsSrv = ops.NewServer(a.cfg.Ops.Listen, a.store, a.sched, a.logger)
				go func() {
					if err := opsSrv.Start(); err != nil {
						a.logger.WithError(err).Error("ops server failed")
					}
				}()
			}

			a.logger.WithFields(logrus.Fields{
				"poll_interval_sec": a.cfg.Triage.PollIntervalSec,
				"workers":           a.cfg.Triage.Workers,
			}).Info("triage loop starting")

			err = a.sched.Start(ctx)

			if opsSrv != nil {
				sctx, cancel := context.WithTimeout(
					context.Background(), opsShutdownTimeout,
				)
				defer cancel()
				if serr := opsSrv.Shutdown(sctx); serr != nil {
					a.logger.WithError(serr).Warn("ops server shutdown failed")
				}
			}

			a.logger.Info("shutdown complete")
			return err
		},
	}
}

func newOnceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run a single triage sweep and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			return a.sched.RunOnce(context.Background())
		},
	}
}

// app bundles the wired daemon collaborators.
type app struct {
	cfg     *model.AppConfig
	logger  *logrus.Logger
	store   *store.SQLiteStore
	gateway mailstore.Gateway
	sched   *sched.Scheduler
}

// buildApp loads configuration and wires the gateway, classifier,
// audit store and scheduler. It fails when the mail store is
// unreachable or a required secret is missing, so a misconfigured
// daemon dies at startup instead of spinning uselessly.
func buildApp(ctx context.Context) (*app, error) {
	logger := newLogger(logLevel)

	cfg, err := model.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	gateway, err := buildGateway(cfg, logger)
	if err != nil {
		return nil, err
	}

	vctx, cancel := context.WithTimeout(ctx, validateTimeout)
	account, err := gateway.ValidateConnection(vctx)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("mail store unreachable: %w", err)
	}
	logger.WithFields(logrus.Fields{
		"gateway": gateway.Name(),
		"account": account,
	}).Info("mail store connection verified")

	apiKey, err := resolveSecret("ANTHROPIC_API_KEY", credential.KeyAnthropicAPIKey)
	if err != nil {
		return nil, fmt.Errorf("anthropic api key unavailable: %w", err)
	}
	classifier := classify.NewClaude(apiKey, cfg.Classifier.Model, cfg.Classifier.MaxTokens)

	if dir := filepath.Dir(cfg.Store.Path); cfg.Store.Path != ":memory:" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory %s: %w", dir, err)
		}
	}
	st, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("opening audit store: %w", err)
	}

	engine := pipeline.New(gateway, classifier, logger)
	scheduler := sched.New(engine, gateway, st, cfg.Triage, logger)

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   st,
		gateway: gateway,
		sched:   scheduler,
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.WithError(err).Warn("closing audit store failed")
	}
}

// buildGateway constructs the configured mail store backend. The
// gmail service is built on a background context: it must outlive the
// signal context so in-flight runs can still refresh tokens while the
// daemon drains.
func buildGateway(cfg *model.AppConfig, logger *logrus.Logger) (mailstore.Gateway, error) {
	switch cfg.Gateway.Type {
	case model.GatewayGmail:
		return gmailstore.New(context.Background(), cfg.Gateway.Gmail, logger)

	case model.GatewayIMAP:
		imapPassword, err := resolveSecret(
			"MAILTRIAGE_IMAP_PASSWORD", credential.KeyIMAPPassword,
		)
		if err != nil {
			return nil, fmt.Errorf("imap password unavailable: %w", err)
		}
		smtpPassword, err := resolveSecret(
			"MAILTRIAGE_SMTP_PASSWORD", credential.KeySMTPPassword,
		)
		if err != nil {
			smtpPassword = imapPassword
		}
		return imapstore.New(cfg.Gateway.IMAP, imapPassword, smtpPassword), nil

	default:
		return nil, fmt.Errorf("unknown gateway type %q", cfg.Gateway.Type)
	}
}

// resolveSecret prefers the environment variable and falls back to
// the OS keyring entry. Secrets never live in the config file.
func resolveSecret(envVar, keyringKey string) (string, error) {
	if v := os.Getenv(envVar); v != "" {
		return v, nil
	}
	return credential.Get(keyringKey)
}

// newLogger builds the process logger.
func newLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}
