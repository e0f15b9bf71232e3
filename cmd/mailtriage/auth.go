package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/mail-triage/internal/credential"
	"github.com/nhle/mail-triage/internal/mailstore/gmailstore"
	"github.com/nhle/mail-triage/internal/model"
)

func newAuthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Run the Gmail OAuth consent flow and cache the token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := model.LoadConfig(cfgFile)
			if err != nil {
				return err
			}
			if cfg.Gateway.Type != model.GatewayGmail {
				return fmt.Errorf(
					"auth applies to the gmail gateway, configured type is %q",
					cfg.Gateway.Type,
				)
			}
			return gmailstore.Authorize(
				cmd.Context(), cfg.Gateway.Gmail, os.Stdin, os.Stdout,
			)
		},
	}
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cmd.AddCommand(newConfigInitCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(cfgFile); err == nil && !force {
				return fmt.Errorf("%s already exists, pass --force to overwrite", cfgFile)
			}
			if err := model.SaveConfig(cfgFile, model.DefaultConfig()); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", cfgFile)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

// secretKeys are the keyring entries the daemon knows how to use.
var secretKeys = []string{
	credential.KeyAnthropicAPIKey,
	credential.KeyIMAPPassword,
	credential.KeySMTPPassword,
}

func knownSecretKey(key string) bool {
	for _, k := range secretKeys {
		if k == key {
			return true
		}
	}
	return false
}

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage secrets in the OS keyring",
	}
	cmd.AddCommand(newSecretSetCmd(), newSecretDeleteCmd())
	return cmd
}

func newSecretSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key>",
		Short: "Store a secret, reading its value from stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if !knownSecretKey(key) {
				return fmt.Errorf(
					"unknown secret %q, expected one of: %s",
					key, strings.Join(secretKeys, ", "),
				)
			}

			fmt.Fprintf(os.Stderr, "Value for %s: ", key)
			value, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil && err != io.EOF {
				return fmt.Errorf("reading secret value: %w", err)
			}
			value = strings.TrimSpace(value)
			if value == "" {
				return fmt.Errorf("empty secret value")
			}

			if err := credential.Set(key, value); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Stored %s\n", key)
			return nil
		},
	}
}

func newSecretDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Remove a secret from the keyring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if !knownSecretKey(key) {
				return fmt.Errorf(
					"unknown secret %q, expected one of: %s",
					key, strings.Join(secretKeys, ", "),
				)
			}
			return credential.Delete(key)
		},
	}
}
