// Command mailtriage watches an email inbox and triages every unread
// message: each one is classified, optionally answered with a drafted
// reply, and marked read so the next sweep never picks it up again.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nhle/mail-triage/internal/model"
)

// version is stamped at build time via -ldflags.
var version = "dev"

// Persistent flag values shared by all subcommands.
var (
	cfgFile  string
	logLevel string
)

func main() {
	// A .env next to the binary is a convenience for development;
	// missing is fine.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "mailtriage",
		Short:        "Inbox triage daemon",
		Long:         "mailtriage polls a mailbox for unread messages, classifies each one (spam, notification, needs reply), sends drafted replies where needed, and marks messages read so nothing is processed twice.",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(
		&cfgFile, "config", model.DefaultConfigPath(), "Path to the config file",
	)
	cmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "info", "Log level (debug|info|warn|error)",
	)

	cmd.AddCommand(
		newRunCmd(),
		newOnceCmd(),
		newAuthCmd(),
		newConfigCmd(),
		newSecretCmd(),
		newVersionCmd(),
	)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("mailtriage %s\n", version)
		},
	}
}
