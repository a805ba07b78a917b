package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.io/infrasutra/docreg/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "docreg",
		Short: "docreg - document registration form backed by a spreadsheet",
		Long: `docreg serves a small web form to register incoming documents
(oficios and hojas informativas) as rows of a Google spreadsheet or a
local SQLite file.

Running it without a subcommand starts the web server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("app-dir", "", "directory holding client_secret.json, token.json and the database")

	serve := newServeCmd()
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())

	root.AddCommand(serve, newAuthorizeCmd(), newSeedCmd())
	return root
}

func loadConfig(cmd *cobra.Command) config.Config {
	return config.Load(cmd.Flags())
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
