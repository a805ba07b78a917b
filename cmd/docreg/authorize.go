package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.io/infrasutra/docreg/internal/sheets"
)

func newAuthorizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "authorize",
		Short: "Run the Google consent flow and store token.json",
		Long: `authorize reads client_secret.json, prints the consent URL and
waits for the authorization code. The resulting token is written to
token.json and refreshed tokens are saved back by the server.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig(cmd)
			logger := newLogger(cfg.LogLevel)
			ctx := cmd.Context()

			provider := fileTokenProvider(cfg, logger)
			oauthCfg, err := provider.Config()
			if err != nil {
				return err
			}
			if _, err := provider.Authorize(ctx, oauthCfg); err != nil {
				return err
			}

			connector := sheets.NewConnector(provider, cfg.SpreadsheetName, cfg.SpreadsheetID, logger)
			spreadsheet, err := connector.Spreadsheet(ctx)
			if err != nil {
				return fmt.Errorf("open spreadsheet: %w", err)
			}
			color.New(color.FgGreen).Printf("Token guardado en %s\n", cfg.TokenFile)
			fmt.Printf("Hoja de cálculo %q: %s\n", cfg.SpreadsheetName, spreadsheet.ID())
			return nil
		},
	}
}
