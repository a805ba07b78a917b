package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.io/infrasutra/docreg/internal/documents"
)

func newSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed remitentes|destinatarios NOMBRE [CARGO]",
		Short: "Append an entry to a reference tab",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			tab, err := referenceTab(args[0])
			if err != nil {
				return err
			}
			row := []string{strings.TrimSpace(args[1]), ""}
			if len(args) == 3 {
				row[1] = strings.TrimSpace(args[2])
			}

			cfg := loadConfig(cmd)
			logger := newLogger(cfg.LogLevel)
			ctx := cmd.Context()

			opener, closeBackend, err := openBackend(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer closeBackend()

			wb, err := opener.Open(ctx)
			if err != nil {
				return fmt.Errorf("open workbook: %w", err)
			}
			if err := wb.AppendRow(ctx, tab, row); err != nil {
				return fmt.Errorf("append %s: %w", tab, err)
			}
			color.New(color.FgGreen).Printf("%s: %s\n", tab, documents.Label(row))
			return nil
		},
	}
	cmd.Flags().String("backend", "", "store backend: google or sqlite")
	return cmd
}

func referenceTab(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "remitentes":
		return documents.SendersTab, nil
	case "destinatarios":
		return documents.RecipientsTab, nil
	default:
		return "", fmt.Errorf("unknown reference tab %q", name)
	}
}
