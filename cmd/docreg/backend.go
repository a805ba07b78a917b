package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.io/infrasutra/docreg/internal/config"
	"github.io/infrasutra/docreg/internal/documents"
	"github.io/infrasutra/docreg/internal/sheets"
	"github.io/infrasutra/docreg/internal/store"
	"github.io/infrasutra/docreg/internal/workbook"
)

// openBackend returns the workbook opener selected by cfg.Backend and a
// function releasing its resources.
func openBackend(ctx context.Context, cfg config.Config, logger *slog.Logger) (workbook.Opener, func(), error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		db, err := openLocalStore(ctx, cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		tabs, err := db.Worksheets(ctx)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		logger.Info("using sqlite workbook", "path", cfg.DBPath, "worksheets", tabs)
		return workbook.Static(db), func() { _ = db.Close() }, nil
	case config.BackendGoogle:
		connector := sheets.NewConnector(tokenProvider(cfg, logger), cfg.SpreadsheetName, cfg.SpreadsheetID, logger)
		logger.Info("using google spreadsheet", "name", cfg.SpreadsheetName, "id", cfg.SpreadsheetID)
		return connector, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func openLocalStore(ctx context.Context, path string) (*store.Store, error) {
	db, err := store.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := db.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	tabs := map[string][]string{
		documents.SendersTab:    documents.ReferenceHeader,
		documents.RecipientsTab: documents.ReferenceHeader,
	}
	for _, t := range documents.Types() {
		tabs[string(t)] = documents.Header
	}
	for name, header := range tabs {
		if err := db.EnsureWorksheet(ctx, name, header); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return db, nil
}

func tokenProvider(cfg config.Config, logger *slog.Logger) sheets.TokenProvider {
	if cfg.ServiceAccountFile != "" {
		return &sheets.ServiceAccountProvider{KeyFile: cfg.ServiceAccountFile}
	}
	return fileTokenProvider(cfg, logger)
}

func fileTokenProvider(cfg config.Config, logger *slog.Logger) *sheets.FileTokenProvider {
	return &sheets.FileTokenProvider{
		SecretFile: cfg.ClientSecretFile,
		TokenFile:  cfg.TokenFile,
		Prompt:     terminalPrompt,
		Logger:     logger,
	}
}
