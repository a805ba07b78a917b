package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.io/infrasutra/docreg/internal/api"
	"github.io/infrasutra/docreg/internal/auth"
	"github.io/infrasutra/docreg/internal/config"
	"github.io/infrasutra/docreg/internal/documents"
	"github.io/infrasutra/docreg/internal/notify"
	"github.io/infrasutra/docreg/internal/session"
	"github.io/infrasutra/docreg/internal/sse"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the registration web server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), loadConfig(cmd))
		},
	}
	cmd.Flags().Int("port", 8501, "HTTP port")
	cmd.Flags().String("backend", config.BackendGoogle, "store backend: google or sqlite")
	return cmd
}

func serve(ctx context.Context, cfg config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := newLogger(cfg.LogLevel)

	opener, closeBackend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open backend: %w", err)
	}
	defer closeBackend()

	cookies, err := auth.NewCookies(cfg.AuthSecret, 24*time.Hour)
	if err != nil {
		return fmt.Errorf("init auth: %w", err)
	}
	if cfg.AuthSecret == "" {
		logger.Warn("AUTH_SECRET not set; sessions reset on restart")
	}

	sessions := session.NewManager(cfg.SessionTimeout)
	authenticator := auth.NewAuthenticator(auth.DefaultAccounts(), sessions, logger)
	hub := sse.NewHub()

	opts := []documents.Option{documents.WithListener(hub)}
	if cfg.SMTP.Enabled() {
		opts = append(opts, documents.WithListener(notify.NewMailer(cfg.SMTP, logger)))
		logger.Info("registration receipts enabled", "relay", cfg.SMTP.Addr, "to", cfg.SMTP.To)
	}
	docs := documents.NewService(opener, logger, opts...)

	apiServer, err := api.NewServer(cfg, sessions, authenticator, cookies, docs, hub, logger)
	if err != nil {
		return fmt.Errorf("init http server: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go sessions.Reap(ctx, cfg.ReapInterval, cfg.SessionRetention, logger)

	httpAddr := fmt.Sprintf(":%d", cfg.HTTPPort)
	httpSrv := &http.Server{
		Addr:              httpAddr,
		Handler:           apiServer,
		ReadHeaderTimeout: 10 * time.Second,
	}
	httpSrv.RegisterOnShutdown(apiServer.CloseStreams)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", httpAddr, "session_timeout", cfg.SessionTimeout)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown http", "error", err)
	}
	return nil
}
