package main

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/tecbitlyfe/bitlyfe/internal/api"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP/JSON API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			a, err := newApp(cmd.Context(), logger)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer func() { _ = a.Close() }()

			srv := api.NewServer(a.st, a.chat, a.personas, a.disp, api.Options{
				AuthToken: cfg.API.AuthToken,
				StaticDir: cfg.API.StaticDir,
				Version:   version,
			}, logger)

			if cfg.API.AuthToken == "" {
				logger.Warn("HTTP API: auth is DISABLED; set BITLYFE_API_AUTH_TOKEN or api.auth_token for production use")
			}
			for _, st := range a.disp.Status() {
				if !st.Configured {
					logger.Info("provider not configured", "provider", st.Name, "missing", st.CredentialKey)
				}
			}

			httpSrv := &http.Server{
				Addr:              cfg.API.ListenAddr,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       30 * time.Second,
				WriteTimeout:      cfg.Providers.ChainTimeout + 30*time.Second,
				IdleTimeout:       120 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("HTTP API server starting", "addr", cfg.API.ListenAddr)
				if listenErr := httpSrv.ListenAndServe(); listenErr != nil && !errors.Is(listenErr, http.ErrServerClosed) {
					errCh <- fmt.Errorf("serve: HTTP server: %w", listenErr)
				}
				close(errCh)
			}()

			select {
			case <-cmd.Context().Done():
				logger.Info("shutting down")
			case startErr := <-errCh:
				if startErr != nil {
					return startErr
				}
				return nil
			}

			const shutdownTimeout = 10 * time.Second
			if shutdownErr := api.Shutdown(httpSrv, shutdownTimeout); shutdownErr != nil {
				return fmt.Errorf("serve: graceful shutdown: %w", shutdownErr)
			}

			// Drain the errCh in case ListenAndServe returned after Shutdown.
			if startErr := <-errCh; startErr != nil {
				return startErr
			}

			return nil
		},
	}
	return cmd
}
