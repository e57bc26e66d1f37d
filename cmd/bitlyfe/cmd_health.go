package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tecbitlyfe/bitlyfe/internal/provider"
)

const probePrompt = "Reply with the single word: pong"

// maxConcurrentProbes bounds outbound probe calls.
const maxConcurrentProbes = 4

func healthCmd() *cobra.Command {
	var probe bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check the database and provider configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()
			allOK := true

			st, err := newStore(logger)
			if err != nil {
				fmt.Printf("SQLite: FAIL (%v)\n", err)
				allOK = false
			} else {
				defer func() { _ = st.Close() }()
				if err := st.Ping(ctx); err != nil {
					fmt.Printf("SQLite: FAIL (%v)\n", err)
					allOK = false
				} else {
					fmt.Printf("SQLite: OK (%s)\n", cfg.Database.Path)
				}
			}

			providers, err := provider.FromConfig(cfg.Providers, logger)
			if err != nil {
				return fmt.Errorf("health: building providers: %w", err)
			}

			var probes []error
			if probe {
				probes = probeProviders(ctx, providers, cfg.Providers.CallTimeout)
			}

			configured := 0
			for i, p := range providers {
				if !p.Configured() {
					fmt.Printf("%-11s not configured (set %s)\n", p.Name()+":", p.CredentialKey())
					continue
				}
				configured++
				switch {
				case !probe:
					fmt.Printf("%-11s configured (%s)\n", p.Name()+":", p.Model())
				case probes[i] != nil:
					fmt.Printf("%-11s FAIL (%v)\n", p.Name()+":", probes[i])
				default:
					fmt.Printf("%-11s OK (%s)\n", p.Name()+":", p.Model())
				}
			}
			if configured == 0 {
				fmt.Println("Providers: FAIL (no provider is configured)")
				allOK = false
			}

			if !allOK {
				return fmt.Errorf("one or more health checks failed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&probe, "probe", false, "send a tiny prompt to every configured provider")
	return cmd
}

// probeProviders calls every configured provider concurrently. Results are
// indexed like providers; unconfigured entries stay nil.
func probeProviders(ctx context.Context, providers []provider.Provider, timeout time.Duration) []error {
	results := make([]error, len(providers))
	var g errgroup.Group
	g.SetLimit(maxConcurrentProbes)
	for i, p := range providers {
		if !p.Configured() {
			continue
		}
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			_, err := p.Complete(callCtx, "You are a health check.", probePrompt)
			results[i] = err
			return nil
		})
	}
	_ = g.Wait()
	return results
}
