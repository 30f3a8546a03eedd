package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/phishfinder/backend/internal/application"
	"github.com/phishfinder/backend/internal/ports"
)

var (
	whoisEmailID string
	whoisRefresh bool
)

var dnsCmd = &cobra.Command{
	Use:   "dns [domain]",
	Short: "Resolve SPF, DKIM and DMARC records for a domain",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		container, err := buildCLIContainer()
		if err != nil {
			return err
		}
		return container.Invoke(func(logger *zap.Logger, resolver *application.AuthenticationResolver, store ports.Storage, c ports.Cache) error {
			defer logger.Sync()
			defer store.Close()
			defer c.Stop()

			auth, err := resolver.ResolveDomain(context.Background(), args[0])
			if err != nil {
				return err
			}
			return printJSON(auth)
		})
	},
}

var whoisCmd = &cobra.Command{
	Use:   "whois [domain]",
	Short: "Look up WHOIS registration data for a domain",
	Long: `Look up WHOIS registration data for the registrable root of a domain.

Cached data younger than whois.cache_ttl is returned unless --refresh is given.
With --email the data is also attached to that stored email.`,
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		container, err := buildCLIContainer()
		if err != nil {
			return err
		}
		return container.Invoke(func(logger *zap.Logger, whois *application.WhoisService, store ports.Storage) error {
			defer logger.Sync()
			defer store.Close()

			ctx := context.Background()
			if whoisRefresh {
				record, err := whois.Refresh(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(record)
			}
			result, err := whois.Lookup(ctx, args[0], whoisEmailID)
			if err != nil {
				return err
			}
			return printJSON(result)
		})
	},
}

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Run one pass of pending sender profile updates and risk scoring",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		container, err := buildCLIContainer()
		if err != nil {
			return err
		}
		return container.Invoke(func(logger *zap.Logger, backfill *application.BackfillService, store ports.Storage) error {
			defer logger.Sync()
			defer store.Close()

			report, err := backfill.RunOnce(context.Background())
			if err != nil {
				return err
			}
			return printJSON(report)
		})
	},
}

func init() {
	rootCmd.AddCommand(dnsCmd, whoisCmd, backfillCmd)

	whoisCmd.Flags().StringVar(&whoisEmailID, "email", "", "Attach the result to this stored email id")
	whoisCmd.Flags().BoolVar(&whoisRefresh, "refresh", false, "Bypass the cache and fetch fresh data")
}
