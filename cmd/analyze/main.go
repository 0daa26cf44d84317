// Package main runs one holder analysis from the command line and prints the
// event stream as JSON lines. It also manages the stored excluded-address list.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"solana-holder-scan/internal/app"
	"solana-holder-scan/internal/config"
	"solana-holder-scan/internal/domain"
	"solana-holder-scan/internal/observability"
	"solana-holder-scan/internal/solana"
	"solana-holder-scan/internal/storage"
	"solana-holder-scan/internal/stream"
)

var (
	cfgPath     string
	priceSource string
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Warn().Err(err).Msg("failed to load .env file")
	}
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "holder-scan <mint>",
		Short:         "Analyze the holders of a Solana token mint",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runAnalyze,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&cfgPath, "config", "", "optional YAML config file")
	pf.String("log-level", "warn", "log level")
	pf.String("log-format", "console", "log format: json or console")
	pf.String("postgres-dsn", "", "PostgreSQL DSN for the excluded-address list")

	f := cmd.Flags()
	f.StringVar(&priceSource, "price-source", "", "coingecko, jupiter or auto")
	f.Int("min-accounts", 0, "minimum token accounts per wallet")
	f.Float64("max-sol-balance", 0, "maximum SOL balance per wallet (0 disables)")
	f.Bool("require-activity", false, "require recent pump.fun activity")

	cmd.AddCommand(exclusionsCmd())
	return cmd
}

// setup loads configuration, configures logging to stderr and builds the app.
func setup(ctx context.Context, cmd *cobra.Command) (*config.Config, *app.App, error) {
	cfg, err := config.Load(cfgPath, cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	logger := observability.SetupLoggerTo(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return cfg, a, nil
}

// setupStore is setup for commands that only make sense against Postgres.
func setupStore(cmd *cobra.Command) (*app.App, error) {
	cfg, a, err := setup(cmd.Context(), cmd)
	if err != nil {
		return nil, err
	}
	if cfg.Exclusions.PostgresDSN == "" {
		a.Close()
		return nil, errors.New("exclusions commands need --postgres-dsn or EXCLUSIONS_POSTGRES_DSN")
	}
	return a, nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mint := args[0]
	if err := solana.ValidatePublicKey(mint); err != nil {
		return fmt.Errorf("invalid mint: %w", err)
	}

	_, a, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	req := domain.AnalysisRequest{Mint: mint, PriceSource: priceSource}
	flags := cmd.Flags()
	if flags.Changed("min-accounts") {
		n, _ := flags.GetInt("min-accounts")
		req.MinAccounts = &n
	}
	if flags.Changed("max-sol-balance") {
		v, _ := flags.GetFloat64("max-sol-balance")
		req.MaxSolBalance = &v
	}
	if flags.Changed("require-activity") {
		b, _ := flags.GetBool("require-activity")
		req.RequireActivity = &b
	}

	return a.Orchestrator.Run(ctx, req, stream.NewJSONLines(cmd.OutOrStdout()))
}

func exclusionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exclusions",
		Short: "Manage the stored excluded-address list",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <address> [label]",
		Short: "Add an address to the excluded list",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := solana.ValidatePublicKey(args[0]); err != nil {
				return fmt.Errorf("invalid address: %w", err)
			}
			a, err := setupStore(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			e := storage.ExcludedAddress{Address: args[0]}
			if len(args) == 2 {
				e.Label = args[1]
			}
			err = a.Exclusions.Insert(cmd.Context(), e)
			if errors.Is(err, storage.ErrDuplicateKey) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is already excluded\n", e.Address)
				return nil
			}
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored excluded addresses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setupStore(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.Exclusions.List(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ADDRESS\tLABEL")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\n", e.Address, e.Label)
			}
			return tw.Flush()
		},
	})

	return cmd
}
