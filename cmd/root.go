// Package cmd is the command-line surface of the reconciler.
package cmd

import (
	"fmt"
	"net/http"
	"os"

	binance "github.com/adshao/go-binance/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/txrecon/txrecon/config"
	"github.com/txrecon/txrecon/internal/adapters"
	"github.com/txrecon/txrecon/internal/domain"
	"github.com/txrecon/txrecon/internal/pipeline"
	"github.com/txrecon/txrecon/internal/pricing"
	"github.com/txrecon/txrecon/internal/registry"
	"github.com/txrecon/txrecon/internal/storage/audit"
)

var (
	cfgFile    string
	verbose    bool
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "txrecon",
	Short: "Verify cryptocurrency transactions against on-chain data and cross-checked prices",
	Long: `txrecon retrieves a transaction from its chain's public explorer or RPC
endpoint, normalizes it across UTXO, EVM and balance-diff chains, and
values it with prices reconciled from several independent sources.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to yaml config")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "machine-readable output")
}

// app bundles the wired services behind one close call.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	store    *registry.SQLiteStore
	registry *registry.Service
	resolver *pricing.Resolver
	journal  *audit.Journal
	verifier *pipeline.Verifier
}

func newApp() (*app, error) {
	cfg, err := config.Get(cfgFile)
	if err != nil {
		return nil, err
	}

	logger, err := newLogger()
	if err != nil {
		return nil, err
	}

	store, err := registry.OpenSQLite(cfg.DBPath)
	if err != nil {
		logger.Sync()
		return nil, fmt.Errorf("open chain store: %w", err)
	}
	reg := registry.New(store, logger)

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	sources := []pricing.Source{
		pricing.NewCandleSource(binance.NewClient("", ""), cfg.Fiat),
		pricing.NewAggregatorSource(cfg.CryptoCompareURL, cfg.CryptoCompareKey, cfg.Fiat, httpClient, nil),
		pricing.NewRangeSource(cfg.CoinGeckoURL, cfg.CoinGeckoKey, cfg.Fiat, httpClient),
	}
	live := pricing.NewRangeSource(cfg.CoinGeckoURL, cfg.CoinGeckoKey, cfg.Fiat, httpClient)
	resolver := pricing.NewResolver(sources, live, cfg.Fiat, logger, nil)

	journal, err := audit.NewJournal(cfg.WalDir)
	if err != nil {
		store.Close()
		logger.Sync()
		return nil, fmt.Errorf("open audit journal: %w", err)
	}

	verifier := pipeline.New(reg, resolver,
		func(kind domain.AdapterKind) (adapters.Adapter, error) {
			return adapters.ForKind(kind, httpClient)
		},
		logger,
		pipeline.WithJournal(journal),
		pipeline.WithCurrency(cfg.Fiat))

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		registry: reg,
		resolver: resolver,
		journal:  journal,
		verifier: verifier,
	}, nil
}

func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

func (a *app) close() {
	a.journal.Close()
	a.store.Close()
	a.logger.Sync()
}
