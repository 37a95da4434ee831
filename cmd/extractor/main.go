package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"acrossScope/internal/across"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "extractor",
		Short:        "Across spoke pool event extractor",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Query the event on every configured chain and write non-empty results",
		RunE:  runExtract,
	}

	runCmd.Flags().String("event", across.EventV3FundsDeposited, "event descriptor name")
	runCmd.Flags().String("out-dir", "data/across", "output base directory")
	runCmd.Flags().String("format", "parquet", "output format (parquet, jsonl)")
	runCmd.Flags().Uint64("block-range", 2_500_000, "trailing blocks scanned per chain")
	runCmd.Flags().Uint64("batch-size", 2000, "blocks per eth_getLogs call")
	runCmd.Flags().Bool("tx-data", true, "attach transaction fields to each event")
	runCmd.Flags().Int("max-retries", 5, "maximum retry attempts per RPC call")
	runCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	runCmd.Flags().StringSlice("client", nil, "only query these clients (comma-separated names)")
	runCmd.Flags().String("rpc-overrides", "", "per-client rpc urls (comma-separated name=url)")
	runCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for the run ledger")
	runCmd.Flags().Bool("fail-on-error", false, "exit non-zero when any client fails")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd)

	eventsCmd := &cobra.Command{
		Use:   "events",
		Short: "List registered event descriptors",
		RunE:  runListEvents,
	}
	root.AddCommand(eventsCmd)

	clientsCmd := &cobra.Command{
		Use:   "clients",
		Short: "List the resolved client configuration",
		RunE:  runListClients,
	}
	clientsCmd.Flags().StringSlice("client", nil, "only list these clients (comma-separated names)")
	clientsCmd.Flags().String("rpc-overrides", "", "per-client rpc urls (comma-separated name=url)")
	root.AddCommand(clientsCmd)

	return root
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
