package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"acrossScope/internal/across"
	"acrossScope/internal/config"
	"acrossScope/internal/extract"
	"acrossScope/internal/model"
	"acrossScope/internal/query"
	"acrossScope/internal/storage"
	"acrossScope/internal/storage/postgres"
)

func runExtract(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	registry, err := across.DefaultRegistry()
	if err != nil {
		return err
	}

	writer, err := storage.NewWriter(cfg.Format)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var ledger *postgres.Store
	if cfg.PGDSN != "" {
		ledger, err = postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return err
		}
		defer ledger.Close()
		if err := ledger.EnsureSchema(ctx); err != nil {
			return err
		}
	}

	logger.Info("extractor start",
		zap.String("event", cfg.Event),
		zap.Int("clients", len(cfg.Clients)),
		zap.String("out_dir", cfg.OutDir),
		zap.String("format", cfg.Format),
		zap.Uint64("block_range", cfg.BlockRange),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.Bool("tx_data", cfg.TxData),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
	)

	extractor := extract.New(extract.Config{
		Clients:    cfg.Clients,
		OutDir:     cfg.OutDir,
		BlockRange: cfg.BlockRange,
		TxData:     cfg.TxData,
	}, registry, engineFactory(cfg, logger), writer, logger)

	summary, runErr := extractor.Run(ctx, cfg.Event)

	if ledger != nil {
		if err := recordRun(ledger, summary); err != nil {
			logger.Warn("run ledger update failed", zap.Error(err))
		}
	}

	if runErr != nil {
		return runErr
	}
	if cfg.FailOnError && summary.Failed() > 0 {
		return fmt.Errorf("%d of %d clients failed", summary.Failed(), len(summary.Outcomes))
	}
	return nil
}

func engineFactory(cfg config.Config, logger *zap.Logger) extract.EngineFactory {
	opts := query.Options{
		BatchSize:    cfg.BatchSize,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}
	return func(ctx context.Context, client across.ClientConfig) (query.Engine, error) {
		engine, err := query.Dial(ctx, client.RPCURL, opts, logger.With(zap.String("client", client.Name)))
		if err != nil {
			return nil, err
		}
		return engine, nil
	}
}

// recordRun uses its own context so an interrupted run still lands in the ledger.
func recordRun(ledger *postgres.Store, summary model.Summary) error {
	if len(summary.Outcomes) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ledger.RecordRun(ctx, summary); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
