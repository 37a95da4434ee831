package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"acrossScope/internal/across"
	"acrossScope/internal/model"
	"acrossScope/internal/query"
	"acrossScope/internal/storage"
)

// ErrPersist marks filesystem failures. They stop the run.
var ErrPersist = errors.New("persist output")

// EngineFactory opens a query engine for one client.
type EngineFactory func(ctx context.Context, client across.ClientConfig) (query.Engine, error)

// Config holds the fixed inputs of a run.
type Config struct {
	Clients    []across.ClientConfig
	OutDir     string
	BlockRange uint64
	TxData     bool
}

// Extractor runs one sequential pass over the configured clients.
type Extractor struct {
	cfg      Config
	registry *across.Registry
	dial     EngineFactory
	writer   storage.Writer
	logger   *zap.Logger
	now      func() time.Time
}

// New builds an Extractor with its dependencies.
func New(cfg Config, registry *across.Registry, dial EngineFactory, writer storage.Writer, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BlockRange == 0 {
		cfg.BlockRange = query.DefaultBlockRange
	}
	return &Extractor{
		cfg:      cfg,
		registry: registry,
		dial:     dial,
		writer:   writer,
		logger:   logger,
		now:      time.Now,
	}
}

// Run extracts eventName for every client. Query failures are recorded in the summary
// and the pass continues; a missing descriptor or a filesystem failure is returned as an error.
func (e *Extractor) Run(ctx context.Context, eventName string) (model.Summary, error) {
	summary := model.Summary{
		RunID:     uuid.NewString(),
		Event:     eventName,
		StartedAt: e.now().UTC(),
	}
	finish := func(err error) (model.Summary, error) {
		summary.FinishedAt = e.now().UTC()
		return summary, err
	}

	if e.dial == nil {
		return finish(fmt.Errorf("engine factory is nil"))
	}
	if e.writer == nil {
		return finish(fmt.Errorf("writer is nil"))
	}

	descriptor, err := e.registry.Lookup(eventName)
	if err != nil {
		return finish(err)
	}

	for _, client := range e.cfg.Clients {
		if err := ctx.Err(); err != nil {
			return finish(err)
		}

		outcome, err := e.extractClient(ctx, descriptor, client)
		summary.Outcomes = append(summary.Outcomes, outcome)
		if err != nil {
			return finish(err)
		}
	}

	summary, err = finish(nil)
	e.logger.Info("extraction complete",
		zap.String("run_id", summary.RunID),
		zap.String("event", eventName),
		zap.Int("clients", len(summary.Outcomes)),
		zap.Int("succeeded", summary.Succeeded()),
		zap.Int("empty", summary.Empty()),
		zap.Int("failed", summary.Failed()),
		zap.Int("rows", summary.Rows()),
		zap.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)),
	)
	return summary, err
}

func (e *Extractor) extractClient(ctx context.Context, descriptor across.EventDescriptor, client across.ClientConfig) (model.Outcome, error) {
	started := e.now()
	outcome := model.Outcome{Client: client.Name, Event: descriptor.Name}
	done := func(status model.Status, err error) model.Outcome {
		outcome.Status = status
		outcome.Err = err
		outcome.Duration = e.now().Sub(started)
		return outcome
	}

	logger := e.logger.With(zap.String("client", client.Name), zap.String("event", descriptor.Name))
	logger.Info("query start", zap.String("spoke_pool", client.SpokePool.Hex()))

	engine, err := e.dial(ctx, client)
	if err != nil {
		logger.Error("query failed", zap.Error(err))
		return done(model.StatusFailed, err), nil
	}
	defer engine.Close()

	result, err := engine.Execute(ctx, query.Request{
		Event:      descriptor,
		Contract:   client.SpokePool,
		BlockRange: e.cfg.BlockRange,
		TxData:     e.cfg.TxData,
	})
	if err != nil {
		logger.Error("query failed", zap.Error(err))
		return done(model.StatusFailed, err), nil
	}

	if result.IsEmpty() {
		logger.Info("no events found")
		return done(model.StatusEmpty, nil), nil
	}

	outcome.Rows, outcome.Columns = result.Shape()

	dir := storage.EventDir(e.cfg.OutDir, descriptor.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		err = fmt.Errorf("%w: create %s: %v", ErrPersist, dir, err)
		logger.Error("persist failed", zap.Error(err))
		return done(model.StatusFailed, err), err
	}

	path := storage.ArtifactPath(e.cfg.OutDir, descriptor.Name, client.Name, e.writer.Extension())
	if err := e.writer.WriteTable(path, result); err != nil {
		err = fmt.Errorf("%w: write %s: %v", ErrPersist, path, err)
		logger.Error("persist failed", zap.Error(err))
		return done(model.StatusFailed, err), err
	}
	outcome.Path = path

	logger.Info("events found",
		zap.Int("rows", outcome.Rows),
		zap.Int("columns", outcome.Columns),
		zap.String("path", path),
	)
	return done(model.StatusSuccess, nil), nil
}
