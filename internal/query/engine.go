package query

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"acrossScope/internal/across"
	"acrossScope/internal/chain"
	"acrossScope/internal/table"
)

const (
	// DefaultBlockRange is the number of trailing blocks scanned per query.
	DefaultBlockRange uint64 = 2_500_000
	// DefaultBatchSize bounds each eth_getLogs call.
	DefaultBatchSize uint64 = 2000
)

// Request is one event query against one contract.
type Request struct {
	Event      across.EventDescriptor
	Contract   common.Address
	BlockRange uint64
	TxData     bool
}

// Engine executes event queries and returns decoded rows. It never persists results.
type Engine interface {
	Execute(ctx context.Context, req Request) (*table.Table, error)
	Close()
}

// LogSource is the chain access an RPCEngine needs. *chain.Client implements it.
type LogSource interface {
	ChainID(ctx context.Context) (*big.Int, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
	TransactionMeta(ctx context.Context, txHash, blockHash common.Hash, txIndex uint) (chain.TxMeta, error)
}

var (
	_ LogSource = (*chain.Client)(nil)
	_ Engine    = (*RPCEngine)(nil)
)

// Options tunes RPC access.
type Options struct {
	BatchSize    uint64
	MaxRetries   int
	RetryBackoff time.Duration
}

// RPCEngine answers queries with eth_getLogs over a JSON-RPC endpoint.
type RPCEngine struct {
	source LogSource
	opts   Options
	logger *zap.Logger
	close  func()
}

// NewRPCEngine builds an engine over an existing log source.
func NewRPCEngine(source LogSource, opts Options, logger *zap.Logger) *RPCEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = DefaultBatchSize
	}
	return &RPCEngine{source: source, opts: opts, logger: logger}
}

// Dial connects to rpcURL and returns an engine that owns the connection.
func Dial(ctx context.Context, rpcURL string, opts Options, logger *zap.Logger) (*RPCEngine, error) {
	client, err := chain.NewClient(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}
	engine := NewRPCEngine(client, opts, logger)
	engine.close = client.Close
	return engine, nil
}

// Close releases the underlying connection if the engine owns one.
func (e *RPCEngine) Close() {
	if e.close != nil {
		e.close()
	}
}

// Execute scans the trailing req.BlockRange blocks for req.Event logs emitted by req.Contract.
func (e *RPCEngine) Execute(ctx context.Context, req Request) (*table.Table, error) {
	if e.source == nil {
		return nil, fmt.Errorf("log source is nil")
	}
	if req.Event.Name == "" {
		return nil, fmt.Errorf("event descriptor is required")
	}
	if req.Contract == (common.Address{}) {
		return nil, fmt.Errorf("contract address is required")
	}

	columns, err := ResultColumns(req.Event, req.TxData)
	if err != nil {
		return nil, err
	}
	result := table.New(columns)

	var chainID *big.Int
	err = withRetry(ctx, e.opts.MaxRetries, e.opts.RetryBackoff, func(ctx context.Context) error {
		var err error
		chainID, err = e.source.ChainID(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get chain id: %w", err)
	}
	if chainID == nil {
		return nil, fmt.Errorf("get chain id: empty response")
	}
	if !chainID.IsUint64() {
		return nil, fmt.Errorf("chain id does not fit in uint64: %s", chainID)
	}

	var latest uint64
	err = withRetry(ctx, e.opts.MaxRetries, e.opts.RetryBackoff, func(ctx context.Context) error {
		var err error
		latest, err = e.source.LatestBlockNumber(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get latest block: %w", err)
	}

	window, err := Window(latest, req.BlockRange)
	if err != nil {
		return nil, err
	}
	ranges, err := SplitRange(window.From, window.To, e.opts.BatchSize)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("query window",
		zap.String("event", req.Event.Name),
		zap.String("contract", req.Contract.Hex()),
		zap.Uint64("chain_id", chainID.Uint64()),
		zap.Uint64("from", window.From),
		zap.Uint64("to", window.To),
		zap.Int("batches", len(ranges)),
	)

	topic0 := req.Event.Topic0()
	seen := make(map[string]struct{})
	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		logs, err := e.filterLogsWithRetry(ctx, blockRange, req.Contract, topic0)
		if err != nil {
			return nil, fmt.Errorf("filter logs %d-%d: %w", blockRange.From, blockRange.To, err)
		}

		for _, log := range logs {
			if log.Removed || log.Address != req.Contract {
				continue
			}
			if len(log.Topics) == 0 || log.Topics[0] != topic0 {
				continue
			}
			id := fmt.Sprintf("%d:%s:%d", log.BlockNumber, log.TxHash.Hex(), log.Index)
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}

			row, err := e.buildRow(ctx, chainID.Uint64(), req, log)
			if err != nil {
				return nil, fmt.Errorf("window %d-%d batch %d-%d after %d rows: block %d tx %s log %d: %w",
					window.From, window.To, blockRange.From, blockRange.To, result.NumRows(),
					log.BlockNumber, log.TxHash.Hex(), log.Index, err)
			}
			if err := result.Append(row); err != nil {
				return nil, err
			}
		}

		if len(logs) > 0 {
			e.logger.Debug("batch complete",
				zap.String("event", req.Event.Name),
				zap.Int("logs", len(logs)),
				zap.Uint64("from", blockRange.From),
				zap.Uint64("to", blockRange.To),
			)
		}
	}

	return result, nil
}

func (e *RPCEngine) buildRow(ctx context.Context, chainID uint64, req Request, log types.Log) ([]any, error) {
	decoded, err := decodeLog(req.Event, log)
	if err != nil {
		return nil, err
	}

	var ts uint64
	err = withRetry(ctx, e.opts.MaxRetries, e.opts.RetryBackoff, func(ctx context.Context) error {
		var err error
		ts, err = e.source.BlockTimestamp(ctx, log.BlockNumber)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("block timestamp: %w", err)
	}

	row := make([]any, 0, len(metadataColumns)+len(decoded)+len(txColumns))
	row = append(row,
		chainID,
		log.BlockNumber,
		log.BlockHash.Hex(),
		ts,
		log.TxHash.Hex(),
		uint64(log.TxIndex),
		uint64(log.Index),
		log.Address.Hex(),
	)
	row = append(row, decoded...)

	if req.TxData {
		var meta chain.TxMeta
		err := withRetry(ctx, e.opts.MaxRetries, e.opts.RetryBackoff, func(ctx context.Context) error {
			var err error
			meta, err = e.source.TransactionMeta(ctx, log.TxHash, log.BlockHash, log.TxIndex)
			return err
		})
		if err != nil {
			return nil, err
		}
		row = append(row, meta.From, meta.To, meta.Value, meta.Gas, meta.GasPrice)
	}
	return row, nil
}

func (e *RPCEngine) filterLogsWithRetry(ctx context.Context, blockRange BlockRange, contract common.Address, topic0 common.Hash) ([]types.Log, error) {
	var logs []types.Log
	err := withRetry(ctx, e.opts.MaxRetries, e.opts.RetryBackoff, func(ctx context.Context) error {
		var err error
		logs, err = e.source.FilterLogs(ctx, blockRange.From, blockRange.To, []common.Address{contract}, []common.Hash{topic0})
		if err != nil {
			e.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))
		}
		return err
	})
	return logs, err
}
