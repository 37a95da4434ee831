package query

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"acrossScope/internal/across"
	"acrossScope/internal/chain"
	"acrossScope/internal/table"
)

type fakeSource struct {
	chainID   int64
	latest    uint64
	logs      []types.Log
	filterErr error
	txErr     error
	noChainID bool

	filterCalls int
	ranges      []BlockRange
}

func (f *fakeSource) ChainID(context.Context) (*big.Int, error) {
	if f.noChainID {
		return nil, nil
	}
	return big.NewInt(f.chainID), nil
}

func (f *fakeSource) LatestBlockNumber(context.Context) (uint64, error) {
	return f.latest, nil
}

func (f *fakeSource) BlockTimestamp(_ context.Context, number uint64) (uint64, error) {
	return 1_700_000_000 + number, nil
}

func (f *fakeSource) FilterLogs(_ context.Context, from, to uint64, _ []common.Address, _ []common.Hash) ([]types.Log, error) {
	f.filterCalls++
	f.ranges = append(f.ranges, BlockRange{From: from, To: to})
	if f.filterErr != nil {
		return nil, f.filterErr
	}
	var out []types.Log
	for _, log := range f.logs {
		if log.BlockNumber >= from && log.BlockNumber <= to {
			out = append(out, log)
		}
	}
	return out, nil
}

func (f *fakeSource) TransactionMeta(_ context.Context, txHash, _ common.Hash, _ uint) (chain.TxMeta, error) {
	if f.txErr != nil {
		return chain.TxMeta{}, f.txErr
	}
	return chain.TxMeta{
		From:     "0x4444444444444444444444444444444444444444",
		To:       "0x5555555555555555555555555555555555555555",
		Value:    "0",
		Gas:      210000,
		GasPrice: "1000000000",
	}, nil
}

var (
	spokePool   = common.HexToAddress("0xe35e9842fceaCA96570B734083f4a58e8F7C5f2A")
	inputToken  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	outputToken = common.HexToAddress("0x2222222222222222222222222222222222222222")
	depositor   = common.HexToAddress("0x3333333333333333333333333333333333333333")
	recipient   = common.HexToAddress("0x6666666666666666666666666666666666666666")
)

func v3Descriptor(t *testing.T) across.EventDescriptor {
	t.Helper()
	registry, err := across.DefaultRegistry()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	d, err := registry.Lookup(across.EventV3FundsDeposited)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	return d
}

func depositLog(t *testing.T, d across.EventDescriptor, block uint64, logIndex uint, depositID uint32) types.Log {
	t.Helper()
	inputAmount, _ := new(big.Int).SetString("1000000000000000000000", 10)
	data, err := d.Event().Inputs.NonIndexed().Pack(
		inputToken,
		outputToken,
		inputAmount,
		big.NewInt(999_000),
		uint32(1_700_000_100),
		uint32(1_700_010_000),
		uint32(0),
		recipient,
		common.Address{},
		[]byte{0xca, 0xfe},
	)
	if err != nil {
		t.Fatalf("pack deposit: %v", err)
	}

	return types.Log{
		Address: spokePool,
		Topics: []common.Hash{
			d.Topic0(),
			common.BigToHash(big.NewInt(8453)),
			common.BigToHash(big.NewInt(int64(depositID))),
			common.BytesToHash(depositor.Bytes()),
		},
		Data:        data,
		BlockNumber: block,
		BlockHash:   common.HexToHash("0xb10c"),
		TxHash:      common.BigToHash(big.NewInt(int64(block))),
		TxIndex:     3,
		Index:       logIndex,
	}
}

func cell(t *testing.T, tbl *table.Table, row int, column string) any {
	t.Helper()
	idx, ok := tbl.ColumnIndex(column)
	if !ok {
		t.Fatalf("missing column %s", column)
	}
	return tbl.Rows[row][idx]
}

func TestRPCEngineExecuteDecodesDeposits(t *testing.T) {
	d := v3Descriptor(t)
	first := depositLog(t, d, 2_900_000, 1, 77)
	source := &fakeSource{
		chainID: 42161,
		latest:  3_000_000,
		logs: []types.Log{
			first,
			first,
			depositLog(t, d, 2_950_000, 4, 78),
		},
	}

	engine := NewRPCEngine(source, Options{BatchSize: 1_000_000, MaxRetries: 0}, zap.NewNop())
	result, err := engine.Execute(context.Background(), Request{
		Event:      d,
		Contract:   spokePool,
		BlockRange: DefaultBlockRange,
		TxData:     true,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	rows, cols := result.Shape()
	if rows != 2 {
		t.Fatalf("expected 2 rows after dedup, got %d", rows)
	}
	if cols != len(metadataColumns)+13+len(txColumns) {
		t.Fatalf("unexpected column count: %d", cols)
	}

	if source.ranges[0].From != 500_001 || source.ranges[len(source.ranges)-1].To != 3_000_000 {
		t.Fatalf("window mismatch: %+v", source.ranges)
	}
	if source.filterCalls != 3 {
		t.Fatalf("expected 3 batches, got %d", source.filterCalls)
	}

	checks := map[string]any{
		"chain_id":             uint64(42161),
		"block_number":         uint64(2_900_000),
		"block_timestamp":      uint64(1_700_000_000 + 2_900_000),
		"log_index":            uint64(1),
		"transaction_index":    uint64(3),
		"contract_address":     spokePool.Hex(),
		"input_token":          inputToken.Hex(),
		"output_token":         outputToken.Hex(),
		"input_amount":         "1000000000000000000000",
		"output_amount":        "999000",
		"destination_chain_id": uint64(8453),
		"deposit_id":           uint64(77),
		"quote_timestamp":      uint64(1_700_000_100),
		"exclusivity_deadline": uint64(0),
		"depositor":            depositor.Hex(),
		"recipient":            recipient.Hex(),
		"exclusive_relayer":    common.Address{}.Hex(),
		"message":              "0xcafe",
		"tx_from":              "0x4444444444444444444444444444444444444444",
		"tx_gas":               uint64(210000),
	}
	for column, want := range checks {
		if got := cell(t, result, 0, column); got != want {
			t.Fatalf("%s: got %v (%T), want %v (%T)", column, got, got, want, want)
		}
	}
	if got := cell(t, result, 1, "deposit_id"); got != uint64(78) {
		t.Fatalf("second deposit id mismatch: %v", got)
	}
}

func TestRPCEngineSkipsForeignAndRemovedLogs(t *testing.T) {
	d := v3Descriptor(t)
	removed := depositLog(t, d, 100, 1, 1)
	removed.Removed = true
	foreign := depositLog(t, d, 101, 1, 2)
	foreign.Address = common.HexToAddress("0x9999999999999999999999999999999999999999")
	otherTopic := depositLog(t, d, 102, 1, 3)
	otherTopic.Topics[0] = common.HexToHash("0x01")

	source := &fakeSource{chainID: 10, latest: 200, logs: []types.Log{removed, foreign, otherTopic}}
	engine := NewRPCEngine(source, Options{}, nil)

	result, err := engine.Execute(context.Background(), Request{Event: d, Contract: spokePool, BlockRange: DefaultBlockRange})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.IsEmpty() {
		t.Fatalf("expected empty result, got %d rows", result.NumRows())
	}
	if result.NumColumns() != len(metadataColumns)+13 {
		t.Fatalf("tx columns should be omitted without tx data: %d", result.NumColumns())
	}
}

func TestRPCEngineFilterFailure(t *testing.T) {
	d := v3Descriptor(t)
	source := &fakeSource{chainID: 1, latest: 10, filterErr: errors.New("429 too many requests")}
	engine := NewRPCEngine(source, Options{MaxRetries: 2, RetryBackoff: time.Millisecond}, zap.NewNop())

	_, err := engine.Execute(context.Background(), Request{Event: d, Contract: spokePool, BlockRange: 100})
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected filter error, got %v", err)
	}
	if source.filterCalls != 3 {
		t.Fatalf("expected 3 attempts, got %d", source.filterCalls)
	}
}

func TestRPCEngineDecodeFailure(t *testing.T) {
	d := v3Descriptor(t)
	bad := depositLog(t, d, 5, 0, 1)
	bad.Data = []byte{0x01}

	source := &fakeSource{chainID: 1, latest: 10, logs: []types.Log{bad}}
	engine := NewRPCEngine(source, Options{}, zap.NewNop())
	_, err := engine.Execute(context.Background(), Request{Event: d, Contract: spokePool, BlockRange: 100})
	if err == nil {
		t.Fatalf("expected decode error")
	}
	if !strings.Contains(err.Error(), "window 0-10 batch 0-10 after 0 rows") {
		t.Fatalf("expected window bounds in error, got %v", err)
	}
}

func TestRPCEngineEmptyChainID(t *testing.T) {
	d := v3Descriptor(t)
	engine := NewRPCEngine(&fakeSource{noChainID: true, latest: 10}, Options{}, zap.NewNop())
	if _, err := engine.Execute(context.Background(), Request{Event: d, Contract: spokePool, BlockRange: 100}); err == nil {
		t.Fatalf("expected chain id error")
	}
}

func TestRPCEngineTxMetaFailure(t *testing.T) {
	d := v3Descriptor(t)
	source := &fakeSource{chainID: 1, latest: 10, logs: []types.Log{depositLog(t, d, 5, 0, 1)}, txErr: errors.New("not found")}
	engine := NewRPCEngine(source, Options{RetryBackoff: time.Millisecond}, zap.NewNop())
	if _, err := engine.Execute(context.Background(), Request{Event: d, Contract: spokePool, BlockRange: 100, TxData: true}); err == nil {
		t.Fatalf("expected tx meta error")
	}
}

func TestRPCEngineRejectsInvalidRequest(t *testing.T) {
	d := v3Descriptor(t)
	engine := NewRPCEngine(&fakeSource{chainID: 1, latest: 10}, Options{}, nil)

	invalid := []Request{
		{Contract: spokePool, BlockRange: 100},
		{Event: d, BlockRange: 100},
		{Event: d, Contract: spokePool, BlockRange: 0},
	}
	for i, req := range invalid {
		if _, err := engine.Execute(context.Background(), req); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func TestRPCEngineCancelled(t *testing.T) {
	d := v3Descriptor(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := NewRPCEngine(&fakeSource{chainID: 1, latest: 10}, Options{}, nil)
	if _, err := engine.Execute(ctx, Request{Event: d, Contract: spokePool, BlockRange: 100}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
