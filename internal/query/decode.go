package query

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/core/types"

	"acrossScope/internal/across"
	"acrossScope/internal/table"
)

// Metadata columns prepended to every result.
var metadataColumns = []table.Column{
	{Name: "chain_id", Type: table.Uint64},
	{Name: "block_number", Type: table.Uint64},
	{Name: "block_hash", Type: table.String},
	{Name: "block_timestamp", Type: table.Uint64},
	{Name: "transaction_hash", Type: table.String},
	{Name: "transaction_index", Type: table.Uint64},
	{Name: "log_index", Type: table.Uint64},
	{Name: "contract_address", Type: table.String},
}

// Transaction columns appended when a request asks for tx data.
var txColumns = []table.Column{
	{Name: "tx_from", Type: table.String},
	{Name: "tx_to", Type: table.String},
	{Name: "tx_value", Type: table.String},
	{Name: "tx_gas", Type: table.Uint64},
	{Name: "tx_gas_price", Type: table.String},
}

// ResultColumns returns the full column layout for a descriptor.
func ResultColumns(d across.EventDescriptor, txData bool) ([]table.Column, error) {
	cols := make([]table.Column, 0, len(metadataColumns)+len(d.Fields())+len(txColumns))
	cols = append(cols, metadataColumns...)
	cols = append(cols, d.Columns()...)
	if txData {
		cols = append(cols, txColumns...)
	}

	seen := make(map[string]struct{}, len(cols))
	for _, col := range cols {
		if _, dup := seen[col.Name]; dup {
			return nil, fmt.Errorf("event %s: column %s collides with a metadata column", d.Name, col.Name)
		}
		seen[col.Name] = struct{}{}
	}
	return cols, nil
}

// decodeLog converts one log into the descriptor's column values, in column order.
func decodeLog(d across.EventDescriptor, log types.Log) ([]any, error) {
	event := d.Event()
	if len(log.Topics) == 0 || log.Topics[0] != event.ID {
		return nil, fmt.Errorf("log is not a %s event", d.Name)
	}

	indexedArgs := indexedArguments(event.Inputs)
	if len(log.Topics) != len(indexedArgs)+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", len(indexedArgs)+1, len(log.Topics))
	}

	values := make(map[string]interface{}, len(event.Inputs))
	if len(indexedArgs) > 0 {
		if err := abi.ParseTopicsIntoMap(values, indexedArgs, log.Topics[1:]); err != nil {
			return nil, fmt.Errorf("parse topics: %w", err)
		}
	}
	if nonIndexed := event.Inputs.NonIndexed(); len(nonIndexed) > 0 {
		if err := nonIndexed.UnpackIntoMap(values, log.Data); err != nil {
			return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
		}
	}

	fields := d.Fields()
	row := make([]any, 0, len(fields))
	for _, field := range fields {
		raw, ok := values[field.Field]
		if !ok {
			return nil, fmt.Errorf("field %s missing from decoded %s", field.Field, event.Name)
		}
		value, err := table.Convert(raw, field.Column.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.Field, err)
		}
		row = append(row, value)
	}
	return row, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}
