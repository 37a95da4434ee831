package across

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"acrossScope/internal/table"
)

// ErrDescriptorNotFound is returned when the registry has no event with the requested name.
var ErrDescriptorNotFound = errors.New("event descriptor not found")

// ColumnMapping maps event argument names to output columns, in column order.
type ColumnMapping = orderedmap.OrderedMap[string, table.Column]

// FieldColumn binds one event argument to its output column.
type FieldColumn struct {
	Field   string
	Indexed bool
	Column  table.Column
}

// EventDescriptor describes one on-chain event and how its arguments become columns.
type EventDescriptor struct {
	Name          string
	Signature     string
	ColumnMapping *ColumnMapping

	event  abi.Event
	fields []FieldColumn
}

// NewEventDescriptor compiles the signature and resolves the column mapping.
// Arguments missing from the mapping are appended as string columns named in snake case.
func NewEventDescriptor(name, signature string, mapping *ColumnMapping) (EventDescriptor, error) {
	event, err := CompileSignature(signature)
	if err != nil {
		return EventDescriptor{}, err
	}
	if name == "" {
		name = event.Name
	}
	if event.Name != name {
		return EventDescriptor{}, fmt.Errorf("descriptor %s: signature declares event %s", name, event.Name)
	}
	if mapping == nil {
		mapping = orderedmap.New[string, table.Column]()
	}

	inputs := make(map[string]abi.Argument, len(event.Inputs))
	for _, input := range event.Inputs {
		inputs[input.Name] = input
	}

	fields := make([]FieldColumn, 0, len(event.Inputs))
	seenColumns := make(map[string]struct{}, len(event.Inputs))
	for pair := mapping.Oldest(); pair != nil; pair = pair.Next() {
		input, ok := inputs[pair.Key]
		if !ok {
			return EventDescriptor{}, fmt.Errorf("descriptor %s: mapped field %s not in signature", name, pair.Key)
		}
		col := pair.Value
		if col.Name == "" {
			col.Name = SnakeCase(pair.Key)
		}
		if col.Type == "" {
			col.Type = table.String
		}
		if _, dup := seenColumns[col.Name]; dup {
			return EventDescriptor{}, fmt.Errorf("descriptor %s: duplicate column %s", name, col.Name)
		}
		seenColumns[col.Name] = struct{}{}
		fields = append(fields, FieldColumn{Field: pair.Key, Indexed: input.Indexed, Column: col})
	}

	for _, input := range event.Inputs {
		if _, mapped := mapping.Get(input.Name); mapped {
			continue
		}
		col := table.Column{Name: SnakeCase(input.Name), Type: table.String}
		if _, dup := seenColumns[col.Name]; dup {
			return EventDescriptor{}, fmt.Errorf("descriptor %s: duplicate column %s", name, col.Name)
		}
		seenColumns[col.Name] = struct{}{}
		fields = append(fields, FieldColumn{Field: input.Name, Indexed: input.Indexed, Column: col})
	}

	return EventDescriptor{
		Name:          name,
		Signature:     signature,
		ColumnMapping: mapping,
		event:         event,
		fields:        fields,
	}, nil
}

// Event returns the compiled ABI event.
func (d EventDescriptor) Event() abi.Event {
	return d.event
}

// Topic0 returns the event ID used to filter logs.
func (d EventDescriptor) Topic0() common.Hash {
	return d.event.ID
}

// Fields returns the resolved argument to column bindings in column order.
func (d EventDescriptor) Fields() []FieldColumn {
	out := make([]FieldColumn, len(d.fields))
	copy(out, d.fields)
	return out
}

// Columns returns the decoded event columns in order.
func (d EventDescriptor) Columns() []table.Column {
	cols := make([]table.Column, 0, len(d.fields))
	for _, field := range d.fields {
		cols = append(cols, field.Column)
	}
	return cols
}

// Registry is a fixed set of event descriptors keyed by name.
type Registry struct {
	descriptors map[string]EventDescriptor
}

// NewRegistry builds a registry, rejecting duplicate names.
func NewRegistry(descriptors ...EventDescriptor) (*Registry, error) {
	r := &Registry{descriptors: make(map[string]EventDescriptor, len(descriptors))}
	for _, d := range descriptors {
		if _, dup := r.descriptors[d.Name]; dup {
			return nil, fmt.Errorf("duplicate event descriptor: %s", d.Name)
		}
		r.descriptors[d.Name] = d
	}
	return r, nil
}

// Lookup returns the descriptor for name or an error wrapping ErrDescriptorNotFound.
func (r *Registry) Lookup(name string) (EventDescriptor, error) {
	if r != nil {
		if d, ok := r.descriptors[name]; ok {
			return d, nil
		}
	}
	return EventDescriptor{}, fmt.Errorf("%w: %s", ErrDescriptorNotFound, name)
}

// Names returns the registered event names, sorted.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.descriptors))
	for name := range r.descriptors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SnakeCase converts a camelCase argument name into a column name.
func SnakeCase(name string) string {
	var b strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const (
	EventV3FundsDeposited          = "V3FundsDeposited"
	EventRequestedSpeedUpV3Deposit = "RequestedSpeedUpV3Deposit"
)

const v3FundsDepositedSignature = "V3FundsDeposited(" +
	"address inputToken," +
	"address outputToken," +
	"uint256 inputAmount," +
	"uint256 outputAmount," +
	"uint256 indexed destinationChainId," +
	"uint32 indexed depositId," +
	"uint32 quoteTimestamp," +
	"uint32 fillDeadline," +
	"uint32 exclusivityDeadline," +
	"address indexed depositor," +
	"address recipient," +
	"address exclusiveRelayer," +
	"bytes message)"

const requestedSpeedUpV3DepositSignature = "RequestedSpeedUpV3Deposit(" +
	"uint256 updatedOutputAmount," +
	"uint32 indexed depositId," +
	"address indexed depositor," +
	"address updatedRecipient," +
	"bytes updatedMessage," +
	"bytes depositorSignature)"

func v3FundsDepositedMapping() *ColumnMapping {
	m := orderedmap.New[string, table.Column]()
	m.Set("inputToken", table.Column{Name: "input_token", Type: table.String})
	m.Set("outputToken", table.Column{Name: "output_token", Type: table.String})
	m.Set("inputAmount", table.Column{Name: "input_amount", Type: table.String})
	m.Set("outputAmount", table.Column{Name: "output_amount", Type: table.String})
	m.Set("destinationChainId", table.Column{Name: "destination_chain_id", Type: table.Uint64})
	m.Set("depositId", table.Column{Name: "deposit_id", Type: table.Uint64})
	m.Set("quoteTimestamp", table.Column{Name: "quote_timestamp", Type: table.Uint64})
	m.Set("fillDeadline", table.Column{Name: "fill_deadline", Type: table.Uint64})
	m.Set("exclusivityDeadline", table.Column{Name: "exclusivity_deadline", Type: table.Uint64})
	m.Set("depositor", table.Column{Name: "depositor", Type: table.String})
	m.Set("recipient", table.Column{Name: "recipient", Type: table.String})
	m.Set("exclusiveRelayer", table.Column{Name: "exclusive_relayer", Type: table.String})
	m.Set("message", table.Column{Name: "message", Type: table.String})
	return m
}

func requestedSpeedUpV3DepositMapping() *ColumnMapping {
	m := orderedmap.New[string, table.Column]()
	m.Set("depositId", table.Column{Name: "deposit_id", Type: table.Uint64})
	m.Set("depositor", table.Column{Name: "depositor", Type: table.String})
	m.Set("updatedOutputAmount", table.Column{Name: "updated_output_amount", Type: table.String})
	m.Set("updatedRecipient", table.Column{Name: "updated_recipient", Type: table.String})
	m.Set("updatedMessage", table.Column{Name: "updated_message", Type: table.String})
	m.Set("depositorSignature", table.Column{Name: "depositor_signature", Type: table.String})
	return m
}

// BaseEventDescriptors returns the built-in spoke pool event descriptors.
func BaseEventDescriptors() ([]EventDescriptor, error) {
	entries := []struct {
		name      string
		signature string
		mapping   *ColumnMapping
	}{
		{EventV3FundsDeposited, v3FundsDepositedSignature, v3FundsDepositedMapping()},
		{EventRequestedSpeedUpV3Deposit, requestedSpeedUpV3DepositSignature, requestedSpeedUpV3DepositMapping()},
	}

	out := make([]EventDescriptor, 0, len(entries))
	for _, entry := range entries {
		d, err := NewEventDescriptor(entry.name, entry.signature, entry.mapping)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
	defaultRegistryErr  error
)

// DefaultRegistry returns the registry of built-in descriptors.
func DefaultRegistry() (*Registry, error) {
	defaultRegistryOnce.Do(func() {
		descriptors, err := BaseEventDescriptors()
		if err != nil {
			defaultRegistryErr = err
			return
		}
		defaultRegistry, defaultRegistryErr = NewRegistry(descriptors...)
	})
	return defaultRegistry, defaultRegistryErr
}
