package across

import (
	"errors"
	"reflect"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"acrossScope/internal/table"
)

func TestCompileSignatureV3FundsDeposited(t *testing.T) {
	event, err := CompileSignature(v3FundsDepositedSignature)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	canonical := "V3FundsDeposited(address,address,uint256,uint256,uint256,uint32,uint32,uint32,uint32,address,address,address,bytes)"
	if event.Sig != canonical {
		t.Fatalf("sig mismatch: %s", event.Sig)
	}
	if event.ID != crypto.Keccak256Hash([]byte(canonical)) {
		t.Fatalf("topic0 mismatch: %s", event.ID.Hex())
	}

	var indexed []string
	for _, input := range event.Inputs {
		if input.Indexed {
			indexed = append(indexed, input.Name)
		}
	}
	if !reflect.DeepEqual(indexed, []string{"destinationChainId", "depositId", "depositor"}) {
		t.Fatalf("indexed mismatch: %v", indexed)
	}
}

func TestCompileSignatureErrors(t *testing.T) {
	cases := []string{
		"",
		"NoParens",
		"(address a)",
		"Bad(address a",
		"Bad(notatype a)",
		"Bad(address a b)",
		"Bad((address,uint256) pair)",
		"Bad(address indexed a,address indexed b,address indexed c,address indexed d)",
	}
	for _, sig := range cases {
		if _, err := CompileSignature(sig); err == nil {
			t.Fatalf("expected error for %q", sig)
		}
	}
}

func TestCompileSignatureUnnamedArgs(t *testing.T) {
	event, err := CompileSignature("Transfer(address indexed,address indexed,uint256)")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if event.ID != crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)")) {
		t.Fatalf("topic0 mismatch")
	}
	if event.Inputs[2].Name != "arg2" {
		t.Fatalf("unnamed arg mismatch: %s", event.Inputs[2].Name)
	}
}

func TestDefaultRegistryLookup(t *testing.T) {
	registry, err := DefaultRegistry()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	d, err := registry.Lookup(EventV3FundsDeposited)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if d.Name != EventV3FundsDeposited {
		t.Fatalf("name mismatch: %s", d.Name)
	}

	cols := d.Columns()
	if len(cols) != 13 {
		t.Fatalf("expected 13 columns, got %d", len(cols))
	}
	if cols[0].Name != "input_token" || cols[4] != (table.Column{Name: "destination_chain_id", Type: table.Uint64}) {
		t.Fatalf("column order mismatch: %+v", cols)
	}

	if !reflect.DeepEqual(registry.Names(), []string{EventRequestedSpeedUpV3Deposit, EventV3FundsDeposited}) {
		t.Fatalf("names mismatch: %v", registry.Names())
	}
}

func TestRegistryLookupMissing(t *testing.T) {
	registry, err := DefaultRegistry()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	_, err = registry.Lookup("FilledV3Relay")
	if !errors.Is(err, ErrDescriptorNotFound) {
		t.Fatalf("expected ErrDescriptorNotFound, got %v", err)
	}

	var nilRegistry *Registry
	if _, err := nilRegistry.Lookup(EventV3FundsDeposited); !errors.Is(err, ErrDescriptorNotFound) {
		t.Fatalf("nil registry should report not found, got %v", err)
	}
}

func TestNewRegistryDuplicate(t *testing.T) {
	d, err := NewEventDescriptor("Ping", "Ping(uint256 n)", nil)
	if err != nil {
		t.Fatalf("descriptor: %v", err)
	}
	if _, err := NewRegistry(d, d); err == nil {
		t.Fatalf("expected duplicate error")
	}
}

func TestNewEventDescriptorMapping(t *testing.T) {
	mapping := orderedmap.New[string, table.Column]()
	mapping.Set("amount", table.Column{Name: "amt", Type: table.String})
	mapping.Set("owner", table.Column{})

	d, err := NewEventDescriptor("Deposit", "Deposit(address indexed owner,uint256 amount,uint32 nonce)", mapping)
	if err != nil {
		t.Fatalf("descriptor: %v", err)
	}

	want := []FieldColumn{
		{Field: "amount", Column: table.Column{Name: "amt", Type: table.String}},
		{Field: "owner", Indexed: true, Column: table.Column{Name: "owner", Type: table.String}},
		{Field: "nonce", Column: table.Column{Name: "nonce", Type: table.String}},
	}
	if !reflect.DeepEqual(d.Fields(), want) {
		t.Fatalf("fields mismatch: %+v", d.Fields())
	}
}

func TestNewEventDescriptorErrors(t *testing.T) {
	mapping := orderedmap.New[string, table.Column]()
	mapping.Set("missing", table.Column{Name: "missing"})
	if _, err := NewEventDescriptor("Deposit", "Deposit(uint256 amount)", mapping); err == nil {
		t.Fatalf("expected unmapped field error")
	}

	if _, err := NewEventDescriptor("Other", "Deposit(uint256 amount)", nil); err == nil {
		t.Fatalf("expected name mismatch error")
	}

	dup := orderedmap.New[string, table.Column]()
	dup.Set("a", table.Column{Name: "x"})
	dup.Set("b", table.Column{Name: "x"})
	if _, err := NewEventDescriptor("Pair", "Pair(uint256 a,uint256 b)", dup); err == nil {
		t.Fatalf("expected duplicate column error")
	}
}

func TestSnakeCase(t *testing.T) {
	cases := map[string]string{
		"inputToken":          "input_token",
		"destinationChainId":  "destination_chain_id",
		"exclusivityDeadline": "exclusivity_deadline",
		"message":             "message",
		"txHASHValue":         "tx_hash_value",
	}
	for in, want := range cases {
		if got := SnakeCase(in); got != want {
			t.Fatalf("SnakeCase(%s) = %s, want %s", in, got, want)
		}
	}
}

func TestClientsValidation(t *testing.T) {
	clients := DefaultClients()
	if err := ValidateClients(clients); err != nil {
		t.Fatalf("default clients invalid: %v", err)
	}

	overridden, err := ApplyRPCOverrides(clients, map[string]string{"arbitrum": "http://localhost:8545"})
	if err != nil {
		t.Fatalf("override: %v", err)
	}
	if overridden[1].RPCURL != "http://localhost:8545" || clients[1].RPCURL == "http://localhost:8545" {
		t.Fatalf("override should apply to a copy")
	}
	if _, err := ApplyRPCOverrides(clients, map[string]string{"Solana": "x"}); err == nil {
		t.Fatalf("expected unknown client error")
	}

	bad := [][]ClientConfig{
		nil,
		{{Name: "", RPCURL: "x", SpokePool: SpokePoolBase}},
		{{Name: "a/b", RPCURL: "x", SpokePool: SpokePoolBase}},
		{{Name: "Base", RPCURL: "", SpokePool: SpokePoolBase}},
		{{Name: "Base", RPCURL: "x"}},
		{{Name: "Base", RPCURL: "x", SpokePool: SpokePoolBase}, {Name: "base", RPCURL: "y", SpokePool: common.HexToAddress("0x01")}},
	}
	for i, set := range bad {
		if err := ValidateClients(set); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}
