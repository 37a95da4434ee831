package across

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Deployed spoke pool contracts, one per supported chain.
var (
	SpokePoolEthereum = common.HexToAddress("0x5c7BCd6E7De5423a257D81B442095A1a6ced35C5")
	SpokePoolArbitrum = common.HexToAddress("0xe35e9842fceaCA96570B734083f4a58e8F7C5f2A")
	SpokePoolOptimism = common.HexToAddress("0x6f26Bf09B1C792e3228e5467807a900A503c0281")
	SpokePoolBase     = common.HexToAddress("0x09aea4b2242abC8bb4BB78D537A67a245A7bEC64")
	SpokePoolPolygon  = common.HexToAddress("0x9295ee1d8C5b022Be115A2AD3c30C72E34e7F096")
	SpokePoolLinea    = common.HexToAddress("0x7E63A5f1a8F0B4d0934B2f2327DAED3F6bb2ee75")
)

// ClientConfig binds a named chain endpoint to the spoke pool deployed on that chain.
type ClientConfig struct {
	Name      string
	RPCURL    string
	SpokePool common.Address
}

// DefaultClients returns the built-in client list.
func DefaultClients() []ClientConfig {
	return []ClientConfig{
		{Name: "Ethereum", RPCURL: "https://eth.llamarpc.com", SpokePool: SpokePoolEthereum},
		{Name: "Arbitrum", RPCURL: "https://arb1.arbitrum.io/rpc", SpokePool: SpokePoolArbitrum},
		{Name: "Optimism", RPCURL: "https://mainnet.optimism.io", SpokePool: SpokePoolOptimism},
		{Name: "Base", RPCURL: "https://mainnet.base.org", SpokePool: SpokePoolBase},
		{Name: "Polygon", RPCURL: "https://polygon-rpc.com", SpokePool: SpokePoolPolygon},
		{Name: "Linea", RPCURL: "https://rpc.linea.build", SpokePool: SpokePoolLinea},
	}
}

// ApplyRPCOverrides replaces endpoints by client name (case-insensitive).
func ApplyRPCOverrides(clients []ClientConfig, overrides map[string]string) ([]ClientConfig, error) {
	out := make([]ClientConfig, len(clients))
	copy(out, clients)

	for name, url := range overrides {
		found := false
		for i := range out {
			if strings.EqualFold(out[i].Name, name) {
				out[i].RPCURL = url
				found = true
			}
		}
		if !found {
			return nil, fmt.Errorf("rpc override for unknown client: %s", name)
		}
	}
	return out, nil
}

// ValidateClients checks names are unique and every client has an endpoint and a spoke pool.
func ValidateClients(clients []ClientConfig) error {
	if len(clients) == 0 {
		return fmt.Errorf("at least one client is required")
	}
	seen := make(map[string]struct{}, len(clients))
	for _, c := range clients {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("client name is required")
		}
		if strings.ContainsAny(c.Name, `/\`) {
			return fmt.Errorf("client name %q contains a path separator", c.Name)
		}
		key := strings.ToLower(c.Name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("duplicate client: %s", c.Name)
		}
		seen[key] = struct{}{}
		if c.RPCURL == "" {
			return fmt.Errorf("client %s: rpc url is required", c.Name)
		}
		if c.SpokePool == (common.Address{}) {
			return fmt.Errorf("client %s: spoke pool address is required", c.Name)
		}
	}
	return nil
}
