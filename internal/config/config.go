package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"acrossScope/internal/across"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	Event        string
	OutDir       string
	Format       string
	BlockRange   uint64
	BatchSize    uint64
	TxData       bool
	MaxRetries   int
	RetryBackoff time.Duration
	Clients      []across.ClientConfig
	PGDSN        string
	FailOnError  bool
	LogLevel     string
}

type clientEntry struct {
	Name      string `mapstructure:"name"`
	RPC       string `mapstructure:"rpc"`
	SpokePool string `mapstructure:"spoke-pool"`
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return Config{}, err
	}

	clients, err := loadClients(v)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Event:        v.GetString("event"),
		OutDir:       v.GetString("out-dir"),
		Format:       v.GetString("format"),
		BlockRange:   v.GetUint64("block-range"),
		BatchSize:    v.GetUint64("batch-size"),
		TxData:       v.GetBool("tx-data"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		Clients:      clients,
		PGDSN:        v.GetString("pg-dsn"),
		FailOnError:  v.GetBool("fail-on-error"),
		LogLevel:     v.GetString("log-level"),
	}

	if cfg.Event == "" {
		return Config{}, fmt.Errorf("event is required")
	}
	if cfg.OutDir == "" {
		return Config{}, fmt.Errorf("output dir is required")
	}
	if cfg.BlockRange == 0 {
		return Config{}, fmt.Errorf("block range must be greater than zero")
	}
	if cfg.BatchSize == 0 {
		return Config{}, fmt.Errorf("batch size must be greater than zero")
	}

	return cfg, nil
}

func newViper(cfgFile string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("EXTRACTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("event", across.EventV3FundsDeposited)
	v.SetDefault("out-dir", "data/across")
	v.SetDefault("format", "parquet")
	v.SetDefault("block-range", uint64(2_500_000))
	v.SetDefault("batch-size", uint64(2000))
	v.SetDefault("tx-data", true)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("fail-on-error", false)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

// loadClients resolves the client list: config file entries or the built-in set,
// then rpc overrides, then the optional name filter.
func loadClients(v *viper.Viper) ([]across.ClientConfig, error) {
	clients := across.DefaultClients()

	if v.IsSet("clients") {
		var entries []clientEntry
		if err := v.UnmarshalKey("clients", &entries); err != nil {
			return nil, fmt.Errorf("parse clients: %w", err)
		}
		clients = make([]across.ClientConfig, 0, len(entries))
		for _, entry := range entries {
			if !common.IsHexAddress(entry.SpokePool) {
				return nil, fmt.Errorf("client %s: invalid spoke pool address: %s", entry.Name, entry.SpokePool)
			}
			clients = append(clients, across.ClientConfig{
				Name:      strings.TrimSpace(entry.Name),
				RPCURL:    strings.TrimSpace(entry.RPC),
				SpokePool: common.HexToAddress(entry.SpokePool),
			})
		}
	}

	clients, err := across.ApplyRPCOverrides(clients, getStringMap(v, "rpc-overrides"))
	if err != nil {
		return nil, err
	}

	if only := getStringSlice(v, "client"); len(only) > 0 {
		clients, err = filterClients(clients, only)
		if err != nil {
			return nil, err
		}
	}

	if err := across.ValidateClients(clients); err != nil {
		return nil, err
	}
	return clients, nil
}

func filterClients(clients []across.ClientConfig, names []string) ([]across.ClientConfig, error) {
	out := make([]across.ClientConfig, 0, len(names))
	for _, c := range clients {
		for _, name := range names {
			if strings.EqualFold(c.Name, name) {
				out = append(out, c)
				break
			}
		}
	}
	if len(out) != len(names) {
		return nil, fmt.Errorf("unknown client in %v", names)
	}
	return out, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func getStringMap(v *viper.Viper, key string) map[string]string {
	if !v.IsSet(key) {
		return map[string]string{}
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case map[string]string:
		return typed
	case map[string]interface{}:
		out := make(map[string]string, len(typed))
		for k, v := range typed {
			out[k] = fmt.Sprintf("%v", v)
		}
		return out
	case string:
		return parseStringMap(typed)
	case []string:
		return parseStringMap(strings.Join(typed, ","))
	default:
		return map[string]string{}
	}
}

func parseStringMap(input string) map[string]string {
	out := make(map[string]string)
	if strings.TrimSpace(input) == "" {
		return out
	}
	pairs := strings.Split(input, ",")
	for _, pair := range pairs {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	return out
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
