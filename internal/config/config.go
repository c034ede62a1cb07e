package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/phuchtq/iota-donation-platform/internal/domain/model"
	"gopkg.in/yaml.v3"
)

// DefaultPackageID is the fundraising package published on testnet.
const DefaultPackageID = "0x5766fdcf2ce2163c2ea0850cdd5b5f7199a5f3afdc850d5ec7c9305ef7ebf5d1"

const (
	SnapshotTransportMemory = "memory"
	SnapshotTransportRedis  = "redis"
)

type Config struct {
	Network  NetworkConfig
	Contract ContractConfig
	Wallet   WalletConfig
	Query    QueryConfig
	Resolver ResolverConfig
	RPC      RPCConfig
	Session  SessionConfig
	Server   ServerConfig
	Log      LogConfig
	Tracing  TracingConfig
	Snapshot SnapshotConfig
	Notice   NoticeConfig
}

type NetworkConfig struct {
	Name       model.Network
	RPCURL     string
	GraphQLURL string
}

type ContractConfig struct {
	PackageID string
}

type WalletConfig struct {
	// BridgeURL is the wallet daemon's JSON-RPC endpoint. When empty the
	// client runs read-only as Address.
	BridgeURL string
	Address   string
}

type QueryConfig struct {
	Strict bool
}

type ResolverConfig struct {
	CacheSize        int
	CacheTTL         time.Duration
	FailureThreshold int
	OpenTimeout      time.Duration
}

type RPCConfig struct {
	RateLimitRPS   float64
	RateLimitBurst int
}

type SessionConfig struct {
	RefreshInterval time.Duration
}

type ServerConfig struct {
	HealthPort int
}

type LogConfig struct {
	Level string
}

type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	Insecure    bool
	SampleRatio float64
}

type SnapshotConfig struct {
	Transport string
	RedisURL  string
	Stream    string
	MaxLen    int64
}

type NoticeConfig struct {
	WebhookURL      string
	SlackWebhookURL string
	Cooldown        time.Duration
}

// NetworkEntry is one network in the networks file. Empty fields fall back
// to the built-in endpoints.
type NetworkEntry struct {
	RPCURL     string `yaml:"rpc_url"`
	GraphQLURL string `yaml:"graphql_url"`
	PackageID  string `yaml:"package_id"`
}

type networksFile struct {
	Networks map[string]NetworkEntry `yaml:"networks"`
}

var builtinNetworks = map[model.Network]NetworkEntry{
	model.NetworkMainnet: {RPCURL: "https://api.mainnet.iota.cafe", GraphQLURL: "https://graphql.mainnet.iota.cafe/"},
	model.NetworkTestnet: {RPCURL: "https://api.testnet.iota.cafe", GraphQLURL: "https://graphql.testnet.iota.cafe/", PackageID: DefaultPackageID},
	model.NetworkDevnet:  {RPCURL: "https://api.devnet.iota.cafe", GraphQLURL: "https://graphql.devnet.iota.cafe/"},
}

func Load() (*Config, error) {
	network := model.Network(strings.ToLower(strings.TrimSpace(getEnv("IOTA_NETWORK", string(model.NetworkTestnet)))))

	entry := builtinNetworks[network]
	if path := getEnv("IOTA_NETWORKS_FILE", ""); path != "" {
		fromFile, err := loadNetworksFile(path)
		if err != nil {
			return nil, err
		}
		if e, ok := fromFile[string(network)]; ok {
			entry = mergeEntry(entry, e)
		}
	}

	cfg := &Config{
		Network: NetworkConfig{
			Name:       network,
			RPCURL:     getEnv("IOTA_RPC_URL", entry.RPCURL),
			GraphQLURL: getEnv("IOTA_GRAPHQL_URL", entry.GraphQLURL),
		},
		Contract: ContractConfig{
			PackageID: getEnv("FUNDRAISING_PACKAGE_ID", entry.PackageID),
		},
		Wallet: WalletConfig{
			BridgeURL: getEnv("WALLET_BRIDGE_URL", ""),
			Address:   getEnv("WALLET_ADDRESS", ""),
		},
		Query: QueryConfig{
			Strict: getEnvBool("QUERY_STRICT", false),
		},
		Resolver: ResolverConfig{
			CacheSize:        getEnvInt("RESOLVER_CACHE_SIZE", 1024),
			CacheTTL:         time.Duration(getEnvInt("RESOLVER_CACHE_TTL_SEC", 300)) * time.Second,
			FailureThreshold: getEnvInt("BREAKER_FAILURE_THRESHOLD", 5),
			OpenTimeout:      time.Duration(getEnvInt("BREAKER_OPEN_TIMEOUT_SEC", 30)) * time.Second,
		},
		RPC: RPCConfig{
			RateLimitRPS:   getEnvFloat("RPC_RATE_LIMIT_RPS", 20),
			RateLimitBurst: getEnvInt("RPC_RATE_LIMIT_BURST", 40),
		},
		Session: SessionConfig{
			RefreshInterval: time.Duration(getEnvInt("REFRESH_INTERVAL_MS", 5000)) * time.Millisecond,
		},
		Server: ServerConfig{
			HealthPort: getEnvInt("HEALTH_PORT", 8080),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvBool("OTEL_TRACING_ENABLED", false),
			Endpoint:    getEnv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
			Insecure:    getEnvBool("OTEL_EXPORTER_INSECURE", true),
			SampleRatio: getEnvFloat("OTEL_SAMPLE_RATIO", 1),
		},
		Snapshot: SnapshotConfig{
			Transport: strings.ToLower(getEnv("SNAPSHOT_TRANSPORT", SnapshotTransportMemory)),
			RedisURL:  getEnv("REDIS_URL", "redis://localhost:6379"),
			Stream:    getEnv("SNAPSHOT_STREAM", "donations:view"),
			MaxLen:    int64(getEnvInt("SNAPSHOT_STREAM_MAXLEN", 1000)),
		},
		Notice: NoticeConfig{
			WebhookURL:      getEnv("NOTICE_WEBHOOK_URL", ""),
			SlackWebhookURL: getEnv("NOTICE_SLACK_WEBHOOK_URL", ""),
			Cooldown:        time.Duration(getEnvInt("NOTICE_COOLDOWN_SEC", 30)) * time.Second,
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Network.Name == "" {
		return fmt.Errorf("IOTA_NETWORK is required")
	}
	if c.Network.RPCURL == "" {
		return fmt.Errorf("IOTA_RPC_URL is required for network %q", c.Network.Name)
	}
	if c.Network.GraphQLURL == "" {
		return fmt.Errorf("IOTA_GRAPHQL_URL is required for network %q", c.Network.Name)
	}
	if !strings.HasPrefix(c.Contract.PackageID, "0x") {
		return fmt.Errorf("FUNDRAISING_PACKAGE_ID must be a 0x-prefixed object id, got %q", c.Contract.PackageID)
	}
	if c.Session.RefreshInterval <= 0 {
		return fmt.Errorf("REFRESH_INTERVAL_MS must be positive")
	}
	if c.Resolver.CacheSize < 0 {
		return fmt.Errorf("RESOLVER_CACHE_SIZE must not be negative")
	}
	if c.RPC.RateLimitRPS < 0 {
		return fmt.Errorf("RPC_RATE_LIMIT_RPS must not be negative")
	}
	if c.Server.HealthPort < 0 || c.Server.HealthPort > 65535 {
		return fmt.Errorf("HEALTH_PORT out of range: %d", c.Server.HealthPort)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug|info|warn|error, got %q", c.Log.Level)
	}
	switch c.Snapshot.Transport {
	case SnapshotTransportMemory:
	case SnapshotTransportRedis:
		if c.Snapshot.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when SNAPSHOT_TRANSPORT=redis")
		}
	default:
		return fmt.Errorf("SNAPSHOT_TRANSPORT must be memory or redis, got %q", c.Snapshot.Transport)
	}
	return nil
}

func loadNetworksFile(path string) (map[string]NetworkEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read networks file: %w", err)
	}
	var parsed networksFile
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse networks file %s: %w", path, err)
	}
	out := make(map[string]NetworkEntry, len(parsed.Networks))
	for name, e := range parsed.Networks {
		out[strings.ToLower(strings.TrimSpace(name))] = e
	}
	return out, nil
}

func mergeEntry(base, override NetworkEntry) NetworkEntry {
	if override.RPCURL != "" {
		base.RPCURL = override.RPCURL
	}
	if override.GraphQLURL != "" {
		base.GraphQLURL = override.GraphQLURL
	}
	if override.PackageID != "" {
		base.PackageID = override.PackageID
	}
	return base
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
