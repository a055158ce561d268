package config

import (
	"fmt"
	"net/url"
	"strings"

	"k8s.io/apimachinery/pkg/util/validation/field"

	"github.com/Layr-Labs/inclusion-proof-go/pkg/merkle"
)

// Environment variable names for inclusion-proof configuration
const (
	EnvInclusionHasher           = "INCLUSION_HASHER"
	EnvInclusionStore            = "INCLUSION_STORE"
	EnvInclusionDataPath         = "INCLUSION_DATA_PATH"
	EnvInclusionRedisAddress     = "INCLUSION_REDIS_ADDRESS"
	EnvInclusionRedisPassword    = "INCLUSION_REDIS_PASSWORD"
	EnvInclusionRedisDB          = "INCLUSION_REDIS_DB"
	EnvInclusionRedisKeyPrefix   = "INCLUSION_REDIS_KEY_PREFIX"
	EnvInclusionNetwork          = "INCLUSION_NETWORK"
	EnvInclusionRPCURL           = "INCLUSION_RPC_URL"
	EnvInclusionRPCUser          = "INCLUSION_RPC_USER"
	EnvInclusionRPCPassword      = "INCLUSION_RPC_PASSWORD"
	EnvInclusionRPCRateLimit     = "INCLUSION_RPC_RATE_LIMIT"
	EnvInclusionBatchConcurrency = "INCLUSION_BATCH_CONCURRENCY"
	EnvInclusionVerbose          = "INCLUSION_VERBOSE"
	EnvInclusionServerPort       = "INCLUSION_SERVER_PORT"
	EnvInclusionLogFile          = "INCLUSION_LOG_FILE"
)

type StoreType string

func (s StoreType) String() string {
	return string(s)
}

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeBadger StoreType = "badger"
	StoreTypeRedis  StoreType = "redis"
)

// GetSupportedStoreTypes returns all supported proof store backends
func GetSupportedStoreTypes() []StoreType {
	return []StoreType{StoreTypeMemory, StoreTypeBadger, StoreTypeRedis}
}

// GetSupportedStoreTypesString returns supported store types for CLI help
func GetSupportedStoreTypesString() string {
	names := make([]string, 0, 3)
	for _, st := range GetSupportedStoreTypes() {
		names = append(names, st.String())
	}
	return strings.Join(names, ", ")
}

type Network string

const (
	Network_Mainnet Network = "mainnet"
	Network_Testnet Network = "testnet"
	Network_Signet  Network = "signet"
	Network_Regtest Network = "regtest"
)

// Default Bitcoin Core RPC ports by network
var NetworkToRPCPort = map[Network]int{
	Network_Mainnet: 8332,
	Network_Testnet: 18332,
	Network_Signet:  38332,
	Network_Regtest: 18443,
}

// GetDefaultRPCURLForNetwork returns the local Bitcoin Core RPC endpoint for a network
func GetDefaultRPCURLForNetwork(network Network) (string, error) {
	port, ok := NetworkToRPCPort[network]
	if !ok {
		return "", fmt.Errorf("unsupported network: %s", network)
	}
	return fmt.Sprintf("http://127.0.0.1:%d", port), nil
}

// GetSupportedNetworksString returns supported networks for CLI help
func GetSupportedNetworksString() string {
	return fmt.Sprintf("%s, %s, %s, %s", Network_Mainnet, Network_Testnet, Network_Signet, Network_Regtest)
}

// StoreConfig selects and configures the proof store backend
type StoreConfig struct {
	Type StoreType `json:"type"`

	// Badger
	DataPath string `json:"data_path,omitempty"`

	// Redis
	RedisAddress   string `json:"redis_address,omitempty"`
	RedisPassword  string `json:"-"`
	RedisDB        int    `json:"redis_db,omitempty"`
	RedisKeyPrefix string `json:"redis_key_prefix,omitempty"`
}

// RPCConfig points at a Bitcoin Core node. URL is derived from Network when empty.
type RPCConfig struct {
	Network           Network `json:"network"`
	URL               string  `json:"url"`
	User              string  `json:"user"`
	Password          string  `json:"-"`
	RequestsPerSecond float64 `json:"requests_per_second"`
}

// InclusionConfig represents the complete configuration for the inclusion-proof tool
type InclusionConfig struct {
	Hasher           string      `json:"hasher"`
	Store            StoreConfig `json:"store"`
	RPC              RPCConfig   `json:"rpc"`
	BatchConcurrency int         `json:"batch_concurrency"`

	Debug   bool   `json:"debug"`
	Verbose bool   `json:"verbose"`
	LogFile string `json:"log_file,omitempty"`
}

// Validate checks every field and reports all problems at once.
// An empty RPC URL is filled in from the network.
func (c *InclusionConfig) Validate() error {
	var allErrors field.ErrorList

	if _, err := merkle.HasherByName(c.Hasher); err != nil {
		allErrors = append(allErrors, field.Invalid(field.NewPath("hasher"), c.Hasher, err.Error()))
	}

	storePath := field.NewPath("store")
	switch c.Store.Type {
	case StoreTypeMemory:
	case StoreTypeBadger:
		if c.Store.DataPath == "" {
			allErrors = append(allErrors, field.Required(storePath.Child("data_path"), "data path is required for the badger store"))
		}
	case StoreTypeRedis:
		if c.Store.RedisAddress == "" {
			allErrors = append(allErrors, field.Required(storePath.Child("redis_address"), "redis address is required for the redis store"))
		}
		if c.Store.RedisDB < 0 || c.Store.RedisDB > 15 {
			allErrors = append(allErrors, field.Invalid(storePath.Child("redis_db"), c.Store.RedisDB, "must be between 0-15"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(storePath.Child("type"), c.Store.Type, []string{
			StoreTypeMemory.String(), StoreTypeBadger.String(), StoreTypeRedis.String(),
		}))
	}

	rpcPath := field.NewPath("rpc")
	if c.RPC.URL == "" {
		defaultURL, err := GetDefaultRPCURLForNetwork(c.RPC.Network)
		if err != nil {
			allErrors = append(allErrors, field.NotSupported(rpcPath.Child("network"), c.RPC.Network, []string{
				string(Network_Mainnet), string(Network_Testnet), string(Network_Signet), string(Network_Regtest),
			}))
		} else {
			c.RPC.URL = defaultURL
		}
	} else if u, err := url.Parse(c.RPC.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		allErrors = append(allErrors, field.Invalid(rpcPath.Child("url"), c.RPC.URL, "must be an http(s) URL"))
	}
	if c.RPC.RequestsPerSecond < 0 {
		allErrors = append(allErrors, field.Invalid(rpcPath.Child("requests_per_second"), c.RPC.RequestsPerSecond, "must not be negative"))
	}

	if c.BatchConcurrency < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("batch_concurrency"), c.BatchConcurrency, "must not be negative"))
	}

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

// NewHasher resolves the configured hasher
func (c *InclusionConfig) NewHasher() (merkle.Hasher, error) {
	return merkle.HasherByName(c.Hasher)
}
