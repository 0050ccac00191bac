package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"sei-bridge/pkg/balance"
	"sei-bridge/pkg/blocks"
	"sei-bridge/pkg/chainreg"
	"sei-bridge/pkg/relay"
	"sei-bridge/pkg/wallet/cosmos"
	"sei-bridge/pkg/wallet/evm"
)

const (
	// DefaultTokenAddress is the testnet USDC contract on the source chain.
	DefaultTokenAddress = "0x526f0A95EDC3DF4CBDB7bb37d4F7Ed451dB8e369"

	// DefaultSourceChainID is ropsten.
	DefaultSourceChainID = 3

	// DefaultRelayDenom is the asset name the relay knows aUSDC by.
	DefaultRelayDenom = "uausdc"
)

// SourceConfig configures the EVM side of the bridge
type SourceConfig struct {
	evm.Config `mapstructure:",squash"`

	ChainName string `mapstructure:"chain_name"` // name the relay knows the chain by
	ChainID   int64  `mapstructure:"chain_id"`   // required network, the wallet is switched to it
}

// DestinationConfig configures the Cosmos side of the bridge
type DestinationConfig struct {
	cosmos.Config `mapstructure:",squash"`

	ChainName    string `mapstructure:"chain_name"`
	ChainID      string `mapstructure:"chain_id"`
	REST         string `mapstructure:"rest"` // overrides the registered chain's REST endpoint
	Denom        string `mapstructure:"denom"`
	RelayDenom   string `mapstructure:"relay_denom"`
	RegistryPath string `mapstructure:"registry_path"`
}

// BalanceConfig configures the balance watcher
type BalanceConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
}

// MetricsConfig configures the prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Config holds the application configuration
type Config struct {
	Source      SourceConfig      `mapstructure:"source"`
	Destination DestinationConfig `mapstructure:"destination"`
	Relay       relay.Config      `mapstructure:"relay"`
	Balance     BalanceConfig     `mapstructure:"balance"`
	Blocks      blocks.Config     `mapstructure:"blocks"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`

	// AutoConfirm skips wallet approval prompts
	AutoConfirm bool `mapstructure:"auto_confirm"`
}

// New returns a viper instance with the defaults, config file locations and
// environment binding used by Load.
func New() *viper.Viper {
	v := viper.New()

	v.SetConfigName(".sei-bridge")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME")
	v.AddConfigPath(".")

	v.SetDefault("source.chain_name", "ethereum")
	v.SetDefault("source.chain_id", DefaultSourceChainID)
	v.SetDefault("source.token_address", DefaultTokenAddress)
	v.SetDefault("source.rpc_url", "")
	v.SetDefault("source.private_key", "")
	v.SetDefault("source.keystore_path", "")
	v.SetDefault("source.keystore_password", "")

	v.SetDefault("destination.chain_name", "sei")
	v.SetDefault("destination.chain_id", chainreg.SeiTestnetChainID)
	v.SetDefault("destination.denom", chainreg.AxelarUSDCDenom)
	v.SetDefault("destination.relay_denom", DefaultRelayDenom)
	v.SetDefault("destination.rest", "")
	v.SetDefault("destination.mnemonic", "")
	v.SetDefault("destination.passphrase", "")
	v.SetDefault("destination.address", "")
	v.SetDefault("destination.account_index", 0)
	v.SetDefault("destination.registry_path", "")

	v.SetDefault("relay.provider", "axelar")
	v.SetDefault("relay.base_url", relay.DefaultAxelarURL)
	v.SetDefault("relay.api_key", "")
	v.SetDefault("relay.jwt_token", "")

	v.SetDefault("balance.refresh_interval", 30*time.Second)
	v.SetDefault("balance.request_timeout", 30*time.Second)

	v.SetDefault("blocks.rpc_url", "")
	v.SetDefault("blocks.poll_interval", blocks.DefaultPollInterval)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9464")

	v.SetDefault("auto_confirm", false)

	// SEI_BRIDGE_SOURCE_RPC_URL -> source.rpc_url
	v.SetEnvPrefix("SEI_BRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads configuration from environment variables and config file
func Load() (*Config, error) {
	return LoadFrom(New(), "")
}

// LoadFrom reads configuration through v. A non-empty path replaces the
// default config file search.
func LoadFrom(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	}

	// Config file is optional unless given explicitly
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks values that would otherwise fail deep inside a command.
// Missing wallet credentials are not errors here: they surface as
// ProviderMissing when a session is connected.
func (c *Config) Validate() error {
	if c.Source.ChainID <= 0 {
		return fmt.Errorf("source.chain_id must be positive, got %d", c.Source.ChainID)
	}
	if c.Source.TokenAddress == "" {
		return fmt.Errorf("source.token_address is required")
	}
	if c.Destination.ChainID == "" {
		return fmt.Errorf("destination.chain_id is required")
	}
	if c.Destination.Denom == "" {
		return fmt.Errorf("destination.denom is required")
	}
	switch strings.ToLower(c.Relay.Provider) {
	case "", "axelar":
	case "oneclick", "1click":
		if c.Relay.JWTToken == "" {
			return fmt.Errorf("JWT token not found. Please set SEI_BRIDGE_RELAY_JWT_TOKEN or relay.jwt_token in .sei-bridge.yaml")
		}
	default:
		return fmt.Errorf("unknown relay provider %q (want axelar or oneclick)", c.Relay.Provider)
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required when metrics are enabled")
	}
	return nil
}

// BalanceReaderConfig builds the balance reader configuration for rest.
func (c *Config) BalanceReaderConfig(rest string) balance.Config {
	if c.Destination.REST != "" {
		rest = c.Destination.REST
	}
	return balance.Config{
		REST:            rest,
		Denom:           c.Destination.Denom,
		RefreshInterval: c.Balance.RefreshInterval,
		RequestTimeout:  c.Balance.RequestTimeout,
	}
}

// BlocksConfig returns the tracker configuration, defaulting to the source
// RPC endpoint.
func (c *Config) BlocksConfig() blocks.Config {
	cfg := c.Blocks
	if cfg.RPCURL == "" {
		cfg.RPCURL = c.Source.RPCURL
	}
	return cfg
}
