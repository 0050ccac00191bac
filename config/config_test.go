package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sei-bridge/pkg/chainreg"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".sei-bridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, int64(DefaultSourceChainID), cfg.Source.ChainID)
	require.Equal(t, DefaultTokenAddress, cfg.Source.TokenAddress)
	require.Equal(t, "ethereum", cfg.Source.ChainName)
	require.Equal(t, chainreg.SeiTestnetChainID, cfg.Destination.ChainID)
	require.Equal(t, chainreg.AxelarUSDCDenom, cfg.Destination.Denom)
	require.Equal(t, DefaultRelayDenom, cfg.Destination.RelayDenom)
	require.Equal(t, "axelar", cfg.Relay.Provider)
	require.Equal(t, 30*time.Second, cfg.Balance.RefreshInterval)
	require.False(t, cfg.Metrics.Enabled)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
source:
  rpc_url: wss://ropsten.example/ws
  private_key: "0x01"
  chain_id: 3
  networks:
    ropsten:
      chain_id: 3
      rpc_url: wss://ropsten.example/ws
destination:
  address: sei1xyz
  rest: http://localhost:1317
relay:
  provider: oneclick
  jwt_token: token
balance:
  refresh_interval: 5s
metrics:
  enabled: true
  addr: 127.0.0.1:9000
`)

	cfg, err := LoadFrom(New(), path)
	require.NoError(t, err)

	require.Equal(t, "wss://ropsten.example/ws", cfg.Source.RPCURL)
	require.Equal(t, "0x01", cfg.Source.PrivateKey)
	require.Equal(t, int64(3), cfg.Source.Networks["ropsten"].ChainID)
	require.Equal(t, "sei1xyz", cfg.Destination.Address)
	require.Equal(t, "oneclick", cfg.Relay.Provider)
	require.Equal(t, 5*time.Second, cfg.Balance.RefreshInterval)
	require.Equal(t, "127.0.0.1:9000", cfg.Metrics.Addr)

	require.Equal(t, "http://localhost:1317", cfg.BalanceReaderConfig("https://ignored").REST)
	require.Equal(t, "wss://ropsten.example/ws", cfg.BlocksConfig().RPCURL)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("SEI_BRIDGE_SOURCE_RPC_URL", "https://rpc.example")
	t.Setenv("SEI_BRIDGE_RELAY_PROVIDER", "axelar")
	t.Setenv("SEI_BRIDGE_DESTINATION_MNEMONIC", "word word")

	cfg, err := LoadFrom(New(), writeConfig(t, "source:\n  rpc_url: https://file.example\n"))
	require.NoError(t, err)
	require.Equal(t, "https://rpc.example", cfg.Source.RPCURL)
	require.Equal(t, "word word", cfg.Destination.Mnemonic)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"oneclick without token", "relay:\n  provider: oneclick\n"},
		{"unknown relay", "relay:\n  provider: wormhole\n"},
		{"bad chain id", "source:\n  chain_id: 0\n"},
		{"metrics without addr", "metrics:\n  enabled: true\n  addr: \"\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(New(), writeConfig(t, tt.body))
			require.Error(t, err)
		})
	}
}

func TestMissingExplicitFile(t *testing.T) {
	_, err := LoadFrom(New(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
