package chainreg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chains.json")

	reg, err := NewRegistry(path)
	require.NoError(t, err)
	require.False(t, reg.Has(SeiTestnetChainID))
	require.Empty(t, reg.List())

	require.NoError(t, reg.Register(DefaultSeiTestnet()))
	require.True(t, reg.Has(SeiTestnetChainID))

	_, err = os.Stat(path + ".tmp")
	require.True(t, os.IsNotExist(err))

	reopened, err := NewRegistry(path)
	require.NoError(t, err)

	def, ok := reopened.Get(SeiTestnetChainID)
	require.True(t, ok)
	require.Equal(t, DefaultSeiTestnet(), def)

	require.NoError(t, reopened.Remove(SeiTestnetChainID))
	require.False(t, reopened.Has(SeiTestnetChainID))
	require.Error(t, reopened.Remove(SeiTestnetChainID))
}

func TestRegistryRejectsIncompleteDefinition(t *testing.T) {
	reg, err := NewRegistry(filepath.Join(t.TempDir(), "chains.json"))
	require.NoError(t, err)

	def := DefaultSeiTestnet()
	def.REST = ""
	require.Error(t, reg.Register(def))

	def = DefaultSeiTestnet()
	def.FeeCurrencies = nil
	require.Error(t, reg.Register(def))

	require.Empty(t, reg.List())
}

func TestRegistryCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chains.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0600))

	_, err := NewRegistry(path)
	require.Error(t, err)
}

func TestDefaultSeiTestnet(t *testing.T) {
	def := DefaultSeiTestnet()

	require.NoError(t, Validate(def))
	require.Equal(t, uint32(118), def.BIP44.CoinType)
	require.Equal(t, "seivaloper", def.Bech32Config.Bech32PrefixValAddr)
	require.Equal(t, []string{"stargate", "ibc-transfer", "cosmwasm"}, def.Features)

	ausdc, ok := def.Currency(AxelarUSDCDenom)
	require.True(t, ok)
	require.Equal(t, "aUSDC", ausdc.CoinDenom)
	require.Equal(t, 6, ausdc.CoinDecimals)
}
