package chainreg

import "sei-bridge/pkg/types"

const (
	SeiTestnetChainID = "atlantic-1"

	// AxelarUSDCDenom is the IBC denom of Axelar-wrapped USDC on the Sei testnet.
	AxelarUSDCDenom = "ibc/6D45A5CD1AADE4B527E459025AC1A5AEF41AE99091EF3069F3FEAACAFCECCD21"
)

// DefaultSeiTestnet returns the Sei testnet definition registered with the
// destination wallet.
func DefaultSeiTestnet() types.ChainDefinition {
	sei := types.Currency{
		CoinDenom:        "SEI",
		CoinMinimalDenom: "usei",
		CoinDecimals:     6,
	}

	return types.ChainDefinition{
		ChainID:      SeiTestnetChainID,
		ChainName:    "SEI Testnet",
		RPC:          "https://sei-chain-incentivized.com/sei-chain-tm/",
		REST:         "https://sei-chain-incentivized.com/sei-chain-app",
		BIP44:        types.BIP44{CoinType: 118},
		Bech32Config: types.NewBech32Config("sei"),
		Currencies: []types.Currency{
			sei,
			{CoinDenom: "USDC", CoinMinimalDenom: "uusdc", CoinDecimals: 6, CoinGeckoID: "usd-coin"},
			{CoinDenom: "ATOM", CoinMinimalDenom: "uatom", CoinDecimals: 6, CoinGeckoID: "cosmos"},
			{CoinDenom: "WETH", CoinMinimalDenom: "ibc/C2A89D98873BB55B62CE86700DFACA646EC80352E8D03CC6CF34DD44E46DC75D", CoinDecimals: 18, CoinGeckoID: "weth"},
			{CoinDenom: "WBTC", CoinMinimalDenom: "ibc/42BCC21A2B784E813F8878739FD32B4AA2D0A68CAD94F4C88B9EA98609AB0CCD", CoinDecimals: 8, CoinGeckoID: "bitcoin"},
			{CoinDenom: "aUSDC", CoinMinimalDenom: AxelarUSDCDenom, CoinDecimals: 6, CoinGeckoID: "usd-coin"},
		},
		FeeCurrencies: []types.Currency{sei},
		StakeCurrency: sei,
		CoinType:      118,
		Features:      []string{"stargate", "ibc-transfer", "cosmwasm"},
	}
}
