package types

// Currency describes one asset known to a Cosmos chain definition.
type Currency struct {
	CoinDenom        string `json:"coinDenom" mapstructure:"coin_denom"`
	CoinMinimalDenom string `json:"coinMinimalDenom" mapstructure:"coin_minimal_denom"`
	CoinDecimals     int    `json:"coinDecimals" mapstructure:"coin_decimals"`
	CoinGeckoID      string `json:"coinGeckoId,omitempty" mapstructure:"coin_gecko_id"`
}

// Bech32Config is the set of address prefixes of a Cosmos chain.
type Bech32Config struct {
	Bech32PrefixAccAddr  string `json:"bech32PrefixAccAddr"`
	Bech32PrefixAccPub   string `json:"bech32PrefixAccPub"`
	Bech32PrefixValAddr  string `json:"bech32PrefixValAddr"`
	Bech32PrefixValPub   string `json:"bech32PrefixValPub"`
	Bech32PrefixConsAddr string `json:"bech32PrefixConsAddr"`
	Bech32PrefixConsPub  string `json:"bech32PrefixConsPub"`
}

// NewBech32Config derives the full prefix set from the account prefix.
func NewBech32Config(prefix string) Bech32Config {
	return Bech32Config{
		Bech32PrefixAccAddr:  prefix,
		Bech32PrefixAccPub:   prefix + "pub",
		Bech32PrefixValAddr:  prefix + "valoper",
		Bech32PrefixValPub:   prefix + "valoperpub",
		Bech32PrefixConsAddr: prefix + "valcons",
		Bech32PrefixConsPub:  prefix + "valconspub",
	}
}

// BIP44 holds the derivation coin type.
type BIP44 struct {
	CoinType uint32 `json:"coinType"`
}

// ChainDefinition is the custom chain description registered with a
// destination wallet provider before accounts can be enabled.
type ChainDefinition struct {
	ChainID       string       `json:"chainId"`
	ChainName     string       `json:"chainName"`
	RPC           string       `json:"rpc"`
	REST          string       `json:"rest"`
	BIP44         BIP44        `json:"bip44"`
	Bech32Config  Bech32Config `json:"bech32Config"`
	Currencies    []Currency   `json:"currencies"`
	FeeCurrencies []Currency   `json:"feeCurrencies"`
	StakeCurrency Currency     `json:"stakeCurrency"`
	CoinType      uint32       `json:"coinType"`
	Features      []string     `json:"features"`
}

// Currency looks up a currency by its minimal denom.
func (c *ChainDefinition) Currency(minimalDenom string) (Currency, bool) {
	for _, cur := range c.Currencies {
		if cur.CoinMinimalDenom == minimalDenom {
			return cur, true
		}
	}
	return Currency{}, false
}
