// Package relay talks to the bridge relay services that issue one-time
// deposit addresses. The oneclick provider uses the 1Click SDK; the axelar
// provider is a generic JSON client, see HTTPRelay.
package relay

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"go.uber.org/zap"
)

// DepositRequest identifies the transfer a deposit address is issued for.
type DepositRequest struct {
	SourceChain      string
	DestinationChain string
	Recipient        string
	Denom            string

	// AmountHint is the intended amount in minor units. Quote based relays
	// need it up front; link based relays ignore it.
	AmountHint *big.Int
	// RefundTo is the source chain address refunds go to, when supported.
	RefundTo string
}

// Relay issues deposit addresses.
type Relay interface {
	GetDepositAddress(ctx context.Context, req DepositRequest) (string, error)
}

// DepositNotifier is implemented by relays that want to be told about the
// deposit transaction instead of discovering it themselves.
type DepositNotifier interface {
	NotifyDeposit(ctx context.Context, depositAddress, txHash string) error
}

// Config selects and configures a relay implementation.
type Config struct {
	Provider string `mapstructure:"provider"` // "axelar" (generic JSON gateway) or "oneclick" (1Click SDK)
	BaseURL  string `mapstructure:"base_url"`
	APIKey   string `mapstructure:"api_key"`
	JWTToken string `mapstructure:"jwt_token"`

	OriginAsset      string `mapstructure:"origin_asset"`
	DestinationAsset string `mapstructure:"destination_asset"`
	Symbol           string `mapstructure:"symbol"`
}

// New builds the relay named by cfg.Provider.
func New(cfg Config, logger *zap.Logger) (Relay, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "axelar":
		return NewHTTPRelay(cfg.BaseURL, cfg.APIKey, logger)
	case "oneclick", "1click":
		return NewOneClickRelay(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown relay provider: %s", cfg.Provider)
	}
}
