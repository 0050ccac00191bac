// Package cosmos is the live destination-chain wallet. Accounts come from a
// BIP39 mnemonic or a watch-only address; custom chains are registered in a
// chainreg.Registry.
package cosmos

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"sei-bridge/pkg/chainreg"
	"sei-bridge/pkg/session"
	"sei-bridge/pkg/types"
)

// Config holds the destination wallet configuration
type Config struct {
	Mnemonic     string `mapstructure:"mnemonic"`
	Passphrase   string `mapstructure:"passphrase"`
	AccountIndex uint32 `mapstructure:"account_index"`
	Address      string `mapstructure:"address"`
}

// Approver asks the user to confirm a wallet action.
type Approver func(ctx context.Context, prompt string) (bool, error)

// Provider implements session.DestinationProvider.
type Provider struct {
	cfg      Config
	registry *chainreg.Registry
	approve  Approver
	logger   *zap.Logger

	mu      sync.Mutex
	enabled map[string][]session.Account
}

// NewProvider creates a destination wallet. A nil approver approves everything.
func NewProvider(cfg Config, registry *chainreg.Registry, approve Approver, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		cfg:      cfg,
		registry: registry,
		approve:  approve,
		logger:   logger,
		enabled:  make(map[string][]session.Account),
	}
}

func (p *Provider) confirm(ctx context.Context, prompt, action string) error {
	if p.approve == nil {
		return nil
	}
	ok, err := p.approve(ctx, prompt)
	if err != nil {
		return fmt.Errorf("approval failed: %w", err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", action, session.ErrRejected)
	}
	return nil
}

// HasChain reports whether chainID was registered before.
func (p *Provider) HasChain(ctx context.Context, chainID string) (bool, error) {
	if p.registry == nil {
		return false, fmt.Errorf("%w: no chain registry configured", session.ErrUnavailable)
	}
	return p.registry.Has(chainID), nil
}

// SuggestChain registers def after the user approves it.
func (p *Provider) SuggestChain(ctx context.Context, def types.ChainDefinition) error {
	if p.registry == nil {
		return fmt.Errorf("%w: no chain registry configured", session.ErrUnavailable)
	}
	if err := chainreg.Validate(def); err != nil {
		return err
	}
	if err := p.confirm(ctx, fmt.Sprintf("Add chain %s (%s) to the destination wallet?", def.ChainName, def.ChainID), "suggest "+def.ChainID); err != nil {
		return err
	}
	if err := p.registry.Register(def); err != nil {
		return fmt.Errorf("failed to register %s: %w", def.ChainID, err)
	}

	p.logger.Info("chain registered",
		zap.String("chain_id", def.ChainID),
		zap.String("registry", p.registry.FilePath()))
	return nil
}

// Enable grants access to the account on a registered chain.
func (p *Provider) Enable(ctx context.Context, chainID string) error {
	if p.registry == nil {
		return fmt.Errorf("%w: no chain registry configured", session.ErrUnavailable)
	}
	def, ok := p.registry.Get(chainID)
	if !ok {
		return fmt.Errorf("chain %s is not registered", chainID)
	}

	account, err := p.account(def)
	if err != nil {
		return err
	}

	if err := p.confirm(ctx, fmt.Sprintf("Allow access to %s on %s?", account.Address, def.ChainName), "enable "+chainID); err != nil {
		return err
	}

	p.mu.Lock()
	p.enabled[chainID] = []session.Account{account}
	p.mu.Unlock()

	return nil
}

func (p *Provider) account(def types.ChainDefinition) (session.Account, error) {
	prefix := def.Bech32Config.Bech32PrefixAccAddr

	switch {
	case p.cfg.Mnemonic != "":
		key, err := DeriveAccount(p.cfg.Mnemonic, p.cfg.Passphrase, prefix, def.BIP44.CoinType, p.cfg.AccountIndex)
		if err != nil {
			return session.Account{}, err
		}
		return session.Account{Address: key.Address, Algo: "secp256k1", PubKey: key.PubKey}, nil
	case p.cfg.Address != "":
		if err := ValidateAddress(p.cfg.Address, prefix); err != nil {
			return session.Account{}, err
		}
		return session.Account{Address: p.cfg.Address, Algo: "secp256k1"}, nil
	default:
		return session.Account{}, fmt.Errorf("%w: no mnemonic or address configured for the destination chain", session.ErrUnavailable)
	}
}

// OfflineSigner returns the account view of an enabled chain.
func (p *Provider) OfflineSigner(ctx context.Context, chainID string) (session.OfflineSigner, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	accounts, ok := p.enabled[chainID]
	if !ok {
		return nil, fmt.Errorf("chain %s is not enabled", chainID)
	}
	return offlineSigner(append([]session.Account(nil), accounts...)), nil
}

type offlineSigner []session.Account

func (s offlineSigner) Accounts(ctx context.Context) ([]session.Account, error) {
	return append([]session.Account(nil), s...), nil
}
