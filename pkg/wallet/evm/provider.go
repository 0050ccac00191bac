// Package evm is the live source-chain wallet: a local key (hex or keystore)
// driving an ERC-20 token over JSON-RPC.
package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"sei-bridge/pkg/session"
)

// Network is one EVM network the wallet can switch to.
type Network struct {
	ChainID  int64   `mapstructure:"chain_id"`
	RPCURL   string  `mapstructure:"rpc_url"`
	GasLimit *uint64 `mapstructure:"gas_limit"`
	GasPrice *int64  `mapstructure:"gas_price"`
}

// Config holds the source wallet configuration
type Config struct {
	RPCURL           string             `mapstructure:"rpc_url"`
	Networks         map[string]Network `mapstructure:"networks"`
	TokenAddress     string             `mapstructure:"token_address"`
	PrivateKey       string             `mapstructure:"private_key"`
	KeystorePath     string             `mapstructure:"keystore_path"`
	KeystorePassword string             `mapstructure:"keystore_password"`
	GasLimit         *uint64            `mapstructure:"gas_limit"`
	GasPrice         *int64             `mapstructure:"gas_price"`
}

// Backend is the subset of ethclient.Client the wallet uses.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	Close()
}

// Dialer opens a Backend for an RPC url.
type Dialer func(ctx context.Context, rawURL string) (Backend, error)

// DialEthclient is the Dialer backed by go-ethereum's ethclient.
func DialEthclient(ctx context.Context, rawURL string) (Backend, error) {
	client, err := ethclient.DialContext(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Approver asks the user to confirm a wallet action.
type Approver func(ctx context.Context, prompt string) (bool, error)

// Provider implements session.SourceProvider. Nothing is dialled or
// decrypted until the first RequestAccounts call.
type Provider struct {
	cfg     Config
	dial    Dialer
	approve Approver
	logger  *zap.Logger

	mu      sync.Mutex
	backend Backend
	network Network
	key     *ecdsa.PrivateKey
}

// NewProvider creates a source wallet. A nil approver approves everything.
func NewProvider(cfg Config, dial Dialer, approve Approver, logger *zap.Logger) *Provider {
	if dial == nil {
		dial = DialEthclient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		cfg:     cfg,
		dial:    dial,
		approve: approve,
		logger:  logger,
		network: Network{RPCURL: cfg.RPCURL, GasLimit: cfg.GasLimit, GasPrice: cfg.GasPrice},
	}
}

// loadKey parses the configured private key or decrypts the keystore file.
func (p *Provider) loadKey() (*ecdsa.PrivateKey, error) {
	switch {
	case p.cfg.PrivateKey != "":
		key, err := crypto.HexToECDSA(strings.TrimPrefix(p.cfg.PrivateKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid private key: %w", err)
		}
		return key, nil
	case p.cfg.KeystorePath != "":
		data, err := os.ReadFile(p.cfg.KeystorePath)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read keystore: %v", session.ErrUnavailable, err)
		}
		key, err := keystore.DecryptKey(data, p.cfg.KeystorePassword)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt keystore: %w", err)
		}
		return key.PrivateKey, nil
	default:
		return nil, fmt.Errorf("%w: no private key or keystore configured for the source chain", session.ErrUnavailable)
	}
}

func (p *Provider) ensureBackend(ctx context.Context) (Backend, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.backend != nil {
		return p.backend, nil
	}
	if p.network.RPCURL == "" {
		return nil, fmt.Errorf("%w: RPC URL not configured for the source chain", session.ErrUnavailable)
	}

	backend, err := p.dial(ctx, p.network.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to RPC endpoint: %v", session.ErrUnavailable, err)
	}
	p.backend = backend
	return backend, nil
}

func (p *Provider) currentBackend() (Backend, Network, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.backend == nil {
		return nil, Network{}, fmt.Errorf("source wallet is not connected")
	}
	return p.backend, p.network, nil
}

// RequestAccounts unlocks the key, asks for approval and returns its address.
func (p *Provider) RequestAccounts(ctx context.Context) ([]string, error) {
	p.mu.Lock()
	key := p.key
	p.mu.Unlock()

	if key == nil {
		var err error
		key, err = p.loadKey()
		if err != nil {
			return nil, err
		}
	}
	address := crypto.PubkeyToAddress(key.PublicKey)

	if p.approve != nil {
		ok, err := p.approve(ctx, fmt.Sprintf("Connect source account %s?", address.Hex()))
		if err != nil {
			return nil, fmt.Errorf("approval failed: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("connect %s: %w", address.Hex(), session.ErrRejected)
		}
	}

	if _, err := p.ensureBackend(ctx); err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.key = key
	p.mu.Unlock()

	return []string{address.Hex()}, nil
}

// ChainID returns the chain id of the active RPC endpoint.
func (p *Provider) ChainID(ctx context.Context) (*big.Int, error) {
	backend, err := p.ensureBackend(ctx)
	if err != nil {
		return nil, err
	}
	return backend.ChainID(ctx)
}

// SwitchChain moves the wallet to the configured network with chainID.
func (p *Provider) SwitchChain(ctx context.Context, chainID *big.Int) error {
	var (
		target Network
		name   string
		found  bool
	)
	for n, network := range p.cfg.Networks {
		if big.NewInt(network.ChainID).Cmp(chainID) == 0 {
			target, name, found = network, n, true
			break
		}
	}
	if !found || target.RPCURL == "" {
		return fmt.Errorf("no network configured for chain id 0x%x", chainID)
	}

	if p.approve != nil {
		ok, err := p.approve(ctx, fmt.Sprintf("Switch source wallet to %s (chain 0x%x)?", name, chainID))
		if err != nil {
			return fmt.Errorf("approval failed: %w", err)
		}
		if !ok {
			return fmt.Errorf("switch to %s: %w", name, session.ErrRejected)
		}
	}

	backend, err := p.dial(ctx, target.RPCURL)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", name, err)
	}

	p.mu.Lock()
	old := p.backend
	p.backend = backend
	p.network = target
	p.mu.Unlock()

	if old != nil {
		old.Close()
	}

	p.logger.Info("source wallet switched network", zap.String("network", name), zap.Int64("chain_id", target.ChainID))
	return nil
}

// Signer returns the token signer for address, which must be the unlocked
// account.
func (p *Provider) Signer(ctx context.Context, address string) (session.SourceSigner, error) {
	p.mu.Lock()
	key := p.key
	p.mu.Unlock()

	if key == nil {
		return nil, fmt.Errorf("%w: account access not granted", session.ErrRejected)
	}
	from := crypto.PubkeyToAddress(key.PublicKey)
	if !strings.EqualFold(from.Hex(), address) {
		return nil, fmt.Errorf("address %s is not managed by this wallet", address)
	}
	if !common.IsHexAddress(p.cfg.TokenAddress) {
		return nil, fmt.Errorf("invalid token contract address: %s", p.cfg.TokenAddress)
	}

	return &tokenSigner{
		provider: p,
		key:      key,
		from:     from,
		token:    common.HexToAddress(p.cfg.TokenAddress),
	}, nil
}

// Close closes the RPC connection
func (p *Provider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.backend != nil {
		p.backend.Close()
		p.backend = nil
	}
}
