package session

import (
	"context"
	"errors"
	"math/big"

	"sei-bridge/pkg/types"
)

var (
	// ErrRejected is returned (wrapped) by providers when the user declines a
	// prompt.
	ErrRejected = errors.New("request rejected by user")

	// ErrUnavailable is returned (wrapped) by providers that are not installed
	// or not configured.
	ErrUnavailable = errors.New("wallet provider not available")
)

// SourceProvider is the capability exposed by the EVM wallet.
type SourceProvider interface {
	// RequestAccounts asks for account access and returns the granted addresses.
	RequestAccounts(ctx context.Context) ([]string, error)
	// ChainID returns the id of the network the provider is currently on.
	ChainID(ctx context.Context) (*big.Int, error)
	// SwitchChain asks the provider to move to chainID.
	SwitchChain(ctx context.Context, chainID *big.Int) error
	// Signer returns a signer for one of the granted addresses.
	Signer(ctx context.Context, address string) (SourceSigner, error)
}

// SourceSigner signs and broadcasts token transfers on the source chain.
type SourceSigner interface {
	Address() string
	TransferToken(ctx context.Context, to string, minorUnits *big.Int) (PendingTx, error)
	TokenBalance(ctx context.Context, owner string) (*big.Int, error)
}

// PendingTx is a broadcast transaction whose finality can be awaited.
type PendingTx interface {
	Hash() string
	Wait(ctx context.Context) (*types.TransferReceipt, error)
}

// DestinationProvider is the capability exposed by the Cosmos wallet.
type DestinationProvider interface {
	HasChain(ctx context.Context, chainID string) (bool, error)
	SuggestChain(ctx context.Context, def types.ChainDefinition) error
	Enable(ctx context.Context, chainID string) error
	OfflineSigner(ctx context.Context, chainID string) (OfflineSigner, error)
}

// Account is one account exposed by an offline signer.
type Account struct {
	Address string
	Algo    string
	PubKey  []byte
}

// OfflineSigner exposes the accounts of an enabled Cosmos chain.
type OfflineSigner interface {
	Accounts(ctx context.Context) ([]Account, error)
}
