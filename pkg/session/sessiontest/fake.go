// Package sessiontest provides in-memory wallet providers for tests.
package sessiontest

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"sei-bridge/pkg/session"
	"sei-bridge/pkg/types"
)

// SourceProvider is a scripted EVM wallet.
type SourceProvider struct {
	mu sync.Mutex

	Accounts      []string
	AccountsErr   error
	Chain         *big.Int
	ChainErr      error
	SwitchErr     error
	Balances      map[string]*big.Int
	BalanceErr    error
	TransferErr   error
	Reverted      bool
	Confirmations chan struct{} // when set, Wait blocks until it is closed or receives

	Switches  int
	Transfers []Transfer
	Reads     int
}

// Transfer records one TransferToken call.
type Transfer struct {
	From   string
	To     string
	Amount *big.Int
}

func (p *SourceProvider) RequestAccounts(ctx context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.AccountsErr != nil {
		return nil, p.AccountsErr
	}
	return append([]string(nil), p.Accounts...), nil
}

func (p *SourceProvider) ChainID(ctx context.Context) (*big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ChainErr != nil {
		return nil, p.ChainErr
	}
	return new(big.Int).Set(p.Chain), nil
}

func (p *SourceProvider) SwitchChain(ctx context.Context, chainID *big.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Switches++
	if p.SwitchErr != nil {
		return p.SwitchErr
	}
	p.Chain = new(big.Int).Set(chainID)
	return nil
}

func (p *SourceProvider) Signer(ctx context.Context, address string) (session.SourceSigner, error) {
	return &sourceSigner{provider: p, address: address}, nil
}

// TransferCount returns the number of transfers submitted so far.
func (p *SourceProvider) TransferCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Transfers)
}

// ReadCount returns the number of balance reads so far.
func (p *SourceProvider) ReadCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Reads
}

type sourceSigner struct {
	provider *SourceProvider
	address  string
}

func (s *sourceSigner) Address() string {
	return s.address
}

func (s *sourceSigner) TransferToken(ctx context.Context, to string, minorUnits *big.Int) (session.PendingTx, error) {
	p := s.provider
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.TransferErr != nil {
		return nil, p.TransferErr
	}
	p.Transfers = append(p.Transfers, Transfer{From: s.address, To: to, Amount: new(big.Int).Set(minorUnits)})

	return &PendingTx{
		TxHash:   fmt.Sprintf("0x%064x", len(p.Transfers)),
		Reverted: p.Reverted,
		Release:  p.Confirmations,
	}, nil
}

func (s *sourceSigner) TokenBalance(ctx context.Context, owner string) (*big.Int, error) {
	p := s.provider
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Reads++
	if p.BalanceErr != nil {
		return nil, p.BalanceErr
	}
	if b, ok := p.Balances[owner]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

// PendingTx is a fake pending transaction.
type PendingTx struct {
	TxHash   string
	Reverted bool
	Release  chan struct{}
}

func (t *PendingTx) Hash() string {
	return t.TxHash
}

func (t *PendingTx) Wait(ctx context.Context) (*types.TransferReceipt, error) {
	if t.Release != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.Release:
		}
	}
	if t.Reverted {
		return nil, fmt.Errorf("transaction %s reverted", t.TxHash)
	}
	return &types.TransferReceipt{
		TxHash:      t.TxHash,
		BlockNumber: 100,
		GasUsed:     52000,
		ConfirmedAt: time.Now(),
	}, nil
}

// DestinationProvider is a scripted Cosmos wallet.
type DestinationProvider struct {
	mu sync.Mutex

	Known      map[string]bool
	Address    string
	HasErr     error
	SuggestErr error
	EnableErr  error
	AccountErr error

	Suggested []types.ChainDefinition
}

func (p *DestinationProvider) HasChain(ctx context.Context, chainID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.HasErr != nil {
		return false, p.HasErr
	}
	return p.Known[chainID], nil
}

func (p *DestinationProvider) SuggestChain(ctx context.Context, def types.ChainDefinition) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.SuggestErr != nil {
		return p.SuggestErr
	}
	if p.Known == nil {
		p.Known = make(map[string]bool)
	}
	p.Known[def.ChainID] = true
	p.Suggested = append(p.Suggested, def)
	return nil
}

func (p *DestinationProvider) Enable(ctx context.Context, chainID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.EnableErr
}

func (p *DestinationProvider) OfflineSigner(ctx context.Context, chainID string) (session.OfflineSigner, error) {
	return offlineSigner{provider: p}, nil
}

type offlineSigner struct {
	provider *DestinationProvider
}

func (s offlineSigner) Accounts(ctx context.Context) ([]session.Account, error) {
	p := s.provider
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.AccountErr != nil {
		return nil, p.AccountErr
	}
	if p.Address == "" {
		return nil, nil
	}
	return []session.Account{{Address: p.Address, Algo: "secp256k1"}}, nil
}
