package session

import (
	"context"
	"math/big"
	"sync/atomic"

	"sei-bridge/pkg/errs"
	"sei-bridge/pkg/types"
)

type handle struct {
	role    types.ChainRole
	revoked atomic.Bool
}

func (h *handle) Role() types.ChainRole {
	return h.role
}

func (h *handle) Valid() bool {
	return !h.revoked.Load()
}

func (h *handle) revoke() {
	h.revoked.Store(true)
}

// SourceHandle is the signer handle of a source session. It refuses to act
// once its session has been replaced or disconnected.
type SourceHandle struct {
	handle
	signer SourceSigner
}

func newSourceHandle(signer SourceSigner) *SourceHandle {
	return &SourceHandle{
		handle: handle{role: types.RoleSource},
		signer: signer,
	}
}

func (h *SourceHandle) Address() string {
	return h.signer.Address()
}

// TransferToken sends minorUnits of the bridged token to `to`.
func (h *SourceHandle) TransferToken(ctx context.Context, to string, minorUnits *big.Int) (PendingTx, error) {
	if !h.Valid() {
		return nil, errs.New(errs.SessionInvalidated, "transfer token", "source session is no longer active")
	}
	return h.signer.TransferToken(ctx, to, minorUnits)
}

// TokenBalance reads the bridged token balance of owner.
func (h *SourceHandle) TokenBalance(ctx context.Context, owner string) (*big.Int, error) {
	if !h.Valid() {
		return nil, errs.New(errs.SessionInvalidated, "token balance", "source session is no longer active")
	}
	return h.signer.TokenBalance(ctx, owner)
}

// DestinationHandle is the signer handle of a destination session.
type DestinationHandle struct {
	handle
	signer OfflineSigner
}

func newDestinationHandle(signer OfflineSigner) *DestinationHandle {
	return &DestinationHandle{
		handle: handle{role: types.RoleDestination},
		signer: signer,
	}
}

// Accounts lists the accounts of the offline signer.
func (h *DestinationHandle) Accounts(ctx context.Context) ([]Account, error) {
	if !h.Valid() {
		return nil, errs.New(errs.SessionInvalidated, "accounts", "destination session is no longer active")
	}
	return h.signer.Accounts(ctx)
}
