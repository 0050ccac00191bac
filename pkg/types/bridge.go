package types

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// ChainRole identifies which side of the bridge a wallet session serves.
type ChainRole string

const (
	RoleSource      ChainRole = "source"      // EVM chain the funds leave from
	RoleDestination ChainRole = "destination" // Cosmos chain the funds arrive on
)

// Signer is an opaque capability handle. Holders can ask whether it is still
// backed by a live session.
type Signer interface {
	Role() ChainRole
	Valid() bool
}

// WalletSession is an authorized binding to one wallet's account.
type WalletSession struct {
	Role        ChainRole `json:"role"`
	Address     string    `json:"address"`
	Signer      Signer    `json:"-"`
	ConnectedAt time.Time `json:"connected_at"`
}

// DepositAddress is the one-time address issued by the relay for a single
// transfer attempt.
type DepositAddress struct {
	SourceChain          string    `json:"source_chain"`
	DestinationChain     string    `json:"destination_chain"`
	DestinationRecipient string    `json:"destination_recipient"`
	Denom                string    `json:"denom"`
	Address              string    `json:"address"`
	IssuedAt             time.Time `json:"issued_at"`
}

// TransferIntent is a submitted, not yet confirmed, transfer.
type TransferIntent struct {
	DepositAddress DepositAddress  `json:"deposit_address"`
	Amount         decimal.Decimal `json:"amount"`
	MinorUnits     *big.Int        `json:"minor_units"`
	TxHash         string          `json:"tx_hash"`
	SubmittedAt    time.Time       `json:"submitted_at"`
}

// TransferReceipt records the observed confirmation of a transfer.
type TransferReceipt struct {
	TxHash      string    `json:"tx_hash"`
	BlockNumber uint64    `json:"block_number"`
	GasUsed     uint64    `json:"gas_used"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

// BalanceSnapshot is the latest observed balance of one account.
type BalanceSnapshot struct {
	Account    string          `json:"account"`
	Denom      string          `json:"denom"`
	Amount     decimal.Decimal `json:"amount"`
	ObservedAt time.Time       `json:"observed_at"`
}
