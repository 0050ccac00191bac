package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"sei-bridge/pkg/session"
	bridgetypes "sei-bridge/pkg/types"
)

// ERC20 transfer and balanceOf ABI
const erc20ABI = `[
	{"constant":false,"inputs":[{"name":"_to","type":"address"},{"name":"_value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"type":"function"}
]`

var parsedERC20 = mustParseABI(erc20ABI)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("failed to parse ERC20 ABI: %v", err))
	}
	return parsed
}

// Default ERC20 transfer gas when estimation fails
const defaultTokenTransferGas = uint64(100000)

type tokenSigner struct {
	provider *Provider
	key      *ecdsa.PrivateKey
	from     common.Address
	token    common.Address
}

func (s *tokenSigner) Address() string {
	return s.from.Hex()
}

// TransferToken signs and broadcasts transfer(to, minorUnits) on the token
// contract. It returns as soon as the node accepts the transaction.
func (s *tokenSigner) TransferToken(ctx context.Context, to string, minorUnits *big.Int) (session.PendingTx, error) {
	if !common.IsHexAddress(to) {
		return nil, fmt.Errorf("invalid recipient address: %s", to)
	}
	if minorUnits == nil || minorUnits.Sign() <= 0 {
		return nil, fmt.Errorf("transfer amount must be positive")
	}

	backend, network, err := s.provider.currentBackend()
	if err != nil {
		return nil, err
	}

	toAddress := common.HexToAddress(to)

	balance, err := s.balanceOf(ctx, backend, s.from)
	if err != nil {
		return nil, fmt.Errorf("failed to get token balance: %w", err)
	}
	if balance.Cmp(minorUnits) < 0 {
		return nil, fmt.Errorf("insufficient token balance: have %s, need %s", balance.String(), minorUnits.String())
	}

	data, err := parsedERC20.Pack("transfer", toAddress, minorUnits)
	if err != nil {
		return nil, fmt.Errorf("failed to pack transfer data: %w", err)
	}

	nonce, err := backend.PendingNonceAt(ctx, s.from)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	gasPrice, err := s.gasPrice(ctx, backend, network)
	if err != nil {
		return nil, err
	}

	gasLimit := defaultTokenTransferGas
	if network.GasLimit != nil {
		gasLimit = *network.GasLimit
	} else {
		msg := ethereum.CallMsg{
			From: s.from,
			To:   &s.token,
			Data: data,
		}
		estimatedGas, err := backend.EstimateGas(ctx, msg)
		if err == nil {
			gasLimit = estimatedGas * 120 / 100 // Add 20% buffer
		}
	}

	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain id: %w", err)
	}

	tx := types.NewTransaction(
		nonce,
		s.token,
		big.NewInt(0), // No ETH value for ERC20 transfer
		gasLimit,
		gasPrice,
		data,
	)

	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := backend.SendTransaction(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}

	s.provider.logger.Info("token transfer broadcast",
		zap.String("tx_hash", signedTx.Hash().Hex()),
		zap.String("to", toAddress.Hex()),
		zap.String("amount", minorUnits.String()),
		zap.Uint64("nonce", nonce))

	return &pendingTx{tx: signedTx, backend: backend}, nil
}

func (s *tokenSigner) gasPrice(ctx context.Context, backend Backend, network Network) (*big.Int, error) {
	if network.GasPrice != nil {
		return big.NewInt(*network.GasPrice), nil
	}

	gasPrice, err := backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}

	return gasPrice, nil
}

// TokenBalance reads balanceOf(owner) on the token contract.
func (s *tokenSigner) TokenBalance(ctx context.Context, owner string) (*big.Int, error) {
	if !common.IsHexAddress(owner) {
		return nil, fmt.Errorf("invalid owner address: %s", owner)
	}

	backend, _, err := s.provider.currentBackend()
	if err != nil {
		return nil, err
	}

	return s.balanceOf(ctx, backend, common.HexToAddress(owner))
}

func (s *tokenSigner) balanceOf(ctx context.Context, backend Backend, account common.Address) (*big.Int, error) {
	data, err := parsedERC20.Pack("balanceOf", account)
	if err != nil {
		return nil, fmt.Errorf("failed to pack balanceOf data: %w", err)
	}

	msg := ethereum.CallMsg{
		To:   &s.token,
		Data: data,
	}

	result, err := backend.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call balanceOf: %w", err)
	}

	out, err := parsedERC20.Unpack("balanceOf", result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack balanceOf result: %w", err)
	}

	balance, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf result type %T", out[0])
	}

	return balance, nil
}

type pendingTx struct {
	tx      *types.Transaction
	backend Backend
}

func (p *pendingTx) Hash() string {
	return p.tx.Hash().Hex()
}

// Wait blocks until the transaction is mined. A reverted transaction is an
// error.
func (p *pendingTx) Wait(ctx context.Context) (*bridgetypes.TransferReceipt, error) {
	receipt, err := bind.WaitMined(ctx, p.backend, p.tx)
	if err != nil {
		return nil, fmt.Errorf("failed waiting for %s: %w", p.Hash(), err)
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("transaction %s reverted in block %s", p.Hash(), receipt.BlockNumber)
	}

	return &bridgetypes.TransferReceipt{
		TxHash:      receipt.TxHash.Hex(),
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
		ConfirmedAt: time.Now(),
	}, nil
}
