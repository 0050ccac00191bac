// Package balance reads the bridged token balance on both chains.
package balance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	sdkmath "cosmossdk.io/math"
	"go.uber.org/zap"

	"sei-bridge/pkg/amount"
	"sei-bridge/pkg/errs"
	"sei-bridge/pkg/types"
)

// maxPages bounds pagination through the bank balances endpoint.
const maxPages = 20

// TokenReader reads the source token balance. *session.SourceHandle
// satisfies it.
type TokenReader interface {
	TokenBalance(ctx context.Context, owner string) (*big.Int, error)
}

// Config describes the two balances being watched.
type Config struct {
	REST            string        `mapstructure:"rest"`
	Denom           string        `mapstructure:"denom"`
	SourceDenom     string        `mapstructure:"source_denom"`
	Decimals        int32         `mapstructure:"decimals"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
}

// Reader issues single balance reads on either chain.
type Reader struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewReader creates a balance reader.
func NewReader(cfg Config, logger *zap.Logger) *Reader {
	if cfg.Decimals == 0 {
		cfg.Decimals = amount.USDCDecimals
	}
	if cfg.SourceDenom == "" {
		cfg.SourceDenom = "USDC"
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.REST = strings.TrimRight(cfg.REST, "/")

	return &Reader{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		logger:     logger,
	}
}

// ReadSource issues one balanceOf(owner) call through token.
func (r *Reader) ReadSource(ctx context.Context, token TokenReader, owner string) (types.BalanceSnapshot, error) {
	const op = "read source balance"

	if token == nil || owner == "" {
		return types.BalanceSnapshot{}, errs.New(errs.BalanceReadFailed, op, "no source account to read")
	}

	units, err := token.TokenBalance(ctx, owner)
	if err != nil {
		if errs.Is(err, errs.SessionInvalidated) {
			return types.BalanceSnapshot{}, err
		}
		return types.BalanceSnapshot{}, errs.Wrap(errs.BalanceReadFailed, op, err)
	}

	return types.BalanceSnapshot{
		Account:    owner,
		Denom:      r.cfg.SourceDenom,
		Amount:     amount.FromMinorUnits(units, r.cfg.Decimals),
		ObservedAt: time.Now(),
	}, nil
}

type bankBalance struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

type bankBalancesResponse struct {
	Balances   []bankBalance `json:"balances"`
	Pagination *struct {
		NextKey string `json:"next_key"`
	} `json:"pagination"`
}

// ReadDestination queries the bank balances of owner and picks the configured
// denom. found is false, with a nil error, when owner holds none of it.
func (r *Reader) ReadDestination(ctx context.Context, owner string) (types.BalanceSnapshot, bool, error) {
	const op = "read destination balance"

	if owner == "" {
		return types.BalanceSnapshot{}, false, errs.New(errs.BalanceReadFailed, op, "no destination account to read")
	}
	if r.cfg.REST == "" {
		return types.BalanceSnapshot{}, false, errs.New(errs.BalanceReadFailed, op, "destination REST endpoint not configured")
	}

	var nextKey string
	for page := 0; page < maxPages; page++ {
		resp, err := r.fetchBalances(ctx, owner, nextKey)
		if err != nil {
			return types.BalanceSnapshot{}, false, errs.Wrap(errs.BalanceReadFailed, op, err)
		}

		for _, b := range resp.Balances {
			if b.Denom != r.cfg.Denom {
				continue
			}
			units, ok := sdkmath.NewIntFromString(b.Amount)
			if !ok {
				return types.BalanceSnapshot{}, false, errs.New(errs.BalanceReadFailed, op, "invalid amount %q for %s", b.Amount, b.Denom)
			}
			return types.BalanceSnapshot{
				Account:    owner,
				Denom:      b.Denom,
				Amount:     amount.FromMinorUnits(units.BigInt(), r.cfg.Decimals),
				ObservedAt: time.Now(),
			}, true, nil
		}

		if resp.Pagination == nil || resp.Pagination.NextKey == "" {
			break
		}
		nextKey = resp.Pagination.NextKey
	}

	r.logger.Debug("denom not held by destination account",
		zap.String("account", owner),
		zap.String("denom", r.cfg.Denom))
	return types.BalanceSnapshot{}, false, nil
}

func (r *Reader) fetchBalances(ctx context.Context, owner, pageKey string) (*bankBalancesResponse, error) {
	endpoint := fmt.Sprintf("%s/cosmos/bank/v1beta1/balances/%s", r.cfg.REST, url.PathEscape(owner))
	if pageKey != "" {
		endpoint += "?pagination.key=" + url.QueryEscape(pageKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query balances: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read balances response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("balances endpoint returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded bankBalancesResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode balances response: %w", err)
	}

	return &decoded, nil
}

// ObserveSource returns a single-shot sequence over one source read. Each
// range over it issues a fresh read.
func (r *Reader) ObserveSource(ctx context.Context, token TokenReader, owner string) iter.Seq2[types.BalanceSnapshot, error] {
	return func(yield func(types.BalanceSnapshot, error) bool) {
		yield(r.ReadSource(ctx, token, owner))
	}
}

// ObserveDestination returns a single-shot sequence over one destination
// read. It yields nothing when the denom is not held.
func (r *Reader) ObserveDestination(ctx context.Context, owner string) iter.Seq2[types.BalanceSnapshot, error] {
	return func(yield func(types.BalanceSnapshot, error) bool) {
		snap, found, err := r.ReadDestination(ctx, owner)
		if err != nil {
			yield(types.BalanceSnapshot{}, err)
			return
		}
		if found {
			yield(snap, nil)
		}
	}
}
