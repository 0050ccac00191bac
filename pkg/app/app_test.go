package app

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethTypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/require"

	"sei-bridge/config"
	"sei-bridge/pkg/chainreg"
	"sei-bridge/pkg/errs"
	"sei-bridge/pkg/relay"
	"sei-bridge/pkg/types"
	"sei-bridge/pkg/wallet/cosmos"
	"sei-bridge/pkg/wallet/evm"
	"sei-bridge/pkg/workflow"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

// chain is an in-memory EVM node holding one ERC20 balance.
type chain struct {
	mu      sync.Mutex
	balance *big.Int
	sent    []*ethTypes.Transaction
	height  atomic.Uint64
}

func (c *chain) ChainID(ctx context.Context) (*big.Int, error) { return big.NewInt(3), nil }

func (c *chain) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return uint64(len(c.sent)), nil
}

func (c *chain) SuggestGasPrice(ctx context.Context) (*big.Int, error) { return big.NewInt(1), nil }

func (c *chain) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return 50000, nil
}

func (c *chain) SendTransaction(ctx context.Context, tx *ethTypes.Transaction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, tx)
	return nil
}

func (c *chain) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return common.LeftPadBytes(c.balance.Bytes(), 32), nil
}

func (c *chain) TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethTypes.Receipt, error) {
	return &ethTypes.Receipt{
		Status:      ethTypes.ReceiptStatusSuccessful,
		TxHash:      txHash,
		BlockNumber: big.NewInt(7),
		GasUsed:     51000,
	}, nil
}

func (c *chain) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return nil, nil
}

func (c *chain) Close() {}

func (c *chain) SubscribeNewHead(ctx context.Context, ch chan<- *ethTypes.Header) (ethereum.Subscription, error) {
	return nil, rpc.ErrNotificationsUnsupported
}

func (c *chain) BlockNumber(ctx context.Context) (uint64, error) {
	return c.height.Add(1), nil
}

type staticRelay struct {
	requests []relay.DepositRequest
}

func (r *staticRelay) GetDepositAddress(ctx context.Context, req relay.DepositRequest) (string, error) {
	r.requests = append(r.requests, req)
	return "0x00000000000000000000000000000000DeaDBeef", nil
}

func newTestApp(t *testing.T, node *chain, rel relay.Relay, mutate ...func(*config.Config)) *App {
	t.Helper()

	lcd := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"balances":[{"denom":%q,"amount":"2500000"}],"pagination":{"next_key":null}}`, chainreg.AxelarUSDCDenom)
	}))
	t.Cleanup(lcd.Close)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	cfg := &config.Config{
		Source: config.SourceConfig{
			Config: evm.Config{
				RPCURL:       "memory",
				TokenAddress: config.DefaultTokenAddress,
				PrivateKey:   hex.EncodeToString(crypto.FromECDSA(key)),
			},
			ChainName: "ethereum",
			ChainID:   3,
		},
		Destination: config.DestinationConfig{
			Config:       cosmos.Config{Mnemonic: testMnemonic},
			ChainName:    "sei",
			ChainID:      chainreg.SeiTestnetChainID,
			REST:         lcd.URL,
			Denom:        chainreg.AxelarUSDCDenom,
			RelayDenom:   config.DefaultRelayDenom,
			RegistryPath: filepath.Join(t.TempDir(), "chains.json"),
		},
		Balance: config.BalanceConfig{RequestTimeout: time.Second},
	}
	cfg.Blocks.PollInterval = 10 * time.Millisecond
	for _, fn := range mutate {
		fn(cfg)
	}

	a, err := New(Options{
		Config: cfg,
		Dialer: func(ctx context.Context, rawURL string) (evm.Backend, error) { return node, nil },
		Relay:  rel,
		Heads:  node,
	})
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func TestBridgeFlow(t *testing.T) {
	node := &chain{balance: big.NewInt(5_000_000)}
	rel := &staticRelay{}
	a := newTestApp(t, node, rel)
	ctx := context.Background()

	require.NoError(t, a.Connect(ctx))
	require.True(t, a.Registry.Has(chainreg.SeiTestnetChainID))

	dest, ok := a.Sessions.Session(types.RoleDestination)
	require.True(t, ok)
	require.NoError(t, cosmos.ValidateAddress(dest.Address, "sei"))

	addr, err := a.Workflow.RequestDepositAddress(ctx, workflow.Request{Amount: "1.5"})
	require.NoError(t, err)
	require.Equal(t, dest.Address, addr.DestinationRecipient)
	require.Len(t, rel.requests, 1)
	require.Equal(t, "ethereum", rel.requests[0].SourceChain)
	require.Equal(t, "sei", rel.requests[0].DestinationChain)
	require.Equal(t, config.DefaultRelayDenom, rel.requests[0].Denom)

	intent, err := a.Workflow.SubmitTransfer(ctx, "1.5")
	require.NoError(t, err)
	require.Equal(t, "1500000", intent.MinorUnits.String())
	require.Len(t, node.sent, 1)

	receipt, err := a.Workflow.AwaitConfirmation(ctx)
	require.NoError(t, err)
	require.Equal(t, intent.TxHash, receipt.TxHash)
	require.Equal(t, types.StateCompleted, a.View().Workflow.State)
}

func TestMonitorRefreshesBalances(t *testing.T) {
	node := &chain{balance: big.NewInt(5_000_000)}
	a := newTestApp(t, node, &staticRelay{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Monitor(ctx) }()

	require.NoError(t, a.Connect(context.Background()))

	require.Eventually(t, func() bool {
		v := a.View()
		return v.SourceBal.Snapshot != nil && v.DestBal.Snapshot != nil && v.BlockHeight > 0
	}, 2*time.Second, 10*time.Millisecond)

	v := a.View()
	require.Equal(t, "5", v.SourceBal.Snapshot.Amount.String())
	require.Equal(t, "2.5", v.DestBal.Snapshot.Amount.String())
	require.NotNil(t, v.Source)
	require.NotNil(t, v.Destination)

	a.Sessions.Disconnect(types.RoleSource)
	require.Eventually(t, func() bool {
		return a.View().SourceBal.Snapshot == nil
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestConnectWithoutKey(t *testing.T) {
	node := &chain{balance: big.NewInt(0)}
	a := newTestApp(t, node, &staticRelay{}, func(cfg *config.Config) {
		cfg.Source.PrivateKey = ""
	})

	err := a.Connect(context.Background())
	require.Error(t, err)
	require.Equal(t, errs.ProviderMissing, errs.KindOf(err))

	_, ok := a.Sessions.Session(types.RoleSource)
	require.False(t, ok)
}

func TestApproverDeclines(t *testing.T) {
	node := &chain{balance: big.NewInt(0)}
	a := newTestApp(t, node, &staticRelay{})

	var prompts []string
	a2, err := New(Options{
		Config: a.cfg,
		Approver: func(ctx context.Context, prompt string) (bool, error) {
			prompts = append(prompts, prompt)
			return false, nil
		},
		Dialer:   func(ctx context.Context, rawURL string) (evm.Backend, error) { return node, nil },
		Relay:    &staticRelay{},
		Heads:    node,
		Registry: a.Registry,
	})
	require.NoError(t, err)

	err = a2.Connect(context.Background())
	require.Equal(t, errs.UserRejected, errs.KindOf(err))
	require.Len(t, prompts, 1)

	a.cfg.AutoConfirm = true
	a3, err := New(Options{
		Config: a.cfg,
		Approver: func(ctx context.Context, prompt string) (bool, error) {
			t.Fatalf("unexpected prompt %q", prompt)
			return false, nil
		},
		Dialer:   func(ctx context.Context, rawURL string) (evm.Backend, error) { return node, nil },
		Relay:    &staticRelay{},
		Heads:    node,
		Registry: a.Registry,
	})
	require.NoError(t, err)
	require.NoError(t, a3.Connect(context.Background()))
	a3.Close()
}

func TestChainDefinitionPrefersRegistry(t *testing.T) {
	registry, err := chainreg.NewRegistry(filepath.Join(t.TempDir(), "chains.json"))
	require.NoError(t, err)

	cfg := &config.Config{Destination: config.DestinationConfig{ChainID: chainreg.SeiTestnetChainID, REST: "http://override"}}
	def := ChainDefinition(cfg, registry)
	require.Equal(t, "http://override", def.REST)

	custom := chainreg.DefaultSeiTestnet()
	custom.REST = "http://registered"
	require.NoError(t, registry.Register(custom))
	require.Equal(t, "http://registered", ChainDefinition(cfg, registry).REST)
}

func TestCloseReleasesDialledHeads(t *testing.T) {
	node := &chain{balance: big.NewInt(0)}
	a := newTestApp(t, node, &staticRelay{}, func(cfg *config.Config) {
		cfg.Blocks.RPCURL = "http://127.0.0.1:1"
	})
	a.heads = nil

	a.trackerMu.Lock()
	tracker, err := a.newTracker(context.Background())
	a.tracker = tracker
	a.trackerMu.Unlock()
	require.NoError(t, err)
	require.NotNil(t, a.dialled)

	a.Close()
	require.Nil(t, a.dialled)
	require.Nil(t, a.heads)
	require.Nil(t, a.tracker)

	// a second Close after cleanup must not touch the released client
	a.Close()
}
