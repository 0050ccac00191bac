package workflow

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sei-bridge/pkg/errs"
	"sei-bridge/pkg/relay"
	"sei-bridge/pkg/session"
	"sei-bridge/pkg/session/sessiontest"
	"sei-bridge/pkg/types"
)

const depositAddr = "0xDEAD00000000000000000000000000000000BEEF"

type fakeRelay struct {
	mu       sync.Mutex
	address  string
	err      error
	requests []relay.DepositRequest
	notified []string
}

func (f *fakeRelay) GetDepositAddress(ctx context.Context, req relay.DepositRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	return f.address, nil
}

func (f *fakeRelay) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type notifyingRelay struct {
	*fakeRelay
}

func (n notifyingRelay) NotifyDeposit(ctx context.Context, depositAddress, txHash string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notified = append(n.notified, txHash)
	return errors.New("notification endpoint down")
}

type fakeRecorder struct {
	mu          sync.Mutex
	transitions []string
	failures    []errs.Kind
}

func (f *fakeRecorder) RecordTransition(from, to types.WorkflowState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transitions = append(f.transitions, string(from)+">"+string(to))
}

func (f *fakeRecorder) RecordStepFailure(step string, kind errs.Kind) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, kind)
}

type fixture struct {
	src     *sessiontest.SourceProvider
	dst     *sessiontest.DestinationProvider
	manager *session.Manager
	relay   *fakeRelay
	rec     *fakeRecorder
}

func newFixture(t *testing.T, connect bool) *fixture {
	t.Helper()
	f := &fixture{
		src: &sessiontest.SourceProvider{
			Accounts: []string{"0xabc"},
			Chain:    big.NewInt(3),
			Balances: map[string]*big.Int{"0xabc": big.NewInt(10_000_000)},
		},
		dst:   &sessiontest.DestinationProvider{Address: "sei1abc"},
		relay: &fakeRelay{address: depositAddr},
		rec:   &fakeRecorder{},
	}
	f.manager = session.NewManager(session.Options{
		Source:          f.src,
		Destination:     f.dst,
		RequiredChainID: big.NewInt(3),
		Chain:           types.ChainDefinition{ChainID: "atlantic-1", ChainName: "SEI Testnet"},
	})
	if connect {
		_, err := f.manager.ConnectSource(context.Background())
		require.NoError(t, err)
		_, err = f.manager.ConnectDestination(context.Background())
		require.NoError(t, err)
	}
	return f
}

func (f *fixture) workflow(r relay.Relay) *Workflow {
	if r == nil {
		r = f.relay
	}
	return New(Options{
		Sessions:         f.manager,
		Relay:            r,
		Recorder:         f.rec,
		SourceChain:      "ethereum",
		DestinationChain: "sei",
		Denom:            "uausdc",
	})
}

func TestRequestDepositAddress(t *testing.T) {
	f := newFixture(t, true)
	w := f.workflow(nil)

	deposit, err := w.RequestDepositAddress(context.Background(), Request{Recipient: "sei1abc", Denom: "uausdc"})
	require.NoError(t, err)
	require.Equal(t, depositAddr, deposit.Address)
	require.Equal(t, types.StateAwaitingSourceTransfer, w.State())

	require.Len(t, f.relay.requests, 1)
	require.Equal(t, relay.DepositRequest{
		SourceChain:      "ethereum",
		DestinationChain: "sei",
		Recipient:        "sei1abc",
		Denom:            "uausdc",
		RefundTo:         "0xabc",
	}, f.relay.requests[0])

	snap := w.Snapshot()
	require.NotNil(t, snap.DepositAddress)
	require.Equal(t, "sei1abc", snap.DepositAddress.DestinationRecipient)
}

func TestRequestDepositAddressUsesDestinationSession(t *testing.T) {
	f := newFixture(t, true)
	w := f.workflow(nil)

	deposit, err := w.RequestDepositAddress(context.Background(), Request{})
	require.NoError(t, err)
	require.Equal(t, "sei1abc", deposit.DestinationRecipient)
	require.Equal(t, "uausdc", deposit.Denom)
}

func TestRequestDepositAddressWithoutRecipient(t *testing.T) {
	f := newFixture(t, false)
	w := f.workflow(nil)

	_, err := w.RequestDepositAddress(context.Background(), Request{})
	require.True(t, errs.Is(err, errs.ValidationFailed))
	require.Zero(t, f.relay.calls())
	require.Equal(t, types.StateAwaitingDepositAddress, w.State())
}

func TestRequestDepositAddressRelayFailure(t *testing.T) {
	f := newFixture(t, true)
	f.relay.err = errors.New("503 from relay")
	w := f.workflow(nil)

	_, err := w.RequestDepositAddress(context.Background(), Request{})
	require.True(t, errs.Is(err, errs.RelayRequestFailed))
	require.Equal(t, types.StateAwaitingDepositAddress, w.State())

	// Caller driven retry of the same step.
	f.relay.err = nil
	_, err = w.RequestDepositAddress(context.Background(), Request{})
	require.NoError(t, err)
	require.Equal(t, types.StateAwaitingSourceTransfer, w.State())
	require.Equal(t, []errs.Kind{errs.RelayRequestFailed}, f.rec.failures)
}

func TestRequestDepositAddressRetryReplacesAddress(t *testing.T) {
	f := newFixture(t, true)
	w := f.workflow(nil)

	_, err := w.RequestDepositAddress(context.Background(), Request{})
	require.NoError(t, err)

	f.relay.address = "0x00000000000000000000000000000000000000AA"
	_, err = w.RequestDepositAddress(context.Background(), Request{})
	require.NoError(t, err)
	require.Equal(t, types.StateAwaitingSourceTransfer, w.State())
	require.Equal(t, f.relay.address, w.Snapshot().DepositAddress.Address)
}

func TestSubmitTransfer(t *testing.T) {
	f := newFixture(t, true)
	w := f.workflow(nil)

	_, err := w.RequestDepositAddress(context.Background(), Request{Recipient: "sei1abc"})
	require.NoError(t, err)

	intent, err := w.SubmitTransfer(context.Background(), "0.15")
	require.NoError(t, err)
	require.Equal(t, types.StateAwaitingConfirmation, w.State())
	require.Equal(t, "150000", intent.MinorUnits.String())
	require.Equal(t, "0.15", intent.Amount.String())

	require.Len(t, f.src.Transfers, 1)
	require.Equal(t, depositAddr, f.src.Transfers[0].To)
	require.Equal(t, "150000", f.src.Transfers[0].Amount.String())
}

func TestSubmitTransferValidation(t *testing.T) {
	inputs := []string{"", "abc", "0", "-1", "0.0000001", "NaN", "Inf", "1e400x", "1e80", "1e2000000",
		"1157920892373161954235709850086879078532699846656405640394575840079131296"}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			f := newFixture(t, true)
			w := f.workflow(nil)

			_, err := w.RequestDepositAddress(context.Background(), Request{})
			require.NoError(t, err)
			relayCalls := f.relay.calls()

			_, err = w.SubmitTransfer(context.Background(), input)
			require.True(t, errs.Is(err, errs.ValidationFailed), "input %q: %v", input, err)
			require.Zero(t, f.src.TransferCount())
			require.Equal(t, relayCalls, f.relay.calls())
			require.Equal(t, types.StateAwaitingSourceTransfer, w.State())
		})
	}
}

func TestSubmitTransferWithoutDepositAddress(t *testing.T) {
	f := newFixture(t, true)
	w := f.workflow(nil)

	_, err := w.SubmitTransfer(context.Background(), "1")
	require.True(t, errs.Is(err, errs.ValidationFailed))
	require.Zero(t, f.src.TransferCount())
	require.Equal(t, types.StateAwaitingDepositAddress, w.State())
}

func TestSubmitTransferFailure(t *testing.T) {
	f := newFixture(t, true)
	w := f.workflow(nil)

	_, err := w.RequestDepositAddress(context.Background(), Request{})
	require.NoError(t, err)

	f.src.TransferErr = errors.New("insufficient funds for gas")
	_, err = w.SubmitTransfer(context.Background(), "1")
	require.True(t, errs.Is(err, errs.TransferSubmissionFailed))
	require.Equal(t, types.StateAwaitingSourceTransfer, w.State())
}

func TestSubmitTransferAfterDisconnect(t *testing.T) {
	f := newFixture(t, true)
	w := f.workflow(nil)

	_, err := w.RequestDepositAddress(context.Background(), Request{})
	require.NoError(t, err)

	f.manager.Disconnect(types.RoleSource)

	_, err = w.SubmitTransfer(context.Background(), "1")
	require.True(t, errs.Is(err, errs.SessionInvalidated))
	require.Zero(t, f.src.TransferCount())
}

func TestAwaitConfirmation(t *testing.T) {
	f := newFixture(t, true)
	w := f.workflow(nil)

	var states []types.WorkflowState
	unsubscribe := w.Subscribe(func(s types.WorkflowSnapshot) {
		states = append(states, s.State)
	})
	defer unsubscribe()

	_, err := w.RequestDepositAddress(context.Background(), Request{})
	require.NoError(t, err)
	_, err = w.SubmitTransfer(context.Background(), "2.5")
	require.NoError(t, err)

	receipt, err := w.AwaitConfirmation(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(100), receipt.BlockNumber)
	require.Equal(t, types.StateCompleted, w.State())
	require.NotNil(t, w.Snapshot().Receipt)

	require.Equal(t, []types.WorkflowState{
		types.StateAwaitingSourceTransfer,
		types.StateAwaitingConfirmation,
		types.StateCompleted,
	}, states)

	again, err := w.AwaitConfirmation(context.Background())
	require.NoError(t, err)
	require.Equal(t, receipt, again)
}

func TestAwaitConfirmationReverted(t *testing.T) {
	f := newFixture(t, true)
	f.src.Reverted = true
	w := f.workflow(nil)

	_, err := w.RequestDepositAddress(context.Background(), Request{})
	require.NoError(t, err)
	_, err = w.SubmitTransfer(context.Background(), "1")
	require.NoError(t, err)

	_, err = w.AwaitConfirmation(context.Background())
	require.True(t, errs.Is(err, errs.TransferNotConfirmed))
	require.Equal(t, types.StateAwaitingConfirmation, w.State())
}

func TestAwaitConfirmationCancelled(t *testing.T) {
	f := newFixture(t, true)
	f.src.Confirmations = make(chan struct{})
	w := f.workflow(nil)

	_, err := w.RequestDepositAddress(context.Background(), Request{})
	require.NoError(t, err)
	_, err = w.SubmitTransfer(context.Background(), "1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = w.AwaitConfirmation(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Empty(t, errs.KindOf(err))
	require.Equal(t, types.StateAwaitingConfirmation, w.State())

	close(f.src.Confirmations)
	_, err = w.AwaitConfirmation(context.Background())
	require.NoError(t, err)
	require.Equal(t, types.StateCompleted, w.State())
}

func TestResetDuringAwaitConfirmation(t *testing.T) {
	f := newFixture(t, true)
	f.src.Confirmations = make(chan struct{})
	w := f.workflow(nil)

	_, err := w.RequestDepositAddress(context.Background(), Request{})
	require.NoError(t, err)
	_, err = w.SubmitTransfer(context.Background(), "1")
	require.NoError(t, err)

	awaited := make(chan error, 1)
	go func() {
		_, err := w.AwaitConfirmation(context.Background())
		awaited <- err
	}()
	time.Sleep(20 * time.Millisecond)

	reset := make(chan string, 1)
	go func() { reset <- w.Reset() }()

	var id string
	select {
	case id = <-reset:
	case <-time.After(time.Second):
		t.Fatal("Reset blocked on a pending confirmation")
	}

	close(f.src.Confirmations)
	select {
	case err = <-awaited:
	case <-time.After(time.Second):
		t.Fatal("AwaitConfirmation did not return")
	}
	require.True(t, errs.Is(err, errs.ValidationFailed), "%v", err)

	snap := w.Snapshot()
	require.Equal(t, id, snap.InstanceID)
	require.Equal(t, types.StateAwaitingDepositAddress, snap.State)
	require.Nil(t, snap.Receipt)
}

func TestAwaitConfirmationBeforeSubmit(t *testing.T) {
	f := newFixture(t, true)
	w := f.workflow(nil)

	_, err := w.AwaitConfirmation(context.Background())
	require.True(t, errs.Is(err, errs.ValidationFailed))
}

func TestStateIsMonotonic(t *testing.T) {
	f := newFixture(t, true)
	w := f.workflow(nil)
	ctx := context.Background()

	ordinal := w.State().Ordinal()
	check := func() {
		next := w.State().Ordinal()
		require.GreaterOrEqual(t, next, ordinal)
		ordinal = next
	}

	_, _ = w.SubmitTransfer(ctx, "1")
	check()
	_, _ = w.RequestDepositAddress(ctx, Request{})
	check()
	_, _ = w.AwaitConfirmation(ctx)
	check()
	_, _ = w.SubmitTransfer(ctx, "1")
	check()
	_, err := w.RequestDepositAddress(ctx, Request{})
	require.True(t, errs.Is(err, errs.ValidationFailed))
	check()
	_, _ = w.AwaitConfirmation(ctx)
	check()
	require.Equal(t, types.StateCompleted, w.State())

	_, err = w.RequestDepositAddress(ctx, Request{})
	require.True(t, errs.Is(err, errs.ValidationFailed))
	require.Equal(t, types.StateCompleted, w.State())
}

func TestReset(t *testing.T) {
	f := newFixture(t, true)
	w := f.workflow(nil)

	first := w.Snapshot().InstanceID
	_, err := w.RequestDepositAddress(context.Background(), Request{})
	require.NoError(t, err)

	id := w.Reset()
	require.NotEqual(t, first, id)

	snap := w.Snapshot()
	require.Equal(t, id, snap.InstanceID)
	require.Equal(t, types.StateAwaitingDepositAddress, snap.State)
	require.Nil(t, snap.DepositAddress)
	require.Contains(t, f.rec.transitions, "awaiting_source_transfer>awaiting_deposit_address")
}

func TestSubmitTransferNotifiesRelay(t *testing.T) {
	f := newFixture(t, true)
	r := notifyingRelay{fakeRelay: f.relay}
	w := f.workflow(r)

	_, err := w.RequestDepositAddress(context.Background(), Request{})
	require.NoError(t, err)

	intent, err := w.SubmitTransfer(context.Background(), "1")
	require.NoError(t, err, "notification failures are not transfer failures")
	require.Equal(t, []string{intent.TxHash}, f.relay.notified)
}

func TestSnapshotIsACopy(t *testing.T) {
	f := newFixture(t, true)
	w := f.workflow(nil)

	_, err := w.RequestDepositAddress(context.Background(), Request{})
	require.NoError(t, err)

	snap := w.Snapshot()
	snap.DepositAddress.Address = "tampered"
	require.Equal(t, depositAddr, w.Snapshot().DepositAddress.Address)
}
