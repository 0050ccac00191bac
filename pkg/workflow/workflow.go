// Package workflow drives one bridge transfer from deposit address issuance
// to source chain confirmation.
package workflow

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sei-bridge/pkg/amount"
	"sei-bridge/pkg/errs"
	"sei-bridge/pkg/relay"
	"sei-bridge/pkg/session"
	"sei-bridge/pkg/types"
)

// Sessions is the part of the session manager the workflow reads.
type Sessions interface {
	SourceSigner() (*session.SourceHandle, error)
	DestinationAddress() (string, error)
}

// Recorder receives workflow outcomes. *metrics.Metrics implements it.
type Recorder interface {
	RecordTransition(from, to types.WorkflowState)
	RecordStepFailure(step string, kind errs.Kind)
}

// Options configures a Workflow.
type Options struct {
	Sessions Sessions
	Relay    relay.Relay
	Recorder Recorder
	Logger   *zap.Logger

	SourceChain      string
	DestinationChain string
	Denom            string
	Decimals         int32
}

// Request asks for a deposit address. Empty fields fall back to the
// workflow's defaults; an empty Recipient falls back to the destination
// session.
type Request struct {
	SourceChain      string
	DestinationChain string
	Recipient        string
	Denom            string

	// Amount is forwarded to quote based relays as a hint.
	Amount string
}

// Workflow is the step state machine. Steps are serialized: one external call
// at a time, and state only moves forward until Reset.
type Workflow struct {
	opts   Options
	logger *zap.Logger

	step sync.Mutex // held across each step's external call

	mu      sync.RWMutex
	snap    types.WorkflowSnapshot
	pending session.PendingTx

	listenersMu sync.Mutex
	listeners   map[int]func(types.WorkflowSnapshot)
	nextID      int
}

// New creates a workflow instance in AwaitingDepositAddress.
func New(opts Options) *Workflow {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Decimals == 0 {
		opts.Decimals = amount.USDCDecimals
	}
	return &Workflow{
		opts:   opts,
		logger: opts.Logger,
		snap: types.WorkflowSnapshot{
			InstanceID: uuid.New().String(),
			State:      types.StateAwaitingDepositAddress,
		},
		listeners: make(map[int]func(types.WorkflowSnapshot)),
	}
}

// Snapshot returns a copy of the current instance.
func (w *Workflow) Snapshot() types.WorkflowSnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return copySnapshot(w.snap)
}

// State returns the current state.
func (w *Workflow) State() types.WorkflowState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.snap.State
}

// RequestDepositAddress obtains a deposit address for the recipient and
// advances to AwaitingSourceTransfer. Calling it again before a transfer was
// submitted replaces the address for this attempt.
func (w *Workflow) RequestDepositAddress(ctx context.Context, req Request) (types.DepositAddress, error) {
	const op = "request deposit address"

	w.step.Lock()
	defer w.step.Unlock()

	state := w.State()
	if state != types.StateAwaitingDepositAddress && state != types.StateAwaitingSourceTransfer {
		return types.DepositAddress{}, w.fail(op, errs.New(errs.ValidationFailed, op, "a transfer was already submitted in state %s; reset first", state))
	}

	req = w.withDefaults(req)
	if req.Recipient == "" {
		return types.DepositAddress{}, w.fail(op, errs.New(errs.ValidationFailed, op, "destination recipient is not resolved"))
	}

	relayReq := relay.DepositRequest{
		SourceChain:      req.SourceChain,
		DestinationChain: req.DestinationChain,
		Recipient:        req.Recipient,
		Denom:            req.Denom,
	}
	if req.Amount != "" {
		_, units, err := amount.ParseToMinorUnits(req.Amount, w.opts.Decimals)
		if err != nil {
			return types.DepositAddress{}, w.fail(op, errs.Wrap(errs.ValidationFailed, op, err))
		}
		relayReq.AmountHint = units
	}
	if w.opts.Sessions != nil {
		if signer, err := w.opts.Sessions.SourceSigner(); err == nil {
			relayReq.RefundTo = signer.Address()
		}
	}

	if w.opts.Relay == nil {
		return types.DepositAddress{}, w.fail(op, errs.New(errs.RelayRequestFailed, op, "no relay configured"))
	}

	address, err := w.opts.Relay.GetDepositAddress(ctx, relayReq)
	if err != nil {
		return types.DepositAddress{}, w.fail(op, errs.Wrap(errs.RelayRequestFailed, op, err))
	}
	if address == "" {
		return types.DepositAddress{}, w.fail(op, errs.New(errs.RelayRequestFailed, op, "relay returned an empty deposit address"))
	}

	deposit := types.DepositAddress{
		SourceChain:          req.SourceChain,
		DestinationChain:     req.DestinationChain,
		DestinationRecipient: req.Recipient,
		Denom:                req.Denom,
		Address:              address,
		IssuedAt:             time.Now(),
	}

	w.logger.Info("deposit address issued",
		zap.String("deposit_address", address),
		zap.String("recipient", req.Recipient),
		zap.String("denom", req.Denom))

	w.transition(types.StateAwaitingSourceTransfer, func(s *types.WorkflowSnapshot) {
		s.DepositAddress = &deposit
	})

	return deposit, nil
}

func (w *Workflow) withDefaults(req Request) Request {
	if req.SourceChain == "" {
		req.SourceChain = w.opts.SourceChain
	}
	if req.DestinationChain == "" {
		req.DestinationChain = w.opts.DestinationChain
	}
	if req.Denom == "" {
		req.Denom = w.opts.Denom
	}
	if req.Recipient == "" && w.opts.Sessions != nil {
		if addr, err := w.opts.Sessions.DestinationAddress(); err == nil {
			req.Recipient = addr
		}
	}
	return req
}

// SubmitTransfer sends amount of the token to the deposit address and
// advances to AwaitingConfirmation as soon as the transfer is accepted.
// Invalid input fails with ValidationFailed before any external call.
func (w *Workflow) SubmitTransfer(ctx context.Context, amountInput string) (types.TransferIntent, error) {
	const op = "submit transfer"

	w.step.Lock()
	defer w.step.Unlock()

	snap := w.Snapshot()
	if snap.State != types.StateAwaitingSourceTransfer || snap.DepositAddress == nil {
		return types.TransferIntent{}, w.fail(op, errs.New(errs.ValidationFailed, op, "no deposit address resolved (state %s)", snap.State))
	}

	value, units, err := amount.ParseToMinorUnits(amountInput, w.opts.Decimals)
	if err != nil {
		return types.TransferIntent{}, w.fail(op, errs.Wrap(errs.ValidationFailed, op, err))
	}

	if w.opts.Sessions == nil {
		return types.TransferIntent{}, w.fail(op, errs.New(errs.SessionInvalidated, op, "no session manager"))
	}
	signer, err := w.opts.Sessions.SourceSigner()
	if err != nil {
		return types.TransferIntent{}, w.fail(op, err)
	}

	deposit := *snap.DepositAddress
	pending, err := signer.TransferToken(ctx, deposit.Address, units)
	if err != nil {
		if errs.Is(err, errs.SessionInvalidated) {
			return types.TransferIntent{}, w.fail(op, err)
		}
		return types.TransferIntent{}, w.fail(op, errs.Wrap(errs.TransferSubmissionFailed, op, err))
	}

	intent := types.TransferIntent{
		DepositAddress: deposit,
		Amount:         value,
		MinorUnits:     units,
		TxHash:         pending.Hash(),
		SubmittedAt:    time.Now(),
	}

	w.logger.Info("transfer submitted",
		zap.String("tx_hash", intent.TxHash),
		zap.String("deposit_address", deposit.Address),
		zap.String("amount", amount.Format(value)),
		zap.String("minor_units", units.String()))

	w.mu.Lock()
	w.pending = pending
	w.mu.Unlock()

	w.transition(types.StateAwaitingConfirmation, func(s *types.WorkflowSnapshot) {
		s.Intent = &intent
	})

	if notifier, ok := w.opts.Relay.(relay.DepositNotifier); ok {
		if err := notifier.NotifyDeposit(ctx, deposit.Address, intent.TxHash); err != nil {
			w.logger.Warn("relay deposit notification failed", zap.String("tx_hash", intent.TxHash), zap.Error(err))
		}
	}

	return intent, nil
}

// AwaitConfirmation blocks until the submitted transfer is final. There is
// no internal timeout: cancel ctx to stop waiting, which leaves the state
// untouched. The step lock is not held while waiting, so Reset does not
// block on a pending confirmation; a confirmation that arrives for a reset
// instance is reported and not recorded.
func (w *Workflow) AwaitConfirmation(ctx context.Context) (types.TransferReceipt, error) {
	const op = "await confirmation"

	w.step.Lock()
	w.mu.RLock()
	id, state, pending, receipt := w.snap.InstanceID, w.snap.State, w.pending, w.snap.Receipt
	w.mu.RUnlock()
	w.step.Unlock()

	if state == types.StateCompleted && receipt != nil {
		return *receipt, nil
	}
	if state != types.StateAwaitingConfirmation || pending == nil {
		return types.TransferReceipt{}, w.fail(op, errs.New(errs.ValidationFailed, op, "no submitted transfer (state %s)", state))
	}

	got, err := pending.Wait(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return types.TransferReceipt{}, err
		}
		return types.TransferReceipt{}, w.fail(op, errs.Wrap(errs.TransferNotConfirmed, op, err))
	}
	if got == nil {
		return types.TransferReceipt{}, w.fail(op, errs.New(errs.TransferNotConfirmed, op, "no receipt for %s", pending.Hash()))
	}

	final := *got

	w.step.Lock()
	defer w.step.Unlock()

	w.mu.RLock()
	current, state, receipt := w.snap.InstanceID, w.snap.State, w.snap.Receipt
	w.mu.RUnlock()

	switch {
	case current != id:
		w.logger.Warn("confirmation arrived after reset",
			zap.String("tx_hash", final.TxHash),
			zap.String("instance_id", id))
		return final, w.fail(op, errs.New(errs.ValidationFailed, op, "instance %s was reset while waiting", id))
	case state == types.StateCompleted && receipt != nil:
		// another waiter recorded it first
		return *receipt, nil
	}

	w.logger.Info("transfer confirmed",
		zap.String("tx_hash", final.TxHash),
		zap.Uint64("block", final.BlockNumber))

	w.transition(types.StateCompleted, func(s *types.WorkflowSnapshot) {
		s.Receipt = &final
	})

	return final, nil
}

// Reset supersedes the instance with a fresh one in AwaitingDepositAddress
// and returns its id.
func (w *Workflow) Reset() string {
	w.step.Lock()
	defer w.step.Unlock()

	w.mu.Lock()
	from := w.snap.State
	w.snap = types.WorkflowSnapshot{
		InstanceID: uuid.New().String(),
		State:      types.StateAwaitingDepositAddress,
	}
	w.pending = nil
	snap := copySnapshot(w.snap)
	w.mu.Unlock()

	w.logger.Info("workflow reset", zap.String("instance_id", snap.InstanceID), zap.String("from", string(from)))
	if w.opts.Recorder != nil {
		w.opts.Recorder.RecordTransition(from, snap.State)
	}
	w.publish(snap)
	return snap.InstanceID
}

// Subscribe registers fn for state changes. The returned function removes
// the subscription.
func (w *Workflow) Subscribe(fn func(types.WorkflowSnapshot)) func() {
	w.listenersMu.Lock()
	id := w.nextID
	w.nextID++
	w.listeners[id] = fn
	w.listenersMu.Unlock()

	return func() {
		w.listenersMu.Lock()
		delete(w.listeners, id)
		w.listenersMu.Unlock()
	}
}

// transition moves forward to `to` and applies mutate to the instance. A
// same-state transition only applies mutate.
func (w *Workflow) transition(to types.WorkflowState, mutate func(*types.WorkflowSnapshot)) {
	w.mu.Lock()
	from := w.snap.State
	if to.Ordinal() < from.Ordinal() {
		w.mu.Unlock()
		w.logger.DPanic("backward workflow transition refused",
			zap.String("from", string(from)),
			zap.String("to", string(to)))
		return
	}
	mutate(&w.snap)
	w.snap.State = to
	snap := copySnapshot(w.snap)
	w.mu.Unlock()

	if from != to {
		w.logger.Debug("workflow transition",
			zap.String("instance_id", snap.InstanceID),
			zap.String("from", string(from)),
			zap.String("to", string(to)))
		if w.opts.Recorder != nil {
			w.opts.Recorder.RecordTransition(from, to)
		}
	}
	w.publish(snap)
}

func (w *Workflow) publish(snap types.WorkflowSnapshot) {
	w.listenersMu.Lock()
	fns := make([]func(types.WorkflowSnapshot), 0, len(w.listeners))
	for _, fn := range w.listeners {
		fns = append(fns, fn)
	}
	w.listenersMu.Unlock()

	for _, fn := range fns {
		fn(copySnapshot(snap))
	}
}

func (w *Workflow) fail(step string, err error) error {
	if w.opts.Recorder != nil {
		w.opts.Recorder.RecordStepFailure(step, errs.KindOf(err))
	}
	w.logger.Debug("workflow step failed", zap.String("step", step), zap.Error(err))
	return err
}

func copySnapshot(s types.WorkflowSnapshot) types.WorkflowSnapshot {
	out := s
	if s.DepositAddress != nil {
		d := *s.DepositAddress
		out.DepositAddress = &d
	}
	if s.Intent != nil {
		i := *s.Intent
		if s.Intent.MinorUnits != nil {
			i.MinorUnits = new(big.Int).Set(s.Intent.MinorUnits)
		}
		out.Intent = &i
	}
	if s.Receipt != nil {
		r := *s.Receipt
		out.Receipt = &r
	}
	return out
}
