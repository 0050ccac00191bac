package balance

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"sei-bridge/pkg/session"
	"sei-bridge/pkg/types"
)

// Side names which balance a poll concerns.
type Side string

const (
	SideSource      Side = "source"
	SideDestination Side = "destination"
)

// Recorder receives poll outcomes. *metrics.Metrics implements it.
type Recorder interface {
	RecordBalance(side string, snap types.BalanceSnapshot)
	RecordBalanceReadFailure(side string)
}

// Sessions is the read-only view of the session manager the watcher needs.
type Sessions interface {
	Session(role types.ChainRole) (types.WalletSession, bool)
	SourceSigner() (*session.SourceHandle, error)
}

// Status is the latest outcome for one side.
type Status struct {
	Snapshot *types.BalanceSnapshot
	Err      error
}

// Watcher keeps the latest snapshot of both balances, re-reading them
// whenever it is triggered.
type Watcher struct {
	reader   *Reader
	sessions Sessions
	recorder Recorder
	logger   *zap.Logger

	mu     sync.RWMutex
	status map[Side]Status
}

// NewWatcher creates a watcher over the accounts of sessions.
func NewWatcher(reader *Reader, sessions Sessions, recorder Recorder, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		reader:   reader,
		sessions: sessions,
		recorder: recorder,
		logger:   logger,
		status:   make(map[Side]Status),
	}
}

// Source returns the latest source balance status.
func (w *Watcher) Source() Status {
	return w.get(SideSource)
}

// Destination returns the latest destination balance status. A nil snapshot
// with a nil error means the denom is not held.
func (w *Watcher) Destination() Status {
	return w.get(SideDestination)
}

func (w *Watcher) get(side Side) Status {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.status[side]
}

func (w *Watcher) set(side Side, st Status) {
	w.mu.Lock()
	w.status[side] = st
	w.mu.Unlock()
}

// Refresh reads both balances once. Sides without a live session are
// cleared. Failures are kept per side and never returned.
func (w *Watcher) Refresh(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		w.refreshSource(ctx)
	}()
	go func() {
		defer wg.Done()
		w.refreshDestination(ctx)
	}()
	wg.Wait()
}

func (w *Watcher) refreshSource(ctx context.Context) {
	sess, ok := w.sessions.Session(types.RoleSource)
	if !ok {
		w.set(SideSource, Status{})
		return
	}
	signer, err := w.sessions.SourceSigner()
	if err != nil {
		w.set(SideSource, Status{})
		return
	}

	for snap, err := range w.reader.ObserveSource(ctx, signer, sess.Address) {
		w.record(ctx, SideSource, snap, true, err)
	}
}

func (w *Watcher) refreshDestination(ctx context.Context) {
	sess, ok := w.sessions.Session(types.RoleDestination)
	if !ok {
		w.set(SideDestination, Status{})
		return
	}

	snap, found, err := w.reader.ReadDestination(ctx, sess.Address)
	w.record(ctx, SideDestination, snap, found, err)
}

func (w *Watcher) record(ctx context.Context, side Side, snap types.BalanceSnapshot, found bool, err error) {
	if err != nil {
		if ctx.Err() != nil {
			// abandoned poll, keep the previous status
			return
		}
		w.logger.Warn("balance read failed", zap.String("side", string(side)), zap.Error(err))
		if w.recorder != nil {
			w.recorder.RecordBalanceReadFailure(string(side))
		}
		prev := w.get(side)
		w.set(side, Status{Snapshot: prev.Snapshot, Err: err})
		return
	}

	if !found {
		w.set(side, Status{})
		return
	}

	w.logger.Debug("balance observed",
		zap.String("side", string(side)),
		zap.String("account", snap.Account),
		zap.String("amount", snap.Amount.String()),
		zap.String("denom", snap.Denom))
	if w.recorder != nil {
		w.recorder.RecordBalance(string(side), snap)
	}
	w.set(side, Status{Snapshot: &snap})
}

// Run refreshes once, then again on every trigger and, when configured, every
// refresh interval, until ctx is done.
func (w *Watcher) Run(ctx context.Context, trigger <-chan struct{}) error {
	w.Refresh(ctx)

	var tick <-chan time.Time
	if w.reader.cfg.RefreshInterval > 0 {
		ticker := time.NewTicker(w.reader.cfg.RefreshInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-trigger:
			if !ok {
				trigger = nil
				continue
			}
			w.Refresh(ctx)
		case <-tick:
			w.Refresh(ctx)
		}
	}
}
