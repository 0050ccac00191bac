package session

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"go.uber.org/zap"

	"sei-bridge/pkg/errs"
	"sei-bridge/pkg/types"
)

// EventKind describes what happened to a session slot.
type EventKind string

const (
	EventConnected    EventKind = "connected"
	EventReplaced     EventKind = "replaced"
	EventDisconnected EventKind = "disconnected"
)

// Event is delivered to subscribers after a session slot changed.
type Event struct {
	Role    types.ChainRole
	Kind    EventKind
	Session *types.WalletSession // nil on disconnect
}

type slot struct {
	session types.WalletSession
	source  *SourceHandle
	dest    *DestinationHandle
}

func (s *slot) revoke() {
	if s.source != nil {
		s.source.revoke()
	}
	if s.dest != nil {
		s.dest.revoke()
	}
}

// Options configures a Manager.
type Options struct {
	Source          SourceProvider
	Destination     DestinationProvider
	RequiredChainID *big.Int
	Chain           types.ChainDefinition
	Logger          *zap.Logger
}

// Manager owns the two wallet session slots. It is the only writer of
// session state; everything else reads through its accessors.
type Manager struct {
	sourceProvider  SourceProvider
	destProvider    DestinationProvider
	requiredChainID *big.Int
	chain           types.ChainDefinition
	logger          *zap.Logger

	// one connect in flight per role
	sourceConnect sync.Mutex
	destConnect   sync.Mutex

	mu    sync.RWMutex
	slots map[types.ChainRole]*slot

	listenersMu sync.Mutex
	listeners   map[int]func(Event)
	nextID      int
}

// NewManager creates a session manager. Providers may be nil, in which case
// connecting that role fails with ProviderMissing.
func NewManager(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		sourceProvider:  opts.Source,
		destProvider:    opts.Destination,
		requiredChainID: opts.RequiredChainID,
		chain:           opts.Chain,
		logger:          logger,
		slots:           make(map[types.ChainRole]*slot),
		listeners:       make(map[int]func(Event)),
	}
}

// ConnectSource requests account access from the source wallet, switching it
// to the required network first if needed.
func (m *Manager) ConnectSource(ctx context.Context) (types.WalletSession, error) {
	const op = "connect source"

	m.sourceConnect.Lock()
	defer m.sourceConnect.Unlock()

	if m.sourceProvider == nil {
		return types.WalletSession{}, errs.New(errs.ProviderMissing, op, "source wallet provider not detected")
	}

	accounts, err := m.sourceProvider.RequestAccounts(ctx)
	if err != nil {
		return types.WalletSession{}, classify(err, errs.ProviderMissing, op)
	}
	if len(accounts) == 0 {
		return types.WalletSession{}, errs.New(errs.UserRejected, op, "no account was granted")
	}

	if err := m.ensureNetwork(ctx); err != nil {
		return types.WalletSession{}, err
	}

	signer, err := m.sourceProvider.Signer(ctx, accounts[0])
	if err != nil {
		return types.WalletSession{}, classify(err, errs.ProviderMissing, op)
	}

	s := &slot{
		session: types.WalletSession{
			Role:        types.RoleSource,
			Address:     accounts[0],
			ConnectedAt: time.Now(),
		},
		source: newSourceHandle(signer),
	}
	s.session.Signer = s.source

	m.install(types.RoleSource, s)
	return s.session, nil
}

func (m *Manager) ensureNetwork(ctx context.Context) error {
	const op = "connect source"

	if m.requiredChainID == nil {
		return nil
	}

	current, err := m.sourceProvider.ChainID(ctx)
	if err != nil {
		return classify(err, errs.WrongNetwork, op)
	}
	if current.Cmp(m.requiredChainID) == 0 {
		return nil
	}

	m.logger.Info("source wallet on wrong network, requesting switch",
		zap.String("current_chain_id", current.String()),
		zap.String("required_chain_id", fmt.Sprintf("0x%x", m.requiredChainID)))

	if err := m.sourceProvider.SwitchChain(ctx, m.requiredChainID); err != nil {
		return errs.Wrap(errs.SwitchRejected, op, err)
	}

	current, err = m.sourceProvider.ChainID(ctx)
	if err != nil {
		return classify(err, errs.WrongNetwork, op)
	}
	if current.Cmp(m.requiredChainID) != 0 {
		return errs.New(errs.WrongNetwork, op, "wallet is on chain %s, want %s", current, m.requiredChainID)
	}
	return nil
}

// ConnectDestination registers the destination chain with the wallet if it
// is unknown, enables it and binds the first account.
func (m *Manager) ConnectDestination(ctx context.Context) (types.WalletSession, error) {
	const op = "connect destination"

	m.destConnect.Lock()
	defer m.destConnect.Unlock()

	if m.destProvider == nil {
		return types.WalletSession{}, errs.New(errs.ProviderMissing, op, "destination wallet provider not detected")
	}

	chainID := m.chain.ChainID

	known, err := m.destProvider.HasChain(ctx, chainID)
	if err != nil {
		return types.WalletSession{}, classify(err, errs.ChainRegistrationFailed, op)
	}
	if !known {
		m.logger.Info("registering destination chain", zap.String("chain_id", chainID), zap.String("chain_name", m.chain.ChainName))
		if err := m.destProvider.SuggestChain(ctx, m.chain); err != nil {
			return types.WalletSession{}, errs.Wrap(errs.ChainRegistrationFailed, op, err)
		}
	}

	if err := m.destProvider.Enable(ctx, chainID); err != nil {
		return types.WalletSession{}, classify(err, errs.UserRejected, op)
	}

	signer, err := m.destProvider.OfflineSigner(ctx, chainID)
	if err != nil {
		return types.WalletSession{}, classify(err, errs.ProviderMissing, op)
	}

	accounts, err := signer.Accounts(ctx)
	if err != nil {
		return types.WalletSession{}, classify(err, errs.UserRejected, op)
	}
	if len(accounts) == 0 || accounts[0].Address == "" {
		return types.WalletSession{}, errs.New(errs.UserRejected, op, "no account was granted for %s", chainID)
	}

	s := &slot{
		session: types.WalletSession{
			Role:        types.RoleDestination,
			Address:     accounts[0].Address,
			ConnectedAt: time.Now(),
		},
		dest: newDestinationHandle(signer),
	}
	s.session.Signer = s.dest

	m.install(types.RoleDestination, s)
	return s.session, nil
}

// install swaps the slot for role and revokes whatever was there before.
func (m *Manager) install(role types.ChainRole, s *slot) {
	m.mu.Lock()
	old := m.slots[role]
	m.slots[role] = s
	m.mu.Unlock()

	kind := EventConnected
	if old != nil {
		old.revoke()
		kind = EventReplaced
	}

	m.logger.Info("wallet session established",
		zap.String("role", string(role)),
		zap.String("address", s.session.Address),
		zap.String("event", string(kind)))

	session := s.session
	m.notify(Event{Role: role, Kind: kind, Session: &session})
}

// Disconnect clears the session for role. Outstanding signer handles fail
// with SessionInvalidated from then on.
func (m *Manager) Disconnect(role types.ChainRole) {
	m.mu.Lock()
	old := m.slots[role]
	delete(m.slots, role)
	m.mu.Unlock()

	if old == nil {
		return
	}
	old.revoke()

	m.logger.Info("wallet session cleared", zap.String("role", string(role)))
	m.notify(Event{Role: role, Kind: EventDisconnected})
}

// Session returns the live session for role.
func (m *Manager) Session(role types.ChainRole) (types.WalletSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.slots[role]
	if !ok {
		return types.WalletSession{}, false
	}
	return s.session, true
}

// SourceSigner returns the signer handle of the live source session.
func (m *Manager) SourceSigner() (*SourceHandle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.slots[types.RoleSource]
	if !ok || !s.source.Valid() {
		return nil, errs.New(errs.SessionInvalidated, "source signer", "no active source session")
	}
	return s.source, nil
}

// DestinationAddress returns the address of the live destination session.
func (m *Manager) DestinationAddress() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.slots[types.RoleDestination]
	if !ok || !s.dest.Valid() {
		return "", errs.New(errs.SessionInvalidated, "destination address", "no active destination session")
	}
	return s.session.Address, nil
}

// Chain returns the destination chain definition used for registration.
func (m *Manager) Chain() types.ChainDefinition {
	return m.chain
}

// Subscribe registers fn for session change events. The returned function
// removes the subscription.
func (m *Manager) Subscribe(fn func(Event)) func() {
	m.listenersMu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.listenersMu.Unlock()

	return func() {
		m.listenersMu.Lock()
		delete(m.listeners, id)
		m.listenersMu.Unlock()
	}
}

func (m *Manager) notify(ev Event) {
	m.listenersMu.Lock()
	fns := make([]func(Event), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.listenersMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// classify maps a provider error onto the taxonomy, keeping kinds that were
// already attached.
func classify(err error, fallback errs.Kind, op string) error {
	if errs.KindOf(err) != "" {
		return err
	}
	switch {
	case errors.Is(err, ErrRejected):
		return errs.Wrap(errs.UserRejected, op, err)
	case errors.Is(err, ErrUnavailable):
		return errs.Wrap(errs.ProviderMissing, op, err)
	default:
		return errs.Wrap(fallback, op, err)
	}
}
