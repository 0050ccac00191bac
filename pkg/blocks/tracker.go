// Package blocks reports source chain block heights for liveness display.
package blocks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/ethereum/go-ethereum"
	ethTypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

const (
	DefaultPollInterval = 6 * time.Second
	defaultRetries      = 10
)

// HeadSource is the part of ethclient.Client the tracker uses.
type HeadSource interface {
	SubscribeNewHead(ctx context.Context, ch chan<- *ethTypes.Header) (ethereum.Subscription, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// Recorder receives observed heights. *metrics.Metrics implements it.
type Recorder interface {
	RecordBlockHeight(height uint64)
}

// Config configures the tracker.
type Config struct {
	RPCURL       string        `mapstructure:"rpc_url"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Retries      uint          `mapstructure:"retries"`
}

// Tracker delivers new block heights to subscribers.
type Tracker struct {
	source   HeadSource
	cfg      Config
	poll     bool
	recorder Recorder
	logger   *zap.Logger

	latest atomic.Uint64
}

// Dial connects to cfg.RPCURL. Plain http(s) endpoints cannot push heads,
// so the tracker polls them.
func Dial(ctx context.Context, cfg Config, recorder Recorder, logger *zap.Logger) (*Tracker, *ethclient.Client, error) {
	if cfg.RPCURL == "" {
		return nil, nil, fmt.Errorf("block tracker needs an RPC URL")
	}
	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to %s: %w", cfg.RPCURL, err)
	}
	return NewTracker(client, cfg, recorder, logger), client, nil
}

// NewTracker creates a tracker over source.
func NewTracker(source HeadSource, cfg Config, recorder Recorder, logger *zap.Logger) *Tracker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Retries == 0 {
		cfg.Retries = defaultRetries
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		source:   source,
		cfg:      cfg,
		poll:     strings.HasPrefix(cfg.RPCURL, "http://") || strings.HasPrefix(cfg.RPCURL, "https://"),
		recorder: recorder,
		logger:   logger,
	}
}

// Latest returns the last height seen, or 0.
func (t *Tracker) Latest() uint64 {
	return t.latest.Load()
}

// Subscribe calls onHeight for every new block until the returned function
// is called or ctx is done. The returned function blocks until delivery has
// stopped; no callback runs after it returns.
func (t *Tracker) Subscribe(ctx context.Context, onHeight func(uint64)) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)

	var (
		run func(context.Context)
		sub ethereum.Subscription
		ch  chan *ethTypes.Header
	)

	if t.poll {
		run = func(ctx context.Context) { t.pollLoop(ctx, onHeight) }
	} else {
		ch = make(chan *ethTypes.Header, 16)
		var err error
		sub, err = t.source.SubscribeNewHead(ctx, ch)
		switch {
		case errors.Is(err, rpc.ErrNotificationsUnsupported):
			t.logger.Info("endpoint cannot push new heads, polling instead", zap.Duration("interval", t.cfg.PollInterval))
			run = func(ctx context.Context) { t.pollLoop(ctx, onHeight) }
		case err != nil:
			cancel()
			return nil, fmt.Errorf("failed to subscribe to new heads: %w", err)
		default:
			run = func(ctx context.Context) { t.headLoop(ctx, sub, ch, onHeight) }
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		run(ctx)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}, nil
}

func (t *Tracker) deliver(ctx context.Context, height uint64, onHeight func(uint64)) {
	if ctx.Err() != nil {
		return
	}
	t.latest.Store(height)
	if t.recorder != nil {
		t.recorder.RecordBlockHeight(height)
	}
	onHeight(height)
}

func (t *Tracker) headLoop(ctx context.Context, sub ethereum.Subscription, ch chan *ethTypes.Header, onHeight func(uint64)) {
	defer func() {
		if sub != nil {
			sub.Unsubscribe()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-sub.Err():
			t.logger.Warn("new head subscription dropped", zap.Error(err))
			sub.Unsubscribe()
			sub = nil

			next, err := t.resubscribe(ctx, ch)
			if err != nil {
				if ctx.Err() == nil {
					t.logger.Error("giving up on new head subscription", zap.Error(err))
				}
				return
			}
			sub = next
		case header := <-ch:
			if header == nil || header.Number == nil {
				t.logger.Debug("ignoring header without number")
				continue
			}
			t.deliver(ctx, header.Number.Uint64(), onHeight)
		}
	}
}

func (t *Tracker) resubscribe(ctx context.Context, ch chan *ethTypes.Header) (ethereum.Subscription, error) {
	var sub ethereum.Subscription
	err := retry.Do(func() error {
		s, err := t.source.SubscribeNewHead(ctx, ch)
		if err != nil {
			return err
		}
		sub = s
		return nil
	},
		retry.Context(ctx),
		retry.Attempts(t.cfg.Retries),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			t.logger.Debug("resubscribing to new heads", zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
	return sub, err
}

func (t *Tracker) pollLoop(ctx context.Context, onHeight func(uint64)) {
	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	var last uint64
	check := func() {
		height, err := t.source.BlockNumber(ctx)
		if err != nil {
			if ctx.Err() == nil {
				t.logger.Warn("failed to read block number", zap.Error(err))
			}
			return
		}
		if height > last {
			last = height
			t.deliver(ctx, height, onHeight)
		}
	}

	check()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}
