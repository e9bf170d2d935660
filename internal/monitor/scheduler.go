// Package monitor runs the periodic market check: fetch depth for every
// configured pair, evaluate entry and exit spreads, and drive position
// entries and exits through the ledger.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mselser95/basis-arb/internal/gateway"
	"github.com/mselser95/basis-arb/internal/ledger"
	"github.com/mselser95/basis-arb/internal/spread"
	"github.com/mselser95/basis-arb/pkg/types"
)

// Pair names one monitored spot/futures pair.
type Pair struct {
	Symbol          string
	SpotExchange    string
	FuturesExchange string
	SpotSymbol      string
	FuturesSymbol   string
}

// SpreadStore persists spread observations. Recording is best effort
// and never blocks trading decisions.
type SpreadStore interface {
	StoreSpread(ctx context.Context, rec *types.SpreadRecord) error
}

// Notifier delivers operator alerts.
type Notifier interface {
	Send(ctx context.Context, message string)
}

// Scheduler owns the monitoring loop.
type Scheduler struct {
	pairs    []Pair
	gateway  gateway.Gateway
	engine   *spread.Engine
	ledger   *ledger.Ledger
	spreads  SpreadStore
	notifier Notifier
	logger   *zap.Logger

	lotMin         float64
	lotMax         float64
	checkInterval  time.Duration
	errorBackoff   time.Duration
	callTimeout    time.Duration
	bookDepthLimit int
	autoTrade      bool

	mu       sync.Mutex
	running  bool
	stopping bool
	stop     chan struct{}
	wg       sync.WaitGroup
}

// Config holds scheduler configuration.
type Config struct {
	Pairs    []Pair
	Gateway  gateway.Gateway
	Engine   *spread.Engine
	Ledger   *ledger.Ledger
	Spreads  SpreadStore
	Notifier Notifier
	Logger   *zap.Logger

	LotMin             float64
	LotMax             float64
	CheckInterval      time.Duration
	ErrorBackoff       time.Duration
	GatewayCallTimeout time.Duration
	BookDepthLimit     int
	AutoTrade          bool
}

// New creates a new scheduler.
func New(cfg Config) *Scheduler {
	return &Scheduler{
		pairs:          cfg.Pairs,
		gateway:        cfg.Gateway,
		engine:         cfg.Engine,
		ledger:         cfg.Ledger,
		spreads:        cfg.Spreads,
		notifier:       cfg.Notifier,
		logger:         cfg.Logger,
		lotMin:         cfg.LotMin,
		lotMax:         cfg.LotMax,
		checkInterval:  cfg.CheckInterval,
		errorBackoff:   cfg.ErrorBackoff,
		callTimeout:    cfg.GatewayCallTimeout,
		bookDepthLimit: cfg.BookDepthLimit,
		autoTrade:      cfg.AutoTrade,
	}
}

// Start launches the monitoring loop. Calling Start on a running
// scheduler is a warn-logged no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Warn("scheduler-already-running")
		return nil
	}

	s.stop = make(chan struct{})
	s.running = true

	s.logger.Info("scheduler-starting",
		zap.Int("pairs", len(s.pairs)),
		zap.Duration("check-interval", s.checkInterval),
		zap.Bool("auto-trade", s.autoTrade))

	s.wg.Add(1)
	go s.loop(ctx, s.stop)

	return nil
}

// Stop signals the loop to exit and waits up to timeout for it to
// terminate. In-flight gateway calls are not aborted; the loop
// observes the signal after completing its current cycle. The
// scheduler stays marked running until the loop has actually drained,
// so a Start after a timed-out Stop cannot spawn a second loop.
func (s *Scheduler) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	if !s.stopping {
		s.stopping = true
		close(s.stop)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.mu.Lock()
		s.running = false
		s.stopping = false
		s.mu.Unlock()
		s.logger.Info("scheduler-stopped")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("scheduler stop timed out after %s", timeout)
	}
}

func (s *Scheduler) loop(ctx context.Context, stop <-chan struct{}) {
	defer s.wg.Done()

	for {
		start := time.Now()
		err := s.runCycle(ctx)
		CycleDurationSeconds.Observe(time.Since(start).Seconds())

		delay := s.checkInterval
		if err != nil {
			CyclesTotal.WithLabelValues("error").Inc()
			s.logger.Error("cycle-failed", zap.Error(err))
			delay = s.errorBackoff
		} else {
			CyclesTotal.WithLabelValues("ok").Inc()
		}

		select {
		case <-stop:
			s.logger.Info("scheduler-loop-exiting")
			return
		case <-ctx.Done():
			s.logger.Info("scheduler-loop-exiting")
			return
		case <-time.After(delay):
		}
	}
}
