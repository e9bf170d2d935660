package monitor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mselser95/basis-arb/internal/gateway"
	"github.com/mselser95/basis-arb/internal/ledger"
	"github.com/mselser95/basis-arb/internal/spread"
	"github.com/mselser95/basis-arb/internal/testutil"
	"github.com/mselser95/basis-arb/pkg/types"
)

var btcPair = Pair{
	Symbol:          "BTCUSDT",
	SpotExchange:    "binance",
	FuturesExchange: "bybit",
	SpotSymbol:      "BTCUSDT",
	FuturesSymbol:   "BTCUSDT",
}

type fixture struct {
	scheduler *Scheduler
	gateway   *testutil.MockGateway
	store     *testutil.MemoryStore
	ledger    *ledger.Ledger
	notifier  *testutil.MockNotifier
}

func newFixture(t *testing.T, pairs []Pair, autoTrade bool) *fixture {
	t.Helper()
	return newFixtureWithLogger(t, pairs, autoTrade, zap.NewNop())
}

func newFixtureWithLogger(t *testing.T, pairs []Pair, autoTrade bool, logger *zap.Logger) *fixture {
	t.Helper()

	gw := testutil.NewMockGateway()
	store := testutil.NewMemoryStore()
	led := ledger.New(ledger.Config{
		Store:         store,
		LotMax:        1000,
		Logger:        zap.NewNop(),
		RetryAttempts: 1,
		RetryDelay:    time.Millisecond,
	})
	engine := spread.New(spread.Config{
		SpreadIn:  0.5,
		SpreadOut: -0.3,
		Logger:    zap.NewNop(),
	})
	notifier := testutil.NewMockNotifier()

	sched := New(Config{
		Pairs:              pairs,
		Gateway:            gw,
		Engine:             engine,
		Ledger:             led,
		Spreads:            store,
		Notifier:           notifier,
		Logger:             logger,
		LotMin:             100,
		LotMax:             1000,
		CheckInterval:      10 * time.Millisecond,
		ErrorBackoff:       10 * time.Millisecond,
		GatewayCallTimeout: time.Second,
		BookDepthLimit:     20,
		AutoTrade:          autoTrade,
	})

	return &fixture{
		scheduler: sched,
		gateway:   gw,
		store:     store,
		ledger:    led,
		notifier:  notifier,
	}
}

// installEntryBooks makes the pair show a 0.6% entry spread, above the
// 0.5% threshold, with no exit opportunity.
func installEntryBooks(f *fixture, pair Pair) {
	f.gateway.SetBook(pair.SpotExchange, gateway.Spot, pair.SpotSymbol,
		testutil.Book(pair.SpotExchange, pair.SpotSymbol,
			testutil.Levels(100, 10), testutil.Levels(99.9, 10)))
	f.gateway.SetBook(pair.FuturesExchange, gateway.Futures, pair.FuturesSymbol,
		testutil.Book(pair.FuturesExchange, pair.FuturesSymbol,
			testutil.Levels(100.7, 10), testutil.Levels(100.6, 10)))
}

// installExitBooks makes the pair show a 0.5% exit spread with the
// entry side below threshold.
func installExitBooks(f *fixture, pair Pair) {
	f.gateway.SetBook(pair.SpotExchange, gateway.Spot, pair.SpotSymbol,
		testutil.Book(pair.SpotExchange, pair.SpotSymbol,
			testutil.Levels(100.8, 10), testutil.Levels(100.5, 10)))
	f.gateway.SetBook(pair.FuturesExchange, gateway.Futures, pair.FuturesSymbol,
		testutil.Book(pair.FuturesExchange, pair.FuturesSymbol,
			testutil.Levels(100, 10), testutil.Levels(100.2, 10)))
}

func openPosition(t *testing.T, f *fixture, coins float64) *types.Position {
	t.Helper()
	pos, err := f.ledger.Open(context.Background(), ledger.OpenParams{
		Symbol:          btcPair.Symbol,
		SpotExchange:    btcPair.SpotExchange,
		FuturesExchange: btcPair.FuturesExchange,
		SpotCoins:       coins,
		FuturesCoins:    coins,
		SpotPrice:       100,
		FuturesPrice:    100.5,
		EntrySpread:     0.6,
		SpotOrderID:     "s-0",
		FuturesOrderID:  "f-0",
	})
	require.NoError(t, err)
	return pos
}

func TestScheduler_CycleOpensPosition(t *testing.T) {
	f := newFixture(t, []Pair{btcPair}, true)
	installEntryBooks(f, btcPair)

	err := f.scheduler.runCycle(context.Background())
	require.NoError(t, err)

	pos, err := f.ledger.FindActivePosition(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, types.StatusOpen, pos.Status)
	assert.InDelta(t, 1.0, pos.SpotCoins, 1e-9)
	assert.InDelta(t, 100.0, pos.SpotAvgPrice, 1e-9)
	assert.InDelta(t, 100.6, pos.FuturesAvgPrice, 1e-9)

	orders := f.gateway.Orders()
	require.Len(t, orders, 2)
	assert.Equal(t, "buy", orders[0].Side)
	assert.Equal(t, gateway.Spot, orders[0].Market)
	assert.Equal(t, "sell", orders[1].Side)
	assert.Equal(t, gateway.Futures, orders[1].Market)

	assert.GreaterOrEqual(t, f.store.SpreadCount(), 1)
}

func TestScheduler_NoTradeWithoutAutoTrade(t *testing.T) {
	f := newFixture(t, []Pair{btcPair}, false)
	installEntryBooks(f, btcPair)

	err := f.scheduler.runCycle(context.Background())
	require.NoError(t, err)

	pos, err := f.ledger.FindActivePosition(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Nil(t, pos)
	assert.Empty(t, f.gateway.Orders())

	// The opportunity is still announced and recorded.
	sent := f.notifier.Sent()
	require.NotEmpty(t, sent)
	assert.Contains(t, sent[0], "Entry opportunity BTCUSDT")
	assert.GreaterOrEqual(t, f.store.SpreadCount(), 1)
}

func TestScheduler_BelowThresholdNoAction(t *testing.T) {
	f := newFixture(t, []Pair{btcPair}, true)
	installExitBooks(f, btcPair) // entry side below threshold, no position open

	err := f.scheduler.runCycle(context.Background())
	require.NoError(t, err)

	assert.Empty(t, f.gateway.Orders())
	assert.Empty(t, f.notifier.Sent())
	assert.GreaterOrEqual(t, f.store.SpreadCount(), 1)
}

func TestScheduler_PairFailureIsolated(t *testing.T) {
	ethPair := Pair{
		Symbol:          "ETHUSDT",
		SpotExchange:    "binance",
		FuturesExchange: "bybit",
		SpotSymbol:      "ETHUSDT",
		FuturesSymbol:   "ETHUSDT",
	}
	f := newFixture(t, []Pair{ethPair, btcPair}, true)

	f.gateway.FailFetch("binance", gateway.Spot, "ETHUSDT", errors.New("venue down"))
	installEntryBooks(f, btcPair)

	err := f.scheduler.runCycle(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 pair checks failed")

	// The healthy pair still traded.
	pos, err := f.ledger.FindActivePosition(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.NotNil(t, pos)
}

func TestScheduler_ExitClosesPosition(t *testing.T) {
	f := newFixture(t, []Pair{btcPair}, true)
	pos := openPosition(t, f, 1)
	installExitBooks(f, btcPair)

	err := f.scheduler.runCycle(context.Background())
	require.NoError(t, err)

	got, err := f.ledger.GetPosition(context.Background(), pos.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusClosed, got.Status)
	// Spot leg gains 0.5, futures leg gains 0.5.
	assert.InDelta(t, 1.0, got.PnLUSDT, 1e-9)

	orders := f.gateway.Orders()
	require.Len(t, orders, 2)
	assert.Equal(t, "sell", orders[0].Side)
	assert.Equal(t, gateway.Spot, orders[0].Market)
	assert.Equal(t, "buy", orders[1].Side)
	assert.Equal(t, gateway.Futures, orders[1].Market)
}

func TestScheduler_DustEscalatesToFullClose(t *testing.T) {
	f := newFixture(t, []Pair{btcPair}, true)
	pos := openPosition(t, f, 12)
	installExitBooks(f, btcPair)
	// Books hold 10 coins per level; leftover 2 is below the venue minimum.
	f.gateway.SetMinAmount("binance", "BTCUSDT", 5)

	err := f.scheduler.runCycle(context.Background())
	require.NoError(t, err)

	got, err := f.ledger.GetPosition(context.Background(), pos.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusClosed, got.Status)

	orders := f.gateway.Orders()
	require.Len(t, orders, 2)
	assert.InDelta(t, 12.0, orders[0].Quantity, 1e-9)
}

func TestScheduler_IncreaseWithinHeadroom(t *testing.T) {
	f := newFixture(t, []Pair{btcPair}, true)
	pos := openPosition(t, f, 5) // 500 USDT entered, 500 headroom
	installEntryBooks(f, btcPair)

	err := f.scheduler.runCycle(context.Background())
	require.NoError(t, err)

	got, err := f.ledger.GetPosition(context.Background(), pos.ID)
	require.NoError(t, err)
	// Entry is re-walked at the 500 USDT headroom, adding 5 coins at 100.
	assert.InDelta(t, 10.0, got.SpotCoins, 1e-9)
	assert.InDelta(t, 1000.0, got.SpotUSDT, 1e-9)
	assert.Equal(t, types.StatusOpen, got.Status)
}

func TestScheduler_OrderFailureAborts(t *testing.T) {
	f := newFixture(t, []Pair{btcPair}, true)
	installEntryBooks(f, btcPair)
	f.gateway.FailOrders(errors.New("insufficient balance"))

	err := f.scheduler.runCycle(context.Background())
	require.NoError(t, err)

	pos, err := f.ledger.FindActivePosition(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Nil(t, pos)

	var sawFailure bool
	for _, msg := range f.notifier.Sent() {
		if strings.Contains(msg, "Entry failed") {
			sawFailure = true
		}
	}
	assert.True(t, sawFailure, "expected an entry failure notification")
}

func TestScheduler_ManualClose(t *testing.T) {
	f := newFixture(t, []Pair{btcPair}, false)
	pos := openPosition(t, f, 2)
	installExitBooks(f, btcPair)

	pnl, err := f.scheduler.ManualClose(context.Background(), pos.ID, 2)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, pnl, 1e-9)

	got, err := f.ledger.GetPosition(context.Background(), pos.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusClosed, got.Status)
}

func TestScheduler_ManualOpen(t *testing.T) {
	f := newFixture(t, []Pair{btcPair}, false)
	// Entry spread below threshold: manual entry ignores the threshold.
	installExitBooks(f, btcPair)

	positionID, err := f.scheduler.ManualOpen(context.Background(), "BTCUSDT", 201.6)
	require.NoError(t, err)

	got, err := f.ledger.GetPosition(context.Background(), positionID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusOpen, got.Status)
	assert.InDelta(t, 2.0, got.SpotCoins, 1e-9) // 201.6 USDT at weighted ask 100.8
	assert.InDelta(t, 100.8, got.SpotAvgPrice, 1e-9)

	// A second manual entry adds to the same position.
	samePosition, err := f.scheduler.ManualOpen(context.Background(), "BTCUSDT", 100.8)
	require.NoError(t, err)
	assert.Equal(t, positionID, samePosition)

	got, err = f.ledger.GetPosition(context.Background(), positionID)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, got.SpotCoins, 1e-9)
}

func TestScheduler_ManualOpen_UnknownSymbol(t *testing.T) {
	f := newFixture(t, []Pair{btcPair}, false)

	_, err := f.scheduler.ManualOpen(context.Background(), "DOGEUSDT", 100)
	var valErr *types.ValidationError
	require.True(t, errors.As(err, &valErr))
}

func TestScheduler_ManualClose_UnknownPosition(t *testing.T) {
	f := newFixture(t, []Pair{btcPair}, false)

	_, err := f.scheduler.ManualClose(context.Background(), "missing", 1)
	var stateErr *types.InvalidStateError
	require.True(t, errors.As(err, &stateErr))
}

func TestScheduler_OrphanPositionWarned(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	f := newFixtureWithLogger(t, []Pair{btcPair}, true, zap.New(core))
	installExitBooks(f, btcPair)

	// A position for a symbol no longer present in the pair config.
	pos, err := f.ledger.Open(context.Background(), ledger.OpenParams{
		Symbol:          "ETHUSDT",
		SpotExchange:    "binance",
		FuturesExchange: "bybit",
		SpotCoins:       10,
		FuturesCoins:    10,
		SpotPrice:       100,
		FuturesPrice:    100.5,
		EntrySpread:     0.6,
		SpotOrderID:     "s-1",
		FuturesOrderID:  "f-1",
	})
	require.NoError(t, err)

	require.NoError(t, f.scheduler.runCycle(context.Background()))

	entries := logs.FilterMessage("open-position-without-configured-pair").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "ETHUSDT", entries[0].ContextMap()["symbol"])
	assert.Equal(t, pos.ID, entries[0].ContextMap()["position-id"])

	// The position is untouched; only the operator can resolve it.
	got, err := f.ledger.GetPosition(context.Background(), pos.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusOpen, got.Status)
}

func TestScheduler_StartStop(t *testing.T) {
	f := newFixture(t, []Pair{btcPair}, false)
	installEntryBooks(f, btcPair)

	ctx := context.Background()
	require.NoError(t, f.scheduler.Start(ctx))
	// Second Start is a no-op.
	require.NoError(t, f.scheduler.Start(ctx))

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, f.scheduler.Stop(time.Second))

	// The loop ran at least one cycle before stopping.
	assert.GreaterOrEqual(t, f.store.SpreadCount(), 1)

	// Stop on a stopped scheduler is a no-op.
	require.NoError(t, f.scheduler.Stop(time.Second))
}

func TestScheduler_StopTimeoutKeepsLoopOwnership(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	f := newFixtureWithLogger(t, []Pair{btcPair}, false, zap.New(core))
	installEntryBooks(f, btcPair)
	f.gateway.SetFetchDelay(100 * time.Millisecond)

	ctx := context.Background()
	require.NoError(t, f.scheduler.Start(ctx))
	time.Sleep(20 * time.Millisecond) // loop is inside its first fetch

	// The loop cannot drain within a millisecond.
	require.Error(t, f.scheduler.Stop(time.Millisecond))

	// The old loop is still draining, so a new Start must refuse.
	require.NoError(t, f.scheduler.Start(ctx))
	assert.Equal(t, 1, logs.FilterMessage("scheduler-already-running").Len())

	// A patient Stop drains cleanly.
	f.gateway.SetFetchDelay(0)
	require.NoError(t, f.scheduler.Stop(5*time.Second))
}
