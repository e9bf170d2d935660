package testutil

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/mselser95/basis-arb/internal/gateway"
	"github.com/mselser95/basis-arb/pkg/types"
)

// PlacedOrder records one order sent through the mock gateway.
type PlacedOrder struct {
	Exchange string
	Market   gateway.MarketType
	Symbol   string
	Side     string
	Quantity float64
	Price    float64
}

// MockGateway is an in-memory Gateway with canned order books and
// failure injection, for scheduler and trader tests.
type MockGateway struct {
	mu         sync.Mutex
	books      map[string]*types.OrderBook
	minAmounts map[string]float64
	orders     []PlacedOrder
	orderSeq   int

	failFetch  map[string]error
	failOrder  error
	fetchDelay time.Duration
}

// NewMockGateway creates an empty mock gateway.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		books:      make(map[string]*types.OrderBook),
		minAmounts: make(map[string]float64),
		failFetch:  make(map[string]error),
	}
}

func bookKey(exchangeID string, market gateway.MarketType, symbol string) string {
	return exchangeID + ":" + string(market) + ":" + symbol
}

// SetBook installs the depth snapshot returned for (exchange, market, symbol).
func (g *MockGateway) SetBook(exchangeID string, market gateway.MarketType, symbol string, book *types.OrderBook) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.books[bookKey(exchangeID, market, symbol)] = book
}

// SetMinAmount installs the minimum trade amount for (exchange, symbol).
func (g *MockGateway) SetMinAmount(exchangeID, symbol string, amount float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.minAmounts[exchangeID+":"+symbol] = amount
}

// FailFetch makes FetchOrderBook for (exchange, market, symbol) return err.
func (g *MockGateway) FailFetch(exchangeID string, market gateway.MarketType, symbol string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failFetch[bookKey(exchangeID, market, symbol)] = err
}

// SetFetchDelay makes every FetchOrderBook sleep for d before answering.
func (g *MockGateway) SetFetchDelay(d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fetchDelay = d
}

// FailOrders makes every order placement return err until reset with nil.
func (g *MockGateway) FailOrders(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failOrder = err
}

// Orders returns a copy of all placed orders.
func (g *MockGateway) Orders() []PlacedOrder {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]PlacedOrder, len(g.orders))
	copy(out, g.orders)
	return out
}

// FetchOrderBook returns the canned snapshot for (exchange, market, symbol).
func (g *MockGateway) FetchOrderBook(_ context.Context, exchangeID string, market gateway.MarketType, symbol string, _ int) (*types.OrderBook, error) {
	g.mu.Lock()
	delay := g.fetchDelay
	g.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	key := bookKey(exchangeID, market, symbol)
	if err := g.failFetch[key]; err != nil {
		return nil, &types.MarketDataError{Exchange: exchangeID, Symbol: symbol, Err: err}
	}

	book, ok := g.books[key]
	if !ok {
		return nil, &types.MarketDataError{Exchange: exchangeID, Symbol: symbol,
			Err: fmt.Errorf("no book installed")}
	}
	return book, nil
}

// MinTradeAmount returns the canned minimum, defaulting to zero.
func (g *MockGateway) MinTradeAmount(_ context.Context, exchangeID, symbol string) (float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.minAmounts[exchangeID+":"+symbol], nil
}

// ExecuteSpotBuy records a spot buy.
func (g *MockGateway) ExecuteSpotBuy(ctx context.Context, exchangeID, symbol string, quantity, price float64) (*types.OrderAck, error) {
	return g.place(ctx, exchangeID, gateway.Spot, symbol, "buy", quantity, price)
}

// ExecuteSpotSell records a spot sell.
func (g *MockGateway) ExecuteSpotSell(ctx context.Context, exchangeID, symbol string, quantity, price float64) (*types.OrderAck, error) {
	return g.place(ctx, exchangeID, gateway.Spot, symbol, "sell", quantity, price)
}

// ExecuteFuturesBuy records a futures buy.
func (g *MockGateway) ExecuteFuturesBuy(ctx context.Context, exchangeID, symbol string, quantity, price float64) (*types.OrderAck, error) {
	return g.place(ctx, exchangeID, gateway.Futures, symbol, "buy", quantity, price)
}

// ExecuteFuturesSell records a futures sell.
func (g *MockGateway) ExecuteFuturesSell(ctx context.Context, exchangeID, symbol string, quantity, price float64) (*types.OrderAck, error) {
	return g.place(ctx, exchangeID, gateway.Futures, symbol, "sell", quantity, price)
}

func (g *MockGateway) place(_ context.Context, exchangeID string, market gateway.MarketType, symbol, side string, quantity, price float64) (*types.OrderAck, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.failOrder != nil {
		return nil, &types.OrderExecutionError{
			Exchange: exchangeID,
			Symbol:   symbol,
			Side:     string(market) + "_" + side,
			Err:      g.failOrder,
		}
	}

	g.orderSeq++
	g.orders = append(g.orders, PlacedOrder{
		Exchange: exchangeID,
		Market:   market,
		Symbol:   symbol,
		Side:     side,
		Quantity: quantity,
		Price:    price,
	})
	return &types.OrderAck{ID: "mock-" + strconv.Itoa(g.orderSeq)}, nil
}

// Book builds an order book with the given ask and bid levels, already
// sorted best-first by the caller.
func Book(exchange, symbol string, asks, bids []types.Level) *types.OrderBook {
	return &types.OrderBook{
		Exchange:  exchange,
		Symbol:    symbol,
		Asks:      asks,
		Bids:      bids,
		FetchedAt: time.Now().UTC(),
	}
}

// Levels builds a level slice from alternating price, quantity values.
func Levels(pairs ...float64) []types.Level {
	if len(pairs)%2 != 0 {
		panic("testutil.Levels: odd number of values")
	}
	levels := make([]types.Level, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		levels = append(levels, types.Level{Price: pairs[i], Quantity: pairs[i+1]})
	}
	return levels
}
