package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mselser95/basis-arb/pkg/types"
)

func newTestGateway(t *testing.T, handler http.Handler) *RESTGateway {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	gw, err := NewREST(Config{
		Exchanges: []ExchangeConfig{
			{ID: "binance", BaseURL: server.URL, APIKey: "key-1", Secret: "secret-1"},
		},
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)
	return gw
}

func TestRESTGateway_FetchOrderBook(t *testing.T) {
	gw := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/spot/depth", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "20", r.URL.Query().Get("limit"))
		w.Write([]byte(`{"asks":[["100.5","2"],["101","3"]],"bids":[["100","1.5"],["99.5","4"]]}`))
	}))

	book, err := gw.FetchOrderBook(context.Background(), "binance", Spot, "BTCUSDT", 20)
	require.NoError(t, err)

	assert.Equal(t, "binance", book.Exchange)
	assert.Equal(t, "BTCUSDT", book.Symbol)
	require.Len(t, book.Asks, 2)
	require.Len(t, book.Bids, 2)
	assert.Equal(t, 100.5, book.Asks[0].Price)
	assert.Equal(t, 2.0, book.Asks[0].Quantity)
	assert.Equal(t, 100.0, book.Bids[0].Price)
	assert.False(t, book.FetchedAt.IsZero())
	assert.NoError(t, book.Validate())
}

func TestRESTGateway_FetchOrderBook_FuturesPath(t *testing.T) {
	gw := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/futures/depth", r.URL.Path)
		w.Write([]byte(`{"asks":[["100","1"]],"bids":[["99","1"]]}`))
	}))

	_, err := gw.FetchOrderBook(context.Background(), "binance", Futures, "BTCUSDT", 5)
	require.NoError(t, err)
}

func TestRESTGateway_FetchOrderBook_ServerError(t *testing.T) {
	gw := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
	}))

	_, err := gw.FetchOrderBook(context.Background(), "binance", Spot, "BTCUSDT", 20)
	require.Error(t, err)

	var mdErr *types.MarketDataError
	require.True(t, errors.As(err, &mdErr))
	assert.Equal(t, "binance", mdErr.Exchange)
	assert.Equal(t, "BTCUSDT", mdErr.Symbol)
}

func TestRESTGateway_FetchOrderBook_MalformedLevel(t *testing.T) {
	gw := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"asks":[["not-a-price","2"]],"bids":[]}`))
	}))

	_, err := gw.FetchOrderBook(context.Background(), "binance", Spot, "BTCUSDT", 20)
	require.Error(t, err)

	var mdErr *types.MarketDataError
	assert.True(t, errors.As(err, &mdErr))
}

func TestRESTGateway_FetchOrderBook_UnknownExchange(t *testing.T) {
	gw := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	_, err := gw.FetchOrderBook(context.Background(), "kraken", Spot, "BTCUSDT", 20)
	require.Error(t, err)

	var mdErr *types.MarketDataError
	assert.True(t, errors.As(err, &mdErr))
}

func TestRESTGateway_MinTradeAmount(t *testing.T) {
	gw := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/spot/market", r.URL.Path)
		assert.Equal(t, "ETHUSDT", r.URL.Query().Get("symbol"))
		w.Write([]byte(`{"min_amount":"0.01"}`))
	}))

	minAmount, err := gw.MinTradeAmount(context.Background(), "binance", "ETHUSDT")
	require.NoError(t, err)
	assert.Equal(t, 0.01, minAmount)
}

func TestRESTGateway_PlaceOrder(t *testing.T) {
	var gotBody []byte
	var gotKey, gotSign string

	gw := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/spot/order", r.URL.Path)
		gotBody, _ = io.ReadAll(r.Body)
		gotKey = r.Header.Get("X-API-KEY")
		gotSign = r.Header.Get("X-API-SIGN")
		w.Write([]byte(`{"order_id":"ord-42"}`))
	}))

	ack, err := gw.ExecuteSpotBuy(context.Background(), "binance", "BTCUSDT", 0.5, 100.0)
	require.NoError(t, err)
	assert.Equal(t, "ord-42", ack.ID)

	assert.Equal(t, "key-1", gotKey)

	mac := hmac.New(sha256.New, []byte("secret-1"))
	mac.Write(gotBody)
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), gotSign)
}

func TestRESTGateway_PlaceOrder_MissingOrderID(t *testing.T) {
	gw := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))

	_, err := gw.ExecuteFuturesSell(context.Background(), "binance", "BTCUSDT", 0.5, 100.0)
	require.Error(t, err)

	var execErr *types.OrderExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, "futures_sell", execErr.Side)
}

func TestRESTGateway_PlaceOrder_ServerError(t *testing.T) {
	gw := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "insufficient balance", http.StatusBadRequest)
	}))

	_, err := gw.ExecuteFuturesBuy(context.Background(), "binance", "BTCUSDT", 0.5, 100.0)
	require.Error(t, err)

	var execErr *types.OrderExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, "futures_buy", execErr.Side)
}

func TestNewREST_Validation(t *testing.T) {
	_, err := NewREST(Config{Logger: zap.NewNop()})
	assert.Error(t, err)

	_, err = NewREST(Config{
		Exchanges: []ExchangeConfig{{ID: "binance"}},
		Logger:    zap.NewNop(),
	})
	assert.Error(t, err)
}

// mapCache is a minimal Cache used to test the caching wrapper
// without Ristretto's asynchronous admission.
type mapCache struct {
	mu    sync.Mutex
	items map[string]interface{}
}

func newMapCache() *mapCache {
	return &mapCache{items: make(map[string]interface{})}
}

func (c *mapCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[key]
	return v, ok
}

func (c *mapCache) Set(key string, value interface{}, _ time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
	return true
}

func (c *mapCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

func (c *mapCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]interface{})
}

func (c *mapCache) Close() {}

func TestCachedGateway_MinTradeAmount(t *testing.T) {
	var calls int
	gw := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"min_amount":"0.5"}`))
	}))

	cached := NewCached(gw, newMapCache())

	for i := 0; i < 3; i++ {
		minAmount, err := cached.MinTradeAmount(context.Background(), "binance", "BTCUSDT")
		require.NoError(t, err)
		assert.Equal(t, 0.5, minAmount)
	}

	assert.Equal(t, 1, calls, "only the first call should reach the exchange")
}

func TestCachedGateway_ErrorNotCached(t *testing.T) {
	var calls int
	gw := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"min_amount":"0.5"}`))
	}))

	cached := NewCached(gw, newMapCache())

	_, err := cached.MinTradeAmount(context.Background(), "binance", "BTCUSDT")
	require.Error(t, err)

	minAmount, err := cached.MinTradeAmount(context.Background(), "binance", "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 0.5, minAmount)
	assert.Equal(t, 2, calls)
}
