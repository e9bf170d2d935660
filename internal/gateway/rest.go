package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/mselser95/basis-arb/pkg/types"
	"go.uber.org/zap"
)

// ExchangeConfig holds the REST endpoint and credentials of one venue.
type ExchangeConfig struct {
	ID      string `json:"id"`
	BaseURL string `json:"base_url"`
	APIKey  string `json:"api_key"`
	Secret  string `json:"secret"`
}

// RESTGateway implements Gateway over the venues' REST APIs.
type RESTGateway struct {
	venues     map[string]*ExchangeConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// Config holds gateway configuration.
type Config struct {
	Exchanges []ExchangeConfig
	Logger    *zap.Logger
}

// NewREST creates a REST gateway for the configured venues.
func NewREST(cfg Config) (*RESTGateway, error) {
	if len(cfg.Exchanges) == 0 {
		return nil, fmt.Errorf("no exchanges configured")
	}

	venues := make(map[string]*ExchangeConfig, len(cfg.Exchanges))
	for i := range cfg.Exchanges {
		ex := cfg.Exchanges[i]
		if ex.ID == "" || ex.BaseURL == "" {
			return nil, fmt.Errorf("exchange %d: id and base_url are required", i)
		}
		venues[ex.ID] = &ex
	}

	return &RESTGateway{
		venues: venues,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: cfg.Logger,
	}, nil
}

func (g *RESTGateway) venue(exchangeID string) (*ExchangeConfig, error) {
	venue, ok := g.venues[exchangeID]
	if !ok {
		return nil, fmt.Errorf("exchange %q not configured", exchangeID)
	}
	return venue, nil
}

// depthResponse is the wire shape of a depth snapshot: levels as
// [price, quantity] string pairs, lowest ask and highest bid first.
type depthResponse struct {
	Asks [][2]string `json:"asks"`
	Bids [][2]string `json:"bids"`
}

func parseLevels(raw [][2]string) ([]types.Level, error) {
	levels := make([]types.Level, 0, len(raw))
	for _, pair := range raw {
		price, err := strconv.ParseFloat(pair[0], 64)
		if err != nil {
			return nil, fmt.Errorf("parse level price %q: %w", pair[0], err)
		}
		quantity, err := strconv.ParseFloat(pair[1], 64)
		if err != nil {
			return nil, fmt.Errorf("parse level quantity %q: %w", pair[1], err)
		}
		levels = append(levels, types.Level{Price: price, Quantity: quantity})
	}
	return levels, nil
}

// FetchOrderBook fetches a depth snapshot for the symbol.
func (g *RESTGateway) FetchOrderBook(ctx context.Context, exchangeID string, market MarketType, symbol string, limit int) (*types.OrderBook, error) {
	venue, err := g.venue(exchangeID)
	if err != nil {
		return nil, &types.MarketDataError{Exchange: exchangeID, Symbol: symbol, Err: err}
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("limit", strconv.Itoa(limit))
	endpoint := fmt.Sprintf("%s/api/v1/%s/depth?%s", venue.BaseURL, market, params.Encode())

	start := time.Now()
	var depth depthResponse
	err = g.getJSON(ctx, endpoint, &depth)
	RequestDurationSeconds.WithLabelValues(exchangeID, "depth").Observe(time.Since(start).Seconds())
	if err != nil {
		RequestErrorsTotal.WithLabelValues(exchangeID, "depth").Inc()
		return nil, &types.MarketDataError{Exchange: exchangeID, Symbol: symbol, Err: err}
	}

	asks, err := parseLevels(depth.Asks)
	if err != nil {
		return nil, &types.MarketDataError{Exchange: exchangeID, Symbol: symbol, Err: err}
	}
	bids, err := parseLevels(depth.Bids)
	if err != nil {
		return nil, &types.MarketDataError{Exchange: exchangeID, Symbol: symbol, Err: err}
	}

	return &types.OrderBook{
		Exchange:  exchangeID,
		Symbol:    symbol,
		Asks:      asks,
		Bids:      bids,
		FetchedAt: time.Now().UTC(),
	}, nil
}

// MinTradeAmount fetches the minimum order quantity for the symbol.
func (g *RESTGateway) MinTradeAmount(ctx context.Context, exchangeID, symbol string) (float64, error) {
	venue, err := g.venue(exchangeID)
	if err != nil {
		return 0, &types.MarketDataError{Exchange: exchangeID, Symbol: symbol, Err: err}
	}

	endpoint := fmt.Sprintf("%s/api/v1/spot/market?symbol=%s", venue.BaseURL, url.QueryEscape(symbol))

	var data struct {
		MinAmount string `json:"min_amount"`
	}
	start := time.Now()
	err = g.getJSON(ctx, endpoint, &data)
	RequestDurationSeconds.WithLabelValues(exchangeID, "market").Observe(time.Since(start).Seconds())
	if err != nil {
		RequestErrorsTotal.WithLabelValues(exchangeID, "market").Inc()
		return 0, &types.MarketDataError{Exchange: exchangeID, Symbol: symbol, Err: err}
	}

	minAmount, err := strconv.ParseFloat(data.MinAmount, 64)
	if err != nil {
		return 0, &types.MarketDataError{Exchange: exchangeID, Symbol: symbol,
			Err: fmt.Errorf("parse min_amount %q: %w", data.MinAmount, err)}
	}
	return minAmount, nil
}

// ExecuteSpotBuy places a spot limit buy.
func (g *RESTGateway) ExecuteSpotBuy(ctx context.Context, exchangeID, symbol string, quantity, price float64) (*types.OrderAck, error) {
	return g.placeOrder(ctx, exchangeID, Spot, symbol, "buy", quantity, price)
}

// ExecuteSpotSell places a spot limit sell.
func (g *RESTGateway) ExecuteSpotSell(ctx context.Context, exchangeID, symbol string, quantity, price float64) (*types.OrderAck, error) {
	return g.placeOrder(ctx, exchangeID, Spot, symbol, "sell", quantity, price)
}

// ExecuteFuturesBuy places a futures limit buy.
func (g *RESTGateway) ExecuteFuturesBuy(ctx context.Context, exchangeID, symbol string, quantity, price float64) (*types.OrderAck, error) {
	return g.placeOrder(ctx, exchangeID, Futures, symbol, "buy", quantity, price)
}

// ExecuteFuturesSell places a futures limit sell.
func (g *RESTGateway) ExecuteFuturesSell(ctx context.Context, exchangeID, symbol string, quantity, price float64) (*types.OrderAck, error) {
	return g.placeOrder(ctx, exchangeID, Futures, symbol, "sell", quantity, price)
}

func (g *RESTGateway) placeOrder(ctx context.Context, exchangeID string, market MarketType, symbol, side string, quantity, price float64) (*types.OrderAck, error) {
	orderSide := string(market) + "_" + side

	venue, err := g.venue(exchangeID)
	if err != nil {
		return nil, &types.OrderExecutionError{Exchange: exchangeID, Symbol: symbol, Side: orderSide, Err: err}
	}

	payload := map[string]any{
		"symbol":   symbol,
		"side":     side,
		"type":     "limit",
		"quantity": strconv.FormatFloat(quantity, 'f', -1, 64),
		"price":    strconv.FormatFloat(price, 'f', -1, 64),
	}

	endpoint := fmt.Sprintf("%s/api/v1/%s/order", venue.BaseURL, market)

	var ack struct {
		OrderID string `json:"order_id"`
	}
	start := time.Now()
	err = g.postJSON(ctx, venue, endpoint, payload, &ack)
	RequestDurationSeconds.WithLabelValues(exchangeID, "order").Observe(time.Since(start).Seconds())
	if err != nil {
		RequestErrorsTotal.WithLabelValues(exchangeID, "order").Inc()
		return nil, &types.OrderExecutionError{Exchange: exchangeID, Symbol: symbol, Side: orderSide, Err: err}
	}
	if ack.OrderID == "" {
		return nil, &types.OrderExecutionError{Exchange: exchangeID, Symbol: symbol, Side: orderSide,
			Err: fmt.Errorf("exchange returned no order id")}
	}

	g.logger.Info("order-placed",
		zap.String("exchange", exchangeID),
		zap.String("symbol", symbol),
		zap.String("side", orderSide),
		zap.Float64("quantity", quantity),
		zap.Float64("price", price),
		zap.String("order-id", ack.OrderID))

	return &types.OrderAck{ID: ack.OrderID}, nil
}

func (g *RESTGateway) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return g.do(req, out)
}

func (g *RESTGateway) postJSON(ctx context.Context, venue *ExchangeConfig, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", venue.APIKey)
	req.Header.Set("X-API-SIGN", sign(venue.Secret, body))
	return g.do(req, out)
}

func (g *RESTGateway) do(req *http.Request, out any) error {
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("API error: status %d: %s", resp.StatusCode, string(body))
	}

	err = json.NewDecoder(resp.Body).Decode(out)
	if err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// sign computes the hex HMAC-SHA256 of the request body.
func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
