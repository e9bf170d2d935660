package storage

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/mselser95/basis-arb/pkg/types"
)

func testPosition() *types.Position {
	return &types.Position{
		ID:                    "pos-1",
		Symbol:                "BTCUSDT",
		SpotExchange:          "binance",
		FuturesExchange:       "bybit",
		Status:                types.StatusOpen,
		InitialEntrySpread:    0.5,
		SpotCoins:             10,
		FuturesCoins:          10,
		SpotUSDT:              1000,
		FuturesUSDT:           1005,
		SpotAvgPrice:          100,
		FuturesAvgPrice:       100.5,
		RemainingSpotCoins:    10,
		RemainingFuturesCoins: 10,
		SpotOrderIDs:          []string{"s-1"},
		FuturesOrderIDs:       []string{"f-1"},
		CreatedAt:             time.Now().UTC(),
	}
}

func newMockStorage(t *testing.T) (*PostgresStorage, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger, _ := zap.NewDevelopment()
	return &PostgresStorage{db: db, logger: logger}, mock
}

func TestPostgresStorage_CreatePosition(t *testing.T) {
	storage, mock := newMockStorage(t)
	pos := testPosition()

	mock.ExpectExec("INSERT INTO positions").
		WithArgs(
			pos.ID,
			pos.Symbol,
			pos.SpotExchange,
			pos.FuturesExchange,
			string(pos.Status),
			pos.InitialEntrySpread,
			pos.SpotCoins,
			pos.FuturesCoins,
			pos.SpotUSDT,
			pos.FuturesUSDT,
			pos.SpotAvgPrice,
			pos.FuturesAvgPrice,
			pos.RemainingSpotCoins,
			pos.RemainingFuturesCoins,
			pos.PnLUSDT,
			sqlmock.AnyArg(), // spot order ids
			sqlmock.AnyArg(), // futures order ids
			sqlmock.AnyArg(), // created_at
			nil,              // closed_at
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := storage.CreatePosition(context.Background(), pos)
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresStorage_CreatePosition_Error(t *testing.T) {
	storage, mock := newMockStorage(t)

	mock.ExpectExec("INSERT INTO positions").
		WillReturnError(sqlmock.ErrCancelled)

	err := storage.CreatePosition(context.Background(), testPosition())
	if err == nil {
		t.Error("expected error, got nil")
	}
}

func TestPostgresStorage_UpdatePosition(t *testing.T) {
	storage, mock := newMockStorage(t)
	pos := testPosition()
	pos.Status = types.StatusPartiallyClosed
	pos.RemainingSpotCoins = 6
	pos.PnLUSDT = 14

	mock.ExpectExec("UPDATE positions").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := storage.UpdatePosition(context.Background(), pos)
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresStorage_UpdatePosition_NotFound(t *testing.T) {
	storage, mock := newMockStorage(t)

	mock.ExpectExec("UPDATE positions").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := storage.UpdatePosition(context.Background(), testPosition())
	if err == nil {
		t.Error("expected error for missing position, got nil")
	}
}

func TestPostgresStorage_AppendAdjustment(t *testing.T) {
	storage, mock := newMockStorage(t)

	adj := &types.PositionAdjustment{
		ID:           "adj-1",
		PositionID:   "pos-1",
		Type:         types.AdjustmentEntry,
		Spread:       0.5,
		SpotCoins:    10,
		FuturesCoins: 10,
		SpotPrice:    100,
		FuturesPrice: 100.5,
		CreatedAt:    time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO position_adjustments").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := storage.AppendAdjustment(context.Background(), adj)
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func positionRows(pos *types.Position) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "symbol", "spot_exchange", "futures_exchange", "status",
		"initial_entry_spread", "spot_coins", "futures_coins", "spot_usdt",
		"futures_usdt", "spot_avg_price", "futures_avg_price",
		"remaining_spot_coins", "remaining_futures_coins", "pnl_usdt",
		"spot_order_ids", "futures_order_ids", "created_at", "closed_at",
	}).AddRow(
		pos.ID, pos.Symbol, pos.SpotExchange, pos.FuturesExchange,
		string(pos.Status), pos.InitialEntrySpread, pos.SpotCoins,
		pos.FuturesCoins, pos.SpotUSDT, pos.FuturesUSDT, pos.SpotAvgPrice,
		pos.FuturesAvgPrice, pos.RemainingSpotCoins,
		pos.RemainingFuturesCoins, pos.PnLUSDT,
		pq.StringArray(pos.SpotOrderIDs), pq.StringArray(pos.FuturesOrderIDs),
		pos.CreatedAt, pos.ClosedAt,
	)
}

func TestPostgresStorage_GetPosition(t *testing.T) {
	storage, mock := newMockStorage(t)
	pos := testPosition()

	mock.ExpectQuery("SELECT(.|\n)+FROM positions WHERE id").
		WithArgs(pos.ID).
		WillReturnRows(positionRows(pos))

	got, err := storage.GetPosition(context.Background(), pos.ID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got == nil {
		t.Fatal("expected position, got nil")
	}
	if got.Symbol != pos.Symbol {
		t.Errorf("expected symbol %s, got %s", pos.Symbol, got.Symbol)
	}
	if got.Status != types.StatusOpen {
		t.Errorf("expected status open, got %s", got.Status)
	}
	if len(got.SpotOrderIDs) != 1 || got.SpotOrderIDs[0] != "s-1" {
		t.Errorf("unexpected spot order ids: %v", got.SpotOrderIDs)
	}
}

func TestPostgresStorage_GetPosition_Absent(t *testing.T) {
	storage, mock := newMockStorage(t)

	mock.ExpectQuery("SELECT(.|\n)+FROM positions WHERE id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	got, err := storage.GetPosition(context.Background(), "missing")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != nil {
		t.Errorf("expected nil position, got %+v", got)
	}
}

func TestPostgresStorage_FindActivePosition(t *testing.T) {
	storage, mock := newMockStorage(t)
	pos := testPosition()

	mock.ExpectQuery("SELECT(.|\n)+WHERE symbol = (.+) AND status IN").
		WithArgs(pos.Symbol).
		WillReturnRows(positionRows(pos))

	got, err := storage.FindActivePosition(context.Background(), pos.Symbol)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got == nil || got.ID != pos.ID {
		t.Errorf("expected position %s, got %+v", pos.ID, got)
	}
}

func TestPostgresStorage_ClosedPositions(t *testing.T) {
	storage, mock := newMockStorage(t)
	pos := testPosition()
	pos.Status = types.StatusClosed
	closedAt := time.Now().UTC()
	pos.ClosedAt = &closedAt

	mock.ExpectQuery("SELECT(.|\n)+WHERE status = 'closed' AND closed_at >=").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(positionRows(pos))

	got, err := storage.ClosedPositions(context.Background(), 7)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 position, got %d", len(got))
	}
	if got[0].ClosedAt == nil {
		t.Error("expected closed_at to be set")
	}
}

func TestPostgresStorage_StoreSpread(t *testing.T) {
	storage, mock := newMockStorage(t)

	rec := &types.SpreadRecord{
		Symbol:           "BTCUSDT",
		SpotExchange:     "binance",
		FuturesExchange:  "bybit",
		EntrySpread:      0.5,
		ExitSpread:       -0.2,
		TradeOpportunity: true,
		CreatedAt:        time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO spreads").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := storage.StoreSpread(context.Background(), rec)
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresStorage_EnsureSchema(t *testing.T) {
	storage, mock := newMockStorage(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS positions").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_positions_symbol_status").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS position_adjustments").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_adjustments_position").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS spreads").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_spreads_symbol_created").WillReturnResult(sqlmock.NewResult(0, 0))

	err := storage.EnsureSchema(context.Background())
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresStorage_Close(t *testing.T) {
	storage, mock := newMockStorage(t)

	mock.ExpectClose()

	err := storage.Close()
	if err != nil {
		t.Errorf("expected no error on close, got %v", err)
	}
}

func TestConsoleStorage_PositionLifecycle(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	storage := NewConsoleStorage(logger)
	ctx := context.Background()

	pos := testPosition()
	if err := storage.CreatePosition(ctx, pos); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := storage.FindActivePosition(ctx, pos.Symbol)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got == nil || got.ID != pos.ID {
		t.Fatalf("expected active position %s, got %+v", pos.ID, got)
	}

	pos.Status = types.StatusClosed
	closedAt := time.Now().UTC()
	pos.ClosedAt = &closedAt
	if err := storage.UpdatePosition(ctx, pos); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err = storage.FindActivePosition(ctx, pos.Symbol)
	if err != nil {
		t.Fatalf("find after close: %v", err)
	}
	if got != nil {
		t.Errorf("expected no active position, got %+v", got)
	}

	closed, err := storage.ClosedPositions(ctx, 7)
	if err != nil {
		t.Fatalf("closed positions: %v", err)
	}
	if len(closed) != 1 {
		t.Errorf("expected 1 closed position, got %d", len(closed))
	}
}

func TestConsoleStorage_UpdateMissingPosition(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	storage := NewConsoleStorage(logger)

	err := storage.UpdatePosition(context.Background(), testPosition())
	if err == nil {
		t.Error("expected error for missing position, got nil")
	}
}

func TestConsoleStorage_RecentSpreads(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	storage := NewConsoleStorage(logger)
	ctx := context.Background()

	for _, symbol := range []string{"BTCUSDT", "ETHUSDT", "BTCUSDT"} {
		err := storage.StoreSpread(ctx, &types.SpreadRecord{
			Symbol:    symbol,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("store spread: %v", err)
		}
	}

	recs, err := storage.RecentSpreads(ctx, "BTCUSDT", 1)
	if err != nil {
		t.Fatalf("recent spreads: %v", err)
	}
	if len(recs) != 2 {
		t.Errorf("expected 2 records, got %d", len(recs))
	}

	all, err := storage.RecentSpreads(ctx, "", 1)
	if err != nil {
		t.Fatalf("recent spreads all: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 records, got %d", len(all))
	}
}
