package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/mselser95/basis-arb/pkg/types"
)

// PostgresStorage implements Storage using PostgreSQL.
type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

// NewPostgresStorage creates a new PostgreSQL storage and verifies the
// connection.
func NewPostgresStorage(cfg *PostgresConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.Ping()
	if err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	cfg.Logger.Info("postgres-storage-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return &PostgresStorage{
		db:     db,
		logger: cfg.Logger,
	}, nil
}

// EnsureSchema creates the tables when they do not exist yet.
func (p *PostgresStorage) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS positions (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			spot_exchange TEXT NOT NULL,
			futures_exchange TEXT NOT NULL,
			status TEXT NOT NULL,
			initial_entry_spread DOUBLE PRECISION NOT NULL,
			spot_coins DOUBLE PRECISION NOT NULL,
			futures_coins DOUBLE PRECISION NOT NULL,
			spot_usdt DOUBLE PRECISION NOT NULL,
			futures_usdt DOUBLE PRECISION NOT NULL,
			spot_avg_price DOUBLE PRECISION NOT NULL,
			futures_avg_price DOUBLE PRECISION NOT NULL,
			remaining_spot_coins DOUBLE PRECISION NOT NULL,
			remaining_futures_coins DOUBLE PRECISION NOT NULL,
			pnl_usdt DOUBLE PRECISION NOT NULL DEFAULT 0,
			spot_order_ids TEXT[] NOT NULL DEFAULT '{}',
			futures_order_ids TEXT[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL,
			closed_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_positions_symbol_status ON positions (symbol, status)`,
		`CREATE TABLE IF NOT EXISTS position_adjustments (
			id TEXT PRIMARY KEY,
			position_id TEXT NOT NULL REFERENCES positions (id),
			adjustment_type TEXT NOT NULL,
			spread DOUBLE PRECISION NOT NULL,
			spot_coins DOUBLE PRECISION NOT NULL,
			futures_coins DOUBLE PRECISION NOT NULL,
			spot_price DOUBLE PRECISION NOT NULL,
			futures_price DOUBLE PRECISION NOT NULL,
			pnl_usdt DOUBLE PRECISION NOT NULL DEFAULT 0,
			spot_order_id TEXT NOT NULL DEFAULT '',
			futures_order_id TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_adjustments_position ON position_adjustments (position_id)`,
		`CREATE TABLE IF NOT EXISTS spreads (
			id BIGSERIAL PRIMARY KEY,
			symbol TEXT NOT NULL,
			spot_exchange TEXT NOT NULL,
			futures_exchange TEXT NOT NULL,
			entry_spread DOUBLE PRECISION NOT NULL,
			exit_spread DOUBLE PRECISION NOT NULL,
			spot_best_ask DOUBLE PRECISION NOT NULL,
			spot_best_bid DOUBLE PRECISION NOT NULL,
			futures_best_ask DOUBLE PRECISION NOT NULL,
			futures_best_bid DOUBLE PRECISION NOT NULL,
			spot_weighted_ask DOUBLE PRECISION NOT NULL,
			futures_weighted_bid DOUBLE PRECISION NOT NULL,
			spot_weighted_bid DOUBLE PRECISION NOT NULL,
			futures_weighted_ask DOUBLE PRECISION NOT NULL,
			tradable_coins DOUBLE PRECISION NOT NULL,
			tradable_usdt DOUBLE PRECISION NOT NULL,
			trade_opportunity BOOLEAN NOT NULL,
			close_opportunity BOOLEAN NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_spreads_symbol_created ON spreads (symbol, created_at)`,
	}

	for _, stmt := range statements {
		_, err := p.db.ExecContext(ctx, stmt)
		if err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}

	p.logger.Info("postgres-schema-ensured")
	return nil
}

// CreatePosition stores a newly opened position.
func (p *PostgresStorage) CreatePosition(ctx context.Context, pos *types.Position) error {
	query := `
		INSERT INTO positions (
			id, symbol, spot_exchange, futures_exchange, status,
			initial_entry_spread, spot_coins, futures_coins, spot_usdt,
			futures_usdt, spot_avg_price, futures_avg_price,
			remaining_spot_coins, remaining_futures_coins, pnl_usdt,
			spot_order_ids, futures_order_ids, created_at, closed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19
		)
	`

	_, err := p.db.ExecContext(ctx, query,
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
		pq.Array(pos.SpotOrderIDs),
		pq.Array(pos.FuturesOrderIDs),
		pos.CreatedAt,
		pos.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("insert position: %w", err)
	}

	p.logger.Debug("position-stored",
		zap.String("position-id", pos.ID),
		zap.String("symbol", pos.Symbol))

	return nil
}

// UpdatePosition replaces the stored state of a position.
func (p *PostgresStorage) UpdatePosition(ctx context.Context, pos *types.Position) error {
	query := `
		UPDATE positions SET
			status = $2,
			spot_coins = $3,
			futures_coins = $4,
			spot_usdt = $5,
			futures_usdt = $6,
			spot_avg_price = $7,
			futures_avg_price = $8,
			remaining_spot_coins = $9,
			remaining_futures_coins = $10,
			pnl_usdt = $11,
			spot_order_ids = $12,
			futures_order_ids = $13,
			closed_at = $14
		WHERE id = $1
	`

	result, err := p.db.ExecContext(ctx, query,
		pos.ID,
		string(pos.Status),
		pos.SpotCoins,
		pos.FuturesCoins,
		pos.SpotUSDT,
		pos.FuturesUSDT,
		pos.SpotAvgPrice,
		pos.FuturesAvgPrice,
		pos.RemainingSpotCoins,
		pos.RemainingFuturesCoins,
		pos.PnLUSDT,
		pq.Array(pos.SpotOrderIDs),
		pq.Array(pos.FuturesOrderIDs),
		pos.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("update position: %w", err)
	}

	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return fmt.Errorf("update position: %s not found", pos.ID)
	}

	return nil
}

// AppendAdjustment records an entry, increase, or exit event.
func (p *PostgresStorage) AppendAdjustment(ctx context.Context, adj *types.PositionAdjustment) error {
	query := `
		INSERT INTO position_adjustments (
			id, position_id, adjustment_type, spread, spot_coins,
			futures_coins, spot_price, futures_price, pnl_usdt,
			spot_order_id, futures_order_id, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
	`

	_, err := p.db.ExecContext(ctx, query,
		adj.ID,
		adj.PositionID,
		string(adj.Type),
		adj.Spread,
		adj.SpotCoins,
		adj.FuturesCoins,
		adj.SpotPrice,
		adj.FuturesPrice,
		adj.PnLUSDT,
		adj.SpotOrderID,
		adj.FuturesOrderID,
		adj.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert adjustment: %w", err)
	}

	return nil
}

const positionColumns = `
	id, symbol, spot_exchange, futures_exchange, status,
	initial_entry_spread, spot_coins, futures_coins, spot_usdt,
	futures_usdt, spot_avg_price, futures_avg_price,
	remaining_spot_coins, remaining_futures_coins, pnl_usdt,
	spot_order_ids, futures_order_ids, created_at, closed_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPosition(row rowScanner) (*types.Position, error) {
	var pos types.Position
	var status string
	var spotOrderIDs, futuresOrderIDs pq.StringArray
	var closedAt sql.NullTime

	err := row.Scan(
		&pos.ID,
		&pos.Symbol,
		&pos.SpotExchange,
		&pos.FuturesExchange,
		&status,
		&pos.InitialEntrySpread,
		&pos.SpotCoins,
		&pos.FuturesCoins,
		&pos.SpotUSDT,
		&pos.FuturesUSDT,
		&pos.SpotAvgPrice,
		&pos.FuturesAvgPrice,
		&pos.RemainingSpotCoins,
		&pos.RemainingFuturesCoins,
		&pos.PnLUSDT,
		&spotOrderIDs,
		&futuresOrderIDs,
		&pos.CreatedAt,
		&closedAt,
	)
	if err != nil {
		return nil, err
	}

	pos.Status = types.PositionStatus(status)
	pos.SpotOrderIDs = spotOrderIDs
	pos.FuturesOrderIDs = futuresOrderIDs
	if closedAt.Valid {
		t := closedAt.Time
		pos.ClosedAt = &t
	}
	return &pos, nil
}

// GetPosition returns a position by id, or nil when absent.
func (p *PostgresStorage) GetPosition(ctx context.Context, id string) (*types.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE id = $1`

	pos, err := scanPosition(p.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get position: %w", err)
	}
	return pos, nil
}

// FindActivePosition returns the open or partially closed position for
// a symbol, or nil when none exists.
func (p *PostgresStorage) FindActivePosition(ctx context.Context, symbol string) (*types.Position, error) {
	query := `SELECT ` + positionColumns + `
		FROM positions
		WHERE symbol = $1 AND status IN ('open', 'partially_closed')
		ORDER BY created_at DESC
		LIMIT 1`

	pos, err := scanPosition(p.db.QueryRowContext(ctx, query, symbol))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find active position: %w", err)
	}
	return pos, nil
}

func (p *PostgresStorage) queryPositions(ctx context.Context, query string, args ...any) ([]*types.Position, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*types.Position
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pos)
	}
	return out, rows.Err()
}

// OpenPositions returns all non-terminal positions.
func (p *PostgresStorage) OpenPositions(ctx context.Context) ([]*types.Position, error) {
	query := `SELECT ` + positionColumns + `
		FROM positions
		WHERE status IN ('open', 'partially_closed')
		ORDER BY created_at`

	out, err := p.queryPositions(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("open positions: %w", err)
	}
	return out, nil
}

// ClosedPositions returns positions closed within the last sinceDays days.
func (p *PostgresStorage) ClosedPositions(ctx context.Context, sinceDays int) ([]*types.Position, error) {
	query := `SELECT ` + positionColumns + `
		FROM positions
		WHERE status = 'closed' AND closed_at >= $1
		ORDER BY closed_at DESC`

	since := time.Now().UTC().AddDate(0, 0, -sinceDays)
	out, err := p.queryPositions(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("closed positions: %w", err)
	}
	return out, nil
}

// StoreSpread records a spread observation.
func (p *PostgresStorage) StoreSpread(ctx context.Context, rec *types.SpreadRecord) error {
	query := `
		INSERT INTO spreads (
			symbol, spot_exchange, futures_exchange, entry_spread,
			exit_spread, spot_best_ask, spot_best_bid, futures_best_ask,
			futures_best_bid, spot_weighted_ask, futures_weighted_bid,
			spot_weighted_bid, futures_weighted_ask, tradable_coins,
			tradable_usdt, trade_opportunity, close_opportunity, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18
		)
	`

	_, err := p.db.ExecContext(ctx, query,
		rec.Symbol,
		rec.SpotExchange,
		rec.FuturesExchange,
		rec.EntrySpread,
		rec.ExitSpread,
		rec.SpotBestAsk,
		rec.SpotBestBid,
		rec.FuturesBestAsk,
		rec.FuturesBestBid,
		rec.SpotWeightedAsk,
		rec.FuturesWeightedBid,
		rec.SpotWeightedBid,
		rec.FuturesWeightedAsk,
		rec.TradableCoins,
		rec.TradableUSDT,
		rec.TradeOpportunity,
		rec.CloseOpportunity,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert spread: %w", err)
	}

	return nil
}

// RecentSpreads returns observations for a symbol within the last hours
// hours, newest first. An empty symbol matches all pairs.
func (p *PostgresStorage) RecentSpreads(ctx context.Context, symbol string, hours int) ([]*types.SpreadRecord, error) {
	query := `
		SELECT id, symbol, spot_exchange, futures_exchange, entry_spread,
			exit_spread, spot_best_ask, spot_best_bid, futures_best_ask,
			futures_best_bid, spot_weighted_ask, futures_weighted_bid,
			spot_weighted_bid, futures_weighted_ask, tradable_coins,
			tradable_usdt, trade_opportunity, close_opportunity, created_at
		FROM spreads
		WHERE ($1 = '' OR symbol = $1) AND created_at >= $2
		ORDER BY created_at DESC
	`

	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	rows, err := p.db.QueryContext(ctx, query, symbol, since)
	if err != nil {
		return nil, fmt.Errorf("recent spreads: %w", err)
	}
	defer rows.Close()

	var out []*types.SpreadRecord
	for rows.Next() {
		var rec types.SpreadRecord
		err := rows.Scan(
			&rec.ID,
			&rec.Symbol,
			&rec.SpotExchange,
			&rec.FuturesExchange,
			&rec.EntrySpread,
			&rec.ExitSpread,
			&rec.SpotBestAsk,
			&rec.SpotBestBid,
			&rec.FuturesBestAsk,
			&rec.FuturesBestBid,
			&rec.SpotWeightedAsk,
			&rec.FuturesWeightedBid,
			&rec.SpotWeightedBid,
			&rec.FuturesWeightedAsk,
			&rec.TradableCoins,
			&rec.TradableUSDT,
			&rec.TradeOpportunity,
			&rec.CloseOpportunity,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan spread: %w", err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// Close closes the database connection.
func (p *PostgresStorage) Close() error {
	p.logger.Info("closing-postgres-storage")
	return p.db.Close()
}
