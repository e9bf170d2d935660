package httpserver

import (
	"context"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/mselser95/basis-arb/pkg/types"
)

// PositionSource reads position state for the API.
type PositionSource interface {
	OpenPositions(ctx context.Context) ([]*types.Position, error)
	ClosedPositions(ctx context.Context, sinceDays int) ([]*types.Position, error)
}

// SpreadSource reads spread history for the API.
type SpreadSource interface {
	RecentSpreads(ctx context.Context, symbol string, hours int) ([]*types.SpreadRecord, error)
}

// PositionsHandler serves the read-only positions and spreads API.
type PositionsHandler struct {
	positions PositionSource
	spreads   SpreadSource
	logger    *zap.Logger
}

// NewPositionsHandler creates a new positions handler.
func NewPositionsHandler(positions PositionSource, spreads SpreadSource, logger *zap.Logger) *PositionsHandler {
	return &PositionsHandler{
		positions: positions,
		spreads:   spreads,
		logger:    logger,
	}
}

type positionsResponse struct {
	Status    string            `json:"status"`
	Count     int               `json:"count"`
	Positions []*types.Position `json:"positions"`
}

// HandlePositions serves GET /api/positions. The status query selects
// "open" (default) or "closed"; days bounds the closed window.
func (h *PositionsHandler) HandlePositions(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		status = "open"
	}

	var positions []*types.Position
	var err error

	switch status {
	case "open":
		positions, err = h.positions.OpenPositions(r.Context())
	case "closed":
		days := 7
		if raw := r.URL.Query().Get("days"); raw != "" {
			days, err = strconv.Atoi(raw)
			if err != nil || days <= 0 {
				http.Error(w, "days must be a positive integer", http.StatusBadRequest)
				return
			}
		}
		positions, err = h.positions.ClosedPositions(r.Context(), days)
	default:
		http.Error(w, "status must be 'open' or 'closed'", http.StatusBadRequest)
		return
	}

	if err != nil {
		h.logger.Error("positions-query-failed", zap.String("status", status), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, positionsResponse{
		Status:    status,
		Count:     len(positions),
		Positions: positions,
	})
}

type spreadsResponse struct {
	Symbol  string                `json:"symbol,omitempty"`
	Hours   int                   `json:"hours"`
	Count   int                   `json:"count"`
	Spreads []*types.SpreadRecord `json:"spreads"`
}

// HandleSpreads serves GET /api/spreads with optional symbol and hours
// query parameters.
func (h *PositionsHandler) HandleSpreads(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")

	hours := 24
	if raw := r.URL.Query().Get("hours"); raw != "" {
		var err error
		hours, err = strconv.Atoi(raw)
		if err != nil || hours <= 0 {
			http.Error(w, "hours must be a positive integer", http.StatusBadRequest)
			return
		}
	}

	spreads, err := h.spreads.RecentSpreads(r.Context(), symbol, hours)
	if err != nil {
		h.logger.Error("spreads-query-failed", zap.String("symbol", symbol), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, spreadsResponse{
		Symbol:  symbol,
		Hours:   hours,
		Count:   len(spreads),
		Spreads: spreads,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}
