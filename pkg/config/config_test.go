package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFiles(t *testing.T) {
	t.Helper()
	dir := t.TempDir()

	pairs := filepath.Join(dir, "pairs.json")
	err := os.WriteFile(pairs, []byte(`[
		{"symbol": "BTCUSDT", "spot_exchange": "binance", "futures_exchange": "bybit"},
		{"symbol": "ETHUSDT", "spot_exchange": "binance", "futures_exchange": "bybit", "futures_symbol": "ETH-PERP"}
	]`), 0o600)
	if err != nil {
		t.Fatalf("write pairs file: %v", err)
	}

	exchanges := filepath.Join(dir, "exchanges.json")
	err = os.WriteFile(exchanges, []byte(`[
		{"id": "binance", "base_url": "https://api.binance.example"},
		{"id": "bybit", "base_url": "https://api.bybit.example", "api_key": "k", "secret": "s"}
	]`), 0o600)
	if err != nil {
		t.Fatalf("write exchanges file: %v", err)
	}

	t.Setenv("PAIRS_FILE", pairs)
	t.Setenv("EXCHANGES_FILE", exchanges)
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	writeConfigFiles(t)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.SpreadIn != 0.5 {
		t.Errorf("expected default SPREAD_IN 0.5, got %f", cfg.SpreadIn)
	}
	if cfg.SpreadOut != -0.3 {
		t.Errorf("expected default SPREAD_OUT -0.3, got %f", cfg.SpreadOut)
	}
	if cfg.CheckInterval != 30*time.Second {
		t.Errorf("expected default CHECK_INTERVAL 30s, got %s", cfg.CheckInterval)
	}
	if cfg.AutoTrade {
		t.Error("expected AUTO_TRADE to default to false")
	}
	if cfg.StorageMode != "console" {
		t.Errorf("expected default STORAGE_MODE console, got %s", cfg.StorageMode)
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	writeConfigFiles(t)
	t.Setenv("SPREAD_IN", "1.2")
	t.Setenv("SPREAD_OUT", "-0.8")
	t.Setenv("LOT_MIN", "250")
	t.Setenv("LOT_MAX", "2500")
	t.Setenv("CHECK_INTERVAL", "5s")
	t.Setenv("AUTO_TRADE", "true")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.SpreadIn != 1.2 {
		t.Errorf("expected SPREAD_IN 1.2, got %f", cfg.SpreadIn)
	}
	if cfg.LotMax != 2500 {
		t.Errorf("expected LOT_MAX 2500, got %f", cfg.LotMax)
	}
	if cfg.CheckInterval != 5*time.Second {
		t.Errorf("expected CHECK_INTERVAL 5s, got %s", cfg.CheckInterval)
	}
	if !cfg.AutoTrade {
		t.Error("expected AUTO_TRADE true")
	}
}

func TestLoadFromEnv_PairDefaults(t *testing.T) {
	writeConfigFiles(t)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.Pairs[0].SpotSymbol != "BTCUSDT" {
		t.Errorf("expected spot symbol to default to BTCUSDT, got %s", cfg.Pairs[0].SpotSymbol)
	}
	if cfg.Pairs[1].FuturesSymbol != "ETH-PERP" {
		t.Errorf("expected futures symbol ETH-PERP, got %s", cfg.Pairs[1].FuturesSymbol)
	}
}

func TestLoadFromEnv_MissingPairsFile(t *testing.T) {
	t.Setenv("PAIRS_FILE", "/nonexistent/pairs.json")

	_, err := LoadFromEnv()
	if err == nil {
		t.Error("expected error for missing pairs file")
	}
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"lot max below lot min", map[string]string{"LOT_MIN": "500", "LOT_MAX": "100"}},
		{"spread in at or below spread out", map[string]string{"SPREAD_IN": "-0.5", "SPREAD_OUT": "0.5"}},
		{"negative lot min", map[string]string{"LOT_MIN": "-1"}},
		{"bad storage mode", map[string]string{"STORAGE_MODE": "redis"}},
		{"negative error backoff", map[string]string{"ERROR_BACKOFF": "-1m"}},
		{"negative gateway call timeout", map[string]string{"GATEWAY_CALL_TIMEOUT": "-5s"}},
		{"negative stop timeout", map[string]string{"STOP_TIMEOUT": "-1s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writeConfigFiles(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadFromEnv()
			if err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestValidate_UnknownExchange(t *testing.T) {
	dir := t.TempDir()

	pairs := filepath.Join(dir, "pairs.json")
	os.WriteFile(pairs, []byte(`[{"symbol": "BTCUSDT", "spot_exchange": "kraken", "futures_exchange": "bybit"}]`), 0o600)
	exchanges := filepath.Join(dir, "exchanges.json")
	os.WriteFile(exchanges, []byte(`[{"id": "bybit", "base_url": "https://api.bybit.example"}]`), 0o600)

	t.Setenv("PAIRS_FILE", pairs)
	t.Setenv("EXCHANGES_FILE", exchanges)

	_, err := LoadFromEnv()
	if err == nil {
		t.Error("expected error for unknown spot exchange")
	}
}
