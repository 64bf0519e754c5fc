package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	_ = os.Unsetenv("BTRADER_CONFIG")
	_ = os.Unsetenv("BTRADER_LOG_LEVEL")
	_ = os.Unsetenv("BTRADER_INVESTMENT_BASE")

	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Trading.InvestmentBase != "BTC" {
		t.Fatalf("expected default base BTC, got %s", c.Trading.InvestmentBase)
	}
	if c.Logging.Level != "info" {
		t.Fatalf("expected default log level info, got %s", c.Logging.Level)
	}
	grid, err := c.Grid()
	if err != nil {
		t.Fatalf("grid: %v", err)
	}
	if got := len(grid); got != 10 {
		t.Fatalf("expected 10 grid quantities, got %d", got)
	}
	if c.Telegram.Enabled || c.Telegram.APIURL != "https://api.telegram.org" {
		t.Fatalf("unexpected telegram defaults: %+v", c.Telegram)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BTRADER_INVESTMENT_BASE", "ETH")
	t.Setenv("BTRADER_LOG_LEVEL", "debug")
	t.Setenv("BTRADER_FEE_PERCENT", "0.1")
	t.Setenv("BTRADER_ADMIN_ALLOW_CIDRS", "10.0.0.0/8,,192.168.0.0/16")
	t.Setenv("BTRADER_JOURNAL_PATH", "/tmp/deals.db")
	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Trading.InvestmentBase != "ETH" {
		t.Fatalf("env override failed for base, got %s", c.Trading.InvestmentBase)
	}
	if c.Logging.Level != "debug" {
		t.Fatalf("env override failed for log level, got %s", c.Logging.Level)
	}
	if c.Engine.FeePercent != 0.1 {
		t.Fatalf("env override failed for fee, got %v", c.Engine.FeePercent)
	}
	if len(c.Server.AdminAllowCIDRs) != 2 {
		t.Fatalf("expected 2 cidrs, got %v", c.Server.AdminAllowCIDRs)
	}
	if !c.Journal.Enabled || c.Journal.Path != "/tmp/deals.db" {
		t.Fatalf("journal override failed: %+v", c.Journal)
	}
}

func TestMalformedNumericOverrides(t *testing.T) {
	cases := []struct {
		key, value string
	}{
		{"BTRADER_FEE_PERCENT", "0.1%"},
		{"BTRADER_FEE_PERCENT", "150"},
		{"BTRADER_FEE_PERCENT", "NaN"},
		{"BTRADER_PROFIT_THRESHOLD", "abc"},
		{"BTRADER_AGE_THRESHOLD_MS", "1s"},
		{"BTRADER_AGE_THRESHOLD_MS", "-5"},
		{"BTRADER_TELEGRAM_CHAT_ID", "channel"},
	}
	for _, tc := range cases {
		t.Run(tc.key+"="+tc.value, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%q", tc.key, tc.value)
			}
		})
	}
}

func TestTelegramEnv(t *testing.T) {
	t.Setenv("BTRADER_TELEGRAM_TOKEN", "123:abc")
	t.Setenv("BTRADER_TELEGRAM_CHAT_ID", "-1001")
	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !c.Telegram.Enabled || c.Telegram.Token != "123:abc" || c.Telegram.ChatID != -1001 {
		t.Fatalf("telegram override failed: %+v", c.Telegram)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "btrader.yaml")
	body := `
engine:
  fee_percent: 0.1
  quantities: [1, 2, 3]
trading:
  profit_threshold: 0.5
  relationships:
    - name: triangle
      symbols: [ETHBTC, BNBETH, BNBBTC]
      sides: [BUY, BUY, SELL]
redis:
  enabled: true
  channel: deals
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BTRADER_CONFIG", path)
	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Engine.FeePercent != 0.1 || c.Trading.ProfitThreshold != 0.5 {
		t.Fatalf("yaml values not applied: %+v %+v", c.Engine, c.Trading)
	}
	grid, err := c.Grid()
	if err != nil {
		t.Fatalf("grid: %v", err)
	}
	if len(grid) != 3 || grid[2] != 3 {
		t.Fatalf("explicit quantities not used: %v", grid)
	}
	if len(c.Trading.Relationships) != 1 || c.Trading.Relationships[0].Sides[2] != "SELL" {
		t.Fatalf("relationships not parsed: %+v", c.Trading.Relationships)
	}
	if !c.Redis.Enabled || c.Redis.Channel != "deals" || c.Redis.Key != "btrader:latest" {
		t.Fatalf("redis section not merged over defaults: %+v", c.Redis)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("BTRADER_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestGridRange(t *testing.T) {
	var c Config
	c.Engine.Grid.Min = 0.5
	c.Engine.Grid.Max = 2
	c.Engine.Grid.Step = 0.5
	grid, err := c.Grid()
	if err != nil {
		t.Fatalf("grid: %v", err)
	}
	want := []float64{0.5, 1, 1.5, 2}
	if len(grid) != len(want) {
		t.Fatalf("grid %v, want %v", grid, want)
	}
	for i := range want {
		if grid[i] != want[i] {
			t.Fatalf("grid %v, want %v", grid, want)
		}
	}

	c.Engine.Grid.Step = 0
	if _, err := c.Grid(); err == nil {
		t.Fatal("zero step should be rejected")
	}
}

func TestGridSizeCapped(t *testing.T) {
	var c Config
	c.Engine.Grid.Min = 0
	c.Engine.Grid.Max = 1e9
	c.Engine.Grid.Step = 1e-9
	if _, err := c.Grid(); err == nil {
		t.Fatal("expected oversized grid to be rejected")
	}

	c.Engine.Grid.Max = float64(MaxGridSize - 1)
	c.Engine.Grid.Step = 1
	grid, err := c.Grid()
	if err != nil {
		t.Fatalf("grid at the limit: %v", err)
	}
	// zero is dropped
	if len(grid) != MaxGridSize-1 {
		t.Fatalf("expected %d quantities, got %d", MaxGridSize-1, len(grid))
	}

	c.Engine.Quantities = make([]float64, MaxGridSize+1)
	if _, err := c.Grid(); err == nil {
		t.Fatal("expected oversized explicit quantity list to be rejected")
	}
}
