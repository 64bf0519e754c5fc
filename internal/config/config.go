package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Logging struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"logging"`
	Server struct {
		Addr                string   `yaml:"addr"`
		Pprof               bool     `yaml:"pprof"`
		ReadTimeoutSeconds  int      `yaml:"read_timeout_seconds"`
		WriteTimeoutSeconds int      `yaml:"write_timeout_seconds"`
		IdleTimeoutSeconds  int      `yaml:"idle_timeout_seconds"`
		AdminAllowCIDRs     []string `yaml:"admin_allow_cidrs"`
	} `yaml:"server"`
	Engine struct {
		FeePercent  float64   `yaml:"fee_percent"`
		FeeLegs     int       `yaml:"fee_legs"`
		Quantize    bool      `yaml:"quantize"`
		DepthPolicy string    `yaml:"depth_policy"`
		Quantities  []float64 `yaml:"quantities"`
		Grid        struct {
			Min  float64 `yaml:"min"`
			Max  float64 `yaml:"max"`
			Step float64 `yaml:"step"`
		} `yaml:"grid"`
	} `yaml:"engine"`
	Trading struct {
		InvestmentBase  string         `yaml:"investment_base"`
		ProfitThreshold float64        `yaml:"profit_threshold"` // percent
		AgeThresholdMs  float64        `yaml:"age_threshold_ms"`
		ScanIntervalMs  int            `yaml:"scan_interval_ms"`
		ReportSeconds   int            `yaml:"report_seconds"`
		Discover        bool           `yaml:"discover"`
		Markets         []Market       `yaml:"markets"`
		Relationships   []Relationship `yaml:"relationships"`
	} `yaml:"trading"`
	Feed struct {
		Enabled            bool    `yaml:"enabled"`
		RESTURL            string  `yaml:"rest_url"`
		WSURL              string  `yaml:"ws_url"`
		Depth              int     `yaml:"depth"`
		StreamsPerConn     int     `yaml:"streams_per_conn"`
		RequestsPerSecond  float64 `yaml:"requests_per_second"`
		Burst              int     `yaml:"burst"`
		ReadTimeoutSeconds int     `yaml:"read_timeout_seconds"`
	} `yaml:"feed"`
	Journal struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"journal"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Channel  string `yaml:"channel"`
		Key      string `yaml:"key"`
	} `yaml:"redis"`
	Telegram struct {
		Enabled           bool    `yaml:"enabled"`
		APIURL            string  `yaml:"api_url"`
		Token             string  `yaml:"-"`
		ChatID            int64   `yaml:"chat_id"`
		TimeoutSeconds    int     `yaml:"timeout_seconds"`
		MessagesPerSecond float64 `yaml:"messages_per_second"`
	} `yaml:"telegram"`
}

type Market struct {
	Symbol  string  `yaml:"symbol"`
	Base    string  `yaml:"base"`
	Quote   string  `yaml:"quote"`
	LotStep float64 `yaml:"lot_step"`
}

// Relationship is an explicit cycle; Symbols and Sides are parallel lists.
type Relationship struct {
	Name    string   `yaml:"name"`
	Symbols []string `yaml:"symbols"`
	Sides   []string `yaml:"sides"`
}

func defaultConfig() Config {
	var c Config
	c.Logging.Level = "info"
	c.Logging.Pretty = false
	c.Server.Addr = ":9090"
	c.Server.Pprof = false
	c.Server.ReadTimeoutSeconds = 5
	c.Server.WriteTimeoutSeconds = 10
	c.Server.IdleTimeoutSeconds = 60
	c.Server.AdminAllowCIDRs = []string{"127.0.0.0/8", "::1/128"}
	c.Engine.FeePercent = 0.075
	c.Engine.FeeLegs = 0
	c.Engine.Quantize = true
	c.Engine.DepthPolicy = "approximate"
	c.Engine.Grid.Min = 0.005
	c.Engine.Grid.Max = 0.05
	c.Engine.Grid.Step = 0.005
	c.Trading.InvestmentBase = "BTC"
	c.Trading.ProfitThreshold = 0.1
	c.Trading.AgeThresholdMs = 1000
	c.Trading.ScanIntervalMs = 100
	c.Trading.ReportSeconds = 30
	c.Trading.Discover = false
	c.Trading.Markets = []Market{
		{Symbol: "ETHBTC", Base: "ETH", Quote: "BTC", LotStep: 0.0001},
		{Symbol: "BNBBTC", Base: "BNB", Quote: "BTC", LotStep: 0.001},
		{Symbol: "BNBETH", Base: "BNB", Quote: "ETH", LotStep: 0.001},
		{Symbol: "LTCBTC", Base: "LTC", Quote: "BTC", LotStep: 0.001},
		{Symbol: "LTCETH", Base: "LTC", Quote: "ETH", LotStep: 0.001},
		{Symbol: "LTCBNB", Base: "LTC", Quote: "BNB", LotStep: 0.001},
	}
	c.Feed.Enabled = false
	c.Feed.RESTURL = "https://api.binance.com"
	c.Feed.WSURL = "wss://stream.binance.com:9443"
	c.Feed.Depth = 20
	c.Feed.StreamsPerConn = 200
	c.Feed.RequestsPerSecond = 10
	c.Feed.Burst = 20
	c.Feed.ReadTimeoutSeconds = 30
	c.Journal.Enabled = false
	c.Journal.Path = "btrader.db"
	c.Redis.Enabled = false
	c.Redis.Addr = "localhost:6379"
	c.Redis.Channel = "btrader:deals"
	c.Redis.Key = "btrader:latest"
	c.Telegram.Enabled = false
	c.Telegram.APIURL = "https://api.telegram.org"
	c.Telegram.TimeoutSeconds = 10
	c.Telegram.MessagesPerSecond = 1
	return c
}

// Load starts from the defaults, merges the YAML file named by BTRADER_CONFIG
// and applies BTRADER_* environment overrides.
func Load() (Config, error) {
	c := defaultConfig()
	if path := os.Getenv("BTRADER_CONFIG"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return c, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return c, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if v := os.Getenv("BTRADER_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("BTRADER_LOG_PRETTY"); v == "1" || v == "true" {
		c.Logging.Pretty = true
	}
	if v := os.Getenv("BTRADER_HTTP_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("BTRADER_PPROF"); v == "1" || v == "true" {
		c.Server.Pprof = true
	}
	if v := os.Getenv("BTRADER_ADMIN_ALLOW_CIDRS"); v != "" {
		c.Server.AdminAllowCIDRs = splitCSV(v)
	}
	if v := os.Getenv("BTRADER_FEE_PERCENT"); v != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return c, fmt.Errorf("BTRADER_FEE_PERCENT: %w", err)
		}
		if !(f >= 0 && f < 100) {
			return c, fmt.Errorf("BTRADER_FEE_PERCENT: %v outside [0,100)", f)
		}
		c.Engine.FeePercent = f
	}
	if v := os.Getenv("BTRADER_DEPTH_POLICY"); v != "" {
		c.Engine.DepthPolicy = v
	}
	if v := os.Getenv("BTRADER_INVESTMENT_BASE"); v != "" {
		c.Trading.InvestmentBase = v
	}
	if v := os.Getenv("BTRADER_PROFIT_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return c, fmt.Errorf("BTRADER_PROFIT_THRESHOLD: %w", err)
		}
		c.Trading.ProfitThreshold = f
	}
	if v := os.Getenv("BTRADER_AGE_THRESHOLD_MS"); v != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return c, fmt.Errorf("BTRADER_AGE_THRESHOLD_MS: %w", err)
		}
		if !(f >= 0) {
			return c, fmt.Errorf("BTRADER_AGE_THRESHOLD_MS: negative age %v", f)
		}
		c.Trading.AgeThresholdMs = f
	}
	if v := os.Getenv("BTRADER_DISCOVER"); v == "1" || v == "true" {
		c.Trading.Discover = true
	}
	if v := os.Getenv("BTRADER_FEED_ENABLED"); v == "1" || v == "true" {
		c.Feed.Enabled = true
	}
	if v := os.Getenv("BTRADER_JOURNAL_PATH"); v != "" {
		c.Journal.Enabled = true
		c.Journal.Path = v
	}
	if v := os.Getenv("BTRADER_REDIS_ADDR"); v != "" {
		c.Redis.Enabled = true
		c.Redis.Addr = v
	}
	// secrets only from env
	if v := os.Getenv("BTRADER_REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("BTRADER_TELEGRAM_TOKEN"); v != "" {
		c.Telegram.Token = v
	}
	if v := os.Getenv("BTRADER_TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return c, fmt.Errorf("BTRADER_TELEGRAM_CHAT_ID: %w", err)
		}
		c.Telegram.Enabled = true
		c.Telegram.ChatID = id
	}
	return c, nil
}

// MaxGridSize bounds the number of candidate quantities per evaluation.
const MaxGridSize = 10000

// Grid returns the quantity grid: the explicit quantities when configured,
// otherwise every multiple of grid.step from grid.min to grid.max inclusive.
func (c Config) Grid() ([]float64, error) {
	if n := len(c.Engine.Quantities); n > 0 {
		if n > MaxGridSize {
			return nil, fmt.Errorf("grid: %d quantities exceeds %d", n, MaxGridSize)
		}
		return append([]float64(nil), c.Engine.Quantities...), nil
	}
	g := c.Engine.Grid
	if !(g.Step > 0) || !(g.Max >= g.Min) || math.IsInf(g.Max, 0) || math.IsInf(g.Min, 0) {
		return nil, fmt.Errorf("grid: step %v over [%v, %v] is invalid", g.Step, g.Min, g.Max)
	}
	// rounded so that 0.05/0.005 does not truncate to 9
	lo := math.Round(g.Min / g.Step)
	hi := math.Round(g.Max / g.Step)
	if n := hi - lo + 1; !(n <= MaxGridSize) {
		return nil, fmt.Errorf("grid: step %v over [%v, %v] yields %.0f points, limit %d", g.Step, g.Min, g.Max, n, MaxGridSize)
	}
	out := make([]float64, 0, int(hi-lo)+1)
	for i := int(lo); i <= int(hi); i++ {
		if q := float64(i) * g.Step; q > 0 {
			out = append(out, q)
		}
	}
	return out, nil
}

func splitCSV(s string) []string {
	var out []string
	buf := []rune{}
	for _, r := range s {
		if r == ',' {
			if len(buf) > 0 {
				out = append(out, string(buf))
				buf = buf[:0]
			}
			continue
		}
		buf = append(buf, r)
	}
	if len(buf) > 0 {
		out = append(out, string(buf))
	}
	return out
}
