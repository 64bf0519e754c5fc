package binance

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sugawarayuuta/sonnet"

	"btrader/internal/config"
	"btrader/internal/exchange/common"
	"btrader/internal/graph"
	"btrader/internal/infra/metrics"
	"btrader/internal/infra/network"
)

type Adapter struct {
	restURL        string
	wsURL          string
	http           *http.Client
	limiter        *network.TokenBucket
	logger         zerolog.Logger
	depth          int
	streamsPerConn int
	readTimeout    time.Duration
	now            func() time.Time
}

var _ common.ExchangeAdapter = (*Adapter)(nil)
var _ common.DepthStreamer = (*Adapter)(nil)

func New(cfg config.Config, logger zerolog.Logger) *Adapter {
	f := cfg.Feed
	perConn := f.StreamsPerConn
	if perConn <= 0 {
		perConn = 200
	}
	rps := f.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	readTimeout := time.Duration(f.ReadTimeoutSeconds) * time.Second
	if readTimeout <= 0 {
		readTimeout = 30 * time.Second
	}
	return &Adapter{
		restURL:        strings.TrimRight(f.RESTURL, "/"),
		wsURL:          strings.TrimRight(f.WSURL, "/"),
		http:           network.NewHTTPClient(5 * time.Second),
		limiter:        network.NewTokenBucket(f.Burst, rps),
		logger:         logger.With().Str("exchange", "binance").Logger(),
		depth:          f.Depth,
		streamsPerConn: perConn,
		readTimeout:    readTimeout,
		now:            time.Now,
	}
}

func (a *Adapter) Name() string { return "binance" }

type exchangeInfo struct {
	Symbols []struct {
		Symbol     string `json:"symbol"`
		Status     string `json:"status"`
		BaseAsset  string `json:"baseAsset"`
		QuoteAsset string `json:"quoteAsset"`
		Filters    []struct {
			FilterType string `json:"filterType"`
			StepSize   string `json:"stepSize"`
		} `json:"filters"`
	} `json:"symbols"`
}

// ListMarkets returns every TRADING symbol with its LOT_SIZE step.
func (a *Adapter) ListMarkets(ctx context.Context) ([]graph.Market, error) {
	var info exchangeInfo
	if err := a.getJSON(ctx, "exchangeInfo", "/api/v3/exchangeInfo", nil, &info); err != nil {
		return nil, err
	}
	out := make([]graph.Market, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		if s.Status != "TRADING" {
			continue
		}
		var step float64
		for _, f := range s.Filters {
			if f.FilterType != "LOT_SIZE" {
				continue
			}
			v, err := ParseDecimal(f.StepSize)
			if err != nil {
				a.logger.Debug().Err(err).Str("symbol", s.Symbol).Msg("bad LOT_SIZE step")
				break
			}
			step = v
		}
		if !(step > 0) {
			a.logger.Debug().Str("symbol", s.Symbol).Msg("market without lot step skipped")
			continue
		}
		out = append(out, graph.Market{Symbol: s.Symbol, Base: s.BaseAsset, Quote: s.QuoteAsset, LotStep: step})
	}
	return out, nil
}

type depthResponse struct {
	LastUpdateID int64       `json:"lastUpdateId"`
	Bids         [][2]string `json:"bids"`
	Asks         [][2]string `json:"asks"`
}

// Snapshot fetches the top depth levels of symbol over REST.
func (a *Adapter) Snapshot(ctx context.Context, symbol string, depth int) (common.DepthUpdate, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	if depth > 0 {
		q.Set("limit", strconv.Itoa(depth))
	}
	var d depthResponse
	if err := a.getJSON(ctx, "depth", "/api/v3/depth", q, &d); err != nil {
		return common.DepthUpdate{}, err
	}
	u, err := toUpdate(symbol, float64(a.now().UnixMilli()), d.Asks, d.Bids)
	if err != nil {
		return common.DepthUpdate{}, fmt.Errorf("depth %s: %w", symbol, err)
	}
	return u, nil
}

func (a *Adapter) getJSON(ctx context.Context, endpoint, path string, q url.Values, v any) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}
	u := a.restURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := a.http.Do(req)
	if err != nil {
		metrics.APIErrorsTotal.WithLabelValues(a.Name(), endpoint).Inc()
		return fmt.Errorf("%s: %w", endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		metrics.APIErrorsTotal.WithLabelValues(a.Name(), endpoint).Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: status %d: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := sonnet.NewDecoder(resp.Body).Decode(v); err != nil {
		metrics.APIErrorsTotal.WithLabelValues(a.Name(), endpoint).Inc()
		return fmt.Errorf("%s: decode: %w", endpoint, err)
	}
	return nil
}
