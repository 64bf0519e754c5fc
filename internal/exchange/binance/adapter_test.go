package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"btrader/internal/config"
	"btrader/internal/exchange/common"
	"btrader/internal/orderbook"
)

const exchangeInfoBody = `{"symbols":[
{"symbol":"ETHBTC","status":"TRADING","baseAsset":"ETH","quoteAsset":"BTC","filters":[{"filterType":"PRICE_FILTER","tickSize":"0.000001"},{"filterType":"LOT_SIZE","minQty":"0.0001","stepSize":"0.00010000"}]},
{"symbol":"BNBBTC","status":"BREAK","baseAsset":"BNB","quoteAsset":"BTC","filters":[{"filterType":"LOT_SIZE","stepSize":"0.01"}]},
{"symbol":"BNBETH","status":"TRADING","baseAsset":"BNB","quoteAsset":"ETH","filters":[]}
]}`

func testAdapter(restURL, wsURL string) *Adapter {
	var cfg config.Config
	cfg.Feed.RESTURL = restURL
	cfg.Feed.WSURL = wsURL
	cfg.Feed.Depth = 5
	cfg.Feed.Burst = 10
	cfg.Feed.RequestsPerSecond = 100
	a := New(cfg, zerolog.Nop())
	a.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return a
}

func TestListMarkets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/exchangeInfo" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(exchangeInfoBody))
	}))
	defer srv.Close()

	markets, err := testAdapter(srv.URL, "").ListMarkets(context.Background())
	require.NoError(t, err)
	require.Len(t, markets, 1)
	require.Equal(t, "ETHBTC", markets[0].Symbol)
	require.Equal(t, "ETH", markets[0].Base)
	require.Equal(t, "BTC", markets[0].Quote)
	require.Equal(t, 0.0001, markets[0].LotStep)
}

func TestSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/api/v3/depth" || q.Get("symbol") != "ETHBTC" || q.Get("limit") != "5" {
			http.Error(w, "unexpected request", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"lastUpdateId":7,"bids":[["0.05","2.5"],["0.049","1"]],"asks":[["0.051","3"]]}`))
	}))
	defer srv.Close()

	u, err := testAdapter(srv.URL, "").Snapshot(context.Background(), "ETHBTC", 5)
	require.NoError(t, err)
	require.Equal(t, "ETHBTC", u.Symbol)
	require.Equal(t, float64(1700000000000), u.Timestamp)
	require.Equal(t, []orderbook.Level{{Price: 0.05, Qty: 2.5}, {Price: 0.049, Qty: 1}}, u.Bids)
	require.Equal(t, []orderbook.Level{{Price: 0.051, Qty: 3}}, u.Asks)
}

func TestSnapshotHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":-1121,"msg":"Invalid symbol."}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := testAdapter(srv.URL, "").Snapshot(context.Background(), "NOPE", 5)
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 400")
}

func TestParseLevels(t *testing.T) {
	levels, err := ParseLevels([][2]string{{"0.1", "10"}, {"0.09000000", "0.00000000"}})
	require.NoError(t, err)
	require.Equal(t, []orderbook.Level{{Price: 0.1, Qty: 10}, {Price: 0.09, Qty: 0}}, levels)

	_, err = ParseLevels([][2]string{{"abc", "1"}})
	require.Error(t, err)
}

func TestStreamDepth(t *testing.T) {
	require.Equal(t, 5, streamDepth(0))
	require.Equal(t, 10, streamDepth(7))
	require.Equal(t, 20, streamDepth(20))
	require.Equal(t, 20, streamDepth(100))
}

func TestStream(t *testing.T) {
	upgrader := websocket.Upgrader{}
	requested := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case requested <- r.URL.Query().Get("streams"):
		default:
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		frames := []string{
			`{"stream":"ethbtc@depth5@100ms","data":{"lastUpdateId":1,"bids":[["0.05","1"]],"asks":[["0.051","2"]]}}`,
			`not json`,
			`{"stream":"other@depth5@100ms","data":{"bids":[],"asks":[]}}`,
			`{"stream":"bnbeth@depth5@100ms","data":{"lastUpdateId":2,"bids":[["0.1","4"]],"asks":[["0.11","5"]]}}`,
		}
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		// hold the connection until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	a := testAdapter("", "ws"+strings.TrimPrefix(srv.URL, "http"))
	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan common.DepthUpdate, 4)
	done := make(chan error, 1)
	go func() { done <- a.Stream(ctx, []string{"ETHBTC", "BNBETH"}, out) }()

	require.Equal(t, "ethbtc@depth5@100ms/bnbeth@depth5@100ms", <-requested)
	first := <-out
	require.Equal(t, "ETHBTC", first.Symbol)
	require.Equal(t, []orderbook.Level{{Price: 0.051, Qty: 2}}, first.Asks)
	second := <-out
	require.Equal(t, "BNBETH", second.Symbol)
	require.Equal(t, float64(1700000000000), second.Timestamp)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not stop after cancel")
	}
}

func TestStreamNoSymbols(t *testing.T) {
	require.Error(t, testAdapter("", "ws://127.0.0.1:1").Stream(context.Background(), nil, make(chan common.DepthUpdate)))
}
