package rest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/sugawarayuuta/sonnet"

	"btrader/internal/arbitrage"
	"btrader/internal/latency"
	"btrader/internal/orderbook"
)

const relName = "AB -> CB"

type fakeHistory struct{ deals []arbitrage.Deal }

func (f fakeHistory) Recent(ctx context.Context, relationship string, limit int) ([]arbitrage.Deal, error) {
	if limit < len(f.deals) {
		return f.deals[:limit], nil
	}
	return f.deals, nil
}

func testServer(t *testing.T, history History) (*Server, *arbitrage.Engine) {
	t.Helper()
	eng, err := arbitrage.New(arbitrage.Options{Grid: []float64{1}})
	require.NoError(t, err)
	require.NoError(t, eng.RegisterPair("AB", 0.001))
	require.NoError(t, eng.RegisterPair("CB", 0.001))
	require.NoError(t, eng.RegisterRelationship(relName, []arbitrage.Leg{{Symbol: "AB", Side: arbitrage.Buy}, {Symbol: "CB", Side: arbitrage.Sell}}))
	return New(eng, history, zerolog.Nop()), eng
}

func get(t *testing.T, s *Server, path string, v any) int {
	t.Helper()
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	if v != nil {
		require.NoError(t, sonnet.Unmarshal(rr.Body.Bytes(), v), rr.Body.String())
	}
	return rr.Code
}

func TestListRelationships(t *testing.T) {
	s, _ := testServer(t, nil)
	var out []arbitrage.RelationshipInfo
	require.Equal(t, http.StatusOK, get(t, s, "/relationships", &out))
	require.Len(t, out, 1)
	require.Equal(t, relName, out[0].Name)
	require.False(t, out[0].Initialized)
	require.Equal(t, 1.0, out[0].FeeMultiplier)
}

func TestGetRelationship(t *testing.T) {
	s, _ := testServer(t, nil)
	var info arbitrage.RelationshipInfo
	require.Equal(t, http.StatusOK, get(t, s, "/relationships/"+url.PathEscape(relName), &info))
	require.Equal(t, []arbitrage.Leg{{Symbol: "AB", Side: arbitrage.Buy}, {Symbol: "CB", Side: arbitrage.Sell}}, info.Legs)

	var e map[string]string
	require.Equal(t, http.StatusNotFound, get(t, s, "/relationships/nope", &e))
	require.Contains(t, e["error"], "nope")
}

func TestEvaluateDeal(t *testing.T) {
	s, eng := testServer(t, nil)
	path := "/deals/" + url.PathEscape(relName)

	var d arbitrage.Deal
	require.Equal(t, http.StatusOK, get(t, s, path, &d))
	require.False(t, d.Ready())
	require.Equal(t, arbitrage.NotReady, d.Profit)

	require.NoError(t, eng.IngestUpdate("AB", 10, []orderbook.Level{{Price: 0.5, Qty: 100}}, nil))
	require.NoError(t, eng.IngestUpdate("CB", 20, nil, []orderbook.Level{{Price: 1, Qty: 100}}))
	require.Equal(t, http.StatusOK, get(t, s, path, &d))
	require.True(t, d.Ready())
	require.InDelta(t, 1.0, d.Profit, 1e-12)
	require.Equal(t, 10.0, d.Timestamp)

	require.Equal(t, http.StatusNotFound, get(t, s, "/deals/nope", nil))
}

func TestDealHistory(t *testing.T) {
	s, _ := testServer(t, nil)
	require.Equal(t, http.StatusNotFound, get(t, s, "/deals/"+url.PathEscape(relName)+"/history", nil))

	h := fakeHistory{deals: []arbitrage.Deal{{Relationship: relName, Profit: 0.2}, {Relationship: relName, Profit: 0.1}}}
	s, _ = testServer(t, h)
	var deals []arbitrage.Deal
	require.Equal(t, http.StatusOK, get(t, s, "/deals/"+url.PathEscape(relName)+"/history?limit=1", &deals))
	require.Len(t, deals, 1)
	require.Equal(t, 0.2, deals[0].Profit)

	require.Equal(t, http.StatusBadRequest, get(t, s, "/deals/"+url.PathEscape(relName)+"/history?limit=x", nil))
	require.Equal(t, http.StatusNotFound, get(t, s, "/deals/nope/history", nil))
}

func TestBookAndLatency(t *testing.T) {
	s, eng := testServer(t, nil)
	require.Equal(t, http.StatusNotFound, get(t, s, "/books/AB", nil))

	require.NoError(t, eng.IngestUpdate("AB", 10, []orderbook.Level{{Price: 0.5, Qty: 100}}, []orderbook.Level{{Price: 0.4, Qty: 1}}))
	var b bookResponse
	require.Equal(t, http.StatusOK, get(t, s, "/books/AB", &b))
	require.Equal(t, []orderbook.Level{{Price: 0.4, Qty: 1}}, b.Bids)

	var empty map[string]string
	require.Equal(t, http.StatusNotFound, get(t, s, "/latency", &empty))
	require.Equal(t, "no latency samples", empty["error"])

	var st latency.Stats

	eng.RecordLatencySample(5)
	eng.RecordLatencySample(7)
	require.Equal(t, http.StatusOK, get(t, s, "/latency", &st))
	require.Equal(t, 2, st.Count)
	require.Equal(t, 6.0, st.Mean)
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := testServer(t, nil)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/relationships", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
