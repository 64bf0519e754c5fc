package rest

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/sugawarayuuta/sonnet"

	"btrader/internal/arbitrage"
	"btrader/internal/latency"
	"btrader/internal/orderbook"
)

// Engine is the read side of *arbitrage.Engine served over HTTP.
type Engine interface {
	Relationships() []string
	Relationship(name string) (arbitrage.RelationshipInfo, bool)
	Evaluate(name string) (arbitrage.Deal, error)
	Snapshot(symbol string) (orderbook.L2, float64, bool)
	LatencyStatistics() (latency.Stats, bool)
}

// History is implemented by deal journals.
type History interface {
	Recent(ctx context.Context, relationship string, limit int) ([]arbitrage.Deal, error)
}

type Server struct {
	mux     *http.ServeMux
	eng     Engine
	history History
	logger  zerolog.Logger
}

// New registers the API routes. history may be nil when no journal is kept.
func New(eng Engine, history History, logger zerolog.Logger) *Server {
	s := &Server{mux: http.NewServeMux(), eng: eng, history: history, logger: logger}
	s.mux.HandleFunc("GET /relationships", s.listRelationships)
	s.mux.HandleFunc("GET /relationships/{name}", s.getRelationship)
	s.mux.HandleFunc("GET /deals/{name}", s.evaluate)
	s.mux.HandleFunc("GET /deals/{name}/history", s.dealHistory)
	s.mux.HandleFunc("GET /books/{symbol}", s.getBook)
	s.mux.HandleFunc("GET /latency", s.latencyStats)
	return s
}

func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) listRelationships(w http.ResponseWriter, r *http.Request) {
	names := s.eng.Relationships()
	out := make([]arbitrage.RelationshipInfo, 0, len(names))
	for _, n := range names {
		if info, ok := s.eng.Relationship(n); ok {
			out = append(out, info)
		}
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) getRelationship(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	info, ok := s.eng.Relationship(name)
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown relationship "+name)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

func (s *Server) evaluate(w http.ResponseWriter, r *http.Request) {
	d, err := s.eng.Evaluate(r.PathValue("name"))
	if errors.Is(err, arbitrage.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, d)
}

func (s *Server) dealHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, http.StatusNotFound, "deal journal disabled")
		return
	}
	name := r.PathValue("name")
	if _, ok := s.eng.Relationship(name); !ok {
		s.writeError(w, http.StatusNotFound, "unknown relationship "+name)
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	deals, err := s.history.Recent(r.Context(), name, limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if deals == nil {
		deals = []arbitrage.Deal{}
	}
	s.writeJSON(w, http.StatusOK, deals)
}

type bookResponse struct {
	Symbol    string            `json:"symbol"`
	Timestamp float64           `json:"timestamp"`
	Asks      []orderbook.Level `json:"asks"`
	Bids      []orderbook.Level `json:"bids"`
}

func (s *Server) getBook(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	book, ts, ok := s.eng.Snapshot(symbol)
	if !ok {
		s.writeError(w, http.StatusNotFound, "no book for "+symbol)
		return
	}
	s.writeJSON(w, http.StatusOK, bookResponse{Symbol: symbol, Timestamp: ts, Asks: book.Asks, Bids: book.Bids})
}

func (s *Server) latencyStats(w http.ResponseWriter, r *http.Request) {
	st, ok := s.eng.LatencyStatistics()
	if !ok {
		s.writeError(w, http.StatusNotFound, "no latency samples")
		return
	}
	s.writeJSON(w, http.StatusOK, st)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := sonnet.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug().Err(err).Msg("write response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
