package insights

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Router returns the HTTP routes for the insights API.
func (s *Service) Router() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/coins/top", s.handleTopCoins).Methods(http.MethodGet)
	api.HandleFunc("/coins/trends", s.handleTrends).Methods(http.MethodGet)
	api.HandleFunc("/sentiment/latest", s.handleLatestSentiment).Methods(http.MethodGet)
	api.HandleFunc("/market/overview", s.handleOverview).Methods(http.MethodGet)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	return r
}

func (s *Service) handleTopCoins(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 10, 100)

	coins, err := s.TopCoinsByMarketCap(r.Context(), limit)
	if err != nil {
		s.serverError(w, "top coins query failed", err)
		return
	}
	writeJSON(w, map[string]any{"coins": coins, "count": len(coins)})
}

func (s *Service) handleTrends(w http.ResponseWriter, r *http.Request) {
	topN := parseLimit(r, 5, 25)

	points, err := s.PriceTrends(r.Context(), topN)
	if err != nil {
		s.serverError(w, "price trends query failed", err)
		return
	}
	writeJSON(w, map[string]any{"points": points, "count": len(points)})
}

func (s *Service) handleLatestSentiment(w http.ResponseWriter, r *http.Request) {
	reading, err := s.LatestSentiment(r.Context())
	if err != nil {
		s.serverError(w, "sentiment query failed", err)
		return
	}
	if reading == nil {
		http.Error(w, "no sentiment data available", http.StatusNotFound)
		return
	}
	writeJSON(w, reading)
}

func (s *Service) handleOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := s.Overview(r.Context())
	if err != nil {
		s.serverError(w, "overview query failed", err)
		return
	}
	if overview == nil {
		http.Error(w, "no market data available", http.StatusNotFound)
		return
	}
	writeJSON(w, overview)
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PingContext(r.Context()); err != nil {
		http.Error(w, "warehouse unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, map[string]string{"status": "healthy"})
}

func (s *Service) serverError(w http.ResponseWriter, msg string, err error) {
	s.logger.Error(msg, zap.Error(err))
	http.Error(w, msg, http.StatusInternalServerError)
}

// parseLimit reads the limit query parameter, clamped to [1, max].
func parseLimit(r *http.Request, def, max int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
