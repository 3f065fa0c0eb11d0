package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"pricewatch/internal/domain"
	"pricewatch/internal/poll"
	"pricewatch/internal/source"
	"pricewatch/internal/state"
	"pricewatch/internal/watchlist"
)

// Server serves the dashboard HTTP API.
type Server struct {
	sched *poll.Scheduler
	store *state.Store // nil for an ephemeral session
	log   *slog.Logger
}

// NewServer creates a new dashboard HTTP server.
func NewServer(sched *poll.Scheduler, store *state.Store, log *slog.Logger) *Server {
	return &Server{
		sched: sched,
		store: store,
		log:   log,
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("POST /api/watchlist", s.handleAddAsset)
	mux.HandleFunc("DELETE /api/watchlist/{index}", s.handleRemoveAsset)
	mux.HandleFunc("POST /api/alerts", s.handleSetAlert)
	mux.HandleFunc("DELETE /api/alerts/{index}", s.handleRemoveAlert)
	mux.HandleFunc("POST /api/view", s.handleSelectAsset)
	mux.HandleFunc("PUT /api/interval", s.handleSetInterval)
	mux.HandleFunc("PUT /api/range", s.handleSetRange)
	mux.HandleFunc("PUT /api/prefs/theme", s.handleSetTheme)
	mux.HandleFunc("GET /api/events", s.handleEvents)
}

// Handler returns an http.Handler with CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// statusForFetch maps a provider failure to an HTTP status for synchronous
// view actions.
func statusForFetch(err error) int {
	switch source.KindOf(err) {
	case source.KindMissingCredential:
		return http.StatusUnauthorized
	case source.KindDataUnavailable:
		return http.StatusServiceUnavailable
	case source.KindNetwork, source.KindMalformed:
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}

func (s *Server) pref(key string) string {
	if s.store == nil {
		return ""
	}
	v, err := s.store.Pref(key)
	if err != nil {
		s.log.Warn("reading pref", "key", key, "error", err)
		return ""
	}
	return v
}

func (s *Server) setPref(key, value string) {
	if s.store == nil {
		return
	}
	if err := s.store.SetPref(key, value); err != nil {
		s.log.Warn("writing pref", "key", key, "error", err)
	}
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	resp := StateResponse{
		Watchlist:       s.sched.Watchlist(),
		Alerts:          s.sched.Alerts(),
		LastPrices:      s.sched.LastPrices(),
		ActiveKey:       s.sched.ActiveKey(),
		Series:          s.sched.SeriesPoints(),
		IntervalSeconds: int(s.sched.Interval() / time.Second),
		RangeDays:       s.sched.RangeDays(),
		Theme:           s.pref(state.PrefTheme),
	}
	writeJSON(w, resp)
}

func (s *Server) handleAddAsset(w http.ResponseWriter, r *http.Request) {
	var req AddAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Kind != domain.KindCrypto && req.Kind != domain.KindStock {
		writeError(w, http.StatusBadRequest, "kind must be crypto or stock")
		return
	}

	ref, err := s.sched.AddAsset(req.Kind, req.Identifier)
	if errors.Is(err, watchlist.ErrDuplicateAsset) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, ref)
}

func (s *Server) handleRemoveAsset(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "index must be an integer")
		return
	}
	ref, err := s.sched.RemoveAsset(index)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, ref)
}

func (s *Server) handleSetAlert(w http.ResponseWriter, r *http.Request) {
	var req SetAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	rule := domain.AlertRule{
		WatchKey:     req.WatchKey,
		ThresholdPct: req.ThresholdPct,
		Direction:    req.Direction,
	}
	if err := s.sched.SetAlert(rule); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, rule)
}

func (s *Server) handleRemoveAlert(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "index must be an integer")
		return
	}
	rule, err := s.sched.RemoveAlert(index)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, rule)
}

func (s *Server) handleSelectAsset(w http.ResponseWriter, r *http.Request) {
	var req SelectAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	view, err := s.sched.SelectAsset(r.Context(), req.WatchKey)
	if err != nil {
		if source.KindOf(err) == "" {
			// Not a provider failure: the watch key is unknown.
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, statusForFetch(err), err.Error())
		return
	}
	writeJSON(w, ViewResponse{Ref: view.Ref, Snapshot: view.Snapshot, Points: view.Points})
}

func (s *Server) handleSetInterval(w http.ResponseWriter, r *http.Request) {
	var req IntervalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Seconds <= 0 {
		writeError(w, http.StatusBadRequest, "seconds must be > 0")
		return
	}

	applied := s.sched.SetInterval(time.Duration(req.Seconds) * time.Second)
	seconds := int(applied / time.Second)
	s.setPref(state.PrefIntervalSeconds, strconv.Itoa(seconds))
	writeJSON(w, IntervalResponse{Seconds: seconds})
}

func (s *Server) handleSetRange(w http.ResponseWriter, r *http.Request) {
	var req RangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	view, err := s.sched.SetRange(r.Context(), req.Days)
	if err != nil {
		if source.KindOf(err) == "" {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, statusForFetch(err), err.Error())
		return
	}
	s.setPref(state.PrefRangeDays, strconv.Itoa(req.Days))
	writeJSON(w, ViewResponse{Ref: view.Ref, Snapshot: view.Snapshot, Points: view.Points})
}

func (s *Server) handleSetTheme(w http.ResponseWriter, r *http.Request) {
	var req ThemeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Theme != "light" && req.Theme != "dark" {
		writeError(w, http.StatusBadRequest, "theme must be light or dark")
		return
	}
	s.setPref(state.PrefTheme, req.Theme)
	writeJSON(w, map[string]string{"theme": req.Theme})
}
