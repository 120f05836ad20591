package catalog

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// Server exposes a Store over the card lookup HTTP contract:
//
//	GET /cards?setCode=SSP&cardNumber=002 -> 200 {"url": "..."}
type Server struct {
	store  Store
	logger *slog.Logger
}

// NewServer creates a server for store.
func NewServer(store Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{store: store, logger: logger.With("component", "catalog")}
}

// Router returns the HTTP routes. prefix is prepended to every route, for
// example "/api".
func (s *Server) Router(prefix string) *mux.Router {
	r := mux.NewRouter()
	sub := r
	if prefix != "" {
		sub = r.PathPrefix(prefix).Subrouter()
	}
	sub.HandleFunc("/health", s.health).Methods(http.MethodGet)
	sub.HandleFunc("/cards", s.lookup).Methods(http.MethodGet)
	sub.HandleFunc("/cards/{setCode}/{cardNumber}", s.card).Methods(http.MethodGet)
	r.Use(s.logRequests)
	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// lookup answers the scanner's query.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	setCode, cardNumber := q.Get("setCode"), q.Get("cardNumber")
	if setCode == "" || cardNumber == "" {
		http.Error(w, "setCode and cardNumber are required", http.StatusBadRequest)
		return
	}
	c, ok := s.find(w, r, setCode, cardNumber)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": c.URL})
}

// card returns the full catalog entry.
func (s *Server) card(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	c, ok := s.find(w, r, vars["setCode"], vars["cardNumber"])
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) find(w http.ResponseWriter, r *http.Request, setCode, cardNumber string) (Card, bool) {
	c, err := s.store.Find(r.Context(), setCode, cardNumber)
	if errors.Is(err, ErrNotFound) {
		http.NotFound(w, r)
		return Card{}, false
	}
	if err != nil {
		s.logger.Error("catalog lookup failed", "set_code", setCode, "card_number", cardNumber, "error", err)
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return Card{}, false
	}
	return c, true
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "query", r.URL.RawQuery,
			"status", rec.status, "duration_ms", time.Since(start).Milliseconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
