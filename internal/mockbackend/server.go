// Package mockbackend serves the optimization backend's HTTP API from
// synthetic, deterministic market data. It is meant for local
// development and demos of the client, not for real allocations.
package mockbackend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// tickers starting with this prefix are reported as unknown
const unknownPrefix = "ZZ"

var tickerPattern = regexp.MustCompile(`^[A-Z0-9.\-]{1,12}$`)

// Config holds server configuration
type Config struct {
	Addr string
	Log  zerolog.Logger
	// Latency delays every API reply, to exercise slow-backend paths
	Latency time.Duration
}

// Server is the mock backend HTTP server
type Server struct {
	router  *chi.Mux
	server  *http.Server
	log     zerolog.Logger
	latency time.Duration
}

// New creates a server; call Start to listen or use Handler directly
func New(cfg Config) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		log:     cfg.Log.With().Str("component", "mockbackend").Logger(),
		latency: cfg.Latency,
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(s.loggingMiddleware)

	// the original web client calls the backend cross-origin
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/info", s.handleInfo)
		r.Post("/minimum", s.handleMinimum)
		r.Post("/optimize", s.handleOptimize)
	})
}

// Handler exposes the router, for httptest
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens until Shutdown
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting mock backend")
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down mock backend")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

// wait applies the configured latency. It reports false when the client
// went away first.
func (s *Server) wait(r *http.Request) bool {
	if s.latency <= 0 {
		return true
	}
	t := time.NewTimer(s.latency)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-r.Context().Done():
		return false
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type infoRequest struct {
	Ticker string `json:"ticker"`
}

type infoResponse struct {
	ShortName          string  `json:"shortName"`
	LongName           string  `json:"longName"`
	RegularMarketPrice float64 `json:"regularMarketPrice"`
	Sector             string  `json:"sector"`
	Industry           string  `json:"industry"`
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	var req infoRequest
	if !s.decode(w, r, &req) {
		return
	}
	ticker, ok := s.checkTicker(w, req.Ticker)
	if !ok || !s.wait(r) {
		return
	}

	a := lookup(ticker)
	s.writeJSON(w, http.StatusOK, infoResponse{
		ShortName:          a.Name,
		LongName:           a.Name + " Inc.",
		RegularMarketPrice: a.Price,
		Sector:             a.Sector,
		Industry:           a.Industry,
	})
}

type basketRequest struct {
	Model     string   `json:"model"`
	Tickers   []string `json:"tickers"`
	Date      string   `json:"date"`
	MaxWeight float64  `json:"max_weight"`
	MaxRisk   float64  `json:"max_risk"`
}

func (s *Server) handleMinimum(w http.ResponseWriter, r *http.Request) {
	var req basketRequest
	if !s.decode(w, r, &req) {
		return
	}
	tickers, ok := s.checkBasket(w, req.Tickers)
	if !ok || !s.wait(r) {
		return
	}

	minVol, err := minimumVolatility(lookupAll(tickers), req.MaxWeight)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]float64{"min_vol": minVol})
}

type optimizeResponse struct {
	Tickers        []string  `json:"tickers"`
	Weights        []float64 `json:"weights"`
	ExpectedReturn float64   `json:"expected_return"`
	Volatility     float64   `json:"volatility"`
	SharpeRatio    float64   `json:"sharpe_ratio"`
	MinVol         float64   `json:"min_vol"`
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req basketRequest
	if !s.decode(w, r, &req) {
		return
	}
	tickers, ok := s.checkBasket(w, req.Tickers)
	if !ok || !s.wait(r) {
		return
	}

	model := strings.ToLower(req.Model)
	if model == "" {
		model = "capm"
	}
	if model != "capm" && model != "historical" {
		s.writeError(w, http.StatusBadRequest, "unknown model "+req.Model)
		return
	}

	opt, err := optimize(model, lookupAll(tickers), req.MaxWeight, req.MaxRisk)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if opt.Infeasible {
		// same shape the production backend uses for an unreachable risk cap
		s.writeJSON(w, http.StatusOK, map[string]float64{"min_vol": opt.MinVol})
		return
	}

	s.writeJSON(w, http.StatusOK, optimizeResponse{
		Tickers:        tickers,
		Weights:        opt.Weights,
		ExpectedReturn: opt.ExpectedReturn,
		Volatility:     opt.Volatility,
		SharpeRatio:    opt.SharpeRatio,
		MinVol:         opt.MinVol,
	})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (s *Server) checkTicker(w http.ResponseWriter, raw string) (string, bool) {
	ticker := strings.ToUpper(strings.TrimSpace(raw))
	if !tickerPattern.MatchString(ticker) || strings.HasPrefix(ticker, unknownPrefix) {
		s.writeError(w, http.StatusNotFound, "unknown ticker "+raw)
		return "", false
	}
	return ticker, true
}

func (s *Server) checkBasket(w http.ResponseWriter, raw []string) ([]string, bool) {
	if len(raw) == 0 {
		s.writeError(w, http.StatusBadRequest, "tickers are required")
		return nil, false
	}
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		ticker, ok := s.checkTicker(w, t)
		if !ok {
			return nil, false
		}
		out = append(out, ticker)
	}
	return out, true
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
