package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pairwatch/internal/provider"
	"pairwatch/internal/render"
	"pairwatch/internal/tracker"
)

// Defaults fill in fields omitted from create requests.
type Defaults struct {
	Units          decimal.Decimal
	MarkupPercent  decimal.Decimal
	BuyInThreshold decimal.Decimal
}

// Options parameterise the HTTP control surface.
type Options struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	TrackerInterval time.Duration
	Defaults        Defaults
}

// Server exposes tracker control and read endpoints plus a live stream.
type Server struct {
	opts        Options
	registry    *tracker.Registry
	snapshots   *render.Snapshots
	broadcaster *render.Broadcaster
	catalog     provider.PairCatalog
	logger      zerolog.Logger
	httpServer  *http.Server
	started     time.Time
}

// NewServer wires the route table.
func NewServer(opts Options, registry *tracker.Registry, snapshots *render.Snapshots, broadcaster *render.Broadcaster, catalog provider.PairCatalog, logger zerolog.Logger) *Server {
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}
	if opts.TrackerInterval <= 0 {
		opts.TrackerInterval = time.Second
	}

	s := &Server{
		opts:        opts,
		registry:    registry,
		snapshots:   snapshots,
		broadcaster: broadcaster,
		catalog:     catalog,
		logger:      logger.With().Str("component", "httpapi").Logger(),
		started:     time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/pairs", s.handlePairs)
	mux.HandleFunc("GET /api/trackers", s.handleListTrackers)
	mux.HandleFunc("POST /api/trackers", s.handleCreateTracker)
	mux.HandleFunc("GET /api/trackers/{pair}", s.handleGetTracker)
	mux.HandleFunc("DELETE /api/trackers/{pair}", s.handleDeleteTracker)
	mux.HandleFunc("GET /api/trackers/{pair}/chart.png", s.handleChart)
	mux.HandleFunc("GET /api/stream", s.handleStream)

	s.httpServer = &http.Server{
		Addr:         opts.Addr,
		Handler:      mux,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler exposes the route table for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

type healthResponse struct {
	Status        string `json:"status"`
	Trackers      int    `json:"trackers"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:        "ok",
		Trackers:      s.registry.Len(),
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
	})
}

type pairsResponse struct {
	Pairs []provider.Pair `json:"pairs"`
	Count int             `json:"count"`
}

func (s *Server) handlePairs(w http.ResponseWriter, r *http.Request) {
	pairs, err := s.catalog.FetchUSDPairs(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("pair catalog fetch failed")
		writeError(w, http.StatusBadGateway, "pair catalog unavailable")
		return
	}
	writeJSON(w, http.StatusOK, pairsResponse{Pairs: pairs, Count: len(pairs)})
}

func (s *Server) handleListTrackers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshots.List())
}

type createRequest struct {
	Pair           string      `json:"pair"`
	Units          json.Number `json:"units"`
	MarkupPercent  json.Number `json:"markup_percent"`
	BuyInThreshold json.Number `json:"buy_in_threshold"`
}

func (s *Server) handleCreateTracker(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	units, err := decimalOrDefault(req.Units, s.opts.Defaults.Units)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid units: "+err.Error())
		return
	}
	markupPercent, err := decimalOrDefault(req.MarkupPercent, s.opts.Defaults.MarkupPercent)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid markup_percent: "+err.Error())
		return
	}
	buyIn, err := decimalOrDefault(req.BuyInThreshold, s.opts.Defaults.BuyInThreshold)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid buy_in_threshold: "+err.Error())
		return
	}

	cfg := tracker.ConfigFromPercent(req.Pair, units, markupPercent, buyIn)

	created, err := s.registry.CreateOrReconfigure(r.Context(), cfg)
	if err != nil {
		switch {
		case errors.Is(err, tracker.ErrInvalidConfig):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, provider.ErrPairNotFound):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.logger.Error().Err(err).Str("pair", cfg.Pair).Msg("tracker creation failed")
			writeError(w, http.StatusBadGateway, "initial price fetch failed: "+err.Error())
		}
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}

	snap, ok := s.snapshots.Get(cfg.Pair)
	if !ok {
		// The tracker renders synchronously during init, so this only
		// happens when a custom renderer set skips the snapshot store.
		writeJSON(w, status, map[string]string{"pair": cfg.Pair})
		return
	}
	writeJSON(w, status, snap)
}

func (s *Server) handleGetTracker(w http.ResponseWriter, r *http.Request) {
	pair := r.PathValue("pair")
	snap, ok := s.snapshots.Get(pair)
	if !ok {
		writeError(w, http.StatusNotFound, "pair not tracked: "+pair)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleDeleteTracker(w http.ResponseWriter, r *http.Request) {
	pair := r.PathValue("pair")
	if err := s.registry.Remove(pair); err != nil {
		if errors.Is(err, tracker.ErrNotTracked) {
			writeError(w, http.StatusNotFound, "pair not tracked: "+pair)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.snapshots.Drop(pair)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	pair := r.PathValue("pair")
	tr, ok := s.registry.Get(pair)
	if !ok {
		writeError(w, http.StatusNotFound, "pair not tracked: "+pair)
		return
	}

	title := tr.Ready().DisplayName
	if title == "" {
		title = pair
	}

	var buf bytes.Buffer
	err := render.WritePriceChartPNG(&buf, title, tr.History(), s.opts.TrackerInterval, time.Now())
	if err != nil {
		if errors.Is(err, render.ErrNotEnoughSamples) {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusServiceUnavailable, "not enough samples yet")
			return
		}
		s.logger.Error().Err(err).Str("pair", pair).Msg("chart rendering failed")
		writeError(w, http.StatusInternalServerError, "chart rendering failed")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

const streamWriteTimeout = 5 * time.Second

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	// The server write timeout would sever the long-lived stream.
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Debug().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.CloseNow()

	id, events, cancel := s.broadcaster.Subscribe()
	defer cancel()

	// CloseRead cancels ctx once the client goes away.
	ctx := conn.CloseRead(r.Context())

	s.logger.Debug().Str("subscriber", id.String()).Msg("stream client connected")

	// Seed the client with the current state of every tracker.
	for _, snap := range s.snapshots.List() {
		ready := snap.Ready
		if err := s.writeEvent(ctx, conn, render.Event{Kind: render.EventReady, Ready: &ready}); err != nil {
			return
		}
		if snap.Update != nil {
			if err := s.writeEvent(ctx, conn, render.Event{Kind: render.EventUpdate, Update: snap.Update}); err != nil {
				return
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := s.writeEvent(ctx, conn, ev); err != nil {
				s.logger.Debug().Err(err).Str("subscriber", id.String()).Msg("stream write failed")
				return
			}
		}
	}
}

func (s *Server) writeEvent(ctx context.Context, conn *websocket.Conn, ev render.Event) error {
	writeCtx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return wsjson.Write(writeCtx, conn, ev)
}

func decimalOrDefault(n json.Number, fallback decimal.Decimal) (decimal.Decimal, error) {
	if n == "" {
		return fallback, nil
	}
	return decimal.NewFromString(n.String())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
