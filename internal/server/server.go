package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/Bucknalla/go-gps-skyview/gps"
	"github.com/Bucknalla/go-gps-skyview/pkg/logger"
)

// HistorySource supplies persisted track samples
type HistorySource interface {
	RecentSamples(c gps.Constellation, id, limit int) ([]gps.TrackSample, error)
}

// Config holds the optional collaborators of a Server
type Config struct {
	Metrics http.Handler  // served at /metrics when set
	History HistorySource // falls back to the tracker when nil
}

// Server exposes the tracker over HTTP and a websocket feed
type Server struct {
	router  *mux.Router
	tracker *gps.Tracker
	history HistorySource
	hub     *Hub
	logger  *logger.Logger
}

// NewServer builds the router for tracker
func NewServer(tracker *gps.Tracker, config Config, log *logger.Logger) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		tracker: tracker,
		history: config.History,
		hub:     NewHub(log),
		logger:  log.Named("http"),
	}

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/snapshot", s.handleSnapshot).Methods(http.MethodGet)
	api.HandleFunc("/fix", s.handleFix).Methods(http.MethodGet)
	api.HandleFunc("/satellites/{constellation}", s.handleSatellites).Methods(http.MethodGet)
	api.HandleFunc("/satellites/{constellation}/{id:[0-9]+}/history", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/ws", s.handleWebSocket)

	if config.Metrics != nil {
		s.router.Handle("/metrics", config.Metrics).Methods(http.MethodGet)
	}

	s.router.Use(s.logRequests)
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the websocket hub
func (s *Server) Hub() *Hub {
	return s.hub
}

// BroadcastSnapshots pushes the tracker snapshot to websocket clients every
// interval until ctx is cancelled.
func (s *Server) BroadcastSnapshots(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.hub.ClientCount() == 0 {
				continue
			}
			if !s.hub.Broadcast(MessageTypeSnapshot, s.tracker.Snapshot()) {
				s.logger.Debug("Snapshot broadcast dropped")
			}
		}
	}
}

// ListenAndServe runs the hub and an HTTP server on addr until ctx is
// cancelled, then shuts both down.
func (s *Server) ListenAndServe(ctx context.Context, addr string, readTimeout, writeTimeout time.Duration) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	go s.hub.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", logger.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down HTTP server: %w", err)
		}
		return nil
	}
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.Snapshot())
}

func (s *Server) handleFix(w http.ResponseWriter, r *http.Request) {
	fix, ok := s.tracker.Fix()
	if !ok {
		writeError(w, http.StatusNotFound, "no fix")
		return
	}
	writeJSON(w, http.StatusOK, fix)
}

func (s *Server) handleSatellites(w http.ResponseWriter, r *http.Request) {
	c, err := constellationVar(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"constellation": c,
		"satellites":    s.tracker.Satellites(c),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	c, err := constellationVar(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid satellite id")
		return
	}

	limit := s.tracker.Capacity()
	if q := r.URL.Query().Get("limit"); q != "" {
		limit, err = strconv.Atoi(q)
		if err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
	}

	var samples []gps.TrackSample
	if s.history != nil {
		samples, err = s.history.RecentSamples(c, id, limit)
		if err != nil {
			s.logger.Error("Failed to load history", logger.Error(err), logger.Int("sat_id", id))
			writeError(w, http.StatusInternalServerError, "failed to load history")
			return
		}
	} else {
		samples = s.tracker.History(c, id)
		if len(samples) > limit {
			samples = samples[len(samples)-limit:]
		}
	}
	if samples == nil {
		samples = []gps.TrackSample{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"constellation": c,
		"id":            id,
		"samples":       samples,
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.hub.HandleConnection(w, r, &Message{Type: MessageTypeSnapshot, Data: s.tracker.Snapshot()})
}

// constellationVar parses the {constellation} path segment. Unknown is not
// a trackable constellation and is rejected like any other bad name.
func constellationVar(r *http.Request) (gps.Constellation, error) {
	name := mux.Vars(r)["constellation"]
	c, err := gps.ParseConstellation(name)
	if err != nil {
		return c, err
	}
	if c == gps.ConstellationUnknown {
		return c, fmt.Errorf("%w: %q", gps.ErrUnknownConstellation, name)
	}
	return c, nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("Handled request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Duration("duration", time.Since(start)))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
