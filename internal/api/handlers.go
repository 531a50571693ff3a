package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/potooio/sentinel/internal/eventlog"
	"github.com/potooio/sentinel/internal/pipeline"
)

const (
	defaultEventsLimit = 50
	maxEventsLimit     = 1000

	// stationEventsScan bounds how far back the station view looks for the
	// station's own findings.
	stationEventsScan = 500
)

// EventsResponse is the wire format for GET /api/v1/events.
type EventsResponse struct {
	Total  int              `json:"total"`
	Events []eventlog.Entry `json:"events"`
}

// StationResponse is the wire format for GET /api/v1/stations/{id}.
type StationResponse struct {
	StationID    string           `json:"station_id"`
	Station      StationView      `json:"station"`
	RecentEvents []eventlog.Entry `json:"recent_events"`
}

// HealthResponse is the wire format for GET /healthz.
type HealthResponse struct {
	Status    string          `json:"status"` // healthy, starting
	RunID     string          `json:"run_id,omitempty"`
	Stats     *pipeline.Stats `json:"stats,omitempty"`
	UpSince   string          `json:"up_since"`
	Timestamp string          `json:"timestamp"`
}

// Handlers serves the read-only API over a store and an event log.
type Handlers struct {
	logger    *zap.Logger
	stations  StationSource
	events    EventSource
	stats     func() pipeline.Stats
	clock     func() time.Time
	startTime time.Time
}

// HandlersOptions configures Handlers.
type HandlersOptions struct {
	Stations StationSource
	Events   EventSource

	// Stats reports pipeline counters for /healthz. May be nil.
	Stats func() pipeline.Stats

	Logger *zap.Logger
	Clock  func() time.Time
}

// NewHandlers creates the API handlers.
func NewHandlers(opts HandlersOptions) *Handlers {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Handlers{
		logger:    opts.Logger.Named("api"),
		stations:  opts.Stations,
		events:    opts.Events,
		stats:     opts.Stats,
		clock:     opts.Clock,
		startTime: opts.Clock(),
	}
}

// Dashboard handles GET /api/v1/dashboard.
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	h.writeJSON(w, http.StatusOK, BuildSnapshot(h.stations, h.events, h.clock()))
}

// Events handles GET /api/v1/events?limit=N, newest last.
func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}

	limit := defaultEventsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxEventsLimit)
	}

	resp := EventsResponse{Events: []eventlog.Entry{}}
	if h.events != nil {
		resp.Total = h.events.Len()
		if recent := h.events.Recent(limit); recent != nil {
			resp.Events = recent
		}
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// Station handles GET /api/v1/stations/{id}.
func (h *Handlers) Station(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}

	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" || h.stations == nil {
		http.NotFound(w, r)
		return
	}
	if _, _, ok := h.stations.StationStatus(id); !ok {
		http.NotFound(w, r)
		return
	}

	resp := StationResponse{
		StationID:    id,
		Station:      stationView(h.stations, id),
		RecentEvents: []eventlog.Entry{},
	}
	if h.events != nil {
		for _, e := range h.events.Recent(stationEventsScan) {
			if e.EventData.StationID == id {
				resp.RecentEvents = append(resp.RecentEvents, e)
			}
		}
		if n := len(resp.RecentEvents); n > RecentEventsLimit {
			resp.RecentEvents = resp.RecentEvents[n-RecentEventsLimit:]
		}
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// Health handles GET /healthz.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}

	resp := HealthResponse{
		Status:    "healthy",
		UpSince:   h.startTime.UTC().Format(time.RFC3339),
		Timestamp: h.clock().UTC().Format(time.RFC3339),
	}
	if h.stations == nil || h.events == nil {
		resp.Status = "starting"
	}
	if h.stats != nil {
		stats := h.stats()
		resp.RunID = stats.RunID
		resp.Stats = &stats
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// Register mounts every handler on mux.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/dashboard", h.Dashboard)
	mux.HandleFunc("/api/v1/events", h.Events)
	mux.HandleFunc("/api/v1/stations/{id}", h.Station)
	mux.HandleFunc("/healthz", h.Health)
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func allowGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}
