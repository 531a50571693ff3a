// Package api serves the detector's state as JSON for dashboards and the
// sentinel status command.
package api

import (
	"time"

	"github.com/potooio/sentinel/internal/eventlog"
	"github.com/potooio/sentinel/internal/types"
)

// RecentEventsLimit is how many entries the dashboard snapshot carries.
const RecentEventsLimit = 10

// StationSource is the read side of the correlation store.
type StationSource interface {
	KnownStations() []string
	StationStatus(stationID string) (string, time.Time, bool)
	Recent(stationID string, rt types.RecordType, limit int) []types.Record
}

// EventSource is the read side of the event log.
type EventSource interface {
	Recent(k int) []eventlog.Entry
	Counts() map[types.EventName]int
	Len() int
}

// Snapshot is the wire format for GET /api/v1/dashboard.
type Snapshot struct {
	Timestamp    time.Time               `json:"timestamp"`
	Stations     map[string]StationView  `json:"stations"`
	Summary      SnapshotSummary         `json:"summary"`
	RecentEvents []eventlog.Entry        `json:"recent_events"`
	EventSummary map[types.EventName]int `json:"event_summary"`
}

// StationView is one station's row in the snapshot.
type StationView struct {
	Status           string     `json:"status"`
	LastActivity     *time.Time `json:"last_activity"`
	CustomerCount    int        `json:"customer_count"`
	AverageDwellTime float64    `json:"average_dwell_time"`
}

// SnapshotSummary aggregates the station rows.
type SnapshotSummary struct {
	TotalStations  int `json:"total_stations"`
	ActiveStations int `json:"active_stations"`
	TotalCustomers int `json:"total_customers"`
	TotalEvents    int `json:"total_events"`
}

// BuildSnapshot projects the store and event log at now. It holds no state;
// every call recomputes from the sources.
func BuildSnapshot(stations StationSource, events EventSource, now time.Time) Snapshot {
	snap := Snapshot{
		Timestamp:    now,
		Stations:     map[string]StationView{},
		RecentEvents: []eventlog.Entry{},
		EventSummary: map[types.EventName]int{},
	}

	if stations != nil {
		ids := stations.KnownStations()
		snap.Summary.TotalStations = len(ids)
		for _, id := range ids {
			view := stationView(stations, id)
			if view.Status == types.StatusActive {
				snap.Summary.ActiveStations++
			}
			snap.Summary.TotalCustomers += view.CustomerCount
			snap.Stations[id] = view
		}
	}

	if events != nil {
		snap.Summary.TotalEvents = events.Len()
		if recent := events.Recent(RecentEventsLimit); recent != nil {
			snap.RecentEvents = recent
		}
		snap.EventSummary = events.Counts()
	}
	return snap
}

func stationView(stations StationSource, id string) StationView {
	status, last, _ := stations.StationStatus(id)
	view := StationView{Status: status}
	if !last.IsZero() {
		view.LastActivity = &last
	}
	if recent := stations.Recent(id, types.RecordQueue, 1); len(recent) > 0 {
		if q, ok := recent[0].Queue(); ok {
			view.CustomerCount = q.CustomerCount
			view.AverageDwellTime = q.AverageDwellTime
		}
	}
	return view
}
