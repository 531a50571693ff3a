package detection

import (
	"time"

	"github.com/potooio/sentinel/internal/types"
)

const (
	customersPerStation  = 5
	maxStationsToOpen    = 3
	minStationsOpen      = 2
	minIdleStationsClose = 2
)

type stationActionRule struct{}

// NewStationActionRule returns a rule that recommends opening or closing
// checkout stations for the current customer load.
func NewStationActionRule() types.GlobalRule {
	return &stationActionRule{}
}

func (r *stationActionRule) Name() string { return "station-action" }

func (r *stationActionRule) Description() string {
	return "Recommends opening stations under heavy load and closing idle ones, keeping at least two open"
}

func (r *stationActionRule) Evaluate(eval types.EvalContext, at time.Time) ([]types.Finding, error) {
	stations := eval.Store.KnownStations()
	if len(stations) == 0 {
		return nil, nil
	}

	var active, totalCustomers int
	var idle []string
	for _, id := range stations {
		count := 0
		if samples := queueSamples(eval.Store.Recent(id, types.RecordQueue, 1)); len(samples) > 0 {
			count = samples[0].CustomerCount
			totalCustomers += count
		}
		status, _, _ := eval.Store.StationStatus(id)
		if status != types.StatusActive {
			continue
		}
		active++
		if count == 0 {
			idle = append(idle, id)
		}
	}
	if active == 0 {
		return nil, nil
	}

	avg := float64(totalCustomers) / float64(active)
	optimal := (totalCustomers + customersPerStation - 1) / customersPerStation
	if optimal < 1 {
		optimal = 1
	}

	if avg > customersPerStation && optimal > active {
		open := optimal - active
		if open > maxStationsToOpen {
			open = maxStationsToOpen
		}
		f := newFinding(types.EventStationAction, "", types.SeverityHigh, 0.8, at)
		f.Details["action"] = "OPEN"
		f.Details["recommended_stations"] = open
		f.Details["current_active_stations"] = active
		f.Details["current_customers"] = totalCustomers
		f.Details["avg_customers_per_station"] = round(avg, 1)
		f.Details["reason"] = "High customer load per station"
		return []types.Finding{f}, nil
	}

	if len(idle) >= minIdleStationsClose && active > minStationsOpen {
		closing := len(idle) - 1
		if limit := active - minStationsOpen; closing > limit {
			closing = limit
		}
		if closing <= 0 {
			return nil, nil
		}
		f := newFinding(types.EventStationAction, "", types.SeverityLow, 0.7, at)
		f.Details["action"] = "CLOSE"
		f.Details["recommended_stations"] = closing
		f.Details["idle_stations"] = append([]string(nil), idle[:closing]...)
		f.Details["current_active_stations"] = active
		f.Details["current_customers"] = totalCustomers
		f.Details["reason"] = "Low customer traffic"
		return []types.Finding{f}, nil
	}
	return nil, nil
}
