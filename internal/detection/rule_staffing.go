package detection

import (
	"time"

	"github.com/potooio/sentinel/internal/types"
)

const (
	staffingBusyRatio          = 0.6
	staffingBusyRatioHigh      = 0.8
	staffingSustainedRatio     = 0.5
	staffingSustainedRatioHigh = 0.7

	// sustainedWindow and sustainedMin: a station is sustained-busy when at
	// least sustainedMin of its last sustainedWindow samples meet the long
	// queue threshold.
	sustainedWindow = 4
	sustainedMin    = 3

	supportStaffMinStations = 2
)

type staffingNeedsRule struct{}

// NewStaffingNeedsRule returns a rule that recommends extra cashiers or
// support staff from fleet-wide queue load.
func NewStaffingNeedsRule() types.GlobalRule {
	return &staffingNeedsRule{}
}

func (r *staffingNeedsRule) Name() string { return "staffing-needs" }

func (r *staffingNeedsRule) Description() string {
	return "Recommends additional cashiers when many stations are busy, and support staff when waits are long"
}

func (r *staffingNeedsRule) Evaluate(eval types.EvalContext, at time.Time) ([]types.Finding, error) {
	stations := eval.Store.KnownStations()
	if len(stations) == 0 {
		return nil, nil
	}
	th := eval.Thresholds

	var busy, sustained, slow, totalCustomers int
	for _, id := range stations {
		samples := queueSamples(eval.Store.Recent(id, types.RecordQueue, sustainedWindow))
		if len(samples) == 0 {
			continue
		}
		latest := samples[len(samples)-1]
		totalCustomers += latest.CustomerCount
		if latest.CustomerCount >= th.BusyStationCustomers {
			busy++
		}
		if latest.AverageDwellTime >= th.LongWaitSeconds {
			slow++
		}
		over := 0
		for _, s := range samples {
			if s.CustomerCount >= th.LongQueueCustomers {
				over++
			}
		}
		if len(samples) >= sustainedWindow && over >= sustainedMin {
			sustained++
		}
	}

	total := float64(len(stations))
	busyRatio := float64(busy) / total
	sustainedRatio := float64(sustained) / total

	var findings []types.Finding
	if busyRatio >= staffingBusyRatio || sustainedRatio >= staffingSustainedRatio {
		sev := types.SeverityMedium
		if busyRatio >= staffingBusyRatioHigh || sustainedRatio >= staffingSustainedRatioHigh {
			sev = types.SeverityHigh
		}
		confidence := 0.75
		if sustainedRatio >= staffingSustainedRatio {
			confidence = 0.8
		}
		f := newFinding(types.EventStaffingNeeds, "", sev, confidence, at)
		f.Details["staff_type"] = "Cashier"
		f.Details["action"] = "ADD"
		f.Details["reason"] = "Sustained high customer traffic detected"
		f.Details["busy_stations"] = busy
		f.Details["sustained_busy_stations"] = sustained
		f.Details["total_stations"] = len(stations)
		f.Details["total_customers"] = totalCustomers
		f.Details["busy_ratio"] = round(busyRatio, 2)
		f.Details["sustained_ratio"] = round(sustainedRatio, 2)
		findings = append(findings, f)
	}

	if slow >= supportStaffMinStations {
		f := newFinding(types.EventStaffingNeeds, "", types.SeverityHigh, 0.8, at)
		f.Details["staff_type"] = "Support Staff"
		f.Details["action"] = "ADD"
		f.Details["reason"] = "Extended wait times at multiple stations"
		f.Details["affected_stations"] = slow
		findings = append(findings, f)
	}
	return findings, nil
}
