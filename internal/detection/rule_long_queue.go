package detection

import (
	"time"

	"github.com/potooio/sentinel/internal/types"
)

// Escalation points for queue findings.
const (
	queueCriticalCustomers = 7
	queueHighCustomers     = 5
	queueFireSeconds       = 15
	queueHighSeconds       = 25
)

type longQueueRule struct{}

// NewLongQueueRule returns a rule over the station's most recent queue samples.
func NewLongQueueRule() types.StationRule {
	return &longQueueRule{}
}

func (r *longQueueRule) Name() string { return "long-queue" }

func (r *longQueueRule) Description() string {
	return "Flags long or persistently long checkout queues, escalating on size and growth"
}

func (r *longQueueRule) Evaluate(eval types.EvalContext, stationID string, at time.Time) ([]types.Finding, error) {
	th := eval.Thresholds
	samples := queueSamples(eval.Store.Recent(stationID, types.RecordQueue, th.TrendSamples))
	if len(samples) == 0 {
		return nil, nil
	}
	latest := samples[len(samples)-1]

	trend := trendStable
	duration := 0
	if len(samples) >= minTrendSamples {
		counts := make([]float64, len(samples))
		over := 0
		for i, s := range samples {
			counts[i] = float64(s.CustomerCount)
			if s.CustomerCount >= th.LongQueueCustomers {
				over++
			}
		}
		trend = trendOf(counts, trendGrowing, trendShrinking)
		duration = sustainedSeconds(over, th.SampleInterval)
	}

	count := latest.CustomerCount
	if count < th.LongQueueCustomers && duration < queueFireSeconds {
		return nil, nil
	}

	var sev types.Severity
	switch {
	case count >= queueCriticalCustomers || (count >= queueHighCustomers && trend == trendGrowing):
		sev = types.SeverityCritical
	case count >= queueHighCustomers || duration >= queueHighSeconds:
		sev = types.SeverityHigh
	default:
		sev = types.SeverityMedium
	}
	confidence := 0.85
	if trend == trendGrowing {
		confidence = 0.9
	}

	f := newFinding(types.EventLongQueue, stationID, sev, confidence, at)
	f.Details["num_of_customers"] = count
	f.Details["average_dwell_time"] = latest.AverageDwellTime
	f.Details["queue_trend"] = trend
	f.Details["duration_seconds"] = duration
	return []types.Finding{f}, nil
}
