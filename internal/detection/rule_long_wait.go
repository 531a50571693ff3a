package detection

import (
	"time"

	"github.com/potooio/sentinel/internal/types"
)

// Escalation points for wait-time findings, in seconds.
const (
	waitCriticalSeconds           = 300
	waitCriticalIncreasingSeconds = 240
	waitHighSeconds               = 180
	waitHighAverageSeconds        = 200
	waitHighSustainedSeconds      = 20
)

type longWaitRule struct{}

// NewLongWaitRule returns a rule over the dwell times of the station's most
// recent queue samples.
func NewLongWaitRule() types.StationRule {
	return &longWaitRule{}
}

func (r *longWaitRule) Name() string { return "long-wait" }

func (r *longWaitRule) Description() string {
	return "Flags long customer dwell times, escalating on level, window average and upward trend"
}

func (r *longWaitRule) Evaluate(eval types.EvalContext, stationID string, at time.Time) ([]types.Finding, error) {
	th := eval.Thresholds
	samples := queueSamples(eval.Store.Recent(stationID, types.RecordQueue, th.TrendSamples))
	if len(samples) == 0 {
		return nil, nil
	}
	latest := samples[len(samples)-1]
	dwell := latest.AverageDwellTime

	trend := trendStable
	duration := 0
	average := dwell
	if len(samples) >= minTrendSamples {
		waits := make([]float64, len(samples))
		sum := 0.0
		over := 0
		for i, s := range samples {
			waits[i] = s.AverageDwellTime
			sum += s.AverageDwellTime
			if s.AverageDwellTime >= th.LongWaitSeconds {
				over++
			}
		}
		average = sum / float64(len(waits))
		trend = trendOf(waits, trendIncreasing, trendDecreasing)
		duration = sustainedSeconds(over, th.SampleInterval)
	}

	if dwell < th.LongWaitSeconds && average < th.LongWaitSeconds {
		return nil, nil
	}

	var sev types.Severity
	switch {
	case dwell >= waitCriticalSeconds || (dwell >= waitCriticalIncreasingSeconds && trend == trendIncreasing):
		sev = types.SeverityCritical
	case dwell >= waitHighSeconds || average >= waitHighAverageSeconds || duration >= waitHighSustainedSeconds:
		sev = types.SeverityHigh
	default:
		sev = types.SeverityMedium
	}
	confidence := 0.85
	if trend == trendIncreasing {
		confidence = 0.9
	}

	f := newFinding(types.EventLongWait, stationID, sev, confidence, at)
	f.Details["wait_time_seconds"] = dwell
	f.Details["average_wait_time"] = round(average, 1)
	f.Details["customer_count"] = latest.CustomerCount
	f.Details["wait_trend"] = trend
	f.Details["sustained_duration_seconds"] = duration
	return []types.Finding{f}, nil
}
