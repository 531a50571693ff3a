package detection

import (
	"math"
	"time"

	"github.com/potooio/sentinel/internal/types"
	"github.com/potooio/sentinel/internal/util"
)

// Trend labels written into queue and wait findings.
const (
	trendStable     = "stable"
	trendGrowing    = "growing"
	trendShrinking  = "shrinking"
	trendIncreasing = "increasing"
	trendDecreasing = "decreasing"
)

// minTrendSamples is the smallest window a trend is computed over.
const minTrendSamples = 3

// trendOf compares the last value against the first and the second-to-last.
// It returns up when the last is above both, down when below both, and
// stable otherwise or when there are too few values.
func trendOf(values []float64, up, down string) string {
	n := len(values)
	if n < minTrendSamples {
		return trendStable
	}
	last := values[n-1]
	switch {
	case last > values[0] && last > values[n-2]:
		return up
	case last < values[0] && last < values[n-2]:
		return down
	default:
		return trendStable
	}
}

// sustainedSeconds converts a count of samples to seconds at the sampling cadence.
func sustainedSeconds(samples int, interval time.Duration) int {
	return samples * int(interval/time.Second)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// queueSamples extracts the typed samples from queue records, skipping any
// record of another variant.
func queueSamples(records []types.Record) []types.QueueSample {
	out := make([]types.QueueSample, 0, len(records))
	for _, rec := range records {
		if q, ok := rec.Queue(); ok {
			out = append(out, q)
		}
	}
	return out
}

// firstCustomerID returns the first non-empty customer id among POS records.
func firstCustomerID(records []types.Record) string {
	for _, rec := range records {
		if pos, ok := rec.POS(); ok && pos.CustomerID != "" {
			return pos.CustomerID
		}
	}
	return ""
}

func newFinding(name types.EventName, stationID string, sev types.Severity, confidence float64, at time.Time) types.Finding {
	return types.Finding{
		EventName:  name,
		StationID:  stationID,
		Severity:   sev,
		Confidence: confidence,
		Timestamp:  at,
		Details:    make(map[string]interface{}),
	}
}

func formatOptional(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return util.FormatTimestamp(t)
}
