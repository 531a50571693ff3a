package detection

import (
	"time"

	"github.com/potooio/sentinel/internal/types"
)

// faultStatuses are station statuses reported as an unexpected crash.
var faultStatuses = map[string]struct{}{
	"System Crash": {},
	"Read Error":   {},
	"Error":        {},
	"Failed":       {},
}

// IsFaultStatus reports whether a station status signals a failure.
func IsFaultStatus(status string) bool {
	_, ok := faultStatuses[status]
	return ok
}

type systemCrashRule struct{}

// NewSystemCrashRule returns a rule that turns station fault statuses and
// prolonged silence into findings.
func NewSystemCrashRule() types.StationRule {
	return &systemCrashRule{}
}

func (r *systemCrashRule) Name() string { return "system-crash" }

func (r *systemCrashRule) Description() string {
	return "Flags stations reporting a fault status, or Active stations with no activity for too long"
}

func (r *systemCrashRule) Evaluate(eval types.EvalContext, stationID string, at time.Time) ([]types.Finding, error) {
	status, lastActivity, ok := eval.Store.StationStatus(stationID)
	if !ok {
		return nil, nil
	}

	if IsFaultStatus(status) {
		f := newFinding(types.EventSystemCrash, stationID, types.SeverityCritical, 1.0, at)
		f.Details["error_type"] = status
		f.Details["last_activity"] = formatOptional(lastActivity)
		return []types.Finding{f}, nil
	}

	if status != types.StatusActive || lastActivity.IsZero() {
		return nil, nil
	}
	inactive := at.Sub(lastActivity)
	if inactive <= eval.Thresholds.UnresponsiveAfter {
		return nil, nil
	}
	f := newFinding(types.EventStationUnresponsive, stationID, types.SeverityHigh, 0.75, at)
	f.Details["inactive_duration"] = inactive.Seconds()
	f.Details["last_activity"] = formatOptional(lastActivity)
	return []types.Finding{f}, nil
}
