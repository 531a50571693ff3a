package types

import (
	"encoding/json"
	"time"
)

// Severity indicates how urgently a finding needs attention.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL" // Fraud in progress, station down
	SeverityHigh     Severity = "HIGH"     // Probable theft, long queues
	SeverityMedium   Severity = "MEDIUM"   // Worth a look
	SeverityLow      Severity = "LOW"      // Housekeeping recommendations
)

// Rank returns a numeric rank for severity comparison. Unknown severities rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// EventName is the kind of a finding as written to the event log.
type EventName string

const (
	EventScannerAvoidance    EventName = "Scanner Avoidance"
	EventBarcodeSwitching    EventName = "Barcode Switching"
	EventWeightDiscrepancy   EventName = "Weight Discrepancies"
	EventSystemCrash         EventName = "Unexpected Systems Crash"
	EventStationUnresponsive EventName = "Station Unresponsive"
	EventLongQueue           EventName = "Long Queue Length"
	EventLongWait            EventName = "Long Wait Time"
	EventInventory           EventName = "Inventory Discrepancy"
	EventStaffingNeeds       EventName = "Staffing Needs"
	EventStationAction       EventName = "Checkout Station Action"
	EventSuccessOperation    EventName = "Success Operation"
)

// Finding is one anomaly or recommendation produced by a rule.
type Finding struct {
	EventName  EventName
	StationID  string // empty for store-wide findings
	Severity   Severity
	Confidence float64
	Timestamp  time.Time

	// Details holds rule-specific fields. Keys are the stable field names
	// written to the event log (e.g. "product_sku", "price_difference").
	Details map[string]interface{}
}

// Detail returns a rule-specific field, or nil.
func (f Finding) Detail(key string) interface{} {
	if f.Details == nil {
		return nil
	}
	return f.Details[key]
}

// MarshalJSON flattens Details next to the common fields.
func (f Finding) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(f.Details)+5)
	for k, v := range f.Details {
		out[k] = v
	}
	out["event_name"] = f.EventName
	if f.StationID != "" {
		out["station_id"] = f.StationID
	}
	if f.Severity != "" {
		out["severity"] = f.Severity
	}
	if f.Confidence != 0 {
		out["confidence"] = f.Confidence
	}
	if !f.Timestamp.IsZero() {
		out["timestamp"] = f.Timestamp.Format(time.RFC3339Nano)
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON. Unknown fields land in Details.
func (f *Finding) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*f = Finding{}
	if v, ok := raw["event_name"].(string); ok {
		f.EventName = EventName(v)
	}
	if v, ok := raw["station_id"].(string); ok {
		f.StationID = v
	}
	if v, ok := raw["severity"].(string); ok {
		f.Severity = Severity(v)
	}
	if v, ok := raw["confidence"].(float64); ok {
		f.Confidence = v
	}
	if v, ok := raw["timestamp"].(string); ok {
		ts, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return err
		}
		f.Timestamp = ts
	}
	for _, k := range []string{"event_name", "station_id", "severity", "confidence", "timestamp"} {
		delete(raw, k)
	}
	if len(raw) > 0 {
		f.Details = raw
	}
	return nil
}
