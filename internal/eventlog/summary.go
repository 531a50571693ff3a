package eventlog

import (
	"github.com/potooio/sentinel/internal/types"
)

// Summary aggregates a set of entries for end-of-run reporting.
type Summary struct {
	TotalEvents    int                     `json:"total_events"`
	BySeverity     map[types.Severity]int  `json:"by_severity"`
	ByType         map[types.EventName]int `json:"by_type"`
	CriticalEvents []Entry                 `json:"critical_events"`
}

// Summarize counts entries by severity and event name and collects the
// CRITICAL ones. Entries without a severity (e.g. Success Operation) count
// toward the total and the type breakdown only.
func Summarize(entries []Entry) Summary {
	s := newSummary()
	for _, e := range entries {
		s.add(e, 0)
	}
	return s
}

func newSummary() Summary {
	return Summary{
		BySeverity: map[types.Severity]int{
			types.SeverityCritical: 0,
			types.SeverityHigh:     0,
			types.SeverityMedium:   0,
			types.SeverityLow:      0,
		},
		ByType: make(map[types.EventName]int),
	}
}

// add folds one entry in. A positive maxCritical keeps only the latest
// CRITICAL entries.
func (s *Summary) add(e Entry, maxCritical int) {
	s.TotalEvents++
	s.ByType[e.EventData.EventName]++
	if sev := e.EventData.Severity; sev != "" {
		s.BySeverity[sev]++
	}
	if e.EventData.Severity != types.SeverityCritical {
		return
	}
	s.CriticalEvents = append(s.CriticalEvents, e)
	if over := len(s.CriticalEvents) - maxCritical; maxCritical > 0 && over > 0 {
		s.CriticalEvents = append(s.CriticalEvents[:0:0], s.CriticalEvents[over:]...)
	}
}

func (s Summary) clone() Summary {
	out := Summary{
		TotalEvents: s.TotalEvents,
		BySeverity:  make(map[types.Severity]int, len(s.BySeverity)),
		ByType:      make(map[types.EventName]int, len(s.ByType)),
	}
	for k, v := range s.BySeverity {
		out.BySeverity[k] = v
	}
	for k, v := range s.ByType {
		out.ByType[k] = v
	}
	if len(s.CriticalEvents) > 0 {
		out.CriticalEvents = append([]Entry(nil), s.CriticalEvents...)
	}
	return out
}
