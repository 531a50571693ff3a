package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/potooio/sentinel/internal/eventlog"
	"github.com/potooio/sentinel/internal/types"
)

// SchemaVersion is bumped on breaking changes to Notification.
const SchemaVersion = "1"

// Notification is the payload handed to every external sender.
type Notification struct {
	SchemaVersion string        `json:"schemaVersion"`
	RunID         string        `json:"runId"`
	EventID       string        `json:"eventId"`
	Timestamp     time.Time     `json:"timestamp"`
	Finding       types.Finding `json:"finding"`
}

// NewNotification wraps a logged entry for fan-out.
func NewNotification(runID string, e eventlog.Entry) Notification {
	return Notification{
		SchemaVersion: SchemaVersion,
		RunID:         runID,
		EventID:       e.EventID,
		Timestamp:     e.Timestamp,
		Finding:       e.EventData,
	}
}

// Sender is the interface for external notification channels (webhook, redis, archive).
// Each implementation handles its own delivery and filtering.
type Sender interface {
	// Name returns the sender's identifier (e.g., "webhook", "redis").
	Name() string

	// Send delivers a notification to the external channel.
	Send(ctx context.Context, n Notification) error

	// ShouldSend returns true if this sender should handle a finding at the given severity.
	ShouldSend(severity types.Severity) bool

	// Start begins any background workers. Non-blocking.
	Start(ctx context.Context)
}

// severityGate implements ShouldSend for senders with a minimum severity.
// An empty minimum passes everything, including findings without a severity.
type severityGate struct {
	min types.Severity
}

func (g severityGate) ShouldSend(severity types.Severity) bool {
	if g.min == "" {
		return true
	}
	return severity.Rank() >= g.min.Rank()
}

// ErrInvalidSeverity is returned by ParseSeverity for unknown levels.
var ErrInvalidSeverity = errors.New("unknown severity")

// ParseSeverity validates a configured minimum severity. Empty is allowed.
func ParseSeverity(s string) (types.Severity, error) {
	sev := types.Severity(strings.ToUpper(s))
	if s != "" && sev.Rank() == 0 {
		return "", fmt.Errorf("%w %q (want CRITICAL, HIGH, MEDIUM or LOW)", ErrInvalidSeverity, s)
	}
	return sev, nil
}
