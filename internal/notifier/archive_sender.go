package notifier

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/potooio/sentinel/internal/archive"
)

// ArchiveSender writes every notification to the SQLite archive.
type ArchiveSender struct {
	severityGate

	store  *archive.Store
	logger *zap.Logger
}

// NewArchiveSender wraps an open archive. The sender owns the store and
// closes it in Close.
func NewArchiveSender(logger *zap.Logger, store *archive.Store, minSeverity string) (*ArchiveSender, error) {
	minSev, err := ParseSeverity(minSeverity)
	if err != nil {
		return nil, err
	}
	return &ArchiveSender{
		severityGate: severityGate{min: minSev},
		store:        store,
		logger:       logger.Named("archive-sender"),
	}, nil
}

// Name implements Sender.
func (as *ArchiveSender) Name() string { return "archive" }

// Start implements Sender.
func (as *ArchiveSender) Start(context.Context) {}

// Send implements Sender.
func (as *ArchiveSender) Send(ctx context.Context, n Notification) error {
	err := as.store.Save(ctx, archive.Record{
		RunID:     n.RunID,
		EventID:   n.EventID,
		Timestamp: n.Timestamp,
		Finding:   n.Finding,
	})
	if err != nil {
		senderResults.WithLabelValues(as.Name(), "error").Inc()
		return fmt.Errorf("archiving %s: %w", n.EventID, err)
	}
	senderResults.WithLabelValues(as.Name(), "success").Inc()
	return nil
}

// Close closes the underlying archive.
func (as *ArchiveSender) Close() error {
	return as.store.Close()
}
