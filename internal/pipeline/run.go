package pipeline

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/potooio/sentinel/internal/eventlog"
	"github.com/potooio/sentinel/internal/normalizer"
)

// ReplayResult summarizes a batch run.
type ReplayResult struct {
	Records  int              `json:"records"`
	Rejected int              `json:"rejected"`
	Entries  int              `json:"entries"`
	Summary  eventlog.Summary `json:"summary"`
}

// RunReplay processes envelopes in order, running global rules on record
// time. Envelopes should already be sorted (stream.LoadReplay does this).
// A cancelled context stops the replay between records.
func (s *System) RunReplay(ctx context.Context, envs []normalizer.Envelope) (ReplayResult, error) {
	var res ReplayResult
	start := time.Now()
	for _, env := range envs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Records++
		entries, err := s.step(ctx, env, true)
		if err != nil {
			res.Rejected++
			continue
		}
		res.Entries += len(entries)
	}

	res.Summary = s.events.Summary()
	s.logSummary(res, time.Since(start))
	return res, nil
}

// RunLive consumes envelopes until the source closes or ctx ends, running
// global rules on a wall-clock ticker. Returns ctx.Err() on cancellation.
func (s *System) RunLive(ctx context.Context, src <-chan normalizer.Envelope) error {
	ticker := time.NewTicker(s.opts.GlobalInterval)
	defer ticker.Stop()

	s.logger.Info("Live processing started",
		zap.Duration("global_interval", s.opts.GlobalInterval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Live processing stopped", zap.Error(ctx.Err()))
			return ctx.Err()
		case <-ticker.C:
			s.RunGlobal(ctx, s.opts.Clock())
		case env, ok := <-src:
			if !ok {
				s.logger.Info("Envelope source closed")
				return nil
			}
			// Rejections are counted and logged inside step.
			_, _ = s.step(ctx, env, false)
		}
	}
}

// Close flushes the event log and closes external senders.
func (s *System) Close() error {
	var errs []error
	if s.dispatcher != nil {
		errs = append(errs, s.dispatcher.Close())
	}
	errs = append(errs, s.events.Close())
	return errors.Join(errs...)
}

func (s *System) logSummary(res ReplayResult, took time.Duration) {
	fields := []zap.Field{
		zap.Int("records", res.Records),
		zap.Int("rejected", res.Rejected),
		zap.Int("total_events", res.Summary.TotalEvents),
		zap.Int("critical", len(res.Summary.CriticalEvents)),
		zap.Duration("took", took),
	}
	if path := s.events.Path(); path != "" {
		fields = append(fields, zap.String("events_path", path))
	}
	s.logger.Info("Replay complete", fields...)
	for name, n := range res.Summary.ByType {
		s.logger.Info("Event summary", zap.String("event_name", string(name)), zap.Int("count", n))
	}
}
