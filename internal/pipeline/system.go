// Package pipeline wires normalization, the correlation store, the detection
// engine, the event log and external fan-out into one processing loop.
//
// Each record is one serialized step: normalize, ingest, run the station
// rules for the record's station and log the findings. Global rules run on
// a timer that takes the same lock, so they always see a store that is
// between steps. Logged findings are dispatched after the lock is released.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/potooio/sentinel/internal/correlator"
	"github.com/potooio/sentinel/internal/detection"
	"github.com/potooio/sentinel/internal/eventlog"
	"github.com/potooio/sentinel/internal/normalizer"
	"github.com/potooio/sentinel/internal/notifier"
	"github.com/potooio/sentinel/internal/types"
)

// DefaultGlobalInterval is how often global rules run.
const DefaultGlobalInterval = 60 * time.Second

// Options configures a System.
type Options struct {
	// GlobalInterval spaces global rule passes, in record time during
	// replay and wall time when live.
	GlobalInterval time.Duration

	// EmitSuccessOperations logs a Success Operation for every Active POS
	// transaction.
	EmitSuccessOperations bool

	// RunID tags notifications. Generated when empty.
	RunID string

	Logger *zap.Logger

	// Clock drives the live global ticker's evaluation instant.
	Clock func() time.Time
}

// Stats counts what the system has processed.
type Stats struct {
	RunID      string    `json:"run_id"`
	Processed  uint64    `json:"processed"`
	Rejected   uint64    `json:"rejected"`
	Findings   uint64    `json:"findings"`
	GlobalRuns uint64    `json:"global_runs"`
	LastRecord time.Time `json:"last_record,omitempty"`
	LastGlobal time.Time `json:"last_global,omitempty"`
	Suppressed uint64    `json:"suppressed_warnings"`
}

// System is the running detector.
type System struct {
	opts       Options
	logger     *zap.Logger
	store      *correlator.Store
	engine     *detection.Engine
	events     *eventlog.Log
	dispatcher *notifier.Dispatcher

	// warnLimiter keeps a flood of bad input from flooding the log.
	warnLimiter *rate.Limiter

	mu    sync.Mutex
	stats Stats
}

// New assembles a System. dispatcher may be nil.
func New(store *correlator.Store, engine *detection.Engine, events *eventlog.Log, dispatcher *notifier.Dispatcher, opts Options) *System {
	if opts.GlobalInterval <= 0 {
		opts.GlobalInterval = DefaultGlobalInterval
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &System{
		opts:        opts,
		logger:      opts.Logger.Named("pipeline").With(zap.String("run_id", opts.RunID)),
		store:       store,
		engine:      engine,
		events:      events,
		dispatcher:  dispatcher,
		warnLimiter: rate.NewLimiter(rate.Every(time.Second), 10),
		stats:       Stats{RunID: opts.RunID},
	}
}

// RunID returns the identifier attached to this run's notifications.
func (s *System) RunID() string { return s.opts.RunID }

// Store returns the correlation store.
func (s *System) Store() *correlator.Store { return s.store }

// Events returns the event log.
func (s *System) Events() *eventlog.Log { return s.events }

// Stats returns a snapshot of the processing counters.
func (s *System) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Process handles one envelope without simulated-time global scheduling.
// Returns the entries logged for it; a rejected envelope returns its
// normalization error.
func (s *System) Process(ctx context.Context, env normalizer.Envelope) ([]eventlog.Entry, error) {
	return s.step(ctx, env, false)
}

func (s *System) step(ctx context.Context, env normalizer.Envelope, simulated bool) ([]eventlog.Entry, error) {
	rec, err := normalizer.Normalize(env)
	if err != nil {
		s.reject(env, err)
		return nil, err
	}

	entries := s.ingest(env, rec, simulated)
	s.dispatch(ctx, entries)
	return entries, nil
}

// ingest is the locked part of a step: store, rules and event log.
func (s *System) ingest(env normalizer.Envelope, rec types.Record, simulated bool) []eventlog.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.store.Ingest(rec)
	s.stats.Processed++
	if rec.Timestamp.After(s.stats.LastRecord) {
		s.stats.LastRecord = rec.Timestamp
	}
	recordsProcessed.WithLabelValues(string(env.Dataset), "ok").Inc()

	var findings []types.Finding
	switch rec.Type() {
	case types.RecordPOS, types.RecordRFID, types.RecordQueue:
		findings = s.engine.EvaluateStation(rec.StationID, rec.Timestamp)
	}
	if s.opts.EmitSuccessOperations && rec.Status == types.StatusActive {
		if pos, ok := rec.POS(); ok {
			findings = append(findings, successOperation(rec, pos))
		}
	}
	entries := s.recordLocked(findings)

	if simulated {
		entries = append(entries, s.maybeRunGlobalLocked(rec.Timestamp)...)
	}
	return entries
}

// maybeRunGlobalLocked runs global rules once record time has advanced by
// the global interval. The first call only sets the baseline.
func (s *System) maybeRunGlobalLocked(at time.Time) []eventlog.Entry {
	if s.stats.LastGlobal.IsZero() {
		s.stats.LastGlobal = at
		return nil
	}
	if at.Sub(s.stats.LastGlobal) < s.opts.GlobalInterval {
		return nil
	}
	return s.runGlobalLocked(at)
}

// RunGlobal evaluates the global rules at the given instant.
func (s *System) RunGlobal(ctx context.Context, at time.Time) []eventlog.Entry {
	s.mu.Lock()
	entries := s.runGlobalLocked(at)
	s.mu.Unlock()

	s.dispatch(ctx, entries)
	return entries
}

func (s *System) runGlobalLocked(at time.Time) []eventlog.Entry {
	s.stats.LastGlobal = at
	s.stats.GlobalRuns++
	globalRuns.Inc()
	return s.recordLocked(s.engine.EvaluateGlobal(at))
}

// recordLocked numbers findings in the event log.
func (s *System) recordLocked(findings []types.Finding) []eventlog.Entry {
	if len(findings) == 0 {
		return nil
	}
	entries := s.events.AppendAll(findings)
	s.stats.Findings += uint64(len(entries))
	eventsLogged.Add(float64(len(entries)))

	for _, e := range entries {
		if e.EventData.Severity != "" {
			s.logger.Info("Finding",
				zap.String("event_id", e.EventID),
				zap.String("event_name", string(e.EventData.EventName)),
				zap.String("station", e.EventData.StationID),
				zap.String("severity", string(e.EventData.Severity)))
		}
	}
	return entries
}

// dispatch fans logged entries out to external senders. It runs without
// the step lock so a slow sender never holds up other stations.
func (s *System) dispatch(ctx context.Context, entries []eventlog.Entry) {
	if s.dispatcher == nil {
		return
	}
	for _, e := range entries {
		s.dispatcher.Dispatch(ctx, notifier.NewNotification(s.opts.RunID, e))
	}
}

func (s *System) reject(env normalizer.Envelope, err error) {
	recordsProcessed.WithLabelValues(string(env.Dataset), "rejected").Inc()

	s.mu.Lock()
	s.stats.Rejected++
	allowed := s.warnLimiter.Allow()
	if !allowed {
		s.stats.Suppressed++
	}
	s.mu.Unlock()

	if allowed {
		s.logger.Warn("Rejected record",
			zap.String("dataset", string(env.Dataset)),
			zap.String("station", env.Event.StationID),
			zap.String("timestamp", env.Event.Timestamp),
			zap.Error(err))
	}
}

func successOperation(rec types.Record, pos types.PosTransaction) types.Finding {
	customer, sku := pos.CustomerID, pos.SKU
	if customer == "" {
		customer = "Unknown"
	}
	if sku == "" {
		sku = "Unknown"
	}
	return types.Finding{
		EventName: types.EventSuccessOperation,
		StationID: rec.StationID,
		Timestamp: rec.Timestamp,
		Details: map[string]interface{}{
			"customer_id": customer,
			"product_sku": sku,
		},
	}
}
