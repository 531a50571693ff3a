package notifier

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// storeWideKey is the rate-limit key for findings without a station.
const storeWideKey = "store"

// DispatcherOptions configures the Dispatcher behavior.
type DispatcherOptions struct {
	// RateLimitPerMinute caps notifications per station. Zero disables the limit.
	RateLimitPerMinute int
	Senders            []Sender
}

// DefaultDispatcherOptions returns sensible defaults.
func DefaultDispatcherOptions() DispatcherOptions {
	return DispatcherOptions{
		RateLimitPerMinute: 100,
	}
}

// stationRateLimiter tracks rate limits per station.
type stationRateLimiter struct {
	mu         sync.Mutex
	limiters   map[string]*rate.Limiter
	lastAccess map[string]time.Time
	rate       rate.Limit
	burst      int
	now        func() time.Time
}

func newStationRateLimiter(perMinute int) *stationRateLimiter {
	return &stationRateLimiter{
		limiters:   make(map[string]*rate.Limiter),
		lastAccess: make(map[string]time.Time),
		rate:       rate.Limit(float64(perMinute) / 60.0),
		burst:      max(1, perMinute/10), // 10% burst, minimum 1
		now:        time.Now,
	}
}

func (s *stationRateLimiter) Allow(station string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	limiter, exists := s.limiters[station]
	if !exists {
		limiter = rate.NewLimiter(s.rate, s.burst)
		s.limiters[station] = limiter
	}
	now := s.now()
	s.lastAccess[station] = now
	return limiter.AllowN(now, 1)
}

// Evict removes station rate limiters that haven't been accessed within maxAge.
func (s *stationRateLimiter) Evict(maxAge time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-maxAge)
	for station, last := range s.lastAccess {
		if last.Before(cutoff) {
			delete(s.limiters, station)
			delete(s.lastAccess, station)
		}
	}
}

func (s *stationRateLimiter) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}

// Dispatcher fans numbered findings out to the configured senders.
// The event log is written before dispatch, so a rate-limited or failed
// notification is never lost from the log itself.
type Dispatcher struct {
	logger  *zap.Logger
	opts    DispatcherOptions
	limiter *stationRateLimiter
	senders []Sender
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(logger *zap.Logger, opts DispatcherOptions) *Dispatcher {
	d := &Dispatcher{
		logger:  logger.Named("dispatcher"),
		opts:    opts,
		senders: opts.Senders,
	}
	if opts.RateLimitPerMinute > 0 {
		d.limiter = newStationRateLimiter(opts.RateLimitPerMinute)
	}
	return d
}

// Senders returns the configured senders.
func (d *Dispatcher) Senders() []Sender { return d.senders }

// Start begins background routines for cleanup and external senders. Non-blocking.
func (d *Dispatcher) Start(ctx context.Context) {
	if d.limiter != nil {
		go d.cleanupLimiters(ctx)
	}
	for _, s := range d.senders {
		s.Start(ctx)
		d.logger.Info("Started external sender", zap.String("sender", s.Name()))
	}
}

// Dispatch hands the notification to every sender whose severity gate
// accepts it. Sender errors are logged and do not stop the fan-out.
// Returns false when the station's rate limit suppressed the notification.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) bool {
	if len(d.senders) == 0 {
		return true
	}

	key := n.Finding.StationID
	if key == "" {
		key = storeWideKey
	}
	if d.limiter != nil && !d.limiter.Allow(key) {
		dispatchRateLimited.WithLabelValues(key).Inc()
		d.logger.Debug("Station rate limited",
			zap.String("station", key),
			zap.String("event_id", n.EventID))
		return false
	}

	for _, s := range d.senders {
		if !s.ShouldSend(n.Finding.Severity) {
			continue
		}
		if err := s.Send(ctx, n); err != nil {
			d.logger.Error("External sender failed",
				zap.String("sender", s.Name()),
				zap.String("event_id", n.EventID),
				zap.Error(err),
			)
		}
	}
	return true
}

// Close closes every sender that holds resources. Cancel the context passed
// to Start first so async senders can drain.
func (d *Dispatcher) Close() error {
	var errs []error
	for _, s := range d.senders {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// cleanupLimiters periodically evicts limiters for stations not seen in an hour.
func (d *Dispatcher) cleanupLimiters(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.limiter.Evict(time.Hour)
		}
	}
}
