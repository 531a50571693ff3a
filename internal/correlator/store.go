package correlator

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/potooio/sentinel/internal/types"
	"github.com/potooio/sentinel/internal/util"
)

const (
	// DefaultWindow is the retention span of per-station buckets.
	DefaultWindow = 30 * time.Second

	// DefaultCorrelationRadius is the half-width of the cross-stream join.
	DefaultCorrelationRadius = 10 * time.Second

	// DefaultInventoryRetention is how long inventory snapshots are kept.
	DefaultInventoryRetention = time.Hour

	// DefaultMaxBucketSize caps a single (station, type) ring.
	DefaultMaxBucketSize = 4096
)

// StoreOptions configures the Store.
type StoreOptions struct {
	// Window bounds every per-station bucket, measured back from the newest
	// timestamp the store has seen.
	Window time.Duration

	// InventoryRetention bounds the inventory history.
	InventoryRetention time.Duration

	// MaxBucketSize caps each ring; beyond it the oldest entry is overwritten.
	MaxBucketSize int

	Logger *zap.Logger
}

// DefaultStoreOptions returns sensible defaults.
func DefaultStoreOptions() StoreOptions {
	return StoreOptions{
		Window:             DefaultWindow,
		InventoryRetention: DefaultInventoryRetention,
		MaxBucketSize:      DefaultMaxBucketSize,
		Logger:             zap.NewNop(),
	}
}

// StoreStats are cumulative counters since the store was created.
type StoreStats struct {
	Ingested  uint64
	Dropped   uint64
	Evicted   uint64
	Overflows uint64
	Stations  int
	Snapshots int
}

// stationBuckets holds one ring per station record type, indexed by bucketIndex.
type stationBuckets [4]ring

func bucketIndex(rt types.RecordType) (int, bool) {
	switch rt {
	case types.RecordPOS:
		return 0, true
	case types.RecordRFID:
		return 1, true
	case types.RecordQueue:
		return 2, true
	case types.RecordRecognition:
		return 3, true
	default:
		return 0, false
	}
}

// Store is a concurrent-safe, time-bounded store of normalized records.
//
// A single mutex guards every bucket; writers hold it exclusively for the
// whole append-and-evict step, so readers never observe a bucket mid-eviction.
// All read methods return copies.
type Store struct {
	opts   StoreOptions
	logger *zap.Logger

	mu        sync.RWMutex
	stations  map[string]*stationBuckets
	state     map[string]types.StationState
	inventory []types.Record
	newest    time.Time
	stats     StoreStats
}

// NewStore creates an empty Store. Zero option values fall back to defaults.
func NewStore(opts StoreOptions) *Store {
	defaults := DefaultStoreOptions()
	if opts.Window <= 0 {
		opts.Window = defaults.Window
	}
	if opts.InventoryRetention <= 0 {
		opts.InventoryRetention = defaults.InventoryRetention
	}
	if opts.MaxBucketSize <= 0 {
		opts.MaxBucketSize = defaults.MaxBucketSize
	}
	if opts.Logger == nil {
		opts.Logger = defaults.Logger
	}
	return &Store{
		opts:     opts,
		logger:   opts.Logger.Named("correlator"),
		stations: make(map[string]*stationBuckets),
		state:    make(map[string]types.StationState),
	}
}

// Window returns the configured per-station retention span.
func (s *Store) Window() time.Duration { return s.opts.Window }

// Ingest adds a record and evicts everything that fell out of the window.
// Records without a timestamp or payload, and per-station records without a
// station id, are dropped.
func (s *Store) Ingest(rec types.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.Timestamp.IsZero() || rec.Payload == nil {
		s.stats.Dropped++
		return
	}

	rt := rec.Type()
	if rt == types.RecordInventory {
		s.addInventory(rec)
	} else {
		idx, ok := bucketIndex(rt)
		if !ok || rec.StationID == "" {
			s.stats.Dropped++
			s.logger.Debug("Dropping record without a station bucket",
				zap.String("type", string(rt)),
				zap.String("station", rec.StationID))
			return
		}
		buckets := s.stations[rec.StationID]
		if buckets == nil {
			buckets = &stationBuckets{}
			s.stations[rec.StationID] = buckets
		}
		if buckets[idx].insert(rec, s.opts.MaxBucketSize) {
			s.stats.Overflows++
			s.logger.Debug("Bucket at capacity, overwrote oldest record",
				zap.String("station", rec.StationID),
				zap.String("type", string(rt)))
		}
	}

	if rec.StationID != "" {
		status := rec.Status
		if status == "" {
			status = types.StatusUnknown
		}
		s.state[rec.StationID] = types.StationState{
			LastStatus:   status,
			LastActivity: rec.Timestamp,
		}
	}

	s.stats.Ingested++
	s.newest = util.MaxTime(s.newest, rec.Timestamp)
	s.evictLocked(s.newest.Add(-s.opts.Window))
}

// addInventory inserts a snapshot in timestamp order and trims the history
// to the retention span behind the newest snapshot.
func (s *Store) addInventory(rec types.Record) {
	pos := sort.Search(len(s.inventory), func(i int) bool {
		return s.inventory[i].Timestamp.After(rec.Timestamp)
	})
	s.inventory = append(s.inventory, types.Record{})
	copy(s.inventory[pos+1:], s.inventory[pos:])
	s.inventory[pos] = rec

	cutoff := s.inventory[len(s.inventory)-1].Timestamp.Add(-s.opts.InventoryRetention)
	keep := s.inventory[:0]
	for _, snap := range s.inventory {
		if snap.Timestamp.After(cutoff) {
			keep = append(keep, snap)
		}
	}
	for i := len(keep); i < len(s.inventory); i++ {
		s.inventory[i] = types.Record{}
	}
	s.inventory = keep
}

func (s *Store) evictLocked(cutoff time.Time) {
	for _, buckets := range s.stations {
		for i := range buckets {
			s.stats.Evicted += uint64(buckets[i].evictBefore(cutoff))
		}
	}
}

// Correlate returns, for each per-station bucket, every record whose
// timestamp lies within [at-radius, at+radius]. An unknown station yields
// the empty Correlation.
func (s *Store) Correlate(stationID string, at time.Time, radius time.Duration) types.Correlation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	buckets := s.stations[stationID]
	if buckets == nil {
		return types.Correlation{}
	}
	from, to := at.Add(-radius), at.Add(radius)
	return types.Correlation{
		POS:         buckets[0].between(from, to),
		RFID:        buckets[1].between(from, to),
		Queue:       buckets[2].between(from, to),
		Recognition: buckets[3].between(from, to),
	}
}

// Recent returns the last limit records of one bucket, newest last.
// A limit <= 0 returns the whole bucket; an unknown bucket returns nil.
func (s *Store) Recent(stationID string, rt types.RecordType, limit int) []types.Record {
	idx, ok := bucketIndex(rt)
	if !ok {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	buckets := s.stations[stationID]
	if buckets == nil {
		return nil
	}
	return buckets[idx].last(limit)
}

// StationStatus returns the last status and activity of a station.
func (s *Store) StationStatus(stationID string) (string, time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.state[stationID]
	if !ok {
		return types.StatusUnknown, time.Time{}, false
	}
	return st.LastStatus, st.LastActivity, true
}

// KnownStations returns every station id observed in a per-station bucket, sorted.
func (s *Store) KnownStations() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]string, 0, len(s.stations))
	for id := range s.stations {
		result = append(result, id)
	}
	sort.Strings(result)
	return result
}

// LatestInventory returns the most recent inventory snapshot.
func (s *Store) LatestInventory() (types.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.inventory) == 0 {
		return types.Record{}, false
	}
	return s.inventory[len(s.inventory)-1], true
}

// InventoryHistory returns the retained snapshots, oldest first.
func (s *Store) InventoryHistory() []types.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Record, len(s.inventory))
	copy(out, s.inventory)
	return out
}

// Stats returns a copy of the store counters.
func (s *Store) Stats() StoreStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := s.stats
	stats.Stations = len(s.stations)
	stats.Snapshots = len(s.inventory)
	return stats
}

var _ types.StoreReader = (*Store)(nil)
