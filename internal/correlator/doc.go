// Package correlator holds the time-bounded, per-station record store that
// the detection rules read from.
//
// # Contract
//
// The Store:
//  1. Keeps one timestamp-ordered ring per (station, record type)
//  2. On every Ingest, evicts every bucket entry older than newest-seen minus Window
//  3. Keeps inventory snapshots store-wide for InventoryRetention behind the newest one
//  4. Tracks the last status and activity time of each station
//
// # Correlation
//
// Correlate(station, at, r) is a symmetric join: for each bucket it returns
// every record with a timestamp in [at-r, at+r], oldest first.
//
// # Capacity
//
// Rings grow by doubling up to MaxBucketSize. A full ring overwrites its
// oldest entry and bumps StoreStats.Overflows.
//
// # Constructor
//
//	func NewStore(opts StoreOptions) *Store
//	func (s *Store) Ingest(rec types.Record)
//	func (s *Store) Correlate(stationID string, at time.Time, radius time.Duration) types.Correlation
package correlator
