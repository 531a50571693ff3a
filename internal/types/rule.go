package types

import (
	"time"
)

// StationRule evaluates one station's correlation window at an instant.
//
// Rules are pure functions of the EvalContext: they must not mutate the store,
// must not retain state between calls and must not perform I/O.
type StationRule interface {
	// Name returns a unique identifier for this rule.
	// Used in metrics labels and logging.
	Name() string

	// Description returns a human-readable explanation of what this rule checks.
	Description() string

	// Evaluate returns zero or more findings for the station at the given instant.
	Evaluate(eval EvalContext, stationID string, at time.Time) ([]Finding, error)
}

// GlobalRule evaluates store-wide state (inventory, the whole station fleet).
type GlobalRule interface {
	Name() string
	Description() string
	Evaluate(eval EvalContext, at time.Time) ([]Finding, error)
}

// EvalContext is everything a rule may read.
type EvalContext struct {
	Store      StoreReader
	Catalog    CatalogReader
	Thresholds Thresholds
}

// StoreReader is the read side of the correlation store.
type StoreReader interface {
	// Correlate returns, per station bucket, the records within [at-radius, at+radius].
	Correlate(stationID string, at time.Time, radius time.Duration) Correlation

	// Recent returns the last limit records of one bucket, newest last.
	// A limit <= 0 returns the whole bucket.
	Recent(stationID string, rt RecordType, limit int) []Record

	// StationStatus returns the last status and activity time of a station.
	// ok is false for a station that has never been seen.
	StationStatus(stationID string) (status string, lastActivity time.Time, ok bool)

	// KnownStations returns every station id with at least one bucket, sorted.
	KnownStations() []string

	// LatestInventory returns the most recent inventory snapshot.
	LatestInventory() (Record, bool)
}

// CatalogReader is the read side of the reference catalog.
type CatalogReader interface {
	Product(sku string) (Product, bool)
	Customer(id string) (Customer, bool)
}

// Product is one row of the products reference table.
type Product struct {
	SKU      string
	Name     string
	Quantity int
	EPCRange string
	Barcode  string
	WeightG  float64
	Price    float64
}

// Customer is one row of the customers reference table.
type Customer struct {
	ID      string
	Name    string
	Age     int
	Address string
	Phone   string
}

// Thresholds are the fixed comparison limits used by the rules.
type Thresholds struct {
	CorrelationRadius       time.Duration
	WeightToleranceG        float64
	PriceRatio              float64
	LongQueueCustomers      int
	LongWaitSeconds         float64
	SampleInterval          time.Duration
	TrendSamples            int
	UnresponsiveAfter       time.Duration
	InventoryVariancePct    float64
	MinInventoryForVariance int
	BusyStationCustomers    int
}

// DefaultThresholds returns the production limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CorrelationRadius:       10 * time.Second,
		WeightToleranceG:        50,
		PriceRatio:              0.5,
		LongQueueCustomers:      3,
		LongWaitSeconds:         120,
		SampleInterval:          5 * time.Second,
		TrendSamples:            6,
		UnresponsiveAfter:       600 * time.Second,
		InventoryVariancePct:    5,
		MinInventoryForVariance: 10,
		BusyStationCustomers:    2,
	}
}
