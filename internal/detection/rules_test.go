package detection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/potooio/sentinel/internal/correlator"
	"github.com/potooio/sentinel/internal/testutil"
	"github.com/potooio/sentinel/internal/types"
)

func newEval(t *testing.T, products ...types.Product) (types.EvalContext, *correlator.Store) {
	t.Helper()
	store := correlator.NewStore(correlator.StoreOptions{})
	return types.EvalContext{
		Store:      store,
		Catalog:    testutil.NewFakeCatalog(products...),
		Thresholds: types.DefaultThresholds(),
	}, store
}

// stubStore is a StoreReader with fixed station state, for rules whose
// inputs the real store cannot produce directly.
type stubStore struct {
	status       string
	lastActivity time.Time
	known        bool
}

func (s stubStore) Correlate(string, time.Time, time.Duration) types.Correlation {
	return types.Correlation{}
}
func (s stubStore) Recent(string, types.RecordType, int) []types.Record { return nil }
func (s stubStore) StationStatus(string) (string, time.Time, bool) {
	return s.status, s.lastActivity, s.known
}
func (s stubStore) KnownStations() []string             { return nil }
func (s stubStore) LatestInventory() (types.Record, bool) { return types.Record{}, false }

func TestScannerAvoidance_UnmatchedReadInScanArea(t *testing.T) {
	eval, store := newEval(t)
	at := testutil.At(100)
	store.Ingest(testutil.RFID("SCC1", at, "X123", types.LocationInScanArea))

	findings, err := NewScannerAvoidanceRule().Evaluate(eval, "SCC1", at)
	require.NoError(t, err)
	require.Len(t, findings, 1)

	f := findings[0]
	assert.Equal(t, types.EventScannerAvoidance, f.EventName)
	assert.Equal(t, "SCC1", f.StationID)
	assert.Equal(t, types.SeverityHigh, f.Severity)
	assert.Equal(t, 0.8, f.Confidence)
	assert.Equal(t, "X123", f.Detail("product_sku"))
	assert.Equal(t, at, f.Timestamp)
}

func TestScannerAvoidance_NoFinding(t *testing.T) {
	tests := []struct {
		name    string
		records []types.Record
	}{
		{
			name: "matched by POS within radius",
			records: []types.Record{
				testutil.RFID("SCC1", testutil.At(100), "X123", types.LocationInScanArea),
				testutil.POS("SCC1", testutil.At(108), "X123", testutil.Float(5), nil),
			},
		},
		{
			name: "outside scan area",
			records: []types.Record{
				testutil.RFID("SCC1", testutil.At(100), "X123", "SHELF"),
			},
		},
		{
			name: "unresolved tag",
			records: []types.Record{
				testutil.RFID("SCC1", testutil.At(100), "", types.LocationInScanArea),
			},
		},
		{
			name: "read on another station",
			records: []types.Record{
				testutil.RFID("SCC2", testutil.At(100), "X123", types.LocationInScanArea),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval, store := newEval(t)
			for _, rec := range tt.records {
				store.Ingest(rec)
			}
			findings, err := NewScannerAvoidanceRule().Evaluate(eval, "SCC1", testutil.At(100))
			require.NoError(t, err)
			assert.Empty(t, findings)
		})
	}
}

func TestScannerAvoidance_FirstUnmatchedAndCustomer(t *testing.T) {
	eval, store := newEval(t)
	store.Ingest(testutil.RFID("SCC1", testutil.At(95), "B", types.LocationInScanArea))
	store.Ingest(testutil.RFID("SCC1", testutil.At(97), "C", types.LocationInScanArea))
	store.Ingest(testutil.POS("SCC1", testutil.At(99), "A", testutil.Float(1), nil))

	findings, err := NewScannerAvoidanceRule().Evaluate(eval, "SCC1", testutil.At(100))
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "B", findings[0].Detail("product_sku"))
	assert.Equal(t, "C001", findings[0].Detail("customer_id"))
}

func TestScannerAvoidance_Idempotent(t *testing.T) {
	eval, store := newEval(t)
	store.Ingest(testutil.RFID("SCC1", testutil.At(100), "X123", types.LocationInScanArea))
	rule := NewScannerAvoidanceRule()

	first, err := rule.Evaluate(eval, "SCC1", testutil.At(100))
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := rule.Evaluate(eval, "SCC1", testutil.At(100))
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestBarcodeSwitching_ScannedPriceBelowReadProduct(t *testing.T) {
	eval, store := newEval(t, types.Product{SKU: "B", Price: 20.0})
	at := testutil.At(100)
	store.Ingest(testutil.POS("SCC1", at, "A", testutil.Float(5.0), nil))
	store.Ingest(testutil.RFID("SCC1", at, "B", types.LocationInScanArea))

	findings, err := NewBarcodeSwitchingRule().Evaluate(eval, "SCC1", at)
	require.NoError(t, err)
	require.Len(t, findings, 1)

	f := findings[0]
	assert.Equal(t, types.EventBarcodeSwitching, f.EventName)
	assert.Equal(t, types.SeverityCritical, f.Severity)
	assert.Equal(t, 0.9, f.Confidence)
	assert.Equal(t, "B", f.Detail("actual_sku"))
	assert.Equal(t, "A", f.Detail("scanned_sku"))
	assert.Equal(t, 20.0, f.Detail("expected_price"))
	assert.Equal(t, 5.0, f.Detail("actual_price"))
	assert.Equal(t, 15.0, f.Detail("price_difference"))
}

func TestBarcodeSwitching_NoFinding(t *testing.T) {
	tests := []struct {
		name     string
		products []types.Product
		posPrice *float64
		rfidSKU  string
	}{
		{name: "price above half", products: []types.Product{{SKU: "B", Price: 20}}, posPrice: testutil.Float(10), rfidSKU: "B"},
		{name: "same sku", products: []types.Product{{SKU: "A", Price: 20}}, posPrice: testutil.Float(1), rfidSKU: "A"},
		{name: "no catalog entry", posPrice: testutil.Float(1), rfidSKU: "B"},
		{name: "zero catalog price", products: []types.Product{{SKU: "B", Price: 0}}, posPrice: testutil.Float(1), rfidSKU: "B"},
		{name: "no POS price", products: []types.Product{{SKU: "B", Price: 20}}, rfidSKU: "B"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval, store := newEval(t, tt.products...)
			store.Ingest(testutil.POS("SCC1", testutil.At(100), "A", tt.posPrice, nil))
			store.Ingest(testutil.RFID("SCC1", testutil.At(100), tt.rfidSKU, types.LocationInScanArea))

			findings, err := NewBarcodeSwitchingRule().Evaluate(eval, "SCC1", testutil.At(100))
			require.NoError(t, err)
			assert.Empty(t, findings)
		})
	}
}

func TestWeightDiscrepancy(t *testing.T) {
	tests := []struct {
		name     string
		weight   float64
		wantFire bool
		wantSev  types.Severity
	}{
		{name: "exactly at tolerance", weight: 450, wantFire: false},
		{name: "within tolerance", weight: 380, wantFire: false},
		{name: "just over tolerance", weight: 451, wantFire: true, wantSev: types.SeverityMedium},
		{name: "large deviation", weight: 500, wantFire: true, wantSev: types.SeverityHigh},
		{name: "light item", weight: 200, wantFire: true, wantSev: types.SeverityHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval, store := newEval(t, types.Product{SKU: "PRD_F_01", WeightG: 400})
			store.Ingest(testutil.POS("SCC1", testutil.At(100), "PRD_F_01", testutil.Float(5), testutil.Float(tt.weight)))

			findings, err := NewWeightDiscrepancyRule().Evaluate(eval, "SCC1", testutil.At(100))
			require.NoError(t, err)
			if !tt.wantFire {
				assert.Empty(t, findings)
				return
			}
			require.Len(t, findings, 1)
			assert.Equal(t, tt.wantSev, findings[0].Severity)
			assert.Equal(t, 0.85, findings[0].Confidence)
			assert.Equal(t, "PRD_F_01", findings[0].Detail("product_sku"))
			assert.Equal(t, 400.0, findings[0].Detail("expected_weight"))
			assert.Equal(t, tt.weight, findings[0].Detail("actual_weight"))
		})
	}
}

func TestWeightDiscrepancy_VariancePercent(t *testing.T) {
	eval, store := newEval(t, types.Product{SKU: "PRD_F_01", WeightG: 300})
	store.Ingest(testutil.POS("SCC1", testutil.At(100), "PRD_F_01", nil, testutil.Float(360)))

	findings, err := NewWeightDiscrepancyRule().Evaluate(eval, "SCC1", testutil.At(100))
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, 60.0, findings[0].Detail("weight_difference"))
	assert.Equal(t, 20.0, findings[0].Detail("variance_percent"))
	assert.Equal(t, types.SeverityMedium, findings[0].Severity, "exactly 20% is not HIGH")
}

func TestSystemCrash_FaultStatuses(t *testing.T) {
	for _, status := range []string{"System Crash", "Read Error", "Error", "Failed"} {
		t.Run(status, func(t *testing.T) {
			eval, store := newEval(t)
			at := testutil.At(50)
			store.Ingest(testutil.WithStatus(testutil.POS("SCC1", at, "A", nil, nil), status))

			findings, err := NewSystemCrashRule().Evaluate(eval, "SCC1", at)
			require.NoError(t, err)
			require.Len(t, findings, 1)
			assert.Equal(t, types.EventSystemCrash, findings[0].EventName)
			assert.Equal(t, types.SeverityCritical, findings[0].Severity)
			assert.Equal(t, 1.0, findings[0].Confidence)
			assert.Equal(t, status, findings[0].Detail("error_type"))
			assert.NotNil(t, findings[0].Detail("last_activity"))
		})
	}
}

func TestSystemCrash_ActiveAndUnknown(t *testing.T) {
	eval, store := newEval(t)
	store.Ingest(testutil.POS("SCC1", testutil.At(50), "A", nil, nil))

	findings, err := NewSystemCrashRule().Evaluate(eval, "SCC1", testutil.At(50))
	require.NoError(t, err)
	assert.Empty(t, findings)

	findings, err = NewSystemCrashRule().Evaluate(eval, "SCC9", testutil.At(50))
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestSystemCrash_Unresponsive(t *testing.T) {
	last := testutil.At(0)
	eval := types.EvalContext{
		Store:      stubStore{status: types.StatusActive, lastActivity: last, known: true},
		Thresholds: types.DefaultThresholds(),
	}
	rule := NewSystemCrashRule()

	findings, err := rule.Evaluate(eval, "SCC1", testutil.At(600))
	require.NoError(t, err)
	assert.Empty(t, findings, "exactly 600s is not unresponsive")

	findings, err = rule.Evaluate(eval, "SCC1", testutil.At(601))
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, types.EventStationUnresponsive, findings[0].EventName)
	assert.Equal(t, types.SeverityHigh, findings[0].Severity)
	assert.Equal(t, 0.75, findings[0].Confidence)
	assert.Equal(t, 601.0, findings[0].Detail("inactive_duration"))
}

func ingestQueue(store *correlator.Store, station string, counts []int, dwells []float64) time.Time {
	var at time.Time
	for i := range counts {
		at = testutil.At(float64(i * 5))
		dwell := 0.0
		if dwells != nil {
			dwell = dwells[i]
		}
		store.Ingest(testutil.Queue(station, at, counts[i], dwell))
	}
	return at
}

func TestLongQueue_GrowingQueueIsCritical(t *testing.T) {
	eval, store := newEval(t)
	at := ingestQueue(store, "SCC2", []int{2, 3, 4, 5, 6, 7}, nil)

	findings, err := NewLongQueueRule().Evaluate(eval, "SCC2", at)
	require.NoError(t, err)
	require.Len(t, findings, 1)

	f := findings[0]
	assert.Equal(t, types.EventLongQueue, f.EventName)
	assert.Equal(t, "growing", f.Detail("queue_trend"))
	assert.Equal(t, types.SeverityCritical, f.Severity)
	assert.Equal(t, 0.9, f.Confidence)
	assert.Equal(t, 7, f.Detail("num_of_customers"))
	assert.Equal(t, 25, f.Detail("duration_seconds"))
}

func TestLongQueue_Severity(t *testing.T) {
	tests := []struct {
		name      string
		counts    []int
		wantFire  bool
		wantSev   types.Severity
		wantTrend string
	}{
		{name: "short queue", counts: []int{1, 2, 1, 2}, wantFire: false},
		{name: "at threshold", counts: []int{3}, wantFire: true, wantSev: types.SeverityMedium, wantTrend: "stable"},
		{name: "five and growing", counts: []int{1, 2, 3, 4, 5}, wantFire: true, wantSev: types.SeverityCritical, wantTrend: "growing"},
		{name: "five and shrinking", counts: []int{8, 7, 6, 5}, wantFire: true, wantSev: types.SeverityHigh, wantTrend: "shrinking"},
		{name: "sustained but short now", counts: []int{3, 3, 4, 3, 3, 2}, wantFire: true, wantSev: types.SeverityHigh, wantTrend: "shrinking"},
		{name: "sustained three samples", counts: []int{3, 4, 3, 2}, wantFire: true, wantSev: types.SeverityMedium, wantTrend: "shrinking"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval, store := newEval(t)
			at := ingestQueue(store, "SCC1", tt.counts, nil)

			findings, err := NewLongQueueRule().Evaluate(eval, "SCC1", at)
			require.NoError(t, err)
			if !tt.wantFire {
				assert.Empty(t, findings)
				return
			}
			require.Len(t, findings, 1)
			assert.Equal(t, tt.wantSev, findings[0].Severity)
			assert.Equal(t, tt.wantTrend, findings[0].Detail("queue_trend"))
		})
	}
}

func TestLongQueue_UsesLastSixSamples(t *testing.T) {
	eval, store := newEval(t)
	at := ingestQueue(store, "SCC1", []int{9, 1, 1, 1, 1, 1, 3}, nil)

	findings, err := NewLongQueueRule().Evaluate(eval, "SCC1", at)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "growing", findings[0].Detail("queue_trend"), "the sample of 9 is outside the window")
	assert.Equal(t, 5, findings[0].Detail("duration_seconds"))
}

func TestLongWait(t *testing.T) {
	tests := []struct {
		name      string
		dwells    []float64
		wantFire  bool
		wantSev   types.Severity
		wantTrend string
		wantAvg   float64
	}{
		{name: "short waits", dwells: []float64{30, 40, 50}, wantFire: false},
		{name: "at threshold", dwells: []float64{120}, wantFire: true, wantSev: types.SeverityMedium, wantTrend: "stable", wantAvg: 120},
		{name: "average over threshold", dwells: []float64{200, 150, 20}, wantFire: true, wantSev: types.SeverityMedium, wantTrend: "decreasing", wantAvg: 123.3},
		{name: "very long", dwells: []float64{100, 110, 300}, wantFire: true, wantSev: types.SeverityCritical, wantTrend: "increasing", wantAvg: 170},
		{name: "long and increasing", dwells: []float64{100, 200, 250}, wantFire: true, wantSev: types.SeverityCritical, wantTrend: "increasing", wantAvg: 183.3},
		{name: "sustained", dwells: []float64{130, 130, 130, 130}, wantFire: true, wantSev: types.SeverityHigh, wantTrend: "stable", wantAvg: 130},
		{name: "high", dwells: []float64{190, 185, 180}, wantFire: true, wantSev: types.SeverityHigh, wantTrend: "decreasing", wantAvg: 185},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval, store := newEval(t)
			counts := make([]int, len(tt.dwells))
			at := ingestQueue(store, "SCC1", counts, tt.dwells)

			findings, err := NewLongWaitRule().Evaluate(eval, "SCC1", at)
			require.NoError(t, err)
			if !tt.wantFire {
				assert.Empty(t, findings)
				return
			}
			require.Len(t, findings, 1)
			f := findings[0]
			assert.Equal(t, types.EventLongWait, f.EventName)
			assert.Equal(t, tt.wantSev, f.Severity)
			assert.Equal(t, tt.wantTrend, f.Detail("wait_trend"))
			assert.Equal(t, tt.wantAvg, f.Detail("average_wait_time"))
			assert.Equal(t, tt.dwells[len(tt.dwells)-1], f.Detail("wait_time_seconds"))
		})
	}
}

func TestInventoryDiscrepancy_VarianceAboveFivePercent(t *testing.T) {
	tests := []struct {
		name     string
		actual   int
		wantFire bool
	}{
		{name: "six percent", actual: 94, wantFire: true},
		{name: "exactly five percent", actual: 95, wantFire: false},
		{name: "four percent", actual: 96, wantFire: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval, store := newEval(t, types.Product{SKU: "Z", Name: "Zesta Tea", Quantity: 100})
			store.Ingest(testutil.Inventory(testutil.At(0), map[string]int{"Z": tt.actual}))

			findings, err := NewInventoryDiscrepancyRule().Evaluate(eval, testutil.At(60))
			require.NoError(t, err)
			if !tt.wantFire {
				assert.Empty(t, findings)
				return
			}
			require.Len(t, findings, 1)
			f := findings[0]
			assert.Equal(t, types.EventInventory, f.EventName)
			assert.Equal(t, types.SeverityMedium, f.Severity)
			assert.Equal(t, "Z", f.Detail("SKU"))
			assert.Equal(t, "Zesta Tea", f.Detail("product_name"))
			assert.Equal(t, 100, f.Detail("expected_inventory"))
			assert.Equal(t, 94, f.Detail("actual_inventory"))
			assert.Equal(t, -6, f.Detail("difference"))
			assert.Equal(t, 6.0, f.Detail("variance_percent"))
			assert.Empty(t, f.StationID)
		})
	}
}

func TestInventoryDiscrepancy_SeveritiesAndOrder(t *testing.T) {
	eval, store := newEval(t,
		types.Product{SKU: "A", Quantity: 100},
		types.Product{SKU: "B", Quantity: 100},
		types.Product{SKU: "C", Quantity: 8},
		types.Product{SKU: "D", Quantity: 0},
	)
	store.Ingest(testutil.Inventory(testutil.At(0), map[string]int{
		"C":       5,  // low stock: 3 * 10 = 30
		"B":       85, // 15%
		"A":       70, // 30%
		"D":       40,
		"UNKNOWN": 1,
	}))

	findings, err := NewInventoryDiscrepancyRule().Evaluate(eval, testutil.At(60))
	require.NoError(t, err)
	require.Len(t, findings, 3)

	assert.Equal(t, "A", findings[0].Detail("SKU"))
	assert.Equal(t, types.SeverityCritical, findings[0].Severity)
	assert.Equal(t, "B", findings[1].Detail("SKU"))
	assert.Equal(t, types.SeverityHigh, findings[1].Severity)
	assert.Equal(t, "C", findings[2].Detail("SKU"))
	assert.Equal(t, types.SeverityCritical, findings[2].Severity)
	assert.Equal(t, 30.0, findings[2].Detail("variance_percent"))
	assert.Equal(t, "Unknown", findings[2].Detail("product_name"))
}

func TestInventoryVariance(t *testing.T) {
	assert.Equal(t, 6.0, InventoryVariance(100, 94, 10))
	assert.Equal(t, 5.0, InventoryVariance(100, 105, 10))
	assert.Equal(t, 10.0, InventoryVariance(9, 8, 10))
	assert.Equal(t, 0.0, InventoryVariance(9, 9, 10))
}

func TestInventoryDiscrepancy_NoSnapshot(t *testing.T) {
	eval, _ := newEval(t, types.Product{SKU: "Z", Quantity: 100})
	findings, err := NewInventoryDiscrepancyRule().Evaluate(eval, testutil.At(0))
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestStaffingNeeds_AddCashier(t *testing.T) {
	eval, store := newEval(t)
	ingestQueue(store, "SCC1", []int{3, 3, 3, 4}, nil)
	ingestQueue(store, "SCC2", []int{1, 1, 2, 2}, nil)
	ingestQueue(store, "SCC3", []int{0, 0, 0, 0}, nil)

	findings, err := NewStaffingNeedsRule().Evaluate(eval, testutil.At(60))
	require.NoError(t, err)
	require.Len(t, findings, 1)

	f := findings[0]
	assert.Equal(t, types.EventStaffingNeeds, f.EventName)
	assert.Equal(t, "Cashier", f.Detail("staff_type"))
	assert.Equal(t, "ADD", f.Detail("action"))
	assert.Equal(t, 2, f.Detail("busy_stations"))
	assert.Equal(t, 1, f.Detail("sustained_busy_stations"))
	assert.Equal(t, 3, f.Detail("total_stations"))
	assert.Equal(t, 6, f.Detail("total_customers"))
	assert.Equal(t, 0.67, f.Detail("busy_ratio"))
	assert.Equal(t, 0.33, f.Detail("sustained_ratio"))
	assert.Equal(t, types.SeverityMedium, f.Severity)
	assert.Equal(t, 0.75, f.Confidence)
}

func TestStaffingNeeds_SustainedNeedsFullWindow(t *testing.T) {
	eval, store := newEval(t)
	ingestQueue(store, "SCC1", []int{5, 5, 5}, nil)
	ingestQueue(store, "SCC2", []int{2, 5, 5, 5}, nil)

	findings, err := NewStaffingNeedsRule().Evaluate(eval, testutil.At(60))
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, 2, findings[0].Detail("busy_stations"))
	assert.Equal(t, 1, findings[0].Detail("sustained_busy_stations"),
		"three samples are not enough history")
}

func TestStaffingNeeds_SupportStaff(t *testing.T) {
	eval, store := newEval(t)
	ingestQueue(store, "SCC1", []int{1}, []float64{150})
	ingestQueue(store, "SCC2", []int{0}, []float64{125})
	ingestQueue(store, "SCC3", []int{0}, []float64{10})
	ingestQueue(store, "SCC4", []int{0}, []float64{10})

	findings, err := NewStaffingNeedsRule().Evaluate(eval, testutil.At(60))
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "Support Staff", findings[0].Detail("staff_type"))
	assert.Equal(t, 2, findings[0].Detail("affected_stations"))
	assert.Equal(t, types.SeverityHigh, findings[0].Severity)
}

func TestStaffingNeeds_Quiet(t *testing.T) {
	eval, store := newEval(t)
	findings, err := NewStaffingNeedsRule().Evaluate(eval, testutil.At(0))
	require.NoError(t, err)
	assert.Empty(t, findings)

	ingestQueue(store, "SCC1", []int{1}, nil)
	ingestQueue(store, "SCC2", []int{0}, nil)
	findings, err = NewStaffingNeedsRule().Evaluate(eval, testutil.At(0))
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestStationAction_Open(t *testing.T) {
	eval, store := newEval(t)
	ingestQueue(store, "SCC1", []int{12}, nil)
	ingestQueue(store, "SCC2", []int{14}, nil)

	findings, err := NewStationActionRule().Evaluate(eval, testutil.At(60))
	require.NoError(t, err)
	require.Len(t, findings, 1)

	f := findings[0]
	assert.Equal(t, types.EventStationAction, f.EventName)
	assert.Equal(t, "OPEN", f.Detail("action"))
	assert.Equal(t, 3, f.Detail("recommended_stations"), "capped at three")
	assert.Equal(t, 2, f.Detail("current_active_stations"))
	assert.Equal(t, 26, f.Detail("current_customers"))
	assert.Equal(t, 13.0, f.Detail("avg_customers_per_station"))
	assert.Equal(t, types.SeverityHigh, f.Severity)
}

func TestStationAction_Close(t *testing.T) {
	eval, store := newEval(t)
	for _, id := range []string{"SCC1", "SCC2", "SCC3", "SCC4"} {
		ingestQueue(store, id, []int{0}, nil)
	}
	store.Ingest(testutil.WithStatus(testutil.Queue("SCC4", testutil.At(1), 0, 0), "System Crash"))

	findings, err := NewStationActionRule().Evaluate(eval, testutil.At(60))
	require.NoError(t, err)
	require.Len(t, findings, 1)

	f := findings[0]
	assert.Equal(t, "CLOSE", f.Detail("action"))
	assert.Equal(t, 1, f.Detail("recommended_stations"), "never below two active")
	assert.Equal(t, []string{"SCC1"}, f.Detail("idle_stations"))
	assert.Equal(t, 3, f.Detail("current_active_stations"))
	assert.Equal(t, types.SeverityLow, f.Severity)
}

func TestStationAction_NoChange(t *testing.T) {
	eval, store := newEval(t)
	ingestQueue(store, "SCC1", []int{0}, nil)
	ingestQueue(store, "SCC2", []int{0}, nil)

	findings, err := NewStationActionRule().Evaluate(eval, testutil.At(60))
	require.NoError(t, err)
	assert.Empty(t, findings, "two active stations are never closed")
}

func TestTrendOf(t *testing.T) {
	assert.Equal(t, "stable", trendOf([]float64{1, 5}, "up", "down"))
	assert.Equal(t, "up", trendOf([]float64{1, 2, 3}, "up", "down"))
	assert.Equal(t, "down", trendOf([]float64{3, 2, 1}, "up", "down"))
	assert.Equal(t, "stable", trendOf([]float64{1, 4, 3}, "up", "down"))
	assert.Equal(t, "stable", trendOf([]float64{2, 2, 2}, "up", "down"))
}
