// Package testutil provides shared test helpers for the sentinel project.
// Import this in test files to avoid duplicating record builders and fixtures.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/potooio/sentinel/internal/types"
)

// Base is a fixed reference instant used across tests.
var Base = time.Date(2025, 8, 13, 16, 0, 0, 0, time.UTC)

// At returns Base shifted by the given number of seconds.
func At(seconds float64) time.Time {
	return Base.Add(time.Duration(seconds * float64(time.Second)))
}

// Float returns a pointer to v, for optional POS fields.
func Float(v float64) *float64 { return &v }

// POS builds an Active POS transaction at the given station.
func POS(station string, ts time.Time, sku string, price, weight *float64) types.Record {
	return types.Record{
		StationID: station,
		Timestamp: ts,
		Status:    types.StatusActive,
		Payload: types.PosTransaction{
			CustomerID: "C001",
			SKU:        sku,
			Price:      price,
			WeightG:    weight,
		},
	}
}

// RFID builds an Active RFID reading.
func RFID(station string, ts time.Time, sku, location string) types.Record {
	return types.Record{
		StationID: station,
		Timestamp: ts,
		Status:    types.StatusActive,
		Payload: types.RfidReading{
			EPC:      "E280" + sku,
			SKU:      sku,
			Location: location,
		},
	}
}

// Queue builds an Active queue sample.
func Queue(station string, ts time.Time, count int, dwell float64) types.Record {
	return types.Record{
		StationID: station,
		Timestamp: ts,
		Status:    types.StatusActive,
		Payload:   types.QueueSample{CustomerCount: count, AverageDwellTime: dwell},
	}
}

// Recognition builds an Active product recognition record.
func Recognition(station string, ts time.Time, sku string, accuracy float64) types.Record {
	return types.Record{
		StationID: station,
		Timestamp: ts,
		Status:    types.StatusActive,
		Payload:   types.ProductRecognition{PredictedSKU: sku, Accuracy: accuracy},
	}
}

// Inventory builds a store-wide inventory snapshot.
func Inventory(ts time.Time, quantities map[string]int) types.Record {
	return types.Record{
		Timestamp: ts,
		Payload:   types.InventorySnapshot{Quantities: quantities},
	}
}

// WithStatus returns a copy of rec with its status replaced.
func WithStatus(rec types.Record, status string) types.Record {
	rec.Status = status
	return rec
}

// WriteFile writes content to name inside a fresh temp dir and returns the path.
func WriteFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// FakeCatalog is an in-memory types.CatalogReader.
type FakeCatalog struct {
	Products  map[string]types.Product
	Customers map[string]types.Customer
}

// NewFakeCatalog builds a catalog from the given products.
func NewFakeCatalog(products ...types.Product) *FakeCatalog {
	c := &FakeCatalog{
		Products:  make(map[string]types.Product),
		Customers: make(map[string]types.Customer),
	}
	for _, p := range products {
		c.Products[p.SKU] = p
	}
	return c
}

func (c *FakeCatalog) Product(sku string) (types.Product, bool) {
	p, ok := c.Products[sku]
	return p, ok
}

func (c *FakeCatalog) Customer(id string) (types.Customer, bool) {
	cu, ok := c.Customers[id]
	return cu, ok
}
