package types

import (
	"time"
)

// DatasetKind identifies one of the upstream telemetry feeds.
type DatasetKind string

const (
	DatasetPOS         DatasetKind = "POS_Transactions"
	DatasetRFID        DatasetKind = "RFID_data"
	DatasetQueue       DatasetKind = "Queue_monitor"
	DatasetRecognition DatasetKind = "Product_recognism"
	DatasetInventory   DatasetKind = "Current_inventory_data"
)

// DatasetKinds lists every accepted dataset kind in a stable order.
var DatasetKinds = []DatasetKind{
	DatasetPOS,
	DatasetRFID,
	DatasetQueue,
	DatasetRecognition,
	DatasetInventory,
}

// RecordType is the discriminator of a normalized Record.
type RecordType string

const (
	RecordPOS         RecordType = "pos_transaction"
	RecordRFID        RecordType = "rfid_reading"
	RecordQueue       RecordType = "queue_monitoring"
	RecordRecognition RecordType = "product_recognition"
	RecordInventory   RecordType = "inventory_snapshot"
)

// StationRecordTypes are the record types kept in per-station buckets,
// in bucket index order.
var StationRecordTypes = []RecordType{
	RecordPOS,
	RecordRFID,
	RecordQueue,
	RecordRecognition,
}

// Location values reported by RFID readers.
const (
	LocationInScanArea = "IN_SCAN_AREA"
)

// Station status labels with special meaning to the rules.
const (
	StatusActive  = "Active"
	StatusUnknown = "Unknown"
)

// Record is the canonical, normalized form of one telemetry record.
//
// Payload is exactly one of PosTransaction, RfidReading, QueueSample,
// ProductRecognition or InventorySnapshot. StationID is empty only for
// inventory snapshots, which are global.
type Record struct {
	StationID string
	Timestamp time.Time
	Status    string
	Payload   Payload
}

// Payload is implemented by the five record variants.
type Payload interface {
	RecordType() RecordType
}

// Type returns the record's discriminator, or "" when the payload is missing.
func (r Record) Type() RecordType {
	if r.Payload == nil {
		return ""
	}
	return r.Payload.RecordType()
}

// PosTransaction is a point-of-sale scan. Price and WeightG are nil when the
// source did not report them.
type PosTransaction struct {
	CustomerID  string
	SKU         string
	Barcode     string
	ProductName string
	Price       *float64
	WeightG     *float64
}

func (PosTransaction) RecordType() RecordType { return RecordPOS }

// RfidReading is a tag read. SKU is empty when the EPC did not resolve.
type RfidReading struct {
	EPC      string
	SKU      string
	Location string
}

func (RfidReading) RecordType() RecordType { return RecordRFID }

// InScanArea reports whether the tag was read inside the scanner zone.
func (r RfidReading) InScanArea() bool { return r.Location == LocationInScanArea }

// QueueSample is one queue-camera observation.
type QueueSample struct {
	CustomerCount    int
	AverageDwellTime float64
}

func (QueueSample) RecordType() RecordType { return RecordQueue }

// ProductRecognition is a vision model inference at a station.
type ProductRecognition struct {
	PredictedSKU string
	Accuracy     float64
}

func (ProductRecognition) RecordType() RecordType { return RecordRecognition }

// InventorySnapshot is a store-wide count of on-hand quantities by SKU.
type InventorySnapshot struct {
	Quantities map[string]int
}

func (InventorySnapshot) RecordType() RecordType { return RecordInventory }

// POS returns the payload as a PosTransaction.
func (r Record) POS() (PosTransaction, bool) {
	p, ok := r.Payload.(PosTransaction)
	return p, ok
}

// RFID returns the payload as an RfidReading.
func (r Record) RFID() (RfidReading, bool) {
	p, ok := r.Payload.(RfidReading)
	return p, ok
}

// Queue returns the payload as a QueueSample.
func (r Record) Queue() (QueueSample, bool) {
	p, ok := r.Payload.(QueueSample)
	return p, ok
}

// Recognition returns the payload as a ProductRecognition.
func (r Record) Recognition() (ProductRecognition, bool) {
	p, ok := r.Payload.(ProductRecognition)
	return p, ok
}

// Inventory returns the payload as an InventorySnapshot.
func (r Record) Inventory() (InventorySnapshot, bool) {
	p, ok := r.Payload.(InventorySnapshot)
	return p, ok
}

// Correlation is the result of a time-proximity join for one station.
type Correlation struct {
	POS         []Record
	RFID        []Record
	Queue       []Record
	Recognition []Record
}

// Empty reports whether no bucket contributed any record.
func (c Correlation) Empty() bool {
	return len(c.POS) == 0 && len(c.RFID) == 0 && len(c.Queue) == 0 && len(c.Recognition) == 0
}

// StationState is the last-known health of a station.
type StationState struct {
	LastStatus   string
	LastActivity time.Time
}
