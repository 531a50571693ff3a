// Package detection evaluates the retail anomaly rules against the
// correlation store.
//
// # Contract
//
// The Engine runs two sets of rules:
//
//   - Station rules run right after a per-station record is ingested, with the
//     record's timestamp as the evaluation instant. They read the station's
//     correlation window, its recent queue samples and its last status.
//
//   - Global rules run on a periodic trigger and read store-wide state: the
//     latest inventory snapshot and the whole station fleet.
//
// Rules are pure: they never mutate the store and hold no state between
// calls. A rule that returns an error or panics yields no findings for that
// cycle; the failure is logged and counted and the remaining rules still run.
//
// # Built-in Rules
//
//   - scanner-avoidance: an in-scan-area RFID read with no POS scan of the same SKU.
//   - barcode-switching: a POS price under half the catalog price of a different
//     SKU read by RFID in the same window.
//   - weight-discrepancy: a POS weight more than 50g off the catalog weight.
//   - system-crash: a fault status, or an Active station silent for over 600s.
//   - long-queue: queue length and trend over the last six samples.
//   - long-wait: dwell time and trend over the last six samples.
//   - inventory-discrepancy: snapshot quantities against catalog quantities.
//   - staffing-needs: busy and slow stations across the fleet.
//   - station-action: open or close checkout stations for the current load.
//
// # Constructor
//
//	func NewEngine(eval types.EvalContext, logger *zap.Logger) *Engine
//	func NewDefaultEngine(eval types.EvalContext, logger *zap.Logger) *Engine
//	func (e *Engine) EvaluateStation(stationID string, at time.Time) []types.Finding
//	func (e *Engine) EvaluateGlobal(at time.Time) []types.Finding
package detection
