package detection

import (
	"time"

	"github.com/potooio/sentinel/internal/types"
)

type scannerAvoidanceRule struct{}

// NewScannerAvoidanceRule returns a rule that flags an item read in the scan
// area by RFID with no POS scan of the same SKU nearby.
func NewScannerAvoidanceRule() types.StationRule {
	return &scannerAvoidanceRule{}
}

func (r *scannerAvoidanceRule) Name() string { return "scanner-avoidance" }

func (r *scannerAvoidanceRule) Description() string {
	return "Flags RFID reads in the scan area that have no matching POS transaction in the correlation window"
}

func (r *scannerAvoidanceRule) Evaluate(eval types.EvalContext, stationID string, at time.Time) ([]types.Finding, error) {
	window := eval.Store.Correlate(stationID, at, eval.Thresholds.CorrelationRadius)
	if len(window.RFID) == 0 {
		return nil, nil
	}

	scanned := make(map[string]struct{}, len(window.POS))
	for _, rec := range window.POS {
		if pos, ok := rec.POS(); ok && pos.SKU != "" {
			scanned[pos.SKU] = struct{}{}
		}
	}

	// Only the first unmatched read is reported.
	for _, rec := range window.RFID {
		rfid, ok := rec.RFID()
		if !ok || !rfid.InScanArea() || rfid.SKU == "" {
			continue
		}
		if _, found := scanned[rfid.SKU]; found {
			continue
		}

		f := newFinding(types.EventScannerAvoidance, stationID, types.SeverityHigh, 0.8, at)
		f.Details["product_sku"] = rfid.SKU
		if customer := firstCustomerID(window.POS); customer != "" {
			f.Details["customer_id"] = customer
		}
		return []types.Finding{f}, nil
	}
	return nil, nil
}
