package detection

import (
	"time"

	"github.com/potooio/sentinel/internal/types"
)

type barcodeSwitchingRule struct{}

// NewBarcodeSwitchingRule returns a rule that flags a POS scan priced well
// under the catalog price of a different item RFID saw in the scan area.
func NewBarcodeSwitchingRule() types.StationRule {
	return &barcodeSwitchingRule{}
}

func (r *barcodeSwitchingRule) Name() string { return "barcode-switching" }

func (r *barcodeSwitchingRule) Description() string {
	return "Flags POS transactions whose price is far below the catalog price of a different SKU read in the scan area"
}

func (r *barcodeSwitchingRule) Evaluate(eval types.EvalContext, stationID string, at time.Time) ([]types.Finding, error) {
	if eval.Catalog == nil {
		return nil, nil
	}
	window := eval.Store.Correlate(stationID, at, eval.Thresholds.CorrelationRadius)
	if len(window.POS) == 0 || len(window.RFID) == 0 {
		return nil, nil
	}

	for _, posRec := range window.POS {
		pos, ok := posRec.POS()
		if !ok || pos.SKU == "" || pos.Price == nil {
			continue
		}
		for _, rfidRec := range window.RFID {
			rfid, ok := rfidRec.RFID()
			if !ok || !rfid.InScanArea() || rfid.SKU == "" || rfid.SKU == pos.SKU {
				continue
			}
			product, ok := eval.Catalog.Product(rfid.SKU)
			if !ok || product.Price <= 0 {
				continue
			}
			if *pos.Price/product.Price >= eval.Thresholds.PriceRatio {
				continue
			}

			f := newFinding(types.EventBarcodeSwitching, stationID, types.SeverityCritical, 0.9, at)
			f.Details["actual_sku"] = rfid.SKU
			f.Details["scanned_sku"] = pos.SKU
			f.Details["expected_price"] = product.Price
			f.Details["actual_price"] = *pos.Price
			f.Details["price_difference"] = product.Price - *pos.Price
			if pos.CustomerID != "" {
				f.Details["customer_id"] = pos.CustomerID
			}
			return []types.Finding{f}, nil
		}
	}
	return nil, nil
}
