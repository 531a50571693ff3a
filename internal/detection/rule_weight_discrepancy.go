package detection

import (
	"math"
	"time"

	"github.com/potooio/sentinel/internal/types"
)

// weightHighVariancePct is the relative deviation above which a weight
// mismatch is HIGH rather than MEDIUM.
const weightHighVariancePct = 20

type weightDiscrepancyRule struct{}

// NewWeightDiscrepancyRule returns a rule that compares scanned weights with
// the catalog weight of the scanned SKU.
func NewWeightDiscrepancyRule() types.StationRule {
	return &weightDiscrepancyRule{}
}

func (r *weightDiscrepancyRule) Name() string { return "weight-discrepancy" }

func (r *weightDiscrepancyRule) Description() string {
	return "Flags POS transactions whose measured weight differs from the catalog weight by more than the tolerance"
}

func (r *weightDiscrepancyRule) Evaluate(eval types.EvalContext, stationID string, at time.Time) ([]types.Finding, error) {
	if eval.Catalog == nil {
		return nil, nil
	}
	window := eval.Store.Correlate(stationID, at, eval.Thresholds.CorrelationRadius)

	for _, rec := range window.POS {
		pos, ok := rec.POS()
		if !ok || pos.SKU == "" || pos.WeightG == nil {
			continue
		}
		product, ok := eval.Catalog.Product(pos.SKU)
		if !ok || product.WeightG <= 0 {
			continue
		}

		actual := *pos.WeightG
		diff := math.Abs(actual - product.WeightG)
		if diff <= eval.Thresholds.WeightToleranceG {
			continue
		}
		variance := diff * 100 / product.WeightG

		sev := types.SeverityMedium
		if variance > weightHighVariancePct {
			sev = types.SeverityHigh
		}
		f := newFinding(types.EventWeightDiscrepancy, stationID, sev, 0.85, at)
		f.Details["product_sku"] = pos.SKU
		f.Details["expected_weight"] = product.WeightG
		f.Details["actual_weight"] = actual
		f.Details["weight_difference"] = diff
		f.Details["variance_percent"] = round(variance, 2)
		if pos.CustomerID != "" {
			f.Details["customer_id"] = pos.CustomerID
		}
		return []types.Finding{f}, nil
	}
	return nil, nil
}
