package detection

import (
	"sort"
	"time"

	"github.com/potooio/sentinel/internal/types"
)

// Escalation points for inventory variance, in percent.
const (
	inventoryCriticalPct = 20
	inventoryHighPct     = 10
)

type inventoryDiscrepancyRule struct{}

// NewInventoryDiscrepancyRule returns a rule that compares the latest
// inventory snapshot with catalog quantities.
func NewInventoryDiscrepancyRule() types.GlobalRule {
	return &inventoryDiscrepancyRule{}
}

func (r *inventoryDiscrepancyRule) Name() string { return "inventory-discrepancy" }

func (r *inventoryDiscrepancyRule) Description() string {
	return "Flags SKUs whose counted quantity deviates from the catalog quantity"
}

func (r *inventoryDiscrepancyRule) Evaluate(eval types.EvalContext, at time.Time) ([]types.Finding, error) {
	if eval.Catalog == nil {
		return nil, nil
	}
	snapshot, ok := eval.Store.LatestInventory()
	if !ok {
		return nil, nil
	}
	inv, ok := snapshot.Inventory()
	if !ok {
		return nil, nil
	}

	skus := make([]string, 0, len(inv.Quantities))
	for sku := range inv.Quantities {
		skus = append(skus, sku)
	}
	sort.Strings(skus)

	th := eval.Thresholds
	var findings []types.Finding
	for _, sku := range skus {
		product, ok := eval.Catalog.Product(sku)
		if !ok || product.Quantity <= 0 {
			continue
		}
		actual := inv.Quantities[sku]
		variance := InventoryVariance(product.Quantity, actual, th.MinInventoryForVariance)
		if variance <= th.InventoryVariancePct {
			continue
		}

		sev := types.SeverityMedium
		switch {
		case variance > inventoryCriticalPct:
			sev = types.SeverityCritical
		case variance > inventoryHighPct:
			sev = types.SeverityHigh
		}
		name := product.Name
		if name == "" {
			name = "Unknown"
		}

		f := newFinding(types.EventInventory, "", sev, 0.8, at)
		f.Details["SKU"] = sku
		f.Details["product_name"] = name
		f.Details["expected_inventory"] = product.Quantity
		f.Details["actual_inventory"] = actual
		f.Details["difference"] = actual - product.Quantity
		f.Details["variance_percent"] = round(variance, 2)
		findings = append(findings, f)
	}
	return findings, nil
}

// InventoryVariance is the percent deviation of actual from expected. Below
// minForPercent the absolute difference is scaled by ten instead, so that
// low-stock items do not blow up on a small denominator.
func InventoryVariance(expected, actual, minForPercent int) float64 {
	diff := actual - expected
	if diff < 0 {
		diff = -diff
	}
	if expected >= minForPercent {
		return float64(diff) * 100 / float64(expected)
	}
	return float64(diff) * 10
}
