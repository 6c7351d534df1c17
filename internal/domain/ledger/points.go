package ledger

import "github.com/perkhub/loyalty-api/internal/domain/order"

// CalculatePoints computes the points an order is worth: the sum of
// weight_kg × quantity over all items, scaled by the account's tier
// multiplier, truncated to whole points. Unpaid or empty orders are
// worth zero; the caller decides whether that means "skip" or "error"
// (for Earn it is a silent skip).
func CalculatePoints(ord *order.Order, multiplier float64) (points int, base float64, items []EarnItem) {
	if ord == nil || !ord.IsPaid() || len(ord.Items) == 0 {
		return 0, 0, nil
	}
	if multiplier <= 0 {
		multiplier = 1
	}

	items = make([]EarnItem, 0, len(ord.Items))
	for _, it := range ord.Items {
		if it.Quantity <= 0 || it.WeightKG <= 0 {
			continue
		}
		line := it.WeightKG * float64(it.Quantity)
		base += line
		items = append(items, EarnItem{
			WeightKG: it.WeightKG,
			Quantity: it.Quantity,
			Points:   line,
		})
	}

	return int(base * multiplier), base, items
}
