package ledger

import (
	"testing"

	"github.com/google/uuid"

	"github.com/perkhub/loyalty-api/internal/domain/order"
)

func paidOrder(items ...order.Item) *order.Order {
	return &order.Order{
		ID:            uuid.New(),
		CustomerID:    uuid.New(),
		PaymentStatus: order.PaymentStatusPaid,
		Items:         items,
	}
}

func TestCalculatePoints(t *testing.T) {
	tests := []struct {
		name       string
		ord        *order.Order
		multiplier float64
		want       int
		wantBase   float64
	}{
		{
			name:       "single item",
			ord:        paidOrder(order.Item{WeightKG: 25, Quantity: 2}),
			multiplier: 1,
			want:       50,
			wantBase:   50,
		},
		{
			name: "multiple items summed",
			ord: paidOrder(
				order.Item{WeightKG: 10, Quantity: 1},
				order.Item{WeightKG: 2.5, Quantity: 4},
			),
			multiplier: 1,
			want:       20,
			wantBase:   20,
		},
		{
			name:       "fractional result truncates",
			ord:        paidOrder(order.Item{WeightKG: 0.9, Quantity: 1}),
			multiplier: 1,
			want:       0,
			wantBase:   0.9,
		},
		{
			name:       "multiplier applied before truncation",
			ord:        paidOrder(order.Item{WeightKG: 10, Quantity: 1}),
			multiplier: 1.25,
			want:       12,
			wantBase:   10,
		},
		{
			name:       "zero multiplier falls back to 1",
			ord:        paidOrder(order.Item{WeightKG: 10, Quantity: 1}),
			multiplier: 0,
			want:       10,
			wantBase:   10,
		},
		{
			name: "non-positive items skipped",
			ord: paidOrder(
				order.Item{WeightKG: 5, Quantity: 2},
				order.Item{WeightKG: -1, Quantity: 3},
				order.Item{WeightKG: 4, Quantity: 0},
			),
			multiplier: 1,
			want:       10,
			wantBase:   10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, base, _ := CalculatePoints(tt.ord, tt.multiplier)
			if got != tt.want {
				t.Errorf("points = %d, want %d", got, tt.want)
			}
			if base != tt.wantBase {
				t.Errorf("base = %v, want %v", base, tt.wantBase)
			}
		})
	}
}

func TestCalculatePointsUnpaidOrder(t *testing.T) {
	ord := paidOrder(order.Item{WeightKG: 25, Quantity: 2})
	ord.PaymentStatus = order.PaymentStatusPending

	if points, _, _ := CalculatePoints(ord, 1); points != 0 {
		t.Fatalf("expected 0 points for unpaid order, got %d", points)
	}
}

func TestCalculatePointsNilAndEmpty(t *testing.T) {
	if points, _, _ := CalculatePoints(nil, 1); points != 0 {
		t.Fatalf("expected 0 points for nil order, got %d", points)
	}
	if points, _, _ := CalculatePoints(paidOrder(), 1); points != 0 {
		t.Fatalf("expected 0 points for empty order, got %d", points)
	}
}

func TestCalculatePointsItemBreakdown(t *testing.T) {
	ord := paidOrder(
		order.Item{WeightKG: 3, Quantity: 2},
		order.Item{WeightKG: 1.5, Quantity: 1},
	)

	_, _, items := CalculatePoints(ord, 1)
	if len(items) != 2 {
		t.Fatalf("expected 2 breakdown items, got %d", len(items))
	}
	if items[0].Points != 6 || items[1].Points != 1.5 {
		t.Fatalf("unexpected line points: %v, %v", items[0].Points, items[1].Points)
	}
}
