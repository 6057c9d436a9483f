package domain

import (
	"testing"
	"time"
)

func TestDerivePaymentStatus(t *testing.T) {
	tests := []struct {
		name     string
		tendered int64
		total    int64
		want     PaymentStatus
	}{
		{"nothing tendered", 0, 1000, PaymentStatusPending},
		{"partial", 400, 1000, PaymentStatusPartial},
		{"exact", 1000, 1000, PaymentStatusPaid},
		{"overpaid", 1500, 1000, PaymentStatusPaid},
		{"zero total stays pending", 0, 0, PaymentStatusPending},
		{"tender against zero total is partial", 500, 0, PaymentStatusPartial},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DerivePaymentStatus(tt.tendered, tt.total); got != tt.want {
				t.Errorf("DerivePaymentStatus(%d, %d) = %s, want %s", tt.tendered, tt.total, got, tt.want)
			}
		})
	}
}

func TestDerivePaymentMethod(t *testing.T) {
	tests := []struct {
		name             string
		cash, yape, card int64
		want             PaymentMethod
	}{
		{"no tender", 0, 0, 0, PaymentMethodPending},
		{"cash only", 500, 0, 0, PaymentMethodCash},
		{"yape only", 0, 500, 0, PaymentMethodYape},
		{"card only", 0, 0, 500, PaymentMethodCard},
		{"cash and yape", 500, 500, 0, PaymentMethodMixed},
		{"all three", 100, 100, 100, PaymentMethodMixed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DerivePaymentMethod(tt.cash, tt.yape, tt.card); got != tt.want {
				t.Errorf("DerivePaymentMethod(%d, %d, %d) = %s, want %s", tt.cash, tt.yape, tt.card, got, tt.want)
			}
		})
	}
}

func TestRecomputeTotal(t *testing.T) {
	o := &Order{
		Items: []OrderItem{
			{ID: "a", Name: "Lomo saltado", Price: 2500, Quantity: 2},
			{ID: "b", Name: "Chicha morada", Price: 800, Quantity: 3},
		},
	}
	o.RecomputeTotal()
	if o.Total != 7400 {
		t.Errorf("Total = %d, want 7400", o.Total)
	}

	o.Items = nil
	o.RecomputeTotal()
	if o.Total != 0 {
		t.Errorf("Total after emptying items = %d, want 0", o.Total)
	}
}

func TestCloneIsDeep(t *testing.T) {
	ready := time.Now()
	o := &Order{
		ID:        "o1",
		Items:     []OrderItem{{ID: "a", Name: "Ceviche", Price: 3000, Quantity: 1}},
		ReadyTime: &ready,
	}

	c := o.Clone()
	c.Items[0].Price = 9999
	*c.ReadyTime = ready.Add(time.Hour)

	if o.Items[0].Price != 3000 {
		t.Errorf("mutating clone items changed original price to %d", o.Items[0].Price)
	}
	if !o.ReadyTime.Equal(ready) {
		t.Errorf("mutating clone timestamp changed original to %v", o.ReadyTime)
	}
}
