package domain

import "testing"

func TestValidateChannelFields(t *testing.T) {
	tests := []struct {
		name       string
		order      Order
		wantFields []string
	}{
		{
			name:  "local requires nothing",
			order: Order{Channel: ChannelLocal},
		},
		{
			name:       "delivery requires name and phone",
			order:      Order{Channel: ChannelDelivery},
			wantFields: []string{FieldCustomerName, FieldCustomerPhone},
		},
		{
			name:       "delivery with name still needs phone",
			order:      Order{Channel: ChannelDelivery, CustomerName: "Rosa Quispe"},
			wantFields: []string{FieldCustomerPhone},
		},
		{
			name:  "delivery without address is valid",
			order: Order{Channel: ChannelDelivery, CustomerName: "Rosa Quispe", CustomerPhone: "987654321"},
		},
		{
			name:       "takeaway requires name only",
			order:      Order{Channel: ChannelTakeaway},
			wantFields: []string{FieldCustomerName},
		},
		{
			name:       "whitespace does not satisfy a required field",
			order:      Order{Channel: ChannelTakeaway, CustomerName: "   "},
			wantFields: []string{FieldCustomerName},
		},
		{
			name:       "unknown channel gets the strictest rule",
			order:      Order{Channel: Channel("drive_thru")},
			wantFields: []string{FieldCustomerName, FieldCustomerPhone},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateChannelFields(&tt.order)
			if len(got) != len(tt.wantFields) {
				t.Fatalf("got %d violations (%v), want %d", len(got), got, len(tt.wantFields))
			}
			for i, f := range tt.wantFields {
				if got[i].Field != f {
					t.Errorf("violation %d names field %s, want %s", i, got[i].Field, f)
				}
			}
		})
	}
}

func TestApplyLocalNameDefault(t *testing.T) {
	tests := []struct {
		name  string
		order Order
		want  string
	}{
		{"table number present", Order{Channel: ChannelLocal, TableNumber: "7"}, "Mesa 7"},
		{"no table number", Order{Channel: ChannelLocal}, "Cliente Local"},
		{"existing name kept", Order{Channel: ChannelLocal, CustomerName: "Juan", TableNumber: "7"}, "Juan"},
		{"delivery never defaulted", Order{Channel: ChannelDelivery}, ""},
		{"takeaway never defaulted", Order{Channel: ChannelTakeaway, TableNumber: "3"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ApplyLocalNameDefault(&tt.order)
			if tt.order.CustomerName != tt.want {
				t.Errorf("CustomerName = %q, want %q", tt.order.CustomerName, tt.want)
			}
		})
	}
}

func TestPaymentUpfront(t *testing.T) {
	if PaymentUpfront(ChannelLocal) {
		t.Error("local must not pay upfront")
	}
	if !PaymentUpfront(ChannelDelivery) {
		t.Error("delivery must pay upfront")
	}
	if !PaymentUpfront(ChannelTakeaway) {
		t.Error("takeaway must pay upfront")
	}
}

func TestValidateItems(t *testing.T) {
	tests := []struct {
		name       string
		items      []OrderItem
		violations int
	}{
		{"valid items", []OrderItem{{Name: "Ceviche", Price: 3000, Quantity: 1}}, 0},
		{"free item allowed", []OrderItem{{Name: "Cortesía", Price: 0, Quantity: 1}}, 0},
		{"missing name", []OrderItem{{Price: 3000, Quantity: 1}}, 1},
		{"negative price", []OrderItem{{Name: "Ceviche", Price: -100, Quantity: 1}}, 1},
		{"zero quantity", []OrderItem{{Name: "Ceviche", Price: 3000, Quantity: 0}}, 1},
		{"everything wrong", []OrderItem{{Price: -1, Quantity: 0}}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateItems(tt.items)
			if len(got) != tt.violations {
				t.Errorf("got %d violations (%v), want %d", len(got), got, tt.violations)
			}
		})
	}
}
