package domain

import (
	"testing"

	"pgregory.net/rapid"
)

func TestSolesToCents(t *testing.T) {
	tests := []struct {
		name    string
		input   float64
		want    int64
		wantErr bool
	}{
		{"whole amount", 25, 2500, false},
		{"two decimals", 18.50, 1850, false},
		{"one decimal", 9.9, 990, false},
		{"zero", 0, 0, false},
		{"classic float artifact", 1.10, 110, false},
		{"three decimals", 10.555, 0, true},
		{"sub-céntimo", 0.001, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SolesToCents(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("SolesToCents(%v) = %d, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("SolesToCents(%v) returned error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("SolesToCents(%v) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

// Converting céntimos to soles and back must be lossless for any amount
// a real order could carry.
func TestMoneyRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cents := rapid.Int64Range(0, 10_000_000).Draw(t, "cents")

		soles := CentsToSoles(cents)
		back, err := SolesToCents(soles)
		if err != nil {
			t.Fatalf("SolesToCents(%v) returned error: %v", soles, err)
		}
		if back != cents {
			t.Fatalf("round trip changed %d to %d", cents, back)
		}
	})
}
