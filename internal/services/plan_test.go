package services

import (
	"testing"

	"grana/internal/core"
)

func TestDistributeAnnual(t *testing.T) {
	monthly := DistributeAnnual(core.Money{Cents: 960000})
	for i, m := range monthly {
		if m.Cents != 80000 {
			t.Fatalf("month %d = %d, want 80000", i+1, m.Cents)
		}
	}

	// Indivisible annual: each month rounds independently, remainder
	// is not corrected.
	monthly = DistributeAnnual(core.Money{Cents: 100000})
	for i, m := range monthly {
		if m.Cents != 8333 {
			t.Fatalf("month %d = %d, want 8333", i+1, m.Cents)
		}
	}
}

func TestCheckDistribution(t *testing.T) {
	cat := core.PlanCategory{
		Name:   "Mercado",
		Type:   core.CategoryExpense,
		Year:   2025,
		Annual: core.Money{Cents: 960000},
	}

	tests := []struct {
		name         string
		monthlyCents int64
		lastCents    int64
		wantErr      bool
	}{
		{"exact", 80000, 80000, false},
		{"one cent under", 80000, 79999, false},
		{"two cents under", 80000, 79998, true},
		{"way off", 80000, 50000, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := cat
			for i := range c.Monthly {
				c.Monthly[i] = core.Money{Cents: tt.monthlyCents}
			}
			c.Monthly[11] = core.Money{Cents: tt.lastCents}

			err := CheckDistribution(c)
			if tt.wantErr && err != ErrDistributionMismatch {
				t.Fatalf("expected ErrDistributionMismatch, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
