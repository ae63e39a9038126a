package coach

import "testing"

func TestGroupSplit(t *testing.T) {
	standard := Group{
		Name:               "Standard",
		LeadCostPercent:    20,
		CoachCostPercent:   50,
		PlatformFeePercent: 30,
	}

	tests := []struct {
		name         string
		group        Group
		amount       int
		coachSourced bool
		internal     bool
		want         RevenueSplit
	}{
		{
			// 50% of 5999 rounds to 3000; the platform takes the remainder so
			// the parts still sum to 5999 exactly
			name:   "standard tier",
			group:  standard,
			amount: 5999,
			want:   RevenueSplit{CoachGets: 3000, LeadCost: 1200, PlatformGets: 1799},
		},
		{
			name:         "coach sourced the lead",
			group:        standard,
			amount:       5999,
			coachSourced: true,
			want:         RevenueSplit{CoachGets: 4200, LeadCost: 0, PlatformGets: 1799},
		},
		{
			name:     "internal coach takes no share",
			group:    standard,
			amount:   5999,
			internal: true,
			want:     RevenueSplit{CoachGets: 0, LeadCost: 0, PlatformGets: 5999},
		},
		{
			name:     "internal and coach sourced",
			group:    standard,
			amount:   5999,
			internal: true,
			// coachSourced is irrelevant for salaried coaches
			coachSourced: true,
			want:         RevenueSplit{CoachGets: 0, LeadCost: 0, PlatformGets: 5999},
		},
		{
			name:   "zero amount",
			group:  standard,
			amount: 0,
			want:   RevenueSplit{},
		},
		{
			name:   "indivisible amount",
			group:  Group{LeadCostPercent: 33, CoachCostPercent: 33, PlatformFeePercent: 34},
			amount: 100,
			want:   RevenueSplit{CoachGets: 33, LeadCost: 33, PlatformGets: 34},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.group.Split(tt.amount, tt.coachSourced, tt.internal)
			if got != tt.want {
				t.Errorf("Split() = %+v, want %+v", got, tt.want)
			}
			if got.Sum() != tt.amount {
				t.Errorf("Split() parts sum to %d, want %d", got.Sum(), tt.amount)
			}
		})
	}
}

// the three parts must sum to the amount for every amount, not just round ones
func TestGroupSplitNeverDrifts(t *testing.T) {
	grp := Group{LeadCostPercent: 20, CoachCostPercent: 50, PlatformFeePercent: 30}

	for amount := 0; amount <= 10000; amount++ {
		if got := grp.Split(amount, false, false); got.Sum() != amount {
			t.Fatalf("Split(%d) parts sum to %d", amount, got.Sum())
		}
		if got := grp.Split(amount, true, false); got.Sum() != amount {
			t.Fatalf("Split(%d, coachSourced) parts sum to %d", amount, got.Sum())
		}
	}
}

func TestRevenueSplitCoachTotal(t *testing.T) {
	rs := RevenueSplit{CoachGets: 3000, LeadCost: 1200, PlatformGets: 1799}
	if got := rs.CoachTotal(); got != 4200 {
		t.Errorf("CoachTotal() = %d, want 4200", got)
	}
}
