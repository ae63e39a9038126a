package coach

import "math"

// RevenueSplit is the rupee breakdown of one enrollment amount.
// The three parts always sum exactly to the amount split: the platform part
// is computed as the remainder, so per-part rounding can never drift the
// total (splitting 100 three ways must still hand out exactly 100).
type RevenueSplit struct {
	CoachGets    int `json:"coach_gets"`
	LeadCost     int `json:"lead_cost"`
	PlatformGets int `json:"platform_gets"`
}

// CoachTotal is the full payout to the coach, including the lead cost when
// the coach sourced the lead themselves.
func (rs RevenueSplit) CoachTotal() int { return rs.CoachGets + rs.LeadCost }

func (rs RevenueSplit) Sum() int { return rs.CoachGets + rs.LeadCost + rs.PlatformGets }

// Split computes the revenue split of amount for a coach in this tier.
//
// Internal (salaried) coaches take no share: everything goes to the platform.
// When the coach sourced the lead, the lead-cost part is folded into the
// coach payout instead of being spent on marketing.
func (g Group) Split(amount int, coachSourced, internal bool) RevenueSplit {
	if internal {
		return RevenueSplit{PlatformGets: amount}
	}

	coachGets := roundPct(amount, g.CoachCostPercent)
	leadCost := roundPct(amount, g.LeadCostPercent)
	platformGets := amount - coachGets - leadCost // remainder, never rounded

	if coachSourced {
		coachGets += leadCost
		leadCost = 0
	}
	return RevenueSplit{
		CoachGets:    coachGets,
		LeadCost:     leadCost,
		PlatformGets: platformGets,
	}
}

func roundPct(amount, pct int) int {
	return int(math.Round(float64(amount) * float64(pct) / 100))
}
