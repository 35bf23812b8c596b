// Package indicator evaluates the fixed business-rule predicates shared by
// the feature pipeline, the risk factor explainer, and the fallback engine.
// Keeping the predicates in one place means the statistical path and the
// narrative path cannot drift apart, which matters for fully auditable
// decisions.
package indicator

import (
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Premium vehicle makes treated as a fraud indicator.
var premiumMakes = map[string]bool{
	"BMW":      true,
	"Mercedes": true,
	"Audi":     true,
}

// High-value price buckets.
var luxuryPrices = map[string]bool{
	"60000 to 69000":  true,
	"more than 69000": true,
}

// Young driver age buckets.
var youngDriverAges = map[string]bool{
	"18 to 20": true,
	"21 to 25": true,
}

// Set holds one evaluation of every business predicate for a claim.
type Set struct {
	UrgentClaim   bool // claim filed 1-7 days after policy start
	ComplexPolicy bool // policy covers All Perils
	PremiumMake   bool // BMW / Mercedes / Audi
	YoungDriver   bool // policy holder 18-25
	LuxuryVehicle bool // vehicle priced 60k+
	RuralArea     bool // accident in a rural area
}

// Evaluate computes all predicates for a claim. Missing or out-of-enumeration
// fields simply leave the corresponding predicate false.
func Evaluate(c *domain.Claim) Set {
	return Set{
		UrgentClaim:   c.DaysPolicyClaim == "1 to 7",
		ComplexPolicy: strings.Contains(c.PolicyType, "All Perils"),
		PremiumMake:   premiumMakes[c.Make],
		YoungDriver:   youngDriverAges[c.AgeOfPolicyHolder],
		LuxuryVehicle: luxuryPrices[c.VehiclePrice],
		RuralArea:     c.AccidentArea == "Rural",
	}
}

// Flag converts a predicate to the 0/1 feature encoding.
func Flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Count returns how many predicates triggered.
func (s Set) Count() int {
	n := 0
	for _, b := range []bool{
		s.UrgentClaim, s.ComplexPolicy, s.PremiumMake,
		s.YoungDriver, s.LuxuryVehicle, s.RuralArea,
	} {
		if b {
			n++
		}
	}
	return n
}
