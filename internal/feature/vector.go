package feature

import (
	"fmt"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/indicator"
)

// Vector is a feature vector in the exact order the models were trained on.
type Vector struct {
	names  []string
	values []float64
}

// Names returns the ordered feature names.
func (v *Vector) Names() []string { return v.names }

// Values returns the ordered feature values.
func (v *Vector) Values() []float64 { return v.values }

// Len returns the number of features.
func (v *Vector) Len() int { return len(v.names) }

// Get returns the value for a named feature, or 0 if absent.
func (v *Vector) Get(name string) float64 {
	for i, n := range v.names {
		if n == name {
			return v.values[i]
		}
	}
	return 0
}

// rawFields returns the categorical fields addressable by WoE table name.
func rawFields(c *domain.Claim) map[string]string {
	return map[string]string{
		"Month":             c.Month,
		"DayOfWeek":         c.DayOfWeek,
		"Make":              c.Make,
		"AccidentArea":      c.AccidentArea,
		"Sex":               c.Sex,
		"MaritalStatus":     c.MaritalStatus,
		"PolicyType":        c.PolicyType,
		"VehiclePrice":      c.VehiclePrice,
		"AgeOfVehicle":      c.AgeOfVehicle,
		"AgeOfPolicyHolder": c.AgeOfPolicyHolder,
		"Days_Policy_Claim": c.DaysPolicyClaim,
	}
}

// Derive computes every feature the pipeline knows how to produce for a
// claim: bucket midpoints, 0/1 business flags, and WoE encodings for each
// field that has a trained table. Unknown categories degrade to the table
// default (midpoints) or 0.0 (WoE); derivation never fails.
func Derive(c *domain.Claim, woe map[string]map[string]float64) map[string]float64 {
	derived := map[string]float64{
		"AgeOfPolicyHolder_Numeric": AgeMidpoint(c.AgeOfPolicyHolder),
		"VehiclePrice_Numeric":      PriceMidpoint(c.VehiclePrice),
		"AgeOfVehicle_Numeric":      VehicleAge(c.AgeOfVehicle),
		"Days_Policy_Claim_Numeric": DaysToClaim(c.DaysPolicyClaim),
	}

	ind := indicator.Evaluate(c)
	derived["Claim_Urgency"] = indicator.Flag(ind.UrgentClaim)
	derived["Luxury_Vehicle"] = indicator.Flag(ind.LuxuryVehicle)
	derived["Young_Driver"] = indicator.Flag(ind.YoungDriver)
	derived["Complex_Policy"] = indicator.Flag(ind.ComplexPolicy)
	derived["Premium_Make"] = indicator.Flag(ind.PremiumMake)

	raw := rawFields(c)
	for field, table := range woe {
		value, ok := raw[field]
		if !ok {
			continue
		}
		// Absent table entry resolves to the neutral 0.0 weight.
		derived[field+"_WoE"] = table[value]
	}

	return derived
}

// Assemble builds the ordered vector matching the trained feature list. Any
// expected feature the claim did not produce is set to 0, never omitted. An
// empty feature list is a malformed metadata artifact and is the only way
// assembly can fail; it is a startup condition, not a per-claim one.
func Assemble(derived map[string]float64, featureNames []string) (*Vector, error) {
	if len(featureNames) == 0 {
		return nil, fmt.Errorf("feature: metadata feature list is empty")
	}

	values := make([]float64, len(featureNames))
	for i, name := range featureNames {
		values[i] = derived[name]
	}

	return &Vector{names: featureNames, values: values}, nil
}
