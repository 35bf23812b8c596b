// Package engine implements the two scoring engines behind the
// domain.ScoringEngine interface: the model-backed engine driven by trained
// artifacts and the self-contained rule-based fallback.
package engine

import (
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/indicator"
)

// Risk tier boundaries over the scorecard total. Lower score = higher risk.
// Fixed policy constants, inclusive on the lower buckets.
const (
	highRiskCeiling   = 580
	mediumRiskCeiling = 620
)

// classifyRisk maps a scorecard total to its tier, confidence label, and
// business recommendation.
func classifyRisk(score int) (level, confidence, recommendation string) {
	switch {
	case score <= highRiskCeiling:
		return domain.RiskHigh, domain.ConfidenceHigh, domain.RecommendInvestigate
	case score <= mediumRiskCeiling:
		return domain.RiskMedium, domain.ConfidenceMedium, domain.RecommendReview
	default:
		return domain.RiskLow, domain.ConfidenceHigh, domain.RecommendStandard
	}
}

// maxRiskFactors caps the narrative explanation length.
const maxRiskFactors = 4

// riskFactors produces the human-readable explanation strings for the
// triggered indicators, in fixed order of investigative priority. When
// nothing triggered but the blended probability is still elevated, a single
// generic message is emitted so reviewers are never shown an unexplained
// high probability.
func riskFactors(ind indicator.Set, fraudProb float64) []string {
	var factors []string

	if ind.UrgentClaim {
		factors = append(factors, "Claim filed very quickly (1-7 days after policy start)")
	}
	if ind.ComplexPolicy {
		factors = append(factors, "All Perils policy (full coverage complexity)")
	}
	if ind.PremiumMake {
		factors = append(factors, "Premium vehicle make")
	}
	if ind.YoungDriver {
		factors = append(factors, "Young driver (higher statistical risk)")
	}
	if ind.LuxuryVehicle {
		factors = append(factors, "High-value vehicle")
	}
	if ind.RuralArea {
		factors = append(factors, "Accident occurred in rural area")
	}

	if len(factors) == 0 && fraudProb > 0.3 {
		factors = append(factors, "Combination of factors produces elevated risk")
	}

	if len(factors) > maxRiskFactors {
		factors = factors[:maxRiskFactors]
	}
	return factors
}
