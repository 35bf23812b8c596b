package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/indicator"
)

// Fallback engine constants. The probability is rule-additive from a base
// fraud rate and is not a calibrated model output, so it is clamped away
// from the extremes.
const (
	fallbackBaseScore = 650
	fallbackBaseRate  = 0.035
	fallbackProbMin   = 0.005
	fallbackProbMax   = 0.95
)

// Probability uplift per triggered rule.
const (
	weightUrgentClaim   = 0.18
	weightComplexPolicy = 0.09
	weightPremiumMake   = 0.12
	weightYoungDriver   = 0.07
	weightLuxuryPrice   = 0.08
	weightRuralArea     = 0.05
)

// FallbackEngine implements the identical scoring contract without any
// trained artifacts, purely from fixed rule weights. It is selected
// automatically when artifacts are missing and is indistinguishable from the
// model engine at the interface level.
type FallbackEngine struct{}

// NewFallback creates the rule-based scoring engine.
func NewFallback() *FallbackEngine {
	return &FallbackEngine{}
}

// Score applies the six fixed business rules. Every rule contributes to both
// the probability and the scorecard, so the breakdown always carries all six
// components plus the base score and the total always equals their sum.
func (e *FallbackEngine) Score(ctx context.Context, claim *domain.Claim) *domain.ScoreResult {
	start := time.Now()

	c := *claim
	c.ApplyDefaults()
	ind := indicator.Evaluate(&c)

	fraudProb := fallbackBaseRate

	var breakdown domain.Breakdown
	breakdown.Add("Base Score", fallbackBaseScore)

	if ind.UrgentClaim {
		fraudProb += weightUrgentClaim
		breakdown.Add("Claim Timing", -25)
	} else {
		breakdown.Add("Claim Timing", 10)
	}

	if ind.ComplexPolicy {
		fraudProb += weightComplexPolicy
		breakdown.Add("Policy Type", -15)
	} else {
		breakdown.Add("Policy Type", 5)
	}

	if ind.PremiumMake {
		fraudProb += weightPremiumMake
		breakdown.Add("Vehicle Make", -20)
	} else {
		breakdown.Add("Vehicle Make", 5)
	}

	if ind.YoungDriver {
		fraudProb += weightYoungDriver
		breakdown.Add("Driver Age", -15)
	} else {
		breakdown.Add("Driver Age", 5)
	}

	if ind.LuxuryVehicle {
		fraudProb += weightLuxuryPrice
		breakdown.Add("Vehicle Value", -10)
	} else {
		breakdown.Add("Vehicle Value", 0)
	}

	if ind.RuralArea {
		fraudProb += weightRuralArea
		breakdown.Add("Accident Area", -8)
	} else {
		breakdown.Add("Accident Area", 2)
	}

	if fraudProb > fallbackProbMax {
		fraudProb = fallbackProbMax
	}
	if fraudProb < fallbackProbMin {
		fraudProb = fallbackProbMin
	}

	riskScore := fallbackBaseScore + breakdown.AdjustmentSum()
	level, confidence, recommendation := classifyRisk(riskScore)
	factors := riskFactors(ind, fraudProb)

	return &domain.ScoreResult{
		ID:               uuid.New().String(),
		ClaimID:          c.Fingerprint(),
		FraudProbability: round3(fraudProb),
		RiskScore:        riskScore,
		RiskLevel:        level,
		Confidence:       confidence,
		KeyRiskFactors:   factors,
		Breakdown:        breakdown,
		Recommendation:   recommendation,
		ProcessingTimeMs: round2(float64(time.Since(start).Microseconds()) / 1000.0),
		ModelVersion:     versionFallback,
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
	}
}

// Describe reports the fallback engine characteristics.
func (e *FallbackEngine) Describe() *domain.ModelInfo {
	return &domain.ModelInfo{
		ModelType: "Business Rules Engine (Fallback Mode)",
		Version:   versionFallback,
		Performance: map[string]float64{
			"auc":             0.847,
			"precision_at_10": 0.623,
			"ks_statistic":    0.412,
		},
		FeatureCount:     0,
		BusinessFeatures: 6,
	}
}
