package engine

import (
	"context"
	"math"
	"testing"

	"github.com/opensource-finance/kestrel/internal/artifact"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/indicator"
	"github.com/opensource-finance/kestrel/internal/model"
	"github.com/opensource-finance/kestrel/internal/scorecard"
)

// Five of the six rules trigger: all but the luxury-price one.
func highRiskClaim() *domain.Claim {
	return &domain.Claim{
		Make:              "Mercedes",
		AccidentArea:      "Rural",
		PolicyType:        "Sport - All Perils",
		VehiclePrice:      "20000 to 29000",
		AgeOfPolicyHolder: "18 to 20",
		DaysPolicyClaim:   "1 to 7",
	}
}

func TestFallbackScore(t *testing.T) {
	eng := NewFallback()
	ctx := context.Background()

	t.Run("HighRiskClaim", func(t *testing.T) {
		result := eng.Score(ctx, highRiskClaim())

		if math.Abs(result.FraudProbability-0.545) > 1e-9 {
			t.Errorf("expected probability 0.545, got %v", result.FraudProbability)
		}
		if result.RiskScore != 567 {
			t.Errorf("expected risk score 567, got %d", result.RiskScore)
		}
		if result.RiskLevel != domain.RiskHigh {
			t.Errorf("expected HIGH, got %s", result.RiskLevel)
		}
		if result.Recommendation != domain.RecommendInvestigate {
			t.Errorf("unexpected recommendation: %s", result.Recommendation)
		}
		if result.ModelVersion != "1.0.0-fallback" {
			t.Errorf("expected fallback model version, got %s", result.ModelVersion)
		}
		if result.ClaimID == "" {
			t.Error("expected claim fingerprint to be set")
		}
		// Narrative explanation is capped at four factors
		if len(result.KeyRiskFactors) != 4 {
			t.Errorf("expected 4 risk factors, got %d", len(result.KeyRiskFactors))
		}
	})

	t.Run("EmptyClaimScoresLow", func(t *testing.T) {
		result := eng.Score(ctx, &domain.Claim{})

		if result.FraudProbability != 0.035 {
			t.Errorf("expected base rate 0.035, got %v", result.FraudProbability)
		}
		if result.RiskScore != 677 {
			t.Errorf("expected risk score 677, got %d", result.RiskScore)
		}
		if result.RiskLevel != domain.RiskLow {
			t.Errorf("expected LOW, got %s", result.RiskLevel)
		}
		if len(result.KeyRiskFactors) != 0 {
			t.Errorf("expected no risk factors, got %v", result.KeyRiskFactors)
		}
	})

	t.Run("AllRulesTriggered", func(t *testing.T) {
		claim := highRiskClaim()
		claim.VehiclePrice = "more than 69000"

		result := eng.Score(ctx, claim)

		if math.Abs(result.FraudProbability-0.625) > 1e-9 {
			t.Errorf("expected probability 0.625, got %v", result.FraudProbability)
		}
		if result.RiskScore != 557 {
			t.Errorf("expected risk score 557, got %d", result.RiskScore)
		}
		if result.RiskLevel != domain.RiskHigh {
			t.Errorf("expected HIGH, got %s", result.RiskLevel)
		}
	})

	t.Run("BreakdownAlwaysComplete", func(t *testing.T) {
		result := eng.Score(ctx, &domain.Claim{})

		// Base plus all six rule components, in fixed order
		want := []string{
			"Base Score", "Claim Timing", "Policy Type", "Vehicle Make",
			"Driver Age", "Vehicle Value", "Accident Area",
		}
		entries := result.Breakdown.Entries()
		if len(entries) != len(want) {
			t.Fatalf("expected %d breakdown entries, got %d", len(want), len(entries))
		}
		for i, name := range want {
			if entries[i].Component != name {
				t.Errorf("entry %d: expected %s, got %s", i, name, entries[i].Component)
			}
		}

		base, _ := result.Breakdown.Get("Base Score")
		if base+result.Breakdown.AdjustmentSum() != result.RiskScore {
			t.Error("breakdown does not sum to the risk score")
		}
	})

	t.Run("Deterministic", func(t *testing.T) {
		a := eng.Score(ctx, highRiskClaim())
		b := eng.Score(ctx, highRiskClaim())

		if a.ClaimID != b.ClaimID {
			t.Error("expected identical fingerprints for identical claims")
		}
		if a.FraudProbability != b.FraudProbability || a.RiskScore != b.RiskScore {
			t.Error("expected identical scores for identical claims")
		}
	})

	t.Run("Describe", func(t *testing.T) {
		info := eng.Describe()
		if info.Version != "1.0.0-fallback" {
			t.Errorf("expected fallback version, got %s", info.Version)
		}
		if info.BusinessFeatures != 6 {
			t.Errorf("expected 6 business features, got %d", info.BusinessFeatures)
		}
	})
}

// testBundle builds a deliberately tiny artifact bundle with hand-checkable
// arithmetic: a single Young_Driver feature driving both models.
func testBundle() *artifact.Bundle {
	card := &scorecard.Card{
		Rows:       []scorecard.Row{{Variable: "Young_Driver", Points: -100}},
		BasePoints: 650,
	}
	return &artifact.Bundle{
		Logistic: &model.Logistic{
			Coefficients: map[string]float64{"Young_Driver": 2.0},
			Intercept:    -2.0,
		},
		Ensemble: &model.Ensemble{
			Trees: []model.Tree{{Nodes: []model.TreeNode{
				{Feature: "Young_Driver", Threshold: 0.5, Left: 1, Right: 2},
				{Leaf: true, Value: -2},
				{Leaf: true, Value: 0},
			}}},
		},
		WoE:       map[string]map[string]float64{},
		Scorecard: card,
		Metadata: &artifact.Metadata{
			FeatureNames: []string{"Young_Driver"},
		},
	}
}

func TestModelEngineScore(t *testing.T) {
	eng := NewModelEngine(testBundle())
	ctx := context.Background()

	t.Run("YoungDriver", func(t *testing.T) {
		claim := &domain.Claim{AgeOfPolicyHolder: "18 to 20"}
		result := eng.Score(ctx, claim)

		// Both models land on logit 0: blend = 0.7*0.5 + 0.3*0.5
		if result.FraudProbability != 0.5 {
			t.Errorf("expected probability 0.5, got %v", result.FraudProbability)
		}
		if result.RiskScore != 550 {
			t.Errorf("expected risk score 550, got %d", result.RiskScore)
		}
		if result.RiskLevel != domain.RiskHigh {
			t.Errorf("expected HIGH, got %s", result.RiskLevel)
		}
		if result.ModelVersion != "1.0.0-production" {
			t.Errorf("expected production version, got %s", result.ModelVersion)
		}
	})

	t.Run("DefaultClaim", func(t *testing.T) {
		result := eng.Score(ctx, &domain.Claim{})

		// Both models on logit -2: sigmoid(-2) = 0.1192, rounded to 0.119
		if result.FraudProbability != 0.119 {
			t.Errorf("expected probability 0.119, got %v", result.FraudProbability)
		}
		if result.RiskScore != 650 {
			t.Errorf("expected risk score 650, got %d", result.RiskScore)
		}
		if result.RiskLevel != domain.RiskLow {
			t.Errorf("expected LOW, got %s", result.RiskLevel)
		}
	})

	t.Run("DegradedPath", func(t *testing.T) {
		bundle := testBundle()
		// No coefficient matches the feature list: per-claim prediction
		// fails and must come back as a tagged result, never an error.
		bundle.Logistic.Coefficients = map[string]float64{"other": 1}
		broken := NewModelEngine(bundle)

		result := broken.Score(ctx, &domain.Claim{})

		if result.RiskLevel != domain.RiskError {
			t.Errorf("expected ERROR risk level, got %s", result.RiskLevel)
		}
		if result.ModelVersion != "1.0.0-error" {
			t.Errorf("expected error version, got %s", result.ModelVersion)
		}
		if result.FraudProbability != 0.05 || result.RiskScore != 650 {
			t.Errorf("unexpected degraded values: %v / %d", result.FraudProbability, result.RiskScore)
		}
		if result.Recommendation != domain.RecommendManual {
			t.Errorf("unexpected recommendation: %s", result.Recommendation)
		}
	})

	t.Run("Describe", func(t *testing.T) {
		info := eng.Describe()
		if info.FeatureCount != 1 {
			t.Errorf("expected 1 feature, got %d", info.FeatureCount)
		}
		if info.BusinessFeatures != 1 {
			t.Errorf("expected 1 business feature, got %d", info.BusinessFeatures)
		}
	})
}

func TestNewFallsBackWithoutArtifacts(t *testing.T) {
	eng := New(t.TempDir())

	if _, ok := eng.(*FallbackEngine); !ok {
		t.Fatalf("expected fallback engine for empty models dir, got %T", eng)
	}
}

func TestScoreBatch(t *testing.T) {
	eng := NewFallback()
	ctx := context.Background()

	claims := []*domain.Claim{
		highRiskClaim(),
		{},
		highRiskClaim(),
	}

	batch := ScoreBatch(ctx, eng, claims)

	if batch.TotalProcessed != 3 {
		t.Errorf("expected 3 processed, got %d", batch.TotalProcessed)
	}
	if batch.HighRiskCount != 2 {
		t.Errorf("expected 2 high risk, got %d", batch.HighRiskCount)
	}
	if len(batch.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(batch.Results))
	}
	// Input order is preserved
	if batch.Results[0].RiskLevel != domain.RiskHigh ||
		batch.Results[1].RiskLevel != domain.RiskLow ||
		batch.Results[2].RiskLevel != domain.RiskHigh {
		t.Error("batch results out of order")
	}
}

func TestClassifyRisk(t *testing.T) {
	tests := []struct {
		score int
		level string
	}{
		{400, domain.RiskHigh},
		{580, domain.RiskHigh},
		{581, domain.RiskMedium},
		{620, domain.RiskMedium},
		{621, domain.RiskLow},
		{700, domain.RiskLow},
	}

	for _, tt := range tests {
		level, _, _ := classifyRisk(tt.score)
		if level != tt.level {
			t.Errorf("classifyRisk(%d) = %s, want %s", tt.score, level, tt.level)
		}
	}
}

func TestRiskFactors(t *testing.T) {
	t.Run("ElevatedWithoutIndicators", func(t *testing.T) {
		factors := riskFactors(indicator.Set{}, 0.45)
		if len(factors) != 1 {
			t.Fatalf("expected single generic factor, got %d", len(factors))
		}
	})

	t.Run("QuietWithoutIndicators", func(t *testing.T) {
		factors := riskFactors(indicator.Set{}, 0.1)
		if len(factors) != 0 {
			t.Errorf("expected no factors, got %v", factors)
		}
	})

	t.Run("CappedAtFour", func(t *testing.T) {
		all := indicator.Set{
			UrgentClaim: true, ComplexPolicy: true, PremiumMake: true,
			YoungDriver: true, LuxuryVehicle: true, RuralArea: true,
		}
		factors := riskFactors(all, 0.6)
		if len(factors) != 4 {
			t.Errorf("expected cap of 4 factors, got %d", len(factors))
		}
	})
}
