package engine

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/kestrel/internal/artifact"
	"github.com/opensource-finance/kestrel/internal/domain"
)

// Model version tags surfaced in score results.
const (
	versionProduction = "1.0.0-production"
	versionFallback   = "1.0.0-fallback"
	versionError      = "1.0.0-error"
)

// New selects the scoring engine at startup. If the trained artifact bundle
// is complete and parses, the model engine is used; otherwise the rule-based
// fallback is substituted silently. Callers get a working engine either way,
// never an error.
func New(modelsPath string) domain.ScoringEngine {
	bundle, err := artifact.Load(modelsPath)
	if err != nil {
		slog.Warn("trained artifacts unavailable, scoring with business rules",
			"models_path", modelsPath,
			"error", err,
		)
		return NewFallback()
	}

	slog.Info("model engine initialized",
		"features", len(bundle.Metadata.FeatureNames),
		"auc_logistic", bundle.Metadata.AUCLogistic,
		"auc_ensemble", bundle.Metadata.AUCEnsemble,
	)
	return NewModelEngine(bundle)
}

// ScoreBatch scores a sequence of claims, preserving input order in the
// results. Individual claims cannot fail the batch: a claim that trips the
// degraded path still yields a result.
func ScoreBatch(ctx context.Context, eng domain.ScoringEngine, claims []*domain.Claim) *domain.BatchResult {
	start := time.Now()

	batch := &domain.BatchResult{
		Results: make([]*domain.ScoreResult, 0, len(claims)),
	}
	for _, claim := range claims {
		result := eng.Score(ctx, claim)
		batch.Results = append(batch.Results, result)
		if result.RiskLevel == domain.RiskHigh {
			batch.HighRiskCount++
		}
	}

	batch.TotalProcessed = len(batch.Results)
	batch.ProcessingTimeMs = round2(float64(time.Since(start).Microseconds()) / 1000.0)
	return batch
}

// degradedResult is the controlled per-request error contract: a clearly
// tagged ScoreResult instead of a failure response.
func degradedResult(start time.Time) *domain.ScoreResult {
	var breakdown domain.Breakdown
	breakdown.Add("Error", 0)

	return &domain.ScoreResult{
		ID:               uuid.New().String(),
		FraudProbability: 0.05,
		RiskScore:        650,
		RiskLevel:        domain.RiskError,
		Confidence:       domain.ConfidenceLow,
		KeyRiskFactors:   []string{"Processing error - claim requires manual review"},
		Breakdown:        breakdown,
		Recommendation:   domain.RecommendManual,
		ProcessingTimeMs: round2(float64(time.Since(start).Microseconds()) / 1000.0),
		ModelVersion:     versionError,
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
