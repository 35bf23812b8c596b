package domain

import "context"

// ScoringEngine is the single capability interface both the model-backed
// engine and the rule-based fallback satisfy. Callers never branch on which
// variant is active; the choice is made once at startup from artifact
// availability.
//
// Score never returns an error: per-request failures surface as a clearly
// tagged degraded ScoreResult (risk_level "ERROR"), because for a
// compliance-sensitive system "no answer" is worse than a flagged degraded
// answer.
type ScoringEngine interface {
	Score(ctx context.Context, claim *Claim) *ScoreResult
	Describe() *ModelInfo
}
