package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func TestSQLiteRepository(t *testing.T) {
	// Create temp database file
	tmpFile, err := os.CreateTemp("", "kestrel-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(tmpPath)

	cfg := domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	}

	repo, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	tenantID := "tenant-001"

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("SaveAndGetClaim", func(t *testing.T) {
		claim := &domain.Claim{
			Month:             "Jan",
			DayOfWeek:         "Monday",
			Make:              "Mercedes",
			AccidentArea:      "Rural",
			Sex:               "Male",
			MaritalStatus:     "Single",
			PolicyType:        "Sport - All Perils",
			VehiclePrice:      "more than 69000",
			AgeOfVehicle:      "new",
			AgeOfPolicyHolder: "18 to 20",
			DaysPolicyClaim:   "1 to 7",
		}
		claimID := claim.Fingerprint()

		if err := repo.SaveClaim(ctx, tenantID, claimID, claim); err != nil {
			t.Fatalf("SaveClaim failed: %v", err)
		}

		retrieved, err := repo.GetClaim(ctx, tenantID, claimID)
		if err != nil {
			t.Fatalf("GetClaim failed: %v", err)
		}

		if retrieved.Make != claim.Make {
			t.Errorf("expected Make %s, got %s", claim.Make, retrieved.Make)
		}
		if retrieved.DaysPolicyClaim != claim.DaysPolicyClaim {
			t.Errorf("expected DaysPolicyClaim %s, got %s", claim.DaysPolicyClaim, retrieved.DaysPolicyClaim)
		}
	})

	t.Run("SaveClaimIdempotent", func(t *testing.T) {
		claim := &domain.Claim{Make: "Honda"}
		claimID := claim.Fingerprint()

		if err := repo.SaveClaim(ctx, tenantID, claimID, claim); err != nil {
			t.Fatalf("SaveClaim failed: %v", err)
		}
		// Same fingerprint again must be a silent no-op
		if err := repo.SaveClaim(ctx, tenantID, claimID, claim); err != nil {
			t.Fatalf("duplicate SaveClaim failed: %v", err)
		}
	})

	t.Run("SaveAndGetScore", func(t *testing.T) {
		var breakdown domain.Breakdown
		breakdown.Add("Base Score", 650)
		breakdown.Add("Claim Timing", -25)

		score := &domain.ScoreResult{
			ID:               "score-001",
			ClaimID:          "fp-abc123",
			FraudProbability: 0.545,
			RiskScore:        567,
			RiskLevel:        domain.RiskHigh,
			Confidence:       domain.ConfidenceHigh,
			KeyRiskFactors:   []string{"Claim filed very quickly (1-7 days after policy start)"},
			Breakdown:        breakdown,
			Recommendation:   domain.RecommendInvestigate,
			ProcessingTimeMs: 1.23,
			ModelVersion:     "1.0.0-fallback",
			Timestamp:        time.Now().UTC().Format(time.RFC3339),
			ReviewQueue:      "siu",
		}

		if err := repo.SaveScore(ctx, tenantID, score); err != nil {
			t.Fatalf("SaveScore failed: %v", err)
		}

		retrieved, err := repo.GetScore(ctx, tenantID, score.ID)
		if err != nil {
			t.Fatalf("GetScore failed: %v", err)
		}

		if retrieved.ID != score.ID {
			t.Errorf("expected ID %s, got %s", score.ID, retrieved.ID)
		}
		if retrieved.TenantID != tenantID {
			t.Errorf("expected TenantID %s, got %s", tenantID, retrieved.TenantID)
		}
		if retrieved.FraudProbability != score.FraudProbability {
			t.Errorf("expected probability %.3f, got %.3f", score.FraudProbability, retrieved.FraudProbability)
		}
		if retrieved.RiskScore != score.RiskScore {
			t.Errorf("expected risk score %d, got %d", score.RiskScore, retrieved.RiskScore)
		}
		if retrieved.RiskLevel != domain.RiskHigh {
			t.Errorf("expected risk level HIGH, got %s", retrieved.RiskLevel)
		}
		if len(retrieved.KeyRiskFactors) != 1 {
			t.Errorf("expected 1 risk factor, got %d", len(retrieved.KeyRiskFactors))
		}
		if pts, ok := retrieved.Breakdown.Get("Claim Timing"); !ok || pts != -25 {
			t.Errorf("expected Claim Timing -25 in breakdown, got %d (present=%v)", pts, ok)
		}
		if retrieved.ReviewQueue != "siu" {
			t.Errorf("expected review queue siu, got %q", retrieved.ReviewQueue)
		}
	})

	t.Run("CountScoresSince", func(t *testing.T) {
		since := time.Now().Add(-1 * time.Hour)

		total, err := repo.CountScoresSince(ctx, tenantID, "", since)
		if err != nil {
			t.Fatalf("CountScoresSince failed: %v", err)
		}
		if total != 1 {
			t.Errorf("expected 1 score, got %d", total)
		}

		high, err := repo.CountScoresSince(ctx, tenantID, domain.RiskHigh, since)
		if err != nil {
			t.Fatalf("CountScoresSince(HIGH) failed: %v", err)
		}
		if high != 1 {
			t.Errorf("expected 1 HIGH score, got %d", high)
		}

		low, err := repo.CountScoresSince(ctx, tenantID, domain.RiskLow, since)
		if err != nil {
			t.Fatalf("CountScoresSince(LOW) failed: %v", err)
		}
		if low != 0 {
			t.Errorf("expected 0 LOW scores, got %d", low)
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		otherTenant := "tenant-002"

		_, err := repo.GetScore(ctx, otherTenant, "score-001")
		if err != ErrNotFound {
			t.Errorf("expected ErrNotFound for different tenant, got: %v", err)
		}
	})

	t.Run("RequiresTenantID", func(t *testing.T) {
		claim := &domain.Claim{}

		if err := repo.SaveClaim(ctx, "", "claim-test", claim); err == nil {
			t.Error("expected error for empty tenantID")
		}
		if _, err := repo.GetScore(ctx, "", "score-001"); err == nil {
			t.Error("expected error for empty tenantID")
		}
		if _, err := repo.CountScoresSince(ctx, "", "", time.Now()); err == nil {
			t.Error("expected error for empty tenantID")
		}
	})

	t.Run("ReviewRuleLifecycle", func(t *testing.T) {
		rule := &domain.ReviewRule{
			ID:         "rule-001",
			Name:       "High risk to SIU",
			Version:    "1",
			Expression: `risk_level == "HIGH"`,
			Queue:      "siu",
			Reason:     "High risk score",
			Enabled:    true,
		}

		if err := repo.SaveReviewRule(ctx, tenantID, rule); err != nil {
			t.Fatalf("SaveReviewRule failed: %v", err)
		}

		retrieved, err := repo.GetReviewRule(ctx, tenantID, rule.ID)
		if err != nil {
			t.Fatalf("GetReviewRule failed: %v", err)
		}
		if retrieved.Queue != "siu" {
			t.Errorf("expected queue siu, got %s", retrieved.Queue)
		}
		if !retrieved.Enabled {
			t.Error("expected rule to be enabled")
		}

		// Upsert on same id+version updates in place
		rule.Queue = "fraud-desk"
		if err := repo.SaveReviewRule(ctx, tenantID, rule); err != nil {
			t.Fatalf("SaveReviewRule upsert failed: %v", err)
		}
		retrieved, err = repo.GetReviewRule(ctx, tenantID, rule.ID)
		if err != nil {
			t.Fatalf("GetReviewRule after upsert failed: %v", err)
		}
		if retrieved.Queue != "fraud-desk" {
			t.Errorf("expected updated queue fraud-desk, got %s", retrieved.Queue)
		}

		rules, err := repo.ListReviewRules(ctx, tenantID)
		if err != nil {
			t.Fatalf("ListReviewRules failed: %v", err)
		}
		if len(rules) != 1 {
			t.Errorf("expected 1 rule, got %d", len(rules))
		}

		// Delete is a soft disable
		if err := repo.DeleteReviewRule(ctx, tenantID, rule.ID); err != nil {
			t.Fatalf("DeleteReviewRule failed: %v", err)
		}
		if _, err := repo.GetReviewRule(ctx, tenantID, rule.ID); err != ErrNotFound {
			t.Errorf("expected ErrNotFound for disabled rule, got: %v", err)
		}
		rules, err = repo.ListReviewRules(ctx, tenantID)
		if err != nil {
			t.Fatalf("ListReviewRules after delete failed: %v", err)
		}
		if len(rules) != 0 {
			t.Errorf("expected 0 active rules, got %d", len(rules))
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := repo.GetClaim(ctx, tenantID, "nonexistent")
		if err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}

		_, err = repo.GetScore(ctx, tenantID, "nonexistent")
		if err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}

		err = repo.DeleteReviewRule(ctx, tenantID, "nonexistent")
		if err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
	})
}

func TestUnsupportedDriver(t *testing.T) {
	cfg := domain.RepositoryConfig{
		Driver: "mysql",
	}

	_, err := New(cfg)
	if err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	repo := &SQLRepository{driver: "postgres"}

	tests := []struct {
		input    string
		expected string
	}{
		{"SELECT * FROM t WHERE id = ?", "SELECT * FROM t WHERE id = $1"},
		{"INSERT INTO t (a, b) VALUES (?, ?)", "INSERT INTO t (a, b) VALUES ($1, $2)"},
		{"SELECT * FROM t", "SELECT * FROM t"},
	}

	for _, tt := range tests {
		result := repo.rebind(tt.input)
		if result != tt.expected {
			t.Errorf("rebind(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}
