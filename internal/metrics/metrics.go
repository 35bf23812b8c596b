// Package metrics provides business metric aggregation for scored claims.
package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// counterWindow bounds the cache-backed counters to a rolling day.
const counterWindow = 24 * time.Hour

// Service aggregates scoring metrics per tenant.
// Counts are pushed to the cache for cross-node visibility and read back
// from the repository, which is authoritative. Latency is tracked in
// memory per process.
type Service struct {
	repo  domain.Repository
	cache domain.Cache

	mu         sync.Mutex
	scored     int64
	highRisk   int64
	latencySum float64
}

// NewService creates a new metrics service.
func NewService(repo domain.Repository, cache domain.Cache) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
	}
}

// RecordScore records one finished score result.
func (s *Service) RecordScore(ctx context.Context, tenantID string, result *domain.ScoreResult) error {
	if tenantID == "" {
		return fmt.Errorf("tenantID is required")
	}

	s.mu.Lock()
	s.scored++
	s.latencySum += result.ProcessingTimeMs
	if result.RiskLevel == domain.RiskHigh {
		s.highRisk++
	}
	s.mu.Unlock()

	if s.cache != nil {
		if _, err := s.cache.IncrementCounter(ctx, tenantID, "claims_scored", counterWindow); err != nil {
			return err
		}
		if result.RiskLevel == domain.RiskHigh {
			if _, err := s.cache.IncrementCounter(ctx, tenantID, "high_risk", counterWindow); err != nil {
				return err
			}
		}
	}

	return nil
}

// Snapshot is a point-in-time view of a tenant's scoring activity.
type Snapshot struct {
	TotalScored     int64   `json:"total_claims_scored"`
	HighRiskCount   int64   `json:"high_risk_count"`
	HighRiskRate    float64 `json:"high_risk_rate"`
	AvgProcessingMs float64 `json:"avg_processing_ms"`
	Window          string  `json:"window"`
	Source          string  `json:"source"`
}

// Get returns the metric snapshot for a tenant over the last day.
// Falls back to in-process counts when no repository is configured.
func (s *Service) Get(ctx context.Context, tenantID string) (*Snapshot, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenantID is required")
	}

	snap := &Snapshot{
		Window: "24h",
		Source: "memory",
	}

	s.mu.Lock()
	scored := s.scored
	highRisk := s.highRisk
	latencySum := s.latencySum
	s.mu.Unlock()

	snap.TotalScored = scored
	snap.HighRiskCount = highRisk
	if scored > 0 {
		snap.AvgProcessingMs = latencySum / float64(scored)
	}

	if s.repo != nil {
		since := time.Now().Add(-counterWindow)

		total, err := s.repo.CountScoresSince(ctx, tenantID, "", since)
		if err != nil {
			return nil, fmt.Errorf("failed to count scores: %w", err)
		}
		high, err := s.repo.CountScoresSince(ctx, tenantID, domain.RiskHigh, since)
		if err != nil {
			return nil, fmt.Errorf("failed to count high risk scores: %w", err)
		}

		snap.TotalScored = total
		snap.HighRiskCount = high
		snap.Source = "database"
	}

	if snap.TotalScored > 0 {
		snap.HighRiskRate = float64(snap.HighRiskCount) / float64(snap.TotalScored)
	}

	return snap, nil
}
