// Package worker provides async claim processing for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/review"
)

// Worker scores claims asynchronously from the EventBus.
type Worker struct {
	bus    domain.EventBus
	repo   domain.Repository
	engine domain.ScoringEngine
	review *review.Engine

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = all via wildcard if supported)
	TenantIDs []string

	// WorkerCount is the number of concurrent workers per tenant
	WorkerCount int
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, engine domain.ScoringEngine, reviewEngine *review.Engine) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:    bus,
		repo:   repo,
		engine: engine,
		review: reviewEngine,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins processing messages for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

// startGlobalWorker starts a worker that processes all tenants (for testing/dev).
func (w *Worker) startGlobalWorker() error {
	// Subscribe using a special "global" tenant ID
	// In production, you'd want to subscribe with wildcards or JetStream
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicClaimIngested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startTenantWorker starts workers for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicClaimIngested, func(ctx context.Context, msg *domain.Message) error {
		return w.processClaim(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicClaimIngested,
	)

	return nil
}

// handleMessage handles messages from global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processClaim(ctx, msg.TenantID, msg)
}

// ClaimMessage is the message payload for claim scoring.
type ClaimMessage struct {
	ClaimID  string        `json:"claimId,omitempty"`
	TenantID string        `json:"tenantId,omitempty"`
	TraceID  string        `json:"traceId,omitempty"`
	Claim    *domain.Claim `json:"claim"`
}

// processClaim scores an ingested claim through the full pipeline.
func (w *Worker) processClaim(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	var claimMsg ClaimMessage
	if err := json.Unmarshal(msg.Payload, &claimMsg); err != nil {
		slog.Error("failed to parse claim message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}
	if claimMsg.Claim == nil {
		slog.Error("claim message has no claim payload",
			"message_id", msg.ID,
		)
		return nil
	}

	// Use message tenant if provided
	if claimMsg.TenantID != "" {
		tenantID = claimMsg.TenantID
	}

	traceID := claimMsg.TraceID
	if traceID == "" {
		traceID = msg.ID
	}

	slog.Debug("scoring claim",
		"claim_id", claimMsg.ClaimID,
		"tenant_id", tenantID,
		"trace_id", traceID,
	)

	// 1. Score the claim
	result := w.engine.Score(ctx, claimMsg.Claim)
	result.TenantID = tenantID
	if claimMsg.ClaimID != "" {
		result.ClaimID = claimMsg.ClaimID
	}

	// 2. Evaluate review routing rules against the finished score
	if w.review != nil && w.review.RulesCount() > 0 {
		matches := w.review.Evaluate(ctx, claimMsg.Claim, result)
		if len(matches) > 0 {
			result.ReviewQueue = matches[0].Queue
			reviewPayload, _ := json.Marshal(matches)
			if err := w.bus.Publish(ctx, tenantID, domain.TopicReviewQueued, reviewPayload); err != nil {
				slog.Error("failed to publish review match",
					"claim_id", result.ClaimID,
					"error", err,
				)
			}
		}
	}

	// 3. Persist claim and score for audit
	if w.repo != nil {
		if err := w.repo.SaveClaim(ctx, tenantID, result.ClaimID, claimMsg.Claim); err != nil {
			slog.Error("failed to save claim",
				"claim_id", result.ClaimID,
				"error", err,
			)
		}
		if err := w.repo.SaveScore(ctx, tenantID, result); err != nil {
			slog.Error("failed to save score",
				"claim_id", result.ClaimID,
				"error", err,
			)
		}
	}

	// 4. Publish result to scored topic
	resultPayload, _ := json.Marshal(result)
	if err := w.bus.Publish(ctx, tenantID, domain.TopicClaimScored, resultPayload); err != nil {
		slog.Error("failed to publish score result",
			"claim_id", result.ClaimID,
			"error", err,
		)
	}

	// 5. High-risk claims also go to the alert topic
	if result.RiskLevel == domain.RiskHigh {
		if err := w.bus.Publish(ctx, tenantID, domain.TopicClaimAlert, resultPayload); err != nil {
			slog.Error("failed to publish alert",
				"claim_id", result.ClaimID,
				"error", err,
			)
		}
	}

	slog.Info("claim scored",
		"claim_id", result.ClaimID,
		"tenant_id", tenantID,
		"risk_level", result.RiskLevel,
		"risk_score", result.RiskScore,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
