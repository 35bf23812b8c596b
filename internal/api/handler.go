package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/metrics"
	"github.com/opensource-finance/kestrel/internal/review"
)

// scoreCacheTTL bounds memoized results. Scoring is deterministic per model
// version, so a generous TTL is safe.
const scoreCacheTTL = time.Hour

// Handler holds dependencies for API handlers.
type Handler struct {
	repo    domain.Repository
	cache   domain.Cache
	bus     domain.EventBus
	engine  domain.ScoringEngine
	review  *review.Engine
	metrics *metrics.Service
	version string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine domain.ScoringEngine, reviewEngine *review.Engine, metricsSvc *metrics.Service, version string) *Handler {
	return &Handler{
		repo:    repo,
		cache:   cache,
		bus:     bus,
		engine:  engine,
		review:  reviewEngine,
		metrics: metricsSvc,
		version: version,
	}
}

// Predict handles POST /predict requests.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var claim domain.Claim
	if err := json.NewDecoder(r.Body).Decode(&claim); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	slog.Info("processing fraud prediction",
		"tenant_id", tenantID,
		"make", claim.Make,
		"policy_type", claim.PolicyType,
	)

	result := h.scoreClaim(r.Context(), tenantID, &claim)

	slog.Info("fraud prediction completed",
		"tenant_id", tenantID,
		"risk_level", result.RiskLevel,
		"risk_score", result.RiskScore,
	)

	writeJSON(w, http.StatusOK, result)
}

// BatchRequest is the request body for POST /predict/batch.
type BatchRequest struct {
	Claims []*domain.Claim `json:"claims"`
}

// PredictBatch handles POST /predict/batch requests. Results preserve the
// order of submitted claims; a claim that fails to score yields a degraded
// result in its slot rather than failing the batch.
func (h *Handler) PredictBatch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if len(req.Claims) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "claims must not be empty",
		})
		return
	}

	batch := &domain.BatchResult{
		Results: make([]*domain.ScoreResult, 0, len(req.Claims)),
	}
	for _, claim := range req.Claims {
		result := h.scoreClaim(ctx, tenantID, claim)
		batch.Results = append(batch.Results, result)
		if result.RiskLevel == domain.RiskHigh {
			batch.HighRiskCount++
		}
	}
	batch.TotalProcessed = len(batch.Results)
	batch.ProcessingTimeMs = float64(time.Since(start).Microseconds()) / 1000.0

	slog.Info("batch prediction completed",
		"tenant_id", tenantID,
		"total", batch.TotalProcessed,
		"high_risk", batch.HighRiskCount,
	)

	writeJSON(w, http.StatusOK, batch)
}

// scoreClaim runs the full scoring pipeline for one claim: memoization
// lookup, engine scoring, review routing, persistence, event publication
// and metric recording.
func (h *Handler) scoreClaim(ctx context.Context, tenantID string, claim *domain.Claim) *domain.ScoreResult {
	fingerprint := claim.Fingerprint()

	if h.cache != nil {
		if cached, err := h.cache.GetScore(ctx, tenantID, fingerprint); err == nil && cached != nil {
			return cached
		}
	}

	result := h.engine.Score(ctx, claim)
	result.TenantID = tenantID

	if h.review != nil && h.review.RulesCount() > 0 {
		matches := h.review.Evaluate(ctx, claim, result)
		if len(matches) > 0 {
			result.ReviewQueue = matches[0].Queue
			if h.bus != nil {
				payload, _ := json.Marshal(matches)
				if err := h.bus.Publish(ctx, tenantID, domain.TopicReviewQueued, payload); err != nil {
					slog.Error("failed to publish review match", "error", err)
				}
			}
		}
	}

	if h.repo != nil {
		if err := h.repo.SaveClaim(ctx, tenantID, result.ClaimID, claim); err != nil {
			slog.Error("failed to save claim", "error", err)
		}
		if err := h.repo.SaveScore(ctx, tenantID, result); err != nil {
			slog.Error("failed to save score", "error", err)
		}
	}

	if h.bus != nil {
		payload, _ := json.Marshal(result)
		if err := h.bus.Publish(ctx, tenantID, domain.TopicClaimScored, payload); err != nil {
			slog.Error("failed to publish score result", "error", err)
		}
		if result.RiskLevel == domain.RiskHigh {
			if err := h.bus.Publish(ctx, tenantID, domain.TopicClaimAlert, payload); err != nil {
				slog.Error("failed to publish alert", "error", err)
			}
		}
	}

	if h.metrics != nil {
		if err := h.metrics.RecordScore(ctx, tenantID, result); err != nil {
			slog.Error("failed to record metrics", "error", err)
		}
	}

	if h.cache != nil {
		if err := h.cache.SetScore(ctx, tenantID, fingerprint, result, scoreCacheTTL); err != nil {
			slog.Error("failed to memoize score", "error", err)
		}
	}

	return result
}

// GetScore retrieves a persisted score result by ID.
func (h *Handler) GetScore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	scoreID := chi.URLParam(r, "id")

	if scoreID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "score id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	score, err := h.repo.GetScore(ctx, tenantID, scoreID)
	if err != nil {
		slog.Error("failed to get score", "id", scoreID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "score not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, score)
}

// ModelInfo returns the active engine's self description.
func (h *Handler) ModelInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Describe())
}

// FeatureImportance describes one model feature for reviewers.
type FeatureImportance struct {
	Feature        string  `json:"feature"`
	Importance     float64 `json:"importance"`
	Interpretation string  `json:"business_interpretation"`
	RiskDirection  string  `json:"risk_direction"`
}

// ModelFeatures returns the feature importance ranking with business
// interpretation. The ranking is static and ships with the model release.
func (h *Handler) ModelFeatures(w http.ResponseWriter, r *http.Request) {
	features := []FeatureImportance{
		{
			Feature:        "Days_Policy_Claim_WoE",
			Importance:     0.234,
			Interpretation: "Time between policy start and claim filing",
			RiskDirection:  "Shorter time = Higher risk",
		},
		{
			Feature:        "PolicyType_WoE",
			Importance:     0.187,
			Interpretation: "Complexity and coverage type of policy",
			RiskDirection:  "All Perils policies = Higher risk",
		},
		{
			Feature:        "Make_WoE",
			Importance:     0.156,
			Interpretation: "Vehicle manufacturer premium positioning",
			RiskDirection:  "Premium brands = Higher risk",
		},
		{
			Feature:        "AgeOfPolicyHolder_WoE",
			Importance:     0.143,
			Interpretation: "Age demographic risk profile",
			RiskDirection:  "Younger drivers = Higher risk",
		},
		{
			Feature:        "VehiclePrice_WoE",
			Importance:     0.128,
			Interpretation: "Vehicle value and attractiveness for fraud",
			RiskDirection:  "Higher value = Higher risk",
		},
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"top_features": features,
		"feature_interactions": []string{
			"Young drivers + Premium vehicles = 2.3x risk multiplier",
			"Quick claims + All Perils policies = 2.1x risk multiplier",
			"Rural accidents + Luxury vehicles = 1.8x risk multiplier",
		},
		"business_insights": []string{
			"Claims filed within 7 days show 4.8x higher fraud rate",
			"All Perils policies account for 32% of confirmed fraud cases",
			"Premium vehicle brands represent 45% of high-value fraud",
		},
	})
}

// BusinessMetrics returns operational KPIs for the tenant, backed by real
// counters rather than point-in-time estimates.
func (h *Handler) BusinessMetrics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.metrics == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "metrics not available",
		})
		return
	}

	snap, err := h.metrics.Get(ctx, tenantID)
	if err != nil {
		slog.Error("failed to get metrics", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get metrics",
		})
		return
	}

	info := h.engine.Describe()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
		"daily_metrics": snap,
		"model_performance": map[string]interface{}{
			"model_type":  info.ModelType,
			"version":     info.Version,
			"performance": info.Performance,
		},
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":        status,
		"version":       h.version,
		"model_version": h.engine.Describe().Version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// Root returns service identification and navigation.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service":          "Kestrel Fraud Scoring API",
		"version":          h.version,
		"model_version":    h.engine.Describe().Version,
		"health_check":     "/health",
		"main_endpoint":    "/predict",
		"business_metrics": "/business/metrics",
	})
}

// ListRules returns all loaded review rules from the engine.
// Rules are loaded from the database at startup and can be reloaded via
// POST /rules/reload.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	if h.review == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "review engine not available",
		})
		return
	}

	loadedRules := h.review.GetLoadedRules()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules":  loadedRules,
		"count":  len(loadedRules),
		"source": "database",
	})
}

// GetRule retrieves a review rule by ID from the loaded engine rules.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	if h.review == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "review engine not available",
		})
		return
	}

	for _, rule := range h.review.GetLoadedRules() {
		if rule.ID == ruleID {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// CreateRuleRequest is the request body for creating a review rule.
type CreateRuleRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Expression  string `json:"expression"`
	Queue       string `json:"queue"`
	Reason      string `json:"reason,omitempty"`
	Enabled     bool   `json:"enabled"`
}

// GlobalTenantID is used for review rules that apply to all tenants.
const GlobalTenantID = "*"

// CreateRule creates a new review rule and saves it to the database.
// Rules are saved globally (tenant_id = "*") so they apply to all tenants.
// After saving, call POST /rules/reload to hot-reload into the engine.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}
	if req.Queue == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "queue is required",
		})
		return
	}

	rule := &domain.ReviewRule{
		ID:          req.ID,
		TenantID:    GlobalTenantID,
		Name:        req.Name,
		Description: req.Description,
		Version:     "1.0.0",
		Expression:  req.Expression,
		Queue:       req.Queue,
		Reason:      req.Reason,
		Enabled:     req.Enabled,
	}

	// Validate CEL expression by attempting to load
	if err := h.review.LoadRule(rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveReviewRule(ctx, GlobalTenantID, rule); err != nil {
			slog.Error("failed to save review rule", "id", rule.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save rule",
			})
			return
		}
	}

	slog.Info("review rule created", "id", rule.ID, "name", rule.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule":    rule,
		"message": "Rule created. Call POST /rules/reload to apply changes.",
	})
}

// DeleteRule disables a review rule and reloads the engine.
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	if err := h.repo.DeleteReviewRule(ctx, GlobalTenantID, ruleID); err != nil {
		slog.Error("failed to delete review rule", "id", ruleID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "rule not found",
		})
		return
	}

	// Auto-reload after delete
	if h.review != nil {
		dbRules, err := h.repo.ListReviewRules(ctx, GlobalTenantID)
		if err != nil {
			slog.Error("failed to reload rules after delete", "error", err)
		} else if err := h.review.ReloadRules(dbRules); err != nil {
			slog.Error("failed to reload rules into engine", "error", err)
		}
	}

	slog.Info("review rule deleted", "id", ruleID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Rule deleted and engine reloaded.",
	})
}

// ReloadRules reloads all review rules from the database into the engine.
// This enables hot-reloading without server restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	dbRules, err := h.repo.ListReviewRules(ctx, GlobalTenantID)
	if err != nil {
		slog.Error("failed to list rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from database",
		})
		return
	}

	if err := h.review.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload rules into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("review rules reloaded from database", "count", len(dbRules))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   len(dbRules),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
