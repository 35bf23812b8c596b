// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveClaim stores a claim with tenant isolation. Saving the same claim
// fingerprint twice is a no-op, which keeps batch replays idempotent.
func (r *SQLRepository) SaveClaim(ctx context.Context, tenantID string, claimID string, claim *domain.Claim) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO claims (
			id, tenant_id, month, day_of_week, make, accident_area,
			sex, marital_status, policy_type, vehicle_price,
			age_of_vehicle, age_of_policy_holder, days_policy_claim,
			created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		claimID, tenantID,
		claim.Month, claim.DayOfWeek, claim.Make, claim.AccidentArea,
		claim.Sex, claim.MaritalStatus, claim.PolicyType, claim.VehiclePrice,
		claim.AgeOfVehicle, claim.AgeOfPolicyHolder, claim.DaysPolicyClaim,
		time.Now().UTC(),
	)
	return err
}

// GetClaim retrieves a claim by ID with tenant isolation.
func (r *SQLRepository) GetClaim(ctx context.Context, tenantID string, claimID string) (*domain.Claim, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT month, day_of_week, make, accident_area,
			   sex, marital_status, policy_type, vehicle_price,
			   age_of_vehicle, age_of_policy_holder, days_policy_claim
		FROM claims
		WHERE tenant_id = ? AND id = ?
	`

	var c domain.Claim
	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, claimID).Scan(
		&c.Month, &c.DayOfWeek, &c.Make, &c.AccidentArea,
		&c.Sex, &c.MaritalStatus, &c.PolicyType, &c.VehiclePrice,
		&c.AgeOfVehicle, &c.AgeOfPolicyHolder, &c.DaysPolicyClaim,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &c, nil
}

// SaveScore stores a score result with tenant isolation.
func (r *SQLRepository) SaveScore(ctx context.Context, tenantID string, score *domain.ScoreResult) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	factors, _ := json.Marshal(score.KeyRiskFactors)
	breakdown, _ := json.Marshal(score.Breakdown)

	query := `
		INSERT INTO scores (
			id, tenant_id, claim_id, fraud_probability, risk_score,
			risk_level, confidence, risk_factors, breakdown,
			recommendation, processing_ms, model_version, review_queue,
			scored_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		score.ID, tenantID, score.ClaimID,
		score.FraudProbability, score.RiskScore,
		score.RiskLevel, score.Confidence,
		string(factors), string(breakdown),
		score.Recommendation, score.ProcessingTimeMs,
		score.ModelVersion, score.ReviewQueue,
		score.Timestamp, time.Now().UTC(),
	)
	return err
}

// GetScore retrieves a score result by ID with tenant isolation.
func (r *SQLRepository) GetScore(ctx context.Context, tenantID string, scoreID string) (*domain.ScoreResult, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, claim_id, fraud_probability, risk_score,
			   risk_level, confidence, risk_factors, breakdown,
			   recommendation, processing_ms, model_version, review_queue,
			   scored_at
		FROM scores
		WHERE tenant_id = ? AND id = ?
	`

	var s domain.ScoreResult
	var factors, breakdown string
	var reviewQueue sql.NullString

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, scoreID).Scan(
		&s.ID, &s.TenantID, &s.ClaimID,
		&s.FraudProbability, &s.RiskScore,
		&s.RiskLevel, &s.Confidence,
		&factors, &breakdown,
		&s.Recommendation, &s.ProcessingTimeMs,
		&s.ModelVersion, &reviewQueue,
		&s.Timestamp,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	json.Unmarshal([]byte(factors), &s.KeyRiskFactors)
	json.Unmarshal([]byte(breakdown), &s.Breakdown)
	s.ReviewQueue = reviewQueue.String

	return &s, nil
}

// CountScoresSince counts persisted scores since a point in time, optionally
// filtered by risk level. An empty riskLevel counts everything.
func (r *SQLRepository) CountScoresSince(ctx context.Context, tenantID string, riskLevel string, since time.Time) (int64, error) {
	if tenantID == "" {
		return 0, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	var count int64
	var err error

	if riskLevel == "" {
		query := `SELECT COUNT(*) FROM scores WHERE tenant_id = ? AND created_at >= ?`
		err = r.db.QueryRowContext(ctx, r.rebind(query), tenantID, since).Scan(&count)
	} else {
		query := `SELECT COUNT(*) FROM scores WHERE tenant_id = ? AND risk_level = ? AND created_at >= ?`
		err = r.db.QueryRowContext(ctx, r.rebind(query), tenantID, riskLevel, since).Scan(&count)
	}

	return count, err
}

// SaveReviewRule stores a review rule configuration with tenant isolation.
func (r *SQLRepository) SaveReviewRule(ctx context.Context, tenantID string, rule *domain.ReviewRule) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO review_rules (
			id, tenant_id, name, description, version, expression, queue, reason, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id, version) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			queue = excluded.queue,
			reason = excluded.reason,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, tenantID, rule.Name, rule.Description,
		rule.Version, rule.Expression, rule.Queue, rule.Reason, enabled,
		now, now,
	)
	return err
}

// GetReviewRule retrieves a review rule with tenant isolation.
func (r *SQLRepository) GetReviewRule(ctx context.Context, tenantID string, ruleID string) (*domain.ReviewRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, queue, reason, enabled
		FROM review_rules
		WHERE tenant_id = ? AND id = ? AND enabled = 1
		ORDER BY version DESC
		LIMIT 1
	`

	var cfg domain.ReviewRule
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, ruleID).Scan(
		&cfg.ID, &cfg.TenantID, &cfg.Name, &cfg.Description,
		&cfg.Version, &cfg.Expression, &cfg.Queue, &cfg.Reason, &enabled,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	cfg.Enabled = enabled == 1
	return &cfg, nil
}

// ListReviewRules retrieves all active review rules for a tenant.
func (r *SQLRepository) ListReviewRules(ctx context.Context, tenantID string) ([]*domain.ReviewRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, queue, reason, enabled
		FROM review_rules
		WHERE tenant_id = ? AND enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*domain.ReviewRule
	for rows.Next() {
		var cfg domain.ReviewRule
		var enabled int

		if err := rows.Scan(
			&cfg.ID, &cfg.TenantID, &cfg.Name, &cfg.Description,
			&cfg.Version, &cfg.Expression, &cfg.Queue, &cfg.Reason, &enabled,
		); err != nil {
			return nil, err
		}

		cfg.Enabled = enabled == 1
		configs = append(configs, &cfg)
	}

	return configs, rows.Err()
}

// DeleteReviewRule disables a review rule with tenant isolation.
func (r *SQLRepository) DeleteReviewRule(ctx context.Context, tenantID string, ruleID string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		UPDATE review_rules SET enabled = 0, updated_at = ?
		WHERE tenant_id = ? AND id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), time.Now().UTC(), tenantID, ruleID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
