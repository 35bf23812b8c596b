package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence. Every scored claim
// and its result are persisted so that decisions remain retrievable for
// audit. All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Claim operations
	SaveClaim(ctx context.Context, tenantID string, claimID string, claim *Claim) error
	GetClaim(ctx context.Context, tenantID string, claimID string) (*Claim, error)

	// Score result operations
	SaveScore(ctx context.Context, tenantID string, score *ScoreResult) error
	GetScore(ctx context.Context, tenantID string, scoreID string) (*ScoreResult, error)
	CountScoresSince(ctx context.Context, tenantID string, riskLevel string, since time.Time) (int64, error)

	// Review rule configuration operations
	SaveReviewRule(ctx context.Context, tenantID string, rule *ReviewRule) error
	GetReviewRule(ctx context.Context, tenantID string, ruleID string) (*ReviewRule, error)
	ListReviewRules(ctx context.Context, tenantID string) ([]*ReviewRule, error)
	DeleteReviewRule(ctx context.Context, tenantID string, ruleID string) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
