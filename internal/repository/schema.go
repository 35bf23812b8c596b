package repository

// Schema definitions for the Kestrel database.
// Compatible with both SQLite and PostgreSQL.

const schemaClaims = `
CREATE TABLE IF NOT EXISTS claims (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    month TEXT NOT NULL,
    day_of_week TEXT NOT NULL,
    make TEXT NOT NULL,
    accident_area TEXT NOT NULL,
    sex TEXT NOT NULL,
    marital_status TEXT NOT NULL,
    policy_type TEXT NOT NULL,
    vehicle_price TEXT NOT NULL,
    age_of_vehicle TEXT NOT NULL,
    age_of_policy_holder TEXT NOT NULL,
    days_policy_claim TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_claims_tenant ON claims(tenant_id);
`

const schemaScores = `
CREATE TABLE IF NOT EXISTS scores (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    claim_id TEXT NOT NULL,
    fraud_probability REAL NOT NULL,
    risk_score INTEGER NOT NULL,
    risk_level TEXT NOT NULL,
    confidence TEXT NOT NULL,
    risk_factors TEXT NOT NULL,
    breakdown TEXT NOT NULL,
    recommendation TEXT NOT NULL,
    processing_ms REAL NOT NULL,
    model_version TEXT NOT NULL,
    review_queue TEXT,
    scored_at TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_scores_tenant ON scores(tenant_id);
CREATE INDEX IF NOT EXISTS idx_scores_claim ON scores(tenant_id, claim_id);
CREATE INDEX IF NOT EXISTS idx_scores_level ON scores(tenant_id, risk_level, created_at);
`

const schemaReviewRules = `
CREATE TABLE IF NOT EXISTS review_rules (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    expression TEXT NOT NULL,
    queue TEXT NOT NULL,
    reason TEXT,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id, version)
);

CREATE INDEX IF NOT EXISTS idx_review_rules_tenant ON review_rules(tenant_id);
CREATE INDEX IF NOT EXISTS idx_review_rules_enabled ON review_rules(tenant_id, enabled);
`

// AllSchemas returns every schema statement in migration order.
func AllSchemas() []string {
	return []string{
		schemaClaims,
		schemaScores,
		schemaReviewRules,
	}
}
