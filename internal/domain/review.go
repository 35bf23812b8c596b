package domain

import "time"

// ReviewRule defines a post-scoring routing rule. Rules are CEL expressions
// evaluated against the finished score result; a match routes the claim to a
// named review queue. The scoring engine itself is never affected: review
// rules annotate results, they do not change probability or score.
type ReviewRule struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`

	// Expression is a CEL expression over score and claim fields, e.g.
	// `risk_level == "MEDIUM" && fraud_probability > 0.4`.
	Expression string `json:"expression"`

	// Queue receives claims matched by this rule.
	Queue string `json:"queue"`

	// Reason is attached to the routed result for the reviewer.
	Reason string `json:"reason"`

	// Whether rule is active
	Enabled bool `json:"enabled"`

	// Audit timestamps
	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// ReviewMatch is the outcome of evaluating one review rule.
type ReviewMatch struct {
	RuleID    string `json:"ruleId"`
	Queue     string `json:"queue"`
	Reason    string `json:"reason"`
	ProcessMs int64  `json:"processMs"`
}
