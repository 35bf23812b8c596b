package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Risk level labels. ERROR is only produced on the degraded path.
const (
	RiskHigh   = "HIGH"
	RiskMedium = "MEDIUM"
	RiskLow    = "LOW"
	RiskError  = "ERROR"
)

// Confidence labels attached to a risk classification.
const (
	ConfidenceHigh   = "High"
	ConfidenceMedium = "Medium"
	ConfidenceLow    = "Low"
)

// Business recommendation text per risk tier. Fixed policy constants, not
// configurable at runtime.
const (
	RecommendInvestigate = "INVESTIGATE IMMEDIATELY - Multiple high-risk indicators detected"
	RecommendReview      = "DETAILED REVIEW REQUIRED - Some concerning factors present"
	RecommendStandard    = "STANDARD PROCESSING - Normal risk profile"
	RecommendManual      = "MANUAL REVIEW REQUIRED - System error"
)

// BreakdownEntry is a single scorecard component and its point contribution.
type BreakdownEntry struct {
	Component string
	Points    int
}

// Breakdown is an insertion-ordered scorecard breakdown. It serializes as a
// JSON object whose key order matches insertion order, so "Base Score" always
// appears first on the wire.
type Breakdown struct {
	entries []BreakdownEntry
}

// Add appends a component, replacing the value if the component is present.
func (b *Breakdown) Add(component string, points int) {
	for i := range b.entries {
		if b.entries[i].Component == component {
			b.entries[i].Points = points
			return
		}
	}
	b.entries = append(b.entries, BreakdownEntry{Component: component, Points: points})
}

// Get returns the points for a component.
func (b *Breakdown) Get(component string) (int, bool) {
	for _, e := range b.entries {
		if e.Component == component {
			return e.Points, true
		}
	}
	return 0, false
}

// Entries returns the ordered component list.
func (b *Breakdown) Entries() []BreakdownEntry {
	return b.entries
}

// Len returns the number of components.
func (b *Breakdown) Len() int {
	return len(b.entries)
}

// AdjustmentSum returns the sum of all contributions excluding "Base Score".
func (b *Breakdown) AdjustmentSum() int {
	sum := 0
	for _, e := range b.entries {
		if e.Component != "Base Score" {
			sum += e.Points
		}
	}
	return sum
}

// MarshalJSON renders the breakdown as an ordered JSON object.
func (b Breakdown) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range b.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Component)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		fmt.Fprintf(&buf, "%d", e.Points)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object preserving key order.
func (b *Breakdown) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("breakdown: expected JSON object")
	}
	b.entries = nil
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("breakdown: expected string key")
		}
		var points float64
		if err := dec.Decode(&points); err != nil {
			return fmt.Errorf("breakdown: component %q: %w", key, err)
		}
		b.entries = append(b.entries, BreakdownEntry{Component: key, Points: int(points)})
	}
	_, err = dec.Token() // closing brace
	return err
}

// ScoreResult is the complete fraud assessment for one claim.
type ScoreResult struct {
	ID       string `json:"score_id"`
	TenantID string `json:"tenantId,omitempty"`
	ClaimID  string `json:"claim_id,omitempty"`

	FraudProbability float64   `json:"fraud_probability"`
	RiskScore        int       `json:"risk_score"`
	RiskLevel        string    `json:"risk_level"`
	Confidence       string    `json:"confidence"`
	KeyRiskFactors   []string  `json:"key_risk_factors"`
	Breakdown        Breakdown `json:"scorecard_breakdown"`

	Recommendation   string  `json:"business_recommendation"`
	ProcessingTimeMs float64 `json:"processing_time_ms"`
	ModelVersion     string  `json:"model_version"`
	Timestamp        string  `json:"timestamp"` // ISO-8601

	// ReviewQueue is set when a review rule matched after scoring.
	ReviewQueue string `json:"review_queue,omitempty"`
}

// BatchResult is the response for batch scoring. Results preserve the input
// order of the submitted claims.
type BatchResult struct {
	Results          []*ScoreResult `json:"results"`
	TotalProcessed   int            `json:"total_processed"`
	HighRiskCount    int            `json:"high_risk_count"`
	ProcessingTimeMs float64        `json:"processing_time_ms"`
}

// ModelInfo describes the active scoring engine.
type ModelInfo struct {
	ModelType        string             `json:"model_type"`
	Version          string             `json:"version"`
	Performance      map[string]float64 `json:"performance"`
	FeatureCount     int                `json:"feature_count"`
	WoEFeatureCount  int                `json:"woe_feature_count"`
	BusinessFeatures int                `json:"business_feature_count"`
	TrainingDate     string             `json:"training_date,omitempty"`
}
