//go:build integration
// +build integration

// Package integration provides end-to-end tests for the Kestrel claim scoring engine.
//
// These tests verify the COMPLETE scoring pipeline:
//
//	Claim → Features → Models → Scorecard → Risk Tier → Review Routing
//
// Run with: go test -tags=integration -v ./tests/integration/...
//
// UNDERSTANDING THE DOMAIN:
//
// 1. CLAIM: A vehicle insurance claim described by categorical fields
//    (vehicle make, price bucket, policy type, driver age bucket, ...)
//
// 2. SCORE: The engine produces two linked outputs per claim:
//   - fraud_probability: blended model probability (0.0 to 1.0)
//   - risk_score: additive points score (higher = safer)
//
// 3. RISK TIER: Points-to-tier mapping over the scorecard total:
//   - Score <= 580        → HIGH   (investigate immediately)
//   - Score 581 - 620     → MEDIUM (detailed review)
//   - Score > 620         → LOW    (standard processing)
//
// 4. ENGINE SELECTION: With trained artifacts present the service scores
//    with the dual model (model_version "1.0.0-production"); without them
//    it degrades to fixed business rules ("1.0.0-fallback"). Both expose
//    the identical API contract, so these tests pass against either. The
//    exact-arithmetic assertions only apply in fallback mode and are
//    gated on the reported model_version.
//
// 5. REVIEW RULES: CEL expressions loaded from the database may route a
//    scored claim to a human review queue. No rules are required for this
//    suite; review_queue assertions are informational.
package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

// TestConfig holds test environment configuration
type TestConfig struct {
	BaseURL  string
	TenantID string
}

func getTestConfig() TestConfig {
	baseURL := os.Getenv("KESTREL_TEST_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return TestConfig{
		BaseURL:  baseURL,
		TenantID: "test-tenant",
	}
}

// ============================================================================
// API Request/Response Types (matching Kestrel's API contract)
// ============================================================================

// PredictRequest is the claim sent to POST /predict
type PredictRequest struct {
	Month             string `json:"Month,omitempty"`
	DayOfWeek         string `json:"DayOfWeek,omitempty"`
	Make              string `json:"Make,omitempty"`
	AccidentArea      string `json:"AccidentArea,omitempty"`
	Sex               string `json:"Sex,omitempty"`
	MaritalStatus     string `json:"MaritalStatus,omitempty"`
	PolicyType        string `json:"PolicyType,omitempty"`
	VehiclePrice      string `json:"VehiclePrice,omitempty"`
	AgeOfVehicle      string `json:"AgeOfVehicle,omitempty"`
	AgeOfPolicyHolder string `json:"AgeOfPolicyHolder,omitempty"`
	DaysPolicyClaim   string `json:"Days_Policy_Claim,omitempty"`
}

// PredictResponse is what POST /predict returns
type PredictResponse struct {
	ScoreID          string         `json:"score_id"`
	ClaimID          string         `json:"claim_id"`
	FraudProbability float64        `json:"fraud_probability"`
	RiskScore        int            `json:"risk_score"`
	RiskLevel        string         `json:"risk_level"` // "HIGH", "MEDIUM" or "LOW"
	Confidence       string         `json:"confidence"`
	KeyRiskFactors   []string       `json:"key_risk_factors"`
	Breakdown        map[string]int `json:"scorecard_breakdown"`
	Recommendation   string         `json:"business_recommendation"`
	ProcessingTimeMs float64        `json:"processing_time_ms"`
	ModelVersion     string         `json:"model_version"`
	Timestamp        string         `json:"timestamp"`
	ReviewQueue      string         `json:"review_queue,omitempty"`
}

// BatchRequest is the payload for POST /predict/batch
type BatchRequest struct {
	Claims []PredictRequest `json:"claims"`
}

// BatchResponse is what POST /predict/batch returns
type BatchResponse struct {
	Results          []PredictResponse `json:"results"`
	TotalProcessed   int               `json:"total_processed"`
	HighRiskCount    int               `json:"high_risk_count"`
	ProcessingTimeMs float64           `json:"processing_time_ms"`
}

// ============================================================================
// Test Helper Functions
// ============================================================================

func predict(t *testing.T, config TestConfig, req PredictRequest) PredictResponse {
	t.Helper()

	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}

	httpReq, err := http.NewRequest("POST", config.BaseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", config.TenantID)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, string(respBody))
	}

	var result PredictResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		t.Fatalf("Failed to unmarshal response: %v (body: %s)", err, string(respBody))
	}

	return result
}

// suspiciousClaim triggers five of the six business indicators: urgent
// filing, All Perils policy, premium make, young driver, rural accident.
func suspiciousClaim() PredictRequest {
	return PredictRequest{
		Month:             "Jan",
		DayOfWeek:         "Monday",
		Make:              "Mercedes",
		AccidentArea:      "Rural",
		Sex:               "Male",
		MaritalStatus:     "Single",
		PolicyType:        "Sport - All Perils",
		VehiclePrice:      "20000 to 29000",
		AgeOfVehicle:      "new",
		AgeOfPolicyHolder: "18 to 20",
		DaysPolicyClaim:   "1 to 7",
	}
}

// ============================================================================
// SCENARIO 1: Suspicious Claim (High Risk)
// ============================================================================

func TestSuspiciousClaim_HighRisk(t *testing.T) {
	/*
	   SCENARIO: A brand-new Mercedes on an All Perils sport policy, held by
	   an 18-20 year old, claimed 1-7 days after policy start, rural accident.

	   EXPECTED BEHAVIOR:
	   - Five business indicators trigger
	   - Risk tier: HIGH (investigate immediately)
	   - In fallback mode the arithmetic is fixed:
	     probability 0.035 + 0.18 + 0.09 + 0.12 + 0.07 + 0.05 = 0.545
	     score 650 - 25 - 15 - 20 - 15 + 0 - 8 = 567
	*/
	config := getTestConfig()

	result := predict(t, config, suspiciousClaim())

	if result.RiskLevel != "HIGH" {
		t.Errorf("Expected HIGH risk level, got %s", result.RiskLevel)
	}

	if len(result.KeyRiskFactors) == 0 {
		t.Error("Expected risk factors explaining the classification")
	}

	// Exact arithmetic only holds for the rule-based engine
	if result.ModelVersion == "1.0.0-fallback" {
		if result.FraudProbability != 0.545 {
			t.Errorf("Expected fallback probability 0.545, got %.3f", result.FraudProbability)
		}
		if result.RiskScore != 567 {
			t.Errorf("Expected fallback risk score 567, got %d", result.RiskScore)
		}
	}

	t.Logf("✓ Suspicious claim: level=%s, prob=%.3f, score=%d, factors=%v",
		result.RiskLevel, result.FraudProbability, result.RiskScore, result.KeyRiskFactors)
}

// ============================================================================
// SCENARIO 2: Unremarkable Claim (Low Risk)
// ============================================================================

func TestUnremarkableClaim_LowRisk(t *testing.T) {
	/*
	   SCENARIO: A mid-range Honda sedan on a collision policy, middle-aged
	   driver, urban accident, claim filed well after policy start.

	   EXPECTED BEHAVIOR:
	   - No business indicators trigger
	   - Risk tier: LOW (standard processing)
	   - In fallback mode: probability stays at the 0.035 base rate,
	     score 650 + 10 + 5 + 5 + 5 + 0 + 2 = 677
	*/
	config := getTestConfig()

	req := PredictRequest{
		Month:             "Jun",
		DayOfWeek:         "Friday",
		Make:              "Honda",
		AccidentArea:      "Urban",
		Sex:               "Female",
		MaritalStatus:     "Married",
		PolicyType:        "Sedan - Collision",
		VehiclePrice:      "20000 to 29000",
		AgeOfVehicle:      "5 years",
		AgeOfPolicyHolder: "41 to 50",
		DaysPolicyClaim:   "more than 30",
	}

	result := predict(t, config, req)

	if result.RiskLevel != "LOW" {
		t.Errorf("Expected LOW risk level, got %s", result.RiskLevel)
	}

	if result.ModelVersion == "1.0.0-fallback" {
		if result.FraudProbability != 0.035 {
			t.Errorf("Expected base rate 0.035, got %.3f", result.FraudProbability)
		}
		if result.RiskScore != 677 {
			t.Errorf("Expected fallback risk score 677, got %d", result.RiskScore)
		}
	}

	t.Logf("✓ Unremarkable claim: level=%s, prob=%.3f, score=%d",
		result.RiskLevel, result.FraudProbability, result.RiskScore)
}

// ============================================================================
// SCENARIO 3: Defaults for Missing Fields
// ============================================================================

func TestEmptyClaim_DefaultsApplied(t *testing.T) {
	/*
	   SCENARIO: An empty JSON object is a valid request.

	   EXPECTED BEHAVIOR:
	   - Every field is optional; the engine fills documented defaults
	     (Honda, Urban, Sedan - Collision, 31-35, more than 30 days...)
	   - Defaults describe an unremarkable claim, so the result is LOW risk
	*/
	config := getTestConfig()

	result := predict(t, config, PredictRequest{})

	if result.RiskLevel != "LOW" {
		t.Errorf("Expected LOW risk for all-defaults claim, got %s", result.RiskLevel)
	}

	if len(result.KeyRiskFactors) != 0 {
		t.Errorf("Expected no risk factors for defaults, got %v", result.KeyRiskFactors)
	}

	t.Logf("✓ Empty claim scored with defaults: level=%s, score=%d",
		result.RiskLevel, result.RiskScore)
}

// ============================================================================
// SCENARIO 4: Unknown Category Values
// ============================================================================

func TestUnknownCategories_Tolerated(t *testing.T) {
	/*
	   SCENARIO: Field values outside the trained enumerations.

	   EXPECTED BEHAVIOR:
	   - Never rejected: unknown categories degrade to neutral encodings
	     (WoE 0.0, midpoint defaults, no indicator triggers)
	   - HTTP 200 with a LOW-leaning score
	*/
	config := getTestConfig()

	req := PredictRequest{
		Make:              "Zeppelin",
		AccidentArea:      "Lunar",
		VehiclePrice:      "priceless",
		AgeOfPolicyHolder: "ageless",
		DaysPolicyClaim:   "eventually",
	}

	result := predict(t, config, req)

	if result.RiskLevel == "HIGH" {
		t.Errorf("Unknown categories should not read as high risk, got %s", result.RiskLevel)
	}

	t.Logf("✓ Unknown categories tolerated: level=%s, prob=%.3f",
		result.RiskLevel, result.FraudProbability)
}

// ============================================================================
// SCENARIO 5: Determinism and Memoization
// ============================================================================

func TestRepeatSubmission_Deterministic(t *testing.T) {
	/*
	   SCENARIO: The same claim scored twice.

	   EXPECTED BEHAVIOR:
	   - Identical claim fields produce the identical fingerprint (claim_id)
	   - Probability, score and tier are identical on every submission,
	     whether served fresh or from the memoization cache
	*/
	config := getTestConfig()

	first := predict(t, config, suspiciousClaim())
	second := predict(t, config, suspiciousClaim())

	if first.ClaimID != second.ClaimID {
		t.Errorf("Expected identical fingerprints, got %s vs %s", first.ClaimID, second.ClaimID)
	}
	if first.FraudProbability != second.FraudProbability {
		t.Errorf("Probability changed between submissions: %.3f vs %.3f",
			first.FraudProbability, second.FraudProbability)
	}
	if first.RiskScore != second.RiskScore {
		t.Errorf("Score changed between submissions: %d vs %d", first.RiskScore, second.RiskScore)
	}

	t.Logf("✓ Deterministic: claim_id=%s scored %d twice", first.ClaimID[:8], first.RiskScore)
}

// ============================================================================
// SCENARIO 6: Scorecard Breakdown Contract
// ============================================================================

func TestScorecardBreakdown(t *testing.T) {
	/*
	   SCENARIO: Verify the breakdown is present and internally consistent.

	   EXPECTED BEHAVIOR:
	   - "Base Score" is always a breakdown component
	   - In fallback mode all six rule components are present and the
	     components sum exactly to the risk score
	*/
	config := getTestConfig()

	result := predict(t, config, suspiciousClaim())

	base, ok := result.Breakdown["Base Score"]
	if !ok {
		t.Fatal("Expected Base Score in scorecard breakdown")
	}

	if result.ModelVersion == "1.0.0-fallback" {
		if len(result.Breakdown) != 7 {
			t.Errorf("Expected 7 fallback breakdown components, got %d", len(result.Breakdown))
		}
		sum := 0
		for component, points := range result.Breakdown {
			if component != "Base Score" {
				sum += points
			}
		}
		if base+sum != result.RiskScore {
			t.Errorf("Breakdown sums to %d, risk score is %d", base+sum, result.RiskScore)
		}
	}

	t.Logf("✓ Breakdown: %v", result.Breakdown)
}

// ============================================================================
// SCENARIO 7: Batch Scoring
// ============================================================================

func TestBatchScoring_OrderPreserved(t *testing.T) {
	/*
	   SCENARIO: One suspicious and one empty claim in a single batch.

	   EXPECTED BEHAVIOR:
	   - Results preserve submission order
	   - high_risk_count counts only the HIGH results
	*/
	config := getTestConfig()

	batch := BatchRequest{Claims: []PredictRequest{suspiciousClaim(), {}}}

	body, _ := json.Marshal(batch)
	httpReq, _ := http.NewRequest("POST", config.BaseURL+"/predict/batch", bytes.NewReader(body))
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", config.TenantID)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var result BatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode batch response: %v", err)
	}

	if result.TotalProcessed != 2 {
		t.Errorf("Expected 2 processed, got %d", result.TotalProcessed)
	}
	if len(result.Results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(result.Results))
	}
	if result.Results[0].RiskLevel != "HIGH" {
		t.Errorf("Expected first result HIGH, got %s", result.Results[0].RiskLevel)
	}
	if result.Results[1].RiskLevel != "LOW" {
		t.Errorf("Expected second result LOW, got %s", result.Results[1].RiskLevel)
	}
	if result.HighRiskCount != 1 {
		t.Errorf("Expected high_risk_count 1, got %d", result.HighRiskCount)
	}

	t.Logf("✓ Batch: %d processed, %d high risk in %.2fms",
		result.TotalProcessed, result.HighRiskCount, result.ProcessingTimeMs)
}

// ============================================================================
// SCENARIO 8: Input Validation
// ============================================================================

func TestMissingTenantHeader_Error(t *testing.T) {
	/*
	   SCENARIO: Request without X-Tenant-ID header

	   EXPECTED: HTTP 400 Bad Request. Tenant ID is validated as a required
	   field, not as auth, so 400 rather than 401.
	*/
	config := getTestConfig()

	body, _ := json.Marshal(suspiciousClaim())
	httpReq, _ := http.NewRequest("POST", config.BaseURL+"/predict", bytes.NewReader(body))
	httpReq.Header.Set("Content-Type", "application/json")
	// NO X-Tenant-ID header!

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest && resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 400 or 401 for missing tenant, got %d", resp.StatusCode)
	}

	t.Logf("✓ Validation test passed: missing tenant → HTTP %d", resp.StatusCode)
}

func TestMalformedJSON_Error(t *testing.T) {
	/*
	   SCENARIO: Request body that is not valid JSON

	   EXPECTED: HTTP 400 Bad Request
	*/
	config := getTestConfig()

	httpReq, _ := http.NewRequest("POST", config.BaseURL+"/predict",
		bytes.NewReader([]byte(`{"Make": `)))
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", config.TenantID)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed JSON, got %d", resp.StatusCode)
	}

	t.Logf("✓ Validation test passed: malformed JSON → HTTP %d", resp.StatusCode)
}

func TestEmptyBatch_Error(t *testing.T) {
	/*
	   SCENARIO: Batch request with no claims

	   EXPECTED: HTTP 400 Bad Request
	*/
	config := getTestConfig()

	body, _ := json.Marshal(BatchRequest{})
	httpReq, _ := http.NewRequest("POST", config.BaseURL+"/predict/batch", bytes.NewReader(body))
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", config.TenantID)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty batch, got %d", resp.StatusCode)
	}

	t.Logf("✓ Validation test passed: empty batch → HTTP %d", resp.StatusCode)
}

// ============================================================================
// SCENARIO 9: Response Contract Verification
// ============================================================================

func TestResponseContract(t *testing.T) {
	/*
	   SCENARIO: Verify the response includes all required fields

	   This ensures the API contract is stable for clients.
	*/
	config := getTestConfig()

	result := predict(t, config, suspiciousClaim())

	if result.ScoreID == "" {
		t.Error("Missing score_id")
	}
	if result.ClaimID == "" {
		t.Error("Missing claim_id")
	}
	if result.RiskLevel != "HIGH" && result.RiskLevel != "MEDIUM" && result.RiskLevel != "LOW" {
		t.Errorf("Invalid risk_level: %s", result.RiskLevel)
	}
	if result.FraudProbability < 0 || result.FraudProbability > 1 {
		t.Errorf("Probability out of range: %.3f", result.FraudProbability)
	}
	if result.Confidence == "" {
		t.Error("Missing confidence")
	}
	if result.Recommendation == "" {
		t.Error("Missing business_recommendation")
	}
	if result.ModelVersion == "" {
		t.Error("Missing model_version")
	}
	if result.Timestamp == "" {
		t.Error("Missing timestamp")
	}
	if _, err := time.Parse(time.RFC3339, result.Timestamp); err != nil {
		t.Errorf("Timestamp is not RFC3339: %s", result.Timestamp)
	}

	// Note: ProcessingTimeMs can be 0 for very fast operations
	if result.ProcessingTimeMs < 0 {
		t.Error("Invalid processing_time_ms (negative)")
	}

	t.Logf("✓ Contract complete: score_id=%s, claim_id=%s, version=%s, took %.2fms",
		result.ScoreID[:8], result.ClaimID[:8], result.ModelVersion, result.ProcessingTimeMs)
}

// ============================================================================
// SCENARIO 10: Model and Health Endpoints
// ============================================================================

func TestModelInfoEndpoint(t *testing.T) {
	config := getTestConfig()

	resp, err := http.Get(config.BaseURL + "/model/info")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var info struct {
		ModelType   string             `json:"model_type"`
		Version     string             `json:"version"`
		Performance map[string]float64 `json:"performance"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatalf("Failed to decode model info: %v", err)
	}

	if info.ModelType == "" {
		t.Error("Missing model_type")
	}
	if len(info.Performance) == 0 {
		t.Error("Missing performance metrics")
	}

	t.Logf("✓ Model info: %s (%s)", info.ModelType, info.Version)
}

func TestHealthEndpoint(t *testing.T) {
	config := getTestConfig()

	resp, err := http.Get(config.BaseURL + "/health")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var health map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("Failed to decode health response: %v", err)
	}

	if health["status"] != "healthy" {
		t.Errorf("Expected healthy status, got %v", health["status"])
	}

	t.Logf("✓ Health: %v", health)
}
