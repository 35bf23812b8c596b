// Package review provides the CEL-Go based review routing engine. Review
// rules run after scoring and decide which human review queue, if any, a
// scored claim should land in. They never alter the score itself.
package review

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Engine is the CEL-based review rule engine.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*CompiledRule
	maxWorkers    int
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Config  *domain.ReviewRule
	Program cel.Program
}

// NewEngine creates a new review rule engine.
func NewEngine(maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	// CEL environment exposing the finished score and the raw claim.
	env, err := cel.NewEnv(
		cel.Variable("score", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("claim", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("fraud_probability", cel.DoubleType),
		cel.Variable("risk_score", cel.IntType),
		cel.Variable("risk_level", cel.StringType),
		cel.Variable("confidence", cel.StringType),
		cel.Variable("model_version", cel.StringType),
		cel.Variable("factor_count", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:           env,
		compiledRules: make(map[string]*CompiledRule),
		maxWorkers:    maxWorkers,
	}, nil
}

// ValidateRule compiles a rule without mutating loaded engine rules.
func (e *Engine) ValidateRule(cfg *domain.ReviewRule) error {
	if cfg == nil {
		return fmt.Errorf("review rule config is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(cfg)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(cfg *domain.ReviewRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(cfg)
	if err != nil {
		return err
	}

	e.compiledRules[cfg.ID] = compiled
	return nil
}

// LoadRules compiles and loads multiple rules.
func (e *Engine) LoadRules(configs []*domain.ReviewRule) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadRule(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadRules clears all existing rules and loads new ones.
// This enables hot-reloading of rules from the database.
func (e *Engine) ReloadRules(configs []*domain.ReviewRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newRules := make(map[string]*CompiledRule)
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}

		compiled, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		newRules[cfg.ID] = compiled
	}

	e.compiledRules = newRules
	return nil
}

// Evaluate runs every loaded rule against a finished score result and
// returns the matches. Rule evaluation errors are skipped rather than
// propagated: a broken review rule must not block claim scoring.
func (e *Engine) Evaluate(ctx context.Context, claim *domain.Claim, score *domain.ScoreResult) []domain.ReviewMatch {
	e.mu.RLock()
	rules := make([]*CompiledRule, 0, len(e.compiledRules))
	for _, rule := range e.compiledRules {
		rules = append(rules, rule)
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return nil
	}

	activation := buildActivation(claim, score)

	matches := make([]domain.ReviewMatch, len(rules))
	matched := make([]bool, len(rules))
	var wg sync.WaitGroup

	sem := make(chan struct{}, e.maxWorkers)

	for i, rule := range rules {
		wg.Add(1)
		go func(idx int, r *CompiledRule) {
			defer wg.Done()

			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			start := time.Now()
			out, _, err := r.Program.Eval(activation)
			if err != nil {
				return
			}
			hit, ok := out.(types.Bool)
			if !ok || !bool(hit) {
				return
			}

			matches[idx] = domain.ReviewMatch{
				RuleID:    r.Config.ID,
				Queue:     r.Config.Queue,
				Reason:    r.Config.Reason,
				ProcessMs: time.Since(start).Milliseconds(),
			}
			matched[idx] = true
		}(i, rule)
	}

	wg.Wait()

	var out []domain.ReviewMatch
	for i := range matches {
		if matched[i] {
			out = append(out, matches[i])
		}
	}
	return out
}

func buildActivation(claim *domain.Claim, score *domain.ScoreResult) map[string]any {
	claimMap := map[string]string{
		"month":                claim.Month,
		"day_of_week":          claim.DayOfWeek,
		"make":                 claim.Make,
		"accident_area":        claim.AccidentArea,
		"sex":                  claim.Sex,
		"marital_status":       claim.MaritalStatus,
		"policy_type":          claim.PolicyType,
		"vehicle_price":        claim.VehiclePrice,
		"age_of_vehicle":       claim.AgeOfVehicle,
		"age_of_policy_holder": claim.AgeOfPolicyHolder,
		"days_policy_claim":    claim.DaysPolicyClaim,
	}

	return map[string]any{
		"score": map[string]any{
			"fraud_probability": score.FraudProbability,
			"risk_score":        score.RiskScore,
			"risk_level":        score.RiskLevel,
			"confidence":        score.Confidence,
			"model_version":     score.ModelVersion,
		},
		"claim":             claimMap,
		"fraud_probability": score.FraudProbability,
		"risk_score":        score.RiskScore,
		"risk_level":        score.RiskLevel,
		"confidence":        score.Confidence,
		"model_version":     score.ModelVersion,
		"factor_count":      len(score.KeyRiskFactors),
	}
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// GetLoadedRules returns the currently loaded rule configurations.
func (e *Engine) GetLoadedRules() []*domain.ReviewRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.ReviewRule, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		rules = append(rules, compiled.Config)
	}
	return rules
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]*CompiledRule)
	return nil
}

func (e *Engine) compileRule(cfg *domain.ReviewRule) (*CompiledRule, error) {
	if cfg.Queue == "" {
		return nil, fmt.Errorf("rule %s: queue is required", cfg.ID)
	}

	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", cfg.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", cfg.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.ID, err)
	}

	return &CompiledRule{
		Config:  cfg,
		Program: program,
	}, nil
}
