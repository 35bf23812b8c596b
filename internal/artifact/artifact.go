// Package artifact loads the read-only trained artifacts the scoring engine
// consumes: the two classifiers, the WoE mapping tables, the scorecard, and
// the training metadata. Artifacts are produced offline by the training
// pipeline and exported as JSON; they are loaded exactly once at process
// start and never mutated afterwards.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/opensource-finance/kestrel/internal/model"
	"github.com/opensource-finance/kestrel/internal/scorecard"
)

// Artifact file names inside the models directory.
const (
	FileLogistic  = "logistic.json"
	FileEnsemble  = "ensemble.json"
	FileWoE       = "woe_mappings.json"
	FileScorecard = "scorecard.json"
	FileMetadata  = "metadata.json"
)

// ErrMissing indicates the artifact set is incomplete. The caller is
// expected to fall back to the rule-based engine, not to abort startup.
var ErrMissing = errors.New("artifact: required model files missing")

// Metadata is the training metadata artifact.
type Metadata struct {
	FeatureNames []string `json:"feature_names"`
	AUCLogistic  float64  `json:"auc_logistic"`
	AUCEnsemble  float64  `json:"auc_xgb"`
	NFeatures    int      `json:"n_features"`
	TrainingDate string   `json:"training_date"`
}

// Bundle holds every loaded artifact. Treated as immutable shared state for
// the lifetime of the process, so concurrent reads need no locking.
type Bundle struct {
	Logistic  *model.Logistic
	Ensemble  *model.Ensemble
	WoE       map[string]map[string]float64
	Scorecard *scorecard.Card
	Metadata  *Metadata
}

// requiredFiles is the complete artifact set the model engine needs.
var requiredFiles = []string{
	FileLogistic, FileEnsemble, FileWoE, FileScorecard, FileMetadata,
}

// MissingFiles returns the required artifact files absent from dir.
func MissingFiles(dir string) []string {
	var missing []string
	for _, name := range requiredFiles {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			missing = append(missing, name)
		}
	}
	return missing
}

// Load reads and validates the full artifact bundle from dir. A missing file
// set returns ErrMissing; a present but corrupt artifact returns a parse
// error. Either way the caller degrades to the fallback engine.
func Load(dir string) (*Bundle, error) {
	if missing := MissingFiles(dir); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrMissing, missing)
	}

	b := &Bundle{
		Logistic:  &model.Logistic{},
		Ensemble:  &model.Ensemble{},
		Scorecard: &scorecard.Card{},
		Metadata:  &Metadata{},
	}

	if err := readJSON(dir, FileLogistic, b.Logistic); err != nil {
		return nil, err
	}
	if err := readJSON(dir, FileEnsemble, b.Ensemble); err != nil {
		return nil, err
	}
	if err := readJSON(dir, FileWoE, &b.WoE); err != nil {
		return nil, err
	}
	if err := readJSON(dir, FileScorecard, b.Scorecard); err != nil {
		return nil, err
	}
	if err := readJSON(dir, FileMetadata, b.Metadata); err != nil {
		return nil, err
	}

	if err := b.validate(); err != nil {
		return nil, err
	}

	return b, nil
}

func readJSON(dir, name string, v any) error {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return fmt.Errorf("artifact: read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("artifact: parse %s: %w", name, err)
	}
	return nil
}

// validate rejects structurally unusable bundles up front so a broken
// artifact never surfaces as a per-claim failure.
func (b *Bundle) validate() error {
	if len(b.Metadata.FeatureNames) == 0 {
		return fmt.Errorf("artifact: %s has an empty feature list", FileMetadata)
	}
	if len(b.Logistic.Coefficients) == 0 {
		return fmt.Errorf("artifact: %s has no coefficients", FileLogistic)
	}
	if len(b.Ensemble.Trees) == 0 {
		return fmt.Errorf("artifact: %s has no trees", FileEnsemble)
	}
	if len(b.Scorecard.Rows) == 0 {
		return fmt.Errorf("artifact: %s has no rows", FileScorecard)
	}

	// Scorecard variables must be a subset of the trained feature list.
	features := make(map[string]bool, len(b.Metadata.FeatureNames))
	for _, name := range b.Metadata.FeatureNames {
		features[name] = true
	}
	for _, row := range b.Scorecard.Rows {
		if !features[row.Variable] {
			return fmt.Errorf("artifact: scorecard variable %q is not a trained feature", row.Variable)
		}
	}

	return nil
}
