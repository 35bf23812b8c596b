// Package scorecard translates a feature vector into an additive points
// score. Points per feature and the base-points constant are derived at
// training time from the logistic model via the points-to-odds transform
// (factor = PDO/ln 2, offset = base − factor·ln(odds)); here they are read
// as-is, never recomputed.
package scorecard

import (
	"math"
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/feature"
)

// Row is one scorecard variable and its points-per-unit weight.
type Row struct {
	Variable string  `json:"variable"`
	Points   float64 `json:"points"`
}

// Card is the scorecard artifact loaded at startup.
type Card struct {
	Rows       []Row   `json:"scorecard"`
	BasePoints float64 `json:"base_points"`
	Factor     float64 `json:"factor"`
	Offset     float64 `json:"offset"`
	Parameters struct {
		BaseScore int `json:"base_score"`
		PDO       int `json:"pdo"`
		Odds      int `json:"odds"`
	} `json:"parameters"`
}

// Contributions below this magnitude are folded into the total but left out
// of the breakdown for readability.
const displayThreshold = 0.5

// Translate computes the integer total and the ordered breakdown for a
// vector. "Base Score" is always the first breakdown entry. Scorecard rows
// whose variable is not in the vector contribute nothing.
func (c *Card) Translate(vec *feature.Vector) (int, domain.Breakdown) {
	total := c.BasePoints

	var breakdown domain.Breakdown
	breakdown.Add("Base Score", int(c.BasePoints))

	for _, row := range c.Rows {
		contribution := vec.Get(row.Variable) * row.Points
		total += contribution

		if math.Abs(contribution) > displayThreshold {
			breakdown.Add(displayName(row.Variable), int(contribution))
		}
	}

	return int(total), breakdown
}

// displayName strips the encoding suffixes for human-readable breakdowns.
func displayName(variable string) string {
	name := strings.TrimSuffix(variable, "_WoE")
	return strings.TrimSuffix(name, "_Numeric")
}
