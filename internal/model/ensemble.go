package model

import (
	"fmt"

	"github.com/opensource-finance/kestrel/internal/feature"
)

// TreeNode is one node of a regression tree in the boosted ensemble, stored
// as a flat array with child indexes. Leaf nodes carry the margin value.
type TreeNode struct {
	Feature   string  `json:"feature,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      int     `json:"left,omitempty"`
	Right     int     `json:"right,omitempty"`
	Leaf      bool    `json:"leaf"`
	Value     float64 `json:"value,omitempty"`
}

// Tree is a single regression tree.
type Tree struct {
	Nodes []TreeNode `json:"nodes"`
}

// Ensemble is a gradient-boosted tree classifier with a logistic link:
// the summed tree margins plus the base margin pass through a sigmoid.
type Ensemble struct {
	Trees      []Tree  `json:"trees"`
	BaseMargin float64 `json:"base_margin"`
}

// PredictProba returns P(fraud) for the vector.
func (m *Ensemble) PredictProba(vec *feature.Vector) (float64, error) {
	if len(m.Trees) == 0 {
		return 0, fmt.Errorf("model: ensemble has no trees")
	}

	margin := m.BaseMargin
	for i := range m.Trees {
		leaf, err := m.Trees[i].traverse(vec)
		if err != nil {
			return 0, fmt.Errorf("model: tree %d: %w", i, err)
		}
		margin += leaf
	}

	return sigmoid(margin), nil
}

// traverse walks the tree for a vector and returns the leaf margin.
// Split semantics follow the exporter: go left when value < threshold.
func (t *Tree) traverse(vec *feature.Vector) (float64, error) {
	if len(t.Nodes) == 0 {
		return 0, fmt.Errorf("empty tree")
	}

	idx := 0
	for steps := 0; steps <= len(t.Nodes); steps++ {
		if idx < 0 || idx >= len(t.Nodes) {
			return 0, fmt.Errorf("node index %d out of range", idx)
		}
		node := t.Nodes[idx]
		if node.Leaf {
			return node.Value, nil
		}
		if vec.Get(node.Feature) < node.Threshold {
			idx = node.Left
		} else {
			idx = node.Right
		}
	}

	return 0, fmt.Errorf("cycle detected during traversal")
}
