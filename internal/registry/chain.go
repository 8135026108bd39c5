package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Model is a fitted transform chain able to score a single ordered row.
type Model interface {
	Predict(row []float64) (float64, error)
	PredictProba(row []float64) ([]float64, error)
}

// Chain is the exported form of an offline-trained pipeline:
// median imputation, polynomial expansion, standard scaling and a tree ensemble.
type Chain struct {
	Imputer   Imputer   `json:"imputer"`
	Expansion Expansion `json:"expansion"`
	Scaler    Scaler    `json:"scaler"`
	Forest    Forest    `json:"forest"`
}

// Imputer replaces NaN inputs with per-column medians.
type Imputer struct {
	Medians []float64 `json:"medians"`
}

// Expansion is a polynomial feature expansion without bias term.
// Degree 1 (or 0) is the identity.
type Expansion struct {
	Degree int `json:"degree"`
}

// Scaler standardises each expanded column.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// Forest is an ensemble of binary decision trees. Classes is empty for regressors.
type Forest struct {
	Classes []float64 `json:"classes,omitempty"`
	Trees   []Tree    `json:"trees"`
}

// Tree stores nodes in a flat array; node 0 is the root.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Node is a split when Left >= 0, otherwise a leaf carrying Value.
// Regressor leaves hold one value, classifier leaves hold per-class counts.
type Node struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      int       `json:"left"`
	Right     int       `json:"right"`
	Value     []float64 `json:"value,omitempty"`
}

var errNotClassifier = errors.New("chain has no classes")

// DecodeChain parses and validates a chain for the given number of input features.
func DecodeChain(data []byte, nFeatures int) (*Chain, error) {
	var c Chain
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode chain: %w", err)
	}
	if err := c.validate(nFeatures); err != nil {
		return nil, err
	}
	return &c, nil
}

// IsClassifier reports whether the forest carries class labels.
func (c *Chain) IsClassifier() bool {
	return len(c.Forest.Classes) > 0
}

func (c *Chain) validate(nFeatures int) error {
	if nFeatures <= 0 {
		return errors.New("chain needs at least one feature")
	}
	if n := len(c.Imputer.Medians); n != 0 && n != nFeatures {
		return fmt.Errorf("imputer has %d medians, want %d", n, nFeatures)
	}
	if c.Expansion.Degree > 2 || c.Expansion.Degree < 0 {
		return fmt.Errorf("unsupported expansion degree %d", c.Expansion.Degree)
	}
	width := expandedWidth(nFeatures, c.Expansion.Degree)
	if n := len(c.Scaler.Mean); n != 0 && n != width {
		return fmt.Errorf("scaler has %d means, want %d", n, width)
	}
	if len(c.Scaler.Scale) != len(c.Scaler.Mean) {
		return fmt.Errorf("scaler mean/scale length mismatch: %d vs %d", len(c.Scaler.Mean), len(c.Scaler.Scale))
	}
	if len(c.Forest.Trees) == 0 {
		return errors.New("forest has no trees")
	}

	leafWidth := 1
	if c.IsClassifier() {
		leafWidth = len(c.Forest.Classes)
	}
	for ti, tree := range c.Forest.Trees {
		if len(tree.Nodes) == 0 {
			return fmt.Errorf("tree %d is empty", ti)
		}
		for ni, node := range tree.Nodes {
			if node.Left < 0 {
				if len(node.Value) != leafWidth {
					return fmt.Errorf("tree %d leaf %d has %d values, want %d", ti, ni, len(node.Value), leafWidth)
				}
				continue
			}
			if node.Feature < 0 || node.Feature >= width {
				return fmt.Errorf("tree %d node %d splits on feature %d outside [0,%d)", ti, ni, node.Feature, width)
			}
			if node.Left >= len(tree.Nodes) || node.Right < 0 || node.Right >= len(tree.Nodes) {
				return fmt.Errorf("tree %d node %d has children out of range", ti, ni)
			}
		}
	}
	return nil
}

// Predict returns the regression value, or the most probable class label.
func (c *Chain) Predict(row []float64) (float64, error) {
	if c.IsClassifier() {
		proba, err := c.PredictProba(row)
		if err != nil {
			return 0, err
		}
		return c.Forest.Classes[floats.MaxIdx(proba)], nil
	}

	x := c.transform(row)
	sum := 0.0
	for i := range c.Forest.Trees {
		leaf, err := c.Forest.Trees[i].leaf(x)
		if err != nil {
			return 0, fmt.Errorf("tree %d: %w", i, err)
		}
		sum += leaf.Value[0]
	}
	return sum / float64(len(c.Forest.Trees)), nil
}

// PredictProba averages the per-tree class distributions.
func (c *Chain) PredictProba(row []float64) ([]float64, error) {
	if !c.IsClassifier() {
		return nil, errNotClassifier
	}

	x := c.transform(row)
	proba := make([]float64, len(c.Forest.Classes))
	dist := make([]float64, len(c.Forest.Classes))
	for i := range c.Forest.Trees {
		leaf, err := c.Forest.Trees[i].leaf(x)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		copy(dist, leaf.Value)
		total := floats.Sum(dist)
		if total <= 0 {
			continue
		}
		floats.Scale(1/total, dist)
		floats.Add(proba, dist)
	}
	floats.Scale(1/float64(len(c.Forest.Trees)), proba)
	return proba, nil
}

func (c *Chain) transform(row []float64) []float64 {
	x := make([]float64, len(row))
	for i, v := range row {
		if math.IsNaN(v) && i < len(c.Imputer.Medians) {
			v = c.Imputer.Medians[i]
		}
		x[i] = v
	}

	if c.Expansion.Degree == 2 {
		expanded := make([]float64, 0, expandedWidth(len(x), 2))
		expanded = append(expanded, x...)
		for i := range x {
			for j := i; j < len(x); j++ {
				expanded = append(expanded, x[i]*x[j])
			}
		}
		x = expanded
	}

	for i := range c.Scaler.Mean {
		scale := c.Scaler.Scale[i]
		if scale == 0 {
			scale = 1
		}
		x[i] = (x[i] - c.Scaler.Mean[i]) / scale
	}
	return x
}

func (t *Tree) leaf(x []float64) (*Node, error) {
	idx := 0
	for steps := 0; steps <= len(t.Nodes); steps++ {
		node := &t.Nodes[idx]
		if node.Left < 0 {
			return node, nil
		}
		if x[node.Feature] <= node.Threshold {
			idx = node.Left
		} else {
			idx = node.Right
		}
	}
	return nil, errors.New("cycle detected while walking tree")
}

func expandedWidth(n, degree int) int {
	if degree == 2 {
		return n + n*(n+1)/2
	}
	return n
}
