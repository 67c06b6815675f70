package ml

import (
	"errors"
	"fmt"
)

// DecisionTree is a fitted binary tree over the encoded feature vector. It
// only exposes a class label; it has no probability output.
type DecisionTree struct {
	nodes []TreeNode
}

type TreeNode struct {
	FeatureIdx int     `json:"feature_idx"`
	Threshold  float64 `json:"threshold"`
	LeftChild  int     `json:"left_child"`
	RightChild int     `json:"right_child"`
	ClassLabel int     `json:"class_label"`
	IsLeaf     bool    `json:"is_leaf"`
}

// NewDecisionTree checks that every child index and feature index is usable
// for vectors of the given width.
func NewDecisionTree(nodes []TreeNode, width int) (*DecisionTree, error) {
	if len(nodes) == 0 {
		return nil, errors.New("decision tree has no nodes")
	}
	for i, node := range nodes {
		if node.IsLeaf {
			if _, err := LabelFor(node.ClassLabel); err != nil {
				return nil, fmt.Errorf("node %d: %w", i, err)
			}
			continue
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= width {
			return nil, fmt.Errorf("node %d: feature index %d out of range", i, node.FeatureIdx)
		}
		if node.LeftChild <= i || node.LeftChild >= len(nodes) || node.RightChild <= i || node.RightChild >= len(nodes) {
			return nil, fmt.Errorf("node %d: invalid children %d/%d", i, node.LeftChild, node.RightChild)
		}
	}
	return &DecisionTree{nodes: nodes}, nil
}

// Classify walks the tree from the root. Children always sit after their
// parent, so the walk terminates.
func (dt *DecisionTree) Classify(features []float64) (int, error) {
	if len(dt.nodes) == 0 {
		return 0, errors.New("model not trained")
	}
	idx := 0
	for {
		node := dt.nodes[idx]
		if node.IsLeaf {
			return node.ClassLabel, nil
		}
		if node.FeatureIdx >= len(features) {
			return 0, errors.New("feature index out of range")
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
	}
}
