package ml

import (
	"errors"
	"testing"
)

func stumpNodes() []TreeNode {
	return []TreeNode{
		{FeatureIdx: 0, Threshold: 0.5, LeftChild: 1, RightChild: 2},
		{IsLeaf: true, ClassLabel: ClassLate},
		{IsLeaf: true, ClassLabel: ClassOnTime},
	}
}

func TestDecisionTreeClassify(t *testing.T) {
	tree, err := NewDecisionTree(stumpNodes(), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	label, err := tree.Classify([]float64{0.15, 0.9})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != ClassLate {
		t.Fatalf("expected late, got %d", label)
	}

	label, err = tree.Classify([]float64{0.9, 0.1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != ClassOnTime {
		t.Fatalf("expected on-time, got %d", label)
	}
}

func TestDecisionTreeBoundaryGoesLeft(t *testing.T) {
	tree, err := NewDecisionTree(stumpNodes(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	label, err := tree.Classify([]float64{0.5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != ClassLate {
		t.Fatalf("expected threshold value to go left, got %d", label)
	}
}

func TestNewDecisionTreeRejectsBadNodes(t *testing.T) {
	if _, err := NewDecisionTree(nil, 2); err == nil {
		t.Fatal("expected error for empty tree")
	}

	cycle := stumpNodes()
	cycle[0].LeftChild = 0
	if _, err := NewDecisionTree(cycle, 2); err == nil {
		t.Fatal("expected error for self-referencing node")
	}

	wide := stumpNodes()
	wide[0].FeatureIdx = 4
	if _, err := NewDecisionTree(wide, 2); err == nil {
		t.Fatal("expected error for feature index beyond width")
	}

	badLeaf := stumpNodes()
	badLeaf[2].ClassLabel = 2
	if _, err := NewDecisionTree(badLeaf, 2); !errors.Is(err, ErrUnknownClass) {
		t.Fatalf("expected ErrUnknownClass, got %v", err)
	}
}
