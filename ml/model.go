package ml

import (
	"context"
	"errors"
	"fmt"
)

// Classifier returns the raw class (0 late, 1 on time) for a record.
type Classifier interface {
	Predict(ctx context.Context, rec Record) (int, error)
}

// ProbabilityEstimator is implemented by classifiers that can report class
// probabilities as [p_late, p_on_time].
type ProbabilityEstimator interface {
	PredictProba(ctx context.Context, rec Record) ([2]float64, error)
}

// Model wraps a loaded classifier. The probability capability is resolved once
// here rather than probed on every prediction.
type Model struct {
	name       string
	classifier Classifier
	proba      ProbabilityEstimator
}

// NewModel wraps c under the given display name.
func NewModel(name string, c Classifier) *Model {
	m := &Model{name: name, classifier: c}
	if p, ok := c.(ProbabilityEstimator); ok {
		m.proba = p
	}
	return m
}

// Name identifies the loaded artifact.
func (m *Model) Name() string {
	return m.name
}

// SupportsProbabilities reports whether outcomes carry class probabilities.
func (m *Model) SupportsProbabilities() bool {
	return m.proba != nil
}

// Predict validates rec against FeatureOrder, classifies it and interprets the
// result.
func (m *Model) Predict(ctx context.Context, rec Record) (*Outcome, error) {
	if m == nil || m.classifier == nil {
		return nil, errors.New("model not loaded")
	}
	if err := ValidateRecord(rec); err != nil {
		return nil, err
	}

	raw, err := m.classifier.Predict(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}

	probs := Unavailable()
	if m.proba != nil {
		vec, err := m.proba.PredictProba(ctx, rec)
		if err != nil {
			return nil, fmt.Errorf("predict proba: %w", err)
		}
		probs = FromVector(vec)
	}
	return Interpret(raw, probs, rec)
}
