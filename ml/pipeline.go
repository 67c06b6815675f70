package ml

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
)

// Supported estimator types in a pipeline artifact.
const (
	EstimatorLogistic     = "logistic_regression"
	EstimatorDecisionTree = "decision_tree"
)

// Artifact is the serialized pipeline: preprocessing parameters plus one
// fitted estimator. It is produced by the training job, never here.
type Artifact struct {
	Name        string              `json:"name"`
	Estimator   string              `json:"estimator"`
	Features    []string            `json:"features"`
	Numeric     map[string]Scaler   `json:"numeric"`
	Categorical map[string][]string `json:"categorical"`
	Logistic    *LogisticParams     `json:"logistic,omitempty"`
	Tree        []TreeNode          `json:"tree,omitempty"`
}

// Scaler standardizes one numeric feature as (x - Mean) / Scale.
type Scaler struct {
	Mean  float64 `json:"mean"`
	Scale float64 `json:"scale"`
}

// LogisticParams are the weights of a binary logistic regression over the
// encoded vector. Threshold defaults to 0.5.
type LogisticParams struct {
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
	Threshold    float64   `json:"threshold"`
}

// DecodeArtifact reads a pipeline artifact and builds the matching model.
// An artifact fitted on a different feature order is rejected here.
func DecodeArtifact(r io.Reader) (*Model, error) {
	var art Artifact
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&art); err != nil {
		return nil, &ConfigError{Op: "decode artifact", Err: err}
	}
	return art.Build()
}

// Build validates the artifact and returns a ready model.
func (a *Artifact) Build() (*Model, error) {
	if err := validateColumns(a.Features, FeatureOrder); err != nil {
		return nil, &ConfigError{Op: "build pipeline", Err: err}
	}
	pre, err := newPreprocessor(a.Features, a.Numeric, a.Categorical)
	if err != nil {
		return nil, &ConfigError{Op: "build pipeline", Err: err}
	}

	name := a.Name
	if name == "" {
		name = a.Estimator
	}

	switch a.Estimator {
	case EstimatorLogistic:
		if a.Logistic == nil {
			return nil, &ConfigError{Op: "build pipeline", Err: fmt.Errorf("logistic parameters missing")}
		}
		if len(a.Logistic.Coefficients) != pre.width {
			return nil, &ConfigError{Op: "build pipeline", Err: fmt.Errorf("logistic has %d coefficients, encoded width is %d", len(a.Logistic.Coefficients), pre.width)}
		}
		threshold := a.Logistic.Threshold
		if threshold <= 0 || threshold >= 1 {
			threshold = 0.5
		}
		return NewModel(name, &logisticPipeline{
			pre:       pre,
			coef:      a.Logistic.Coefficients,
			intercept: a.Logistic.Intercept,
			threshold: threshold,
		}), nil
	case EstimatorDecisionTree:
		tree, err := NewDecisionTree(a.Tree, pre.width)
		if err != nil {
			return nil, &ConfigError{Op: "build pipeline", Err: err}
		}
		return NewModel(name, &treePipeline{pre: pre, tree: tree}), nil
	default:
		return nil, &ConfigError{Op: "build pipeline", Err: fmt.Errorf("%w: %q", ErrUnsupportedType, a.Estimator)}
	}
}

// preprocessor standardizes numeric columns and one-hot encodes categorical
// ones, in feature order.
type preprocessor struct {
	features    []string
	numeric     map[string]Scaler
	categorical map[string][]string
	width       int
}

func newPreprocessor(features []string, numeric map[string]Scaler, categorical map[string][]string) (*preprocessor, error) {
	p := &preprocessor{features: features, numeric: numeric, categorical: categorical}
	for _, name := range features {
		if levels, ok := categorical[name]; ok {
			if len(levels) == 0 {
				return nil, fmt.Errorf("categorical feature %s has no levels", name)
			}
			p.width += len(levels)
			continue
		}
		if _, ok := numeric[name]; !ok {
			return nil, fmt.Errorf("feature %s has no preprocessing step", name)
		}
		p.width++
	}
	return p, nil
}

func (p *preprocessor) transform(rec Record) ([]float64, error) {
	if err := validateColumns(rec.Columns, p.features); err != nil {
		return nil, err
	}
	vec := make([]float64, 0, p.width)
	for i, name := range p.features {
		if levels, ok := p.categorical[name]; ok {
			s, err := rec.Text(i)
			if err != nil {
				return nil, err
			}
			hot := -1
			for j, level := range levels {
				if level == s {
					hot = j
				}
				vec = append(vec, 0)
			}
			if hot < 0 {
				return nil, fmt.Errorf("%w: %s=%q", ErrUnknownCategory, name, s)
			}
			vec[len(vec)-len(levels)+hot] = 1
			continue
		}
		v, err := rec.Number(i)
		if err != nil {
			return nil, err
		}
		sc := p.numeric[name]
		scale := sc.Scale
		if scale == 0 {
			scale = 1
		}
		vec = append(vec, (v-sc.Mean)/scale)
	}
	return vec, nil
}

type logisticPipeline struct {
	pre       *preprocessor
	coef      []float64
	intercept float64
	threshold float64
}

func (l *logisticPipeline) onTimeProbability(rec Record) (float64, error) {
	x, err := l.pre.transform(rec)
	if err != nil {
		return 0, err
	}
	z := l.intercept
	for i, w := range l.coef {
		z += w * x[i]
	}
	return 1 / (1 + math.Exp(-z)), nil
}

func (l *logisticPipeline) Predict(ctx context.Context, rec Record) (int, error) {
	p, err := l.onTimeProbability(rec)
	if err != nil {
		return 0, err
	}
	if p >= l.threshold {
		return ClassOnTime, nil
	}
	return ClassLate, nil
}

func (l *logisticPipeline) PredictProba(ctx context.Context, rec Record) ([2]float64, error) {
	p, err := l.onTimeProbability(rec)
	if err != nil {
		return [2]float64{}, err
	}
	return [2]float64{1 - p, p}, nil
}

type treePipeline struct {
	pre  *preprocessor
	tree *DecisionTree
}

func (t *treePipeline) Predict(ctx context.Context, rec Record) (int, error) {
	x, err := t.pre.transform(rec)
	if err != nil {
		return 0, err
	}
	return t.tree.Classify(x)
}
