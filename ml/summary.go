package ml

import (
	"fmt"
	"math"
	"sort"

	"shipmonitor/dataset"
)

// FeatureRange is the integer (min, max, median) of a numeric feature.
type FeatureRange struct {
	Min    int `json:"min"`
	Max    int `json:"max"`
	Median int `json:"median"`
}

// IsPoint reports a zero-variance feature. Input controls for it collapse to a
// single allowed value instead of a slider.
func (r FeatureRange) IsPoint() bool {
	return r.Min == r.Max
}

// Contains reports whether v lies inside [Min, Max].
func (r FeatureRange) Contains(v float64) bool {
	return v >= float64(r.Min) && v <= float64(r.Max)
}

// Step is the slider increment: whole units, or 0 for a point range.
func (r FeatureRange) Step() int {
	if r.IsPoint() {
		return 0
	}
	return 1
}

// SummarizeFeatures computes a FeatureRange for every name. Values are
// truncated toward zero after computing min, max and median on the raw data.
func SummarizeFeatures(ds *dataset.Dataset, names []string) (map[string]FeatureRange, error) {
	if ds == nil {
		return nil, &ConfigError{Op: "summarize features", Err: ErrDatasetRequired}
	}
	ranges := make(map[string]FeatureRange, len(names))
	for _, name := range names {
		values, err := ds.Float(name)
		if err != nil {
			return nil, &ConfigError{Op: "summarize features", Err: err}
		}
		r, err := summarize(values)
		if err != nil {
			return nil, fmt.Errorf("summarize %s: %w", name, err)
		}
		ranges[name] = r
	}
	return ranges, nil
}

func summarize(values []float64) (FeatureRange, error) {
	clean := finite(values)
	if len(clean) == 0 {
		return FeatureRange{}, ErrEmptySeries
	}
	sort.Float64s(clean)
	return FeatureRange{
		Min:    int(clean[0]),
		Max:    int(clean[len(clean)-1]),
		Median: int(medianSorted(clean)),
	}, nil
}

// CategoryOptions returns the sorted distinct values of a categorical column.
func CategoryOptions(ds *dataset.Dataset, column string) ([]string, error) {
	if ds == nil {
		return nil, &ConfigError{Op: "category options", Err: ErrDatasetRequired}
	}
	values, err := ds.Strings(column)
	if err != nil {
		return nil, &ConfigError{Op: "category options", Err: err}
	}
	seen := make(map[string]struct{}, len(values))
	options := make([]string, 0)
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		options = append(options, v)
	}
	sort.Strings(options)
	return options, nil
}

// Median returns the median of values, ignoring NaN and infinities.
func Median(values []float64) float64 {
	clean := finite(values)
	if len(clean) == 0 {
		return math.NaN()
	}
	sort.Float64s(clean)
	return medianSorted(clean)
}

// Quantile returns the q-th quantile (0..1) using linear interpolation between
// closest ranks.
func Quantile(values []float64, q float64) float64 {
	clean := finite(values)
	if len(clean) == 0 {
		return math.NaN()
	}
	sort.Float64s(clean)
	if q <= 0 {
		return clean[0]
	}
	if q >= 1 {
		return clean[len(clean)-1]
	}
	pos := q * float64(len(clean)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return clean[lo] + (clean[hi]-clean[lo])*frac
}

func medianSorted(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func finite(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out = append(out, v)
	}
	return out
}
