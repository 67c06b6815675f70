package ml

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"shipmonitor/dataset"
)

// FeatureOrder is the column sequence the shipped pipeline was fitted on. Any
// retrained artifact with a different schema needs this list changed with it.
var FeatureOrder = []string{
	dataset.ColumnCustomerCareCalls,
	dataset.ColumnCost,
	dataset.ColumnPriorPurchases,
	dataset.ColumnDiscount,
	dataset.ColumnWeight,
	dataset.ColumnImportance,
}

// NumericFeatures are the slider-driven features, in FeatureOrder.
var NumericFeatures = FeatureOrder[:len(FeatureOrder)-1]

// CategoricalFeature is the single selector-driven feature.
const CategoricalFeature = dataset.ColumnImportance

var featureLabels = map[string]string{
	dataset.ColumnCustomerCareCalls: "Customer care calls",
	dataset.ColumnCost:              "Product cost",
	dataset.ColumnPriorPurchases:    "Prior purchases",
	dataset.ColumnDiscount:          "Discount offered",
	dataset.ColumnWeight:            "Product weight (grams)",
	dataset.ColumnImportance:        "Product importance",
}

// Record is a single feature row in FeatureOrder. Numeric features hold a
// float64, the categorical feature holds a string.
type Record struct {
	Columns []string `json:"columns"`
	Values  []any    `json:"values"`
}

// Value returns the value of column, if present.
func (r Record) Value(column string) (any, bool) {
	for i, c := range r.Columns {
		if c == column {
			return r.Values[i], true
		}
	}
	return nil, false
}

// Number returns the numeric value at position i.
func (r Record) Number(i int) (float64, error) {
	v, ok := r.Values[i].(float64)
	if !ok {
		return 0, fmt.Errorf("%w: %s is %T, want number", ErrInvalidValue, r.Columns[i], r.Values[i])
	}
	return v, nil
}

// Text returns the string value at position i.
func (r Record) Text(i int) (string, error) {
	v, ok := r.Values[i].(string)
	if !ok {
		return "", fmt.Errorf("%w: %s is %T, want string", ErrInvalidValue, r.Columns[i], r.Values[i])
	}
	return v, nil
}

// ValidateRecord fails unless rec has exactly FeatureOrder as its columns.
func ValidateRecord(rec Record) error {
	if len(rec.Columns) != len(rec.Values) {
		return fmt.Errorf("%w: %d columns but %d values", ErrSchemaMismatch, len(rec.Columns), len(rec.Values))
	}
	return validateColumns(rec.Columns, FeatureOrder)
}

func validateColumns(got, want []string) error {
	if len(got) != len(want) {
		return fmt.Errorf("%w: got [%s], want [%s]", ErrSchemaMismatch, strings.Join(got, ", "), strings.Join(want, ", "))
	}
	for i := range want {
		if got[i] != want[i] {
			return fmt.Errorf("%w: column %d is %q, want %q", ErrSchemaMismatch, i, got[i], want[i])
		}
	}
	return nil
}

// FormField describes one bounded input control.
type FormField struct {
	Name    string   `json:"name"`
	Label   string   `json:"label"`
	Kind    string   `json:"kind"`
	Min     int      `json:"min"`
	Max     int      `json:"max"`
	Step    int      `json:"step,omitempty"`
	Default any      `json:"default"`
	Options []string `json:"options,omitempty"`
}

// Input control kinds.
const (
	FieldSlider = "slider"
	FieldFixed  = "fixed"
	FieldSelect = "select"
)

// RequestBuilder turns user inputs into records the model accepts. Bounds and
// category options come from the reference dataset.
type RequestBuilder struct {
	ranges  map[string]FeatureRange
	options []string
}

// NewRequestBuilder derives ranges and category options from ds.
func NewRequestBuilder(ds *dataset.Dataset) (*RequestBuilder, error) {
	if ds == nil {
		return nil, &ConfigError{Op: "new request builder", Err: ErrDatasetRequired}
	}
	ranges, err := SummarizeFeatures(ds, NumericFeatures)
	if err != nil {
		return nil, err
	}
	options, err := CategoryOptions(ds, CategoricalFeature)
	if err != nil {
		return nil, err
	}
	return &RequestBuilder{ranges: ranges, options: options}, nil
}

// Ranges returns a copy of the numeric feature ranges.
func (b *RequestBuilder) Ranges() map[string]FeatureRange {
	out := make(map[string]FeatureRange, len(b.ranges))
	for k, v := range b.ranges {
		out[k] = v
	}
	return out
}

// Options returns the allowed categories for CategoricalFeature.
func (b *RequestBuilder) Options() []string {
	out := make([]string, len(b.options))
	copy(out, b.options)
	return out
}

// Form lists the input controls in FeatureOrder. Numeric controls default to
// the median.
func (b *RequestBuilder) Form() []FormField {
	fields := make([]FormField, 0, len(FeatureOrder))
	for _, name := range NumericFeatures {
		r := b.ranges[name]
		kind := FieldSlider
		if r.IsPoint() {
			kind = FieldFixed
		}
		fields = append(fields, FormField{
			Name:    name,
			Label:   featureLabels[name],
			Kind:    kind,
			Min:     r.Min,
			Max:     r.Max,
			Step:    r.Step(),
			Default: r.Median,
		})
	}
	var def any
	if len(b.options) > 0 {
		def = b.options[0]
	}
	fields = append(fields, FormField{
		Name:    CategoricalFeature,
		Label:   featureLabels[CategoricalFeature],
		Kind:    FieldSelect,
		Default: def,
		Options: b.Options(),
	})
	return fields
}

// Build assembles a Record in FeatureOrder from inputs keyed by feature name.
// It checks presence and types only; see CheckBounds for range validation.
func (b *RequestBuilder) Build(inputs map[string]any) (Record, error) {
	if extra := unexpected(inputs); len(extra) > 0 {
		return Record{}, fmt.Errorf("%w: %s", ErrUnexpectedInput, strings.Join(extra, ", "))
	}

	rec := Record{
		Columns: make([]string, len(FeatureOrder)),
		Values:  make([]any, len(FeatureOrder)),
	}
	for i, name := range FeatureOrder {
		raw, ok := inputs[name]
		if !ok || raw == nil {
			return Record{}, fmt.Errorf("%w: %s", ErrMissingFeature, name)
		}
		rec.Columns[i] = name
		if name == CategoricalFeature {
			s, ok := raw.(string)
			if !ok {
				return Record{}, fmt.Errorf("%w: %s must be text, got %T", ErrInvalidValue, name, raw)
			}
			rec.Values[i] = s
			continue
		}
		v, err := toNumber(raw)
		if err != nil {
			return Record{}, fmt.Errorf("%w: %s: %v", ErrInvalidValue, name, err)
		}
		rec.Values[i] = v
	}
	return rec, nil
}

// CheckBounds validates rec against the observed ranges and categories.
func (b *RequestBuilder) CheckBounds(rec Record) error {
	if err := ValidateRecord(rec); err != nil {
		return err
	}
	for i, name := range rec.Columns {
		if name == CategoricalFeature {
			s, err := rec.Text(i)
			if err != nil {
				return err
			}
			if !contains(b.options, s) {
				return fmt.Errorf("%w: %s=%q, allowed [%s]", ErrUnknownCategory, name, s, strings.Join(b.options, ", "))
			}
			continue
		}
		v, err := rec.Number(i)
		if err != nil {
			return err
		}
		r := b.ranges[name]
		if !r.Contains(v) {
			return fmt.Errorf("%w: %s=%v, allowed [%d, %d]", ErrOutOfRange, name, v, r.Min, r.Max)
		}
	}
	return nil
}

func unexpected(inputs map[string]any) []string {
	var extra []string
	for name := range inputs {
		if !contains(FeatureOrder, name) {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return extra
}

func toNumber(raw any) (float64, error) {
	var v float64
	switch n := raw.(type) {
	case float64:
		v = n
	case float32:
		v = float64(n)
	case int:
		v = float64(n)
	case int32:
		v = float64(n)
	case int64:
		v = float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, err
		}
		v = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, err
		}
		v = f
	default:
		return 0, fmt.Errorf("unsupported type %T", raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not a finite number")
	}
	return v, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
