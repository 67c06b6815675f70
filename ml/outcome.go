package ml

import (
	"encoding/json"
	"fmt"
)

// Label is the delivery class reported to users.
type Label string

const (
	LabelLate   Label = "late"
	LabelOnTime Label = "on-time"
)

// Raw class codes used when the pipeline was trained.
const (
	ClassLate   = 0
	ClassOnTime = 1
)

// LabelFor maps the estimator's raw class to a Label. The mapping is fixed by
// the training convention and never derived from label strings.
func LabelFor(raw int) (Label, error) {
	switch raw {
	case ClassOnTime:
		return LabelOnTime, nil
	case ClassLate:
		return LabelLate, nil
	default:
		return "", fmt.Errorf("%w: %d", ErrUnknownClass, raw)
	}
}

// DisplayName is the human wording used on the dashboard.
func (l Label) DisplayName() string {
	switch l {
	case LabelOnTime:
		return "On Time"
	case LabelLate:
		return "Late"
	default:
		return "Unknown"
	}
}

// Probabilities is the class distribution of one prediction. When the loaded
// estimator cannot produce probabilities, Available is false and the values
// must not be read.
type Probabilities struct {
	available bool
	late      float64
	onTime    float64
}

// Unavailable is the explicit "no probability output" state.
func Unavailable() Probabilities {
	return Probabilities{}
}

// FromVector attributes index 0 to late and index 1 to on-time.
func FromVector(p [2]float64) Probabilities {
	return Probabilities{available: true, late: p[ClassLate], onTime: p[ClassOnTime]}
}

// Available reports whether the estimator produced probabilities.
func (p Probabilities) Available() bool {
	return p.available
}

// Late returns the late-delivery probability.
func (p Probabilities) Late() (float64, bool) {
	return p.late, p.available
}

// OnTime returns the on-time probability.
func (p Probabilities) OnTime() (float64, bool) {
	return p.onTime, p.available
}

type probabilitiesJSON struct {
	Status string   `json:"status"`
	Late   *float64 `json:"late,omitempty"`
	OnTime *float64 `json:"on_time,omitempty"`
}

const (
	probabilityStatusAvailable   = "available"
	probabilityStatusUnavailable = "unavailable"
)

func (p Probabilities) MarshalJSON() ([]byte, error) {
	if !p.available {
		return json.Marshal(probabilitiesJSON{Status: probabilityStatusUnavailable})
	}
	late, onTime := p.late, p.onTime
	return json.Marshal(probabilitiesJSON{Status: probabilityStatusAvailable, Late: &late, OnTime: &onTime})
}

func (p *Probabilities) UnmarshalJSON(data []byte) error {
	var aux probabilitiesJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	switch aux.Status {
	case probabilityStatusUnavailable:
		*p = Unavailable()
	case probabilityStatusAvailable:
		if aux.Late == nil || aux.OnTime == nil {
			return fmt.Errorf("available probabilities need both late and on_time")
		}
		*p = FromVector([2]float64{*aux.Late, *aux.OnTime})
	default:
		return fmt.Errorf("unknown probability status %q", aux.Status)
	}
	return nil
}

// Outcome is the interpreted result of one prediction.
type Outcome struct {
	Raw           int           `json:"raw"`
	Label         Label         `json:"label"`
	Probabilities Probabilities `json:"probabilities"`
	Record        Record        `json:"record"`
}

// Interpret builds an Outcome from the raw class and optional probabilities.
func Interpret(raw int, probs Probabilities, rec Record) (*Outcome, error) {
	label, err := LabelFor(raw)
	if err != nil {
		return nil, err
	}
	return &Outcome{Raw: raw, Label: label, Probabilities: probs, Record: rec}, nil
}
