package ml

import (
	"fmt"
	"math"
)

// DefaultBinCount is used when Bin is called with a non-positive count.
const DefaultBinCount = 5

// MaxBinCount caps the bins Bin will allocate.
const MaxBinCount = 100

// degeneratePad widens a zero-variance series into a single [v-1, v+1] bin.
const degeneratePad = 1.0

// BinInterval is one closed interval [Low, High].
type BinInterval struct {
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
	Label string  `json:"label"`
	Count int     `json:"count"`
}

// Binning partitions the observed range of a series into equal-width bins.
type Binning struct {
	Bins []BinInterval `json:"bins"`
	// Assignments holds the bin index of every input value, in input order.
	Assignments []int `json:"assignments"`
}

// Bin splits values into n equal-width bins over [min, max]. A value that sits
// on the edge between two bins goes to the lower one; the minimum always lands
// in the first bin and the maximum in the last. A series with a single distinct
// value yields one bin padded by one unit on each side.
func Bin(values []float64, n int) (*Binning, error) {
	if len(values) == 0 {
		return nil, ErrEmptySeries
	}
	if n <= 0 {
		n = DefaultBinCount
	}
	if n > MaxBinCount {
		return nil, fmt.Errorf("%w: %d", ErrTooManyBins, n)
	}

	lo, hi := values[0], values[0]
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: value %d is %v", ErrInvalidValue, i, v)
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	var edges []float64
	if lo == hi {
		edges = []float64{lo - degeneratePad, hi + degeneratePad}
	} else {
		width := (hi - lo) / float64(n)
		edges = make([]float64, n+1)
		for i := range edges {
			edges[i] = lo + float64(i)*width
		}
		edges[n] = hi
	}

	b := &Binning{
		Bins:        make([]BinInterval, len(edges)-1),
		Assignments: make([]int, len(values)),
	}
	for i := range b.Bins {
		b.Bins[i] = BinInterval{
			Low:   edges[i],
			High:  edges[i+1],
			Label: binLabel(edges[i], edges[i+1]),
		}
	}
	for i, v := range values {
		idx, _ := b.Assign(v)
		b.Assignments[i] = idx
		b.Bins[idx].Count++
	}
	return b, nil
}

// Assign returns the bin index for v. ok is false when v is outside every bin.
func (b *Binning) Assign(v float64) (idx int, ok bool) {
	if len(b.Bins) == 0 || math.IsNaN(v) || v < b.Bins[0].Low {
		return 0, false
	}
	for i, bin := range b.Bins {
		if v <= bin.High {
			return i, true
		}
	}
	return 0, false
}

// Labels returns the bin labels in order.
func (b *Binning) Labels() []string {
	labels := make([]string, len(b.Bins))
	for i, bin := range b.Bins {
		labels[i] = bin.Label
	}
	return labels
}

func binLabel(low, high float64) string {
	return fmt.Sprintf("%d–%d", int(math.Round(low)), int(math.Round(high)))
}
