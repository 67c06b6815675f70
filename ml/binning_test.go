package ml

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

func TestBinEqualWidth(t *testing.T) {
	values := []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	b, err := Bin(values, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(b.Bins) != 5 {
		t.Fatalf("expected 5 bins, got %d", len(b.Bins))
	}
	wantLabels := []string{"0–2", "2–4", "4–6", "6–8", "8–10"}
	if got := b.Labels(); !reflect.DeepEqual(got, wantLabels) {
		t.Fatalf("expected labels %v, got %v", wantLabels, got)
	}
	// edge values 2, 4, 6, 8 belong to the lower bin
	wantAssign := []int{0, 0, 0, 1, 1, 2, 2, 3, 3, 4, 4}
	if !reflect.DeepEqual(b.Assignments, wantAssign) {
		t.Fatalf("expected assignments %v, got %v", wantAssign, b.Assignments)
	}
}

func TestBinEveryValueLandsOnce(t *testing.T) {
	values := []float64{177, 216, 183, 176, 184, 162, 250, 233, 96, 270}
	b, err := Bin(values, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(b.Bins) != DefaultBinCount {
		t.Fatalf("expected default bin count, got %d", len(b.Bins))
	}
	total := 0
	for _, bin := range b.Bins {
		total += bin.Count
	}
	if total != len(values) {
		t.Fatalf("expected %d assigned values, got %d", len(values), total)
	}
	if b.Assignments[8] != 0 {
		t.Fatalf("minimum should land in the first bin, got %d", b.Assignments[8])
	}
	if b.Assignments[9] != len(b.Bins)-1 {
		t.Fatalf("maximum should land in the last bin, got %d", b.Assignments[9])
	}
	for i := 1; i < len(b.Bins); i++ {
		if b.Bins[i].Low != b.Bins[i-1].High {
			t.Fatalf("bins %d and %d are not contiguous", i-1, i)
		}
	}
}

func TestBinDegenerate(t *testing.T) {
	b, err := Bin([]float64{42, 42, 42}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(b.Bins) != 1 {
		t.Fatalf("expected one bin, got %d", len(b.Bins))
	}
	bin := b.Bins[0]
	if bin.Low != 41 || bin.High != 43 || bin.Label != "41–43" || bin.Count != 3 {
		t.Fatalf("unexpected degenerate bin %+v", bin)
	}
}

func TestBinErrors(t *testing.T) {
	if _, err := Bin(nil, 5); !errors.Is(err, ErrEmptySeries) {
		t.Fatalf("expected ErrEmptySeries, got %v", err)
	}
	if _, err := Bin([]float64{1, math.NaN()}, 5); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue, got %v", err)
	}
	if _, err := Bin([]float64{1, 2}, MaxBinCount+1); !errors.Is(err, ErrTooManyBins) {
		t.Fatalf("expected ErrTooManyBins, got %v", err)
	}
	b, err := Bin([]float64{0, 1000}, MaxBinCount)
	if err != nil {
		t.Fatalf("unexpected error at the cap: %v", err)
	}
	if len(b.Bins) != MaxBinCount {
		t.Fatalf("expected %d bins, got %d", MaxBinCount, len(b.Bins))
	}
}

func TestAssignOutsideRange(t *testing.T) {
	b, err := Bin([]float64{10, 20}, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := b.Assign(9.9); ok {
		t.Fatal("expected value below range to be rejected")
	}
	if _, ok := b.Assign(20.1); ok {
		t.Fatal("expected value above range to be rejected")
	}
	if idx, ok := b.Assign(15); !ok || idx != 0 {
		t.Fatalf("expected boundary 15 in bin 0, got %d %v", idx, ok)
	}
}
