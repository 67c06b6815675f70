// Package eda computes the exploratory views of the shipping dataset: headline
// cards, delivery status, per-category and per-feature breakdowns, and
// business segments. Charts for each view are rendered in charts.go.
package eda

import (
	"errors"
	"fmt"
	"sort"

	"shipmonitor/dataset"
	"shipmonitor/ml"
)

// DefaultHistogramBins matches the resolution of the dashboard histograms.
const DefaultHistogramBins = 30

// loyalPurchases is the prior-purchase count above which a customer counts as loyal.
const loyalPurchases = 3

// SegmentColumns are the columns the business segment view can group by.
var SegmentColumns = []string{
	dataset.ColumnModeOfShipment,
	dataset.ColumnWarehouseBlock,
	dataset.ColumnImportance,
	dataset.ColumnGender,
}

var (
	ErrNotCategorical = errors.New("column is not categorical")
	ErrNotSegment     = errors.New("column cannot be used as a segment")
)

// statusOrder fixes the label order of every per-label view.
var statusOrder = []ml.Label{ml.LabelOnTime, ml.LabelLate}

type Cards struct {
	TotalShipments int     `json:"total_shipments"`
	OnTimeRate     float64 `json:"on_time_rate"`
	MedianDiscount float64 `json:"median_discount"`
	MedianWeight   float64 `json:"median_weight"`
	LoyalShare     float64 `json:"loyal_share"`

	TotalShipmentsText string `json:"total_shipments_text"`
	OnTimeRateText     string `json:"on_time_rate_text"`
	MedianDiscountText string `json:"median_discount_text"`
	LoyalShareText     string `json:"loyal_share_text"`
}

// Summary computes the four headline cards of the analysis page.
func Summary(ds *dataset.Dataset) (Cards, error) {
	discount, err := ds.Float(dataset.ColumnDiscount)
	if err != nil {
		return Cards{}, err
	}
	weight, err := ds.Float(dataset.ColumnWeight)
	if err != nil {
		return Cards{}, err
	}
	prior, err := ds.Float(dataset.ColumnPriorPurchases)
	if err != nil {
		return Cards{}, err
	}

	loyal := 0
	for _, v := range prior {
		if v > loyalPurchases {
			loyal++
		}
	}

	c := Cards{
		TotalShipments: ds.Rows(),
		OnTimeRate:     ds.OnTimeRate(),
		MedianDiscount: ml.Median(discount),
		MedianWeight:   ml.Median(weight),
		LoyalShare:     percent(loyal, len(prior)),
	}
	c.TotalShipmentsText = dataset.FormatCount(c.TotalShipments)
	c.OnTimeRateText = dataset.FormatPercent(c.OnTimeRate)
	c.MedianDiscountText = dataset.FormatPercent(c.MedianDiscount)
	c.LoyalShareText = dataset.FormatPercent(c.LoyalShare)
	return c, nil
}

type StatusCount struct {
	Status     string  `json:"status"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

type Status struct {
	Counts  []StatusCount `json:"counts"`
	Insight string        `json:"insight"`
}

// DeliveryStatus counts shipments per delivery label.
func DeliveryStatus(ds *dataset.Dataset) Status {
	target := ds.Target()
	counts := make(map[int]int, 2)
	for _, v := range target {
		counts[v]++
	}

	var st Status
	for _, label := range statusOrder {
		raw := classOf(label)
		st.Counts = append(st.Counts, StatusCount{
			Status:     label.DisplayName(),
			Count:      counts[raw],
			Percentage: percent(counts[raw], len(target)),
		})
	}

	late := st.Counts[1]
	if late.Count == 0 {
		st.Insight = "All recorded shipments are marked as On Time."
	} else {
		st.Insight = fmt.Sprintf("About %s of shipments arrive late.", dataset.FormatPercent(late.Percentage))
	}
	return st
}

type CategoryShare struct {
	Value         string  `json:"value"`
	Count         int     `json:"count"`
	OnTimePercent float64 `json:"on_time_percent"`
	LatePercent   float64 `json:"late_percent"`
}

// ByCategory returns, for each value of a categorical column, the share of
// on-time and late shipments inside that value. Values are sorted.
func ByCategory(ds *dataset.Dataset, column string) ([]CategoryShare, error) {
	if !isCategorical(ds, column) {
		return nil, fmt.Errorf("%w: %s", ErrNotCategorical, column)
	}
	values, err := ds.Strings(column)
	if err != nil {
		return nil, err
	}
	groups := groupTarget(values, ds.Target())

	shares := make([]CategoryShare, 0, len(groups))
	for _, key := range sortedKeys(groups) {
		g := groups[key]
		shares = append(shares, CategoryShare{
			Value:         key,
			Count:         g.total,
			OnTimePercent: percent(g.onTime, g.total),
			LatePercent:   percent(g.total-g.onTime, g.total),
		})
	}
	return shares, nil
}

// BoxStats is the five-number summary drawn by a box plot.
type BoxStats struct {
	Min    float64 `json:"min"`
	Q1     float64 `json:"q1"`
	Median float64 `json:"median"`
	Q3     float64 `json:"q3"`
	Max    float64 `json:"max"`
}

// LabelSeries is the histogram and box summary of one delivery label.
type LabelSeries struct {
	Status string   `json:"status"`
	Counts []int    `json:"counts"`
	Box    BoxStats `json:"box"`

	values []float64
}

// Distribution describes a numeric feature split by delivery label. Both
// labels share the same bins so their histograms can be overlaid.
type Distribution struct {
	Column string           `json:"column"`
	Bins   []ml.BinInterval `json:"bins"`
	Series []LabelSeries    `json:"series"`
}

// NumericDistribution bins column over its whole range and counts each label
// separately. bins <= 0 selects DefaultHistogramBins.
func NumericDistribution(ds *dataset.Dataset, column string, bins int) (*Distribution, error) {
	if column == dataset.TargetColumn {
		return nil, fmt.Errorf("%w: %s is the target", dataset.ErrNotNumeric, column)
	}
	values, err := ds.Float(column)
	if err != nil {
		return nil, err
	}
	if bins <= 0 {
		bins = DefaultHistogramBins
	}
	b, err := ml.Bin(values, bins)
	if err != nil {
		return nil, fmt.Errorf("bin %s: %w", column, err)
	}

	target := ds.Target()
	dist := &Distribution{Column: column, Bins: b.Bins}
	for _, label := range statusOrder {
		raw := classOf(label)
		s := LabelSeries{Status: label.DisplayName(), Counts: make([]int, len(b.Bins))}
		for i, v := range values {
			if target[i] != raw {
				continue
			}
			s.Counts[b.Assignments[i]]++
			s.values = append(s.values, v)
		}
		s.Box = boxStats(s.values)
		dist.Series = append(dist.Series, s)
	}
	return dist, nil
}

func boxStats(values []float64) BoxStats {
	if len(values) == 0 {
		return BoxStats{}
	}
	return BoxStats{
		Min:    ml.Quantile(values, 0),
		Q1:     ml.Quantile(values, 0.25),
		Median: ml.Quantile(values, 0.5),
		Q3:     ml.Quantile(values, 0.75),
		Max:    ml.Quantile(values, 1),
	}
}

type Segment struct {
	Value         string  `json:"value"`
	Count         int     `json:"count"`
	OnTimePercent float64 `json:"on_time_percent"`
	AverageCost   float64 `json:"average_cost"`
	AvgDiscount   float64 `json:"average_discount"`
}

// Segments groups shipments by one of SegmentColumns.
func Segments(ds *dataset.Dataset, column string) ([]Segment, error) {
	if !contains(SegmentColumns, column) {
		return nil, fmt.Errorf("%w: %s", ErrNotSegment, column)
	}
	keys, err := ds.Strings(column)
	if err != nil {
		return nil, err
	}
	cost, err := ds.Float(dataset.ColumnCost)
	if err != nil {
		return nil, err
	}
	discount, err := ds.Float(dataset.ColumnDiscount)
	if err != nil {
		return nil, err
	}

	groups := groupTarget(keys, ds.Target())
	sums := make(map[string][2]float64, len(groups))
	for i, k := range keys {
		s := sums[k]
		s[0] += cost[i]
		s[1] += discount[i]
		sums[k] = s
	}

	segments := make([]Segment, 0, len(groups))
	for _, key := range sortedKeys(groups) {
		g := groups[key]
		n := float64(g.total)
		segments = append(segments, Segment{
			Value:         key,
			Count:         g.total,
			OnTimePercent: percent(g.onTime, g.total),
			AverageCost:   sums[key][0] / n,
			AvgDiscount:   sums[key][1] / n,
		})
	}
	return segments, nil
}

type tally struct {
	total  int
	onTime int
}

func groupTarget(keys []string, target []int) map[string]*tally {
	groups := make(map[string]*tally)
	for i, k := range keys {
		g, ok := groups[k]
		if !ok {
			g = &tally{}
			groups[k] = g
		}
		g.total++
		if target[i] == ml.ClassOnTime {
			g.onTime++
		}
	}
	return groups
}

func sortedKeys(groups map[string]*tally) []string {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func isCategorical(ds *dataset.Dataset, column string) bool {
	return contains(ds.CategoricalColumns(), column)
}

func classOf(label ml.Label) int {
	if label == ml.LabelOnTime {
		return ml.ClassOnTime
	}
	return ml.ClassLate
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
