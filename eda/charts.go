package eda

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"shipmonitor/dataset"
)

// Chart kinds served by ChartCache.
const (
	ChartStatus    = "status"
	ChartCategory  = "category"
	ChartHistogram = "histogram"
	ChartBox       = "box"
	ChartSegments  = "segments"
)

const defaultChartCacheSize = 64

var (
	chartWidth  = 6 * vg.Inch
	chartHeight = 4 * vg.Inch
)

var ErrUnknownChart = errors.New("unknown chart kind")

// ChartCache renders SVG charts for one dataset and keeps the most recently
// used ones. The dataset never changes during the process lifetime, so
// entries are never stale.
type ChartCache struct {
	ds    *dataset.Dataset
	cache *lru.Cache[string, []byte]
}

// NewChartCache creates a cache holding at most size charts.
func NewChartCache(ds *dataset.Dataset, size int) (*ChartCache, error) {
	if size <= 0 {
		size = defaultChartCacheSize
	}
	c, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	return &ChartCache{ds: ds, cache: c}, nil
}

// Get returns the SVG for kind and column, rendering it on a miss. The column
// is ignored for the status chart.
func (c *ChartCache) Get(kind, column string) ([]byte, error) {
	if kind == ChartStatus {
		column = dataset.TargetColumn
	}
	key := kind + ":" + column
	if svg, ok := c.cache.Get(key); ok {
		return svg, nil
	}
	svg, err := c.render(kind, column)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, svg)
	return svg, nil
}

// Len reports how many charts are cached.
func (c *ChartCache) Len() int {
	return c.cache.Len()
}

func (c *ChartCache) render(kind, column string) ([]byte, error) {
	switch kind {
	case ChartStatus:
		return StatusChart(DeliveryStatus(c.ds))
	case ChartCategory:
		shares, err := ByCategory(c.ds, column)
		if err != nil {
			return nil, err
		}
		return CategoryChart(column, shares)
	case ChartHistogram:
		dist, err := NumericDistribution(c.ds, column, 0)
		if err != nil {
			return nil, err
		}
		return HistogramChart(dist)
	case ChartBox:
		dist, err := NumericDistribution(c.ds, column, 0)
		if err != nil {
			return nil, err
		}
		return BoxChart(dist)
	case ChartSegments:
		segments, err := Segments(c.ds, column)
		if err != nil {
			return nil, err
		}
		return SegmentChart(column, segments)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownChart, kind)
	}
}

// StatusChart draws shipment counts per delivery label.
func StatusChart(st Status) ([]byte, error) {
	p := plot.New()
	p.Title.Text = "Overall delivery status"
	p.Y.Label.Text = "Shipments"

	values := make(plotter.Values, len(st.Counts))
	names := make([]string, len(st.Counts))
	for i, sc := range st.Counts {
		values[i] = float64(sc.Count)
		names[i] = fmt.Sprintf("%s (%s)", sc.Status, dataset.FormatPercent(sc.Percentage))
	}
	bars, err := plotter.NewBarChart(values, vg.Points(40))
	if err != nil {
		return nil, err
	}
	bars.Color = plotutil.Color(0)
	p.Add(bars)
	p.NominalX(names...)
	return renderSVG(p)
}

// CategoryChart draws grouped on-time and late percentages per category value.
func CategoryChart(column string, shares []CategoryShare) ([]byte, error) {
	p := plot.New()
	p.Title.Text = "Delivery status by " + column
	p.Y.Label.Text = "Percentage of shipments"
	p.Y.Max = 100

	onTime := make(plotter.Values, len(shares))
	late := make(plotter.Values, len(shares))
	names := make([]string, len(shares))
	for i, s := range shares {
		onTime[i] = s.OnTimePercent
		late[i] = s.LatePercent
		names[i] = s.Value
	}
	if err := addGroupedBars(p, []string{"On Time", "Late"}, []plotter.Values{onTime, late}); err != nil {
		return nil, err
	}
	p.NominalX(names...)
	return renderSVG(p)
}

// HistogramChart draws the per-label histograms over the shared bins.
func HistogramChart(dist *Distribution) ([]byte, error) {
	p := plot.New()
	p.Title.Text = "Distribution of " + dist.Column
	p.Y.Label.Text = "Shipments"

	names := make([]string, len(dist.Series))
	groups := make([]plotter.Values, len(dist.Series))
	for i, s := range dist.Series {
		names[i] = s.Status
		groups[i] = make(plotter.Values, len(s.Counts))
		for j, n := range s.Counts {
			groups[i][j] = float64(n)
		}
	}
	if err := addGroupedBars(p, names, groups); err != nil {
		return nil, err
	}

	labels := make([]string, len(dist.Bins))
	for i, b := range dist.Bins {
		labels[i] = b.Label
	}
	p.NominalX(labels...)
	p.X.Tick.Label.Rotation = math.Pi / 2
	p.X.Tick.Label.XAlign = -1
	return renderSVG(p)
}

// BoxChart draws one box per delivery label.
func BoxChart(dist *Distribution) ([]byte, error) {
	p := plot.New()
	p.Title.Text = dist.Column + " by delivery status"
	p.Y.Label.Text = dist.Column

	names := make([]string, 0, len(dist.Series))
	for i, s := range dist.Series {
		names = append(names, s.Status)
		if len(s.values) == 0 {
			continue
		}
		box, err := plotter.NewBoxPlot(vg.Points(30), float64(i), plotter.Values(s.values))
		if err != nil {
			return nil, err
		}
		box.FillColor = plotutil.Color(i)
		p.Add(box)
	}
	p.NominalX(names...)
	return renderSVG(p)
}

// SegmentChart draws the on-time rate of each segment.
func SegmentChart(column string, segments []Segment) ([]byte, error) {
	p := plot.New()
	p.Title.Text = "On-time delivery rate by " + column
	p.Y.Label.Text = "On-time delivery rate (%)"
	p.Y.Max = 100

	values := make(plotter.Values, len(segments))
	names := make([]string, len(segments))
	for i, s := range segments {
		values[i] = s.OnTimePercent
		names[i] = s.Value
	}
	bars, err := plotter.NewBarChart(values, vg.Points(30))
	if err != nil {
		return nil, err
	}
	bars.Color = plotutil.Color(2)
	p.Add(bars)
	p.NominalX(names...)
	return renderSVG(p)
}

func addGroupedBars(p *plot.Plot, names []string, groups []plotter.Values) error {
	width := vg.Points(12)
	for i, vals := range groups {
		bars, err := plotter.NewBarChart(vals, width)
		if err != nil {
			return err
		}
		bars.LineStyle.Width = 0
		bars.Color = plotutil.Color(i)
		bars.Offset = width * vg.Length(float64(i)-float64(len(groups)-1)/2)
		p.Add(bars)
		p.Legend.Add(names[i], bars)
	}
	p.Legend.Top = true
	return nil
}

func renderSVG(p *plot.Plot) ([]byte, error) {
	w, err := p.WriterTo(chartWidth, chartHeight, "svg")
	if err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}
	return buf.Bytes(), nil
}
