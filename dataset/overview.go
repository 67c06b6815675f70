package dataset

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Overview backs the landing page metric cards.
type Overview struct {
	TotalShipments int     `json:"total_shipments"`
	AverageCost    float64 `json:"average_cost"`
	OnTimeRate     float64 `json:"on_time_rate"`
	Sample         Table   `json:"sample"`

	TotalShipmentsText string `json:"total_shipments_text"`
	AverageCostText    string `json:"average_cost_text"`
	OnTimeRateText     string `json:"on_time_rate_text"`
}

const sampleRows = 5

var printer = message.NewPrinter(language.English)

// Overview computes the headline numbers shown above every page.
func (d *Dataset) Overview() Overview {
	costs, _ := d.Float(ColumnCost)

	ov := Overview{
		TotalShipments: d.Rows(),
		AverageCost:    mean(costs),
		OnTimeRate:     d.OnTimeRate(),
		Sample:         d.Head(sampleRows),
	}
	ov.TotalShipmentsText = FormatCount(ov.TotalShipments)
	ov.AverageCostText = printer.Sprintf("$%.0f", ov.AverageCost)
	ov.OnTimeRateText = FormatPercent(ov.OnTimeRate)
	return ov
}

// OnTimeRate returns the percentage of shipments with target 1.
func (d *Dataset) OnTimeRate() float64 {
	if len(d.target) == 0 {
		return 0
	}
	onTime := 0
	for _, v := range d.target {
		onTime += v
	}
	return float64(onTime) / float64(len(d.target)) * 100
}

// FormatCount renders n with thousands separators, e.g. 10,999.
func FormatCount(n int) string {
	return printer.Sprintf("%d", n)
}

// FormatPercent renders p with one decimal and a percent sign.
func FormatPercent(p float64) string {
	return printer.Sprintf("%.1f%%", p)
}

// mean averages the finite values, 0 when there are none.
func mean(values []float64) float64 {
	sum, n := 0.0, 0
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
