package http

import (
	"net/http"
	"sync"

	"shipmonitor/dataset"
	"shipmonitor/eda"
	"shipmonitor/ml"
)

func RegisterEDAHandlers(mux *http.ServeMux) {
	handle(mux, "GET /api/eda/summary", handleEDASummary)
	handle(mux, "GET /api/eda/status", handleEDAStatus)
	handle(mux, "GET /api/eda/category/{column}", handleEDACategory)
	handle(mux, "GET /api/eda/numeric/{column}", handleEDANumeric)
	handle(mux, "GET /api/eda/segments/{column}", handleEDASegments)
	handle(mux, "GET /api/eda/charts/{kind}/{column}", handleEDAChart)
}

var (
	chartsMu      sync.Mutex
	chartsDataset *dataset.Dataset
	charts        *eda.ChartCache
	chartsSize    int
)

// SetChartCacheSize bounds how many rendered charts are kept in memory.
func SetChartCacheSize(n int) {
	chartsMu.Lock()
	defer chartsMu.Unlock()
	chartsSize = n
	charts = nil
}

func chartsFor(ds *dataset.Dataset) (*eda.ChartCache, error) {
	chartsMu.Lock()
	defer chartsMu.Unlock()
	if charts != nil && chartsDataset == ds {
		return charts, nil
	}
	c, err := eda.NewChartCache(ds, chartsSize)
	if err != nil {
		return nil, err
	}
	charts, chartsDataset = c, ds
	return c, nil
}

func handleEDASummary(w http.ResponseWriter, r *http.Request) {
	ds, ok := datasetOrError(w)
	if !ok {
		return
	}
	cards, err := eda.Summary(ds)
	if err != nil {
		writeErr(w, err)
		return
	}
	respondJSON(w, cards)
}

func handleEDAStatus(w http.ResponseWriter, r *http.Request) {
	ds, ok := datasetOrError(w)
	if !ok {
		return
	}
	respondJSON(w, eda.DeliveryStatus(ds))
}

func handleEDACategory(w http.ResponseWriter, r *http.Request) {
	ds, ok := datasetOrError(w)
	if !ok {
		return
	}
	column := r.PathValue("column")
	shares, err := eda.ByCategory(ds, column)
	if err != nil {
		writeErr(w, err)
		return
	}
	respondJSON(w, map[string]interface{}{
		"column":     column,
		"categories": shares,
	})
}

func handleEDANumeric(w http.ResponseWriter, r *http.Request) {
	ds, ok := datasetOrError(w)
	if !ok {
		return
	}
	bins, err := intQuery(r, "bins", eda.DefaultHistogramBins, ml.MaxBinCount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	dist, err := eda.NumericDistribution(ds, r.PathValue("column"), bins)
	if err != nil {
		writeErr(w, err)
		return
	}
	respondJSON(w, dist)
}

func handleEDASegments(w http.ResponseWriter, r *http.Request) {
	ds, ok := datasetOrError(w)
	if !ok {
		return
	}
	column := r.PathValue("column")
	segments, err := eda.Segments(ds, column)
	if err != nil {
		writeErr(w, err)
		return
	}
	respondJSON(w, map[string]interface{}{
		"column":   column,
		"segments": segments,
	})
}

func handleEDAChart(w http.ResponseWriter, r *http.Request) {
	ds, ok := datasetOrError(w)
	if !ok {
		return
	}
	cache, err := chartsFor(ds)
	if err != nil {
		writeErr(w, err)
		return
	}
	svg, err := cache.Get(r.PathValue("kind"), r.PathValue("column"))
	if err != nil {
		writeErr(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(svg)
}
