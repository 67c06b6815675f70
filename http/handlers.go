package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"shipmonitor/artifact"
	"shipmonitor/dataset"
	"shipmonitor/db"
	"shipmonitor/eda"
	"shipmonitor/ml"
	"shipmonitor/monitoring"
)

// Swapped out in tests.
var (
	loadDataset = dataset.Global
	loadModel   = ml.GlobalModel
)

var (
	logger  = zap.NewNop()
	metrics *monitoring.Metrics
	store   *db.Store
	hub     *monitoring.Hub
)

func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
}

func SetMetrics(m *monitoring.Metrics) {
	metrics = m
}

// SetStore enables the prediction log. Without one predictions are served
// but not recorded.
func SetStore(s *db.Store) {
	store = s
}

// SetHub enables the live prediction feed.
func SetHub(h *monitoring.Hub) {
	hub = h
}

func RegisterHandlers(mux *http.ServeMux) {
	handle(mux, "GET /api/health", handleHealth)
	handle(mux, "GET /api/overview", handleOverview)
	handle(mux, "GET /api/features", handleFeatures)
	handle(mux, "GET /api/bins/{column}", handleBins)
}

// handle registers h and reports its latency under pattern. Latency counts
// from when LoggerMiddleware first saw the request, when it ran.
func handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if metrics == nil {
			h(w, r)
			return
		}
		start := GetStartTime(r.Context())
		if start.IsZero() {
			start = time.Now()
		}
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		h(wrapped, r)
		metrics.ObserveHTTP(pattern, wrapped.statusCode, time.Since(start))
	}))
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "ok"}
	if _, err := loadDataset(); err != nil {
		resp["status"] = "degraded"
		resp["dataset"] = err.Error()
	}
	if store != nil {
		if err := store.Ping(r.Context()); err != nil {
			resp["status"] = "degraded"
			resp["database"] = err.Error()
		}
	}
	respondJSON(w, resp)
}

func handleOverview(w http.ResponseWriter, r *http.Request) {
	ds, ok := datasetOrError(w)
	if !ok {
		return
	}
	respondJSON(w, ds.Overview())
}

func handleFeatures(w http.ResponseWriter, r *http.Request) {
	ds, ok := datasetOrError(w)
	if !ok {
		return
	}
	b, err := builderFor(ds)
	if err != nil {
		writeErr(w, err)
		return
	}
	respondJSON(w, map[string]interface{}{
		"order":   ml.FeatureOrder,
		"ranges":  b.Ranges(),
		"options": map[string][]string{ml.CategoricalFeature: b.Options()},
		"form":    b.Form(),
	})
}

func handleBins(w http.ResponseWriter, r *http.Request) {
	ds, ok := datasetOrError(w)
	if !ok {
		return
	}
	column := r.PathValue("column")
	count, err := intQuery(r, "bins", ml.DefaultBinCount, ml.MaxBinCount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	values, err := ds.Float(column)
	if err != nil {
		writeErr(w, err)
		return
	}
	binning, err := ml.Bin(values, count)
	if err != nil {
		writeErr(w, err)
		return
	}
	respondJSON(w, map[string]interface{}{
		"column": column,
		"bins":   binning.Bins,
	})
}

// the request builder is derived once per dataset
var (
	builderMu      sync.Mutex
	builderDataset *dataset.Dataset
	builder        *ml.RequestBuilder
)

func builderFor(ds *dataset.Dataset) (*ml.RequestBuilder, error) {
	builderMu.Lock()
	defer builderMu.Unlock()
	if builder != nil && builderDataset == ds {
		return builder, nil
	}
	b, err := ml.NewRequestBuilder(ds)
	if err != nil {
		return nil, err
	}
	builder, builderDataset = b, ds
	return b, nil
}

func datasetOrError(w http.ResponseWriter) (*dataset.Dataset, bool) {
	ds, err := loadDataset()
	if err != nil {
		logger.Error("dataset unavailable", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "dataset unavailable: "+err.Error())
		return nil, false
	}
	return ds, true
}

// intQuery parses a positive integer query parameter. max <= 0 means no limit.
func intQuery(r *http.Request, name string, def, max int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.New(name + " must be a positive integer")
	}
	if max > 0 && n > max {
		return 0, fmt.Errorf("%s must be at most %d", name, max)
	}
	return n, nil
}

// statusFor maps domain errors onto HTTP status codes. Configuration errors
// win over whatever they wrap: a mis-built artifact is not the caller's fault.
func statusFor(err error) int {
	switch {
	case ml.IsConfigError(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, ml.ErrMissingFeature),
		errors.Is(err, ml.ErrUnexpectedInput),
		errors.Is(err, ml.ErrInvalidValue),
		errors.Is(err, dataset.ErrNotNumeric),
		errors.Is(err, eda.ErrNotCategorical),
		errors.Is(err, eda.ErrNotSegment),
		errors.Is(err, ml.ErrEmptySeries),
		errors.Is(err, ml.ErrTooManyBins):
		return http.StatusBadRequest
	case errors.Is(err, dataset.ErrUnknownColumn),
		errors.Is(err, eda.ErrUnknownChart):
		return http.StatusNotFound
	case errors.Is(err, ml.ErrOutOfRange),
		errors.Is(err, ml.ErrUnknownCategory),
		errors.Is(err, ml.ErrSchemaMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, dataset.ErrNotConfigured),
		errors.Is(err, dataset.ErrNotFound),
		errors.Is(err, dataset.ErrMissingColumn),
		errors.Is(err, dataset.ErrEmpty),
		errors.Is(err, dataset.ErrInvalidTarget),
		errors.Is(err, dataset.ErrMissingValue),
		errors.Is(err, artifact.ErrAllProvidersFailed),
		errors.Is(err, ml.ErrModelNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeErr(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.Error(err))
	}
	writeError(w, status, err.Error())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Warn("failed to encode JSON", zap.Error(err))
	}
}
