package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"shipmonitor/db"
	"shipmonitor/ml"
	"shipmonitor/monitoring"
)

const maxRecentPredictions = 200

func RegisterPredictHandlers(mux *http.ServeMux) {
	handle(mux, "POST /api/predict", handlePredict)
	handle(mux, "GET /api/predictions/recent", handleRecentPredictions)
	mux.HandleFunc("GET /api/ws/predictions", handlePredictionFeed)
}

// PredictionResponse is the JSON body of a served prediction.
type PredictionResponse struct {
	PredictionID  string           `json:"prediction_id"`
	Model         string           `json:"model"`
	Raw           int              `json:"raw"`
	Label         ml.Label         `json:"label"`
	DisplayName   string           `json:"display_name"`
	Probabilities ml.Probabilities `json:"probabilities"`
	Record        ml.Record        `json:"record"`
}

func handlePredict(w http.ResponseWriter, r *http.Request) {
	var inputs map[string]any
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&inputs); err != nil {
		failPrediction("bad_request")
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	resp, err := predict(r.Context(), inputs)
	if err != nil {
		writeErr(w, err)
		return
	}
	respondJSON(w, resp)
}

// predict runs the whole request path: build, bound check, model, then log
// and broadcast. Logging or broadcast failures never fail the prediction.
func predict(ctx context.Context, inputs map[string]any) (*PredictionResponse, error) {
	ds, err := loadDataset()
	if err != nil {
		failPrediction("dataset_unavailable")
		return nil, err
	}
	b, err := builderFor(ds)
	if err != nil {
		failPrediction("dataset_unavailable")
		return nil, err
	}

	rec, err := b.Build(inputs)
	if err != nil {
		failPrediction("invalid_input")
		return nil, err
	}
	if err := b.CheckBounds(rec); err != nil {
		failPrediction("out_of_range")
		return nil, err
	}

	model, err := loadModel(ctx)
	if err != nil {
		failPrediction("model_unavailable")
		logger.Error("model unavailable", zap.Error(err))
		return nil, err
	}

	start := time.Now()
	out, err := model.Predict(ctx, rec)
	elapsed := time.Since(start)
	if err != nil {
		failPrediction("predict_failed")
		return nil, err
	}
	if metrics != nil {
		metrics.ObservePrediction(string(out.Label), out.Probabilities.Available(), elapsed)
	}

	row, err := db.NewPrediction(model.Name(), out)
	if err != nil {
		return nil, err
	}
	if store != nil {
		if err := store.SavePrediction(ctx, row); err != nil {
			logger.Warn("failed to log prediction", zap.String("prediction_id", row.ID), zap.Error(err))
		}
	}
	if hub != nil {
		hub.PublishPrediction(monitoring.PredictionEvent{
			PredictionID:  row.ID,
			Model:         row.Model,
			Label:         string(out.Label),
			DisplayName:   out.Label.DisplayName(),
			Probabilities: out.Probabilities,
			LatencyMillis: float64(elapsed.Microseconds()) / 1000,
		})
	}
	logger.Debug("prediction served",
		zap.String("prediction_id", row.ID),
		zap.String("label", string(out.Label)),
		zap.Bool("probabilities", out.Probabilities.Available()),
	)

	return &PredictionResponse{
		PredictionID:  row.ID,
		Model:         row.Model,
		Raw:           out.Raw,
		Label:         out.Label,
		DisplayName:   out.Label.DisplayName(),
		Probabilities: out.Probabilities,
		Record:        out.Record,
	}, nil
}

func failPrediction(reason string) {
	if metrics != nil {
		metrics.PredictionFailed(reason)
	}
}

func handleRecentPredictions(w http.ResponseWriter, r *http.Request) {
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "prediction log not configured")
		return
	}
	limit, err := intQuery(r, "limit", 20, 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if limit > maxRecentPredictions {
		limit = maxRecentPredictions
	}
	predictions, err := store.RecentPredictions(r.Context(), limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	labels, err := store.LabelCounts(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	respondJSON(w, map[string]interface{}{
		"predictions": predictions,
		"count":       len(predictions),
		"labels":      labels,
	})
}

func handlePredictionFeed(w http.ResponseWriter, r *http.Request) {
	if hub == nil {
		writeError(w, http.StatusServiceUnavailable, "live feed not configured")
		return
	}
	hub.ServeHTTP(w, r)
}
