package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	m.ObservePrediction("on-time", true, 2*time.Millisecond)
	m.ObservePrediction("late", false, time.Millisecond)
	m.ObservePrediction("late", false, time.Millisecond)
	m.PredictionFailed("out_of_range")
	m.ObserveArtifact("local", errors.New("missing"))
	m.ObserveArtifact("remote", nil)
	m.ObserveHTTP("/api/predict", 200, 5*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.predictions.WithLabelValues("on-time", "available")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.predictions.WithLabelValues("late", "unavailable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.predictionErrors.WithLabelValues("out_of_range")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.artifactResolutions.WithLabelValues("local", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.artifactResolutions.WithLabelValues("remote", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("/api/predict", "200")))

	families, err := registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestHubBroadcastsPredictions(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	hub := NewHub(nil, metrics)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var hello Message
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, MessageHello, hello.Type)

	require.Eventually(t, func() bool {
		return hub.Clients() == 1 && testutil.ToFloat64(metrics.wsClients) == 1
	}, 2*time.Second, 10*time.Millisecond)

	hub.PublishPrediction(PredictionEvent{PredictionID: "p-1", Label: "on-time", DisplayName: "On Time"})

	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MessagePrediction, msg.Type)
	var ev PredictionEvent
	require.NoError(t, json.Unmarshal(msg.Data, &ev))
	assert.Equal(t, "p-1", ev.PredictionID)
	assert.Equal(t, "On Time", ev.DisplayName)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubStops(t *testing.T) {
	hub := NewHub(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	cancel()

	select {
	case <-hub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}
	// publishing after shutdown must not block
	hub.PublishPrediction(PredictionEvent{PredictionID: "late"})
}
