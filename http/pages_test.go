package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"shipmonitor/dataset"
	"shipmonitor/ml"
)

func postForm(mux http.Handler, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func validForm() url.Values {
	return url.Values{
		dataset.ColumnCustomerCareCalls: {"3"},
		dataset.ColumnCost:              {"100"},
		dataset.ColumnPriorPurchases:    {"2"},
		dataset.ColumnDiscount:          {"10"},
		dataset.ColumnWeight:            {"2000"},
		dataset.ColumnImportance:        {"high"},
	}
}

func TestOverviewPage(t *testing.T) {
	useFixture(t)

	w := serve(newMux(), http.MethodGet, "/", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{"Total shipments", "60.0%", "Warehouse_block"} {
		if !strings.Contains(body, want) {
			t.Errorf("overview page missing %q", want)
		}
	}
}

func TestUnknownPathIsNotFound(t *testing.T) {
	useFixture(t)

	if w := serve(newMux(), http.MethodGet, "/nope", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestEDAPage(t *testing.T) {
	useFixture(t)

	w := serve(newMux(), http.MethodGet, "/eda?category=Gender&numeric=Discount_offered&segment=Warehouse_block", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	for _, want := range []string{
		"Delivery by Gender",
		"/api/eda/charts/histogram/Discount_offered",
		"Segments by Warehouse_block",
		"About 40.0% of shipments arrive late.",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("eda page missing %q", want)
		}
	}
}

func TestEDAPageFallsBackToFirstColumn(t *testing.T) {
	useFixture(t)

	w := serve(newMux(), http.MethodGet, "/eda?category=bogus", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Delivery by Warehouse_block") {
		t.Fatal("expected the first categorical column to be selected")
	}
}

func TestPredictPageForm(t *testing.T) {
	useFixture(t)

	w := serve(newMux(), http.MethodGet, "/predict", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		`type="range"`,
		`name="Customer_care_calls" min="2" max="6"`,
		`<select id="Product_importance" name="Product_importance">`,
		`<option value="medium"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("predict form missing %q", want)
		}
	}
}

func TestPredictPageSubmit(t *testing.T) {
	useFixture(t)
	useModel(t, ml.NewModel("stub-logreg", stubEstimator{stubClassifier{raw: 0}, [2]float64{0.8, 0.2}}), nil)

	w := postForm(newMux(), validForm())
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	for _, want := range []string{"<h2>Late</h2>", "80.0%", "20.0%"} {
		if !strings.Contains(body, want) {
			t.Errorf("result missing %q", want)
		}
	}
}

func TestPredictPageSubmitWithoutProbabilities(t *testing.T) {
	useFixture(t)
	useModel(t, ml.NewModel("stub-tree", stubClassifier{raw: 1}), nil)

	w := postForm(newMux(), validForm())
	body := w.Body.String()
	if !strings.Contains(body, "<h2>On Time</h2>") {
		t.Fatalf("expected on-time result, got %s", body)
	}
	if !strings.Contains(body, "Probabilities unavailable") {
		t.Fatal("expected probabilities to be reported unavailable")
	}
}

func TestPredictPageSubmitOutOfRange(t *testing.T) {
	useFixture(t)
	useModel(t, ml.NewModel("stub-tree", stubClassifier{raw: 1}), nil)

	form := validForm()
	form.Set(dataset.ColumnWeight, "9000")
	w := postForm(newMux(), form)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `class="error"`) {
		t.Fatal("expected the error to be rendered")
	}
}

func TestPagesDatasetUnavailable(t *testing.T) {
	useDatasetError(t, dataset.ErrNotFound)

	for _, target := range []string{"/", "/eda", "/predict"} {
		w := serve(newMux(), http.MethodGet, target, "")
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: expected 503, got %d", target, w.Code)
		}
	}
}
