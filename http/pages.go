package http

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"shipmonitor/dataset"
	"shipmonitor/eda"
	"shipmonitor/ml"
)

//go:embed templates/*.html
var templateFS embed.FS

var templateFuncs = template.FuncMap{
	"percent": dataset.FormatPercent,
	"count":   dataset.FormatCount,
	"number":  func(v float64) string { return fmt.Sprintf("%.1f", v) },
	"path":    url.PathEscape,
}

var pages = map[string]*template.Template{
	"overview": parsePage("overview.html"),
	"eda":      parsePage("eda.html"),
	"predict":  parsePage("predict.html"),
	"error":    parsePage("error.html"),
}

func parsePage(name string) *template.Template {
	return template.Must(template.New("layout.html").Funcs(templateFuncs).
		ParseFS(templateFS, "templates/layout.html", "templates/"+name))
}

func RegisterPages(mux *http.ServeMux) {
	handle(mux, "GET /{$}", handleOverviewPage)
	handle(mux, "GET /eda", handleEDAPage)
	handle(mux, "GET /predict", handlePredictPage)
	handle(mux, "POST /predict", handlePredictSubmit)
}

type pageBase struct {
	Title  string
	Active string
	Source string
}

func renderPage(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := pages[name].Execute(&buf, data); err != nil {
		logger.Error("render page", zap.String("page", name), zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func renderErrorPage(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("page failed", zap.Error(err))
	}
	renderPage(w, status, "error", struct {
		pageBase
		Status  int
		Message string
	}{
		pageBase: pageBase{Title: http.StatusText(status)},
		Status:   status,
		Message:  err.Error(),
	})
}

func handleOverviewPage(w http.ResponseWriter, r *http.Request) {
	ds, err := loadDataset()
	if err != nil {
		renderErrorPage(w, err)
		return
	}
	renderPage(w, http.StatusOK, "overview", struct {
		pageBase
		Overview dataset.Overview
	}{
		pageBase: pageBase{Title: "Shipping Service Monitor", Active: "overview", Source: ds.Source()},
		Overview: ds.Overview(),
	})
}

type edaPage struct {
	pageBase
	Cards             eda.Cards
	Status            eda.Status
	CategoryColumns   []string
	Category          string
	CategoryShares    []eda.CategoryShare
	NumericColumns    []string
	Numeric           string
	Distribution      *eda.Distribution
	SegmentColumns    []string
	Segment           string
	Segments          []eda.Segment
	StatusChartColumn string
}

func handleEDAPage(w http.ResponseWriter, r *http.Request) {
	ds, err := loadDataset()
	if err != nil {
		renderErrorPage(w, err)
		return
	}

	p := edaPage{
		pageBase:          pageBase{Title: "Exploratory Data Analysis", Active: "eda", Source: ds.Source()},
		Status:            eda.DeliveryStatus(ds),
		CategoryColumns:   ds.CategoricalColumns(),
		NumericColumns:    ds.NumericColumns(),
		SegmentColumns:    eda.SegmentColumns,
		StatusChartColumn: dataset.TargetColumn,
	}
	if p.Cards, err = eda.Summary(ds); err != nil {
		renderErrorPage(w, err)
		return
	}

	q := r.URL.Query()
	p.Category = pick(q.Get("category"), p.CategoryColumns)
	p.Numeric = pick(q.Get("numeric"), p.NumericColumns)
	p.Segment = pick(q.Get("segment"), p.SegmentColumns)

	if p.Category != "" {
		if p.CategoryShares, err = eda.ByCategory(ds, p.Category); err != nil {
			renderErrorPage(w, err)
			return
		}
	}
	if p.Numeric != "" {
		if p.Distribution, err = eda.NumericDistribution(ds, p.Numeric, 0); err != nil {
			renderErrorPage(w, err)
			return
		}
	}
	if p.Segments, err = eda.Segments(ds, p.Segment); err != nil {
		renderErrorPage(w, err)
		return
	}
	renderPage(w, http.StatusOK, "eda", p)
}

// pick returns want if it is one of options, otherwise the first option.
func pick(want string, options []string) string {
	for _, o := range options {
		if o == want {
			return o
		}
	}
	if len(options) == 0 {
		return ""
	}
	return options[0]
}

type fieldView struct {
	ml.FormField
	Value string
}

type predictPage struct {
	pageBase
	Fields       []fieldView
	Result       *PredictionResponse
	LateText     string
	OnTimeText   string
	Error        string
	SupportsLive bool
}

func newPredictPage(b *ml.RequestBuilder, submitted url.Values, source string) predictPage {
	p := predictPage{
		pageBase:     pageBase{Title: "Predict delivery", Active: "predict", Source: source},
		SupportsLive: hub != nil,
	}
	for _, f := range b.Form() {
		v := submitted.Get(f.Name)
		if v == "" {
			v = fmt.Sprint(f.Default)
		}
		p.Fields = append(p.Fields, fieldView{FormField: f, Value: v})
	}
	return p
}

func handlePredictPage(w http.ResponseWriter, r *http.Request) {
	ds, err := loadDataset()
	if err != nil {
		renderErrorPage(w, err)
		return
	}
	b, err := builderFor(ds)
	if err != nil {
		renderErrorPage(w, err)
		return
	}
	renderPage(w, http.StatusOK, "predict", newPredictPage(b, nil, ds.Source()))
}

func handlePredictSubmit(w http.ResponseWriter, r *http.Request) {
	ds, err := loadDataset()
	if err != nil {
		renderErrorPage(w, err)
		return
	}
	b, err := builderFor(ds)
	if err != nil {
		renderErrorPage(w, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		renderErrorPage(w, fmt.Errorf("%w: %v", ml.ErrInvalidValue, err))
		return
	}

	inputs := make(map[string]any, len(ml.FeatureOrder))
	for _, name := range ml.FeatureOrder {
		if v := r.PostForm.Get(name); v != "" {
			inputs[name] = v
		}
	}

	p := newPredictPage(b, r.PostForm, ds.Source())
	resp, err := predict(r.Context(), inputs)
	if err != nil {
		p.Error = err.Error()
		renderPage(w, statusFor(err), "predict", p)
		return
	}
	p.Result = resp
	if late, ok := resp.Probabilities.Late(); ok {
		p.LateText = dataset.FormatPercent(late * 100)
	}
	if onTime, ok := resp.Probabilities.OnTime(); ok {
		p.OnTimeText = dataset.FormatPercent(onTime * 100)
	}
	renderPage(w, http.StatusOK, "predict", p)
}
