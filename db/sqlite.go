package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"shipmonitor/ml"
)

const defaultRecentLimit = 20

const schema = `
    CREATE TABLE IF NOT EXISTS predictions (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        prediction_id TEXT NOT NULL,
        model_name TEXT NOT NULL,
        customer_care_calls REAL NOT NULL,
        cost REAL NOT NULL,
        prior_purchases REAL NOT NULL,
        discount REAL NOT NULL,
        weight REAL NOT NULL,
        importance TEXT NOT NULL,
        raw_label INTEGER NOT NULL,
        label TEXT NOT NULL,
        p_late REAL,
        p_on_time REAL,
        created_at DATETIME NOT NULL,
        UNIQUE(prediction_id)
    );
    CREATE INDEX IF NOT EXISTS idx_predictions_created_at ON predictions(created_at);
    `

// Prediction is one logged outcome. Probabilities that were unavailable are
// stored as NULL and come back unavailable.
type Prediction struct {
	ID                string           `json:"id"`
	Model             string           `json:"model"`
	CustomerCareCalls float64          `json:"customer_care_calls"`
	Cost              float64          `json:"cost"`
	PriorPurchases    float64          `json:"prior_purchases"`
	Discount          float64          `json:"discount"`
	Weight            float64          `json:"weight"`
	Importance        string           `json:"importance"`
	Raw               int              `json:"raw"`
	Label             ml.Label         `json:"label"`
	Probabilities     ml.Probabilities `json:"probabilities"`
	CreatedAt         time.Time        `json:"created_at"`
}

// NewPrediction flattens an outcome into a loggable row with a fresh id.
func NewPrediction(model string, out *ml.Outcome) (Prediction, error) {
	if out == nil {
		return Prediction{}, errors.New("nil outcome")
	}
	if err := ml.ValidateRecord(out.Record); err != nil {
		return Prediction{}, err
	}
	p := Prediction{
		ID:            uuid.NewString(),
		Model:         model,
		Raw:           out.Raw,
		Label:         out.Label,
		Probabilities: out.Probabilities,
		CreatedAt:     time.Now().UTC(),
	}
	numbers := []*float64{&p.CustomerCareCalls, &p.Cost, &p.PriorPurchases, &p.Discount, &p.Weight}
	for i, dst := range numbers {
		v, err := out.Record.Number(i)
		if err != nil {
			return Prediction{}, err
		}
		*dst = v
	}
	importance, err := out.Record.Text(len(numbers))
	if err != nil {
		return Prediction{}, err
	}
	p.Importance = importance
	return p, nil
}

// Store is the prediction log.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path and applies the schema.
func Open(path string) (*Store, error) {
	database, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// sqlite3 allows a single writer
	database.SetMaxOpenConns(1)

	if _, err := database.Exec(schema); err != nil {
		database.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: database}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SavePrediction appends p to the log.
func (s *Store) SavePrediction(ctx context.Context, p Prediction) error {
	if p.ID == "" {
		return errors.New("prediction id required")
	}
	var late, onTime sql.NullFloat64
	if v, ok := p.Probabilities.Late(); ok {
		late = sql.NullFloat64{Float64: v, Valid: true}
	}
	if v, ok := p.Probabilities.OnTime(); ok {
		onTime = sql.NullFloat64{Float64: v, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
        INSERT INTO predictions (
            prediction_id, model_name, customer_care_calls, cost, prior_purchases,
            discount, weight, importance, raw_label, label, p_late, p_on_time, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Model, p.CustomerCareCalls, p.Cost, p.PriorPurchases,
		p.Discount, p.Weight, p.Importance, p.Raw, string(p.Label), late, onTime, p.CreatedAt)
	return err
}

// RecentPredictions returns up to limit predictions, newest first.
func (s *Store) RecentPredictions(ctx context.Context, limit int) ([]Prediction, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT prediction_id, model_name, customer_care_calls, cost, prior_purchases,
               discount, weight, importance, raw_label, label, p_late, p_on_time, created_at
        FROM predictions
        ORDER BY created_at DESC, id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	predictions := make([]Prediction, 0)
	for rows.Next() {
		var p Prediction
		var label string
		var late, onTime sql.NullFloat64
		err := rows.Scan(&p.ID, &p.Model, &p.CustomerCareCalls, &p.Cost, &p.PriorPurchases,
			&p.Discount, &p.Weight, &p.Importance, &p.Raw, &label, &late, &onTime, &p.CreatedAt)
		if err != nil {
			return nil, err
		}
		p.Label = ml.Label(label)
		if late.Valid && onTime.Valid {
			p.Probabilities = ml.FromVector([2]float64{late.Float64, onTime.Float64})
		} else {
			p.Probabilities = ml.Unavailable()
		}
		predictions = append(predictions, p)
	}
	return predictions, rows.Err()
}

// LabelCounts returns how many logged predictions carry each label.
func (s *Store) LabelCounts(ctx context.Context) (map[ml.Label]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT label, COUNT(*) FROM predictions GROUP BY label`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[ml.Label]int)
	for rows.Next() {
		var label string
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			return nil, err
		}
		counts[ml.Label(label)] = n
	}
	return counts, rows.Err()
}
