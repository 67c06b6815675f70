// Package dataset loads the packaged shipping reference dataset and exposes
// read-only column access for the summarizer, the EDA views and the overview page.
package dataset

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

var (
	ErrNotFound      = errors.New("dataset file not found")
	ErrMissingColumn = errors.New("dataset is missing required columns")
	ErrEmpty         = errors.New("dataset is empty")
	ErrInvalidTarget = errors.New("dataset target must be 0 or 1")
	ErrUnknownColumn = errors.New("unknown column")
	ErrNotNumeric    = errors.New("column is not numeric")
	ErrMissingValue  = errors.New("dataset has a missing or non-numeric value")
)

// Options controls how the CSV file is decoded.
type Options struct {
	// Encoding of the file: "utf-8" (default), "latin1" or "windows-1252".
	Encoding string
}

// Dataset is an immutable in-memory view of the reference data.
type Dataset struct {
	df     dataframe.DataFrame
	source string
	target []int
}

// Load reads the whole CSV file at path.
func Load(path string, opts Options) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("open dataset %s: %w", path, err)
	}
	defer file.Close()

	ds, err := Read(file, opts)
	if err != nil {
		return nil, fmt.Errorf("load dataset %s: %w", path, err)
	}
	ds.source = path
	return ds, nil
}

// Read parses a CSV stream and validates it against RequiredColumns.
func Read(r io.Reader, opts Options) (*Dataset, error) {
	decoded, err := decoder(r, opts.Encoding)
	if err != nil {
		return nil, err
	}

	df := dataframe.ReadCSV(decoded,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
		dataframe.WithTypes(columnTypes),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("parse csv: %w", df.Err)
	}

	if missing := missingColumns(df.Names()); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	if df.Nrow() == 0 {
		return nil, ErrEmpty
	}
	if err := checkNumeric(df); err != nil {
		return nil, err
	}

	target, err := parseTarget(df.Col(TargetColumn))
	if err != nil {
		return nil, err
	}

	return &Dataset{df: df, target: target}, nil
}

func decoder(r io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "utf-8", "utf8":
		return r, nil
	case "latin1", "iso-8859-1":
		return transform.NewReader(r, charmap.ISO8859_1.NewDecoder()), nil
	case "windows-1252", "cp1252":
		return transform.NewReader(r, charmap.Windows1252.NewDecoder()), nil
	default:
		return nil, fmt.Errorf("unsupported dataset encoding %q", encoding)
	}
}

func missingColumns(names []string) []string {
	present := make(map[string]bool, len(names))
	for _, name := range names {
		present[name] = true
	}
	var missing []string
	for _, col := range RequiredColumns {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	return missing
}

// checkNumeric rejects cells that gota could not parse in a numeric column.
func checkNumeric(df dataframe.DataFrame) error {
	for _, name := range df.Names() {
		if name == TargetColumn {
			continue
		}
		s := df.Col(name)
		if s.Type() != series.Int && s.Type() != series.Float {
			continue
		}
		for i := 0; i < s.Len(); i++ {
			if s.Elem(i).IsNA() {
				return fmt.Errorf("%w: %s row %d", ErrMissingValue, name, i+1)
			}
		}
	}
	return nil
}

func parseTarget(s series.Series) ([]int, error) {
	values := s.Float()
	target := make([]int, len(values))
	for i, v := range values {
		switch v {
		case 0:
			target[i] = 0
		case 1:
			target[i] = 1
		default:
			return nil, fmt.Errorf("%w: row %d has %v", ErrInvalidTarget, i+1, s.Elem(i).String())
		}
	}
	return target, nil
}

// Source returns the file the dataset was loaded from, if any.
func (d *Dataset) Source() string {
	return d.source
}

// Rows returns the number of shipments.
func (d *Dataset) Rows() int {
	return d.df.Nrow()
}

// Columns returns column names in file order.
func (d *Dataset) Columns() []string {
	return d.df.Names()
}

// Has reports whether the column exists.
func (d *Dataset) Has(column string) bool {
	for _, name := range d.df.Names() {
		if name == column {
			return true
		}
	}
	return false
}

// Float returns a copy of a numeric column.
func (d *Dataset) Float(column string) ([]float64, error) {
	if !d.Has(column) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, column)
	}
	s := d.df.Col(column)
	if s.Type() == series.String || s.Type() == series.Bool {
		return nil, fmt.Errorf("%w: %s", ErrNotNumeric, column)
	}
	return s.Float(), nil
}

// Strings returns a column rendered as strings.
func (d *Dataset) Strings(column string) ([]string, error) {
	if !d.Has(column) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, column)
	}
	return render(d.df.Col(column)), nil
}

// render formats a series the way it appears in the file: whole floats
// without a fraction, everything else as gota prints it.
func render(s series.Series) []string {
	if s.Type() != series.Float {
		return s.Records()
	}
	values := s.Float()
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return out
}

// Target returns the 0/1 delivery outcome per row.
func (d *Dataset) Target() []int {
	out := make([]int, len(d.target))
	copy(out, d.target)
	return out
}

// CategoricalColumns returns the text columns in file order.
func (d *Dataset) CategoricalColumns() []string {
	var cols []string
	for i, t := range d.df.Types() {
		if t == series.String {
			cols = append(cols, d.df.Names()[i])
		}
	}
	return cols
}

// NumericColumns returns the numeric columns except the target and the row id.
func (d *Dataset) NumericColumns() []string {
	var cols []string
	for i, t := range d.df.Types() {
		name := d.df.Names()[i]
		if name == TargetColumn || name == ColumnID {
			continue
		}
		if t == series.Int || t == series.Float {
			cols = append(cols, name)
		}
	}
	return cols
}

// Table is a rendered slice of the dataset.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Head returns the first n rows.
func (d *Dataset) Head(n int) Table {
	if n > d.Rows() {
		n = d.Rows()
	}
	if n <= 0 {
		return Table{Columns: d.Columns(), Rows: [][]string{}}
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sub := d.df.Subset(idx)
	cols := make([][]string, sub.Ncol())
	for j, name := range sub.Names() {
		cols[j] = render(sub.Col(name))
	}
	rows := make([][]string, n)
	for i := range rows {
		rows[i] = make([]string, len(cols))
		for j := range cols {
			rows[i][j] = cols[j][i]
		}
	}
	return Table{Columns: sub.Names(), Rows: rows}
}
