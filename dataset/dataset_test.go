package dataset

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

const fixturePath = "testdata/shipping.csv"

func TestLoadFixture(t *testing.T) {
	ds, err := Load(fixturePath, Options{})
	require.NoError(t, err)

	assert.Equal(t, 10, ds.Rows())
	assert.Equal(t, fixturePath, ds.Source())
	assert.Equal(t, RequiredColumns, ds.Columns())
	assert.Equal(t, []int{1, 1, 1, 1, 1, 1, 0, 0, 0, 0}, ds.Target())

	costs, err := ds.Float(ColumnCost)
	require.NoError(t, err)
	assert.Len(t, costs, 10)
	assert.Equal(t, 177.0, costs[0])

	importance, err := ds.Strings(ColumnImportance)
	require.NoError(t, err)
	assert.Equal(t, "low", importance[0])
	assert.Equal(t, "high", importance[9])
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.csv"), Options{})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestReadMissingColumns(t *testing.T) {
	csv := "ID,Warehouse_block,Reached.on.Time_Y.N\n1,A,1\n"
	_, err := Read(strings.NewReader(csv), Options{})
	require.ErrorIs(t, err, ErrMissingColumn)
	assert.Contains(t, err.Error(), ColumnWeight)
	assert.Contains(t, err.Error(), ColumnImportance)
}

func TestReadEmpty(t *testing.T) {
	header := strings.Join(RequiredColumns, ",") + "\n"
	_, err := Read(strings.NewReader(header), Options{})
	require.Error(t, err)
}

func TestReadInvalidTarget(t *testing.T) {
	csv := strings.Join(RequiredColumns, ",") + "\n" +
		"1,A,Ship,3,2,100,2,low,F,5,1000,2\n"
	_, err := Read(strings.NewReader(csv), Options{})
	require.ErrorIs(t, err, ErrInvalidTarget)
}

func TestReadLatin1(t *testing.T) {
	csv := strings.Join(RequiredColumns, ",") + "\n" +
		"1,A,Ship,3,2,100,2,très,F,5,1000,1\n"
	encoded, err := charmap.ISO8859_1.NewEncoder().String(csv)
	require.NoError(t, err)

	ds, err := Read(bytes.NewBufferString(encoded), Options{Encoding: "latin1"})
	require.NoError(t, err)
	values, err := ds.Strings(ColumnImportance)
	require.NoError(t, err)
	assert.Equal(t, []string{"très"}, values)
}

func TestReadUnsupportedEncoding(t *testing.T) {
	_, err := Read(strings.NewReader(""), Options{Encoding: "ebcdic"})
	require.Error(t, err)
}

func TestColumnAccessErrors(t *testing.T) {
	ds, err := Load(fixturePath, Options{})
	require.NoError(t, err)

	_, err = ds.Float("Nope")
	assert.ErrorIs(t, err, ErrUnknownColumn)
	_, err = ds.Float(ColumnGender)
	assert.ErrorIs(t, err, ErrNotNumeric)
	_, err = ds.Strings("Nope")
	assert.ErrorIs(t, err, ErrUnknownColumn)
}

func TestColumnKinds(t *testing.T) {
	ds, err := Load(fixturePath, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{ColumnWarehouseBlock, ColumnModeOfShipment, ColumnImportance, ColumnGender}, ds.CategoricalColumns())
	assert.Equal(t, []string{
		ColumnCustomerCareCalls, ColumnCustomerRating, ColumnCost,
		ColumnPriorPurchases, ColumnDiscount, ColumnWeight,
	}, ds.NumericColumns())
}

func TestHead(t *testing.T) {
	ds, err := Load(fixturePath, Options{})
	require.NoError(t, err)

	head := ds.Head(5)
	assert.Equal(t, RequiredColumns, head.Columns)
	require.Len(t, head.Rows, 5)
	assert.Equal(t, "1", head.Rows[0][0])
	assert.Equal(t, "5", head.Rows[4][0])
	assert.Equal(t, "177", head.Rows[0][5], "whole floats render without a fraction")

	assert.Len(t, ds.Head(50).Rows, 10)
	assert.Empty(t, ds.Head(0).Rows)
}

func TestOverview(t *testing.T) {
	ds, err := Load(fixturePath, Options{})
	require.NoError(t, err)

	ov := ds.Overview()
	assert.Equal(t, 10, ov.TotalShipments)
	assert.InDelta(t, 194.7, ov.AverageCost, 1e-9)
	assert.InDelta(t, 60.0, ov.OnTimeRate, 1e-9)
	assert.Equal(t, "10", ov.TotalShipmentsText)
	assert.Equal(t, "$195", ov.AverageCostText)
	assert.Equal(t, "60.0%", ov.OnTimeRateText)
	assert.Len(t, ov.Sample.Rows, 5)
}

func TestReadFractionalValues(t *testing.T) {
	csv := strings.Join(RequiredColumns, ",") + "\n" +
		"1,A,Ship,3,2,150.5,2,low,F,5,2000.7,1\n" +
		"2,B,Road,4,3,180,3,high,M,10,2100,0\n"
	ds, err := Read(strings.NewReader(csv), Options{})
	require.NoError(t, err)

	costs, err := ds.Float(ColumnCost)
	require.NoError(t, err)
	assert.Equal(t, []float64{150.5, 180}, costs)
	weights, err := ds.Float(ColumnWeight)
	require.NoError(t, err)
	assert.Equal(t, []float64{2000.7, 2100}, weights)

	ov := ds.Overview()
	assert.InDelta(t, 165.25, ov.AverageCost, 1e-9)
	assert.Equal(t, "$165", ov.AverageCostText)
	_, err = json.Marshal(ov)
	require.NoError(t, err)
	assert.Equal(t, "150.5", ov.Sample.Rows[0][5])
}

func TestReadEmptyNumericCell(t *testing.T) {
	csv := strings.Join(RequiredColumns, ",") + "\n" +
		"1,A,Ship,3,2,,2,low,F,5,2000,1\n" +
		"2,B,Road,4,3,180,3,high,M,10,2100,0\n"
	_, err := Read(strings.NewReader(csv), Options{})
	require.ErrorIs(t, err, ErrMissingValue)
	assert.Contains(t, err.Error(), ColumnCost)
	assert.Contains(t, err.Error(), "row 1")
}

func TestMeanSkipsNonFinite(t *testing.T) {
	assert.InDelta(t, 2.0, mean([]float64{1, math.NaN(), 3, math.Inf(1)}), 1e-9)
	assert.Equal(t, 0.0, mean([]float64{math.NaN()}))
	assert.Equal(t, 0.0, mean(nil))
}

func TestFormatCount(t *testing.T) {
	assert.Equal(t, "10,999", FormatCount(10999))
	assert.Equal(t, "999", FormatCount(999))
}

func TestGlobalLoadsOnce(t *testing.T) {
	ResetGlobal()
	defer ResetGlobal()

	_, err := Global()
	require.ErrorIs(t, err, ErrNotConfigured)

	ResetGlobal()
	Configure(fixturePath, Options{})
	first, err := Global()
	require.NoError(t, err)

	// A later Configure must not replace the cached instance.
	Configure("testdata/other.csv", Options{})
	second, err := Global()
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestSetGlobalOverride(t *testing.T) {
	defer ResetGlobal()

	ds, err := Load(fixturePath, Options{})
	require.NoError(t, err)

	SetGlobal(ds)
	got, err := Global()
	require.NoError(t, err)
	assert.Same(t, ds, got)
}

func TestGlobalResetWhileLoading(t *testing.T) {
	ResetGlobal()
	defer ResetGlobal()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			Configure(fixturePath, Options{})
			if _, err := Global(); err != nil && !errors.Is(err, ErrNotConfigured) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			ResetGlobal()
		}()
	}
	wg.Wait()

	Configure(fixturePath, Options{})
	ds, err := Global()
	require.NoError(t, err)
	assert.Equal(t, 10, ds.Rows())
}
