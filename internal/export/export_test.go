package export

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/urbanhealthlab/icemapper/internal/ice"
	"github.com/urbanhealthlab/icemapper/internal/incident"
)

func ptr(v float64) *float64 { return &v }

func sampleIndices() []ice.TractIndices {
	return []ice.TractIndices{
		{
			GeoID:           "36047000200",
			ICERaceIncome:   ptr(0.6),
			ICERace:         ptr(-0.2),
			ICEIncome:       ptr(0.18),
			PropInPoverty:   ptr(0.25),
			PropBlack:       ptr(0.3),
			PropHispanic:    ptr(0.2),
			PropWhiteNH:     ptr(0.4),
			TotalPopulation: 1000,
		},
		{
			GeoID:           "36047000100",
			TotalPopulation: 0,
		},
	}
}

func TestJoin(t *testing.T) {
	counts := []incident.TractCounts{
		{GeoID: "36047000200", Incidents: 7, Murders: 2},
		{GeoID: "36061999999", Incidents: 3, Murders: 1}, // no matching tract
	}

	rows := Join(sampleIndices(), counts)
	require.Len(t, rows, 2)

	// Sorted by geo_id; tract without incidents gets zeros.
	assert.Equal(t, "36047000100", rows[0].GeoID)
	assert.Zero(t, rows[0].Incidents)
	assert.Zero(t, rows[0].Murders)

	assert.Equal(t, "36047000200", rows[1].GeoID)
	assert.Equal(t, int64(7), rows[1].Incidents)
	assert.Equal(t, int64(2), rows[1].Murders)
}

func TestWriteCSV(t *testing.T) {
	rows := Join(sampleIndices(), []incident.TractCounts{
		{GeoID: "36047000200", Incidents: 7, Murders: 2},
	})

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rows))

	want := "geo_id,ice_race_income,ice_race,ice_income,prop_in_poverty," +
		"prop_black,prop_hispanic,prop_white_nonhispanic,total_population,incidents,murders\n" +
		"36047000100,,,,,,,,0,0,0\n" +
		"36047000200,0.6,-0.2,0.18,0.25,0.3,0.2,0.4,1000,7,2\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteCSV_Deterministic(t *testing.T) {
	rows := Join(sampleIndices(), nil)

	var a, b bytes.Buffer
	require.NoError(t, WriteCSV(&a, rows))
	require.NoError(t, WriteCSV(&b, rows))
	assert.Equal(t, a.Bytes(), b.Bytes())
}

func TestWriteCSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, WriteCSVFile(path, Join(sampleIndices(), nil)))

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, Join(sampleIndices(), nil)))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, buf.String(), string(got))
}

func TestWriteXLSXFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	rows := Join(sampleIndices(), []incident.TractCounts{
		{GeoID: "36047000200", Incidents: 7, Murders: 2},
	})
	require.NoError(t, WriteXLSXFile(path, rows))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)
	sheet := f.Sheets[0]
	assert.Equal(t, "tract_indices", sheet.Name)
	require.Len(t, sheet.Rows, 3)

	assert.Equal(t, "geo_id", sheet.Rows[0].Cells[0].String())

	// Undefined ratios are blank cells.
	assert.Equal(t, "36047000100", sheet.Rows[1].Cells[0].String())
	assert.Empty(t, sheet.Rows[1].Cells[1].String())

	got, err := sheet.Rows[2].Cells[1].Float()
	require.NoError(t, err)
	assert.InDelta(t, 0.6, got, 1e-12)

	n, err := sheet.Rows[2].Cells[9].Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}
