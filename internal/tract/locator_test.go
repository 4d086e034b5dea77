package tract

import (
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTractShapefile writes a shapefile with one square tract per entry.
func writeTractShapefile(t *testing.T, path string, squares map[string][4]float64) {
	t.Helper()

	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{shp.StringField("GEOID", 20)}))

	for geoID, b := range squares {
		minX, minY, maxX, maxY := b[0], b[1], b[2], b[3]
		ring := []shp.Point{
			{X: minX, Y: minY},
			{X: minX, Y: maxY},
			{X: maxX, Y: maxY},
			{X: maxX, Y: minY},
			{X: minX, Y: minY},
		}
		poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{ring}))
		n := w.Write(&poly)
		require.NoError(t, w.WriteAttribute(int(n), 0, geoID))
	}
	w.Close()
}

func TestLoadShapefile_Locate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracts.shp")
	writeTractShapefile(t, path, map[string][4]float64{
		"36047000100": {-74.0, 40.6, -73.9, 40.7},
		"36047000200": {-73.9, 40.6, -73.8, 40.7},
	})

	loc, err := LoadShapefile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, loc.Len())
	assert.ElementsMatch(t, []string{"36047000100", "36047000200"}, loc.GeoIDs())

	geoID, ok := loc.Locate(-73.95, 40.65)
	require.True(t, ok)
	assert.Equal(t, "36047000100", geoID)

	geoID, ok = loc.Locate(-73.85, 40.65)
	require.True(t, ok)
	assert.Equal(t, "36047000200", geoID)

	// Outside every tract.
	_, ok = loc.Locate(-73.5, 40.65)
	assert.False(t, ok)
	_, ok = loc.Locate(-73.95, 41.2)
	assert.False(t, ok)
}

func TestLoadShapefile_MissingGEOIDFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.shp")

	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{shp.StringField("NAME", 20)}))
	ring := []shp.Point{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 0}, {X: 0, Y: 0}}
	poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{ring}))
	n := w.Write(&poly)
	require.NoError(t, w.WriteAttribute(int(n), 0, "not-a-geoid"))
	w.Close()

	_, err = LoadShapefile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEOID")
}

func TestLocate_HoleUsesEvenOddParity(t *testing.T) {
	outer := []float64{0, 0, 0, 4, 4, 4, 4, 0, 0, 0}
	hole := []float64{1, 1, 1, 2, 2, 2, 2, 1, 1, 1}
	loc := &Locator{features: []feature{{
		geoID: "T1",
		box:   shp.Box{MinX: 0, MinY: 0, MaxX: 4, MaxY: 4},
		rings: [][]float64{outer, hole},
	}}}

	// In the shell but not the hole.
	geoID, ok := loc.Locate(3, 3)
	require.True(t, ok)
	assert.Equal(t, "T1", geoID)

	// Inside the hole: parity even, outside the tract.
	_, ok = loc.Locate(1.5, 1.5)
	assert.False(t, ok)
}

func TestLocate_BoundingBoxPrefilter(t *testing.T) {
	loc := &Locator{features: []feature{{
		geoID: "T1",
		box:   shp.Box{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1},
		rings: [][]float64{{0, 0, 0, 1, 1, 1, 1, 0, 0, 0}},
	}}}

	_, ok := loc.Locate(5, 5)
	assert.False(t, ok)
}
