// Package tract loads Census tract boundaries from a TIGER/Line shapefile
// and resolves coordinates to tract geo_ids.
package tract

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"
)

// feature is one tract polygon: its identifier, bounding box, and rings as
// flat XY coordinate slices.
type feature struct {
	geoID string
	box   shp.Box
	rings [][]float64
}

// Locator answers point-in-tract queries against loaded boundaries.
type Locator struct {
	features []feature
}

// LoadShapefile reads tract polygons from a TIGER/Line shapefile. A missing
// GEOID attribute is a contract violation and fails the load; individual
// degenerate shapes are skipped with a counter.
func LoadShapefile(path string) (*Locator, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "tract: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	geoIDIdx := -1
	for i, f := range reader.Fields() {
		name := strings.TrimRight(f.String(), "\x00")
		if strings.EqualFold(name, "GEOID") {
			geoIDIdx = i
			break
		}
	}
	if geoIDIdx < 0 {
		return nil, eris.Errorf("tract: shapefile %s has no GEOID field", path)
	}

	loc := &Locator{}
	var skipped int

	for reader.Next() {
		_, shape := reader.Shape()

		geoID := strings.TrimSpace(strings.TrimRight(reader.Attribute(geoIDIdx), "\x00"))
		poly, ok := shape.(*shp.Polygon)
		if !ok || geoID == "" || len(poly.Points) == 0 {
			skipped++
			continue
		}

		loc.features = append(loc.features, feature{
			geoID: geoID,
			box:   poly.Box,
			rings: polygonRings(poly),
		})
	}

	if skipped > 0 {
		zap.L().Debug("tract: skipped shapefile records", zap.Int("skipped", skipped))
	}
	if len(loc.features) == 0 {
		return nil, eris.Errorf("tract: shapefile %s contains no tract polygons", path)
	}

	return loc, nil
}

// polygonRings splits a shapefile polygon into flat coordinate rings.
func polygonRings(poly *shp.Polygon) [][]float64 {
	rings := make([][]float64, 0, poly.NumParts)
	for i := int32(0); i < poly.NumParts; i++ {
		start := poly.Parts[i]
		end := int32(len(poly.Points))
		if i+1 < poly.NumParts {
			end = poly.Parts[i+1]
		}

		ring := make([]float64, 0, 2*(end-start))
		for _, p := range poly.Points[start:end] {
			ring = append(ring, p.X, p.Y)
		}
		rings = append(rings, ring)
	}
	return rings
}

// Locate resolves a WGS84 coordinate to the containing tract's geo_id.
// Containment uses even-odd parity across all rings, so holes behave
// correctly without relying on shapefile ring winding.
func (l *Locator) Locate(lon, lat float64) (string, bool) {
	pt := geom.Coord{lon, lat}
	for _, f := range l.features {
		if lon < f.box.MinX || lon > f.box.MaxX || lat < f.box.MinY || lat > f.box.MaxY {
			continue
		}

		inside := false
		for _, ring := range f.rings {
			if xy.IsPointInRing(geom.XY, pt, ring) {
				inside = !inside
			}
		}
		if inside {
			return f.geoID, true
		}
	}
	return "", false
}

// Len returns the number of loaded tract polygons.
func (l *Locator) Len() int {
	return len(l.features)
}

// GeoIDs returns the loaded tract identifiers in file order.
func (l *Locator) GeoIDs() []string {
	ids := make([]string, len(l.features))
	for i, f := range l.features {
		ids[i] = f.geoID
	}
	return ids
}
