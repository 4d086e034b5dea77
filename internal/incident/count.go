package incident

import (
	"sort"
)

// TractCounts is the per-tract incident tally.
type TractCounts struct {
	GeoID     string `json:"geo_id"`
	Incidents int64  `json:"incidents"`
	Murders   int64  `json:"murders"`
}

// Locator resolves a WGS84 coordinate to a tract geo_id.
type Locator interface {
	Locate(lon, lat float64) (string, bool)
}

// CountResult is the outcome of assigning incidents to tracts.
type CountResult struct {
	Counts      []TractCounts // sorted by geo_id
	Unassigned  int           // located incidents falling in no tract
	Unlocatable int           // incidents without usable coordinates
}

// CountByTract assigns each locatable incident to a tract and tallies totals
// and murders per tract. Incidents outside every tract are counted as
// unassigned, never dropped silently.
func CountByTract(incidents []Incident, loc Locator) CountResult {
	byTract := make(map[string]*TractCounts)
	var res CountResult

	for _, inc := range incidents {
		if !inc.Located {
			res.Unlocatable++
			continue
		}
		geoID, ok := loc.Locate(inc.Lon, inc.Lat)
		if !ok {
			res.Unassigned++
			continue
		}

		tc, ok := byTract[geoID]
		if !ok {
			tc = &TractCounts{GeoID: geoID}
			byTract[geoID] = tc
		}
		tc.Incidents++
		if inc.Murder {
			tc.Murders++
		}
	}

	res.Counts = make([]TractCounts, 0, len(byTract))
	for _, tc := range byTract {
		res.Counts = append(res.Counts, *tc)
	}
	sort.Slice(res.Counts, func(i, j int) bool { return res.Counts[i].GeoID < res.Counts[j].GeoID })

	return res
}
