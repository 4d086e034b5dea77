// Package export writes the joined tract table to CSV or XLSX.
package export

import (
	"sort"
	"strconv"

	"github.com/urbanhealthlab/icemapper/internal/ice"
	"github.com/urbanhealthlab/icemapper/internal/incident"
)

// Header is the output column order. It is part of the file contract;
// downstream analysis scripts index columns by position.
var Header = []string{
	"geo_id",
	"ice_race_income",
	"ice_race",
	"ice_income",
	"prop_in_poverty",
	"prop_black",
	"prop_hispanic",
	"prop_white_nonhispanic",
	"total_population",
	"incidents",
	"murders",
}

// Row is one exported tract: derived indices joined with incident tallies.
type Row struct {
	ice.TractIndices
	Incidents int64
	Murders   int64
}

// Join merges indices with incident counts by geo_id. Every tract with
// indices appears exactly once; tracts without incidents get zero counts.
// Incident counts for tracts absent from the indices are dropped.
func Join(indices []ice.TractIndices, counts []incident.TractCounts) []Row {
	byGeoID := make(map[string]incident.TractCounts, len(counts))
	for _, tc := range counts {
		byGeoID[tc.GeoID] = tc
	}

	rows := make([]Row, 0, len(indices))
	for _, idx := range indices {
		row := Row{TractIndices: idx}
		if tc, ok := byGeoID[idx.GeoID]; ok {
			row.Incidents = tc.Incidents
			row.Murders = tc.Murders
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].GeoID < rows[j].GeoID })
	return rows
}

// record renders one Row in Header order. Undefined ratios become empty cells.
func (r Row) record() []string {
	return []string{
		r.GeoID,
		formatRatio(r.ICERaceIncome),
		formatRatio(r.ICERace),
		formatRatio(r.ICEIncome),
		formatRatio(r.PropInPoverty),
		formatRatio(r.PropBlack),
		formatRatio(r.PropHispanic),
		formatRatio(r.PropWhiteNH),
		strconv.FormatInt(r.TotalPopulation, 10),
		strconv.FormatInt(r.Incidents, 10),
		strconv.FormatInt(r.Murders, 10),
	}
}

func formatRatio(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
