// Package incident ingests the NYPD shooting-incident CSV extract and counts
// incidents per Census tract.
package incident

import (
	"context"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/urbanhealthlab/icemapper/internal/fetcher"
)

// Incident is one firearm-violence incident from the extract.
type Incident struct {
	Key     string    `json:"incident_key"`
	Date    time.Time `json:"occur_date"`
	Borough string    `json:"borough"`
	Murder  bool      `json:"murder"`
	Lat     float64   `json:"latitude"`
	Lon     float64   `json:"longitude"`
	Located bool      `json:"located"` // false when the row had no usable coordinates
}

// ParseResult is the outcome of parsing the extract. Malformed rows are
// skipped and counted rather than failing the import.
type ParseResult struct {
	Incidents []Incident
	Malformed int
}

// occurDateLayout is the extract's date format.
const occurDateLayout = "01/02/2006"

// ParseCSV streams the shooting-incident CSV and assembles incidents.
// Column names are matched case-insensitively against the published header.
func ParseCSV(ctx context.Context, r io.Reader) (*ParseResult, error) {
	headerCh := make(chan []string, 1)
	rowCh, errCh := fetcher.StreamCSV(ctx, r, fetcher.CSVOptions{
		HasHeader:  true,
		HeaderCh:   headerCh,
		LazyQuotes: true,
		TrimSpace:  true,
	})

	var colIdx map[string]int
	res := &ParseResult{}

	for row := range rowCh {
		if colIdx == nil {
			colIdx = mapColumns(<-headerCh)
			if _, ok := colIdx["incident_key"]; !ok {
				return nil, eris.New("incident: csv has no INCIDENT_KEY column")
			}
		}

		inc, ok := parseRow(row, colIdx)
		if !ok {
			res.Malformed++
			continue
		}
		res.Incidents = append(res.Incidents, inc)
	}

	if err := <-errCh; err != nil {
		return nil, eris.Wrap(err, "incident: read csv")
	}
	// Header arrives even when the file has no data rows.
	if colIdx == nil {
		select {
		case header := <-headerCh:
			if _, ok := mapColumns(header)["incident_key"]; !ok {
				return nil, eris.New("incident: csv has no INCIDENT_KEY column")
			}
		default:
			return nil, eris.New("incident: empty csv")
		}
	}

	if res.Malformed > 0 {
		zap.L().Warn("incident: skipped malformed rows", zap.Int("rows", res.Malformed))
	}
	return res, nil
}

func parseRow(row []string, colIdx map[string]int) (Incident, bool) {
	key := getCol(row, colIdx, "incident_key")
	if key == "" {
		return Incident{}, false
	}

	date, err := time.Parse(occurDateLayout, getCol(row, colIdx, "occur_date"))
	if err != nil {
		return Incident{}, false
	}

	inc := Incident{
		Key:     key,
		Date:    date,
		Borough: strings.ToUpper(getCol(row, colIdx, "boro")),
		Murder:  parseBool(getCol(row, colIdx, "statistical_murder_flag")),
	}

	lat, latErr := strconv.ParseFloat(getCol(row, colIdx, "latitude"), 64)
	lon, lonErr := strconv.ParseFloat(getCol(row, colIdx, "longitude"), 64)
	if latErr == nil && lonErr == nil && lat != 0 && lon != 0 {
		inc.Lat, inc.Lon, inc.Located = lat, lon, true
	}

	return inc, true
}

// parseBool accepts the flag spellings seen across extract vintages.
func parseBool(s string) bool {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRUE", "Y", "YES", "1":
		return true
	default:
		return false
	}
}

// mapColumns builds a case-insensitive column name to index map.
func mapColumns(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, col := range header {
		m[strings.ToLower(strings.TrimSpace(col))] = i
	}
	return m
}

// getCol gets a column value by name, returning empty string if not found.
func getCol(row []string, colIdx map[string]int, name string) string {
	idx, ok := colIdx[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return row[idx]
}
