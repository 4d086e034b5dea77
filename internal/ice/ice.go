// Package ice computes the Index of Concentration at the Extremes for
// Census tracts from ACS 5-year raw counts.
package ice

// NumBrackets is the number of household-income brackets carried per tract:
// the four lowest and four highest bands of the ACS income distribution.
const NumBrackets = 8

// lowBrackets is the split point: indices [0,lowBrackets) are the low-income
// bands, [lowBrackets,NumBrackets) the high-income bands.
const lowBrackets = 4

// TractRawCounts holds the raw ACS estimates for one Census tract.
// Counts are non-negative; a negative value is the assembly layer's marker
// for a suppressed or absent estimate and causes Compute to reject the tract.
type TractRawCounts struct {
	GeoID                string `json:"geo_id"`
	TotalPopulation      int64  `json:"total_population"`
	TotalBlack           int64  `json:"total_black"`
	TotalHispanic        int64  `json:"total_hispanic"`
	TotalWhiteNH         int64  `json:"total_white_nonhispanic"`
	HouseholdIncomeTotal int64  `json:"household_income_total"`

	// Income-bracket counts ordered low to high. BracketsAll covers all
	// households, BracketsWhiteNH the white non-Hispanic subset, indexed
	// identically.
	BracketsAll     [NumBrackets]int64 `json:"household_income_brackets_all"`
	BracketsWhiteNH [NumBrackets]int64 `json:"household_income_brackets_white_nonhispanic"`

	InPoverty       int64 `json:"in_poverty"`
	PovertyUniverse int64 `json:"total_for_poverty_estimate"`
}

// TractIndices holds the derived indices for one tract. Ratio fields are nil
// when their denominator was zero (unpopulated tract). Values are never
// clamped: an index outside its theoretical range is preserved and the
// Anomalous flag set, since out-of-range values signal upstream data issues.
type TractIndices struct {
	GeoID           string   `json:"geo_id"`
	ICERaceIncome   *float64 `json:"ice_race_income"`
	ICERace         *float64 `json:"ice_race"`
	ICEIncome       *float64 `json:"ice_income"`
	PropInPoverty   *float64 `json:"prop_in_poverty"`
	PropBlack       *float64 `json:"prop_black"`
	PropHispanic    *float64 `json:"prop_hispanic"`
	PropWhiteNH     *float64 `json:"prop_white_nonhispanic"`
	TotalPopulation int64    `json:"total_population"`
	Anomalous       bool     `json:"anomalous,omitempty"`
}

// SkippedTract records a tract excluded from a batch and why.
type SkippedTract struct {
	GeoID  string `json:"geo_id"`
	Reason string `json:"reason"`
}

// BatchResult is the outcome of computing indices over a table of tracts.
// Indices preserves input order for the tracts that computed; Skipped
// accounts for the rest.
type BatchResult struct {
	Indices   []TractIndices `json:"indices"`
	Skipped   []SkippedTract `json:"skipped,omitempty"`
	Anomalous []string       `json:"anomalous,omitempty"`
}
