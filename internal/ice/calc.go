package ice

import (
	"strings"

	"github.com/rotisserie/eris"
)

// MissingFieldError reports raw counts that were absent or suppressed
// upstream (marked negative by the assembly layer).
type MissingFieldError struct {
	GeoID  string
	Fields []string
}

func (e *MissingFieldError) Error() string {
	return "tract " + e.GeoID + ": missing raw counts: " + strings.Join(e.Fields, ", ")
}

// Compute derives the segregation indices for a single tract.
//
// Each ratio is computed independently: a zero denominator leaves that
// field nil without affecting fields with a different denominator. The only
// error condition is a missing (negative) raw count, which rejects the
// whole tract.
func Compute(rec TractRawCounts) (TractIndices, error) {
	if missing := missingFields(rec); len(missing) > 0 {
		return TractIndices{}, &MissingFieldError{GeoID: rec.GeoID, Fields: missing}
	}

	out := TractIndices{
		GeoID:           rec.GeoID,
		TotalPopulation: rec.TotalPopulation,
	}

	lowAll := sumRange(rec.BracketsAll, 0, lowBrackets)
	highAll := sumRange(rec.BracketsAll, lowBrackets, NumBrackets)
	lowWhiteNH := sumRange(rec.BracketsWhiteNH, 0, lowBrackets)
	highWhiteNH := sumRange(rec.BracketsWhiteNH, lowBrackets, NumBrackets)

	// Low-income population of color is approximated as total low-income
	// minus white non-Hispanic low-income. The two aggregates are tabulated
	// independently, so the difference may fall outside [0, lowAll]; it is
	// intentionally not clamped.
	nonwhiteLow := lowAll - lowWhiteNH

	if rec.HouseholdIncomeTotal > 0 {
		out.ICERaceIncome = ratio(highWhiteNH-nonwhiteLow, rec.HouseholdIncomeTotal)
	}

	if rec.TotalPopulation > 0 {
		out.ICEIncome = ratio(highAll-lowAll, rec.TotalPopulation)
		out.ICERace = ratio(rec.TotalWhiteNH-(rec.TotalPopulation-rec.TotalWhiteNH), rec.TotalPopulation)
		out.PropBlack = ratio(rec.TotalBlack, rec.TotalPopulation)
		out.PropHispanic = ratio(rec.TotalHispanic, rec.TotalPopulation)
		out.PropWhiteNH = ratio(rec.TotalWhiteNH, rec.TotalPopulation)
	}

	if rec.PovertyUniverse > 0 {
		out.PropInPoverty = ratio(rec.InPoverty, rec.PovertyUniverse)
	}

	out.Anomalous = anomalous(out)
	return out, nil
}

// ComputeBatch runs Compute over a table of tracts. Failures are tract-local:
// a rejected tract lands in Skipped and the batch continues. Indices keeps
// the input order of the tracts that computed.
func ComputeBatch(recs []TractRawCounts) BatchResult {
	res := BatchResult{Indices: make([]TractIndices, 0, len(recs))}

	for _, rec := range recs {
		idx, err := Compute(rec)
		if err != nil {
			res.Skipped = append(res.Skipped, SkippedTract{
				GeoID:  rec.GeoID,
				Reason: eris.Cause(err).Error(),
			})
			continue
		}
		res.Indices = append(res.Indices, idx)
		if idx.Anomalous {
			res.Anomalous = append(res.Anomalous, idx.GeoID)
		}
	}

	return res
}

func sumRange(b [NumBrackets]int64, from, to int) int64 {
	var s int64
	for i := from; i < to; i++ {
		s += b[i]
	}
	return s
}

func ratio(num, den int64) *float64 {
	v := float64(num) / float64(den)
	return &v
}

// anomalous reports whether any defined index lies outside its theoretical
// range: [-1, 1] for the ICE indices, [0, 1] for proportions.
func anomalous(idx TractIndices) bool {
	for _, p := range []*float64{idx.ICERaceIncome, idx.ICERace, idx.ICEIncome} {
		if p != nil && (*p < -1 || *p > 1) {
			return true
		}
	}
	for _, p := range []*float64{idx.PropInPoverty, idx.PropBlack, idx.PropHispanic, idx.PropWhiteNH} {
		if p != nil && (*p < 0 || *p > 1) {
			return true
		}
	}
	return false
}

func missingFields(rec TractRawCounts) []string {
	var m []string
	add := func(name string, v int64) {
		if v < 0 {
			m = append(m, name)
		}
	}

	add("total_population", rec.TotalPopulation)
	add("total_black", rec.TotalBlack)
	add("total_hispanic", rec.TotalHispanic)
	add("total_white_nonhispanic", rec.TotalWhiteNH)
	add("household_income_total", rec.HouseholdIncomeTotal)
	add("in_poverty", rec.InPoverty)
	add("total_for_poverty_estimate", rec.PovertyUniverse)

	for i, v := range rec.BracketsAll {
		add("brackets_all["+bracketName(i)+"]", v)
	}
	for i, v := range rec.BracketsWhiteNH {
		add("brackets_white_nh["+bracketName(i)+"]", v)
	}
	return m
}
