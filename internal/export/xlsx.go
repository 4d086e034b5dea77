package export

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

const sheetName = "tract_indices"

// WriteXLSXFile writes rows as a single-sheet workbook with the same
// columns as the CSV export. Numeric cells stay numeric so spreadsheet
// users can sort and filter without coercion.
func WriteXLSXFile(path string, rows []Row) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	hr := sheet.AddRow()
	for _, col := range Header {
		hr.AddCell().SetString(col)
	}

	for _, r := range rows {
		xr := sheet.AddRow()
		xr.AddCell().SetString(r.GeoID)
		addRatioCell(xr, r.ICERaceIncome)
		addRatioCell(xr, r.ICERace)
		addRatioCell(xr, r.ICEIncome)
		addRatioCell(xr, r.PropInPoverty)
		addRatioCell(xr, r.PropBlack)
		addRatioCell(xr, r.PropHispanic)
		addRatioCell(xr, r.PropWhiteNH)
		xr.AddCell().SetInt64(r.TotalPopulation)
		xr.AddCell().SetInt64(r.Incidents)
		xr.AddCell().SetInt64(r.Murders)
	}

	return eris.Wrapf(f.Save(path), "export: save %s", path)
}

// addRatioCell leaves the cell blank when the ratio is undefined.
func addRatioCell(row *xlsx.Row, v *float64) {
	cell := row.AddCell()
	if v != nil {
		cell.SetFloat(*v)
	}
}
