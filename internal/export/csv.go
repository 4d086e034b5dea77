package export

import (
	"encoding/csv"
	"io"
	"os"

	"github.com/rotisserie/eris"
)

// WriteCSV writes rows in Header order. Output is deterministic for a
// given input, so re-exports of the same data are byte-identical.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(Header); err != nil {
		return eris.Wrap(err, "export: write CSV header")
	}
	for _, r := range rows {
		if err := cw.Write(r.record()); err != nil {
			return eris.Wrapf(err, "export: write CSV row %s", r.GeoID)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush CSV")
}

// WriteCSVFile writes rows to the given path, truncating any existing file.
func WriteCSVFile(path string, rows []Row) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}

	if err := WriteCSV(f, rows); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return eris.Wrapf(f.Close(), "export: close %s", path)
}
