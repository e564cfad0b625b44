package export

import (
	"archive/zip"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/esg-scorer/internal/scenario"
)

// WriteBundle writes a ZIP holding the baseline ranking, one CSV per
// scenario variant, the failures and the raw JSON result.
func WriteBundle(w io.Writer, res *scenario.Result) error {
	if res == nil {
		return eris.New("export: nil scenario result")
	}
	zw := zip.NewWriter(w)

	add := func(name string, write func(io.Writer) error) error {
		f, err := zw.Create(name)
		if err != nil {
			return eris.Wrapf(err, "export: create %s", name)
		}
		return write(f)
	}

	if err := add("baseline.csv", func(f io.Writer) error {
		return WriteRankings(f, res.Baseline)
	}); err != nil {
		return err
	}
	for _, t := range Tables(res) {
		if err := add(t.Name+".csv", func(f io.Writer) error {
			return WriteTable(f, t, res.Baseline)
		}); err != nil {
			return err
		}
	}
	if err := add("failures.csv", func(f io.Writer) error {
		return WriteFailures(f, res.Failures)
	}); err != nil {
		return err
	}
	if err := add("result.json", func(f io.Writer) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(res), "export: encode result")
	}); err != nil {
		return err
	}

	return eris.Wrap(zw.Close(), "export: close zip")
}
