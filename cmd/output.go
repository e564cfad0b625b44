package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
)

// Output formats shared by the score and scenario commands.
const (
	formatTable = "table"
	formatCSV   = "csv"
	formatJSON  = "json"
	formatZip   = "zip"
)

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// openOutput returns stdout for an empty path or "-", else creates path.
func openOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, eris.Wrapf(err, "create output %s", path)
	}
	return f, nil
}

func writeIndentedJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func checkFormat(format string, allowed ...string) error {
	for _, a := range allowed {
		if format == a {
			return nil
		}
	}
	return eris.Errorf("unsupported format %q (want one of %v)", format, allowed)
}
