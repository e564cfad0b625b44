// Package dataset reads supplier records, reference datasets and bands
// documents from CSV, XLSX, JSON and YAML files.
package dataset

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// Row is one data line keyed by its normalized header. Line is 1-based and
// counts the header.
type Row struct {
	Line   int
	Values map[string]string
}

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	Delimiter  rune // default ','
	LazyQuotes bool
}

// StreamCSV reads a headed CSV and sends each data row keyed by header.
// Caller must consume the returned row channel. Both channels are closed
// when processing completes.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan Row, <-chan error) {
	rowCh := make(chan Row, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		reader.LazyQuotes = opts.LazyQuotes
		reader.FieldsPerRecord = -1 // ragged rows are padded or truncated to the header

		var header []string
		line := 0
		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}
			line++

			if header == nil {
				header = normalizeHeader(record)
				continue
			}
			if blank(record) {
				continue
			}

			select {
			case rowCh <- Row{Line: line, Values: zipRow(header, record)}:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// normalizeHeader lowercases and snake-cases column names.
func normalizeHeader(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		c = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(c, "\ufeff")))
		out[i] = strings.Join(strings.Fields(c), "_")
	}
	return out
}

func zipRow(header, record []string) map[string]string {
	values := make(map[string]string, len(header))
	for i, name := range header {
		if name == "" || i >= len(record) {
			continue
		}
		if v := strings.TrimSpace(record[i]); v != "" {
			values[name] = v
		}
	}
	return values
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
