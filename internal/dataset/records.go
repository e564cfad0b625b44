package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/esg-scorer/internal/bands"
	"github.com/sells-group/esg-scorer/internal/metric"
	"github.com/sells-group/esg-scorer/internal/model"
)

// Format is a supported file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Identity columns, most specific name first. Every other column becomes a
// raw field.
var (
	idColumns       = []string{"id", "supplier_id"}
	nameColumns     = []string{"name", "supplier_name"}
	industryColumns = []string{"industry", "sector"}
	revenueColumns  = []string{"revenue", "annual_revenue", "revenue_usd"}
	nestedColumns   = []string{"fields", "metrics"}
)

// FormatOf infers the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", eris.Errorf("dataset: unsupported file type %q", filepath.Ext(path))
}

// LoadSuppliers reads supplier records from a CSV, XLSX or JSON file.
// Records without an ID get a generated one.
func LoadSuppliers(ctx context.Context, path string) ([]model.Supplier, error) {
	sups, err := loadRecords(ctx, path)
	if err != nil {
		return nil, err
	}
	assigned := 0
	for i := range sups {
		if sups[i].ID == "" {
			sups[i].ID = uuid.NewString()
			assigned++
		}
	}
	zap.L().Info("dataset: loaded suppliers",
		zap.String("path", path),
		zap.Int("count", len(sups)),
		zap.Int("generated_ids", assigned),
	)
	return sups, nil
}

// LoadReference reads a reference dataset used to build bands. IDs are
// optional.
func LoadReference(ctx context.Context, path string) ([]model.Supplier, error) {
	rows, err := loadRecords(ctx, path)
	if err != nil {
		return nil, err
	}
	zap.L().Info("dataset: loaded reference rows",
		zap.String("path", path),
		zap.Int("count", len(rows)),
	)
	return rows, nil
}

func loadRecords(ctx context.Context, path string) ([]model.Supplier, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	if format == FormatXLSX {
		return collectRows(StreamXLSX(ctx, path, XLSXOptions{}))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	return ParseSuppliers(ctx, f, format)
}

// ParseSuppliers reads supplier records from r in the given format. IDs
// are left as found.
func ParseSuppliers(ctx context.Context, r io.Reader, format Format) ([]model.Supplier, error) {
	switch format {
	case FormatCSV:
		return collectRows(StreamCSV(ctx, r, CSVOptions{LazyQuotes: true}))
	case FormatJSON:
		objCh, errCh := StreamJSON(ctx, r)
		var out []model.Supplier
		for obj := range objCh {
			out = append(out, FromObject(obj))
		}
		for err := range errCh {
			if err != nil {
				return nil, eris.Wrap(err, "dataset: parse json suppliers")
			}
		}
		return out, nil
	}
	return nil, eris.Errorf("dataset: format %q cannot hold supplier records", format)
}

func collectRows(rowCh <-chan Row, errCh <-chan error) ([]model.Supplier, error) {
	var out []model.Supplier
	for row := range rowCh {
		out = append(out, FromRow(row))
	}
	for err := range errCh {
		if err != nil {
			return nil, eris.Wrap(err, "dataset: read rows")
		}
	}
	return out, nil
}

// FromRow converts a tabular row into a supplier. Identity cells stay
// strings as written; numeric and boolean field cells are typed and
// everything else stays a string.
func FromRow(r Row) model.Supplier {
	obj := make(map[string]any, len(r.Values))
	for k, v := range r.Values {
		if identityColumn(k) {
			obj[k] = v
			continue
		}
		obj[k] = parseCell(v)
	}
	return FromObject(obj)
}

func identityColumn(col string) bool {
	return slices.Contains(idColumns, col) ||
		slices.Contains(nameColumns, col) ||
		slices.Contains(industryColumns, col)
}

// FromObject converts a decoded object into a supplier. Values under a
// nested "fields" or "metrics" object are merged into the raw fields.
func FromObject(obj map[string]any) model.Supplier {
	sup := model.Supplier{Fields: make(map[string]any, len(obj))}
	claimed := make(map[string]bool)

	claim := func(cols []string) any {
		for _, c := range cols {
			if v, ok := obj[c]; ok && v != nil {
				claimed[c] = true
				return v
			}
		}
		return nil
	}

	sup.ID = stringOf(claim(idColumns))
	sup.Name = stringOf(claim(nameColumns))
	sup.Industry = strings.TrimSpace(stringOf(claim(industryColumns)))
	if rev, ok := metric.ToFloat(claim(revenueColumns)); ok {
		sup.Revenue = &rev
	}

	for _, c := range nestedColumns {
		nested, ok := obj[c].(map[string]any)
		if !ok {
			continue
		}
		claimed[c] = true
		for k, v := range nested {
			sup.Fields[k] = v
		}
	}
	for k, v := range obj {
		if claimed[k] {
			continue
		}
		sup.Fields[k] = v
	}
	return sup
}

func parseCell(s string) any {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	switch strings.ToLower(s) {
	case "true", "yes", "y":
		return true
	case "false", "no", "n":
		return false
	case "null", "na", "n/a", "nan", "none":
		return nil
	}
	return s
}

func stringOf(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// LoadBandsDocument reads a precomputed bands document from JSON or YAML.
func LoadBandsDocument(path string) (*bands.Document, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: read bands %s", path)
	}

	var doc bands.Document
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &doc)
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	default:
		return nil, eris.Errorf("dataset: bands document must be json or yaml, got %q", format)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: parse bands %s", path)
	}
	if len(doc.Bands) == 0 {
		return nil, eris.Errorf("dataset: bands document %s has no bands", path)
	}
	return &doc, nil
}
