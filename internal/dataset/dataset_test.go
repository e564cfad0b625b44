package dataset

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func collect(t *testing.T, rowCh <-chan Row, errCh <-chan error) ([]Row, error) {
	t.Helper()
	var rows []Row
	for row := range rowCh {
		rows = append(rows, row)
	}
	for err := range errCh {
		if err != nil {
			return rows, err
		}
	}
	return rows, nil
}

func TestStreamCSV_KeyedByHeader(t *testing.T) {
	input := "ID, Supplier Name ,Industry,co2_tons\nsup-1,Acme,Textiles,120\n\n,,,\nsup-2,Beta,Mining,\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{})
	rows, err := collect(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, map[string]string{
		"id": "sup-1", "supplier_name": "Acme", "industry": "Textiles", "co2_tons": "120",
	}, rows[0].Values)
	assert.Equal(t, 2, rows[0].Line)
	assert.NotContains(t, rows[1].Values, "co2_tons", "empty cells are dropped")
}

func TestStreamCSV_Ragged(t *testing.T) {
	input := "a,b,c\n1,2\n4,5,6,7\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{})
	rows, err := collect(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, rows[0].Values)
	assert.Equal(t, map[string]string{"a": "4", "b": "5", "c": "6"}, rows[1].Values)
}

func TestStreamCSV_Empty(t *testing.T) {
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(""), CSVOptions{})
	rows, err := collect(t, rowCh, errCh)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestStreamCSV_ContextCancellation(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("a,b\n")
	for range 10000 {
		sb.WriteString("1,2\n")
	}

	ctx, cancel := context.WithCancel(context.Background())
	rowCh, errCh := StreamCSV(ctx, strings.NewReader(sb.String()), CSVOptions{})

	count := 0
	for range rowCh {
		count++
		if count >= 5 {
			cancel()
			break
		}
	}
	for range rowCh {
	}

	var gotErr error
	for err := range errCh {
		if err != nil {
			gotErr = err
		}
	}
	// the goroutine may finish before noticing the cancel
	if gotErr != nil {
		assert.Contains(t, gotErr.Error(), "context cancelled")
	}
	cancel()
}

func TestStreamJSON(t *testing.T) {
	input := `[{"id":"a","revenue":1000},{"id":"b","fields":{"co2_tons":12.5}}]`
	objCh, errCh := StreamJSON(context.Background(), strings.NewReader(input))

	var objs []map[string]any
	for obj := range objCh {
		objs = append(objs, obj)
	}
	for err := range errCh {
		require.NoError(t, err)
	}
	require.Len(t, objs, 2)
	assert.Equal(t, json.Number("1000"), objs[0]["revenue"])
}

func TestStreamJSON_NotArray(t *testing.T) {
	objCh, errCh := StreamJSON(context.Background(), strings.NewReader(`{"id":"a"}`))
	for range objCh {
	}
	var gotErr error
	for err := range errCh {
		gotErr = err
	}
	require.Error(t, gotErr)
	assert.Contains(t, gotErr.Error(), "expected '['")
}

func TestFromObject(t *testing.T) {
	sup := FromObject(map[string]any{
		"supplier_id":     "s-9",
		"name":            "Acme",
		"sector":          " Textiles ",
		"annual_revenue":  json.Number("2500"),
		"co2_tons":        json.Number("40"),
		"metrics":         map[string]any{"renewable_pct": 30.0},
		"anti_corruption": true,
	})

	assert.Equal(t, "s-9", sup.ID)
	assert.Equal(t, "Acme", sup.Name)
	assert.Equal(t, "Textiles", sup.Industry)
	require.NotNil(t, sup.Revenue)
	assert.InDelta(t, 2500, *sup.Revenue, 1e-9)
	assert.Equal(t, json.Number("40"), sup.Fields["co2_tons"])
	assert.Equal(t, 30.0, sup.Fields["renewable_pct"])
	assert.Equal(t, true, sup.Fields["anti_corruption"])
	assert.NotContains(t, sup.Fields, "metrics")
	assert.NotContains(t, sup.Fields, "supplier_id")
}

func TestFromRow_TypesCells(t *testing.T) {
	sup := FromRow(Row{Values: map[string]string{
		"id":              "7",
		"revenue":         "n/a",
		"co2_tons":        "12.5",
		"anti_corruption": "yes",
		"notes":           "audited",
		"water_use":       "null",
	}})

	assert.Equal(t, "7", sup.ID)
	assert.Nil(t, sup.Revenue)
	assert.Equal(t, 12.5, sup.Fields["co2_tons"])
	assert.Equal(t, true, sup.Fields["anti_corruption"])
	assert.Equal(t, "audited", sup.Fields["notes"])
	assert.Nil(t, sup.Fields["water_use"])
}

func TestParseSuppliers_CSVKeepsIdentityText(t *testing.T) {
	input := "id,name,industry,co2_tons\n007,0042,2024,12\n7,Acme,Textiles,8\n1e3,Beta,Mining,3\n"

	sups, err := ParseSuppliers(context.Background(), strings.NewReader(input), FormatCSV)
	require.NoError(t, err)
	require.Len(t, sups, 3)

	assert.Equal(t, "007", sups[0].ID)
	assert.Equal(t, "0042", sups[0].Name)
	assert.Equal(t, "2024", sups[0].Industry)
	assert.Equal(t, "7", sups[1].ID)
	assert.Equal(t, "1e3", sups[2].ID)
	assert.Equal(t, 12.0, sups[0].Fields["co2_tons"])
}

func TestLoadSuppliers_CSVAssignsIDs(t *testing.T) {
	path := writeTestFile(t, "suppliers.csv", "id,name,industry,revenue,co2_tons\n,Acme,Textiles,1000,50\nb,Beta,Mining,500,20\n")

	sups, err := LoadSuppliers(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, sups, 2)
	assert.Len(t, sups[0].ID, 36)
	assert.Equal(t, "b", sups[1].ID)
	require.NotNil(t, sups[1].Revenue)
	assert.InDelta(t, 500, *sups[1].Revenue, 1e-9)
}

func TestLoadSuppliers_JSON(t *testing.T) {
	path := writeTestFile(t, "suppliers.json", `[{"id":"a","industry":"Textiles","revenue":100,"co2_tons":10}]`)

	sups, err := LoadSuppliers(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, sups, 1)
	assert.Equal(t, "Textiles", sups[0].Industry)
}

func TestLoadReference_XLSX(t *testing.T) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Sheet1")
	require.NoError(t, err)
	for _, rowData := range [][]string{
		{"industry", "revenue", "emissions", "renewable_pct"},
		{"Textiles", "1000", "200", "35"},
		{"Mining", "400", "900", "5"},
	} {
		row := sheet.AddRow()
		for _, cellData := range rowData {
			row.AddCell().SetString(cellData)
		}
	}
	path := filepath.Join(t.TempDir(), "reference.xlsx")
	require.NoError(t, f.Save(path))

	rows, err := LoadReference(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "", rows[0].ID)
	assert.Equal(t, "Mining", rows[1].Industry)
	assert.Equal(t, 900.0, rows[1].Fields["emissions"])
}

func TestLoadSuppliers_UnsupportedType(t *testing.T) {
	path := writeTestFile(t, "suppliers.txt", "x")
	_, err := LoadSuppliers(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported")
}

func TestLoadBandsDocument(t *testing.T) {
	jsonPath := writeTestFile(t, "bands.json", `{
		"seed": 42,
		"generatedAt": "2026-03-01T00:00:00Z",
		"version": "v2",
		"bands": {"textiles": {"renewable_pct": {"min": 10, "max": 60, "avg": 30}}}
	}`)
	doc, err := LoadBandsDocument(jsonPath)
	require.NoError(t, err)
	require.NotNil(t, doc.Seed)
	assert.Equal(t, int64(42), *doc.Seed)
	assert.Equal(t, "v2", doc.Version)
	assert.InDelta(t, 60, doc.Bands["textiles"]["renewable_pct"].Max, 1e-12)

	yamlPath := writeTestFile(t, "bands.yaml", `
version: v3
bands:
  global:
    injury_rate: {min: 0, max: 4, avg: 1.5}
`)
	doc, err = LoadBandsDocument(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "v3", doc.Version)
	assert.InDelta(t, 4, doc.Bands["global"]["injury_rate"].Max, 1e-12)

	emptyPath := writeTestFile(t, "empty.json", `{"version":"v1"}`)
	_, err = LoadBandsDocument(emptyPath)
	require.Error(t, err)
}
