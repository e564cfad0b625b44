package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/esg-scorer/internal/store"
)

func TestImportCmd_Metadata(t *testing.T) {
	assert.Equal(t, "import", importCmd.Use)
	assert.NotEmpty(t, importCmd.Short)
	require.NotNil(t, importCmd.Flags().Lookup("input"))
}

func TestImportCmd_UpsertsSuppliers(t *testing.T) {
	cfg = testConfig(t)
	importPath = writeFile(t, "suppliers.json", `[
		{"id":"x1","name":"One","industry":"Textiles","revenue":10,"co2_tons":5},
		{"name":"No ID","industry":"Mining"}
	]`)
	t.Cleanup(func() { importPath = "" })

	require.NoError(t, runWithContext(t, importCmd, nil))

	st, err := store.NewSQLite(cfg.Store.SQLitePath)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	sups, err := st.ListSuppliers(context.Background(), store.SupplierFilter{})
	require.NoError(t, err)
	require.Len(t, sups, 2)

	one, err := st.GetSupplier(context.Background(), "x1")
	require.NoError(t, err)
	assert.Equal(t, "One", one.Name)
	require.NotNil(t, one.Revenue)
	assert.InDelta(t, 10, *one.Revenue, 1e-12)
}

func TestImportCmd_BadStoreDriver(t *testing.T) {
	cfg = testConfig(t)
	cfg.Store.Driver = "mysql"
	importPath = writeFile(t, "suppliers.csv", suppliersCSV)
	t.Cleanup(func() { importPath = "" })

	err := runWithContext(t, importCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")
}

func TestImportCmd_BadPath(t *testing.T) {
	cfg = testConfig(t)
	importPath = "/nonexistent/suppliers.csv"
	t.Cleanup(func() { importPath = "" })

	err := runWithContext(t, importCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load suppliers")
}
