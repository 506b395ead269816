package mapping

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadTableAcceptsAllCandidateShapes(t *testing.T) {
	raw := map[string]any{
		FieldBilledCost:  "TotalCost",
		FieldCurrency:    []any{"Currency", "BillingCurrency"},
		FieldResourceID:  map[string]any{"column": "arn"},
		FieldUsageAmount: []string{"Qty"},
	}

	table, err := LoadTable(raw)
	require.NoError(t, err)
	require.Len(t, table, 4)

	byName := make(map[string][]string, len(table))
	for _, f := range table {
		byName[f.Name] = f.Candidates
	}
	assert.Equal(t, []string{"TotalCost"}, byName[FieldBilledCost])
	assert.Equal(t, []string{"Currency", "BillingCurrency"}, byName[FieldCurrency])
	assert.Equal(t, []string{"arn"}, byName[FieldResourceID])
	assert.Equal(t, []string{"Qty"}, byName[FieldUsageAmount])
}

func TestLoadTableRejectsBadShapes(t *testing.T) {
	_, err := LoadTable(map[string]any{FieldBilledCost: 42})
	assert.ErrorContains(t, err, "unsupported candidate shape")

	_, err = LoadTable(map[string]any{FieldBilledCost: []any{"ok", 1}})
	assert.ErrorContains(t, err, "want string")

	_, err = LoadTable(map[string]any{FieldBilledCost: map[string]any{"col": "oops"}})
	assert.ErrorContains(t, err, "missing 'column' key")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"billed_cost": "TotalCost",
		"currency": ["Currency"],
		"resource_id": {"column": "arn"}
	}`), 0o644))

	table, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, table, 3)

	resolved := ResolveHeaders(table, []string{"TotalCost", "Currency", "arn"})
	assert.Equal(t, "TotalCost", resolved[FieldBilledCost])
	assert.Equal(t, "arn", resolved[FieldResourceID])
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.json"))
	assert.ErrorContains(t, err, "read mapping file")

	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	_, err = LoadFile(path)
	assert.ErrorContains(t, err, "parse mapping file")
}

func TestMergeOverridesAndAppends(t *testing.T) {
	base := Table{
		{Name: FieldBilledCost, Candidates: []string{"BilledCost"}},
		{Name: FieldCurrency, Candidates: []string{"Currency"}},
	}
	overrides := Table{
		{Name: FieldBilledCost, Candidates: []string{"TotalSpend"}},
		{Name: FieldUsageUnit, Candidates: []string{"Unit"}},
	}

	merged := Merge(base, overrides)
	require.Len(t, merged, 3)

	assert.Equal(t, FieldBilledCost, merged[0].Name)
	assert.Equal(t, []string{"TotalSpend"}, merged[0].Candidates, "override replaces the base field in place")
	assert.Equal(t, FieldCurrency, merged[1].Name)
	assert.Equal(t, FieldUsageUnit, merged[2].Name, "new fields append after the base")
}
