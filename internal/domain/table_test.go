package domain

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMetadataTable(t *testing.T) Table {
	t.Helper()
	doc := []byte(`[
		{"goal":"1","target":"1.1","code":"1.1.1","description":"a","tier":"1","series":[{"code":"SI_POV_DAY1"},{"code":"SI_POV_EMP1"}]},
		{"goal":"1","target":"1.2","code":"1.2.1","description":"b","tier":"2","series":[{"code":"SI_POV_NAHC"}]},
		{"goal":"3","target":"3.1","code":"3.1.1","description":"c","tier":"1 ","series":[{"code":"SH_STA_MORT"}]},
		{"goal":"5","target":"5.1","code":"5.1.1","description":"d","tier":1,"series":[{"code":"SG_LGL_GENEQ"}]},
		{"goal":"8","target":"8.5","code":"8.5.2","description":"e","tier":"1","series":[{"code":"SI_POV_EMP1"}]}
	]`)
	table, err := Flatten(TableIndicatorMetadata, doc, MetadataOptions(true))
	require.NoError(t, err)
	return table
}

func TestTable_FilterExactMatch(t *testing.T) {
	table := testMetadataTable(t)

	t1 := table.Filter(TableIndicatorMetadataT1, ColumnTier, "1")

	assert.Equal(t, TableIndicatorMetadataT1, t1.Name)
	assert.Equal(t, table.Columns, t1.Columns)
	codes, err := t1.Strings(ColumnSeriesCode)
	require.NoError(t, err)
	// "1 " and the number 1 do not match.
	assert.Equal(t, []string{"SI_POV_DAY1", "SI_POV_EMP1", "SI_POV_EMP1"}, codes)
}

func TestTable_FilterIsIdempotent(t *testing.T) {
	table := testMetadataTable(t)

	once := table.Filter(TableIndicatorMetadataT1, ColumnTier, "1")
	twice := once.Filter(TableIndicatorMetadataT1, ColumnTier, "1")

	if diff := cmp.Diff(once, twice); diff != "" {
		t.Fatalf("filter not idempotent (-once +twice):\n%s", diff)
	}
}

func TestTable_FilterDoesNotMutateSource(t *testing.T) {
	table := testMetadataTable(t)
	before := table.Len()

	filtered := table.Filter(TableIndicatorMetadataT1, ColumnTier, "3")

	assert.Equal(t, 0, filtered.Len())
	assert.Equal(t, before, table.Len())
}

func TestTable_StringsPreservesOrderAndDuplicates(t *testing.T) {
	table := testMetadataTable(t)

	codes, err := table.Strings(ColumnSeriesCode)
	require.NoError(t, err)
	assert.Equal(t, []string{"SI_POV_DAY1", "SI_POV_EMP1", "SI_POV_NAHC", "SH_STA_MORT", "SG_LGL_GENEQ", "SI_POV_EMP1"}, codes)
}

func TestTable_StringsRejectsNonString(t *testing.T) {
	table := testMetadataTable(t)

	_, err := table.Strings(ColumnTier)
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Contains(t, parseErr.Reason, "expected string, got int64")
}

func TestTable_ColumnNotFound(t *testing.T) {
	table := testMetadataTable(t)

	_, err := table.Column("m_missing")
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, TableIndicatorMetadata, parseErr.Source)
}

func TestTable_ColumnMissingCellsAreNil(t *testing.T) {
	table, err := Flatten(TableSeriesData, []byte(`{"data":[{"a":1},{"b":2}]}`), ObservationOptions(true))
	require.NoError(t, err)

	values, err := table.Column("a")
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), nil}, values)
}
