package gamedata

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testArchive = `{
	"templates": [
		{"id": "ring_of_favor", "name": "Ring of Favor"},
		{"id": "shop_blessing_1", "name": "Blessing +1", "resolvesTo": "shop_blessing_2"},
		{"id": "shop_blessing_2", "name": "Blessing +2", "resolvesTo": "shop_blessing_3"},
		{"id": "shop_blessing_3", "name": "Blessing +3"},
		{"id": "ap_foreign_2001", "name": "Foreign Item", "placeholder": true, "locationId": 2001}
	],
	"locations": [
		{"checkId": 2001, "name": "Shop Slot 1", "region": "settlement", "shop": true},
		{"checkId": 3001, "name": "Hidden Alcove", "region": "high_wall", "hidden": true}
	]
}`

func TestParse(t *testing.T) {
	table, err := Parse([]byte(testArchive))
	require.NoError(t, err)
	assert.Equal(t, 5, table.TemplateCount())
	assert.Equal(t, 2, table.LocationCount())

	template, ok := table.Template("ap_foreign_2001")
	require.True(t, ok)
	assert.True(t, template.Placeholder)
	assert.Equal(t, int64(2001), template.LocationID)

	location, ok := table.Location(3001)
	require.True(t, ok)
	assert.True(t, location.Hidden)

	_, ok = table.Template("unknown")
	assert.False(t, ok)
}

func TestParse_RejectsDuplicates(t *testing.T) {
	tests := []struct {
		name    string
		archive string
	}{
		{
			name:    "duplicate template id",
			archive: `{"templates": [{"id": "a", "name": "A"}, {"id": "a", "name": "A again"}], "locations": []}`,
		},
		{
			name:    "duplicate check id",
			archive: `{"templates": [], "locations": [{"checkId": 1, "name": "X"}, {"checkId": 1, "name": "Y"}]}`,
		},
		{
			name:    "template without id",
			archive: `{"templates": [{"name": "nameless"}], "locations": []}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.archive))
			assert.Error(t, err)
		})
	}
}

func TestTable_ResolveFinal(t *testing.T) {
	table, err := Parse([]byte(testArchive))
	require.NoError(t, err)

	final, err := table.ResolveFinal("shop_blessing_1")
	require.NoError(t, err)
	assert.Equal(t, "shop_blessing_3", final.ID)

	final, err = table.ResolveFinal("ring_of_favor")
	require.NoError(t, err)
	assert.Equal(t, "ring_of_favor", final.ID)

	_, err = table.ResolveFinal("unknown")
	assert.Error(t, err)
}

func TestTable_ResolveFinalDetectsCycles(t *testing.T) {
	table, err := Parse([]byte(`{
		"templates": [
			{"id": "a", "name": "A", "resolvesTo": "b"},
			{"id": "b", "name": "B", "resolvesTo": "a"}
		],
		"locations": []
	}`))
	require.NoError(t, err)

	_, err = table.ResolveFinal("a")
	assert.Error(t, err)
}

func TestLoad_ZstdArchive(t *testing.T) {
	var buf bytes.Buffer
	w, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = w.Write([]byte(testArchive))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	path := filepath.Join(t.TempDir(), "apdata.json.zst")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))

	table, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, table.TemplateCount())
}

func TestLoad_PlainArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apdata.json")
	require.NoError(t, os.WriteFile(path, []byte(testArchive), 0644))

	table, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, table.LocationCount())
}
