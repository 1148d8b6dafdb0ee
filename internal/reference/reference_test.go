package reference

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boards/internal/board"
)

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestLoadCatalogs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "priority.yaml", `
name: priority
items:
  - {code: high, name: High, color: red, order: 1}
  - {code: low, name: Low, order: 3}
  - {code: mid, name: Medium, order: 2}
`)
	writeFile(t, dir, "regions.yml", `
items:
  - code: eu
  - code: us
    name: United States
`)
	writeFile(t, dir, "notes.txt", "ignored")

	cs, err := LoadCatalogs(dir)
	require.NoError(t, err)
	require.Len(t, cs, 2)

	assert.Equal(t, []board.Option{
		{ID: "high", Value: "High", Color: "red"},
		{ID: "mid", Value: "Medium"},
		{ID: "low", Value: "Low"},
	}, cs["priority"].Options())
	assert.Equal(t, []board.Option{{ID: "eu", Value: "eu"}, {ID: "us", Value: "United States"}}, cs["regions"].Options())
}

func TestLoadCatalogsRejectsDuplicateCodes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "x.yaml", "items: [{code: a}, {code: a}]")
	_, err := LoadCatalogs(dir)
	assert.ErrorContains(t, err, "duplicate code")
}

func TestLoadCatalogsMissingDir(t *testing.T) {
	cs, err := LoadCatalogs(filepath.Join(t.TempDir(), "none"))
	require.NoError(t, err)
	assert.Empty(t, cs)
}
