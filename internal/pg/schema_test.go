package pg

import (
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateDDLPostgres(t *testing.T) {
	ddl, err := GenerateDDL(Postgres, "boards")
	require.NoError(t, err)

	keys := make([]string, 0, len(ddl))
	for k := range ddl {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	assert.Equal(t, []string{"000_schema", "100_blocks", "200_blocks_board_idx", "210_blocks_synced_uq"}, keys)

	assert.Contains(t, ddl["100_blocks"], `create table if not exists "boards"."blocks"`)
	assert.Contains(t, ddl["100_blocks"], `"fields" jsonb not null`)
	assert.True(t, strings.HasSuffix(ddl["210_blocks_synced_uq"], "where synced_with is not null;"))
}

func TestGenerateDDLSQLite(t *testing.T) {
	ddl, err := GenerateDDL(SQLite, "ignored")
	require.NoError(t, err)
	assert.NotContains(t, ddl, "000_schema")
	assert.Contains(t, ddl["100_blocks"], `create table if not exists "blocks"`)
	assert.Contains(t, ddl["100_blocks"], `"fields" text not null`)
}

func TestGenerateDDLRejectsReservedSchema(t *testing.T) {
	_, err := GenerateDDL(Postgres, "select")
	assert.Error(t, err)
}
