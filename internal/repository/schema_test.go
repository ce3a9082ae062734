package repository

import (
	"os"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tableColumns returns the column names declared for table in schema.
func tableColumns(t *testing.T, schema, table string) []string {
	t.Helper()

	re := regexp.MustCompile(`(?s)CREATE TABLE IF NOT EXISTS ` + table + ` \((.*?)\n\);`)
	m := re.FindStringSubmatch(schema)
	require.NotNil(t, m, "table %s not found", table)

	var cols []string
	for _, line := range strings.Split(m[1], "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "UNIQUE") {
			continue
		}
		cols = append(cols, strings.Fields(line)[0])
	}
	return cols
}

func TestSchema_MatchesColumnsAreExact(t *testing.T) {
	raw, err := os.ReadFile("testdata/schema.sql")
	require.NoError(t, err)
	schema := string(raw)

	assert.Equal(t, matchColumns, tableColumns(t, schema, "matches"))
	assert.Equal(t, []string{"team_id", "team_name"}, tableColumns(t, schema, "teams"))
	assert.Equal(t, []string{"date", "home_team_id", "away_team_id", "season"},
		tableColumns(t, schema, "fixtures"))
}

func TestSchema_StatementsUseOnlyStoreColumns(t *testing.T) {
	for name, stmt := range map[string]string{
		"staging": createMatchStagingSQL,
		"upsert":  upsertFromStagingSQL,
	} {
		for _, audit := range []string{"created_at", "updated_at", "NOW()"} {
			assert.NotContains(t, stmt, audit, "%s statement references %s", name, audit)
		}
		for _, col := range matchColumns {
			assert.Contains(t, stmt, col, "%s statement is missing %s", name, col)
		}
	}
}
