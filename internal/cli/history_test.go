package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/contracttape/internal/history"
	"github.com/roach88/contracttape/internal/impact"
	"github.com/roach88/contracttape/internal/lifecycle"
	"github.com/roach88/contracttape/internal/testutil"
)

func seedHistory(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := history.Open(path, history.WithIDGenerator(testutil.NewFixedIDGenerator()))
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	for _, level := range []impact.Level{impact.None, impact.Major, impact.Patch} {
		require.NoError(t, s.RecordPass(ctx, lifecycle.Pass{
			Key:      forecastKey,
			Hash:     "aaa",
			Fixture:  "recordings/weather",
			Impact:   level,
			Findings: int(level),
			Written:  "recordings/weather-new.json",
		}))
	}
	return path
}

func TestHistory_List(t *testing.T) {
	db := seedHistory(t)

	stdout, _, err := execute(t, "history", "--db", db)
	require.NoError(t, err)
	assert.Equal(t,
		"   1 none   default/weather/forecast recordings/weather findings=0 leaks=0\n"+
			"   2 major  default/weather/forecast recordings/weather findings=3 leaks=0\n"+
			"   3 patch  default/weather/forecast recordings/weather findings=1 leaks=0\n",
		stdout)
}

func TestHistory_Filters(t *testing.T) {
	db := seedHistory(t)

	stdout, _, err := execute(t, "history", "--db", db, "--min-impact", "patch", "--limit", "1", "--format", "json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok","data":[{
		"id":"id-3","seq":3,"index":"default/weather/forecast","hash":"aaa",
		"fixture":"recordings/weather","impact":"patch","findings":1,"leaks":0,
		"written":"recordings/weather-new.json"}]}`, stdout)
}

func TestHistory_Empty(t *testing.T) {
	stdout, _, err := execute(t, "history", "--db", filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	assert.Equal(t, "No passes recorded\n", stdout)
}

func TestHistory_ConfiguredDatabase(t *testing.T) {
	db := seedHistory(t)
	t.Setenv("CONTRACTTAPE_HISTORY_DB", db)

	stdout, _, err := execute(t, "history", "--fixture", "recordings/other")
	require.NoError(t, err)
	assert.Equal(t, "No passes recorded\n", stdout)
}

func TestHistory_Errors(t *testing.T) {
	t.Setenv("CONTRACTTAPE_HISTORY_DB", "")
	dir := t.TempDir()
	notADir := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(notADir, nil, 0o644))

	tests := []struct {
		name     string
		args     []string
		wantCode string
	}{
		{"no database", []string{"history"}, "E003"},
		{"bad min impact", []string{"history", "--db", filepath.Join(dir, "h.db"), "--min-impact", "huge"}, "E003"},
		{"unopenable database", []string{"history", "--db", filepath.Join(notADir, "h.db")}, "E005"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := execute(t, tt.args...)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, stdout, "Error ["+tt.wantCode+"]")
		})
	}
}
