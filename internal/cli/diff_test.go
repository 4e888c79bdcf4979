package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/contracttape/internal/impact"
	"github.com/roach88/contracttape/internal/match"
	"github.com/roach88/contracttape/internal/recording"
	"github.com/roach88/contracttape/internal/testutil"
)

const (
	weatherMain      = "testdata/recordings/weather.json"
	weatherCandidate = "testdata/recordings/weather-new.json"
)

var forecastKey = recording.IndexKey{Profile: "default", Provider: "weather", UseCase: "forecast"}

func TestDiff_TextGolden(t *testing.T) {
	stdout, _, err := execute(t, "diff", weatherMain, weatherCandidate)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "diff_text", []byte(stdout))
}

func TestDiff_FixtureBase(t *testing.T) {
	stdout, _, err := execute(t, "diff", "testdata/recordings/weather", "--format", "json")
	require.Error(t, err)

	status, data := decodeResponse(t, stdout)
	assert.Equal(t, "error", status)
	assert.Equal(t, weatherMain, data["old"])
	assert.Equal(t, weatherCandidate, data["new"])
	assert.Equal(t, "major", data["impact"])
	assert.Len(t, data["entries"], 4)
}

func TestDiff_Identical(t *testing.T) {
	stdout, _, err := execute(t, "diff", weatherMain, weatherMain, "--format", "json")
	require.NoError(t, err)

	status, data := decodeResponse(t, stdout)
	assert.Equal(t, "ok", status)
	assert.Equal(t, "none", data["impact"])
}

func TestDiff_FailOn(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old.json")
	newPath := filepath.Join(dir, "new.json")

	set := recording.InteractionSet{testutil.GetJSON("/forecast", `{"temp":21}`)}
	changed := set.Clone()
	changed[0].RequestHeaders = map[string]recording.HeaderValue{"accept": {"text/json"}}
	testutil.WriteFixture(t, oldPath, forecastKey, "aaa", set)
	testutil.WriteFixture(t, newPath, forecastKey, "aaa", changed)

	tests := []struct {
		failOn   string
		wantCode int
	}{
		{"major", ExitSuccess},
		{"minor", ExitSuccess},
		{"patch", ExitFailure},
		{"none", ExitCommandError},
		{"severe", ExitCommandError},
	}

	for _, tt := range tests {
		t.Run(tt.failOn, func(t *testing.T) {
			_, _, err := execute(t, "diff", oldPath, newPath, "--fail-on", tt.failOn)
			assert.Equal(t, tt.wantCode, GetExitCode(err))
		})
	}
}

func TestDiff_MissingFile(t *testing.T) {
	stdout, _, err := execute(t, "diff", weatherMain, filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, "Error [E002]")
}

func TestDiff_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	stdout, _, err := execute(t, "diff", weatherMain, path)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, "Error [E003]")
}

func TestDiff_UnsupportedEncoding(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old.json")
	newPath := filepath.Join(dir, "new.json")

	zstd := testutil.GetJSON("/forecast", `["00"]`)
	zstd.RawHeaders = []string{"Content-Encoding", "zstd"}
	testutil.WriteFixture(t, oldPath, forecastKey, "aaa", recording.InteractionSet{zstd})
	testutil.WriteFixture(t, newPath, forecastKey, "aaa", recording.InteractionSet{testutil.GetJSON("/forecast", `{"temp":21}`)})

	stdout, _, err := execute(t, "diff", oldPath, newPath)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, "Error [E004]")
	assert.ErrorIs(t, err, match.ErrDecodeUnsupported)
}

func TestDiffFiles(t *testing.T) {
	oldFile, err := recording.ReadFile(weatherMain)
	require.NoError(t, err)
	newFile, err := recording.ReadFile(weatherCandidate)
	require.NoError(t, err)

	result, err := DiffFiles(oldFile, newFile)
	require.NoError(t, err)
	assert.Equal(t, impact.Major, result.Impact)

	statuses := map[string]string{}
	for _, e := range result.Entries {
		statuses[e.Index] = e.Status
	}
	assert.Equal(t, map[string]string{
		"default/weather/alerts":   EntryUnchanged,
		"default/weather/forecast": EntryChanged,
		"default/weather/history":  EntryRemoved,
		"default/weather/radar":    EntryAdded,
	}, statuses)

	forecast := result.Entries[1]
	require.Len(t, forecast.Findings, 1)
	assert.Equal(t, match.BucketChanged, forecast.Findings[0].Bucket)
	assert.Equal(t, match.KindRequestHeader, forecast.Findings[0].Kind)
	assert.Equal(t, []impact.Reason{{Level: impact.Patch, Bucket: match.BucketChanged, Kind: match.KindRequestHeader}}, forecast.Reasons)
}

func TestDiffFiles_Empty(t *testing.T) {
	result, err := DiffFiles(recording.File{}, recording.File{})
	require.NoError(t, err)
	assert.Equal(t, impact.None, result.Impact)
	assert.Empty(t, result.Entries)
}
