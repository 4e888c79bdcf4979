package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/contracttape/internal/lifecycle"
)

// inTempDir runs the test from an empty directory so no stray
// contracttape.yaml or .env is picked up.
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoad_Defaults(t *testing.T) {
	inTempDir(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "recordings", cfg.Fixtures)
	assert.Empty(t, cfg.HistoryDB)
	assert.Equal(t, lifecycle.Policy{}, cfg.Policy)
	assert.Equal(t, LogConfig{
		Level:      "info",
		Format:     "text",
		MaxSizeMB:  25,
		MaxBackups: 10,
		MaxAgeDays: 14,
		Compress:   true,
	}, cfg.Log)
}

func TestLoad_File(t *testing.T) {
	dir := inTempDir(t)
	path := filepath.Join(dir, "custom.yaml")
	writeFile(t, path, `
fixtures: testdata/recordings
history_db: history.db
environment: staging
policy:
  live_pattern: "default/weather"
  allow_candidate: true
  promote_candidate: true
log:
  level: debug
  file: contracttape.log
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "testdata/recordings", cfg.Fixtures)
	assert.Equal(t, "history.db", cfg.HistoryDB)
	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, lifecycle.Policy{
		LivePattern:      "default/weather",
		AllowCandidate:   true,
		PromoteCandidate: true,
	}, cfg.Policy)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "contracttape.log", cfg.Log.File)
	assert.Equal(t, 25, cfg.Log.MaxSizeMB, "defaults fill keys the file leaves out")
}

func TestLoad_DefaultFileIsOptional(t *testing.T) {
	dir := inTempDir(t)
	writeFile(t, filepath.Join(dir, DefaultFile), "fixtures: from-default-file\n")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-default-file", cfg.Fixtures)
}

func TestLoad_ExplicitFileMustExist(t *testing.T) {
	dir := inTempDir(t)

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := inTempDir(t)
	path := filepath.Join(dir, "custom.yaml")
	writeFile(t, path, "fixtures: from-file\npolicy:\n  live_pattern: from-file\n")

	t.Setenv("CONTRACTTAPE_FIXTURES", "from-env")
	t.Setenv("CONTRACTTAPE_POLICY__LIVE_PATTERN", "*/weather")
	t.Setenv("CONTRACTTAPE_POLICY__USE_CANDIDATE_FILE", "true")
	t.Setenv("CONTRACTTAPE_LOG__MAX_BACKUPS", "3")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Fixtures)
	assert.Equal(t, "*/weather", cfg.Policy.LivePattern)
	assert.True(t, cfg.Policy.UseCandidateFile)
	assert.Equal(t, 3, cfg.Log.MaxBackups)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := inTempDir(t)
	writeFile(t, filepath.Join(dir, ".env"), "CONTRACTTAPE_HISTORY_DB=dotenv.db\n")
	t.Cleanup(func() { os.Unsetenv("CONTRACTTAPE_HISTORY_DB") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "dotenv.db", cfg.HistoryDB)
}

func TestLoad_DotEnvDoesNotOverrideEnv(t *testing.T) {
	dir := inTempDir(t)
	writeFile(t, filepath.Join(dir, ".env"), "CONTRACTTAPE_HISTORY_DB=dotenv.db\n")
	t.Setenv("CONTRACTTAPE_HISTORY_DB", "env.db")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "env.db", cfg.HistoryDB)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{Fixtures: "recordings", Log: LogConfig{Level: "info", Format: "text"}}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"upper-case level", func(c *Config) { c.Log.Level = "WARN" }, ""},
		{"json format", func(c *Config) { c.Log.Format = "json" }, ""},
		{"unknown level", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
		{"unknown format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"no fixtures", func(c *Config) { c.Fixtures = "" }, "fixtures"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_InvalidLevel(t *testing.T) {
	inTempDir(t)
	t.Setenv("CONTRACTTAPE_LOG__LEVEL", "loud")

	_, err := Load("")
	assert.Error(t, err)
}
