package history

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/contracttape/internal/impact"
	"github.com/roach88/contracttape/internal/lifecycle"
	"github.com/roach88/contracttape/internal/recording"
	"github.com/roach88/contracttape/internal/testutil"
)

// nopBoundary hands back a fixed set when recording stops.
type nopBoundary struct {
	set recording.InteractionSet
}

func (b *nopBoundary) Record(context.Context, string) error { return nil }
func (b *nopBoundary) Replay(context.Context, string, recording.InteractionSet) error {
	return nil
}
func (b *nopBoundary) Client() *http.Client { return http.DefaultClient }
func (b *nopBoundary) Stop(context.Context) (recording.InteractionSet, error) {
	return b.set, nil
}
func (b *nopBoundary) Reset() error { return nil }

func openTestStore(t *testing.T, ids ...string) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"), WithIDGenerator(testutil.NewFixedIDGenerator(ids...)))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func pass(usecase string, level impact.Level) lifecycle.Pass {
	return lifecycle.Pass{
		Key:      recording.IndexKey{Profile: "default", Provider: "weather", UseCase: usecase},
		Hash:     "h-" + usecase,
		Fixture:  "fixtures/weather",
		Impact:   level,
		Findings: int(level),
		Written:  "fixtures/weather.json",
	}
}

func TestOpen_CreatesDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	require.NoError(t, err)

	mode, err := s.pragma("journal_mode")
	require.NoError(t, err)
	assert.Equal(t, "wal", mode)

	version, err := s.pragma("user_version")
	require.NoError(t, err)
	assert.Equal(t, "1", version)
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.RecordPass(ctx, pass("forecast", impact.None)))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	records, err := s.ListPasses(ctx, Query{})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestOpen_MigratesUnversionedDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.db.Exec("DROP INDEX idx_passes_index_key")
	require.NoError(t, err)
	_, err = s.db.Exec("PRAGMA user_version = 0")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	var name string
	err = s.db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'index' AND name = 'idx_passes_index_key'`).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "idx_passes_index_key", name)
}

func TestClose_Nil(t *testing.T) {
	assert.NoError(t, (&Store{}).Close())
}

func TestRecordPass_AssignsSeqAndID(t *testing.T) {
	s := openTestStore(t, "pass-a", "pass-b")
	ctx := context.Background()

	first := pass("forecast", impact.Minor)
	first.Leaks = 2
	first.Promoted = true
	require.NoError(t, s.RecordPass(ctx, first))
	require.NoError(t, s.RecordPass(ctx, pass("alerts", impact.None)))

	records, err := s.ListPasses(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, Record{
		ID:       "pass-a",
		Seq:      1,
		Index:    "default/weather/forecast",
		Hash:     "h-forecast",
		Fixture:  "fixtures/weather",
		Impact:   impact.Minor,
		Findings: 2,
		Leaks:    2,
		Written:  "fixtures/weather.json",
		Promoted: true,
	}, records[0])
	assert.Equal(t, "pass-b", records[1].ID)
	assert.Equal(t, int64(2), records[1].Seq)
	assert.Equal(t, impact.None, records[1].Impact)
}

func TestRecordPass_DuplicateID(t *testing.T) {
	s := openTestStore(t, "same", "same")
	ctx := context.Background()

	require.NoError(t, s.RecordPass(ctx, pass("forecast", impact.None)))
	assert.Error(t, s.RecordPass(ctx, pass("forecast", impact.None)))
}

func TestRecordPass_InvalidLevel(t *testing.T) {
	s := openTestStore(t)

	assert.Error(t, s.RecordPass(context.Background(), pass("forecast", impact.Level(7))))
}

func TestListPasses_Empty(t *testing.T) {
	s := openTestStore(t)

	records, err := s.ListPasses(context.Background(), Query{})
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestListPasses_Filters(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordPass(ctx, pass("forecast", impact.None)))
	require.NoError(t, s.RecordPass(ctx, pass("forecast", impact.Major)))
	require.NoError(t, s.RecordPass(ctx, pass("alerts", impact.Patch)))
	other := pass("forecast", impact.Minor)
	other.Fixture = "fixtures/maps"
	require.NoError(t, s.RecordPass(ctx, other))
	require.NoError(t, s.RecordPass(ctx, pass("forecast", impact.Minor)))

	seqs := func(records []Record) []int64 {
		out := make([]int64, 0, len(records))
		for _, r := range records {
			out = append(out, r.Seq)
		}
		return out
	}

	tests := []struct {
		name  string
		query Query
		want  []int64
	}{
		{"all", Query{}, []int64{1, 2, 3, 4, 5}},
		{"fixture", Query{Fixture: "fixtures/weather"}, []int64{1, 2, 3, 5}},
		{"index", Query{Index: "default/weather/alerts"}, []int64{3}},
		{"min impact", Query{MinImpact: impact.Minor}, []int64{2, 4, 5}},
		{"limit keeps latest in order", Query{Limit: 2}, []int64{4, 5}},
		{"combined", Query{Fixture: "fixtures/weather", Index: "default/weather/forecast", MinImpact: impact.Patch, Limit: 1}, []int64{5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := s.ListPasses(ctx, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, seqs(records))
		})
	}
}

func TestStore_WithController(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	b := &nopBoundary{set: recording.InteractionSet{testutil.GetJSON("/forecast", `{"temp":21}`)}}
	c := lifecycle.New(b,
		lifecycle.WithSelector(lifecycle.ModeSelectorFunc(func(lifecycle.Case) bool { return true })),
		lifecycle.WithHistory(s),
		lifecycle.WithLogger(testutil.DiscardLogger()),
	)

	tc := lifecycle.Case{
		Key:     recording.IndexKey{Profile: "default", Provider: "weather", UseCase: "forecast"},
		Hash:    "h",
		BaseURL: "https://api.example.com",
		Fixture: filepath.Join(t.TempDir(), "weather"),
	}
	mode, err := c.Start(ctx, tc)
	require.NoError(t, err)
	require.Equal(t, lifecycle.ModeRecord, mode)
	_, err = c.End(ctx)
	require.NoError(t, err)

	records, err := s.ListPasses(ctx, Query{Fixture: tc.Fixture})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "default/weather/forecast", records[0].Index)
	assert.Equal(t, impact.None, records[0].Impact)
	assert.Equal(t, recording.MainPath(tc.Fixture), records[0].Written)
}
