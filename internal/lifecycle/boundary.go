package lifecycle

import (
	"context"
	"net/http"

	"github.com/roach88/contracttape/internal/impact"
	"github.com/roach88/contracttape/internal/recording"
	"github.com/roach88/contracttape/internal/scrub"
)

// Boundary is where the code under test meets the network.
//
// A Boundary either records real traffic or serves a fixed interaction set,
// refusing any request the set does not contain. Implemented by
// capture.Boundary (go-vcr) and by fakes in tests.
type Boundary interface {
	// Record starts capturing live traffic for baseURL.
	Record(ctx context.Context, baseURL string) error

	// Replay starts serving set. Outbound requests not in set fail until Stop.
	Replay(ctx context.Context, baseURL string, set recording.InteractionSet) error

	// Client returns the HTTP client the code under test must use.
	Client() *http.Client

	// Stop ends the current mode and returns the interactions captured while
	// recording. It returns nil after replaying.
	Stop(ctx context.Context) (recording.InteractionSet, error)

	// Reset discards any captured state and re-enables live traffic. It must
	// be safe to call in any state, including after Stop.
	Reset() error
}

// Case identifies one test case and everything needed to record or replay it.
type Case struct {
	Key         recording.IndexKey
	Hash        string
	Environment string
	BaseURL     string

	// Fixture is the recording base path, without the .json suffix.
	Fixture string

	Placeholders []scrub.PlaceholderSpec
}

// Hook lets callers rewrite an interaction set before it is served or saved.
type Hook func(ctx context.Context, c Case, set recording.InteractionSet) (recording.InteractionSet, error)

// Pass summarizes one recording pass for the history log.
type Pass struct {
	Key      recording.IndexKey
	Hash     string
	Fixture  string
	Impact   impact.Level
	Findings int
	Leaks    int
	Written  string
	Promoted bool
}

// HistoryRecorder stores recording passes. Implemented by history.Store.
type HistoryRecorder interface {
	RecordPass(ctx context.Context, p Pass) error
}
