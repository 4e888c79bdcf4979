package testutil

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/contracttape/internal/recording"
)

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// GetJSON builds a GET interaction answering 200 with a JSON response.
func GetJSON(path, response string) recording.Interaction {
	return recording.Interaction{
		Scope:    "https://api.example.com",
		Method:   "GET",
		Path:     path,
		Status:   200,
		Response: json.RawMessage(response),
	}
}

// WriteFixture stores set under key/hash in the recording file at path.
func WriteFixture(t *testing.T, path string, key recording.IndexKey, hash string, set recording.InteractionSet) {
	t.Helper()
	require.NoError(t, recording.Write(path, key, hash, set))
}
