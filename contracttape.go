// Package contracttape records the HTTP traffic of provider tests and replays
// it on later runs.
//
// A Tape is built from a configuration file (see Open). Each test case gets
// its own controller: cases selected by the live pattern run against the real
// API and their scrubbed traffic is written to the fixtures directory; every
// other case is served from the recording and fails on unknown requests.
//
//	tape, err := contracttape.Open("contracttape.yaml")
//	...
//	defer tape.Close()
//
//	tc, err := tape.NewCase(contracttape.IndexKey{Profile: "default", Provider: "weather", UseCase: "forecast"},
//		input, "https://api.example.com", placeholders)
//	out, err := tape.Run(ctx, tc, func(ctx context.Context, client *http.Client) error {
//		return callProvider(ctx, client, input)
//	})
package contracttape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/roach88/contracttape/internal/capture"
	"github.com/roach88/contracttape/internal/config"
	"github.com/roach88/contracttape/internal/history"
	"github.com/roach88/contracttape/internal/lifecycle"
	"github.com/roach88/contracttape/internal/logging"
	"github.com/roach88/contracttape/internal/recording"
	"github.com/roach88/contracttape/internal/scrub"
)

type (
	// Case identifies one test case. Build it with Tape.NewCase.
	Case = lifecycle.Case
	// Outcome is the result of a finished case.
	Outcome = lifecycle.Outcome
	// Mode is record or replay.
	Mode = lifecycle.Mode
	// Policy holds the recording switches read from configuration.
	Policy = lifecycle.Policy
	// IndexKey addresses a recording within a fixture file.
	IndexKey = recording.IndexKey
	// PlaceholderSpec pairs a sensitive value with its placeholder.
	PlaceholderSpec = scrub.PlaceholderSpec
)

const (
	ModeRecord = lifecycle.ModeRecord
	ModeReplay = lifecycle.ModeReplay
)

// Tape creates controllers that share one configuration, logger and history
// log. It is safe to use from several goroutines as long as concurrent cases
// write to different fixture files.
type Tape struct {
	cfg       *config.Config
	logger    *slog.Logger
	transport http.RoundTripper
	history   *history.Store
	closers   []io.Closer
}

// Option configures a Tape.
type Option func(*Tape)

// WithLogger replaces the logger built from the log section of the
// configuration.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tape) {
		t.logger = l
	}
}

// WithTransport sets the transport used for live traffic. Defaults to
// http.DefaultTransport.
func WithTransport(rt http.RoundTripper) Option {
	return func(t *Tape) {
		t.transport = rt
	}
}

// Open loads configuration from path, or from contracttape.yaml and the
// environment when path is empty, and opens the history log if one is
// configured.
func Open(path string, opts ...Option) (*Tape, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return newTape(cfg, opts...)
}

func newTape(cfg *config.Config, opts ...Option) (*Tape, error) {
	t := &Tape{cfg: cfg, transport: http.DefaultTransport}
	for _, opt := range opts {
		opt(t)
	}

	if t.logger == nil {
		logger, closer, err := logging.New(os.Stderr, cfg.Log)
		if err != nil {
			return nil, fmt.Errorf("configure logging: %w", err)
		}
		t.logger = logger
		t.closers = append(t.closers, closer)
	}

	if cfg.HistoryDB != "" {
		store, err := history.Open(cfg.HistoryDB)
		if err != nil {
			t.Close()
			return nil, err
		}
		t.history = store
		t.closers = append(t.closers, store)
	}

	t.logger.Debug("tape opened",
		"fixtures", cfg.Fixtures,
		"environment", cfg.Environment,
		"live_pattern", cfg.Policy.LivePattern,
		"history", cfg.HistoryDB != "")
	return t, nil
}

// Close releases the history log and the log file.
func (t *Tape) Close() error {
	var errs []error
	for i := len(t.closers) - 1; i >= 0; i-- {
		if err := t.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	t.closers = nil
	return errors.Join(errs...)
}

// Fixture returns the recording base path for a provider:
// <fixtures>/<provider>, without the .json suffix.
func (t *Tape) Fixture(provider string) string {
	return filepath.Join(t.cfg.Fixtures, provider)
}

// NewCase builds a case for key. The content hash is taken from input, the
// environment from the configuration and the fixture from key.Provider.
func (t *Tape) NewCase(key IndexKey, input any, baseURL string, placeholders []PlaceholderSpec) (Case, error) {
	if err := key.Validate(); err != nil {
		return Case{}, err
	}
	hash, err := recording.HashInput(input)
	if err != nil {
		return Case{}, fmt.Errorf("hash input for %s: %w", key, err)
	}
	return Case{
		Key:          key,
		Hash:         hash,
		Environment:  t.cfg.Environment,
		BaseURL:      baseURL,
		Fixture:      t.Fixture(key.Provider),
		Placeholders: placeholders,
	}, nil
}

// Controller returns a fresh controller backed by a go-vcr boundary and
// configured with the policy and history log. opts are applied last.
func (t *Tape) Controller(opts ...lifecycle.Option) *lifecycle.Controller {
	boundary := capture.New(capture.WithTransport(t.transport), capture.WithLogger(t.logger))

	base := []lifecycle.Option{
		lifecycle.WithPolicy(t.cfg.Policy),
		lifecycle.WithLogger(t.logger),
	}
	if t.history != nil {
		base = append(base, lifecycle.WithHistory(t.history))
	}
	return lifecycle.New(boundary, append(base, opts...)...)
}

// Run records or replays tc around fn. fn must send its requests through
// the client it is given.
func (t *Tape) Run(ctx context.Context, tc Case, fn func(ctx context.Context, client *http.Client) error) (Outcome, error) {
	return t.Controller().Run(ctx, tc, fn)
}
