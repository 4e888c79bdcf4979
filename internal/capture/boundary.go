// Package capture records and replays HTTP traffic with go-vcr.
//
// Boundary implements lifecycle.Boundary. Its client stays valid across
// modes: idle requests go to the live network, recording requests go through
// a go-vcr recorder, and replaying requests are answered from a cassette
// built from the stored interactions. A replayed request that the cassette
// does not contain fails instead of reaching the network.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"gopkg.in/dnaeon/go-vcr.v2/cassette"
	"gopkg.in/dnaeon/go-vcr.v2/recorder"

	"github.com/roach88/contracttape/internal/recording"
)

// ErrUnexpectedRequest is returned for requests made while replaying that
// the recording does not contain.
var ErrUnexpectedRequest = errors.New("unexpected request during replay")

type mode int

const (
	modeIdle mode = iota
	modeRecording
	modeReplaying
)

// Boundary is a go-vcr backed record/replay transport. The zero value is not
// usable; create one with New.
type Boundary struct {
	transport http.RoundTripper
	logger    *slog.Logger
	client    *http.Client

	mu   sync.Mutex
	mode mode
	rec  *recorder.Recorder
	dir  string
	name string
}

// Option configures a Boundary.
type Option func(*Boundary)

// WithTransport sets the transport used for live traffic. Defaults to
// http.DefaultTransport.
func WithTransport(rt http.RoundTripper) Option {
	return func(b *Boundary) {
		b.transport = rt
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(b *Boundary) {
		b.logger = l
	}
}

// New creates an idle Boundary.
func New(opts ...Option) *Boundary {
	b := &Boundary{
		transport: http.DefaultTransport,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.client = &http.Client{Transport: b}
	return b
}

// Client returns a client whose requests go through the boundary.
func (b *Boundary) Client() *http.Client {
	return b.client
}

// RoundTrip implements http.RoundTripper.
func (b *Boundary) RoundTrip(req *http.Request) (*http.Response, error) {
	b.mu.Lock()
	m, rec := b.mode, b.rec
	b.mu.Unlock()

	switch {
	case m == modeIdle:
		return b.transport.RoundTrip(req)
	case rec == nil:
		return nil, fmt.Errorf("%w: %s %s", ErrUnexpectedRequest, req.Method, req.URL)
	}

	resp, err := rec.RoundTrip(req)
	if err != nil && m == modeReplaying {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrUnexpectedRequest, req.Method, req.URL, err)
	}
	return resp, err
}

// Record starts capturing live traffic.
func (b *Boundary) Record(ctx context.Context, baseURL string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.mode != modeIdle {
		return fmt.Errorf("capture: record while busy")
	}
	if err := b.newCassetteDir(); err != nil {
		return err
	}

	rec, err := recorder.NewAsMode(b.name, recorder.ModeRecording, b.transport)
	if err != nil {
		b.cleanup()
		return fmt.Errorf("capture: start recorder: %w", err)
	}

	b.rec, b.mode = rec, modeRecording
	b.logger.Debug("capture recording", "base_url", baseURL)
	return nil
}

// Replay starts serving set. Interactions are matched by method and URL and
// each is served once, in order.
func (b *Boundary) Replay(ctx context.Context, baseURL string, set recording.InteractionSet) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.mode != modeIdle {
		return fmt.Errorf("capture: replay while busy")
	}

	b.mode = modeReplaying
	if len(set) == 0 {
		// Nothing to serve: every request is unexpected.
		return nil
	}

	if err := b.newCassetteDir(); err != nil {
		b.mode = modeIdle
		return err
	}

	c := cassette.New(b.name)
	for idx, i := range set {
		ci, err := toCassette(i)
		if err != nil {
			b.cleanup()
			b.mode = modeIdle
			return fmt.Errorf("capture: interaction %d: %w", idx, err)
		}
		c.AddInteraction(ci)
	}
	if err := c.Save(); err != nil {
		b.cleanup()
		b.mode = modeIdle
		return fmt.Errorf("capture: save cassette: %w", err)
	}

	rec, err := recorder.NewAsMode(b.name, recorder.ModeReplaying, b.transport)
	if err != nil {
		b.cleanup()
		b.mode = modeIdle
		return fmt.Errorf("capture: start replayer: %w", err)
	}
	rec.SetMatcher(requestMatches)

	b.rec = rec
	b.logger.Debug("capture replaying", "base_url", baseURL, "interactions", len(set))
	return nil
}

// Stop ends the current mode. After recording it returns the captured
// interactions in request order.
func (b *Boundary) Stop(ctx context.Context) (recording.InteractionSet, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	m, rec := b.mode, b.rec
	b.mode, b.rec = modeIdle, nil
	defer b.cleanup()

	if rec == nil {
		return nil, nil
	}
	if err := rec.Stop(); err != nil {
		return nil, fmt.Errorf("capture: stop recorder: %w", err)
	}
	if m != modeRecording {
		return nil, nil
	}

	c, err := cassette.Load(b.name)
	if errors.Is(err, cassette.ErrCassetteNotFound) || os.IsNotExist(err) {
		// go-vcr does not write cassettes without interactions.
		return recording.InteractionSet{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("capture: load cassette: %w", err)
	}

	set := make(recording.InteractionSet, 0, len(c.Interactions))
	for idx, ci := range c.Interactions {
		i, err := fromCassette(ci)
		if err != nil {
			return nil, fmt.Errorf("capture: interaction %d: %w", idx, err)
		}
		set = append(set, i)
	}
	return set, nil
}

// Reset drops any recorder state and returns to live traffic.
func (b *Boundary) Reset() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var err error
	if b.rec != nil {
		err = b.rec.Stop()
	}
	b.mode, b.rec = modeIdle, nil
	b.cleanup()
	return err
}

func (b *Boundary) newCassetteDir() error {
	dir, err := os.MkdirTemp("", "contracttape-*")
	if err != nil {
		return fmt.Errorf("capture: create cassette directory: %w", err)
	}
	b.dir = dir
	b.name = filepath.Join(dir, "cassette")
	return nil
}

func (b *Boundary) cleanup() {
	if b.dir == "" {
		return
	}
	if err := os.RemoveAll(b.dir); err != nil {
		b.logger.Warn("capture: remove cassette directory", "dir", b.dir, "error", err)
	}
	b.dir, b.name = "", ""
}

// requestMatches compares a live request with a recorded one by method,
// scheme, host, unescaped path and decoded query values. Percent-encoding
// differences such as %20 and + in a query do not prevent a match.
func requestMatches(r *http.Request, i cassette.Request) bool {
	if r.Method != i.Method {
		return false
	}
	recorded, err := url.Parse(i.URL)
	if err != nil {
		return false
	}
	if !strings.EqualFold(r.URL.Scheme, recorded.Scheme) || !strings.EqualFold(r.URL.Host, recorded.Host) {
		return false
	}
	if r.URL.Path != recorded.Path {
		return false
	}

	live, err := url.ParseQuery(r.URL.RawQuery)
	if err != nil {
		return false
	}
	stored, err := url.ParseQuery(recorded.RawQuery)
	if err != nil {
		return false
	}
	if len(live) != len(stored) {
		return false
	}
	for k, v := range live {
		if !slices.Equal(v, stored[k]) {
			return false
		}
	}
	return true
}
