// Package lifecycle drives one test case through record or replay.
//
// A Controller starts Idle, moves to Recording or Replaying in Start and ends
// Closed after End. Recording captures traffic through a Boundary, scrubs it,
// compares it with what is already on disk and decides where to write it.
// Replaying reads the recording, restores placeholders and serves it.
//
// Controllers are single use and not safe for concurrent use. Fixture files
// are read and written without locking; a fixture path must not be shared
// by concurrent runs.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/roach88/contracttape/internal/impact"
	"github.com/roach88/contracttape/internal/match"
	"github.com/roach88/contracttape/internal/recording"
	"github.com/roach88/contracttape/internal/scrub"
)

// Policy holds the externally controlled recording switches.
type Policy struct {
	// LivePattern selects cases that run against the live API. See
	// PatternSelector.
	LivePattern string `koanf:"live_pattern"`

	// UseCandidateFile writes every recording to the candidate file, and
	// makes replay prefer the candidate when it has the case.
	UseCandidateFile bool `koanf:"use_candidate_file"`

	// PromoteCandidate merges the candidate into the main file right after
	// it is written.
	PromoteCandidate bool `koanf:"promote_candidate"`

	// EnforceConsistency fails a recording whose traffic differs from a
	// candidate already recorded for the same case.
	EnforceConsistency bool `koanf:"enforce_consistency"`

	// AllowCandidate compares new traffic with an existing recording and
	// writes differing traffic to the candidate file instead of the main one.
	AllowCandidate bool `koanf:"allow_candidate"`
}

// Outcome is the result of a finished case.
type Outcome struct {
	Mode Mode `json:"mode"`

	// Written is the file the recording was written to. Empty when replaying
	// or when the new traffic matched the existing recording.
	Written string `json:"written,omitempty"`

	// Promoted is set when the candidate was merged into the main file.
	// Archived names the archive of the previous main file, if there was one.
	Promoted bool   `json:"promoted,omitempty"`
	Archived string `json:"archived,omitempty"`

	Impact impact.Level  `json:"impact"`
	Match  *match.Result `json:"match,omitempty"`
	Leaks  []scrub.Leak  `json:"leaks,omitempty"`
}

// Controller runs one case. Create it with New.
type Controller struct {
	boundary    Boundary
	selector    ModeSelector
	policy      Policy
	beforeServe Hook
	beforeSave  Hook
	history     HistoryRecorder
	logger      *slog.Logger

	state State
	mode  Mode
	tc    Case
}

// Option configures a Controller.
type Option func(*Controller)

// WithPolicy sets the recording policy. Without WithSelector the policy's
// LivePattern selects the mode.
func WithPolicy(p Policy) Option {
	return func(c *Controller) {
		c.policy = p
	}
}

// WithSelector overrides mode selection.
func WithSelector(s ModeSelector) Option {
	return func(c *Controller) {
		c.selector = s
	}
}

// WithBeforeServe sets a hook run on restored interactions before replay.
func WithBeforeServe(h Hook) Option {
	return func(c *Controller) {
		c.beforeServe = h
	}
}

// WithBeforeSave sets a hook run on scrubbed interactions before they are
// compared and written.
func WithBeforeSave(h Hook) Option {
	return func(c *Controller) {
		c.beforeSave = h
	}
}

// WithHistory appends every recording pass to h.
func WithHistory(h HistoryRecorder) Option {
	return func(c *Controller) {
		c.history = h
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// New creates an Idle controller around boundary.
func New(boundary Boundary, opts ...Option) *Controller {
	c := &Controller{
		boundary: boundary,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.selector == nil {
		c.selector = PatternSelector{Pattern: c.policy.LivePattern}
	}
	return c
}

// State returns the current state.
func (c *Controller) State() State {
	return c.state
}

// Mode returns the mode chosen by Start.
func (c *Controller) Mode() Mode {
	return c.mode
}

// Client returns the boundary's HTTP client.
func (c *Controller) Client() *http.Client {
	return c.boundary.Client()
}

// Start selects the mode for tc and enters Recording or Replaying.
//
// Replaying requires an existing recording; a missing file, index or hash is
// returned as a recording.NotFoundError and the controller stays Idle.
func (c *Controller) Start(ctx context.Context, tc Case) (Mode, error) {
	if c.state != Idle {
		return "", &StateError{Op: "start", State: c.state}
	}
	if tc.BaseURL == "" {
		return "", fmt.Errorf("%w (%s)", ErrBaseURLMissing, tc.Key)
	}

	c.tc = tc
	if c.selector.Live(tc) {
		if err := c.boundary.Record(ctx, tc.BaseURL); err != nil {
			c.teardown()
			return "", fmt.Errorf("start recording %s: %w", tc.Key, err)
		}
		c.state, c.mode = Recording, ModeRecord
		c.logger.Debug("recording", "case", tc.Key.String(), "hash", tc.Hash)
		return ModeRecord, nil
	}

	set, err := c.loadFixture(tc)
	if err != nil {
		return "", err
	}

	set, err = scrub.Apply(set, tc.Placeholders, scrub.Restore)
	if err != nil {
		return "", fmt.Errorf("restore %s: %w", tc.Key, err)
	}

	if c.beforeServe != nil {
		if set, err = c.beforeServe(ctx, tc, set); err != nil {
			return "", fmt.Errorf("before serve %s: %w", tc.Key, err)
		}
	}

	if err := c.boundary.Replay(ctx, tc.BaseURL, set); err != nil {
		c.teardown()
		return "", fmt.Errorf("start replay %s: %w", tc.Key, err)
	}
	c.state, c.mode = Replaying, ModeReplay
	c.logger.Debug("replaying", "case", tc.Key.String(), "hash", tc.Hash, "interactions", len(set))
	return ModeReplay, nil
}

// loadFixture reads the recording to replay. With UseCandidateFile the
// candidate wins when it has the case.
func (c *Controller) loadFixture(tc Case) (recording.InteractionSet, error) {
	if c.policy.UseCandidateFile {
		set, err := recording.Read(recording.CandidatePath(tc.Fixture), tc.Key, tc.Hash)
		if err == nil {
			return set, nil
		}
		if !recording.IsNotFound(err) {
			return nil, err
		}
	}
	return recording.Read(recording.MainPath(tc.Fixture), tc.Key, tc.Hash)
}

// End finishes the case and closes the controller.
//
// After recording, the captured traffic is scrubbed, checked for leaks and
// written according to the policy. The boundary is reset before End returns,
// also when it fails or panics.
func (c *Controller) End(ctx context.Context) (Outcome, error) {
	switch c.state {
	case Replaying:
		defer c.teardown()
		if _, err := c.boundary.Stop(ctx); err != nil {
			return Outcome{}, fmt.Errorf("stop replay %s: %w", c.tc.Key, err)
		}
		return Outcome{Mode: ModeReplay}, nil

	case Recording:
		defer c.teardown()
		return c.finishRecording(ctx)

	default:
		return Outcome{}, &StateError{Op: "end", State: c.state}
	}
}

// Abort resets the boundary and closes the controller. It is a no-op once
// closed.
func (c *Controller) Abort() {
	if c.state == Closed {
		return
	}
	c.teardown()
}

func (c *Controller) teardown() {
	if err := c.boundary.Reset(); err != nil {
		c.logger.Error("boundary reset failed", "case", c.tc.Key.String(), "error", err)
	}
	c.state = Closed
}

// Run starts tc, calls fn with the boundary's client and ends the case.
// When fn returns an error or panics the boundary is reset first and the
// error or panic is propagated.
func (c *Controller) Run(ctx context.Context, tc Case, fn func(ctx context.Context, client *http.Client) error) (Outcome, error) {
	if _, err := c.Start(ctx, tc); err != nil {
		return Outcome{}, err
	}

	defer func() {
		if r := recover(); r != nil {
			c.Abort()
			panic(r)
		}
	}()

	if err := fn(ctx, c.boundary.Client()); err != nil {
		c.Abort()
		return Outcome{}, err
	}
	return c.End(ctx)
}

func (c *Controller) finishRecording(ctx context.Context) (Outcome, error) {
	tc := c.tc

	raw, err := c.boundary.Stop(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("stop recording %s: %w", tc.Key, err)
	}

	set, err := scrub.Apply(raw, tc.Placeholders, scrub.Scrub)
	if err != nil {
		return Outcome{}, fmt.Errorf("scrub %s: %w", tc.Key, err)
	}

	if c.beforeSave != nil {
		if set, err = c.beforeSave(ctx, tc, set); err != nil {
			return Outcome{}, fmt.Errorf("before save %s: %w", tc.Key, err)
		}
	}

	out := Outcome{Mode: ModeRecord, Leaks: scrub.FindLeaks(set, tc.Placeholders)}
	for _, leak := range out.Leaks {
		c.logger.Warn("value left in recording", "case", tc.Key.String(), "leak", leak.String())
	}

	mainPath := recording.MainPath(tc.Fixture)
	candidatePath := recording.CandidatePath(tc.Fixture)

	if c.policy.EnforceConsistency {
		if err := c.checkConsistency(candidatePath, set); err != nil {
			return Outcome{}, err
		}
	}

	existing, err := recording.Read(mainPath, tc.Key, tc.Hash)
	exists := err == nil
	if err != nil && !recording.IsNotFound(err) {
		return Outcome{}, err
	}

	target := mainPath
	switch {
	case exists && c.policy.AllowCandidate:
		result, err := match.Match(existing, set)
		if err != nil {
			return Outcome{}, fmt.Errorf("match %s: %w", tc.Key, err)
		}
		out.Match = &result
		out.Impact = impact.Classify(result.Errors)

		if out.Impact == impact.None {
			c.logger.Debug("traffic unchanged", "case", tc.Key.String())
			c.recordPass(ctx, out)
			return out, nil
		}
		c.logger.Info("traffic changed", "case", tc.Key.String(), "impact", out.Impact.String(), "findings", result.Errors.Count())
		target = candidatePath

	case c.policy.UseCandidateFile:
		target = candidatePath
	}

	if err := recording.Write(target, tc.Key, tc.Hash, set); err != nil {
		return Outcome{}, fmt.Errorf("write %s: %w", tc.Key, err)
	}
	out.Written = target

	if target == candidatePath && c.policy.PromoteCandidate {
		promoted, err := recording.PromoteCandidate(tc.Fixture)
		if err != nil {
			return Outcome{}, fmt.Errorf("promote %s: %w", tc.Fixture, err)
		}
		out.Written = mainPath
		out.Promoted = true
		out.Archived = promoted.Archived
	}

	c.recordPass(ctx, out)
	return out, nil
}

func (c *Controller) checkConsistency(candidatePath string, set recording.InteractionSet) error {
	tc := c.tc
	previous, err := recording.Read(candidatePath, tc.Key, tc.Hash)
	if recording.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}

	result, err := match.Match(previous, set)
	if err != nil {
		return fmt.Errorf("match candidate %s: %w", tc.Key, err)
	}
	if level := impact.Classify(result.Errors); level != impact.None {
		return &InconsistentTrafficError{Key: tc.Key.String(), Hash: tc.Hash, Impact: level, Errors: result.Errors}
	}
	return nil
}

func (c *Controller) recordPass(ctx context.Context, out Outcome) {
	if c.history == nil {
		return
	}
	pass := Pass{
		Key:      c.tc.Key,
		Hash:     c.tc.Hash,
		Fixture:  c.tc.Fixture,
		Impact:   out.Impact,
		Leaks:    len(out.Leaks),
		Written:  out.Written,
		Promoted: out.Promoted,
	}
	if out.Match != nil {
		pass.Findings = out.Match.Errors.Count()
	}
	if err := c.history.RecordPass(ctx, pass); err != nil {
		c.logger.Warn("history write failed", "case", c.tc.Key.String(), "error", err)
	}
}
