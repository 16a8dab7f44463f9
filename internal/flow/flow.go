// Package flow implements the submission flow: validate a request, start an
// upstream generation, then poll the job and expose the resulting PollState.
//
// State machine:
//
//	idle -> generating -> polling -> completed | failed | error
//
// Any state moves back to generating on the next valid submission, after the
// previous poller has been stopped.
package flow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/maauso/promptvideo-api/internal/generation"
	"github.com/maauso/promptvideo-api/internal/poller"
)

// User-facing messages for terminal states.
const (
	MessageGenerationFailed = "Video generation failed. Please try again."
	MessageSubmitFailed     = "Failed to start video generation. Please try again."
	MessageStatusFailed     = "Failed to check video status. Please try again."
	MessageNetworkError     = "Network error. Please check your connection and try again."
)

var (
	// ErrSuperseded is returned by Submit when a newer submission started
	// before this one received its job id. Its result is discarded.
	ErrSuperseded = errors.New("flow: submission superseded")
	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("flow: closed")
	// ErrNotSubmitted is returned by Wait when nothing was submitted.
	ErrNotSubmitted = errors.New("flow: nothing submitted")
)

// Generator starts an upstream generation and returns its job id.
type Generator interface {
	Generate(ctx context.Context, req generation.GenerationRequest) (jobID string, err error)
}

// Flow owns one PollState and at most one active Poller.
// It is safe for concurrent use.
type Flow struct {
	generator Generator
	checker   poller.StatusChecker
	interval  time.Duration
	logger    *slog.Logger
	observer  func(generation.PollState)

	baseCtx context.Context
	cancel  context.CancelFunc

	mu      sync.Mutex
	state   generation.PollState
	jobID   string
	seq     uint64
	poller  *poller.Poller
	changed chan struct{}
	closed  bool
}

// Option configures a Flow.
type Option func(*Flow)

// WithPollInterval sets the cadence of status checks.
func WithPollInterval(d time.Duration) Option {
	return func(f *Flow) {
		if d > 0 {
			f.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Flow) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithObserver registers a function called on every state change, in order.
// It runs with the Flow locked and must not call back into the Flow.
func WithObserver(fn func(generation.PollState)) Option {
	return func(f *Flow) {
		f.observer = fn
	}
}

// New creates an idle Flow.
func New(generator Generator, checker poller.StatusChecker, opts ...Option) *Flow {
	ctx, cancel := context.WithCancel(context.Background())
	f := &Flow{
		generator: generator,
		checker:   checker,
		interval:  poller.DefaultInterval,
		logger:    slog.Default(),
		baseCtx:   ctx,
		cancel:    cancel,
		state:     generation.PollState{Status: generation.StateIdle},
		changed:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Submit validates req and, if valid, starts a new generation.
//
// Invalid requests return a *generation.ValidationError and leave the state
// untouched. Otherwise the state is reset to generating, any active poller is
// stopped and the request is sent. A failed send moves the state to error
// and returns the cause; a successful one starts polling and returns nil.
// ctx bounds the send only; polling lives until a terminal state or Close.
func (f *Flow) Submit(ctx context.Context, req generation.GenerationRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	f.seq++
	seq := f.seq
	prev := f.poller
	f.poller = nil
	f.jobID = ""
	f.setStateLocked(generation.PollState{Status: generation.StateGenerating})
	f.mu.Unlock()

	// Stop outside the lock: the old loop may be waiting on it in a callback.
	if prev != nil {
		prev.Stop()
	}

	jobID, err := f.generator.Generate(ctx, req)
	if err == nil && jobID == "" {
		err = &generation.UpstreamError{Message: "response did not include a video id"}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if seq != f.seq {
		f.logger.Debug("discarding superseded submission", slog.String("job_id", jobID))
		return ErrSuperseded
	}

	if err != nil {
		f.logger.Warn("video generation request failed", slog.String("error", err.Error()))
		f.setStateLocked(generation.PollState{
			Status:       generation.StateError,
			ErrorMessage: userMessage(err, MessageSubmitFailed),
		})
		return err
	}

	f.logger.Info("video generation started", slog.String("job_id", jobID))

	p := poller.New(f.checker, poller.WithInterval(f.interval), poller.WithLogger(f.logger))
	if err := p.Start(f.baseCtx, jobID, f.onUpdate(seq), f.onTerminal(seq)); err != nil {
		f.setStateLocked(generation.PollState{
			Status:       generation.StateError,
			ErrorMessage: MessageStatusFailed,
		})
		return err
	}
	f.poller = p
	f.jobID = jobID
	return nil
}

// State returns the current PollState.
func (f *Flow) State() generation.PollState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// JobID returns the upstream id of the current submission, if any.
func (f *Flow) JobID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.jobID
}

// Wait blocks until the current submission reaches a terminal state or ctx
// is done.
func (f *Flow) Wait(ctx context.Context) (generation.PollState, error) {
	for {
		f.mu.Lock()
		state, changed := f.state, f.changed
		f.mu.Unlock()

		if state.Status.IsTerminal() {
			return state, nil
		}
		if state.Status == generation.StateIdle {
			return state, ErrNotSubmitted
		}

		select {
		case <-ctx.Done():
			return state, ctx.Err()
		case <-changed:
		}
	}
}

// Close stops polling and rejects further submissions. The last state stays
// readable.
func (f *Flow) Close() {
	f.mu.Lock()
	f.closed = true
	f.seq++
	p := f.poller
	f.poller = nil
	f.mu.Unlock()

	if p != nil {
		p.Stop()
	}
	f.cancel()
}

func (f *Flow) onUpdate(seq uint64) func(poller.Event) {
	return func(poller.Event) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if seq != f.seq {
			return
		}
		if f.state.Status != generation.StatePolling {
			f.setStateLocked(generation.PollState{Status: generation.StatePolling})
		}
	}
}

func (f *Flow) onTerminal(seq uint64) func(poller.Event) {
	return func(ev poller.Event) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if seq != f.seq {
			return
		}

		switch ev.Kind {
		case poller.EventCompleted:
			f.setStateLocked(generation.PollState{
				Status:   generation.StateCompleted,
				VideoURL: ev.Result.VideoURL,
			})
		case poller.EventFailed:
			f.setStateLocked(generation.PollState{
				Status:       generation.StateFailed,
				ErrorMessage: MessageGenerationFailed,
			})
		default:
			f.setStateLocked(generation.PollState{
				Status:       generation.StateError,
				ErrorMessage: userMessage(ev.Err, MessageStatusFailed),
			})
		}
	}
}

func (f *Flow) setStateLocked(s generation.PollState) {
	f.state = s
	close(f.changed)
	f.changed = make(chan struct{})
	if f.observer != nil {
		f.observer(s)
	}
}

// userMessage picks the message shown for err. Upstream messages are passed
// through; fallback covers upstream errors without one.
func userMessage(err error, fallback string) string {
	var upErr *generation.UpstreamError
	if errors.As(err, &upErr) {
		if upErr.Message != "" {
			return upErr.Message
		}
		return fallback
	}
	var netErr *generation.NetworkError
	if errors.As(err, &netErr) {
		return MessageNetworkError
	}
	return fallback
}
