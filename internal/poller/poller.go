// Package poller drives periodic status checks for one upstream job until it
// reaches a terminal state or the caller stops it.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/maauso/promptvideo-api/internal/generation"
)

// DefaultInterval is the cadence between two status checks.
const DefaultInterval = 5 * time.Second

// ErrAlreadyRunning is returned by Start while a previous poll is active.
var ErrAlreadyRunning = errors.New("poller: already running")

// StatusChecker performs one status request for a job.
type StatusChecker interface {
	CheckStatus(ctx context.Context, jobID string) (generation.StatusResult, error)
}

// StatusCheckerFunc adapts a function to StatusChecker.
type StatusCheckerFunc func(ctx context.Context, jobID string) (generation.StatusResult, error)

// CheckStatus calls f.
func (f StatusCheckerFunc) CheckStatus(ctx context.Context, jobID string) (generation.StatusResult, error) {
	return f(ctx, jobID)
}

// EventKind classifies the outcome of one status check.
type EventKind string

const (
	// EventProgress is a non-terminal status; polling continues.
	EventProgress EventKind = "progress"
	// EventCompleted means the video is ready.
	EventCompleted EventKind = "completed"
	// EventFailed means upstream reported the job as failed.
	EventFailed EventKind = "failed"
	// EventError means the status check itself failed. It is terminal.
	EventError EventKind = "error"
)

// Event is delivered to the Start callbacks.
type Event struct {
	Kind  EventKind
	JobID string
	// Result is the status check outcome. Zero for EventError.
	Result generation.StatusResult
	// Err is set only for EventError.
	Err error
}

// IsTerminal returns true for every kind except EventProgress.
func (e Event) IsTerminal() bool {
	return e.Kind != EventProgress
}

// Poller owns at most one polling loop at a time.
type Poller struct {
	checker  StatusChecker
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the cadence between checks.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Poller) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates an idle Poller.
func New(checker StatusChecker, opts ...Option) *Poller {
	p := &Poller{
		checker:  checker,
		interval: DefaultInterval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start checks the job once immediately and then once per interval.
// Non-terminal results go to onUpdate. The first terminal result (completed,
// failed or a check error) goes to onTerminal and ends the loop. Either
// callback may be nil. Callbacks run on the polling goroutine and must not
// call Stop.
//
// Cancelling ctx has the same effect as Stop, without the wait.
func (p *Poller) Start(ctx context.Context, jobID string, onUpdate, onTerminal func(Event)) error {
	if jobID == "" {
		return generation.NewValidationError("job_id", "job_id is required")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done != nil {
		select {
		case <-p.done:
		default:
			return ErrAlreadyRunning
		}
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done

	go p.run(loopCtx, cancel, done, jobID, orNoop(onUpdate), orNoop(onTerminal))
	return nil
}

// Stop cancels the timer and any in-flight check, then waits for the loop to
// exit. No callback fires after Stop returns. Stop is a no-op when idle and
// safe to call repeatedly.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether a polling loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done == nil {
		return false
	}
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Done returns a channel closed when the current loop exits.
// It returns nil if Start was never called.
func (p *Poller) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

func (p *Poller) run(ctx context.Context, cancel context.CancelFunc, done chan struct{}, jobID string, onUpdate, onTerminal func(Event)) {
	defer close(done)
	defer cancel()

	// The ticker drops ticks while a check is running, so at most one check
	// is ever in flight.
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if p.check(ctx, jobID, onUpdate, onTerminal) {
			return
		}
		select {
		case <-ctx.Done():
			p.logger.Debug("polling stopped", slog.String("job_id", jobID))
			return
		case <-ticker.C:
		}
	}
}

// check runs one status check and reports whether polling is over.
func (p *Poller) check(ctx context.Context, jobID string, onUpdate, onTerminal func(Event)) bool {
	res, err := p.checker.CheckStatus(ctx, jobID)
	if ctx.Err() != nil {
		// Stopped while the check was in flight; its result is discarded.
		return true
	}

	if err != nil {
		p.logger.Warn("status check failed",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		onTerminal(Event{Kind: EventError, JobID: jobID, Err: err})
		return true
	}

	p.logger.Debug("status check",
		slog.String("job_id", jobID),
		slog.String("status", string(res.Status)),
	)

	switch res.Status {
	case generation.StatusCompleted:
		p.logger.Info("video generation completed", slog.String("job_id", jobID))
		onTerminal(Event{Kind: EventCompleted, JobID: jobID, Result: res})
		return true
	case generation.StatusFailed:
		p.logger.Info("video generation failed",
			slog.String("job_id", jobID),
			slog.String("detail", res.ErrorDetail),
		)
		onTerminal(Event{Kind: EventFailed, JobID: jobID, Result: res})
		return true
	default:
		onUpdate(Event{Kind: EventProgress, JobID: jobID, Result: res})
		return false
	}
}

func orNoop(fn func(Event)) func(Event) {
	if fn == nil {
		return func(Event) {}
	}
	return fn
}
