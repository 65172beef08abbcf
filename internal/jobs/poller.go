// Package jobs drives remote generation jobs to a terminal state by
// periodic status polling bounded by a wall-clock wait budget.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"reelforge/internal/domain"
)

// DefaultWaitBudget bounds how long a job may stay non-terminal when the
// caller does not configure a budget of its own.
const DefaultWaitBudget = 500 * time.Second

// remoteCancelTimeout caps the best-effort cancel issued after a timeout.
const remoteCancelTimeout = 10 * time.Second

// Status is one observation of a remote job, as reported by a FetchFunc.
type Status struct {
	State  domain.JobStatus
	Output []string
	Reason string
}

// FetchFunc retrieves the current remote state of a job. Implementations
// issue exactly one vendor call per invocation.
type FetchFunc func(ctx context.Context, jobID string) (Status, error)

// CancelFunc asks the vendor to abort a job. The poller invokes it on a
// best-effort basis when the wait budget runs out.
type CancelFunc func(ctx context.Context, jobID string) error

// Event reports poller progress to observers.
type Event struct {
	JobID   string           `json:"job_id"`
	Kind    domain.JobKind   `json:"kind"`
	Status  domain.JobStatus `json:"status"`
	Poll    int              `json:"poll"`
	Elapsed float64          `json:"elapsed_seconds"`
}

// Options configures a Poller.
type Options struct {
	// Kind selects the default poll interval when Interval is unset.
	Kind domain.JobKind
	// Interval overrides the kind's poll cadence.
	Interval time.Duration
	// Budget is the wall-clock wait budget. Defaults to DefaultWaitBudget.
	Budget time.Duration
	// Fetch observes remote job state. Required.
	Fetch FetchFunc
	// Cancel, when set, is called once if the budget runs out.
	Cancel CancelFunc
	// OnEvent receives one Event per status observation plus a final
	// TIMED_OUT event when the budget runs out.
	OnEvent func(Event)
	Logger  zerolog.Logger
}

// Poller drives one category of remote job to a terminal state. Wait is
// synchronous and issues at most one status fetch per interval; callers own
// any concurrency around it.
type Poller struct {
	kind     domain.JobKind
	interval time.Duration
	budget   time.Duration
	fetch    FetchFunc
	cancel   CancelFunc
	onEvent  func(Event)
	logger   zerolog.Logger

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// New validates opts and builds a Poller.
func New(opts Options) (*Poller, error) {
	if opts.Fetch == nil {
		return nil, errors.New("jobs: fetch func is required")
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = opts.Kind.DefaultPollInterval()
	}
	budget := opts.Budget
	if budget <= 0 {
		budget = DefaultWaitBudget
	}

	return &Poller{
		kind:     opts.Kind,
		interval: interval,
		budget:   budget,
		fetch:    opts.Fetch,
		cancel:   opts.Cancel,
		onEvent:  opts.OnEvent,
		logger:   opts.Logger,
		now:      time.Now,
		sleep:    sleepContext,
	}, nil
}

// Wait blocks until the job reaches a terminal state, the wait budget runs
// out, or ctx is cancelled. Transport failures from the fetch collaborator
// abort immediately without retry; retry belongs to an outer policy if the
// caller wants one.
func (p *Poller) Wait(ctx context.Context, jobID string) (domain.JobResult, error) {
	waitsInFlight.WithLabelValues(string(p.kind)).Inc()
	defer waitsInFlight.WithLabelValues(string(p.kind)).Dec()

	start := p.now()
	polls := 0
	for {
		elapsed := p.now().Sub(start)
		if elapsed >= p.budget {
			return domain.JobResult{}, p.timedOut(ctx, jobID, polls, elapsed)
		}

		status, err := p.fetch(ctx, jobID)
		if err != nil {
			p.finish(jobID, outcomeTransport)
			return domain.JobResult{}, fmt.Errorf("jobs: fetch status for %s: %w: %w", jobID, domain.ErrTransport, err)
		}
		polls++
		pollsTotal.WithLabelValues(string(p.kind)).Inc()
		p.emit(Event{
			JobID:   jobID,
			Kind:    p.kind,
			Status:  status.State,
			Poll:    polls,
			Elapsed: p.now().Sub(start).Seconds(),
		})

		switch status.State {
		case domain.JobStatusSucceeded:
			if len(status.Output) == 0 {
				p.finish(jobID, outcomeMalformed)
				return domain.JobResult{}, fmt.Errorf("jobs: job %s succeeded without output locators: %w", jobID, domain.ErrMalformedResponse)
			}
			p.finish(jobID, outcomeSucceeded)
			return domain.JobResult{
				JobID:   jobID,
				Output:  status.Output,
				Polls:   polls,
				Elapsed: p.now().Sub(start),
			}, nil
		case domain.JobStatusFailed:
			p.finish(jobID, outcomeFailed)
			if status.Reason != "" {
				return domain.JobResult{}, fmt.Errorf("jobs: job %s: %w: %s", jobID, domain.ErrRemoteFailed, status.Reason)
			}
			return domain.JobResult{}, fmt.Errorf("jobs: job %s: %w", jobID, domain.ErrRemoteFailed)
		}

		if err := p.sleep(ctx, p.interval); err != nil {
			return domain.JobResult{}, fmt.Errorf("jobs: wait for %s: %w", jobID, err)
		}
	}
}

func (p *Poller) timedOut(ctx context.Context, jobID string, polls int, elapsed time.Duration) error {
	p.finish(jobID, outcomeTimedOut)
	p.emit(Event{
		JobID:   jobID,
		Kind:    p.kind,
		Status:  domain.JobStatusTimedOut,
		Poll:    polls,
		Elapsed: elapsed.Seconds(),
	})

	if p.cancel != nil {
		// The remote job may keep burning quota; a cancel attempt must
		// survive the caller's context being done already.
		cancelCtx, release := context.WithTimeout(context.WithoutCancel(ctx), remoteCancelTimeout)
		defer release()
		if err := p.cancel(cancelCtx, jobID); err != nil {
			p.logger.Warn().Err(err).Str("job_id", jobID).Msg("jobs: remote cancel failed")
		}
	}

	return fmt.Errorf("jobs: %s job %s not terminal after %s (%d polls): %w", p.kind.Label(), jobID, p.budget, polls, domain.ErrTimedOut)
}

func (p *Poller) emit(ev Event) {
	if p.onEvent != nil {
		p.onEvent(ev)
	}
	p.logger.Debug().
		Str("job_id", ev.JobID).
		Str("kind", string(ev.Kind)).
		Str("status", string(ev.Status)).
		Int("poll", ev.Poll).
		Msg("jobs: status observed")
}

func (p *Poller) finish(jobID string, outcome string) {
	outcomesTotal.WithLabelValues(string(p.kind), outcome).Inc()
	p.logger.Info().
		Str("job_id", jobID).
		Str("kind", string(p.kind)).
		Str("outcome", outcome).
		Msg("jobs: wait finished")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
