// Package supervisor runs a fixed set of long-lived tasks and shuts all of
// them down as soon as any one stops.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ErrTaskExited reports a task that returned nil while the daemon was still
// meant to be running.
var ErrTaskExited = errors.New("task exited unexpectedly")

const DefaultGrace = 5 * time.Second

type Task func(ctx context.Context) error

type namedTask struct {
	name string
	run  Task
}

type Supervisor struct {
	log   zerolog.Logger
	grace time.Duration
	tasks []namedTask
}

func New(log zerolog.Logger, grace time.Duration) *Supervisor {
	if grace <= 0 {
		grace = DefaultGrace
	}
	return &Supervisor{
		log:   log.With().Str("component", "supervisor").Logger(),
		grace: grace,
	}
}

// Add registers a task. Tasks are started in registration order by Run.
func (s *Supervisor) Add(name string, task Task) {
	s.tasks = append(s.tasks, namedTask{name: name, run: task})
}

// Run starts every task and blocks until the first one returns or ctx is done.
// The remaining tasks are then cancelled and given the grace period to stop;
// stragglers are abandoned.
//
// The result is the first task's error, ErrTaskExited when it returned nil, or
// nil when ctx ended the run.
func (s *Supervisor) Run(ctx context.Context) error {
	if len(s.tasks) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, t := range s.tasks {
		t := t
		g.Go(func() error {
			s.log.Info().Str("task", t.name).Msg("task started")
			err := t.run(gctx)
			switch {
			case err != nil && gctx.Err() == nil:
				s.log.Error().Err(err).Str("task", t.name).Msg("task failed")
				return fmt.Errorf("%s: %w", t.name, err)
			case err == nil && gctx.Err() == nil:
				s.log.Error().Str("task", t.name).Msg("task exited")
				return fmt.Errorf("%s: %w", t.name, ErrTaskExited)
			default:
				s.log.Debug().Str("task", t.name).Msg("task stopped")
				return err
			}
		})
	}

	waited := make(chan error, 1)
	go func() { waited <- g.Wait() }()

	var first error
	select {
	case first = <-waited:
		return s.result(ctx, first)
	case <-gctx.Done():
	}

	timer := time.NewTimer(s.grace)
	defer timer.Stop()
	select {
	case first = <-waited:
	case <-timer.C:
		s.log.Warn().Dur("grace", s.grace).Msg("tasks did not stop within grace period")
		first = context.Cause(gctx)
	}
	return s.result(ctx, first)
}

func (s *Supervisor) result(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		s.log.Info().Msg("shutdown requested")
		return nil
	}
	return err
}
