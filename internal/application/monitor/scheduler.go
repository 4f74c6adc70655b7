package monitor

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// Runner is a long-running sweep loop
type Runner interface {
	Run(ctx context.Context) error
}

// Scheduler runs all monitors concurrently and stops them together
type Scheduler struct {
	runners []Runner
}

// NewScheduler creates a scheduler over the given monitors
func NewScheduler(runners ...Runner) *Scheduler {
	return &Scheduler{runners: runners}
}

// Run blocks until the context is cancelled or a monitor fails
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, r := range s.runners {
		r := r
		g.Go(func() error { return r.Run(ctx) })
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
