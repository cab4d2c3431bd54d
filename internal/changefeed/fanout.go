package changefeed

import (
	"context"
	"errors"
	"fmt"

	"github.com/rzpsarthak13/thinorm/internal/core"
	"golang.org/x/sync/errgroup"
)

// FanOut publishes every event to several publishers concurrently.
type FanOut struct {
	publishers []core.ChangePublisher
}

// NewFanOut combines publishers. Nil entries are skipped.
func NewFanOut(publishers ...core.ChangePublisher) *FanOut {
	f := &FanOut{}
	for _, p := range publishers {
		if p != nil {
			f.publishers = append(f.publishers, p)
		}
	}
	return f
}

// Len returns the number of combined publishers.
func (f *FanOut) Len() int { return len(f.publishers) }

// Publish delivers the event to every publisher and waits for all of them.
// Every publisher is attempted; the first failure is returned.
func (f *FanOut) Publish(ctx context.Context, event *core.ChangeEvent) error {
	if err := checkEvent(event); err != nil {
		return err
	}
	var g errgroup.Group
	for i, p := range f.publishers {
		g.Go(func() error {
			if err := p.Publish(ctx, event); err != nil {
				return fmt.Errorf("publisher %d: %w", i, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Close closes every publisher and joins their errors.
func (f *FanOut) Close() error {
	var errs []error
	for _, p := range f.publishers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
